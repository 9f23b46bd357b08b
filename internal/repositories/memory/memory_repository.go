// Package memory provides an in-memory Repository used by service tests.
// It mirrors the relational constraints the PostgreSQL implementation
// relies on, including the unique indexes and the conditional finalize.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/studentcbt/exam-service/internal/models"
	"github.com/studentcbt/exam-service/internal/repositories"
)

// ErrDuplicate stands in for the database unique constraint violation.
var ErrDuplicate = gorm.ErrDuplicatedKey

type store struct {
	mu sync.Mutex

	assessments map[uint]*models.Assessment
	questions   map[uint]*models.Question
	attempts    map[uint]*models.Attempt
	answers     map[uint]*models.Answer
	users       map[string]*models.User

	nextAssessmentID uint
	nextQuestionID   uint
	nextAttemptID    uint
	nextAnswerID     uint
}

// Repository is an in-memory implementation of repositories.Repository.
type Repository struct {
	s *store

	assessment *assessmentMemory
	question   *questionMemory
	attempt    *attemptMemory
	answer     *answerMemory
	user       *userMemory
	dashboard  *dashboardMemory
}

func NewRepository() *Repository {
	s := &store{
		assessments:      make(map[uint]*models.Assessment),
		questions:        make(map[uint]*models.Question),
		attempts:         make(map[uint]*models.Attempt),
		answers:          make(map[uint]*models.Answer),
		users:            make(map[string]*models.User),
		nextAssessmentID: 1,
		nextQuestionID:   1,
		nextAttemptID:    1,
		nextAnswerID:     1,
	}

	return &Repository{
		s:          s,
		assessment: &assessmentMemory{s: s},
		question:   &questionMemory{s: s},
		attempt:    &attemptMemory{s: s},
		answer:     &answerMemory{s: s},
		user:       &userMemory{s: s},
		dashboard:  &dashboardMemory{s: s},
	}
}

func (r *Repository) Assessment() repositories.AssessmentRepository { return r.assessment }
func (r *Repository) Question() repositories.QuestionRepository     { return r.question }
func (r *Repository) Attempt() repositories.AttemptRepository       { return r.attempt }
func (r *Repository) Answer() repositories.AnswerRepository         { return r.answer }
func (r *Repository) User() repositories.UserRepository             { return r.user }
func (r *Repository) Dashboard() repositories.DashboardRepository   { return r.dashboard }

// WithTransaction runs fn against the same store. The fake offers no
// rollback; tests assert on outcomes, not on partial writes.
func (r *Repository) WithTransaction(ctx context.Context, fn func(repositories.Repository) error) error {
	return fn(r)
}

func (r *Repository) Ping(ctx context.Context) error { return nil }
func (r *Repository) Close() error                   { return nil }

// SeedUser registers a user for lookup by the user repository.
func (r *Repository) SeedUser(user *models.User) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.users[user.ID] = user
}

// ===== ASSESSMENT =====

type assessmentMemory struct {
	s *store
}

func (m *assessmentMemory) Create(ctx context.Context, tx *gorm.DB, assessment *models.Assessment) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	if assessment.ID == 0 {
		assessment.ID = m.s.nextAssessmentID
		m.s.nextAssessmentID++
	}
	assessment.CreatedAt = time.Now()
	assessment.UpdatedAt = assessment.CreatedAt
	if assessment.Status == "" {
		assessment.Status = models.StatusDraft
	}

	copied := *assessment
	m.s.assessments[assessment.ID] = &copied
	return nil
}

func (m *assessmentMemory) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Assessment, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	stored, ok := m.s.assessments[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *stored
	return &copied, nil
}

func (m *assessmentMemory) GetByIDWithQuestions(ctx context.Context, tx *gorm.DB, id uint) (*models.Assessment, error) {
	assessment, err := m.GetByID(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	questions := questionsOf(m.s, id)
	assessment.Questions = make([]models.Question, 0, len(questions))
	for _, q := range questions {
		assessment.Questions = append(assessment.Questions, *q)
	}
	assessment.QuestionsCount = len(questions)
	return assessment, nil
}

func (m *assessmentMemory) Update(ctx context.Context, tx *gorm.DB, assessment *models.Assessment) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	if _, ok := m.s.assessments[assessment.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	assessment.UpdatedAt = time.Now()
	copied := *assessment
	m.s.assessments[assessment.ID] = &copied
	return nil
}

func (m *assessmentMemory) Delete(ctx context.Context, tx *gorm.DB, id uint) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	if _, ok := m.s.assessments[id]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(m.s.assessments, id)
	for qid, q := range m.s.questions {
		if q.AssessmentID == id {
			delete(m.s.questions, qid)
		}
	}
	return nil
}

func (m *assessmentMemory) List(ctx context.Context, tx *gorm.DB, filters repositories.AssessmentFilters) ([]*models.Assessment, int64, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	var matched []*models.Assessment
	for _, a := range m.s.assessments {
		if filters.Status != nil && a.Status != *filters.Status {
			continue
		}
		if filters.ClassID != nil && a.ClassID != *filters.ClassID {
			continue
		}
		if filters.SubjectID != nil && a.SubjectID != *filters.SubjectID {
			continue
		}
		if filters.CreatedBy != nil && a.CreatedBy != *filters.CreatedBy {
			continue
		}
		if filters.Search != "" && !strings.Contains(strings.ToLower(a.Title), strings.ToLower(filters.Search)) {
			continue
		}
		copied := *a
		matched = append(matched, &copied)
	}

	sort.Slice(matched, func(i, j int) bool {
		if filters.SortBy == "title" {
			if filters.SortOrder == "asc" {
				return matched[i].Title < matched[j].Title
			}
			return matched[i].Title > matched[j].Title
		}
		if filters.SortOrder == "asc" {
			return matched[i].ID < matched[j].ID
		}
		return matched[i].ID > matched[j].ID
	})

	total := int64(len(matched))
	matched = paginate(matched, filters.Offset, filters.Limit)
	return matched, total, nil
}

func (m *assessmentMemory) GetPublishedForClass(ctx context.Context, tx *gorm.DB, classID uint, now time.Time) ([]*models.Assessment, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	var matched []*models.Assessment
	for _, a := range m.s.assessments {
		if a.ClassID != classID || a.Status != models.StatusPublished {
			continue
		}
		if !a.IsOpenAt(now) {
			continue
		}
		copied := *a
		matched = append(matched, &copied)
	}

	sort.Slice(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })
	return matched, nil
}

func (m *assessmentMemory) HasAttempts(ctx context.Context, tx *gorm.DB, id uint) (bool, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	for _, att := range m.s.attempts {
		if att.AssessmentID == id {
			return true, nil
		}
	}
	return false, nil
}

// ===== QUESTION =====

type questionMemory struct {
	s *store
}

func (m *questionMemory) Create(ctx context.Context, tx *gorm.DB, question *models.Question) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	for _, q := range m.s.questions {
		if q.AssessmentID == question.AssessmentID && q.OrderIndex == question.OrderIndex {
			return fmt.Errorf("order index %d taken: %w", question.OrderIndex, ErrDuplicate)
		}
	}

	if question.ID == 0 {
		question.ID = m.s.nextQuestionID
		m.s.nextQuestionID++
	}
	question.CreatedAt = time.Now()
	question.UpdatedAt = question.CreatedAt

	copied := *question
	m.s.questions[question.ID] = &copied
	return nil
}

func (m *questionMemory) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Question, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	stored, ok := m.s.questions[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *stored
	return &copied, nil
}

func (m *questionMemory) Update(ctx context.Context, tx *gorm.DB, question *models.Question) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	if _, ok := m.s.questions[question.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	for _, q := range m.s.questions {
		if q.ID != question.ID && q.AssessmentID == question.AssessmentID && q.OrderIndex == question.OrderIndex {
			return fmt.Errorf("order index %d taken: %w", question.OrderIndex, ErrDuplicate)
		}
	}
	question.UpdatedAt = time.Now()
	copied := *question
	m.s.questions[question.ID] = &copied
	return nil
}

func (m *questionMemory) Delete(ctx context.Context, tx *gorm.DB, id uint) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	if _, ok := m.s.questions[id]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(m.s.questions, id)
	return nil
}

func (m *questionMemory) GetByAssessment(ctx context.Context, tx *gorm.DB, assessmentID uint) ([]*models.Question, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	questions := questionsOf(m.s, assessmentID)
	out := make([]*models.Question, 0, len(questions))
	for _, q := range questions {
		copied := *q
		out = append(out, &copied)
	}
	return out, nil
}

func (m *questionMemory) GetByAssessmentAndID(ctx context.Context, tx *gorm.DB, assessmentID, questionID uint) (*models.Question, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	stored, ok := m.s.questions[questionID]
	if !ok || stored.AssessmentID != assessmentID {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *stored
	return &copied, nil
}

func (m *questionMemory) CountByAssessment(ctx context.Context, tx *gorm.DB, assessmentID uint) (int, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	return len(questionsOf(m.s, assessmentID)), nil
}

func (m *questionMemory) SumMarks(ctx context.Context, tx *gorm.DB, assessmentID uint) (int, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	sum := 0
	for _, q := range questionsOf(m.s, assessmentID) {
		sum += q.Marks
	}
	return sum, nil
}

func (m *questionMemory) NextOrderIndex(ctx context.Context, tx *gorm.DB, assessmentID uint) (int, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	next := 0
	for _, q := range questionsOf(m.s, assessmentID) {
		if q.OrderIndex >= next {
			next = q.OrderIndex + 1
		}
	}
	return next, nil
}

// ===== ATTEMPT =====

type attemptMemory struct {
	s *store
}

func (m *attemptMemory) Create(ctx context.Context, tx *gorm.DB, attempt *models.Attempt) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	for _, a := range m.s.attempts {
		if a.StudentID == attempt.StudentID && a.AssessmentID == attempt.AssessmentID {
			return fmt.Errorf("attempt exists for student %s: %w", attempt.StudentID, ErrDuplicate)
		}
	}

	if attempt.ID == 0 {
		attempt.ID = m.s.nextAttemptID
		m.s.nextAttemptID++
	}
	attempt.CreatedAt = time.Now()
	attempt.UpdatedAt = attempt.CreatedAt
	if attempt.Status == "" {
		attempt.Status = models.AttemptInProgress
	}

	copied := *attempt
	m.s.attempts[attempt.ID] = &copied
	return nil
}

func (m *attemptMemory) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Attempt, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	stored, ok := m.s.attempts[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *stored
	return &copied, nil
}

func (m *attemptMemory) GetByIDWithAnswers(ctx context.Context, tx *gorm.DB, id uint) (*models.Attempt, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	stored, ok := m.s.attempts[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *stored

	if assessment, ok := m.s.assessments[copied.AssessmentID]; ok {
		copied.Assessment = *assessment
	}

	for _, ans := range answersOf(m.s, id) {
		answer := *ans
		if question, ok := m.s.questions[answer.QuestionID]; ok {
			answer.Question = *question
		}
		copied.Answers = append(copied.Answers, answer)
	}

	return &copied, nil
}

func (m *attemptMemory) GetByStudentAndAssessment(ctx context.Context, tx *gorm.DB, studentID string, assessmentID uint) (*models.Attempt, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	for _, a := range m.s.attempts {
		if a.StudentID == studentID && a.AssessmentID == assessmentID {
			copied := *a
			return &copied, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *attemptMemory) Update(ctx context.Context, tx *gorm.DB, attempt *models.Attempt) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	if _, ok := m.s.attempts[attempt.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	attempt.UpdatedAt = time.Now()
	copied := *attempt
	copied.Answers = nil
	m.s.attempts[attempt.ID] = &copied
	return nil
}

func (m *attemptMemory) FinalizeIfInProgress(ctx context.Context, tx *gorm.DB, id uint, final *models.Attempt) (bool, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	stored, ok := m.s.attempts[id]
	if !ok {
		return false, gorm.ErrRecordNotFound
	}
	if stored.Status != models.AttemptInProgress {
		return false, nil
	}

	stored.Status = final.Status
	stored.SubmittedAt = final.SubmittedAt
	stored.TimeSpent = final.TimeSpent
	stored.TotalScore = final.TotalScore
	stored.Percentage = final.Percentage
	stored.UpdatedAt = time.Now()
	return true, nil
}

func (m *attemptMemory) ListByAssessment(ctx context.Context, tx *gorm.DB, assessmentID uint, filters repositories.AttemptFilters) ([]*models.Attempt, int64, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	var matched []*models.Attempt
	for _, a := range m.s.attempts {
		if a.AssessmentID != assessmentID {
			continue
		}
		if filters.Status != nil && a.Status != *filters.Status {
			continue
		}
		if filters.StudentID != nil && a.StudentID != *filters.StudentID {
			continue
		}
		copied := *a
		matched = append(matched, &copied)
	}

	sort.Slice(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })
	total := int64(len(matched))
	matched = paginate(matched, filters.Offset, filters.Limit)
	return matched, total, nil
}

func (m *attemptMemory) ListByStudent(ctx context.Context, tx *gorm.DB, studentID string, filters repositories.AttemptFilters) ([]*models.Attempt, int64, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	var matched []*models.Attempt
	for _, a := range m.s.attempts {
		if a.StudentID != studentID {
			continue
		}
		if filters.Status != nil && a.Status != *filters.Status {
			continue
		}
		copied := *a
		if assessment, ok := m.s.assessments[copied.AssessmentID]; ok {
			copied.Assessment = *assessment
		}
		matched = append(matched, &copied)
	}

	sort.Slice(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })
	total := int64(len(matched))
	matched = paginate(matched, filters.Offset, filters.Limit)
	return matched, total, nil
}

func (m *attemptMemory) GetCompletedByAssessment(ctx context.Context, tx *gorm.DB, assessmentID uint) ([]*models.Attempt, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	var matched []*models.Attempt
	for _, a := range m.s.attempts {
		if a.AssessmentID == assessmentID && a.Status.IsTerminal() {
			copied := *a
			matched = append(matched, &copied)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })
	return matched, nil
}

func (m *attemptMemory) GetStats(ctx context.Context, tx *gorm.DB, assessmentID uint, passMarks int) (*repositories.AttemptStats, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	stats := &repositories.AttemptStats{
		StatusBreakdown: map[models.AttemptStatus]int{
			models.AttemptInProgress: 0,
			models.AttemptSubmitted:  0,
			models.AttemptTimedOut:   0,
		},
	}

	var scoreSum, pctSum float64
	var passed int
	for _, a := range m.s.attempts {
		if a.AssessmentID != assessmentID {
			continue
		}
		stats.TotalAttempts++
		stats.StatusBreakdown[a.Status]++
		if a.Status.IsTerminal() {
			stats.CompletedAttempts++
			scoreSum += a.TotalScore
			pctSum += a.Percentage
			if a.TotalScore >= float64(passMarks) {
				passed++
			}
		}
	}

	if stats.CompletedAttempts > 0 {
		stats.AverageScore = scoreSum / float64(stats.CompletedAttempts)
		stats.AveragePercentage = pctSum / float64(stats.CompletedAttempts)
		stats.PassRate = float64(passed) / float64(stats.CompletedAttempts) * 100
	}

	return stats, nil
}

// ===== ANSWER =====

type answerMemory struct {
	s *store
}

func (m *answerMemory) Upsert(ctx context.Context, tx *gorm.DB, answer *models.Answer) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	for _, existing := range m.s.answers {
		if existing.AttemptID == answer.AttemptID && existing.QuestionID == answer.QuestionID {
			existing.Answer = answer.Answer
			existing.IsCorrect = answer.IsCorrect
			existing.MarksAwarded = answer.MarksAwarded
			existing.UpdatedAt = time.Now()
			answer.ID = existing.ID
			return nil
		}
	}

	if answer.ID == 0 {
		answer.ID = m.s.nextAnswerID
		m.s.nextAnswerID++
	}
	answer.CreatedAt = time.Now()
	answer.UpdatedAt = answer.CreatedAt

	copied := *answer
	m.s.answers[answer.ID] = &copied
	return nil
}

func (m *answerMemory) GetByAttempt(ctx context.Context, tx *gorm.DB, attemptID uint) ([]*models.Answer, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	answers := answersOf(m.s, attemptID)
	out := make([]*models.Answer, 0, len(answers))
	for _, a := range answers {
		copied := *a
		out = append(out, &copied)
	}
	return out, nil
}

func (m *answerMemory) GetByAttemptAndQuestion(ctx context.Context, tx *gorm.DB, attemptID, questionID uint) (*models.Answer, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	for _, a := range m.s.answers {
		if a.AttemptID == attemptID && a.QuestionID == questionID {
			copied := *a
			return &copied, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *answerMemory) CountByAttempt(ctx context.Context, tx *gorm.DB, attemptID uint) (int, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	return len(answersOf(m.s, attemptID)), nil
}

func (m *answerMemory) GetCompletedByAssessment(ctx context.Context, tx *gorm.DB, assessmentID uint) ([]*models.Answer, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	var out []*models.Answer
	for _, ans := range m.s.answers {
		attempt, ok := m.s.attempts[ans.AttemptID]
		if !ok || attempt.AssessmentID != assessmentID || !attempt.Status.IsTerminal() {
			continue
		}
		copied := *ans
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ===== USER =====

type userMemory struct {
	s *store
}

func (m *userMemory) GetByID(ctx context.Context, id string) (*models.User, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	stored, ok := m.s.users[id]
	if !ok {
		return nil, fmt.Errorf("user not found with ID %s", id)
	}
	copied := *stored
	return &copied, nil
}

func (m *userMemory) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	for _, u := range m.s.users {
		if u.Email == email {
			copied := *u
			return &copied, nil
		}
	}
	return nil, fmt.Errorf("user not found with email %s", email)
}

func (m *userMemory) GetByIDs(ctx context.Context, ids []string) ([]*models.User, error) {
	out := make([]*models.User, 0, len(ids))
	for _, id := range ids {
		if user, err := m.GetByID(ctx, id); err == nil {
			out = append(out, user)
		}
	}
	return out, nil
}

func (m *userMemory) List(ctx context.Context, filters repositories.UserFilters) ([]*models.User, int64, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	var matched []*models.User
	for _, u := range m.s.users {
		if filters.Query != "" && !strings.Contains(strings.ToLower(u.Email), strings.ToLower(filters.Query)) {
			continue
		}
		copied := *u
		matched = append(matched, &copied)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })
	total := int64(len(matched))
	matched = paginate(matched, filters.Offset, filters.Limit)
	return matched, total, nil
}

func (m *userMemory) ExistsByID(ctx context.Context, id string) (bool, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	_, ok := m.s.users[id]
	return ok, nil
}

func (m *userMemory) HasRole(ctx context.Context, id string, role models.UserRole) (bool, error) {
	user, err := m.GetByID(ctx, id)
	if err != nil {
		return false, err
	}
	return user.Role == role, nil
}

// ===== DASHBOARD =====

type dashboardMemory struct {
	s *store
}

func (m *dashboardMemory) GetStudentStats(ctx context.Context, tx *gorm.DB, studentID string, classID uint) (*repositories.StudentDashboardStats, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	stats := &repositories.StudentDashboardStats{}
	for _, a := range m.s.assessments {
		if a.ClassID == classID && a.Status == models.StatusPublished {
			stats.TotalAssessments++
		}
	}

	var pctSum float64
	for _, att := range m.s.attempts {
		if att.StudentID == studentID && att.Status.IsTerminal() {
			stats.CompletedAssessments++
			pctSum += att.Percentage
		}
	}
	if stats.CompletedAssessments > 0 {
		stats.AveragePercentage = pctSum / float64(stats.CompletedAssessments)
	}
	return stats, nil
}

func (m *dashboardMemory) GetTotalAssessments(ctx context.Context, tx *gorm.DB) (int64, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	return int64(len(m.s.assessments)), nil
}

func (m *dashboardMemory) GetTotalAttempts(ctx context.Context, tx *gorm.DB) (int64, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	return int64(len(m.s.attempts)), nil
}

func (m *dashboardMemory) GetCompletionRate(ctx context.Context, tx *gorm.DB) (float64, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	total := len(m.s.attempts)
	if total == 0 {
		return 0, nil
	}
	completed := 0
	for _, a := range m.s.attempts {
		if a.Status.IsTerminal() {
			completed++
		}
	}
	return float64(completed) / float64(total) * 100, nil
}

func (m *dashboardMemory) GetAverageScore(ctx context.Context, tx *gorm.DB) (float64, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	var sum float64
	count := 0
	for _, a := range m.s.attempts {
		if a.Status.IsTerminal() {
			sum += a.Percentage
			count++
		}
	}
	if count == 0 {
		return 0, nil
	}
	return sum / float64(count), nil
}

// ===== HELPERS =====

func questionsOf(s *store, assessmentID uint) []*models.Question {
	var out []*models.Question
	for _, q := range s.questions {
		if q.AssessmentID == assessmentID {
			out = append(out, q)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OrderIndex < out[j].OrderIndex })
	return out
}

func answersOf(s *store, attemptID uint) []*models.Answer {
	var out []*models.Answer
	for _, a := range s.answers {
		if a.AttemptID == attemptID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].QuestionID < out[j].QuestionID })
	return out
}

func paginate[T any](items []T, offset, limit int) []T {
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
