package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"github.com/studentcbt/exam-service/internal/models"
	"github.com/studentcbt/exam-service/internal/repositories"
	"github.com/studentcbt/exam-service/internal/validator"
)

type studentService struct {
	repo      repositories.Repository
	db        *gorm.DB
	logger    *slog.Logger
	validator *validator.Validator
	grading   GradingService

	now func() time.Time
}

func NewStudentService(repo repositories.Repository, db *gorm.DB, logger *slog.Logger, validator *validator.Validator, grading GradingService) StudentService {
	return &studentService{
		repo:      repo,
		db:        db,
		logger:    logger,
		validator: validator,
		grading:   grading,
		now:       time.Now,
	}
}

// ===== EXAM LIST =====

func (s *studentService) GetAvailableAssessments(ctx context.Context, studentID string) ([]*AvailableAssessment, error) {
	student, err := s.repo.User().GetByID(ctx, studentID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get student: %w", err)
	}

	// Students outside any class have no assigned assessments.
	if student.ClassID == nil {
		return []*AvailableAssessment{}, nil
	}

	assessments, err := s.repo.Assessment().GetPublishedForClass(ctx, nil, *student.ClassID, s.now())
	if err != nil {
		return nil, fmt.Errorf("failed to list published assessments: %w", err)
	}

	available := make([]*AvailableAssessment, 0, len(assessments))
	for _, assessment := range assessments {
		row := &AvailableAssessment{Assessment: assessment}

		attempt, err := s.repo.Attempt().GetByStudentAndAssessment(ctx, nil, studentID, assessment.ID)
		if err != nil && !repositories.IsNotFoundError(err) {
			return nil, fmt.Errorf("failed to look up attempt: %w", err)
		}
		if attempt != nil {
			row.Attempted = true
			row.AttemptStatus = &attempt.Status
			row.AttemptID = &attempt.ID
		}

		available = append(available, row)
	}

	return available, nil
}

// ===== EXAM DELIVERY =====

func (s *studentService) GetExamView(ctx context.Context, assessmentID uint, studentID string) (*ExamView, error) {
	assessment, err := s.repo.Assessment().GetByIDWithQuestions(ctx, nil, assessmentID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrAssessmentNotFound
		}
		return nil, fmt.Errorf("failed to get assessment: %w", err)
	}

	if err := availabilityCheck(assessment, s.now()); err != nil {
		return nil, err
	}

	student, err := s.repo.User().GetByID(ctx, studentID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get student: %w", err)
	}
	if student.ClassID == nil || *student.ClassID != assessment.ClassID {
		return nil, NewPermissionError(studentID, assessmentID, "assessment", "view",
			"assessment is not assigned to the student's class")
	}

	attempt, err := s.repo.Attempt().GetByStudentAndAssessment(ctx, nil, studentID, assessmentID)
	if err != nil && !repositories.IsNotFoundError(err) {
		return nil, fmt.Errorf("failed to look up attempt: %w", err)
	}
	if attempt != nil && attempt.Status != models.AttemptInProgress {
		return nil, ErrAttemptAlreadyExists
	}

	return &ExamView{
		AssessmentID: assessment.ID,
		Title:        assessment.Title,
		Description:  assessment.Description,
		Duration:     assessment.Duration,
		TotalMarks:   assessment.TotalMarks,
		Questions:    toExamQuestions(assessment.Questions),
	}, nil
}

// ===== RESULTS =====

func (s *studentService) GetResults(ctx context.Context, studentID string, filters repositories.AttemptFilters) ([]*AttemptResultResponse, int64, error) {
	attempts, total, err := s.repo.Attempt().ListByStudent(ctx, nil, studentID, filters)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list attempts: %w", err)
	}

	results := make([]*AttemptResultResponse, 0, len(attempts))
	for _, attempt := range attempts {
		if !attempt.Status.IsTerminal() {
			continue
		}

		assessment, err := s.repo.Assessment().GetByID(ctx, nil, attempt.AssessmentID)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to get assessment: %w", err)
		}

		// Assessments configured to hide results are silently omitted
		// from the list.
		if !assessment.ShowResults {
			continue
		}

		results = append(results, buildAttemptResult(s.grading, attempt, assessment))
	}

	return results, total, nil
}

func (s *studentService) GetDetailedResult(ctx context.Context, attemptID uint, studentID string) (*DetailedResultResponse, error) {
	attempt, err := s.repo.Attempt().GetByIDWithAnswers(ctx, nil, attemptID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("failed to get attempt: %w", err)
	}

	if attempt.StudentID != studentID {
		return nil, NewPermissionError(studentID, attemptID, "attempt", "read_result",
			"attempt belongs to another student")
	}
	if !attempt.Status.IsTerminal() {
		return nil, ErrAttemptNotActive
	}

	assessment, err := s.repo.Assessment().GetByID(ctx, nil, attempt.AssessmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to get assessment: %w", err)
	}
	if !assessment.ShowResults {
		return nil, ErrResultsNotVisible
	}

	questions, err := s.repo.Question().GetByAssessment(ctx, nil, attempt.AssessmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to get questions: %w", err)
	}

	byQuestion := make(map[uint]*models.Answer, len(attempt.Answers))
	for i := range attempt.Answers {
		byQuestion[attempt.Answers[i].QuestionID] = &attempt.Answers[i]
	}

	reviews := make([]AnswerReview, 0, len(questions))
	for _, question := range questions {
		review := AnswerReview{
			QuestionID:    question.ID,
			QuestionText:  question.Text,
			Type:          question.Type,
			CorrectAnswer: question.CorrectAnswer,
			Marks:         question.Marks,
			Explanation:   question.Explanation,
		}
		if answer := byQuestion[question.ID]; answer != nil {
			review.YourAnswer = answer.Answer
			review.IsCorrect = answer.IsCorrect
			review.MarksAwarded = answer.MarksAwarded
		}
		reviews = append(reviews, review)
	}

	return &DetailedResultResponse{
		AttemptResultResponse: *buildAttemptResult(s.grading, attempt, assessment),
		Answers:               reviews,
	}, nil
}

// ===== DASHBOARD =====

func (s *studentService) GetDashboard(ctx context.Context, studentID string) (*models.StudentDashboard, error) {
	student, err := s.repo.User().GetByID(ctx, studentID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get student: %w", err)
	}

	dashboard := &models.StudentDashboard{}
	if student.ClassID == nil {
		return dashboard, nil
	}

	stats, err := s.repo.Dashboard().GetStudentStats(ctx, nil, studentID, *student.ClassID)
	if err != nil {
		return nil, fmt.Errorf("failed to get dashboard stats: %w", err)
	}

	dashboard.TotalAssessments = stats.TotalAssessments
	dashboard.CompletedAssessments = stats.CompletedAssessments
	dashboard.PendingAssessments = stats.TotalAssessments - stats.CompletedAssessments
	if dashboard.PendingAssessments < 0 {
		dashboard.PendingAssessments = 0
	}
	dashboard.AveragePercentage = round2(stats.AveragePercentage)

	return dashboard, nil
}
