package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/studentcbt/exam-service/internal/models"
	"github.com/studentcbt/exam-service/internal/repositories"
	"github.com/studentcbt/exam-service/internal/validator"
	"gorm.io/gorm"
)

type attemptService struct {
	repo      repositories.Repository
	db        *gorm.DB
	logger    *slog.Logger
	validator *validator.Validator
	grading   GradingService

	// now is swappable so tests can control the clock.
	now func() time.Time
}

func NewAttemptService(repo repositories.Repository, db *gorm.DB, logger *slog.Logger, validator *validator.Validator, grading GradingService) AttemptService {
	return &attemptService{
		repo:      repo,
		db:        db,
		logger:    logger,
		validator: validator,
		grading:   grading,
		now:       time.Now,
	}
}

// ===== START =====

func (s *attemptService) Start(ctx context.Context, assessmentID uint, studentID string) (*AttemptResponse, error) {
	now := s.now()

	assessment, err := s.repo.Assessment().GetByIDWithQuestions(ctx, nil, assessmentID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrAssessmentNotFound
		}
		return nil, fmt.Errorf("failed to get assessment: %w", err)
	}

	if err := s.checkAvailability(ctx, assessment, studentID, now); err != nil {
		return nil, err
	}

	existing, err := s.repo.Attempt().GetByStudentAndAssessment(ctx, nil, studentID, assessmentID)
	if err != nil && !repositories.IsNotFoundError(err) {
		return nil, fmt.Errorf("failed to look up existing attempt: %w", err)
	}

	if existing != nil {
		return nil, s.rejectExisting(ctx, existing, assessment, now)
	}

	attempt := &models.Attempt{
		AssessmentID: assessmentID,
		StudentID:    studentID,
		Status:       models.AttemptInProgress,
		StartedAt:    now,
	}

	err = s.repo.WithTransaction(ctx, func(txRepo repositories.Repository) error {
		return txRepo.Attempt().Create(ctx, nil, attempt)
	})
	if err != nil {
		// The unique index on (student, assessment) closes the race
		// between two concurrent starts.
		if repositories.IsDuplicateKeyError(err) {
			return nil, ErrAttemptAlreadyExists
		}
		return nil, fmt.Errorf("failed to create attempt: %w", err)
	}

	s.logger.Info("Attempt started",
		"attempt_id", attempt.ID,
		"assessment_id", assessmentID,
		"student_id", studentID)

	return s.buildAttemptResponse(attempt, assessment, now), nil
}

// availabilityCheck reports why an assessment cannot be taken at t. All
// returned errors wrap ErrAssessmentNotAvailable.
func availabilityCheck(assessment *models.Assessment, t time.Time) error {
	if assessment.Status != models.StatusPublished {
		return ErrAssessmentNotPublished
	}
	if assessment.StartTime != nil && t.Before(*assessment.StartTime) {
		return ErrAssessmentNotYetOpen
	}
	if assessment.EndTime != nil && t.After(*assessment.EndTime) {
		return ErrAssessmentClosed
	}
	return nil
}

// checkAvailability gates an assessment for a student: it must be
// published, inside its window and assigned to the student's class.
func (s *attemptService) checkAvailability(ctx context.Context, assessment *models.Assessment, studentID string, now time.Time) error {
	if err := availabilityCheck(assessment, now); err != nil {
		return err
	}

	student, err := s.repo.User().GetByID(ctx, studentID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return ErrUserNotFound
		}
		return fmt.Errorf("failed to get student: %w", err)
	}
	if student.ClassID == nil || *student.ClassID != assessment.ClassID {
		return NewPermissionError(studentID, assessment.ID, "assessment", "attempt",
			"assessment is not assigned to the student's class")
	}

	return nil
}

// rejectExisting closes out a pre-existing attempt on start. A live one
// past its deadline is timed out first; the start is rejected either way.
func (s *attemptService) rejectExisting(ctx context.Context, attempt *models.Attempt, assessment *models.Assessment, now time.Time) error {
	deadline := attempt.Deadline(assessment.Duration)
	if attempt.Status == models.AttemptInProgress && !now.Before(deadline) {
		if _, err := s.grading.FinalizeAttempt(ctx, attempt.ID, models.AttemptTimedOut, deadline); err != nil {
			return err
		}
	}
	return ErrAttemptAlreadyExists
}

// ===== RESUME =====

func (s *attemptService) Resume(ctx context.Context, attemptID uint, studentID string) (*AttemptResponse, error) {
	attempt, assessment, err := s.getOwnedAttempt(ctx, attemptID, studentID)
	if err != nil {
		return nil, err
	}

	if attempt.Status != models.AttemptInProgress {
		return nil, ErrAttemptNotActive
	}

	now := s.now()
	deadline := attempt.Deadline(assessment.Duration)
	if !now.Before(deadline) {
		if _, err := s.grading.FinalizeAttempt(ctx, attemptID, models.AttemptTimedOut, deadline); err != nil {
			return nil, err
		}
		return nil, ErrAttemptTimeExpired
	}

	assessment, err = s.repo.Assessment().GetByIDWithQuestions(ctx, nil, attempt.AssessmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to get assessment: %w", err)
	}

	s.logger.Info("Attempt resumed",
		"attempt_id", attempt.ID,
		"student_id", attempt.StudentID)

	return s.buildAttemptResponse(attempt, assessment, now), nil
}

// ===== ANSWERING =====

func (s *attemptService) RecordAnswer(ctx context.Context, attemptID uint, req *RecordAnswerRequest, studentID string) error {
	if err := s.validator.Validate(req); err != nil {
		return err
	}

	attempt, assessment, err := s.getOwnedAttempt(ctx, attemptID, studentID)
	if err != nil {
		return err
	}

	if attempt.Status != models.AttemptInProgress {
		return ErrAttemptNotActive
	}

	now := s.now()
	deadline := attempt.Deadline(assessment.Duration)
	if !now.Before(deadline) {
		// The deadline passed while the student was typing. Close the
		// attempt with what is already saved and reject this write.
		if _, err := s.grading.FinalizeAttempt(ctx, attemptID, models.AttemptTimedOut, deadline); err != nil {
			return err
		}
		return ErrAttemptTimeExpired
	}

	question, err := s.repo.Question().GetByAssessmentAndID(ctx, nil, attempt.AssessmentID, req.QuestionID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return ErrQuestionNotFound
		}
		return fmt.Errorf("failed to get question: %w", err)
	}

	normalized, correct, marks, err := s.grading.ScoreAnswer(question, req.Answer)
	if err != nil {
		return err
	}

	answer := &models.Answer{
		AttemptID:    attemptID,
		QuestionID:   question.ID,
		Answer:       normalized,
		IsCorrect:    correct,
		MarksAwarded: marks,
	}
	if err := s.repo.Answer().Upsert(ctx, nil, answer); err != nil {
		return fmt.Errorf("failed to save answer: %w", err)
	}

	return nil
}

// ===== STATUS =====

func (s *attemptService) GetStatus(ctx context.Context, attemptID uint, studentID string) (*AttemptStatusResponse, error) {
	attempt, assessment, err := s.getOwnedAttempt(ctx, attemptID, studentID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	attempt, err = s.expireIfOverdue(ctx, attempt, assessment, now)
	if err != nil {
		return nil, err
	}

	answered, err := s.repo.Answer().CountByAttempt(ctx, nil, attemptID)
	if err != nil {
		return nil, fmt.Errorf("failed to count answers: %w", err)
	}
	questionCount, err := s.repo.Question().CountByAssessment(ctx, nil, attempt.AssessmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to count questions: %w", err)
	}

	return &AttemptStatusResponse{
		AttemptID:     attempt.ID,
		AssessmentID:  attempt.AssessmentID,
		Status:        attempt.Status,
		TimeRemaining: timeRemaining(attempt, assessment, now),
		AnsweredCount: answered,
		QuestionCount: questionCount,
	}, nil
}

// expireIfOverdue applies the lazy timeout: an in progress attempt past
// its deadline is finalized as timed out before the caller sees it.
func (s *attemptService) expireIfOverdue(ctx context.Context, attempt *models.Attempt, assessment *models.Assessment, now time.Time) (*models.Attempt, error) {
	if attempt.Status != models.AttemptInProgress {
		return attempt, nil
	}
	deadline := attempt.Deadline(assessment.Duration)
	if now.Before(deadline) {
		return attempt, nil
	}

	if _, err := s.grading.FinalizeAttempt(ctx, attempt.ID, models.AttemptTimedOut, deadline); err != nil {
		return nil, err
	}

	reloaded, err := s.repo.Attempt().GetByID(ctx, nil, attempt.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to reload attempt: %w", err)
	}
	return reloaded, nil
}

// ===== SUBMIT =====

func (s *attemptService) Submit(ctx context.Context, attemptID uint, studentID string) (*AttemptResultResponse, error) {
	attempt, assessment, err := s.getOwnedAttempt(ctx, attemptID, studentID)
	if err != nil {
		return nil, err
	}

	if attempt.Status != models.AttemptInProgress {
		return nil, ErrAttemptAlreadySubmitted
	}

	now := s.now()
	deadline := attempt.Deadline(assessment.Duration)

	status := models.AttemptSubmitted
	at := now
	if !now.Before(deadline) {
		status = models.AttemptTimedOut
		at = deadline
	}

	finalized, err := s.grading.FinalizeAttempt(ctx, attemptID, status, at)
	if err != nil {
		return nil, err
	}
	if !finalized {
		return nil, ErrAttemptAlreadySubmitted
	}

	attempt, err = s.repo.Attempt().GetByID(ctx, nil, attemptID)
	if err != nil {
		return nil, fmt.Errorf("failed to reload attempt: %w", err)
	}

	s.logger.Info("Attempt submitted",
		"attempt_id", attemptID,
		"status", attempt.Status,
		"total_score", attempt.TotalScore,
		"percentage", attempt.Percentage)

	return buildAttemptResult(s.grading, attempt, assessment), nil
}

// ===== READS =====

func (s *attemptService) GetByID(ctx context.Context, attemptID uint, userID string) (*AttemptResponse, error) {
	attempt, err := s.repo.Attempt().GetByID(ctx, nil, attemptID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("failed to get attempt: %w", err)
	}

	assessment, err := s.repo.Assessment().GetByIDWithQuestions(ctx, nil, attempt.AssessmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to get assessment: %w", err)
	}

	// Visible to the student who owns it and to the assessment creator.
	if userID != attempt.StudentID && userID != assessment.CreatedBy {
		return nil, NewPermissionError(userID, attemptID, "attempt", "read",
			"attempt belongs to another student")
	}

	return s.buildAttemptResponse(attempt, assessment, s.now()), nil
}

func (s *attemptService) GetByStudent(ctx context.Context, studentID string, filters repositories.AttemptFilters) ([]*models.Attempt, int64, error) {
	attempts, total, err := s.repo.Attempt().ListByStudent(ctx, nil, studentID, filters)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list attempts: %w", err)
	}
	return attempts, total, nil
}

// ===== HELPERS =====

// getOwnedAttempt loads an attempt plus its assessment and verifies the
// caller owns it.
func (s *attemptService) getOwnedAttempt(ctx context.Context, attemptID uint, studentID string) (*models.Attempt, *models.Assessment, error) {
	attempt, err := s.repo.Attempt().GetByID(ctx, nil, attemptID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, nil, ErrAttemptNotFound
		}
		return nil, nil, fmt.Errorf("failed to get attempt: %w", err)
	}

	if attempt.StudentID != studentID {
		return nil, nil, NewPermissionError(studentID, attemptID, "attempt", "access",
			"attempt belongs to another student")
	}

	assessment, err := s.repo.Assessment().GetByID(ctx, nil, attempt.AssessmentID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get assessment: %w", err)
	}

	return attempt, assessment, nil
}

func (s *attemptService) buildAttemptResponse(attempt *models.Attempt, assessment *models.Assessment, now time.Time) *AttemptResponse {
	return &AttemptResponse{
		Attempt:       attempt,
		TimeRemaining: timeRemaining(attempt, assessment, now),
		Questions:     toExamQuestions(assessment.Questions),
	}
}

// timeRemaining returns whole seconds until the deadline, zero once the
// attempt is finished or overdue.
func timeRemaining(attempt *models.Attempt, assessment *models.Assessment, now time.Time) int {
	if attempt.Status != models.AttemptInProgress {
		return 0
	}
	remaining := int(attempt.Deadline(assessment.Duration).Sub(now).Seconds())
	if remaining < 0 {
		return 0
	}
	return remaining
}

// toExamQuestions strips grading data from questions for student delivery.
func toExamQuestions(questions []models.Question) []ExamQuestion {
	out := make([]ExamQuestion, 0, len(questions))
	for i := range questions {
		q := &questions[i]
		out = append(out, ExamQuestion{
			ID:         q.ID,
			Type:       q.Type,
			Text:       q.Text,
			Options:    q.OptionList(),
			Marks:      q.Marks,
			OrderIndex: q.OrderIndex,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OrderIndex < out[j].OrderIndex })
	return out
}

// buildAttemptResult assembles the graded summary shared by the attempt
// and student result views.
func buildAttemptResult(grading GradingService, attempt *models.Attempt, assessment *models.Assessment) *AttemptResultResponse {
	grade := grading.GradeFor(attempt.Percentage, passPercentageOf(assessment))
	return &AttemptResultResponse{
		AttemptID:     attempt.ID,
		AssessmentID:  attempt.AssessmentID,
		Title:         assessment.Title,
		AttemptStatus: attempt.Status,
		TotalScore:    attempt.TotalScore,
		TotalMarks:    assessment.TotalMarks,
		Percentage:    attempt.Percentage,
		Grade:         grade.Grade,
		GradeStatus:   grade.Status,
		Passed:        attempt.TotalScore >= float64(assessment.PassMarks),
		SubmittedAt:   attempt.SubmittedAt,
		TimeSpent:     attempt.TimeSpent,
	}
}
