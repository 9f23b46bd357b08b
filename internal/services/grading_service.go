package services

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/studentcbt/exam-service/internal/events"
	"github.com/studentcbt/exam-service/internal/models"
	"github.com/studentcbt/exam-service/internal/repositories"
	"github.com/studentcbt/exam-service/internal/validator"
	"gorm.io/gorm"
)

// fillBlankSimilarityThreshold is the minimum similarity ratio at which a
// fill in the blank answer still earns full marks.
const fillBlankSimilarityThreshold = 0.7

type gradingService struct {
	repo           repositories.Repository
	db             *gorm.DB
	logger         *slog.Logger
	validator      *validator.Validator
	eventPublisher events.EventPublisher
}

func NewGradingService(repo repositories.Repository, db *gorm.DB, logger *slog.Logger, validator *validator.Validator, publisher events.EventPublisher) GradingService {
	return &gradingService{
		repo:           repo,
		db:             db,
		logger:         logger,
		validator:      validator,
		eventPublisher: publisher,
	}
}

// ===== ANSWER SCORING =====

// normalizeAnswer lowercases and trims a submission before comparison.
// The stored answer is always the normalized form.
func normalizeAnswer(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

func (s *gradingService) ScoreAnswer(question *models.Question, rawAnswer string) (string, bool, float64, error) {
	normalized := normalizeAnswer(rawAnswer)

	var correct bool
	switch question.Type {
	case models.MultipleChoice, models.TrueFalse:
		correct = normalized == normalizeAnswer(question.CorrectAnswer)
	case models.FillBlank:
		for _, variant := range question.AcceptedAnswers() {
			want := normalizeAnswer(variant)
			if normalized == want || similarity(normalized, want) >= fillBlankSimilarityThreshold {
				correct = true
				break
			}
		}
	default:
		return "", false, 0, fmt.Errorf("%w: %s", ErrInvalidQuestionType, question.Type)
	}

	if !correct {
		return normalized, false, 0, nil
	}
	return normalized, true, float64(question.Marks), nil
}

// similarity returns how close two strings are as a ratio in [0, 1],
// based on edit distance over the longer length.
func similarity(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	longer := len(ra)
	if len(rb) > longer {
		longer = len(rb)
	}
	if longer == 0 {
		return 1.0
	}
	return float64(longer-levenshtein(ra, rb)) / float64(longer)
}

// levenshtein computes the edit distance with a two-row table.
func levenshtein(a, b []rune) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := 0; j <= len(b); j++ {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min3(curr[j-1]+1, prev[j]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}

	return prev[len(b)]
}

func min3(a, b, c int) int {
	m := a
	if b < m {
		m = b
	}
	if c < m {
		m = c
	}
	return m
}

// round2 rounds to two decimal places, matching the stored percentage
// precision.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// ===== GRADE BANDS =====

func (s *gradingService) GradeFor(percentage, passPercentage float64) models.GradeResult {
	switch {
	case percentage >= 90:
		return models.GradeResult{Grade: models.GradeAPlus, Status: "Excellent"}
	case percentage >= 80:
		return models.GradeResult{Grade: models.GradeA, Status: "Very Good"}
	case percentage >= 70:
		return models.GradeResult{Grade: models.GradeBPlus, Status: "Good"}
	case percentage >= 60:
		return models.GradeResult{Grade: models.GradeB, Status: "Above Average"}
	case percentage >= passPercentage:
		return models.GradeResult{Grade: models.GradeC, Status: "Pass"}
	default:
		return models.GradeResult{Grade: models.GradeF, Status: "Fail"}
	}
}

// passPercentageOf converts absolute pass marks into a percentage of the
// assessment total. Zero total marks yields a zero threshold.
func passPercentageOf(assessment *models.Assessment) float64 {
	if assessment.TotalMarks == 0 {
		return 0
	}
	return float64(assessment.PassMarks) / float64(assessment.TotalMarks) * 100
}

// ===== ATTEMPT FINALIZATION =====

func (s *gradingService) FinalizeAttempt(ctx context.Context, attemptID uint, status models.AttemptStatus, at time.Time) (bool, error) {
	if !status.IsTerminal() {
		return false, fmt.Errorf("finalize requires a terminal status, got %s", status)
	}

	var finalized bool
	var completed *events.AttemptCompletedEvent

	err := s.repo.WithTransaction(ctx, func(txRepo repositories.Repository) error {
		attempt, err := txRepo.Attempt().GetByIDWithAnswers(ctx, nil, attemptID)
		if err != nil {
			if repositories.IsNotFoundError(err) {
				return ErrAttemptNotFound
			}
			return fmt.Errorf("failed to get attempt: %w", err)
		}

		if attempt.Status != models.AttemptInProgress {
			// Someone else already finished it, which is fine.
			finalized = false
			return nil
		}

		assessment, err := txRepo.Assessment().GetByID(ctx, nil, attempt.AssessmentID)
		if err != nil {
			return fmt.Errorf("failed to get assessment: %w", err)
		}

		totalScore := 0.0
		for _, answer := range attempt.Answers {
			totalScore += answer.MarksAwarded
		}

		percentage := 0.0
		if assessment.TotalMarks > 0 {
			percentage = round2(totalScore / float64(assessment.TotalMarks) * 100)
		}

		timeSpent := int(at.Sub(attempt.StartedAt).Seconds())
		if timeSpent < 0 {
			timeSpent = 0
		}
		if limit := assessment.Duration * 60; timeSpent > limit {
			timeSpent = limit
		}

		submittedAt := at
		final := &models.Attempt{
			AssessmentID: attempt.AssessmentID,
			Status:       status,
			SubmittedAt:  &submittedAt,
			TimeSpent:    timeSpent,
			TotalScore:   totalScore,
			Percentage:   percentage,
		}

		finalized, err = txRepo.Attempt().FinalizeIfInProgress(ctx, nil, attemptID, final)
		if err != nil {
			return fmt.Errorf("failed to finalize attempt: %w", err)
		}

		if finalized {
			grade := s.GradeFor(percentage, passPercentageOf(assessment))
			completed = &events.AttemptCompletedEvent{
				AttemptID:    attemptID,
				AssessmentID: attempt.AssessmentID,
				StudentID:    attempt.StudentID,
				Status:       status,
				TotalScore:   totalScore,
				Percentage:   percentage,
				Grade:        string(grade.Grade),
				Passed:       totalScore >= float64(assessment.PassMarks),
				SubmittedAt:  submittedAt,
			}
		}

		return nil
	})
	if err != nil {
		return false, err
	}

	if finalized && completed != nil {
		s.publishCompletion(ctx, status, completed)
	}

	return finalized, nil
}

func (s *gradingService) publishCompletion(ctx context.Context, status models.AttemptStatus, payload *events.AttemptCompletedEvent) {
	if s.eventPublisher == nil {
		return
	}

	eventType := events.EventAttemptSubmitted
	if status == models.AttemptTimedOut {
		eventType = events.EventAttemptTimedOut
	}

	if err := s.eventPublisher.Publish(ctx, events.NewEvent(eventType, payload)); err != nil {
		s.logger.Error("Failed to publish attempt completion event",
			"attempt_id", payload.AttemptID,
			"event_type", eventType,
			"error", err)
	}
}

// ===== ANALYTICS =====

func (s *gradingService) BuildAnalytics(ctx context.Context, assessmentID uint) (*models.AssessmentAnalytics, error) {
	assessment, err := s.repo.Assessment().GetByID(ctx, nil, assessmentID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrAssessmentNotFound
		}
		return nil, fmt.Errorf("failed to get assessment: %w", err)
	}

	attempts, err := s.repo.Attempt().GetCompletedByAssessment(ctx, nil, assessmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to get completed attempts: %w", err)
	}

	analytics := &models.AssessmentAnalytics{
		AssessmentID:      assessmentID,
		TotalAttempts:     len(attempts),
		GradeDistribution: make(map[models.GradeBand]int),
	}

	if len(attempts) > 0 {
		passPct := passPercentageOf(assessment)
		var scoreSum, pctSum float64
		highest := attempts[0].TotalScore
		lowest := attempts[0].TotalScore
		passed := 0

		for _, attempt := range attempts {
			scoreSum += attempt.TotalScore
			pctSum += attempt.Percentage
			if attempt.TotalScore > highest {
				highest = attempt.TotalScore
			}
			if attempt.TotalScore < lowest {
				lowest = attempt.TotalScore
			}
			if attempt.TotalScore >= float64(assessment.PassMarks) {
				passed++
			}
			grade := s.GradeFor(attempt.Percentage, passPct)
			analytics.GradeDistribution[grade.Grade]++
		}

		analytics.AverageScore = round2(scoreSum / float64(len(attempts)))
		analytics.AveragePercentage = round2(pctSum / float64(len(attempts)))
		analytics.HighestScore = highest
		analytics.LowestScore = lowest
		analytics.PassRate = round2(float64(passed) / float64(len(attempts)) * 100)
	}

	questionStats, err := s.buildQuestionStats(ctx, assessmentID)
	if err != nil {
		return nil, err
	}
	analytics.QuestionStats = questionStats

	return analytics, nil
}

func (s *gradingService) buildQuestionStats(ctx context.Context, assessmentID uint) ([]models.QuestionStats, error) {
	questions, err := s.repo.Question().GetByAssessment(ctx, nil, assessmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to get questions: %w", err)
	}

	answers, err := s.repo.Answer().GetCompletedByAssessment(ctx, nil, assessmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to get answers: %w", err)
	}

	type tally struct {
		attempts int
		correct  int
	}
	byQuestion := make(map[uint]*tally, len(questions))
	for _, answer := range answers {
		t := byQuestion[answer.QuestionID]
		if t == nil {
			t = &tally{}
			byQuestion[answer.QuestionID] = t
		}
		t.attempts++
		if answer.IsCorrect {
			t.correct++
		}
	}

	stats := make([]models.QuestionStats, 0, len(questions))
	for _, question := range questions {
		qs := models.QuestionStats{
			QuestionID:   question.ID,
			QuestionText: question.Text,
			Type:         question.Type,
			Difficulty:   models.DifficultyMedium,
		}
		if t := byQuestion[question.ID]; t != nil && t.attempts > 0 {
			qs.Attempts = t.attempts
			qs.CorrectCount = t.correct
			qs.CorrectRate = round2(float64(t.correct) / float64(t.attempts) * 100)
			qs.Difficulty = classifyDifficulty(float64(t.correct) / float64(t.attempts))
		}
		stats = append(stats, qs)
	}

	return stats, nil
}

// classifyDifficulty derives an observed difficulty from the share of
// correct answers.
func classifyDifficulty(correctRate float64) models.DifficultyLevel {
	switch {
	case correctRate >= 0.8:
		return models.DifficultyEasy
	case correctRate <= 0.4:
		return models.DifficultyHard
	default:
		return models.DifficultyMedium
	}
}
