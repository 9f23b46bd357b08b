package services

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/studentcbt/exam-service/internal/events"
	"github.com/studentcbt/exam-service/internal/models"
	"github.com/studentcbt/exam-service/internal/repositories/memory"
	"github.com/studentcbt/exam-service/internal/validator"
)

func newGradingTestService(t *testing.T) (GradingService, *memory.Repository, *events.MockEventPublisher) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	repo := memory.NewRepository()
	publisher := events.NewMockEventPublisher(logger)
	service := NewGradingService(repo, nil, logger, validator.New(), publisher)
	return service, repo, publisher
}

func TestGradingService_ScoreAnswer(t *testing.T) {
	service, _, _ := newGradingTestService(t)

	tests := []struct {
		name        string
		question    *models.Question
		answer      string
		wantStored  string
		wantCorrect bool
		wantMarks   float64
		wantErr     error
	}{
		{
			name:        "multiple choice exact match",
			question:    &models.Question{Type: models.MultipleChoice, CorrectAnswer: "Paris", Marks: 2},
			answer:      "Paris",
			wantStored:  "paris",
			wantCorrect: true,
			wantMarks:   2,
		},
		{
			name:        "multiple choice case and whitespace insensitive",
			question:    &models.Question{Type: models.MultipleChoice, CorrectAnswer: "Paris", Marks: 2},
			answer:      "  PARIS ",
			wantStored:  "paris",
			wantCorrect: true,
			wantMarks:   2,
		},
		{
			name:        "multiple choice wrong option",
			question:    &models.Question{Type: models.MultipleChoice, CorrectAnswer: "Paris", Marks: 2},
			answer:      "London",
			wantStored:  "london",
			wantCorrect: false,
			wantMarks:   0,
		},
		{
			name:        "multiple choice no fuzzy matching",
			question:    &models.Question{Type: models.MultipleChoice, CorrectAnswer: "Paris", Marks: 2},
			answer:      "Pariss",
			wantStored:  "pariss",
			wantCorrect: false,
			wantMarks:   0,
		},
		{
			name:        "true false match",
			question:    &models.Question{Type: models.TrueFalse, CorrectAnswer: "True", Marks: 1},
			answer:      "true",
			wantStored:  "true",
			wantCorrect: true,
			wantMarks:   1,
		},
		{
			name:        "true false mismatch",
			question:    &models.Question{Type: models.TrueFalse, CorrectAnswer: "True", Marks: 1},
			answer:      "false",
			wantStored:  "false",
			wantCorrect: false,
			wantMarks:   0,
		},
		{
			name:        "fill blank exact variant",
			question:    &models.Question{Type: models.FillBlank, CorrectAnswer: "colour|color", Marks: 3},
			answer:      "color",
			wantStored:  "color",
			wantCorrect: true,
			wantMarks:   3,
		},
		{
			name:        "fill blank near miss still earns full marks",
			question:    &models.Question{Type: models.FillBlank, CorrectAnswer: "colour", Marks: 3},
			answer:      "color",
			wantStored:  "color",
			wantCorrect: true,
			wantMarks:   3,
		},
		{
			name:        "fill blank at similarity threshold",
			question:    &models.Question{Type: models.FillBlank, CorrectAnswer: "abcdefghij", Marks: 3},
			answer:      "abcdefgxyz", // edit distance 3 of 10
			wantStored:  "abcdefgxyz",
			wantCorrect: true,
			wantMarks:   3,
		},
		{
			name:        "fill blank below similarity threshold",
			question:    &models.Question{Type: models.FillBlank, CorrectAnswer: "abcdefghij", Marks: 3},
			answer:      "abcdefwxyz", // edit distance 4 of 10
			wantStored:  "abcdefwxyz",
			wantCorrect: false,
			wantMarks:   0,
		},
		{
			name:        "fill blank unrelated answer",
			question:    &models.Question{Type: models.FillBlank, CorrectAnswer: "photosynthesis", Marks: 3},
			answer:      "mitochondria",
			wantStored:  "mitochondria",
			wantCorrect: false,
			wantMarks:   0,
		},
		{
			name:     "unknown question type is rejected",
			question: &models.Question{Type: "essay", CorrectAnswer: "anything", Marks: 5},
			answer:   "anything",
			wantErr:  ErrInvalidQuestionType,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stored, correct, marks, err := service.ScoreAnswer(tt.question, tt.answer)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if err != nil {
				if correct || marks != 0 {
					t.Errorf("rejected answer scored (%v, %v), want no marks", correct, marks)
				}
				return
			}
			if stored != tt.wantStored {
				t.Errorf("stored answer = %q, want %q", stored, tt.wantStored)
			}
			if correct != tt.wantCorrect {
				t.Errorf("correct = %v, want %v", correct, tt.wantCorrect)
			}
			if marks != tt.wantMarks {
				t.Errorf("marks = %v, want %v", marks, tt.wantMarks)
			}
		})
	}
}

func TestGradingService_GradeFor(t *testing.T) {
	service, _, _ := newGradingTestService(t)

	tests := []struct {
		name       string
		percentage float64
		passPct    float64
		wantGrade  models.GradeBand
		wantStatus string
	}{
		{"excellent", 95, 40, models.GradeAPlus, "Excellent"},
		{"excellent lower bound", 90, 40, models.GradeAPlus, "Excellent"},
		{"very good", 85, 40, models.GradeA, "Very Good"},
		{"very good just below A+", 89.99, 40, models.GradeA, "Very Good"},
		{"good lower bound", 70, 40, models.GradeBPlus, "Good"},
		{"above average", 65, 40, models.GradeB, "Above Average"},
		{"above average lower bound", 60, 40, models.GradeB, "Above Average"},
		{"pass", 45, 40, models.GradeC, "Pass"},
		{"pass at threshold", 40, 40, models.GradeC, "Pass"},
		{"fail just below threshold", 39.99, 40, models.GradeF, "Fail"},
		{"fail", 10, 40, models.GradeF, "Fail"},
		{"high pass threshold narrows C band", 55, 55, models.GradeC, "Pass"},
		{"zero threshold passes zero score", 0, 0, models.GradeC, "Pass"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := service.GradeFor(tt.percentage, tt.passPct)
			if got.Grade != tt.wantGrade {
				t.Errorf("grade = %s, want %s", got.Grade, tt.wantGrade)
			}
			if got.Status != tt.wantStatus {
				t.Errorf("status = %q, want %q", got.Status, tt.wantStatus)
			}
		})
	}
}

func TestClassifyDifficulty(t *testing.T) {
	tests := []struct {
		rate float64
		want models.DifficultyLevel
	}{
		{1.0, models.DifficultyEasy},
		{0.8, models.DifficultyEasy},
		{0.79, models.DifficultyMedium},
		{0.5, models.DifficultyMedium},
		{0.41, models.DifficultyMedium},
		{0.4, models.DifficultyHard},
		{0.0, models.DifficultyHard},
	}
	for _, tt := range tests {
		if got := classifyDifficulty(tt.rate); got != tt.want {
			t.Errorf("classifyDifficulty(%v) = %s, want %s", tt.rate, got, tt.want)
		}
	}
}

func TestGradingService_FinalizeAttempt(t *testing.T) {
	ctx := context.Background()
	start := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

	setup := func(t *testing.T) (GradingService, *memory.Repository, *events.MockEventPublisher, *models.Attempt) {
		service, repo, publisher := newGradingTestService(t)

		assessment := &models.Assessment{
			Title:      "Biology Quiz",
			Duration:   30,
			Status:     models.StatusPublished,
			TotalMarks: 10,
			PassMarks:  5,
			ClassID:    1,
			SubjectID:  1,
			CreatedBy:  "teacher-1",
		}
		if err := repo.Assessment().Create(ctx, nil, assessment); err != nil {
			t.Fatalf("create assessment: %v", err)
		}

		attempt := &models.Attempt{
			AssessmentID: assessment.ID,
			StudentID:    "student-1",
			Status:       models.AttemptInProgress,
			StartedAt:    start,
		}
		if err := repo.Attempt().Create(ctx, nil, attempt); err != nil {
			t.Fatalf("create attempt: %v", err)
		}

		answers := []*models.Answer{
			{AttemptID: attempt.ID, QuestionID: 1, Answer: "paris", IsCorrect: true, MarksAwarded: 5},
			{AttemptID: attempt.ID, QuestionID: 2, Answer: "london", IsCorrect: false, MarksAwarded: 0},
		}
		for _, answer := range answers {
			if err := repo.Answer().Upsert(ctx, nil, answer); err != nil {
				t.Fatalf("upsert answer: %v", err)
			}
		}

		return service, repo, publisher, attempt
	}

	t.Run("submits and grades an in progress attempt", func(t *testing.T) {
		service, repo, publisher, attempt := setup(t)

		finalized, err := service.FinalizeAttempt(ctx, attempt.ID, models.AttemptSubmitted, start.Add(10*time.Minute))
		if err != nil {
			t.Fatalf("FinalizeAttempt: %v", err)
		}
		if !finalized {
			t.Fatal("expected attempt to be finalized")
		}

		stored, err := repo.Attempt().GetByID(ctx, nil, attempt.ID)
		if err != nil {
			t.Fatalf("reload attempt: %v", err)
		}
		if stored.Status != models.AttemptSubmitted {
			t.Errorf("status = %s, want %s", stored.Status, models.AttemptSubmitted)
		}
		if stored.TotalScore != 5 {
			t.Errorf("total score = %v, want 5", stored.TotalScore)
		}
		if stored.Percentage != 50 {
			t.Errorf("percentage = %v, want 50", stored.Percentage)
		}
		if stored.TimeSpent != 600 {
			t.Errorf("time spent = %d, want 600", stored.TimeSpent)
		}
		if stored.SubmittedAt == nil || !stored.SubmittedAt.Equal(start.Add(10*time.Minute)) {
			t.Errorf("submitted at = %v, want %v", stored.SubmittedAt, start.Add(10*time.Minute))
		}

		published := publisher.GetPublishedEvents()
		if len(published) != 1 {
			t.Fatalf("published %d events, want 1", len(published))
		}
		if published[0].Type != events.EventAttemptSubmitted {
			t.Errorf("event type = %s, want %s", published[0].Type, events.EventAttemptSubmitted)
		}
		payload, ok := published[0].Data.(*events.AttemptCompletedEvent)
		if !ok {
			t.Fatalf("event data has type %T", published[0].Data)
		}
		if !payload.Passed {
			t.Error("expected attempt with score at pass marks to pass")
		}
	})

	t.Run("second finalize is a no-op", func(t *testing.T) {
		service, _, publisher, attempt := setup(t)

		if _, err := service.FinalizeAttempt(ctx, attempt.ID, models.AttemptSubmitted, start.Add(10*time.Minute)); err != nil {
			t.Fatalf("first FinalizeAttempt: %v", err)
		}
		finalized, err := service.FinalizeAttempt(ctx, attempt.ID, models.AttemptTimedOut, start.Add(40*time.Minute))
		if err != nil {
			t.Fatalf("second FinalizeAttempt: %v", err)
		}
		if finalized {
			t.Error("expected second finalize to report false")
		}
		if got := len(publisher.GetPublishedEvents()); got != 1 {
			t.Errorf("published %d events, want 1", got)
		}
	})

	t.Run("timeout clamps time spent to the duration", func(t *testing.T) {
		service, repo, publisher, attempt := setup(t)

		finalized, err := service.FinalizeAttempt(ctx, attempt.ID, models.AttemptTimedOut, start.Add(45*time.Minute))
		if err != nil {
			t.Fatalf("FinalizeAttempt: %v", err)
		}
		if !finalized {
			t.Fatal("expected attempt to be finalized")
		}

		stored, err := repo.Attempt().GetByID(ctx, nil, attempt.ID)
		if err != nil {
			t.Fatalf("reload attempt: %v", err)
		}
		if stored.Status != models.AttemptTimedOut {
			t.Errorf("status = %s, want %s", stored.Status, models.AttemptTimedOut)
		}
		if stored.TimeSpent != 30*60 {
			t.Errorf("time spent = %d, want %d", stored.TimeSpent, 30*60)
		}

		published := publisher.GetPublishedEvents()
		if len(published) != 1 || published[0].Type != events.EventAttemptTimedOut {
			t.Fatalf("expected one timed out event, got %v", published)
		}
	})

	t.Run("zero total marks yields zero percentage", func(t *testing.T) {
		service, repo, _ := newGradingTestService(t)

		// Published with no frozen marks. The questions still carry marks,
		// which must not be re-summed at grading time.
		assessment := &models.Assessment{
			Title:      "Ungraded Survey",
			Duration:   30,
			Status:     models.StatusPublished,
			TotalMarks: 0,
			PassMarks:  0,
			ClassID:    1,
			SubjectID:  1,
			CreatedBy:  "teacher-1",
		}
		if err := repo.Assessment().Create(ctx, nil, assessment); err != nil {
			t.Fatalf("create assessment: %v", err)
		}
		question := &models.Question{AssessmentID: assessment.ID, Type: models.MultipleChoice, Text: "Q1", CorrectAnswer: "a", Marks: 10, OrderIndex: 0}
		if err := repo.Question().Create(ctx, nil, question); err != nil {
			t.Fatalf("create question: %v", err)
		}

		attempt := &models.Attempt{
			AssessmentID: assessment.ID,
			StudentID:    "student-1",
			Status:       models.AttemptInProgress,
			StartedAt:    start,
		}
		if err := repo.Attempt().Create(ctx, nil, attempt); err != nil {
			t.Fatalf("create attempt: %v", err)
		}
		answer := &models.Answer{AttemptID: attempt.ID, QuestionID: question.ID, Answer: "a", IsCorrect: true, MarksAwarded: 10}
		if err := repo.Answer().Upsert(ctx, nil, answer); err != nil {
			t.Fatalf("upsert answer: %v", err)
		}

		finalized, err := service.FinalizeAttempt(ctx, attempt.ID, models.AttemptSubmitted, start.Add(5*time.Minute))
		if err != nil {
			t.Fatalf("FinalizeAttempt: %v", err)
		}
		if !finalized {
			t.Fatal("expected attempt to be finalized")
		}

		stored, err := repo.Attempt().GetByID(ctx, nil, attempt.ID)
		if err != nil {
			t.Fatalf("reload attempt: %v", err)
		}
		if stored.TotalScore != 10 {
			t.Errorf("total score = %v, want 10", stored.TotalScore)
		}
		if stored.Percentage != 0 {
			t.Errorf("percentage = %v, want 0", stored.Percentage)
		}
	})

	t.Run("non-terminal status is rejected", func(t *testing.T) {
		service, _, _, attempt := setup(t)
		if _, err := service.FinalizeAttempt(ctx, attempt.ID, models.AttemptInProgress, start); err == nil {
			t.Fatal("expected error for non-terminal status")
		}
	})

	t.Run("missing attempt", func(t *testing.T) {
		service, _, _ := newGradingTestService(t)
		if _, err := service.FinalizeAttempt(ctx, 999, models.AttemptSubmitted, start); err != ErrAttemptNotFound {
			t.Fatalf("err = %v, want ErrAttemptNotFound", err)
		}
	})
}

func TestGradingService_BuildAnalytics(t *testing.T) {
	ctx := context.Background()
	service, repo, _ := newGradingTestService(t)

	assessment := &models.Assessment{
		Title:      "Chemistry Test",
		Duration:   45,
		Status:     models.StatusPublished,
		TotalMarks: 10,
		PassMarks:  5,
		ClassID:    1,
		SubjectID:  1,
		CreatedBy:  "teacher-1",
	}
	if err := repo.Assessment().Create(ctx, nil, assessment); err != nil {
		t.Fatalf("create assessment: %v", err)
	}

	questions := []*models.Question{
		{AssessmentID: assessment.ID, Type: models.MultipleChoice, Text: "Q1", CorrectAnswer: "a", Marks: 5, OrderIndex: 0},
		{AssessmentID: assessment.ID, Type: models.FillBlank, Text: "Q2", CorrectAnswer: "water", Marks: 5, OrderIndex: 1},
	}
	for _, q := range questions {
		if err := repo.Question().Create(ctx, nil, q); err != nil {
			t.Fatalf("create question: %v", err)
		}
	}

	start := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	submitted := start.Add(20 * time.Minute)
	attempts := []*models.Attempt{
		{AssessmentID: assessment.ID, StudentID: "student-1", Status: models.AttemptSubmitted, StartedAt: start, SubmittedAt: &submitted, TotalScore: 5, Percentage: 50},
		{AssessmentID: assessment.ID, StudentID: "student-2", Status: models.AttemptSubmitted, StartedAt: start, SubmittedAt: &submitted, TotalScore: 10, Percentage: 100},
		{AssessmentID: assessment.ID, StudentID: "student-3", Status: models.AttemptInProgress, StartedAt: start},
	}
	for _, a := range attempts {
		if err := repo.Attempt().Create(ctx, nil, a); err != nil {
			t.Fatalf("create attempt: %v", err)
		}
	}

	answers := []*models.Answer{
		{AttemptID: attempts[0].ID, QuestionID: questions[0].ID, Answer: "a", IsCorrect: true, MarksAwarded: 5},
		{AttemptID: attempts[0].ID, QuestionID: questions[1].ID, Answer: "fire", IsCorrect: false, MarksAwarded: 0},
		{AttemptID: attempts[1].ID, QuestionID: questions[0].ID, Answer: "a", IsCorrect: true, MarksAwarded: 5},
		{AttemptID: attempts[1].ID, QuestionID: questions[1].ID, Answer: "water", IsCorrect: true, MarksAwarded: 5},
	}
	for _, answer := range answers {
		if err := repo.Answer().Upsert(ctx, nil, answer); err != nil {
			t.Fatalf("upsert answer: %v", err)
		}
	}

	analytics, err := service.BuildAnalytics(ctx, assessment.ID)
	if err != nil {
		t.Fatalf("BuildAnalytics: %v", err)
	}

	if analytics.TotalAttempts != 2 {
		t.Errorf("total attempts = %d, want 2 (in progress excluded)", analytics.TotalAttempts)
	}
	if analytics.AverageScore != 7.5 {
		t.Errorf("average score = %v, want 7.5", analytics.AverageScore)
	}
	if analytics.AveragePercentage != 75 {
		t.Errorf("average percentage = %v, want 75", analytics.AveragePercentage)
	}
	if analytics.HighestScore != 10 || analytics.LowestScore != 5 {
		t.Errorf("score range = [%v, %v], want [5, 10]", analytics.LowestScore, analytics.HighestScore)
	}
	if analytics.PassRate != 100 {
		t.Errorf("pass rate = %v, want 100", analytics.PassRate)
	}
	if analytics.GradeDistribution[models.GradeAPlus] != 1 || analytics.GradeDistribution[models.GradeC] != 1 {
		t.Errorf("grade distribution = %v, want one A+ and one C", analytics.GradeDistribution)
	}

	if len(analytics.QuestionStats) != 2 {
		t.Fatalf("question stats length = %d, want 2", len(analytics.QuestionStats))
	}
	q1 := analytics.QuestionStats[0]
	if q1.Attempts != 2 || q1.CorrectCount != 2 || q1.Difficulty != models.DifficultyEasy {
		t.Errorf("q1 stats = %+v, want 2/2 correct and easy", q1)
	}
	q2 := analytics.QuestionStats[1]
	if q2.Attempts != 2 || q2.CorrectCount != 1 || q2.Difficulty != models.DifficultyMedium {
		t.Errorf("q2 stats = %+v, want 1/2 correct and medium", q2)
	}
}

func TestGradingService_BuildAnalytics_NoAttempts(t *testing.T) {
	ctx := context.Background()
	service, repo, _ := newGradingTestService(t)

	assessment := &models.Assessment{
		Title:     "Unattempted Quiz",
		Duration:  30,
		Status:    models.StatusPublished,
		PassMarks: 5,
		ClassID:   1,
		SubjectID: 1,
		CreatedBy: "teacher-1",
	}
	if err := repo.Assessment().Create(ctx, nil, assessment); err != nil {
		t.Fatalf("create assessment: %v", err)
	}

	analytics, err := service.BuildAnalytics(ctx, assessment.ID)
	if err != nil {
		t.Fatalf("BuildAnalytics: %v", err)
	}
	if analytics.TotalAttempts != 0 || analytics.AverageScore != 0 || analytics.PassRate != 0 {
		t.Errorf("expected zeroed analytics, got %+v", analytics)
	}
}
