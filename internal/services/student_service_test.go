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
	"github.com/studentcbt/exam-service/internal/repositories"
	"github.com/studentcbt/exam-service/internal/repositories/memory"
	"github.com/studentcbt/exam-service/internal/validator"
)

type studentTestEnv struct {
	repo    *memory.Repository
	service *studentService
	now     time.Time
}

func newStudentTestEnv(t *testing.T) *studentTestEnv {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	repo := memory.NewRepository()
	publisher := events.NewMockEventPublisher(logger)
	v := validator.New()
	grading := NewGradingService(repo, nil, logger, v, publisher)

	env := &studentTestEnv{
		repo: repo,
		now:  time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC),
	}
	env.service = &studentService{
		repo:      repo,
		logger:    logger,
		validator: v,
		grading:   grading,
		now:       func() time.Time { return env.now },
	}

	classID := uint(1)
	repo.SeedUser(&models.User{ID: "student-1", FullName: "Ada Obi", Email: "ada@school.test", Role: models.RoleStudent, ClassID: &classID})
	repo.SeedUser(&models.User{ID: "student-2", FullName: "Ben Eze", Email: "ben@school.test", Role: models.RoleStudent})

	return env
}

func (env *studentTestEnv) seedAssessment(t *testing.T, mutate func(*models.Assessment)) *models.Assessment {
	t.Helper()
	assessment := &models.Assessment{
		Title:       "Geography Exam",
		Duration:    30,
		Status:      models.StatusPublished,
		TotalMarks:  10,
		PassMarks:   5,
		ShowResults: true,
		ClassID:     1,
		SubjectID:   1,
		CreatedBy:   "teacher-1",
	}
	if mutate != nil {
		mutate(assessment)
	}
	if err := env.repo.Assessment().Create(context.Background(), nil, assessment); err != nil {
		t.Fatalf("create assessment: %v", err)
	}
	return assessment
}

func (env *studentTestEnv) seedQuestion(t *testing.T, assessmentID uint, order int) *models.Question {
	t.Helper()
	q := &models.Question{
		AssessmentID:  assessmentID,
		Type:          models.MultipleChoice,
		Text:          "Largest ocean?",
		CorrectAnswer: "Pacific",
		Marks:         5,
		OrderIndex:    order,
	}
	if err := env.repo.Question().Create(context.Background(), nil, q); err != nil {
		t.Fatalf("create question: %v", err)
	}
	return q
}

func (env *studentTestEnv) seedFinishedAttempt(t *testing.T, assessmentID uint, studentID string, score, pct float64) *models.Attempt {
	t.Helper()
	submitted := env.now.Add(-time.Hour)
	attempt := &models.Attempt{
		AssessmentID: assessmentID,
		StudentID:    studentID,
		Status:       models.AttemptSubmitted,
		StartedAt:    submitted.Add(-20 * time.Minute),
		SubmittedAt:  &submitted,
		TimeSpent:    1200,
		TotalScore:   score,
		Percentage:   pct,
	}
	if err := env.repo.Attempt().Create(context.Background(), nil, attempt); err != nil {
		t.Fatalf("create attempt: %v", err)
	}
	return attempt
}

func TestStudentService_GetAvailableAssessments(t *testing.T) {
	ctx := context.Background()
	env := newStudentTestEnv(t)

	open := env.seedAssessment(t, nil)
	env.seedAssessment(t, func(a *models.Assessment) {
		a.Title = "Other Class Exam"
		a.ClassID = 2
	})
	env.seedAssessment(t, func(a *models.Assessment) {
		a.Title = "Still Draft"
		a.Status = models.StatusDraft
	})
	closedEnd := env.now.Add(-time.Hour)
	env.seedAssessment(t, func(a *models.Assessment) {
		a.Title = "Window Closed"
		a.EndTime = &closedEnd
	})
	attempted := env.seedAssessment(t, func(a *models.Assessment) {
		a.Title = "Already Taken"
	})
	env.seedFinishedAttempt(t, attempted.ID, "student-1", 8, 80)

	available, err := env.service.GetAvailableAssessments(ctx, "student-1")
	if err != nil {
		t.Fatalf("GetAvailableAssessments: %v", err)
	}
	if len(available) != 2 {
		t.Fatalf("available = %d, want 2", len(available))
	}

	byID := map[uint]*AvailableAssessment{}
	for _, row := range available {
		byID[row.Assessment.ID] = row
	}
	if row := byID[open.ID]; row == nil || row.Attempted {
		t.Errorf("open assessment should be listed and unattempted, got %+v", row)
	}
	if row := byID[attempted.ID]; row == nil || !row.Attempted || row.AttemptStatus == nil || *row.AttemptStatus != models.AttemptSubmitted {
		t.Errorf("attempted assessment should carry attempt state, got %+v", row)
	}

	t.Run("student without a class sees nothing", func(t *testing.T) {
		rows, err := env.service.GetAvailableAssessments(ctx, "student-2")
		if err != nil {
			t.Fatalf("GetAvailableAssessments: %v", err)
		}
		if len(rows) != 0 {
			t.Errorf("rows = %d, want 0", len(rows))
		}
	})
}

func TestStudentService_GetExamView(t *testing.T) {
	ctx := context.Background()

	t.Run("returns sanitized questions", func(t *testing.T) {
		env := newStudentTestEnv(t)
		assessment := env.seedAssessment(t, nil)
		env.seedQuestion(t, assessment.ID, 0)
		env.seedQuestion(t, assessment.ID, 1)

		view, err := env.service.GetExamView(ctx, assessment.ID, "student-1")
		if err != nil {
			t.Fatalf("GetExamView: %v", err)
		}
		if view.Title != assessment.Title || view.Duration != 30 {
			t.Errorf("view header = (%q, %d)", view.Title, view.Duration)
		}
		if len(view.Questions) != 2 {
			t.Fatalf("questions = %d, want 2", len(view.Questions))
		}
		for _, q := range view.Questions {
			if q.Text == "" || q.Marks == 0 {
				t.Errorf("question missing display fields: %+v", q)
			}
		}
	})

	t.Run("rejects once attempted", func(t *testing.T) {
		env := newStudentTestEnv(t)
		assessment := env.seedAssessment(t, nil)
		env.seedFinishedAttempt(t, assessment.ID, "student-1", 8, 80)

		if _, err := env.service.GetExamView(ctx, assessment.ID, "student-1"); !errors.Is(err, ErrAttemptAlreadyExists) {
			t.Fatalf("err = %v, want ErrAttemptAlreadyExists", err)
		}
	})

	t.Run("rejects other classes", func(t *testing.T) {
		env := newStudentTestEnv(t)
		assessment := env.seedAssessment(t, func(a *models.Assessment) { a.ClassID = 2 })

		_, err := env.service.GetExamView(ctx, assessment.ID, "student-1")
		var permErr *PermissionError
		if !errors.As(err, &permErr) {
			t.Fatalf("err = %v, want PermissionError", err)
		}
	})

	t.Run("rejects a closed window", func(t *testing.T) {
		env := newStudentTestEnv(t)
		closed := env.now.Add(-time.Minute)
		assessment := env.seedAssessment(t, func(a *models.Assessment) { a.EndTime = &closed })

		_, err := env.service.GetExamView(ctx, assessment.ID, "student-1")
		if !errors.Is(err, ErrAssessmentClosed) {
			t.Fatalf("err = %v, want ErrAssessmentClosed", err)
		}
		if !errors.Is(err, ErrAssessmentNotAvailable) {
			t.Fatalf("err = %v, want to wrap ErrAssessmentNotAvailable", err)
		}
	})
}

func TestStudentService_GetResults(t *testing.T) {
	ctx := context.Background()
	env := newStudentTestEnv(t)

	visible := env.seedAssessment(t, nil)
	hidden := env.seedAssessment(t, func(a *models.Assessment) {
		a.Title = "Hidden Results"
		a.ShowResults = false
	})
	env.seedFinishedAttempt(t, visible.ID, "student-1", 8, 80)
	env.seedFinishedAttempt(t, hidden.ID, "student-1", 4, 40)

	results, _, err := env.service.GetResults(ctx, "student-1", repositories.AttemptFilters{})
	if err != nil {
		t.Fatalf("GetResults: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("results = %d, want 1 (hidden assessment filtered)", len(results))
	}
	result := results[0]
	if result.AssessmentID != visible.ID {
		t.Errorf("result assessment = %d, want %d", result.AssessmentID, visible.ID)
	}
	if result.Grade != models.GradeA || result.GradeStatus != "Very Good" {
		t.Errorf("grade = %s (%s), want A (Very Good)", result.Grade, result.GradeStatus)
	}
	if !result.Passed {
		t.Error("expected 8 of 10 with pass marks 5 to pass")
	}
}

func TestStudentService_GetDetailedResult(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T, showResults bool) (*studentTestEnv, *models.Assessment, *models.Attempt, []*models.Question) {
		env := newStudentTestEnv(t)
		assessment := env.seedAssessment(t, func(a *models.Assessment) { a.ShowResults = showResults })
		q1 := env.seedQuestion(t, assessment.ID, 0)
		q2 := env.seedQuestion(t, assessment.ID, 1)
		attempt := env.seedFinishedAttempt(t, assessment.ID, "student-1", 5, 50)

		answer := &models.Answer{AttemptID: attempt.ID, QuestionID: q1.ID, Answer: "pacific", IsCorrect: true, MarksAwarded: 5}
		if err := env.repo.Answer().Upsert(ctx, nil, answer); err != nil {
			t.Fatalf("upsert answer: %v", err)
		}
		return env, assessment, attempt, []*models.Question{q1, q2}
	}

	t.Run("returns a per-question breakdown", func(t *testing.T) {
		env, _, attempt, questions := setup(t, true)

		detail, err := env.service.GetDetailedResult(ctx, attempt.ID, "student-1")
		if err != nil {
			t.Fatalf("GetDetailedResult: %v", err)
		}
		if detail.TotalScore != 5 || detail.Percentage != 50 {
			t.Errorf("summary = %v (%v%%), want 5 (50%%)", detail.TotalScore, detail.Percentage)
		}
		if len(detail.Answers) != 2 {
			t.Fatalf("answers = %d, want 2 (unanswered included)", len(detail.Answers))
		}

		answered := detail.Answers[0]
		if answered.QuestionID != questions[0].ID || !answered.IsCorrect || answered.YourAnswer != "pacific" {
			t.Errorf("answered review = %+v", answered)
		}
		if answered.CorrectAnswer == "" {
			t.Error("detailed review should reveal the correct answer")
		}

		unanswered := detail.Answers[1]
		if unanswered.YourAnswer != "" || unanswered.IsCorrect || unanswered.MarksAwarded != 0 {
			t.Errorf("unanswered review = %+v", unanswered)
		}
	})

	t.Run("hidden results are blocked", func(t *testing.T) {
		env, _, attempt, _ := setup(t, false)

		if _, err := env.service.GetDetailedResult(ctx, attempt.ID, "student-1"); !errors.Is(err, ErrResultsNotVisible) {
			t.Fatalf("err = %v, want ErrResultsNotVisible", err)
		}
	})

	t.Run("other students are blocked", func(t *testing.T) {
		env, _, attempt, _ := setup(t, true)

		_, err := env.service.GetDetailedResult(ctx, attempt.ID, "student-2")
		var permErr *PermissionError
		if !errors.As(err, &permErr) {
			t.Fatalf("err = %v, want PermissionError", err)
		}
	})

	t.Run("in progress attempts have no result", func(t *testing.T) {
		env := newStudentTestEnv(t)
		assessment := env.seedAssessment(t, nil)
		attempt := &models.Attempt{AssessmentID: assessment.ID, StudentID: "student-1", Status: models.AttemptInProgress, StartedAt: env.now}
		if err := env.repo.Attempt().Create(ctx, nil, attempt); err != nil {
			t.Fatalf("create attempt: %v", err)
		}

		if _, err := env.service.GetDetailedResult(ctx, attempt.ID, "student-1"); !errors.Is(err, ErrAttemptNotActive) {
			t.Fatalf("err = %v, want ErrAttemptNotActive", err)
		}
	})
}

func TestStudentService_GetDashboard(t *testing.T) {
	ctx := context.Background()
	env := newStudentTestEnv(t)

	a1 := env.seedAssessment(t, nil)
	env.seedAssessment(t, func(a *models.Assessment) { a.Title = "Pending Exam" })
	env.seedFinishedAttempt(t, a1.ID, "student-1", 8, 80)

	dashboard, err := env.service.GetDashboard(ctx, "student-1")
	if err != nil {
		t.Fatalf("GetDashboard: %v", err)
	}
	if dashboard.TotalAssessments != 2 {
		t.Errorf("total = %d, want 2", dashboard.TotalAssessments)
	}
	if dashboard.CompletedAssessments != 1 || dashboard.PendingAssessments != 1 {
		t.Errorf("completed/pending = %d/%d, want 1/1", dashboard.CompletedAssessments, dashboard.PendingAssessments)
	}
	if dashboard.AveragePercentage != 80 {
		t.Errorf("average = %v, want 80", dashboard.AveragePercentage)
	}

	t.Run("no class yields an empty dashboard", func(t *testing.T) {
		dashboard, err := env.service.GetDashboard(ctx, "student-2")
		if err != nil {
			t.Fatalf("GetDashboard: %v", err)
		}
		if dashboard.TotalAssessments != 0 || dashboard.AveragePercentage != 0 {
			t.Errorf("expected zeroed dashboard, got %+v", dashboard)
		}
	})
}
