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

type assessmentTestEnv struct {
	repo      *memory.Repository
	publisher *events.MockEventPublisher
	service   AssessmentService
}

func newAssessmentTestEnv(t *testing.T) *assessmentTestEnv {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	repo := memory.NewRepository()
	publisher := events.NewMockEventPublisher(logger)
	v := validator.New()
	grading := NewGradingService(repo, nil, logger, v, publisher)

	classID := uint(1)
	repo.SeedUser(&models.User{ID: "teacher-1", FullName: "Ms Ade", Email: "ade@school.test", Role: models.RoleTeacher})
	repo.SeedUser(&models.User{ID: "teacher-2", FullName: "Mr Bello", Email: "bello@school.test", Role: models.RoleTeacher})
	repo.SeedUser(&models.User{ID: "admin-1", FullName: "Root", Email: "root@school.test", Role: models.RoleAdmin})
	repo.SeedUser(&models.User{ID: "student-1", FullName: "Ada Obi", Email: "ada@school.test", Role: models.RoleStudent, ClassID: &classID})

	return &assessmentTestEnv{
		repo:      repo,
		publisher: publisher,
		service:   NewAssessmentService(repo, nil, logger, v, grading, publisher),
	}
}

func (env *assessmentTestEnv) createDraft(t *testing.T, creatorID string) *AssessmentResponse {
	t.Helper()
	resp, err := env.service.Create(context.Background(), &CreateAssessmentRequest{
		Title:     "History Test",
		Duration:  45,
		PassMarks: 4,
		ClassID:   1,
		SubjectID: 1,
	}, creatorID)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return resp
}

func (env *assessmentTestEnv) addQuestion(t *testing.T, assessmentID uint, marks int) *models.Question {
	t.Helper()
	q, err := env.service.AddQuestion(context.Background(), assessmentID, &CreateQuestionRequest{
		Type:          models.TrueFalse,
		Text:          "The Berlin Wall fell in 1989.",
		CorrectAnswer: "true",
		Marks:         marks,
	}, "teacher-1")
	if err != nil {
		t.Fatalf("AddQuestion: %v", err)
	}
	return q
}

func TestAssessmentService_Create(t *testing.T) {
	env := newAssessmentTestEnv(t)

	t.Run("creates a draft with defaults", func(t *testing.T) {
		resp := env.createDraft(t, "teacher-1")
		if resp.Status != models.StatusDraft {
			t.Errorf("status = %s, want %s", resp.Status, models.StatusDraft)
		}
		if !resp.ShowResults {
			t.Error("show results should default to true")
		}
		if !resp.CanEdit || !resp.CanDelete {
			t.Error("creator should be able to edit and delete a draft")
		}
	})

	t.Run("rejects an inverted window", func(t *testing.T) {
		start := time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)
		end := start.Add(-time.Hour)
		_, err := env.service.Create(context.Background(), &CreateAssessmentRequest{
			Title:     "Broken Window",
			Duration:  30,
			ClassID:   1,
			SubjectID: 1,
			StartTime: &start,
			EndTime:   &end,
		}, "teacher-1")
		var verrs ValidationErrors
		if !errors.As(err, &verrs) {
			t.Fatalf("err = %v, want ValidationErrors", err)
		}
	})
}

func TestAssessmentService_Publish(t *testing.T) {
	ctx := context.Background()

	t.Run("freezes total marks and emits an event", func(t *testing.T) {
		env := newAssessmentTestEnv(t)
		draft := env.createDraft(t, "teacher-1")
		env.addQuestion(t, draft.ID, 3)
		env.addQuestion(t, draft.ID, 7)

		if err := env.service.Publish(ctx, draft.ID, "teacher-1"); err != nil {
			t.Fatalf("Publish: %v", err)
		}

		published, err := env.repo.Assessment().GetByID(ctx, nil, draft.ID)
		if err != nil {
			t.Fatalf("reload assessment: %v", err)
		}
		if published.Status != models.StatusPublished {
			t.Errorf("status = %s, want %s", published.Status, models.StatusPublished)
		}
		if published.TotalMarks != 10 {
			t.Errorf("total marks = %d, want 10", published.TotalMarks)
		}

		emitted := env.publisher.GetPublishedEvents()
		if len(emitted) != 1 || emitted[0].Type != events.EventAssessmentPublished {
			t.Fatalf("expected one published event, got %d", len(emitted))
		}
	})

	t.Run("rejects publishing without questions", func(t *testing.T) {
		env := newAssessmentTestEnv(t)
		draft := env.createDraft(t, "teacher-1")

		err := env.service.Publish(ctx, draft.ID, "teacher-1")
		var verrs ValidationErrors
		if !errors.As(err, &verrs) {
			t.Fatalf("err = %v, want ValidationErrors", err)
		}
	})

	t.Run("rejects republishing", func(t *testing.T) {
		env := newAssessmentTestEnv(t)
		draft := env.createDraft(t, "teacher-1")
		env.addQuestion(t, draft.ID, 5)

		if err := env.service.Publish(ctx, draft.ID, "teacher-1"); err != nil {
			t.Fatalf("Publish: %v", err)
		}
		err := env.service.Publish(ctx, draft.ID, "teacher-1")
		var verrs ValidationErrors
		if !errors.As(err, &verrs) {
			t.Fatalf("err = %v, want ValidationErrors", err)
		}
	})

	t.Run("only creator or admin may publish", func(t *testing.T) {
		env := newAssessmentTestEnv(t)
		draft := env.createDraft(t, "teacher-1")
		env.addQuestion(t, draft.ID, 5)

		err := env.service.Publish(ctx, draft.ID, "teacher-2")
		var permErr *PermissionError
		if !errors.As(err, &permErr) {
			t.Fatalf("err = %v, want PermissionError", err)
		}

		if err := env.service.Publish(ctx, draft.ID, "admin-1"); err != nil {
			t.Fatalf("Publish as admin: %v", err)
		}
	})
}

func TestAssessmentService_Archive(t *testing.T) {
	ctx := context.Background()
	env := newAssessmentTestEnv(t)
	draft := env.createDraft(t, "teacher-1")
	env.addQuestion(t, draft.ID, 5)

	if err := env.service.Publish(ctx, draft.ID, "teacher-1"); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if err := env.service.Archive(ctx, draft.ID, "teacher-1"); err != nil {
		t.Fatalf("Archive: %v", err)
	}

	// Archived is terminal.
	err := env.service.Archive(ctx, draft.ID, "teacher-1")
	var verrs ValidationErrors
	if !errors.As(err, &verrs) {
		t.Fatalf("err = %v, want ValidationErrors", err)
	}
}

func TestAssessmentService_Update(t *testing.T) {
	ctx := context.Background()

	t.Run("updates draft fields", func(t *testing.T) {
		env := newAssessmentTestEnv(t)
		draft := env.createDraft(t, "teacher-1")

		title := "History Test v2"
		duration := 60
		resp, err := env.service.Update(ctx, draft.ID, &UpdateAssessmentRequest{
			Title:    &title,
			Duration: &duration,
		}, "teacher-1")
		if err != nil {
			t.Fatalf("Update: %v", err)
		}
		if resp.Title != title || resp.Duration != duration {
			t.Errorf("updated = (%q, %d), want (%q, %d)", resp.Title, resp.Duration, title, duration)
		}
	})

	t.Run("duration is frozen after publishing", func(t *testing.T) {
		env := newAssessmentTestEnv(t)
		draft := env.createDraft(t, "teacher-1")
		env.addQuestion(t, draft.ID, 5)
		if err := env.service.Publish(ctx, draft.ID, "teacher-1"); err != nil {
			t.Fatalf("Publish: %v", err)
		}

		duration := 90
		_, err := env.service.Update(ctx, draft.ID, &UpdateAssessmentRequest{Duration: &duration}, "teacher-1")
		var verrs ValidationErrors
		if !errors.As(err, &verrs) {
			t.Fatalf("err = %v, want ValidationErrors", err)
		}
	})

	t.Run("archived assessments are immutable", func(t *testing.T) {
		env := newAssessmentTestEnv(t)
		draft := env.createDraft(t, "teacher-1")
		env.addQuestion(t, draft.ID, 5)
		if err := env.service.Publish(ctx, draft.ID, "teacher-1"); err != nil {
			t.Fatalf("Publish: %v", err)
		}
		if err := env.service.Archive(ctx, draft.ID, "teacher-1"); err != nil {
			t.Fatalf("Archive: %v", err)
		}

		title := "New Title"
		if _, err := env.service.Update(ctx, draft.ID, &UpdateAssessmentRequest{Title: &title}, "teacher-1"); !errors.Is(err, ErrAssessmentNotEditable) {
			t.Fatalf("err = %v, want ErrAssessmentNotEditable", err)
		}
	})
}

func TestAssessmentService_Delete(t *testing.T) {
	ctx := context.Background()

	t.Run("deletes an untouched draft", func(t *testing.T) {
		env := newAssessmentTestEnv(t)
		draft := env.createDraft(t, "teacher-1")

		if err := env.service.Delete(ctx, draft.ID, "teacher-1"); err != nil {
			t.Fatalf("Delete: %v", err)
		}
		if _, err := env.service.GetByID(ctx, draft.ID, "teacher-1"); !errors.Is(err, ErrAssessmentNotFound) {
			t.Fatalf("err = %v, want ErrAssessmentNotFound", err)
		}
	})

	t.Run("refuses while attempts exist", func(t *testing.T) {
		env := newAssessmentTestEnv(t)
		draft := env.createDraft(t, "teacher-1")
		env.addQuestion(t, draft.ID, 5)
		if err := env.service.Publish(ctx, draft.ID, "teacher-1"); err != nil {
			t.Fatalf("Publish: %v", err)
		}

		attempt := &models.Attempt{AssessmentID: draft.ID, StudentID: "student-1", Status: models.AttemptInProgress, StartedAt: time.Now()}
		if err := env.repo.Attempt().Create(ctx, nil, attempt); err != nil {
			t.Fatalf("create attempt: %v", err)
		}

		err := env.service.Delete(ctx, draft.ID, "teacher-1")
		var ruleErr *BusinessRuleError
		if !errors.As(err, &ruleErr) {
			t.Fatalf("err = %v, want BusinessRuleError", err)
		}
	})
}

func TestAssessmentService_Questions(t *testing.T) {
	ctx := context.Background()

	t.Run("assigns sequential order indexes", func(t *testing.T) {
		env := newAssessmentTestEnv(t)
		draft := env.createDraft(t, "teacher-1")

		q1 := env.addQuestion(t, draft.ID, 2)
		q2 := env.addQuestion(t, draft.ID, 3)
		if q2.OrderIndex != q1.OrderIndex+1 {
			t.Errorf("order indexes = (%d, %d), want sequential", q1.OrderIndex, q2.OrderIndex)
		}
	})

	t.Run("rejects a duplicate order index", func(t *testing.T) {
		env := newAssessmentTestEnv(t)
		draft := env.createDraft(t, "teacher-1")
		env.addQuestion(t, draft.ID, 2)

		order := 0
		_, err := env.service.AddQuestion(ctx, draft.ID, &CreateQuestionRequest{
			Type:          models.TrueFalse,
			Text:          "Duplicate slot",
			CorrectAnswer: "false",
			Marks:         1,
			OrderIndex:    &order,
		}, "teacher-1")
		var ruleErr *BusinessRuleError
		if !errors.As(err, &ruleErr) {
			t.Fatalf("err = %v, want BusinessRuleError", err)
		}
	})

	t.Run("rejects invalid multiple choice definitions", func(t *testing.T) {
		env := newAssessmentTestEnv(t)
		draft := env.createDraft(t, "teacher-1")

		_, err := env.service.AddQuestion(ctx, draft.ID, &CreateQuestionRequest{
			Type:          models.MultipleChoice,
			Text:          "Pick one",
			Options:       []string{"only one"},
			CorrectAnswer: "only one",
			Marks:         1,
		}, "teacher-1")
		var verrs ValidationErrors
		if !errors.As(err, &verrs) {
			t.Fatalf("err = %v, want ValidationErrors", err)
		}
	})

	t.Run("questions are frozen once published", func(t *testing.T) {
		env := newAssessmentTestEnv(t)
		draft := env.createDraft(t, "teacher-1")
		q := env.addQuestion(t, draft.ID, 5)
		if err := env.service.Publish(ctx, draft.ID, "teacher-1"); err != nil {
			t.Fatalf("Publish: %v", err)
		}

		_, err := env.service.AddQuestion(ctx, draft.ID, &CreateQuestionRequest{
			Type:          models.TrueFalse,
			Text:          "Too late",
			CorrectAnswer: "true",
			Marks:         1,
		}, "teacher-1")
		if !errors.Is(err, ErrAssessmentNotEditable) {
			t.Fatalf("add err = %v, want ErrAssessmentNotEditable", err)
		}
		if err := env.service.RemoveQuestion(ctx, draft.ID, q.ID, "teacher-1"); !errors.Is(err, ErrAssessmentNotEditable) {
			t.Fatalf("remove err = %v, want ErrAssessmentNotEditable", err)
		}
	})

	t.Run("updates a draft question", func(t *testing.T) {
		env := newAssessmentTestEnv(t)
		draft := env.createDraft(t, "teacher-1")
		q := env.addQuestion(t, draft.ID, 5)

		updated, err := env.service.UpdateQuestion(ctx, draft.ID, q.ID, &CreateQuestionRequest{
			Type:          models.FillBlank,
			Text:          "Capital of France?",
			CorrectAnswer: "paris",
			Marks:         2,
		}, "teacher-1")
		if err != nil {
			t.Fatalf("UpdateQuestion: %v", err)
		}
		if updated.Type != models.FillBlank || updated.Marks != 2 {
			t.Errorf("updated question = %+v", updated)
		}
	})
}

func TestAssessmentService_GetAnalytics_Permission(t *testing.T) {
	ctx := context.Background()
	env := newAssessmentTestEnv(t)
	draft := env.createDraft(t, "teacher-1")

	_, err := env.service.GetAnalytics(ctx, draft.ID, "teacher-2")
	var permErr *PermissionError
	if !errors.As(err, &permErr) {
		t.Fatalf("err = %v, want PermissionError", err)
	}

	if _, err := env.service.GetAnalytics(ctx, draft.ID, "teacher-1"); err != nil {
		t.Fatalf("GetAnalytics as creator: %v", err)
	}
}
