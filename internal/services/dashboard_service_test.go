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

func newDashboardTestService(t *testing.T) (DashboardService, *memory.Repository) {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	repo := memory.NewRepository()
	v := validator.New()
	grading := NewGradingService(repo, nil, logger, v, events.NewMockEventPublisher(logger))
	student := NewStudentService(repo, nil, logger, v, grading)

	repo.SeedUser(&models.User{ID: "teacher-1", FullName: "Ms Ade", Email: "ade@school.test", Role: models.RoleTeacher})
	classID := uint(1)
	repo.SeedUser(&models.User{ID: "student-1", FullName: "Ada Obi", Email: "ada@school.test", Role: models.RoleStudent, ClassID: &classID})

	return NewDashboardService(repo, nil, logger, student), repo
}

func TestDashboardService_GetPlatformStats(t *testing.T) {
	ctx := context.Background()
	service, repo := newDashboardTestService(t)

	assessment := &models.Assessment{
		Title: "Stats Exam", Duration: 30, Status: models.StatusPublished,
		TotalMarks: 10, PassMarks: 5, ClassID: 1, SubjectID: 1, CreatedBy: "teacher-1",
	}
	if err := repo.Assessment().Create(ctx, nil, assessment); err != nil {
		t.Fatalf("create assessment: %v", err)
	}

	start := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	submitted := start.Add(20 * time.Minute)
	attempts := []*models.Attempt{
		{AssessmentID: assessment.ID, StudentID: "student-1", Status: models.AttemptSubmitted, StartedAt: start, SubmittedAt: &submitted, TotalScore: 8, Percentage: 80},
		{AssessmentID: assessment.ID, StudentID: "student-9", Status: models.AttemptInProgress, StartedAt: start},
	}
	for _, a := range attempts {
		if err := repo.Attempt().Create(ctx, nil, a); err != nil {
			t.Fatalf("create attempt: %v", err)
		}
	}

	stats, err := service.GetPlatformStats(ctx, "teacher-1")
	if err != nil {
		t.Fatalf("GetPlatformStats: %v", err)
	}
	if stats.TotalAssessments != 1 || stats.TotalAttempts != 2 {
		t.Errorf("totals = (%d, %d), want (1, 2)", stats.TotalAssessments, stats.TotalAttempts)
	}
	if stats.CompletionRate != 50 {
		t.Errorf("completion rate = %v, want 50", stats.CompletionRate)
	}
	if stats.AverageScore != 80 {
		t.Errorf("average score = %v, want 80", stats.AverageScore)
	}

	t.Run("students may not read platform stats", func(t *testing.T) {
		_, err := service.GetPlatformStats(ctx, "student-1")
		var permErr *PermissionError
		if !errors.As(err, &permErr) {
			t.Fatalf("err = %v, want PermissionError", err)
		}
	})
}
