package services

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/studentcbt/exam-service/internal/events"
	"github.com/studentcbt/exam-service/internal/models"
	"github.com/studentcbt/exam-service/internal/repositories/memory"
	"github.com/studentcbt/exam-service/internal/validator"
)

func newExportTestService(t *testing.T) (ExportService, *memory.Repository) {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	repo := memory.NewRepository()
	v := validator.New()
	grading := NewGradingService(repo, nil, logger, v, events.NewMockEventPublisher(logger))

	classID := uint(1)
	repo.SeedUser(&models.User{ID: "teacher-1", FullName: "Ms Ade", Email: "ade@school.test", Role: models.RoleTeacher})
	repo.SeedUser(&models.User{ID: "student-1", FullName: "Ada Obi", Email: "ada@school.test", Role: models.RoleStudent, ClassID: &classID})

	return NewExportService(repo, nil, logger, grading), repo
}

func TestExportService_ExportResults(t *testing.T) {
	ctx := context.Background()
	service, repo := newExportTestService(t)

	assessment := &models.Assessment{
		Title: "Export Exam", Duration: 30, Status: models.StatusPublished,
		TotalMarks: 10, PassMarks: 5, ClassID: 1, SubjectID: 1, CreatedBy: "teacher-1",
	}
	if err := repo.Assessment().Create(ctx, nil, assessment); err != nil {
		t.Fatalf("create assessment: %v", err)
	}

	start := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	submitted := start.Add(15 * time.Minute)
	attempt := &models.Attempt{
		AssessmentID: assessment.ID, StudentID: "student-1",
		Status: models.AttemptSubmitted, StartedAt: start, SubmittedAt: &submitted,
		TimeSpent: 900, TotalScore: 8, Percentage: 80,
	}
	if err := repo.Attempt().Create(ctx, nil, attempt); err != nil {
		t.Fatalf("create attempt: %v", err)
	}

	raw, err := service.ExportResults(ctx, assessment.ID, "teacher-1")
	if err != nil {
		t.Fatalf("ExportResults: %v", err)
	}

	f, err := excelize.OpenReader(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(exportSheetName)
	if err != nil {
		t.Fatalf("read sheet: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want header plus one attempt", len(rows))
	}
	if rows[0][0] != "Student" {
		t.Errorf("header = %q, want Student", rows[0][0])
	}
	if rows[1][0] != "Ada Obi" {
		t.Errorf("student cell = %q, want resolved name", rows[1][0])
	}
	if rows[1][6] != "A" {
		t.Errorf("grade cell = %q, want A", rows[1][6])
	}

	t.Run("only the creator or an admin may export", func(t *testing.T) {
		_, err := service.ExportResults(ctx, assessment.ID, "student-1")
		var permErr *PermissionError
		if !errors.As(err, &permErr) {
			t.Fatalf("err = %v, want PermissionError", err)
		}
	})
}
