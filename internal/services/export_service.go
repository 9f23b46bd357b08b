package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"

	"github.com/studentcbt/exam-service/internal/models"
	"github.com/studentcbt/exam-service/internal/repositories"
)

const exportSheetName = "Results"

var exportHeaders = []string{
	"Student", "Email", "Status", "Score", "Total Marks",
	"Percentage", "Grade", "Passed", "Started At", "Submitted At", "Time Spent (s)",
}

type exportService struct {
	repo    repositories.Repository
	db      *gorm.DB
	logger  *slog.Logger
	grading GradingService
}

func NewExportService(repo repositories.Repository, db *gorm.DB, logger *slog.Logger, grading GradingService) ExportService {
	return &exportService{
		repo:    repo,
		db:      db,
		logger:  logger,
		grading: grading,
	}
}

func (s *exportService) ExportResults(ctx context.Context, assessmentID uint, userID string) ([]byte, error) {
	assessment, err := s.repo.Assessment().GetByID(ctx, nil, assessmentID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrAssessmentNotFound
		}
		return nil, fmt.Errorf("failed to get assessment: %w", err)
	}

	if assessment.CreatedBy != userID {
		isAdmin, err := s.repo.User().HasRole(ctx, userID, models.RoleAdmin)
		if err != nil {
			return nil, fmt.Errorf("failed to check role: %w", err)
		}
		if !isAdmin {
			return nil, NewPermissionError(userID, assessmentID, "assessment", "export",
				"only the creator or an admin may export results")
		}
	}

	attempts, err := s.repo.Attempt().GetCompletedByAssessment(ctx, nil, assessmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to get completed attempts: %w", err)
	}

	students, err := s.loadStudents(ctx, attempts)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", exportSheetName); err != nil {
		return nil, fmt.Errorf("failed to set up sheet: %w", err)
	}

	for col, header := range exportHeaders {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return nil, fmt.Errorf("failed to address header cell: %w", err)
		}
		if err := f.SetCellValue(exportSheetName, cell, header); err != nil {
			return nil, fmt.Errorf("failed to write header: %w", err)
		}
	}

	passPct := passPercentageOf(assessment)
	for i, attempt := range attempts {
		grade := s.grading.GradeFor(attempt.Percentage, passPct)

		name, email := attempt.StudentID, ""
		if student := students[attempt.StudentID]; student != nil {
			name, email = student.FullName, student.Email
		}

		row := []interface{}{
			name,
			email,
			string(attempt.Status),
			attempt.TotalScore,
			assessment.TotalMarks,
			attempt.Percentage,
			string(grade.Grade),
			attempt.TotalScore >= float64(assessment.PassMarks),
			attempt.StartedAt.Format(time.RFC3339),
			formatSubmittedAt(attempt.SubmittedAt),
			attempt.TimeSpent,
		}
		for col, value := range row {
			cell, err := excelize.CoordinatesToCellName(col+1, i+2)
			if err != nil {
				return nil, fmt.Errorf("failed to address cell: %w", err)
			}
			if err := f.SetCellValue(exportSheetName, cell, value); err != nil {
				return nil, fmt.Errorf("failed to write row: %w", err)
			}
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to render workbook: %w", err)
	}

	s.logger.Info("Results exported",
		"assessment_id", assessmentID,
		"rows", len(attempts),
		"user_id", userID)

	return buf.Bytes(), nil
}

// loadStudents resolves the distinct students behind a set of attempts.
// Identity lookups that fail leave the raw ID in the export.
func (s *exportService) loadStudents(ctx context.Context, attempts []*models.Attempt) (map[string]*models.User, error) {
	seen := make(map[string]bool, len(attempts))
	ids := make([]string, 0, len(attempts))
	for _, attempt := range attempts {
		if !seen[attempt.StudentID] {
			seen[attempt.StudentID] = true
			ids = append(ids, attempt.StudentID)
		}
	}
	if len(ids) == 0 {
		return map[string]*models.User{}, nil
	}

	users, err := s.repo.User().GetByIDs(ctx, ids)
	if err != nil {
		s.logger.Warn("Failed to resolve student names for export", "error", err)
		return map[string]*models.User{}, nil
	}

	byID := make(map[string]*models.User, len(users))
	for _, user := range users {
		byID[user.ID] = user
	}
	return byID, nil
}

func formatSubmittedAt(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.RFC3339)
}
