package services

import (
	"context"
	"fmt"
	"log/slog"

	"gorm.io/gorm"

	"github.com/studentcbt/exam-service/internal/models"
	"github.com/studentcbt/exam-service/internal/repositories"
)

type dashboardService struct {
	repo    repositories.Repository
	db      *gorm.DB
	logger  *slog.Logger
	student StudentService
}

func NewDashboardService(repo repositories.Repository, db *gorm.DB, logger *slog.Logger, student StudentService) DashboardService {
	return &dashboardService{
		repo:    repo,
		db:      db,
		logger:  logger,
		student: student,
	}
}

func (s *dashboardService) GetStudentDashboard(ctx context.Context, studentID string) (*models.StudentDashboard, error) {
	return s.student.GetDashboard(ctx, studentID)
}

// GetPlatformStats aggregates platform-wide counters for staff users.
func (s *dashboardService) GetPlatformStats(ctx context.Context, userID string) (*PlatformStats, error) {
	allowed, err := s.isStaff(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, NewPermissionError(userID, 0, "platform_stats", "read",
			"platform statistics are restricted to teachers and admins")
	}

	totalAssessments, err := s.repo.Dashboard().GetTotalAssessments(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to count assessments: %w", err)
	}
	totalAttempts, err := s.repo.Dashboard().GetTotalAttempts(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to count attempts: %w", err)
	}
	completionRate, err := s.repo.Dashboard().GetCompletionRate(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to compute completion rate: %w", err)
	}
	averageScore, err := s.repo.Dashboard().GetAverageScore(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to compute average score: %w", err)
	}

	return &PlatformStats{
		TotalAssessments: totalAssessments,
		TotalAttempts:    totalAttempts,
		CompletionRate:   round2(completionRate),
		AverageScore:     round2(averageScore),
	}, nil
}

func (s *dashboardService) isStaff(ctx context.Context, userID string) (bool, error) {
	isTeacher, err := s.repo.User().HasRole(ctx, userID, models.RoleTeacher)
	if err != nil {
		return false, fmt.Errorf("failed to check role: %w", err)
	}
	if isTeacher {
		return true, nil
	}
	isAdmin, err := s.repo.User().HasRole(ctx, userID, models.RoleAdmin)
	if err != nil {
		return false, fmt.Errorf("failed to check role: %w", err)
	}
	return isAdmin, nil
}
