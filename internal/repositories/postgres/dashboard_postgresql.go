package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/studentcbt/exam-service/internal/models"
	"github.com/studentcbt/exam-service/internal/repositories"
)

type DashboardPostgreSQL struct {
	db *gorm.DB
}

func NewDashboardPostgreSQL(db *gorm.DB) repositories.DashboardRepository {
	return &DashboardPostgreSQL{db: db}
}

func (d *DashboardPostgreSQL) GetStudentStats(ctx context.Context, tx *gorm.DB, studentID string, classID uint) (*repositories.StudentDashboardStats, error) {
	db := d.getDB(tx)

	var totalAssessments int64
	if err := db.WithContext(ctx).
		Model(&models.Assessment{}).
		Where("class_id = ? AND status = ?", classID, models.StatusPublished).
		Count(&totalAssessments).Error; err != nil {
		return nil, fmt.Errorf("failed to count class assessments: %w", err)
	}

	var completed int64
	if err := db.WithContext(ctx).
		Model(&models.Attempt{}).
		Where("student_id = ? AND status IN ?", studentID,
			[]models.AttemptStatus{models.AttemptSubmitted, models.AttemptTimedOut}).
		Count(&completed).Error; err != nil {
		return nil, fmt.Errorf("failed to count completed attempts: %w", err)
	}

	var avgPercentage float64
	if err := db.WithContext(ctx).
		Model(&models.Attempt{}).
		Where("student_id = ? AND status IN ?", studentID,
			[]models.AttemptStatus{models.AttemptSubmitted, models.AttemptTimedOut}).
		Select("COALESCE(AVG(percentage), 0)").
		Scan(&avgPercentage).Error; err != nil {
		return nil, fmt.Errorf("failed to average attempt percentages: %w", err)
	}

	return &repositories.StudentDashboardStats{
		TotalAssessments:     int(totalAssessments),
		CompletedAssessments: int(completed),
		AveragePercentage:    avgPercentage,
	}, nil
}

func (d *DashboardPostgreSQL) GetTotalAssessments(ctx context.Context, tx *gorm.DB) (int64, error) {
	db := d.getDB(tx)
	var count int64
	err := db.WithContext(ctx).Model(&models.Assessment{}).Count(&count).Error
	return count, err
}

func (d *DashboardPostgreSQL) GetTotalAttempts(ctx context.Context, tx *gorm.DB) (int64, error) {
	db := d.getDB(tx)
	var count int64
	err := db.WithContext(ctx).Model(&models.Attempt{}).Count(&count).Error
	return count, err
}

func (d *DashboardPostgreSQL) GetCompletionRate(ctx context.Context, tx *gorm.DB) (float64, error) {
	db := d.getDB(tx)

	var total, completed int64
	if err := db.WithContext(ctx).Model(&models.Attempt{}).Count(&total).Error; err != nil {
		return 0, err
	}
	if total == 0 {
		return 0, nil
	}
	if err := db.WithContext(ctx).
		Model(&models.Attempt{}).
		Where("status IN ?", []models.AttemptStatus{models.AttemptSubmitted, models.AttemptTimedOut}).
		Count(&completed).Error; err != nil {
		return 0, err
	}

	return float64(completed) / float64(total) * 100, nil
}

func (d *DashboardPostgreSQL) GetAverageScore(ctx context.Context, tx *gorm.DB) (float64, error) {
	db := d.getDB(tx)
	var avg float64
	err := db.WithContext(ctx).
		Model(&models.Attempt{}).
		Where("status IN ?", []models.AttemptStatus{models.AttemptSubmitted, models.AttemptTimedOut}).
		Select("COALESCE(AVG(percentage), 0)").
		Scan(&avg).Error
	return avg, err
}

func (d *DashboardPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return d.db
}
