package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/studentcbt/exam-service/internal/cache"
	"github.com/studentcbt/exam-service/internal/models"
	"github.com/studentcbt/exam-service/internal/repositories"
)

type AttemptPostgreSQL struct {
	db           *gorm.DB
	helpers      *SharedHelpers
	cacheManager *cache.CacheManager
}

func NewAttemptPostgreSQL(db *gorm.DB, redisClient *redis.Client) repositories.AttemptRepository {
	return &AttemptPostgreSQL{
		db:           db,
		helpers:      NewSharedHelpers(db),
		cacheManager: cache.NewCacheManager(redisClient),
	}
}

func (a *AttemptPostgreSQL) Create(ctx context.Context, tx *gorm.DB, attempt *models.Attempt) error {
	db := a.getDB(tx)
	// The unique index on (student_id, assessment_id) is the final guard
	// against a double start.
	return db.WithContext(ctx).Create(attempt).Error
}

func (a *AttemptPostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Attempt, error) {
	db := a.getDB(tx)
	var attempt models.Attempt
	if err := db.WithContext(ctx).First(&attempt, id).Error; err != nil {
		return nil, err
	}
	return &attempt, nil
}

func (a *AttemptPostgreSQL) GetByIDWithAnswers(ctx context.Context, tx *gorm.DB, id uint) (*models.Attempt, error) {
	db := a.getDB(tx)
	var attempt models.Attempt
	if err := db.WithContext(ctx).
		Preload("Assessment").
		Preload("Answers").
		Preload("Answers.Question").
		First(&attempt, id).Error; err != nil {
		return nil, err
	}
	return &attempt, nil
}

func (a *AttemptPostgreSQL) GetByStudentAndAssessment(ctx context.Context, tx *gorm.DB, studentID string, assessmentID uint) (*models.Attempt, error) {
	db := a.getDB(tx)
	var attempt models.Attempt
	if err := db.WithContext(ctx).
		Where("student_id = ? AND assessment_id = ?", studentID, assessmentID).
		First(&attempt).Error; err != nil {
		return nil, err
	}
	return &attempt, nil
}

func (a *AttemptPostgreSQL) Update(ctx context.Context, tx *gorm.DB, attempt *models.Attempt) error {
	db := a.getDB(tx)
	if err := db.WithContext(ctx).Save(attempt).Error; err != nil {
		return fmt.Errorf("failed to update attempt: %w", err)
	}

	cache.InvalidateAttemptCache(ctx, a.cacheManager, attempt.ID, attempt.AssessmentID)
	return nil
}

// FinalizeIfInProgress performs the terminal transition as a conditional
// update. Concurrent finalizers race on the status predicate; exactly one
// sees RowsAffected == 1.
func (a *AttemptPostgreSQL) FinalizeIfInProgress(ctx context.Context, tx *gorm.DB, id uint, final *models.Attempt) (bool, error) {
	db := a.getDB(tx)

	result := db.WithContext(ctx).
		Model(&models.Attempt{}).
		Where("id = ? AND status = ?", id, models.AttemptInProgress).
		Updates(map[string]interface{}{
			"status":       final.Status,
			"submitted_at": final.SubmittedAt,
			"time_spent":   final.TimeSpent,
			"total_score":  final.TotalScore,
			"percentage":   final.Percentage,
		})
	if result.Error != nil {
		return false, fmt.Errorf("failed to finalize attempt: %w", result.Error)
	}

	if result.RowsAffected == 0 {
		return false, nil
	}

	cache.InvalidateAttemptCache(ctx, a.cacheManager, id, final.AssessmentID)
	return true, nil
}

func (a *AttemptPostgreSQL) ListByAssessment(ctx context.Context, tx *gorm.DB, assessmentID uint, filters repositories.AttemptFilters) ([]*models.Attempt, int64, error) {
	db := a.getDB(tx)
	var attempts []*models.Attempt
	var total int64

	query := db.WithContext(ctx).Model(&models.Attempt{}).Where("assessment_id = ?", assessmentID)
	query = a.helpers.ApplyAttemptFilters(query, filters)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = a.helpers.ApplyPaginationAndSort(query, filters.SortBy, filters.SortOrder, filters.Limit, filters.Offset)

	if err := query.Find(&attempts).Error; err != nil {
		return nil, 0, err
	}

	return attempts, total, nil
}

func (a *AttemptPostgreSQL) ListByStudent(ctx context.Context, tx *gorm.DB, studentID string, filters repositories.AttemptFilters) ([]*models.Attempt, int64, error) {
	db := a.getDB(tx)
	var attempts []*models.Attempt
	var total int64

	query := db.WithContext(ctx).Model(&models.Attempt{}).Where("student_id = ?", studentID)
	query = a.helpers.ApplyAttemptFilters(query, filters)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = a.helpers.ApplyPaginationAndSort(query, filters.SortBy, filters.SortOrder, filters.Limit, filters.Offset)

	if err := query.Preload("Assessment").Find(&attempts).Error; err != nil {
		return nil, 0, err
	}

	return attempts, total, nil
}

func (a *AttemptPostgreSQL) GetCompletedByAssessment(ctx context.Context, tx *gorm.DB, assessmentID uint) ([]*models.Attempt, error) {
	db := a.getDB(tx)
	var attempts []*models.Attempt
	if err := db.WithContext(ctx).
		Where("assessment_id = ? AND status IN ?", assessmentID,
			[]models.AttemptStatus{models.AttemptSubmitted, models.AttemptTimedOut}).
		Find(&attempts).Error; err != nil {
		return nil, fmt.Errorf("failed to get completed attempts: %w", err)
	}
	return attempts, nil
}

func (a *AttemptPostgreSQL) GetStats(ctx context.Context, tx *gorm.DB, assessmentID uint, passMarks int) (*repositories.AttemptStats, error) {
	db := a.getDB(tx)

	totalAttempts, err := a.helpers.CountAttempts(ctx, assessmentID)
	if err != nil {
		return nil, err
	}

	statusBreakdown := make(map[models.AttemptStatus]int)
	statuses := []models.AttemptStatus{models.AttemptInProgress, models.AttemptSubmitted, models.AttemptTimedOut}
	for _, status := range statuses {
		count, err := a.helpers.CountAttemptsByStatus(ctx, assessmentID, status)
		if err != nil {
			return nil, err
		}
		statusBreakdown[status] = int(count)
	}

	var agg struct {
		AvgScore      float64
		AvgPercentage float64
		Completed     int64
		Passed        int64
	}
	if err := db.WithContext(ctx).
		Model(&models.Attempt{}).
		Where("assessment_id = ? AND status IN ?", assessmentID,
			[]models.AttemptStatus{models.AttemptSubmitted, models.AttemptTimedOut}).
		Select("COALESCE(AVG(total_score), 0) as avg_score, COALESCE(AVG(percentage), 0) as avg_percentage, COUNT(*) as completed, SUM(CASE WHEN total_score >= ? THEN 1 ELSE 0 END) as passed", passMarks).
		Scan(&agg).Error; err != nil {
		return nil, fmt.Errorf("failed to aggregate attempt stats: %w", err)
	}

	passRate := float64(0)
	if agg.Completed > 0 {
		passRate = float64(agg.Passed) / float64(agg.Completed) * 100
	}

	return &repositories.AttemptStats{
		TotalAttempts:     int(totalAttempts),
		CompletedAttempts: int(agg.Completed),
		StatusBreakdown:   statusBreakdown,
		AverageScore:      agg.AvgScore,
		AveragePercentage: agg.AvgPercentage,
		PassRate:          passRate,
	}, nil
}

func (a *AttemptPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return a.db
}

// ===== ANSWER REPOSITORY IMPLEMENTATION =====

type AnswerPostgreSQL struct {
	db           *gorm.DB
	helpers      *SharedHelpers
	cacheManager *cache.CacheManager
}

func NewAnswerPostgreSQL(db *gorm.DB, redisClient *redis.Client) repositories.AnswerRepository {
	return &AnswerPostgreSQL{
		db:           db,
		helpers:      NewSharedHelpers(db),
		cacheManager: cache.NewCacheManager(redisClient),
	}
}

// Upsert writes the answer through the (attempt_id, question_id) unique
// index; a re-answer replaces the previous row in place.
func (ar *AnswerPostgreSQL) Upsert(ctx context.Context, tx *gorm.DB, answer *models.Answer) error {
	db := ar.getDB(tx)
	if err := db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "attempt_id"}, {Name: "question_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"answer", "is_correct", "marks_awarded", "updated_at"}),
		}).
		Create(answer).Error; err != nil {
		return fmt.Errorf("failed to upsert answer: %w", err)
	}

	ar.cacheManager.Attempt.Delete(ctx,
		fmt.Sprintf("id:%d", answer.AttemptID),
		fmt.Sprintf("status:%d", answer.AttemptID),
	)

	return nil
}

func (ar *AnswerPostgreSQL) GetByAttempt(ctx context.Context, tx *gorm.DB, attemptID uint) ([]*models.Answer, error) {
	db := ar.getDB(tx)
	var answers []*models.Answer
	if err := db.WithContext(ctx).
		Where("attempt_id = ?", attemptID).
		Order("question_id ASC").
		Find(&answers).Error; err != nil {
		return nil, fmt.Errorf("failed to get answers by attempt: %w", err)
	}
	return answers, nil
}

func (ar *AnswerPostgreSQL) GetByAttemptAndQuestion(ctx context.Context, tx *gorm.DB, attemptID, questionID uint) (*models.Answer, error) {
	db := ar.getDB(tx)
	var answer models.Answer
	if err := db.WithContext(ctx).
		Where("attempt_id = ? AND question_id = ?", attemptID, questionID).
		First(&answer).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, gorm.ErrRecordNotFound
		}
		return nil, fmt.Errorf("failed to get answer: %w", err)
	}
	return &answer, nil
}

func (ar *AnswerPostgreSQL) CountByAttempt(ctx context.Context, tx *gorm.DB, attemptID uint) (int, error) {
	db := ar.getDB(tx)
	var count int64
	if err := db.WithContext(ctx).
		Model(&models.Answer{}).
		Where("attempt_id = ?", attemptID).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count answers: %w", err)
	}
	return int(count), nil
}

func (ar *AnswerPostgreSQL) GetCompletedByAssessment(ctx context.Context, tx *gorm.DB, assessmentID uint) ([]*models.Answer, error) {
	db := ar.getDB(tx)
	var answers []*models.Answer
	if err := db.WithContext(ctx).
		Joins("JOIN attempts ON attempts.id = answers.attempt_id").
		Where("attempts.assessment_id = ? AND attempts.status IN ?", assessmentID,
			[]models.AttemptStatus{models.AttemptSubmitted, models.AttemptTimedOut}).
		Find(&answers).Error; err != nil {
		return nil, fmt.Errorf("failed to get answers for assessment: %w", err)
	}
	return answers, nil
}

func (ar *AnswerPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return ar.db
}
