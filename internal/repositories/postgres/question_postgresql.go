package postgres

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/studentcbt/exam-service/internal/cache"
	"github.com/studentcbt/exam-service/internal/models"
	"github.com/studentcbt/exam-service/internal/repositories"
)

type QuestionPostgreSQL struct {
	db           *gorm.DB
	helpers      *SharedHelpers
	cacheManager *cache.CacheManager
}

func NewQuestionPostgreSQL(db *gorm.DB, redisClient *redis.Client) repositories.QuestionRepository {
	return &QuestionPostgreSQL{
		db:           db,
		helpers:      NewSharedHelpers(db),
		cacheManager: cache.NewCacheManager(redisClient),
	}
}

func (r *QuestionPostgreSQL) Create(ctx context.Context, tx *gorm.DB, question *models.Question) error {
	db := r.getDB(tx)
	if err := db.WithContext(ctx).Create(question).Error; err != nil {
		return fmt.Errorf("failed to create question: %w", err)
	}

	r.invalidateAssessmentQuestions(ctx, question.AssessmentID)
	return nil
}

func (r *QuestionPostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Question, error) {
	db := r.getDB(tx)
	var question models.Question
	if err := db.WithContext(ctx).First(&question, id).Error; err != nil {
		return nil, err
	}
	return &question, nil
}

func (r *QuestionPostgreSQL) Update(ctx context.Context, tx *gorm.DB, question *models.Question) error {
	db := r.getDB(tx)
	if err := db.WithContext(ctx).Save(question).Error; err != nil {
		return fmt.Errorf("failed to update question: %w", err)
	}

	r.invalidateAssessmentQuestions(ctx, question.AssessmentID)
	return nil
}

func (r *QuestionPostgreSQL) Delete(ctx context.Context, tx *gorm.DB, id uint) error {
	db := r.getDB(tx)

	question, err := r.GetByID(ctx, tx, id)
	if err != nil {
		return err
	}

	if err := db.WithContext(ctx).Delete(&models.Question{}, id).Error; err != nil {
		return fmt.Errorf("failed to delete question: %w", err)
	}

	r.invalidateAssessmentQuestions(ctx, question.AssessmentID)
	return nil
}

func (r *QuestionPostgreSQL) GetByAssessment(ctx context.Context, tx *gorm.DB, assessmentID uint) ([]*models.Question, error) {
	db := r.getDB(tx)

	fetch := func() (interface{}, error) {
		var dbQuestions []*models.Question
		if err := db.WithContext(ctx).
			Where("assessment_id = ?", assessmentID).
			Order("order_index ASC").
			Find(&dbQuestions).Error; err != nil {
			return nil, fmt.Errorf("failed to get questions by assessment: %w", err)
		}
		return dbQuestions, nil
	}

	if tx != nil {
		result, err := fetch()
		if err != nil {
			return nil, err
		}
		return result.([]*models.Question), nil
	}

	cacheKey := fmt.Sprintf("assessment:%d:all", assessmentID)
	var questions []*models.Question
	err := r.cacheManager.Question.CacheOrExecute(ctx, cacheKey, &questions, cache.QuestionCacheConfig.TTL, fetch)
	return questions, err
}

func (r *QuestionPostgreSQL) GetByAssessmentAndID(ctx context.Context, tx *gorm.DB, assessmentID, questionID uint) (*models.Question, error) {
	db := r.getDB(tx)
	var question models.Question
	if err := db.WithContext(ctx).
		Where("assessment_id = ? AND id = ?", assessmentID, questionID).
		First(&question).Error; err != nil {
		return nil, err
	}
	return &question, nil
}

func (r *QuestionPostgreSQL) CountByAssessment(ctx context.Context, tx *gorm.DB, assessmentID uint) (int, error) {
	db := r.getDB(tx)
	var count int64
	if err := db.WithContext(ctx).
		Model(&models.Question{}).
		Where("assessment_id = ?", assessmentID).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return int(count), nil
}

func (r *QuestionPostgreSQL) SumMarks(ctx context.Context, tx *gorm.DB, assessmentID uint) (int, error) {
	db := r.getDB(tx)
	var total int
	if err := db.WithContext(ctx).
		Model(&models.Question{}).
		Where("assessment_id = ?", assessmentID).
		Select("COALESCE(SUM(marks), 0)").
		Scan(&total).Error; err != nil {
		return 0, fmt.Errorf("failed to sum question marks: %w", err)
	}
	return total, nil
}

func (r *QuestionPostgreSQL) NextOrderIndex(ctx context.Context, tx *gorm.DB, assessmentID uint) (int, error) {
	db := r.getDB(tx)
	var maxIndex int
	if err := db.WithContext(ctx).
		Model(&models.Question{}).
		Where("assessment_id = ?", assessmentID).
		Select("COALESCE(MAX(order_index), -1)").
		Scan(&maxIndex).Error; err != nil {
		return 0, err
	}
	return maxIndex + 1, nil
}

func (r *QuestionPostgreSQL) invalidateAssessmentQuestions(ctx context.Context, assessmentID uint) {
	cache.SafeInvalidatePattern(ctx, r.cacheManager.Question, fmt.Sprintf("assessment:%d:*", assessmentID))
}

func (r *QuestionPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}
