package repositories

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/studentcbt/exam-service/internal/models"
)

// ===== SHARED FILTER STRUCTS =====

type AssessmentFilters struct {
	Status    *models.AssessmentStatus `json:"status"`
	ClassID   *uint                    `json:"class_id"`
	SubjectID *uint                    `json:"subject_id"`
	CreatedBy *string                  `json:"created_by"`
	Search    string                   `json:"search"`
	Limit     int                      `json:"limit"`
	Offset    int                      `json:"offset"`
	SortBy    string                   `json:"sort_by"`    // "created_at", "title", "start_time"
	SortOrder string                   `json:"sort_order"` // "asc", "desc"
}

type AttemptFilters struct {
	Status    *models.AttemptStatus `json:"status"`
	StudentID *string               `json:"student_id"`
	Limit     int                   `json:"limit"`
	Offset    int                   `json:"offset"`
	SortBy    string                `json:"sort_by"`
	SortOrder string                `json:"sort_order"`
}

// ===== STATISTICS STRUCTS =====

type AttemptStats struct {
	TotalAttempts     int                          `json:"total_attempts"`
	CompletedAttempts int                          `json:"completed_attempts"`
	StatusBreakdown   map[models.AttemptStatus]int `json:"status_breakdown"`
	AverageScore      float64                      `json:"average_score"`
	AveragePercentage float64                      `json:"average_percentage"`
	PassRate          float64                      `json:"pass_rate"`
}

type StudentDashboardStats struct {
	TotalAssessments     int     `json:"total_assessments"`
	CompletedAssessments int     `json:"completed_assessments"`
	AveragePercentage    float64 `json:"average_percentage"`
}

// ===== REPOSITORY INTERFACES =====

// AssessmentRepository covers assessment persistence. Every method accepts
// an optional transaction handle; nil means the shared connection.
type AssessmentRepository interface {
	Create(ctx context.Context, tx *gorm.DB, assessment *models.Assessment) error
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Assessment, error)
	GetByIDWithQuestions(ctx context.Context, tx *gorm.DB, id uint) (*models.Assessment, error)
	Update(ctx context.Context, tx *gorm.DB, assessment *models.Assessment) error
	Delete(ctx context.Context, tx *gorm.DB, id uint) error

	List(ctx context.Context, tx *gorm.DB, filters AssessmentFilters) ([]*models.Assessment, int64, error)

	// GetPublishedForClass returns published assessments whose availability
	// window admits now for the given class.
	GetPublishedForClass(ctx context.Context, tx *gorm.DB, classID uint, now time.Time) ([]*models.Assessment, error)

	HasAttempts(ctx context.Context, tx *gorm.DB, id uint) (bool, error)
}

type QuestionRepository interface {
	Create(ctx context.Context, tx *gorm.DB, question *models.Question) error
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Question, error)
	Update(ctx context.Context, tx *gorm.DB, question *models.Question) error
	Delete(ctx context.Context, tx *gorm.DB, id uint) error

	// GetByAssessment returns questions ordered by order index.
	GetByAssessment(ctx context.Context, tx *gorm.DB, assessmentID uint) ([]*models.Question, error)
	GetByAssessmentAndID(ctx context.Context, tx *gorm.DB, assessmentID, questionID uint) (*models.Question, error)
	CountByAssessment(ctx context.Context, tx *gorm.DB, assessmentID uint) (int, error)
	SumMarks(ctx context.Context, tx *gorm.DB, assessmentID uint) (int, error)
	NextOrderIndex(ctx context.Context, tx *gorm.DB, assessmentID uint) (int, error)
}

type AttemptRepository interface {
	Create(ctx context.Context, tx *gorm.DB, attempt *models.Attempt) error
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Attempt, error)
	GetByIDWithAnswers(ctx context.Context, tx *gorm.DB, id uint) (*models.Attempt, error)
	GetByStudentAndAssessment(ctx context.Context, tx *gorm.DB, studentID string, assessmentID uint) (*models.Attempt, error)
	Update(ctx context.Context, tx *gorm.DB, attempt *models.Attempt) error

	// FinalizeIfInProgress applies a terminal transition with a conditional
	// update on status = in_progress. Returns false when another writer won
	// the race and the row was left untouched.
	FinalizeIfInProgress(ctx context.Context, tx *gorm.DB, id uint, final *models.Attempt) (bool, error)

	ListByAssessment(ctx context.Context, tx *gorm.DB, assessmentID uint, filters AttemptFilters) ([]*models.Attempt, int64, error)
	ListByStudent(ctx context.Context, tx *gorm.DB, studentID string, filters AttemptFilters) ([]*models.Attempt, int64, error)

	// GetCompletedByAssessment returns submitted and timed out attempts only.
	GetCompletedByAssessment(ctx context.Context, tx *gorm.DB, assessmentID uint) ([]*models.Attempt, error)

	GetStats(ctx context.Context, tx *gorm.DB, assessmentID uint, passMarks int) (*AttemptStats, error)
}

type AnswerRepository interface {
	// Upsert inserts or replaces the answer keyed by (attempt, question).
	Upsert(ctx context.Context, tx *gorm.DB, answer *models.Answer) error

	GetByAttempt(ctx context.Context, tx *gorm.DB, attemptID uint) ([]*models.Answer, error)
	GetByAttemptAndQuestion(ctx context.Context, tx *gorm.DB, attemptID, questionID uint) (*models.Answer, error)
	CountByAttempt(ctx context.Context, tx *gorm.DB, attemptID uint) (int, error)

	// GetCompletedByAssessment returns answers belonging to completed
	// attempts of the assessment, for per-question analytics.
	GetCompletedByAssessment(ctx context.Context, tx *gorm.DB, assessmentID uint) ([]*models.Answer, error)
}

// DashboardRepository serves aggregate counters for student and teacher
// dashboards.
type DashboardRepository interface {
	GetStudentStats(ctx context.Context, tx *gorm.DB, studentID string, classID uint) (*StudentDashboardStats, error)

	GetTotalAssessments(ctx context.Context, tx *gorm.DB) (int64, error)
	GetTotalAttempts(ctx context.Context, tx *gorm.DB) (int64, error)
	GetCompletionRate(ctx context.Context, tx *gorm.DB) (float64, error)
	GetAverageScore(ctx context.Context, tx *gorm.DB) (float64, error)
}
