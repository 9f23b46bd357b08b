package services

import (
	"context"
	"time"

	"github.com/studentcbt/exam-service/internal/models"
	"github.com/studentcbt/exam-service/internal/repositories"
)

// ===== REQUEST/RESPONSE DTOs =====

// Request DTOs live in models so the validator and handlers share them.
type CreateAssessmentRequest = models.AssessmentCreateRequest
type UpdateAssessmentRequest = models.AssessmentUpdateRequest
type CreateQuestionRequest = models.QuestionCreateRequest
type RecordAnswerRequest = models.RecordAnswerRequest

type AssessmentResponse struct {
	*models.Assessment
	CanEdit   bool `json:"can_edit"`
	CanDelete bool `json:"can_delete"`
}

type AssessmentListResponse struct {
	Assessments []*AssessmentResponse `json:"assessments"`
	Total       int64                 `json:"total"`
	Page        int                   `json:"page"`
	Size        int                   `json:"size"`
}

// ExamQuestion is the student-facing projection of a question. It never
// carries the correct answer or the explanation.
type ExamQuestion struct {
	ID         uint                `json:"id"`
	Type       models.QuestionType `json:"type"`
	Text       string              `json:"text"`
	Options    []string            `json:"options,omitempty"`
	Marks      int                 `json:"marks"`
	OrderIndex int                 `json:"order_index"`
}

// ExamView is what a student sees when opening an assessment to take it.
type ExamView struct {
	AssessmentID uint           `json:"assessment_id"`
	Title        string         `json:"title"`
	Description  *string        `json:"description"`
	Duration     int            `json:"duration"`
	TotalMarks   int            `json:"total_marks"`
	Questions    []ExamQuestion `json:"questions"`
}

type AttemptResponse struct {
	*models.Attempt
	TimeRemaining int            `json:"time_remaining"` // seconds
	Questions     []ExamQuestion `json:"questions,omitempty"`
}

type AttemptStatusResponse struct {
	AttemptID     uint                 `json:"attempt_id"`
	AssessmentID  uint                 `json:"assessment_id"`
	Status        models.AttemptStatus `json:"status"`
	TimeRemaining int                  `json:"time_remaining"` // seconds
	AnsweredCount int                  `json:"answered_count"`
	QuestionCount int                  `json:"question_count"`
}

// AttemptResultResponse is the graded summary of a finished attempt.
type AttemptResultResponse struct {
	AttemptID     uint                 `json:"attempt_id"`
	AssessmentID  uint                 `json:"assessment_id"`
	Title         string               `json:"title"`
	AttemptStatus models.AttemptStatus `json:"attempt_status"`
	TotalScore    float64              `json:"total_score"`
	TotalMarks    int                  `json:"total_marks"`
	Percentage    float64              `json:"percentage"`
	Grade         models.GradeBand     `json:"grade"`
	GradeStatus   string               `json:"grade_status"`
	Passed        bool                 `json:"passed"`
	SubmittedAt   *time.Time           `json:"submitted_at"`
	TimeSpent     int                  `json:"time_spent"` // seconds
}

// AnswerReview is one line of the per-question result breakdown.
type AnswerReview struct {
	QuestionID    uint                `json:"question_id"`
	QuestionText  string              `json:"question_text"`
	Type          models.QuestionType `json:"type"`
	YourAnswer    string              `json:"your_answer"`
	CorrectAnswer string              `json:"correct_answer"`
	IsCorrect     bool                `json:"is_correct"`
	MarksAwarded  float64             `json:"marks_awarded"`
	Marks         int                 `json:"marks"`
	Explanation   *string             `json:"explanation,omitempty"`
}

type DetailedResultResponse struct {
	AttemptResultResponse
	Answers []AnswerReview `json:"answers"`
}

// AvailableAssessment is one row of a student's exam list.
type AvailableAssessment struct {
	*models.Assessment
	Attempted     bool                  `json:"attempted"`
	AttemptStatus *models.AttemptStatus `json:"attempt_status,omitempty"`
	AttemptID     *uint                 `json:"attempt_id,omitempty"`
}

type PlatformStats struct {
	TotalAssessments int64   `json:"total_assessments"`
	TotalAttempts    int64   `json:"total_attempts"`
	CompletionRate   float64 `json:"completion_rate"`
	AverageScore     float64 `json:"average_score"`
}

// ===== SERVICE INTERFACES =====

type AssessmentService interface {
	// Core CRUD operations
	Create(ctx context.Context, req *CreateAssessmentRequest, creatorID string) (*AssessmentResponse, error)
	GetByID(ctx context.Context, id uint, userID string) (*AssessmentResponse, error)
	GetByIDWithQuestions(ctx context.Context, id uint, userID string) (*AssessmentResponse, error)
	Update(ctx context.Context, id uint, req *UpdateAssessmentRequest, userID string) (*AssessmentResponse, error)
	Delete(ctx context.Context, id uint, userID string) error
	List(ctx context.Context, filters repositories.AssessmentFilters, userID string) (*AssessmentListResponse, error)

	// Status management
	Publish(ctx context.Context, id uint, userID string) error
	Archive(ctx context.Context, id uint, userID string) error

	// Question management (draft assessments only)
	AddQuestion(ctx context.Context, assessmentID uint, req *CreateQuestionRequest, userID string) (*models.Question, error)
	UpdateQuestion(ctx context.Context, assessmentID, questionID uint, req *CreateQuestionRequest, userID string) (*models.Question, error)
	RemoveQuestion(ctx context.Context, assessmentID, questionID uint, userID string) error
	GetQuestions(ctx context.Context, assessmentID uint, userID string) ([]*models.Question, error)

	// Teacher-facing views
	ListAttempts(ctx context.Context, assessmentID uint, filters repositories.AttemptFilters, userID string) ([]*models.Attempt, int64, error)
	GetAnalytics(ctx context.Context, id uint, userID string) (*models.AssessmentAnalytics, error)
}

type AttemptService interface {
	// Start opens a new attempt. Any existing attempt, live or
	// finished, is rejected.
	Start(ctx context.Context, assessmentID uint, studentID string) (*AttemptResponse, error)

	// Resume reloads a live attempt with its questions and remaining
	// time. Overdue attempts are timed out instead.
	Resume(ctx context.Context, attemptID uint, studentID string) (*AttemptResponse, error)

	// RecordAnswer grades and upserts a single answer while the attempt
	// is in progress.
	RecordAnswer(ctx context.Context, attemptID uint, req *RecordAnswerRequest, studentID string) error

	GetStatus(ctx context.Context, attemptID uint, studentID string) (*AttemptStatusResponse, error)
	Submit(ctx context.Context, attemptID uint, studentID string) (*AttemptResultResponse, error)

	GetByID(ctx context.Context, attemptID uint, userID string) (*AttemptResponse, error)
	GetByStudent(ctx context.Context, studentID string, filters repositories.AttemptFilters) ([]*models.Attempt, int64, error)
}

// GradingService owns answer scoring, grade bands and analytics.
type GradingService interface {
	// ScoreAnswer grades a raw submission against a question. Returns
	// the normalized answer, correctness and marks awarded, or
	// ErrInvalidQuestionType for a type the engine cannot grade.
	ScoreAnswer(question *models.Question, rawAnswer string) (normalized string, isCorrect bool, marks float64, err error)

	// FinalizeAttempt transitions an in progress attempt to the given
	// terminal status, computing the total score and percentage. The
	// returned bool is false when another writer finalized it first.
	FinalizeAttempt(ctx context.Context, attemptID uint, status models.AttemptStatus, at time.Time) (bool, error)

	// GradeFor maps a percentage onto a grade band given the pass
	// threshold as a percentage.
	GradeFor(percentage, passPercentage float64) models.GradeResult

	BuildAnalytics(ctx context.Context, assessmentID uint) (*models.AssessmentAnalytics, error)
}

type StudentService interface {
	GetAvailableAssessments(ctx context.Context, studentID string) ([]*AvailableAssessment, error)
	GetExamView(ctx context.Context, assessmentID uint, studentID string) (*ExamView, error)
	GetResults(ctx context.Context, studentID string, filters repositories.AttemptFilters) ([]*AttemptResultResponse, int64, error)
	GetDetailedResult(ctx context.Context, attemptID uint, studentID string) (*DetailedResultResponse, error)
	GetDashboard(ctx context.Context, studentID string) (*models.StudentDashboard, error)
}

type DashboardService interface {
	GetStudentDashboard(ctx context.Context, studentID string) (*models.StudentDashboard, error)
	GetPlatformStats(ctx context.Context, userID string) (*PlatformStats, error)
}

// ExportService produces downloadable reports.
type ExportService interface {
	// ExportResults renders an assessment's attempt results as an xlsx
	// workbook.
	ExportResults(ctx context.Context, assessmentID uint, userID string) ([]byte, error)
}

// ===== SERVICE MANAGER =====

type ServiceManager interface {
	Assessment() AssessmentService
	Attempt() AttemptService
	Grading() GradingService
	Student() StudentService
	Dashboard() DashboardService
	Export() ExportService

	// Health and lifecycle
	Initialize(ctx context.Context) error
	HealthCheck(ctx context.Context) error
	Shutdown(ctx context.Context) error
}
