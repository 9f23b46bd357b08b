package models

import (
	"time"
)

type AssessmentCreateRequest struct {
	Title       string     `json:"title" validate:"required,min=1,max=200"`
	Description *string    `json:"description" validate:"omitempty,max=1000"`
	Duration    int        `json:"duration" validate:"required,min=1,max=300"`
	PassMarks   int        `json:"pass_marks" validate:"min=0"`
	StartTime   *time.Time `json:"start_time"`
	EndTime     *time.Time `json:"end_time"`
	ShowResults *bool      `json:"show_results"`
	ClassID     uint       `json:"class_id" validate:"required"`
	SubjectID   uint       `json:"subject_id" validate:"required"`
}

type AssessmentUpdateRequest struct {
	Title       *string    `json:"title" validate:"omitempty,min=1,max=200"`
	Description *string    `json:"description" validate:"omitempty,max=1000"`
	Duration    *int       `json:"duration" validate:"omitempty,min=1,max=300"`
	PassMarks   *int       `json:"pass_marks" validate:"omitempty,min=0"`
	StartTime   *time.Time `json:"start_time"`
	EndTime     *time.Time `json:"end_time"`
	ShowResults *bool      `json:"show_results"`
}

type QuestionCreateRequest struct {
	Type          QuestionType `json:"type" validate:"required,oneof=multiple_choice true_false fill_blank"`
	Text          string       `json:"text" validate:"required"`
	Options       []string     `json:"options" validate:"omitempty,max=10,dive,required"`
	CorrectAnswer string       `json:"correct_answer" validate:"required"`
	Marks         int          `json:"marks" validate:"required,min=1"`
	OrderIndex    *int         `json:"order_index" validate:"omitempty,min=0"`
	Explanation   *string      `json:"explanation" validate:"omitempty,max=2000"`
}

type RecordAnswerRequest struct {
	QuestionID uint   `json:"question_id" validate:"required"`
	Answer     string `json:"answer" validate:"required,max=2000"`
}

// ===== PAGINATION & FILTERING =====

type ListAssessmentsParams struct {
	Page      int              `json:"page" validate:"min=0"`
	Size      int              `json:"size" validate:"min=1,max=100"`
	Status    AssessmentStatus `json:"status"`
	ClassID   *uint            `json:"class_id"`
	SubjectID *uint            `json:"subject_id"`
	CreatedBy *string          `json:"created_by"`
	Search    string           `json:"search"`
	SortBy    string           `json:"sort_by"`
	SortDir   string           `json:"sort_dir" validate:"omitempty,oneof=asc desc"`
}

type ListAttemptsParams struct {
	Page         int           `json:"page" validate:"min=0"`
	Size         int           `json:"size" validate:"min=1,max=100"`
	AssessmentID *uint         `json:"assessment_id"`
	StudentID    *string       `json:"student_id"`
	Status       AttemptStatus `json:"status"`
	SortBy       string        `json:"sort_by"`
	SortDir      string        `json:"sort_dir" validate:"omitempty,oneof=asc desc"`
}

type PaginatedResponse struct {
	Content       interface{} `json:"content"`
	TotalElements int64       `json:"total_elements"`
	TotalPages    int         `json:"total_pages"`
	Size          int         `json:"size"`
	Page          int         `json:"page"`
}

// ===== ANALYTICS DTOs =====

type GradeBand string

const (
	GradeAPlus GradeBand = "A+"
	GradeA     GradeBand = "A"
	GradeBPlus GradeBand = "B+"
	GradeB     GradeBand = "B"
	GradeC     GradeBand = "C"
	GradeF     GradeBand = "F"
)

type GradeResult struct {
	Grade  GradeBand `json:"grade"`
	Status string    `json:"status"`
}

type AssessmentAnalytics struct {
	AssessmentID      uint              `json:"assessment_id"`
	TotalAttempts     int               `json:"total_attempts"`
	AverageScore      float64           `json:"average_score"`
	AveragePercentage float64           `json:"average_percentage"`
	HighestScore      float64           `json:"highest_score"`
	LowestScore       float64           `json:"lowest_score"`
	PassRate          float64           `json:"pass_rate"`
	GradeDistribution map[GradeBand]int `json:"grade_distribution"`
	QuestionStats     []QuestionStats   `json:"question_stats"`
}

type QuestionStats struct {
	QuestionID   uint            `json:"question_id"`
	QuestionText string          `json:"question_text"`
	Type         QuestionType    `json:"type"`
	Attempts     int             `json:"attempts"`
	CorrectCount int             `json:"correct_count"`
	CorrectRate  float64         `json:"correct_rate"`
	Difficulty   DifficultyLevel `json:"difficulty"`
}

type StudentDashboard struct {
	TotalAssessments     int     `json:"total_assessments"`
	CompletedAssessments int     `json:"completed_assessments"`
	PendingAssessments   int     `json:"pending_assessments"`
	AveragePercentage    float64 `json:"average_percentage"`
}

// ===== ERROR RESPONSES =====

type ErrorResponse struct {
	Error     string      `json:"error"`
	Message   string      `json:"message"`
	Code      string      `json:"code"`
	Details   interface{} `json:"details,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	Path      string      `json:"path"`
}

type SuccessResponse struct {
	Message   string      `json:"message"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}
