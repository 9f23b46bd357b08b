package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/studentcbt/exam-service/internal/models"
)

const (
	EventAttemptSubmitted    = "attempt.submitted"
	EventAttemptTimedOut     = "attempt.timed_out"
	EventAssessmentPublished = "assessment.published"
)

const (
	eventSource  = "exam-service"
	eventVersion = "1.0"
)

// Event is the envelope every published message is wrapped in.
type Event struct {
	ID        string      `json:"id"`
	Type      string      `json:"type"`
	Source    string      `json:"source"`
	Version   string      `json:"version"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// NewEvent builds an envelope around the given payload.
func NewEvent(eventType string, data interface{}) *Event {
	return &Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		Source:    eventSource,
		Version:   eventVersion,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
}

// AttemptCompletedEvent is emitted when an attempt reaches a terminal
// state, either by submission or by expiry.
type AttemptCompletedEvent struct {
	AttemptID    uint                 `json:"attempt_id"`
	AssessmentID uint                 `json:"assessment_id"`
	StudentID    string               `json:"student_id"`
	Status       models.AttemptStatus `json:"status"`
	TotalScore   float64              `json:"total_score"`
	Percentage   float64              `json:"percentage"`
	Grade        string               `json:"grade"`
	Passed       bool                 `json:"passed"`
	SubmittedAt  time.Time            `json:"submitted_at"`
}

// AssessmentPublishedEvent is emitted when a draft goes live for a class.
type AssessmentPublishedEvent struct {
	AssessmentID uint       `json:"assessment_id"`
	Title        string     `json:"title"`
	ClassID      uint       `json:"class_id"`
	SubjectID    uint       `json:"subject_id"`
	TotalMarks   int        `json:"total_marks"`
	Duration     int        `json:"duration"`
	StartTime    *time.Time `json:"start_time"`
	EndTime      *time.Time `json:"end_time"`
}
