package models

import (
	"time"

	"gorm.io/gorm"
)

type AssessmentStatus string

const (
	StatusDraft     AssessmentStatus = "Draft"
	StatusPublished AssessmentStatus = "Published"
	StatusArchived  AssessmentStatus = "Archived"
)

type Assessment struct {
	ID          uint             `json:"id" gorm:"primaryKey"`
	Title       string           `json:"title" gorm:"not null;size:200;index" validate:"required,min=1,max=200"`
	Description *string          `json:"description" gorm:"type:text" validate:"omitempty,max=1000"`
	Duration    int              `json:"duration" gorm:"not null" validate:"required,min=1,max=300"` // minutes
	Status      AssessmentStatus `json:"status" gorm:"default:Draft;index" validate:"omitempty,oneof=Draft Published Archived"`

	// TotalMarks is frozen when the assessment is published.
	TotalMarks int `json:"total_marks"`
	PassMarks  int `json:"pass_marks" gorm:"not null" validate:"min=0"`

	// Availability window. Nil means unbounded on that side.
	StartTime *time.Time `json:"start_time"`
	EndTime   *time.Time `json:"end_time"`

	ShowResults bool `json:"show_results" gorm:"default:true"`

	ClassID   uint `json:"class_id" gorm:"not null;index"`
	SubjectID uint `json:"subject_id" gorm:"not null;index"`

	CreatedBy string         `json:"created_by" gorm:"not null;index;size:255"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	// Relations
	Questions []Question        `json:"questions,omitempty" gorm:"foreignKey:AssessmentID;constraint:OnDelete:CASCADE"`
	Attempts  []Attempt         `json:"attempts,omitempty" gorm:"foreignKey:AssessmentID"`

	// Computed fields (not stored)
	QuestionsCount int `json:"questions_count" gorm:"-"`
}

func (Assessment) TableName() string {
	return "assessments"
}

// IsOpenAt reports whether the availability window admits t.
// Both bounds are inclusive.
func (a *Assessment) IsOpenAt(t time.Time) bool {
	if a.StartTime != nil && t.Before(*a.StartTime) {
		return false
	}
	if a.EndTime != nil && t.After(*a.EndTime) {
		return false
	}
	return true
}
