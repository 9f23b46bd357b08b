package models

import (
	"encoding/json"
	"strings"
	"time"

	"gorm.io/datatypes"
)

type QuestionType string

const (
	MultipleChoice QuestionType = "multiple_choice"
	TrueFalse      QuestionType = "true_false"
	FillBlank      QuestionType = "fill_blank"
)

// FillBlankSeparator delimits accepted answer variants in CorrectAnswer.
const FillBlankSeparator = "|"

type DifficultyLevel string

const (
	DifficultyEasy   DifficultyLevel = "easy"
	DifficultyMedium DifficultyLevel = "medium"
	DifficultyHard   DifficultyLevel = "hard"
)

type Question struct {
	ID           uint         `json:"id" gorm:"primaryKey"`
	AssessmentID uint         `json:"assessment_id" gorm:"not null;index;uniqueIndex:idx_assessment_order"`
	Type         QuestionType `json:"type" gorm:"not null;index" validate:"required,oneof=multiple_choice true_false fill_blank"`
	Text         string       `json:"text" gorm:"type:text;not null" validate:"required"`

	// Options holds the choice list for multiple_choice questions ([]string).
	// Empty for other types.
	Options datatypes.JSON `json:"options,omitempty" gorm:"type:jsonb"`

	// CorrectAnswer is compared after normalization. For fill_blank it may
	// carry several accepted variants separated by "|".
	CorrectAnswer string `json:"correct_answer,omitempty" gorm:"type:text;not null" validate:"required"`

	Marks      int `json:"marks" gorm:"not null" validate:"required,min=1"`
	OrderIndex int `json:"order_index" gorm:"not null;uniqueIndex:idx_assessment_order"`

	Explanation *string   `json:"explanation,omitempty" gorm:"type:text"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (Question) TableName() string {
	return "questions"
}

// OptionList decodes the Options JSON column. Nil when the column is empty
// or not valid JSON.
func (q *Question) OptionList() []string {
	if len(q.Options) == 0 {
		return nil
	}
	var opts []string
	if err := json.Unmarshal(q.Options, &opts); err != nil {
		return nil
	}
	return opts
}

// AcceptedAnswers returns the correct answer variants, one element for
// single-variant questions.
func (q *Question) AcceptedAnswers() []string {
	if q.Type != FillBlank {
		return []string{q.CorrectAnswer}
	}
	return strings.Split(q.CorrectAnswer, FillBlankSeparator)
}
