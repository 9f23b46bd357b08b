package validator

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/studentcbt/exam-service/internal/models"
)

// trueFalseAnswers are the accepted spellings for true_false correct answers.
var trueFalseAnswers = map[string]bool{
	"true": true, "false": true, "t": true, "f": true,
}

// BusinessValidator enforces domain rules that struct tags cannot express.
type BusinessValidator struct {
	validate *validator.Validate
}

func newBusinessValidator(validate *validator.Validate) *BusinessValidator {
	return &BusinessValidator{validate: validate}
}

// Validate runs struct-tag validation only.
func (bv *BusinessValidator) Validate(s interface{}) ValidationErrors {
	if err := bv.validate.Struct(s); err != nil {
		return ToValidationErrors(err)
	}
	return nil
}

// ValidateAssessmentCreate validates assessment creation business rules.
func (bv *BusinessValidator) ValidateAssessmentCreate(req *models.AssessmentCreateRequest) ValidationErrors {
	var errors ValidationErrors
	errors = append(errors, bv.Validate(req)...)
	errors = append(errors, bv.validateWindow(req.StartTime, req.EndTime)...)
	return errors
}

// ValidateAssessmentUpdate validates assessment update business rules.
func (bv *BusinessValidator) ValidateAssessmentUpdate(req *models.AssessmentUpdateRequest, existing *models.Assessment) ValidationErrors {
	var errors ValidationErrors
	errors = append(errors, bv.Validate(req)...)

	start := existing.StartTime
	end := existing.EndTime
	if req.StartTime != nil {
		start = req.StartTime
	}
	if req.EndTime != nil {
		end = req.EndTime
	}
	errors = append(errors, bv.validateWindow(start, end)...)

	if existing.Status != models.StatusDraft {
		if req.Duration != nil && *req.Duration != existing.Duration {
			errors = append(errors, ValidationError{
				Field:   "duration",
				Message: "cannot be changed after publishing",
				Value:   *req.Duration,
				Rule:    "business_logic",
			})
		}
	}

	return errors
}

func (bv *BusinessValidator) validateWindow(start, end *time.Time) ValidationErrors {
	if start != nil && end != nil && end.Before(*start) {
		return ValidationErrors{{
			Field:   "end_time",
			Message: "must not precede start_time",
			Rule:    "business_logic",
		}}
	}
	return nil
}

// ValidateQuestionCreate validates a question against the per-type rules.
func (bv *BusinessValidator) ValidateQuestionCreate(req *models.QuestionCreateRequest) ValidationErrors {
	var errors ValidationErrors
	errors = append(errors, bv.Validate(req)...)

	switch req.Type {
	case models.MultipleChoice:
		if len(req.Options) < 2 {
			errors = append(errors, ValidationError{
				Field:   "options",
				Message: "multiple choice questions need at least 2 options",
				Value:   len(req.Options),
				Rule:    "business_logic",
			})
			break
		}
		if !containsOption(req.Options, req.CorrectAnswer) {
			errors = append(errors, ValidationError{
				Field:   "correct_answer",
				Message: "must match one of the options",
				Value:   req.CorrectAnswer,
				Rule:    "business_logic",
			})
		}
	case models.TrueFalse:
		if len(req.Options) > 0 {
			errors = append(errors, ValidationError{
				Field:   "options",
				Message: "true/false questions must not define options",
				Rule:    "business_logic",
			})
		}
		answer := strings.ToLower(strings.TrimSpace(req.CorrectAnswer))
		if !trueFalseAnswers[answer] {
			errors = append(errors, ValidationError{
				Field:   "correct_answer",
				Message: "must be one of: true, false, t, f",
				Value:   req.CorrectAnswer,
				Rule:    "business_logic",
			})
		}
	case models.FillBlank:
		if len(req.Options) > 0 {
			errors = append(errors, ValidationError{
				Field:   "options",
				Message: "fill in the blank questions must not define options",
				Rule:    "business_logic",
			})
		}
		for i, variant := range strings.Split(req.CorrectAnswer, models.FillBlankSeparator) {
			if strings.TrimSpace(variant) == "" {
				errors = append(errors, ValidationError{
					Field:   fmt.Sprintf("correct_answer[%d]", i),
					Message: "answer variant cannot be empty",
					Rule:    "business_logic",
				})
			}
		}
	}

	return errors
}

func containsOption(options []string, answer string) bool {
	want := strings.ToLower(strings.TrimSpace(answer))
	for _, opt := range options {
		if strings.ToLower(strings.TrimSpace(opt)) == want {
			return true
		}
	}
	return false
}

// ValidateStatusTransition validates assessment status transitions.
func (bv *BusinessValidator) ValidateStatusTransition(currentStatus, newStatus models.AssessmentStatus, questionCount int) ValidationErrors {
	var errors ValidationErrors

	allowedTransitions := map[models.AssessmentStatus][]models.AssessmentStatus{
		models.StatusDraft:     {models.StatusPublished, models.StatusArchived},
		models.StatusPublished: {models.StatusArchived},
		models.StatusArchived:  {},
	}

	allowed := false
	for _, allowedStatus := range allowedTransitions[currentStatus] {
		if newStatus == allowedStatus {
			allowed = true
			break
		}
	}

	if !allowed {
		errors = append(errors, ValidationError{
			Field:   "status",
			Message: fmt.Sprintf("cannot transition from %s to %s", currentStatus, newStatus),
			Value:   newStatus,
			Rule:    "status_transition",
		})
	}

	if newStatus == models.StatusPublished && questionCount == 0 {
		errors = append(errors, ValidationError{
			Field:   "questions",
			Message: "assessment must have at least one question before publishing",
			Value:   questionCount,
			Rule:    "business_logic",
		})
	}

	return errors
}

// ValidateDeletePermission validates whether an assessment can be deleted.
func (bv *BusinessValidator) ValidateDeletePermission(hasAttempts bool, status models.AssessmentStatus) ValidationErrors {
	var errors ValidationErrors

	if hasAttempts {
		errors = append(errors, ValidationError{
			Field:   "attempts",
			Message: "cannot delete assessment with existing attempts",
			Value:   hasAttempts,
			Rule:    "business_logic",
		})
	}

	if status == models.StatusPublished {
		errors = append(errors, ValidationError{
			Field:   "status",
			Message: "cannot delete a published assessment",
			Value:   status,
			Rule:    "business_logic",
		})
	}

	return errors
}
