package services

import (
	"errors"
	"fmt"

	"github.com/studentcbt/exam-service/internal/validator"
)

// ValidationErrors is re-exported so handlers can match on it without
// importing the validator package.
type ValidationErrors = validator.ValidationErrors

// ===== SENTINEL ERRORS =====

var (
	// Assessment errors
	ErrAssessmentNotFound      = errors.New("assessment not found")
	ErrAssessmentNotAvailable  = errors.New("assessment is not available")
	ErrAssessmentNotEditable   = errors.New("assessment cannot be edited in current status")
	ErrAssessmentNotDeletable  = errors.New("assessment cannot be deleted")
	ErrAssessmentInvalidStatus = errors.New("invalid assessment status transition")
	ErrResultsNotVisible       = errors.New("results are not visible for this assessment")

	// Availability reasons wrap ErrAssessmentNotAvailable so callers can
	// match the family or the specific cause.
	ErrAssessmentNotPublished = fmt.Errorf("%w: not published", ErrAssessmentNotAvailable)
	ErrAssessmentNotYetOpen   = fmt.Errorf("%w: not open yet", ErrAssessmentNotAvailable)
	ErrAssessmentClosed       = fmt.Errorf("%w: window closed", ErrAssessmentNotAvailable)

	// Question errors
	ErrQuestionNotFound    = errors.New("question not found")
	ErrInvalidQuestionType = errors.New("invalid question type")

	// Attempt errors
	ErrAttemptNotFound         = errors.New("attempt not found")
	ErrAttemptAlreadyExists    = errors.New("assessment already attempted")
	ErrAttemptNotActive        = errors.New("attempt is not in progress")
	ErrAttemptTimeExpired      = errors.New("attempt time has expired")
	ErrAttemptAlreadySubmitted = errors.New("attempt already submitted")

	// User errors
	ErrUserNotFound = errors.New("user not found")

	// Generic errors
	ErrValidationFailed        = errors.New("validation failed")
	ErrUnauthorized            = errors.New("unauthorized")
	ErrForbidden               = errors.New("forbidden")
	ErrInsufficientPermissions = errors.New("insufficient permissions")
)

// ===== STRUCTURED ERRORS =====

// PermissionError carries enough context to log and explain a denial.
type PermissionError struct {
	UserID   string
	TargetID uint
	Resource string
	Action   string
	Reason   string
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("permission denied: user %s cannot %s %s %d: %s",
		e.UserID, e.Action, e.Resource, e.TargetID, e.Reason)
}

func NewPermissionError(userID string, targetID uint, resource, action, reason string) *PermissionError {
	return &PermissionError{
		UserID:   userID,
		TargetID: targetID,
		Resource: resource,
		Action:   action,
		Reason:   reason,
	}
}

// BusinessRuleError reports a domain rule violation that maps to 422.
type BusinessRuleError struct {
	Rule    string
	Message string
	Context map[string]interface{}
}

func (e *BusinessRuleError) Error() string {
	return fmt.Sprintf("business rule violation (%s): %s", e.Rule, e.Message)
}

func NewBusinessRuleError(rule, message string, context map[string]interface{}) *BusinessRuleError {
	return &BusinessRuleError{
		Rule:    rule,
		Message: message,
		Context: context,
	}
}
