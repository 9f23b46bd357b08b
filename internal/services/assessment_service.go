package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/studentcbt/exam-service/internal/events"
	"github.com/studentcbt/exam-service/internal/models"
	"github.com/studentcbt/exam-service/internal/repositories"
	"github.com/studentcbt/exam-service/internal/validator"
)

type assessmentService struct {
	repo           repositories.Repository
	db             *gorm.DB
	logger         *slog.Logger
	validator      *validator.Validator
	grading        GradingService
	eventPublisher events.EventPublisher
}

func NewAssessmentService(repo repositories.Repository, db *gorm.DB, logger *slog.Logger, validator *validator.Validator, grading GradingService, publisher events.EventPublisher) AssessmentService {
	return &assessmentService{
		repo:           repo,
		db:             db,
		logger:         logger,
		validator:      validator,
		grading:        grading,
		eventPublisher: publisher,
	}
}

// ===== CRUD =====

func (s *assessmentService) Create(ctx context.Context, req *CreateAssessmentRequest, creatorID string) (*AssessmentResponse, error) {
	if verrs := s.validator.GetBusinessValidator().ValidateAssessmentCreate(req); len(verrs) > 0 {
		return nil, verrs
	}

	showResults := true
	if req.ShowResults != nil {
		showResults = *req.ShowResults
	}

	assessment := &models.Assessment{
		Title:       req.Title,
		Description: req.Description,
		Duration:    req.Duration,
		Status:      models.StatusDraft,
		PassMarks:   req.PassMarks,
		StartTime:   req.StartTime,
		EndTime:     req.EndTime,
		ShowResults: showResults,
		ClassID:     req.ClassID,
		SubjectID:   req.SubjectID,
		CreatedBy:   creatorID,
	}

	if err := s.repo.Assessment().Create(ctx, nil, assessment); err != nil {
		return nil, fmt.Errorf("failed to create assessment: %w", err)
	}

	s.logger.Info("Assessment created",
		"assessment_id", assessment.ID,
		"title", assessment.Title,
		"created_by", creatorID)

	return s.buildResponse(assessment, creatorID), nil
}

func (s *assessmentService) GetByID(ctx context.Context, id uint, userID string) (*AssessmentResponse, error) {
	assessment, err := s.repo.Assessment().GetByID(ctx, nil, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrAssessmentNotFound
		}
		return nil, fmt.Errorf("failed to get assessment: %w", err)
	}
	return s.buildResponse(assessment, userID), nil
}

func (s *assessmentService) GetByIDWithQuestions(ctx context.Context, id uint, userID string) (*AssessmentResponse, error) {
	assessment, err := s.getManagedAssessment(ctx, id, userID, "read")
	if err != nil {
		return nil, err
	}

	full, err := s.repo.Assessment().GetByIDWithQuestions(ctx, nil, assessment.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get assessment with questions: %w", err)
	}
	return s.buildResponse(full, userID), nil
}

func (s *assessmentService) Update(ctx context.Context, id uint, req *UpdateAssessmentRequest, userID string) (*AssessmentResponse, error) {
	assessment, err := s.getManagedAssessment(ctx, id, userID, "update")
	if err != nil {
		return nil, err
	}

	if assessment.Status == models.StatusArchived {
		return nil, ErrAssessmentNotEditable
	}

	if verrs := s.validator.GetBusinessValidator().ValidateAssessmentUpdate(req, assessment); len(verrs) > 0 {
		return nil, verrs
	}

	if req.Title != nil {
		assessment.Title = *req.Title
	}
	if req.Description != nil {
		assessment.Description = req.Description
	}
	if req.Duration != nil {
		assessment.Duration = *req.Duration
	}
	if req.PassMarks != nil {
		assessment.PassMarks = *req.PassMarks
	}
	if req.StartTime != nil {
		assessment.StartTime = req.StartTime
	}
	if req.EndTime != nil {
		assessment.EndTime = req.EndTime
	}
	if req.ShowResults != nil {
		assessment.ShowResults = *req.ShowResults
	}

	if err := s.repo.Assessment().Update(ctx, nil, assessment); err != nil {
		return nil, fmt.Errorf("failed to update assessment: %w", err)
	}

	s.logger.Info("Assessment updated", "assessment_id", id, "user_id", userID)
	return s.buildResponse(assessment, userID), nil
}

func (s *assessmentService) Delete(ctx context.Context, id uint, userID string) error {
	assessment, err := s.getManagedAssessment(ctx, id, userID, "delete")
	if err != nil {
		return err
	}

	hasAttempts, err := s.repo.Assessment().HasAttempts(ctx, nil, id)
	if err != nil {
		return fmt.Errorf("failed to check attempts: %w", err)
	}

	if verrs := s.validator.GetBusinessValidator().ValidateDeletePermission(hasAttempts, assessment.Status); len(verrs) > 0 {
		return NewBusinessRuleError("assessment_delete", verrs.Error(), map[string]interface{}{
			"assessment_id": id,
			"has_attempts":  hasAttempts,
			"status":        assessment.Status,
		})
	}

	if err := s.repo.Assessment().Delete(ctx, nil, id); err != nil {
		return fmt.Errorf("failed to delete assessment: %w", err)
	}

	s.logger.Info("Assessment deleted", "assessment_id", id, "user_id", userID)
	return nil
}

func (s *assessmentService) List(ctx context.Context, filters repositories.AssessmentFilters, userID string) (*AssessmentListResponse, error) {
	assessments, total, err := s.repo.Assessment().List(ctx, nil, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list assessments: %w", err)
	}

	responses := make([]*AssessmentResponse, 0, len(assessments))
	for _, assessment := range assessments {
		responses = append(responses, &AssessmentResponse{
			Assessment: assessment,
			CanEdit:    assessment.CreatedBy == userID && assessment.Status != models.StatusArchived,
			CanDelete:  assessment.CreatedBy == userID && assessment.Status == models.StatusDraft,
		})
	}

	page, size := 1, filters.Limit
	if filters.Limit > 0 {
		page = filters.Offset/filters.Limit + 1
	}

	return &AssessmentListResponse{
		Assessments: responses,
		Total:       total,
		Page:        page,
		Size:        size,
	}, nil
}

// ===== STATUS MANAGEMENT =====

func (s *assessmentService) Publish(ctx context.Context, id uint, userID string) error {
	assessment, err := s.getManagedAssessment(ctx, id, userID, "publish")
	if err != nil {
		return err
	}

	questionCount, err := s.repo.Question().CountByAssessment(ctx, nil, id)
	if err != nil {
		return fmt.Errorf("failed to count questions: %w", err)
	}

	if verrs := s.validator.GetBusinessValidator().ValidateStatusTransition(assessment.Status, models.StatusPublished, questionCount); len(verrs) > 0 {
		return verrs
	}

	err = s.repo.WithTransaction(ctx, func(txRepo repositories.Repository) error {
		totalMarks, err := txRepo.Question().SumMarks(ctx, nil, id)
		if err != nil {
			return fmt.Errorf("failed to sum question marks: %w", err)
		}

		// Publishing freezes the total so later grading is stable even
		// against accidental question edits.
		assessment.Status = models.StatusPublished
		assessment.TotalMarks = totalMarks
		return txRepo.Assessment().Update(ctx, nil, assessment)
	})
	if err != nil {
		return fmt.Errorf("failed to publish assessment: %w", err)
	}

	s.logger.Info("Assessment published",
		"assessment_id", id,
		"total_marks", assessment.TotalMarks,
		"questions", questionCount)

	s.publishEvent(ctx, events.NewEvent(events.EventAssessmentPublished, &events.AssessmentPublishedEvent{
		AssessmentID: assessment.ID,
		Title:        assessment.Title,
		ClassID:      assessment.ClassID,
		SubjectID:    assessment.SubjectID,
		TotalMarks:   assessment.TotalMarks,
		Duration:     assessment.Duration,
		StartTime:    assessment.StartTime,
		EndTime:      assessment.EndTime,
	}))

	return nil
}

func (s *assessmentService) Archive(ctx context.Context, id uint, userID string) error {
	assessment, err := s.getManagedAssessment(ctx, id, userID, "archive")
	if err != nil {
		return err
	}

	questionCount, err := s.repo.Question().CountByAssessment(ctx, nil, id)
	if err != nil {
		return fmt.Errorf("failed to count questions: %w", err)
	}

	if verrs := s.validator.GetBusinessValidator().ValidateStatusTransition(assessment.Status, models.StatusArchived, questionCount); len(verrs) > 0 {
		return verrs
	}

	assessment.Status = models.StatusArchived
	if err := s.repo.Assessment().Update(ctx, nil, assessment); err != nil {
		return fmt.Errorf("failed to archive assessment: %w", err)
	}

	s.logger.Info("Assessment archived", "assessment_id", id, "user_id", userID)
	return nil
}

// ===== QUESTION MANAGEMENT =====

func (s *assessmentService) AddQuestion(ctx context.Context, assessmentID uint, req *CreateQuestionRequest, userID string) (*models.Question, error) {
	assessment, err := s.getManagedAssessment(ctx, assessmentID, userID, "add_question")
	if err != nil {
		return nil, err
	}
	if assessment.Status != models.StatusDraft {
		return nil, ErrAssessmentNotEditable
	}

	if verrs := s.validator.GetBusinessValidator().ValidateQuestionCreate(req); len(verrs) > 0 {
		return nil, verrs
	}

	question := &models.Question{
		AssessmentID:  assessmentID,
		Type:          req.Type,
		Text:          req.Text,
		CorrectAnswer: req.CorrectAnswer,
		Marks:         req.Marks,
		Explanation:   req.Explanation,
	}
	question.Options, err = encodeOptions(req.Options)
	if err != nil {
		return nil, err
	}

	err = s.repo.WithTransaction(ctx, func(txRepo repositories.Repository) error {
		if req.OrderIndex != nil {
			question.OrderIndex = *req.OrderIndex
		} else {
			next, err := txRepo.Question().NextOrderIndex(ctx, nil, assessmentID)
			if err != nil {
				return fmt.Errorf("failed to compute order index: %w", err)
			}
			question.OrderIndex = next
		}
		return txRepo.Question().Create(ctx, nil, question)
	})
	if err != nil {
		if repositories.IsDuplicateKeyError(err) {
			return nil, NewBusinessRuleError("question_order", "order index is already used in this assessment", map[string]interface{}{
				"assessment_id": assessmentID,
				"order_index":   question.OrderIndex,
			})
		}
		return nil, fmt.Errorf("failed to create question: %w", err)
	}

	s.logger.Info("Question added",
		"assessment_id", assessmentID,
		"question_id", question.ID,
		"type", question.Type)

	return question, nil
}

func (s *assessmentService) UpdateQuestion(ctx context.Context, assessmentID, questionID uint, req *CreateQuestionRequest, userID string) (*models.Question, error) {
	assessment, err := s.getManagedAssessment(ctx, assessmentID, userID, "update_question")
	if err != nil {
		return nil, err
	}
	if assessment.Status != models.StatusDraft {
		return nil, ErrAssessmentNotEditable
	}

	if verrs := s.validator.GetBusinessValidator().ValidateQuestionCreate(req); len(verrs) > 0 {
		return nil, verrs
	}

	question, err := s.repo.Question().GetByAssessmentAndID(ctx, nil, assessmentID, questionID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrQuestionNotFound
		}
		return nil, fmt.Errorf("failed to get question: %w", err)
	}

	question.Type = req.Type
	question.Text = req.Text
	question.CorrectAnswer = req.CorrectAnswer
	question.Marks = req.Marks
	question.Explanation = req.Explanation
	if req.OrderIndex != nil {
		question.OrderIndex = *req.OrderIndex
	}
	question.Options, err = encodeOptions(req.Options)
	if err != nil {
		return nil, err
	}

	if err := s.repo.Question().Update(ctx, nil, question); err != nil {
		if repositories.IsDuplicateKeyError(err) {
			return nil, NewBusinessRuleError("question_order", "order index is already used in this assessment", map[string]interface{}{
				"assessment_id": assessmentID,
				"order_index":   question.OrderIndex,
			})
		}
		return nil, fmt.Errorf("failed to update question: %w", err)
	}

	return question, nil
}

func (s *assessmentService) RemoveQuestion(ctx context.Context, assessmentID, questionID uint, userID string) error {
	assessment, err := s.getManagedAssessment(ctx, assessmentID, userID, "remove_question")
	if err != nil {
		return err
	}
	if assessment.Status != models.StatusDraft {
		return ErrAssessmentNotEditable
	}

	question, err := s.repo.Question().GetByAssessmentAndID(ctx, nil, assessmentID, questionID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return ErrQuestionNotFound
		}
		return fmt.Errorf("failed to get question: %w", err)
	}

	if err := s.repo.Question().Delete(ctx, nil, question.ID); err != nil {
		return fmt.Errorf("failed to delete question: %w", err)
	}

	s.logger.Info("Question removed",
		"assessment_id", assessmentID,
		"question_id", questionID)
	return nil
}

func (s *assessmentService) GetQuestions(ctx context.Context, assessmentID uint, userID string) ([]*models.Question, error) {
	if _, err := s.getManagedAssessment(ctx, assessmentID, userID, "read_questions"); err != nil {
		return nil, err
	}

	questions, err := s.repo.Question().GetByAssessment(ctx, nil, assessmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to get questions: %w", err)
	}
	return questions, nil
}

// ===== TEACHER VIEWS =====

func (s *assessmentService) ListAttempts(ctx context.Context, assessmentID uint, filters repositories.AttemptFilters, userID string) ([]*models.Attempt, int64, error) {
	if _, err := s.getManagedAssessment(ctx, assessmentID, userID, "list_attempts"); err != nil {
		return nil, 0, err
	}

	attempts, total, err := s.repo.Attempt().ListByAssessment(ctx, nil, assessmentID, filters)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list attempts: %w", err)
	}
	return attempts, total, nil
}

func (s *assessmentService) GetAnalytics(ctx context.Context, id uint, userID string) (*models.AssessmentAnalytics, error) {
	if _, err := s.getManagedAssessment(ctx, id, userID, "analytics"); err != nil {
		return nil, err
	}
	return s.grading.BuildAnalytics(ctx, id)
}

// ===== HELPERS =====

// getManagedAssessment loads an assessment and verifies the caller may
// manage it. Creators always may; admins may manage any assessment.
func (s *assessmentService) getManagedAssessment(ctx context.Context, id uint, userID, action string) (*models.Assessment, error) {
	assessment, err := s.repo.Assessment().GetByID(ctx, nil, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrAssessmentNotFound
		}
		return nil, fmt.Errorf("failed to get assessment: %w", err)
	}

	if assessment.CreatedBy == userID {
		return assessment, nil
	}

	isAdmin, err := s.repo.User().HasRole(ctx, userID, models.RoleAdmin)
	if err != nil {
		return nil, fmt.Errorf("failed to check role: %w", err)
	}
	if !isAdmin {
		return nil, NewPermissionError(userID, id, "assessment", action,
			"only the creator or an admin may manage this assessment")
	}

	return assessment, nil
}

func (s *assessmentService) buildResponse(assessment *models.Assessment, userID string) *AssessmentResponse {
	canManage := assessment.CreatedBy == userID
	return &AssessmentResponse{
		Assessment: assessment,
		CanEdit:    canManage && assessment.Status != models.StatusArchived,
		CanDelete:  canManage && assessment.Status == models.StatusDraft,
	}
}

func (s *assessmentService) publishEvent(ctx context.Context, event *events.Event) {
	if s.eventPublisher == nil {
		return
	}
	if err := s.eventPublisher.Publish(ctx, event); err != nil {
		s.logger.Error("Failed to publish event", "event_type", event.Type, "error", err)
	}
}

// encodeOptions serializes the option list for the jsonb column. Empty
// input maps to a null column.
func encodeOptions(options []string) (datatypes.JSON, error) {
	if len(options) == 0 {
		return nil, nil
	}
	raw, err := json.Marshal(options)
	if err != nil {
		return nil, fmt.Errorf("failed to encode options: %w", err)
	}
	return datatypes.JSON(raw), nil
}
