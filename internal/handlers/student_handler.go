package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/studentcbt/exam-service/internal/models"
	"github.com/studentcbt/exam-service/internal/repositories"
	"github.com/studentcbt/exam-service/internal/services"
	"github.com/studentcbt/exam-service/internal/utils"
)

type StudentHandler struct {
	BaseHandler
	studentService services.StudentService
	attemptService services.AttemptService
}

func NewStudentHandler(
	studentService services.StudentService,
	attemptService services.AttemptService,
	logger utils.Logger,
) *StudentHandler {
	return &StudentHandler{
		BaseHandler:    NewBaseHandler(logger),
		studentService: studentService,
		attemptService: attemptService,
	}
}

// GetAvailableAssessments lists assessments the student can take
// @Summary Get available assessments
// @Description Lists published, currently open assessments for the student's class with attempt state
// @Tags students
// @Produce json
// @Success 200 {array} services.AvailableAssessment
// @Failure 401 {object} ErrorResponse
// @Router /students/me/assessments [get]
func (h *StudentHandler) GetAvailableAssessments(c *gin.Context) {
	studentID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	h.LogRequest(c, "Getting available assessments")

	assessments, err := h.studentService.GetAvailableAssessments(c.Request.Context(), studentID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, assessments)
}

// GetExamView returns the exam paper without correct answers
// @Summary Get exam view
// @Description Returns the assessment's questions stripped of answers, for taking the exam
// @Tags students
// @Produce json
// @Param id path uint true "Assessment ID"
// @Success 200 {object} services.ExamView
// @Failure 403 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /students/me/assessments/{id}/exam [get]
func (h *StudentHandler) GetExamView(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	studentID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	h.LogRequest(c, "Getting exam view", "assessment_id", id)

	view, err := h.studentService.GetExamView(c.Request.Context(), id, studentID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, view)
}

// GetMyAttempts lists the student's own attempts
// @Summary Get my attempts
// @Tags students
// @Produce json
// @Param page query int false "Page number"
// @Param size query int false "Page size"
// @Param status query string false "Filter by attempt status"
// @Success 200 {object} AttemptListResponse
// @Router /students/me/attempts [get]
func (h *StudentHandler) GetMyAttempts(c *gin.Context) {
	studentID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	filters := h.parseStudentAttemptFilters(c)

	attempts, total, err := h.attemptService.GetByStudent(c.Request.Context(), studentID, filters)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, AttemptListResponse{
		Attempts: attempts,
		Total:    total,
	})
}

// GetResults lists graded results for the student's finished attempts
// @Summary Get my results
// @Description Results for assessments whose creator chose to hide results are omitted
// @Tags students
// @Produce json
// @Param page query int false "Page number"
// @Param size query int false "Page size"
// @Success 200 {object} StudentResultsResponse
// @Router /students/me/results [get]
func (h *StudentHandler) GetResults(c *gin.Context) {
	studentID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	filters := h.parseStudentAttemptFilters(c)

	results, total, err := h.studentService.GetResults(c.Request.Context(), studentID, filters)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, StudentResultsResponse{
		Results: results,
		Total:   total,
	})
}

// GetDetailedResult returns a per-question review of a finished attempt
// @Summary Get detailed result
// @Tags students
// @Produce json
// @Param id path uint true "Attempt ID"
// @Success 200 {object} services.DetailedResultResponse
// @Failure 403 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /students/me/results/{id} [get]
func (h *StudentHandler) GetDetailedResult(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	studentID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	h.LogRequest(c, "Getting detailed result", "attempt_id", id)

	result, err := h.studentService.GetDetailedResult(c.Request.Context(), id, studentID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetDashboard returns the student's summary statistics
// @Summary Get student dashboard
// @Tags students
// @Produce json
// @Success 200 {object} models.StudentDashboard
// @Router /students/me/dashboard [get]
func (h *StudentHandler) GetDashboard(c *gin.Context) {
	studentID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	dashboard, err := h.studentService.GetDashboard(c.Request.Context(), studentID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, dashboard)
}

// StudentResultsResponse pairs a result page with its total count.
type StudentResultsResponse struct {
	Results []*services.AttemptResultResponse `json:"results"`
	Total   int64                             `json:"total"`
}

func (h *StudentHandler) parseStudentAttemptFilters(c *gin.Context) repositories.AttemptFilters {
	page := h.parseIntQuery(c, "page", 1)
	size := h.parseIntQuery(c, "size", 10)

	filters := repositories.AttemptFilters{
		Limit:  size,
		Offset: (page - 1) * size,
	}

	if status := strings.TrimSpace(c.Query("status")); status != "" {
		attemptStatus := models.AttemptStatus(status)
		filters.Status = &attemptStatus
	}

	return filters
}
