package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/studentcbt/exam-service/internal/services"
	"github.com/studentcbt/exam-service/internal/utils"
)

type DashboardHandler struct {
	BaseHandler
	dashboardService services.DashboardService
}

func NewDashboardHandler(dashboardService services.DashboardService, logger utils.Logger) *DashboardHandler {
	return &DashboardHandler{
		BaseHandler:      NewBaseHandler(logger),
		dashboardService: dashboardService,
	}
}

// GetPlatformStats returns platform-wide totals and rates
// @Summary Get platform statistics
// @Tags dashboard
// @Produce json
// @Success 200 {object} services.PlatformStats
// @Failure 403 {object} ErrorResponse
// @Router /dashboard/stats [get]
func (h *DashboardHandler) GetPlatformStats(c *gin.Context) {
	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	h.LogRequest(c, "Getting platform stats")

	stats, err := h.dashboardService.GetPlatformStats(c.Request.Context(), userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, stats)
}

// GetStudentDashboard returns a named student's summary statistics
// @Summary Get a student's dashboard
// @Tags dashboard
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} models.StudentDashboard
// @Failure 400 {object} ErrorResponse
// @Router /dashboard/students/{id} [get]
func (h *DashboardHandler) GetStudentDashboard(c *gin.Context) {
	studentID := strings.TrimSpace(c.Param("id"))
	if studentID == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid student id",
		})
		return
	}

	if _, ok := h.requireUserID(c); !ok {
		return
	}

	dashboard, err := h.dashboardService.GetStudentDashboard(c.Request.Context(), studentID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, dashboard)
}
