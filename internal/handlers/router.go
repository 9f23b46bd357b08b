package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/studentcbt/exam-service/internal/config"
	"github.com/studentcbt/exam-service/internal/models"
	"github.com/studentcbt/exam-service/internal/repositories"
	"github.com/studentcbt/exam-service/internal/services"
	"github.com/studentcbt/exam-service/internal/utils"
	"github.com/studentcbt/exam-service/internal/validator"
)

type HandlerManager struct {
	assessmentHandler *AssessmentHandler
	attemptHandler    *AttemptHandler
	studentHandler    *StudentHandler
	dashboardHandler  *DashboardHandler
	userHandler       *UserHandler
	authMiddleware    *CasdoorAuthMiddleware
}

func NewHandlerManager(
	serviceManager services.ServiceManager,
	validator *validator.Validator,
	logger utils.Logger,
	casdoorConfig config.CasdoorConfig,
	userRepo repositories.UserRepository,
) *HandlerManager {
	authMiddleware := NewCasdoorAuthMiddleware(casdoorConfig, userRepo)

	return &HandlerManager{
		assessmentHandler: NewAssessmentHandler(serviceManager.Assessment(), serviceManager.Export(), validator, logger),
		attemptHandler:    NewAttemptHandler(serviceManager.Attempt(), validator, logger),
		studentHandler:    NewStudentHandler(serviceManager.Student(), serviceManager.Attempt(), logger),
		dashboardHandler:  NewDashboardHandler(serviceManager.Dashboard(), logger),
		userHandler:       NewUserHandler(userRepo, logger),
		authMiddleware:    authMiddleware,
	}
}

// SetupRoutes sets up all API routes
func (hm *HandlerManager) SetupRoutes(router *gin.Engine) {
	v1 := router.Group("/api/v1")
	v1.Use(hm.authMiddleware.AuthMiddleware())
	{
		v1.GET("/me", hm.userHandler.GetCurrentUser)

		// Assessment routes
		assessments := v1.Group("/assessments")
		{
			// Authoring - Teachers and Admins only
			assessments.POST("", hm.authMiddleware.RequireRoleMiddleware(models.RoleTeacher), hm.assessmentHandler.CreateAssessment)
			assessments.PUT("/:id", hm.authMiddleware.RequireRoleMiddleware(models.RoleTeacher), hm.assessmentHandler.UpdateAssessment)
			assessments.DELETE("/:id", hm.authMiddleware.RequireRoleMiddleware(models.RoleTeacher), hm.assessmentHandler.DeleteAssessment)
			assessments.POST("/:id/publish", hm.authMiddleware.RequireRoleMiddleware(models.RoleTeacher), hm.assessmentHandler.PublishAssessment)
			assessments.POST("/:id/archive", hm.authMiddleware.RequireRoleMiddleware(models.RoleTeacher), hm.assessmentHandler.ArchiveAssessment)

			// Viewing - all authenticated users
			assessments.GET("", hm.assessmentHandler.ListAssessments)
			assessments.GET("/:id", hm.assessmentHandler.GetAssessment)
			assessments.GET("/:id/details", hm.assessmentHandler.GetAssessmentWithQuestions)

			// Question management - Teachers and Admins only
			assessments.GET("/:id/questions", hm.authMiddleware.RequireRoleMiddleware(models.RoleTeacher), hm.assessmentHandler.ListQuestions)
			assessments.POST("/:id/questions", hm.authMiddleware.RequireRoleMiddleware(models.RoleTeacher), hm.assessmentHandler.AddQuestion)
			assessments.PUT("/:id/questions/:question_id", hm.authMiddleware.RequireRoleMiddleware(models.RoleTeacher), hm.assessmentHandler.UpdateQuestion)
			assessments.DELETE("/:id/questions/:question_id", hm.authMiddleware.RequireRoleMiddleware(models.RoleTeacher), hm.assessmentHandler.RemoveQuestion)

			// Monitoring and reporting - Teachers and Admins only
			assessments.GET("/:id/attempts", hm.authMiddleware.RequireRoleMiddleware(models.RoleTeacher), hm.assessmentHandler.ListAttempts)
			assessments.GET("/:id/analytics", hm.authMiddleware.RequireRoleMiddleware(models.RoleTeacher), hm.assessmentHandler.GetAnalytics)
			assessments.GET("/:id/export", hm.authMiddleware.RequireRoleMiddleware(models.RoleTeacher), hm.assessmentHandler.ExportResults)
		}

		// Attempt routes
		attempts := v1.Group("/attempts")
		{
			attempts.POST("/start", hm.authMiddleware.RequireRoleMiddleware(models.RoleStudent), hm.attemptHandler.StartAttempt)
			attempts.POST("/:id/resume", hm.authMiddleware.RequireRoleMiddleware(models.RoleStudent), hm.attemptHandler.ResumeAttempt)
			attempts.POST("/:id/answer", hm.authMiddleware.RequireRoleMiddleware(models.RoleStudent), hm.attemptHandler.SubmitAnswer)
			attempts.GET("/:id/status", hm.authMiddleware.RequireRoleMiddleware(models.RoleStudent), hm.attemptHandler.GetAttemptStatus)
			attempts.POST("/:id/submit", hm.authMiddleware.RequireRoleMiddleware(models.RoleStudent), hm.attemptHandler.SubmitAttempt)

			// Readable by the owner or the assessment's creator
			attempts.GET("/:id", hm.attemptHandler.GetAttempt)
		}

		// Student routes - Students only
		students := v1.Group("/students")
		students.Use(hm.authMiddleware.RequireRoleMiddleware(models.RoleStudent))
		{
			students.GET("/me/assessments", hm.studentHandler.GetAvailableAssessments)
			students.GET("/me/assessments/:id/exam", hm.studentHandler.GetExamView)
			students.GET("/me/attempts", hm.studentHandler.GetMyAttempts)
			students.GET("/me/results", hm.studentHandler.GetResults)
			students.GET("/me/results/:id", hm.studentHandler.GetDetailedResult)
			students.GET("/me/dashboard", hm.studentHandler.GetDashboard)
		}

		// Dashboard routes - Teachers and Admins only
		dashboard := v1.Group("/dashboard")
		dashboard.Use(hm.authMiddleware.RequireRoleMiddleware(models.RoleTeacher))
		{
			dashboard.GET("/stats", hm.dashboardHandler.GetPlatformStats)
			dashboard.GET("/students/:id", hm.dashboardHandler.GetStudentDashboard)
		}

		// User routes - Teachers and Admins only
		users := v1.Group("/users")
		users.Use(hm.authMiddleware.RequireRoleMiddleware(models.RoleTeacher))
		{
			users.GET("", hm.userHandler.ListUsers)
			users.GET("/:id", hm.userHandler.GetUser)
		}
	}

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "healthy",
			"service": "exam-service",
		})
	})
}
