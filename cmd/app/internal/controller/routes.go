package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"quizcoach-backend/internal/apperr"
	"quizcoach-backend/internal/service"
	"quizcoach-backend/utilities"
)

// Services are the collaborators RegisterRoutes binds handlers to. MCP may be
// nil, in which case /mcp is not mounted.
type Services struct {
	Quiz        service.QuizService
	Assessments service.AssessmentService
	Progress    service.ProgressService
	MCP         http.Handler
	Log         *utilities.Logger
	PageSize    int
}

// RegisterRoutes registers all route groups and their endpoints.
func RegisterRoutes(r *gin.Engine, svc Services) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	authCtrl := NewAuthController(svc.Log)
	authRoutes := r.Group("/auth")
	{
		authRoutes.POST("/token", authCtrl.Token)
		authRoutes.POST("/refresh", authCtrl.Refresh)
	}

	questionCtrl := NewQuestionController(svc.Quiz, svc.PageSize)
	questionRoutes := r.Group("/questions")
	{
		questionRoutes.GET("", questionCtrl.List)
		questionRoutes.GET("/random", questionCtrl.Random)
		questionRoutes.GET("/:id", questionCtrl.Get)
	}

	practiceCtrl := NewPracticeController(svc.Quiz)
	practiceRoutes := r.Group("/practice")
	{
		practiceRoutes.GET("/next", practiceCtrl.Next)
		practiceRoutes.POST("/answer", practiceCtrl.Answer)
		practiceRoutes.POST("/feedback", practiceCtrl.Feedback)
		practiceRoutes.POST("/promotion", practiceCtrl.Promotion)
		practiceRoutes.GET("/level-status", practiceCtrl.LevelStatus)
	}

	assessmentCtrl := NewAssessmentController(svc.Assessments)
	assessRoutes := r.Group("/assessments")
	{
		assessRoutes.POST("/start", assessmentCtrl.StartAssessment)
		assessRoutes.POST("/:session_id/answer", assessmentCtrl.SubmitAnswer)
		assessRoutes.GET("/:session_id", assessmentCtrl.GetAssessment)
	}

	userCtrl := NewUserController(svc.Quiz, svc.Progress)
	userRoutes := r.Group("/users/me")
	{
		userRoutes.GET("/state", userCtrl.State)
		userRoutes.GET("/report", userCtrl.Report)
		userRoutes.GET("/history", userCtrl.History)
		userRoutes.GET("/report.pdf", userCtrl.ReportPDF)
	}

	if svc.MCP != nil {
		r.Any("/mcp", gin.WrapH(svc.MCP))
	}
}

// respondError renders err with the status its kind maps to.
func respondError(c *gin.Context, err error) {
	kind := apperr.KindOf(err)
	status := apperr.HTTPStatus(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		utilities.Error("request failed", "path", c.FullPath(), "error", err)
		msg = "internal error"
	}
	c.AbortWithStatusJSON(status, gin.H{"error": msg, "code": kind})
}

// currentUser reads the identity set by utilities.AuthMiddleware.
func currentUser(c *gin.Context) (string, bool) {
	id, ok := utilities.UserID(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"error": "missing user identity",
			"code":  apperr.KindValidation,
		})
	}
	return id, ok
}

func badRequest(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid input: " + err.Error(), "code": apperr.KindValidation})
}
