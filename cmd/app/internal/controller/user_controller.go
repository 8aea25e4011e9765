package controller

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"quizcoach-backend/internal/service"
)

type UserController struct {
	QuizService     service.QuizService
	ProgressService service.ProgressService
}

func NewUserController(quizService service.QuizService, progressService service.ProgressService) *UserController {
	return &UserController{QuizService: quizService, ProgressService: progressService}
}

func (uc *UserController) State(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	state, err := uc.QuizService.GetUserState(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, state)
}

func (uc *UserController) Report(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	report, err := uc.ProgressService.Report(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

type historyQuery struct {
	Topic  string    `form:"topic"`
	Source string    `form:"source"`
	Since  time.Time `form:"since" time_format:"2006-01-02T15:04:05Z07:00"`
	Until  time.Time `form:"until" time_format:"2006-01-02T15:04:05Z07:00"`
	Limit  int       `form:"limit"`
}

func (uc *UserController) History(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var q historyQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, err)
		return
	}
	rows, err := uc.ProgressService.History(c.Request.Context(), userID, service.HistoryQuery{
		Topic:  q.Topic,
		Source: q.Source,
		Since:  q.Since,
		Until:  q.Until,
		Limit:  q.Limit,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rows)
}

// ReportPDF serves the progress report as a download.
func (uc *UserController) ReportPDF(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	report, err := uc.ProgressService.Report(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	var buf bytes.Buffer
	if err := uc.ProgressService.RenderPDF(report, &buf); err != nil {
		respondError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "progress_report.pdf"))
	c.Data(http.StatusOK, "application/pdf", buf.Bytes())
}
