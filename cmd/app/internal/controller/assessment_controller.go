package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"quizcoach-backend/internal/service"
)

type AssessmentController struct {
	AssessmentService service.AssessmentService
}

func NewAssessmentController(assessmentService service.AssessmentService) *AssessmentController {
	return &AssessmentController{AssessmentService: assessmentService}
}

func (ac *AssessmentController) StartAssessment(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var req struct {
		Topic string `json:"topic"`
	}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
	}
	res, err := ac.AssessmentService.Start(c.Request.Context(), userID, req.Topic)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

func (ac *AssessmentController) SubmitAnswer(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var req struct {
		QuestionID string `json:"question_id" binding:"required"`
		Answer     string `json:"answer" binding:"required"`
		Signal     string `json:"signal"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	res, err := ac.AssessmentService.Submit(c.Request.Context(), service.SubmitAssessmentInput{
		SessionID:  c.Param("session_id"),
		QuestionID: req.QuestionID,
		Answer:     req.Answer,
		Signal:     req.Signal,
		UserID:     userID,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (ac *AssessmentController) GetAssessment(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	sess, err := ac.AssessmentService.Get(c.Request.Context(), c.Param("session_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	if sess.UserID != userID {
		c.JSON(http.StatusNotFound, gin.H{"error": "assessment not found", "code": "not_found"})
		return
	}
	c.JSON(http.StatusOK, sess)
}
