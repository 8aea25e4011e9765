package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"quizcoach-backend/internal/service"
)

type PracticeController struct {
	QuizService service.QuizService
}

func NewPracticeController(quizService service.QuizService) *PracticeController {
	return &PracticeController{QuizService: quizService}
}

func (pc *PracticeController) Next(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	res, err := pc.QuizService.NextQuestion(c.Request.Context(), userID, c.Query("topic"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (pc *PracticeController) Answer(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var req struct {
		QuestionID string `json:"question_id"`
		Answer     string `json:"answer" binding:"required"`
		Signal     string `json:"signal"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	res, err := pc.QuizService.SubmitAnswer(c.Request.Context(), service.SubmitAnswerInput{
		UserID:     userID,
		QuestionID: req.QuestionID,
		Answer:     req.Answer,
		Signal:     req.Signal,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (pc *PracticeController) Feedback(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var req struct {
		Signal string `json:"signal" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	state, err := pc.QuizService.GiveFeedback(c.Request.Context(), userID, req.Signal)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, state)
}

func (pc *PracticeController) Promotion(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var req struct {
		Accept *bool `json:"accept" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	state, err := pc.QuizService.RespondPromotion(c.Request.Context(), userID, *req.Accept)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, state)
}

func (pc *PracticeController) LevelStatus(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var q struct {
		Topic string `form:"topic"`
		Level int    `form:"level"`
	}
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, err)
		return
	}
	st, err := pc.QuizService.LevelStatus(c.Request.Context(), userID, q.Topic, q.Level)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}
