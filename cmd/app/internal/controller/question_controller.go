package controller

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"quizcoach-backend/internal/model"
	"quizcoach-backend/internal/repository"
	"quizcoach-backend/internal/service"
)

type QuestionController struct {
	QuizService service.QuizService
	PageSize    int
}

func NewQuestionController(quizService service.QuizService, pageSize int) *QuestionController {
	if pageSize <= 0 {
		pageSize = 20
	}
	return &QuestionController{QuizService: quizService, PageSize: pageSize}
}

type questionListQuery struct {
	Topic  string `form:"topic"`
	Level  int    `form:"level"`
	Search string `form:"q"`
	Limit  int    `form:"limit"`
	Offset int    `form:"offset"`
	All    bool   `form:"all"`
}

func (qc *QuestionController) List(c *gin.Context) {
	var q questionListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, err)
		return
	}
	if q.Limit <= 0 {
		q.Limit = qc.PageSize
	}
	topic, err := model.ParseTopicOr(q.Topic, "")
	if err != nil {
		respondError(c, err)
		return
	}
	questions, err := qc.QuizService.ListQuestions(c.Request.Context(), repository.QuestionFilter{
		Topic:      topic,
		Level:      q.Level,
		ActiveOnly: !q.All,
		Search:     q.Search,
		Limit:      q.Limit,
		Offset:     q.Offset,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, questions)
}

func (qc *QuestionController) Random(c *gin.Context) {
	level, err := strconv.Atoi(c.Query("level"))
	if err != nil {
		badRequest(c, err)
		return
	}
	question, err := qc.QuizService.GetQuestion(c.Request.Context(), c.Query("topic"), level)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, question)
}

func (qc *QuestionController) Get(c *gin.Context) {
	question, err := qc.QuizService.GetQuestionByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, question)
}
