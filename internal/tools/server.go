// Package tools exposes the quiz operations as MCP tools so chat front ends
// can call them by name.
package tools

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"quizcoach-backend/internal/apperr"
	"quizcoach-backend/internal/service"
	"quizcoach-backend/utilities"
)

// Version is set at build time via ldflags.
var Version = "dev"

const instructions = `Quiz coach tools. Call start_assessment once for a new learner,
then next_question / submit_answer for practice. Answers may be a choice
number (1, 2, ...), a letter (A, B, ...) or the choice text.`

// Handlers binds tool calls to the quiz services.
type Handlers struct {
	quiz     service.QuizService
	assess   service.AssessmentService
	progress service.ProgressService
	log      *utilities.Logger
}

func NewHandlers(quiz service.QuizService, assess service.AssessmentService, progress service.ProgressService, log *utilities.Logger) *Handlers {
	return &Handlers{quiz: quiz, assess: assess, progress: progress, log: log.With("component", "tools")}
}

type tool struct {
	def    mcp.Tool
	handle server.ToolHandlerFunc
}

func (h *Handlers) tools() []tool {
	return []tool{
		{getQuestionTool(), h.getQuestion},
		{nextQuestionTool(), h.nextQuestion},
		{submitAnswerTool(), h.submitAnswer},
		{giveFeedbackTool(), h.giveFeedback},
		{respondPromotionTool(), h.respondPromotion},
		{startAssessmentTool(), h.startAssessment},
		{submitAssessmentAnswerTool(), h.submitAssessmentAnswer},
		{getUserStateTool(), h.getUserState},
		{levelStatusTool(), h.levelStatus},
		{progressReportTool(), h.progressReport},
	}
}

// Register adds every tool to s.
func (h *Handlers) Register(s *server.MCPServer) {
	for _, t := range h.tools() {
		s.AddTool(t.def, t.handle)
	}
}

// NewServer creates the MCP server with all quiz tools registered.
func NewServer(h *Handlers) *server.MCPServer {
	s := server.NewMCPServer(
		"quizcoach",
		Version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
		server.WithInstructions(instructions),
	)
	h.Register(s)
	return s
}

// result turns a service outcome into a tool result. Failures become error
// results, not protocol errors, so the caller sees the kind.
func (h *Handlers) result(name string, v interface{}, err error) (*mcp.CallToolResult, error) {
	if err != nil {
		kind := apperr.KindOf(err)
		if kind == apperr.KindInternal || kind == apperr.KindStoreUnavailable {
			h.log.Error("tool failed", "tool", name, "error", err)
		} else {
			h.log.Debug("tool rejected", "tool", name, "kind", kind, "error", err)
		}
		body, _ := json.Marshal(map[string]string{"error": err.Error(), "code": string(kind)})
		return mcp.NewToolResultError(string(body)), nil
	}
	body, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(body)), nil
}

func missing(name string) error {
	return apperr.Validation("%s is required", name)
}

func requireString(req mcp.CallToolRequest, name string) (string, error) {
	v, err := req.RequireString(name)
	if err != nil {
		return "", missing(name)
	}
	return v, nil
}

func (h *Handlers) getQuestion(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	topic, err := requireString(req, "topic")
	if err != nil {
		return h.result("get_question", nil, err)
	}
	level := req.GetInt("level", 0)
	q, err := h.quiz.GetQuestion(ctx, topic, level)
	return h.result("get_question", q, err)
}

func (h *Handlers) nextQuestion(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	user, err := requireString(req, "user_id")
	if err != nil {
		return h.result("next_question", nil, err)
	}
	res, err := h.quiz.NextQuestion(ctx, user, req.GetString("topic", ""))
	return h.result("next_question", res, err)
}

func (h *Handlers) submitAnswer(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	res, err := h.quiz.SubmitAnswer(ctx, service.SubmitAnswerInput{
		UserID:     req.GetString("user_id", ""),
		QuestionID: req.GetString("question_id", ""),
		Answer:     req.GetString("answer", ""),
		Signal:     req.GetString("signal", ""),
	})
	return h.result("submit_answer", res, err)
}

func (h *Handlers) giveFeedback(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	state, err := h.quiz.GiveFeedback(ctx, req.GetString("user_id", ""), req.GetString("signal", ""))
	return h.result("give_feedback", state, err)
}

func (h *Handlers) respondPromotion(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	accept, err := req.RequireBool("accept")
	if err != nil {
		return h.result("respond_promotion", nil, missing("accept"))
	}
	state, err := h.quiz.RespondPromotion(ctx, req.GetString("user_id", ""), accept)
	return h.result("respond_promotion", state, err)
}

func (h *Handlers) startAssessment(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	res, err := h.assess.Start(ctx, req.GetString("user_id", ""), req.GetString("topic", ""))
	return h.result("start_assessment", res, err)
}

func (h *Handlers) submitAssessmentAnswer(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	res, err := h.assess.Submit(ctx, service.SubmitAssessmentInput{
		SessionID:  req.GetString("session_id", ""),
		QuestionID: req.GetString("question_id", ""),
		Answer:     req.GetString("answer", ""),
		Signal:     req.GetString("signal", ""),
		UserID:     req.GetString("user_id", ""),
	})
	return h.result("submit_assessment_answer", res, err)
}

func (h *Handlers) getUserState(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	state, err := h.quiz.GetUserState(ctx, req.GetString("user_id", ""))
	return h.result("get_user_state", state, err)
}

func (h *Handlers) levelStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	st, err := h.quiz.LevelStatus(ctx, req.GetString("user_id", ""), req.GetString("topic", ""), req.GetInt("level", 0))
	return h.result("level_status", st, err)
}

func (h *Handlers) progressReport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	rep, err := h.progress.Report(ctx, req.GetString("user_id", ""))
	return h.result("progress_report", rep, err)
}
