package controller

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quizcoach-backend/internal/config"
	"quizcoach-backend/internal/db"
	"quizcoach-backend/internal/model"
	"quizcoach-backend/internal/repository"
	"quizcoach-backend/internal/service"
	"quizcoach-backend/utilities"
)

func newRouter(t *testing.T, tokenAuth bool) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	conn, err := db.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := conn.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	log := utilities.NopLogger()
	bus := utilities.NewEventBus()
	t.Cleanup(bus.Wait)
	d := service.Deps{
		Questions:   repository.NewQuestionRepository(conn, log),
		Progress:    repository.NewProgressRepository(conn, log),
		Attempts:    repository.NewAttemptRepository(conn, log),
		Assessments: repository.NewAssessmentRepository(conn, log),
		Sessions:    repository.NewDBSessionStore(conn, log),
		Exec:        db.NewQueryExecutor(conn),
		Bus:         bus,
		Log:         log,
		Settings:    service.DefaultSettings(),
	}
	var qs []*model.Question
	for level := 1; level <= 10; level++ {
		qs = append(qs, &model.Question{
			ID:          "gr-" + string(rune('0'+level%10)),
			Topic:       model.TopicGrammar,
			Level:       level,
			Prompt:      "She ___ to school every day.",
			Choices:     []string{"go", "goes", "going"},
			AnswerKey:   "goes",
			Explanation: "Third person singular takes -s.",
			Active:      true,
		})
	}
	require.NoError(t, d.Questions.Upsert(context.Background(), qs))

	r := gin.New()
	r.Use(utilities.AuthMiddleware(tokenAuth))
	RegisterRoutes(r, Services{
		Quiz:        service.NewQuizService(d),
		Assessments: service.NewAssessmentService(d),
		Progress:    service.NewProgressService(d),
		Log:         log,
	})
	return r
}

func do(r http.Handler, method, path, user string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set(utilities.HeaderUserID, user)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	r := newRouter(t, true)
	w := do(r, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestPracticeFlow(t *testing.T) {
	r := newRouter(t, false)

	w := do(r, http.MethodGet, "/practice/next?topic=grammar", "alice", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var next service.NextQuestionResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &next))
	assert.Equal(t, "gr-3", next.Question.ID)
	assert.NotContains(t, w.Body.String(), "answer_key")
	assert.NotContains(t, w.Body.String(), "Third person")

	w = do(r, http.MethodPost, "/practice/answer", "alice", gin.H{"answer": "B"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var res service.SubmitAnswerResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.True(t, res.Verdict.IsCorrect)
	assert.Equal(t, 4, res.UpdatedLevel)

	w = do(r, http.MethodPost, "/practice/feedback", "alice", gin.H{"signal": "hard"})
	require.Equal(t, http.StatusOK, w.Code)
	var state service.UserState
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &state))
	assert.Equal(t, 3, state.Level)

	w = do(r, http.MethodPost, "/practice/promotion", "alice", gin.H{"accept": true})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodGet, "/practice/level-status?topic=grammar&level=3", "alice", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var st service.LevelStatus
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &st))
	assert.True(t, st.Cleared)
}

func TestPracticeErrors(t *testing.T) {
	r := newRouter(t, false)

	w := do(r, http.MethodGet, "/practice/next", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(r, http.MethodPost, "/practice/answer", "bob", gin.H{"answer": "1"})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), `"code":"not_found"`)

	w = do(r, http.MethodPost, "/practice/answer", "bob", gin.H{"question_id": "gr-3", "answer": "1", "signal": "panic"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), `"code":"validation"`)

	w = do(r, http.MethodGet, "/questions/random?topic=culture&level=2", "bob", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), `"code":"exhausted"`)
}

func TestAssessmentEndpoints(t *testing.T) {
	r := newRouter(t, false)

	w := do(r, http.MethodPost, "/assessments/start", "carol", gin.H{"topic": "grammar"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var start service.StartAssessmentResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &start))

	qid := start.FirstQuestion.ID
	var res service.SubmitAssessmentResult
	for i := 0; i < 5; i++ {
		w = do(r, http.MethodPost, "/assessments/"+start.SessionID+"/answer", "carol", gin.H{"question_id": qid, "answer": "goes"})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		res = service.SubmitAssessmentResult{}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
		if res.NextQuestion != nil {
			qid = res.NextQuestion.ID
		}
	}
	assert.True(t, res.Finished)
	assert.Equal(t, 8, res.FinalLevel)

	w = do(r, http.MethodPost, "/assessments/"+start.SessionID+"/answer", "carol", gin.H{"question_id": qid, "answer": "goes"})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), `"code":"already_completed"`)

	w = do(r, http.MethodGet, "/assessments/"+start.SessionID, "carol", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var sess model.AssessmentSession
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sess))
	assert.Equal(t, model.SessionFinished, sess.Status)

	w = do(r, http.MethodGet, "/assessments/"+start.SessionID, "mallory", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(r, http.MethodGet, "/users/me/state", "carol", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var state service.UserState
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &state))
	assert.Equal(t, 8, state.Level)
	assert.True(t, state.AssessmentCompleted)
}

func TestQuestionEndpoints(t *testing.T) {
	r := newRouter(t, false)

	w := do(r, http.MethodGet, "/questions?topic=grammar&limit=3", "dave", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list []service.QuestionView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Len(t, list, 3)

	w = do(r, http.MethodGet, "/questions/gr-5", "dave", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "Third person")

	w = do(r, http.MethodGet, "/questions/none", "dave", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(r, http.MethodGet, "/questions?topic=astronomy", "dave", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestReportEndpoints(t *testing.T) {
	r := newRouter(t, false)
	do(r, http.MethodPost, "/practice/answer", "erin", gin.H{"question_id": "gr-3", "answer": "3"})

	w := do(r, http.MethodGet, "/users/me/report", "erin", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var rep service.ProgressReport
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rep))
	require.Len(t, rep.Topics, 1)
	assert.Equal(t, int64(1), rep.Topics[0].Attempts)

	w = do(r, http.MethodGet, "/users/me/report.pdf", "erin", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("%PDF-")))
}

func TestHistoryEndpoint(t *testing.T) {
	r := newRouter(t, false)
	do(r, http.MethodPost, "/practice/answer", "gina", gin.H{"question_id": "gr-3", "answer": "goes"})
	do(r, http.MethodPost, "/practice/answer", "gina", gin.H{"question_id": "gr-4", "answer": "go"})

	w := do(r, http.MethodGet, "/users/me/history?topic=grammar&source=practice", "gina", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var rows []model.Attempt
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rows))
	require.Len(t, rows, 2)
	assert.Equal(t, "gr-4", rows[0].QuestionID)
	assert.False(t, rows[0].IsCorrect)

	w = do(r, http.MethodGet, "/users/me/history?until=2000-01-01T00:00:00Z", "gina", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, "[]", w.Body.String())

	w = do(r, http.MethodGet, "/users/me/history?since=2030-01-02T00:00:00Z&until=2030-01-01T00:00:00Z", "gina", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = do(r, http.MethodGet, "/users/me/history?source=imported", "gina", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = do(r, http.MethodGet, "/users/me/history?since=yesterday", "gina", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTokenAuth(t *testing.T) {
	utilities.ConfigureTokens(config.AuthenticationConfig{
		EnableTokenAuth: true,
		AccessSecret:    "access-test-secret",
		RefreshSecret:   "refresh-test-secret",
		AccessTTL:       5,
		RefreshTTL:      1,
	})
	r := newRouter(t, true)

	w := do(r, http.MethodGet, "/users/me/state", "spoofed", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(r, http.MethodPost, "/auth/token", "", gin.H{"user_id": "frank"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var tokens struct {
		Access  string `json:"access_token"`
		Refresh string `json:"refresh_token"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &tokens))

	req := httptest.NewRequest(http.MethodGet, "/users/me/state", nil)
	req.Header.Set("Authorization", "Bearer "+tokens.Access)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"user_id":"frank"`)

	w = do(r, http.MethodPost, "/auth/refresh", "", gin.H{"refresh_token": tokens.Refresh})
	assert.Equal(t, http.StatusOK, w.Code)
	w = do(r, http.MethodPost, "/auth/refresh", "", gin.H{"refresh_token": tokens.Access})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
