package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/stemsi/exstem-proctor/internal/checkpoint"
	"github.com/stemsi/exstem-proctor/internal/config"
	"github.com/stemsi/exstem-proctor/internal/middleware"
	"github.com/stemsi/exstem-proctor/internal/model"
	"github.com/stemsi/exstem-proctor/internal/response"
	"github.com/stemsi/exstem-proctor/internal/service"
	"github.com/stemsi/exstem-proctor/internal/session"
	"github.com/stemsi/exstem-proctor/internal/validator"
)

const testID = "aptitude-1"

func flatTest(id string, n int) *model.Test {
	t := &model.Test{ID: id, Name: "Aptitude", Type: "screening", DurationSeconds: 900}
	for i := 0; i < n; i++ {
		q := model.Question{ID: fmt.Sprintf("q%d", i+1), Prompt: "Pick one", Marks: 1}
		for _, l := range model.OptionLabels {
			q.Options = append(q.Options, model.Option{Label: l, Text: l})
		}
		t.Questions = append(t.Questions, q)
	}
	return t
}

type memTests struct {
	mu    sync.Mutex
	tests map[string]*model.Test
}

func (r *memTests) GetByID(_ context.Context, id string) (*model.Test, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tests[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return t, nil
}

func (r *memTests) Upsert(_ context.Context, t *model.Test) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tests[t.ID] = t
	return nil
}

func (r *memTests) ListAll(context.Context) ([]model.Test, error) { return nil, nil }

type nopSubmitter struct{}

func (nopSubmitter) Submit(context.Context, model.Submission) error { return nil }

type emptyProgress struct{}

func (emptyProgress) GetAnsweredCounts(context.Context, string) (map[string]int64, error) {
	return map[string]int64{}, nil
}

func (emptyProgress) GetViolationCounts(context.Context, string) (map[string]int64, error) {
	return map[string]int64{}, nil
}

func (emptyProgress) ListByTest(context.Context, string) ([]model.SubmissionSummary, error) {
	return nil, nil
}

// stillClock never ticks, so sessions only move when commanded.
type stillClock struct{}

func (stillClock) Now() time.Time                         { return time.Date(2026, 5, 4, 8, 0, 0, 0, time.UTC) }
func (stillClock) NewTicker(time.Duration) session.Ticker { return stillTicker{} }

type stillTicker struct{}

func (stillTicker) C() <-chan time.Time { return nil }
func (stillTicker) Stop()               {}

type harness struct {
	engine   *gin.Engine
	auth     *service.AuthService
	sessions *service.SessionService
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)
	validator.Setup()
	log := zerolog.Nop()

	repo := &memTests{tests: map[string]*model.Test{testID: flatTest(testID, 3)}}
	tests := service.NewTestService(repo, nil, time.Minute, log)
	sessions := service.NewSessionService(service.SessionDeps{
		Tests:     tests,
		Store:     checkpoint.NewMemoryStore(),
		Submitter: nopSubmitter{},
		Clock:     stillClock{},
	}, session.Config{ViolationThreshold: 3}, log)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = sessions.Shutdown(ctx)
	})

	auth := service.NewAuthService(&config.Config{JWTSecret: "handler-test-secret", JWTExpiry: time.Hour}, nil)
	monitor := service.NewMonitorService(emptyProgress{}, emptyProgress{}, sessions)

	sh := NewSessionHandler(sessions, tests, log)
	th := NewTestHandler(tests, log)
	mh := NewMonitorHandler(nil, tests, monitor, log)
	ah := NewAuthHandler(auth, log)
	wh := NewWSHandler(sessions, nil, log, nil)

	r := gin.New()
	r.Use(response.RequestIDMiddleware())

	cand := r.Group("/candidate", middleware.RequireCandidateJWT(auth))
	cand.GET("/me", ah.Me)
	cand.GET("/tests/:test_id/paper", sh.GetPaper)
	cand.POST("/tests/:test_id/session", sh.OpenSession)
	cand.GET("/tests/:test_id/session", sh.GetSession)
	cand.POST("/tests/:test_id/session/actions", sh.Dispatch)

	r.GET("/ws/tests/:test_id/stream", middleware.RequireCandidateWSAuth(auth), wh.SessionStream)

	proc := r.Group("/proctor", middleware.RequireProctorJWT(auth))
	proc.GET("/me", ah.Me)
	scoped := proc.Group("/tests/:test_id", middleware.RequireTestScope("test_id"))
	scoped.GET("", th.Get)
	scoped.PUT("", th.Upsert)
	scoped.GET("/progress", mh.GetProgress)

	return &harness{engine: r, auth: auth, sessions: sessions}
}

func (h *harness) token(t *testing.T, subject string, tt service.TokenType, scopes ...string) string {
	t.Helper()
	tok, _, err := h.auth.GenerateToken(subject, "Tester", tt, scopes...)
	require.NoError(t, err)
	return tok
}

func (h *harness) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.engine.ServeHTTP(w, req)
	return w
}

// envelope mirrors response.Response with a typed data payload.
type envelope[T any] struct {
	Data  T                   `json:"data"`
	Error *response.ErrorBody `json:"error"`
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) envelope[T] {
	t.Helper()
	var env envelope[T]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return env
}
