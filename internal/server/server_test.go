package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/jonathan/perfect-fit/internal/applications"
	"github.com/jonathan/perfect-fit/internal/assessment"
	"github.com/jonathan/perfect-fit/internal/authoring"
	"github.com/jonathan/perfect-fit/internal/jobroles"
	"github.com/jonathan/perfect-fit/internal/llm"
	"github.com/jonathan/perfect-fit/internal/memstore"
	"github.com/jonathan/perfect-fit/internal/server/ratelimit"
	"github.com/jonathan/perfect-fit/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// captureDispatcher records batches instead of scoring them.
type captureDispatcher struct {
	mu      sync.Mutex
	batches []*types.ScoringBatch
}

func (d *captureDispatcher) Dispatch(_ context.Context, batch *types.ScoringBatch) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.batches = append(d.batches, batch)
	return nil
}

type failingPinger struct{}

func (failingPinger) Ping(context.Context) error { return errors.New("connection refused") }

// draftClient answers drafting prompts with canned content.
type draftClient struct {
	err error
}

func (c *draftClient) GenerateContent(context.Context, string, llm.ModelTier) (string, error) {
	return "- Design resilient services", c.err
}

func (c *draftClient) GenerateJSON(context.Context, string, llm.ModelTier) (string, error) {
	return `{"technical_questions": [{"question": "What is backpressure?", "desired_answer": "Slowing producers to match consumers"}]}`, c.err
}

func (c *draftClient) GetModel(llm.ModelTier) string { return "draft-model" }

func (c *draftClient) Close() error { return nil }

type testEnv struct {
	handler    http.Handler
	store      *memstore.Store
	dispatcher *captureDispatcher
	drafts     *draftClient
	jwt        *JWTService
}

func newTestEnv(t *testing.T, limiter *ratelimit.Limiter) *testEnv {
	t.Helper()
	store := memstore.New()
	dispatcher := &captureDispatcher{}
	drafts := &draftClient{}
	jwtService := setupTestJWTService(t, 1)

	srv := New(Config{Port: 0}, Deps{
		Jobs:         jobroles.New(store, nil),
		Applications: applications.New(store, nil),
		Assessments:  assessment.NewPipeline(store, dispatcher, nil),
		Drafts:       authoring.New(drafts, nil),
		Store:        store,
		JWT:          jwtService,
		RateLimiter:  limiter,
	})
	return &testEnv{handler: srv.Handler(), store: store, dispatcher: dispatcher, drafts: drafts, jwt: jwtService}
}

// actor is a principal with a signed token.
type actor struct {
	types.Principal
	token string
}

func (e *testEnv) actor(t *testing.T, role types.Role) actor {
	t.Helper()
	p := types.Principal{UserID: uuid.New(), Role: role}
	token, err := e.jwt.GenerateToken(p.UserID, role)
	require.NoError(t, err)
	return actor{Principal: p, token: token}
}

func (e *testEnv) do(t *testing.T, as *actor, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if as != nil {
		req.Header.Set("Authorization", "Bearer "+as.token)
	}
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func jobBody() map[string]any {
	return map[string]any{
		"title":        "Backend Engineer",
		"department":   "Engineering",
		"description":  "Builds the hiring platform services.",
		"requirements": "Go, PostgreSQL and RabbitMQ experience.",
		"technical_questions": []map[string]string{
			{"question": "What is a goroutine?", "desired_answer": "A lightweight thread managed by the Go runtime"},
			{"question": "What does MVCC stand for?", "desired_answer": "Multi-version concurrency control"},
		},
	}
}

// approvedJob creates a role as an employee and approves it as hr.
func (e *testEnv) approvedJob(t *testing.T, owner, reviewer *actor) types.JobRole {
	t.Helper()
	w := e.do(t, owner, http.MethodPost, "/jobs", jobBody())
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	job := decode[types.JobRole](t, w)

	w = e.do(t, reviewer, http.MethodPatch, "/jobs/"+job.ID.String()+"/approve", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	return decode[types.JobRole](t, w)
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, nil)
	w := env.do(t, nil, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", decode[map[string]string](t, w)["status"])
}

func TestHealth_StoreUnavailable(t *testing.T) {
	srv := New(Config{}, Deps{Store: failingPinger{}, JWT: setupTestJWTService(t, 1)})
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	env := newTestEnv(t, nil)
	routes := []struct{ method, path string }{
		{http.MethodPost, "/jobs"},
		{http.MethodGet, "/jobs"},
		{http.MethodGet, "/jobs/pending"},
		{http.MethodPost, "/jobs/generate"},
		{http.MethodGet, "/jobs/" + uuid.NewString()},
		{http.MethodPatch, "/jobs/" + uuid.NewString() + "/approve"},
		{http.MethodPost, "/applications/" + uuid.NewString()},
		{http.MethodGet, "/applications/me"},
		{http.MethodPost, "/applications/" + uuid.NewString() + "/technical-assessment/submit"},
	}
	for _, rt := range routes {
		t.Run(rt.method+" "+rt.path, func(t *testing.T) {
			w := env.do(t, nil, rt.method, rt.path, nil)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Equal(t, "unauthorized", decode[map[string]string](t, w)["code"])
		})
	}
}

func TestJobApprovalFlow(t *testing.T) {
	env := newTestEnv(t, nil)
	owner := env.actor(t, types.RoleEmployee)
	reviewer := env.actor(t, types.RoleHR)
	candidate := env.actor(t, types.RoleCandidate)

	w := env.do(t, &owner, http.MethodPost, "/jobs", jobBody())
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	job := decode[types.JobRole](t, w)
	assert.Equal(t, types.JobStatusPending, job.Status)
	assert.Equal(t, 1, job.Version)
	jobPath := "/jobs/" + job.ID.String()

	// Pending roles are invisible to candidates.
	w = env.do(t, &candidate, http.MethodGet, jobPath, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, &candidate, http.MethodPatch, jobPath+"/approve", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = env.do(t, &reviewer, http.MethodGet, "/jobs/pending", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]types.JobRole](t, w), 1)

	w = env.do(t, &reviewer, http.MethodPatch, jobPath+"/approve", map[string]string{"reason": "Looks good"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	approved := decode[types.JobRole](t, w)
	assert.Equal(t, types.JobStatusApproved, approved.Status)
	assert.Equal(t, 2, approved.Version)

	w = env.do(t, &reviewer, http.MethodPatch, jobPath+"/approve", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, types.ConflictAlreadyApproved, decode[map[string]string](t, w)["code"])

	w = env.do(t, nil, http.MethodGet, "/jobs/public", nil)
	require.Equal(t, http.StatusOK, w.Code)
	public := decode[[]types.JobRole](t, w)
	require.Len(t, public, 1)
	assert.Equal(t, job.ID, public[0].ID)

	// Candidates read the role without the scoring key.
	w = env.do(t, &candidate, http.MethodGet, jobPath, nil)
	require.Equal(t, http.StatusOK, w.Code)
	seen := decode[types.JobRole](t, w)
	require.Len(t, seen.TechnicalQuestions, 2)
	for _, q := range seen.TechnicalQuestions {
		assert.Empty(t, q.DesiredAnswer)
	}

	w = env.do(t, &reviewer, http.MethodGet, jobPath+"/approvals", nil)
	require.Equal(t, http.StatusOK, w.Code)
	history := decode[[]types.ApprovalRequest](t, w)
	require.Len(t, history, 1)
	assert.Equal(t, types.ApprovalApproved, history[0].Status)
}

func TestGenerateDraft(t *testing.T) {
	env := newTestEnv(t, nil)
	author := env.actor(t, types.RoleEmployee)
	reviewer := env.actor(t, types.RoleHR)

	w := env.do(t, &author, http.MethodPost, "/jobs/generate", map[string]string{
		"field_name": "responsibilities",
		"context":    "Platform Engineer",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	draft := decode[types.Draft](t, w)
	assert.Equal(t, types.DraftResponsibilities, draft.Field)
	assert.Equal(t, "- Design resilient services", draft.Content)

	w = env.do(t, &author, http.MethodPost, "/jobs/generate", map[string]string{
		"field_name": "technical_questions",
		"context":    "Platform Engineer | Queues",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	draft = decode[types.Draft](t, w)
	require.Len(t, draft.TechnicalQuestions, 1)
	assert.Equal(t, "What is backpressure?", draft.TechnicalQuestions[0].Question)

	w = env.do(t, &reviewer, http.MethodPost, "/jobs/generate", map[string]string{
		"field_name": "description",
		"context":    "Platform Engineer",
	})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = env.do(t, &author, http.MethodPost, "/jobs/generate", map[string]string{
		"field_name": "benefits",
		"context":    "Platform Engineer",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "field_name", decode[map[string]string](t, w)["field"])

	env.drafts.err = errors.New("quota exceeded")
	w = env.do(t, &author, http.MethodPost, "/jobs/generate", map[string]string{
		"field_name": "description",
		"context":    "Platform Engineer",
	})
	assert.Equal(t, http.StatusBadGateway, w.Code)
	body := decode[map[string]string](t, w)
	assert.Equal(t, "upstream_error", body["code"])
	assert.NotContains(t, body["error"], "quota")
}

func TestRejectRequiresReason(t *testing.T) {
	env := newTestEnv(t, nil)
	owner := env.actor(t, types.RoleEmployee)
	reviewer := env.actor(t, types.RoleHR)

	w := env.do(t, &owner, http.MethodPost, "/jobs", jobBody())
	require.Equal(t, http.StatusCreated, w.Code)
	job := decode[types.JobRole](t, w)

	w = env.do(t, &reviewer, http.MethodPatch, "/jobs/"+job.ID.String()+"/reject", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	body := decode[map[string]string](t, w)
	assert.Equal(t, "validation_error", body["code"])
	assert.Equal(t, "reason", body["field"])

	w = env.do(t, &reviewer, http.MethodPatch, "/jobs/"+job.ID.String()+"/reject",
		map[string]string{"reason": "Salary range is missing"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, types.JobStatusRejected, decode[types.JobRole](t, w).Status)
}

func TestEditWithStaleVersionConflicts(t *testing.T) {
	env := newTestEnv(t, nil)
	owner := env.actor(t, types.RoleEmployee)

	w := env.do(t, &owner, http.MethodPost, "/jobs", jobBody())
	require.Equal(t, http.StatusCreated, w.Code)
	job := decode[types.JobRole](t, w)
	path := "/jobs/" + job.ID.String()

	w = env.do(t, &owner, http.MethodPatch, path, map[string]any{"title": "Senior Backend Engineer", "current_version": 1})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, 2, decode[types.JobRole](t, w).Version)

	w = env.do(t, &owner, http.MethodPatch, path, map[string]any{"title": "Staff Backend Engineer", "current_version": 1})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, types.ConflictVersion, decode[map[string]string](t, w)["code"])
}

func TestCloseAndReopen(t *testing.T) {
	env := newTestEnv(t, nil)
	owner := env.actor(t, types.RoleEmployee)
	reviewer := env.actor(t, types.RoleHR)
	candidate := env.actor(t, types.RoleCandidate)
	job := env.approvedJob(t, &owner, &reviewer)
	path := "/jobs/" + job.ID.String()

	w := env.do(t, &owner, http.MethodPatch, path+"/close", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = env.do(t, &reviewer, http.MethodPatch, path+"/close", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, decode[types.JobRole](t, w).IsOpen)

	w = env.do(t, &candidate, http.MethodPost, "/applications/"+job.ID.String(), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, &reviewer, http.MethodPost, "/applications/"+job.ID.String(), nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, types.ConflictJobNotAccepting, decode[map[string]string](t, w)["code"])

	w = env.do(t, &reviewer, http.MethodPatch, path+"/reopen", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decode[types.JobRole](t, w).IsOpen)
}

func TestDeleteJob(t *testing.T) {
	env := newTestEnv(t, nil)
	owner := env.actor(t, types.RoleEmployee)
	other := env.actor(t, types.RoleEmployee)
	reviewer := env.actor(t, types.RoleHR)

	w := env.do(t, &owner, http.MethodPost, "/jobs", jobBody())
	require.Equal(t, http.StatusCreated, w.Code)
	path := "/jobs/" + decode[types.JobRole](t, w).ID.String()

	// Another employee cannot see a pending role at all.
	w = env.do(t, &other, http.MethodDelete, path, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, &reviewer, http.MethodDelete, path, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = env.do(t, &owner, http.MethodDelete, path, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, &owner, http.MethodGet, path, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestApplicationAndAssessmentFlow(t *testing.T) {
	env := newTestEnv(t, nil)
	owner := env.actor(t, types.RoleEmployee)
	reviewer := env.actor(t, types.RoleHR)
	candidate := env.actor(t, types.RoleCandidate)
	job := env.approvedJob(t, &owner, &reviewer)

	w := env.do(t, &candidate, http.MethodPost, "/applications/"+job.ID.String(),
		map[string]string{"cover_letter": "I would love to join."})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	app := decode[types.Application](t, w)
	assert.Equal(t, types.ApplicationSubmitted, app.Status)

	w = env.do(t, &candidate, http.MethodPost, "/applications/"+job.ID.String(), nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, types.ConflictDuplicateApplication, decode[map[string]string](t, w)["code"])

	w = env.do(t, &candidate, http.MethodGet, "/applications/me", nil)
	require.Equal(t, http.StatusOK, w.Code)
	mine := decode[[]types.Application](t, w)
	require.Len(t, mine, 1)
	require.NotNil(t, mine[0].JobTitle)
	assert.Equal(t, "Backend Engineer", *mine[0].JobTitle)

	w = env.do(t, &candidate, http.MethodGet, "/applications", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	// Submit one known answer and one unknown question id.
	w = env.do(t, &reviewer, http.MethodGet, "/jobs/"+job.ID.String(), nil)
	require.Equal(t, http.StatusOK, w.Code)
	questions := decode[types.JobRole](t, w).TechnicalQuestions
	require.Len(t, questions, 2)

	assessmentPath := "/applications/" + app.ID.String() + "/technical-assessment"
	submission := map[string]any{"answers": []map[string]any{
		{"question_id": questions[0].ID, "answer": "A green thread scheduled by the runtime"},
		{"question_id": uuid.New(), "answer": "ignored"},
	}}
	w = env.do(t, &candidate, http.MethodPost, assessmentPath+"/submit", submission)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	receipt := decode[types.SubmissionReceipt](t, w)
	assert.Equal(t, 1, receipt.Accepted)
	assert.Equal(t, 1, receipt.Discarded)
	require.Len(t, env.dispatcher.batches, 1)
	assert.Equal(t, receipt.SubmissionID, env.dispatcher.batches[0].SubmissionID)

	other := env.actor(t, types.RoleCandidate)
	w = env.do(t, &other, http.MethodPost, assessmentPath+"/submit", submission)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = env.do(t, &candidate, http.MethodGet, assessmentPath, nil)
	require.Equal(t, http.StatusOK, w.Code)
	view := decode[types.AssessmentView](t, w)
	require.Len(t, view.Responses, 1)
	assert.Nil(t, view.Responses[0].AIScore)
	for _, q := range view.Questions {
		assert.Empty(t, q.DesiredAnswer)
	}

	w = env.do(t, &reviewer, http.MethodPut, "/applications/"+app.ID.String()+"/status",
		map[string]string{"status": "shortlisted", "feedback": "Strong answers"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, types.ApplicationShortlisted, decode[types.Application](t, w).Status)

	w = env.do(t, &reviewer, http.MethodGet, "/jobs/"+job.ID.String()+"/applications", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]types.Application](t, w), 1)
}

func TestBadInput(t *testing.T) {
	env := newTestEnv(t, nil)
	hr := env.actor(t, types.RoleHR)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		field  string
	}{
		{"malformed id", http.MethodGet, "/jobs/not-a-uuid", nil, "id"},
		{"bad limit", http.MethodGet, "/jobs?limit=0", nil, "limit"},
		{"bad status filter", http.MethodGet, "/jobs?status=archived", nil, "status"},
		{"bad application status", http.MethodGet, "/applications?status=archived", nil, "status"},
		{"missing body", http.MethodPost, "/jobs", nil, "body"},
		{"invalid status value", http.MethodPut, "/applications/" + uuid.NewString() + "/status",
			map[string]string{"status": "submitted"}, "status"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, &hr, tt.method, tt.path, tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
			assert.Equal(t, tt.field, decode[map[string]string](t, w)["field"])
		})
	}
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t, nil)
	w := env.do(t, nil, http.MethodOptions, "/jobs", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), "Authorization")
}

func TestRateLimit(t *testing.T) {
	limiter := ratelimit.NewLimiter(&ratelimit.Config{Enabled: true, RPS: 0.01, Burst: 2})
	defer limiter.Stop()
	env := newTestEnv(t, limiter)

	for i := 0; i < 2; i++ {
		w := env.do(t, nil, http.MethodGet, "/jobs/public", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "2", w.Header().Get("X-RateLimit-Limit"))
	}

	w := env.do(t, nil, http.MethodGet, "/jobs/public", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
}
