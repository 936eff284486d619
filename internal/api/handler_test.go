package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mr1hm/go-triage-queue/internal/dispatch"
	"github.com/mr1hm/go-triage-queue/internal/models"
	"github.com/mr1hm/go-triage-queue/internal/queue"
	"github.com/mr1hm/go-triage-queue/internal/ranking"
)

// mockService implements QueueService for testing
type mockService struct {
	snap       dispatch.Snapshot
	refreshErr error
	refreshes  int
	cases      map[string]models.Case
}

func (m *mockService) Snapshot() dispatch.Snapshot { return m.snap }

func (m *mockService) Refresh(ctx context.Context) error {
	m.refreshes++
	return m.refreshErr
}

func (m *mockService) Accept(ctx context.Context, id string) (dispatch.ActionResult, error) {
	c, ok := m.cases[id]
	if !ok {
		return dispatch.ActionResult{}, queue.ErrCaseNotFound
	}
	if c.Status != models.StatusPending {
		return dispatch.ActionResult{Case: c}, nil
	}
	c.Status = models.StatusAccepted
	m.cases[id] = c
	h := models.Handoff{ID: "h1", PatientID: c.PatientID, CaseID: c.ID, Status: models.StatusAccepted}
	return dispatch.ActionResult{Case: c, Changed: true, Handoff: &h}, nil
}

func (m *mockService) Stabilize(ctx context.Context, id string) (dispatch.ActionResult, error) {
	return m.resolve(id, models.StatusStabilized)
}

func (m *mockService) Escalate(ctx context.Context, id string) (dispatch.ActionResult, error) {
	return m.resolve(id, models.StatusEscalated)
}

func (m *mockService) resolve(id string, to models.CaseStatus) (dispatch.ActionResult, error) {
	c, ok := m.cases[id]
	if !ok {
		return dispatch.ActionResult{}, queue.ErrCaseNotFound
	}
	if !c.Status.CanTransition(to) {
		return dispatch.ActionResult{Case: c}, nil
	}
	c.Status = to
	m.cases[id] = c
	return dispatch.ActionResult{Case: c, Changed: true}, nil
}

// mockAudit implements repository.TransitionRepository for testing
type mockAudit struct {
	transitions []models.Transition
	err         error
}

func (m *mockAudit) AddTransition(ctx context.Context, t models.Transition) error {
	m.transitions = append(m.transitions, t)
	return nil
}

func (m *mockAudit) ListTransitions(ctx context.Context, caseID string) ([]models.Transition, error) {
	if m.err != nil {
		return nil, m.err
	}
	var out []models.Transition
	for _, t := range m.transitions {
		if t.CaseID == caseID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *mockAudit) LatestStatuses(ctx context.Context) (map[string]models.CaseStatus, error) {
	return nil, nil
}

func setupTestRouter(svc QueueService, audit *mockAudit) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	handler := NewHandler(svc, nil)
	if audit != nil {
		handler = NewHandler(svc, audit)
	}
	handler.RegisterRoutes(router)
	return router
}

func serve(router *gin.Engine, method, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func testCase(id string, level models.SeverityLevel, status models.CaseStatus) models.Case {
	return models.Case{
		ID:            id,
		PatientID:     "p-" + id,
		TriggerSource: models.TriggerSourceAITriage,
		SeverityLevel: level,
		Status:        status,
		Location:      models.Location{Lat: 12.97, Lng: 77.59},
	}
}

func TestGetQueue_Ranked(t *testing.T) {
	svc := &mockService{snap: dispatch.Snapshot{
		Entries: []ranking.Entry{
			{Case: testCase("a", models.SeverityCritical, models.StatusPending), Weight: 4, DistanceKm: 1.2},
			{Case: testCase("b", models.SeverityHigh, models.StatusAccepted), Weight: 3, DistanceKm: 0.4},
		},
		GeneratedAt: time.Now(),
	}}
	router := setupTestRouter(svc, nil)

	w := serve(router, http.MethodGet, "/api/queue")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}

	var resp struct {
		Count   int    `json:"count"`
		Message string `json:"message"`
		Entries []struct {
			ID         string  `json:"id"`
			Rank       int     `json:"rank"`
			CanAccept  bool    `json:"can_accept"`
			DistanceKm float64 `json:"distance_km"`
			Weight     int     `json:"severity_weight"`
		} `json:"entries"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}

	if resp.Count != 2 || len(resp.Entries) != 2 || resp.Message != "" {
		t.Fatalf("unexpected response %+v", resp)
	}
	first, second := resp.Entries[0], resp.Entries[1]
	if first.ID != "a" || first.Rank != 1 || !first.CanAccept || first.Weight != 4 {
		t.Errorf("unexpected first entry %+v", first)
	}
	if second.ID != "b" || second.Rank != 2 || second.CanAccept || second.DistanceKm != 0.4 {
		t.Errorf("unexpected second entry %+v", second)
	}
}

func TestGetQueue_Empty(t *testing.T) {
	svc := &mockService{snap: dispatch.Snapshot{Entries: []ranking.Entry{}}}
	router := setupTestRouter(svc, nil)

	w := serve(router, http.MethodGet, "/api/queue")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}

	var resp map[string]any
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp["message"] != "No active emergencies" {
		t.Errorf("expected empty message, got %v", resp["message"])
	}
	entries, ok := resp["entries"].([]any)
	if !ok || len(entries) != 0 {
		t.Errorf("expected empty entries array, got %v", resp["entries"])
	}
}

func TestAccept(t *testing.T) {
	svc := &mockService{cases: map[string]models.Case{
		"a": testCase("a", models.SeverityCritical, models.StatusPending),
	}}
	router := setupTestRouter(svc, nil)

	w := serve(router, http.MethodPost, "/api/cases/a/accept")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}

	var resp ActionResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	if !resp.Changed || resp.Status != models.StatusAccepted || resp.Handoff == nil {
		t.Errorf("unexpected accept response %+v", resp)
	}

	// Accepting again is a no-op
	w = serve(router, http.MethodPost, "/api/cases/a/accept")
	var again ActionResponse
	json.Unmarshal(w.Body.Bytes(), &again)
	if w.Code != http.StatusOK || again.Changed || again.Handoff != nil {
		t.Errorf("expected idempotent accept, got %d %+v", w.Code, again)
	}
}

func TestResolveActions(t *testing.T) {
	svc := &mockService{cases: map[string]models.Case{
		"a": testCase("a", models.SeverityHigh, models.StatusAccepted),
		"b": testCase("b", models.SeverityHigh, models.StatusAccepted),
		"c": testCase("c", models.SeverityLow, models.StatusPending),
	}}
	router := setupTestRouter(svc, nil)

	tests := []struct {
		path    string
		status  models.CaseStatus
		changed bool
	}{
		{"/api/cases/a/stabilize", models.StatusStabilized, true},
		{"/api/cases/b/escalate", models.StatusEscalated, true},
		{"/api/cases/c/stabilize", models.StatusPending, false},
	}

	for _, tt := range tests {
		w := serve(router, http.MethodPost, tt.path)
		if w.Code != http.StatusOK {
			t.Fatalf("%s: expected status 200, got %d", tt.path, w.Code)
		}
		var resp ActionResponse
		json.Unmarshal(w.Body.Bytes(), &resp)
		if resp.Status != tt.status || resp.Changed != tt.changed {
			t.Errorf("%s: expected %s/%v, got %+v", tt.path, tt.status, tt.changed, resp)
		}
	}
}

func TestAction_UnknownCase(t *testing.T) {
	router := setupTestRouter(&mockService{cases: map[string]models.Case{}}, nil)

	for _, path := range []string{"/api/cases/nope/accept", "/api/cases/nope/stabilize", "/api/cases/nope/escalate"} {
		w := serve(router, http.MethodPost, path)
		if w.Code != http.StatusNotFound {
			t.Errorf("%s: expected status 404, got %d", path, w.Code)
		}
	}
}

func TestRefresh(t *testing.T) {
	svc := &mockService{snap: dispatch.Snapshot{Entries: []ranking.Entry{}}}
	router := setupTestRouter(svc, nil)

	w := serve(router, http.MethodPost, "/api/refresh")
	if w.Code != http.StatusOK || svc.refreshes != 1 {
		t.Errorf("expected one successful refresh, got %d (%d calls)", w.Code, svc.refreshes)
	}
}

func TestRefresh_FailureHidesCause(t *testing.T) {
	svc := &mockService{refreshErr: errors.New("dial tcp 10.0.0.5:3000: connection refused")}
	router := setupTestRouter(svc, nil)

	w := serve(router, http.MethodPost, "/api/refresh")
	if w.Code != http.StatusBadGateway {
		t.Fatalf("expected status 502, got %d", w.Code)
	}

	var resp map[string]string
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp["error"] != "failed to refresh emergency queue" {
		t.Errorf("expected generic error, got %q", resp["error"])
	}
}

func TestGetTransitions(t *testing.T) {
	audit := &mockAudit{transitions: []models.Transition{
		{ID: "t1", CaseID: "a", From: models.StatusPending, To: models.StatusAccepted, Actor: models.ActorDoctor},
		{ID: "t2", CaseID: "b", From: models.StatusPending, To: models.StatusAccepted, Actor: models.ActorFeed},
	}}
	router := setupTestRouter(&mockService{}, audit)

	w := serve(router, http.MethodGet, "/api/cases/a/transitions")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}

	var resp struct {
		CaseID      string              `json:"case_id"`
		Transitions []models.Transition `json:"transitions"`
	}
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.CaseID != "a" || len(resp.Transitions) != 1 || resp.Transitions[0].ID != "t1" {
		t.Errorf("unexpected transitions response %+v", resp)
	}

	w = serve(router, http.MethodGet, "/api/cases/zzz/transitions")
	if w.Code != http.StatusOK || !json.Valid(w.Body.Bytes()) {
		t.Errorf("expected empty transitions list, got %d %s", w.Code, w.Body.String())
	}
}

func TestGetTransitions_Errors(t *testing.T) {
	router := setupTestRouter(&mockService{}, nil)
	if w := serve(router, http.MethodGet, "/api/cases/a/transitions"); w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected status 503 without audit log, got %d", w.Code)
	}

	router = setupTestRouter(&mockService{}, &mockAudit{err: errors.New("disk I/O error")})
	if w := serve(router, http.MethodGet, "/api/cases/a/transitions"); w.Code != http.StatusInternalServerError {
		t.Errorf("expected status 500, got %d", w.Code)
	}
}

func TestHealth(t *testing.T) {
	router := setupTestRouter(&mockService{}, nil)

	w := serve(router, http.MethodGet, "/health")
	if w.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", w.Code)
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RateLimitMiddleware(1))
	NewHandler(&mockService{}, nil).RegisterRoutes(router)

	if w := serve(router, http.MethodGet, "/api/queue"); w.Code != http.StatusOK {
		t.Fatalf("expected first request to pass, got %d", w.Code)
	}
	if w := serve(router, http.MethodGet, "/api/queue"); w.Code != http.StatusTooManyRequests {
		t.Errorf("expected status 429, got %d", w.Code)
	}
	if w := serve(router, http.MethodGet, "/health"); w.Code != http.StatusOK {
		t.Errorf("expected health to bypass the limiter, got %d", w.Code)
	}
}
