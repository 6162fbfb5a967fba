package httpadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kirillkom/rag-evalkit/internal/config"
	"github.com/kirillkom/rag-evalkit/internal/core/domain"
	"github.com/kirillkom/rag-evalkit/internal/core/ports"
)

type runSchedulerFake struct {
	scheduledNames []string
	lastConfig     domain.RunConfig
	runs           []domain.EvaluationRun
	err            error
}

func (f *runSchedulerFake) Schedule(_ context.Context, name string, cfg domain.RunConfig) (*domain.EvaluationRun, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.scheduledNames = append(f.scheduledNames, name)
	f.lastConfig = cfg
	return &domain.EvaluationRun{ID: "run-1", Name: name, Status: domain.RunPending, Config: cfg}, nil
}

func (f *runSchedulerFake) GetByID(_ context.Context, id string) (*domain.EvaluationRun, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &domain.EvaluationRun{ID: id, Name: "stored", Status: domain.RunCompleted}, nil
}

func (f *runSchedulerFake) List(_ context.Context, _ int) ([]domain.EvaluationRun, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.runs, nil
}

type queryServiceFake struct {
	gotMode string
	gotK    int
	hits    []domain.RankedHit
	err     error
}

func (f *queryServiceFake) Query(_ context.Context, _ string, mode string, k int) ([]domain.RankedHit, error) {
	f.gotMode = mode
	f.gotK = k
	if f.err != nil {
		return nil, f.err
	}
	return f.hits, nil
}

type answerServiceFake struct {
	answer *domain.Answer
	err    error
}

func (f *answerServiceFake) Answer(context.Context, string, int) (*domain.Answer, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.answer, nil
}

func newTestHandler(
	t *testing.T,
	cfg config.Config,
	runs ports.RunScheduler,
	queries ports.RetrievalQueryService,
	answers ports.GroundedAnswerService,
) http.Handler {
	t.Helper()
	router, err := NewRouter(cfg, runs, queries, answers, nil)
	if err != nil {
		t.Fatalf("build router: %v", err)
	}
	return router.Handler()
}

func postJSONRequest(path string, payload any) *http.Request {
	body, _ := json.Marshal(payload)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestScheduleRunReturns202(t *testing.T) {
	runs := &runSchedulerFake{}
	handler := newTestHandler(t, config.Config{}, runs, &queryServiceFake{}, &answerServiceFake{})

	req := postJSONRequest("/v1/runs", map[string]any{
		"name":   "nightly",
		"config": map[string]any{"top_k": 3, "dense_weight": 0.7, "sparse_weight": 0.3},
	})
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", res.Code, res.Body.String())
	}
	var run domain.EvaluationRun
	if err := json.NewDecoder(res.Body).Decode(&run); err != nil {
		t.Fatalf("decode run: %v", err)
	}
	if run.Name != "nightly" || run.Status != domain.RunPending {
		t.Fatalf("unexpected run payload: %+v", run)
	}
	if runs.lastConfig.TopK != 3 {
		t.Fatalf("expected top k 3 to reach scheduler, got %d", runs.lastConfig.TopK)
	}
}

func TestScheduleRunRejectsWrongFieldTypeViaContract(t *testing.T) {
	handler := newTestHandler(t, config.Config{}, &runSchedulerFake{}, &queryServiceFake{}, &answerServiceFake{})

	req := postJSONRequest("/v1/runs", map[string]any{
		"config": map[string]any{"top_k": "three"},
	})
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for non-integer top_k, got %d", res.Code)
	}
}

func TestListRunsWrapsCollection(t *testing.T) {
	runs := &runSchedulerFake{runs: []domain.EvaluationRun{{ID: "a"}, {ID: "b"}}}
	handler := newTestHandler(t, config.Config{}, runs, &queryServiceFake{}, &answerServiceFake{})

	req := httptest.NewRequest(http.MethodGet, "/v1/runs?limit=2", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	var payload struct {
		Runs []domain.EvaluationRun `json:"runs"`
	}
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(payload.Runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(payload.Runs))
	}
}

func TestListRunsRejectsNonIntegerLimit(t *testing.T) {
	handler := newTestHandler(t, config.Config{}, &runSchedulerFake{}, &queryServiceFake{}, &answerServiceFake{})

	req := httptest.NewRequest(http.MethodGet, "/v1/runs?limit=ten", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for non-integer limit, got %d", res.Code)
	}
}

func TestGetRunByID(t *testing.T) {
	handler := newTestHandler(t, config.Config{}, &runSchedulerFake{}, &queryServiceFake{}, &answerServiceFake{})

	req := httptest.NewRequest(http.MethodGet, "/v1/runs/run-42", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	var run domain.EvaluationRun
	if err := json.NewDecoder(res.Body).Decode(&run); err != nil {
		t.Fatalf("decode run: %v", err)
	}
	if run.ID != "run-42" {
		t.Fatalf("expected run-42, got %q", run.ID)
	}
}

func TestQueryRetrievalDefaultsToFusedMode(t *testing.T) {
	queries := &queryServiceFake{hits: []domain.RankedHit{
		{DocumentID: "doc-1", Score: 0.9, Rank: 1},
		{DocumentID: "doc-2", Score: 0.4, Rank: 2},
	}}
	handler := newTestHandler(t, config.Config{}, &runSchedulerFake{}, queries, &answerServiceFake{})

	req := postJSONRequest("/v1/retrieval/query", map[string]any{"question": "what is bm25?"})
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	var payload struct {
		Mode string             `json:"mode"`
		Hits []domain.RankedHit `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.Mode != "fused" {
		t.Fatalf("expected reported mode fused, got %q", payload.Mode)
	}
	if len(payload.Hits) != 2 || payload.Hits[0].DocumentID != "doc-1" {
		t.Fatalf("unexpected hits: %+v", payload.Hits)
	}
}

func TestQueryRetrievalRejectsUnknownModeViaContract(t *testing.T) {
	handler := newTestHandler(t, config.Config{}, &runSchedulerFake{}, &queryServiceFake{}, &answerServiceFake{})

	req := postJSONRequest("/v1/retrieval/query", map[string]any{"question": "q", "mode": "cosine"})
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown mode, got %d", res.Code)
	}
}

func TestQueryRetrievalRequiresQuestion(t *testing.T) {
	handler := newTestHandler(t, config.Config{}, &runSchedulerFake{}, &queryServiceFake{}, &answerServiceFake{})

	req := postJSONRequest("/v1/retrieval/query", map[string]any{"k": 3})
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing question, got %d", res.Code)
	}
}

func TestAnswerReturnsTextAndSources(t *testing.T) {
	answers := &answerServiceFake{answer: &domain.Answer{
		Text:    "BM25 is a ranking function.",
		Sources: []domain.RankedHit{{DocumentID: "doc-1", Score: 0.8, Rank: 1}},
	}}
	handler := newTestHandler(t, config.Config{}, &runSchedulerFake{}, &queryServiceFake{}, answers)

	req := postJSONRequest("/v1/rag/answer", map[string]any{"question": "what is bm25?", "k": 2})
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	var answer domain.Answer
	if err := json.NewDecoder(res.Body).Decode(&answer); err != nil {
		t.Fatalf("decode answer: %v", err)
	}
	if answer.Text == "" || len(answer.Sources) != 1 {
		t.Fatalf("unexpected answer payload: %+v", answer)
	}
}

func TestMethodNotAllowedOnContractPath(t *testing.T) {
	handler := newTestHandler(t, config.Config{}, &runSchedulerFake{}, &queryServiceFake{}, &answerServiceFake{})

	req := httptest.NewRequest(http.MethodDelete, "/v1/runs", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", res.Code)
	}
}

func TestBearerAuthGuardsV1Routes(t *testing.T) {
	handler := newTestHandler(t, config.Config{APIKey: "secret"}, &runSchedulerFake{}, &queryServiceFake{}, &answerServiceFake{})

	req := httptest.NewRequest(http.MethodGet, "/v1/runs", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", res.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/v1/runs", nil)
	req.Header.Set("Authorization", "Bearer secret")
	res = httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d", res.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	res = httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusOK {
		t.Fatalf("expected health to stay open, got %d", res.Code)
	}
}

func TestRequestIDHeaderIsEchoed(t *testing.T) {
	handler := newTestHandler(t, config.Config{}, &runSchedulerFake{}, &queryServiceFake{}, &answerServiceFake{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(requestIDHeader, "req-123")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if got := res.Header().Get(requestIDHeader); got != "req-123" {
		t.Fatalf("expected request id echoed, got %q", got)
	}
}
