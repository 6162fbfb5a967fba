package httpadapter

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kirillkom/rag-evalkit/internal/config"
	"github.com/kirillkom/rag-evalkit/internal/core/domain"
)

func TestScheduleRunMapsInvalidConfigTo400(t *testing.T) {
	runs := &runSchedulerFake{err: domain.WrapError(domain.ErrInvalidConfig, "run config", errors.New("fusion weights sum to zero"))}
	handler := newTestHandler(t, config.Config{}, runs, &queryServiceFake{}, &answerServiceFake{})

	req := postJSONRequest("/v1/runs", map[string]any{"name": "bad"})
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestGetRunMapsNotFoundTo404(t *testing.T) {
	runs := &runSchedulerFake{err: domain.WrapError(domain.ErrRunNotFound, "get run by id", errors.New("id=missing"))}
	handler := newTestHandler(t, config.Config{}, runs, &queryServiceFake{}, &answerServiceFake{})

	req := httptest.NewRequest(http.MethodGet, "/v1/runs/missing", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", res.Code)
	}
}

func TestQueryRetrievalMapsTemporaryTo503(t *testing.T) {
	queries := &queryServiceFake{err: domain.WrapError(domain.ErrTemporary, "vector search", errors.New("qdrant unreachable"))}
	handler := newTestHandler(t, config.Config{}, &runSchedulerFake{}, queries, &answerServiceFake{})

	req := postJSONRequest("/v1/retrieval/query", map[string]any{"question": "q"})
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", res.Code)
	}
}

func TestAnswerMapsGenerationFailureTo500(t *testing.T) {
	answers := &answerServiceFake{err: domain.WrapError(domain.ErrGeneration, "generate answer", errors.New("generator returned empty output"))}
	handler := newTestHandler(t, config.Config{}, &runSchedulerFake{}, &queryServiceFake{}, answers)

	req := postJSONRequest("/v1/rag/answer", map[string]any{"question": "q"})
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", res.Code)
	}
}
