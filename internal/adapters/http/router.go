package httpadapter

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/kirillkom/rag-evalkit/internal/config"
	"github.com/kirillkom/rag-evalkit/internal/core/domain"
	"github.com/kirillkom/rag-evalkit/internal/core/ports"
	"github.com/kirillkom/rag-evalkit/internal/core/usecase"
	"github.com/kirillkom/rag-evalkit/internal/observability/metrics"
)

const serviceName = "api"

// backpressureWait bounds how long a request may queue for an in-flight
// slot before it is shed with 503.
const backpressureWait = 100 * time.Millisecond

type Router struct {
	cfg     config.Config
	runs    ports.RunScheduler
	queries ports.RetrievalQueryService
	answers ports.GroundedAnswerService
	metrics *metrics.HTTPServerMetrics

	validate func(http.Handler) http.Handler
}

func NewRouter(
	cfg config.Config,
	runs ports.RunScheduler,
	queries ports.RetrievalQueryService,
	answers ports.GroundedAnswerService,
	serverMetrics *metrics.HTTPServerMetrics,
) (*Router, error) {
	validate, err := newRequestValidator()
	if err != nil {
		return nil, err
	}
	return &Router{
		cfg:      cfg,
		runs:     runs,
		queries:  queries,
		answers:  answers,
		metrics:  serverMetrics,
		validate: validate,
	}, nil
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/runs", rt.runsCollection)
	mux.HandleFunc("/v1/runs/", rt.getRunByID)
	mux.HandleFunc("/v1/retrieval/query", rt.queryRetrieval)
	mux.HandleFunc("/v1/rag/answer", rt.answerQuestion)
	if rt.metrics != nil {
		mux.Handle("/metrics", rt.metrics.Handler())
	}

	handler := rt.validate(mux)
	handler = authMiddleware(handler, rt.cfg.APIKey)
	handler = backpressureMiddleware(handler, rt.cfg.HTTPMaxConcurrent, backpressureWait)
	handler = rateLimitMiddleware(handler, rt.cfg.HTTPRateLimitRPS, rt.cfg.HTTPRateLimitBurst)
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(serviceName, handler)
	}
	handler = accessLogMiddleware(handler)
	return requestIDMiddleware(handler)
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) runsCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		rt.scheduleRun(w, r)
	case http.MethodGet:
		rt.listRuns(w, r)
	default:
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
	}
}

func (rt *Router) scheduleRun(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name   string           `json:"name"`
		Config domain.RunConfig `json:"config"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	run, err := rt.runs.Schedule(r.Context(), req.Name, req.Config)
	if err != nil {
		writeError(w, err)
		return
	}

	if rt.metrics != nil {
		rt.metrics.RecordRunScheduled(serviceName)
	}
	writeJSON(w, http.StatusAccepted, run)
}

func (rt *Router) listRuns(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a positive integer"})
			return
		}
		limit = parsed
	}

	runs, err := rt.runs.List(r.Context(), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

func (rt *Router) getRunByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/v1/runs/")
	if id == "" || strings.Contains(id, "/") {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "run id is required"})
		return
	}

	run, err := rt.runs.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (rt *Router) queryRetrieval(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req struct {
		Question string `json:"question"`
		Mode     string `json:"mode"`
		K        int    `json:"k"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "question is required"})
		return
	}

	mode := req.Mode
	if mode == "" {
		mode = usecase.RetrievalModeFused
	}

	start := time.Now()
	hits, err := rt.queries.Query(r.Context(), req.Question, req.Mode, req.K)
	if err != nil {
		writeError(w, err)
		return
	}

	if rt.metrics != nil {
		rt.metrics.RecordRetrieval(serviceName, "retrieval_query", mode, len(hits), time.Since(start))
	}
	writeJSON(w, http.StatusOK, map[string]any{"mode": mode, "hits": hits})
}

func (rt *Router) answerQuestion(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req struct {
		Question string `json:"question"`
		K        int    `json:"k"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "question is required"})
		return
	}

	start := time.Now()
	answer, err := rt.answers.Answer(r.Context(), req.Question, req.K)
	if err != nil {
		writeError(w, err)
		return
	}

	if rt.metrics != nil {
		rt.metrics.RecordRetrieval(serviceName, "rag_answer", usecase.RetrievalModeFused, len(answer.Sources), time.Since(start))
	}
	writeJSON(w, http.StatusOK, answer)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
}
