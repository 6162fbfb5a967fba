package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/rag-evalkit/internal/core/domain"
	"github.com/kirillkom/rag-evalkit/internal/infrastructure/resilience"
)

type Client struct {
	baseURL    string
	collection string
	httpClient *http.Client
	executor   *resilience.Executor

	ensureMu          sync.Mutex
	ensuredCollection bool
	ensuredVectorSize int
}

func New(baseURL, collection string) *Client {
	return NewWithOptions(baseURL, collection, Options{})
}

type Options struct {
	Timeout            time.Duration
	ResilienceExecutor *resilience.Executor
}

func NewWithOptions(baseURL, collection string, options Options) *Client {
	timeout := options.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		collection: collection,
		httpClient: &http.Client{Timeout: timeout},
		executor:   options.ResilienceExecutor,
	}
}

func (c *Client) IndexDocuments(ctx context.Context, docs []domain.Document, vectors [][]float32) error {
	if len(docs) == 0 {
		return nil
	}
	if len(docs) != len(vectors) {
		return fmt.Errorf("documents/vectors mismatch: %d documents, %d vectors", len(docs), len(vectors))
	}

	if err := c.ensureCollection(ctx, len(vectors[0])); err != nil {
		return err
	}

	type point struct {
		ID      string         `json:"id"`
		Vector  []float32      `json:"vector"`
		Payload map[string]any `json:"payload"`
	}

	points := make([]point, 0, len(docs))
	for i, doc := range docs {
		points = append(points, point{
			// Point ids derive from document ids so repeated upserts
			// overwrite instead of accumulating duplicates.
			ID:     uuid.NewSHA1(uuid.NameSpaceOID, []byte(doc.ID)).String(),
			Vector: vectors[i],
			Payload: map[string]any{
				"doc_id":  doc.ID,
				"content": doc.Content,
			},
		})
	}

	url := fmt.Sprintf("%s/collections/%s/points?wait=true", c.baseURL, c.collection)
	call := func(ctx context.Context) error {
		return c.putJSON(ctx, url, map[string]any{"points": points}, nil, "upsert")
	}
	return c.execute(ctx, "qdrant.upsert", call)
}

func (c *Client) Search(ctx context.Context, queryVector []float32, limit int) ([]domain.RankedHit, error) {
	reqBody := map[string]any{
		"vector":       queryVector,
		"limit":        limit,
		"with_payload": true,
	}

	var searchResp struct {
		Result []struct {
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	url := fmt.Sprintf("%s/collections/%s/points/search", c.baseURL, c.collection)
	call := func(ctx context.Context) error {
		return c.postJSON(ctx, url, reqBody, &searchResp, "search")
	}
	if err := c.execute(ctx, "qdrant.search", call); err != nil {
		return nil, err
	}

	out := make([]domain.RankedHit, 0, len(searchResp.Result))
	for i, r := range searchResp.Result {
		out = append(out, domain.RankedHit{
			DocumentID: getStringPayload(r.Payload, "doc_id"),
			Score:      r.Score,
			Rank:       i + 1,
		})
	}
	return out, nil
}

func (c *Client) Count(ctx context.Context) (int, error) {
	var countResp struct {
		Result struct {
			Count int `json:"count"`
		} `json:"result"`
	}
	url := fmt.Sprintf("%s/collections/%s/points/count", c.baseURL, c.collection)
	call := func(ctx context.Context) error {
		return c.postJSON(ctx, url, map[string]any{"exact": true}, &countResp, "count")
	}
	if err := c.execute(ctx, "qdrant.count", call); err != nil {
		return 0, err
	}
	return countResp.Result.Count, nil
}

func (c *Client) ensureCollection(ctx context.Context, vectorSize int) error {
	c.ensureMu.Lock()
	if c.ensuredCollection && c.ensuredVectorSize == vectorSize {
		c.ensureMu.Unlock()
		return nil
	}
	c.ensureMu.Unlock()

	reqBody := map[string]any{
		"vectors": map[string]any{
			"size":     vectorSize,
			"distance": "Cosine",
		},
	}

	url := fmt.Sprintf("%s/collections/%s", c.baseURL, c.collection)
	err := c.putJSON(ctx, url, reqBody, nil, "ensure collection")

	// 200/201 for create, 409 if already exists (depends on version/config).
	var statusErr *httpStatusError
	if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusConflict {
		err = nil
	}
	if err != nil {
		return err
	}
	c.markCollectionEnsured(vectorSize)
	return nil
}

func (c *Client) markCollectionEnsured(vectorSize int) {
	c.ensureMu.Lock()
	defer c.ensureMu.Unlock()
	c.ensuredCollection = true
	c.ensuredVectorSize = vectorSize
}

func (c *Client) execute(ctx context.Context, operation string, call func(context.Context) error) error {
	var err error
	if c.executor != nil {
		err = c.executor.Execute(ctx, operation, call, classifyQdrantError)
	} else {
		err = call(ctx)
	}
	return wrapTemporaryIfNeeded(operation, err)
}

func (c *Client) postJSON(ctx context.Context, url string, payload any, out any, operation string) error {
	return c.sendJSON(ctx, http.MethodPost, url, payload, out, operation)
}

func (c *Client) putJSON(ctx context.Context, url string, payload any, out any, operation string) error {
	return c.sendJSON(ctx, http.MethodPut, url, payload, out, operation)
}

func (c *Client) sendJSON(ctx context.Context, method, url string, payload any, out any, operation string) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s body: %w", operation, err)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create %s request: %w", operation, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("qdrant %s request: %w", operation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return newHTTPStatusError(operation, resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", operation, err)
	}
	return nil
}

func getStringPayload(payload map[string]any, key string) string {
	v, ok := payload[key]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}
