package ollama

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/kirillkom/rag-evalkit/internal/core/domain"
	"github.com/kirillkom/rag-evalkit/internal/infrastructure/resilience"
)

type Client struct {
	baseURL    string
	genModel   string
	embedModel string
	judgeModel string
	httpClient *http.Client
	limiter    *rate.Limiter
	executor   *resilience.Executor
}

func New(baseURL, genModel, embedModel, judgeModel string) *Client {
	return NewWithOptions(baseURL, genModel, embedModel, judgeModel, Options{})
}

type Options struct {
	Timeout            time.Duration
	RequestsPerSecond  float64
	ResilienceExecutor *resilience.Executor
}

func NewWithOptions(baseURL, genModel, embedModel, judgeModel string, options Options) *Client {
	timeout := options.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}

	var limiter *rate.Limiter
	if options.RequestsPerSecond > 0 {
		burst := int(options.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(options.RequestsPerSecond), burst)
	}

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		genModel:   genModel,
		embedModel: embedModel,
		judgeModel: judgeModel,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    limiter,
		executor:   options.ResilienceExecutor,
	}
}

type Embedder struct {
	client *Client
}

func NewEmbedder(client *Client) *Embedder {
	return &Embedder{client: client}
}

func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	request := map[string]any{
		"model": e.client.embedModel,
		"input": texts,
	}

	var response struct {
		Embeddings [][]float32 `json:"embeddings"`
	}
	if err := e.client.postJSON(ctx, "/api/embed", request, &response, "embed"); err != nil {
		return nil, err
	}
	if len(response.Embeddings) != len(texts) {
		return nil, fmt.Errorf("embed returned %d vectors for %d inputs", len(response.Embeddings), len(texts))
	}
	return response.Embeddings, nil
}

func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("empty embedding result")
	}
	return vectors[0], nil
}

type Generator struct {
	client *Client
}

func NewGenerator(client *Client) *Generator {
	return &Generator{client: client}
}

func (g *Generator) GenerateAnswer(ctx context.Context, question string, docs []domain.Document) (string, error) {
	return g.client.generateText(ctx, buildAnswerPrompt(question, docs))
}

// Judge grades generated answers against their retrieval context with a
// JSON-only prompt on a dedicated judge model.
type Judge struct {
	client *Client
}

func NewJudge(client *Client) *Judge {
	return &Judge{client: client}
}

func (j *Judge) Score(ctx context.Context, contextText, question, answer string) (domain.AnswerScore, error) {
	respText, err := j.client.judgeJSON(ctx, buildJudgePrompt(contextText, question, answer))
	if err != nil {
		return domain.AnswerScore{}, domain.WrapError(domain.ErrScoring, "judge answer", err)
	}

	score, err := parseJudgeVerdict(respText)
	if err != nil {
		return domain.AnswerScore{}, domain.WrapError(domain.ErrScoring, "judge answer", err)
	}
	return score, nil
}

func parseJudgeVerdict(raw string) (domain.AnswerScore, error) {
	var verdict struct {
		Grounding *float64 `json:"grounding_score"`
		Relevance *float64 `json:"relevance_score"`
	}
	if err := json.Unmarshal([]byte(extractJSONObject(raw)), &verdict); err != nil {
		return domain.AnswerScore{}, fmt.Errorf("parse judge json: %w", err)
	}
	if verdict.Grounding == nil {
		return domain.AnswerScore{}, fmt.Errorf("judge verdict missing grounding_score")
	}
	if verdict.Relevance == nil {
		return domain.AnswerScore{}, fmt.Errorf("judge verdict missing relevance_score")
	}
	if *verdict.Grounding < 0 || *verdict.Grounding > 1 {
		return domain.AnswerScore{}, fmt.Errorf("judge grounding_score %.3f out of range", *verdict.Grounding)
	}
	if *verdict.Relevance < 0 || *verdict.Relevance > 1 {
		return domain.AnswerScore{}, fmt.Errorf("judge relevance_score %.3f out of range", *verdict.Relevance)
	}
	return domain.AnswerScore{Grounding: *verdict.Grounding, Relevance: *verdict.Relevance}, nil
}

func (c *Client) judgeJSON(ctx context.Context, prompt string) (string, error) {
	reqBody := map[string]any{
		"model":  c.judgeModel,
		"prompt": prompt,
		"stream": false,
		"format": "json",
	}
	return c.generate(ctx, reqBody)
}

func (c *Client) generateText(ctx context.Context, prompt string) (string, error) {
	reqBody := map[string]any{
		"model":  c.genModel,
		"prompt": prompt,
		"stream": false,
	}
	return c.generate(ctx, reqBody)
}

func (c *Client) generate(ctx context.Context, reqBody map[string]any) (string, error) {
	var response struct {
		Response string `json:"response"`
	}
	if err := c.postJSON(ctx, "/api/generate", reqBody, &response, "generate"); err != nil {
		return "", err
	}
	return strings.TrimSpace(response.Response), nil
}

func extractJSONObject(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return raw[start : end+1]
	}
	return raw
}
