package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/kirillkom/rag-evalkit/internal/core/domain"
	"github.com/kirillkom/rag-evalkit/internal/core/ports"
)

// RunUseCase schedules evaluation runs from the API side and executes
// them on the worker side. The corpus, example set and retrievers are
// loaded once at startup and shared read-only across runs.
type RunUseCase struct {
	repo      ports.RunRepository
	queue     ports.MessageQueue
	dense     ports.Retriever
	sparse    ports.Retriever
	corpus    *domain.Corpus
	generator ports.AnswerGenerator
	scorer    ports.AnswerScorer
	sink      ports.MetricsSink
	examples  []domain.EvaluationExample
	defaults  domain.RunConfig
	logger    *slog.Logger
}

func NewRunUseCase(
	repo ports.RunRepository,
	queue ports.MessageQueue,
	dense ports.Retriever,
	sparse ports.Retriever,
	corpus *domain.Corpus,
	generator ports.AnswerGenerator,
	scorer ports.AnswerScorer,
	sink ports.MetricsSink,
	examples []domain.EvaluationExample,
	defaults domain.RunConfig,
	logger *slog.Logger,
) *RunUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &RunUseCase{
		repo:      repo,
		queue:     queue,
		dense:     dense,
		sparse:    sparse,
		corpus:    corpus,
		generator: generator,
		scorer:    scorer,
		sink:      sink,
		examples:  examples,
		defaults:  defaults,
		logger:    logger,
	}
}

// Schedule validates the configuration, persists the run as pending and
// enqueues it for the worker.
func (uc *RunUseCase) Schedule(ctx context.Context, name string, cfg domain.RunConfig) (*domain.EvaluationRun, error) {
	cfg = uc.fillDefaults(cfg)
	if err := validateRunConfig(cfg); err != nil {
		return nil, err
	}

	id := uuid.NewString()
	name = strings.TrimSpace(name)
	if name == "" {
		name = fmt.Sprintf("run-%s", id[:8])
	}

	now := time.Now().UTC()
	run := &domain.EvaluationRun{
		ID:        id,
		Name:      name,
		Status:    domain.RunPending,
		Config:    cfg,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := uc.repo.Create(ctx, run); err != nil {
		return nil, fmt.Errorf("create run record: %w", err)
	}
	if err := uc.queue.PublishRunQueued(ctx, run.ID); err != nil {
		return nil, fmt.Errorf("publish queued run: %w", err)
	}
	return run, nil
}

func (uc *RunUseCase) GetByID(ctx context.Context, id string) (*domain.EvaluationRun, error) {
	return uc.repo.GetByID(ctx, id)
}

func (uc *RunUseCase) List(ctx context.Context, limit int) ([]domain.EvaluationRun, error) {
	return uc.repo.List(ctx, limit)
}

// ExecuteByID runs one queued evaluation end to end: both retriever
// variants are measured on the full example set, the champion feeds
// answer generation, and the generated answers are judge-scored. Any
// failure marks the run failed; partial results are never persisted.
func (uc *RunUseCase) ExecuteByID(ctx context.Context, runID string) error {
	run, err := uc.repo.GetByID(ctx, runID)
	if err != nil {
		return fmt.Errorf("fetch run by id: %w", err)
	}

	if err := uc.repo.MarkRunning(ctx, run.ID); err != nil {
		return fmt.Errorf("set status=running: %w", err)
	}

	results, err := uc.execute(ctx, run)
	if err != nil {
		if failErr := uc.repo.MarkFailed(ctx, run.ID, err.Error()); failErr != nil {
			return fmt.Errorf("%w; mark failed status: %v", err, failErr)
		}
		return err
	}

	if err := uc.repo.SaveResults(ctx, run.ID, *results); err != nil {
		return fmt.Errorf("save run results: %w", err)
	}

	uc.publishMetrics(ctx, run.Name, results)
	return nil
}

func (uc *RunUseCase) execute(ctx context.Context, run *domain.EvaluationRun) (*domain.RunResults, error) {
	cfg := uc.fillDefaults(run.Config)
	if err := validateRunConfig(cfg); err != nil {
		return nil, err
	}

	fused, err := NewFusionRetriever(
		[]ports.Retriever{uc.dense, uc.sparse},
		[]float64{cfg.DenseWeight, cfg.SparseWeight},
	)
	if err != nil {
		return nil, err
	}

	denseResult, err := EvaluateRetrieval(ctx, RetrieverFunc(uc.dense, cfg.TopK), uc.examples)
	if err != nil {
		return nil, fmt.Errorf("evaluate dense retriever: %w", err)
	}
	fusedResult, err := EvaluateRetrieval(ctx, RetrieverFunc(fused, cfg.TopK), uc.examples)
	if err != nil {
		return nil, fmt.Errorf("evaluate fused retriever: %w", err)
	}

	champion, championRetriever := pickChampion(denseResult, fusedResult, uc.dense, fused)
	results := &domain.RunResults{
		Dense:        denseResult,
		Fused:        fusedResult,
		Champion:     champion,
		ExampleCount: len(uc.examples),
	}

	if cfg.ScoreAnswers {
		triples, err := uc.generateTriples(ctx, championRetriever, cfg)
		if err != nil {
			return nil, err
		}
		batch, err := EvaluateAnswers(ctx, triples, ScorerFunc(uc.scorer), cfg.MaxConcurrency)
		if err != nil {
			return nil, err
		}
		results.Answers = &batch
	}

	return results, nil
}

// generateTriples produces one scoring triple per example with the
// champion retriever's context, generating concurrently under the same
// bound as scoring. Results are collected by example index.
func (uc *RunUseCase) generateTriples(
	ctx context.Context,
	retriever ports.Retriever,
	cfg domain.RunConfig,
) ([]domain.ScoringTriple, error) {
	answerer := NewAnswerUseCase(retriever, uc.corpus, uc.generator, cfg.TopK)

	triples := make([]domain.ScoringTriple, len(uc.examples))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.MaxConcurrency)
	for i, example := range uc.examples {
		i, example := i, example
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			hits, err := retriever.Retrieve(gctx, example.Question, cfg.TopK)
			if err != nil {
				return fmt.Errorf("retrieve context for example %d: %w", i, err)
			}
			docs := uc.corpus.Resolve(hits)
			generated, err := answerer.Generate(gctx, example.Question, docs)
			if err != nil {
				return fmt.Errorf("generate answer for example %d: %w", i, err)
			}
			contexts := make([]string, len(generated.ContextUsed))
			for j, doc := range generated.ContextUsed {
				contexts[j] = doc.Content
			}
			triples[i] = domain.ScoringTriple{
				Question: example.Question,
				Context:  contexts,
				Answer:   generated.Text,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return triples, nil
}

func (uc *RunUseCase) publishMetrics(ctx context.Context, runName string, results *domain.RunResults) {
	if uc.sink == nil {
		return
	}
	values := map[string]float64{
		"dense_hit_rate": results.Dense.HitRate,
		"dense_mrr":      results.Dense.MRR,
		"fused_hit_rate": results.Fused.HitRate,
		"fused_mrr":      results.Fused.MRR,
	}
	if results.Answers != nil {
		values["mean_grounding"] = results.Answers.MeanGrounding
		values["mean_relevance"] = results.Answers.MeanRelevance
	}
	if err := uc.sink.Publish(ctx, runName, values); err != nil {
		uc.logger.Warn("metrics sink unavailable", "run", runName, "error", err)
	}
}

func (uc *RunUseCase) fillDefaults(cfg domain.RunConfig) domain.RunConfig {
	// An all-zero config means "use the deployment defaults". ScoreAnswers
	// can only inherit here: in a partial config false already reads as
	// an explicit opt-out.
	if cfg == (domain.RunConfig{}) {
		cfg = uc.defaults
	}
	if cfg.TopK <= 0 {
		cfg.TopK = uc.defaults.TopK
	}
	if cfg.DenseWeight == 0 && cfg.SparseWeight == 0 {
		cfg.DenseWeight = uc.defaults.DenseWeight
		cfg.SparseWeight = uc.defaults.SparseWeight
	}
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = uc.defaults.MaxConcurrency
	}
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = DefaultScoreConcurrency
	}
	return cfg
}

func validateRunConfig(cfg domain.RunConfig) error {
	if cfg.TopK < 1 {
		return domain.WrapError(domain.ErrInvalidConfig, "run config", fmt.Errorf("top_k must be >= 1, got %d", cfg.TopK))
	}
	if cfg.DenseWeight < 0 || cfg.SparseWeight < 0 {
		return domain.WrapError(
			domain.ErrInvalidConfig,
			"run config",
			fmt.Errorf("weights must be non-negative, got dense=%v sparse=%v", cfg.DenseWeight, cfg.SparseWeight),
		)
	}
	if cfg.DenseWeight+cfg.SparseWeight <= 0 {
		return domain.WrapError(domain.ErrInvalidConfig, "run config", fmt.Errorf("fusion weights sum to zero"))
	}
	return nil
}

// pickChampion prefers the higher MRR; the fused variant wins ties so a
// hybrid that matches dense quality still carries its sparse signal
// into answer generation.
func pickChampion(
	dense, fused domain.EvaluationResult,
	denseRetriever, fusedRetriever ports.Retriever,
) (string, ports.Retriever) {
	if dense.MRR > fused.MRR {
		return RetrievalModeDense, denseRetriever
	}
	return RetrievalModeFused, fusedRetriever
}
