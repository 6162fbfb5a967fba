package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kirillkom/rag-evalkit/internal/config"
	"github.com/kirillkom/rag-evalkit/internal/core/domain"
	"github.com/kirillkom/rag-evalkit/internal/core/ports"
	"github.com/kirillkom/rag-evalkit/internal/core/usecase"
	"github.com/kirillkom/rag-evalkit/internal/infrastructure/corpus"
	"github.com/kirillkom/rag-evalkit/internal/infrastructure/dataset"
	"github.com/kirillkom/rag-evalkit/internal/infrastructure/lexical/bm25"
	"github.com/kirillkom/rag-evalkit/internal/infrastructure/llm/ollama"
	natsqueue "github.com/kirillkom/rag-evalkit/internal/infrastructure/queue/nats"
	"github.com/kirillkom/rag-evalkit/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/rag-evalkit/internal/infrastructure/resilience"
	"github.com/kirillkom/rag-evalkit/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/rag-evalkit/internal/infrastructure/vector/qdrant"
)

// App wires the shared object graph for both binaries. The api serves
// queries and schedules runs; the worker additionally ensures the vector
// index and executes queued runs.
type App struct {
	Config config.Config

	Queue    ports.MessageQueue
	Corpus   *domain.Corpus
	Examples []domain.EvaluationExample

	RunUC    *usecase.RunUseCase
	QueryUC  *usecase.RetrievalQueryUseCase
	AnswerUC *usecase.AnswerUseCase
	Index    *usecase.IndexBootstrapUseCase

	closeFn func()
}

func New(ctx context.Context, cfg config.Config, sink ports.MetricsSink) (*App, error) {
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	runRepo := postgres.NewRunRepository(db)
	if err := runRepo.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	docCorpus, err := corpus.Load(cfg.CorpusDir)
	if err != nil {
		return nil, fmt.Errorf("load corpus: %w", err)
	}
	examples, err := dataset.Load(cfg.DatasetPath)
	if err != nil {
		return nil, fmt.Errorf("load example set: %w", err)
	}
	if err := dataset.ValidateAgainstCorpus(examples, docCorpus); err != nil {
		return nil, fmt.Errorf("validate example set: %w", err)
	}

	executor := resilience.NewExecutor(resilience.DefaultConfig())

	queue, err := natsqueue.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, natsqueue.Options{
		ResilienceExecutor: executor,
	})
	if err != nil {
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	ollamaClient := ollama.NewWithOptions(
		cfg.OllamaURL,
		cfg.OllamaGenModel,
		cfg.OllamaEmbedModel,
		cfg.OllamaJudgeModel,
		ollama.Options{
			RequestsPerSecond:  cfg.OllamaMaxRPS,
			ResilienceExecutor: executor,
		},
	)
	embedder, err := ollama.NewCachingEmbedder(ollama.NewEmbedder(ollamaClient), cfg.EmbedCacheSize)
	if err != nil {
		return nil, fmt.Errorf("init embedding cache: %w", err)
	}
	generator := ollama.NewGenerator(ollamaClient)
	judge := ollama.NewJudge(ollamaClient)

	vectorIndex := qdrant.NewWithOptions(cfg.QdrantURL, cfg.QdrantCollection, qdrant.Options{
		ResilienceExecutor: executor,
	})

	dense := usecase.NewDenseRetriever(embedder, vectorIndex)
	sparse := bm25.NewIndex(docCorpus)
	fused, err := usecase.NewFusionRetriever(
		[]ports.Retriever{dense, sparse},
		[]float64{cfg.EvalDenseWeight, cfg.EvalSparseWeight},
	)
	if err != nil {
		return nil, fmt.Errorf("build fusion retriever: %w", err)
	}

	defaults := domain.RunConfig{
		TopK:           cfg.EvalTopK,
		DenseWeight:    cfg.EvalDenseWeight,
		SparseWeight:   cfg.EvalSparseWeight,
		MaxConcurrency: cfg.EvalMaxConcurrency,
		ScoreAnswers:   cfg.EvalScoreAnswers,
	}

	runUC := usecase.NewRunUseCase(
		runRepo,
		queue,
		dense,
		sparse,
		docCorpus,
		generator,
		judge,
		sink,
		examples,
		defaults,
		slog.Default(),
	)
	queryUC := usecase.NewRetrievalQueryUseCase(dense, sparse, fused, cfg.EvalTopK)
	answerUC := usecase.NewAnswerUseCase(fused, docCorpus, generator, cfg.EvalTopK)
	indexUC := usecase.NewIndexBootstrapUseCase(docCorpus, embedder, vectorIndex, storage, cfg.SnapshotKey, cfg.RequireSnapshot)

	return &App{
		Config: cfg,

		Queue:    queue,
		Corpus:   docCorpus,
		Examples: examples,

		RunUC:    runUC,
		QueryUC:  queryUC,
		AnswerUC: answerUC,
		Index:    indexUC,

		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
