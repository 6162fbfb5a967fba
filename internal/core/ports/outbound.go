package ports

import (
	"context"
	"io"

	"github.com/kirillkom/rag-evalkit/internal/core/domain"
)

// Retriever returns up to k ranked hits for a query. Implemented by the
// dense, sparse and fused variants; consumed polymorphically by the
// evaluator and the fusion engine.
type Retriever interface {
	Retrieve(ctx context.Context, query string, k int) ([]domain.RankedHit, error)
}

// Embedder builds vectors for corpus documents and query text.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// VectorIndex is the nearest-neighbor search service plus its snapshot
// lifecycle. The snapshot blob is opaque; this side only moves bytes.
type VectorIndex interface {
	IndexDocuments(ctx context.Context, docs []domain.Document, vectors [][]float32) error
	Search(ctx context.Context, queryVector []float32, k int) ([]domain.RankedHit, error)
	Count(ctx context.Context) (int, error)
	CreateSnapshot(ctx context.Context) (io.ReadCloser, error)
	RestoreSnapshot(ctx context.Context, snapshot io.Reader) error
}

// AnswerGenerator creates the final grounded answer text.
type AnswerGenerator interface {
	GenerateAnswer(ctx context.Context, question string, docs []domain.Document) (string, error)
}

// AnswerScorer judges a generated answer against the context it was
// given and the question it was asked.
type AnswerScorer interface {
	Score(ctx context.Context, contextText, question, answer string) (domain.AnswerScore, error)
}

// RunRepository persists evaluation run state.
type RunRepository interface {
	Create(ctx context.Context, run *domain.EvaluationRun) error
	GetByID(ctx context.Context, id string) (*domain.EvaluationRun, error)
	List(ctx context.Context, limit int) ([]domain.EvaluationRun, error)
	MarkRunning(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id, errMessage string) error
	SaveResults(ctx context.Context, id string, results domain.RunResults) error
}

// MessageQueue publishes/consumes queued evaluation runs.
type MessageQueue interface {
	PublishRunQueued(ctx context.Context, runID string) error
	SubscribeRunQueued(ctx context.Context, handler func(context.Context, string) error) error
}

// ObjectStorage stores the persisted index snapshot blob.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Exists(ctx context.Context, key string) (bool, error)
}

// MetricsSink receives named run-level metrics. Optional: a failing or
// absent sink degrades observability, never a run.
type MetricsSink interface {
	Publish(ctx context.Context, run string, values map[string]float64) error
}
