package ports

import (
	"context"

	"github.com/kirillkom/rag-evalkit/internal/core/domain"
)

// RunScheduler is the inbound contract for creating and reading runs.
type RunScheduler interface {
	Schedule(ctx context.Context, name string, cfg domain.RunConfig) (*domain.EvaluationRun, error)
	GetByID(ctx context.Context, id string) (*domain.EvaluationRun, error)
	List(ctx context.Context, limit int) ([]domain.EvaluationRun, error)
}

// RetrievalQueryService is the inbound contract for ad-hoc ranked retrieval.
type RetrievalQueryService interface {
	Query(ctx context.Context, question, mode string, k int) ([]domain.RankedHit, error)
}

// GroundedAnswerService is the inbound contract for retrieve-then-generate.
type GroundedAnswerService interface {
	Answer(ctx context.Context, question string, k int) (*domain.Answer, error)
}

// RunExecutor is the inbound contract for asynchronous run execution.
type RunExecutor interface {
	ExecuteByID(ctx context.Context, runID string) error
}
