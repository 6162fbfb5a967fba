package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/kirillkom/rag-evalkit/internal/core/domain"
	"github.com/kirillkom/rag-evalkit/internal/core/ports"
)

// RetrieveFunc returns the ordered document ids retrieved for a query.
type RetrieveFunc func(ctx context.Context, query string) ([]string, error)

// RetrieverFunc adapts a retriever at a fixed k to a RetrieveFunc.
func RetrieverFunc(retriever ports.Retriever, k int) RetrieveFunc {
	return func(ctx context.Context, query string) ([]string, error) {
		hits, err := retriever.Retrieve(ctx, query, k)
		if err != nil {
			return nil, err
		}
		return domain.DocumentIDs(hits), nil
	}
}

// EvaluateRetrieval computes Hit Rate and MRR over a complete pass of
// the example set. Both metrics divide by the full example count: an
// example whose reference document is absent contributes a zero
// reciprocal rank, it is never dropped from the denominator. Duplicate
// ids in a returned list count at their first occurrence. A single
// failed retrieval fails the whole pass; skipping it would bias the
// metric.
func EvaluateRetrieval(
	ctx context.Context,
	retrieve RetrieveFunc,
	examples []domain.EvaluationExample,
) (domain.EvaluationResult, error) {
	if retrieve == nil {
		return domain.EvaluationResult{}, domain.WrapError(domain.ErrInvalidConfig, "evaluate retrieval", errors.New("nil retrieve function"))
	}
	if len(examples) == 0 {
		return domain.EvaluationResult{}, domain.WrapError(domain.ErrInvalidConfig, "evaluate retrieval", errors.New("empty example set"))
	}

	var hits int
	var reciprocalSum float64
	for i, example := range examples {
		ids, err := retrieve(ctx, example.Question)
		if err != nil {
			return domain.EvaluationResult{}, domain.WrapError(
				domain.ErrRetrieval,
				fmt.Sprintf("evaluate example %d", i),
				err,
			)
		}
		if rank := firstRank(ids, example.RefDocID); rank > 0 {
			hits++
			reciprocalSum += 1.0 / float64(rank)
		}
	}

	total := float64(len(examples))
	return domain.EvaluationResult{
		HitRate: float64(hits) / total,
		MRR:     reciprocalSum / total,
	}, nil
}

// firstRank returns the 1-based position of id in ids, 0 when absent.
func firstRank(ids []string, id string) int {
	for i, got := range ids {
		if got == id {
			return i + 1
		}
	}
	return 0
}
