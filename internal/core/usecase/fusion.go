package usecase

import (
	"context"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/kirillkom/rag-evalkit/internal/core/domain"
	"github.com/kirillkom/rag-evalkit/internal/core/ports"
)

// FusionRetriever merges the rankings of several retrievers by weighted
// voting and itself satisfies ports.Retriever, so fused rankings can be
// evaluated and consumed exactly like single-source ones.
type FusionRetriever struct {
	retrievers []ports.Retriever
	weights    []float64
}

func NewFusionRetriever(retrievers []ports.Retriever, weights []float64) (*FusionRetriever, error) {
	if err := validateFusionConfig(len(retrievers), weights); err != nil {
		return nil, err
	}
	return &FusionRetriever{retrievers: retrievers, weights: weights}, nil
}

func (f *FusionRetriever) Retrieve(ctx context.Context, query string, k int) ([]domain.RankedHit, error) {
	return FuseRanked(ctx, query, f.retrievers, f.weights, k)
}

// fusionVote accumulates a document's weighted votes plus the tie-break
// key: its rank inside the highest-weighted retriever that returned it.
// When several contributing retrievers share the top weight, the one
// earliest in the configured order is the tie source.
type fusionVote struct {
	score     float64
	tieWeight float64
	tieRank   int
}

// FuseRanked runs every positively weighted retriever for query and
// merges their top-k lists. A document's fused score is the sum of the
// normalized weights of the retrievers that returned it; each retriever
// votes at most once per document. Documents returned only by
// zero-weight retrievers are absent from the result. Ordering is fully
// deterministic: fused score descending, then the lowest original rank
// in the strongest contributing retriever, then document id.
func FuseRanked(
	ctx context.Context,
	query string,
	retrievers []ports.Retriever,
	weights []float64,
	k int,
) ([]domain.RankedHit, error) {
	if err := validateFusionConfig(len(retrievers), weights); err != nil {
		return nil, err
	}
	if k < 1 {
		return nil, domain.WrapError(domain.ErrInvalidConfig, "fuse", fmt.Errorf("k must be >= 1, got %d", k))
	}
	norm := normalizeWeights(weights)

	lists, err := retrieveAll(ctx, query, retrievers, norm, k)
	if err != nil {
		return nil, err
	}

	acc := make(map[string]fusionVote, k*len(lists))
	for i, hits := range lists {
		if norm[i] <= 0 {
			continue
		}
		voted := make(map[string]bool, len(hits))
		for pos, hit := range hits {
			if voted[hit.DocumentID] {
				continue
			}
			voted[hit.DocumentID] = true

			vote := acc[hit.DocumentID]
			vote.score += norm[i]
			if vote.tieRank == 0 || norm[i] > vote.tieWeight {
				vote.tieWeight = norm[i]
				vote.tieRank = pos + 1
			}
			acc[hit.DocumentID] = vote
		}
	}

	out := make([]domain.RankedHit, 0, len(acc))
	for id, vote := range acc {
		out = append(out, domain.RankedHit{DocumentID: id, Score: vote.score})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		ri, rj := acc[out[i].DocumentID].tieRank, acc[out[j].DocumentID].tieRank
		if ri != rj {
			return ri < rj
		}
		return out[i].DocumentID < out[j].DocumentID
	})

	out = trimHits(out, k)
	for i := range out {
		out[i].Rank = i + 1
	}
	return out, nil
}

// retrieveAll fans the query out to every positively weighted retriever
// concurrently, collecting results by retriever index. Zero-weight
// retrievers are never called: their hits could not contribute score.
func retrieveAll(
	ctx context.Context,
	query string,
	retrievers []ports.Retriever,
	norm []float64,
	k int,
) ([][]domain.RankedHit, error) {
	lists := make([][]domain.RankedHit, len(retrievers))
	g, gctx := errgroup.WithContext(ctx)
	for i, retriever := range retrievers {
		i, retriever := i, retriever
		if norm[i] <= 0 {
			continue
		}
		g.Go(func() error {
			hits, err := retriever.Retrieve(gctx, query, k)
			if err != nil {
				return domain.WrapError(domain.ErrRetrieval, fmt.Sprintf("fuse retriever %d", i), err)
			}
			lists[i] = hits
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return lists, nil
}

func validateFusionConfig(retrieverCount int, weights []float64) error {
	if retrieverCount != len(weights) {
		return domain.WrapError(
			domain.ErrInvalidConfig,
			"fuse",
			fmt.Errorf("%d retrievers but %d weights", retrieverCount, len(weights)),
		)
	}
	var sum float64
	for i, w := range weights {
		if w < 0 {
			return domain.WrapError(domain.ErrInvalidConfig, "fuse", fmt.Errorf("weight %d is negative: %v", i, w))
		}
		sum += w
	}
	if sum <= 0 {
		return domain.WrapError(domain.ErrInvalidConfig, "fuse", fmt.Errorf("weights sum to %v, need a positive total", sum))
	}
	return nil
}

func normalizeWeights(weights []float64) []float64 {
	var sum float64
	for _, w := range weights {
		sum += w
	}
	norm := make([]float64, len(weights))
	for i, w := range weights {
		norm[i] = w / sum
	}
	return norm
}

func trimHits(hits []domain.RankedHit, limit int) []domain.RankedHit {
	if limit <= 0 || len(hits) <= limit {
		return hits
	}
	return hits[:limit]
}
