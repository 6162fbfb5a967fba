package usecase

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/kirillkom/rag-evalkit/internal/core/domain"
	"github.com/kirillkom/rag-evalkit/internal/core/ports"
)

func retrievers(rs ...ports.Retriever) []ports.Retriever { return rs }

type retrieverFake struct {
	hits  []domain.RankedHit
	err   error
	calls int
}

func (f *retrieverFake) Retrieve(_ context.Context, _ string, k int) ([]domain.RankedHit, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if k < len(f.hits) {
		return f.hits[:k], nil
	}
	return f.hits, nil
}

func rankedHits(ids ...string) []domain.RankedHit {
	hits := make([]domain.RankedHit, len(ids))
	for i, id := range ids {
		hits[i] = domain.RankedHit{DocumentID: id, Score: 1.0 / float64(i+1), Rank: i + 1}
	}
	return hits
}

func TestFuseRankedRejectsWeightCountMismatch(t *testing.T) {
	dense := &retrieverFake{hits: rankedHits("doc-1")}
	sparse := &retrieverFake{hits: rankedHits("doc-2")}

	_, err := FuseRanked(context.Background(), "q", retrievers(dense, sparse), []float64{1.0}, 3)
	if !domain.IsKind(err, domain.ErrInvalidConfig) {
		t.Fatalf("expected invalid configuration, got %v", err)
	}
}

func TestFuseRankedRejectsAllZeroWeights(t *testing.T) {
	dense := &retrieverFake{hits: rankedHits("doc-1")}
	sparse := &retrieverFake{hits: rankedHits("doc-2")}

	_, err := FuseRanked(context.Background(), "q", retrievers(dense, sparse), []float64{0, 0}, 3)
	if !domain.IsKind(err, domain.ErrInvalidConfig) {
		t.Fatalf("expected invalid configuration, got %v", err)
	}
	if dense.calls != 0 || sparse.calls != 0 {
		t.Fatalf("expected no retriever calls on invalid weights, got %d/%d", dense.calls, sparse.calls)
	}
}

func TestFuseRankedRejectsNegativeWeight(t *testing.T) {
	dense := &retrieverFake{hits: rankedHits("doc-1")}
	sparse := &retrieverFake{hits: rankedHits("doc-2")}

	_, err := FuseRanked(context.Background(), "q", retrievers(dense, sparse), []float64{1.5, -0.5}, 3)
	if !domain.IsKind(err, domain.ErrInvalidConfig) {
		t.Fatalf("expected invalid configuration, got %v", err)
	}
}

func TestFuseRankedRejectsNonPositiveK(t *testing.T) {
	dense := &retrieverFake{hits: rankedHits("doc-1")}

	_, err := FuseRanked(context.Background(), "q", retrievers(dense), []float64{1.0}, 0)
	if !domain.IsKind(err, domain.ErrInvalidConfig) {
		t.Fatalf("expected invalid configuration, got %v", err)
	}
}

func TestFuseRankedAccumulatesWeightAcrossRetrievers(t *testing.T) {
	dense := &retrieverFake{hits: rankedHits("doc-a", "doc-b", "doc-c")}
	sparse := &retrieverFake{hits: rankedHits("doc-c", "doc-d")}

	fused, err := FuseRanked(context.Background(), "q", retrievers(dense, sparse), []float64{0.5, 0.5}, 4)
	if err != nil {
		t.Fatalf("FuseRanked() error = %v", err)
	}
	if fused[0].DocumentID != "doc-c" {
		t.Fatalf("expected doc-c first with votes from both retrievers, got %s", fused[0].DocumentID)
	}
	if fused[0].Score != 1.0 {
		t.Fatalf("expected accumulated score 1.0 for doc-c, got %v", fused[0].Score)
	}
	for _, hit := range fused {
		if hit.Score <= 0 {
			t.Fatalf("no fused hit may carry zero weight: %+v", hit)
		}
	}
}

func TestFuseRankedZeroWeightReproducesFirstRetriever(t *testing.T) {
	dense := &retrieverFake{hits: rankedHits("doc-1", "doc-2", "doc-3")}
	sparse := &retrieverFake{hits: rankedHits("doc-9", "doc-8")}

	fused, err := FuseRanked(context.Background(), "q", retrievers(dense, sparse), []float64{1.0, 0.0}, 3)
	if err != nil {
		t.Fatalf("FuseRanked() error = %v", err)
	}

	got := domain.DocumentIDs(fused)
	want := []string{"doc-1", "doc-2", "doc-3"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected first retriever's ranking %v, got %v", want, got)
	}
	if sparse.calls != 0 {
		t.Fatalf("expected zero-weight retriever to stay uncalled, got %d calls", sparse.calls)
	}
}

func TestFuseRankedDeterministicOrdering(t *testing.T) {
	dense := &retrieverFake{hits: rankedHits("doc-a", "doc-b")}
	sparse := &retrieverFake{hits: rankedHits("doc-c", "doc-d")}

	first, err := FuseRanked(context.Background(), "q", retrievers(dense, sparse), []float64{0.5, 0.5}, 4)
	if err != nil {
		t.Fatalf("FuseRanked() error = %v", err)
	}
	second, err := FuseRanked(context.Background(), "q", retrievers(dense, sparse), []float64{0.5, 0.5}, 4)
	if err != nil {
		t.Fatalf("FuseRanked() error = %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("expected identical output for identical input, got %v then %v", first, second)
	}
}

func TestFuseRankedTieBreaksByRankInStrongestRetriever(t *testing.T) {
	// doc-x and doc-y are both dense-only with equal fused score; doc-x
	// sits higher in the dense list, so it must come first.
	dense := &retrieverFake{hits: rankedHits("doc-x", "doc-y")}
	sparse := &retrieverFake{hits: rankedHits("doc-z")}

	fused, err := FuseRanked(context.Background(), "q", retrievers(dense, sparse), []float64{0.6, 0.4}, 3)
	if err != nil {
		t.Fatalf("FuseRanked() error = %v", err)
	}

	got := domain.DocumentIDs(fused)
	want := []string{"doc-x", "doc-y", "doc-z"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected order %v, got %v", want, got)
	}
}

func TestFuseRankedToleratesShortLists(t *testing.T) {
	dense := &retrieverFake{hits: rankedHits("doc-1")}
	sparse := &retrieverFake{}

	fused, err := FuseRanked(context.Background(), "q", retrievers(dense, sparse), []float64{0.5, 0.5}, 5)
	if err != nil {
		t.Fatalf("FuseRanked() error = %v", err)
	}
	if len(fused) != 1 {
		t.Fatalf("expected 1 hit without padding, got %d", len(fused))
	}
}

func TestFuseRankedTruncatesToK(t *testing.T) {
	dense := &retrieverFake{hits: rankedHits("doc-1", "doc-2", "doc-3")}
	sparse := &retrieverFake{hits: rankedHits("doc-4", "doc-5")}

	fused, err := FuseRanked(context.Background(), "q", retrievers(dense, sparse), []float64{0.5, 0.5}, 2)
	if err != nil {
		t.Fatalf("FuseRanked() error = %v", err)
	}
	if len(fused) != 2 {
		t.Fatalf("expected truncation to k=2, got %d", len(fused))
	}
	if fused[0].Rank != 1 || fused[1].Rank != 2 {
		t.Fatalf("expected 1-based ranks after truncation, got %+v", fused)
	}
}

func TestFuseRankedWrapsRetrieverFailure(t *testing.T) {
	dense := &retrieverFake{hits: rankedHits("doc-1")}
	sparse := &retrieverFake{err: errors.New("lexical index gone")}

	_, err := FuseRanked(context.Background(), "q", retrievers(dense, sparse), []float64{0.5, 0.5}, 3)
	if !domain.IsKind(err, domain.ErrRetrieval) {
		t.Fatalf("expected retrieval failure, got %v", err)
	}
}

func TestFuseRankedWeightedEndToEndScenario(t *testing.T) {
	// Ten-document corpus, one query: the reference document arrives at
	// dense rank 3 and sparse rank 1. With weights [0.75, 0.25] its
	// cumulative vote beats every single-source hit.
	dense := &retrieverFake{hits: rankedHits("doc-1", "doc-2", "doc-ref")}
	sparse := &retrieverFake{hits: rankedHits("doc-ref", "doc-7", "doc-8")}

	fused, err := FuseRanked(context.Background(), "q", retrievers(dense, sparse), []float64{0.75, 0.25}, 3)
	if err != nil {
		t.Fatalf("FuseRanked() error = %v", err)
	}

	got := domain.DocumentIDs(fused)
	want := []string{"doc-ref", "doc-1", "doc-2"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected hand-computed order %v, got %v", want, got)
	}
	if fused[0].Score != 1.0 {
		t.Fatalf("expected doc-ref fused score 1.0, got %v", fused[0].Score)
	}
	if fused[1].Score != 0.75 || fused[2].Score != 0.75 {
		t.Fatalf("expected dense-only scores 0.75, got %v and %v", fused[1].Score, fused[2].Score)
	}
}

func TestNewFusionRetrieverValidatesEagerly(t *testing.T) {
	dense := &retrieverFake{hits: rankedHits("doc-1")}

	if _, err := NewFusionRetriever(retrievers(dense), []float64{0}); !domain.IsKind(err, domain.ErrInvalidConfig) {
		t.Fatalf("expected invalid configuration, got %v", err)
	}
}
