package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/kirillkom/rag-evalkit/internal/core/domain"
	"github.com/kirillkom/rag-evalkit/internal/core/ports"
)

const (
	RetrievalModeDense  = "dense"
	RetrievalModeSparse = "sparse"
	RetrievalModeFused  = "fused"
)

// DenseRetriever answers queries by embedding them and searching the
// vector index. The embedder and index must share the dimensionality
// agreed at index-build time.
type DenseRetriever struct {
	embedder ports.Embedder
	index    ports.VectorIndex
}

func NewDenseRetriever(embedder ports.Embedder, index ports.VectorIndex) *DenseRetriever {
	return &DenseRetriever{embedder: embedder, index: index}
}

func (r *DenseRetriever) Retrieve(ctx context.Context, query string, k int) ([]domain.RankedHit, error) {
	if k < 1 {
		return nil, domain.WrapError(domain.ErrInvalidConfig, "dense retrieve", fmt.Errorf("k must be >= 1, got %d", k))
	}

	vector, err := r.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, domain.WrapError(domain.ErrRetrieval, "embed query", err)
	}

	hits, err := r.index.Search(ctx, vector, k)
	if err != nil {
		return nil, domain.WrapError(domain.ErrRetrieval, "vector search", err)
	}
	for _, hit := range hits {
		if hit.DocumentID == "" {
			return nil, domain.WrapError(domain.ErrRetrieval, "vector search", errors.New("hit missing document id"))
		}
	}
	return hits, nil
}

// RetrievalQueryUseCase serves ad-hoc queries against a selected
// retrieval mode; used by the API for inspecting rankings by hand.
type RetrievalQueryUseCase struct {
	dense  ports.Retriever
	sparse ports.Retriever
	fused  ports.Retriever
	topK   int
}

func NewRetrievalQueryUseCase(dense, sparse, fused ports.Retriever, topK int) *RetrievalQueryUseCase {
	return &RetrievalQueryUseCase{dense: dense, sparse: sparse, fused: fused, topK: topK}
}

func (uc *RetrievalQueryUseCase) Query(ctx context.Context, question, mode string, k int) ([]domain.RankedHit, error) {
	if k <= 0 {
		k = uc.topK
	}

	var retriever ports.Retriever
	switch mode {
	case RetrievalModeDense:
		retriever = uc.dense
	case RetrievalModeSparse:
		retriever = uc.sparse
	case "", RetrievalModeFused:
		retriever = uc.fused
	default:
		return nil, domain.WrapError(domain.ErrInvalidConfig, "query", fmt.Errorf("unknown retrieval mode %q", mode))
	}
	return retriever.Retrieve(ctx, question, k)
}
