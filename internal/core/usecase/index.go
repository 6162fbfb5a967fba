package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/kirillkom/rag-evalkit/internal/core/domain"
	"github.com/kirillkom/rag-evalkit/internal/core/ports"
)

// embedBatchSize bounds one embedding request while building the index.
const embedBatchSize = 32

// IndexBootstrapUseCase brings the vector index to a ready state before
// any query is served. The persisted snapshot blob is write-once: if it
// exists the index is restored from it, if it is absent the index is
// built from the corpus and the fresh snapshot persisted. An existing
// blob is never overwritten.
type IndexBootstrapUseCase struct {
	corpus          *domain.Corpus
	embedder        ports.Embedder
	index           ports.VectorIndex
	storage         ports.ObjectStorage
	snapshotKey     string
	requireSnapshot bool
}

func NewIndexBootstrapUseCase(
	corpus *domain.Corpus,
	embedder ports.Embedder,
	index ports.VectorIndex,
	storage ports.ObjectStorage,
	snapshotKey string,
	requireSnapshot bool,
) *IndexBootstrapUseCase {
	return &IndexBootstrapUseCase{
		corpus:          corpus,
		embedder:        embedder,
		index:           index,
		storage:         storage,
		snapshotKey:     snapshotKey,
		requireSnapshot: requireSnapshot,
	}
}

func (uc *IndexBootstrapUseCase) Ensure(ctx context.Context) error {
	exists, err := uc.storage.Exists(ctx, uc.snapshotKey)
	if err != nil {
		return fmt.Errorf("check snapshot existence: %w", err)
	}
	if exists {
		return uc.restore(ctx)
	}
	if uc.requireSnapshot {
		return domain.WrapError(
			domain.ErrIndexState,
			"ensure index",
			fmt.Errorf("snapshot %q missing but reuse was requested", uc.snapshotKey),
		)
	}
	return uc.buildAndPersist(ctx)
}

func (uc *IndexBootstrapUseCase) restore(ctx context.Context) error {
	blob, err := uc.storage.Open(ctx, uc.snapshotKey)
	if err != nil {
		return domain.WrapError(domain.ErrIndexState, "open snapshot", err)
	}
	defer blob.Close()

	if err := uc.index.RestoreSnapshot(ctx, blob); err != nil {
		return domain.WrapError(domain.ErrIndexState, "restore snapshot", err)
	}

	count, err := uc.index.Count(ctx)
	if err != nil {
		return domain.WrapError(domain.ErrIndexState, "verify restored index", err)
	}
	if count != uc.corpus.Len() {
		return domain.WrapError(
			domain.ErrIndexState,
			"verify restored index",
			fmt.Errorf("snapshot holds %d documents, corpus has %d", count, uc.corpus.Len()),
		)
	}
	return nil
}

func (uc *IndexBootstrapUseCase) buildAndPersist(ctx context.Context) error {
	docs := uc.corpus.Documents()
	vectors, err := uc.embedAll(ctx, docs)
	if err != nil {
		return err
	}

	if err := uc.index.IndexDocuments(ctx, docs, vectors); err != nil {
		return fmt.Errorf("index corpus: %w", err)
	}

	snapshot, err := uc.index.CreateSnapshot(ctx)
	if err != nil {
		return domain.WrapError(domain.ErrIndexState, "create snapshot", err)
	}
	defer snapshot.Close()

	// The existence check ran before the build; a blob that appeared in
	// between means a concurrent writer, and overwriting it silently is
	// exactly what the write-once contract forbids.
	exists, err := uc.storage.Exists(ctx, uc.snapshotKey)
	if err != nil {
		return fmt.Errorf("recheck snapshot existence: %w", err)
	}
	if exists {
		return domain.WrapError(
			domain.ErrIndexState,
			"persist snapshot",
			fmt.Errorf("snapshot %q appeared during index build", uc.snapshotKey),
		)
	}
	if err := uc.storage.Save(ctx, uc.snapshotKey, snapshot); err != nil {
		return domain.WrapError(domain.ErrIndexState, "persist snapshot", err)
	}
	return nil
}

func (uc *IndexBootstrapUseCase) embedAll(ctx context.Context, docs []domain.Document) ([][]float32, error) {
	if len(docs) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidConfig, "embed corpus", errors.New("empty corpus"))
	}

	vectors := make([][]float32, 0, len(docs))
	for start := 0; start < len(docs); start += embedBatchSize {
		end := min(start+embedBatchSize, len(docs))
		texts := make([]string, 0, end-start)
		for _, doc := range docs[start:end] {
			texts = append(texts, doc.Content)
		}
		batch, err := uc.embedder.Embed(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("embed corpus batch at %d: %w", start, err)
		}
		if len(batch) != len(texts) {
			return nil, domain.WrapError(
				domain.ErrIndexState,
				"embed corpus",
				fmt.Errorf("vectors/texts mismatch: %d/%d", len(batch), len(texts)),
			)
		}
		vectors = append(vectors, batch...)
	}
	return vectors, nil
}
