package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/kirillkom/rag-evalkit/internal/core/domain"
)

type generatorFake struct {
	text string
	err  error

	mu      sync.Mutex
	gotDocs []domain.Document
}

func (f *generatorFake) GenerateAnswer(_ context.Context, _ string, docs []domain.Document) (string, error) {
	f.mu.Lock()
	f.gotDocs = docs
	f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	return f.text, nil
}

func testCorpus(t *testing.T, docs ...domain.Document) *domain.Corpus {
	t.Helper()
	corpus, err := domain.NewCorpus(docs)
	if err != nil {
		t.Fatalf("NewCorpus() error = %v", err)
	}
	return corpus
}

func TestAnswerResolvesSourcesAndGenerates(t *testing.T) {
	corpus := testCorpus(t,
		domain.Document{ID: "doc-1", Content: "alpha"},
		domain.Document{ID: "doc-2", Content: "beta"},
	)
	retriever := &retrieverFake{hits: rankedHits("doc-2", "doc-1")}
	generator := &generatorFake{text: "grounded answer"}
	uc := NewAnswerUseCase(retriever, corpus, generator, 5)

	answer, err := uc.Answer(context.Background(), "what is beta?", 0)
	if err != nil {
		t.Fatalf("Answer() error = %v", err)
	}
	if answer.Text != "grounded answer" {
		t.Fatalf("unexpected answer text %q", answer.Text)
	}
	if len(answer.Sources) != 2 || answer.Sources[0].DocumentID != "doc-2" {
		t.Fatalf("expected retrieval hits as sources, got %+v", answer.Sources)
	}
	if len(generator.gotDocs) != 2 || generator.gotDocs[0].Content != "beta" {
		t.Fatalf("expected resolved documents in hit order, got %+v", generator.gotDocs)
	}
}

func TestAnswerWrapsGeneratorFailure(t *testing.T) {
	corpus := testCorpus(t, domain.Document{ID: "doc-1", Content: "alpha"})
	retriever := &retrieverFake{hits: rankedHits("doc-1")}
	generator := &generatorFake{err: errors.New("model unavailable")}
	uc := NewAnswerUseCase(retriever, corpus, generator, 5)

	_, err := uc.Answer(context.Background(), "q", 1)
	if !domain.IsKind(err, domain.ErrGeneration) {
		t.Fatalf("expected generation failure, got %v", err)
	}
}

func TestGenerateRejectsEmptyModelOutput(t *testing.T) {
	corpus := testCorpus(t, domain.Document{ID: "doc-1", Content: "alpha"})
	generator := &generatorFake{text: "   \n"}
	uc := NewAnswerUseCase(&retrieverFake{}, corpus, generator, 5)

	_, err := uc.Generate(context.Background(), "q", corpus.Documents())
	if !domain.IsKind(err, domain.ErrGeneration) {
		t.Fatalf("expected generation failure on empty output, got %v", err)
	}
}

func TestGeneratePairsExactContext(t *testing.T) {
	corpus := testCorpus(t,
		domain.Document{ID: "doc-1", Content: "alpha"},
		domain.Document{ID: "doc-2", Content: "beta"},
	)
	generator := &generatorFake{text: "ok"}
	uc := NewAnswerUseCase(&retrieverFake{}, corpus, generator, 5)

	docs := corpus.Resolve(rankedHits("doc-2", "doc-1"))
	generated, err := uc.Generate(context.Background(), "q", docs)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if len(generated.ContextUsed) != 2 {
		t.Fatalf("expected 2 context documents, got %d", len(generated.ContextUsed))
	}
	if generated.ContextUsed[0].ID != "doc-2" || generated.ContextUsed[1].ID != "doc-1" {
		t.Fatalf("expected the exact prompt context in order, got %+v", generated.ContextUsed)
	}
}

func TestAnswerPropagatesRetrievalFailure(t *testing.T) {
	corpus := testCorpus(t, domain.Document{ID: "doc-1", Content: "alpha"})
	retriever := &retrieverFake{err: errors.New("index offline")}
	uc := NewAnswerUseCase(retriever, corpus, &generatorFake{text: "x"}, 5)

	_, err := uc.Answer(context.Background(), "q", 1)
	if err == nil {
		t.Fatalf("expected error")
	}
}
