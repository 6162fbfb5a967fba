package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kirillkom/rag-evalkit/internal/core/domain"
	"github.com/kirillkom/rag-evalkit/internal/core/ports"
)

// AnswerUseCase retrieves context for a question and generates a
// grounded answer from it.
type AnswerUseCase struct {
	retriever ports.Retriever
	corpus    *domain.Corpus
	generator ports.AnswerGenerator
	topK      int
}

func NewAnswerUseCase(
	retriever ports.Retriever,
	corpus *domain.Corpus,
	generator ports.AnswerGenerator,
	topK int,
) *AnswerUseCase {
	return &AnswerUseCase{
		retriever: retriever,
		corpus:    corpus,
		generator: generator,
		topK:      topK,
	}
}

func (uc *AnswerUseCase) Answer(ctx context.Context, question string, k int) (*domain.Answer, error) {
	if k <= 0 {
		k = uc.topK
	}

	hits, err := uc.retriever.Retrieve(ctx, question, k)
	if err != nil {
		return nil, fmt.Errorf("retrieve context: %w", err)
	}

	generated, err := uc.Generate(ctx, question, uc.corpus.Resolve(hits))
	if err != nil {
		return nil, err
	}

	return &domain.Answer{
		Text:    generated.Text,
		Sources: hits,
	}, nil
}

// Generate calls the generation service and pairs the raw answer with
// the exact documents the prompt was built from. Downstream grounding
// is scored against this pairing, never against a fresh retrieval.
func (uc *AnswerUseCase) Generate(
	ctx context.Context,
	question string,
	docs []domain.Document,
) (domain.GeneratedAnswer, error) {
	text, err := uc.generator.GenerateAnswer(ctx, question, docs)
	if err != nil {
		return domain.GeneratedAnswer{}, domain.WrapError(domain.ErrGeneration, "generate answer", err)
	}
	if strings.TrimSpace(text) == "" {
		return domain.GeneratedAnswer{}, domain.WrapError(domain.ErrGeneration, "generate answer", errors.New("generator returned empty output"))
	}

	return domain.GeneratedAnswer{
		Text:        text,
		ContextUsed: docs,
	}, nil
}
