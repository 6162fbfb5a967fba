package usecase

import (
	"context"
	"errors"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/kirillkom/rag-evalkit/internal/core/domain"
	"github.com/kirillkom/rag-evalkit/internal/core/ports"
)

// DefaultScoreConcurrency bounds the scoring worker pool when the
// caller does not set an explicit limit.
const DefaultScoreConcurrency = 4

// ScoreFunc scores one triple; contextText is the newline-joined
// context the answer was generated from.
type ScoreFunc func(ctx context.Context, contextText, question, answer string) (domain.AnswerScore, error)

// ScorerFunc adapts an AnswerScorer to a ScoreFunc.
func ScorerFunc(scorer ports.AnswerScorer) ScoreFunc {
	return scorer.Score
}

// EvaluateAnswers scores every triple through a worker pool of at most
// maxConcurrency concurrent calls and averages the results. Scores are
// collected by triple index, never by completion order. The batch is
// all-or-nothing: the first failure cancels the rest and surfaces a
// ScoringError carrying the failing triple's index, with no partial
// mean. maxConcurrency <= 0 falls back to DefaultScoreConcurrency.
func EvaluateAnswers(
	ctx context.Context,
	triples []domain.ScoringTriple,
	score ScoreFunc,
	maxConcurrency int,
) (domain.BatchScore, error) {
	if score == nil {
		return domain.BatchScore{}, domain.WrapError(domain.ErrInvalidConfig, "evaluate answers", errors.New("nil score function"))
	}
	if len(triples) == 0 {
		return domain.BatchScore{}, domain.WrapError(domain.ErrInvalidConfig, "evaluate answers", errors.New("empty triple batch"))
	}
	if maxConcurrency <= 0 {
		maxConcurrency = DefaultScoreConcurrency
	}

	scores := make([]domain.AnswerScore, len(triples))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrency)
	for i, triple := range triples {
		i, triple := i, triple
		g.Go(func() error {
			// A failed sibling already decided the batch; skip the call.
			if err := gctx.Err(); err != nil {
				return err
			}
			result, err := score(gctx, strings.Join(triple.Context, "\n"), triple.Question, triple.Answer)
			if err != nil {
				return &domain.ScoringError{Index: i, Err: err}
			}
			scores[i] = result
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return domain.BatchScore{}, err
	}

	var batch domain.BatchScore
	for _, s := range scores {
		batch.MeanGrounding += s.Grounding
		batch.MeanRelevance += s.Relevance
	}
	total := float64(len(triples))
	batch.MeanGrounding /= total
	batch.MeanRelevance /= total
	batch.Scored = len(triples)
	return batch, nil
}
