// Package bm25 scores lexical overlap between queries and an in-memory
// corpus with BM25 (k1/b term saturation and length normalization).
// The whole index lives in process memory and is fitted once at
// construction, so retrieval needs no I/O and stays deterministic.
package bm25

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/kirillkom/rag-evalkit/internal/core/domain"
)

const (
	bm25K1 = 1.2
	bm25B  = 0.75
)

type docEntry struct {
	id     string
	terms  map[string]int
	length int
}

type Index struct {
	docs  []docEntry
	df    map[string]int
	avgdl float64
}

func NewIndex(corpus *domain.Corpus) *Index {
	documents := corpus.Documents()
	docs := make([]docEntry, 0, len(documents))
	df := make(map[string]int)

	var totalLength int
	for _, doc := range documents {
		tokens := tokenize(doc.Content)
		terms := make(map[string]int, len(tokens))
		for _, token := range tokens {
			terms[token]++
		}
		for term := range terms {
			df[term]++
		}
		docs = append(docs, docEntry{id: doc.ID, terms: terms, length: len(tokens)})
		totalLength += len(tokens)
	}

	var avgdl float64
	if len(docs) > 0 {
		avgdl = float64(totalLength) / float64(len(docs))
	}
	return &Index{docs: docs, df: df, avgdl: avgdl}
}

// Retrieve returns the top-k documents sharing at least one term with
// the query, best score first. Ties order by document id so repeated
// calls never reshuffle equal-scored documents.
func (idx *Index) Retrieve(_ context.Context, query string, k int) ([]domain.RankedHit, error) {
	if k < 1 {
		return nil, domain.WrapError(domain.ErrInvalidConfig, "lexical retrieve", fmt.Errorf("k must be >= 1, got %d", k))
	}

	terms := uniqueTokens(tokenize(query))
	hits := make([]domain.RankedHit, 0, len(idx.docs))
	for _, doc := range idx.docs {
		score := idx.score(terms, doc)
		if score <= 0 {
			continue
		}
		hits = append(hits, domain.RankedHit{DocumentID: doc.id, Score: score})
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].DocumentID < hits[j].DocumentID
	})

	if len(hits) > k {
		hits = hits[:k]
	}
	for i := range hits {
		hits[i].Rank = i + 1
	}
	return hits, nil
}

func (idx *Index) score(terms []string, doc docEntry) float64 {
	if idx.avgdl == 0 {
		return 0
	}

	norm := bm25K1 * (1 - bm25B + bm25B*float64(doc.length)/idx.avgdl)
	var score float64
	for _, term := range terms {
		tf := doc.terms[term]
		if tf == 0 {
			continue
		}
		df := float64(idx.df[term])
		idf := math.Log(1 + (float64(len(idx.docs))-df+0.5)/(df+0.5))
		score += idf * (float64(tf) * (bm25K1 + 1)) / (float64(tf) + norm)
	}
	return score
}
