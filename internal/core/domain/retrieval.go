package domain

// RankedHit is one position in a ranked retrieval result. Rank is 1-based.
// Hits are produced fresh per query and never mutated afterwards.
type RankedHit struct {
	DocumentID string  `json:"document_id"`
	Score      float64 `json:"score"`
	Rank       int     `json:"rank"`
}

// GeneratedAnswer pairs the raw model answer with the exact context
// documents the prompt was built from. Grounding is scored against this
// context, never against a recomputed retrieval.
type GeneratedAnswer struct {
	Text        string     `json:"text"`
	ContextUsed []Document `json:"context_used"`
}

// Answer is the API-facing shape of a grounded answer.
type Answer struct {
	Text    string      `json:"text"`
	Sources []RankedHit `json:"sources"`
}

// DocumentIDs projects hits onto their ids, preserving order.
func DocumentIDs(hits []RankedHit) []string {
	ids := make([]string, len(hits))
	for i, hit := range hits {
		ids[i] = hit.DocumentID
	}
	return ids
}
