package domain

// EvaluationExample is one labeled question: the document that should be
// retrieved for it and, optionally, a reference answer. Loaded once per
// run, immutable.
type EvaluationExample struct {
	Question          string `json:"question"`
	RefDocID          string `json:"ref_doc_id"`
	GroundTruthAnswer string `json:"ground_truth_answer,omitempty"`
}

// EvaluationResult holds retrieval quality over a complete example set.
// Both metrics are in [0,1] and always use the full example count as the
// denominator; a partially evaluated set never produces a result.
type EvaluationResult struct {
	HitRate float64 `json:"hit_rate"`
	MRR     float64 `json:"mrr"`
}

// AnswerScore is the judge's verdict on a single generated answer.
type AnswerScore struct {
	Grounding float64 `json:"grounding_score"`
	Relevance float64 `json:"relevance_score"`
}

// ScoringTriple is the unit of batch answer evaluation. Context is kept
// as the ordered document texts; the evaluator newline-joins them into
// the single text the scoring service expects.
type ScoringTriple struct {
	Question string   `json:"question"`
	Context  []string `json:"context"`
	Answer   string   `json:"answer"`
}

// BatchScore aggregates answer scores across a fully scored batch.
type BatchScore struct {
	MeanGrounding float64 `json:"mean_grounding"`
	MeanRelevance float64 `json:"mean_relevance"`
	Scored        int     `json:"scored"`
}
