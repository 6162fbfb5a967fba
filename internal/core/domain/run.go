package domain

import "time"

type RunStatus string

const (
	RunPending   RunStatus = "pending"
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// RunConfig is the per-run knob set. Zero values are filled with the
// deployment defaults before the run is persisted.
type RunConfig struct {
	TopK           int     `json:"top_k"`
	DenseWeight    float64 `json:"dense_weight"`
	SparseWeight   float64 `json:"sparse_weight"`
	MaxConcurrency int     `json:"max_concurrency"`
	ScoreAnswers   bool    `json:"score_answers"`
}

// RunResults is written exactly once, when a run completes.
type RunResults struct {
	Dense        EvaluationResult `json:"dense"`
	Fused        EvaluationResult `json:"fused"`
	Champion     string           `json:"champion"`
	Answers      *BatchScore      `json:"answers,omitempty"`
	ExampleCount int              `json:"example_count"`
}

// EvaluationRun is one recorded experiment: a named pass of the harness
// over the corpus and example set with a fixed configuration.
type EvaluationRun struct {
	ID           string      `json:"id"`
	Name         string      `json:"name"`
	Status       RunStatus   `json:"status"`
	Config       RunConfig   `json:"config"`
	Results      *RunResults `json:"results,omitempty"`
	ErrorMessage string      `json:"error,omitempty"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}
