package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidConfig = errors.New("invalid configuration")
	ErrRetrieval     = errors.New("retrieval failure")
	ErrGeneration    = errors.New("generation failure")
	ErrScoring       = errors.New("scoring failure")
	ErrIndexState    = errors.New("index state error")
	ErrRunNotFound   = errors.New("run not found")
	ErrTemporary     = errors.New("temporary failure")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}

// ScoringError marks a batch scoring failure with the index of the
// triple that failed. Batch means are all-or-nothing, so the index is
// the only way for a caller to tell which input corrupted the run.
type ScoringError struct {
	Index int
	Err   error
}

func (e *ScoringError) Error() string {
	return fmt.Sprintf("score triple %d: %v", e.Index, e.Err)
}

func (e *ScoringError) Unwrap() []error {
	return []error{ErrScoring, e.Err}
}
