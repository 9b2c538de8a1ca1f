package batch

import (
	"errors"
	"fmt"
	"strings"
)

// OverallIndex identifies the class-wide analysis request in a BatchFailure.
const OverallIndex = -1

// ErrNoActiveStudents is returned when the dataset has nothing to evaluate.
var ErrNoActiveStudents = errors.New("no active students to evaluate")

// BatchFailure is one rejected request.
type BatchFailure struct {
	Index int // zero-based batch index, or OverallIndex
	Total int // number of student batches
	Err   error
}

func (f BatchFailure) String() string {
	if f.Index == OverallIndex {
		return fmt.Sprintf("overall analysis: %v", f.Err)
	}
	return fmt.Sprintf("batch %d of %d: %v", f.Index+1, f.Total, f.Err)
}

// GenerationError reports every request that failed during a generation.
// No partial result accompanies it.
type GenerationError struct {
	Stage    string // "combined" or "batched"
	Failures []BatchFailure
}

func (e *GenerationError) Error() string {
	parts := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		parts[i] = f.String()
	}
	return fmt.Sprintf("%s generation failed: %s", e.Stage, strings.Join(parts, "; "))
}

// Unwrap exposes the underlying errors to errors.Is and errors.As.
func (e *GenerationError) Unwrap() []error {
	errs := make([]error, len(e.Failures))
	for i, f := range e.Failures {
		errs[i] = f.Err
	}
	return errs
}

// Indexes returns the failed batch indexes in ascending order, with
// OverallIndex first when the overall request failed.
func (e *GenerationError) Indexes() []int {
	idx := make([]int, len(e.Failures))
	for i, f := range e.Failures {
		idx[i] = f.Index
	}
	return idx
}
