package llm

import (
	"context"
	"fmt"
)

type contextKey int

const (
	purposeKey contextKey = iota
	batchKey
	attemptKey
)

type batchTag struct {
	index, total int
}

// WithPurpose labels requests for the event log, e.g. "batch-evaluations".
func WithPurpose(ctx context.Context, purpose string) context.Context {
	return context.WithValue(ctx, purposeKey, purpose)
}

// PurposeFrom extracts the purpose label from the context.
func PurposeFrom(ctx context.Context) string {
	if v, ok := ctx.Value(purposeKey).(string); ok {
		return v
	}
	return "unknown"
}

// WithBatch tags requests as batch index (zero-based) of total.
func WithBatch(ctx context.Context, index, total int) context.Context {
	return context.WithValue(ctx, batchKey, batchTag{index: index, total: total})
}

// BatchFrom returns the batch tag one-based, e.g. "2/3", or "" when the
// request is not part of a batch.
func BatchFrom(ctx context.Context) string {
	if v, ok := ctx.Value(batchKey).(batchTag); ok {
		return fmt.Sprintf("%d/%d", v.index+1, v.total)
	}
	return ""
}

func withAttempt(ctx context.Context, n int) context.Context {
	return context.WithValue(ctx, attemptKey, n)
}

// AttemptFrom returns the one-based retry attempt; 1 outside WithRetry.
func AttemptFrom(ctx context.Context) int {
	if v, ok := ctx.Value(attemptKey).(int); ok {
		return v
	}
	return 1
}
