// Package batch dispatches evaluation prompts, splitting large classes into
// concurrent batches and stitching the responses back in roster order.
package batch

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/abhisek/classeval/internal/llm"
	"github.com/abhisek/classeval/internal/logger"
	"github.com/abhisek/classeval/internal/marker"
	"github.com/abhisek/classeval/internal/prompt"
	"github.com/abhisek/classeval/internal/roster"
)

// Purpose labels attached to outgoing requests.
const (
	PurposeCombined = "full-report"
	PurposeBatch    = "batch-evaluations"
	PurposeOverall  = "overall-analysis"
)

// Config controls partitioning.
type Config struct {
	// Threshold is the largest class sent as one combined request.
	Threshold int

	// BatchSize is the number of students per batch above the threshold.
	BatchSize int

	// MaxConcurrency caps in-flight requests. Zero means no cap.
	MaxConcurrency int
}

// DefaultConfig returns the default partitioning.
func DefaultConfig() Config {
	return Config{
		Threshold: 30,
		BatchSize: 15,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.Threshold < 1 {
		return fmt.Errorf("batch threshold must be positive, got %d", c.Threshold)
	}
	if c.BatchSize < 1 {
		return fmt.Errorf("batch size must be positive, got %d", c.BatchSize)
	}
	if c.MaxConcurrency < 0 {
		return fmt.Errorf("max concurrency must not be negative, got %d", c.MaxConcurrency)
	}
	return nil
}

// Result is a complete generation.
type Result struct {
	// StudentText holds the per-student evaluations, batches joined in
	// partition order.
	StudentText string

	// OverallText is the class-wide analysis.
	OverallText string

	// Batches is the number of student requests made; 1 when combined.
	Batches int

	// Combined is set when a single request produced both parts.
	Combined bool
}

// Orchestrator drives generation for one dataset.
type Orchestrator struct {
	caller  Caller
	builder *prompt.Builder
	cfg     Config
	log     *logger.Logger
}

// New creates an Orchestrator.
func New(caller Caller, builder *prompt.Builder, cfg Config, log *logger.Logger) (*Orchestrator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Orchestrator{caller: caller, builder: builder, cfg: cfg, log: logger.OrNop(log)}, nil
}

// Generate produces evaluations for every active student in ds. Either the
// whole result is returned or an error; never a partial result.
func (o *Orchestrator) Generate(ctx context.Context, ds roster.Dataset) (*Result, error) {
	n := len(ds.Aggregates)
	if n == 0 {
		return nil, ErrNoActiveStudents
	}
	if n <= o.cfg.Threshold {
		return o.generateCombined(ctx, ds)
	}
	return o.generateBatched(ctx, ds)
}

func (o *Orchestrator) generateCombined(ctx context.Context, ds roster.Dataset) (*Result, error) {
	o.log.Debug("dispatching combined request", "students", len(ds.Aggregates))

	text, err := o.caller.CallText(llm.WithPurpose(ctx, PurposeCombined), o.builder.Build(ds))
	if err != nil {
		return nil, &GenerationError{
			Stage:    "combined",
			Failures: []BatchFailure{{Index: 0, Total: 1, Err: err}},
		}
	}

	students, overall, found := marker.Split(text)
	if !found {
		o.log.Warn("combined response has no overall separator")
	}
	return &Result{
		StudentText: strings.TrimSpace(students),
		OverallText: strings.TrimSpace(overall),
		Batches:     1,
		Combined:    true,
	}, nil
}

func (o *Orchestrator) generateBatched(ctx context.Context, ds roster.Dataset) (*Result, error) {
	parts := Partition(ds.Aggregates, o.cfg.BatchSize)
	total := len(parts)

	// Each goroutine writes only its own slot.
	texts := make([]string, total)
	errs := make([]error, total)
	var overall string
	var overallErr error

	g, gctx := errgroup.WithContext(ctx)
	if o.cfg.MaxConcurrency > 0 {
		g.SetLimit(o.cfg.MaxConcurrency)
	}

	// The overall request goes first so it is not starved by the limit.
	g.Go(func() error {
		start := time.Now()
		text, err := o.call(gctx, PurposeOverall, o.builder.OverallPrompt(ds))
		if err != nil {
			overallErr = err
			return err
		}
		o.log.Debug("overall analysis done", "elapsed", time.Since(start))
		overall = text
		return nil
	})

	for i, part := range parts {
		g.Go(func() error {
			start := time.Now()
			o.log.Debug("dispatching batch", "batch", i+1, "of", total, "students", len(part))
			text, err := o.call(llm.WithBatch(gctx, i, total), PurposeBatch, o.builder.BatchPrompt(ds, part, i, total))
			if err != nil {
				errs[i] = err
				return err
			}
			o.log.Debug("batch done", "batch", i+1, "of", total, "elapsed", time.Since(start))
			texts[i] = strings.TrimSpace(text)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		genErr := collectFailures(ctx, errs, overallErr)
		o.log.Error("generation failed", "batches", total, "failed", genErr.Indexes(), "error", err)
		return nil, genErr
	}

	o.log.Info("generation complete", "students", len(ds.Aggregates), "batches", total)
	return &Result{
		StudentText: strings.Join(texts, "\n\n"),
		OverallText: strings.TrimSpace(overall),
		Batches:     total,
	}, nil
}

// call skips the request when a sibling has already failed.
func (o *Orchestrator) call(ctx context.Context, purpose, p string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return o.caller.CallText(llm.WithPurpose(ctx, purpose), p)
}

// collectFailures builds the error for a failed generation. Requests that
// only stopped because a sibling failed are left out unless the caller's
// own context ended.
func collectFailures(parent context.Context, errs []error, overallErr error) *GenerationError {
	total := len(errs)
	var all, primary []BatchFailure
	add := func(index int, err error) {
		if err == nil {
			return
		}
		f := BatchFailure{Index: index, Total: total, Err: err}
		all = append(all, f)
		if !errors.Is(err, context.Canceled) {
			primary = append(primary, f)
		}
	}

	add(OverallIndex, overallErr)
	for i, err := range errs {
		add(i, err)
	}

	failures := primary
	if parent.Err() != nil || len(primary) == 0 {
		failures = all
	}
	return &GenerationError{Stage: "batched", Failures: slices.Clip(failures)}
}

// Partition splits aggregates into consecutive chunks of at most size.
func Partition(aggs []roster.StudentAggregate, size int) [][]roster.StudentAggregate {
	if size < 1 {
		size = 1
	}
	var parts [][]roster.StudentAggregate
	for chunk := range slices.Chunk(aggs, size) {
		parts = append(parts, chunk)
	}
	return parts
}
