package report

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/abhisek/classeval/internal/batch"
	"github.com/abhisek/classeval/internal/evaluation"
	"github.com/abhisek/classeval/internal/logger"
	"github.com/abhisek/classeval/internal/roster"
	"github.com/abhisek/classeval/internal/store"
)

// Generator produces evaluation text for a dataset. *batch.Orchestrator
// implements it.
type Generator interface {
	Generate(ctx context.Context, ds roster.Dataset) (*batch.Result, error)
}

// Options describes the generator for the report header and bounds the cache.
type Options struct {
	Provider string
	Model    string

	// Keep is the number of cached reports retained after a save. Zero
	// disables pruning.
	Keep int
}

// Service runs the pipeline: merge, generate, parse, validate, cache.
type Service struct {
	gen     Generator
	parser  *evaluation.Parser
	reports store.ReportRepo
	opts    Options
	log     *logger.Logger

	now   func() time.Time
	newID func() string
}

// NewService creates a Service. reports may be nil to skip caching.
func NewService(gen Generator, parser *evaluation.Parser, reports store.ReportRepo, opts Options, log *logger.Logger) *Service {
	return &Service{
		gen:     gen,
		parser:  parser,
		reports: reports,
		opts:    opts,
		log:     logger.OrNop(log),
		now:     time.Now,
		newID:   uuid.NewString,
	}
}

// Generate merges the raw rows and produces a report. A failed generation
// returns an error and caches nothing.
func (s *Service) Generate(ctx context.Context, activityRows, rosterRows []roster.Row) (*Report, error) {
	ds := roster.Merge(activityRows, rosterRows)
	s.logDataQuality(ds)

	res, err := s.gen.Generate(ctx, ds)
	if err != nil {
		return nil, fmt.Errorf("generate evaluations: %w", err)
	}

	r := s.Assemble(ds, res)
	s.save(ctx, r)
	return r, nil
}

// Assemble parses generated text and validates it against ds.
func (s *Service) Assemble(ds roster.Dataset, res *batch.Result) *Report {
	parsed := s.parser.ParseDetailed(res.StudentText)
	validation := evaluation.Validate(parsed.Evaluations, ds.Names())
	validation.Missing = nonNil(validation.Missing)
	validation.Extra = nonNil(validation.Extra)

	if !validation.OK() {
		s.log.Warn("evaluations do not match the roster",
			"missing", validation.Missing, "extra", validation.Extra, "match_rate", validation.MatchRate)
	}

	inactive := make([]Student, len(ds.Inactive))
	for i, st := range ds.Inactive {
		inactive[i] = Student{ID: st.StudentID, Name: st.Name}
	}

	return &Report{
		ID:            s.newID(),
		CreatedAt:     s.now().UTC(),
		FormatVersion: store.ReportFormatVersion,
		Provider:      s.opts.Provider,
		Model:         s.opts.Model,
		MatchRate:     ds.MatchRate,
		Data:          dataStats(ds),
		Inactive:      inactive,
		Overall:       res.OverallText,
		Evaluations:   nonNil(parsed.Evaluations),
		Validation:    validation,
		Generation: GenerationInfo{
			Batches:           res.Batches,
			Combined:          res.Combined,
			MarkerCount:       parsed.MarkerCount,
			FallbackCount:     parsed.FallbackCount,
			FallbackDiscarded: parsed.FallbackDiscarded,
			Unmatched:         nonNil(parsed.Unmatched),
			Duplicates:        nonNil(parsed.Duplicates),
		},
	}
}

// save caches r. The report is already complete, so cache failures are
// logged rather than returned.
func (s *Service) save(ctx context.Context, r *Report) {
	if s.reports == nil {
		return
	}
	rec, err := r.Record()
	if err != nil {
		s.log.Warn("failed to encode report for cache", "id", r.ID, "error", err)
		return
	}
	if err := s.reports.Save(ctx, rec); err != nil {
		s.log.Warn("failed to cache report", "id", r.ID, "error", err)
		return
	}
	if s.opts.Keep > 0 {
		n, err := s.reports.Prune(ctx, s.opts.Keep)
		if err != nil {
			s.log.Warn("failed to prune report cache", "error", err)
			return
		}
		if n > 0 {
			s.log.Debug("pruned report cache", "removed", n, "keep", s.opts.Keep)
		}
	}
}

func (s *Service) logDataQuality(ds roster.Dataset) {
	st := ds.Stats
	if st.SkippedActivityRows > 0 || st.SkippedRosterRows > 0 {
		s.log.Warn("skipped rows without a usable student id",
			"activity", st.SkippedActivityRows, "roster", st.SkippedRosterRows)
	}
	if st.DuplicateRosterIDs > 0 {
		s.log.Warn("duplicate roster ids; first entry kept", "count", st.DuplicateRosterIDs)
	}
	if st.UnmatchedRecords > 0 {
		s.log.Warn("activity records for students not on the roster",
			"records", st.UnmatchedRecords, "ids", st.UnmatchedIDs)
	}
	s.log.Info("merged class data",
		"active", len(ds.Aggregates), "inactive", len(ds.Inactive), "match_rate", ds.MatchRate)
}
