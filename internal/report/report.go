// Package report assembles, caches and renders class evaluation reports.
package report

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/abhisek/classeval/internal/evaluation"
	"github.com/abhisek/classeval/internal/roster"
	"github.com/abhisek/classeval/internal/store"
)

// Report is one complete generation: merged-data summary, class-wide
// analysis, per-student evaluations and their validation.
type Report struct {
	ID            string    `json:"id"`
	CreatedAt     time.Time `json:"created_at"`
	FormatVersion string    `json:"format_version"`
	Provider      string    `json:"provider"`
	Model         string    `json:"model"`

	MatchRate int       `json:"match_rate"`
	Data      DataStats `json:"data"`
	Inactive  []Student `json:"inactive"`

	Overall     string                         `json:"overall"`
	Evaluations []evaluation.StudentEvaluation `json:"evaluations"`
	Validation  evaluation.ValidationReport    `json:"validation"`
	Generation  GenerationInfo                 `json:"generation"`
}

// Student identifies a roster entry.
type Student struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// DataStats mirrors roster.Stats for the report payload.
type DataStats struct {
	ActiveStudents      int      `json:"active_students"`
	ActivityRows        int      `json:"activity_rows"`
	SkippedActivityRows int      `json:"skipped_activity_rows"`
	RosterRows          int      `json:"roster_rows"`
	SkippedRosterRows   int      `json:"skipped_roster_rows"`
	DuplicateRosterIDs  int      `json:"duplicate_roster_ids"`
	MatchedRecords      int      `json:"matched_records"`
	UnmatchedRecords    int      `json:"unmatched_records"`
	UnmatchedIDs        []string `json:"unmatched_ids"`
}

// GenerationInfo describes how the evaluations were produced and recovered.
type GenerationInfo struct {
	Batches           int      `json:"batches"`
	Combined          bool     `json:"combined"`
	MarkerCount       int      `json:"marker_count"`
	FallbackCount     int      `json:"fallback_count"`
	FallbackDiscarded bool     `json:"fallback_discarded"`
	Unmatched         []string `json:"unmatched_markers"`
	Duplicates        []string `json:"duplicate_markers"`
}

func dataStats(ds roster.Dataset) DataStats {
	st := ds.Stats
	return DataStats{
		ActiveStudents:      len(ds.Aggregates),
		ActivityRows:        st.ActivityRows,
		SkippedActivityRows: st.SkippedActivityRows,
		RosterRows:          st.RosterRows,
		SkippedRosterRows:   st.SkippedRosterRows,
		DuplicateRosterIDs:  st.DuplicateRosterIDs,
		MatchedRecords:      st.MatchedRecords,
		UnmatchedRecords:    st.UnmatchedRecords,
		UnmatchedIDs:        nonNil(st.UnmatchedIDs),
	}
}

// Record converts r into its cache row.
func (r *Report) Record() (*store.ReportRecord, error) {
	payload, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("encode report: %w", err)
	}
	return &store.ReportRecord{
		ID:             r.ID,
		Timestamp:      r.CreatedAt,
		FormatVersion:  r.FormatVersion,
		Provider:       r.Provider,
		Model:          r.Model,
		StudentCount:   r.Data.ActiveStudents,
		InactiveCount:  len(r.Inactive),
		MatchRate:      r.MatchRate,
		ValidationRate: r.Validation.MatchRate,
		Payload:        payload,
	}, nil
}

// FromRecord decodes a cached report.
func FromRecord(rec *store.ReportRecord) (*Report, error) {
	if err := store.CheckFormat(rec.FormatVersion); err != nil {
		return nil, err
	}
	var r Report
	if err := json.Unmarshal(rec.Payload, &r); err != nil {
		return nil, fmt.Errorf("decode report %s: %w", rec.ID, err)
	}
	return &r, nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
