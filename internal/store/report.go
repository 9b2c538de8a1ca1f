package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"golang.org/x/mod/semver"
)

// ReportFormatVersion is the payload format written by this build. Payloads
// with a different major version are not readable.
const ReportFormatVersion = "v1.0.0"

// CheckFormat reports whether a cached payload version can be read.
func CheckFormat(version string) error {
	if !semver.IsValid(version) {
		return fmt.Errorf("%w: invalid version %q", ErrIncompatibleReport, version)
	}
	if semver.Major(version) != semver.Major(ReportFormatVersion) {
		return fmt.Errorf("%w: %s (this build reads %s.x)", ErrIncompatibleReport, version, semver.Major(ReportFormatVersion))
	}
	return nil
}

// reportRepo implements ReportRepo.
type reportRepo struct {
	db  *sql.DB
	seq *sequenceCounter
}

var reportSummaryColumns = []string{
	"id", "sequence", "timestamp", "format_version", "provider", "model",
	"student_count", "inactive_count", "match_rate", "validation_rate",
}

func (r *reportRepo) Save(ctx context.Context, rec *ReportRecord) error {
	if rec.ID == "" {
		return fmt.Errorf("save report: empty id")
	}
	if rec.FormatVersion == "" {
		rec.FormatVersion = ReportFormatVersion
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}

	seqNum, err := r.seq.Next(ctx)
	if err != nil {
		return fmt.Errorf("next sequence: %w", err)
	}
	rec.Sequence = seqNum

	query, args := builder().Insert(tableReports).
		Columns(append(append([]string{}, reportSummaryColumns...), "payload")...).
		Values(rec.ID, rec.Sequence, rec.Timestamp.UnixMilli(), rec.FormatVersion, rec.Provider, rec.Model,
			rec.StudentCount, rec.InactiveCount, rec.MatchRate, rec.ValidationRate, rec.Payload).
		Query()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("save report: %w", err)
	}
	return nil
}

func (r *reportRepo) Get(ctx context.Context, id string) (*ReportRecord, error) {
	sel := r.selectFull().
		Where(entsql.HasPrefix("id", id)).
		OrderBy(entsql.Desc("sequence")).
		Limit(2)

	recs, err := r.queryFull(ctx, sel)
	if err != nil {
		return nil, fmt.Errorf("get report %s: %w", id, err)
	}
	for i := range recs {
		if recs[i].ID == id {
			return checked(&recs[i])
		}
	}
	switch len(recs) {
	case 0:
		return nil, nil
	case 1:
		return checked(&recs[0])
	}
	return nil, fmt.Errorf("%w: %q", ErrAmbiguousID, id)
}

func (r *reportRepo) Latest(ctx context.Context) (*ReportRecord, error) {
	sel := r.selectFull().
		OrderBy(entsql.Desc("sequence")).
		Limit(1)

	recs, err := r.queryFull(ctx, sel)
	if err != nil {
		return nil, fmt.Errorf("query latest report: %w", err)
	}
	if len(recs) == 0 {
		return nil, nil
	}
	return checked(&recs[0])
}

func (r *reportRepo) List(ctx context.Context, opts QueryOpts) ([]ReportRecord, error) {
	sel := builder().Select(reportSummaryColumns...).
		From(entsql.Table(tableReports)).
		OrderBy(entsql.Desc("sequence"))
	if !opts.From.IsZero() {
		sel.Where(entsql.GTE("timestamp", opts.From.UnixMilli()))
	}
	if !opts.To.IsZero() {
		sel.Where(entsql.LTE("timestamp", opts.To.UnixMilli()))
	}
	if opts.Limit > 0 {
		sel.Limit(opts.Limit)
	}

	query, args := sel.Query()
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	defer rows.Close()

	var out []ReportRecord
	for rows.Next() {
		var rec ReportRecord
		var ts int64
		if err := rows.Scan(&rec.ID, &rec.Sequence, &ts, &rec.FormatVersion, &rec.Provider, &rec.Model,
			&rec.StudentCount, &rec.InactiveCount, &rec.MatchRate, &rec.ValidationRate); err != nil {
			return nil, fmt.Errorf("scan report: %w", err)
		}
		rec.Timestamp = time.UnixMilli(ts)
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r *reportRepo) Prune(ctx context.Context, keep int) (int, error) {
	if keep < 0 {
		keep = 0
	}

	// Find the threshold: the newest report that falls outside keep.
	query, args := builder().Select("sequence").
		From(entsql.Table(tableReports)).
		OrderBy(entsql.Desc("sequence")).
		Limit(1).
		Offset(keep).
		Query()

	var threshold int64
	err := r.db.QueryRowContext(ctx, query, args...).Scan(&threshold)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil // fewer than keep reports exist
	}
	if err != nil {
		return 0, fmt.Errorf("query reports for prune: %w", err)
	}

	query, args = builder().Delete(tableReports).
		Where(entsql.LTE("sequence", threshold)).
		Query()
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("prune reports: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune reports: %w", err)
	}
	return int(n), nil
}

func (r *reportRepo) selectFull() *entsql.Selector {
	return builder().Select(append(append([]string{}, reportSummaryColumns...), "payload")...).
		From(entsql.Table(tableReports))
}

func (r *reportRepo) queryFull(ctx context.Context, sel *entsql.Selector) ([]ReportRecord, error) {
	query, args := sel.Query()
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ReportRecord
	for rows.Next() {
		var rec ReportRecord
		var ts int64
		if err := rows.Scan(&rec.ID, &rec.Sequence, &ts, &rec.FormatVersion, &rec.Provider, &rec.Model,
			&rec.StudentCount, &rec.InactiveCount, &rec.MatchRate, &rec.ValidationRate, &rec.Payload); err != nil {
			return nil, err
		}
		rec.Timestamp = time.UnixMilli(ts)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// checked returns rec, or ErrIncompatibleReport if its payload can't be read.
func checked(rec *ReportRecord) (*ReportRecord, error) {
	if err := CheckFormat(rec.FormatVersion); err != nil {
		return nil, fmt.Errorf("report %s: %w", rec.ID, err)
	}
	return rec, nil
}
