package store

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPragmasApplied(t *testing.T) {
	s := openTestStore(t)
	db := s.DB()

	tests := []struct {
		pragma string
		want   string
	}{
		// WAL mode falls back to "memory" for in-memory databases,
		// so we skip journal_mode here.
		{"foreign_keys", "1"},
		{"synchronous", "1"}, // NORMAL = 1
	}

	for _, tt := range tests {
		var got string
		err := db.QueryRow("PRAGMA " + tt.pragma).Scan(&got)
		if err != nil {
			t.Errorf("PRAGMA %s: %v", tt.pragma, err)
			continue
		}
		if got != tt.want {
			t.Errorf("PRAGMA %s = %q, want %q", tt.pragma, got, tt.want)
		}
	}
}

func TestAutoMigrationCreatesTables(t *testing.T) {
	s := openTestStore(t)
	db := s.DB()

	for _, table := range []string{tableLLMEvents, tableReports, "global_sequence"} {
		var name string
		err := db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table,
		).Scan(&name)
		if err != nil {
			t.Fatalf("query sqlite_master for %s: %v", table, err)
		}
	}
}

func TestSequenceCounter(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	sc, err := newSequenceCounter(s.DB())
	if err != nil {
		t.Fatalf("new sequence counter: %v", err)
	}

	var seqs []int64
	for i := 0; i < 5; i++ {
		seq, err := sc.Next(ctx)
		if err != nil {
			t.Fatalf("next %d: %v", i, err)
		}
		seqs = append(seqs, seq)
	}

	// Should be monotonically increasing starting from 1.
	for i, seq := range seqs {
		expected := int64(i + 1)
		if seq != expected {
			t.Errorf("seq[%d] = %d, want %d", i, seq, expected)
		}
	}
}

func appendEvent(t *testing.T, repo EventRepo, purpose, model string, in, out int, ok bool) {
	t.Helper()
	data := LLMRequestEventData{
		Provider:     "anthropic",
		Model:        model,
		Purpose:      purpose,
		InputTokens:  in,
		OutputTokens: out,
		LatencyMs:    100,
		Success:      ok,
		RequestBody:  "[user]\nprompt",
		ResponseBody: "response",
	}
	if !ok {
		data.ErrorMessage = "boom"
	}
	require.NoError(t, repo.AppendLLMRequest(context.Background(), data))
}

func TestLLMEvents_AppendQueryGet(t *testing.T) {
	s := openTestStore(t)
	repo := s.EventRepo()
	ctx := context.Background()

	appendEvent(t, repo, "batch-evaluations", "claude-sonnet-4-5-20250929", 100, 50, true)
	appendEvent(t, repo, "overall-analysis", "claude-sonnet-4-5-20250929", 80, 20, true)
	appendEvent(t, repo, "batch-evaluations", "gpt-4o-mini", 10, 0, false)

	events, err := repo.QueryLLMEvents(ctx, QueryOpts{})
	require.NoError(t, err)
	require.Len(t, events, 3)

	// Newest first, bodies not loaded.
	assert.Equal(t, "gpt-4o-mini", events[0].Model)
	assert.False(t, events[0].Success)
	assert.Equal(t, "boom", events[0].ErrorMessage)
	assert.Empty(t, events[0].RequestBody)
	assert.Greater(t, events[0].Sequence, events[1].Sequence)
	assert.WithinDuration(t, time.Now(), events[0].Timestamp, time.Minute)

	limited, err := repo.QueryLLMEvents(ctx, QueryOpts{Limit: 1, Purpose: "batch-evaluations"})
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, "gpt-4o-mini", limited[0].Model)

	after, err := repo.QueryLLMEvents(ctx, QueryOpts{After: events[1].Sequence})
	require.NoError(t, err)
	require.Len(t, after, 1)

	full, err := repo.GetLLMEvent(ctx, events[2].ID)
	require.NoError(t, err)
	require.NotNil(t, full)
	assert.Equal(t, "[user]\nprompt", full.RequestBody)
	assert.Equal(t, "response", full.ResponseBody)

	missing, err := repo.GetLLMEvent(ctx, 9999)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestLLMEvents_BatchAndAttempt(t *testing.T) {
	s := openTestStore(t)
	repo := s.EventRepo()
	ctx := context.Background()

	require.NoError(t, repo.AppendLLMRequest(ctx, LLMRequestEventData{
		Purpose: "batch-evaluations", Batch: "2/3", Attempt: 2, Success: true,
	}))
	appendEvent(t, repo, "overall-analysis", "m", 1, 1, true)

	events, err := repo.QueryLLMEvents(ctx, QueryOpts{})
	require.NoError(t, err)
	require.Len(t, events, 2)

	assert.Equal(t, "", events[0].Batch)
	assert.Equal(t, 1, events[0].Attempt, "unset attempt is stored as the first")

	full, err := repo.GetLLMEvent(ctx, events[1].ID)
	require.NoError(t, err)
	assert.Equal(t, "2/3", full.Batch)
	assert.Equal(t, 2, full.Attempt)
}

func TestLLMUsage(t *testing.T) {
	s := openTestStore(t)
	repo := s.EventRepo()
	ctx := context.Background()

	appendEvent(t, repo, "batch-evaluations", "m1", 100, 50, true)
	appendEvent(t, repo, "batch-evaluations", "m1", 200, 70, true)
	appendEvent(t, repo, "overall-analysis", "m2", 10, 5, true)

	byPurpose, err := repo.LLMUsageByPurpose(ctx)
	require.NoError(t, err)
	assert.Equal(t, []PurposeUsage{
		{Purpose: "batch-evaluations", Calls: 2, InputTokens: 300, OutputTokens: 120, AvgLatencyMs: 100},
		{Purpose: "overall-analysis", Calls: 1, InputTokens: 10, OutputTokens: 5, AvgLatencyMs: 100},
	}, byPurpose)

	byModel, err := repo.LLMUsageByModel(ctx)
	require.NoError(t, err)
	assert.Equal(t, []ModelUsage{
		{Model: "m1", Calls: 2, InputTokens: 300, OutputTokens: 120},
		{Model: "m2", Calls: 1, InputTokens: 10, OutputTokens: 5},
	}, byModel)
}

func saveReport(t *testing.T, repo ReportRepo, id string) *ReportRecord {
	t.Helper()
	rec := &ReportRecord{
		ID:           id,
		Provider:     "mock",
		Model:        "mock",
		StudentCount: 3,
		MatchRate:    100,
		Payload:      []byte(fmt.Sprintf(`{"id":%q}`, id)),
	}
	require.NoError(t, repo.Save(context.Background(), rec))
	return rec
}

func TestReports_SaveLatestGet(t *testing.T) {
	s := openTestStore(t)
	repo := s.ReportRepo()
	ctx := context.Background()

	latest, err := repo.Latest(ctx)
	require.NoError(t, err)
	assert.Nil(t, latest, "expected nil report when none exist")

	first := saveReport(t, repo, "aaaa1111-0000-0000-0000-000000000000")
	saveReport(t, repo, "aaaa2222-0000-0000-0000-000000000000")
	saveReport(t, repo, "bbbb3333-0000-0000-0000-000000000000")

	assert.Equal(t, ReportFormatVersion, first.FormatVersion)
	assert.NotZero(t, first.Sequence)

	latest, err = repo.Latest(ctx)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, "bbbb3333-0000-0000-0000-000000000000", latest.ID)
	assert.JSONEq(t, `{"id":"bbbb3333-0000-0000-0000-000000000000"}`, string(latest.Payload))

	got, err := repo.Get(ctx, "bbbb")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, latest.ID, got.ID)

	got, err = repo.Get(ctx, first.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 3, got.StudentCount)

	_, err = repo.Get(ctx, "aaaa")
	assert.True(t, errors.Is(err, ErrAmbiguousID))

	got, err = repo.Get(ctx, "cccc")
	require.NoError(t, err)
	assert.Nil(t, got)

	list, err := repo.List(ctx, QueryOpts{Limit: 2})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "bbbb3333-0000-0000-0000-000000000000", list[0].ID)
	assert.Nil(t, list[0].Payload)
}

func TestReports_IncompatibleFormat(t *testing.T) {
	s := openTestStore(t)
	repo := s.ReportRepo()
	ctx := context.Background()

	rec := &ReportRecord{ID: "future", FormatVersion: "v2.0.0", Payload: []byte(`{}`)}
	require.NoError(t, repo.Save(ctx, rec))

	_, err := repo.Latest(ctx)
	assert.True(t, errors.Is(err, ErrIncompatibleReport), "got %v", err)
}

func TestCheckFormat(t *testing.T) {
	tests := []struct {
		version string
		wantErr bool
	}{
		{"v1.0.0", false},
		{"v1.3.2", false},
		{"v2.0.0", true},
		{"v0.9.0", true},
		{"1.0.0", true},
		{"", true},
	}
	for _, tt := range tests {
		err := CheckFormat(tt.version)
		if (err != nil) != tt.wantErr {
			t.Errorf("CheckFormat(%q) error = %v, wantErr %v", tt.version, err, tt.wantErr)
		}
	}
}

func TestReports_Prune(t *testing.T) {
	s := openTestStore(t)
	repo := s.ReportRepo()
	ctx := context.Background()

	for i := 0; i < 7; i++ {
		saveReport(t, repo, fmt.Sprintf("report-%d", i))
	}

	removed, err := repo.Prune(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	list, err := repo.List(ctx, QueryOpts{})
	require.NoError(t, err)
	require.Len(t, list, 5)
	assert.Equal(t, "report-6", list[0].ID)
	assert.Equal(t, "report-2", list[4].ID)

	// Fewer than keep is a no-op.
	removed, err = repo.Prune(ctx, 10)
	require.NoError(t, err)
	assert.Zero(t, removed)
}

func TestReports_SaveRequiresID(t *testing.T) {
	s := openTestStore(t)
	err := s.ReportRepo().Save(context.Background(), &ReportRecord{Payload: []byte(`{}`)})
	assert.Error(t, err)
}
