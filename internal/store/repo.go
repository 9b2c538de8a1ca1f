package store

import (
	"context"
	"errors"
	"time"
)

// QueryOpts configures queries with filtering and pagination.
type QueryOpts struct {
	Limit   int       // max results (0 = unlimited)
	After   int64     // sequence > After
	Before  int64     // sequence < Before
	From    time.Time // timestamp >= From
	To      time.Time // timestamp <= To
	Purpose string    // LLM events only; empty matches all
}

// LLMRequestEventData captures the data for a single LLM request event.
type LLMRequestEventData struct {
	Provider     string
	Model        string
	Purpose      string
	Batch        string // "2/3" for batch requests, empty otherwise
	Attempt      int    // one-based retry attempt
	InputTokens  int
	OutputTokens int
	LatencyMs    int64
	Success      bool
	ErrorMessage string
	RequestBody  string
	ResponseBody string
}

// LLMEventRecord is a stored LLM request event.
type LLMEventRecord struct {
	ID        int
	Sequence  int64
	Timestamp time.Time
	LLMRequestEventData
}

// PurposeUsage aggregates LLM usage for one purpose label.
type PurposeUsage struct {
	Purpose      string
	Calls        int
	InputTokens  int
	OutputTokens int
	AvgLatencyMs int64
}

// ModelUsage aggregates LLM usage for one model.
type ModelUsage struct {
	Model        string
	Calls        int
	InputTokens  int
	OutputTokens int
}

// EventRepo provides access to the LLM request log.
type EventRepo interface {
	// AppendLLMRequest records an LLM API call event.
	AppendLLMRequest(ctx context.Context, data LLMRequestEventData) error

	// QueryLLMEvents returns events newest first. Bodies are not loaded.
	QueryLLMEvents(ctx context.Context, opts QueryOpts) ([]LLMEventRecord, error)

	// GetLLMEvent returns one event with bodies, or nil if it doesn't exist.
	GetLLMEvent(ctx context.Context, id int) (*LLMEventRecord, error)

	// LLMUsageByPurpose aggregates token usage per purpose.
	LLMUsageByPurpose(ctx context.Context) ([]PurposeUsage, error)

	// LLMUsageByModel aggregates token usage per model.
	LLMUsageByModel(ctx context.Context) ([]ModelUsage, error)
}

// ReportRecord is a cached report. Payload holds the encoded report; the
// other fields are summary columns for listing.
type ReportRecord struct {
	ID             string
	Sequence       int64
	Timestamp      time.Time
	FormatVersion  string
	Provider       string
	Model          string
	StudentCount   int
	InactiveCount  int
	MatchRate      int
	ValidationRate int
	Payload        []byte
}

// ReportRepo manages cached reports.
type ReportRepo interface {
	// Save stores a new report and assigns its sequence.
	Save(ctx context.Context, rec *ReportRecord) error

	// Get returns the report whose id equals or starts with id, or nil if
	// none does. An ambiguous prefix is an error.
	Get(ctx context.Context, id string) (*ReportRecord, error)

	// Latest returns the most recent report, or nil if none exist.
	Latest(ctx context.Context) (*ReportRecord, error)

	// List returns report summaries newest first, without payloads.
	List(ctx context.Context, opts QueryOpts) ([]ReportRecord, error)

	// Prune deletes all but the N most recent reports and returns how many
	// were removed.
	Prune(ctx context.Context, keep int) (int, error)
}

var (
	// ErrIncompatibleReport is returned for a cached report written in a
	// format this build cannot read.
	ErrIncompatibleReport = errors.New("incompatible report format")

	// ErrAmbiguousID is returned when an id prefix matches several reports.
	ErrAmbiguousID = errors.New("ambiguous report id")
)
