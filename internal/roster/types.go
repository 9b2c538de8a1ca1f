package roster

import (
	"maps"
	"slices"
)

// Row is one decoded spreadsheet row: header -> cell value. Values are
// loosely typed (string, float64, bool, nil) depending on the decoder.
type Row map[string]any

// ActivityRecord is one classroom event for one student.
type ActivityRecord struct {
	StudentID string
	Subject   string
	Date      string   // normalized to YYYY-MM-DD when recognizable
	Points    *float64 // nil when the cell was empty or not a number
	Note      string
}

// RosterEntry is one enrolled student.
type RosterEntry struct {
	StudentID string
	Name      string
}

// Outcome is the classification of a single activity record.
type Outcome int

const (
	OutcomeNoScore Outcome = iota
	OutcomeCorrect
	OutcomeIncorrect
)

// Performance labels a date or subject by its correct ratio.
type Performance string

const (
	PerformanceExcellent Performance = "excellent"
	PerformancePoor      Performance = "poor"
	PerformanceMixed     Performance = "mixed"
)

// Summary is the running tally for one date or one subject.
type Summary struct {
	Correct     int
	Incorrect   int
	NoScore     int
	Performance Performance
}

// Total returns the number of records folded into the summary.
func (s Summary) Total() int {
	return s.Correct + s.Incorrect + s.NoScore
}

// Trend is derived from total points and answer counts.
type Trend string

const (
	TrendExcellent        Trend = "consistently excellent"
	TrendGood             Trend = "good"
	TrendNeedsImprovement Trend = "needs improvement"
	TrendNeedsAttention   Trend = "needs attention"
	TrendDeclining        Trend = "declining"
)

// Pattern is derived from the share of excellent days.
type Pattern string

const (
	PatternExcellent      Pattern = "consistently excellent"
	PatternGood           Pattern = "good"
	PatternVariable       Pattern = "variable"
	PatternNeedsAttention Pattern = "needs attention"
)

// StudentAggregate is the merged, per-student view of the activity log.
// It is built once per merge and never mutated afterwards.
type StudentAggregate struct {
	StudentID          string
	Name               string
	TotalPoints        float64
	ParticipationCount int
	CorrectAnswers     int
	IncorrectAnswers   int
	NoScoreRecords     int
	Subjects           []string // sorted
	DailySummaries     map[string]Summary
	SubjectSummaries   map[string]Summary
	Trend              Trend
	PerformancePattern Pattern
}

// Dates returns the keys of DailySummaries in ascending order.
func (a StudentAggregate) Dates() []string {
	return slices.Sorted(maps.Keys(a.DailySummaries))
}

// InactiveStudent is a roster entry with no activity records.
type InactiveStudent struct {
	StudentID string
	Name      string
}

// Stats counts what happened to every input row.
type Stats struct {
	ActivityRows        int // rows handed to Merge
	SkippedActivityRows int // rows without a resolvable student id
	RosterRows          int
	SkippedRosterRows   int // rows without a resolvable id or name
	DuplicateRosterIDs  int // later rows repeating an id; first one wins
	MatchedRecords      int
	UnmatchedRecords    int      // resolvable id, not on the roster
	UnmatchedIDs        []string // distinct, in first-seen order
}

// Dataset is the output of Merge.
type Dataset struct {
	Aggregates []StudentAggregate // roster order
	Inactive   []InactiveStudent  // roster order
	MatchRate  int                // whole percent, 0-100
	Stats      Stats
}

// Subjects returns every subject seen across aggregates, sorted.
func (d Dataset) Subjects() []string {
	seen := make(map[string]struct{})
	for _, a := range d.Aggregates {
		for _, s := range a.Subjects {
			seen[s] = struct{}{}
		}
	}
	return slices.Sorted(maps.Keys(seen))
}

// Names returns the aggregate names in order.
func (d Dataset) Names() []string {
	names := make([]string, len(d.Aggregates))
	for i, a := range d.Aggregates {
		names[i] = a.Name
	}
	return names
}

// InactiveNames returns the inactive student names in order.
func (d Dataset) InactiveNames() []string {
	names := make([]string, len(d.Inactive))
	for i, s := range d.Inactive {
		names[i] = s.Name
	}
	return names
}
