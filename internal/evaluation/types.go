package evaluation

// Source records which path produced an evaluation.
type Source string

const (
	SourceMarker   Source = "marker"
	SourceFallback Source = "fallback"
)

// StudentEvaluation is one recovered per-student evaluation.
type StudentEvaluation struct {
	Name   string `json:"name"`
	Text   string `json:"text"`
	Index  int    `json:"index"`
	Source Source `json:"source"`
}

// Result is the detailed outcome of a parse.
type Result struct {
	Evaluations []StudentEvaluation

	// MarkerCount is the number of evaluations recovered from marker pairs.
	MarkerCount int

	// FallbackCount is the number of fallback evaluations accepted before
	// the guard was applied.
	FallbackCount int

	// FallbackDiscarded is set when the guard dropped every fallback result.
	FallbackDiscarded bool

	// Unmatched lists start-marker names with no matching end marker, and
	// marker pairs whose body was empty.
	Unmatched []string

	// Duplicates lists names that appeared in more than one marker pair.
	// Only the first pair is kept.
	Duplicates []string

	// Overall is the text after the separator, if any.
	Overall string
}

// Names returns the evaluation names in output order.
func (r Result) Names() []string {
	names := make([]string, len(r.Evaluations))
	for i, e := range r.Evaluations {
		names[i] = e.Name
	}
	return names
}
