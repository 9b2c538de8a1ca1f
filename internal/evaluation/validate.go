package evaluation

import "math"

// ValidationReport compares parsed evaluations against the expected names.
type ValidationReport struct {
	Expected  int      `json:"expected"`
	Found     int      `json:"found"`
	Missing   []string `json:"missing"`
	Extra     []string `json:"extra"`
	MatchRate int      `json:"match_rate"`
}

// OK reports whether every expected student has an evaluation and nothing
// else was found.
func (v ValidationReport) OK() bool {
	return len(v.Missing) == 0 && len(v.Extra) == 0
}

// Validate checks evals against expected names. MatchRate is the share of
// expected names found, as a whole percentage; 100 when nothing is expected.
func Validate(evals []StudentEvaluation, expected []string) ValidationReport {
	want := make(map[string]struct{}, len(expected))
	for _, n := range expected {
		want[normalizeName(n)] = struct{}{}
	}
	got := make(map[string]struct{}, len(evals))
	for _, e := range evals {
		got[normalizeName(e.Name)] = struct{}{}
	}

	report := ValidationReport{Expected: len(want), Found: len(evals)}
	reported := make(map[string]struct{}, len(expected))
	for _, n := range expected {
		k := normalizeName(n)
		if contains(got, k) || contains(reported, k) {
			continue
		}
		reported[k] = struct{}{}
		report.Missing = append(report.Missing, n)
	}
	for _, e := range evals {
		if !contains(want, normalizeName(e.Name)) {
			report.Extra = append(report.Extra, e.Name)
		}
	}

	if report.Expected == 0 {
		report.MatchRate = 100
		return report
	}
	matched := report.Expected - len(report.Missing)
	report.MatchRate = int(math.Round(float64(matched) / float64(report.Expected) * 100))
	return report
}
