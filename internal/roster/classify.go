package roster

import (
	"regexp"
	"strings"
)

// Negative cues are checked first: "不正确" contains "正确". Chinese cues
// match as substrings; English cues match whole words only, so "copyright"
// is not "right".
var (
	negativeCues = []string{"不正确", "不对", "答错", "错误", "错了", "未完成", "没完成"}
	positiveCues = []string{"正确", "答对", "回答对", "优秀", "很好", "表扬"}

	negativeWords = regexp.MustCompile(`\b(incorrect|wrong|not (?:correct|right|good))\b`)
	positiveWords = regexp.MustCompile(`\b(correct|right|good|excellent)\b`)
)

// Classify decides whether a record counts as a correct answer, an
// incorrect answer, or a plain participation record. The sign of the
// points wins; the note is consulted only when points are absent or zero.
func Classify(rec ActivityRecord) Outcome {
	if rec.Points != nil {
		switch {
		case *rec.Points > 0:
			return OutcomeCorrect
		case *rec.Points < 0:
			return OutcomeIncorrect
		}
	}
	note := strings.ToLower(rec.Note)
	if note == "" {
		return OutcomeNoScore
	}
	if containsAny(note, negativeCues) || negativeWords.MatchString(note) {
		return OutcomeIncorrect
	}
	if containsAny(note, positiveCues) || positiveWords.MatchString(note) {
		return OutcomeCorrect
	}
	return OutcomeNoScore
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func (s *Summary) add(o Outcome) {
	switch o {
	case OutcomeCorrect:
		s.Correct++
	case OutcomeIncorrect:
		s.Incorrect++
	default:
		s.NoScore++
	}
	s.Performance = performanceOf(*s)
}

// performanceOf labels a summary by the share of its records that were
// correct. No-score records count toward the total.
func performanceOf(s Summary) Performance {
	total := s.Total()
	if total == 0 {
		return PerformanceMixed
	}
	ratio := float64(s.Correct) / float64(total)
	switch {
	case ratio >= 0.7:
		return PerformanceExcellent
	case ratio <= 0.3:
		return PerformancePoor
	default:
		return PerformanceMixed
	}
}
