package roster

// TrendFor derives the trend label from point and answer totals.
func TrendFor(totalPoints float64, correct, incorrect int) Trend {
	switch {
	case totalPoints >= 5:
		return TrendExcellent
	case totalPoints >= 2:
		return TrendGood
	case totalPoints > 0:
		return TrendNeedsImprovement
	case totalPoints == 0:
		return TrendNeedsAttention
	case incorrect > correct:
		return TrendDeclining
	default:
		return TrendNeedsAttention
	}
}

// PatternFor derives the performance pattern from daily summaries.
func PatternFor(daily map[string]Summary) Pattern {
	if len(daily) == 0 {
		return PatternNeedsAttention
	}
	excellent := 0
	for _, s := range daily {
		if s.Performance == PerformanceExcellent {
			excellent++
		}
	}
	share := float64(excellent) / float64(len(daily))
	switch {
	case share >= 0.8:
		return PatternExcellent
	case share >= 0.6:
		return PatternGood
	case share >= 0.4:
		return PatternVariable
	default:
		return PatternNeedsAttention
	}
}
