package analyzer

// ClassifyStrength maps a case's continuous confidence, sample size and
// relative reduction gap onto the three-tier label. It is monotonic in every
// argument: raising any input never lowers the tier. Both case builders use
// it so strength and confidence cannot disagree.
func ClassifyStrength(confidence float64, sample int, gap float64, b Bands) Strength {
	switch {
	case sample >= b.StrongSample && confidence >= b.StrongConfidence && gap >= b.StrongGap:
		return StrengthStrong
	case sample >= b.ModerateSample && confidence >= b.ModerateConfidence && gap >= b.ModerateGap:
		return StrengthModerate
	default:
		return StrengthWeak
	}
}

// reductionGap is the relative reduction of target below current.
func reductionGap(current, target float64) float64 {
	if current <= 0 || target >= current {
		return 0
	}
	return (current - target) / current
}

func floorZero(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}
