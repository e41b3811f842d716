package analyzer

import (
	"math"
	"sort"
)

// Score blends both cases, the pool quality and the decision confidence into a
// 0-100 opportunity score:
//
//	base       = max(points(mv.Strength), points(uni.Strength))
//	quality    = min(20, quality.Score / 5)
//	confidence = round(20 × decision.Confidence)
//	penalty    = min(20, 5 × distinct risk flags across both cases)
//
// The result is clamp(base + quality + confidence − penalty, 0, 100), rounded.
func Score(mv MVCase, uni UNICase, q ComparableQuality, d StrategyDecision) int {
	base := math.Max(mv.Strength.Points(), uni.Strength.Points())
	quality := math.Min(20, q.Score/5)
	confidence := math.Round(20 * clamp(d.Confidence, 0, 1))
	penalty := math.Min(20, 5*float64(len(distinctFlags(mv.RiskFlags, uni.RiskFlags))))

	return int(math.Round(clamp(base+quality+confidence-penalty, 0, 100)))
}

// distinctFlags returns the sorted union of the given flag lists.
func distinctFlags(lists ...[]string) []string {
	seen := make(map[string]struct{})
	for _, l := range lists {
		for _, f := range l {
			seen[f] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for f := range seen {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}
