package analyzer

import (
	"fmt"
	"math"

	"github.com/stwalsh4118/taxappeal/internal/models"
)

const (
	uniMethodologyPerSqft = "assessment uniformity (assessed value per square foot versus same-class peers)"
	uniMethodologyRaw     = "assessment uniformity (assessed value versus same-class peers)"
)

// BuildUNICase builds the equity theory from the same-class comparable pool.
// Sales are not required. When the subject's size is known the comparison is
// made per square foot, otherwise on raw assessed values.
func BuildUNICase(subject models.Property, q ComparableQuality, p Params) UNICase {
	perSqft := subject.SquareFeet > 0

	var ratios []float64
	lower := 0
	for _, a := range q.Audits {
		c := a.Comparable
		if c.ClassCode != subject.ClassCode || c.AssessedValue <= 0 {
			continue
		}
		if c.AssessedValue < subject.AssessedValue {
			lower++
		}
		if perSqft {
			if c.SquareFeet <= 0 {
				continue
			}
			ratios = append(ratios, c.AssessedValue/float64(c.SquareFeet))
		} else {
			ratios = append(ratios, c.AssessedValue)
		}
	}
	n := len(ratios)

	subjectRatio := subject.AssessedValue
	scale := 1.0
	if perSqft {
		scale = float64(subject.SquareFeet)
		subjectRatio = subject.AssessedValue / scale
	}

	uni := UNICase{
		Methodology:         uniMethodologyRaw,
		Rationale:           []string{},
		RiskFlags:           []string{},
		TargetAssessedValue: subject.AssessedValue,
		Support: UNISupport{
			ComparablesAssessedLower: lower,
			PoolSize:                 n,
			PerSquareFoot:            perSqft,
		},
	}
	if perSqft {
		uni.Methodology = uniMethodologyPerSqft
	}

	var pct, cod float64
	if n > 0 {
		pct = percentileRank(ratios, subjectRatio)
		cod = coefficientOfDispersion(ratios)
		atTarget := valueAtPercentile(ratios, p.TargetPercentile) * scale
		uni.Support.ValueAtTargetPercentile = roundTo(atTarget, 2)
		uni.TargetAssessedValue = roundTo(math.Min(subject.AssessedValue, atTarget), 2)
	}
	uni.Support.PercentileRank = roundTo(pct, 2)
	uni.Support.CoefficientOfDispersion = roundTo(cod, 2)
	uni.PotentialReduction = roundTo(floorZero(subject.AssessedValue-uni.TargetAssessedValue), 2)

	uni.Confidence = roundTo(uniConfidence(n, pct, cod, p), 4)
	gap := reductionGap(subject.AssessedValue, uni.TargetAssessedValue)
	uni.Strength = ClassifyStrength(uni.Confidence, n, gap, p.UNIBands)

	if n < p.MinPool {
		uni.RiskFlags = append(uni.RiskFlags, FlagSmallPool)
	}
	if n > 0 && cod > p.MaxCOD {
		uni.RiskFlags = append(uni.RiskFlags, FlagHighDispersion)
	}
	if n > 0 && pct < p.TargetPercentile {
		uni.RiskFlags = append(uni.RiskFlags, FlagNotOverAssessed)
	}

	uni.Rationale = uniRationale(subject, uni)
	return uni
}

// uniConfidence combines pool size, neighborhood uniformity and how far above
// the target percentile the subject sits.
func uniConfidence(n int, pct, cod float64, p Params) float64 {
	if n == 0 {
		return 0
	}
	pool := math.Min(1, float64(n)/float64(p.FullPool))
	uniformity := math.Max(0, 1-cod/p.CODCeiling)
	position := clamp((pct-p.TargetPercentile)/p.PercentileSpan, 0, 1)
	return pool * uniformity * position
}

func uniRationale(subject models.Property, uni UNICase) []string {
	s := uni.Support
	if s.PoolSize == 0 {
		return []string{"no same-class comparables with usable assessments"}
	}
	out := []string{
		fmt.Sprintf("subject ranks at the %.0fth percentile of %d same-class peers", s.PercentileRank, s.PoolSize),
		fmt.Sprintf("%d comparable(s) are assessed lower than the subject", s.ComparablesAssessedLower),
		fmt.Sprintf("coefficient of dispersion is %.1f", s.CoefficientOfDispersion),
	}
	if uni.PotentialReduction > 0 {
		out = append(out, fmt.Sprintf("assessing the subject at the target peer percentile implies $%.0f, a reduction of $%.0f from $%.0f",
			uni.TargetAssessedValue, uni.PotentialReduction, subject.AssessedValue))
	} else {
		out = append(out, "subject is not assessed above its peers")
	}
	return out
}
