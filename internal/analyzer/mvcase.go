package analyzer

import (
	"fmt"
	"math"

	"github.com/stwalsh4118/taxappeal/internal/models"
)

const mvMethodology = "sales comparison (median of quality-adjusted recent sales)"

// BuildMVCase builds the market value theory from the primary audited
// comparables that carry a recent verified sale.
func BuildMVCase(subject models.Property, q ComparableQuality, p Params) MVCase {
	primary := q.Primary()

	var values, prices []float64
	for _, a := range primary {
		if !a.Comparable.HasVerifiedSale() || a.Factors.Recency <= 0 {
			continue
		}
		values = append(values, a.AdjustedValue)
		prices = append(prices, *a.Comparable.SalePrice)
	}
	n := len(values)

	mv := MVCase{
		Methodology: mvMethodology,
		Rationale:   []string{},
		RiskFlags:   []string{},
		Support: MVSupport{
			SalesCount:      n,
			MedianSalePrice: roundTo(median(prices), 2),
			SalePriceCV:     roundTo(coefficientOfVariation(values), 4),
		},
		TargetAssessedValue: subject.AssessedValue,
	}

	if n > 0 {
		w := math.Min(1, float64(n)/float64(p.FullWeightSales))
		target := w*median(values) + (1-w)*subject.AssessedValue
		mv.TargetAssessedValue = roundTo(math.Min(target, subject.AssessedValue), 2)
	}
	mv.PotentialReduction = roundTo(floorZero(subject.AssessedValue-mv.TargetAssessedValue), 2)

	cv := coefficientOfVariation(values)
	mv.Confidence = roundTo(mvConfidence(n, cv, p), 4)
	gap := reductionGap(subject.AssessedValue, mv.TargetAssessedValue)
	mv.Strength = ClassifyStrength(mv.Confidence, n, gap, p.MVBands)

	if n < p.MinQualifyingSales {
		mv.RiskFlags = append(mv.RiskFlags, FlagInsufficientSales)
	}
	if n >= 2 && cv > p.MaxSaleCV {
		mv.RiskFlags = append(mv.RiskFlags, FlagHighSaleVariance)
	}
	if len(primary) > 0 && dominantClass(primary) != subject.ClassCode {
		mv.RiskFlags = append(mv.RiskFlags, FlagClassDiverges)
	}
	if poolSize := medianSquareFeet(primary); subject.SquareFeet > 0 && poolSize > 0 &&
		math.Abs(poolSize-float64(subject.SquareFeet))/float64(subject.SquareFeet) > p.SizeDivergence {
		mv.RiskFlags = append(mv.RiskFlags, FlagSizeDiverges)
	}

	mv.Rationale = mvRationale(subject, mv, n, p)
	return mv
}

// mvConfidence grows with the number of sales and shrinks with their dispersion.
func mvConfidence(n int, cv float64, p Params) float64 {
	if n == 0 {
		return 0
	}
	sample := math.Min(1, float64(n)/float64(p.FullWeightSales))
	dispersion := math.Max(0, 1-cv/p.CVCeiling)
	return sample * dispersion
}

func mvRationale(subject models.Property, mv MVCase, n int, p Params) []string {
	if n == 0 {
		return []string{"no recent verified sales among the primary comparables"}
	}
	out := []string{
		fmt.Sprintf("%d recent verified sale(s) among the primary comparables", n),
		fmt.Sprintf("median sale price $%.0f implies an assessed value of $%.0f",
			mv.Support.MedianSalePrice, mv.TargetAssessedValue),
	}
	if mv.PotentialReduction > 0 {
		out = append(out, fmt.Sprintf("current assessment of $%.0f exceeds the sales-implied value by $%.0f (%.1f%%)",
			subject.AssessedValue, mv.PotentialReduction, 100*mv.PotentialReduction/subject.AssessedValue))
	} else {
		out = append(out, "recent sales do not support a lower assessment")
	}
	if n < p.FullWeightSales {
		out = append(out, "target blended toward the current assessment because the sales sample is small")
	}
	return out
}

// dominantClass returns the most common class code, ties broken lexically.
func dominantClass(audits []ComparableAudit) string {
	counts := make(map[string]int)
	for _, a := range audits {
		counts[a.Comparable.ClassCode]++
	}
	best, bestN := "", -1
	for class, n := range counts {
		if n > bestN || (n == bestN && class < best) {
			best, bestN = class, n
		}
	}
	return best
}

func medianSquareFeet(audits []ComparableAudit) float64 {
	var sizes []float64
	for _, a := range audits {
		if a.Comparable.SquareFeet > 0 {
			sizes = append(sizes, float64(a.Comparable.SquareFeet))
		}
	}
	return median(sizes)
}
