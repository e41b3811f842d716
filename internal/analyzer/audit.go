package analyzer

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/stwalsh4118/taxappeal/internal/models"
)

// average days per month, used to express sale age in months
const daysPerMonth = 30.4375

// AuditComparables scores every candidate comparable against the subject and
// returns the pool ordered by quality, best first. An empty pool yields a
// zero score and a weak assessment.
func AuditComparables(subject models.Property, comps []models.Comparable, p Params, asOf time.Time) ComparableQuality {
	audits := make([]ComparableAudit, 0, len(comps))
	for _, c := range comps {
		audits = append(audits, auditOne(subject, c, p, asOf))
	}

	sort.SliceStable(audits, func(i, j int) bool {
		if audits[i].QualityScore != audits[j].QualityScore {
			return audits[i].QualityScore > audits[j].QualityScore
		}
		return audits[i].Comparable.ParcelID < audits[j].Comparable.ParcelID
	})

	q := ComparableQuality{
		Audits:       audits,
		PrimaryCount: p.PrimaryComparables,
	}
	if q.PrimaryCount > len(audits) {
		q.PrimaryCount = len(audits)
	}

	if len(audits) == 0 {
		q.Assessment = AssessmentWeak
		return q
	}

	scores := make([]float64, len(audits))
	var f FactorScores
	for i, a := range audits {
		scores[i] = a.QualityScore
		f.Recency += a.Factors.Recency
		f.Size += a.Factors.Size
		f.Age += a.Factors.Age
		f.Sale += a.Factors.Sale
		f.ClassMatch += a.Factors.ClassMatch
	}
	n := float64(len(audits))
	q.Factors = FactorScores{
		Recency:    roundTo(f.Recency/n, 2),
		Size:       roundTo(f.Size/n, 2),
		Age:        roundTo(f.Age/n, 2),
		Sale:       roundTo(f.Sale/n, 2),
		ClassMatch: roundTo(f.ClassMatch/n, 2),
	}
	q.Score = roundTo(mean(scores), 2)
	q.Assessment = assessPool(q.Score, p)

	return q
}

// assessPool maps an overall quality score to its categorical assessment.
func assessPool(score float64, p Params) Assessment {
	switch {
	case score >= p.StrongQualityScore:
		return AssessmentStrong
	case score >= p.AdequateQualityScore:
		return AssessmentAdequate
	default:
		return AssessmentWeak
	}
}

func auditOne(subject models.Property, c models.Comparable, p Params, asOf time.Time) ComparableAudit {
	var reasons []string

	recency := 0.0
	sale := 0.0
	if c.HasVerifiedSale() {
		sale = 1
		months := asOf.Sub(*c.SaleDate).Hours() / 24 / daysPerMonth
		recency = recencyFactor(months, p)
		switch {
		case recency >= 1:
			reasons = append(reasons, fmt.Sprintf("sold within the current assessment cycle (%.0f months ago)", math.Max(0, months)))
		case recency > 0:
			reasons = append(reasons, fmt.Sprintf("sold %.0f months ago; recency discounted", months))
		default:
			reasons = append(reasons, fmt.Sprintf("sale is %.0f months old, outside the recency window", months))
		}
	} else {
		reasons = append(reasons, "no verified sale; assessed value used")
	}

	size := 0.0
	if subject.SquareFeet > 0 && c.SquareFeet > 0 {
		dev := math.Abs(float64(c.SquareFeet-subject.SquareFeet)) / float64(subject.SquareFeet)
		size = sizeFactor(dev, p)
		if dev <= p.SizeTolerance {
			reasons = append(reasons, fmt.Sprintf("size within %.0f%% of subject", dev*100))
		} else {
			reasons = append(reasons, fmt.Sprintf("size differs from subject by %.0f%%", dev*100))
		}
	} else {
		reasons = append(reasons, "square footage unknown")
	}

	age := 0.5
	if subject.YearBuilt > 0 && c.YearBuilt > 0 {
		delta := math.Abs(float64(c.YearBuilt - subject.YearBuilt))
		age = 1 / (1 + delta/p.AgeScaleYears)
		reasons = append(reasons, fmt.Sprintf("built %d (subject %d)", c.YearBuilt, subject.YearBuilt))
	}

	classMatch := 1.0
	gate := 1.0
	if c.ClassCode != subject.ClassCode {
		classMatch = 0
		gate = p.ClassMismatchFactor
		reasons = append(reasons, fmt.Sprintf("property class %s differs from subject class %s; heavily discounted",
			c.ClassCode, subject.ClassCode))
	} else {
		reasons = append(reasons, "same property class")
	}

	raw := p.WeightRecency*recency + p.WeightSize*size + p.WeightAge*age + p.WeightSale*sale
	score := roundTo(clamp(100*gate*raw, 0, 100), 2)

	return ComparableAudit{
		Comparable:   c,
		Reasons:      reasons,
		QualityScore: score,
		Factors: FactorScores{
			Recency:    roundTo(recency*100, 2),
			Size:       roundTo(size*100, 2),
			Age:        roundTo(age*100, 2),
			Sale:       sale * 100,
			ClassMatch: classMatch * 100,
		},
		AdjustedValue: adjustedValue(c, score, recency, p),
	}
}

// recencyFactor is 1 inside the current cycle and decays linearly to 0 at
// the end of the recency window.
func recencyFactor(months float64, p Params) float64 {
	switch {
	case months <= p.RecencyFullMonths:
		return 1
	case months >= p.RecencyWindowMonths:
		return 0
	default:
		return 1 - (months-p.RecencyFullMonths)/(p.RecencyWindowMonths-p.RecencyFullMonths)
	}
}

// sizeFactor is linear inside the tolerance band and decays exponentially beyond it.
func sizeFactor(dev float64, p Params) float64 {
	if dev <= p.SizeTolerance {
		return 1 - dev
	}
	return (1 - p.SizeTolerance) * math.Exp(-p.SizeDecayRate*(dev-p.SizeTolerance))
}

// adjustedValue is the comparable's value in assessed terms. A recent sale is
// converted to assessed terms and shrunk toward the comparable's own assessed
// value in proportion to how unreliable the comparable is.
func adjustedValue(c models.Comparable, score, recency float64, p Params) float64 {
	if !c.HasVerifiedSale() || recency <= 0 || p.MarketMultiplier <= 0 {
		return c.AssessedValue
	}
	saleAssessed := *c.SalePrice / p.MarketMultiplier
	shrink := p.ShrinkageRate * (1 - score/100)
	return roundTo(saleAssessed+shrink*(c.AssessedValue-saleAssessed), 2)
}
