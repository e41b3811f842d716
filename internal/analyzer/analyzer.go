package analyzer

import (
	"time"

	"github.com/stwalsh4118/taxappeal/internal/models"
)

// Result is the complete output of one analysis run.
type Result struct {
	Quality          ComparableQuality `json:"comparableQuality"`
	MV               MVCase            `json:"mvCase"`
	UNI              UNICase           `json:"uniCase"`
	Decision         StrategyDecision  `json:"strategyDecision"`
	OpportunityScore int               `json:"opportunityScore"`
}

// Run executes the full pipeline: audit, both case builders, the strategy
// decision and the opportunity score. asOf anchors sale recency.
func Run(subject models.Property, comps []models.Comparable, p Params, asOf time.Time) Result {
	q := AuditComparables(subject, comps, p, asOf)
	mv := BuildMVCase(subject, q, p)
	uni := BuildUNICase(subject, q, p)
	d := Decide(subject, mv, uni, q, p)

	return Result{
		Quality:          q,
		MV:               mv,
		UNI:              uni,
		Decision:         d,
		OpportunityScore: Score(mv, uni, q, d),
	}
}

// Recommendation converts a result into the snapshot stored on an appeal.
func (r Result) Recommendation() *models.Recommendation {
	d := r.Decision
	return &models.Recommendation{
		Strategy:   string(d.Strategy),
		Summary:    d.Summary,
		Reasons:    append([]string(nil), d.Reasons...),
		RiskFlags:  append([]string(nil), d.RiskFlags...),
		Confidence: d.Confidence,
		Score:      r.OpportunityScore,
		SupportingData: map[string]float64{
			"mv_sales_count":                 float64(r.MV.Support.SalesCount),
			"mv_median_sale_price":           r.MV.Support.MedianSalePrice,
			"mv_target_assessed_value":       r.MV.TargetAssessedValue,
			"uni_percentile_rank":            r.UNI.Support.PercentileRank,
			"uni_coefficient_of_dispersion":  r.UNI.Support.CoefficientOfDispersion,
			"uni_comparables_assessed_lower": float64(r.UNI.Support.ComparablesAssessedLower),
			"uni_target_assessed_value":      r.UNI.TargetAssessedValue,
			"target_assessed_value":          d.TargetAssessedValue,
			"estimated_savings":              d.EstimatedSavings,
		},
	}
}
