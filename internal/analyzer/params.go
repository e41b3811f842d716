// Package analyzer turns a subject property and a comparable pool into two
// appeal theories (market value and uniformity), a blended opportunity score,
// and a filing strategy. Every function in this package is pure: the same
// inputs always produce the same outputs, and nothing here performs I/O.
package analyzer

// Bands are the thresholds of the three-tier strength classifier. A case is
// strong only when every strong threshold is met, moderate when every
// moderate threshold is met, and weak otherwise.
type Bands struct {
	StrongConfidence   float64
	ModerateConfidence float64
	StrongGap          float64 // minimum reduction as a fraction of current assessed value
	ModerateGap        float64
	StrongSample       int
	ModerateSample     int
}

// Params holds every tunable constant of the analyzer.
type Params struct {
	MVBands  Bands
	UNIBands Bands

	// County assessment multiplier: market value = assessed value × multiplier.
	MarketMultiplier float64
	// Fraction of an assessed-value reduction that becomes annual tax savings.
	EffectiveTaxRate float64

	// Comparable auditing.
	RecencyFullMonths    float64
	RecencyWindowMonths  float64
	SizeTolerance        float64
	SizeDecayRate        float64 // exponential decay of the size factor past the tolerance
	AgeScaleYears        float64
	ClassMismatchFactor  float64
	ShrinkageRate        float64
	WeightRecency        float64
	WeightSize           float64
	WeightAge            float64
	WeightSale           float64
	StrongQualityScore   float64
	AdequateQualityScore float64
	PrimaryComparables   int

	// Market value case.
	FullWeightSales    int
	CVCeiling          float64
	MaxSaleCV          float64
	SizeDivergence     float64
	MinQualifyingSales int

	// Uniformity case.
	TargetPercentile float64
	PercentileSpan   float64 // percentile points above target for full position confidence
	FullPool         int
	CODCeiling       float64
	MaxCOD           float64
	MinPool          int

	// Strategy gates.
	MaxRiskFlags          int
	MinPrimaryComparables int
	DominanceMargin       float64
	RiskDiscount          float64
}

// DefaultParams returns the calibrated defaults.
func DefaultParams() Params {
	return Params{
		MVBands: Bands{
			StrongConfidence:   0.75,
			ModerateConfidence: 0.45,
			StrongGap:          0.10,
			ModerateGap:        0.03,
			StrongSample:       3,
			ModerateSample:     2,
		},
		UNIBands: Bands{
			StrongConfidence:   0.75,
			ModerateConfidence: 0.45,
			StrongGap:          0.10,
			ModerateGap:        0.03,
			StrongSample:       10,
			ModerateSample:     5,
		},

		MarketMultiplier: 10,
		EffectiveTaxRate: 0.20,

		RecencyFullMonths:    12,
		RecencyWindowMonths:  48,
		SizeTolerance:        0.10,
		SizeDecayRate:        5,
		AgeScaleYears:        15,
		ClassMismatchFactor:  0.4,
		ShrinkageRate:        0.5,
		WeightRecency:        0.30,
		WeightSize:           0.30,
		WeightAge:            0.15,
		WeightSale:           0.25,
		StrongQualityScore:   70,
		AdequateQualityScore: 45,
		PrimaryComparables:   5,

		FullWeightSales:    3,
		CVCeiling:          0.5,
		MaxSaleCV:          0.15,
		SizeDivergence:     0.25,
		MinQualifyingSales: 2,

		TargetPercentile: 50,
		PercentileSpan:   40,
		FullPool:         10,
		CODCeiling:       40,
		MaxCOD:           15,
		MinPool:          5,

		MaxRiskFlags:          2,
		MinPrimaryComparables: 3,
		DominanceMargin:       0.10,
		RiskDiscount:          0.05,
	}
}
