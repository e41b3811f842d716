package analyzer

import (
	"github.com/stwalsh4118/taxappeal/internal/models"
)

// Strength is the categorical strength of an appeal theory.
type Strength string

const (
	StrengthWeak     Strength = "weak"
	StrengthModerate Strength = "moderate"
	StrengthStrong   Strength = "strong"
)

// Rank orders strengths: weak < moderate < strong.
func (s Strength) Rank() int {
	switch s {
	case StrengthStrong:
		return 2
	case StrengthModerate:
		return 1
	default:
		return 0
	}
}

// Points is the opportunity-score base contribution of a strength tier.
func (s Strength) Points() float64 {
	switch s {
	case StrengthStrong:
		return 40
	case StrengthModerate:
		return 25
	default:
		return 10
	}
}

// Assessment is the categorical verdict on a comparable pool.
type Assessment string

const (
	AssessmentStrong   Assessment = "strong"
	AssessmentAdequate Assessment = "adequate"
	AssessmentWeak     Assessment = "weak"
)

// Strategy is the filing recommendation.
type Strategy string

const (
	StrategyFileMV    Strategy = "file_mv"
	StrategyFileUNI   Strategy = "file_uni"
	StrategyFileBoth  Strategy = "file_both"
	StrategyDoNotFile Strategy = "do_not_file"
)

// CaseKind names an appeal theory.
type CaseKind string

const (
	CaseMV  CaseKind = "mv"
	CaseUNI CaseKind = "uni"
)

// Risk flag names. They are user-facing and stable.
const (
	FlagInsufficientSales = "insufficient sales"
	FlagHighSaleVariance  = "high sale-price variance"
	FlagClassDiverges     = "subject class differs from comparable pool"
	FlagSizeDiverges      = "subject size diverges from comparable pool"
	FlagSmallPool         = "small comparable pool"
	FlagHighDispersion    = "high dispersion undermines uniformity claim"
	FlagNotOverAssessed   = "subject not over-assessed relative to peers"
)

// Gate names recorded in StrategyDecision.GatesTriggered.
const (
	GateBothCasesWeak           = "both_cases_weak"
	GateExcessiveRiskFlags      = "excessive_risk_flags"
	GateInsufficientComparables = "insufficient_comparables"
)

// FactorScores is the per-factor breakdown of a comparable's quality, each on a 0-100 scale.
type FactorScores struct {
	Recency    float64 `json:"recency"`
	Size       float64 `json:"size"`
	Age        float64 `json:"age"`
	Sale       float64 `json:"sale"`
	ClassMatch float64 `json:"classMatch"`
}

// ComparableAudit is the quality verdict on one comparable.
type ComparableAudit struct {
	Comparable    models.Comparable `json:"comparable"`
	Reasons       []string          `json:"reasons"`
	Factors       FactorScores      `json:"factors"`
	QualityScore  float64           `json:"qualityScore"`
	AdjustedValue float64           `json:"adjustedValue"`
}

// ComparableQuality is the aggregate audit of a comparable pool.
type ComparableQuality struct {
	Assessment Assessment        `json:"assessment"`
	Audits     []ComparableAudit `json:"audits"`
	Factors    FactorScores      `json:"factors"`
	Score      float64           `json:"score"`
	// PrimaryCount is how many audits the case builders consume.
	PrimaryCount int `json:"primaryCount"`
}

// Primary returns the top audits the case builders work from.
func (q ComparableQuality) Primary() []ComparableAudit {
	n := q.PrimaryCount
	if n > len(q.Audits) {
		n = len(q.Audits)
	}
	return q.Audits[:n]
}

// MVSupport is the statistical backing of a market value case.
type MVSupport struct {
	SalesCount      int     `json:"salesCount"`
	MedianSalePrice float64 `json:"medianSalePrice"`
	SalePriceCV     float64 `json:"salePriceCv"`
}

// MVCase is the sales-comparison appeal theory.
type MVCase struct {
	Strength            Strength  `json:"strength"`
	Methodology         string    `json:"methodology"`
	Rationale           []string  `json:"rationale"`
	RiskFlags           []string  `json:"riskFlags"`
	Support             MVSupport `json:"supportingData"`
	TargetAssessedValue float64   `json:"targetAssessedValue"`
	PotentialReduction  float64   `json:"potentialReduction"`
	Confidence          float64   `json:"confidence"`
}

// UNISupport is the statistical backing of a uniformity case.
type UNISupport struct {
	PercentileRank           float64 `json:"percentileRank"`
	CoefficientOfDispersion  float64 `json:"coefficientOfDispersion"`
	ValueAtTargetPercentile  float64 `json:"valueAtTargetPercentile"`
	ComparablesAssessedLower int     `json:"comparablesAssessedLower"`
	PoolSize                 int     `json:"poolSize"`
	PerSquareFoot            bool    `json:"perSquareFoot"`
}

// UNICase is the assessment-equity appeal theory.
type UNICase struct {
	Strength            Strength   `json:"strength"`
	Methodology         string     `json:"methodology"`
	Rationale           []string   `json:"rationale"`
	RiskFlags           []string   `json:"riskFlags"`
	Support             UNISupport `json:"supportingData"`
	TargetAssessedValue float64    `json:"targetAssessedValue"`
	PotentialReduction  float64    `json:"potentialReduction"`
	Confidence          float64    `json:"confidence"`
}

// NoAppealExplanation explains why filing is not recommended.
type NoAppealExplanation struct {
	Rationale string   `json:"rationale"`
	Gates     []string `json:"gates"`
}

// StrategyDecision is the filing recommendation for one analysis.
type StrategyDecision struct {
	NoAppeal            *NoAppealExplanation `json:"noAppealExplanation,omitempty"`
	Strategy            Strategy             `json:"strategy"`
	PrimaryCase         CaseKind             `json:"primaryCase,omitempty"`
	Summary             string               `json:"summary"`
	Reasons             []string             `json:"reasons"`
	RiskFlags           []string             `json:"riskFlags"`
	GatesTriggered      []string             `json:"gatesTriggered"`
	TargetAssessedValue float64              `json:"targetAssessedValue"`
	PotentialReduction  float64              `json:"potentialReduction"`
	EstimatedSavings    float64              `json:"estimatedSavings"`
	Confidence          float64              `json:"confidence"`
}

// Files reports whether the decision recommends filing anything.
func (d StrategyDecision) Files() bool {
	return d.Strategy != StrategyDoNotFile
}
