package analyzer

import (
	"fmt"
	"math"
	"strings"

	"github.com/stwalsh4118/taxappeal/internal/models"
)

// Decide chooses a filing strategy. Gates are evaluated first and can veto
// filing altogether; otherwise the dominant case is filed alone, and two
// comparable cases of at least moderate strength are filed together at the
// more conservative of their targets.
//
// A case dominates when its strength tier is higher. Within the same tier it
// dominates only when its confidence exceeds the other's by more than
// p.DominanceMargin (0.10 by default); a closer race files both.
func Decide(subject models.Property, mv MVCase, uni UNICase, q ComparableQuality, p Params) StrategyDecision {
	flags := distinctFlags(mv.RiskFlags, uni.RiskFlags)
	discount := math.Max(0, 1-p.RiskDiscount*float64(len(flags)))

	d := StrategyDecision{
		RiskFlags:           flags,
		GatesTriggered:      []string{},
		TargetAssessedValue: subject.AssessedValue,
	}
	d.Reasons = []string{
		fmt.Sprintf("market value case is %s (confidence %.2f)", mv.Strength, mv.Confidence),
		fmt.Sprintf("uniformity case is %s (confidence %.2f)", uni.Strength, uni.Confidence),
	}

	if gates := triggeredGates(mv, uni, q, p); len(gates) > 0 {
		d.Strategy = StrategyDoNotFile
		d.GatesTriggered = gates
		d.Confidence = roundTo(math.Max(mv.Confidence, uni.Confidence)*discount, 4)
		d.NoAppeal = &NoAppealExplanation{
			Gates:     gates,
			Rationale: noAppealRationale(gates, mv, uni, q, p),
		}
		for _, g := range gates {
			d.Reasons = append(d.Reasons, gateReason(g, mv, uni, q, p))
		}
		d.Summary = d.NoAppeal.Rationale
		return d
	}

	switch dominant(mv, uni, p.DominanceMargin) {
	case CaseMV:
		d.Strategy = StrategyFileMV
		d.PrimaryCase = CaseMV
		d.TargetAssessedValue = mv.TargetAssessedValue
		d.Confidence = mv.Confidence
		d.Reasons = append(d.Reasons, "market value case is stronger and is filed alone")
		d.Reasons = append(d.Reasons, mv.Rationale...)
	case CaseUNI:
		d.Strategy = StrategyFileUNI
		d.PrimaryCase = CaseUNI
		d.TargetAssessedValue = uni.TargetAssessedValue
		d.Confidence = uni.Confidence
		d.Reasons = append(d.Reasons, "uniformity case is stronger and is filed alone")
		d.Reasons = append(d.Reasons, uni.Rationale...)
	default:
		d.Strategy = StrategyFileBoth
		d.PrimaryCase = CaseMV
		d.TargetAssessedValue = math.Max(mv.TargetAssessedValue, uni.TargetAssessedValue)
		if uni.TargetAssessedValue > mv.TargetAssessedValue {
			d.PrimaryCase = CaseUNI
		}
		wm, wu := mv.Strength.Points(), uni.Strength.Points()
		d.Confidence = (wm*mv.Confidence + wu*uni.Confidence) / (wm + wu)
		d.Reasons = append(d.Reasons,
			"both theories are independently supported and are filed together",
			fmt.Sprintf("target uses the more conservative value of $%.0f", d.TargetAssessedValue))
		d.Reasons = append(d.Reasons, mv.Rationale...)
		d.Reasons = append(d.Reasons, uni.Rationale...)
	}

	if len(flags) > 0 {
		d.Reasons = append(d.Reasons, "risk flags surfaced for transparency: "+strings.Join(flags, "; "))
	}

	d.Confidence = roundTo(d.Confidence*discount, 4)
	d.PotentialReduction = roundTo(floorZero(subject.AssessedValue-d.TargetAssessedValue), 2)
	d.EstimatedSavings = roundTo(d.PotentialReduction*p.EffectiveTaxRate, 2)
	d.Summary = fileSummary(subject, d)
	return d
}

// Grounds maps a strategy onto the appeal theory tags it argues.
func Grounds(s Strategy) []models.AppealGround {
	switch s {
	case StrategyFileMV:
		return []models.AppealGround{models.GroundMarketValue}
	case StrategyFileUNI:
		return []models.AppealGround{models.GroundUniformity}
	case StrategyFileBoth:
		return []models.AppealGround{models.GroundMarketValue, models.GroundUniformity}
	default:
		return nil
	}
}

func triggeredGates(mv MVCase, uni UNICase, q ComparableQuality, p Params) []string {
	var gates []string
	if mv.Strength == StrengthWeak && uni.Strength == StrengthWeak {
		gates = append(gates, GateBothCasesWeak)
	}
	if len(mv.RiskFlags) > p.MaxRiskFlags || len(uni.RiskFlags) > p.MaxRiskFlags {
		gates = append(gates, GateExcessiveRiskFlags)
	}
	if q.Assessment == AssessmentWeak && len(q.Primary()) < p.MinPrimaryComparables {
		gates = append(gates, GateInsufficientComparables)
	}
	return gates
}

// dominant returns the strictly stronger case, or "" when neither dominates.
// Equal tiers dominate only when confidence leads by more than margin.
func dominant(mv MVCase, uni UNICase, margin float64) CaseKind {
	switch {
	case mv.Strength.Rank() > uni.Strength.Rank():
		return CaseMV
	case uni.Strength.Rank() > mv.Strength.Rank():
		return CaseUNI
	case mv.Confidence-uni.Confidence > margin:
		return CaseMV
	case uni.Confidence-mv.Confidence > margin:
		return CaseUNI
	default:
		return ""
	}
}

func gateReason(gate string, mv MVCase, uni UNICase, q ComparableQuality, p Params) string {
	switch gate {
	case GateBothCasesWeak:
		return "neither the market value nor the uniformity theory is strong enough to file"
	case GateExcessiveRiskFlags:
		return fmt.Sprintf("a case carries more than %d risk flags (market value %d, uniformity %d)",
			p.MaxRiskFlags, len(mv.RiskFlags), len(uni.RiskFlags))
	case GateInsufficientComparables:
		return fmt.Sprintf("insufficient comparables: only %d usable comparable(s) and pool quality is %s",
			len(q.Primary()), q.Assessment)
	default:
		return gate
	}
}

func noAppealRationale(gates []string, mv MVCase, uni UNICase, q ComparableQuality, p Params) string {
	parts := make([]string, 0, len(gates))
	for _, g := range gates {
		parts = append(parts, gateReason(g, mv, uni, q, p))
	}
	return "We do not recommend filing an appeal this year: " + strings.Join(parts, "; ") +
		". Filing a weak appeal rarely succeeds and can make a later, better-supported appeal harder."
}

func fileSummary(subject models.Property, d StrategyDecision) string {
	var theory string
	switch d.Strategy {
	case StrategyFileMV:
		theory = "a market value appeal based on recent comparable sales"
	case StrategyFileUNI:
		theory = "a uniformity appeal based on how similar properties are assessed"
	default:
		theory = "a combined market value and uniformity appeal"
	}
	return fmt.Sprintf("We recommend %s for parcel %s, requesting an assessed value of $%.0f "+
		"(down from $%.0f), worth an estimated $%.0f per year in tax savings at %.0f%% confidence.",
		theory, subject.ParcelID.Formatted(), d.TargetAssessedValue, subject.AssessedValue,
		d.EstimatedSavings, d.Confidence*100)
}
