package models

import (
	"time"

	"github.com/google/uuid"
)

// Stage is the lifecycle position of an appeal.
type Stage string

// Appeal stages, in typical forward order, followed by the absorbing side-states.
const (
	StageDraft               Stage = "draft"
	StageReadyToFile         Stage = "ready_to_file"
	StageFiledCCAO           Stage = "filed_ccao"
	StageCCAODecided         Stage = "ccao_decided"
	StageFiledBOR            Stage = "filed_bor"
	StageBORHearingScheduled Stage = "bor_hearing_scheduled"
	StageBORDecided          Stage = "bor_decided"
	StageFiledPTAB           Stage = "filed_ptab"
	StagePTABDecided         Stage = "ptab_decided"
	StageCompleted           Stage = "completed"
	StageWithdrawn           Stage = "withdrawn"
	StageExpired             Stage = "expired"
)

// AllStages lists every stage in forward order.
var AllStages = []Stage{
	StageDraft,
	StageReadyToFile,
	StageFiledCCAO,
	StageCCAODecided,
	StageFiledBOR,
	StageBORHearingScheduled,
	StageBORDecided,
	StageFiledPTAB,
	StagePTABDecided,
	StageCompleted,
	StageWithdrawn,
	StageExpired,
}

// Valid reports whether s is a known stage.
func (s Stage) Valid() bool {
	for _, known := range AllStages {
		if s == known {
			return true
		}
	}
	return false
}

// Absorbing reports whether no transition may leave s.
func (s Stage) Absorbing() bool {
	return s == StageCompleted || s == StageWithdrawn || s == StageExpired
}

// ReviewBody identifies one of the three appeal venues.
type ReviewBody string

const (
	BodyCCAO ReviewBody = "ccao" // county assessor review
	BodyBOR  ReviewBody = "bor"  // board of review
	BodyPTAB ReviewBody = "ptab" // state property tax appeal board
)

// AppealGround is a theory tag an appeal is argued on.
type AppealGround string

const (
	GroundMarketValue AppealGround = "market_value"
	GroundUniformity  AppealGround = "uniformity"
)

// Outcome is the overall result of an appeal once a decision is accepted.
type Outcome string

const (
	OutcomePending Outcome = "pending"
	OutcomeWon     Outcome = "won"
	OutcomeDenied  Outcome = "denied"
)

// PaymentStatus tracks the up-front letter payment.
type PaymentStatus string

const (
	PaymentUnpaid          PaymentStatus = "unpaid"
	PaymentPaid            PaymentStatus = "paid"
	PaymentLetterGenerated PaymentStatus = "letter_generated"
)

// FeeStatus tracks success-fee billing.
type FeeStatus string

const (
	FeeNone   FeeStatus = "none"
	FeeBilled FeeStatus = "billed"
	FeePaid   FeeStatus = "paid"
)

// ReviewRecord holds filing and decision facts for one review body.
// Terminal marks a decision the appellant accepted as final; once set, the
// appeal does not proceed to the next body.
type ReviewRecord struct {
	FiledAt            *time.Time `json:"filedAt,omitempty"`
	HearingDate        *time.Time `json:"hearingDate,omitempty"`
	DecidedAt          *time.Time `json:"decidedAt,omitempty"`
	DecidedValue       *float64   `json:"decidedValue,omitempty"`
	ConfirmationNumber string     `json:"confirmationNumber,omitempty"`
	Terminal           bool       `json:"terminal"`
}

// Decided reports whether a decision has been recorded.
func (r ReviewRecord) Decided() bool {
	return r.DecidedAt != nil
}

// Recommendation is the analyzer output an appeal was seeded from. It carries
// everything the external letter generator needs.
type Recommendation struct {
	SupportingData map[string]float64 `json:"supportingData"`
	Strategy       string             `json:"strategy"`
	Summary        string             `json:"summary"`
	Reasons        []string           `json:"reasons"`
	RiskFlags      []string           `json:"riskFlags"`
	Confidence     float64            `json:"confidence"`
	Score          int                `json:"score"`
}

// Appeal is one property-tax appeal for one parcel and assessment year.
type Appeal struct {
	CreatedAt             time.Time       `json:"createdAt"`
	UpdatedAt             time.Time       `json:"updatedAt"`
	SubmittedAt           *time.Time      `json:"submittedAt,omitempty"`
	ActualTaxSavings      *float64        `json:"actualTaxSavings,omitempty"`
	FinalAssessedValue    *float64        `json:"finalAssessedValue,omitempty"`
	FinalReductionAmount  *float64        `json:"finalReductionAmount,omitempty"`
	FinalReductionPercent *float64        `json:"finalReductionPercent,omitempty"`
	SuccessFeeAmount      *float64        `json:"successFeeAmount,omitempty"`
	LetterText            *string         `json:"letterText,omitempty"`
	LetterGeneratedAt     *time.Time      `json:"letterGeneratedAt,omitempty"`
	Recommendation        *Recommendation `json:"recommendation,omitempty"`
	UserID                string          `json:"userId"`
	ParcelID              ParcelID        `json:"parcelId"`
	Stage                 Stage           `json:"stage"`
	Outcome               Outcome         `json:"outcome"`
	PaymentStatus         PaymentStatus   `json:"paymentStatus"`
	SuccessFeeStatus      FeeStatus       `json:"successFeeStatus"`
	Grounds               []AppealGround  `json:"grounds"`
	CCAO                  ReviewRecord    `json:"ccao"`
	BOR                   ReviewRecord    `json:"bor"`
	PTAB                  ReviewRecord    `json:"ptab"`
	CurrentAssessedValue  float64         `json:"currentAssessedValue"`
	CurrentMarketValue    float64         `json:"currentMarketValue"`
	ProposedAssessedValue float64         `json:"proposedAssessedValue"`
	ProposedMarketValue   float64         `json:"proposedMarketValue"`
	EstimatedTaxSavings   float64         `json:"estimatedTaxSavings"`
	AssessmentYear        int             `json:"assessmentYear"`
	Version               int             `json:"version"`
	ID                    uuid.UUID       `json:"id"`
}

// Review returns a pointer to the record for the given body.
func (a *Appeal) Review(body ReviewBody) *ReviewRecord {
	switch body {
	case BodyCCAO:
		return &a.CCAO
	case BodyBOR:
		return &a.BOR
	case BodyPTAB:
		return &a.PTAB
	default:
		return nil
	}
}

// HasLetter reports whether a letter has already been stored.
func (a *Appeal) HasLetter() bool {
	return a.LetterText != nil && a.LetterGeneratedAt != nil
}

// Clone returns a deep copy so guarded mutations can be computed off to the
// side and discarded when a conditional write loses.
func (a *Appeal) Clone() *Appeal {
	c := *a
	c.Grounds = append([]AppealGround(nil), a.Grounds...)
	if a.Recommendation != nil {
		rec := *a.Recommendation
		rec.Reasons = append([]string(nil), a.Recommendation.Reasons...)
		rec.RiskFlags = append([]string(nil), a.Recommendation.RiskFlags...)
		if a.Recommendation.SupportingData != nil {
			rec.SupportingData = make(map[string]float64, len(a.Recommendation.SupportingData))
			for k, v := range a.Recommendation.SupportingData {
				rec.SupportingData[k] = v
			}
		}
		c.Recommendation = &rec
	}
	return &c
}
