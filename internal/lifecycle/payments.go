package lifecycle

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/stwalsh4118/taxappeal/internal/models"
)

// PaymentKind distinguishes the two things an appellant pays for.
type PaymentKind string

const (
	PaymentLetter     PaymentKind = "letter"
	PaymentSuccessFee PaymentKind = "success_fee"
)

// Eligibility answers the payment boundary's single query.
type Eligibility struct {
	LetterGeneration  bool     `json:"letterGeneration"`
	SuccessFeeBilling bool     `json:"successFeeBilling"`
	Reasons           []string `json:"reasons"`
}

// CheckEligibility reports which payable actions the appeal currently allows.
func CheckEligibility(a *models.Appeal) Eligibility {
	e := Eligibility{Reasons: []string{}}

	if err := CheckLetter(a); err == nil {
		e.LetterGeneration = true
	} else {
		e.Reasons = append(e.Reasons, err.Error())
	}

	if err := checkFee(a); err == nil {
		e.SuccessFeeBilling = true
	} else {
		e.Reasons = append(e.Reasons, err.Error())
	}

	return e
}

// RecordLetter stores externally generated letter text. A letter is stored at
// most once: when one already exists the appeal is returned unchanged and
// created is false.
func RecordLetter(a *models.Appeal, text string, now time.Time) (next *models.Appeal, created bool, err error) {
	if a.HasLetter() {
		return a, false, nil
	}
	if err := CheckLetter(a); err != nil {
		return nil, false, err
	}
	if strings.TrimSpace(text) == "" {
		return nil, false, ErrEmptyLetter
	}

	next = a.Clone()
	next.LetterText = &text
	next.LetterGeneratedAt = timePtr(now)
	next.PaymentStatus = models.PaymentLetterGenerated
	next.UpdatedAt = now
	return next, true, nil
}

// ComputeSuccessFee bills the success fee: a fixed percentage of actual
// savings clamped to the configured band. Repeating the computation while the
// fee is billed but unpaid returns the same amount.
func ComputeSuccessFee(a *models.Appeal, p Params, now time.Time) (*models.Appeal, float64, error) {
	if a.SuccessFeeStatus == models.FeeBilled && a.SuccessFeeAmount != nil {
		return a, *a.SuccessFeeAmount, nil
	}
	if err := checkFee(a); err != nil {
		return nil, 0, err
	}

	fee := SuccessFee(*a.ActualTaxSavings, p)
	next := a.Clone()
	next.SuccessFeeAmount = floatPtr(fee)
	next.SuccessFeeStatus = models.FeeBilled
	next.UpdatedAt = now
	return next, fee, nil
}

// SuccessFee is percent × savings clamped to [min, max], rounded to cents.
func SuccessFee(savings float64, p Params) float64 {
	fee := savings * p.SuccessFeePercent
	return round2(math.Max(p.SuccessFeeMin, math.Min(p.SuccessFeeMax, fee)))
}

// RecordPayment is the payment boundary's single command. Recording a letter
// payment twice is harmless; recording a success-fee payment twice is not.
func RecordPayment(a *models.Appeal, kind PaymentKind, now time.Time) (*models.Appeal, error) {
	const action = "record payment"
	next := a.Clone()

	switch kind {
	case PaymentLetter:
		if a.PaymentStatus != models.PaymentUnpaid && a.PaymentStatus != "" {
			return a, nil
		}
		next.PaymentStatus = models.PaymentPaid

	case PaymentSuccessFee:
		switch a.SuccessFeeStatus {
		case models.FeePaid:
			return nil, noLonger(action, a.Stage, ErrFeeAlreadyPaid, "the success fee was already paid")
		case models.FeeBilled:
			next.SuccessFeeStatus = models.FeePaid
		default:
			return nil, notYet(action, a.Stage, ErrFeeNotEarned, "no success fee has been billed")
		}

	default:
		return nil, fmt.Errorf("%w: unknown payment kind %q", ErrMissingEventData, kind)
	}

	next.UpdatedAt = now
	return next, nil
}

// CheckLetter reports whether a letter may be generated for the appeal now.
func CheckLetter(a *models.Appeal) error {
	const action = "letter generation"
	if a.Stage == models.StageWithdrawn || a.Stage == models.StageExpired {
		return noLonger(action, a.Stage, ErrInvalidTransition, "appeal is %s", a.Stage)
	}
	if a.PaymentStatus != models.PaymentPaid && a.PaymentStatus != models.PaymentLetterGenerated {
		return notYet(action, a.Stage, ErrPaymentRequired, "letter payment has not been received")
	}
	return nil
}

func checkFee(a *models.Appeal) error {
	const action = "success fee"
	if a.SuccessFeeStatus == models.FeePaid {
		return noLonger(action, a.Stage, ErrFeeAlreadyPaid, "the success fee was already paid")
	}
	if a.Outcome != models.OutcomeWon || a.ActualTaxSavings == nil || *a.ActualTaxSavings <= 0 {
		return notYet(action, a.Stage, ErrFeeNotEarned, "the appeal has not been won with positive savings")
	}
	return nil
}
