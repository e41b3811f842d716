// Package lifecycle is the appeal stage machine. Transitions are driven by
// externally reported events (filing confirmations, hearing dates, decisions);
// this package validates each event against the current stage and computes
// the derived fields. It never touches storage: callers persist the returned
// copy with a conditional write.
package lifecycle

import (
	"fmt"
	"math"
	"time"

	"github.com/stwalsh4118/taxappeal/internal/models"
)

// Params holds the monetary constants the lifecycle needs.
type Params struct {
	EffectiveTaxRate  float64
	SuccessFeePercent float64
	SuccessFeeMin     float64
	SuccessFeeMax     float64
}

// DefaultParams returns the standard fee schedule.
func DefaultParams() Params {
	return Params{
		EffectiveTaxRate:  0.20,
		SuccessFeePercent: 0.10,
		SuccessFeeMin:     25,
		SuccessFeeMax:     1000,
	}
}

// forward edges of the stage DAG; withdrawn and expired are added implicitly
var edges = map[models.Stage][]models.Stage{
	models.StageDraft:               {models.StageReadyToFile},
	models.StageReadyToFile:         {models.StageFiledCCAO},
	models.StageFiledCCAO:           {models.StageCCAODecided},
	models.StageCCAODecided:         {models.StageFiledBOR, models.StageCompleted},
	models.StageFiledBOR:            {models.StageBORHearingScheduled, models.StageBORDecided},
	models.StageBORHearingScheduled: {models.StageBORDecided},
	models.StageBORDecided:          {models.StageFiledPTAB, models.StageCompleted},
	models.StageFiledPTAB:           {models.StagePTABDecided},
	models.StagePTABDecided:         {models.StageCompleted},
}

// Decision is a review body's ruling as reported by the appellant.
type Decision struct {
	// NewAssessedValue is the value the body set; zero means no change.
	NewAssessedValue float64
	// Terminal marks the decision as accepted: the appeal stops at this body.
	Terminal         bool
}

// Event is one externally reported occurrence that moves an appeal.
type Event struct {
	OccurredAt         *time.Time
	HearingDate        *time.Time
	Decision           *Decision
	To                 models.Stage
	ConfirmationNumber string
	// AcceptDecision on a move to completed accepts the current body's
	// decision as terminal when it was not reported that way.
	AcceptDecision     bool
}

// Targets returns the stages reachable from s in one step.
func Targets(s models.Stage) []models.Stage {
	if s.Absorbing() || !s.Valid() {
		return nil
	}
	out := append([]models.Stage(nil), edges[s]...)
	return append(out, models.StageWithdrawn, models.StageExpired)
}

// CanTransition reports whether the DAG has an edge from → to.
func CanTransition(from, to models.Stage) bool {
	for _, t := range Targets(from) {
		if t == to {
			return true
		}
	}
	return false
}

// BodyOf returns the review body a stage belongs to, or "" for stages
// outside the three review tracks.
func BodyOf(s models.Stage) models.ReviewBody {
	switch s {
	case models.StageFiledCCAO, models.StageCCAODecided:
		return models.BodyCCAO
	case models.StageFiledBOR, models.StageBORHearingScheduled, models.StageBORDecided:
		return models.BodyBOR
	case models.StageFiledPTAB, models.StagePTABDecided:
		return models.BodyPTAB
	default:
		return ""
	}
}

// Apply validates ev against the appeal's current stage and returns an
// updated copy. The input appeal is never modified.
func Apply(a *models.Appeal, ev Event, now time.Time, p Params) (*models.Appeal, error) {
	if err := Validate(a, ev); err != nil {
		return nil, err
	}

	at := now
	if ev.OccurredAt != nil {
		at = *ev.OccurredAt
	}

	next := a.Clone()
	from := next.Stage

	switch ev.To {
	case models.StageFiledCCAO, models.StageFiledBOR, models.StageFiledPTAB:
		r := next.Review(BodyOf(ev.To))
		r.FiledAt = timePtr(at)
		r.ConfirmationNumber = ev.ConfirmationNumber

	case models.StageBORHearingScheduled:
		next.BOR.HearingDate = timePtr(*ev.HearingDate)

	case models.StageCCAODecided, models.StageBORDecided, models.StagePTABDecided:
		r := next.Review(BodyOf(ev.To))
		r.DecidedAt = timePtr(at)
		r.DecidedValue = floatPtr(ev.Decision.NewAssessedValue)
		r.Terminal = ev.Decision.Terminal || ev.To == models.StagePTABDecided
		if r.Terminal {
			finalize(next, BodyOf(ev.To), p)
		}

	case models.StageCompleted:
		r := next.Review(BodyOf(from))
		if !r.Terminal {
			r.Terminal = true
			finalize(next, BodyOf(from), p)
		}
	}

	if from == models.StageDraft && !ev.To.Absorbing() && next.SubmittedAt == nil {
		next.SubmittedAt = timePtr(at)
	}

	next.Stage = ev.To
	next.UpdatedAt = now
	return next, nil
}

// Validate checks ev against the appeal without applying it.
func Validate(a *models.Appeal, ev Event) error {
	const action = "transition"
	from := a.Stage

	if !ev.To.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownStage, ev.To)
	}
	if from.Absorbing() {
		return noLonger(action, from, ErrInvalidTransition, "appeal is %s", from)
	}
	if !CanTransition(from, ev.To) {
		if stageIndex(ev.To) > stageIndex(from) {
			return notYet(action, from, ErrInvalidTransition,
				"%s cannot be reached from %s; expected one of %v", ev.To, from, Targets(from))
		}
		return noLonger(action, from, ErrInvalidTransition, "%s is behind %s", ev.To, from)
	}

	switch ev.To {
	case models.StageFiledCCAO, models.StageFiledBOR, models.StageFiledPTAB:
		if ev.ConfirmationNumber == "" {
			return notYet(action, from, ErrMissingEventData, "filing %s requires a confirmation number", BodyOf(ev.To))
		}
		if prev := a.Review(BodyOf(from)); prev != nil && prev.Terminal {
			return noLonger(action, from, ErrInvalidTransition,
				"the %s decision was accepted as final", BodyOf(from))
		}

	case models.StageBORHearingScheduled:
		if ev.HearingDate == nil {
			return notYet(action, from, ErrMissingEventData, "a hearing date is required")
		}

	case models.StageCCAODecided, models.StageBORDecided, models.StagePTABDecided:
		if ev.Decision == nil {
			return notYet(action, from, ErrMissingEventData, "the %s decision is required", BodyOf(ev.To))
		}
		if ev.Decision.NewAssessedValue < 0 {
			return fmt.Errorf("%w: decided value must not be negative", ErrMissingEventData)
		}

	case models.StageCompleted:
		if r := a.Review(BodyOf(from)); r == nil || !r.Decided() {
			return notYet(action, from, ErrMissingEventData, "no decision has been recorded")
		} else if !r.Terminal && !ev.AcceptDecision {
			return notYet(action, from, ErrMissingEventData,
				"the %s decision has not been accepted as final", BodyOf(from))
		}

	case models.StageReadyToFile:
		if a.ProposedAssessedValue <= 0 || len(a.Grounds) == 0 {
			return notYet(action, from, ErrMissingEventData, "a proposed value and at least one ground are required")
		}
	}

	return nil
}

// CheckDelete permits hard deletion only before anything has been filed.
func CheckDelete(a *models.Appeal) error {
	if a.Stage == models.StageDraft || a.Stage == models.StageReadyToFile {
		return nil
	}
	return noLonger("delete", a.Stage, ErrDeleteNotAllowed, "withdraw the appeal instead")
}

// reviewOrder lists the bodies in the order an appeal reaches them.
var reviewOrder = []models.ReviewBody{models.BodyCCAO, models.BodyBOR, models.BodyPTAB}

// finalize records the accepted decision at body as the appeal's outcome.
// A "no change" ruling keeps the latest reduction granted by an earlier body.
func finalize(a *models.Appeal, body models.ReviewBody, p Params) {
	value, ok := standingValue(a, body)
	if !ok {
		a.Outcome = models.OutcomeDenied
		return
	}

	reduction := math.Max(0, a.CurrentAssessedValue-value)
	percent := 0.0
	if a.CurrentAssessedValue > 0 {
		percent = round2(100 * reduction / a.CurrentAssessedValue)
	}

	a.FinalAssessedValue = floatPtr(value)
	a.FinalReductionAmount = floatPtr(round2(reduction))
	a.FinalReductionPercent = floatPtr(percent)
	a.ActualTaxSavings = floatPtr(round2(reduction * p.EffectiveTaxRate))

	if reduction > 0 {
		a.Outcome = models.OutcomeWon
	} else {
		a.Outcome = models.OutcomeDenied
	}
}

// standingValue returns the assessed value in force after body's decision:
// body's own value, else the latest non-zero value decided before it.
func standingValue(a *models.Appeal, body models.ReviewBody) (float64, bool) {
	last := -1
	for i, b := range reviewOrder {
		if b == body {
			last = i
		}
	}
	for i := last; i >= 0; i-- {
		if r := a.Review(reviewOrder[i]); r.DecidedValue != nil && *r.DecidedValue > 0 {
			return *r.DecidedValue, true
		}
	}
	return 0, false
}

func stageIndex(s models.Stage) int {
	for i, known := range models.AllStages {
		if s == known {
			return i
		}
	}
	return -1
}

func timePtr(t time.Time) *time.Time { return &t }

func floatPtr(v float64) *float64 { return &v }

func round2(v float64) float64 { return math.Round(v*100) / 100 }
