package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/stwalsh4118/taxappeal/internal/analyzer"
	"github.com/stwalsh4118/taxappeal/internal/lifecycle"
	"github.com/stwalsh4118/taxappeal/internal/logger"
	"github.com/stwalsh4118/taxappeal/internal/metrics"
	"github.com/stwalsh4118/taxappeal/internal/models"
	"github.com/stwalsh4118/taxappeal/internal/repository"
)

// maxWriteAttempts bounds the reload-and-retry loop around conditional writes.
const maxWriteAttempts = 3

// Appeal errors
var (
	ErrAppealNotFound        = errors.New("appeal not found")
	ErrAppealExists          = errors.New("an active appeal already exists for this parcel and year")
	ErrNoAppealRecommended   = errors.New("analysis does not recommend filing an appeal")
	ErrMissingUser           = errors.New("user id is required")
	ErrStageConflict         = errors.New("appeal was modified concurrently, retry the request")
	ErrMissingRecommendation = errors.New("appeal has no recommendation snapshot")
)

// LetterFacts is everything the external letter generator needs for one
// appeal. Body is the review body the letter will be filed with.
type LetterFacts struct {
	SupportingData        map[string]float64    `json:"supportingData"`
	AppealID              uuid.UUID             `json:"appealId"`
	ParcelID              string                `json:"parcelId"`
	Address               string                `json:"address"`
	Body                  models.ReviewBody     `json:"body"`
	Strategy              string                `json:"strategy"`
	Summary               string                `json:"summary"`
	Grounds               []models.AppealGround `json:"grounds"`
	Reasons               []string              `json:"reasons"`
	CurrentAssessedValue  float64               `json:"currentAssessedValue"`
	ProposedAssessedValue float64               `json:"proposedAssessedValue"`
	EstimatedTaxSavings   float64               `json:"estimatedTaxSavings"`
	AssessmentYear        int                   `json:"assessmentYear"`
}

// AppealService defines the appeal lifecycle operations. Every operation is
// scoped to the owning user; appeals owned by someone else are reported as
// not found.
type AppealService interface {
	// Create analyzes the parcel and seeds a draft appeal from the
	// recommendation. Returns ErrNoAppealRecommended for do_not_file and
	// ErrAppealExists when the user already has an active appeal for the
	// parcel and year. Analysis errors are passed through.
	Create(ctx context.Context, userID, rawParcelID string) (*models.Appeal, error)

	Get(ctx context.Context, userID string, id uuid.UUID) (*models.Appeal, error)
	List(ctx context.Context, userID string) ([]models.Appeal, error)
	History(ctx context.Context, userID string, id uuid.UUID) ([]repository.StageEvent, error)

	// Transition applies an externally reported event. Guard violations are
	// returned as *lifecycle.GuardError.
	Transition(ctx context.Context, userID string, id uuid.UUID, ev lifecycle.Event) (*models.Appeal, error)

	// Delete hard-deletes an appeal that has not been filed yet.
	Delete(ctx context.Context, userID string, id uuid.UUID) error

	Eligibility(ctx context.Context, userID string, id uuid.UUID) (lifecycle.Eligibility, error)
	RecordPayment(ctx context.Context, userID string, id uuid.UUID, kind lifecycle.PaymentKind) (*models.Appeal, error)

	// LetterFacts returns the generator input once the letter is paid for.
	LetterFacts(ctx context.Context, userID string, id uuid.UUID) (*LetterFacts, error)

	// StoreLetter records generated letter text. A second call returns the
	// stored letter unchanged and created=false.
	StoreLetter(ctx context.Context, userID string, id uuid.UUID, text string) (a *models.Appeal, created bool, err error)

	// ComputeSuccessFee bills the success fee, returning the billed amount.
	ComputeSuccessFee(ctx context.Context, userID string, id uuid.UUID) (*models.Appeal, float64, error)
}

// AppealServiceConfig carries the monetary constants appeals are built with.
type AppealServiceConfig struct {
	Lifecycle        lifecycle.Params
	MarketMultiplier float64
}

type appealService struct {
	repo       repository.AppealRepository
	properties repository.PropertyRepository
	analysis   AnalysisService
	cfg        AppealServiceConfig
	metrics    *metrics.AppealMetrics
	log        *logger.Logger
	now        func() time.Time
}

// NewAppealService creates a new instance of AppealService.
func NewAppealService(
	repo repository.AppealRepository,
	properties repository.PropertyRepository,
	analysis AnalysisService,
	cfg AppealServiceConfig,
	m *metrics.AppealMetrics,
	log *logger.Logger,
) AppealService {
	return &appealService{
		repo:       repo,
		properties: properties,
		analysis:   analysis,
		cfg:        cfg,
		metrics:    m,
		log:        log.WithComponent("appeals"),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (s *appealService) Create(ctx context.Context, userID, rawParcelID string) (*models.Appeal, error) {
	userID, err := requireUser(userID)
	if err != nil {
		return nil, err
	}

	snap, err := s.analysis.Analyze(ctx, rawParcelID)
	if err != nil {
		return nil, err
	}
	if !snap.Decision.Files() {
		return nil, fmt.Errorf("%w: %s", ErrNoAppealRecommended, snap.Decision.Summary)
	}

	existing, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		s.log.Error("Failed to list appeals", err, map[string]interface{}{"user_id": userID})
		return nil, fmt.Errorf("failed to list appeals: %w", err)
	}
	for _, e := range existing {
		if e.ParcelID == snap.Property.ParcelID && e.AssessmentYear == snap.Property.AssessmentYear && !e.Stage.Absorbing() {
			return nil, fmt.Errorf("%w: %s", ErrAppealExists, e.ID)
		}
	}

	a := newAppeal(userID, snap, s.cfg.MarketMultiplier, s.now())
	if err := s.repo.Create(ctx, a); err != nil {
		// Lost a race with a concurrent create for the same parcel.
		if errors.Is(err, repository.ErrAppealExists) {
			return nil, fmt.Errorf("%w: %s", ErrAppealExists, a.ParcelID.Formatted())
		}
		s.log.Error("Failed to create appeal", err, map[string]interface{}{
			"user_id":   userID,
			"parcel_id": a.ParcelID,
		})
		return nil, fmt.Errorf("failed to create appeal: %w", err)
	}

	s.metrics.RecordCreated()
	s.log.Info("Appeal created", map[string]interface{}{
		"appeal_id": a.ID,
		"parcel_id": a.ParcelID,
		"strategy":  snap.Decision.Strategy,
	})
	return a, nil
}

func newAppeal(userID string, snap *AnalysisSnapshot, multiplier float64, now time.Time) *models.Appeal {
	d := snap.Decision
	return &models.Appeal{
		ID:                    uuid.New(),
		UserID:                userID,
		ParcelID:              snap.Property.ParcelID,
		AssessmentYear:        snap.Property.AssessmentYear,
		CurrentAssessedValue:  snap.Property.AssessedValue,
		CurrentMarketValue:    snap.Property.MarketValue,
		ProposedAssessedValue: d.TargetAssessedValue,
		ProposedMarketValue:   d.TargetAssessedValue * multiplier,
		EstimatedTaxSavings:   d.EstimatedSavings,
		Grounds:               analyzer.Grounds(d.Strategy),
		Stage:                 models.StageDraft,
		Outcome:               models.OutcomePending,
		PaymentStatus:         models.PaymentUnpaid,
		SuccessFeeStatus:      models.FeeNone,
		Recommendation:        snap.Recommendation(),
		Version:               1,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
}

func (s *appealService) Get(ctx context.Context, userID string, id uuid.UUID) (*models.Appeal, error) {
	return s.load(ctx, userID, id)
}

func (s *appealService) List(ctx context.Context, userID string) ([]models.Appeal, error) {
	userID, err := requireUser(userID)
	if err != nil {
		return nil, err
	}
	appeals, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		s.log.Error("Failed to list appeals", err, map[string]interface{}{"user_id": userID})
		return nil, fmt.Errorf("failed to list appeals: %w", err)
	}
	return appeals, nil
}

func (s *appealService) History(ctx context.Context, userID string, id uuid.UUID) ([]repository.StageEvent, error) {
	if _, err := s.load(ctx, userID, id); err != nil {
		return nil, err
	}
	events, err := s.repo.History(ctx, id)
	if err != nil {
		s.log.Error("Failed to read appeal history", err, map[string]interface{}{"appeal_id": id})
		return nil, fmt.Errorf("failed to read appeal history: %w", err)
	}
	return events, nil
}

func (s *appealService) Transition(ctx context.Context, userID string, id uuid.UUID, ev lifecycle.Event) (*models.Appeal, error) {
	a, from, err := s.mutate(ctx, userID, id, "transition", func(current *models.Appeal) (*models.Appeal, error) {
		return lifecycle.Apply(current, ev, s.now(), s.cfg.Lifecycle)
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordTransition(string(from), string(a.Stage))
	s.log.Info("Appeal transitioned", map[string]interface{}{
		"appeal_id": id,
		"from":      from,
		"to":        a.Stage,
		"version":   a.Version,
	})
	return a, nil
}

func (s *appealService) Delete(ctx context.Context, userID string, id uuid.UUID) error {
	for attempt := 1; ; attempt++ {
		current, err := s.load(ctx, userID, id)
		if err != nil {
			return err
		}
		if err := lifecycle.CheckDelete(current); err != nil {
			s.recordGuard("delete", err)
			return err
		}

		err = s.repo.DeleteIfVersion(ctx, id, current.Version, current.Stage)
		if err == nil {
			s.log.Info("Appeal deleted", map[string]interface{}{"appeal_id": id})
			return nil
		}
		if !errors.Is(err, repository.ErrStageConflict) {
			s.log.Error("Failed to delete appeal", err, map[string]interface{}{"appeal_id": id})
			return fmt.Errorf("failed to delete appeal: %w", err)
		}
		if s.conflict(id, attempt) {
			return ErrStageConflict
		}
	}
}

func (s *appealService) Eligibility(ctx context.Context, userID string, id uuid.UUID) (lifecycle.Eligibility, error) {
	a, err := s.load(ctx, userID, id)
	if err != nil {
		return lifecycle.Eligibility{}, err
	}
	return lifecycle.CheckEligibility(a), nil
}

func (s *appealService) RecordPayment(ctx context.Context, userID string, id uuid.UUID, kind lifecycle.PaymentKind) (*models.Appeal, error) {
	var changed bool
	a, _, err := s.mutate(ctx, userID, id, "payment", func(current *models.Appeal) (*models.Appeal, error) {
		next, err := lifecycle.RecordPayment(current, kind, s.now())
		changed = err == nil && next != current
		return next, err
	})
	if err != nil {
		return nil, err
	}

	if changed {
		s.metrics.RecordPayment(string(kind))
		s.log.Info("Payment recorded", map[string]interface{}{
			"appeal_id": id,
			"kind":      kind,
		})
	}
	return a, nil
}

func (s *appealService) LetterFacts(ctx context.Context, userID string, id uuid.UUID) (*LetterFacts, error) {
	a, err := s.load(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if err := lifecycle.CheckLetter(a); err != nil {
		s.recordGuard("letter", err)
		return nil, err
	}
	if a.Recommendation == nil {
		return nil, ErrMissingRecommendation
	}

	facts := &LetterFacts{
		AppealID:              a.ID,
		ParcelID:              a.ParcelID.Formatted(),
		Body:                  filingBody(a.Stage),
		Strategy:              a.Recommendation.Strategy,
		Summary:               a.Recommendation.Summary,
		Grounds:               a.Grounds,
		Reasons:               a.Recommendation.Reasons,
		SupportingData:        a.Recommendation.SupportingData,
		CurrentAssessedValue:  a.CurrentAssessedValue,
		ProposedAssessedValue: a.ProposedAssessedValue,
		EstimatedTaxSavings:   a.EstimatedTaxSavings,
		AssessmentYear:        a.AssessmentYear,
	}

	// The address is cosmetic; the letter is still produced without it.
	p, err := s.properties.FindByParcelID(ctx, a.ParcelID)
	switch {
	case err != nil:
		s.log.Warn("Property lookup failed for letter facts", map[string]interface{}{
			"appeal_id": id,
			"error":     err.Error(),
		})
	case p != nil:
		facts.Address = p.Address
	}

	return facts, nil
}

func (s *appealService) StoreLetter(ctx context.Context, userID string, id uuid.UUID, text string) (*models.Appeal, bool, error) {
	var created bool
	a, _, err := s.mutate(ctx, userID, id, "letter", func(current *models.Appeal) (*models.Appeal, error) {
		next, ok, err := lifecycle.RecordLetter(current, text, s.now())
		created = ok
		return next, err
	})
	if err != nil {
		return nil, false, err
	}

	if created {
		s.log.Info("Appeal letter stored", map[string]interface{}{"appeal_id": id})
	}
	return a, created, nil
}

func (s *appealService) ComputeSuccessFee(ctx context.Context, userID string, id uuid.UUID) (*models.Appeal, float64, error) {
	var (
		fee    float64
		billed bool
	)
	a, _, err := s.mutate(ctx, userID, id, "success fee", func(current *models.Appeal) (*models.Appeal, error) {
		next, amount, err := lifecycle.ComputeSuccessFee(current, s.cfg.Lifecycle, s.now())
		fee = amount
		billed = err == nil && next != current
		return next, err
	})
	if err != nil {
		return nil, 0, err
	}

	if billed {
		s.metrics.RecordSuccessFee(fee)
		s.log.Info("Success fee billed", map[string]interface{}{
			"appeal_id": id,
			"amount":    fee,
		})
	}
	return a, fee, nil
}

// mutate loads the appeal, derives the next state with fn and writes it
// conditionally on the version and stage it read. A lost race reloads and
// re-runs fn so guards are always evaluated against the latest state. When fn
// returns the appeal it was given, nothing is written. It returns the stored
// appeal and the stage it was read at.
func (s *appealService) mutate(
	ctx context.Context,
	userID string,
	id uuid.UUID,
	action string,
	fn func(*models.Appeal) (*models.Appeal, error),
) (*models.Appeal, models.Stage, error) {
	for attempt := 1; ; attempt++ {
		current, err := s.load(ctx, userID, id)
		if err != nil {
			return nil, "", err
		}

		next, err := fn(current)
		if err != nil {
			s.recordGuard(action, err)
			return nil, current.Stage, err
		}
		if next == current {
			return current, current.Stage, nil
		}

		err = s.repo.UpdateIfVersion(ctx, next, current.Version, current.Stage)
		if err == nil {
			return next, current.Stage, nil
		}
		if !errors.Is(err, repository.ErrStageConflict) {
			s.log.Error("Failed to update appeal", err, map[string]interface{}{
				"appeal_id": id,
				"action":    action,
			})
			return nil, "", fmt.Errorf("failed to update appeal: %w", err)
		}
		if s.conflict(id, attempt) {
			return nil, "", ErrStageConflict
		}
	}
}

// conflict records a lost conditional write and reports whether the caller
// should give up.
func (s *appealService) conflict(id uuid.UUID, attempt int) bool {
	exhausted := attempt >= maxWriteAttempts
	s.metrics.RecordStageConflict(exhausted)
	s.log.Warn("Conditional appeal write lost a race", map[string]interface{}{
		"appeal_id": id,
		"attempt":   attempt,
		"exhausted": exhausted,
	})
	return exhausted
}

func (s *appealService) load(ctx context.Context, userID string, id uuid.UUID) (*models.Appeal, error) {
	userID, err := requireUser(userID)
	if err != nil {
		return nil, err
	}

	a, err := s.repo.FindByID(ctx, id)
	if err != nil {
		s.log.Error("Failed to load appeal", err, map[string]interface{}{"appeal_id": id})
		return nil, fmt.Errorf("failed to load appeal: %w", err)
	}
	if a == nil || a.UserID != userID {
		return nil, fmt.Errorf("%w: %s", ErrAppealNotFound, id)
	}
	return a, nil
}

func (s *appealService) recordGuard(action string, err error) {
	var ge *lifecycle.GuardError
	if !errors.As(err, &ge) {
		return
	}
	kind := "not_allowed_yet"
	if errors.Is(ge.Kind, lifecycle.ErrNotAllowedAnymore) {
		kind = "not_allowed_anymore"
	}
	s.metrics.RecordGuardRejection(action, kind)
	s.log.Info("Lifecycle action rejected", map[string]interface{}{
		"action": ge.Action,
		"stage":  ge.Stage,
		"kind":   kind,
		"reason": ge.Reason,
	})
}

// filingBody is the review body the next filing goes to from stage s.
func filingBody(s models.Stage) models.ReviewBody {
	switch s {
	case models.StageDraft, models.StageReadyToFile:
		return models.BodyCCAO
	case models.StageCCAODecided:
		return models.BodyBOR
	case models.StageBORDecided:
		return models.BodyPTAB
	default:
		return lifecycle.BodyOf(s)
	}
}

func requireUser(userID string) (string, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return "", ErrMissingUser
	}
	return userID, nil
}
