package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/errgroup"

	"github.com/stwalsh4118/taxappeal/internal/analyzer"
	"github.com/stwalsh4118/taxappeal/internal/deadlines"
	"github.com/stwalsh4118/taxappeal/internal/logger"
	"github.com/stwalsh4118/taxappeal/internal/metrics"
	"github.com/stwalsh4118/taxappeal/internal/models"
	"github.com/stwalsh4118/taxappeal/internal/repository"
)

// Analysis errors
var (
	ErrPropertyNotFound   = errors.New("property not found")
	ErrIncompleteProperty = errors.New("property record is incomplete")
)

// DeadlineLookup answers filing-window countdowns for a township.
type DeadlineLookup interface {
	Lookup(ctx context.Context, township string, year int, asOf time.Time) ([]deadlines.Countdown, error)
}

// AnalysisSnapshot is the full, immutable result of analyzing one property.
// The advisory fields are nil when their lookup was unavailable.
type AnalysisSnapshot struct {
	GeneratedAt time.Time           `json:"generatedAt"`
	Property    models.Property     `json:"property"`
	Comparables []models.Comparable `json:"comparables"`
	analyzer.Result
	Exemptions  []models.Exemption    `json:"exemptions"`
	SocialProof *models.SocialProof   `json:"socialProof"`
	Deadlines   []deadlines.Countdown `json:"deadlines"`
	Degraded    []string              `json:"degraded"`
}

// AnalysisService defines the opportunity analysis operation.
type AnalysisService interface {
	// Analyze normalizes the parcel id, gathers the subject and its optional
	// inputs concurrently and runs the analyzer.
	// Returns models.ErrInvalidParcelID for malformed ids, ErrPropertyNotFound
	// for unknown parcels and ErrIncompleteProperty when required fields are
	// missing. Optional inputs never fail the analysis.
	Analyze(ctx context.Context, rawParcelID string) (*AnalysisSnapshot, error)
}

// AnalysisOptions tunes the analysis pipeline.
type AnalysisOptions struct {
	Params              analyzer.Params
	ComparablePoolSize  int
	SocialProofTimeout  time.Duration
	SocialProofCacheTTL time.Duration
}

type analysisService struct {
	properties  repository.PropertyRepository
	socialProof repository.SocialProofRepository
	deadlines   DeadlineLookup
	cache       *cache.Cache
	opts        AnalysisOptions
	metrics     *metrics.AnalysisMetrics
	log         *logger.Logger
	now         func() time.Time
}

// NewAnalysisService creates a new instance of AnalysisService. deadlineLookup
// and m may be nil.
func NewAnalysisService(
	properties repository.PropertyRepository,
	socialProof repository.SocialProofRepository,
	deadlineLookup DeadlineLookup,
	opts AnalysisOptions,
	m *metrics.AnalysisMetrics,
	log *logger.Logger,
) AnalysisService {
	return &analysisService{
		properties:  properties,
		socialProof: socialProof,
		deadlines:   deadlineLookup,
		cache:       cache.New(opts.SocialProofCacheTTL, 2*opts.SocialProofCacheTTL),
		opts:        opts,
		metrics:     m,
		log:         log.WithComponent("analysis"),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func (s *analysisService) Analyze(ctx context.Context, rawParcelID string) (*AnalysisSnapshot, error) {
	start := time.Now()

	id, err := models.NormalizeParcelID(rawParcelID)
	if err != nil {
		s.log.Warn("Invalid parcel id provided", map[string]interface{}{
			"parcel_id": rawParcelID,
		})
		return nil, err
	}

	snap, err := s.gather(ctx, id)
	if err != nil {
		s.metrics.RecordAnalysisError(time.Since(start).Seconds())
		return nil, err
	}

	snap.Result = analyzer.Run(snap.Property, snap.Comparables, s.opts.Params, snap.GeneratedAt)

	s.metrics.RecordAnalysis(string(snap.Decision.Strategy), snap.OpportunityScore, time.Since(start).Seconds())
	s.log.Info("Property analyzed", map[string]interface{}{
		"parcel_id":   id,
		"comparables": len(snap.Comparables),
		"strategy":    snap.Decision.Strategy,
		"score":       snap.OpportunityScore,
		"degraded":    snap.Degraded,
	})

	return snap, nil
}

// gather reads the subject and every optional input. The subject and its
// exemptions are keyed by parcel id and read together; the comparable pool,
// social proof and deadlines depend on the subject's township and class and
// are read together once the subject is known.
func (s *analysisService) gather(ctx context.Context, id models.ParcelID) (*AnalysisSnapshot, error) {
	snap := &AnalysisSnapshot{GeneratedAt: s.now(), Degraded: []string{}}
	var mu sync.Mutex
	degrade := func(lookup string, err error) {
		mu.Lock()
		snap.Degraded = append(snap.Degraded, lookup)
		mu.Unlock()
		s.metrics.RecordLookupFailure(lookup)
		s.log.Warn("Optional analysis input unavailable", map[string]interface{}{
			"parcel_id": id,
			"lookup":    lookup,
			"error":     err.Error(),
		})
	}

	var subject *models.Property
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		p, err := s.properties.FindByParcelID(gctx, id)
		if err != nil {
			s.log.Error("Failed to query property", err, map[string]interface{}{"parcel_id": id})
			return fmt.Errorf("failed to query property: %w", err)
		}
		if p == nil {
			return fmt.Errorf("%w: %s", ErrPropertyNotFound, id.Formatted())
		}
		subject = p
		return nil
	})
	g.Go(func() error {
		ex, err := s.properties.FindExemptions(gctx, id)
		if err != nil {
			degrade(metrics.LookupExemptions, err)
			return nil
		}
		snap.Exemptions = ex
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if err := subject.Validate(); err != nil {
		s.log.Warn("Property record is incomplete", map[string]interface{}{
			"parcel_id": id,
			"error":     err.Error(),
		})
		return nil, fmt.Errorf("%w: %w", ErrIncompleteProperty, err)
	}
	subject.DeriveMarketValue(s.opts.Params.MarketMultiplier)
	snap.Property = *subject

	g, gctx = errgroup.WithContext(ctx)
	g.Go(func() error {
		comps, err := s.properties.FindComparables(gctx, subject, s.opts.ComparablePoolSize)
		if err != nil {
			degrade(metrics.LookupComparables, err)
			comps = []models.Comparable{}
		}
		for i := range comps {
			comps[i].MarketValue = comps[i].AssessedValue * s.opts.Params.MarketMultiplier
		}
		snap.Comparables = comps
		return nil
	})
	g.Go(func() error {
		sp, err := s.lookupSocialProof(gctx, subject.Township, subject.ClassCode)
		if err != nil {
			degrade(metrics.LookupSocialProof, err)
			return nil
		}
		snap.SocialProof = sp
		return nil
	})
	if s.deadlines != nil {
		g.Go(func() error {
			d, err := s.deadlines.Lookup(gctx, subject.Township, subject.AssessmentYear, snap.GeneratedAt)
			if err != nil {
				degrade(metrics.LookupDeadlines, err)
				return nil
			}
			snap.Deadlines = d
			return nil
		})
	}
	_ = g.Wait()

	return snap, nil
}

// lookupSocialProof serves social proof from the TTL cache, falling back to
// the store under the configured timeout. Empty results are cached too.
func (s *analysisService) lookupSocialProof(ctx context.Context, township, classCode string) (*models.SocialProof, error) {
	key := township + "|" + classCode
	if cached, ok := s.cache.Get(key); ok {
		s.metrics.RecordSocialProofCache(metrics.CacheHit)
		sp, _ := cached.(*models.SocialProof)
		return sp, nil
	}
	s.metrics.RecordSocialProofCache(metrics.CacheMiss)

	ctx, cancel := context.WithTimeout(ctx, s.opts.SocialProofTimeout)
	defer cancel()

	sp, err := s.socialProof.FindSocialProof(ctx, township, classCode)
	if err != nil {
		return nil, err
	}
	s.cache.SetDefault(key, sp)
	return sp, nil
}
