package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/stwalsh4118/taxappeal/internal/analyzer"
	"github.com/stwalsh4118/taxappeal/internal/deadlines"
	"github.com/stwalsh4118/taxappeal/internal/logger"
	"github.com/stwalsh4118/taxappeal/internal/metrics"
	"github.com/stwalsh4118/taxappeal/internal/models"
)

var analysisNow = time.Date(2026, time.June, 1, 0, 0, 0, 0, time.UTC)

const subjectPIN = models.ParcelID("17161060120000")

func subjectProperty() *models.Property {
	return &models.Property{
		ParcelID:       subjectPIN,
		Address:        "100 W Test St",
		Township:       "Lake View",
		ClassCode:      "2-78",
		AssessmentYear: 2026,
		AssessedValue:  120000,
		SquareFeet:     2000,
		YearBuilt:      1995,
		Bedrooms:       3,
		Bathrooms:      2,
	}
}

func comp(pin string, assessed float64, sqft int) models.Comparable {
	return models.Comparable{
		ParcelID:      models.ParcelID(pin),
		ClassCode:     "2-78",
		AssessedValue: assessed,
		SquareFeet:    sqft,
		YearBuilt:     1995,
	}
}

func soldComp(pin string, assessed float64, sqft int, price float64, monthsAgo int) models.Comparable {
	c := comp(pin, assessed, sqft)
	date := analysisNow.AddDate(0, -monthsAgo, 0)
	c.SalePrice = &price
	c.SaleDate = &date
	return c
}

// comparablePool is strong enough for a market-value filing against the
// subject: three recent sales near 98k assessed-equivalent.
func comparablePool() []models.Comparable {
	return []models.Comparable{
		soldComp("17161060010000", 95000, 2000, 950000, 4),
		soldComp("17161060020000", 100000, 2000, 1000000, 6),
		soldComp("17161060030000", 98000, 2000, 980000, 8),
		comp("17161060040000", 110000, 2000),
		comp("17161060050000", 112000, 2000),
		comp("17161060060000", 108000, 2000),
		comp("17161060070000", 121000, 2100),
		comp("17161060080000", 125000, 2000),
	}
}

type analysisFixture struct {
	properties  *MockPropertyRepository
	socialProof *MockSocialProofRepository
	deadlines   *MockDeadlineLookup
	service     *analysisService
}

func newAnalysisFixture(t *testing.T, withDeadlines bool) *analysisFixture {
	t.Helper()
	f := &analysisFixture{
		properties:  new(MockPropertyRepository),
		socialProof: new(MockSocialProofRepository),
		deadlines:   new(MockDeadlineLookup),
	}
	var lookup DeadlineLookup
	if withDeadlines {
		lookup = f.deadlines
	}
	opts := AnalysisOptions{
		Params:              analyzer.DefaultParams(),
		ComparablePoolSize:  25,
		SocialProofTimeout:  50 * time.Millisecond,
		SocialProofCacheTTL: time.Minute,
	}
	svc := NewAnalysisService(f.properties, f.socialProof, lookup, opts, nil, logger.New("test"))
	f.service = svc.(*analysisService)
	f.service.now = func() time.Time { return analysisNow }
	return f
}

func TestAnalyze_Success(t *testing.T) {
	// Arrange
	f := newAnalysisFixture(t, true)
	proof := &models.SocialProof{Township: "Lake View", ClassCode: "2-78", WonCount: 4, TotalCount: 6, MedianReductionPercent: 11.5}
	countdowns := []deadlines.Countdown{{Body: models.BodyCCAO, DaysRemaining: 12, Open: true}}
	exemptions := []models.Exemption{{Code: "HO", Name: "Homeowner", Eligible: true, Applied: true}}

	f.properties.On("FindByParcelID", mock.Anything, subjectPIN).Return(subjectProperty(), nil)
	f.properties.On("FindExemptions", mock.Anything, subjectPIN).Return(exemptions, nil)
	f.properties.On("FindComparables", mock.Anything, mock.AnythingOfType("*models.Property"), 25).Return(comparablePool(), nil)
	f.socialProof.On("FindSocialProof", mock.Anything, "Lake View", "2-78").Return(proof, nil)
	f.deadlines.On("Lookup", mock.Anything, "Lake View", 2026, analysisNow).Return(countdowns, nil)

	// Act
	snap, err := f.service.Analyze(context.Background(), "17-16-106-012-0000")

	// Assert
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, analysisNow, snap.GeneratedAt)
	assert.Equal(t, subjectPIN, snap.Property.ParcelID)
	assert.Equal(t, 1200000.0, snap.Property.MarketValue, "market value derived with the multiplier")
	require.Len(t, snap.Comparables, 8)
	assert.Equal(t, 950000.0, snap.Comparables[0].MarketValue)
	assert.Equal(t, exemptions, snap.Exemptions)
	assert.Equal(t, proof, snap.SocialProof)
	assert.Equal(t, countdowns, snap.Deadlines)
	assert.Empty(t, snap.Degraded)

	assert.Equal(t, analyzer.StrategyFileMV, snap.Decision.Strategy)
	assert.GreaterOrEqual(t, snap.OpportunityScore, 0)
	assert.LessOrEqual(t, snap.OpportunityScore, 100)
	f.properties.AssertExpectations(t)
	f.socialProof.AssertExpectations(t)
	f.deadlines.AssertExpectations(t)
}

func TestAnalyze_InvalidParcelID(t *testing.T) {
	// Arrange
	f := newAnalysisFixture(t, true)

	// Act
	snap, err := f.service.Analyze(context.Background(), "17-16-106")

	// Assert
	assert.Nil(t, snap)
	assert.ErrorIs(t, err, models.ErrInvalidParcelID)
	// Nothing is read for validation errors
	f.properties.AssertNotCalled(t, "FindByParcelID", mock.Anything, mock.Anything)
	f.properties.AssertNotCalled(t, "FindExemptions", mock.Anything, mock.Anything)
}

func TestAnalyze_PropertyNotFound(t *testing.T) {
	// Arrange
	f := newAnalysisFixture(t, true)
	f.properties.On("FindByParcelID", mock.Anything, subjectPIN).Return(nil, nil)
	f.properties.On("FindExemptions", mock.Anything, subjectPIN).Return([]models.Exemption{}, nil).Maybe()

	// Act
	snap, err := f.service.Analyze(context.Background(), string(subjectPIN))

	// Assert
	assert.Nil(t, snap)
	assert.ErrorIs(t, err, ErrPropertyNotFound)
	assert.Contains(t, err.Error(), "17-16-106-012-0000")
	f.properties.AssertNotCalled(t, "FindComparables", mock.Anything, mock.Anything, mock.Anything)
}

func TestAnalyze_RepositoryError(t *testing.T) {
	// Arrange
	f := newAnalysisFixture(t, true)
	dbError := errors.New("database connection failed")
	f.properties.On("FindByParcelID", mock.Anything, subjectPIN).Return(nil, dbError)
	f.properties.On("FindExemptions", mock.Anything, subjectPIN).Return([]models.Exemption{}, nil).Maybe()

	// Act
	snap, err := f.service.Analyze(context.Background(), string(subjectPIN))

	// Assert
	assert.Nil(t, snap)
	assert.ErrorIs(t, err, dbError)
	assert.Contains(t, err.Error(), "failed to query property")
}

func TestAnalyze_IncompleteProperty(t *testing.T) {
	// Arrange
	f := newAnalysisFixture(t, true)
	p := subjectProperty()
	p.AssessedValue = 0
	f.properties.On("FindByParcelID", mock.Anything, subjectPIN).Return(p, nil)
	f.properties.On("FindExemptions", mock.Anything, subjectPIN).Return([]models.Exemption{}, nil)

	// Act
	snap, err := f.service.Analyze(context.Background(), string(subjectPIN))

	// Assert
	assert.Nil(t, snap)
	assert.ErrorIs(t, err, ErrIncompleteProperty)
	assert.ErrorIs(t, err, models.ErrMissingPropertyField)
	f.properties.AssertNotCalled(t, "FindComparables", mock.Anything, mock.Anything, mock.Anything)
}

func TestAnalyze_OptionalLookupsDegrade(t *testing.T) {
	// Arrange
	f := newAnalysisFixture(t, true)
	lookupErr := errors.New("upstream unavailable")
	f.properties.On("FindByParcelID", mock.Anything, subjectPIN).Return(subjectProperty(), nil)
	f.properties.On("FindExemptions", mock.Anything, subjectPIN).Return(nil, lookupErr)
	f.properties.On("FindComparables", mock.Anything, mock.Anything, 25).Return(nil, lookupErr)
	f.socialProof.On("FindSocialProof", mock.Anything, "Lake View", "2-78").Return(nil, lookupErr)
	f.deadlines.On("Lookup", mock.Anything, "Lake View", 2026, analysisNow).Return(nil, lookupErr)

	// Act
	snap, err := f.service.Analyze(context.Background(), string(subjectPIN))

	// Assert
	require.NoError(t, err, "optional inputs never fail the analysis")
	assert.ElementsMatch(t, []string{
		metrics.LookupExemptions,
		metrics.LookupComparables,
		metrics.LookupSocialProof,
		metrics.LookupDeadlines,
	}, snap.Degraded)
	assert.NotNil(t, snap.Comparables)
	assert.Empty(t, snap.Comparables)
	assert.Nil(t, snap.Exemptions)
	assert.Nil(t, snap.SocialProof)
	assert.Nil(t, snap.Deadlines)

	// An empty pool is an answer, not a failure
	assert.Equal(t, analyzer.StrategyDoNotFile, snap.Decision.Strategy)
	require.NotNil(t, snap.Decision.NoAppeal)
	assert.NotEmpty(t, snap.Decision.GatesTriggered)
}

func TestAnalyze_SocialProofCached(t *testing.T) {
	// Arrange
	f := newAnalysisFixture(t, false)
	f.properties.On("FindByParcelID", mock.Anything, subjectPIN).Return(subjectProperty(), nil)
	f.properties.On("FindExemptions", mock.Anything, subjectPIN).Return([]models.Exemption{}, nil)
	f.properties.On("FindComparables", mock.Anything, mock.Anything, 25).Return(comparablePool(), nil)
	// An empty result is cached like any other
	f.socialProof.On("FindSocialProof", mock.Anything, "Lake View", "2-78").Return(nil, nil).Once()

	// Act
	first, err1 := f.service.Analyze(context.Background(), string(subjectPIN))
	second, err2 := f.service.Analyze(context.Background(), string(subjectPIN))

	// Assert
	require.NoError(t, err1)
	require.NoError(t, err2)
	assert.Nil(t, first.SocialProof)
	assert.Nil(t, second.SocialProof)
	assert.Empty(t, second.Degraded)
	f.socialProof.AssertNumberOfCalls(t, "FindSocialProof", 1)
}

func TestAnalyze_SocialProofTimeout(t *testing.T) {
	// Arrange
	f := newAnalysisFixture(t, false)
	f.service.opts.SocialProofTimeout = 10 * time.Millisecond
	f.properties.On("FindByParcelID", mock.Anything, subjectPIN).Return(subjectProperty(), nil)
	f.properties.On("FindExemptions", mock.Anything, subjectPIN).Return([]models.Exemption{}, nil)
	f.properties.On("FindComparables", mock.Anything, mock.Anything, 25).Return(comparablePool(), nil)
	f.socialProof.On("FindSocialProof", mock.Anything, "Lake View", "2-78").
		Run(func(args mock.Arguments) {
			<-args.Get(0).(context.Context).Done()
		}).
		Return(nil, context.DeadlineExceeded)

	// Act
	snap, err := f.service.Analyze(context.Background(), string(subjectPIN))

	// Assert
	require.NoError(t, err)
	assert.Nil(t, snap.SocialProof)
	assert.Equal(t, []string{metrics.LookupSocialProof}, snap.Degraded)
	assert.Equal(t, analyzer.StrategyFileMV, snap.Decision.Strategy, "advisory inputs do not change the decision")
}

func TestAnalyze_NoDeadlineCalendar(t *testing.T) {
	// Arrange
	f := newAnalysisFixture(t, false)
	f.properties.On("FindByParcelID", mock.Anything, subjectPIN).Return(subjectProperty(), nil)
	f.properties.On("FindExemptions", mock.Anything, subjectPIN).Return([]models.Exemption{}, nil)
	f.properties.On("FindComparables", mock.Anything, mock.Anything, 25).Return([]models.Comparable{}, nil)
	f.socialProof.On("FindSocialProof", mock.Anything, "Lake View", "2-78").Return(nil, nil)

	// Act
	snap, err := f.service.Analyze(context.Background(), string(subjectPIN))

	// Assert
	require.NoError(t, err)
	assert.Nil(t, snap.Deadlines)
	assert.Empty(t, snap.Degraded)
	f.deadlines.AssertNotCalled(t, "Lookup", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}
