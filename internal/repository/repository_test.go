package repository

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stwalsh4118/taxappeal/internal/config"
	"github.com/stwalsh4118/taxappeal/internal/database"
	"github.com/stwalsh4118/taxappeal/internal/models"
)

// getTestConfig returns database configuration for integration tests.
func getTestConfig() config.DatabaseConfig {
	return config.DatabaseConfig{
		Host:     getEnvOrDefault("DB_HOST", "host.docker.internal"),
		Port:     getEnvOrDefault("DB_PORT", "5432"),
		Name:     getEnvOrDefault("DB_NAME", "taxappeal"),
		User:     getEnvOrDefault("DB_USER", "postgres"),
		Password: getEnvOrDefault("DB_PASSWORD", "postgres"),
		PoolMin:  2,
		PoolMax:  5,
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

const (
	subjectPIN = "99000000000001"
	peerPIN    = "99000000000002"
	otherPIN   = "99000000000003"
	township   = "Test Township"
)

// setupTestDatabase connects, applies the schema and seeds a small township.
func setupTestDatabase(t *testing.T) *database.Database {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx := context.Background()
	db, err := database.NewPostgresPool(ctx, getTestConfig())
	require.NoError(t, err, "failed to create database connection")
	require.NoError(t, db.Migrate(ctx))

	cleanup := func() {
		_, _ = db.Pool.Exec(ctx, `DELETE FROM appeals WHERE parcel_id LIKE '9900%'`)
		_, _ = db.Pool.Exec(ctx, `DELETE FROM properties WHERE parcel_id LIKE '9900%'`)
	}
	cleanup()
	t.Cleanup(func() {
		cleanup()
		db.Close()
	})

	seed := []string{
		`INSERT INTO properties (parcel_id, address, township, class_code, assessment_year, assessed_value, square_feet, year_built, bedrooms, bathrooms)
		 VALUES ('` + subjectPIN + `', '1 Main St', '` + township + `', '2-78', 2026, 120000, 2000, 1995, 3, 2)`,
		`INSERT INTO properties (parcel_id, address, township, class_code, assessment_year, assessed_value, square_feet, year_built, bedrooms, bathrooms)
		 VALUES ('` + peerPIN + `', '3 Main St', '` + township + `', '2-78', 2026, 100000, 2050, 1997, 3, 2)`,
		`INSERT INTO properties (parcel_id, address, township, class_code, assessment_year, assessed_value, square_feet, year_built, bedrooms, bathrooms)
		 VALUES ('` + otherPIN + `', '5 Main St', '` + township + `', '2-95', 2026, 90000, 1400, 1960, 2, 1)`,
		`INSERT INTO property_sales (parcel_id, sale_date, sale_price) VALUES ('` + peerPIN + `', '2024-01-15', 900000)`,
		`INSERT INTO property_sales (parcel_id, sale_date, sale_price) VALUES ('` + peerPIN + `', '2025-11-01', 980000)`,
		`INSERT INTO exemptions (parcel_id, code, name, eligible, applied) VALUES ('` + subjectPIN + `', 'HO', 'Homeowner', true, false)`,
	}
	for _, stmt := range seed {
		_, err := db.Pool.Exec(ctx, stmt)
		require.NoError(t, err)
	}
	return db
}

func testAppeal() *models.Appeal {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &models.Appeal{
		ID:                    uuid.New(),
		UserID:                "user-" + uuid.NewString(),
		ParcelID:              subjectPIN,
		AssessmentYear:        2026,
		Stage:                 models.StageDraft,
		Outcome:               models.OutcomePending,
		PaymentStatus:         models.PaymentUnpaid,
		SuccessFeeStatus:      models.FeeNone,
		Grounds:               []models.AppealGround{models.GroundMarketValue},
		CurrentAssessedValue:  120000,
		CurrentMarketValue:    1200000,
		ProposedAssessedValue: 98000,
		ProposedMarketValue:   980000,
		EstimatedTaxSavings:   4400,
		Recommendation: &models.Recommendation{
			Strategy:       "file_mv",
			Reasons:        []string{"three recent sales"},
			RiskFlags:      []string{},
			SupportingData: map[string]float64{"mv_sales_count": 3},
			Confidence:     0.8,
			Score:          72,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestReviewDocs_RoundTrip(t *testing.T) {
	filed := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	value := 101000.0
	a := testAppeal()
	a.CCAO = models.ReviewRecord{FiledAt: &filed, ConfirmationNumber: "C-1", DecidedAt: &filed, DecidedValue: &value}

	reviews, rec, err := encodeDocs(a)
	require.NoError(t, err)

	var out models.Appeal
	require.NoError(t, decodeDocs(&out, reviews, rec))
	assert.Equal(t, "C-1", out.CCAO.ConfirmationNumber)
	assert.Equal(t, value, *out.CCAO.DecidedValue)
	assert.False(t, out.BOR.Decided())
	require.NotNil(t, out.Recommendation)
	assert.Equal(t, 72, out.Recommendation.Score)

	a.Recommendation = nil
	_, rec, err = encodeDocs(a)
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestPropertyRepository(t *testing.T) {
	db := setupTestDatabase(t)
	repo := NewPropertyRepository(db)
	ctx := context.Background()

	t.Run("find subject", func(t *testing.T) {
		p, err := repo.FindByParcelID(ctx, subjectPIN)
		require.NoError(t, err)
		require.NotNil(t, p)
		assert.Equal(t, "2-78", p.ClassCode)
		assert.Equal(t, 120000.0, p.AssessedValue)
	})

	t.Run("unknown parcel is nil, nil", func(t *testing.T) {
		p, err := repo.FindByParcelID(ctx, "99000000009999")
		require.NoError(t, err)
		assert.Nil(t, p)
	})

	t.Run("comparables exclude subject and carry latest sale", func(t *testing.T) {
		subject, err := repo.FindByParcelID(ctx, subjectPIN)
		require.NoError(t, err)

		comps, err := repo.FindComparables(ctx, subject, 10)
		require.NoError(t, err)
		require.Len(t, comps, 2)

		assert.Equal(t, models.ParcelID(peerPIN), comps[0].ParcelID, "same-class peer first")
		require.True(t, comps[0].HasVerifiedSale())
		assert.Equal(t, 980000.0, *comps[0].SalePrice)
		assert.False(t, comps[1].HasVerifiedSale())
	})

	t.Run("exemptions", func(t *testing.T) {
		ex, err := repo.FindExemptions(ctx, subjectPIN)
		require.NoError(t, err)
		require.Len(t, ex, 1)
		assert.True(t, ex[0].Eligible)

		none, err := repo.FindExemptions(ctx, peerPIN)
		require.NoError(t, err)
		assert.Empty(t, none)
	})
}

func TestAppealRepository_ConditionalWrites(t *testing.T) {
	db := setupTestDatabase(t)
	repo := NewAppealRepository(db)
	ctx := context.Background()

	a := testAppeal()
	require.NoError(t, repo.Create(ctx, a))
	assert.Equal(t, 1, a.Version)

	stored, err := repo.FindByID(ctx, a.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, models.StageDraft, stored.Stage)
	assert.Equal(t, []models.AppealGround{models.GroundMarketValue}, stored.Grounds)
	require.NotNil(t, stored.Recommendation)
	assert.Equal(t, "file_mv", stored.Recommendation.Strategy)

	next := stored.Clone()
	next.Stage = models.StageReadyToFile
	require.NoError(t, repo.UpdateIfVersion(ctx, next, 1, models.StageDraft))
	assert.Equal(t, 2, next.Version)

	// A writer that read version 1 loses.
	stale := stored.Clone()
	stale.Stage = models.StageWithdrawn
	err = repo.UpdateIfVersion(ctx, stale, 1, models.StageDraft)
	assert.True(t, errors.Is(err, ErrStageConflict))

	history, err := repo.History(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, models.StageDraft, history[0].From)
	assert.Equal(t, models.StageReadyToFile, history[0].To)

	list, err := repo.ListByUser(ctx, a.UserID)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	assert.ErrorIs(t, repo.DeleteIfVersion(ctx, a.ID, 1, models.StageDraft), ErrStageConflict)
	require.NoError(t, repo.DeleteIfVersion(ctx, a.ID, 2, models.StageReadyToFile))

	gone, err := repo.FindByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)
}

func TestAppealRepository_OneOpenAppealPerParcelYear(t *testing.T) {
	db := setupTestDatabase(t)
	repo := NewAppealRepository(db)
	ctx := context.Background()

	first := testAppeal()
	require.NoError(t, repo.Create(ctx, first))

	second := testAppeal()
	second.UserID = first.UserID
	assert.ErrorIs(t, repo.Create(ctx, second), ErrAppealExists)

	// Another year is a separate appeal.
	nextYear := testAppeal()
	nextYear.UserID = first.UserID
	nextYear.AssessmentYear = first.AssessmentYear + 1
	require.NoError(t, repo.Create(ctx, nextYear))

	// Withdrawing the open appeal frees the slot.
	withdrawn := first.Clone()
	withdrawn.Stage = models.StageWithdrawn
	require.NoError(t, repo.UpdateIfVersion(ctx, withdrawn, 1, models.StageDraft))
	require.NoError(t, repo.Create(ctx, second))
}

func TestSocialProofRepository(t *testing.T) {
	db := setupTestDatabase(t)
	appeals := NewAppealRepository(db)
	repo := NewSocialProofRepository(db)
	ctx := context.Background()

	sp, err := repo.FindSocialProof(ctx, township, "2-78")
	require.NoError(t, err)
	assert.Nil(t, sp, "no decided appeals yet")

	a := testAppeal()
	require.NoError(t, appeals.Create(ctx, a))
	won := a.Clone()
	won.Outcome = models.OutcomeWon
	pct := 12.5
	won.FinalReductionPercent = &pct
	require.NoError(t, appeals.UpdateIfVersion(ctx, won, 1, models.StageDraft))

	sp, err = repo.FindSocialProof(ctx, township, "2-78")
	require.NoError(t, err)
	require.NotNil(t, sp)
	assert.Equal(t, 1, sp.TotalCount)
	assert.Equal(t, 1, sp.WonCount)
	assert.Equal(t, 12.5, sp.MedianReductionPercent)
}
