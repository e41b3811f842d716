package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stwalsh4118/taxappeal/internal/database"
	"github.com/stwalsh4118/taxappeal/internal/models"
)

// PropertyRepository defines read access to the county property records.
type PropertyRepository interface {
	// FindByParcelID returns the subject property.
	// Returns nil, nil if the parcel is unknown (not an error).
	FindByParcelID(ctx context.Context, id models.ParcelID) (*models.Property, error)

	// FindComparables returns up to limit peers of the subject from the same
	// township and assessment year, same-class and closest-size first.
	// Each comparable carries its most recent verified sale, if any.
	FindComparables(ctx context.Context, subject *models.Property, limit int) ([]models.Comparable, error)

	// FindExemptions returns the exemptions recorded for the parcel.
	// Returns an empty slice if none are recorded.
	FindExemptions(ctx context.Context, id models.ParcelID) ([]models.Exemption, error)
}

type propertyRepository struct {
	db *database.Database
}

// NewPropertyRepository creates a new instance of PropertyRepository.
func NewPropertyRepository(db *database.Database) PropertyRepository {
	return &propertyRepository{db: db}
}

func (r *propertyRepository) FindByParcelID(ctx context.Context, id models.ParcelID) (*models.Property, error) {
	query := `
		SELECT
			parcel_id,
			address,
			township,
			class_code,
			assessment_year,
			assessed_value,
			square_feet,
			year_built,
			bedrooms,
			bathrooms,
			updated_at
		FROM properties
		WHERE parcel_id = $1
	`

	var p models.Property
	var parcelID string

	err := r.db.Pool.QueryRow(ctx, query, id.String()).Scan(
		&parcelID,
		&p.Address,
		&p.Township,
		&p.ClassCode,
		&p.AssessmentYear,
		&p.AssessedValue,
		&p.SquareFeet,
		&p.YearBuilt,
		&p.Bedrooms,
		&p.Bathrooms,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query property %s: %w", id, err)
	}

	p.ParcelID = models.ParcelID(parcelID)
	return &p, nil
}

func (r *propertyRepository) FindComparables(ctx context.Context, subject *models.Property, limit int) ([]models.Comparable, error) {
	query := `
		SELECT
			p.parcel_id,
			p.address,
			p.class_code,
			p.assessed_value,
			p.square_feet,
			p.year_built,
			p.bedrooms,
			p.bathrooms,
			s.sale_price,
			s.sale_date
		FROM properties p
		LEFT JOIN LATERAL (
			SELECT sale_price, sale_date
			FROM property_sales ps
			WHERE ps.parcel_id = p.parcel_id AND ps.verified
			ORDER BY sale_date DESC
			LIMIT 1
		) s ON true
		WHERE p.township = $1
			AND p.assessment_year = $2
			AND p.parcel_id <> $3
		ORDER BY (p.class_code = $4) DESC, abs(p.square_feet - $5), p.parcel_id
		LIMIT $6
	`

	rows, err := r.db.Pool.Query(ctx, query,
		subject.Township, subject.AssessmentYear, subject.ParcelID.String(),
		subject.ClassCode, subject.SquareFeet, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query comparables for %s: %w", subject.ParcelID, err)
	}
	defer rows.Close()

	results := []models.Comparable{}
	for rows.Next() {
		var c models.Comparable
		var parcelID string
		var salePrice *float64
		var saleDate *time.Time

		if err := rows.Scan(
			&parcelID,
			&c.Address,
			&c.ClassCode,
			&c.AssessedValue,
			&c.SquareFeet,
			&c.YearBuilt,
			&c.Bedrooms,
			&c.Bathrooms,
			&salePrice,
			&saleDate,
		); err != nil {
			return nil, fmt.Errorf("failed to scan comparable row: %w", err)
		}

		c.ParcelID = models.ParcelID(parcelID)
		c.SalePrice = salePrice
		c.SaleDate = saleDate
		results = append(results, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating comparable rows: %w", err)
	}

	return results, nil
}

func (r *propertyRepository) FindExemptions(ctx context.Context, id models.ParcelID) ([]models.Exemption, error) {
	query := `
		SELECT code, name, eligible, applied
		FROM exemptions
		WHERE parcel_id = $1
		ORDER BY code
	`

	rows, err := r.db.Pool.Query(ctx, query, id.String())
	if err != nil {
		return nil, fmt.Errorf("failed to query exemptions for %s: %w", id, err)
	}
	defer rows.Close()

	results := []models.Exemption{}
	for rows.Next() {
		var e models.Exemption
		if err := rows.Scan(&e.Code, &e.Name, &e.Eligible, &e.Applied); err != nil {
			return nil, fmt.Errorf("failed to scan exemption row: %w", err)
		}
		results = append(results, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating exemption rows: %w", err)
	}

	return results, nil
}
