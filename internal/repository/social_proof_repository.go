package repository

import (
	"context"
	"fmt"

	"github.com/stwalsh4118/taxappeal/internal/database"
	"github.com/stwalsh4118/taxappeal/internal/models"
)

// SocialProofRepository aggregates the outcomes of prior appeals.
type SocialProofRepository interface {
	// FindSocialProof summarizes decided appeals for properties in the same
	// township and class. Returns nil, nil when no appeal has been decided yet.
	FindSocialProof(ctx context.Context, township, classCode string) (*models.SocialProof, error)
}

type socialProofRepository struct {
	db *database.Database
}

// NewSocialProofRepository creates a new instance of SocialProofRepository.
func NewSocialProofRepository(db *database.Database) SocialProofRepository {
	return &socialProofRepository{db: db}
}

func (r *socialProofRepository) FindSocialProof(ctx context.Context, township, classCode string) (*models.SocialProof, error) {
	query := `
		SELECT
			count(*),
			count(*) FILTER (WHERE a.outcome = 'won'),
			coalesce(
				percentile_cont(0.5) WITHIN GROUP (ORDER BY a.final_reduction_percent)
					FILTER (WHERE a.outcome = 'won'),
				0
			)
		FROM appeals a
		JOIN properties p ON p.parcel_id = a.parcel_id
		WHERE p.township = $1
			AND p.class_code = $2
			AND a.outcome <> 'pending'
	`

	sp := models.SocialProof{Township: township, ClassCode: classCode}
	err := r.db.Pool.QueryRow(ctx, query, township, classCode).Scan(
		&sp.TotalCount,
		&sp.WonCount,
		&sp.MedianReductionPercent,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate social proof (township=%s, class=%s): %w", township, classCode, err)
	}

	if sp.TotalCount == 0 {
		return nil, nil
	}
	return &sp, nil
}
