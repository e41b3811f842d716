package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stwalsh4118/taxappeal/internal/database"
	"github.com/stwalsh4118/taxappeal/internal/models"
)

// ErrStageConflict is returned when a conditional write finds the appeal at a
// different version or stage than the caller read.
var ErrStageConflict = errors.New("appeal was modified concurrently")

// ErrAppealExists is returned by Create when the user already has an open
// appeal for the same parcel and assessment year.
var ErrAppealExists = errors.New("an open appeal already exists for this parcel and year")

const (
	uniqueViolation     = "23505"
	activeAppealsUnique = "uq_appeals_active"
)

// StageEvent is one row of an appeal's stage history.
type StageEvent struct {
	OccurredAt time.Time    `json:"occurredAt"`
	From       models.Stage `json:"from"`
	To         models.Stage `json:"to"`
}

// AppealRepository defines the appeal record store. Every write is
// conditional on the version the caller read.
type AppealRepository interface {
	// Create inserts a new appeal at version 1. Returns ErrAppealExists when
	// an open appeal for the same user, parcel and year is already stored.
	Create(ctx context.Context, a *models.Appeal) error

	// FindByID returns nil, nil if the appeal does not exist.
	FindByID(ctx context.Context, id uuid.UUID) (*models.Appeal, error)

	// ListByUser returns the user's appeals, newest first.
	ListByUser(ctx context.Context, userID string) ([]models.Appeal, error)

	// UpdateIfVersion writes a when the stored row is still at
	// expectedVersion and expectedStage, bumping the version and recording a
	// stage event when the stage changed. Returns ErrStageConflict otherwise.
	UpdateIfVersion(ctx context.Context, a *models.Appeal, expectedVersion int, expectedStage models.Stage) error

	// DeleteIfVersion hard-deletes the appeal under the same condition.
	DeleteIfVersion(ctx context.Context, id uuid.UUID, expectedVersion int, expectedStage models.Stage) error

	// History returns the recorded stage events, oldest first.
	History(ctx context.Context, id uuid.UUID) ([]StageEvent, error)
}

type appealRepository struct {
	db *database.Database
}

// NewAppealRepository creates a new instance of AppealRepository.
func NewAppealRepository(db *database.Database) AppealRepository {
	return &appealRepository{db: db}
}

// reviewsDoc is the jsonb shape of the three review records.
type reviewsDoc struct {
	CCAO models.ReviewRecord `json:"ccao"`
	BOR  models.ReviewRecord `json:"bor"`
	PTAB models.ReviewRecord `json:"ptab"`
}

const appealColumns = `
	id,
	user_id,
	parcel_id,
	assessment_year,
	stage,
	outcome,
	payment_status,
	success_fee_status,
	grounds,
	current_assessed_value,
	current_market_value,
	proposed_assessed_value,
	proposed_market_value,
	estimated_tax_savings,
	actual_tax_savings,
	final_assessed_value,
	final_reduction_amount,
	final_reduction_percent,
	success_fee_amount,
	submitted_at,
	reviews,
	recommendation,
	letter_text,
	letter_generated_at,
	version,
	created_at,
	updated_at
`

func (r *appealRepository) Create(ctx context.Context, a *models.Appeal) error {
	reviews, recommendation, err := encodeDocs(a)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO appeals (` + appealColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
			$15, $16, $17, $18, $19, $20, $21, $22, $23, $24, 1, $25, $26)
	`

	_, err = r.db.Pool.Exec(ctx, query,
		a.ID,
		a.UserID,
		a.ParcelID.String(),
		a.AssessmentYear,
		string(a.Stage),
		string(a.Outcome),
		string(a.PaymentStatus),
		string(a.SuccessFeeStatus),
		groundStrings(a.Grounds),
		a.CurrentAssessedValue,
		a.CurrentMarketValue,
		a.ProposedAssessedValue,
		a.ProposedMarketValue,
		a.EstimatedTaxSavings,
		a.ActualTaxSavings,
		a.FinalAssessedValue,
		a.FinalReductionAmount,
		a.FinalReductionPercent,
		a.SuccessFeeAmount,
		a.SubmittedAt,
		reviews,
		recommendation,
		a.LetterText,
		a.LetterGeneratedAt,
		a.CreatedAt,
		a.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation && pgErr.ConstraintName == activeAppealsUnique {
			return ErrAppealExists
		}
		return fmt.Errorf("failed to insert appeal %s: %w", a.ID, err)
	}

	a.Version = 1
	return nil
}

func (r *appealRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Appeal, error) {
	query := `SELECT ` + appealColumns + ` FROM appeals WHERE id = $1`

	a, err := scanAppeal(r.db.Pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query appeal %s: %w", id, err)
	}
	return a, nil
}

func (r *appealRepository) ListByUser(ctx context.Context, userID string) ([]models.Appeal, error) {
	query := `SELECT ` + appealColumns + ` FROM appeals WHERE user_id = $1 ORDER BY created_at DESC, id`

	rows, err := r.db.Pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query appeals for user %s: %w", userID, err)
	}
	defer rows.Close()

	results := []models.Appeal{}
	for rows.Next() {
		a, err := scanAppeal(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan appeal row: %w", err)
		}
		results = append(results, *a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating appeal rows: %w", err)
	}
	return results, nil
}

func (r *appealRepository) UpdateIfVersion(ctx context.Context, a *models.Appeal, expectedVersion int, expectedStage models.Stage) error {
	reviews, recommendation, err := encodeDocs(a)
	if err != nil {
		return err
	}

	query := `
		UPDATE appeals SET
			stage = $4,
			outcome = $5,
			payment_status = $6,
			success_fee_status = $7,
			grounds = $8,
			proposed_assessed_value = $9,
			proposed_market_value = $10,
			actual_tax_savings = $11,
			final_assessed_value = $12,
			final_reduction_amount = $13,
			final_reduction_percent = $14,
			success_fee_amount = $15,
			submitted_at = $16,
			reviews = $17,
			recommendation = $18,
			letter_text = $19,
			letter_generated_at = $20,
			updated_at = $21,
			version = version + 1
		WHERE id = $1 AND version = $2 AND stage = $3
	`

	return pgx.BeginFunc(ctx, r.db.Pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, query,
			a.ID,
			expectedVersion,
			string(expectedStage),
			string(a.Stage),
			string(a.Outcome),
			string(a.PaymentStatus),
			string(a.SuccessFeeStatus),
			groundStrings(a.Grounds),
			a.ProposedAssessedValue,
			a.ProposedMarketValue,
			a.ActualTaxSavings,
			a.FinalAssessedValue,
			a.FinalReductionAmount,
			a.FinalReductionPercent,
			a.SuccessFeeAmount,
			a.SubmittedAt,
			reviews,
			recommendation,
			a.LetterText,
			a.LetterGeneratedAt,
			a.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to update appeal %s: %w", a.ID, err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("%w: appeal %s expected at version %d stage %s",
				ErrStageConflict, a.ID, expectedVersion, expectedStage)
		}

		if a.Stage != expectedStage {
			_, err := tx.Exec(ctx,
				`INSERT INTO appeal_events (appeal_id, from_stage, to_stage, occurred_at) VALUES ($1, $2, $3, $4)`,
				a.ID, string(expectedStage), string(a.Stage), a.UpdatedAt)
			if err != nil {
				return fmt.Errorf("failed to record stage event for appeal %s: %w", a.ID, err)
			}
		}

		a.Version = expectedVersion + 1
		return nil
	})
}

func (r *appealRepository) DeleteIfVersion(ctx context.Context, id uuid.UUID, expectedVersion int, expectedStage models.Stage) error {
	tag, err := r.db.Pool.Exec(ctx,
		`DELETE FROM appeals WHERE id = $1 AND version = $2 AND stage = $3`,
		id, expectedVersion, string(expectedStage))
	if err != nil {
		return fmt.Errorf("failed to delete appeal %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: appeal %s expected at version %d stage %s",
			ErrStageConflict, id, expectedVersion, expectedStage)
	}
	return nil
}

func (r *appealRepository) History(ctx context.Context, id uuid.UUID) ([]StageEvent, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT from_stage, to_stage, occurred_at FROM appeal_events WHERE appeal_id = $1 ORDER BY occurred_at, id`,
		id)
	if err != nil {
		return nil, fmt.Errorf("failed to query history for appeal %s: %w", id, err)
	}
	defer rows.Close()

	results := []StageEvent{}
	for rows.Next() {
		var from, to string
		var ev StageEvent
		if err := rows.Scan(&from, &to, &ev.OccurredAt); err != nil {
			return nil, fmt.Errorf("failed to scan stage event row: %w", err)
		}
		ev.From, ev.To = models.Stage(from), models.Stage(to)
		results = append(results, ev)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating stage event rows: %w", err)
	}
	return results, nil
}

func scanAppeal(row pgx.Row) (*models.Appeal, error) {
	var a models.Appeal
	var parcelID, stage, outcome, payment, fee string
	var grounds []string
	var reviews, recommendation []byte

	err := row.Scan(
		&a.ID,
		&a.UserID,
		&parcelID,
		&a.AssessmentYear,
		&stage,
		&outcome,
		&payment,
		&fee,
		&grounds,
		&a.CurrentAssessedValue,
		&a.CurrentMarketValue,
		&a.ProposedAssessedValue,
		&a.ProposedMarketValue,
		&a.EstimatedTaxSavings,
		&a.ActualTaxSavings,
		&a.FinalAssessedValue,
		&a.FinalReductionAmount,
		&a.FinalReductionPercent,
		&a.SuccessFeeAmount,
		&a.SubmittedAt,
		&reviews,
		&recommendation,
		&a.LetterText,
		&a.LetterGeneratedAt,
		&a.Version,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	a.ParcelID = models.ParcelID(parcelID)
	a.Stage = models.Stage(stage)
	a.Outcome = models.Outcome(outcome)
	a.PaymentStatus = models.PaymentStatus(payment)
	a.SuccessFeeStatus = models.FeeStatus(fee)
	a.Grounds = make([]models.AppealGround, 0, len(grounds))
	for _, g := range grounds {
		a.Grounds = append(a.Grounds, models.AppealGround(g))
	}

	if err := decodeDocs(&a, reviews, recommendation); err != nil {
		return nil, err
	}
	return &a, nil
}

func encodeDocs(a *models.Appeal) (reviews, recommendation []byte, err error) {
	reviews, err = json.Marshal(reviewsDoc{CCAO: a.CCAO, BOR: a.BOR, PTAB: a.PTAB})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode reviews for appeal %s: %w", a.ID, err)
	}
	if a.Recommendation != nil {
		recommendation, err = json.Marshal(a.Recommendation)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to encode recommendation for appeal %s: %w", a.ID, err)
		}
	}
	return reviews, recommendation, nil
}

func decodeDocs(a *models.Appeal, reviews, recommendation []byte) error {
	if len(reviews) > 0 {
		var doc reviewsDoc
		if err := json.Unmarshal(reviews, &doc); err != nil {
			return fmt.Errorf("failed to decode reviews for appeal %s: %w", a.ID, err)
		}
		a.CCAO, a.BOR, a.PTAB = doc.CCAO, doc.BOR, doc.PTAB
	}
	if len(recommendation) > 0 {
		var rec models.Recommendation
		if err := json.Unmarshal(recommendation, &rec); err != nil {
			return fmt.Errorf("failed to decode recommendation for appeal %s: %w", a.ID, err)
		}
		a.Recommendation = &rec
	}
	return nil
}

func groundStrings(grounds []models.AppealGround) []string {
	out := make([]string, 0, len(grounds))
	for _, g := range grounds {
		out = append(out, string(g))
	}
	return out
}
