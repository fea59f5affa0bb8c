package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"homebids/internal/models"
)

const reviewColumns = `id, mission_id, contractor_id, author_id, rating, comment, created_at`

func scanReview(row rowScanner) (models.Review, error) {
	review := models.Review{Source: models.SourcePlatform}
	err := row.Scan(&review.Id, &review.MissionId, &review.ContractorId, &review.AuthorId, &review.Rating, &review.Comment, &review.CreatedAt)
	return review, err
}

// AddReview stores a platform review. The bid for the (mission, contractor)
// pair must be accepted and the pair must never have been reviewed, deleted
// reviews included.
func (repo *Repository) AddReview(ctx context.Context, review models.Review) (models.Review, error) {
	err := repo.inTx(ctx, func(tx *sql.Tx) error {
		bid, err := repo.getBidByPair(ctx, tx, review.MissionId, review.ContractorId, "FOR SHARE")
		if errors.Is(err, models.ErrNoBid) {
			return models.ErrReviewNotEligible
		} else if err != nil {
			return err
		}
		if bid.Status != models.BidAccepted {
			return models.ErrReviewNotEligible
		}

		row := tx.QueryRowContext(ctx, `
		INSERT INTO reviews (mission_id, contractor_id, author_id, rating, comment)
		VALUES
			($1, $2, $3, $4, $5)
		ON CONFLICT ON CONSTRAINT reviews_mission_contractor_key DO NOTHING
		RETURNING
		`+reviewColumns, review.MissionId, review.ContractorId, review.AuthorId, review.Rating, review.Comment)
		review, err = scanReview(row)
		if errors.Is(err, sql.ErrNoRows) {
			return models.ErrReviewNotEligible
		}
		return err
	})
	if err != nil {
		return models.Review{}, fmt.Errorf("repository.Repository.AddReview: %w", err)
	}

	return review, nil
}

func (repo *Repository) GetReview(ctx context.Context, id string) (models.Review, error) {
	review, err := scanReview(repo.db.QueryRowContext(ctx, `SELECT `+reviewColumns+` FROM reviews WHERE id = $1 AND deleted_at IS NULL`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return review, fmt.Errorf("repository.Repository.GetReview: %w", models.ErrNoReview)
	} else if err != nil {
		return review, fmt.Errorf("repository.Repository.GetReview: %w", err)
	}
	return review, nil
}

// DeleteReview hides a review. The row stays as a tombstone so the pair
// cannot be reviewed again.
func (repo *Repository) DeleteReview(ctx context.Context, id string) error {
	res, err := repo.db.ExecContext(ctx, `
	UPDATE reviews
	SET deleted_at = CURRENT_TIMESTAMP
	WHERE id = $1 AND deleted_at IS NULL
	`, id)
	if err != nil {
		return fmt.Errorf("repository.Repository.DeleteReview: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("repository.Repository.DeleteReview: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("repository.Repository.DeleteReview: %w", models.ErrNoReview)
	}
	return nil
}

func (repo *Repository) GetReviews(ctx context.Context, limit, offset int, contractorId, missionId string) ([]models.Review, error) {
	query := `
	SELECT
		` + reviewColumns + `
	FROM reviews
	$conditions$
	ORDER BY created_at DESC
	LIMIT $1
	OFFSET $2
	`

	params := []interface{}{limitParam(limit), offset}
	conds := make([]string, 0, 3)

	if len(contractorId) > 0 {
		conds = append(conds, "contractor_id = $$")
		params = append(params, contractorId)
	}
	if len(missionId) > 0 {
		conds = append(conds, "mission_id = $$")
		params = append(params, missionId)
	}
	conds = append(conds, "deleted_at IS NULL")
	query = replaceConditions(query, conditions(2, conds))

	rows, err := repo.db.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, fmt.Errorf("repository.Repository.GetReviews: %w", err)
	}
	defer rows.Close()

	var reviews []models.Review
	for rows.Next() {
		review, err := scanReview(rows)
		if err != nil {
			return nil, fmt.Errorf("repository.Repository.GetReviews: rows scan failed: %w", err)
		}
		reviews = append(reviews, review)
	}

	if rows.Err() != nil {
		return nil, fmt.Errorf("repository.Repository.GetReviews: %w", rows.Err())
	}

	return reviews, nil
}

func (repo *Repository) GetExternalReviews(ctx context.Context, limit, offset int, contractorId string) ([]models.Review, error) {
	query := `
	SELECT
		id, contractor_id, author_name, rating, comment, created_at
	FROM external_reviews
	WHERE contractor_id = $3
	ORDER BY created_at DESC
	LIMIT $1
	OFFSET $2
	`

	rows, err := repo.db.QueryContext(ctx, query, limitParam(limit), offset, contractorId)
	if err != nil {
		return nil, fmt.Errorf("repository.Repository.GetExternalReviews: %w", err)
	}
	defer rows.Close()

	var reviews []models.Review
	for rows.Next() {
		review := models.Review{Source: models.SourceExternal}
		err = rows.Scan(&review.Id, &review.ContractorId, &review.AuthorName, &review.Rating, &review.Comment, &review.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("repository.Repository.GetExternalReviews: rows scan failed: %w", err)
		}
		reviews = append(reviews, review)
	}

	if rows.Err() != nil {
		return nil, fmt.Errorf("repository.Repository.GetExternalReviews: %w", rows.Err())
	}

	return reviews, nil
}
