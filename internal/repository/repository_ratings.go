package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"homebids/internal/models"
)

// RatingStats is the raw material for one contractor's rating summary.
type RatingStats struct {
	ContractorId  string
	PlatformSum   int
	PlatformCount int
	External      models.ExternalRating
}

func (s RatingStats) Combine() models.ContractorRatings {
	return models.CombineRatings(s.ContractorId, s.PlatformSum, s.PlatformCount, s.External)
}

func (repo *Repository) GetRatingStats(ctx context.Context, contractorId string) (RatingStats, error) {
	stats := RatingStats{ContractorId: contractorId}

	row := repo.db.QueryRowContext(ctx, `SELECT COALESCE(SUM(rating), 0), COUNT(*) FROM reviews WHERE contractor_id = $1 AND deleted_at IS NULL`, contractorId)
	err := row.Scan(&stats.PlatformSum, &stats.PlatformCount)
	if err != nil {
		return stats, fmt.Errorf("repository.Repository.GetRatingStats: %w", err)
	}

	stats.External, err = repo.GetExternalRating(ctx, contractorId)
	if err != nil {
		return stats, fmt.Errorf("repository.Repository.GetRatingStats: %w", err)
	}

	return stats, nil
}

func (repo *Repository) GetExternalRating(ctx context.Context, contractorId string) (models.ExternalRating, error) {
	rating := models.ExternalRating{ContractorId: contractorId}

	row := repo.db.QueryRowContext(ctx, `SELECT average, review_count, fetched_at FROM external_ratings WHERE contractor_id = $1`, contractorId)
	err := row.Scan(&rating.Average, &rating.Count, &rating.FetchedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return rating, nil
	} else if err != nil {
		return rating, fmt.Errorf("repository.Repository.GetExternalRating: %w", err)
	}

	return rating, nil
}

// AllRatingStats returns stats for every contractor with at least one review
// in either pool.
func (repo *Repository) AllRatingStats(ctx context.Context) ([]RatingStats, error) {
	query := `
	SELECT
		COALESCE(p.contractor_id, e.contractor_id),
		COALESCE(p.total, 0),
		COALESCE(p.n, 0),
		COALESCE(e.average, 0),
		COALESCE(e.review_count, 0)
	FROM
		(SELECT contractor_id, SUM(rating) AS total, COUNT(*) AS n FROM reviews WHERE deleted_at IS NULL GROUP BY contractor_id) AS p
		FULL OUTER JOIN external_ratings AS e
			ON (p.contractor_id = e.contractor_id)
	WHERE COALESCE(p.n, 0) + COALESCE(e.review_count, 0) > 0
	`

	rows, err := repo.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("repository.Repository.AllRatingStats: %w", err)
	}
	defer rows.Close()

	var result []RatingStats
	for rows.Next() {
		var s RatingStats
		err = rows.Scan(&s.ContractorId, &s.PlatformSum, &s.PlatformCount, &s.External.Average, &s.External.Count)
		if err != nil {
			return nil, fmt.Errorf("repository.Repository.AllRatingStats: rows scan failed: %w", err)
		}
		s.External.ContractorId = s.ContractorId
		result = append(result, s)
	}

	if rows.Err() != nil {
		return nil, fmt.Errorf("repository.Repository.AllRatingStats: %w", rows.Err())
	}

	return result, nil
}

// SaveExternalSnapshot upserts the feed's aggregates and raw reviews. The
// snapshot replaces previous values per contractor; contractors absent from
// it keep their last known rating.
func (repo *Repository) SaveExternalSnapshot(ctx context.Context, ratings []models.ExternalRating, reviews []models.Review) error {
	err := repo.inTx(ctx, func(tx *sql.Tx) error {
		for _, r := range ratings {
			_, err := tx.ExecContext(ctx, `
			INSERT INTO external_ratings (contractor_id, average, review_count, fetched_at)
			VALUES
				($1, $2, $3, $4)
			ON CONFLICT (contractor_id) DO UPDATE SET (average, review_count, fetched_at) = ($2, $3, $4)
			`, r.ContractorId, r.Average, r.Count, r.FetchedAt)
			if err != nil {
				return fmt.Errorf("rating for %s: %w", r.ContractorId, err)
			}
		}

		for _, r := range reviews {
			_, err := tx.ExecContext(ctx, `
			INSERT INTO external_reviews (id, contractor_id, author_name, rating, comment, created_at)
			VALUES
				($1, $2, $3, $4, $5, $6)
			ON CONFLICT (id) DO UPDATE SET (author_name, rating, comment) = ($3, $4, $5)
			`, r.Id, r.ContractorId, r.AuthorName, r.Rating, r.Comment, r.CreatedAt)
			if err != nil {
				return fmt.Errorf("review %s: %w", r.Id, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("repository.Repository.SaveExternalSnapshot: %w", err)
	}
	return nil
}
