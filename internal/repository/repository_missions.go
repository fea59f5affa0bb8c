package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"homebids/internal/models"

	"github.com/lib/pq"
)

const missionColumns = `id, owner_id, title, service, details, postal_code, priority, hiring_likelihood, owner_tier, status, images, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMission(row rowScanner) (models.Mission, error) {
	var m models.Mission
	var images pq.StringArray
	err := row.Scan(&m.Id, &m.OwnerId, &m.Title, &m.Service, &m.Details, &m.PostalCode, &m.Priority,
		&m.HiringLikelihood, &m.OwnerTier, &m.Status, &images, &m.CreatedAt, &m.UpdatedAt)
	m.Images = []string(images)
	return m, err
}

func (repo *Repository) AddMission(ctx context.Context, m models.Mission) (models.Mission, error) {
	query := `
	INSERT INTO missions (owner_id, title, service, details, postal_code, priority, hiring_likelihood, owner_tier, status, images)
	VALUES
		($1, $2, $3, $4, $5, $6, $7, $8, 'open', $9)
	RETURNING
		` + missionColumns

	if m.Images == nil {
		m.Images = []string{}
	}

	row := repo.db.QueryRowContext(ctx, query, m.OwnerId, m.Title, m.Service, m.Details, m.PostalCode,
		m.Priority, m.HiringLikelihood, m.OwnerTier, pq.Array(m.Images))
	m, err := scanMission(row)
	if err != nil {
		return m, fmt.Errorf("repository.Repository.AddMission: %w", err)
	}
	return m, nil
}

func (repo *Repository) GetMission(ctx context.Context, id string) (models.Mission, error) {
	return repo.getMission(ctx, repo.db, id, "")
}

// getMission loads a mission through q, appending lock ("FOR UPDATE",
// "FOR SHARE") when the caller runs inside a transaction.
func (repo *Repository) getMission(ctx context.Context, q querier, id, lock string) (models.Mission, error) {
	query := `SELECT ` + missionColumns + ` FROM missions WHERE id = $1 ` + lock

	m, err := scanMission(q.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return m, fmt.Errorf("repository.Repository.getMission: %w", models.ErrNoMission)
	} else if err != nil {
		return m, fmt.Errorf("repository.Repository.getMission: %w", err)
	}
	return m, nil
}

func (repo *Repository) GetMissions(ctx context.Context, limit, offset int, ownerId string, status models.MissionStatus) ([]models.Mission, error) {
	query := `
	SELECT
		` + missionColumns + `
	FROM missions
	$conditions$
	ORDER BY created_at DESC
	LIMIT $1
	OFFSET $2
	`

	params := []interface{}{limitParam(limit), offset}
	conds := make([]string, 0, 2)

	if len(ownerId) > 0 {
		params = append(params, ownerId)
		conds = append(conds, "owner_id = $$")
	}
	if len(status) > 0 {
		params = append(params, status)
		conds = append(conds, "status = $$")
	}
	query = replaceConditions(query, conditions(2, conds))

	rows, err := repo.db.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, fmt.Errorf("repository.Repository.GetMissions: %w", err)
	}
	defer rows.Close()

	var result []models.Mission
	for rows.Next() {
		m, err := scanMission(rows)
		if err != nil {
			return nil, fmt.Errorf("repository.Repository.GetMissions: rows scan error: %w", err)
		}
		result = append(result, m)
	}

	if rows.Err() != nil {
		return nil, fmt.Errorf("repository.Repository.GetMissions: %w", rows.Err())
	}

	return result, nil
}

// UpdateMissionStatus moves a mission to status. With refundOpenBids set and
// a closing status, every bid on the mission that was not accepted gets its
// cost back in the same transaction. Only refunds issued by this call are
// returned.
func (repo *Repository) UpdateMissionStatus(ctx context.Context, id string, status models.MissionStatus, refundOpenBids bool) (models.Mission, []models.CreditEntry, error) {
	var mission models.Mission
	var refunds []models.CreditEntry

	err := repo.inTx(ctx, func(tx *sql.Tx) error {
		var err error
		mission, err = repo.getMission(ctx, tx, id, "FOR UPDATE")
		if err != nil {
			return err
		}

		if !models.CanTransitionMission(mission.Status, status) {
			return &models.InvalidTransitionError{From: string(mission.Status), To: string(status)}
		}

		row := tx.QueryRowContext(ctx, `
		UPDATE missions
		SET (status, updated_at) = ($1, CURRENT_TIMESTAMP)
		WHERE id = $2
		RETURNING updated_at
		`, status, id)
		err = row.Scan(&mission.UpdatedAt)
		if err != nil {
			return err
		}
		mission.Status = status

		if !refundOpenBids || !status.Closed() {
			return nil
		}

		bids, err := repo.lockMissionBids(ctx, tx, id)
		if err != nil {
			return err
		}
		for _, bid := range bids {
			if bid.Status == models.BidAccepted {
				continue
			}
			entry, created, err := repo.refundBidTx(ctx, tx, bid)
			if err != nil {
				return err
			}
			if created {
				refunds = append(refunds, entry)
			}
		}
		return nil
	})
	if err != nil {
		return mission, nil, fmt.Errorf("repository.Repository.UpdateMissionStatus: %w", err)
	}

	return mission, refunds, nil
}
