package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"homebids/internal/models"
)

const bidColumns = `id, mission_id, contractor_id, quote, message, status, cost, viewed_by_contractor, created_at, updated_at`

func scanBid(row rowScanner) (models.Bid, error) {
	var bid models.Bid
	err := row.Scan(&bid.Id, &bid.MissionId, &bid.ContractorId, &bid.Quote, &bid.Message, &bid.Status,
		&bid.Cost, &bid.ViewedByContractor, &bid.CreatedAt, &bid.UpdatedAt)
	return bid, err
}

// SubmitBid reserves the bid's credit cost and inserts the bid, together with
// its message as the first message of the conversation, in one transaction.
// The cost is derived from the mission as stored at the time of submission.
func (repo *Repository) SubmitBid(ctx context.Context, bid models.Bid) (models.Bid, error) {
	err := repo.inTx(ctx, func(tx *sql.Tx) error {
		// shared lock keeps the mission from closing under the submission
		mission, err := repo.getMission(ctx, tx, bid.MissionId, "FOR SHARE")
		if err != nil {
			return err
		}
		if mission.Status != models.MissionOpen {
			return models.ErrMissionClosed
		}

		var exists bool
		row := tx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM bids WHERE mission_id = $1 AND contractor_id = $2)`, bid.MissionId, bid.ContractorId)
		if err = row.Scan(&exists); err != nil {
			return err
		}
		if exists {
			return models.ErrDuplicateBid
		}

		bid.Cost = models.CreditCost(mission.Priority, mission.OwnerTier)
		balance, err := repo.debit(ctx, tx, bid.ContractorId, bid.Cost)
		if err != nil {
			return err
		}

		if repo.afterDebit != nil {
			if err = repo.afterDebit(); err != nil {
				return err
			}
		}

		row = tx.QueryRowContext(ctx, `
		INSERT INTO bids (mission_id, contractor_id, quote, message, status, cost)
		VALUES
			($1, $2, $3, $4, 'pending', $5)
		RETURNING
			`+bidColumns, bid.MissionId, bid.ContractorId, bid.Quote, bid.Message, bid.Cost)
		bid, err = scanBid(row)
		if isConstraintViolation(err, pqUniqueViolation, "bids_mission_contractor_key") {
			return models.ErrDuplicateBid
		} else if err != nil {
			return err
		}

		_, err = repo.addCreditEntry(ctx, tx, models.CreditEntry{
			ContractorId: bid.ContractorId,
			BidId:        bid.Id,
			Kind:         models.EntryDebit,
			Amount:       -bid.Cost,
			BalanceAfter: balance,
		})
		if err != nil {
			return err
		}

		if len(bid.Message) == 0 {
			return nil
		}
		_, err = repo.insertMessage(ctx, tx, models.Message{
			MissionId:    bid.MissionId,
			ContractorId: bid.ContractorId,
			SenderId:     bid.ContractorId,
			SenderRole:   models.RoleContractor,
			Content:      bid.Message,
		})
		return err
	})
	if err != nil {
		return models.Bid{}, fmt.Errorf("repository.Repository.SubmitBid: %w", err)
	}

	return bid, nil
}

func (repo *Repository) GetBid(ctx context.Context, id string) (models.Bid, error) {
	bid, err := repo.getBid(ctx, repo.db, id, "")
	if err != nil {
		return bid, fmt.Errorf("repository.Repository.GetBid: %w", err)
	}
	return bid, nil
}

func (repo *Repository) GetBidByPair(ctx context.Context, missionId, contractorId string) (models.Bid, error) {
	bid, err := repo.getBidByPair(ctx, repo.db, missionId, contractorId, "")
	if err != nil {
		return bid, fmt.Errorf("repository.Repository.GetBidByPair: %w", err)
	}
	return bid, nil
}

func (repo *Repository) getBid(ctx context.Context, q querier, id, lock string) (models.Bid, error) {
	row := q.QueryRowContext(ctx, `SELECT `+bidColumns+` FROM bids WHERE id = $1 `+lock, id)
	bid, err := scanBid(row)
	if errors.Is(err, sql.ErrNoRows) {
		return bid, models.ErrNoBid
	}
	return bid, err
}

func (repo *Repository) getBidByPair(ctx context.Context, q querier, missionId, contractorId, lock string) (models.Bid, error) {
	row := q.QueryRowContext(ctx, `SELECT `+bidColumns+` FROM bids WHERE mission_id = $1 AND contractor_id = $2 `+lock, missionId, contractorId)
	bid, err := scanBid(row)
	if errors.Is(err, sql.ErrNoRows) {
		return bid, models.ErrNoBid
	}
	return bid, err
}

func (repo *Repository) GetBids(ctx context.Context, limit, offset int, missionId, contractorId string) ([]models.Bid, error) {
	query := `
	SELECT
		` + bidColumns + `
	FROM bids
	$conditions$
	ORDER BY created_at
	LIMIT $1
	OFFSET $2
	`

	params := []interface{}{limitParam(limit), offset}
	conds := make([]string, 0, 2)

	if len(missionId) > 0 {
		params = append(params, missionId)
		conds = append(conds, "mission_id = $$")
	}
	if len(contractorId) > 0 {
		params = append(params, contractorId)
		conds = append(conds, "contractor_id = $$")
	}
	query = replaceConditions(query, conditions(2, conds))

	rows, err := repo.db.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, fmt.Errorf("repository.Repository.GetBids: %w", err)
	}
	defer rows.Close()

	var result []models.Bid
	for rows.Next() {
		bid, err := scanBid(rows)
		if err != nil {
			return nil, fmt.Errorf("repository.Repository.GetBids: rows scan error: %w", err)
		}
		result = append(result, bid)
	}

	if rows.Err() != nil {
		return nil, fmt.Errorf("repository.Repository.GetBids: %w", rows.Err())
	}

	return result, nil
}

// lockMissionBids loads every bid of a mission with a row lock, in a fixed
// order so concurrent callers acquire locks the same way.
func (repo *Repository) lockMissionBids(ctx context.Context, tx *sql.Tx, missionId string) ([]models.Bid, error) {
	rows, err := tx.QueryContext(ctx, `SELECT `+bidColumns+` FROM bids WHERE mission_id = $1 ORDER BY id FOR UPDATE`, missionId)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bids []models.Bid
	for rows.Next() {
		bid, err := scanBid(rows)
		if err != nil {
			return nil, err
		}
		bids = append(bids, bid)
	}
	return bids, rows.Err()
}

func (repo *Repository) setBidStatus(ctx context.Context, tx *sql.Tx, bid *models.Bid, status models.BidStatus) error {
	row := tx.QueryRowContext(ctx, `
	UPDATE bids
	SET (status, updated_at) = ($1, CURRENT_TIMESTAMP)
	WHERE id = $2
	RETURNING updated_at
	`, status, bid.Id)
	err := row.Scan(&bid.UpdatedAt)
	if isConstraintViolation(err, pqUniqueViolation, "bids_one_considering_idx") {
		return &models.ConfirmationRequiredError{}
	} else if err != nil {
		return err
	}
	bid.Status = status
	return nil
}

// TransitionBid moves a bid to accepted or rejected. Accepting moves an open
// mission to in_progress and, with rejectSiblings, rejects every other
// undecided bid on the mission.
func (repo *Repository) TransitionBid(ctx context.Context, id string, status models.BidStatus, rejectSiblings bool) (models.Bid, error) {
	var bid models.Bid

	err := repo.inTx(ctx, func(tx *sql.Tx) error {
		var err error
		bid, err = repo.getBid(ctx, tx, id, "")
		if err != nil {
			return err
		}

		// mission first, then bid: the same lock order as SwitchConsidering
		mission, err := repo.getMission(ctx, tx, bid.MissionId, "FOR UPDATE")
		if err != nil {
			return err
		}
		bid, err = repo.getBid(ctx, tx, id, "FOR UPDATE")
		if err != nil {
			return err
		}

		if !models.CanTransitionBid(bid.Status, status) {
			return &models.InvalidTransitionError{From: string(bid.Status), To: string(status)}
		}

		if status == models.BidAccepted {
			if mission.Status.Closed() {
				return models.ErrMissionClosed
			}
			refunded, err := repo.hasRefund(ctx, tx, bid.Id)
			if err != nil {
				return err
			}
			if refunded {
				return &models.InvalidTransitionError{From: string(models.EntryRefund), To: string(status)}
			}
			if mission.Status == models.MissionOpen {
				_, err = tx.ExecContext(ctx, `UPDATE missions SET (status, updated_at) = ('in_progress', CURRENT_TIMESTAMP) WHERE id = $1`, mission.Id)
				if err != nil {
					return err
				}
			}
			if rejectSiblings {
				_, err = tx.ExecContext(ctx, `
				UPDATE bids
				SET (status, updated_at) = ('rejected', CURRENT_TIMESTAMP)
				WHERE mission_id = $1 AND id <> $2 AND status IN ('pending', 'considering')
				`, bid.MissionId, bid.Id)
				if err != nil {
					return err
				}
			}
		}

		return repo.setBidStatus(ctx, tx, &bid, status)
	})
	if err != nil {
		return models.Bid{}, fmt.Errorf("repository.Repository.TransitionBid: %w", err)
	}

	return bid, nil
}

// SwitchConsidering promotes a bid to considering. Another considering bid on
// the same mission is demoted to rejected only when confirm is set; otherwise
// a ConfirmationRequiredError naming it is returned and nothing changes.
func (repo *Repository) SwitchConsidering(ctx context.Context, id string, confirm bool) (models.Bid, *models.Bid, error) {
	var target models.Bid
	var demoted *models.Bid

	err := repo.inTx(ctx, func(tx *sql.Tx) error {
		bid, err := repo.getBid(ctx, tx, id, "")
		if err != nil {
			return err
		}

		mission, err := repo.getMission(ctx, tx, bid.MissionId, "FOR SHARE")
		if err != nil {
			return err
		}
		if mission.Status.Closed() {
			return models.ErrMissionClosed
		}

		bids, err := repo.lockMissionBids(ctx, tx, bid.MissionId)
		if err != nil {
			return err
		}

		var current *models.Bid
		found := false
		for i := range bids {
			if bids[i].Id == id {
				target = bids[i]
				found = true
			} else if bids[i].Status == models.BidConsidering {
				current = &bids[i]
			}
		}
		if !found {
			return models.ErrNoBid
		}

		if target.Status == models.BidConsidering {
			return nil
		}
		if !models.CanTransitionBid(target.Status, models.BidConsidering) {
			return &models.InvalidTransitionError{From: string(target.Status), To: string(models.BidConsidering)}
		}

		if current != nil {
			if !confirm {
				return &models.ConfirmationRequiredError{CurrentBidId: current.Id}
			}
			err = repo.setBidStatus(ctx, tx, current, models.BidRejected)
			if err != nil {
				return err
			}
			demoted = current
		}

		return repo.setBidStatus(ctx, tx, &target, models.BidConsidering)
	})
	if err != nil {
		return models.Bid{}, nil, fmt.Errorf("repository.Repository.SwitchConsidering: %w", err)
	}

	return target, demoted, nil
}

func (repo *Repository) MarkBidViewed(ctx context.Context, id string) (models.Bid, error) {
	row := repo.db.QueryRowContext(ctx, `
	UPDATE bids
	SET viewed_by_contractor = TRUE
	WHERE id = $1
	RETURNING
	`+bidColumns, id)
	bid, err := scanBid(row)
	if errors.Is(err, sql.ErrNoRows) {
		return bid, fmt.Errorf("repository.Repository.MarkBidViewed: %w", models.ErrNoBid)
	} else if err != nil {
		return bid, fmt.Errorf("repository.Repository.MarkBidViewed: %w", err)
	}
	return bid, nil
}
