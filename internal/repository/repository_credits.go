package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"homebids/internal/models"
)

func (repo *Repository) GetCreditAccount(ctx context.Context, contractorId string) (models.CreditAccount, error) {
	account := models.CreditAccount{ContractorId: contractorId}

	row := repo.db.QueryRowContext(ctx, `SELECT balance, updated_at FROM credit_accounts WHERE contractor_id = $1`, contractorId)
	err := row.Scan(&account.Balance, &account.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return account, nil
	} else if err != nil {
		return account, fmt.Errorf("repository.Repository.GetCreditAccount: %w", err)
	}

	return account, nil
}

// GrantCredits tops up a contractor's balance, opening the account on first use.
func (repo *Repository) GrantCredits(ctx context.Context, contractorId string, amount models.Credits) (models.CreditEntry, error) {
	var entry models.CreditEntry

	err := repo.inTx(ctx, func(tx *sql.Tx) error {
		var balance models.Credits
		row := tx.QueryRowContext(ctx, `
		INSERT INTO credit_accounts (contractor_id, balance)
		VALUES
			($1, $2)
		ON CONFLICT (contractor_id) DO UPDATE SET (balance, updated_at) = (credit_accounts.balance + $2, CURRENT_TIMESTAMP)
		RETURNING balance
		`, contractorId, amount)
		if err := row.Scan(&balance); err != nil {
			return err
		}

		var err error
		entry, err = repo.addCreditEntry(ctx, tx, models.CreditEntry{
			ContractorId: contractorId,
			Kind:         models.EntryGrant,
			Amount:       amount,
			BalanceAfter: balance,
		})
		return err
	})
	if err != nil {
		return entry, fmt.Errorf("repository.Repository.GrantCredits: %w", err)
	}

	return entry, nil
}

// debit takes cost from the locked account and returns the new balance. A
// missing account is treated as an empty one.
func (repo *Repository) debit(ctx context.Context, tx *sql.Tx, contractorId string, cost models.Credits) (models.Credits, error) {
	var balance models.Credits
	row := tx.QueryRowContext(ctx, `SELECT balance FROM credit_accounts WHERE contractor_id = $1 FOR UPDATE`, contractorId)
	err := row.Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, models.ErrInsufficientCredits
	} else if err != nil {
		return 0, err
	}

	if balance < cost {
		return balance, models.ErrInsufficientCredits
	}

	row = tx.QueryRowContext(ctx, `
	UPDATE credit_accounts
	SET (balance, updated_at) = (balance - $1, CURRENT_TIMESTAMP)
	WHERE contractor_id = $2
	RETURNING balance
	`, cost, contractorId)
	err = row.Scan(&balance)
	if isConstraintViolation(err, pqCheckViolation, "") {
		return 0, models.ErrInsufficientCredits
	}
	return balance, err
}

func (repo *Repository) addCreditEntry(ctx context.Context, tx *sql.Tx, entry models.CreditEntry) (models.CreditEntry, error) {
	row := tx.QueryRowContext(ctx, `
	INSERT INTO credit_entries (contractor_id, bid_id, kind, amount, balance_after)
	VALUES
		($1, $2, $3, $4, $5)
	RETURNING id, created_at
	`, entry.ContractorId, nullString(entry.BidId), entry.Kind, entry.Amount, entry.BalanceAfter)
	err := row.Scan(&entry.Id, &entry.CreatedAt)
	return entry, err
}

// RefundBid returns a bid's cost to its contractor. Only a rejected bid, or
// any non-accepted bid on a completed or cancelled mission, can be refunded.
// Refunding is idempotent: a bid that was already refunded yields the
// original entry and false.
func (repo *Repository) RefundBid(ctx context.Context, bidId string) (models.CreditEntry, bool, error) {
	var entry models.CreditEntry
	var created bool

	err := repo.inTx(ctx, func(tx *sql.Tx) error {
		bid, err := repo.getBid(ctx, tx, bidId, "")
		if err != nil {
			return err
		}

		// mission first, then bid: the same lock order as TransitionBid
		mission, err := repo.getMission(ctx, tx, bid.MissionId, "FOR UPDATE")
		if err != nil {
			return err
		}
		bid, err = repo.getBid(ctx, tx, bidId, "FOR UPDATE")
		if err != nil {
			return err
		}

		if !models.Refundable(bid.Status, mission.Status) {
			return &models.InvalidTransitionError{From: string(bid.Status), To: string(models.EntryRefund)}
		}

		entry, created, err = repo.refundBidTx(ctx, tx, bid)
		return err
	})
	if err != nil {
		return entry, false, fmt.Errorf("repository.Repository.RefundBid: %w", err)
	}

	return entry, created, nil
}

func (repo *Repository) hasRefund(ctx context.Context, tx *sql.Tx, bidId string) (bool, error) {
	var refunded bool
	row := tx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM credit_entries WHERE bid_id = $1 AND kind = 'refund')`, bidId)
	err := row.Scan(&refunded)
	return refunded, err
}

func (repo *Repository) refundBidTx(ctx context.Context, tx *sql.Tx, bid models.Bid) (models.CreditEntry, bool, error) {
	existing, err := scanCreditEntry(tx.QueryRowContext(ctx, `
	SELECT `+creditEntryColumns+`
	FROM credit_entries
	WHERE bid_id = $1 AND kind = 'refund'
	`, bid.Id))
	if err == nil {
		return existing, false, nil
	} else if !errors.Is(err, sql.ErrNoRows) {
		return existing, false, err
	}

	var balance models.Credits
	row := tx.QueryRowContext(ctx, `
	INSERT INTO credit_accounts (contractor_id, balance)
	VALUES
		($1, $2)
	ON CONFLICT (contractor_id) DO UPDATE SET (balance, updated_at) = (credit_accounts.balance + $2, CURRENT_TIMESTAMP)
	RETURNING balance
	`, bid.ContractorId, bid.Cost)
	if err = row.Scan(&balance); err != nil {
		return models.CreditEntry{}, false, err
	}

	entry, err := repo.addCreditEntry(ctx, tx, models.CreditEntry{
		ContractorId: bid.ContractorId,
		BidId:        bid.Id,
		Kind:         models.EntryRefund,
		Amount:       bid.Cost,
		BalanceAfter: balance,
	})
	if err != nil {
		return entry, false, err
	}
	return entry, true, nil
}

const creditEntryColumns = `id, contractor_id, bid_id, kind, amount, balance_after, created_at`

func scanCreditEntry(row rowScanner) (models.CreditEntry, error) {
	var entry models.CreditEntry
	var bidId interface{}
	err := row.Scan(&entry.Id, &entry.ContractorId, &bidId, &entry.Kind, &entry.Amount, &entry.BalanceAfter, &entry.CreatedAt)
	entry.BidId = readUUID(bidId)
	return entry, err
}

func (repo *Repository) GetCreditEntries(ctx context.Context, contractorId string, limit, offset int) ([]models.CreditEntry, error) {
	query := `
	SELECT
		` + creditEntryColumns + `
	FROM credit_entries
	WHERE contractor_id = $3
	ORDER BY created_at DESC
	LIMIT $1
	OFFSET $2
	`

	rows, err := repo.db.QueryContext(ctx, query, limitParam(limit), offset, contractorId)
	if err != nil {
		return nil, fmt.Errorf("repository.Repository.GetCreditEntries: %w", err)
	}
	defer rows.Close()

	var result []models.CreditEntry
	for rows.Next() {
		entry, err := scanCreditEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("repository.Repository.GetCreditEntries: rows scan error: %w", err)
		}
		result = append(result, entry)
	}

	if rows.Err() != nil {
		return nil, fmt.Errorf("repository.Repository.GetCreditEntries: %w", rows.Err())
	}

	return result, nil
}
