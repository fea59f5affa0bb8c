package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"homebids/internal/models"
)

const messageColumns = `id, mission_id, contractor_id, sender_id, sender_role, content, created_at, read_at`

func scanMessage(row rowScanner) (models.Message, error) {
	var msg models.Message
	var readAt sql.NullTime
	err := row.Scan(&msg.Id, &msg.MissionId, &msg.ContractorId, &msg.SenderId, &msg.SenderRole, &msg.Content, &msg.CreatedAt, &readAt)
	if readAt.Valid {
		msg.ReadAt = &readAt.Time
	}
	return msg, err
}

// SendMessage stores msg if the conversation gate lets its sender write. The
// bid row is locked while the latest message is read, so two concurrent sends
// from the same contractor cannot both pass.
func (repo *Repository) SendMessage(ctx context.Context, msg models.Message) (models.Message, error) {
	err := repo.inTx(ctx, func(tx *sql.Tx) error {
		bid, err := repo.getBidByPair(ctx, tx, msg.MissionId, msg.ContractorId, "FOR UPDATE")
		if err != nil {
			return err
		}

		var last models.Role
		row := tx.QueryRowContext(ctx, `
		SELECT sender_role
		FROM messages
		WHERE mission_id = $1 AND contractor_id = $2
		ORDER BY created_at DESC, id DESC
		LIMIT 1
		`, msg.MissionId, msg.ContractorId)
		err = row.Scan(&last)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return err
		}

		if !models.CanSend(msg.SenderRole, last, bid.Status) {
			return models.ErrMessageLimitReached
		}

		msg, err = repo.insertMessage(ctx, tx, msg)
		return err
	})
	if err != nil {
		return models.Message{}, fmt.Errorf("repository.Repository.SendMessage: %w", err)
	}

	return msg, nil
}

func (repo *Repository) insertMessage(ctx context.Context, tx *sql.Tx, msg models.Message) (models.Message, error) {
	row := tx.QueryRowContext(ctx, `
	INSERT INTO messages (mission_id, contractor_id, sender_id, sender_role, content)
	VALUES
		($1, $2, $3, $4, $5)
	RETURNING
	`+messageColumns, msg.MissionId, msg.ContractorId, msg.SenderId, msg.SenderRole, msg.Content)
	return scanMessage(row)
}

func (repo *Repository) GetMessages(ctx context.Context, missionId, contractorId string) ([]models.Message, error) {
	rows, err := repo.db.QueryContext(ctx, `
	SELECT
		`+messageColumns+`
	FROM messages
	WHERE mission_id = $1 AND contractor_id = $2
	ORDER BY created_at, id
	`, missionId, contractorId)
	if err != nil {
		return nil, fmt.Errorf("repository.Repository.GetMessages: %w", err)
	}
	defer rows.Close()

	var result []models.Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("repository.Repository.GetMessages: rows scan error: %w", err)
		}
		result = append(result, msg)
	}

	if rows.Err() != nil {
		return nil, fmt.Errorf("repository.Repository.GetMessages: %w", rows.Err())
	}

	return result, nil
}

// MarkMessagesRead stamps every unread message written by the other party
// and returns how many were updated.
func (repo *Repository) MarkMessagesRead(ctx context.Context, missionId, contractorId string, reader models.Role) (int64, error) {
	res, err := repo.db.ExecContext(ctx, `
	UPDATE messages
	SET read_at = CURRENT_TIMESTAMP
	WHERE mission_id = $1 AND contractor_id = $2 AND sender_role <> $3 AND read_at IS NULL
	`, missionId, contractorId, reader)
	if err != nil {
		return 0, fmt.Errorf("repository.Repository.MarkMessagesRead: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("repository.Repository.MarkMessagesRead: %w", err)
	}
	return n, nil
}
