package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/vibast-solutions/ms-go-payment-webhooks/app/entity"
)

var ErrOutboxMessageNotFound = errors.New("outbox message not found")

type OutboxRepository struct {
	db DB
}

func NewOutboxRepository(db DB) *OutboxRepository {
	return &OutboxRepository{db: db}
}

func (r *OutboxRepository) Create(ctx context.Context, message *entity.OutboxMessage) error {
	query := `
		INSERT INTO outbox_messages (
			kind, payload_json, status, attempts, next_attempt_at, last_error, created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		message.Kind,
		message.PayloadJSON,
		message.Status,
		message.Attempts,
		nullableTimeValue(message.NextAttemptAt),
		nullableStringValue(message.LastError),
		message.CreatedAt,
		message.UpdatedAt,
	)
	if err != nil {
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	message.ID = uint64(id)
	return nil
}

func (r *OutboxRepository) Update(ctx context.Context, message *entity.OutboxMessage) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE outbox_messages SET
			status = ?,
			attempts = ?,
			next_attempt_at = ?,
			last_error = ?,
			updated_at = ?
		WHERE id = ?
	`,
		message.Status,
		message.Attempts,
		nullableTimeValue(message.NextAttemptAt),
		nullableStringValue(message.LastError),
		message.UpdatedAt,
		message.ID,
	)
	if err != nil {
		return err
	}
	return requireAffected(result, ErrOutboxMessageNotFound)
}

// ClaimDue locks up to limit due pending messages, skipping rows another
// dispatcher holds, and pushes their next_attempt_at forward by lease so a
// concurrent batch cannot select them until this one records an outcome.
func (r *OutboxRepository) ClaimDue(ctx context.Context, now time.Time, limit int32, lease time.Duration) ([]*entity.OutboxMessage, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	messages, err := listDue(ctx, tx, now, limit)
	if err != nil {
		return nil, err
	}
	if len(messages) == 0 {
		return messages, nil
	}

	leasedUntil := now.Add(lease)
	placeholders := make([]string, len(messages))
	args := make([]interface{}, 0, len(messages)+2)
	args = append(args, leasedUntil, now)
	for i, message := range messages {
		placeholders[i] = "?"
		args = append(args, message.ID)
	}
	query := `UPDATE outbox_messages SET next_attempt_at = ?, updated_at = ? WHERE id IN (` + strings.Join(placeholders, ", ") + `)`
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true

	for _, message := range messages {
		until := leasedUntil
		message.NextAttemptAt = &until
		message.UpdatedAt = now
	}
	return messages, nil
}

func listDue(ctx context.Context, db DBTX, now time.Time, limit int32) ([]*entity.OutboxMessage, error) {
	query := `
		SELECT id, kind, payload_json, status, attempts, next_attempt_at, last_error, created_at, updated_at
		FROM outbox_messages
		WHERE status = ?
		  AND next_attempt_at IS NOT NULL
		  AND next_attempt_at <= ?
		ORDER BY next_attempt_at ASC
		LIMIT ?
		FOR UPDATE SKIP LOCKED
	`

	rows, err := db.QueryContext(ctx, query, entity.OutboxStatusPending, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := make([]*entity.OutboxMessage, 0)
	for rows.Next() {
		var nextAttemptAt sql.NullTime
		var lastError sql.NullString
		item := &entity.OutboxMessage{}
		if err := rows.Scan(
			&item.ID,
			&item.Kind,
			&item.PayloadJSON,
			&item.Status,
			&item.Attempts,
			&nextAttemptAt,
			&lastError,
			&item.CreatedAt,
			&item.UpdatedAt,
		); err != nil {
			return nil, err
		}
		item.NextAttemptAt = timePtrFromNull(nextAttemptAt)
		item.LastError = stringPtrFromNull(lastError)
		messages = append(messages, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return messages, nil
}
