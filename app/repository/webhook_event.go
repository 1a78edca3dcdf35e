package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/vibast-solutions/ms-go-payment-webhooks/app/entity"
)

var ErrWebhookEventNotFound = errors.New("webhook event not found")

type ClaimOutcome int

const (
	// ClaimAcquired means the caller owns the delivery and must dispatch it.
	ClaimAcquired ClaimOutcome = iota
	// ClaimAlreadyProcessed means a previous delivery already mutated business state.
	ClaimAlreadyProcessed
	// ClaimInFlight means another delivery of the same event holds the processing lease.
	ClaimInFlight
)

type ClaimResult struct {
	Outcome ClaimOutcome
	Event   *entity.WebhookEvent
}

type WebhookEventFilter struct {
	Provider     string
	HasProcessed bool
	Processed    bool
	Limit        int32
	Offset       int32
}

type WebhookEventRepository struct {
	db DB
}

func NewWebhookEventRepository(db DB) *WebhookEventRepository {
	return &WebhookEventRepository{db: db}
}

const webhookEventColumns = `
	id, provider, external_event_id, event_type, payload,
	is_processed, attempts, error_message, processed_at, locked_until,
	created_at, updated_at
`

// Claim stores the delivery and decides, atomically per (provider, external_event_id),
// whether the caller may dispatch it. Deliveries without an external id are always
// stored as a new row and acquired.
//
// The insert runs on its own so a first delivery never holds a gap lock; only a
// duplicate key falls through to locking the existing row.
func (r *WebhookEventRepository) Claim(ctx context.Context, event *entity.WebhookEvent, lease time.Duration, now time.Time) (*ClaimResult, error) {
	lockedUntil := now.Add(lease)
	event.Attempts = 1
	event.LockedUntil = &lockedUntil
	event.CreatedAt = now
	event.UpdatedAt = now
	if event.ExternalEventID != nil && strings.TrimSpace(*event.ExternalEventID) == "" {
		event.ExternalEventID = nil
	}

	err := insertWebhookEvent(ctx, r.db, event)
	switch {
	case err == nil:
		return &ClaimResult{Outcome: ClaimAcquired, Event: event}, nil
	case event.ExternalEventID == nil:
		return nil, err
	case isDeadlockError(err):
		return &ClaimResult{Outcome: ClaimInFlight}, nil
	case !isDuplicateEntryError(err):
		return nil, err
	}

	return r.claimExisting(ctx, event, lockedUntil, now)
}

func (r *WebhookEventRepository) claimExisting(ctx context.Context, event *entity.WebhookEvent, lockedUntil, now time.Time) (*ClaimResult, error) {
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

	query := `SELECT ` + webhookEventColumns + `
		FROM webhook_events
		WHERE provider = ? AND external_event_id = ?
		LIMIT 1
		FOR UPDATE
	`
	existing := &entity.WebhookEvent{}
	if err := scanWebhookEvent(tx.QueryRowContext(ctx, query, event.Provider, *event.ExternalEventID), existing); err != nil {
		if isDeadlockError(err) {
			return &ClaimResult{Outcome: ClaimInFlight}, nil
		}
		return nil, err
	}

	if existing.IsProcessed {
		return &ClaimResult{Outcome: ClaimAlreadyProcessed, Event: existing}, nil
	}
	if existing.LockedUntil != nil && existing.LockedUntil.After(now) {
		return &ClaimResult{Outcome: ClaimInFlight, Event: existing}, nil
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE webhook_events SET
			event_type = ?,
			payload = ?,
			attempts = attempts + 1,
			locked_until = ?,
			updated_at = ?
		WHERE id = ?
	`, event.EventType, event.Payload, lockedUntil, now, existing.ID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true

	existing.EventType = event.EventType
	existing.Payload = event.Payload
	existing.Attempts++
	existing.LockedUntil = &lockedUntil
	existing.UpdatedAt = now
	*event = *existing

	return &ClaimResult{Outcome: ClaimAcquired, Event: existing}, nil
}

// ClaimByID takes the processing lease on a stored event so it can be replayed.
func (r *WebhookEventRepository) ClaimByID(ctx context.Context, id uint64, lease time.Duration, now time.Time) (*ClaimResult, error) {
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

	query := `SELECT ` + webhookEventColumns + ` FROM webhook_events WHERE id = ? FOR UPDATE`
	event := &entity.WebhookEvent{}
	if err := scanWebhookEvent(tx.QueryRowContext(ctx, query, id), event); errors.Is(err, sql.ErrNoRows) {
		return nil, ErrWebhookEventNotFound
	} else if err != nil {
		return nil, err
	}

	if event.IsProcessed {
		return &ClaimResult{Outcome: ClaimAlreadyProcessed, Event: event}, nil
	}
	if event.LockedUntil != nil && event.LockedUntil.After(now) {
		return &ClaimResult{Outcome: ClaimInFlight, Event: event}, nil
	}

	lockedUntil := now.Add(lease)
	if _, err := tx.ExecContext(ctx, `
		UPDATE webhook_events SET attempts = attempts + 1, locked_until = ?, updated_at = ? WHERE id = ?
	`, lockedUntil, now, id); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true

	event.Attempts++
	event.LockedUntil = &lockedUntil
	event.UpdatedAt = now
	return &ClaimResult{Outcome: ClaimAcquired, Event: event}, nil
}

func (r *WebhookEventRepository) MarkProcessed(ctx context.Context, id uint64, now time.Time) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE webhook_events SET
			is_processed = 1,
			processed_at = ?,
			error_message = NULL,
			locked_until = NULL,
			updated_at = ?
		WHERE id = ?
	`, now, now, id)
	if err != nil {
		return err
	}
	return requireAffected(result, ErrWebhookEventNotFound)
}

func (r *WebhookEventRepository) MarkFailed(ctx context.Context, id uint64, message string, now time.Time) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE webhook_events SET
			error_message = ?,
			locked_until = NULL,
			updated_at = ?
		WHERE id = ?
	`, message, now, id)
	if err != nil {
		return err
	}
	return requireAffected(result, ErrWebhookEventNotFound)
}

func (r *WebhookEventRepository) FindByID(ctx context.Context, id uint64) (*entity.WebhookEvent, error) {
	query := `SELECT ` + webhookEventColumns + ` FROM webhook_events WHERE id = ?`

	event := &entity.WebhookEvent{}
	if err := scanWebhookEvent(r.db.QueryRowContext(ctx, query, id), event); errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	return event, nil
}

func (r *WebhookEventRepository) List(ctx context.Context, filter WebhookEventFilter) ([]*entity.WebhookEvent, error) {
	query := `SELECT ` + webhookEventColumns + ` FROM webhook_events`

	conditions := make([]string, 0, 2)
	args := make([]interface{}, 0, 4)
	if strings.TrimSpace(filter.Provider) != "" {
		conditions = append(conditions, "provider = ?")
		args = append(args, filter.Provider)
	}
	if filter.HasProcessed {
		conditions = append(conditions, "is_processed = ?")
		args = append(args, filter.Processed)
	}
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	limit, offset := pageArgs(filter.Limit, filter.Offset)
	query += " ORDER BY id DESC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := make([]*entity.WebhookEvent, 0)
	for rows.Next() {
		item := &entity.WebhookEvent{}
		if err := scanWebhookEvent(rows, item); err != nil {
			return nil, err
		}
		events = append(events, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return events, nil
}

func insertWebhookEvent(ctx context.Context, db DBTX, event *entity.WebhookEvent) error {
	query := `
		INSERT INTO webhook_events (
			provider, external_event_id, event_type, payload,
			is_processed, attempts, error_message, processed_at, locked_until,
			created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := db.ExecContext(ctx, query,
		event.Provider,
		nullableStringValue(event.ExternalEventID),
		event.EventType,
		event.Payload,
		event.IsProcessed,
		event.Attempts,
		nullableStringValue(event.ErrorMessage),
		nullableTimeValue(event.ProcessedAt),
		nullableTimeValue(event.LockedUntil),
		event.CreatedAt,
		event.UpdatedAt,
	)
	if err != nil {
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	event.ID = uint64(id)
	return nil
}

func scanWebhookEvent(scan rowScanner, event *entity.WebhookEvent) error {
	var externalEventID sql.NullString
	var errorMessage sql.NullString
	var processedAt sql.NullTime
	var lockedUntil sql.NullTime

	err := scan.Scan(
		&event.ID,
		&event.Provider,
		&externalEventID,
		&event.EventType,
		&event.Payload,
		&event.IsProcessed,
		&event.Attempts,
		&errorMessage,
		&processedAt,
		&lockedUntil,
		&event.CreatedAt,
		&event.UpdatedAt,
	)
	if err != nil {
		return err
	}

	event.ExternalEventID = stringPtrFromNull(externalEventID)
	event.ErrorMessage = stringPtrFromNull(errorMessage)
	event.ProcessedAt = timePtrFromNull(processedAt)
	event.LockedUntil = timePtrFromNull(lockedUntil)
	return nil
}

func requireAffected(result sql.Result, notFound error) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return notFound
	}
	return nil
}
