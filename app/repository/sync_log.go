package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/vibast-solutions/ms-go-payment-webhooks/app/entity"
)

type SyncLogFilter struct {
	Status    string
	Direction string
	Limit     int32
	Offset    int32
}

type SyncLogRepository struct {
	db DBTX
}

func NewSyncLogRepository(db DBTX) *SyncLogRepository {
	return &SyncLogRepository{db: db}
}

func (r *SyncLogRepository) Create(ctx context.Context, entry *entity.SyncLogEntry) error {
	query := `
		INSERT INTO sync_log_entries (
			provider, direction, status, entity_type, remote_id, message, payload, created_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		entry.Provider,
		entry.Direction,
		entry.Status,
		entry.EntityType,
		nullableStringValue(entry.RemoteID),
		entry.Message,
		nullableStringValue(entry.Payload),
		entry.CreatedAt,
	)
	if err != nil {
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	entry.ID = uint64(id)

	return nil
}

func (r *SyncLogRepository) List(ctx context.Context, filter SyncLogFilter) ([]*entity.SyncLogEntry, error) {
	query := `
		SELECT id, provider, direction, status, entity_type, remote_id, message, payload, created_at
		FROM sync_log_entries
	`

	conditions := make([]string, 0, 2)
	args := make([]interface{}, 0, 4)
	if strings.TrimSpace(filter.Status) != "" {
		conditions = append(conditions, "status = ?")
		args = append(args, filter.Status)
	}
	if strings.TrimSpace(filter.Direction) != "" {
		conditions = append(conditions, "direction = ?")
		args = append(args, filter.Direction)
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

	entries := make([]*entity.SyncLogEntry, 0)
	for rows.Next() {
		var remoteID sql.NullString
		var payload sql.NullString
		item := &entity.SyncLogEntry{}
		if err := rows.Scan(
			&item.ID,
			&item.Provider,
			&item.Direction,
			&item.Status,
			&item.EntityType,
			&remoteID,
			&item.Message,
			&payload,
			&item.CreatedAt,
		); err != nil {
			return nil, err
		}
		item.RemoteID = stringPtrFromNull(remoteID)
		item.Payload = stringPtrFromNull(payload)
		entries = append(entries, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return entries, nil
}
