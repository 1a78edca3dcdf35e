package entity

import "time"

const (
	SyncDirectionInbound  = "inbound"
	SyncDirectionOutbound = "outbound"
)

const (
	SyncStatusSuccess = "success"
	SyncStatusFailed  = "failed"
	SyncStatusSkipped = "skipped"
)

// SyncLogEntry is append-only. Rows are never updated once written.
type SyncLogEntry struct {
	ID uint64

	Provider   string
	Direction  string
	Status     string
	EntityType string
	RemoteID   *string
	Message    string
	Payload    *string

	CreatedAt time.Time
}
