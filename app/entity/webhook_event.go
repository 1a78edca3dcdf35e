package entity

import "time"

type WebhookEvent struct {
	ID uint64

	Provider        string
	ExternalEventID *string
	EventType       string
	Payload         string

	IsProcessed  bool
	Attempts     int32
	ErrorMessage *string
	ProcessedAt  *time.Time
	LockedUntil  *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}
