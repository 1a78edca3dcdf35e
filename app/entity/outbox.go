package entity

import "time"

const (
	OutboxKindNotification = "notification"
	OutboxKindAccounting   = "accounting"
)

const (
	OutboxStatusPending   = "pending"
	OutboxStatusDelivered = "delivered"
	OutboxStatusFailed    = "failed"
)

type OutboxMessage struct {
	ID uint64

	Kind        string
	PayloadJSON string

	Status        string
	Attempts      int32
	NextAttemptAt *time.Time
	LastError     *string

	CreatedAt time.Time
	UpdatedAt time.Time
}
