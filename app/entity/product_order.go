package entity

import "time"

const (
	ProductOrderStatusPending    = "pending"
	ProductOrderStatusInProgress = "in_progress"
)

type ProductOrder struct {
	ID uint64

	ClientID      *uint64
	CustomerEmail *string
	Status        string

	SquareOrderID       *string
	AccountingInvoiceID *string

	UpdatedAt time.Time
}
