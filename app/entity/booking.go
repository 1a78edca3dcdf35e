package entity

import "time"

type Booking struct {
	ID       uint64
	ClientID uint64

	SquareOrderID       *string
	DepositPaidInCents  int64
	DepositPaidAt       *time.Time
	AccountingInvoiceID *string

	UpdatedAt time.Time
}

type Client struct {
	ID    uint64
	Name  string
	Email *string
}
