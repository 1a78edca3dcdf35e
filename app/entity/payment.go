package entity

import "time"

const (
	PaymentStatusPending           = "pending"
	PaymentStatusPaid              = "paid"
	PaymentStatusPartiallyRefunded = "partially_refunded"
	PaymentStatusRefunded          = "refunded"
	PaymentStatusFailed            = "failed"
)

const (
	PaymentMethodCard     = "card"
	PaymentMethodCash     = "cash"
	PaymentMethodWallet   = "wallet"
	PaymentMethodGiftCard = "gift_card"
	PaymentMethodOther    = "other"
)

type Payment struct {
	ID uint64

	BookingID      *uint64
	ProductOrderID *uint64
	ClientID       *uint64

	AmountInCents   int64
	TipInCents      int64
	RefundedInCents int64

	Method string
	Status string

	SquarePaymentID  string
	SquareOrderID    *string
	SquareReceiptURL *string

	PaidAt     *time.Time
	RefundedAt *time.Time
	Notes      *string

	CreatedAt time.Time
	UpdatedAt time.Time
}
