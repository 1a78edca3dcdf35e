package provider

import (
	"context"
	"errors"
)

var (
	ErrInvalidSignature = errors.New("invalid webhook signature")
	ErrMalformedEvent   = errors.New("malformed webhook event")
	ErrOrderNotFound    = errors.New("order not found")
)

// Event is a provider-neutral view of one webhook delivery body.
type Event struct {
	ID      *string
	Type    string
	Payment *PaymentData
	Refund  *RefundData

	// DecodeErr is set when the body is JSON but its data does not have the expected shape.
	DecodeErr error
}

type PaymentData struct {
	ID         string
	OrderID    *string
	ReceiptURL *string
	Note       string

	AmountInCents int64
	TipInCents    int64

	// TenderType is the type of the first tender, empty when the event carries none.
	TenderType string
	HasTenders bool
}

type RefundData struct {
	ID            string
	PaymentID     string
	Status        string
	AmountInCents int64
}

type Order struct {
	ID          string
	ReferenceID string
}

type Provider interface {
	Code() string
	SignatureHeader() string
	SignatureRequired() bool
	VerifySignature(notificationURL string, body []byte, signature string) error
	ParseEvent(body []byte) (*Event, error)
	OrderLookupEnabled() bool
	GetOrder(ctx context.Context, orderID string) (*Order, error)
}
