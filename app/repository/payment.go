package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/vibast-solutions/ms-go-payment-webhooks/app/entity"
)

var (
	ErrPaymentNotFound      = errors.New("payment not found")
	ErrPaymentAlreadyExists = errors.New("payment already exists")
)

type PaymentRepository struct {
	db DB
}

func NewPaymentRepository(db DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// BookingDeposit is written to the booking in the same transaction as its payment.
type BookingDeposit struct {
	BookingID     uint64
	AmountInCents int64
	PaidAt        time.Time
}

const paymentColumns = `
	id, booking_id, product_order_id, client_id,
	amount_in_cents, tip_in_cents, refunded_in_cents,
	method, status,
	square_payment_id, square_order_id, square_receipt_url,
	paid_at, refunded_at, notes,
	created_at, updated_at
`

func (r *PaymentRepository) Create(ctx context.Context, payment *entity.Payment) error {
	return insertPayment(ctx, r.db, payment)
}

// CreateWithDeposit inserts the payment and records the deposit on its booking.
// Neither write is kept if the other fails.
func (r *PaymentRepository) CreateWithDeposit(ctx context.Context, payment *entity.Payment, deposit BookingDeposit) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := insertPayment(ctx, tx, payment); err != nil {
		return err
	}
	if err := updateBookingDeposit(ctx, tx, deposit.BookingID, deposit.AmountInCents, deposit.PaidAt); err != nil {
		return err
	}
	return tx.Commit()
}

// ModifyBySquarePaymentID locks the payment row, applies modify and writes the
// result back in one transaction. It returns nil when no payment matches.
func (r *PaymentRepository) ModifyBySquarePaymentID(ctx context.Context, squarePaymentID string, modify func(payment *entity.Payment) error) (*entity.Payment, error) {
	squarePaymentID = strings.TrimSpace(squarePaymentID)
	if squarePaymentID == "" {
		return nil, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	query := `SELECT ` + paymentColumns + ` FROM payments WHERE square_payment_id = ? LIMIT 1 FOR UPDATE`

	payment := &entity.Payment{}
	if err := scanPayment(tx.QueryRowContext(ctx, query, squarePaymentID), payment); errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	} else if err != nil {
		return nil, err
	}

	if err := modify(payment); err != nil {
		return nil, err
	}
	if err := updatePayment(ctx, tx, payment); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return payment, nil
}

func insertPayment(ctx context.Context, db DBTX, payment *entity.Payment) error {
	query := `
		INSERT INTO payments (
			booking_id, product_order_id, client_id,
			amount_in_cents, tip_in_cents, refunded_in_cents,
			method, status,
			square_payment_id, square_order_id, square_receipt_url,
			paid_at, refunded_at, notes,
			created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := db.ExecContext(ctx, query,
		nullableUint64Value(payment.BookingID),
		nullableUint64Value(payment.ProductOrderID),
		nullableUint64Value(payment.ClientID),
		payment.AmountInCents,
		payment.TipInCents,
		payment.RefundedInCents,
		payment.Method,
		payment.Status,
		payment.SquarePaymentID,
		nullableStringValue(payment.SquareOrderID),
		nullableStringValue(payment.SquareReceiptURL),
		nullableTimeValue(payment.PaidAt),
		nullableTimeValue(payment.RefundedAt),
		nullableStringValue(payment.Notes),
		payment.CreatedAt,
		payment.UpdatedAt,
	)
	if err != nil {
		if isDuplicateEntryError(err) {
			return ErrPaymentAlreadyExists
		}
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	payment.ID = uint64(id)
	return nil
}

func updatePayment(ctx context.Context, db DBTX, payment *entity.Payment) error {
	query := `
		UPDATE payments SET
			booking_id = ?,
			product_order_id = ?,
			client_id = ?,
			amount_in_cents = ?,
			tip_in_cents = ?,
			refunded_in_cents = ?,
			method = ?,
			status = ?,
			square_order_id = ?,
			square_receipt_url = ?,
			paid_at = ?,
			refunded_at = ?,
			notes = ?,
			updated_at = ?
		WHERE id = ?
	`

	result, err := db.ExecContext(ctx, query,
		nullableUint64Value(payment.BookingID),
		nullableUint64Value(payment.ProductOrderID),
		nullableUint64Value(payment.ClientID),
		payment.AmountInCents,
		payment.TipInCents,
		payment.RefundedInCents,
		payment.Method,
		payment.Status,
		nullableStringValue(payment.SquareOrderID),
		nullableStringValue(payment.SquareReceiptURL),
		nullableTimeValue(payment.PaidAt),
		nullableTimeValue(payment.RefundedAt),
		nullableStringValue(payment.Notes),
		payment.UpdatedAt,
		payment.ID,
	)
	if err != nil {
		return err
	}

	return requireAffected(result, ErrPaymentNotFound)
}

func (r *PaymentRepository) FindBySquarePaymentID(ctx context.Context, squarePaymentID string) (*entity.Payment, error) {
	squarePaymentID = strings.TrimSpace(squarePaymentID)
	if squarePaymentID == "" {
		return nil, nil
	}

	query := `SELECT ` + paymentColumns + ` FROM payments WHERE square_payment_id = ? LIMIT 1`

	payment := &entity.Payment{}
	if err := scanPayment(r.db.QueryRowContext(ctx, query, squarePaymentID), payment); errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	} else if err != nil {
		return nil, err
	}

	return payment, nil
}

func scanPayment(scan rowScanner, payment *entity.Payment) error {
	var bookingID sql.NullInt64
	var productOrderID sql.NullInt64
	var clientID sql.NullInt64
	var squareOrderID sql.NullString
	var receiptURL sql.NullString
	var paidAt sql.NullTime
	var refundedAt sql.NullTime
	var notes sql.NullString

	err := scan.Scan(
		&payment.ID,
		&bookingID,
		&productOrderID,
		&clientID,
		&payment.AmountInCents,
		&payment.TipInCents,
		&payment.RefundedInCents,
		&payment.Method,
		&payment.Status,
		&payment.SquarePaymentID,
		&squareOrderID,
		&receiptURL,
		&paidAt,
		&refundedAt,
		&notes,
		&payment.CreatedAt,
		&payment.UpdatedAt,
	)
	if err != nil {
		return err
	}

	payment.BookingID = uint64PtrFromNull(bookingID)
	payment.ProductOrderID = uint64PtrFromNull(productOrderID)
	payment.ClientID = uint64PtrFromNull(clientID)
	payment.SquareOrderID = stringPtrFromNull(squareOrderID)
	payment.SquareReceiptURL = stringPtrFromNull(receiptURL)
	payment.PaidAt = timePtrFromNull(paidAt)
	payment.RefundedAt = timePtrFromNull(refundedAt)
	payment.Notes = stringPtrFromNull(notes)

	return nil
}
