package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/vibast-solutions/ms-go-payment-webhooks/app/entity"
)

var ErrBookingNotFound = errors.New("booking not found")

type BookingRepository struct {
	db DBTX
}

func NewBookingRepository(db DBTX) *BookingRepository {
	return &BookingRepository{db: db}
}

const bookingColumns = `id, client_id, square_order_id, deposit_paid_in_cents, deposit_paid_at, accounting_invoice_id, updated_at`

func (r *BookingRepository) FindByID(ctx context.Context, id uint64) (*entity.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = ?`

	booking := &entity.Booking{}
	if err := scanBooking(r.db.QueryRowContext(ctx, query, id), booking); errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	return booking, nil
}

func (r *BookingRepository) FindBySquareOrderID(ctx context.Context, squareOrderID string) (*entity.Booking, error) {
	squareOrderID = strings.TrimSpace(squareOrderID)
	if squareOrderID == "" {
		return nil, nil
	}

	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE square_order_id = ? ORDER BY id ASC LIMIT 1`

	booking := &entity.Booking{}
	if err := scanBooking(r.db.QueryRowContext(ctx, query, squareOrderID), booking); errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	return booking, nil
}

func updateBookingDeposit(ctx context.Context, db DBTX, id uint64, amountInCents int64, paidAt time.Time) error {
	result, err := db.ExecContext(ctx, `
		UPDATE bookings SET deposit_paid_in_cents = ?, deposit_paid_at = ?, updated_at = ? WHERE id = ?
	`, amountInCents, paidAt, paidAt, id)
	if err != nil {
		return err
	}
	return requireAffected(result, ErrBookingNotFound)
}

func scanBooking(scan rowScanner, booking *entity.Booking) error {
	var squareOrderID sql.NullString
	var depositPaidAt sql.NullTime
	var invoiceID sql.NullString

	if err := scan.Scan(
		&booking.ID,
		&booking.ClientID,
		&squareOrderID,
		&booking.DepositPaidInCents,
		&depositPaidAt,
		&invoiceID,
		&booking.UpdatedAt,
	); err != nil {
		return err
	}

	booking.SquareOrderID = stringPtrFromNull(squareOrderID)
	booking.DepositPaidAt = timePtrFromNull(depositPaidAt)
	booking.AccountingInvoiceID = stringPtrFromNull(invoiceID)
	return nil
}
