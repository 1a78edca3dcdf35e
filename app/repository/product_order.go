package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/vibast-solutions/ms-go-payment-webhooks/app/entity"
)

var ErrProductOrderNotFound = errors.New("product order not found")

type ProductOrderRepository struct {
	db DBTX
}

func NewProductOrderRepository(db DBTX) *ProductOrderRepository {
	return &ProductOrderRepository{db: db}
}

func (r *ProductOrderRepository) FindBySquareOrderID(ctx context.Context, squareOrderID string) (*entity.ProductOrder, error) {
	squareOrderID = strings.TrimSpace(squareOrderID)
	if squareOrderID == "" {
		return nil, nil
	}

	query := `
		SELECT id, client_id, customer_email, status, square_order_id, accounting_invoice_id, updated_at
		FROM product_orders
		WHERE square_order_id = ?
		ORDER BY id ASC
		LIMIT 1
	`

	var clientID sql.NullInt64
	var customerEmail sql.NullString
	var orderRef sql.NullString
	var invoiceID sql.NullString
	order := &entity.ProductOrder{}

	err := r.db.QueryRowContext(ctx, query, squareOrderID).Scan(
		&order.ID,
		&clientID,
		&customerEmail,
		&order.Status,
		&orderRef,
		&invoiceID,
		&order.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	order.ClientID = uint64PtrFromNull(clientID)
	order.CustomerEmail = stringPtrFromNull(customerEmail)
	order.SquareOrderID = stringPtrFromNull(orderRef)
	order.AccountingInvoiceID = stringPtrFromNull(invoiceID)
	return order, nil
}

func (r *ProductOrderRepository) UpdateStatus(ctx context.Context, id uint64, status string, now time.Time) error {
	result, err := r.db.ExecContext(ctx, `UPDATE product_orders SET status = ?, updated_at = ? WHERE id = ?`, status, now, id)
	if err != nil {
		return err
	}
	return requireAffected(result, ErrProductOrderNotFound)
}
