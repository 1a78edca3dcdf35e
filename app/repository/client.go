package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/vibast-solutions/ms-go-payment-webhooks/app/entity"
)

type ClientRepository struct {
	db DBTX
}

func NewClientRepository(db DBTX) *ClientRepository {
	return &ClientRepository{db: db}
}

func (r *ClientRepository) FindByID(ctx context.Context, id uint64) (*entity.Client, error) {
	var email sql.NullString
	client := &entity.Client{}

	err := r.db.QueryRowContext(ctx, `SELECT id, name, email FROM clients WHERE id = ?`, id).
		Scan(&client.ID, &client.Name, &email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	client.Email = stringPtrFromNull(email)
	return client, nil
}
