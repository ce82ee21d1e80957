package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/vibast-solutions/ms-go-mobile-payments/app/entity"
)

var ErrSubscriptionAlreadyExists = errors.New("subscription already exists")

type SubscriptionRepository struct {
	db DBTX
}

func NewSubscriptionRepository(db DBTX) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

func (r *SubscriptionRepository) Create(ctx context.Context, subscription *entity.Subscription) error {
	query := `
		INSERT INTO subscriptions (
			user_id, plan, status, transaction_reference, starts_at, expires_at, created_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		subscription.UserID,
		subscription.Plan,
		subscription.Status,
		subscription.TransactionReference,
		subscription.StartsAt,
		subscription.ExpiresAt,
		subscription.CreatedAt,
	)
	if err != nil {
		if isDuplicateEntryError(err) {
			return ErrSubscriptionAlreadyExists
		}
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	subscription.ID = uint64(id)
	return nil
}

func (r *SubscriptionRepository) FindByUserReference(ctx context.Context, userID, reference string) (*entity.Subscription, error) {
	query := `
		SELECT id, user_id, plan, status, transaction_reference, starts_at, expires_at, created_at
		FROM subscriptions
		WHERE user_id = ? AND transaction_reference = ?
		LIMIT 1
	`

	subscription := &entity.Subscription{}
	err := r.db.QueryRowContext(ctx, query, userID, reference).Scan(
		&subscription.ID,
		&subscription.UserID,
		&subscription.Plan,
		&subscription.Status,
		&subscription.TransactionReference,
		&subscription.StartsAt,
		&subscription.ExpiresAt,
		&subscription.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return subscription, nil
}
