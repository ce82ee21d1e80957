package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/vibast-solutions/ms-go-mobile-payments/app/entity"
)

type ProfileRepository struct {
	db DBTX
}

func NewProfileRepository(db DBTX) *ProfileRepository {
	return &ProfileRepository{db: db}
}

func (r *ProfileRepository) FindByID(ctx context.Context, id string) (*entity.Profile, error) {
	query := `
		SELECT id, email, is_premium, payment_reference, last_payment_date, updated_at
		FROM profiles
		WHERE id = ?
	`

	profile := &entity.Profile{}
	var paymentReference sql.NullString
	var lastPaymentDate sql.NullTime

	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&profile.ID,
		&profile.Email,
		&profile.IsPremium,
		&paymentReference,
		&lastPaymentDate,
		&profile.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	profile.PaymentReference = stringPtrFromNull(paymentReference)
	profile.LastPaymentDate = timePtrFromNull(lastPaymentDate)
	return profile, nil
}

// GrantPremium marks the profile premium for the given payment reference. A reference
// grants at most once: a repeated call, or a replay of a reference whose subscription row
// already exists, leaves last_payment_date untouched and reports false.
func (r *ProfileRepository) GrantPremium(ctx context.Context, userID, reference string, paidAt time.Time) (bool, error) {
	query := `
		UPDATE profiles SET
			is_premium = 1,
			payment_reference = ?,
			last_payment_date = ?,
			updated_at = ?
		WHERE id = ?
		  AND (payment_reference IS NULL OR payment_reference <> ?)
		  AND NOT EXISTS (
			SELECT 1 FROM subscriptions
			WHERE subscriptions.user_id = ? AND subscriptions.transaction_reference = ?
		  )
	`

	result, err := r.db.ExecContext(ctx, query, reference, paidAt, paidAt, userID, reference, userID, reference)
	if err != nil {
		return false, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}
