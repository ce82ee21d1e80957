package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/vibast-solutions/ms-go-mobile-payments/app/entity"
)

var (
	ErrTransactionNotFound      = errors.New("transaction not found")
	ErrTransactionAlreadyExists = errors.New("transaction already exists")
	ErrInvalidTransition        = errors.New("status transition has no source statuses")
)

const transactionColumns = `
	id, reference, user_id, amount, currency, payment_method, status,
	provider_status, provider_transaction_id, payment_url, metadata_json,
	created_at, updated_at
`

// StatusUpdate carries the optional provider fields written alongside a status change.
// Nil pointers keep the stored value; Metadata is merged into the stored object.
type StatusUpdate struct {
	ProviderStatus        *string
	ProviderTransactionID *string
	PaymentURL            *string
	Metadata              map[string]string
	UpdatedAt             time.Time
}

type TransactionRepository struct {
	db DBTX
}

func NewTransactionRepository(db DBTX) *TransactionRepository {
	return &TransactionRepository{db: db}
}

func (r *TransactionRepository) Create(ctx context.Context, txn *entity.Transaction) error {
	metadataJSON, err := serializeMetadata(txn.Metadata)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO transactions (
			reference, user_id, amount, currency, payment_method, status,
			provider_status, provider_transaction_id, payment_url, metadata_json,
			created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		txn.Reference,
		txn.UserID,
		txn.Amount,
		txn.Currency,
		txn.PaymentMethod,
		string(txn.Status),
		nullableStringValue(txn.ProviderStatus),
		nullableStringValue(txn.ProviderTransactionID),
		nullableStringValue(txn.PaymentURL),
		metadataJSON,
		txn.CreatedAt,
		txn.UpdatedAt,
	)
	if err != nil {
		if isDuplicateEntryError(err) {
			return ErrTransactionAlreadyExists
		}
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	txn.ID = uint64(id)
	return nil
}

func (r *TransactionRepository) FindByReference(ctx context.Context, reference string) (*entity.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE reference = ? LIMIT 1`

	txn := &entity.Transaction{}
	if err := scanTransaction(r.db.QueryRowContext(ctx, query, reference), txn); err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, err
	}

	return txn, nil
}

func (r *TransactionRepository) FindByReferenceForUser(ctx context.Context, reference, userID string) (*entity.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE reference = ? AND user_id = ? LIMIT 1`

	txn := &entity.Transaction{}
	if err := scanTransaction(r.db.QueryRowContext(ctx, query, reference, userID), txn); err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, err
	}

	return txn, nil
}

// TransitionStatus moves the transaction to status `to` only while its current status is
// one of `from`. It reports whether this call performed the change.
func (r *TransactionRepository) TransitionStatus(ctx context.Context, reference string, to entity.TransactionStatus, from []entity.TransactionStatus, update StatusUpdate) (bool, error) {
	if len(from) == 0 {
		return false, ErrInvalidTransition
	}

	metadataJSON, err := serializeMetadata(update.Metadata)
	if err != nil {
		return false, err
	}

	marks, statusArgs := statusPlaceholders(from)
	query := `
		UPDATE transactions SET
			status = ?,
			provider_status = COALESCE(?, provider_status),
			provider_transaction_id = COALESCE(?, provider_transaction_id),
			payment_url = COALESCE(?, payment_url),
			metadata_json = JSON_MERGE_PATCH(metadata_json, ?),
			updated_at = ?
		WHERE reference = ? AND status IN (` + marks + `)
	`

	args := []interface{}{
		string(to),
		nullableStringValue(update.ProviderStatus),
		nullableStringValue(update.ProviderTransactionID),
		nullableStringValue(update.PaymentURL),
		metadataJSON,
		update.UpdatedAt,
		reference,
	}
	args = append(args, statusArgs...)

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

// AttachCheckout records the provider's collection answer without touching the status.
func (r *TransactionRepository) AttachCheckout(ctx context.Context, reference string, update StatusUpdate) error {
	metadataJSON, err := serializeMetadata(update.Metadata)
	if err != nil {
		return err
	}

	query := `
		UPDATE transactions SET
			provider_status = COALESCE(?, provider_status),
			provider_transaction_id = COALESCE(?, provider_transaction_id),
			payment_url = COALESCE(?, payment_url),
			metadata_json = JSON_MERGE_PATCH(metadata_json, ?),
			updated_at = ?
		WHERE reference = ?
	`

	result, err := r.db.ExecContext(ctx, query,
		nullableStringValue(update.ProviderStatus),
		nullableStringValue(update.ProviderTransactionID),
		nullableStringValue(update.PaymentURL),
		metadataJSON,
		update.UpdatedAt,
		reference,
	)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrTransactionNotFound
	}
	return nil
}

// ListForReconcile returns open transactions that reached the provider and have not been
// touched since `before`.
func (r *TransactionRepository) ListForReconcile(ctx context.Context, before time.Time, limit int32) ([]*entity.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE status IN (?, ?)
		  AND payment_url IS NOT NULL
		  AND updated_at <= ?
		ORDER BY updated_at ASC
		LIMIT ?
	`

	return r.list(ctx, query,
		string(entity.TransactionStatusPending),
		string(entity.TransactionStatusUnknown),
		before,
		limit,
	)
}

func (r *TransactionRepository) ListExpiredPending(ctx context.Context, cutoff time.Time, limit int32) ([]*entity.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE status IN (?, ?)
		  AND created_at <= ?
		ORDER BY created_at ASC
		LIMIT ?
	`

	return r.list(ctx, query,
		string(entity.TransactionStatusPending),
		string(entity.TransactionStatusUnknown),
		cutoff,
		limit,
	)
}

func (r *TransactionRepository) list(ctx context.Context, query string, args ...interface{}) ([]*entity.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]*entity.Transaction, 0)
	for rows.Next() {
		txn := &entity.Transaction{}
		if err := scanTransaction(rows, txn); err != nil {
			return nil, err
		}
		items = append(items, txn)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return items, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTransaction(scan rowScanner, txn *entity.Transaction) error {
	var status string
	var providerStatus sql.NullString
	var providerTransactionID sql.NullString
	var paymentURL sql.NullString
	var metadataJSON string

	err := scan.Scan(
		&txn.ID,
		&txn.Reference,
		&txn.UserID,
		&txn.Amount,
		&txn.Currency,
		&txn.PaymentMethod,
		&status,
		&providerStatus,
		&providerTransactionID,
		&paymentURL,
		&metadataJSON,
		&txn.CreatedAt,
		&txn.UpdatedAt,
	)
	if err != nil {
		return err
	}

	txn.Status = entity.TransactionStatus(status)
	txn.ProviderStatus = stringPtrFromNull(providerStatus)
	txn.ProviderTransactionID = stringPtrFromNull(providerTransactionID)
	txn.PaymentURL = stringPtrFromNull(paymentURL)

	metadata, err := parseMetadata(metadataJSON)
	if err != nil {
		return err
	}
	txn.Metadata = metadata

	return nil
}
