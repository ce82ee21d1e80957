package repository

import (
	"context"
	"database/sql"

	"github.com/vibast-solutions/ms-go-mobile-payments/app/entity"
)

type PaymentEventRepository struct {
	db DBTX
}

func NewPaymentEventRepository(db DBTX) *PaymentEventRepository {
	return &PaymentEventRepository{db: db}
}

func (r *PaymentEventRepository) Create(ctx context.Context, event *entity.PaymentEvent) error {
	query := `
		INSERT INTO payment_events (
			transaction_id, reference, event_type, source, old_status, new_status, payload_json, created_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		event.TransactionID,
		event.Reference,
		event.EventType,
		event.Source,
		nullableStringValue(event.OldStatus),
		event.NewStatus,
		nullableStringValue(event.PayloadJSON),
		event.CreatedAt,
	)
	if err != nil {
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	event.ID = uint64(id)

	return nil
}

func (r *PaymentEventRepository) ListByTransaction(ctx context.Context, transactionID uint64) ([]*entity.PaymentEvent, error) {
	query := `
		SELECT id, transaction_id, reference, event_type, source, old_status, new_status, payload_json, created_at
		FROM payment_events
		WHERE transaction_id = ?
		ORDER BY id ASC
	`

	rows, err := r.db.QueryContext(ctx, query, transactionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := make([]*entity.PaymentEvent, 0)
	for rows.Next() {
		event := &entity.PaymentEvent{}
		var oldStatus, payloadJSON sql.NullString
		if err := rows.Scan(
			&event.ID,
			&event.TransactionID,
			&event.Reference,
			&event.EventType,
			&event.Source,
			&oldStatus,
			&event.NewStatus,
			&payloadJSON,
			&event.CreatedAt,
		); err != nil {
			return nil, err
		}
		event.OldStatus = stringPtrFromNull(oldStatus)
		event.PayloadJSON = stringPtrFromNull(payloadJSON)
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return events, nil
}
