package entity

import "time"

type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "pending"
	TransactionStatusCompleted TransactionStatus = "completed"
	TransactionStatusFailed    TransactionStatus = "failed"
	TransactionStatusUnknown   TransactionStatus = "unknown"
)

// Terminal reports whether the status is the outcome of a finished collection.
// Only completed is absorbing; a failed transaction may still be upgraded by a late success.
func (s TransactionStatus) Terminal() bool {
	return s == TransactionStatusCompleted || s == TransactionStatusFailed
}

// TransitionSources lists the statuses a transaction may leave to reach s.
// Completed is never left; failed may only be upgraded to completed.
func (s TransactionStatus) TransitionSources() []TransactionStatus {
	switch s {
	case TransactionStatusCompleted:
		return []TransactionStatus{TransactionStatusPending, TransactionStatusUnknown, TransactionStatusFailed}
	case TransactionStatusFailed, TransactionStatusPending, TransactionStatusUnknown:
		return []TransactionStatus{TransactionStatusPending, TransactionStatusUnknown}
	default:
		return nil
	}
}

func (s TransactionStatus) Valid() bool {
	switch s {
	case TransactionStatusPending, TransactionStatusCompleted, TransactionStatusFailed, TransactionStatusUnknown:
		return true
	default:
		return false
	}
}

type Transaction struct {
	ID uint64

	Reference string
	UserID    string

	Amount        int64
	Currency      string
	PaymentMethod string

	Status                TransactionStatus
	ProviderStatus        *string
	ProviderTransactionID *string
	PaymentURL            *string

	Metadata map[string]string

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (t *Transaction) Paid() bool {
	return t != nil && t.Status == TransactionStatusCompleted
}
