package entity

import "time"

const (
	EventSourceInitialize = "initialize"
	EventSourceWebhook    = "webhook"
	EventSourceVerify     = "verify"
	EventSourceJob        = "job"
	EventSourceGRPC       = "grpc"
)

const (
	EventPaymentCreated          = "payment_created"
	EventPaymentInitializeFailed = "payment_initialize_failed"
	EventPaymentReconciled       = "payment_reconciled"
	EventPremiumActivated        = "premium_activated"
	EventPaymentExpired          = "payment_expired"
)

type PaymentEvent struct {
	ID uint64

	TransactionID uint64
	Reference     string

	EventType string
	Source    string

	OldStatus *string
	NewStatus string

	PayloadJSON *string

	CreatedAt time.Time
}
