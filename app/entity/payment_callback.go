package entity

import "time"

const (
	PaymentCallbackStatusProcessed int32 = 10
	PaymentCallbackStatusRejected  int32 = 20
)

type PaymentCallback struct {
	ID uint64

	TransactionID *uint64

	Provider    string
	Reference   string
	Signature   string
	PayloadJSON string
	Status      int32
	Error       *string

	CreatedAt time.Time
	UpdatedAt time.Time
}
