package entity

import "time"

type Profile struct {
	ID    string
	Email string

	IsPremium        bool
	PaymentReference *string
	LastPaymentDate  *time.Time

	UpdatedAt time.Time
}
