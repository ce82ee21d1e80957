package entity

import "time"

const SubscriptionStatusActive = "active"

type Subscription struct {
	ID uint64

	UserID               string
	Plan                 string
	Status               string
	TransactionReference string

	StartsAt  time.Time
	ExpiresAt time.Time
	CreatedAt time.Time
}
