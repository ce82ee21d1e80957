package provider

import (
	"strings"

	"github.com/vibast-solutions/ms-go-mobile-payments/app/entity"
)

// Status is the provider's order status vocabulary.
type Status string

const (
	StatusSuccessful Status = "SUCCESSFUL"
	StatusCompleted  Status = "COMPLETED"
	StatusFailed     Status = "FAILED"
	StatusCancelled  Status = "CANCELLED"
	StatusPending    Status = "PENDING"
)

func ParseStatus(raw string) Status {
	return Status(strings.ToUpper(strings.TrimSpace(raw)))
}

// Local maps the provider vocabulary onto the local transaction status.
// Unrecognized or absent values map to unknown.
func (s Status) Local() entity.TransactionStatus {
	switch ParseStatus(string(s)) {
	case StatusSuccessful, StatusCompleted:
		return entity.TransactionStatusCompleted
	case StatusFailed, StatusCancelled:
		return entity.TransactionStatusFailed
	case StatusPending:
		return entity.TransactionStatusPending
	default:
		return entity.TransactionStatusUnknown
	}
}

func (s Status) Recognized() bool {
	return s.Local() != entity.TransactionStatusUnknown
}

func (s Status) String() string {
	return string(s)
}
