package provider

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrMissingPaymentURL     = errors.New("provider response has no payment url")
	ErrUnsupportedMethod     = errors.New("payment method is not supported by provider")
	ErrInvalidSignature      = errors.New("invalid callback signature")
	ErrMalformedCallback     = errors.New("callback payload could not be parsed")
	ErrProviderNotConfigured = errors.New("provider is not configured")
)

// AuthError is returned when the provider refuses the client credentials.
type AuthError struct {
	StatusCode int
	Body       string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("provider authentication failed: status=%d body=%s", e.StatusCode, e.Body)
}

// ProviderError is returned for any non-2xx answer of the provider API.
type ProviderError struct {
	Operation  string
	StatusCode int
	Body       string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %s failed: status=%d body=%s", e.Operation, e.StatusCode, e.Body)
}

// Unauthorized reports that the provider rejected the bearer token.
func (e *ProviderError) Unauthorized() bool {
	return e.StatusCode == 401
}

type CollectInput struct {
	Reference     string
	Amount        int64
	Currency      string
	PaymentMethod string
	Phone         string
	PayerName     string
	PayerEmail    string
	Description   string
}

type CollectOutput struct {
	PaymentURL            string
	Status                Status
	ProviderTransactionID string
	RawResponse           string
}

type CallbackEvent struct {
	Reference             string
	Status                Status
	ProviderTransactionID string
}

type Provider interface {
	Code() string
	AccessToken(ctx context.Context) (string, error)
	Collect(ctx context.Context, input *CollectInput) (*CollectOutput, error)
	QueryStatus(ctx context.Context, reference string) (Status, error)
	VerifyAndParseCallback(ctx context.Context, payload []byte, signature string) (*CallbackEvent, error)
}
