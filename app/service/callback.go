package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/vibast-solutions/ms-go-mobile-payments/app/entity"
	"github.com/vibast-solutions/ms-go-mobile-payments/app/metrics"
	"github.com/vibast-solutions/ms-go-mobile-payments/app/provider"
)

type handleProviderCallbackRequest interface {
	GetProvider() string
	GetSignature() string
	GetPayload() string
}

// HandleProviderCallback authenticates a webhook delivery and reconciles the referenced
// transaction. Every delivery, accepted or not, is stored in the callback log.
func (s *PaymentService) HandleProviderCallback(ctx context.Context, req handleProviderCallbackRequest) (*entity.Transaction, error) {
	providerCode := strings.ToLower(strings.TrimSpace(req.GetProvider()))
	providerClient, err := s.providerReg.Get(providerCode)
	if err != nil {
		s.persistRejectedCallback(ctx, nil, req, "", err.Error())
		metrics.IncWebhookCallback(providerCode, "rejected")
		if errors.Is(err, provider.ErrProviderNotSupported) {
			return nil, ErrProviderUnsupported
		}
		return nil, err
	}

	payload := []byte(req.GetPayload())
	signature := strings.TrimSpace(req.GetSignature())
	event, err := providerClient.VerifyAndParseCallback(ctx, payload, signature)
	if err != nil {
		s.persistRejectedCallback(ctx, nil, req, "", fmt.Sprintf("provider callback validation failed: %v", err))
		metrics.IncWebhookCallback(providerCode, "rejected")
		return nil, fmt.Errorf("%w: %v", ErrCallbackRejected, err)
	}

	reference := strings.TrimSpace(event.Reference)
	if reference == "" {
		s.persistRejectedCallback(ctx, nil, req, "", "callback has no reference")
		metrics.IncWebhookCallback(providerCode, "ignored")
		return nil, ErrMissingReference
	}

	txn, err := s.transactionRepo.FindByReference(ctx, reference)
	if err != nil {
		metrics.IncWebhookCallback(providerCode, "error")
		return nil, err
	}
	if txn == nil {
		s.persistRejectedCallback(ctx, nil, req, reference, "transaction not found for reference")
		metrics.IncWebhookCallback(providerCode, "ignored")
		return nil, ErrTransactionNotFound
	}

	payloadJSON := truncate(string(payload), 4096)
	updated, err := s.reconcile(ctx, txn, reconcileInput{
		ProviderStatus:        event.Status,
		ProviderTransactionID: event.ProviderTransactionID,
		Source:                entity.EventSourceWebhook,
		Payload:               &payloadJSON,
	})
	if err != nil {
		transactionID := txn.ID
		s.persistRejectedCallback(ctx, &transactionID, req, reference, fmt.Sprintf("reconcile failed: %v", err))
		metrics.IncWebhookCallback(providerCode, "error")
		return nil, err
	}

	now := time.Now().UTC()
	transactionID := updated.ID
	callbackErr := s.callbackRepo.Create(ctx, &entity.PaymentCallback{
		TransactionID: &transactionID,
		Provider:      providerCode,
		Reference:     reference,
		Signature:     signature,
		PayloadJSON:   string(payload),
		Status:        entity.PaymentCallbackStatusProcessed,
		CreatedAt:     now,
		UpdatedAt:     now,
	})
	if callbackErr != nil {
		s.logger.WithError(callbackErr).WithField("reference", reference).Warn("Failed to store processed callback")
	}

	metrics.IncWebhookCallback(providerCode, "processed")
	return updated, nil
}

func (s *PaymentService) persistRejectedCallback(
	ctx context.Context,
	transactionID *uint64,
	req handleProviderCallbackRequest,
	reference string,
	reason string,
) {
	now := time.Now().UTC()
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = "callback rejected"
	}
	trimmedErr := truncate(reason, 1024)
	err := s.callbackRepo.Create(ctx, &entity.PaymentCallback{
		TransactionID: transactionID,
		Provider:      strings.ToLower(strings.TrimSpace(req.GetProvider())),
		Reference:     reference,
		Signature:     strings.TrimSpace(req.GetSignature()),
		PayloadJSON:   req.GetPayload(),
		Status:        entity.PaymentCallbackStatusRejected,
		Error:         &trimmedErr,
		CreatedAt:     now,
		UpdatedAt:     now,
	})
	if err != nil {
		s.logger.WithError(err).Warn("Failed to store rejected callback")
	}
}
