package service

import (
	"context"
	"time"

	"github.com/vibast-solutions/ms-go-mobile-payments/app/entity"
	"github.com/vibast-solutions/ms-go-mobile-payments/app/metrics"
	"github.com/vibast-solutions/ms-go-mobile-payments/app/repository"
)

// RunReconcileBatch polls the provider for open transactions that have not moved for a while.
// It covers webhooks that never arrived.
func (s *PaymentService) RunReconcileBatch(ctx context.Context) error {
	now := time.Now().UTC()
	before := now.Add(-s.paymentsCfg.ReconcileStaleAfter)
	items, err := s.transactionRepo.ListForReconcile(ctx, before, s.batchSize())
	if err != nil {
		return err
	}

	var firstErr error
	for _, txn := range items {
		if txn == nil || txn.Status.Terminal() {
			continue
		}

		providerClient, err := s.providerFor(txn)
		if err != nil {
			firstErr = keepFirstErr(firstErr, err)
			continue
		}

		started := time.Now()
		status, err := providerClient.QueryStatus(ctx, txn.Reference)
		metrics.ObserveProviderRequest("verifytx", started, err)
		if err != nil {
			firstErr = keepFirstErr(firstErr, err)
			continue
		}
		if status == "" {
			continue
		}

		if _, err := s.reconcile(ctx, txn, reconcileInput{ProviderStatus: status, Source: entity.EventSourceJob}); err != nil {
			firstErr = keepFirstErr(firstErr, err)
		}
	}

	return firstErr
}

// RunExpirePendingBatch fails transactions that stayed open past the pending timeout.
// A late success can still complete them afterwards.
func (s *PaymentService) RunExpirePendingBatch(ctx context.Context) error {
	now := time.Now().UTC()
	cutoff := now.Add(-s.paymentsCfg.PendingTimeout)
	items, err := s.transactionRepo.ListExpiredPending(ctx, cutoff, s.batchSize())
	if err != nil {
		return err
	}

	var firstErr error
	for _, txn := range items {
		if txn == nil || txn.Status.Terminal() {
			continue
		}

		won, err := s.transactionRepo.TransitionStatus(ctx, txn.Reference, entity.TransactionStatusFailed, entity.TransactionStatusFailed.TransitionSources(), repository.StatusUpdate{
			Metadata: map[string]string{
				"failure_reason": "expired",
				"expired_at":     now.Format(time.RFC3339),
			},
			UpdatedAt: now,
		})
		if err != nil {
			firstErr = keepFirstErr(firstErr, err)
			continue
		}
		if !won {
			continue
		}

		oldStatus := txn.Status
		metrics.IncStatusTransition(entity.EventSourceJob, string(entity.TransactionStatusFailed))
		s.recordEvent(ctx, txn, entity.EventPaymentExpired, entity.EventSourceJob, &oldStatus, entity.TransactionStatusFailed, nil)
	}

	return firstErr
}

func keepFirstErr(current error, candidate error) error {
	if current != nil {
		return current
	}
	return candidate
}
