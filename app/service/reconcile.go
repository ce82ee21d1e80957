package service

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/vibast-solutions/ms-go-mobile-payments/app/entity"
	"github.com/vibast-solutions/ms-go-mobile-payments/app/metrics"
	"github.com/vibast-solutions/ms-go-mobile-payments/app/provider"
	"github.com/vibast-solutions/ms-go-mobile-payments/app/repository"
)

type reconcileInput struct {
	ProviderStatus        provider.Status
	ProviderTransactionID string
	Source                string
	Payload               *string
}

// reconcile applies a provider-reported status to a transaction. Webhooks, verify polls,
// the reconcile job and the internal RPC all go through here.
//
// The status change is a compare-and-swap in the store, so concurrent callers cannot
// regress a terminal status. Premium activation runs whenever the stored status ends up
// completed, not only for the caller that won the transition; activation is idempotent
// and this repairs a crash between the two steps on the next delivery.
func (s *PaymentService) reconcile(ctx context.Context, txn *entity.Transaction, in reconcileInput) (*entity.Transaction, error) {
	target := in.ProviderStatus.Local()
	if !in.ProviderStatus.Recognized() {
		s.logger.WithFields(logrus.Fields{
			"reference":       txn.Reference,
			"provider_status": in.ProviderStatus.String(),
			"source":          in.Source,
		}).Warn("Unrecognized provider status, treating as unknown")
	}

	now := time.Now().UTC()
	update := repository.StatusUpdate{
		ProviderStatus:        optionalString(in.ProviderStatus.String()),
		ProviderTransactionID: optionalString(in.ProviderTransactionID),
		Metadata: map[string]string{
			"last_reconciled_by": in.Source,
			"last_reconciled_at": now.Format(time.RFC3339),
		},
		UpdatedAt: now,
	}

	won, err := s.transactionRepo.TransitionStatus(ctx, txn.Reference, target, target.TransitionSources(), update)
	if err != nil {
		return nil, err
	}

	oldStatus := txn.Status
	if won && oldStatus != target {
		metrics.IncStatusTransition(in.Source, string(target))
		s.recordEvent(ctx, txn, entity.EventPaymentReconciled, in.Source, &oldStatus, target, in.Payload)
	}

	current, err := s.transactionRepo.FindByReference(ctx, txn.Reference)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, ErrTransactionNotFound
	}

	if current.Status == entity.TransactionStatusCompleted {
		if err := s.activatePremium(ctx, current, in.Source); err != nil {
			s.logger.WithError(err).WithFields(logrus.Fields{
				"reference": current.Reference,
				"user_id":   current.UserID,
				"source":    in.Source,
			}).Error("Premium activation failed")
		}
	}

	return current, nil
}

// activatePremium grants the premium entitlement paid by txn. Repeated calls for the same
// transaction grant nothing and create no second subscription.
func (s *PaymentService) activatePremium(ctx context.Context, txn *entity.Transaction, source string) error {
	if !validUserID(txn.UserID) {
		return ErrInvalidUser
	}

	now := time.Now().UTC()
	granted, err := s.profileRepo.GrantPremium(ctx, txn.UserID, txn.Reference, now)
	if err != nil {
		return err
	}
	if !granted {
		profile, err := s.profileRepo.FindByID(ctx, txn.UserID)
		if err != nil {
			return err
		}
		if profile == nil {
			return ErrProfileNotFound
		}
	}

	subscription := &entity.Subscription{
		UserID:               txn.UserID,
		Plan:                 s.subscriptionPlan(),
		Status:               entity.SubscriptionStatusActive,
		TransactionReference: txn.Reference,
		StartsAt:             now,
		ExpiresAt:            now.Add(s.subscriptionDuration()),
		CreatedAt:            now,
	}
	if err := s.subscriptionRepo.Create(ctx, subscription); err != nil && !errors.Is(err, repository.ErrSubscriptionAlreadyExists) {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"reference": txn.Reference,
			"user_id":   txn.UserID,
		}).Warn("Subscription creation failed")
	}

	if granted {
		metrics.IncPremiumActivation(source)
		status := txn.Status
		s.recordEvent(ctx, txn, entity.EventPremiumActivated, source, &status, txn.Status, nil)
		s.logger.WithFields(logrus.Fields{
			"reference": txn.Reference,
			"user_id":   txn.UserID,
			"source":    source,
		}).Info("Premium activated")
	}

	return nil
}

func (s *PaymentService) subscriptionPlan() string {
	if s.paymentsCfg.SubscriptionPlan != "" {
		return s.paymentsCfg.SubscriptionPlan
	}
	return "premium"
}

func (s *PaymentService) subscriptionDuration() time.Duration {
	if s.paymentsCfg.SubscriptionDuration > 0 {
		return s.paymentsCfg.SubscriptionDuration
	}
	return 365 * 24 * time.Hour
}
