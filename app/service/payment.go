package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/vibast-solutions/ms-go-mobile-payments/app/entity"
	"github.com/vibast-solutions/ms-go-mobile-payments/app/factory"
	"github.com/vibast-solutions/ms-go-mobile-payments/app/metrics"
	"github.com/vibast-solutions/ms-go-mobile-payments/app/provider"
	"github.com/vibast-solutions/ms-go-mobile-payments/app/repository"
	"github.com/vibast-solutions/ms-go-mobile-payments/config"
)

const (
	defaultBatchSize   = int32(100)
	defaultAmount      = int64(1000)
	defaultDescription = "Abonnement Premium Kamerun News"
	minPhoneDigits     = 9
)

type initializePaymentRequest interface {
	GetAmount() int64
	GetPhone() string
	GetPaymentMethod() string
	GetDescription() string
	GetUserId() string
	GetUserEmail() string
	GetUserName() string
}

type transactionRepository interface {
	Create(ctx context.Context, txn *entity.Transaction) error
	FindByReference(ctx context.Context, reference string) (*entity.Transaction, error)
	FindByReferenceForUser(ctx context.Context, reference, userID string) (*entity.Transaction, error)
	TransitionStatus(ctx context.Context, reference string, to entity.TransactionStatus, from []entity.TransactionStatus, update repository.StatusUpdate) (bool, error)
	AttachCheckout(ctx context.Context, reference string, update repository.StatusUpdate) error
	ListForReconcile(ctx context.Context, before time.Time, limit int32) ([]*entity.Transaction, error)
	ListExpiredPending(ctx context.Context, cutoff time.Time, limit int32) ([]*entity.Transaction, error)
}

type profileRepository interface {
	FindByID(ctx context.Context, id string) (*entity.Profile, error)
	GrantPremium(ctx context.Context, userID, reference string, paidAt time.Time) (bool, error)
}

type subscriptionRepository interface {
	Create(ctx context.Context, subscription *entity.Subscription) error
}

type paymentEventRepository interface {
	Create(ctx context.Context, event *entity.PaymentEvent) error
}

type paymentCallbackRepository interface {
	Create(ctx context.Context, callback *entity.PaymentCallback) error
}

type PaymentService struct {
	transactionRepo  transactionRepository
	profileRepo      profileRepository
	subscriptionRepo subscriptionRepository
	eventRepo        paymentEventRepository
	callbackRepo     paymentCallbackRepository
	providerReg      *provider.Registry
	paymentsCfg      config.PaymentsConfig
	references       *referenceGenerator
	logger           logrus.FieldLogger
}

func NewPaymentService(
	transactionRepo transactionRepository,
	profileRepo profileRepository,
	subscriptionRepo subscriptionRepository,
	eventRepo paymentEventRepository,
	callbackRepo paymentCallbackRepository,
	providerReg *provider.Registry,
	paymentsCfg config.PaymentsConfig,
) *PaymentService {
	return &PaymentService{
		transactionRepo:  transactionRepo,
		profileRepo:      profileRepo,
		subscriptionRepo: subscriptionRepo,
		eventRepo:        eventRepo,
		callbackRepo:     callbackRepo,
		providerReg:      providerReg,
		paymentsCfg:      paymentsCfg,
		references:       newReferenceGenerator(paymentsCfg.ReferencePrefix),
		logger:           factory.NewModuleLogger("payment-service"),
	}
}

// InitializePayment persists a pending transaction and then asks the provider to collect it.
// The transaction row exists before the provider is called, so a provider failure leaves
// a failed transaction behind instead of nothing.
func (s *PaymentService) InitializePayment(ctx context.Context, req initializePaymentRequest) (*entity.Transaction, error) {
	userID := strings.TrimSpace(req.GetUserId())
	if !validUserID(userID) {
		return nil, fmt.Errorf("%w: user is required", ErrInvalidRequest)
	}

	amount := req.GetAmount()
	if amount == 0 {
		amount = s.defaultAmount()
	}
	if amount < 0 {
		return nil, fmt.Errorf("%w: amount must be > 0", ErrInvalidRequest)
	}

	phone := NormalizePhone(req.GetPhone())
	if len(phone) < minPhoneDigits {
		return nil, fmt.Errorf("%w: invalid phone number", ErrInvalidRequest)
	}

	method := strings.ToLower(strings.TrimSpace(req.GetPaymentMethod()))
	if !supportedMethod(method) {
		return nil, fmt.Errorf("%w: unsupported payment method", ErrInvalidRequest)
	}

	description := strings.TrimSpace(req.GetDescription())
	if description == "" {
		description = s.defaultDescription()
	}

	providerCode := s.providerCode()
	providerClient, err := s.providerReg.Get(providerCode)
	if err != nil {
		if errors.Is(err, provider.ErrProviderNotSupported) {
			return nil, ErrProviderUnsupported
		}
		return nil, err
	}

	now := time.Now().UTC()
	reference, err := s.references.Next(now)
	if err != nil {
		return nil, err
	}

	txn := &entity.Transaction{
		Reference:     reference,
		UserID:        userID,
		Amount:        amount,
		Currency:      s.currency(),
		PaymentMethod: method,
		Status:        entity.TransactionStatusPending,
		Metadata: map[string]string{
			"description":    description,
			"phone_number":   phone,
			"payment_method": method,
			"user_email":     strings.TrimSpace(req.GetUserEmail()),
			"provider":       providerClient.Code(),
			"initialized_at": now.Format(time.RFC3339),
		},
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.transactionRepo.Create(ctx, txn); err != nil {
		metrics.IncInitialized(method, "store_error")
		return nil, err
	}

	s.recordEvent(ctx, txn, entity.EventPaymentCreated, entity.EventSourceInitialize, nil, txn.Status, nil)

	started := time.Now()
	output, err := providerClient.Collect(ctx, &provider.CollectInput{
		Reference:     reference,
		Amount:        amount,
		Currency:      txn.Currency,
		PaymentMethod: method,
		Phone:         phone,
		PayerName:     strings.TrimSpace(req.GetUserName()),
		PayerEmail:    strings.TrimSpace(req.GetUserEmail()),
		Description:   description,
	})
	metrics.ObserveProviderRequest("collect", started, err)
	if err != nil {
		metrics.IncInitialized(method, "provider_error")
		s.markInitializeFailed(ctx, txn, err)
		return nil, err
	}

	providerStatus := output.Status.String()
	update := repository.StatusUpdate{
		ProviderStatus:        optionalString(providerStatus),
		ProviderTransactionID: optionalString(output.ProviderTransactionID),
		PaymentURL:            optionalString(output.PaymentURL),
		Metadata: map[string]string{
			"provider_response": truncate(output.RawResponse, 1024),
		},
		UpdatedAt: time.Now().UTC(),
	}
	if err := s.transactionRepo.AttachCheckout(ctx, reference, update); err != nil {
		s.logger.WithError(err).WithField("reference", reference).Warn("Failed to store checkout details")
	}

	txn.PaymentURL = update.PaymentURL
	txn.ProviderStatus = update.ProviderStatus
	txn.ProviderTransactionID = update.ProviderTransactionID
	txn.UpdatedAt = update.UpdatedAt
	metrics.IncInitialized(method, "ok")

	if output.Status.Local().Terminal() {
		reconciled, err := s.reconcile(ctx, txn, reconcileInput{
			ProviderStatus:        output.Status,
			ProviderTransactionID: output.ProviderTransactionID,
			Source:                entity.EventSourceInitialize,
		})
		if err != nil {
			s.logger.WithError(err).WithField("reference", reference).Warn("Failed to reconcile initial provider status")
		} else {
			reconciled.PaymentURL = txn.PaymentURL
			txn = reconciled
		}
	}

	return txn, nil
}

// VerifyPayment answers the owner's poll for a transaction, asking the provider for a fresh
// status unless the transaction is already completed.
func (s *PaymentService) VerifyPayment(ctx context.Context, reference, userID string) (*entity.Transaction, error) {
	reference = strings.TrimSpace(reference)
	userID = strings.TrimSpace(userID)
	if reference == "" || userID == "" {
		return nil, ErrTransactionNotFound
	}

	txn, err := s.transactionRepo.FindByReferenceForUser(ctx, reference, userID)
	if err != nil {
		return nil, err
	}
	if txn == nil {
		return nil, ErrTransactionNotFound
	}

	return s.pollAndReconcile(ctx, txn, entity.EventSourceVerify)
}

// ReconcileReference runs the same poll as VerifyPayment without owner scoping. It serves
// trusted internal callers.
func (s *PaymentService) ReconcileReference(ctx context.Context, reference string) (*entity.Transaction, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return nil, fmt.Errorf("%w: reference is required", ErrInvalidRequest)
	}

	txn, err := s.transactionRepo.FindByReference(ctx, reference)
	if err != nil {
		return nil, err
	}
	if txn == nil {
		return nil, ErrTransactionNotFound
	}

	return s.pollAndReconcile(ctx, txn, entity.EventSourceGRPC)
}

// PaymentStatus reads the stored status without contacting the provider.
func (s *PaymentService) PaymentStatus(ctx context.Context, reference string) (*entity.Transaction, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return nil, ErrTransactionNotFound
	}

	txn, err := s.transactionRepo.FindByReference(ctx, reference)
	if err != nil {
		return nil, err
	}
	if txn == nil {
		return nil, ErrTransactionNotFound
	}
	return txn, nil
}

func (s *PaymentService) pollAndReconcile(ctx context.Context, txn *entity.Transaction, source string) (*entity.Transaction, error) {
	if txn.Status == entity.TransactionStatusCompleted {
		return txn, nil
	}

	providerClient, err := s.providerFor(txn)
	if err != nil {
		s.logger.WithError(err).WithField("reference", txn.Reference).Warn("No provider for transaction")
		return txn, nil
	}

	started := time.Now()
	status, err := providerClient.QueryStatus(ctx, txn.Reference)
	metrics.ObserveProviderRequest("verifytx", started, err)
	if err != nil {
		s.logger.WithError(err).WithField("reference", txn.Reference).Warn("Provider status lookup failed")
		return txn, nil
	}
	if status == "" {
		return txn, nil
	}

	return s.reconcile(ctx, txn, reconcileInput{ProviderStatus: status, Source: source})
}

func (s *PaymentService) markInitializeFailed(ctx context.Context, txn *entity.Transaction, cause error) {
	now := time.Now().UTC()
	won, err := s.transactionRepo.TransitionStatus(ctx, txn.Reference, entity.TransactionStatusFailed, entity.TransactionStatusFailed.TransitionSources(), repository.StatusUpdate{
		Metadata: map[string]string{
			"error":     truncate(cause.Error(), 1024),
			"failed_at": now.Format(time.RFC3339),
		},
		UpdatedAt: now,
	})
	if err != nil {
		s.logger.WithError(err).WithField("reference", txn.Reference).Error("Failed to mark transaction failed")
		return
	}
	if !won {
		return
	}

	oldStatus := txn.Status
	txn.Status = entity.TransactionStatusFailed
	txn.UpdatedAt = now
	payload := truncate(cause.Error(), 1024)
	s.recordEvent(ctx, txn, entity.EventPaymentInitializeFailed, entity.EventSourceInitialize, &oldStatus, txn.Status, &payload)
}

func (s *PaymentService) recordEvent(
	ctx context.Context,
	txn *entity.Transaction,
	eventType, source string,
	oldStatus *entity.TransactionStatus,
	newStatus entity.TransactionStatus,
	payload *string,
) {
	var old *string
	if oldStatus != nil {
		v := string(*oldStatus)
		old = &v
	}

	err := s.eventRepo.Create(ctx, &entity.PaymentEvent{
		TransactionID: txn.ID,
		Reference:     txn.Reference,
		EventType:     eventType,
		Source:        source,
		OldStatus:     old,
		NewStatus:     string(newStatus),
		PayloadJSON:   payload,
		CreatedAt:     time.Now().UTC(),
	})
	if err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"reference":  txn.Reference,
			"event_type": eventType,
		}).Warn("Failed to record payment event")
	}
}

func (s *PaymentService) providerFor(txn *entity.Transaction) (provider.Provider, error) {
	code := ""
	if txn != nil && txn.Metadata != nil {
		code = txn.Metadata["provider"]
	}
	if strings.TrimSpace(code) == "" {
		code = s.providerCode()
	}
	return s.providerReg.Get(code)
}

func (s *PaymentService) providerCode() string {
	if code := strings.TrimSpace(s.paymentsCfg.Provider); code != "" {
		return code
	}
	return provider.CodeMaviance
}

func (s *PaymentService) defaultAmount() int64 {
	if s.paymentsCfg.DefaultAmount > 0 {
		return s.paymentsCfg.DefaultAmount
	}
	return defaultAmount
}

func (s *PaymentService) defaultDescription() string {
	if d := strings.TrimSpace(s.paymentsCfg.DefaultDescription); d != "" {
		return d
	}
	return defaultDescription
}

func (s *PaymentService) currency() string {
	if c := strings.ToUpper(strings.TrimSpace(s.paymentsCfg.Currency)); c != "" {
		return c
	}
	return "XAF"
}

func (s *PaymentService) batchSize() int32 {
	if s.paymentsCfg.JobBatchSize > 0 {
		return s.paymentsCfg.JobBatchSize
	}
	return defaultBatchSize
}

// NormalizePhone strips spaces, dashes and a leading plus sign. The result is empty when
// anything other than digits remains.
func NormalizePhone(raw string) string {
	phone := strings.TrimSpace(raw)
	phone = strings.TrimPrefix(phone, "+")
	phone = strings.NewReplacer(" ", "", "-", "").Replace(phone)
	for _, r := range phone {
		if r < '0' || r > '9' {
			return ""
		}
	}
	return phone
}

func supportedMethod(method string) bool {
	for _, item := range provider.SupportedMethods() {
		if item == method {
			return true
		}
	}
	return false
}

func validUserID(userID string) bool {
	switch strings.ToLower(strings.TrimSpace(userID)) {
	case "", "undefined", "null", "anonymous":
		return false
	default:
		return true
	}
}

func optionalString(v string) *string {
	trimmed := strings.TrimSpace(v)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func truncate(value string, max int) string {
	if len(value) <= max {
		return value
	}
	return value[:max]
}
