package service

import (
	"context"
	"sync"
	"time"

	"github.com/vibast-solutions/ms-go-mobile-payments/app/entity"
	"github.com/vibast-solutions/ms-go-mobile-payments/app/provider"
	"github.com/vibast-solutions/ms-go-mobile-payments/app/repository"
	"github.com/vibast-solutions/ms-go-mobile-payments/config"
)

// memStore mimics the relational store: one lock stands in for row-level atomicity of
// each statement, and the conditional writes follow the SQL predicates.
type memStore struct {
	mu            sync.Mutex
	nextID        uint64
	transactions  map[string]*entity.Transaction
	profiles      map[string]*entity.Profile
	subscriptions map[string]*entity.Subscription
	events        []*entity.PaymentEvent
	callbacks     []*entity.PaymentCallback
}

func newMemStore() *memStore {
	return &memStore{
		nextID:        1,
		transactions:  map[string]*entity.Transaction{},
		profiles:      map[string]*entity.Profile{},
		subscriptions: map[string]*entity.Subscription{},
	}
}

func copyTransaction(txn *entity.Transaction) *entity.Transaction {
	item := *txn
	item.Metadata = cloneMetadata(txn.Metadata)
	return &item
}

func cloneMetadata(src map[string]string) map[string]string {
	dst := make(map[string]string, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

func (s *memStore) addProfile(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[id] = &entity.Profile{ID: id, Email: id + "@example.com", UpdatedAt: time.Now().UTC()}
}

func (s *memStore) addTransaction(txn *entity.Transaction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	txn.ID = s.nextID
	s.nextID++
	if txn.Metadata == nil {
		txn.Metadata = map[string]string{}
	}
	s.transactions[txn.Reference] = copyTransaction(txn)
}

func (s *memStore) transaction(reference string) *entity.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	txn, ok := s.transactions[reference]
	if !ok {
		return nil
	}
	return copyTransaction(txn)
}

func (s *memStore) profile(id string) entity.Profile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.profiles[id]
}

func (s *memStore) subscriptionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subscriptions)
}

func (s *memStore) eventCount(eventType string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, event := range s.events {
		if event.EventType == eventType {
			n++
		}
	}
	return n
}

func (s *memStore) callbackStatuses() []int32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	statuses := make([]int32, 0, len(s.callbacks))
	for _, cb := range s.callbacks {
		statuses = append(statuses, cb.Status)
	}
	return statuses
}

type memTransactions struct{ *memStore }

func (r memTransactions) Create(_ context.Context, txn *entity.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.transactions[txn.Reference]; ok {
		return repository.ErrTransactionAlreadyExists
	}
	txn.ID = r.nextID
	r.nextID++
	r.transactions[txn.Reference] = copyTransaction(txn)
	return nil
}

func (r memTransactions) FindByReference(_ context.Context, reference string) (*entity.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	txn, ok := r.transactions[reference]
	if !ok {
		return nil, nil
	}
	return copyTransaction(txn), nil
}

func (r memTransactions) FindByReferenceForUser(_ context.Context, reference, userID string) (*entity.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	txn, ok := r.transactions[reference]
	if !ok || txn.UserID != userID {
		return nil, nil
	}
	return copyTransaction(txn), nil
}

func (r memTransactions) TransitionStatus(_ context.Context, reference string, to entity.TransactionStatus, from []entity.TransactionStatus, update repository.StatusUpdate) (bool, error) {
	if len(from) == 0 {
		return false, repository.ErrInvalidTransition
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	txn, ok := r.transactions[reference]
	if !ok {
		return false, nil
	}
	allowed := false
	for _, status := range from {
		if txn.Status == status {
			allowed = true
		}
	}
	if !allowed {
		return false, nil
	}
	txn.Status = to
	applyUpdate(txn, update)
	return true, nil
}

func (r memTransactions) AttachCheckout(_ context.Context, reference string, update repository.StatusUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	txn, ok := r.transactions[reference]
	if !ok {
		return repository.ErrTransactionNotFound
	}
	applyUpdate(txn, update)
	return nil
}

func applyUpdate(txn *entity.Transaction, update repository.StatusUpdate) {
	if update.ProviderStatus != nil {
		v := *update.ProviderStatus
		txn.ProviderStatus = &v
	}
	if update.ProviderTransactionID != nil {
		v := *update.ProviderTransactionID
		txn.ProviderTransactionID = &v
	}
	if update.PaymentURL != nil {
		v := *update.PaymentURL
		txn.PaymentURL = &v
	}
	for k, v := range update.Metadata {
		txn.Metadata[k] = v
	}
	txn.UpdatedAt = update.UpdatedAt
}

func (r memTransactions) ListForReconcile(_ context.Context, before time.Time, limit int32) ([]*entity.Transaction, error) {
	return r.listOpen(func(txn *entity.Transaction) bool {
		return txn.PaymentURL != nil && !txn.UpdatedAt.After(before)
	}, limit), nil
}

func (r memTransactions) ListExpiredPending(_ context.Context, cutoff time.Time, limit int32) ([]*entity.Transaction, error) {
	return r.listOpen(func(txn *entity.Transaction) bool {
		return !txn.CreatedAt.After(cutoff)
	}, limit), nil
}

func (r memTransactions) listOpen(match func(*entity.Transaction) bool, limit int32) []*entity.Transaction {
	r.mu.Lock()
	defer r.mu.Unlock()
	items := make([]*entity.Transaction, 0)
	for _, txn := range r.transactions {
		if txn.Status.Terminal() || !match(txn) {
			continue
		}
		items = append(items, copyTransaction(txn))
		if limit > 0 && int32(len(items)) >= limit {
			break
		}
	}
	return items
}

type memProfiles struct{ *memStore }

func (r memProfiles) FindByID(_ context.Context, id string) (*entity.Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	profile, ok := r.profiles[id]
	if !ok {
		return nil, nil
	}
	item := *profile
	return &item, nil
}

func (r memProfiles) GrantPremium(_ context.Context, userID, reference string, paidAt time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	profile, ok := r.profiles[userID]
	if !ok {
		return false, nil
	}
	if profile.PaymentReference != nil && *profile.PaymentReference == reference {
		return false, nil
	}
	if _, exists := r.subscriptions[userID+"|"+reference]; exists {
		return false, nil
	}
	ref := reference
	at := paidAt
	profile.IsPremium = true
	profile.PaymentReference = &ref
	profile.LastPaymentDate = &at
	profile.UpdatedAt = paidAt
	return true, nil
}

type memSubscriptions struct{ *memStore }

func (r memSubscriptions) Create(_ context.Context, subscription *entity.Subscription) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := subscription.UserID + "|" + subscription.TransactionReference
	if _, ok := r.subscriptions[key]; ok {
		return repository.ErrSubscriptionAlreadyExists
	}
	subscription.ID = r.nextID
	r.nextID++
	item := *subscription
	r.subscriptions[key] = &item
	return nil
}

type memEvents struct{ *memStore }

func (r memEvents) Create(_ context.Context, event *entity.PaymentEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	item := *event
	r.events = append(r.events, &item)
	return nil
}

type memCallbacks struct{ *memStore }

func (r memCallbacks) Create(_ context.Context, callback *entity.PaymentCallback) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	item := *callback
	r.callbacks = append(r.callbacks, &item)
	return nil
}

type fakeProvider struct {
	mu sync.Mutex

	collectOutput *provider.CollectOutput
	collectErr    error
	onCollect     func(*provider.CollectInput)
	collectCalls  int

	queryStatus provider.Status
	queryErr    error
	queryCalls  int

	callbackEvt *provider.CallbackEvent
	callbackErr error
}

func (p *fakeProvider) Code() string {
	return provider.CodeMaviance
}

func (p *fakeProvider) AccessToken(context.Context) (string, error) {
	return "token", nil
}

func (p *fakeProvider) Collect(_ context.Context, input *provider.CollectInput) (*provider.CollectOutput, error) {
	p.mu.Lock()
	p.collectCalls++
	hook := p.onCollect
	p.mu.Unlock()

	if hook != nil {
		hook(input)
	}
	if p.collectErr != nil {
		return nil, p.collectErr
	}
	if p.collectOutput != nil {
		return p.collectOutput, nil
	}
	return &provider.CollectOutput{
		PaymentURL: "https://pay.example/" + input.Reference,
		Status:     provider.StatusPending,
	}, nil
}

func (p *fakeProvider) QueryStatus(context.Context, string) (provider.Status, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.queryCalls++
	if p.queryErr != nil {
		return "", p.queryErr
	}
	return p.queryStatus, nil
}

func (p *fakeProvider) VerifyAndParseCallback(_ context.Context, payload []byte, _ string) (*provider.CallbackEvent, error) {
	if p.callbackErr != nil {
		return nil, p.callbackErr
	}
	if p.callbackEvt != nil {
		return p.callbackEvt, nil
	}
	return nil, provider.ErrMalformedCallback
}

func testPaymentsConfig() config.PaymentsConfig {
	return config.PaymentsConfig{
		Provider:             provider.CodeMaviance,
		Currency:             "XAF",
		ReferencePrefix:      "KAM",
		DefaultAmount:        1000,
		DefaultDescription:   "Abonnement Premium Kamerun News",
		SubscriptionPlan:     "premium",
		SubscriptionDuration: 365 * 24 * time.Hour,
		PendingTimeout:       time.Hour,
		ReconcileStaleAfter:  time.Minute,
		JobBatchSize:         100,
	}
}

func newPaymentServiceForTest(store *memStore, p provider.Provider) *PaymentService {
	return NewPaymentService(
		memTransactions{store},
		memProfiles{store},
		memSubscriptions{store},
		memEvents{store},
		memCallbacks{store},
		provider.NewRegistry(p),
		testPaymentsConfig(),
	)
}

func pendingTransaction(reference, userID string, age time.Duration) *entity.Transaction {
	created := time.Now().UTC().Add(-age)
	url := "https://pay.example/" + reference
	return &entity.Transaction{
		Reference:     reference,
		UserID:        userID,
		Amount:        1000,
		Currency:      "XAF",
		PaymentMethod: "mtn",
		Status:        entity.TransactionStatusPending,
		PaymentURL:    &url,
		Metadata:      map[string]string{"provider": provider.CodeMaviance},
		CreatedAt:     created,
		UpdatedAt:     created,
	}
}
