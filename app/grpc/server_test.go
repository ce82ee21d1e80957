package grpc

import (
	"context"
	"net"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/vibast-solutions/ms-go-mobile-payments/app/entity"
	"github.com/vibast-solutions/ms-go-mobile-payments/app/provider"
	"github.com/vibast-solutions/ms-go-mobile-payments/app/repository"
	"github.com/vibast-solutions/ms-go-mobile-payments/app/service"
	"github.com/vibast-solutions/ms-go-mobile-payments/config"
)

type grpcTransactionRepo struct {
	items map[string]*entity.Transaction
}

func (r *grpcTransactionRepo) Create(context.Context, *entity.Transaction) error { return nil }

func (r *grpcTransactionRepo) FindByReference(_ context.Context, reference string) (*entity.Transaction, error) {
	txn, ok := r.items[reference]
	if !ok {
		return nil, nil
	}
	item := *txn
	return &item, nil
}

func (r *grpcTransactionRepo) FindByReferenceForUser(ctx context.Context, reference, _ string) (*entity.Transaction, error) {
	return r.FindByReference(ctx, reference)
}

func (r *grpcTransactionRepo) TransitionStatus(_ context.Context, reference string, to entity.TransactionStatus, from []entity.TransactionStatus, update repository.StatusUpdate) (bool, error) {
	txn, ok := r.items[reference]
	if !ok {
		return false, nil
	}
	for _, status := range from {
		if txn.Status == status {
			txn.Status = to
			txn.UpdatedAt = update.UpdatedAt
			return true, nil
		}
	}
	return false, nil
}

func (r *grpcTransactionRepo) AttachCheckout(context.Context, string, repository.StatusUpdate) error {
	return nil
}

func (r *grpcTransactionRepo) ListForReconcile(context.Context, time.Time, int32) ([]*entity.Transaction, error) {
	return nil, nil
}

func (r *grpcTransactionRepo) ListExpiredPending(context.Context, time.Time, int32) ([]*entity.Transaction, error) {
	return nil, nil
}

type grpcProfileRepo struct{}

func (grpcProfileRepo) FindByID(context.Context, string) (*entity.Profile, error) { return nil, nil }

func (grpcProfileRepo) GrantPremium(context.Context, string, string, time.Time) (bool, error) {
	return false, nil
}

type grpcNoopRepo struct{}

func (grpcNoopRepo) Create(context.Context, *entity.Subscription) error { return nil }

type grpcEventRepo struct{}

func (grpcEventRepo) Create(context.Context, *entity.PaymentEvent) error { return nil }

type grpcCallbackRepo struct{}

func (grpcCallbackRepo) Create(context.Context, *entity.PaymentCallback) error { return nil }

type grpcProvider struct {
	status provider.Status
}

func (p *grpcProvider) Code() string { return provider.CodeMaviance }

func (p *grpcProvider) AccessToken(context.Context) (string, error) { return "token", nil }

func (p *grpcProvider) Collect(context.Context, *provider.CollectInput) (*provider.CollectOutput, error) {
	return nil, provider.ErrProviderNotConfigured
}

func (p *grpcProvider) QueryStatus(context.Context, string) (provider.Status, error) {
	return p.status, nil
}

func (p *grpcProvider) VerifyAndParseCallback(context.Context, []byte, string) (*provider.CallbackEvent, error) {
	return nil, provider.ErrMalformedCallback
}

func newGRPCTestServer(repo *grpcTransactionRepo, p provider.Provider) *Server {
	svc := service.NewPaymentService(
		repo,
		grpcProfileRepo{},
		grpcNoopRepo{},
		grpcEventRepo{},
		grpcCallbackRepo{},
		provider.NewRegistry(p),
		config.PaymentsConfig{Provider: provider.CodeMaviance},
	)
	return NewServer(svc)
}

func pendingRepo(reference string) *grpcTransactionRepo {
	now := time.Now().UTC()
	return &grpcTransactionRepo{items: map[string]*entity.Transaction{
		reference: {
			ID:        1,
			Reference: reference,
			UserID:    "user-1",
			Amount:    1000,
			Currency:  "XAF",
			Status:    entity.TransactionStatusPending,
			Metadata:  map[string]string{"provider": provider.CodeMaviance},
			CreatedAt: now,
			UpdatedAt: now,
		},
	}}
}

func TestServerVerifyPayment(t *testing.T) {
	srv := newGRPCTestServer(pendingRepo("KAM-G1"), &grpcProvider{status: provider.StatusSuccessful})

	resp, err := srv.VerifyPayment(context.Background(), wrapperspb.String("KAM-G1"))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if resp.GetFields()["status"].GetStringValue() != "completed" || !resp.GetFields()["paid"].GetBoolValue() {
		t.Fatalf("unexpected response: %v", resp)
	}
}

func TestServerErrors(t *testing.T) {
	srv := newGRPCTestServer(pendingRepo("KAM-G2"), &grpcProvider{status: provider.StatusPending})

	if _, err := srv.VerifyPayment(context.Background(), wrapperspb.String(" ")); status.Code(err) != codes.InvalidArgument {
		t.Fatalf("expected InvalidArgument, got %v", err)
	}
	if _, err := srv.VerifyPayment(context.Background(), wrapperspb.String("KAM-NONE")); status.Code(err) != codes.NotFound {
		t.Fatalf("expected NotFound, got %v", err)
	}
	if _, err := srv.GetPaymentStatus(context.Background(), wrapperspb.String("KAM-NONE")); status.Code(err) != codes.NotFound {
		t.Fatalf("expected NotFound, got %v", err)
	}
}

func TestServiceDescRoundTrip(t *testing.T) {
	lis := bufconn.Listen(1 << 20)
	grpcSrv := grpc.NewServer(grpc.ChainUnaryInterceptor(
		RecoveryInterceptor(),
		RequestIDInterceptor(),
		APIKeyInterceptor("internal-key"),
	))
	RegisterPaymentsInternalServer(grpcSrv, newGRPCTestServer(pendingRepo("KAM-G3"), &grpcProvider{status: provider.StatusPending}))
	go func() { _ = grpcSrv.Serve(lis) }()
	defer grpcSrv.Stop()

	conn, err := grpc.NewClient(
		"passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("failed to dial: %v", err)
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	out := new(structpb.Struct)
	err = conn.Invoke(ctx, "/"+ServiceName+"/GetPaymentStatus", wrapperspb.String("KAM-G3"), out)
	if status.Code(err) != codes.Unauthenticated {
		t.Fatalf("expected Unauthenticated without api key, got %v", err)
	}

	authed := metadata.AppendToOutgoingContext(ctx, apiKeyHeader, "internal-key")
	if err := conn.Invoke(authed, "/"+ServiceName+"/GetPaymentStatus", wrapperspb.String("KAM-G3"), out); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if out.GetFields()["reference"].GetStringValue() != "KAM-G3" || out.GetFields()["status"].GetStringValue() != "pending" {
		t.Fatalf("unexpected response: %v", out)
	}
}
