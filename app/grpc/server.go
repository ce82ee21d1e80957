package grpc

import (
	"context"
	"errors"
	"strings"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/vibast-solutions/ms-go-mobile-payments/app/entity"
	"github.com/vibast-solutions/ms-go-mobile-payments/app/mapper"
	"github.com/vibast-solutions/ms-go-mobile-payments/app/service"
)

var _ PaymentsInternalServer = (*Server)(nil)

type Server struct {
	paymentService *service.PaymentService
}

func NewServer(paymentService *service.PaymentService) *Server {
	return &Server{paymentService: paymentService}
}

// VerifyPayment polls the provider and reconciles the transaction, without owner scoping.
func (s *Server) VerifyPayment(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	reference := strings.TrimSpace(req.GetValue())
	if reference == "" {
		return nil, status.Error(codes.InvalidArgument, "reference is required")
	}

	item, err := s.paymentService.ReconcileReference(ctx, reference)
	if err != nil {
		return nil, s.mapError(ctx, err, "Verify payment failed")
	}
	return toStruct(ctx, item)
}

func (s *Server) GetPaymentStatus(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	reference := strings.TrimSpace(req.GetValue())
	if reference == "" {
		return nil, status.Error(codes.InvalidArgument, "reference is required")
	}

	item, err := s.paymentService.PaymentStatus(ctx, reference)
	if err != nil {
		return nil, s.mapError(ctx, err, "Get payment status failed")
	}
	return toStruct(ctx, item)
}

func (s *Server) mapError(ctx context.Context, err error, message string) error {
	switch {
	case errors.Is(err, service.ErrInvalidRequest):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, service.ErrTransactionNotFound):
		return status.Error(codes.NotFound, "transaction not found")
	default:
		loggerWithContext(ctx).WithError(err).Error(message)
		return status.Error(codes.Internal, "internal server error")
	}
}

func toStruct(ctx context.Context, item *entity.Transaction) (*structpb.Struct, error) {
	out, err := mapper.TransactionToStruct(item)
	if err != nil {
		loggerWithContext(ctx).WithError(err).Error("Failed to encode transaction")
		return nil, status.Error(codes.Internal, "internal server error")
	}
	return out, nil
}
