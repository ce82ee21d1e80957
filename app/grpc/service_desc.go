package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const ServiceName = "mobilepayments.v1.PaymentsInternal"

// PaymentsInternalServer is the internal RPC surface. Requests carry a transaction reference
// and responses a transaction rendered as a struct, so no generated code is needed.
type PaymentsInternalServer interface {
	VerifyPayment(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error)
	GetPaymentStatus(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error)
}

var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*PaymentsInternalServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "VerifyPayment", Handler: verifyPaymentHandler},
		{MethodName: "GetPaymentStatus", Handler: getPaymentStatusHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "mobilepayments/v1/payments_internal.proto",
}

func RegisterPaymentsInternalServer(registrar grpc.ServiceRegistrar, srv PaymentsInternalServer) {
	registrar.RegisterService(&ServiceDesc, srv)
}

func verifyPaymentHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	return unaryReference(srv, ctx, dec, interceptor, "VerifyPayment", PaymentsInternalServer.VerifyPayment)
}

func getPaymentStatusHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	return unaryReference(srv, ctx, dec, interceptor, "GetPaymentStatus", PaymentsInternalServer.GetPaymentStatus)
}

func unaryReference(
	srv interface{},
	ctx context.Context,
	dec func(interface{}) error,
	interceptor grpc.UnaryServerInterceptor,
	method string,
	call func(PaymentsInternalServer, context.Context, *wrapperspb.StringValue) (*structpb.Struct, error),
) (interface{}, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	server := srv.(PaymentsInternalServer)
	if interceptor == nil {
		return call(server, ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: "/" + ServiceName + "/" + method,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return call(server, ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}
