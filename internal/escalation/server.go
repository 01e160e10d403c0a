package escalation

import (
	"context"
	"errors"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// #region server
// serviceDesc describes the Struct-based escalation service without generated stubs.
var serviceDesc = grpc.ServiceDesc{
	ServiceName: "oracle.v1.EscalationService",
	HandlerType: (*Escalator)(nil),
	Methods: []grpc.MethodDesc{{
		MethodName: "Propose",
		Handler:    proposeHandler,
	}},
	Streams:  []grpc.StreamDesc{},
	Metadata: "oracle/v1/escalation.proto",
}

// RegisterServer exposes e over gRPC on reg.
func RegisterServer(reg grpc.ServiceRegistrar, e Escalator) {
	reg.RegisterService(&serviceDesc, e)
}

func proposeHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := &structpb.Struct{}
	if err := dec(in); err != nil {
		return nil, err
	}
	call := func(ctx context.Context, req any) (any, error) {
		return propose(ctx, srv.(Escalator), req.(*structpb.Struct))
	}
	if interceptor == nil {
		return call(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ProposeMethod}
	return interceptor(ctx, in, info, call)
}

func propose(ctx context.Context, e Escalator, in *structpb.Struct) (*structpb.Struct, error) {
	var req Request
	if err := fromStruct(in, &req); err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "decode request: %v", err)
	}
	resp, err := e.Escalate(ctx, req)
	if err != nil {
		return nil, status.Error(serverCode(err), err.Error())
	}
	out, err := toStruct(resp)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

func serverCode(err error) codes.Code {
	switch {
	case errors.Is(err, ErrRateLimited):
		return codes.ResourceExhausted
	case errors.Is(err, ErrMalformed):
		return codes.DataLoss
	case errors.Is(err, context.DeadlineExceeded):
		return codes.DeadlineExceeded
	default:
		return codes.Unavailable
	}
}

// #endregion server
