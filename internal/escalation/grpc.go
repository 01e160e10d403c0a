package escalation

import (
	"context"
	"encoding/json"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// ProposeMethod is the full gRPC method name. Messages are google.protobuf.Struct
// carrying the JSON shape of Request and Response.
const ProposeMethod = "/oracle.v1.EscalationService/Propose"

// #region client-struct
// GRPCClient calls a remote escalation service.
type GRPCClient struct {
	conn *grpc.ClientConn
	cc   grpc.ClientConnInterface
}

// #endregion client-struct

// #region constructor
// NewGRPCClient connects to an escalation service at addr.
func NewGRPCClient(addr string) (*GRPCClient, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("grpc dial %s: %w", addr, err)
	}
	return &GRPCClient{conn: conn, cc: conn}, nil
}

// NewGRPCClientWithConn creates a GRPCClient over an existing connection.
// Used for testing without a real network.
func NewGRPCClientWithConn(cc grpc.ClientConnInterface) *GRPCClient {
	return &GRPCClient{cc: cc}
}

// Close shuts down the connection if the client owns one.
func (c *GRPCClient) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// #endregion constructor

// #region escalate
// Escalate sends req as a Struct and decodes the Struct reply.
func (c *GRPCClient) Escalate(ctx context.Context, req Request) (Response, error) {
	in, err := toStruct(req)
	if err != nil {
		return Response{}, err
	}
	out := &structpb.Struct{}
	if err := c.cc.Invoke(ctx, ProposeMethod, in, out); err != nil {
		return Response{}, rpcError(err)
	}
	raw, err := out.MarshalJSON()
	if err != nil {
		return Response{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return decodeResponse(raw)
}

func rpcError(err error) error {
	switch status.Code(err) {
	case codes.ResourceExhausted:
		return fmt.Errorf("propose rpc: %w: %w", ErrRateLimited, err)
	case codes.InvalidArgument, codes.DataLoss:
		return fmt.Errorf("propose rpc: %w: %w", ErrMalformed, err)
	default:
		return fmt.Errorf("propose rpc: %w: %w", ErrUnavailable, err)
	}
}

// #endregion escalate

// #region struct-codec
func toStruct(v any) (*structpb.Struct, error) {
	raw, err := encodeJSON(v)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("convert escalation request: %w", err)
	}
	s, err := structpb.NewStruct(m)
	if err != nil {
		return nil, fmt.Errorf("convert escalation request: %w", err)
	}
	return s, nil
}

func fromStruct(s *structpb.Struct, v any) error {
	raw, err := s.MarshalJSON()
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}

// #endregion struct-codec
