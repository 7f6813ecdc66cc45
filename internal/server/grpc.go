package server

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/gasandbox/sandbox-server/internal/config"
	"github.com/gasandbox/sandbox-server/internal/table"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/status"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "sandbox.v1.Sandbox"

const (
	methodCreateTable = "/" + ServiceName + "/CreateTable"
	methodApply       = "/" + ServiceName + "/Apply"
	methodGetState    = "/" + ServiceName + "/GetState"
)

// JSONCodec carries gRPC messages as JSON so the service needs no generated code.
type JSONCodec struct{}

func (JSONCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (JSONCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
func (JSONCodec) Name() string                       { return "json" }

type CreateTableRequest struct {
	Name string `json:"name"`
}

type CreateTableResponse struct {
	Table table.Info `json:"table"`
}

type ApplyRequest struct {
	TableID string         `json:"table_id"`
	Command CommandRequest `json:"command"`
}

type GetStateRequest struct {
	TableID string `json:"table_id"`
}

// SandboxServer is the server API of the Sandbox service.
type SandboxServer interface {
	CreateTable(context.Context, *CreateTableRequest) (*CreateTableResponse, error)
	Apply(context.Context, *ApplyRequest) (*StateResponse, error)
	GetState(context.Context, *GetStateRequest) (*StateResponse, error)
}

var sandboxServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*SandboxServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "CreateTable", Handler: createTableHandler},
		{MethodName: "Apply", Handler: applyHandler},
		{MethodName: "GetState", Handler: getStateHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "sandbox/v1/sandbox.json",
}

// RegisterSandboxServer registers srv with s.
func RegisterSandboxServer(s grpc.ServiceRegistrar, srv SandboxServer) {
	s.RegisterService(&sandboxServiceDesc, srv)
}

func createTableHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(CreateTableRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SandboxServer).CreateTable(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodCreateTable}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(SandboxServer).CreateTable(ctx, req.(*CreateTableRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func applyHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(ApplyRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SandboxServer).Apply(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodApply}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(SandboxServer).Apply(ctx, req.(*ApplyRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func getStateHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(GetStateRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SandboxServer).GetState(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodGetState}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(SandboxServer).GetState(ctx, req.(*GetStateRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// sandboxServer implements SandboxServer on top of Service.
type sandboxServer struct {
	svc *Service
}

// NewSandboxServer adapts svc to the gRPC service interface.
func NewSandboxServer(svc *Service) SandboxServer {
	return &sandboxServer{svc: svc}
}

func (s *sandboxServer) CreateTable(ctx context.Context, req *CreateTableRequest) (*CreateTableResponse, error) {
	info, err := s.svc.CreateTable(req.Name)
	if err != nil {
		return nil, grpcError(err)
	}
	return &CreateTableResponse{Table: info}, nil
}

func (s *sandboxServer) Apply(ctx context.Context, req *ApplyRequest) (*StateResponse, error) {
	if req.TableID == "" {
		return nil, status.Error(codes.InvalidArgument, "table_id is required")
	}
	state, err := s.svc.Apply(ctx, req.TableID, req.Command)
	if err != nil {
		return nil, grpcError(err)
	}
	return &state, nil
}

func (s *sandboxServer) GetState(ctx context.Context, req *GetStateRequest) (*StateResponse, error) {
	if req.TableID == "" {
		return nil, status.Error(codes.InvalidArgument, "table_id is required")
	}
	state, err := s.svc.State(req.TableID)
	if err != nil {
		return nil, grpcError(err)
	}
	return &state, nil
}

func grpcError(err error) error {
	switch {
	case errors.Is(err, table.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, table.ErrTooManyTables):
		return status.Error(codes.ResourceExhausted, err.Error())
	case errors.Is(err, ErrUnknownCommand), errors.Is(err, ErrInvalidCommand):
		return status.Error(codes.InvalidArgument, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

// NewGRPCServer builds a gRPC server exposing svc.
func NewGRPCServer(svc *Service, cfg config.GRPCConfig, logger *zap.Logger) *grpc.Server {
	opts := []grpc.ServerOption{
		grpc.ForceServerCodec(JSONCodec{}),
		grpc.UnaryInterceptor(ChainUnaryInterceptors(
			RecoveryInterceptor(logger),
			LoggingInterceptor(logger),
		)),
		grpc.KeepaliveParams(keepalive.ServerParameters{
			Time:    30 * time.Second,
			Timeout: 10 * time.Second,
		}),
	}
	if cfg.MaxConcurrentStreams > 0 {
		opts = append(opts, grpc.MaxConcurrentStreams(uint32(cfg.MaxConcurrentStreams)))
	}

	srv := grpc.NewServer(opts...)
	RegisterSandboxServer(srv, NewSandboxServer(svc))
	return srv
}

// SandboxClient calls the Sandbox service.
type SandboxClient struct {
	cc grpc.ClientConnInterface
}

// NewSandboxClient wraps a connection. Calls always use the JSON codec.
func NewSandboxClient(cc grpc.ClientConnInterface) *SandboxClient {
	return &SandboxClient{cc: cc}
}

func (c *SandboxClient) invoke(ctx context.Context, method string, in, out any, opts []grpc.CallOption) error {
	opts = append([]grpc.CallOption{grpc.ForceCodec(JSONCodec{})}, opts...)
	return c.cc.Invoke(ctx, method, in, out, opts...)
}

func (c *SandboxClient) CreateTable(ctx context.Context, in *CreateTableRequest, opts ...grpc.CallOption) (*CreateTableResponse, error) {
	out := new(CreateTableResponse)
	if err := c.invoke(ctx, methodCreateTable, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *SandboxClient) Apply(ctx context.Context, in *ApplyRequest, opts ...grpc.CallOption) (*StateResponse, error) {
	out := new(StateResponse)
	if err := c.invoke(ctx, methodApply, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *SandboxClient) GetState(ctx context.Context, in *GetStateRequest, opts ...grpc.CallOption) (*StateResponse, error) {
	out := new(StateResponse)
	if err := c.invoke(ctx, methodGetState, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}
