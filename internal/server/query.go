package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/joseph-ayodele/taix/internal/common"
	"github.com/joseph-ayodele/taix/internal/gateway"
)

const queryServiceName = "taix.v1.QueryService"

// QueryServer is the RPC surface over the gateway. Messages are
// google.protobuf.Struct carrying the same JSON shapes as the HTTP API.
type QueryServer interface {
	Find(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	Similar(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	RunTool(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
}

type QueryService struct {
	gateway *gateway.Gateway
	tools   map[string]gateway.Tool
	logger  *slog.Logger
}

var _ QueryServer = (*QueryService)(nil)

func NewQueryService(gw *gateway.Gateway, tools map[string]gateway.Tool, logger *slog.Logger) *QueryService {
	if logger == nil {
		logger = slog.Default()
	}
	return &QueryService{gateway: gw, tools: tools, logger: logger}
}

func (s *QueryService) Find(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	logger := common.LoggerFromContext(ctx, s.logger)
	var body FindBody
	if err := remarshal(in.AsMap(), &body); err != nil {
		return nil, common.InvalidArgumentErrorf("find request: %v", err)
	}
	if body.Collection == "" {
		return nil, common.InvalidArgumentError("collection is required")
	}
	req, err := body.request()
	if err != nil {
		return nil, toStatus(err)
	}

	start := time.Now()
	page, err := s.gateway.Find(ctx, req)
	if err != nil {
		logger.Warn("grpc.find.failed", "collection", req.Collection, "error", err)
		return nil, toStatus(err)
	}
	logger.Info("grpc.find.ok", "collection", req.Collection, "objects", len(page.Objects), "elapsed_ms", time.Since(start).Milliseconds())
	return toStruct(PageBody{Objects: objectBodies(page.Objects), Cursor: page.Cursor, HasMore: page.HasMore})
}

func (s *QueryService) Similar(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	logger := common.LoggerFromContext(ctx, s.logger)
	var body SimilarBody
	if err := remarshal(in.AsMap(), &body); err != nil {
		return nil, common.InvalidArgumentErrorf("similar request: %v", err)
	}
	if body.Collection == "" {
		return nil, common.InvalidArgumentError("collection is required")
	}
	req, err := body.request()
	if err != nil {
		return nil, toStatus(err)
	}

	start := time.Now()
	hits, err := s.gateway.Similar(ctx, req)
	if err != nil {
		logger.Warn("grpc.similar.failed", "collection", req.Collection, "error", err)
		return nil, toStatus(err)
	}
	logger.Info("grpc.similar.ok", "collection", req.Collection, "hits", len(hits), "elapsed_ms", time.Since(start).Milliseconds())
	return toStruct(PageBody{Objects: objectBodies(hits)})
}

func (s *QueryService) RunTool(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	logger := common.LoggerFromContext(ctx, s.logger)
	var body ToolBody
	if err := remarshal(in.AsMap(), &body); err != nil {
		return nil, common.InvalidArgumentErrorf("tool request: %v", err)
	}
	out, err := runTool(ctx, s.tools, body.Tool, body.Query)
	if err != nil {
		logger.Warn("grpc.run_tool.failed", "tool", body.Tool, "error", err)
		return nil, toStatus(err)
	}
	return toStruct(ToolResult{Tool: body.Tool, Output: out})
}

func runTool(ctx context.Context, tools map[string]gateway.Tool, name, query string) (string, error) {
	t, ok := tools[name]
	if !ok {
		return "", fmt.Errorf("%w: %q", errUnknownTool, name)
	}
	return t.Run(ctx, query)
}

func toStruct(v any) (*structpb.Struct, error) {
	var m map[string]any
	if err := remarshal(v, &m); err != nil {
		return nil, common.InternalErrorf("encode response: %v", err)
	}
	out, err := structpb.NewStruct(m)
	if err != nil {
		return nil, common.InternalErrorf("encode response: %v", err)
	}
	return out, nil
}

func unaryHandler(call func(QueryServer, context.Context, *structpb.Struct) (*structpb.Struct, error), method string) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(QueryServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + queryServiceName + "/" + method}
		return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
			return call(srv.(QueryServer), ctx, req.(*structpb.Struct))
		})
	}
}

// QueryServiceDesc is written by hand; the messages are well-known types so
// no generated code is needed.
var QueryServiceDesc = grpc.ServiceDesc{
	ServiceName: queryServiceName,
	HandlerType: (*QueryServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Find", Handler: unaryHandler(QueryServer.Find, "Find")},
		{MethodName: "Similar", Handler: unaryHandler(QueryServer.Similar, "Similar")},
		{MethodName: "RunTool", Handler: unaryHandler(QueryServer.RunTool, "RunTool")},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "taix/v1/query.proto",
}

func RegisterQueryServer(s grpc.ServiceRegistrar, srv QueryServer) {
	s.RegisterService(&QueryServiceDesc, srv)
}

// QueryClient calls a remote QueryService.
type QueryClient struct {
	cc grpc.ClientConnInterface
}

func NewQueryClient(cc grpc.ClientConnInterface) *QueryClient {
	return &QueryClient{cc: cc}
}

func (c *QueryClient) invoke(ctx context.Context, method string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+queryServiceName+"/"+method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *QueryClient) Find(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "Find", in, opts...)
}

func (c *QueryClient) Similar(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "Similar", in, opts...)
}

func (c *QueryClient) RunTool(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "RunTool", in, opts...)
}
