package api

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/ratipstack/ratip-engine/internal/models"
	"github.com/ratipstack/ratip-engine/internal/services"
	"github.com/ratipstack/ratip-engine/internal/utils"
)

// CorrelationServiceName is the fully-qualified gRPC service name.
const CorrelationServiceName = "ratip.v1.Correlation"

// CorrelationServer is the gRPC surface. Messages are google.protobuf.Struct
// values carrying the JSON field names used by the REST API.
type CorrelationServer interface {
	PutTelemetry(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	PutAlarm(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	Query(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

// RegisterCorrelationServer attaches srv to a gRPC server.
func RegisterCorrelationServer(s grpc.ServiceRegistrar, srv CorrelationServer) {
	s.RegisterService(&correlationServiceDesc, srv)
}

var correlationServiceDesc = grpc.ServiceDesc{
	ServiceName: CorrelationServiceName,
	HandlerType: (*CorrelationServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "PutTelemetry", Handler: unaryHandler("PutTelemetry", CorrelationServer.PutTelemetry)},
		{MethodName: "PutAlarm", Handler: unaryHandler("PutAlarm", CorrelationServer.PutAlarm)},
		{MethodName: "Query", Handler: unaryHandler("Query", CorrelationServer.Query)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: correlationProtoPath,
}

type structMethod func(CorrelationServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(method string, call structMethod) grpc.MethodHandler {
	fullMethod := "/" + CorrelationServiceName + "/" + method
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(CorrelationServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(CorrelationServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// CorrelationClient calls the Correlation service.
type CorrelationClient struct {
	cc grpc.ClientConnInterface
}

// NewCorrelationClient wraps a client connection.
func NewCorrelationClient(cc grpc.ClientConnInterface) *CorrelationClient {
	return &CorrelationClient{cc: cc}
}

func (c *CorrelationClient) invoke(ctx context.Context, method string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+CorrelationServiceName+"/"+method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *CorrelationClient) PutTelemetry(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "PutTelemetry", in, opts...)
}

func (c *CorrelationClient) PutAlarm(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "PutAlarm", in, opts...)
}

func (c *CorrelationClient) Query(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "Query", in, opts...)
}

// CorrelationService implements CorrelationServer on top of the ingest path
// and the query orchestrator.
type CorrelationService struct {
	logger  *slog.Logger
	ingest  Ingestor
	queries QueryProcessor
}

// NewCorrelationService constructs the gRPC facade.
func NewCorrelationService(logger *slog.Logger, ingest Ingestor, queries QueryProcessor) *CorrelationService {
	if logger == nil {
		logger = slog.Default()
	}
	return &CorrelationService{logger: logger, ingest: ingest, queries: queries}
}

// PutTelemetry ingests one telemetry sample.
func (s *CorrelationService) PutTelemetry(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	sample, err := FromStructTelemetry(req)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if err := s.ingest.IngestTelemetry(sample); err != nil {
		return nil, s.ingestStatus(err)
	}
	return structpb.NewStruct(map[string]any{"id": sample.ID, "accepted": true})
}

// PutAlarm ingests one alarm and returns any live correlations.
func (s *CorrelationService) PutAlarm(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	alarm, err := FromStructAlarm(req)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	events, err := s.ingest.IngestAlarm(alarm)
	if err != nil {
		return nil, s.ingestStatus(err)
	}
	list, err := ToStructEvents(events)
	if err != nil {
		return nil, status.Error(codes.Internal, "failed to encode correlations")
	}
	out, err := structpb.NewStruct(map[string]any{"id": alarm.ID, "accepted": true})
	if err != nil {
		return nil, status.Error(codes.Internal, "failed to encode response")
	}
	out.Fields["correlations"] = structpb.NewListValue(list)
	return out, nil
}

// Query answers a free-text question.
func (s *CorrelationService) Query(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request cannot be nil")
	}
	query := req.GetFields()["query"].GetStringValue()
	if strings.TrimSpace(query) == "" {
		return nil, status.Error(codes.InvalidArgument, services.EmptyQueryMessage)
	}

	s.logger.Debug("Query called", slog.String("query", query))
	res := s.queries.Process(ctx, query)
	switch {
	case res.Invalid:
		return nil, status.Error(codes.InvalidArgument, res.Answer)
	case res.Failed:
		return nil, status.Error(codes.Internal, res.Answer)
	}
	out, err := ToStructQueryResult(res)
	if err != nil {
		return nil, status.Error(codes.Internal, "failed to encode response")
	}
	return out, nil
}

func (s *CorrelationService) ingestStatus(err error) error {
	if errors.Is(err, models.ErrInvalidRecord) {
		return status.Error(codes.InvalidArgument, utils.UserMessage(err))
	}
	s.logger.Error("ingest failed", slog.Any("error", err))
	return status.Error(codes.Internal, "ingest failed")
}
