// Package rpc serves the outlier filter over gRPC.
//
// The service is outliers.Outliers with a single unary method, Filter. Both
// request and response are google.protobuf.Struct values holding a frame in
// columnar form (see EncodeFrame). The request also carries the method name
// and optional parameters:
//
//	{"method": "iqr", "id_column": "id", "params": {"iqr_multiplier": 3}, "columns": [...]}
package rpc

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/go-gota/gota/dataframe"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/damiani91/aprende/config"
	"github.com/damiani91/aprende/metrics"
	"github.com/damiani91/aprende/outliers"
)

const (
	serviceName  = "outliers.Outliers"
	filterMethod = "/outliers.Outliers/Filter"
)

// OutliersServer is the server API for the outliers.Outliers service.
type OutliersServer interface {
	Filter(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*OutliersServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Filter",
			Handler:    filterHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "outliers.proto",
}

func filterHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(OutliersServer).Filter(ctx, in)
	}

	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: filterMethod,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(OutliersServer).Filter(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// Register registers srv on s.
func Register(s *grpc.Server, srv OutliersServer) {
	s.RegisterService(&serviceDesc, srv)
}

// Server implements OutliersServer.
type Server struct {
	log     *slog.Logger
	metrics *metrics.Metrics
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithLogger sets the server logger, the default is slog.Default.
func WithLogger(log *slog.Logger) ServerOption {
	return func(s *Server) { s.log = log }
}

// WithMetrics records every filter call in m.
func WithMetrics(m *metrics.Metrics) ServerOption {
	return func(s *Server) { s.metrics = m }
}

// NewServer returns a new Server.
func NewServer(opts ...ServerOption) *Server {
	s := &Server{}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	return s
}

// Filter removes the outlier entities from the request frame.
func (s *Server) Filter(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	cfg, err := requestConfig(req)
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "params: %s", err)
	}

	df, err := DecodeFrame(req)
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "frame: %s", err)
	}

	clean, err := s.Apply(ctx, cfg, df)
	if err != nil {
		return nil, toStatus(err)
	}

	resp, err := EncodeFrame(clean)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode: %s", err)
	}
	return resp, nil
}

// Apply filters df with cfg. Every call is logged and counted in the server
// metrics, errors are returned unchanged.
func (s *Server) Apply(ctx context.Context, cfg config.Config, df dataframe.DataFrame) (dataframe.DataFrame, error) {
	if err := ctx.Err(); err != nil {
		return dataframe.DataFrame{}, status.FromContextError(err).Err()
	}

	start := time.Now()
	clean, err := s.apply(cfg, df)
	duration := time.Since(start)

	if err != nil {
		s.metrics.Observe(cfg.Method, ErrorCode(err).String(), 0, duration)
		s.log.Warn("filter failed", "method", cfg.Method, "error", err)
		return dataframe.DataFrame{}, err
	}

	removed := df.Nrow() - clean.Nrow()
	s.metrics.Observe(cfg.Method, codes.OK.String(), removed, duration)
	s.log.Info("filter",
		"method", cfg.Method,
		"rows_in", df.Nrow(),
		"rows_out", clean.Nrow(),
		"duration", duration,
	)
	return clean, nil
}

func (s *Server) apply(cfg config.Config, df dataframe.DataFrame) (dataframe.DataFrame, error) {
	f, err := cfg.Filter(outliers.WithLogger(s.log))
	if err != nil {
		return dataframe.DataFrame{}, err
	}
	return f.Apply(df)
}

// requestConfig merges the request method and params over the defaults.
func requestConfig(req *structpb.Struct) (config.Config, error) {
	m := make(map[string]any)
	if p := req.GetFields()["params"].GetStructValue(); p != nil {
		m = p.AsMap()
	}
	for _, key := range []string{"method", "id_column"} {
		if v, ok := req.GetFields()[key]; ok {
			m[key] = v.GetStringValue()
		}
	}
	return config.FromMap(m)
}

// ErrorCode returns the gRPC code for a filter error.
func ErrorCode(err error) codes.Code {
	if st, ok := status.FromError(err); ok {
		return st.Code()
	}

	switch {
	case errors.Is(err, outliers.ErrInvalidMethod), errors.Is(err, outliers.ErrInvalidParameter):
		return codes.InvalidArgument
	case errors.Is(err, outliers.ErrInsufficientData), errors.Is(err, outliers.ErrEmptyBound):
		return codes.FailedPrecondition
	}
	return codes.Internal
}

func toStatus(err error) error {
	if _, ok := status.FromError(err); ok {
		return err
	}
	return status.Error(ErrorCode(err), err.Error())
}
