package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	grpc_prometheus "github.com/grpc-ecosystem/go-grpc-prometheus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"

	"github.com/ratipstack/ratip-engine/internal/config"
)

// GRPCServer hosts the correlation service together with the standard health
// and (optionally) reflection services.
type GRPCServer struct {
	logger          *slog.Logger
	grpcServer      *grpc.Server
	health          *health.Server
	listener        net.Listener
	gracefulTimeout time.Duration
}

// NewGRPCServer binds cfg.Address and registers service on it.
func NewGRPCServer(cfg config.ServerConfig, service CorrelationServer, logger *slog.Logger, opts ...grpc.ServerOption) (*GRPCServer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	lis, err := net.Listen("tcp", cfg.Address)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", cfg.Address, err)
	}

	grpc_prometheus.EnableHandlingTimeHistogram()
	serverOpts := append([]grpc.ServerOption{
		grpc.ChainUnaryInterceptor(grpc_prometheus.UnaryServerInterceptor, logUnary(logger)),
		grpc.ChainStreamInterceptor(grpc_prometheus.StreamServerInterceptor),
	}, opts...)
	srv := grpc.NewServer(serverOpts...)

	RegisterCorrelationServer(srv, service)
	grpc_prometheus.Register(srv)

	healthSrv := health.NewServer()
	healthpb.RegisterHealthServer(srv, healthSrv)
	if cfg.Reflection {
		reflection.Register(srv)
	}

	s := &GRPCServer{
		logger:          logger,
		grpcServer:      srv,
		health:          healthSrv,
		listener:        lis,
		gracefulTimeout: cfg.GracefulTimeout,
	}
	s.SetServing(true)
	return s, nil
}

// SetServing flips the health status reported for the overall server and for
// ratip.v1.Correlation.
func (s *GRPCServer) SetServing(serving bool) {
	st := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		st = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", st)
	s.health.SetServingStatus(CorrelationServiceName, st)
}

// Run serves until ctx is done, then drains in-flight calls for at most the
// graceful timeout before forcing the server closed.
func (s *GRPCServer) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("grpc server listening", slog.String("address", s.Addr()))
		errCh <- s.grpcServer.Serve(s.listener)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, grpc.ErrServerStopped) {
			return nil
		}
		return fmt.Errorf("grpc serve: %w", err)
	case <-ctx.Done():
	}

	s.health.Shutdown()
	stopped := make(chan struct{})
	go func() {
		s.grpcServer.GracefulStop()
		close(stopped)
	}()

	timer := time.NewTimer(s.gracefulTimeout)
	defer timer.Stop()
	select {
	case <-stopped:
	case <-timer.C:
		s.logger.Warn("grpc graceful stop timed out, closing connections")
		s.grpcServer.Stop()
		<-stopped
	}
	<-errCh
	return nil
}

// Addr reports the bound listener address.
func (s *GRPCServer) Addr() string {
	return s.listener.Addr().String()
}

func logUnary(logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		code := status.Code(err)
		attrs := []any{
			slog.String("method", info.FullMethod),
			slog.String("code", code.String()),
			slog.Duration("elapsed", time.Since(start)),
		}
		if err != nil {
			logger.Warn("grpc call failed", append(attrs, slog.Any("error", err))...)
		} else {
			logger.Debug("grpc call", attrs...)
		}
		return resp, err
	}
}
