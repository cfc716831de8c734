// Package health exposes the standard gRPC health service so orchestrators
// can probe the replay process.
package health

import (
	"context"
	"net"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// ServiceName is the health service name reported for the replay buffer.
const ServiceName = "cartridge.replay.v1.Replay"

// Server wraps a gRPC server that only carries health and reflection.
type Server struct {
	grpc   *grpc.Server
	health *health.Server
	logger zerolog.Logger
}

// NewServer creates a health server. Both the overall and the replay service
// status start out NOT_SERVING until MarkServing is called.
func NewServer(logger zerolog.Logger) *Server {
	s := &Server{
		health: health.NewServer(),
		logger: logger,
	}
	s.grpc = grpc.NewServer(grpc.UnaryInterceptor(s.loggingInterceptor))

	healthpb.RegisterHealthServer(s.grpc, s.health)
	reflection.Register(s.grpc)

	s.setStatus(healthpb.HealthCheckResponse_NOT_SERVING)
	return s
}

// MarkServing reports the replay service as healthy.
func (s *Server) MarkServing() {
	s.setStatus(healthpb.HealthCheckResponse_SERVING)
}

// Serve accepts connections on lis until Shutdown is called.
func (s *Server) Serve(lis net.Listener) error {
	s.logger.Info().Str("addr", lis.Addr().String()).Msg("gRPC health server listening")
	return s.grpc.Serve(lis)
}

// Shutdown flips the status to NOT_SERVING and stops gracefully, forcing a
// stop if ctx expires first.
func (s *Server) Shutdown(ctx context.Context) {
	s.health.Shutdown()

	stopped := make(chan struct{})
	go func() {
		s.grpc.GracefulStop()
		close(stopped)
	}()

	select {
	case <-ctx.Done():
		s.logger.Warn().Msg("gRPC shutdown timeout exceeded, forcing stop")
		s.grpc.Stop()
	case <-stopped:
		s.logger.Info().Msg("gRPC health server stopped gracefully")
	}
}

func (s *Server) setStatus(status healthpb.HealthCheckResponse_ServingStatus) {
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
}

// loggingInterceptor logs gRPC requests
func (s *Server) loggingInterceptor(
	ctx context.Context,
	req interface{},
	info *grpc.UnaryServerInfo,
	handler grpc.UnaryHandler,
) (interface{}, error) {
	start := time.Now()

	resp, err := handler(ctx, req)

	event := s.logger.Debug()
	if err != nil {
		event = s.logger.Warn().Err(err)
	}
	event.Str("method", info.FullMethod).
		Dur("duration", time.Since(start)).
		Msg("gRPC request")

	return resp, err
}
