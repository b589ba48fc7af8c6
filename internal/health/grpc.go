// Package health exposes the standard gRPC health service, driven by a
// periodic database probe.
package health

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the service reported alongside the overall "" entry.
const ServiceName = "manolo.Bot"

// DefaultProbeInterval is how often the database is pinged.
const DefaultProbeInterval = 15 * time.Second

// Pinger is satisfied by store.Repository.
type Pinger interface {
	Ping(ctx context.Context) error
}

// GRPCServer serves grpc.health.v1.Health.
type GRPCServer struct {
	srv      *grpc.Server
	health   *health.Server
	pinger   Pinger
	interval time.Duration
	timeout  time.Duration
}

// NewGRPCServer creates a health server probing p every interval.
func NewGRPCServer(p Pinger, interval time.Duration) *GRPCServer {
	if interval <= 0 {
		interval = DefaultProbeInterval
	}
	hs := health.NewServer()
	srv := grpc.NewServer()
	healthpb.RegisterHealthServer(srv, hs)

	s := &GRPCServer{
		srv:      srv,
		health:   hs,
		pinger:   p,
		interval: interval,
		timeout:  5 * time.Second,
	}
	s.set(healthpb.HealthCheckResponse_NOT_SERVING)
	return s
}

// ListenAndServe listens on addr and serves until ctx is done.
func (s *GRPCServer) ListenAndServe(ctx context.Context, addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen grpc health on %s: %w", addr, err)
	}
	return s.Serve(ctx, lis)
}

// Serve serves on lis until ctx is done, then stops gracefully.
func (s *GRPCServer) Serve(ctx context.Context, lis net.Listener) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	probed := make(chan struct{})
	go func() {
		defer close(probed)
		s.runProbe(ctx)
	}()
	go func() {
		<-ctx.Done()
		s.health.Shutdown()
		s.srv.GracefulStop()
	}()

	slog.Info("gRPC health server starting", "addr", lis.Addr().String())
	err := s.srv.Serve(lis)
	cancel()
	<-probed
	if err != nil {
		return fmt.Errorf("serve grpc health: %w", err)
	}
	return nil
}

func (s *GRPCServer) runProbe(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		s.probe(ctx)
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return
		}
	}
}

func (s *GRPCServer) probe(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.pinger.Ping(ctx); err != nil {
		if ctx.Err() == nil {
			slog.Warn("Health probe failed", "error", err)
		}
		s.set(healthpb.HealthCheckResponse_NOT_SERVING)
		return
	}
	s.set(healthpb.HealthCheckResponse_SERVING)
}

func (s *GRPCServer) set(status healthpb.HealthCheckResponse_ServingStatus) {
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
}
