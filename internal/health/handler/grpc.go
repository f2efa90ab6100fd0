// Package handler exposes the health Monitor over the standard grpc.health.v1 service and HTTP.
package handler

import (
	"context"
	"log"
	"time"

	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"pushauth/backend/internal/health"
)

// Service is the name the challenge API reports under, in addition to the overall "" service.
const Service = "pushauth.v1.Challenges"

// NewGRPCServer returns a grpc.health.v1 server whose status Update and Sync refresh.
// Both services start NOT_SERVING until the first sync.
func NewGRPCServer() *grpchealth.Server {
	srv := grpchealth.NewServer()
	srv.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	srv.SetServingStatus(Service, healthpb.HealthCheckResponse_NOT_SERVING)
	return srv
}

// Update runs m's checks once and publishes the result on srv.
func Update(ctx context.Context, srv *grpchealth.Server, m *health.Monitor) health.Report {
	r := m.Check(ctx)
	status := healthpb.HealthCheckResponse_SERVING
	if !r.Serving {
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	srv.SetServingStatus("", status)
	srv.SetServingStatus(Service, status)
	return r
}

// Sync calls Update every interval until ctx is done, then marks srv as shutting down.
func Sync(ctx context.Context, srv *grpchealth.Server, m *health.Monitor, interval time.Duration) {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	serving := true
	for {
		r := Update(ctx, srv, m)
		if r.Serving != serving {
			serving = r.Serving
			log.Printf("health: serving=%v failures=%v", r.Serving, r.Failures)
		}
		select {
		case <-ctx.Done():
			srv.Shutdown()
			return
		case <-ticker.C:
		}
	}
}
