// Package server assembles the HTTP API and the gRPC health endpoint.
package server

import (
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// NewGRPCServer returns a gRPC server carrying the standard health service backed by hs.
// Orchestrators probe it on GRPC_ADDR; the challenge API itself is HTTP only.
func NewGRPCServer(hs *grpchealth.Server, opts ...grpc.ServerOption) *grpc.Server {
	opts = append([]grpc.ServerOption{grpc.StatsHandler(otelgrpc.NewServerHandler())}, opts...)
	s := grpc.NewServer(opts...)
	RegisterServices(s, hs)
	reflection.Register(s)
	return s
}

// RegisterServices registers the health service with s.
func RegisterServices(s grpc.ServiceRegistrar, hs *grpchealth.Server) {
	healthpb.RegisterHealthServer(s, hs)
}
