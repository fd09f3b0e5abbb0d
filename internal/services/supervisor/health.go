package supervisor

import (
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// HealthReporter publishes per-device liveness through the standard gRPC
// health service. Devices are registered as "device/<name>"; the empty
// service name reflects the whole worker.
type HealthReporter struct {
	server *health.Server
}

func NewHealthReporter() *HealthReporter {
	return &HealthReporter{server: health.NewServer()}
}

func ServiceName(deviceName string) string { return "device/" + deviceName }

// SetDevice marks one device as serving or not
func (h *HealthReporter) SetDevice(name string, serving bool) {
	h.server.SetServingStatus(ServiceName(name), status(serving))
}

// SetOverall marks the worker as a whole
func (h *HealthReporter) SetOverall(serving bool) {
	h.server.SetServingStatus("", status(serving))
}

// Server exposes the health server, e.g. for in-process checks
func (h *HealthReporter) Server() healthpb.HealthServer { return h.server }

// Shutdown flips every service to NOT_SERVING
func (h *HealthReporter) Shutdown() { h.server.Shutdown() }

// NewGRPCServer returns a gRPC server with health and reflection registered
func NewGRPCServer(h *HealthReporter, opts ...grpc.ServerOption) *grpc.Server {
	s := grpc.NewServer(opts...)
	healthpb.RegisterHealthServer(s, h.server)
	reflection.Register(s)
	return s
}

func status(serving bool) healthpb.HealthCheckResponse_ServingStatus {
	if serving {
		return healthpb.HealthCheckResponse_SERVING
	}
	return healthpb.HealthCheckResponse_NOT_SERVING
}
