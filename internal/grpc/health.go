package server

import (
	"context"
	"sync"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"

	"github.com/tejusbharadwaj/vueswitch/internal/models"
)

// ServiceName is the health service name reporting whether the last poll
// of the cloud API succeeded. The empty name reports process liveness.
const ServiceName = "vueswitch.Switch"

// HealthChecker implements the gRPC health checking protocol
type HealthChecker struct {
	grpc_health_v1.UnimplementedHealthServer
	mu     sync.RWMutex
	status map[string]grpc_health_v1.HealthCheckResponse_ServingStatus
}

func NewHealthChecker() *HealthChecker {
	return &HealthChecker{
		status: map[string]grpc_health_v1.HealthCheckResponse_ServingStatus{
			"":          grpc_health_v1.HealthCheckResponse_SERVING,
			ServiceName: grpc_health_v1.HealthCheckResponse_NOT_SERVING,
		},
	}
}

func (h *HealthChecker) Check(ctx context.Context, req *grpc_health_v1.HealthCheckRequest) (*grpc_health_v1.HealthCheckResponse, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if status, ok := h.status[req.Service]; ok {
		return &grpc_health_v1.HealthCheckResponse{
			Status: status,
		}, nil
	}

	return nil, status.Error(codes.NotFound, "unknown service")
}

func (h *HealthChecker) Watch(req *grpc_health_v1.HealthCheckRequest, stream grpc_health_v1.Health_WatchServer) error {
	return status.Error(codes.Unimplemented, "watching is not supported")
}

// SetServingStatus sets the serving status of a service
func (h *HealthChecker) SetServingStatus(service string, status grpc_health_v1.HealthCheckResponse_ServingStatus) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.status[service] = status
}

// Serving reports the current status of ServiceName.
func (h *HealthChecker) Serving() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.status[ServiceName] == grpc_health_v1.HealthCheckResponse_SERVING
}

func (h *HealthChecker) ObserveReading(context.Context, models.Reading) {
	h.SetServingStatus(ServiceName, grpc_health_v1.HealthCheckResponse_SERVING)
}

func (h *HealthChecker) ObserveFailure(context.Context, error) {
	h.SetServingStatus(ServiceName, grpc_health_v1.HealthCheckResponse_NOT_SERVING)
}
