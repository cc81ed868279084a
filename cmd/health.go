package cmd

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

const healthCheckInterval = 5 * time.Second

// connectionChecker is satisfied by the NATS client
type connectionChecker interface {
	IsConnected() bool
}

// updateServingStatus reports NOT_SERVING while the event bus connection is down.
// A nil checker means events are not published and the service is always serving.
func updateServingStatus(hs *health.Server, bus connectionChecker) healthpb.HealthCheckResponse_ServingStatus {
	status := healthpb.HealthCheckResponse_SERVING
	if bus != nil && !bus.IsConnected() {
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	hs.SetServingStatus("", status)
	return status
}

// watchHealth refreshes the serving status until ctx is cancelled
func watchHealth(ctx context.Context, hs *health.Server, bus connectionChecker, interval time.Duration) {
	last := updateServingStatus(hs, bus)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			status := updateServingStatus(hs, bus)
			if status != last {
				log.WithField("status", status.String()).Warn("Health status changed")
				last = status
			}
		}
	}
}
