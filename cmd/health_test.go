package cmd

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

type fakeBus struct {
	connected bool
}

func (f *fakeBus) IsConnected() bool {
	return f.connected
}

func servingStatus(t *testing.T, hs *health.Server) healthpb.HealthCheckResponse_ServingStatus {
	t.Helper()
	resp, err := hs.Check(context.Background(), &healthpb.HealthCheckRequest{})
	require.NoError(t, err)
	return resp.Status
}

func TestUpdateServingStatus(t *testing.T) {
	tests := []struct {
		name string
		bus  connectionChecker
		want healthpb.HealthCheckResponse_ServingStatus
	}{
		{name: "no event bus", bus: nil, want: healthpb.HealthCheckResponse_SERVING},
		{name: "connected", bus: &fakeBus{connected: true}, want: healthpb.HealthCheckResponse_SERVING},
		{name: "disconnected", bus: &fakeBus{connected: false}, want: healthpb.HealthCheckResponse_NOT_SERVING},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hs := health.NewServer()
			assert.Equal(t, tt.want, updateServingStatus(hs, tt.bus))
			assert.Equal(t, tt.want, servingStatus(t, hs))
		})
	}
}

func TestWatchHealth_StopsOnCancel(t *testing.T) {
	hs := health.NewServer()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		watchHealth(ctx, hs, &fakeBus{connected: false}, time.Millisecond)
		close(done)
	}()

	assert.Eventually(t, func() bool {
		return servingStatus(t, hs) == healthpb.HealthCheckResponse_NOT_SERVING
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("watchHealth did not return after cancel")
	}
}
