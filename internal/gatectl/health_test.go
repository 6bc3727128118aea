// ABOUTME: Tests for the gRPC health probe
// ABOUTME: Serves grpc.health.v1 over an in-memory bufconn listener

package gatectl

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"
)

func newTestProbe(t *testing.T) (*HealthProbe, *health.Server) {
	t.Helper()

	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	probe, err := DialHealthProbe("passthrough:///bufnet", time.Second,
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { probe.Close() })
	return probe, hs
}

func TestHealthProbe_Serving(t *testing.T) {
	probe, hs := newTestProbe(t)
	hs.SetServingStatus("G1", healthpb.HealthCheckResponse_SERVING)

	assert.NoError(t, probe.Ping(context.Background(), "G1"))
}

func TestHealthProbe_NotServing(t *testing.T) {
	probe, hs := newTestProbe(t)
	hs.SetServingStatus("G1", healthpb.HealthCheckResponse_NOT_SERVING)

	err := probe.Ping(context.Background(), "G1")
	assert.ErrorIs(t, err, ErrNoAck)
	assert.Contains(t, err.Error(), "NOT_SERVING")
}

func TestHealthProbe_UnknownGate(t *testing.T) {
	probe, _ := newTestProbe(t)

	err := probe.Ping(context.Background(), "G404")
	assert.ErrorIs(t, err, ErrNoAck)
}
