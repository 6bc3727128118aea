// ABOUTME: gRPC health-check probe for gates that expose grpc.health.v1
// ABOUTME: The gate id is used as the health service name

package gatectl

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// HealthProbe pings gates with the standard gRPC health service.
type HealthProbe struct {
	conn    *grpc.ClientConn
	client  healthpb.HealthClient
	timeout time.Duration
}

var _ Prober = (*HealthProbe)(nil)

// DialHealthProbe creates a probe for the gate controller at addr.
func DialHealthProbe(addr string, timeout time.Duration, opts ...grpc.DialOption) (*HealthProbe, error) {
	if len(opts) == 0 {
		opts = []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	}
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating health client for %s: %w", addr, err)
	}
	return &HealthProbe{
		conn:    conn,
		client:  healthpb.NewHealthClient(conn),
		timeout: timeout,
	}, nil
}

// Ping reports nil only when the gate's service is SERVING.
func (p *HealthProbe) Ping(ctx context.Context, gateID string) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	resp, err := p.client.Check(ctx, &healthpb.HealthCheckRequest{Service: gateID})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNoAck, err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		return fmt.Errorf("%w: gate %s is %s", ErrNoAck, gateID, resp.GetStatus())
	}
	return nil
}

// Close releases the connection.
func (p *HealthProbe) Close() error {
	return p.conn.Close()
}
