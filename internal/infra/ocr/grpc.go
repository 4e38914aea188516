package ocr

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health/grpc_health_v1"
)

// HealthProbe checks a self-hosted OCR sidecar over the standard gRPC
// health service. The health monitor gates routing on it so the breaker
// is not the only signal that the sidecar is down.
type HealthProbe struct {
	endpoint string
	conn     *grpc.ClientConn
	client   grpc_health_v1.HealthClient
}

// NewHealthProbe dials the sidecar's health endpoint. TLS is inferred
// from the scheme or a :443 suffix.
func NewHealthProbe(ctx context.Context, endpoint string) (*HealthProbe, error) {
	target := endpoint
	var opts []grpc.DialOption

	if strings.HasPrefix(endpoint, "https://") || strings.HasSuffix(endpoint, ":443") {
		creds := credentials.NewTLS(&tls.Config{})
		opts = append(opts, grpc.WithTransportCredentials(creds))
		target = strings.TrimPrefix(target, "https://")
	} else {
		opts = append(opts, grpc.WithTransportCredentials(insecure.NewCredentials()))
		target = strings.TrimPrefix(target, "http://")
	}

	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to dial ocr health endpoint %s: %w", target, err)
	}

	return &HealthProbe{
		endpoint: endpoint,
		conn:     conn,
		client:   grpc_health_v1.NewHealthClient(conn),
	}, nil
}

// Check reports whether the sidecar considers itself serving.
func (p *HealthProbe) Check(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	resp, err := p.client.Check(ctx, &grpc_health_v1.HealthCheckRequest{})
	if err != nil {
		return fmt.Errorf("ocr health check: %w", err)
	}
	if resp.Status != grpc_health_v1.HealthCheckResponse_SERVING {
		return fmt.Errorf("ocr sidecar not serving: %s", resp.Status)
	}
	return nil
}

// Close releases the underlying connection.
func (p *HealthProbe) Close() error {
	return p.conn.Close()
}
