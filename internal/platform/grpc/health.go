// Package grpc holds the operator's gRPC health probe client.
package grpc

import (
	"context"
	"fmt"
	"time"

	"github.com/dablchess/operator/internal/platform/timeouts"
	gogrpc "google.golang.org/grpc"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
)

// WaitForHealth polls service on conn until it reports SERVING or ctx ends.
// The error on timeout carries the last status or call error seen.
func WaitForHealth(ctx context.Context, conn *gogrpc.ClientConn, service string, logf func(string, ...any)) error {
	if conn == nil {
		return fmt.Errorf("gRPC connection is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	healthClient := grpc_health_v1.NewHealthClient(conn)
	backoff := 100 * time.Millisecond
	last := "no response"
	for {
		callCtx, cancel := context.WithTimeout(ctx, timeouts.HealthPoll)
		response, err := healthClient.Check(callCtx, &grpc_health_v1.HealthCheckRequest{Service: service})
		cancel()
		switch {
		case err != nil:
			last = err.Error()
		case response.GetStatus() == grpc_health_v1.HealthCheckResponse_SERVING:
			return nil
		default:
			last = "status " + response.GetStatus().String()
		}
		if logf != nil {
			logf("waiting for %q health: %s", service, last)
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("wait for %q health (%s): %w", service, last, ctx.Err())
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, timeouts.HealthPoll)
	}
}
