package telemetry

import (
	"context"
	"testing"
)

func TestSetupDisabled(t *testing.T) {
	for _, tc := range []struct {
		name     string
		endpoint string
		enabled  bool
	}{
		{"no endpoint", "", true},
		{"disabled", "http://localhost:4318", false},
	} {
		t.Run(tc.name, func(t *testing.T) {
			shutdown, err := Setup(context.Background(), tc.endpoint, tc.enabled)
			if err != nil {
				t.Fatalf("setup: %v", err)
			}
			if err := shutdown(context.Background()); err != nil {
				t.Fatalf("shutdown: %v", err)
			}
		})
	}
}

func TestSetupEndpoint(t *testing.T) {
	ctx := context.Background()
	shutdown, err := Setup(ctx, "http://127.0.0.1:1/v1/traces", true)
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	// nothing was recorded so there is nothing to flush
	if err := shutdown(ctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}
