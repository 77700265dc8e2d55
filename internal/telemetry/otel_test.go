package telemetry

import (
	"context"
	"testing"
	"time"
)

func TestInitTracer(t *testing.T) {
	tests := []struct {
		name        string
		opts    Options
		wantErr bool
	}{
		{
			name: "valid configuration",
			opts: Options{ServiceName: "test-service", ServiceVersion: "1.0.0", Endpoint: "localhost:4318"},
		},
		{
			name: "empty service name",
			opts: Options{Endpoint: "localhost:4318"},
		},
		{
			name: "http endpoint URL",
			opts: Options{ServiceName: "test-service", Endpoint: "http://localhost:4318"},
		},
		{
			name: "https endpoint URL",
			opts: Options{ServiceName: "test-service", Endpoint: "https://collector.example.com"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			tp, err := InitTracer(ctx, tt.opts)
			if (err != nil) != tt.wantErr {
				t.Errorf("InitTracer() error = %v, wantErr %v", err, tt.wantErr)
				return
			}

			if tp != nil {
				// Clean up
				shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer shutdownCancel()
				if err := Shutdown(shutdownCtx, tp); err != nil {
					t.Errorf("Shutdown() error = %v", err)
				}
			}
		})
	}
}

func TestShutdown(t *testing.T) {
	t.Run("shutdown with nil provider", func(t *testing.T) {
		ctx := context.Background()
		err := Shutdown(ctx, nil)
		if err != nil {
			t.Errorf("Shutdown() with nil provider should not error, got: %v", err)
		}
	})

	t.Run("shutdown with valid provider", func(t *testing.T) {
		ctx := context.Background()
		tp, err := InitTracer(ctx, Options{ServiceName: "test-service", Endpoint: "localhost:4318"})
		if err != nil {
			t.Fatalf("Failed to initialize tracer: %v", err)
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		err = Shutdown(shutdownCtx, tp)
		if err != nil {
			t.Errorf("Shutdown() error = %v", err)
		}
	})
}
