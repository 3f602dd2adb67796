package telemetry_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/JaimeStill/tally/pkg/lifecycle"
	"github.com/JaimeStill/tally/pkg/telemetry"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewDisabled(t *testing.T) {
	t.Setenv("OTEL_SDK_DISABLED", "true")

	sys, err := telemetry.New(context.Background(), "tally", "test", discard())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if sys.Enabled() {
		t.Error("tracing should be disabled")
	}

	lc := lifecycle.New()
	if err := sys.Start(lc); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := lc.Shutdown(time.Second); err != nil {
		t.Errorf("shutdown: %v", err)
	}
}

func TestNewUnsupportedProtocolDegrades(t *testing.T) {
	t.Setenv("OTEL_SDK_DISABLED", "false")
	t.Setenv("OTEL_EXPORTER_OTLP_PROTOCOL", "carrier-pigeon")

	sys, err := telemetry.New(context.Background(), "tally", "test", discard())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if sys.Enabled() {
		t.Error("tracing should fall back to no-op provider")
	}
}
