package telemetry

import (
	"testing"

	"go.uber.org/zap"

	"github.com/swlody/fridge-poetry/internal/config"
)

func TestInitSkipsWithoutDSN(t *testing.T) {
	h, err := Init(config.Config{TraceSampleRate: 0.1, ErrorSampleRate: 1.0}, zap.NewNop())
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if h.Enabled() {
		t.Error("expected telemetry to be disabled without a DSN")
	}
}

func TestInitEnabledWithDSN(t *testing.T) {
	h, err := Init(config.Config{SentryDSN: "https://key@example.com/1", TraceSampleRate: 0.1, ErrorSampleRate: 1.0}, zap.NewNop())
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if !h.Enabled() {
		t.Error("expected telemetry to be enabled with a DSN")
	}
}

func TestInitRejectsOutOfRangeSampleRate(t *testing.T) {
	if _, err := Init(config.Config{TraceSampleRate: 2}, zap.NewNop()); err == nil {
		t.Fatal("expected an error for an out-of-range trace sample rate")
	}
}
