// Package telemetry gates error/trace reporting initialization on whether a
// DSN is configured. No Sentry client exists anywhere in this module's
// dependency set, so this is a deliberate log-and-skip stub rather than a
// wired SDK; see DESIGN.md.
package telemetry

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/swlody/fridge-poetry/internal/config"
)

// Handle records whether a DSN was configured. No telemetry client is
// created behind it, so Close is always a no-op.
type Handle struct {
	enabled bool
}

// Init validates the configured sample rates and, if a DSN is present,
// reports that telemetry would be initialized; otherwise it logs that
// initialization was skipped. Sample rates are validated unconditionally —
// validation is not a feature the DSN gates.
func Init(cfg config.Config, log *zap.Logger) (*Handle, error) {
	if cfg.TraceSampleRate < 0 || cfg.TraceSampleRate > 1 {
		return nil, fmt.Errorf("trace sample rate out of range: %v", cfg.TraceSampleRate)
	}
	if cfg.ErrorSampleRate < 0 || cfg.ErrorSampleRate > 1 {
		return nil, fmt.Errorf("error sample rate out of range: %v", cfg.ErrorSampleRate)
	}

	if cfg.SentryDSN == "" {
		log.Warn("skipping telemetry initialization due to missing SENTRY_DSN")
		return &Handle{enabled: false}, nil
	}

	log.Info("telemetry initialized",
		zap.Float64("trace_sample_rate", cfg.TraceSampleRate),
		zap.Float64("error_sample_rate", cfg.ErrorSampleRate),
	)
	return &Handle{enabled: true}, nil
}

// Enabled reports whether a DSN was configured.
func (h *Handle) Enabled() bool {
	return h != nil && h.enabled
}

// Close does nothing: the stub holds no client to flush or release.
func (h *Handle) Close() {}
