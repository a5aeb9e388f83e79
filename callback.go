package numerion

import (
	"github.com/rs/zerolog"

	"github.com/arrowlake/numerion/internal/telemetry"
)

// RunObserver receives run/stage lifecycle notifications and the live
// telemetry feed. See internal/telemetry.RunObserver for the full
// contract.
type RunObserver = telemetry.RunObserver

// HTTPObserver posts every run/stage lifecycle event and telemetry
// snapshot to a configured webhook URL as a JSON payload.
type HTTPObserver = telemetry.HTTPObserver

// HTTPObserverConfig configures an HTTPObserver.
type HTTPObserverConfig = telemetry.HTTPObserverConfig

// NewHTTPObserver creates an HTTPObserver posting to cfg.URL.
func NewHTTPObserver(cfg HTTPObserverConfig) (*HTTPObserver, error) {
	return telemetry.NewHTTPObserver(cfg)
}

// ConsoleObserver prints run/stage/telemetry events to the console via
// zerolog, the in-process equivalent of HTTPObserver for CLI use.
type ConsoleObserver = telemetry.ConsoleObserver

// NewConsoleObserver creates a ConsoleObserver.
func NewConsoleObserver(log zerolog.Logger, verbose bool) *ConsoleObserver {
	return telemetry.NewConsoleObserver(log, verbose)
}
