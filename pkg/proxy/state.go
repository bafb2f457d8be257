package proxy

import (
	"errors"
	"log/slog"

	"toutjavascript/infollama/pkg/config"
	"toutjavascript/infollama/pkg/device"
	"toutjavascript/infollama/pkg/security/auth"
	"toutjavascript/infollama/pkg/telemetry/logging"
	"toutjavascript/infollama/pkg/telemetry/metrics"
	"toutjavascript/infollama/pkg/telemetry/tracing"
	"toutjavascript/infollama/pkg/upstream"
)

// State is everything a request handler needs. It is assembled once at
// startup and shared read-only by all requests.
type State struct {
	Config   *config.Config
	Users    *auth.UserStore
	Policy   *auth.Policy
	Events   *logging.EventLog
	Upstream *upstream.Client

	// Device is the lazily collected host inventory. Optional.
	Device *device.Inventory

	// Metrics and Tracer are optional; nil disables them.
	Metrics *metrics.Collector
	Tracer  *tracing.Tracer

	// Version is the proxy version reported by /info/ping.
	Version string

	Logger *slog.Logger
}

func (s *State) validate() error {
	var errs []error
	if s.Config == nil {
		errs = append(errs, errors.New("config is required"))
	}
	if s.Users == nil {
		errs = append(errs, errors.New("user store is required"))
	}
	if s.Policy == nil {
		errs = append(errs, errors.New("access policy is required"))
	}
	if s.Events == nil {
		errs = append(errs, errors.New("event log is required"))
	}
	if s.Upstream == nil {
		errs = append(errs, errors.New("upstream client is required"))
	}
	return errors.Join(errs...)
}
