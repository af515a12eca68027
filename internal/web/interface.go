package web

import (
	"context"
	"time"

	"codeberg.org/mutker/brewctl/internal/controller"
	"codeberg.org/mutker/brewctl/internal/rig"
	"codeberg.org/mutker/brewctl/internal/telemetry"
)

// Directory resolves the components served over HTTP.
type Directory interface {
	Controllers() []*controller.Controller
	Controller(name string) (*controller.Controller, bool)
	Rigs() []*rig.Rig
	Rig(name string) (*rig.Rig, bool)
}

// TelemetrySource answers queries against the durable sample log.
type TelemetrySource interface {
	Samples(ctx context.Context, controller string, since time.Time, limit int) ([]telemetry.Row, error)
}

// Option configures a Server.
type Option func(*Server)

// WithTelemetry enables /controllers/{name}/telemetry.
func WithTelemetry(src TelemetrySource) Option {
	return func(s *Server) {
		s.telemetry = src
	}
}

// WithAllowedOrigins sets the CORS origins. The default allows any origin.
func WithAllowedOrigins(origins ...string) Option {
	return func(s *Server) {
		s.origins = origins
	}
}
