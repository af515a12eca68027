// Package telemetry keeps an append-only log of controller samples in
// SQLite, outliving the bounded in-memory history.
package telemetry

import (
	"context"
	"time"

	"codeberg.org/mutker/brewctl/internal/errors"
	"codeberg.org/mutker/brewctl/internal/history"
	"codeberg.org/mutker/brewctl/internal/logger"
)

// Service records samples to a repository and logs failures rather than
// returning them. Recording only buffers; the repository writes batches on
// its own goroutine.
type Service struct {
	repo Repository
	log  logger.Logger
}

// noopRecorder stands in for a disabled service.
type noopRecorder struct{}

func (noopRecorder) Record(string, history.Sample) {}

// NewService returns a Service backed by SQLite, or nil when telemetry is
// disabled.
func NewService(cfg Config) (*Service, error) {
	errFactory := errors.New()

	if err := cfg.Validate(); err != nil {
		return nil, errFactory.Wrap(ErrInvalidConfig, err)
	}

	log := logger.New("telemetry")
	if !cfg.Enabled {
		log.Debug().Msg("Telemetry disabled")
		return nil, nil
	}

	repo, err := NewRepository(cfg, log)
	if err != nil {
		return nil, err
	}

	return NewServiceWithRepository(repo), nil
}

func NewServiceWithRepository(repo Repository) *Service {
	return &Service{repo: repo, log: logger.New("telemetry")}
}

// Recorder returns s, or a no-op recorder when s is nil.
func (s *Service) Recorder() Recorder {
	if s == nil {
		return noopRecorder{}
	}

	return s
}

func (s *Service) Record(controller string, sample history.Sample) {
	if err := s.repo.Store(controller, sample); err != nil {
		s.log.Warn().Err(err).Str("controller", controller).Msg("Failed to store sample")
	}
}

// Samples returns stored samples for one controller since a point in time.
func (s *Service) Samples(ctx context.Context, controller string, since time.Time, limit int) ([]Row, error) {
	if err := s.repo.Flush(); err != nil {
		s.log.Warn().Err(err).Msg("Flush before query failed")
	}

	return s.repo.Query(ctx, controller, since, limit)
}

func (s *Service) Close() error {
	return s.repo.Close()
}
