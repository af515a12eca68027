package telemetry

import (
	"context"
	"database/sql"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"codeberg.org/mutker/brewctl/internal/errors"
	"codeberg.org/mutker/brewctl/internal/history"
	"codeberg.org/mutker/brewctl/internal/logger"
)

type pending struct {
	controller string
	sample     history.Sample
}

type repository struct {
	db            *sql.DB
	logger        logger.Logger
	cfg           Config
	mu            sync.Mutex
	buffer        []pending
	closed        bool
	flushTicker   *time.Ticker
	flushNow      chan struct{}
	shutdownChan  chan struct{}
	flushDoneChan chan struct{}
}

// NewRepository opens the database at cfg.DBPath, migrating its schema if
// needed. Samples are written in batches of cfg.BatchSize, and at least
// every cfg.BatchTimeout. Writes happen on a background goroutine; Store
// only buffers.
func NewRepository(cfg Config, log logger.Logger) (Repository, error) {
	errFactory := errors.New()

	if cfg.DBPath == "" {
		return nil, errFactory.New(ErrInvalidDBPath)
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 1
	}
	if cfg.BackupDir == "" {
		cfg.BackupDir = filepath.Join(filepath.Dir(cfg.DBPath), "backups")
	}

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), defaultDirPerm); err != nil {
		return nil, errFactory.WithData(ErrStorageInit, struct {
			Phase string
			Path  string
			Error string
		}{
			Phase: "create_directory",
			Path:  cfg.DBPath,
			Error: err.Error(),
		})
	}

	dsn := cfg.DBPath + "?_journal=WAL&_auto_vacuum=2"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, errFactory.Wrap(ErrStorageInit, err)
	}

	if err := ValidateAndUpdateSchema(db, cfg.BackupDir, log); err != nil {
		db.Close()
		return nil, errFactory.Wrap(ErrStorageInit, err)
	}

	log.Info().
		Str("path", cfg.DBPath).
		Int("schema_version", SchemaVersion).
		Int("batch_size", cfg.BatchSize).
		Dur("batch_timeout", cfg.BatchTimeout).
		Msg("Telemetry repository initialized")

	repo := &repository{
		db:            db,
		logger:        log,
		cfg:           cfg,
		buffer:        make([]pending, 0, cfg.BatchSize),
		flushNow:      make(chan struct{}, 1),
		shutdownChan:  make(chan struct{}),
		flushDoneChan: make(chan struct{}),
	}

	if cfg.BatchTimeout > 0 {
		repo.flushTicker = time.NewTicker(cfg.BatchTimeout)
	}
	go repo.flusher()

	return repo, nil
}

func (r *repository) Store(controller string, s history.Sample) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return errors.New().New(ErrClosed)
	}

	r.buffer = append(r.buffer, pending{controller: controller, sample: s})
	if len(r.buffer) >= r.cfg.BatchSize {
		select {
		case r.flushNow <- struct{}{}:
		default:
		}
	}

	return nil
}

func (r *repository) Flush() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.flush()
}

func (r *repository) Query(ctx context.Context, controller string, since time.Time, limit int) ([]Row, error) {
	errFactory := errors.New()

	if limit <= 0 {
		limit = -1
	}

	rows, err := r.db.QueryContext(ctx, selectSamplesSQL, controller, since.Unix(), limit)
	if err != nil {
		return nil, errFactory.Wrap(ErrQueryFailed, err)
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var (
			row     Row
			ts      int64
			metrics [8]sql.NullFloat64
		)
		if err := rows.Scan(&row.Controller, &ts,
			&metrics[0], &metrics[1], &metrics[2], &metrics[3],
			&metrics[4], &metrics[5], &metrics[6], &metrics[7]); err != nil {
			return nil, errFactory.Wrap(ErrQueryFailed, err)
		}
		row.Timestamp = time.Unix(ts, 0)
		row.Power = fromNull(metrics[0])
		row.Temperature = fromNull(metrics[1])
		row.Setpoint = fromNull(metrics[2])
		row.BackupTemperature = fromNull(metrics[3])
		row.Gravity = fromNull(metrics[4])
		row.ABV = fromNull(metrics[5])
		row.Attenuation = fromNull(metrics[6])
		row.OriginalGravity = fromNull(metrics[7])
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, errFactory.Wrap(ErrQueryFailed, err)
	}

	return out, nil
}

func (r *repository) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	r.mu.Unlock()

	close(r.shutdownChan)
	if r.flushTicker != nil {
		r.flushTicker.Stop()
	}
	<-r.flushDoneChan

	r.mu.Lock()
	flushErr := r.flush()
	r.mu.Unlock()
	if flushErr != nil {
		r.logger.Error().Err(flushErr).Msg("Final flush failed")
	}

	if _, err := r.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		r.logger.Warn().Err(err).Msg("Failed to checkpoint WAL")
	}

	if err := r.db.Close(); err != nil {
		return errors.New().Wrap(ErrStorageClose, err)
	}

	r.logger.Info().Msg("Telemetry repository closed gracefully")

	return nil
}

func (r *repository) flusher() {
	defer close(r.flushDoneChan)

	var tick <-chan time.Time
	if r.flushTicker != nil {
		tick = r.flushTicker.C
	}

	for {
		select {
		case <-tick:
			r.flushLogged("Periodic flush failed")
		case <-r.flushNow:
			r.flushLogged("Batch flush failed")
		case <-r.shutdownChan:
			return
		}
	}
}

func (r *repository) flushLogged(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.flush(); err != nil {
		r.logger.Warn().Err(err).Msg(msg)
	}
}

// flush writes the buffer in one transaction. Callers hold r.mu.
func (r *repository) flush() error {
	if len(r.buffer) == 0 {
		return nil
	}

	errFactory := errors.New()

	tx, err := r.db.Begin()
	if err != nil {
		return errFactory.Wrap(ErrTransactionFailed, err)
	}

	stmt, err := tx.Prepare(insertSampleSQL)
	if err != nil {
		if err := tx.Rollback(); err != nil {
			r.logger.Error().Err(err).Msg("Failed to roll back transaction")
		}
		return errFactory.Wrap(ErrTransactionFailed, err)
	}
	defer stmt.Close()

	for _, p := range r.buffer {
		s := p.sample
		if _, err := stmt.Exec(
			p.controller,
			s.Timestamp.Unix(),
			toNull(s.Power),
			toNull(s.Temperature),
			toNull(s.Setpoint),
			toNull(s.BackupTemperature),
			toNull(s.Gravity),
			toNull(s.ABV),
			toNull(s.Attenuation),
			toNull(s.OriginalGravity),
		); err != nil {
			if err := tx.Rollback(); err != nil {
				r.logger.Error().Err(err).Msg("Failed to roll back transaction")
			}
			return errFactory.Wrap(ErrTransactionFailed, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return errFactory.Wrap(ErrTransactionFailed, err)
	}

	r.logger.Debug().Int("records", len(r.buffer)).Msg("Flushed samples to database")
	r.buffer = r.buffer[:0]

	return nil
}

func toNull(v float64) sql.NullFloat64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return sql.NullFloat64{}
	}

	return sql.NullFloat64{Float64: v, Valid: true}
}

func fromNull(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}

	return &v.Float64
}
