package telemetry

import (
	"context"
	"database/sql"
	"math"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codeberg.org/mutker/brewctl/internal/errors"
	"codeberg.org/mutker/brewctl/internal/history"
	"codeberg.org/mutker/brewctl/internal/logger"
)

func openRepo(t *testing.T, cfg Config) Repository {
	t.Helper()
	repo, err := NewRepository(cfg, logger.New("telemetry"))
	if err != nil && strings.Contains(err.Error(), "CGO_ENABLED=0") {
		t.Skip("sqlite3 requires cgo")
	}
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func sample(ts int64, temp float64) history.Sample {
	return history.Sample{
		Timestamp:         time.Unix(ts, 0),
		Power:             100,
		Temperature:       temp,
		Setpoint:          64,
		BackupTemperature: math.NaN(),
		Gravity:           1.012,
		ABV:               math.NaN(),
		Attenuation:       math.NaN(),
		OriginalGravity:   math.NaN(),
	}
}

func TestStoreAndQuery(t *testing.T) {
	repo := openRepo(t, Config{DBPath: filepath.Join(t.TempDir(), "t.db"), BatchSize: 2})

	require.NoError(t, repo.Store("Fridge", sample(100, 65.1)))
	require.NoError(t, repo.Store("Heater", sample(101, 60.0)))
	require.NoError(t, repo.Store("Fridge", sample(110, 64.8)))
	require.NoError(t, repo.Flush())

	rows, err := repo.Query(context.Background(), "Fridge", time.Unix(0, 0), 0)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, "Fridge", rows[0].Controller)
	assert.Equal(t, time.Unix(100, 0), rows[0].Timestamp)
	require.NotNil(t, rows[0].Temperature)
	assert.Equal(t, 65.1, *rows[0].Temperature)
	assert.Nil(t, rows[0].BackupTemperature)
	require.NotNil(t, rows[1].Gravity)
	assert.Equal(t, 1.012, *rows[1].Gravity)

	rows, err = repo.Query(context.Background(), "Fridge", time.Unix(105, 0), 0)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	rows, err = repo.Query(context.Background(), "Fridge", time.Unix(0, 0), 1)
	require.NoError(t, err)
	require.Len(t, rows, 1)
}

func TestFullBatchIsWrittenInBackground(t *testing.T) {
	repo := openRepo(t, Config{DBPath: filepath.Join(t.TempDir(), "t.db"), BatchSize: 2})

	require.NoError(t, repo.Store("Fridge", sample(100, 65.1)))
	require.NoError(t, repo.Store("Fridge", sample(101, 65.2)))

	require.Eventually(t, func() bool {
		rows, err := repo.Query(context.Background(), "Fridge", time.Unix(0, 0), 0)
		return err == nil && len(rows) == 2
	}, 2*time.Second, 10*time.Millisecond)
}

func TestCloseFlushesBuffer(t *testing.T) {
	path := filepath.Join(t.TempDir(), "t.db")
	repo, err := NewRepository(Config{DBPath: path, BatchSize: 100}, logger.New("telemetry"))
	if err != nil && strings.Contains(err.Error(), "CGO_ENABLED=0") {
		t.Skip("sqlite3 requires cgo")
	}
	require.NoError(t, err)

	require.NoError(t, repo.Store("Fridge", sample(100, 65)))
	require.NoError(t, repo.Close())
	assert.True(t, errors.HasCode(repo.Store("Fridge", sample(101, 65)), ErrClosed))

	reopened := openRepo(t, Config{DBPath: path, BatchSize: 1})
	rows, err := reopened.Query(context.Background(), "Fridge", time.Unix(0, 0), 0)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestSchemaMismatchIsRecreated(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "t.db")
	repo := openRepo(t, Config{DBPath: path, BatchSize: 1})
	require.NoError(t, repo.Store("Fridge", sample(100, 65)))
	require.NoError(t, repo.Close())

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	_, err = db.Exec(`UPDATE schema_versions SET version = 99`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	backups := filepath.Join(dir, "backups")
	reopened := openRepo(t, Config{DBPath: path, BatchSize: 1, BackupDir: backups})
	rows, err := reopened.Query(context.Background(), "Fridge", time.Unix(0, 0), 0)
	require.NoError(t, err)
	assert.Empty(t, rows)

	matches, err := filepath.Glob(filepath.Join(backups, "telemetry_v99_*.db"))
	require.NoError(t, err)
	assert.Len(t, matches, 1)
}

type memRepo struct {
	stored []string
	err    error
}

func (m *memRepo) Store(controller string, _ history.Sample) error {
	m.stored = append(m.stored, controller)
	return m.err
}

func (m *memRepo) Query(context.Context, string, time.Time, int) ([]Row, error) { return nil, nil }
func (m *memRepo) Flush() error                                                 { return nil }
func (m *memRepo) Close() error                                                 { return nil }

func TestServiceSwallowsStoreErrors(t *testing.T) {
	repo := &memRepo{err: errors.New().New(ErrTransactionFailed)}
	svc := NewServiceWithRepository(repo)

	svc.Record("Fridge", sample(1, 60))
	assert.Equal(t, []string{"Fridge"}, repo.stored)
}

func TestDisabledServiceIsNil(t *testing.T) {
	svc, err := NewService(Config{})
	require.NoError(t, err)
	assert.Nil(t, svc)
	assert.NotPanics(t, func() { svc.Recorder().Record("Fridge", sample(1, 60)) })
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())
	assert.True(t, errors.HasCode(Config{Enabled: true}.Validate(), ErrInvalidDBPath))
	assert.True(t, errors.HasCode(Config{BatchSize: -1}.Validate(), ErrInvalidConfig))
}
