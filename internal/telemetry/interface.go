package telemetry

import (
	"context"
	"time"

	"codeberg.org/mutker/brewctl/internal/history"
)

// Recorder accepts controller samples. It matches controller.Recorder.
type Recorder interface {
	Record(controller string, s history.Sample)
}

// Repository stores samples durably. Store may buffer.
type Repository interface {
	Store(controller string, s history.Sample) error
	Query(ctx context.Context, controller string, since time.Time, limit int) ([]Row, error)
	Flush() error
	Close() error
}

// Row is one stored sample. Missing metrics are nil.
type Row struct {
	Controller        string    `json:"controller"`
	Timestamp         time.Time `json:"timestamp"`
	Power             *float64  `json:"power"`
	Temperature       *float64  `json:"temperature"`
	Setpoint          *float64  `json:"setpoint"`
	BackupTemperature *float64  `json:"w1temperature"`
	Gravity           *float64  `json:"gravity"`
	ABV               *float64  `json:"abv"`
	Attenuation       *float64  `json:"atten"`
	OriginalGravity   *float64  `json:"ograv"`
}
