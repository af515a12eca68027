// Package history keeps a bounded, aligned set of time series for one
// controller. When full it drops the sample whose neighbours are closest
// together in time, so long-term coverage survives bursts of samples.
package history

import (
	"math"
	"sync"
	"time"
)

const (
	// DefaultCapacity holds a day of samples at one per minute.
	DefaultCapacity = 1440

	// MinCapacity is the smallest capacity with an interior sample to evict.
	MinCapacity = 3
)

const (
	colTimestamp = iota
	colPower
	colTemperature
	colSetpoint
	colBackupTemperature
	colGravity
	colABV
	colAttenuation
	colOriginalGravity
	numColumns
)

// Sample is one recorded control-loop tick. Metrics that are unavailable
// are NaN.
type Sample struct {
	Timestamp         time.Time
	Power             float64
	Temperature       float64
	Setpoint          float64
	BackupTemperature float64
	Gravity           float64
	ABV               float64
	Attenuation       float64
	OriginalGravity   float64
}

// Series is a copy of the stored columns. Timestamps are Unix seconds.
type Series struct {
	Timestamps        []float64
	Power             []float64
	Temperature       []float64
	Setpoint          []float64
	BackupTemperature []float64
	Gravity           []float64
	ABV               []float64
	Attenuation       []float64
	OriginalGravity   []float64
}

// Len returns the number of samples in the series.
func (s Series) Len() int {
	return len(s.Timestamps)
}

// History is safe for concurrent use.
type History struct {
	mu       sync.RWMutex
	capacity int
	columns  [numColumns][]float64
}

// New returns an empty History. Capacities below MinCapacity are raised to
// MinCapacity.
func New(capacity int) *History {
	capacity = max(capacity, MinCapacity)

	h := &History{capacity: capacity}
	for i := range h.columns {
		h.columns[i] = make([]float64, 0, capacity+1)
	}

	return h
}

// Len returns the number of samples currently stored.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.columns[colTimestamp])
}

// Append adds one sample to the end of every series.
func (h *History) Append(s Sample) {
	h.mu.Lock()
	defer h.mu.Unlock()

	row := [numColumns]float64{
		colTimestamp:         unixSeconds(s.Timestamp),
		colPower:             s.Power,
		colTemperature:       s.Temperature,
		colSetpoint:          s.Setpoint,
		colBackupTemperature: s.BackupTemperature,
		colGravity:           s.Gravity,
		colABV:               s.ABV,
		colAttenuation:       s.Attenuation,
		colOriginalGravity:   s.OriginalGravity,
	}
	for i, v := range row {
		h.columns[i] = append(h.columns[i], v)
	}
}

// EvictIfFull removes samples until the history is within capacity and
// returns the index of the last removed sample, or -1 if nothing was removed.
func (h *History) EvictIfFull() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	removed := -1
	for len(h.columns[colTimestamp]) > h.capacity {
		i := MostRedundant(h.columns[colTimestamp])
		if i < 0 {
			break
		}
		for c := range h.columns {
			h.columns[c] = append(h.columns[c][:i], h.columns[c][i+1:]...)
		}
		removed = i
	}

	return removed
}

// Record appends s and evicts if that pushed the history over capacity.
func (h *History) Record(s Sample) int {
	h.Append(s)
	return h.EvictIfFull()
}

// Series returns a copy of all columns.
func (h *History) Series() Series {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return Series{
		Timestamps:        clone(h.columns[colTimestamp]),
		Power:             clone(h.columns[colPower]),
		Temperature:       clone(h.columns[colTemperature]),
		Setpoint:          clone(h.columns[colSetpoint]),
		BackupTemperature: clone(h.columns[colBackupTemperature]),
		Gravity:           clone(h.columns[colGravity]),
		ABV:               clone(h.columns[colABV]),
		Attenuation:       clone(h.columns[colAttenuation]),
		OriginalGravity:   clone(h.columns[colOriginalGravity]),
	}
}

// MostRedundant returns the interior index i minimising ts[i+1]-ts[i-1],
// the first such index on ties, or -1 when ts has no interior point.
func MostRedundant(ts []float64) int {
	minGap := math.Inf(1)
	minPos := -1
	for i := 1; i < len(ts)-1; i++ {
		if gap := ts[i+1] - ts[i-1]; gap < minGap {
			minGap = gap
			minPos = i
		}
	}

	return minPos
}

func unixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}

func clone(s []float64) []float64 {
	out := make([]float64, len(s))
	copy(out, s)
	return out
}
