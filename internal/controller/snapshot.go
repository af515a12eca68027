package controller

import (
	"encoding/json"
	"math"

	"codeberg.org/mutker/brewctl/internal/history"
)

// Snapshot is the observable state of a controller at one instant.
// Readings that are unavailable are nil.
type Snapshot struct {
	Name            string   `json:"name"`
	Temperature     *float64 `json:"temperature"`
	W1Temperature   *float64 `json:"w1temperature"`
	Gravity         *float64 `json:"gravity"`
	ABV             *float64 `json:"abv"`
	Attenuation     *float64 `json:"atten"`
	OriginalGravity *float64 `json:"ograv"`
	Enabled         bool     `json:"enabled"`
	Automatic       bool     `json:"automatic"`
	Power           *float64 `json:"power"`
	Setpoint        float64  `json:"setpoint"`

	System bool `json:"-"`
}

func (s Snapshot) MarshalJSON() ([]byte, error) {
	if s.System {
		return json.Marshal(struct {
			Name string `json:"name"`
		}{s.Name})
	}

	type plain Snapshot
	return json.Marshal(plain(s))
}

// HistoryExport is the JSON shape of a controller's recorded history.
// NaN samples are exported as null.
type HistoryExport struct {
	Label         []float64  `json:"label"`
	Temperature   []*float64 `json:"temperature"`
	Power         []*float64 `json:"power"`
	Setpoint      []*float64 `json:"setpoint"`
	W1Temperature []*float64 `json:"w1temperature"`
	Gravity       []*float64 `json:"gravity"`
	ABV           []*float64 `json:"abv"`
	Atten         []*float64 `json:"atten"`
	OGrav         []*float64 `json:"ograv"`
}

func Export(s history.Series) HistoryExport {
	label := s.Timestamps
	if label == nil {
		label = []float64{}
	}

	return HistoryExport{
		Label:         label,
		Temperature:   Nullable(s.Temperature),
		Power:         Nullable(s.Power),
		Setpoint:      Nullable(s.Setpoint),
		W1Temperature: Nullable(s.BackupTemperature),
		Gravity:       Nullable(s.Gravity),
		ABV:           Nullable(s.ABV),
		Atten:         Nullable(s.Attenuation),
		OGrav:         Nullable(s.OriginalGravity),
	}
}

// Nullable maps NaN entries to nil.
func Nullable(vs []float64) []*float64 {
	out := make([]*float64, len(vs))
	for i, v := range vs {
		out[i] = optional(v)
	}

	return out
}

func optional(v float64) *float64 {
	if math.IsNaN(v) {
		return nil
	}

	return &v
}
