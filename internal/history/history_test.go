package history

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sampleAt builds a sample whose every metric encodes its sequence number,
// so alignment across series can be checked after eviction.
func sampleAt(seconds float64, seq int) Sample {
	v := float64(seq)
	return Sample{
		Timestamp:         time.Unix(0, int64(seconds*float64(time.Second))),
		Power:             v,
		Temperature:       v + 0.1,
		Setpoint:          v + 0.2,
		BackupTemperature: v + 0.3,
		Gravity:           v + 0.4,
		ABV:               v + 0.5,
		Attenuation:       v + 0.6,
		OriginalGravity:   v + 0.7,
	}
}

func assertAligned(t *testing.T, s Series) {
	t.Helper()

	n := s.Len()
	for _, col := range [][]float64{
		s.Power, s.Temperature, s.Setpoint, s.BackupTemperature,
		s.Gravity, s.ABV, s.Attenuation, s.OriginalGravity,
	} {
		require.Len(t, col, n)
	}
	for i := 0; i < n; i++ {
		seq := s.Power[i]
		assert.InDelta(t, seq+0.1, s.Temperature[i], 1e-9)
		assert.InDelta(t, seq+0.2, s.Setpoint[i], 1e-9)
		assert.InDelta(t, seq+0.3, s.BackupTemperature[i], 1e-9)
		assert.InDelta(t, seq+0.4, s.Gravity[i], 1e-9)
		assert.InDelta(t, seq+0.5, s.ABV[i], 1e-9)
		assert.InDelta(t, seq+0.6, s.Attenuation[i], 1e-9)
		assert.InDelta(t, seq+0.7, s.OriginalGravity[i], 1e-9)
	}
}

func TestAppendBelowCapacity(t *testing.T) {
	h := New(10)
	for i := 0; i < 5; i++ {
		assert.Equal(t, -1, h.Record(sampleAt(float64(i), i)))
	}

	s := h.Series()
	assert.Equal(t, 5, h.Len())
	assert.Equal(t, []float64{0, 1, 2, 3, 4}, s.Timestamps)
	assertAligned(t, s)
}

func TestEvictionTieBreaksToLowerIndex(t *testing.T) {
	h := New(4)
	for i, ts := range []float64{0, 1, 2, 3} {
		h.Append(sampleAt(ts, i))
	}
	h.Append(sampleAt(100, 4))

	// Gaps: i=1 -> 2, i=2 -> 2, i=3 -> 98.
	removed := h.EvictIfFull()

	assert.Equal(t, 1, removed)
	s := h.Series()
	assert.Equal(t, []float64{0, 2, 3, 100}, s.Timestamps)
	assert.Equal(t, []float64{0, 2, 3, 4}, s.Power)
	assertAligned(t, s)
}

func TestEvictionDropsDensestSample(t *testing.T) {
	h := New(4)
	for i, ts := range []float64{0, 10, 20, 21, 22} {
		h.Append(sampleAt(ts, i))
	}

	// Gaps: i=1 -> 20, i=2 -> 11, i=3 -> 2.
	assert.Equal(t, 3, h.EvictIfFull())
	assert.Equal(t, []float64{0, 10, 20, 22}, h.Series().Timestamps)
}

func TestEvictionKeepsEndpoints(t *testing.T) {
	h := New(3)
	for i := 0; i < 50; i++ {
		h.Record(sampleAt(float64(i*i), i))
	}

	s := h.Series()
	require.Equal(t, 3, s.Len())
	assert.Equal(t, 0.0, s.Timestamps[0])
	assert.Equal(t, float64(49*49), s.Timestamps[2])
	assertAligned(t, s)
}

func TestEvictionPropertyAcrossCapacities(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	for capacity := MinCapacity; capacity <= 40; capacity++ {
		h := New(capacity)
		ts := 0.0
		for i := 0; i < capacity; i++ {
			ts += 1 + rng.Float64()*20
			h.Append(sampleAt(ts, i))
		}
		h.Append(sampleAt(ts+5, capacity))
		full := h.Series()
		want := MostRedundant(full.Timestamps)
		removed := h.EvictIfFull()

		require.Equal(t, want, removed, "capacity %d", capacity)
		after := h.Series()
		require.Equal(t, capacity, after.Len(), "capacity %d", capacity)
		assertAligned(t, after)

		// Every series lost the same sequence number.
		expected := append(append([]float64{}, full.Power[:removed]...), full.Power[removed+1:]...)
		assert.Equal(t, expected, after.Power, "capacity %d", capacity)
	}
}

func TestCapacityClampedToMinimum(t *testing.T) {
	for _, c := range []int{-1, 0, 1, 2} {
		h := New(c)
		assert.Equal(t, MinCapacity, h.capacity)
		for i := 0; i < 10; i++ {
			h.Record(sampleAt(float64(i), i))
		}
		assert.Equal(t, MinCapacity, h.Len())
	}
}

func TestMostRedundantWithoutInterior(t *testing.T) {
	assert.Equal(t, -1, MostRedundant(nil))
	assert.Equal(t, -1, MostRedundant([]float64{1}))
	assert.Equal(t, -1, MostRedundant([]float64{1, 2}))
	assert.Equal(t, 1, MostRedundant([]float64{1, 2, 3}))
}

func TestSeriesIsACopy(t *testing.T) {
	h := New(5)
	h.Record(sampleAt(1, 1))

	s := h.Series()
	s.Power[0] = 99

	assert.Equal(t, 1.0, h.Series().Power[0])
}

func TestNaNMetricsAreStored(t *testing.T) {
	h := New(5)
	s := sampleAt(1, 1)
	s.Gravity = math.NaN()
	h.Record(s)

	assert.True(t, math.IsNaN(h.Series().Gravity[0]))
}

func TestDefaultCapacity(t *testing.T) {
	h := New(DefaultCapacity)
	start := time.Unix(1700000000, 0)
	for i := 0; i <= DefaultCapacity; i++ {
		h.Record(Sample{Timestamp: start.Add(time.Duration(i) * 10 * time.Second)})
	}

	assert.Equal(t, DefaultCapacity, h.Len())
	assert.InDelta(t, 1700000000.0, h.Series().Timestamps[0], 1e-6)
}
