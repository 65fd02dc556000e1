package har

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stillSample(i int) SensorSample {
	return SensorSample{
		AccelZ:    9.81,
		Timestamp: time.Unix(0, 0).Add(time.Duration(i) * 100 * time.Millisecond),
	}
}

func TestSignalBufferRejectsNonFinite(t *testing.T) {
	b := NewSignalBuffer(4)
	require.True(t, b.Push(stillSample(0)))

	bad := []SensorSample{
		{AccelX: math.NaN()},
		{AccelY: math.Inf(1)},
		{AccelZ: math.Inf(-1)},
		{GyroX: math.NaN()},
		{GyroY: math.Inf(1)},
		{GyroZ: math.NaN()},
	}
	before := b.Samples()
	for _, s := range bad {
		assert.False(t, b.Push(s))
	}
	assert.Equal(t, 1, b.Len())
	assert.Equal(t, before, b.Samples())
}

func TestSignalBufferEvictsOldest(t *testing.T) {
	b := NewSignalBuffer(3)
	for i := 0; i < 5; i++ {
		require.True(t, b.Push(stillSample(i)))
	}

	assert.True(t, b.Full())
	samples := b.Samples()
	require.Len(t, samples, 3)
	assert.Equal(t, stillSample(2).Timestamp, samples[0].Timestamp)
	assert.Equal(t, stillSample(4).Timestamp, samples[2].Timestamp)

	b.Reset()
	assert.Equal(t, 0, b.Len())
	assert.False(t, b.Full())
}

func TestMovementHistoryWindow(t *testing.T) {
	h := NewMovementHistory(5)
	for i := 1; i <= 7; i++ {
		h.Push(float64(i))
	}

	assert.Equal(t, []float64{3, 4, 5, 6, 7}, h.Slice())
	assert.Equal(t, []float64{6, 7}, h.Window(2, 0))
	assert.Equal(t, []float64{3, 4, 5}, h.Window(3, 2))
	assert.Nil(t, h.Window(4, 2))
}

func TestComputeMovementRemovesGravity(t *testing.T) {
	samples := make([]SensorSample, 10)
	for i := range samples {
		samples[i] = stillSample(i)
	}
	stats := ComputeMovement(samples, DefaultAccelWeight, DefaultGyroWeight)
	assert.InDelta(t, 0, stats.TotalMovement, 1e-12)
}

func TestComputeMovementWeightsGyro(t *testing.T) {
	samples := []SensorSample{
		{AccelZ: 9.81, GyroX: 0},
		{AccelZ: 9.81, GyroX: 2},
	}
	stats := ComputeMovement(samples, DefaultAccelWeight, DefaultGyroWeight)
	assert.InDelta(t, 1.0, stats.GyroVariance, 1e-12)
	assert.InDelta(t, 0.0, stats.AccelVariance, 1e-12)
	assert.InDelta(t, 0.85, stats.TotalMovement, 1e-12)
}
