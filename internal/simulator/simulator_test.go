package simulator

import (
	"context"
	"testing"
	"time"

	"github.com/MarcosBrindi/harmonitor/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastConfig() *config.Config {
	cfg := config.Default()
	cfg.Sensors.IMU.Frequency = 50
	return cfg
}

func TestRunHeadlessWithoutRabbitMQ(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 1200*time.Millisecond)
	defer cancel()

	stats, err := RunHeadless(ctx, 3, fastConfig(), nil)
	require.NoError(t, err)

	assert.Equal(t, 3, stats.Wearers)
	assert.Positive(t, stats.Ticks)
	assert.GreaterOrEqual(t, stats.Elapsed, time.Second)
}

func TestRunHeadlessRejectsZeroInstances(t *testing.T) {
	_, err := RunHeadless(context.Background(), 0, fastConfig(), nil)
	assert.Error(t, err)
}

func TestSimulateWearerRequiresConnection(t *testing.T) {
	cfg := fastConfig()
	cfg.RabbitMQ.Enabled = true

	_, err := SimulateWearer(context.Background(), 1, nil, cfg, nil)
	assert.ErrorContains(t, err, "WEARER-0001")
}

func TestSimulateWearerStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan WearerStats, 1)

	go func() {
		ws, err := SimulateWearer(ctx, 7, nil, fastConfig(), nil)
		assert.NoError(t, err)
		done <- ws
	}()

	time.Sleep(700 * time.Millisecond)
	cancel()

	select {
	case ws := <-done:
		assert.Equal(t, "WEARER-0007", ws.DeviceID)
		assert.Positive(t, ws.Ticks)
		assert.False(t, ws.Summary.Started.IsZero())
	case <-time.After(3 * time.Second):
		t.Fatal("el portador no se detuvo")
	}
}
