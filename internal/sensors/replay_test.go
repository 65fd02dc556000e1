package sensors

import (
	"context"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/MarcosBrindi/harmonitor/internal/eventbus"
	"github.com/MarcosBrindi/harmonitor/internal/har"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const session = `timestamp,ax,ay,az,gx,gy,gz
# grabación de prueba
1767225600000,0.1,0.0,9.81,0.01,0.0,0.0
2026-01-01T00:00:00.1Z,0.2,0.1,9.70,0.02,0.01,0.0
1767225600200,NaN,0.0,9.81,0.0,0.0,0.0
`

func TestReadCSV(t *testing.T) {
	samples, err := ReadCSV(strings.NewReader(session))
	require.NoError(t, err)
	require.Len(t, samples, 3)

	assert.Equal(t, time.UnixMilli(1767225600000).UTC(), samples[0].Timestamp)
	assert.Equal(t, 100*time.Millisecond, samples[1].Timestamp.Sub(samples[0].Timestamp))
	assert.InDelta(t, 9.70, samples[1].AccelZ, 1e-9)
	assert.True(t, math.IsNaN(samples[2].AccelX))
	assert.False(t, samples[2].Valid())
}

func TestReadCSVReportsLine(t *testing.T) {
	_, err := ReadCSV(strings.NewReader("1,2,3,4,5,6,abc\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "línea 1")
}

func TestReplayPublishesAll(t *testing.T) {
	samples, err := ReadCSV(strings.NewReader(session))
	require.NoError(t, err)

	bus := eventbus.NewEventBus()
	ch := bus.Subscribe(eventbus.EventSample)

	n, err := Replay(context.Background(), bus, samples, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	require.Len(t, ch, 3)

	first := (<-ch).Data.(har.SensorSample)
	assert.Equal(t, samples[0], first)
}

func TestReplayStopsOnCancel(t *testing.T) {
	bus := eventbus.NewEventBusWithBuffer(1)
	bus.Subscribe(eventbus.EventSample)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	samples := []har.SensorSample{{}, {}, {}}
	n, err := Replay(ctx, bus, samples, 0)
	assert.ErrorIs(t, err, context.Canceled)
	assert.LessOrEqual(t, n, 1)
}
