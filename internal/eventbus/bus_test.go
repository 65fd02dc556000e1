package eventbus

import (
	"testing"
	"time"

	"github.com/MarcosBrindi/harmonitor/internal/har"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishFansOutByType(t *testing.T) {
	bus := NewEventBus()
	a := bus.Subscribe(EventActivity)
	b := bus.Subscribe(EventActivity)
	other := bus.Subscribe(EventAnomaly)

	bus.Publish(Event{Type: EventActivity, Data: har.InactiveState(time.Time{})})

	require.Len(t, a, 1)
	require.Len(t, b, 1)
	assert.Len(t, other, 0)

	ev := <-a
	state, ok := ev.Data.(har.ActivityState)
	require.True(t, ok)
	assert.Equal(t, har.ActivityIdle, state.Activity)
}

func TestPublishDropsWhenFull(t *testing.T) {
	bus := NewEventBusWithBuffer(2)
	ch := bus.Subscribe(EventSample)

	for i := 0; i < 5; i++ {
		bus.Publish(NewSampleEvent(har.SensorSample{}))
	}

	assert.Len(t, ch, 2)
	assert.EqualValues(t, 3, bus.Dropped())
}

func TestPublishBlockingHonoursDone(t *testing.T) {
	bus := NewEventBusWithBuffer(1)
	bus.Subscribe(EventSample)

	done := make(chan struct{})
	require.True(t, bus.PublishBlocking(NewSampleEvent(har.SensorSample{}), done))

	close(done)
	assert.False(t, bus.PublishBlocking(NewSampleEvent(har.SensorSample{}), done))
}

func TestCloseIsIdempotent(t *testing.T) {
	bus := NewEventBus()
	ch := bus.Subscribe(EventSample)

	bus.Close()
	bus.Close()

	_, open := <-ch
	assert.False(t, open)

	late := bus.Subscribe(EventSample)
	_, open = <-late
	assert.False(t, open)

	assert.NotPanics(t, func() {
		bus.Publish(NewSampleEvent(har.SensorSample{}))
	})
}

func TestNewAnomalyEvent(t *testing.T) {
	at := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	state := har.ActivityState{
		Activity: har.ActivityIdle,
		IsActive: true,
		Anomaly: &har.Anomaly{
			Type:       har.AnomalySuddenStop,
			Severity:   har.SeverityHigh,
			DetectedAt: at,
			DropRatio:  0.97,
		},
	}

	a := NewAnomalyEvent("W1", state)
	b := NewAnomalyEvent("W1", state)

	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, har.AnomalySuddenStop, a.Anomaly.Type)
	assert.Equal(t, at, a.Anomaly.DetectedAt)
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	bus := NewEventBus()
	a := bus.Subscribe(EventSample)
	b := bus.Subscribe(EventSample)

	bus.Unsubscribe(EventSample, a)
	bus.Unsubscribe(EventSample, a)

	_, open := <-a
	assert.False(t, open)

	bus.Publish(NewSampleEvent(har.SensorSample{}))
	assert.Len(t, b, 1)
}
