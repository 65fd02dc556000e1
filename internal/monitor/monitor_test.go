package monitor

import (
	"context"
	"math/rand/v2"
	"path/filepath"
	"testing"
	"time"

	"github.com/MarcosBrindi/harmonitor/internal/eventbus"
	"github.com/MarcosBrindi/harmonitor/internal/har"
	"github.com/MarcosBrindi/harmonitor/internal/sensors"
	"github.com/MarcosBrindi/harmonitor/internal/settings"
	"github.com/MarcosBrindi/harmonitor/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2026, 6, 1, 7, 30, 0, 0, time.UTC)

func publishMotion(t *testing.T, bus *eventbus.EventBus, rng *rand.Rand, m sensors.Motion, start, n int) {
	t.Helper()
	done := make(chan struct{})
	for i := start; i < start+n; i++ {
		elapsed := time.Duration(i) * 100 * time.Millisecond
		s := sensors.Generate(m, elapsed, 1.0, rng)
		s.Timestamp = epoch.Add(elapsed)
		require.True(t, bus.PublishBlocking(eventbus.NewSampleEvent(s), done))
	}
}

func receive[T any](t *testing.T, ch <-chan eventbus.Event) T {
	t.Helper()
	select {
	case ev := <-ch:
		v, ok := ev.Data.(T)
		require.True(t, ok, "payload %T", ev.Data)
		return v
	case <-time.After(3 * time.Second):
		t.Fatal("evento no recibido")
	}
	var zero T
	return zero
}

func TestMonitorBridgesSuddenStop(t *testing.T) {
	bus := eventbus.NewEventBusWithBuffer(512)
	activity := bus.Subscribe(eventbus.EventActivity)
	anomalies := bus.Subscribe(eventbus.EventAnomaly)

	svc := har.NewService(har.DefaultConfig())
	mon := NewMonitor(bus, svc, nil, Options{DeviceID: "W1"})
	mon.Start()
	defer mon.Stop()

	first := receive[har.ActivityState](t, activity)
	assert.Equal(t, har.ActivityCalibrating, first.Activity)

	rng := rand.New(rand.NewPCG(5, 6))
	publishMotion(t, bus, rng, sensors.MotionRunning, 0, 80)
	publishMotion(t, bus, rng, sensors.MotionStill, 80, 40)

	ev := receive[eventbus.AnomalyEvent](t, anomalies)
	assert.Equal(t, "W1", ev.DeviceID)
	assert.Equal(t, har.AnomalySuddenStop, ev.Anomaly.Type)
	assert.Equal(t, ev.Anomaly.DetectedAt, ev.State.Timestamp)

	require.Eventually(t, func() bool {
		ticks, _ := mon.Stats()
		return ticks == 120
	}, 3*time.Second, 10*time.Millisecond)

	_, count := mon.Stats()
	assert.EqualValues(t, 1, count)
	assert.Len(t, anomalies, 0)

	sum := mon.Summary()
	assert.Equal(t, 1, sum.Anomalies)
	dominant, _ := sum.Dominant()
	assert.Equal(t, har.ActivityRunning, dominant)
	assert.Equal(t, har.ActivityIdle, mon.GetCurrentState().Activity)
}

func TestMonitorAppliesSettings(t *testing.T) {
	bus := eventbus.NewEventBus()
	changes := bus.Subscribe(eventbus.EventSensitivity)

	provider := settings.NewMemory(har.SensitivityLow)
	svc := har.NewService(har.DefaultConfig())
	mon := NewMonitor(bus, svc, provider, Options{SettingsRefresh: 20 * time.Millisecond})
	mon.Start()
	defer mon.Stop()

	got := receive[eventbus.SensitivityData](t, changes)
	assert.Equal(t, "start", got.Source)
	assert.Equal(t, har.SensitivityMedium, got.Sensitivity)

	got = receive[eventbus.SensitivityData](t, changes)
	assert.Equal(t, har.SensitivityLow, got.Sensitivity)
	assert.Equal(t, "settings", got.Source)
	assert.Equal(t, har.DefaultThresholds().Scale(0, har.DefaultScaleFactors()), got.Thresholds)

	require.NoError(t, provider.SetSensitivity(context.Background(), 0.9))
	got = receive[eventbus.SensitivityData](t, changes)
	assert.InDelta(t, 0.9, got.Sensitivity, 1e-9)
	assert.InDelta(t, 0.9, mon.Sensitivity(), 1e-9)
}

func TestMonitorSetSensitivityPersists(t *testing.T) {
	bus := eventbus.NewEventBus()
	provider := settings.NewMemory(har.SensitivityMedium)
	mon := NewMonitor(bus, har.NewService(har.DefaultConfig()), provider, Options{})

	require.NoError(t, mon.SetSensitivity(context.Background(), har.SensitivityHigh, "ui"))

	v, err := provider.Sensitivity(context.Background())
	require.NoError(t, err)
	assert.Equal(t, har.SensitivityHigh, v)
	assert.Equal(t, har.DefaultThresholds(), mon.Thresholds())
}

func TestMonitorStopPublishesInactive(t *testing.T) {
	bus := eventbus.NewEventBusWithBuffer(64)
	activity := bus.Subscribe(eventbus.EventActivity)

	mon := NewMonitor(bus, har.NewService(har.DefaultConfig()), nil, Options{})
	mon.Start()
	assert.Equal(t, har.ActivityCalibrating, receive[har.ActivityState](t, activity).Activity)

	mon.Stop()
	mon.Stop()

	last := receive[har.ActivityState](t, activity)
	assert.Equal(t, har.ActivityIdle, last.Activity)
	assert.False(t, last.IsActive)
	assert.False(t, mon.IsRunning())

	// sin suscriptores de muestras el motor ya no recibe nada
	bus.Publish(eventbus.NewSampleEvent(har.SensorSample{AccelZ: 9.81}))
	assert.Len(t, activity, 0)
}

func TestRecorderWritesJournal(t *testing.T) {
	db, err := store.Open(filepath.Join(t.TempDir(), "har.db"))
	require.NoError(t, err)
	defer db.Close()

	bus := eventbus.NewEventBus()
	rec := NewRecorder(bus, db, nil)
	rec.Start()

	state := har.ActivityState{
		Activity:  har.ActivityIdle,
		IsActive:  true,
		Timestamp: epoch,
		Anomaly: &har.Anomaly{
			Type:       har.AnomalySuddenStop,
			Severity:   har.SeverityHigh,
			DetectedAt: epoch,
			DropRatio:  0.99,
		},
	}
	ev := eventbus.NewAnomalyEvent("W9", state)
	bus.Publish(eventbus.Event{Type: eventbus.EventAnomaly, Data: ev})

	require.Eventually(t, func() bool { return rec.Written() == 1 }, 3*time.Second, 10*time.Millisecond)
	rec.Stop()

	recs, err := db.RecentAnomalies(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, ev.ID, recs[0].ID)
	assert.Equal(t, "W9", recs[0].DeviceID)
}

func TestTallyAccumulatesDurations(t *testing.T) {
	tally := NewTally()
	at := func(ms int) time.Time { return epoch.Add(time.Duration(ms) * time.Millisecond) }

	tally.Observe(har.CalibratingState(at(0)))
	tally.Observe(har.ActivityState{Activity: har.ActivityWalking, IsActive: true, Timestamp: at(100)})
	tally.Observe(har.ActivityState{Activity: har.ActivityWalking, IsActive: true, Timestamp: at(200), TotalMovement: 0.3})
	tally.Observe(har.ActivityState{Activity: har.ActivityIdle, IsActive: true, Timestamp: at(300)})
	// hueco largo: no se acredita
	tally.Observe(har.ActivityState{Activity: har.ActivityIdle, IsActive: true, Timestamp: at(10_300)})
	tally.Observe(har.InactiveState(at(10_400)))

	sum := tally.Summary()
	assert.Equal(t, 100*time.Millisecond, sum.Durations[har.ActivityCalibrating])
	assert.Equal(t, 200*time.Millisecond, sum.Durations[har.ActivityWalking])
	assert.Zero(t, sum.Durations[har.ActivityIdle])
	assert.Equal(t, 1, sum.Transitions)
	assert.InDelta(t, 0.3, sum.PeakMovement, 1e-9)
	assert.Equal(t, at(0), sum.Started)

	dominant, d := sum.Dominant()
	assert.Equal(t, har.ActivityWalking, dominant)
	assert.Equal(t, 200*time.Millisecond, d)
}
