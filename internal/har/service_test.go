package har

import (
	"bytes"
	"log/slog"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(window int) *Service {
	cfg := DefaultConfig()
	cfg.WindowSize = window
	return NewService(cfg, WithClock(func() time.Time { return time.Unix(42, 0) }))
}

func TestServiceCalibratesUntilWindowFull(t *testing.T) {
	s := newTestService(5)
	s.Start()
	defer s.Stop()

	assert.Equal(t, ActivityCalibrating, s.Current().Activity)

	for i := 0; i < 4; i++ {
		state, ok := s.PushSample(stillSample(i))
		require.True(t, ok)
		assert.Equal(t, ActivityCalibrating, state.Activity)
		assert.Equal(t, 0.5, state.Confidence)
		assert.True(t, state.IsActive)
	}

	state, ok := s.PushSample(stillSample(4))
	require.True(t, ok)
	assert.Equal(t, ActivityIdle, state.Activity)
	assert.True(t, state.IsActive)
}

func TestServiceInvalidSampleIsNoOp(t *testing.T) {
	s := newTestService(3)
	s.Start()
	defer s.Stop()

	s.PushSample(stillSample(0))
	before := s.Current()

	state, ok := s.PushSample(SensorSample{AccelX: math.NaN(), AccelZ: 9.81})
	assert.False(t, ok)
	assert.Equal(t, before, state)
	assert.Equal(t, 1, s.buffer.Len())
	assert.Equal(t, uint64(1), s.Rejected())

	s.PushSample(stillSample(1))
	state, _ = s.PushSample(stillSample(2))
	assert.Equal(t, ActivityIdle, state.Activity)
}

func TestServiceStopIsIdempotent(t *testing.T) {
	s := newTestService(3)
	s.Start()
	for i := 0; i < 5; i++ {
		s.PushSample(stillSample(i))
	}

	var published []ActivityState
	s.Subscribe(ListenerFunc(func(st ActivityState) error {
		published = append(published, st)
		return nil
	}))

	s.Stop()
	s.Stop()

	require.Len(t, published, 2)
	for _, st := range published {
		assert.Equal(t, ActivityIdle, st.Activity)
		assert.False(t, st.IsActive)
	}
	assert.False(t, s.Running())
	assert.Equal(t, 0, s.buffer.Len())

	_, ok := s.PushSample(stillSample(10))
	assert.False(t, ok)
	assert.False(t, s.Current().IsActive)
}

func TestServiceRestartResetsWindow(t *testing.T) {
	s := newTestService(3)
	s.Start()
	for i := 0; i < 3; i++ {
		s.PushSample(stillSample(i))
	}
	s.Stop()
	s.Start()

	state, ok := s.PushSample(stillSample(5))
	require.True(t, ok)
	assert.Equal(t, ActivityCalibrating, state.Activity)
}

func TestServiceSensitivityChangesThresholdsOnly(t *testing.T) {
	s := newTestService(3)
	s.Start()
	defer s.Stop()
	s.PushSample(stillSample(0))

	medium := s.Thresholds()
	s.SetSensitivity(SensitivityLow)
	low := s.Thresholds()

	assert.Greater(t, low.Running, medium.Running)
	assert.Equal(t, 1, s.buffer.Len())

	s.SetSensitivity(7)
	assert.Equal(t, SensitivityHigh, s.Sensitivity())
	assert.Equal(t, DefaultThresholds(), s.Thresholds())
}

// waitClosed falla si ch no se cierra a tiempo
func waitClosed(t *testing.T, ch <-chan struct{}, what string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatalf("%s no terminó", what)
	}
}

func TestServiceStopFromListenerMidTick(t *testing.T) {
	s := newTestService(3)

	var seen, later []ActivityState
	s.Subscribe(ListenerFunc(func(st ActivityState) error {
		seen = append(seen, st)
		if st.IsActive && st.Activity == ActivityIdle {
			s.Stop()
		}
		return nil
	}))
	s.Subscribe(ListenerFunc(func(st ActivityState) error {
		later = append(later, st)
		return nil
	}))
	s.Start()

	var accepted []bool
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 5; i++ {
			_, ok := s.PushSample(stillSample(i))
			accepted = append(accepted, ok)
		}
	}()
	waitClosed(t, done, "PushSample")

	assert.Equal(t, []bool{true, true, true, false, false}, accepted)
	assert.False(t, s.Running())
	assert.Equal(t, 0, s.buffer.Len())

	require.Len(t, seen, 5)
	assert.Equal(t, ActivityIdle, seen[3].Activity)
	assert.True(t, seen[3].IsActive)
	assert.Equal(t, InactiveState(time.Unix(42, 0)), seen[4])

	// El listener posterior no recibe el estado del tick ya detenido
	require.Len(t, later, 4)
	for _, st := range later[:3] {
		assert.Equal(t, ActivityCalibrating, st.Activity)
	}
	assert.False(t, later[3].IsActive)
	assert.Equal(t, ActivityIdle, later[3].Activity)
	assert.False(t, s.Current().IsActive)

	// Reinicia limpio
	s.Start()
	state, ok := s.PushSample(stillSample(10))
	require.True(t, ok)
	assert.Equal(t, ActivityCalibrating, state.Activity)
	s.Stop()
}

func TestServiceStopFromAnotherGoroutineDuringDelivery(t *testing.T) {
	s := newTestService(3)

	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	var seen []ActivityState
	s.Subscribe(ListenerFunc(func(st ActivityState) error {
		seen = append(seen, st)
		if st.IsActive && st.Activity == ActivityIdle {
			once.Do(func() {
				close(entered)
				<-release
			})
		}
		return nil
	}))
	s.Start()

	pushed := make(chan struct{})
	go func() {
		defer close(pushed)
		for i := 0; i < 3; i++ {
			s.PushSample(stillSample(i))
		}
	}()
	waitClosed(t, entered, "el tick")

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		s.Stop()
	}()
	// Stop retorna aunque el listener siga dentro del tick
	waitClosed(t, stopped, "Stop")
	assert.False(t, s.Running())
	assert.False(t, s.Current().IsActive)

	close(release)
	waitClosed(t, pushed, "PushSample")

	last := seen[len(seen)-1]
	assert.Equal(t, ActivityIdle, last.Activity)
	assert.False(t, last.IsActive)
	assert.Nil(t, last.Anomaly)
	assert.Equal(t, 0, s.buffer.Len())

	_, ok := s.PushSample(stillSample(9))
	assert.False(t, ok)
}

func TestServiceStopWaitsForTickInProgress(t *testing.T) {
	s := newTestService(3)
	s.Start()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			s.PushSample(stillSample(i))
		}
	}()
	go func() {
		defer wg.Done()
		time.Sleep(time.Millisecond)
		s.Stop()
	}()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	waitClosed(t, done, "Stop concurrente")

	assert.False(t, s.Running())
	assert.Equal(t, InactiveState(time.Unix(42, 0)), s.Current())
}

func TestServiceSetSensitivityFromListener(t *testing.T) {
	s := newTestService(3)
	s.Subscribe(ListenerFunc(func(st ActivityState) error {
		if st.IsActive && st.Activity == ActivityIdle {
			s.SetSensitivity(SensitivityLow)
		}
		return nil
	}))
	s.Start()
	defer s.Stop()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 4; i++ {
			s.PushSample(stillSample(i))
		}
	}()
	waitClosed(t, done, "PushSample")

	assert.Equal(t, SensitivityLow, s.Sensitivity())
	assert.True(t, s.Running())
}

func TestServiceLogsLifecycle(t *testing.T) {
	var buf bytes.Buffer
	cfg := DefaultConfig()
	cfg.WindowSize = 3
	s := NewService(cfg, WithLogger(slog.New(slog.NewTextHandler(&buf, nil))))

	s.Start()
	s.SetSensitivity(SensitivityLow)
	s.Stop()

	out := buf.String()
	assert.Contains(t, out, `msg="servicio HAR iniciado"`)
	assert.Contains(t, out, `msg="sensibilidad actualizada"`)
	assert.Contains(t, out, `msg="servicio HAR detenido"`)
}
