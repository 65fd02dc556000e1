package har

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type tickFeeder struct {
	d     *AnomalyDetector
	th    Thresholds
	at    time.Time
	fired []Anomaly
}

func newTickFeeder() *tickFeeder {
	return &tickFeeder{
		d:  NewAnomalyDetector(DefaultSuddenStop()),
		th: DefaultThresholds(),
		at: time.Unix(1_700_000_000, 0),
	}
}

func (f *tickFeeder) feed(n int, tm float64) []int {
	act, _ := Classify(tm, f.th)
	var fires []int
	for i := 0; i < n; i++ {
		f.at = f.at.Add(100 * time.Millisecond)
		if a := f.d.Update(tm, act, f.th, f.at); a != nil {
			f.fired = append(f.fired, *a)
			fires = append(fires, i)
		}
	}
	return fires
}

func TestSuddenStopFiresOnceAfterSustainedRun(t *testing.T) {
	f := newTickFeeder()
	running := 1.5 * f.th.Running

	assert.Empty(t, f.feed(60, running))
	fires := f.feed(5, 0)

	require.Equal(t, []int{2}, fires, "fires on the tick where the recent window collapses")
	assert.Equal(t, AnomalySuddenStop, f.fired[0].Type)
	assert.Equal(t, SeverityHigh, f.fired[0].Severity)
	assert.Greater(t, f.fired[0].DropRatio, 0.9)
	assert.False(t, f.d.SessionActive())
	assert.Equal(t, 0, f.d.HighMovementDuration())
}

func TestSuddenStopCooldown(t *testing.T) {
	f := newTickFeeder()
	running := 1.5 * f.th.Running

	f.feed(60, running)
	require.Len(t, f.feed(5, 0), 1)

	// Segunda caída idéntica dentro de 30s
	f.feed(60, running)
	assert.Empty(t, f.feed(5, 0))

	// Pasado el enfriamiento vuelve a disparar
	f.at = f.at.Add(31 * time.Second)
	f.feed(60, running)
	assert.Len(t, f.feed(5, 0), 1)
	assert.Len(t, f.fired, 2)
}

func TestSuddenStopCooldownSurvivesClockGoingBack(t *testing.T) {
	f := newTickFeeder()
	running := 1.5 * f.th.Running

	f.feed(60, running)
	require.Len(t, f.feed(5, 0), 1)

	// Corrección del reloj del dispositivo: una hora hacia atrás
	f.at = f.at.Add(-time.Hour)
	f.feed(60, running)
	assert.Len(t, f.feed(5, 0), 1)
	assert.Len(t, f.fired, 2)

	// El enfriamiento cuenta desde el nuevo disparo
	f.feed(60, running)
	assert.Empty(t, f.feed(5, 0))
}

func TestSuddenStopIgnoresWalkingStop(t *testing.T) {
	f := newTickFeeder()
	walking := 2 * f.th.Walking

	act, _ := Classify(walking, f.th)
	require.Equal(t, ActivityWalking, act)

	f.feed(60, walking)
	assert.Empty(t, f.feed(10, 0))
}

func TestSuddenStopRequiresSustainedMovement(t *testing.T) {
	f := newTickFeeder()
	running := 1.5 * f.th.Running

	// Historial suficiente pero sólo 40 ticks de carrera
	f.feed(20, 0)
	f.feed(40, running)
	assert.Empty(t, f.feed(5, 0))
}

func TestStillReadingsResetSession(t *testing.T) {
	f := newTickFeeder()
	running := 1.5 * f.th.Running

	f.feed(35, running)
	require.True(t, f.d.SessionActive())

	f.feed(30, 0)
	assert.False(t, f.d.SessionActive())
	assert.Equal(t, 0, f.d.HighMovementDuration())
}

func TestAnomalyDetectorReset(t *testing.T) {
	f := newTickFeeder()
	f.feed(60, 1.5*f.th.Running)
	f.d.Reset()

	assert.False(t, f.d.SessionActive())
	assert.Empty(t, f.feed(5, 0))
}
