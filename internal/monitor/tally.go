package monitor

import (
	"sync"
	"time"

	"github.com/MarcosBrindi/harmonitor/internal/har"
)

// maxGap es el hueco máximo entre estados que todavía se acredita como
// tiempo en la actividad anterior
const maxGap = 2 * time.Second

// Summary resumen de una sesión de monitoreo
type Summary struct {
	Durations    map[har.Activity]time.Duration
	Transitions  int
	Anomalies    int
	PeakMovement float64
	Started      time.Time
	LastUpdate   time.Time
}

// Dominant retorna la actividad con más tiempo acumulado (sin CALIBRATING)
func (s Summary) Dominant() (har.Activity, time.Duration) {
	best, bestDur := har.ActivityIdle, time.Duration(0)
	for _, a := range []har.Activity{har.ActivityIdle, har.ActivityStanding, har.ActivityWalking, har.ActivityRunning} {
		if d := s.Durations[a]; d > bestDur {
			best, bestDur = a, d
		}
	}
	return best, bestDur
}

// Tally acumula el tiempo pasado en cada actividad a partir de los
// estados publicados
type Tally struct {
	mu      sync.Mutex
	summary Summary
	last    har.ActivityState
	hasLast bool
}

// NewTally crea un acumulador vacío
func NewTally() *Tally {
	t := &Tally{}
	t.Reset()
	return t
}

// Reset descarta lo acumulado
func (t *Tally) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.summary = Summary{Durations: make(map[har.Activity]time.Duration)}
	t.last = har.ActivityState{}
	t.hasLast = false
}

// Observe registra un estado publicado. Los estados inactivos cierran el
// tramo en curso sin acreditar tiempo nuevo.
func (t *Tally) Observe(state har.ActivityState) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !state.IsActive {
		t.hasLast = false
		return
	}

	if t.summary.Started.IsZero() {
		t.summary.Started = state.Timestamp
	}
	t.summary.LastUpdate = state.Timestamp

	if state.TotalMovement > t.summary.PeakMovement {
		t.summary.PeakMovement = state.TotalMovement
	}
	if state.HasAnomaly() {
		t.summary.Anomalies++
	}

	if t.hasLast {
		gap := state.Timestamp.Sub(t.last.Timestamp)
		if gap > 0 && gap <= maxGap {
			t.summary.Durations[t.last.Activity] += gap
		}
		if state.Activity != t.last.Activity && t.last.Activity != har.ActivityCalibrating {
			t.summary.Transitions++
		}
	}
	t.last = state
	t.hasLast = true
}

// Summary retorna una copia del resumen
func (t *Tally) Summary() Summary {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := t.summary
	out.Durations = make(map[har.Activity]time.Duration, len(t.summary.Durations))
	for k, v := range t.summary.Durations {
		out.Durations[k] = v
	}
	return out
}
