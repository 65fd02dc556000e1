package har

import "time"

// SuddenStopConfig agrupa las constantes del detector de parada súbita.
// Son heurísticas empíricas sin calibración formal.
type SuddenStopConfig struct {
	HistorySize      int           `yaml:"history_size"`       // ~10s a 10Hz
	MinHistory       int           `yaml:"min_history"`        // muestras mínimas en el historial
	SessionTicks     int           `yaml:"session_ticks"`      // ticks para activar sesión de marcha (~3s)
	SustainedTicks   int           `yaml:"sustained_ticks"`    // movimiento sostenido requerido (~5s)
	StillResetTicks  int           `yaml:"still_reset_ticks"`  // ticks IDLE que reinician la sesión
	Cooldown         time.Duration `yaml:"cooldown"`           // entre disparos
	RecentWindow     int           `yaml:"recent_window"`      // últimas muestras
	PriorWindow      int           `yaml:"prior_window"`       // ~1s antes
	LongWindow       int           `yaml:"long_window"`        // ~2-3s antes
	DropRatio        float64       `yaml:"drop_ratio"`         // caída mínima (0.9 = 90%)
	LongWalkingMult  float64       `yaml:"long_walking_mult"`  // ventana larga ≥ mult × umbral caminata
	LongConsistency  float64       `yaml:"long_consistency"`   // fracción de la ventana larga que debe cumplir
	PriorRunningMult float64       `yaml:"prior_running_mult"` // ventana previa ≥ mult × umbral carrera
	RecentIdleMult   float64       `yaml:"recent_idle_mult"`   // ventana reciente ≤ mult × umbral reposo
}

// DefaultSuddenStop retorna los valores por defecto
func DefaultSuddenStop() SuddenStopConfig {
	return SuddenStopConfig{
		HistorySize:      100,
		MinHistory:       50,
		SessionTicks:     30,
		SustainedTicks:   50,
		StillResetTicks:  30,
		Cooldown:         30 * time.Second,
		RecentWindow:     3,
		PriorWindow:      10,
		LongWindow:       30,
		DropRatio:        0.9,
		LongWalkingMult:  1.5,
		LongConsistency:  0.8,
		PriorRunningMult: 0.8,
		RecentIdleMult:   2.0,
	}
}

// AnomalyDetector detecta movimiento rápido sostenido seguido de una caída
// abrupta a casi cero.
type AnomalyDetector struct {
	cfg SuddenStopConfig

	history                  *MovementHistory
	highMovementDuration     int
	consecutiveStillReadings int
	walkingSessionActive     bool
	lastTrigger              time.Time
}

// NewAnomalyDetector crea un detector con la configuración dada
func NewAnomalyDetector(cfg SuddenStopConfig) *AnomalyDetector {
	return &AnomalyDetector{
		cfg:     cfg,
		history: NewMovementHistory(cfg.HistorySize),
	}
}

// Update registra el tick y retorna la anomalía si se dispara. Los umbrales
// son los activos en el clasificador para este tick.
func (d *AnomalyDetector) Update(totalMovement float64, activity Activity, t Thresholds, at time.Time) *Anomaly {
	d.history.Push(totalMovement)
	d.track(activity)

	if !d.armed(at) {
		return nil
	}

	recent := d.history.Window(d.cfg.RecentWindow, 0)
	prior := d.history.Window(d.cfg.PriorWindow, d.cfg.RecentWindow)
	long := d.history.Window(d.cfg.LongWindow, d.cfg.RecentWindow+d.cfg.PriorWindow)
	if recent == nil || prior == nil || long == nil {
		return nil
	}

	avgRecent := mean(recent)
	avgPrior := mean(prior)
	if avgPrior <= 0 {
		return nil
	}
	drop := (avgPrior - avgRecent) / avgPrior

	if drop <= d.cfg.DropRatio {
		return nil
	}
	if !consistentlyAbove(long, d.cfg.LongWalkingMult*t.Walking, d.cfg.LongConsistency) {
		return nil
	}
	if avgPrior < d.cfg.PriorRunningMult*t.Running {
		return nil
	}
	if avgRecent > d.cfg.RecentIdleMult*t.Idle {
		return nil
	}

	d.highMovementDuration = 0
	d.walkingSessionActive = false
	d.lastTrigger = at

	return &Anomaly{
		Type:       AnomalySuddenStop,
		Severity:   SeverityHigh,
		DetectedAt: at,
		DropRatio:  drop,
	}
}

// track actualiza los contadores de sesión
func (d *AnomalyDetector) track(activity Activity) {
	switch {
	case activity.IsMoving():
		d.highMovementDuration++
		d.consecutiveStillReadings = 0
		if d.highMovementDuration > d.cfg.SessionTicks {
			d.walkingSessionActive = true
		}
	case activity == ActivityIdle:
		d.consecutiveStillReadings++
		if d.consecutiveStillReadings >= d.cfg.StillResetTicks {
			d.highMovementDuration = 0
			d.walkingSessionActive = false
		}
	}
}

// armed evalúa las precondiciones del disparo
func (d *AnomalyDetector) armed(at time.Time) bool {
	if d.history.Len() < d.cfg.MinHistory {
		return false
	}
	if !d.walkingSessionActive || d.highMovementDuration < d.cfg.SustainedTicks {
		return false
	}
	if !d.lastTrigger.IsZero() {
		// Un reloj que retrocede no prolonga el enfriamiento
		elapsed := at.Sub(d.lastTrigger)
		if elapsed >= 0 && elapsed < d.cfg.Cooldown {
			return false
		}
	}
	return true
}

// SessionActive indica si hay una sesión de marcha en curso
func (d *AnomalyDetector) SessionActive() bool {
	return d.walkingSessionActive
}

// HighMovementDuration retorna los ticks de movimiento sostenido acumulados
func (d *AnomalyDetector) HighMovementDuration() int {
	return d.highMovementDuration
}

// Reset descarta todo el estado de la sesión, incluido el enfriamiento
func (d *AnomalyDetector) Reset() {
	d.history.Reset()
	d.highMovementDuration = 0
	d.consecutiveStillReadings = 0
	d.walkingSessionActive = false
	d.lastTrigger = time.Time{}
}

func consistentlyAbove(vals []float64, limit, fraction float64) bool {
	if len(vals) == 0 {
		return false
	}
	n := 0
	for _, v := range vals {
		if v >= limit {
			n++
		}
	}
	return float64(n)/float64(len(vals)) >= fraction
}
