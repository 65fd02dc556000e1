package har

import "math"

// HysteresisConfig controla la supresión de parpadeos entre clases vecinas
type HysteresisConfig struct {
	// Cambios consecutivos bajo los cuales se suprime IDLE↔STANDING
	IdleStandingChanges int `yaml:"idle_standing_changes"`
	// Cambios consecutivos bajo los cuales se suprime STANDING↔WALKING
	StandingWalkingChanges int `yaml:"standing_walking_changes"`
	// Penalización de confianza al republicar la actividad anterior
	ConfidencePenalty float64 `yaml:"confidence_penalty"`
	ConfidenceFloor   float64 `yaml:"confidence_floor"`
}

// DefaultHysteresis retorna la configuración de histéresis por defecto
func DefaultHysteresis() HysteresisConfig {
	return HysteresisConfig{
		IdleStandingChanges:    3,
		StandingWalkingChanges: 2,
		ConfidencePenalty:      0.3,
		ConfidenceFloor:        0.3,
	}
}

// bracket define piso y techo de confianza de una clase
type bracket struct {
	floor, ceil float64
}

var (
	idleBracket     = bracket{0.6, 0.95}
	standingBracket = bracket{0.5, 0.85}
	walkingBracket  = bracket{0.5, 0.9}
	runningBracket  = bracket{0.6, 0.95}
)

// ActivityReading es el resultado de un tick de clasificación
type ActivityReading struct {
	Activity   Activity
	Confidence float64

	// Clasificación cruda antes de la histéresis
	RawActivity   Activity
	RawConfidence float64
	Suppressed    bool

	Stats MovementStats
}

// Classifier convierte estadísticas de ventana en una actividad discreta
type Classifier struct {
	accelWeight float64
	gyroWeight  float64
	hysteresis  HysteresisConfig
	thresholds  Thresholds

	last        Activity
	changeCount int
}

// NewClassifier crea un clasificador con umbrales ya escalados
func NewClassifier(thresholds Thresholds, hysteresis HysteresisConfig, accelWeight, gyroWeight float64) *Classifier {
	return &Classifier{
		accelWeight: accelWeight,
		gyroWeight:  gyroWeight,
		hysteresis:  hysteresis,
		thresholds:  thresholds,
		last:        ActivityCalibrating,
	}
}

// Thresholds retorna el conjunto de umbrales activo
func (c *Classifier) Thresholds() Thresholds {
	return c.thresholds
}

// SetThresholds reemplaza los umbrales activos; no toca la ventana ni la histéresis
func (c *Classifier) SetThresholds(t Thresholds) {
	c.thresholds = t
}

// Reset olvida la última actividad publicada y el contador de cambios
func (c *Classifier) Reset() {
	c.last = ActivityCalibrating
	c.changeCount = 0
}

// Update clasifica la ventana completa
func (c *Classifier) Update(samples []SensorSample) ActivityReading {
	stats := ComputeMovement(samples, c.accelWeight, c.gyroWeight)
	reading := c.Step(stats.TotalMovement)
	reading.Stats = stats
	return reading
}

// Step clasifica un puntaje de movimiento y aplica la histéresis
func (c *Classifier) Step(totalMovement float64) ActivityReading {
	raw, conf := Classify(totalMovement, c.thresholds)
	reading := ActivityReading{
		Activity:      raw,
		Confidence:    conf,
		RawActivity:   raw,
		RawConfidence: conf,
		Stats:         MovementStats{TotalMovement: totalMovement},
	}

	if raw == c.last {
		c.changeCount = 0
		return reading
	}

	c.changeCount++
	if c.suppress(c.last, raw) {
		reading.Activity = c.last
		reading.Confidence = math.Max(c.hysteresis.ConfidenceFloor, conf-c.hysteresis.ConfidencePenalty)
		reading.Suppressed = true
		return reading
	}

	c.changeCount = 0
	c.last = raw
	return reading
}

func (c *Classifier) suppress(from, to Activity) bool {
	switch {
	case isPair(from, to, ActivityIdle, ActivityStanding):
		return c.changeCount < c.hysteresis.IdleStandingChanges
	case isPair(from, to, ActivityStanding, ActivityWalking):
		return c.changeCount < c.hysteresis.StandingWalkingChanges
	}
	return false
}

func isPair(from, to, a, b Activity) bool {
	return (from == a && to == b) || (from == b && to == a)
}

// Classify asigna la actividad y su confianza a un puntaje de movimiento.
// Dentro de cada clase la confianza no decrece con el puntaje.
func Classify(totalMovement float64, t Thresholds) (Activity, float64) {
	tm := totalMovement
	if math.IsNaN(tm) || tm < 0 {
		tm = 0
	}

	switch {
	case tm <= t.Idle:
		return ActivityIdle, idleBracket.lerp(ratio(tm, 0, t.Idle))
	case tm <= t.Standing:
		return ActivityStanding, standingBracket.lerp(ratio(tm, t.Idle, t.Standing))
	case tm < t.Running:
		// La confianza de marcha se satura al llegar al umbral de caminata
		return ActivityWalking, walkingBracket.lerp(ratio(tm, t.Standing, t.Walking))
	default:
		return ActivityRunning, runningBracket.lerp(ratio(tm, t.Running, 2*t.Running))
	}
}

// ratio es la posición de v en [lo, hi], recortada a [0,1]
func ratio(v, lo, hi float64) float64 {
	if hi <= lo {
		return 1
	}
	r := (v - lo) / (hi - lo)
	if math.IsInf(r, 0) || math.IsNaN(r) {
		return 1
	}
	return math.Max(0, math.Min(1, r))
}

func (b bracket) lerp(r float64) float64 {
	return b.floor + (b.ceil-b.floor)*r
}
