// Package har implements the on-device human activity recognition engine:
// sliding signal window, activity classification with hysteresis, sudden
// stop detection and the broadcast of the resulting activity state.
package har

import (
	"fmt"
	"time"
)

// ========================================
// ACTIVIDADES
// ========================================

// Activity es la etiqueta de actividad publicada
type Activity int

const (
	ActivityIdle Activity = iota
	ActivityStanding
	ActivityWalking
	ActivityRunning
	ActivityCalibrating
)

func (a Activity) String() string {
	switch a {
	case ActivityIdle:
		return "IDLE"
	case ActivityStanding:
		return "STANDING"
	case ActivityWalking:
		return "WALKING"
	case ActivityRunning:
		return "RUNNING"
	case ActivityCalibrating:
		return "CALIBRATING"
	default:
		return fmt.Sprintf("Activity(%d)", int(a))
	}
}

// IsMoving indica si la actividad cuenta como movimiento sostenido
func (a Activity) IsMoving() bool {
	return a == ActivityWalking || a == ActivityRunning
}

// ParseActivity convierte el nombre publicado en Activity
func ParseActivity(name string) (Activity, error) {
	switch name {
	case "IDLE":
		return ActivityIdle, nil
	case "STANDING":
		return ActivityStanding, nil
	case "WALKING":
		return ActivityWalking, nil
	case "RUNNING":
		return ActivityRunning, nil
	case "CALIBRATING":
		return ActivityCalibrating, nil
	}
	return ActivityIdle, fmt.Errorf("actividad desconocida: %q", name)
}

// MarshalText permite serializar la actividad por nombre (JSON, YAML)
func (a Activity) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText es la inversa de MarshalText
func (a *Activity) UnmarshalText(text []byte) error {
	parsed, err := ParseActivity(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// ========================================
// ANOMALÍAS
// ========================================

type AnomalyType string

const (
	AnomalySuddenStop AnomalyType = "SUDDEN_STOP"
)

type Severity string

const (
	SeverityHigh Severity = "HIGH"
)

// Anomaly describe un patrón anómalo detectado en un tick
type Anomaly struct {
	Type       AnomalyType `json:"type"`
	Severity   Severity    `json:"severity"`
	DetectedAt time.Time   `json:"detected_at"`
	DropRatio  float64     `json:"drop_ratio"`
}

// ========================================
// ESTADO PUBLICADO
// ========================================

// ActivityState es la instantánea publicada en cada tick. Se reemplaza
// completa; los suscriptores la reciben por valor.
type ActivityState struct {
	Activity      Activity  `json:"activity"`
	Confidence    float64   `json:"confidence"`
	IsActive      bool      `json:"is_active"`
	TotalMovement float64   `json:"total_movement"`
	Anomaly       *Anomaly  `json:"anomaly,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// HasAnomaly indica si el tick trae una anomalía
func (s ActivityState) HasAnomaly() bool {
	return s.Anomaly != nil
}

// InactiveState es el estado terminal publicado al detener el servicio
func InactiveState(at time.Time) ActivityState {
	return ActivityState{
		Activity:   ActivityIdle,
		Confidence: 1.0,
		IsActive:   false,
		Timestamp:  at,
	}
}

// CalibratingState se publica mientras la ventana no está llena
func CalibratingState(at time.Time) ActivityState {
	return ActivityState{
		Activity:   ActivityCalibrating,
		Confidence: CalibratingConfidence,
		IsActive:   true,
		Timestamp:  at,
	}
}

// CalibratingConfidence es la confianza fija durante la calibración
const CalibratingConfidence = 0.5
