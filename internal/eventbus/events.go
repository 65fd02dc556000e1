package eventbus

import (
	"time"

	"github.com/MarcosBrindi/harmonitor/internal/har"
	"github.com/google/uuid"
)

// ========================================
// TIPOS DE EVENTOS
// ========================================

type EventType string

const (
	EventSample      EventType = "sample"      // har.SensorSample
	EventActivity    EventType = "activity"    // har.ActivityState
	EventAnomaly     EventType = "anomaly"     // AnomalyEvent
	EventSensitivity EventType = "sensitivity" // SensitivityData
)

// ========================================
// EVENTO GENÉRICO
// ========================================

type Event struct {
	Type      EventType
	Timestamp time.Time
	Data      interface{}
}

// NewSampleEvent envuelve una muestra del IMU
func NewSampleEvent(s har.SensorSample) Event {
	return Event{Type: EventSample, Timestamp: s.Timestamp, Data: s}
}

// ========================================
// ANOMALÍAS
// ========================================

// AnomalyEvent es el inicio de una anomalía, con el estado que la reportó
type AnomalyEvent struct {
	ID       uuid.UUID
	DeviceID string
	Anomaly  har.Anomaly
	State    har.ActivityState
}

// NewAnomalyEvent asigna un identificador nuevo
func NewAnomalyEvent(deviceID string, state har.ActivityState) AnomalyEvent {
	ev := AnomalyEvent{
		ID:       uuid.New(),
		DeviceID: deviceID,
		State:    state,
	}
	if state.Anomaly != nil {
		ev.Anomaly = *state.Anomaly
	}
	return ev
}

// ========================================
// SENSIBILIDAD
// ========================================

// SensitivityData cambio de sensibilidad aplicado al motor
type SensitivityData struct {
	Sensitivity float64
	Thresholds  har.Thresholds
	Source      string // "settings", "ui", "scenario"
}
