package mqtt

import (
	"math"
	"time"

	"github.com/MarcosBrindi/harmonitor/internal/eventbus"
	"github.com/MarcosBrindi/harmonitor/internal/har"
)

// round3 limita los decimales publicados
func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

// activityPayload instantánea de actividad para MQTT
func activityPayload(deviceID string, state har.ActivityState, sensitivity float64) map[string]interface{} {
	return map[string]interface{}{
		"device_id":      deviceID,
		"timestamp":      state.Timestamp.UTC().Format(time.RFC3339Nano),
		"activity":       state.Activity.String(),
		"confidence":     round3(state.Confidence),
		"is_active":      state.IsActive,
		"total_movement": state.TotalMovement,
		"sensitivity":    sensitivity,
	}
}

// anomalyPayload inicio de anomalía para MQTT
func anomalyPayload(ev eventbus.AnomalyEvent) map[string]interface{} {
	return map[string]interface{}{
		"id":         ev.ID.String(),
		"device_id":  ev.DeviceID,
		"timestamp":  ev.Anomaly.DetectedAt.UTC().Format(time.RFC3339Nano),
		"type":       string(ev.Anomaly.Type),
		"severity":   string(ev.Anomaly.Severity),
		"drop_ratio": round3(ev.Anomaly.DropRatio),
		"activity":   ev.State.Activity.String(),
		"confidence": round3(ev.State.Confidence),
	}
}

// statusPayload online/offline del dispositivo
func statusPayload(deviceID, status string, now time.Time) map[string]interface{} {
	return map[string]interface{}{
		"device_id": deviceID,
		"timestamp": now.UTC().Format(time.RFC3339),
		"status":    status,
	}
}

// alertPayload formato de alerta para RabbitMQ
func alertPayload(ev eventbus.AnomalyEvent) map[string]interface{} {
	return map[string]interface{}{
		"timestamp":   ev.Anomaly.DetectedAt.Unix(),
		"device_id":   ev.DeviceID,
		"sensor_type": "HAR_ALERT",
		"alert_id":    ev.ID.String(),
		"data": map[string]interface{}{
			"type":           string(ev.Anomaly.Type),
			"severity":       string(ev.Anomaly.Severity),
			"drop_ratio":     round3(ev.Anomaly.DropRatio),
			"activity":       ev.State.Activity.String(),
			"total_movement": ev.State.TotalMovement,
		},
	}
}

// activityReport formato periódico de actividad para RabbitMQ
func activityReport(deviceID string, state har.ActivityState, sensitivity float64) map[string]interface{} {
	return map[string]interface{}{
		"timestamp":   state.Timestamp.Unix(),
		"device_id":   deviceID,
		"sensor_type": "HAR_ACTIVITY",
		"data": map[string]interface{}{
			"activity":       state.Activity.String(),
			"confidence":     round3(state.Confidence),
			"is_active":      state.IsActive,
			"total_movement": state.TotalMovement,
			"sensitivity":    sensitivity,
		},
	}
}
