package mqtt

import (
	"testing"
	"time"

	"github.com/MarcosBrindi/harmonitor/internal/eventbus"
	"github.com/MarcosBrindi/harmonitor/internal/har"
	"github.com/stretchr/testify/assert"
)

var at = time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC)

func suddenStop() eventbus.AnomalyEvent {
	return eventbus.NewAnomalyEvent("W1", har.ActivityState{
		Activity:      har.ActivityIdle,
		Confidence:    0.61234,
		IsActive:      true,
		TotalMovement: 0.0001,
		Timestamp:     at,
		Anomaly: &har.Anomaly{
			Type:       har.AnomalySuddenStop,
			Severity:   har.SeverityHigh,
			DetectedAt: at,
			DropRatio:  0.98765,
		},
	})
}

func TestActivityPayload(t *testing.T) {
	state := har.ActivityState{
		Activity:      har.ActivityWalking,
		Confidence:    0.73456,
		IsActive:      true,
		TotalMovement: 0.21,
		Timestamp:     at,
	}

	p := activityPayload("W1", state, 0.5)
	assert.Equal(t, "WALKING", p["activity"])
	assert.Equal(t, 0.735, p["confidence"])
	assert.Equal(t, true, p["is_active"])
	assert.Equal(t, "2026-02-03T04:05:06Z", p["timestamp"])
	assert.Equal(t, 0.5, p["sensitivity"])
}

func TestAnomalyPayloads(t *testing.T) {
	ev := suddenStop()

	p := anomalyPayload(ev)
	assert.Equal(t, ev.ID.String(), p["id"])
	assert.Equal(t, "SUDDEN_STOP", p["type"])
	assert.Equal(t, "HIGH", p["severity"])
	assert.Equal(t, 0.988, p["drop_ratio"])
	assert.Equal(t, "IDLE", p["activity"])

	alert := alertPayload(ev)
	assert.Equal(t, at.Unix(), alert["timestamp"])
	assert.Equal(t, "HAR_ALERT", alert["sensor_type"])
	data := alert["data"].(map[string]interface{})
	assert.Equal(t, "SUDDEN_STOP", data["type"])
}

func TestActivityReportInactive(t *testing.T) {
	p := activityReport("W1", har.InactiveState(at), 1.0)
	data := p["data"].(map[string]interface{})
	assert.Equal(t, "IDLE", data["activity"])
	assert.Equal(t, false, data["is_active"])
	assert.Equal(t, "HAR_ACTIVITY", p["sensor_type"])
}
