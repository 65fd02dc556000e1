package har

import (
	"math"
	"time"
)

// SensorSample es una lectura combinada acelerómetro + giroscopio
type SensorSample struct {
	// Aceleración (m/s²)
	AccelX float64 `json:"ax"`
	AccelY float64 `json:"ay"`
	AccelZ float64 `json:"az"`

	// Giroscopio (rad/s)
	GyroX float64 `json:"gx"`
	GyroY float64 `json:"gy"`
	GyroZ float64 `json:"gz"`

	Timestamp time.Time `json:"timestamp"`
}

// Valid reporta si todos los campos numéricos son finitos
func (s SensorSample) Valid() bool {
	for _, v := range [...]float64{s.AccelX, s.AccelY, s.AccelZ, s.GyroX, s.GyroY, s.GyroZ} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// AccelMagnitude es el SVM del acelerómetro
func (s SensorSample) AccelMagnitude() float64 {
	return magnitude(s.AccelX, s.AccelY, s.AccelZ)
}

// GyroMagnitude es el SVM del giroscopio
func (s SensorSample) GyroMagnitude() float64 {
	return magnitude(s.GyroX, s.GyroY, s.GyroZ)
}

func magnitude(x, y, z float64) float64 {
	m := math.Sqrt(x*x + y*y + z*z)
	if math.IsNaN(m) || math.IsInf(m, 0) {
		return 0
	}
	return m
}
