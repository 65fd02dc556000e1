package har

import "math"

// Pesos por defecto: el giroscopio domina porque la rotación distingue la
// marcha mejor que el ruido lineal del acelerómetro.
const (
	DefaultAccelWeight = 0.15
	DefaultGyroWeight  = 0.85
)

// MovementStats son las estadísticas de una ventana
type MovementStats struct {
	AccelVariance float64
	GyroVariance  float64
	TotalMovement float64
}

// ComputeMovement calcula varianzas de magnitud (acelerómetro sin gravedad y
// giroscopio) y el puntaje combinado.
func ComputeMovement(samples []SensorSample, accelWeight, gyroWeight float64) MovementStats {
	if len(samples) == 0 {
		return MovementStats{}
	}

	accel := make([]float64, len(samples))
	gyro := make([]float64, len(samples))
	for i, s := range samples {
		accel[i] = s.AccelMagnitude()
		gyro[i] = s.GyroMagnitude()
	}

	// La gravedad es la componente constante: se resta la media de la propia ventana
	mean := sum(accel) / float64(len(accel))
	for i, m := range accel {
		accel[i] = math.Abs(m - mean)
	}

	stats := MovementStats{
		AccelVariance: variance(accel),
		GyroVariance:  variance(gyro),
	}
	stats.TotalMovement = stats.AccelVariance*accelWeight + stats.GyroVariance*gyroWeight
	return stats
}

func sum(vals []float64) float64 {
	var s float64
	for _, v := range vals {
		s += v
	}
	return s
}

func mean(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	return sum(vals) / float64(len(vals))
}

// variance es la varianza poblacional
func variance(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	mu := mean(vals)
	var s float64
	for _, v := range vals {
		d := v - mu
		s += d * d
	}
	return s / float64(len(vals))
}
