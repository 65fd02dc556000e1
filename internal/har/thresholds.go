package har

import "math"

// Niveles de sensibilidad con nombre
const (
	SensitivityLow    = 0.0
	SensitivityMedium = 0.5
	SensitivityHigh   = 1.0
)

// Thresholds son los cuatro umbrales de movimiento, en orden ascendente
type Thresholds struct {
	Idle     float64 `yaml:"idle"`
	Standing float64 `yaml:"standing"`
	Walking  float64 `yaml:"walking"`
	Running  float64 `yaml:"running"`
}

// ScaleFactors son los k de cada umbral: umbral × (1 + (1-sensibilidad) × k)
type ScaleFactors struct {
	Idle     float64 `yaml:"idle"`
	Standing float64 `yaml:"standing"`
	Walking  float64 `yaml:"walking"`
	Running  float64 `yaml:"running"`
}

// DefaultThresholds retorna los umbrales base (sensibilidad alta)
func DefaultThresholds() Thresholds {
	return Thresholds{
		Idle:     0.004,
		Standing: 0.04,
		Walking:  0.15,
		Running:  0.9,
	}
}

// DefaultScaleFactors retorna los k por defecto
func DefaultScaleFactors() ScaleFactors {
	return ScaleFactors{
		Idle:     0.6,
		Standing: 0.6,
		Walking:  0.4,
		Running:  0.3,
	}
}

// ClampSensitivity lleva la sensibilidad a [0,1]; NaN cae en medio
func ClampSensitivity(v float64) float64 {
	if math.IsNaN(v) {
		return SensitivityMedium
	}
	return math.Max(0, math.Min(1, v))
}

// Scale aplica la sensibilidad a los umbrales base. Sensibilidad baja sube
// todos los umbrales; sensibilidad alta los deja en su valor base.
func (t Thresholds) Scale(sensitivity float64, k ScaleFactors) Thresholds {
	modifier := 1 - ClampSensitivity(sensitivity)
	return Thresholds{
		Idle:     t.Idle * (1 + modifier*k.Idle),
		Standing: t.Standing * (1 + modifier*k.Standing),
		Walking:  t.Walking * (1 + modifier*k.Walking),
		Running:  t.Running * (1 + modifier*k.Running),
	}
}

// Ordered verifica idle < standing < walking < running y que sean positivos
func (t Thresholds) Ordered() bool {
	return t.Idle > 0 && t.Idle < t.Standing && t.Standing < t.Walking && t.Walking < t.Running
}
