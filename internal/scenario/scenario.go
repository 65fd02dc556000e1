package scenario

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/MarcosBrindi/harmonitor/internal/har"
	"github.com/MarcosBrindi/harmonitor/internal/sensors"
	"github.com/MarcosBrindi/harmonitor/internal/settings"
	"gopkg.in/yaml.v3"
)

// ErrUnknownScenario no existe un escenario con ese ID
var ErrUnknownScenario = errors.New("escenario desconocido")

// Scenario representa un escenario de movimiento completo
type Scenario struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Duration    int            `yaml:"duration"` // Duración total en segundos
	Steps       []ScenarioStep `yaml:"steps"`
}

// ScenarioStep es un paso del escenario
type ScenarioStep struct {
	Time   float64     `yaml:"time"`   // Tiempo en segundos desde el inicio
	Action string      `yaml:"action"` // Tipo de acción
	Value  interface{} `yaml:"value"`  // Valor de la acción (puede ser float, string, etc.)
}

// ActionType define los tipos de acciones posibles
const (
	ActionSetMotion      = "set_motion"      // Cambiar el movimiento simulado
	ActionImpact         = "impact"          // Golpe de una muestra (caída)
	ActionSetSensitivity = "set_sensitivity" // low, medium, high o número
	ActionWaitActivity   = "wait_activity"   // Esperar a que se publique una actividad
	ActionWaitAnomaly    = "wait_anomaly"    // Esperar una anomalía
	ActionWait           = "wait"            // Esperar N segundos
	ActionLog            = "log"             // Imprimir mensaje
	ActionPause          = "pause"           // Pausar el escenario
	ActionResume         = "resume"          // Reanudar el escenario
)

var validActions = []string{
	ActionSetMotion,
	ActionImpact,
	ActionSetSensitivity,
	ActionWaitActivity,
	ActionWaitAnomaly,
	ActionWait,
	ActionLog,
	ActionPause,
	ActionResume,
}

// LoadScenario carga un escenario desde un archivo YAML
func LoadScenario(filename string) (*Scenario, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("error leyendo escenario: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario decodifica y valida un escenario YAML
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	if err := yaml.Unmarshal(data, &scenario); err != nil {
		return nil, fmt.Errorf("error parseando YAML: %w", err)
	}

	if err := scenario.Validate(); err != nil {
		return nil, fmt.Errorf("escenario inválido: %w", err)
	}

	return &scenario, nil
}

// Validate valida que el escenario sea correcto
func (s *Scenario) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("el escenario debe tener un nombre")
	}

	if len(s.Steps) == 0 {
		return fmt.Errorf("el escenario debe tener al menos un paso")
	}

	// Verificar que los tiempos estén ordenados
	lastTime := -1.0
	for i, step := range s.Steps {
		if step.Time < 0 {
			return fmt.Errorf("paso %d: el tiempo no puede ser negativo", i)
		}
		if step.Time < lastTime {
			return fmt.Errorf("paso %d: los pasos deben estar ordenados por tiempo", i)
		}
		lastTime = step.Time

		if !slices.Contains(validActions, step.Action) {
			return fmt.Errorf("paso %d: acción '%s' no válida", i, step.Action)
		}
		if err := validateValue(step); err != nil {
			return fmt.Errorf("paso %d: %w", i, err)
		}
	}

	return nil
}

// validateValue comprueba el valor de las acciones que lo requieren
func validateValue(step ScenarioStep) error {
	switch step.Action {
	case ActionSetMotion:
		if _, err := motionValue(step); err != nil {
			return err
		}
	case ActionSetSensitivity:
		if _, err := sensitivityValue(step); err != nil {
			return err
		}
	case ActionWaitActivity:
		if _, err := activityValue(step); err != nil {
			return err
		}
	case ActionWait:
		if _, ok := number(step.Value); !ok {
			return fmt.Errorf("wait requiere segundos, no %v", step.Value)
		}
	}
	return nil
}

// GetDuration retorna la duración total del escenario
func (s *Scenario) GetDuration() time.Duration {
	if s.Duration > 0 {
		return time.Duration(s.Duration) * time.Second
	}

	// Si no está especificado, usar el tiempo del último paso + 5 segundos
	if len(s.Steps) > 0 {
		lastTime := s.Steps[len(s.Steps)-1].Time
		return time.Duration((lastTime + 5) * float64(time.Second))
	}

	return 60 * time.Second // Por defecto 60 segundos
}

// String implementa fmt.Stringer
func (s *Scenario) String() string {
	return fmt.Sprintf("Escenario: %s (%d pasos, %.0fs)", s.Name, len(s.Steps), s.GetDuration().Seconds())
}

// number convierte los números que produce yaml.v3
func number(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

func motionValue(step ScenarioStep) (sensors.Motion, error) {
	name, ok := step.Value.(string)
	if !ok {
		return "", fmt.Errorf("set_motion requiere un nombre, no %v", step.Value)
	}
	return sensors.ParseMotion(name)
}

// sensitivityValue acepta low/medium/high o un número en [0,1]
func sensitivityValue(step ScenarioStep) (float64, error) {
	if v, ok := number(step.Value); ok {
		return har.ClampSensitivity(v), nil
	}
	name, ok := step.Value.(string)
	if !ok {
		return 0, fmt.Errorf("set_sensitivity: valor inválido %v", step.Value)
	}
	return settings.ParseSensitivity(name)
}

func activityValue(step ScenarioStep) (har.Activity, error) {
	name, ok := step.Value.(string)
	if !ok {
		return 0, fmt.Errorf("wait_activity requiere una actividad, no %v", step.Value)
	}
	return har.ParseActivity(strings.ToUpper(strings.TrimSpace(name)))
}
