package settings

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/MarcosBrindi/harmonitor/internal/har"
)

// ErrNoSettings indica que la fuente todavía no tiene un valor guardado.
// El monitor conserva los umbrales actuales.
var ErrNoSettings = errors.New("sin ajustes de sensibilidad")

// ErrInvalidSensitivity valor que no es un nivel ni un número
var ErrInvalidSensitivity = errors.New("sensibilidad inválida")

// Provider entrega la sensibilidad configurada por el usuario
type Provider interface {
	Sensitivity(ctx context.Context) (float64, error)
}

// ProviderFunc adapta una función a Provider
type ProviderFunc func(ctx context.Context) (float64, error)

func (f ProviderFunc) Sensitivity(ctx context.Context) (float64, error) {
	return f(ctx)
}

// ParseSensitivity acepta low, medium, high o un número en [0,1]
func ParseSensitivity(s string) (float64, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low":
		return har.SensitivityLow, nil
	case "medium", "":
		return har.SensitivityMedium, nil
	case "high":
		return har.SensitivityHigh, nil
	}

	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidSensitivity, s)
	}
	return har.ClampSensitivity(v), nil
}

// FormatSensitivity retorna el nombre del nivel si coincide con uno
func FormatSensitivity(v float64) string {
	switch v {
	case har.SensitivityLow:
		return "low"
	case har.SensitivityMedium:
		return "medium"
	case har.SensitivityHigh:
		return "high"
	}
	return strconv.FormatFloat(v, 'f', 2, 64)
}

// Writer es una fuente donde el usuario puede guardar un nuevo valor
type Writer interface {
	SetSensitivity(ctx context.Context, v float64) error
}

// Memory guarda el valor en memoria (settings.source = static)
type Memory struct {
	mu sync.RWMutex
	v  float64
}

// NewMemory crea la fuente con el valor inicial
func NewMemory(v float64) *Memory {
	return &Memory{v: har.ClampSensitivity(v)}
}

func (m *Memory) Sensitivity(context.Context) (float64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.v, nil
}

func (m *Memory) SetSensitivity(_ context.Context, v float64) error {
	m.mu.Lock()
	m.v = har.ClampSensitivity(v)
	m.mu.Unlock()
	return nil
}

// fileSettings archivo TOML; sensitivity puede ser texto o número
type fileSettings struct {
	Sensitivity any `toml:"sensitivity"`
}

// FileProvider relee un archivo TOML en cada consulta
type FileProvider struct {
	Path string
}

// NewFileProvider crea el proveedor para el archivo dado
func NewFileProvider(path string) *FileProvider {
	return &FileProvider{Path: path}
}

// Sensitivity lee el archivo. Un archivo inexistente o sin la clave
// retorna ErrNoSettings.
func (p *FileProvider) Sensitivity(ctx context.Context) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if p.Path == "" {
		return 0, fmt.Errorf("ruta de ajustes vacía")
	}
	if _, err := os.Stat(p.Path); err != nil {
		if os.IsNotExist(err) {
			return 0, ErrNoSettings
		}
		return 0, fmt.Errorf("error accediendo a ajustes: %w", err)
	}

	var fs fileSettings
	if _, err := toml.DecodeFile(p.Path, &fs); err != nil {
		return 0, fmt.Errorf("error parseando TOML: %w", err)
	}

	switch v := fs.Sensitivity.(type) {
	case nil:
		return 0, ErrNoSettings
	case string:
		return ParseSensitivity(v)
	case int64:
		return har.ClampSensitivity(float64(v)), nil
	case float64:
		if math.IsNaN(v) {
			return 0, fmt.Errorf("%w: nan", ErrInvalidSensitivity)
		}
		return har.ClampSensitivity(v), nil
	default:
		return 0, fmt.Errorf("%w: tipo %T", ErrInvalidSensitivity, v)
	}
}

// SetSensitivity reescribe el archivo con el nuevo valor
func (p *FileProvider) SetSensitivity(ctx context.Context, v float64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	fs := struct {
		Sensitivity string `toml:"sensitivity"`
	}{FormatSensitivity(har.ClampSensitivity(v))}

	// Escribir a un temporal y renombrar: el lector nunca ve un archivo a medias
	tmp := p.Path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("error creando ajustes: %w", err)
	}
	if err := toml.NewEncoder(f).Encode(fs); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("error escribiendo TOML: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("error escribiendo TOML: %w", err)
	}
	if err := os.Rename(tmp, p.Path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("error guardando ajustes: %w", err)
	}
	return nil
}
