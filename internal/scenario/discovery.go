package scenario

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/MarcosBrindi/harmonitor/internal/logging"
)

// ScenarioInfo contiene información de un escenario disponible
type ScenarioInfo struct {
	ID       string // "carrera_con_caida", "yaml_mi_escenario"
	Name     string // "Carrera con Caída", "Mi Escenario (YAML)"
	Source   string // "builtin" o "yaml"
	FilePath string // Ruta al archivo YAML (si es yaml)
}

// DiscoverScenarios encuentra todos los escenarios disponibles: primero los
// predefinidos, luego los YAML de yamlDir
func DiscoverScenarios(yamlDir string, logger *slog.Logger) []ScenarioInfo {
	logger = logging.Component(logger, "scenario")
	scenarios := make([]ScenarioInfo, 0)

	builtin := GetAllScenarios()
	for _, id := range GetScenarioNames() {
		scenarios = append(scenarios, ScenarioInfo{
			ID:     id,
			Name:   builtin[id].Name,
			Source: "builtin",
		})
	}

	if yamlDir != "" {
		scenarios = append(scenarios, discoverYAMLScenarios(yamlDir, logger)...)
	}

	return scenarios
}

// discoverYAMLScenarios busca archivos .yaml/.yml en un directorio
func discoverYAMLScenarios(dir string, logger *slog.Logger) []ScenarioInfo {
	scenarios := make([]ScenarioInfo, 0)

	files, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return scenarios
	}
	if err != nil {
		logger.Warn("error leyendo directorio de escenarios", slog.String("dir", dir), slog.Any("error", err))
		return scenarios
	}

	for _, file := range files {
		if file.IsDir() {
			continue
		}

		// Solo archivos .yaml o .yml
		ext := strings.ToLower(filepath.Ext(file.Name()))
		if ext != ".yaml" && ext != ".yml" {
			continue
		}

		baseName := strings.TrimSuffix(file.Name(), filepath.Ext(file.Name()))
		filePath := filepath.Join(dir, file.Name())
		name := titleCase(strings.ReplaceAll(baseName, "_", " "))

		scenarios = append(scenarios, ScenarioInfo{
			ID:       "yaml_" + baseName,
			Name:     name + " (YAML)",
			Source:   "yaml",
			FilePath: filePath,
		})

		logger.Debug("escenario YAML encontrado", slog.String("name", name), slog.String("path", filePath))
	}

	return scenarios
}

// Resolve carga el escenario de una entrada descubierta
func (info ScenarioInfo) Resolve() (*Scenario, error) {
	switch info.Source {
	case "builtin":
		if s := GetScenarioByName(info.ID); s != nil {
			return s, nil
		}
	case "yaml":
		return LoadScenario(info.FilePath)
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownScenario, info.ID)
}

// Find busca un escenario por ID entre los descubiertos. Acepta también el
// nombre del archivo YAML sin el prefijo "yaml_".
func Find(id, yamlDir string, logger *slog.Logger) (*Scenario, error) {
	for _, info := range DiscoverScenarios(yamlDir, logger) {
		if info.ID == id || (info.Source == "yaml" && info.ID == "yaml_"+id) {
			return info.Resolve()
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownScenario, id)
}

// titleCase pone en mayúscula la primera letra de cada palabra
func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		r, size := utf8.DecodeRuneInString(w)
		words[i] = string(unicode.ToUpper(r)) + w[size:]
	}
	return strings.Join(words, " ")
}
