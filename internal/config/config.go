package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/MarcosBrindi/harmonitor/internal/har"
	"gopkg.in/yaml.v3"
)

// Config es la estructura principal de configuración
type Config struct {
	DeviceID string         `yaml:"device_id"`
	Engine   EngineConfig   `yaml:"engine"`
	Sensors  SensorsConfig  `yaml:"sensors"`
	Settings SettingsConfig `yaml:"settings"`
	Store    StoreConfig    `yaml:"store"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	RabbitMQ RabbitMQConfig `yaml:"rabbitmq"`
	UI       UIConfig       `yaml:"ui"`
	Log      LogConfig      `yaml:"log"`
	Scenario ScenarioConfig `yaml:"scenario"`
}

// EngineConfig configuración del motor HAR
type EngineConfig struct {
	har.Config      `yaml:",inline"`
	SettingsRefresh time.Duration `yaml:"settings_refresh"` // cada cuánto se relee la sensibilidad
}

type SensorsConfig struct {
	IMU IMUConfig `yaml:"imu"`
}

// IMUConfig configuración del simulador de acelerómetro + giroscopio
type IMUConfig struct {
	Frequency     float64 `yaml:"frequency"` // Hz
	Noise         float64 `yaml:"noise"`     // escala del ruido
	InitialMotion string  `yaml:"initial_motion"`
}

// SettingsConfig fuente de la sensibilidad configurable por el usuario
type SettingsConfig struct {
	Source string `yaml:"source"` // "file", "sqlite" o "static"
	File   string `yaml:"file"`   // archivo TOML
	Level  string `yaml:"level"`  // valor estático: low, medium, high o número
}

// StoreConfig base de datos local (ajustes + diario de anomalías)
type StoreConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// MQTTConfig configuración MQTT
type MQTTConfig struct {
	Enabled         bool             `yaml:"enabled"`
	Broker          string           `yaml:"broker"`
	ClientID        string           `yaml:"client_id"`
	Username        string           `yaml:"username"`
	Password        string           `yaml:"password"`
	QoS             byte             `yaml:"qos"`
	Retain          bool             `yaml:"retain"`
	Topics          MQTTTopicsConfig `yaml:"topics"`
	PublishInterval float64          `yaml:"publish_interval"`
	PublishActivity bool             `yaml:"publish_activity"`
	PublishAnomaly  bool             `yaml:"publish_anomaly"`
}

// MQTTTopicsConfig topics MQTT
type MQTTTopicsConfig struct {
	Activity string `yaml:"activity"`
	Anomaly  string `yaml:"anomaly"`
	Status   string `yaml:"status"`
}

// RabbitMQConfig configuración de RabbitMQ
type RabbitMQConfig struct {
	Enabled           bool                `yaml:"enabled"`
	Host              string              `yaml:"host"`
	Port              int                 `yaml:"port"`
	Username          string              `yaml:"username"`
	Password          string              `yaml:"password"`
	VHost             string              `yaml:"vhost"`
	Exchange          string              `yaml:"exchange"`
	ExchangeType      string              `yaml:"exchange_type"`
	RoutingKeys       RabbitMQRoutingKeys `yaml:"routing_keys"`
	PublishInterval   float64             `yaml:"publish_interval"`
	PublishActivity   bool                `yaml:"publish_activity"`
	PublishAnomaly    bool                `yaml:"publish_anomaly"`
	Heartbeat         int                 `yaml:"heartbeat"`
	ConnectionTimeout int                 `yaml:"connection_timeout"`
}

// RabbitMQRoutingKeys routing keys (topics) para RabbitMQ
type RabbitMQRoutingKeys struct {
	Activity string `yaml:"activity"`
	Anomaly  string `yaml:"anomaly"`
}

type UIConfig struct {
	Window      WindowConfig `yaml:"window"`
	Theme       string       `yaml:"theme"`
	FPS         int          `yaml:"fps"`
	GraphPoints int          `yaml:"graph_points"`
}

type WindowConfig struct {
	Width  int    `yaml:"width"`
	Height int    `yaml:"height"`
	Title  string `yaml:"title"`
}

// LogConfig configuración del logger estructurado
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text o json
}

// ScenarioConfig escenarios de movimiento
type ScenarioConfig struct {
	Initial string `yaml:"initial"`
	Dir     string `yaml:"dir"` // directorio con escenarios YAML
}

// LoadConfig carga la configuración desde un archivo YAML. Los campos
// ausentes conservan los valores de Default().
func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("error leyendo config: %w", err)
	}

	config := Default()
	err = yaml.Unmarshal(data, config)
	if err != nil {
		return nil, fmt.Errorf("error parseando YAML: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config inválida: %w", err)
	}

	// Reemplazar {{device_id}} y {device_id} en strings
	*config = replaceDeviceIDPlaceholders(*config)

	return config, nil
}

// Validate verifica los valores que el motor no puede corregir solo
func (c *Config) Validate() error {
	var errs []error

	if c.DeviceID == "" {
		errs = append(errs, errors.New("device_id vacío"))
	}
	if c.Engine.WindowSize < 2 {
		errs = append(errs, fmt.Errorf("engine.window_size debe ser >= 2 (es %d)", c.Engine.WindowSize))
	}
	if !c.Engine.BaseThresholds.Ordered() {
		errs = append(errs, errors.New("engine.thresholds deben cumplir 0 < idle < standing < walking < running"))
	}
	if c.Engine.Sensitivity < 0 || c.Engine.Sensitivity > 1 {
		errs = append(errs, fmt.Errorf("engine.sensitivity fuera de [0,1]: %v", c.Engine.Sensitivity))
	}
	ss := c.Engine.SuddenStop
	if ss.HistorySize < ss.RecentWindow+ss.PriorWindow+ss.LongWindow {
		errs = append(errs, errors.New("engine.sudden_stop.history_size no cubre las tres ventanas"))
	}
	if c.Sensors.IMU.Frequency <= 0 {
		errs = append(errs, errors.New("sensors.imu.frequency debe ser positiva"))
	}
	switch c.Settings.Source {
	case "file", "sqlite", "static":
	default:
		errs = append(errs, fmt.Errorf("settings.source desconocido: %q", c.Settings.Source))
	}
	if c.Settings.Source == "sqlite" && !c.Store.Enabled {
		errs = append(errs, errors.New("settings.source=sqlite requiere store.enabled"))
	}

	return errors.Join(errs...)
}

// replaceDeviceIDPlaceholders reemplaza {{device_id}} y {device_id} en strings
func replaceDeviceIDPlaceholders(config Config) Config {
	deviceID := config.DeviceID

	config.UI.Window.Title = strings.ReplaceAll(config.UI.Window.Title, "{{device_id}}", deviceID)

	config.MQTT.Topics.Activity = config.MQTT.GetTopic(config.MQTT.Topics.Activity, deviceID)
	config.MQTT.Topics.Anomaly = config.MQTT.GetTopic(config.MQTT.Topics.Anomaly, deviceID)
	config.MQTT.Topics.Status = config.MQTT.GetTopic(config.MQTT.Topics.Status, deviceID)
	config.MQTT.ClientID = config.MQTT.GetTopic(config.MQTT.ClientID, deviceID)

	config.RabbitMQ.RoutingKeys.Activity = strings.ReplaceAll(config.RabbitMQ.RoutingKeys.Activity, "{device_id}", deviceID)
	config.RabbitMQ.RoutingKeys.Anomaly = strings.ReplaceAll(config.RabbitMQ.RoutingKeys.Anomaly, "{device_id}", deviceID)

	return config
}

// WithDeviceID retorna una copia para otro dispositivo (modo flota)
func (c Config) WithDeviceID(deviceID string) Config {
	c.DeviceID = deviceID
	def := Default()
	c.MQTT.Topics = def.MQTT.Topics
	c.MQTT.ClientID = def.MQTT.ClientID
	c.RabbitMQ.RoutingKeys = def.RabbitMQ.RoutingKeys
	c.UI.Window.Title = def.UI.Window.Title
	return replaceDeviceIDPlaceholders(c)
}

// GetTopic retorna un topic reemplazando {device_id} (método auxiliar)
func (m *MQTTConfig) GetTopic(topicTemplate string, deviceID string) string {
	return strings.ReplaceAll(topicTemplate, "{device_id}", deviceID)
}

// Default devuelve una configuración por defecto si no se puede cargar el archivo
func Default() *Config {
	return &Config{
		DeviceID: "WEARER-DEFAULT",
		Engine: EngineConfig{
			Config:          har.DefaultConfig(),
			SettingsRefresh: 30 * time.Second,
		},
		Sensors: SensorsConfig{
			IMU: IMUConfig{
				Frequency:     10.0,
				Noise:         1.0,
				InitialMotion: "still",
			},
		},
		Settings: SettingsConfig{
			Source: "static",
			File:   "settings.toml",
			Level:  "medium",
		},
		Store: StoreConfig{
			Enabled: false,
			Path:    "harmonitor.db",
		},
		MQTT: MQTTConfig{
			Enabled:         false,
			Broker:          "tcp://localhost:1883",
			ClientID:        "har-{device_id}",
			QoS:             1,
			Retain:          false,
			PublishInterval: 1.0,
			PublishActivity: true,
			PublishAnomaly:  true,
			Topics: MQTTTopicsConfig{
				Activity: "wearer/{device_id}/activity",
				Anomaly:  "wearer/{device_id}/anomaly",
				Status:   "wearer/{device_id}/status",
			},
		},
		RabbitMQ: RabbitMQConfig{
			Enabled:           false,
			Host:              "localhost",
			Port:              5672,
			Username:          "guest",
			Password:          "guest",
			VHost:             "/",
			Exchange:          "amq.topic",
			ExchangeType:      "topic",
			PublishInterval:   1.0,
			PublishActivity:   true,
			PublishAnomaly:    true,
			Heartbeat:         60,
			ConnectionTimeout: 30,
			RoutingKeys: RabbitMQRoutingKeys{
				Activity: "wearer.{device_id}.activity",
				Anomaly:  "wearer.{device_id}.anomaly",
			},
		},
		UI: UIConfig{
			Window: WindowConfig{
				Width:  1280,
				Height: 720,
				Title:  "HAR Monitor - {{device_id}}",
			},
			Theme:       "dark",
			FPS:         60,
			GraphPoints: 200,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Scenario: ScenarioConfig{
			Initial: "carrera_con_caida",
			Dir:     "scenarios",
		},
	}
}
