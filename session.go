package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/MarcosBrindi/harmonitor/internal/config"
	"github.com/MarcosBrindi/harmonitor/internal/eventbus"
	"github.com/MarcosBrindi/harmonitor/internal/har"
	"github.com/MarcosBrindi/harmonitor/internal/logging"
	"github.com/MarcosBrindi/harmonitor/internal/monitor"
	"github.com/MarcosBrindi/harmonitor/internal/mqtt"
	"github.com/MarcosBrindi/harmonitor/internal/settings"
	"github.com/MarcosBrindi/harmonitor/internal/store"
	amqp "github.com/rabbitmq/amqp091-go"
)

// session agrupa el motor de un dispositivo con sus salidas: ajustes,
// diario de anomalías, MQTT y RabbitMQ
type session struct {
	cfg    *config.Config
	logger *slog.Logger

	bus      *eventbus.EventBus
	store    *store.Store
	provider settings.Provider
	monitor  *monitor.Monitor
	recorder *monitor.Recorder
	mqtt     *mqtt.Publisher
	rabbit   *mqtt.RabbitMQPublisher

	amqpConn *amqp.Connection
	amqpCh   *amqp.Channel
}

// newSession construye los componentes sin arrancarlos
func newSession(cfg *config.Config, logger *slog.Logger, bus *eventbus.EventBus) (*session, error) {
	s := &session{cfg: cfg, logger: logger, bus: bus}

	if cfg.Store.Enabled {
		st, err := store.Open(cfg.Store.Path)
		if err != nil {
			return nil, err
		}
		s.store = st
		s.recorder = monitor.NewRecorder(bus, st, logger)
	}

	provider, err := openProvider(cfg, s.store)
	if err != nil {
		s.close()
		return nil, err
	}
	s.provider = provider

	service := har.NewService(cfg.Engine.Config, har.WithLogger(logging.Component(logger, "har")))
	s.monitor = monitor.NewMonitor(bus, service, provider, monitor.Options{
		DeviceID:        cfg.DeviceID,
		SettingsRefresh: cfg.Engine.SettingsRefresh,
		Logger:          logger,
	})

	s.mqtt = mqtt.NewPublisher(cfg.MQTT, cfg.DeviceID, bus, logger)

	var ch mqtt.AMQPChannel
	if cfg.RabbitMQ.Enabled {
		conn, err := mqtt.ConnectRabbitMQ(cfg.RabbitMQ)
		if err != nil {
			s.close()
			return nil, err
		}
		s.amqpConn = conn
		amqpCh, err := mqtt.OpenChannel(conn, cfg.RabbitMQ)
		if err != nil {
			s.close()
			return nil, err
		}
		s.amqpCh = amqpCh
		ch = amqpCh
	}
	s.rabbit = mqtt.NewRabbitMQPublisher(ch, cfg.RabbitMQ, cfg.DeviceID, bus, logger)

	return s, nil
}

// openProvider elige la fuente de sensibilidad configurada
func openProvider(cfg *config.Config, st *store.Store) (settings.Provider, error) {
	switch cfg.Settings.Source {
	case "file":
		return settings.NewFileProvider(cfg.Settings.File), nil
	case "sqlite":
		if st == nil {
			return nil, fmt.Errorf("settings.source=sqlite requiere store.enabled")
		}
		return st, nil
	default:
		v, err := settings.ParseSensitivity(cfg.Settings.Level)
		if err != nil {
			return nil, fmt.Errorf("settings.level: %w", err)
		}
		return settings.NewMemory(v), nil
	}
}

// start arranca primero las salidas para que no pierdan el estado inicial
func (s *session) start() error {
	if s.recorder != nil {
		s.recorder.Start()
	}
	if err := s.mqtt.Start(); err != nil {
		s.stopRecorder()
		return err
	}
	if err := s.rabbit.Start(); err != nil {
		s.mqtt.Stop()
		s.stopRecorder()
		return err
	}
	s.monitor.Start()
	return nil
}

func (s *session) stopRecorder() {
	if s.recorder != nil {
		s.recorder.Stop()
	}
}

// stop detiene el motor (que publica IDLE inactivo) y después las salidas
func (s *session) stop() {
	s.monitor.Stop()
	s.mqtt.Stop()
	s.rabbit.Stop()
	s.stopRecorder()
	s.close()
}

func (s *session) close() {
	if s.amqpCh != nil {
		_ = s.amqpCh.Close()
	}
	if s.amqpConn != nil {
		_ = s.amqpConn.Close()
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			s.logger.Warn("error cerrando la base de datos", slog.Any("error", err))
		}
	}
}

// writer retorna la fuente de ajustes si admite escritura
func (s *session) writer() (settings.Writer, bool) {
	w, ok := s.provider.(settings.Writer)
	return w, ok
}

// currentSensitivity lee la sensibilidad de la fuente; sin valor guardado
// retorna la inicial del motor
func (s *session) currentSensitivity(ctx context.Context) (float64, error) {
	v, err := s.provider.Sensitivity(ctx)
	if errors.Is(err, settings.ErrNoSettings) {
		return har.ClampSensitivity(s.cfg.Engine.Sensitivity), nil
	}
	return v, err
}
