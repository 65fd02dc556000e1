package simulator

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"

	"github.com/MarcosBrindi/harmonitor/internal/config"
	"github.com/MarcosBrindi/harmonitor/internal/eventbus"
	"github.com/MarcosBrindi/harmonitor/internal/har"
	"github.com/MarcosBrindi/harmonitor/internal/logging"
	"github.com/MarcosBrindi/harmonitor/internal/monitor"
	"github.com/MarcosBrindi/harmonitor/internal/mqtt"
	"github.com/MarcosBrindi/harmonitor/internal/scenario"
	"github.com/MarcosBrindi/harmonitor/internal/sensors"
	"github.com/MarcosBrindi/harmonitor/internal/settings"
	amqp "github.com/rabbitmq/amqp091-go"
)

// WearerStats resultado de la simulación de un portador
type WearerStats struct {
	DeviceID  string
	Ticks     uint64
	Anomalies uint64
	Summary   monitor.Summary
}

// Wearer agrupa los componentes de un portador simulado
type Wearer struct {
	ID        string
	Bus       *eventbus.EventBus
	IMU       *sensors.IMUSimulator
	Monitor   *monitor.Monitor
	Publisher *mqtt.RabbitMQPublisher
}

// NewWearer crea los componentes de un portador. ch puede ser nil si
// RabbitMQ está deshabilitado.
func NewWearer(cfg config.Config, ch mqtt.AMQPChannel, logger *slog.Logger) *Wearer {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	bus := eventbus.NewEventBus()
	service := har.NewService(cfg.Engine.Config, har.WithLogger(logging.Component(logger, "har").With(slog.String("device_id", cfg.DeviceID))))
	mon := monitor.NewMonitor(bus, service, settings.NewMemory(cfg.Engine.Sensitivity), monitor.Options{
		DeviceID:        cfg.DeviceID,
		SettingsRefresh: cfg.Engine.SettingsRefresh,
		Logger:          logger,
	})

	return &Wearer{
		ID:        cfg.DeviceID,
		Bus:       bus,
		IMU:       sensors.NewIMUSimulator(bus, cfg.Sensors.IMU, logger),
		Monitor:   mon,
		Publisher: mqtt.NewRabbitMQPublisher(ch, cfg.RabbitMQ, cfg.DeviceID, bus, logger),
	}
}

// Start inicia el monitor antes que el sensor para no perder muestras
func (w *Wearer) Start() error {
	w.Monitor.Start()
	if err := w.Publisher.Start(); err != nil {
		w.Monitor.Stop()
		return fmt.Errorf("[%s] iniciando publisher: %w", w.ID, err)
	}
	w.IMU.Start()
	return nil
}

// Stop detiene los componentes en orden inverso y cierra el bus
func (w *Wearer) Stop() {
	w.IMU.Stop()
	w.Monitor.Stop()
	w.Publisher.Stop()
	w.Bus.Close()
}

// SimulateWearer ejecuta un portador hasta que se cancele ctx, recorriendo
// los escenarios predefinidos desde uno distinto según su id
func SimulateWearer(ctx context.Context, id int, sharedConn *amqp.Connection, base *config.Config, logger *slog.Logger) (WearerStats, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	cfg := base.WithDeviceID(fmt.Sprintf("WEARER-%04d", id))

	// Variación de ruido por portador (±20%)
	cfg.Sensors.IMU.Noise *= 0.8 + rand.Float64()*0.4

	var ch mqtt.AMQPChannel
	if cfg.RabbitMQ.Enabled {
		if sharedConn == nil {
			return WearerStats{}, fmt.Errorf("[%s] RabbitMQ habilitado sin conexión", cfg.DeviceID)
		}
		amqpCh, err := mqtt.OpenChannel(sharedConn, cfg.RabbitMQ)
		if err != nil {
			return WearerStats{}, fmt.Errorf("[%s] %w", cfg.DeviceID, err)
		}
		defer amqpCh.Close()
		ch = amqpCh
	}

	w := NewWearer(cfg, ch, logger)
	if err := w.Start(); err != nil {
		w.Bus.Close()
		return WearerStats{}, err
	}
	logger.Debug("portador iniciado", slog.String("device_id", w.ID))

	names := scenario.GetScenarioNames()
	for i := id; ctx.Err() == nil; i++ {
		sc := scenario.GetScenarioByName(names[i%len(names)])
		exec := scenario.NewExecutor(sc, w.IMU, w.Bus, logger, scenario.WithSensitivity(w.Monitor))
		exec.Start()

		select {
		case <-ctx.Done():
			exec.Stop()
		case <-exec.Done():
		}
	}

	w.Stop()
	ticks, anomalies := w.Monitor.Stats()
	return WearerStats{
		DeviceID:  w.ID,
		Ticks:     ticks,
		Anomalies: anomalies,
		Summary:   w.Monitor.Summary(),
	}, nil
}
