package simulator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/MarcosBrindi/harmonitor/internal/config"
	"github.com/MarcosBrindi/harmonitor/internal/logging"
	"github.com/MarcosBrindi/harmonitor/internal/mqtt"
	amqp "github.com/rabbitmq/amqp091-go"
	"golang.org/x/sync/errgroup"
)

// FleetStats totales de una simulación headless
type FleetStats struct {
	Wearers   int
	Ticks     uint64
	Anomalies uint64
	Elapsed   time.Duration
}

// RunHeadless ejecuta múltiples portadores sin UI hasta que se cancele ctx.
// Todos comparten una conexión RabbitMQ; cada uno abre su canal.
func RunHeadless(ctx context.Context, numInstances int, cfg *config.Config, logger *slog.Logger) (FleetStats, error) {
	if numInstances < 1 {
		return FleetStats{}, errors.New("se requiere al menos una instancia")
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	flog := logging.Component(logger, "fleet")
	flog.Info("modo sin interfaz", slog.Int("instances", numInstances))

	// Conectar a RabbitMQ UNA sola vez
	var conn *amqp.Connection
	if cfg.RabbitMQ.Enabled {
		flog.Info("conectando a RabbitMQ", slog.String("host", cfg.RabbitMQ.Host), slog.Int("port", cfg.RabbitMQ.Port))
		c, err := mqtt.ConnectRabbitMQ(cfg.RabbitMQ)
		if err != nil {
			return FleetStats{}, err
		}
		defer c.Close()
		conn = c
		flog.Info("RabbitMQ conectado", slog.String("exchange", cfg.RabbitMQ.Exchange))
	}

	var (
		mu    sync.Mutex
		stats = FleetStats{Wearers: numInstances}
		start = time.Now()
	)

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < numInstances; i++ {
		// Offset de inicio para evitar sincronización perfecta (cada 100ms)
		delay := time.Duration(i%10) * 100 * time.Millisecond

		g.Go(func() error {
			select {
			case <-time.After(delay):
			case <-gctx.Done():
				return nil
			}

			ws, err := SimulateWearer(gctx, i, conn, cfg, logger)
			if err != nil {
				return err
			}

			mu.Lock()
			stats.Ticks += ws.Ticks
			stats.Anomalies += ws.Anomalies
			mu.Unlock()
			return nil
		})

		if (i+1)%100 == 0 {
			flog.Info("portadores lanzados", slog.Int("count", i+1))
		}
	}

	err := g.Wait()
	stats.Elapsed = time.Since(start)
	if err != nil {
		return stats, fmt.Errorf("simulación headless: %w", err)
	}

	flog.Info("simulación sin interfaz terminada",
		slog.Int("wearers", stats.Wearers),
		slog.Uint64("ticks", stats.Ticks),
		slog.Uint64("anomalies", stats.Anomalies),
		slog.Duration("elapsed", stats.Elapsed.Round(time.Millisecond)),
	)
	return stats, nil
}
