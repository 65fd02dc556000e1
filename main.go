// harmonitor reconoce la actividad de un portador (reposo, de pie,
// caminando, corriendo) a partir de un IMU simulado o grabado y alerta las
// paradas súbitas.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/MarcosBrindi/harmonitor/internal/config"
	"github.com/MarcosBrindi/harmonitor/internal/eventbus"
	"github.com/MarcosBrindi/harmonitor/internal/har"
	"github.com/MarcosBrindi/harmonitor/internal/logging"
	"github.com/MarcosBrindi/harmonitor/internal/monitor"
	"github.com/MarcosBrindi/harmonitor/internal/scenario"
	"github.com/MarcosBrindi/harmonitor/internal/sensors"
	"github.com/MarcosBrindi/harmonitor/internal/settings"
	"github.com/MarcosBrindi/harmonitor/internal/simulator"
	"github.com/MarcosBrindi/harmonitor/internal/store"
	"github.com/MarcosBrindi/harmonitor/internal/ui"
	"github.com/charmbracelet/fang"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/spf13/cobra"
)

var version = "dev"

var configPath string

func main() {
	root := &cobra.Command{
		Use:   "harmonitor",
		Short: "Reconocimiento de actividad humana con alertas de parada súbita",
		Long: `harmonitor clasifica la actividad de un portador (IDLE, STANDING,
WALKING, RUNNING) a partir de acelerómetro y giroscopio, con umbrales
ajustables por sensibilidad, y publica alertas de parada súbita por
MQTT y RabbitMQ.`,
		Version:      version,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "archivo de configuración YAML")

	root.AddCommand(
		runCmd(),
		headlessCmd(),
		replayCmd(),
		scenariosCmd(),
		anomaliesCmd(),
		sensitivityCmd(),
	)

	if err := fang.Execute(context.Background(), root); err != nil {
		os.Exit(1)
	}
}

// loadConfig carga la configuración; si el archivo no existe usa la de
// por defecto
func loadConfig() (*config.Config, *slog.Logger, error) {
	cfg, err := config.LoadConfig(configPath)
	if errors.Is(err, fs.ErrNotExist) {
		cfg = config.Default()
		logger := logging.New(cfg.Log)
		logger.Warn("archivo de configuración no encontrado, usando valores por defecto", slog.String("path", configPath))
		return cfg, logger, nil
	}
	if err != nil {
		return nil, nil, err
	}
	return cfg, logging.New(cfg.Log), nil
}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func runCmd() *cobra.Command {
	var scenarioID string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Monitor con interfaz gráfica e IMU simulado",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("scenario") {
				scenarioID = cfg.Scenario.Initial
			}
			return runUI(cfg, logger, scenarioID)
		},
	}
	cmd.Flags().StringVarP(&scenarioID, "scenario", "s", "", `escenario inicial ("none" para control manual)`)
	return cmd
}

func runUI(cfg *config.Config, logger *slog.Logger, scenarioID string) error {
	logger.Info("iniciando", slog.String("device_id", cfg.DeviceID), slog.String("version", version))

	bus := eventbus.NewEventBus()
	defer bus.Close()

	sess, err := newSession(cfg, logger, bus)
	if err != nil {
		return err
	}
	if err := sess.start(); err != nil {
		sess.close()
		return err
	}
	defer sess.stop()

	imu := sensors.NewIMUSimulator(bus, cfg.Sensors.IMU, logger)
	imu.Start()
	defer imu.Stop()

	game := ui.NewGame(bus, cfg, sess.monitor, imu, scenario.DiscoverScenarios(cfg.Scenario.Dir, logger), logger)
	defer game.Stop()

	if scenarioID != "" && scenarioID != "none" {
		if err := game.StartScenario(scenarioID); err != nil {
			logger.Warn("no se pudo iniciar el escenario inicial", slog.Any("error", err))
		}
	}

	ebiten.SetWindowSize(cfg.UI.Window.Width, cfg.UI.Window.Height)
	ebiten.SetWindowTitle(cfg.UI.Window.Title)
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	if cfg.UI.FPS > 0 {
		ebiten.SetTPS(cfg.UI.FPS)
	}

	return ebiten.RunGame(game)
}

func headlessCmd() *cobra.Command {
	var (
		instances int
		duration  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "headless",
		Short: "Flota de portadores simulados sin interfaz",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}

			ctx, cancel := signalContext(cmd.Context())
			defer cancel()
			if duration > 0 {
				ctx, cancel = context.WithTimeout(ctx, duration)
				defer cancel()
			}

			stats, err := simulator.RunHeadless(ctx, instances, cfg, logger)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "portadores: %d  ticks: %d  anomalías: %d  duración: %s\n",
				stats.Wearers, stats.Ticks, stats.Anomalies, stats.Elapsed.Round(time.Second))
			return nil
		},
	}
	cmd.Flags().IntVarP(&instances, "instances", "n", 1, "número de portadores")
	cmd.Flags().DurationVarP(&duration, "duration", "d", 0, "detener tras esta duración (0 = hasta Ctrl+C)")
	return cmd
}

func replayCmd() *cobra.Command {
	var speed float64

	cmd := &cobra.Command{
		Use:   "replay FILE.csv",
		Short: "Reproduce una grabación CSV del IMU a través del motor",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}

			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			samples, err := sensors.ReadCSV(f)
			f.Close()
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}

			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			summary, ticks, err := replay(ctx, cfg, logger, samples, speed)
			if err != nil {
				return err
			}
			printSummary(cmd, summary, len(samples), ticks)
			return nil
		},
	}
	cmd.Flags().Float64Var(&speed, "speed", 0, "factor de velocidad (0 = lo más rápido posible)")
	return cmd
}

// replay publica las muestras y espera a que el monitor las consuma todas
func replay(ctx context.Context, cfg *config.Config, logger *slog.Logger, samples []har.SensorSample, speed float64) (monitor.Summary, uint64, error) {
	bus := eventbus.NewEventBusWithBuffer(256)
	defer bus.Close()

	sess, err := newSession(cfg, logger, bus)
	if err != nil {
		return monitor.Summary{}, 0, err
	}
	if err := sess.start(); err != nil {
		sess.close()
		return monitor.Summary{}, 0, err
	}

	sent, err := sensors.Replay(ctx, bus, samples, speed)
	for ctx.Err() == nil && sess.monitor.Received() < uint64(sent) {
		time.Sleep(5 * time.Millisecond)
	}

	summary := sess.monitor.Summary()
	ticks, _ := sess.monitor.Stats()
	sess.stop()

	if err != nil && !errors.Is(err, context.Canceled) {
		return summary, ticks, err
	}
	return summary, ticks, nil
}

func printSummary(cmd *cobra.Command, s monitor.Summary, samples int, ticks uint64) {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	defer w.Flush()

	fmt.Fprintf(w, "muestras\t%d (aceptadas %d)\n", samples, ticks)
	for _, a := range []har.Activity{har.ActivityIdle, har.ActivityStanding, har.ActivityWalking, har.ActivityRunning} {
		fmt.Fprintf(w, "%s\t%s\n", a, s.Durations[a].Round(100*time.Millisecond))
	}
	dominant, _ := s.Dominant()
	fmt.Fprintf(w, "dominante\t%s\n", dominant)
	fmt.Fprintf(w, "transiciones\t%d\n", s.Transitions)
	fmt.Fprintf(w, "anomalías\t%d\n", s.Anomalies)
	fmt.Fprintf(w, "pico de movimiento\t%.4f\n", s.PeakMovement)
}

func scenariosCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scenarios",
		Short: "Lista los escenarios disponibles",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			defer w.Flush()
			fmt.Fprintln(w, "ID\tNOMBRE\tORIGEN\tDURACIÓN")
			for _, info := range scenario.DiscoverScenarios(cfg.Scenario.Dir, logger) {
				var duration string
				if sc, err := info.Resolve(); err == nil {
					duration = sc.GetDuration().String()
				} else {
					duration = "inválido: " + err.Error()
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", info.ID, info.Name, info.Source, duration)
			}
			return nil
		},
	}
}

func anomaliesCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "anomalies",
		Short: "Muestra el diario de anomalías guardado",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig()
			if err != nil {
				return err
			}
			if !cfg.Store.Enabled {
				return errors.New("store.enabled es false: no hay diario de anomalías")
			}

			st, err := store.Open(cfg.Store.Path)
			if err != nil {
				return err
			}
			defer st.Close()

			records, err := st.RecentAnomalies(cmd.Context(), limit)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			defer w.Flush()
			fmt.Fprintln(w, "DETECTADA\tDISPOSITIVO\tTIPO\tSEVERIDAD\tCAÍDA\tACTIVIDAD\tID")
			for _, r := range records {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%.0f%%\t%s\t%s\n",
					r.DetectedAt.Local().Format(time.DateTime), r.DeviceID, r.Type, r.Severity,
					r.DropRatio*100, r.Activity, r.ID)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "máximo de registros")
	return cmd
}

func sensitivityCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sensitivity [low|medium|high|0..1]",
		Short: "Consulta o guarda la sensibilidad en la fuente configurada",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			cfg.MQTT.Enabled = false
			cfg.RabbitMQ.Enabled = false

			sess, err := newSession(cfg, logger, eventbus.NewEventBus())
			if err != nil {
				return err
			}
			defer sess.close()

			if len(args) == 1 {
				v, err := settings.ParseSensitivity(args[0])
				if err != nil {
					return err
				}
				w, ok := sess.writer()
				if !ok || cfg.Settings.Source == "static" {
					return fmt.Errorf("la fuente %q no admite escritura", cfg.Settings.Source)
				}
				if err := w.SetSensitivity(cmd.Context(), v); err != nil {
					return err
				}
			}

			v, err := sess.currentSensitivity(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (%.2f) [%s]\n", settings.FormatSensitivity(v), v, cfg.Settings.Source)
			return nil
		},
	}
}
