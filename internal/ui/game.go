package ui

import (
	"context"
	"fmt"
	"image/color"
	"log/slog"
	"sync"
	"time"

	"github.com/MarcosBrindi/harmonitor/internal/config"
	"github.com/MarcosBrindi/harmonitor/internal/eventbus"
	"github.com/MarcosBrindi/harmonitor/internal/har"
	"github.com/MarcosBrindi/harmonitor/internal/logging"
	"github.com/MarcosBrindi/harmonitor/internal/monitor"
	"github.com/MarcosBrindi/harmonitor/internal/scenario"
	"github.com/MarcosBrindi/harmonitor/internal/sensors"
	"github.com/MarcosBrindi/harmonitor/internal/settings"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
)

// anomalyBanner tiempo que se mantiene visible el aviso de anomalía
const anomalyBanner = 5 * time.Second

// Game es la estructura principal de Ebiten
type Game struct {
	bus     *eventbus.EventBus
	config  *config.Config
	monitor *monitor.Monitor
	imu     *sensors.IMUSimulator
	logger  *slog.Logger

	// Componentes UI
	activityView *ActivityView
	graph        *MovementGraph
	eventLog     *EventLog
	controls     *Controls
	selector     *ScenarioSelector

	scenarios []scenario.ScenarioInfo
	executor  *scenario.Executor

	// Estado actual (thread-safe)
	mu            sync.RWMutex
	state         har.ActivityState
	sample        har.SensorSample
	sensitivity   eventbus.SensitivityData
	lastAnomaly   eventbus.AnomalyEvent
	lastAnomalyAt time.Time
	hasData       bool
	running       bool
	paused        bool

	// Channels de suscripción
	sampleEvents      chan eventbus.Event
	activityEvents    chan eventbus.Event
	anomalyEvents     chan eventbus.Event
	sensitivityEvents chan eventbus.Event
}

// NewGame crea una nueva instancia del juego
func NewGame(bus *eventbus.EventBus, cfg *config.Config, mon *monitor.Monitor, imu *sensors.IMUSimulator, scenarios []scenario.ScenarioInfo, logger *slog.Logger) *Game {
	width := float32(cfg.UI.Window.Width)
	height := float32(cfg.UI.Window.Height)

	game := &Game{
		bus:               bus,
		config:            cfg,
		monitor:           mon,
		imu:               imu,
		logger:            logging.Component(logger, "ui"),
		scenarios:         scenarios,
		sampleEvents:      make(chan eventbus.Event, 10),
		activityEvents:    make(chan eventbus.Event, 10),
		anomalyEvents:     make(chan eventbus.Event, 10),
		sensitivityEvents: make(chan eventbus.Event, 10),
		running:           true,
		state:             mon.GetCurrentState(),
		sensitivity: eventbus.SensitivityData{
			Sensitivity: mon.Sensitivity(),
			Thresholds:  mon.Thresholds(),
		},
	}

	options := make([]ScenarioOption, 0, len(scenarios))
	for _, s := range scenarios {
		options = append(options, ScenarioOption{ID: s.ID, Name: s.Name})
	}

	// Crear componentes UI
	game.activityView = NewActivityView(cfg)
	game.graph = NewMovementGraph(20, height-330, width*0.6, 200, cfg.UI.GraphPoints)
	game.eventLog = NewEventLog(12)
	game.controls = NewControls()
	game.selector = NewScenarioSelector(width-320, height-50, 300, 35, options)

	// Suscribirse a eventos
	game.subscribeToEvents()

	return game
}

// isRunning verifica si el juego está corriendo (thread-safe)
func (g *Game) isRunning() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.running
}

// forward reenvía un tipo de evento al canal local sin bloquear el bus
func (g *Game) forward(t eventbus.EventType, dst chan eventbus.Event) {
	src := g.bus.Subscribe(t)
	go func() {
		for event := range src {
			if !g.isRunning() {
				continue
			}
			select {
			case dst <- event:
			default:
			}
		}
	}()
}

// subscribeToEvents suscribe a eventos del bus
func (g *Game) subscribeToEvents() {
	g.forward(eventbus.EventSample, g.sampleEvents)
	g.forward(eventbus.EventActivity, g.activityEvents)
	g.forward(eventbus.EventAnomaly, g.anomalyEvents)
	g.forward(eventbus.EventSensitivity, g.sensitivityEvents)
}

// StartScenario detiene el escenario en curso y lanza el indicado
func (g *Game) StartScenario(id string) error {
	var info *scenario.ScenarioInfo
	for i := range g.scenarios {
		if g.scenarios[i].ID == id {
			info = &g.scenarios[i]
			break
		}
	}
	if info == nil {
		return fmt.Errorf("%w: %s", scenario.ErrUnknownScenario, id)
	}

	sc, err := info.Resolve()
	if err != nil {
		return err
	}

	if g.executor != nil {
		g.executor.Stop()
	}
	g.graph.Clear()
	g.executor = scenario.NewExecutor(sc, g.imu, g.bus, g.logger, scenario.WithSensitivity(g.monitor))
	g.executor.Start()
	g.selector.SetSelected(id)
	g.eventLog.Add("Escenario: "+sc.Name, "info")
	return nil
}

// Update actualiza la lógica del juego (llamado por Ebiten a 60 FPS)
func (g *Game) Update() error {
	// Procesar eventos del Event Bus (non-blocking)
	select {
	case event := <-g.sampleEvents:
		g.handleSampleEvent(event)
	default:
	}

	// Las actividades llegan a la frecuencia del IMU; se drenan todas
	for drained := false; !drained; {
		select {
		case event := <-g.activityEvents:
			g.handleActivityEvent(event)
		default:
			drained = true
		}
	}

	select {
	case event := <-g.anomalyEvents:
		g.handleAnomalyEvent(event)
	default:
	}

	select {
	case event := <-g.sensitivityEvents:
		g.handleSensitivityEvent(event)
	default:
	}

	if changed, id := g.selector.Update(); changed {
		if err := g.StartScenario(id); err != nil {
			g.eventLog.Add(err.Error(), "error")
		}
	}

	g.handleAction(g.controls.Update())
	return nil
}

// handleAction aplica la acción de teclado
func (g *Game) handleAction(action Action) {
	switch action {
	case ActionTogglePause:
		g.togglePause()

	case ActionSensitivityLow, ActionSensitivityMedium, ActionSensitivityHigh:
		v := action.Sensitivity()
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := g.monitor.SetSensitivity(ctx, v, "ui"); err != nil {
			g.eventLog.Add("Error guardando sensibilidad: "+err.Error(), "error")
		}

	case ActionImpact:
		g.imu.Impact()
		g.eventLog.Add("Impacto manual", "warning")

	case ActionNextMotion:
		next := nextMotion(g.imu.Motion())
		g.imu.SetMotion(next)
		g.eventLog.Add("Movimiento manual: "+string(next), "info")

	case ActionRestartScenario:
		if err := g.StartScenario(g.selector.GetSelectedID()); err != nil {
			g.eventLog.Add(err.Error(), "error")
		}
	}
}

// togglePause pausa o reanuda sensor, monitor y escenario juntos
func (g *Game) togglePause() {
	g.mu.Lock()
	g.paused = !g.paused
	paused := g.paused
	g.mu.Unlock()

	if paused {
		g.imu.Pause()
		g.monitor.Pause()
		if g.executor != nil {
			g.executor.Pause()
		}
		g.eventLog.Add("Simulación pausada", "info")
		return
	}
	g.imu.Resume()
	g.monitor.Resume()
	if g.executor != nil {
		g.executor.Resume()
	}
	g.eventLog.Add("Simulación reanudada", "info")
}

// Draw dibuja el juego (llamado por Ebiten a 60 FPS)
func (g *Game) Draw(screen *ebiten.Image) {
	// Fondo
	screen.Fill(color.RGBA{20, 20, 30, 255})

	g.mu.RLock()
	frame := Frame{
		State:       g.state,
		Sample:      g.sample,
		Motion:      g.imu.Motion(),
		Sensitivity: g.sensitivity,
		Summary:     g.monitor.Summary(),
		Paused:      g.paused,
	}
	hasData := g.hasData
	if time.Since(g.lastAnomalyAt) < anomalyBanner {
		anomaly := g.lastAnomaly
		frame.Anomaly = &anomaly
	}
	g.mu.RUnlock()

	if g.executor != nil {
		frame.ScenarioName = g.executor.Scenario().Name
		frame.Progress = g.executor.GetProgress()
	}

	if !hasData {
		g.drawWaitingMessage(screen)
	}

	width := float32(g.config.UI.Window.Width)
	height := float32(g.config.UI.Window.Height)

	g.activityView.Draw(screen, frame)
	g.graph.Draw(screen, frame.Sensitivity.Thresholds)
	g.eventLog.Draw(screen, width*0.6+40, height-330, width*0.4-60, 260)
	g.controls.Draw(screen, frame.Paused)
	g.selector.Draw(screen)
}

// Layout define el tamaño de la ventana
func (g *Game) Layout(outsideWidth, outsideHeight int) (int, int) {
	return g.config.UI.Window.Width, g.config.UI.Window.Height
}

// handleSampleEvent procesa muestras del IMU
func (g *Game) handleSampleEvent(event eventbus.Event) {
	sample, ok := event.Data.(har.SensorSample)
	if !ok {
		return
	}

	g.mu.Lock()
	g.sample = sample
	g.mu.Unlock()
}

// handleActivityEvent procesa estados publicados por el motor
func (g *Game) handleActivityEvent(event eventbus.Event) {
	state, ok := event.Data.(har.ActivityState)
	if !ok {
		return
	}

	g.mu.Lock()
	prev := g.state
	g.state = state
	g.hasData = true
	g.mu.Unlock()

	if state.IsActive && state.Activity != har.ActivityCalibrating {
		g.graph.Add(state.TotalMovement, state.Activity)
	}

	if state.Activity != prev.Activity || state.IsActive != prev.IsActive {
		msg := state.Activity.String()
		if !state.IsActive {
			msg += " (inactivo)"
		}
		g.eventLog.Add(fmt.Sprintf("%s %.0f%%", msg, state.Confidence*100), "success")
	}
}

// handleAnomalyEvent procesa el inicio de una anomalía
func (g *Game) handleAnomalyEvent(event eventbus.Event) {
	ev, ok := event.Data.(eventbus.AnomalyEvent)
	if !ok {
		return
	}

	g.mu.Lock()
	g.lastAnomaly = ev
	g.lastAnomalyAt = time.Now()
	g.mu.Unlock()

	g.eventLog.Add(fmt.Sprintf("ANOMALÍA %s (caída %.0f%%)", ev.Anomaly.Type, ev.Anomaly.DropRatio*100), "error")
}

// handleSensitivityEvent procesa cambios de sensibilidad
func (g *Game) handleSensitivityEvent(event eventbus.Event) {
	data, ok := event.Data.(eventbus.SensitivityData)
	if !ok {
		return
	}

	g.mu.Lock()
	g.sensitivity = data
	g.mu.Unlock()

	g.eventLog.Add(fmt.Sprintf("Sensibilidad %s (%s)", settings.FormatSensitivity(data.Sensitivity), data.Source), "warning")
}

// drawWaitingMessage dibuja mensaje de espera
func (g *Game) drawWaitingMessage(screen *ebiten.Image) {
	ebitenutil.DebugPrintAt(screen, "Esperando datos del IMU...", g.config.UI.Window.Width/2-80, g.config.UI.Window.Height/2)
}

// Stop detiene el juego y el escenario en curso
func (g *Game) Stop() {
	g.mu.Lock()
	g.running = false
	g.mu.Unlock()

	if g.executor != nil {
		g.executor.Stop()
	}
	g.logger.Info("interfaz detenida")
}

// nextMotion recorre los movimientos simulados en orden
func nextMotion(m sensors.Motion) sensors.Motion {
	motions := sensors.Motions()
	for i, candidate := range motions {
		if candidate == m {
			return motions[(i+1)%len(motions)]
		}
	}
	return motions[0]
}
