package scenario

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/MarcosBrindi/harmonitor/internal/eventbus"
	"github.com/MarcosBrindi/harmonitor/internal/har"
	"github.com/MarcosBrindi/harmonitor/internal/logging"
	"github.com/MarcosBrindi/harmonitor/internal/sensors"
)

// pollInterval granularidad con la que el ejecutor revisa pausa y parada
const pollInterval = 100 * time.Millisecond

// MotionController controla el movimiento simulado del portador
type MotionController interface {
	SetMotion(m sensors.Motion)
	Impact()
}

// SensitivityController cambia la sensibilidad del motor
type SensitivityController interface {
	SetSensitivity(ctx context.Context, v float64, source string) error
}

// Executor ejecuta escenarios
type Executor struct {
	scenario    *Scenario
	motion      MotionController
	sensitivity SensitivityController
	bus         *eventbus.EventBus
	logger      *slog.Logger
	waitTimeout time.Duration

	// Control
	mu               sync.RWMutex
	running          bool
	paused           bool
	startTime        time.Time
	pausedAt         time.Time
	pausedTotal      time.Duration
	currentStepIndex int
	cancel           context.CancelFunc
	done             chan struct{}
}

// ExecutorOption ajusta el ejecutor al construirlo
type ExecutorOption func(*Executor)

// WithWaitTimeout límite de wait_activity y wait_anomaly (30s por defecto)
func WithWaitTimeout(d time.Duration) ExecutorOption {
	return func(e *Executor) {
		if d > 0 {
			e.waitTimeout = d
		}
	}
}

// WithSensitivity asigna el destino de set_sensitivity
func WithSensitivity(c SensitivityController) ExecutorOption {
	return func(e *Executor) {
		e.sensitivity = c
	}
}

// NewExecutor crea un nuevo ejecutor de escenarios
func NewExecutor(scenario *Scenario, motion MotionController, bus *eventbus.EventBus, logger *slog.Logger, opts ...ExecutorOption) *Executor {
	e := &Executor{
		scenario:    scenario,
		motion:      motion,
		bus:         bus,
		logger:      logging.Component(logger, "scenario").With(slog.String("scenario", scenario.Name)),
		waitTimeout: 30 * time.Second,
		done:        make(chan struct{}),
	}
	close(e.done)
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Start inicia la ejecución del escenario
func (e *Executor) Start() {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	e.running = true
	e.paused = false
	e.startTime = time.Now()
	e.pausedTotal = 0
	e.currentStepIndex = 0
	e.cancel = cancel
	e.done = make(chan struct{})
	done := e.done
	e.mu.Unlock()

	e.logger.Info("escenario iniciado",
		slog.String("description", e.scenario.Description),
		slog.Duration("duration", e.scenario.GetDuration()),
		slog.Int("steps", len(e.scenario.Steps)),
	)

	go e.execute(ctx, done)
}

// Stop detiene la ejecución y espera a que termine el paso en curso
func (e *Executor) Stop() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	e.running = false
	e.cancel()
	done := e.done
	e.mu.Unlock()

	<-done
	e.logger.Info("escenario detenido")
}

// Done se cierra cuando el escenario termina o se detiene
func (e *Executor) Done() <-chan struct{} {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.done
}

// Pause pausa la ejecución; el tiempo pausado no cuenta para los pasos
func (e *Executor) Pause() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.paused {
		return
	}
	e.paused = true
	e.pausedAt = time.Now()
	e.logger.Info("escenario pausado")
}

// Resume reanuda la ejecución
func (e *Executor) Resume() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.paused {
		return
	}
	e.paused = false
	e.pausedTotal += time.Since(e.pausedAt)
	e.logger.Info("escenario reanudado")
}

// IsRunning retorna si está corriendo
func (e *Executor) IsRunning() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.running
}

// IsPaused retorna si está pausado
func (e *Executor) IsPaused() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.paused
}

// Scenario retorna el escenario en ejecución
func (e *Executor) Scenario() *Scenario {
	return e.scenario
}

// elapsed tiempo de escenario transcurrido, sin pausas
func (e *Executor) elapsed() time.Duration {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.elapsedLocked()
}

func (e *Executor) elapsedLocked() time.Duration {
	d := time.Since(e.startTime) - e.pausedTotal
	if e.paused {
		d -= time.Since(e.pausedAt)
	}
	return d
}

// execute ejecuta el escenario
func (e *Executor) execute(ctx context.Context, done chan struct{}) {
	defer close(done)

	for ctx.Err() == nil {
		e.mu.RLock()
		paused := e.paused
		currentStep := e.currentStepIndex
		e.mu.RUnlock()

		if paused {
			sleep(ctx, pollInterval)
			continue
		}

		// Verificar si hay más pasos
		if currentStep >= len(e.scenario.Steps) {
			e.mu.Lock()
			e.running = false
			e.cancel()
			e.mu.Unlock()
			e.logger.Info("escenario completado")
			return
		}

		step := e.scenario.Steps[currentStep]

		// Esperar hasta el tiempo del paso, revisando pausa y parada
		wait := time.Duration(step.Time*float64(time.Second)) - e.elapsed()
		if wait > 0 {
			sleep(ctx, min(wait, pollInterval))
			continue
		}

		e.executeStep(ctx, step)

		e.mu.Lock()
		e.currentStepIndex++
		e.mu.Unlock()
	}
}

// executeStep ejecuta un paso individual
func (e *Executor) executeStep(ctx context.Context, step ScenarioStep) {
	e.logger.Debug("paso",
		slog.Duration("at", e.elapsed().Round(100*time.Millisecond)),
		slog.String("action", step.Action),
		slog.Any("value", step.Value),
	)

	switch step.Action {
	case ActionSetMotion:
		e.handleSetMotion(step)

	case ActionImpact:
		e.motion.Impact()
		e.logger.Info("impacto inyectado")

	case ActionSetSensitivity:
		e.handleSetSensitivity(ctx, step)

	case ActionWaitActivity:
		e.handleWaitActivity(ctx, step)

	case ActionWaitAnomaly:
		e.handleWaitAnomaly(ctx, step)

	case ActionWait:
		e.handleWait(ctx, step)

	case ActionLog:
		e.handleLog(step)

	case ActionPause:
		e.Pause()

	case ActionResume:
		e.Resume()

	default:
		e.logger.Warn("acción desconocida", slog.String("action", step.Action))
	}
}

// handleSetMotion cambia el movimiento simulado
func (e *Executor) handleSetMotion(step ScenarioStep) {
	m, err := motionValue(step)
	if err != nil {
		e.logger.Warn("set_motion inválido", slog.Any("error", err))
		return
	}
	e.motion.SetMotion(m)
}

// handleSetSensitivity cambia la sensibilidad del motor
func (e *Executor) handleSetSensitivity(ctx context.Context, step ScenarioStep) {
	if e.sensitivity == nil {
		e.logger.Warn("set_sensitivity sin controlador")
		return
	}
	v, err := sensitivityValue(step)
	if err != nil {
		e.logger.Warn("set_sensitivity inválido", slog.Any("error", err))
		return
	}
	if err := e.sensitivity.SetSensitivity(ctx, v, "scenario"); err != nil {
		e.logger.Warn("error en set_sensitivity", slog.Any("error", err))
	}
}

// handleWaitActivity espera a que el motor publique la actividad indicada
func (e *Executor) handleWaitActivity(ctx context.Context, step ScenarioStep) {
	target, err := activityValue(step)
	if err != nil {
		e.logger.Warn("wait_activity inválido", slog.Any("error", err))
		return
	}

	ok := e.waitFor(ctx, eventbus.EventActivity, e.waitTimeout, func(ev eventbus.Event) bool {
		state, ok := ev.Data.(har.ActivityState)
		return ok && state.IsActive && state.Activity == target
	})
	if ok {
		e.logger.Info("actividad alcanzada", slog.String("activity", target.String()))
	}
}

// handleWaitAnomaly espera la siguiente anomalía; el valor opcional es el
// límite en segundos
func (e *Executor) handleWaitAnomaly(ctx context.Context, step ScenarioStep) {
	timeout := e.waitTimeout
	if s, ok := number(step.Value); ok && s > 0 {
		timeout = time.Duration(s * float64(time.Second))
	}

	var got eventbus.AnomalyEvent
	ok := e.waitFor(ctx, eventbus.EventAnomaly, timeout, func(ev eventbus.Event) bool {
		a, ok := ev.Data.(eventbus.AnomalyEvent)
		got = a
		return ok
	})
	if ok {
		e.logger.Info("anomalía observada",
			slog.String("type", string(got.Anomaly.Type)),
			slog.String("id", got.ID.String()),
		)
	}
}

// waitFor se suscribe a un tipo de evento hasta que match acepte uno. Retorna
// false por timeout, parada o cierre del bus.
func (e *Executor) waitFor(ctx context.Context, t eventbus.EventType, timeout time.Duration, match func(eventbus.Event) bool) bool {
	ch := e.bus.Subscribe(t)
	defer e.bus.Unsubscribe(t, ch)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case event, ok := <-ch:
			if !ok {
				e.logger.Warn("canal de eventos cerrado", slog.String("type", string(t)))
				return false
			}
			if event.Data != nil && match(event) {
				return true
			}
		case <-timer.C:
			e.logger.Warn("tiempo de espera agotado", slog.String("type", string(t)), slog.Duration("timeout", timeout))
			return false
		case <-ctx.Done():
			return false
		}
	}
}

// handleWait espera N segundos
func (e *Executor) handleWait(ctx context.Context, step ScenarioStep) {
	seconds, ok := number(step.Value)
	if !ok {
		e.logger.Warn("wait inválido", slog.Any("value", step.Value))
		return
	}
	sleep(ctx, time.Duration(seconds*float64(time.Second)))
}

// handleLog registra un mensaje
func (e *Executor) handleLog(step ScenarioStep) {
	message, ok := step.Value.(string)
	if !ok {
		e.logger.Warn("log inválido", slog.Any("value", step.Value))
		return
	}
	e.logger.Info(message)
}

// GetProgress retorna el progreso del escenario (0.0 a 1.0)
func (e *Executor) GetProgress() float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if !e.running {
		return 0.0
	}

	progress := e.elapsedLocked().Seconds() / e.scenario.GetDuration().Seconds()
	if progress > 1.0 {
		return 1.0
	}
	return progress
}

// GetCurrentStep retorna el paso actual
func (e *Executor) GetCurrentStep() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.currentStepIndex
}

// sleep espera d o hasta que se cancele ctx
func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
