package monitor

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MarcosBrindi/harmonitor/internal/eventbus"
	"github.com/MarcosBrindi/harmonitor/internal/har"
	"github.com/MarcosBrindi/harmonitor/internal/logging"
	"github.com/MarcosBrindi/harmonitor/internal/settings"
)

// Options parámetros del monitor
type Options struct {
	DeviceID        string
	SettingsRefresh time.Duration
	SettingsTimeout time.Duration
	Logger          *slog.Logger
}

// Monitor conecta el bus con el motor HAR: consume muestras en serie,
// relee la sensibilidad periódicamente y publica los estados en el bus.
type Monitor struct {
	bus      *eventbus.EventBus
	service  *har.Service
	provider settings.Provider
	opts     Options
	logger   *slog.Logger
	tally    *Tally

	// sensibilidad leída en segundo plano, entregada al bucle
	settingsCh chan float64
	fetching   atomic.Bool

	mu          sync.RWMutex
	running     bool
	paused      bool
	cancel      context.CancelFunc
	samples     <-chan eventbus.Event
	unsubscribe func()
	wg          sync.WaitGroup

	// solo dentro del tick
	prevAnomaly  bool
	lastActivity har.Activity

	received  atomic.Uint64
	ticks     atomic.Uint64
	anomalies atomic.Uint64
}

// NewMonitor crea el monitor. provider puede ser nil (sin ajustes externos).
func NewMonitor(bus *eventbus.EventBus, service *har.Service, provider settings.Provider, opts Options) *Monitor {
	if opts.SettingsRefresh <= 0 {
		opts.SettingsRefresh = 30 * time.Second
	}
	if opts.SettingsTimeout <= 0 {
		opts.SettingsTimeout = 5 * time.Second
	}
	return &Monitor{
		bus:          bus,
		service:      service,
		provider:     provider,
		opts:         opts,
		logger:       logging.Component(opts.Logger, "monitor").With(slog.String("device_id", opts.DeviceID)),
		tally:        NewTally(),
		settingsCh:   make(chan float64, 1),
		lastActivity: service.Current().Activity,
	}
}

// Start suscribe el monitor al flujo de muestras y arranca el motor
func (m *Monitor) Start() {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.running = true
	m.paused = false
	m.samples = m.bus.Subscribe(eventbus.EventSample)
	m.unsubscribe = m.service.Subscribe(har.ListenerFunc(m.bridge))
	samples := m.samples
	m.mu.Unlock()

	m.tally.Reset()
	m.service.Start()
	m.publishSensitivity(m.service.Sensitivity(), "start")

	m.wg.Add(1)
	go m.loop(ctx, samples)

	m.logger.Info("monitor iniciado", slog.Duration("settings_refresh", m.opts.SettingsRefresh))
}

// Stop deja de consumir muestras, detiene el motor (que publica IDLE
// inactivo) y retira el puente. Es idempotente.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	m.cancel()
	m.bus.Unsubscribe(eventbus.EventSample, m.samples)
	m.mu.Unlock()

	m.wg.Wait()
	m.service.Stop()

	m.mu.Lock()
	if m.unsubscribe != nil {
		m.unsubscribe()
		m.unsubscribe = nil
	}
	m.mu.Unlock()

	m.logger.Info("monitor detenido",
		slog.Uint64("ticks", m.ticks.Load()),
		slog.Uint64("anomalies", m.anomalies.Load()),
	)
}

// Pause descarta las muestras entrantes sin detener el motor
func (m *Monitor) Pause() {
	m.mu.Lock()
	m.paused = true
	m.mu.Unlock()
}

// Resume reanuda el consumo de muestras
func (m *Monitor) Resume() {
	m.mu.Lock()
	m.paused = false
	m.mu.Unlock()
}

// IsRunning verifica si está corriendo (thread-safe)
func (m *Monitor) IsRunning() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.running
}

func (m *Monitor) isPaused() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.paused
}

// loop es el único consumidor: cada muestra es un tick completo antes de
// aceptar la siguiente
func (m *Monitor) loop(ctx context.Context, samples <-chan eventbus.Event) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.opts.SettingsRefresh)
	defer ticker.Stop()

	m.fetchSettings(ctx)

	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-samples:
			if !ok {
				return
			}
			m.handleSample(ev)

		case v := <-m.settingsCh:
			m.applySensitivity(v, "settings")

		case <-ticker.C:
			m.fetchSettings(ctx)
		}
	}
}

func (m *Monitor) handleSample(ev eventbus.Event) {
	m.received.Add(1)
	if m.isPaused() {
		return
	}
	sample, ok := ev.Data.(har.SensorSample)
	if !ok {
		return
	}
	if _, accepted := m.service.PushSample(sample); accepted {
		m.ticks.Add(1)
	}
}

// fetchSettings consulta la fuente en una goroutine; nunca bloquea el bucle
func (m *Monitor) fetchSettings(ctx context.Context) {
	if m.provider == nil || !m.fetching.CompareAndSwap(false, true) {
		return
	}

	go func() {
		defer m.fetching.Store(false)

		fctx, cancel := context.WithTimeout(ctx, m.opts.SettingsTimeout)
		defer cancel()

		v, err := m.provider.Sensitivity(fctx)
		switch {
		case errors.Is(err, settings.ErrNoSettings):
			m.logger.Debug("sin sensibilidad configurada, se conservan los umbrales")
			return
		case err != nil:
			if ctx.Err() == nil {
				m.logger.Warn("error leyendo ajustes", slog.Any("error", err))
			}
			return
		}

		select {
		case m.settingsCh <- v:
		case <-ctx.Done():
		}
	}()
}

func (m *Monitor) applySensitivity(v float64, source string) {
	v = har.ClampSensitivity(v)
	if v == m.service.Sensitivity() {
		return
	}
	m.service.SetSensitivity(v)
	m.publishSensitivity(v, source)
}

func (m *Monitor) publishSensitivity(v float64, source string) {
	m.bus.Publish(eventbus.Event{
		Type:      eventbus.EventSensitivity,
		Timestamp: time.Now(),
		Data: eventbus.SensitivityData{
			Sensitivity: v,
			Thresholds:  m.service.Thresholds(),
			Source:      source,
		},
	})
}

// SetSensitivity cambia la sensibilidad desde la interfaz o un escenario.
// Si la fuente admite escritura el valor se guarda para que el próximo
// refresco no lo revierta.
func (m *Monitor) SetSensitivity(ctx context.Context, v float64, source string) error {
	if w, ok := m.provider.(settings.Writer); ok {
		if err := w.SetSensitivity(ctx, v); err != nil {
			return err
		}
	}
	m.applySensitivity(v, source)
	return nil
}

// bridge recibe cada estado del motor (dentro del tick) y lo reenvía al bus
func (m *Monitor) bridge(state har.ActivityState) error {
	m.tally.Observe(state)

	m.bus.Publish(eventbus.Event{
		Type:      eventbus.EventActivity,
		Timestamp: state.Timestamp,
		Data:      state,
	})

	if state.Activity != m.lastActivity {
		m.logger.Info("cambio de actividad",
			slog.String("from", m.lastActivity.String()),
			slog.String("to", state.Activity.String()),
			slog.Float64("confidence", state.Confidence),
			slog.Bool("active", state.IsActive),
		)
		m.lastActivity = state.Activity
	}

	onset := state.HasAnomaly() && !m.prevAnomaly
	m.prevAnomaly = state.HasAnomaly()
	if onset {
		m.anomalies.Add(1)
		ev := eventbus.NewAnomalyEvent(m.opts.DeviceID, state)
		m.logger.Warn("anomalía detectada",
			slog.String("id", ev.ID.String()),
			slog.String("type", string(ev.Anomaly.Type)),
			slog.Float64("drop_ratio", ev.Anomaly.DropRatio),
		)
		m.bus.Publish(eventbus.Event{
			Type:      eventbus.EventAnomaly,
			Timestamp: state.Timestamp,
			Data:      ev,
		})
	}
	return nil
}

// GetCurrentState retorna el último estado publicado
func (m *Monitor) GetCurrentState() har.ActivityState {
	return m.service.Current()
}

// Thresholds retorna los umbrales activos
func (m *Monitor) Thresholds() har.Thresholds {
	return m.service.Thresholds()
}

// Sensitivity retorna la sensibilidad activa
func (m *Monitor) Sensitivity() float64 {
	return m.service.Sensitivity()
}

// Summary retorna el resumen de la sesión actual
func (m *Monitor) Summary() Summary {
	return m.tally.Summary()
}

// Received retorna las muestras sacadas del bus, aceptadas o no
func (m *Monitor) Received() uint64 {
	return m.received.Load()
}

// Stats retorna ticks procesados y anomalías detectadas
func (m *Monitor) Stats() (ticks, anomalies uint64) {
	return m.ticks.Load(), m.anomalies.Load()
}
