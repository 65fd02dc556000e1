package har

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// Config es la configuración del motor HAR
type Config struct {
	WindowSize     int              `yaml:"window_size"`
	AccelWeight    float64          `yaml:"accel_weight"`
	GyroWeight     float64          `yaml:"gyro_weight"`
	Sensitivity    float64          `yaml:"sensitivity"` // inicial, antes de leer ajustes
	BaseThresholds Thresholds       `yaml:"thresholds"`
	ScaleFactors   ScaleFactors     `yaml:"scale_factors"`
	Hysteresis     HysteresisConfig `yaml:"hysteresis"`
	SuddenStop     SuddenStopConfig `yaml:"sudden_stop"`
}

// DefaultConfig retorna la configuración por defecto (ventana de 2s a 10Hz)
func DefaultConfig() Config {
	return Config{
		WindowSize:     20,
		AccelWeight:    DefaultAccelWeight,
		GyroWeight:     DefaultGyroWeight,
		Sensitivity:    SensitivityMedium,
		BaseThresholds: DefaultThresholds(),
		ScaleFactors:   DefaultScaleFactors(),
		Hysteresis:     DefaultHysteresis(),
		SuddenStop:     DefaultSuddenStop(),
	}
}

// Service es la instancia única del motor: ventana, clasificador, detector
// y publicador. Los ticks son estrictamente seriales.
//
// Stop puede llamarse en cualquier momento, también desde un listener
// durante la entrega de un tick: en ese caso el servicio queda detenido al
// instante, el tick en curso no entrega su estado a los listeners que
// faltan y publica IDLE inactivo antes de soltar el lock.
type Service struct {
	cfg       Config
	logger    *slog.Logger
	publisher *Publisher
	now       func() time.Time

	// tickMu serializa ticks, Start y Stop
	tickMu      sync.Mutex
	running     atomic.Bool
	delivering  atomic.Bool
	stopPending atomic.Bool
	buffer      *SignalBuffer
	classifier  *Classifier
	detector    *AnomalyDetector

	// sensMu protege la sensibilidad; el tick toma los umbrales al empezar
	sensMu      sync.RWMutex
	sensitivity float64
	thresholds  Thresholds

	rejected     atomic.Uint64
	rejectLogger *rate.Limiter
}

// Option modifica el servicio al construirlo
type Option func(*Service)

// WithLogger asigna el logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock reemplaza time.Now (tests)
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService crea el servicio detenido, con estado IDLE inactivo
func NewService(cfg Config, opts ...Option) *Service {
	s := &Service{
		cfg:          cfg,
		logger:       slog.New(slog.DiscardHandler),
		now:          time.Now,
		sensitivity:  ClampSensitivity(cfg.Sensitivity),
		rejectLogger: rate.NewLimiter(rate.Every(5*time.Second), 1),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.thresholds = s.cfg.BaseThresholds.Scale(s.sensitivity, s.cfg.ScaleFactors)
	s.buffer = NewSignalBuffer(cfg.WindowSize)
	s.classifier = NewClassifier(s.thresholds, cfg.Hysteresis, cfg.AccelWeight, cfg.GyroWeight)
	s.detector = NewAnomalyDetector(cfg.SuddenStop)
	s.publisher = NewPublisher(s.logger, InactiveState(s.now()))
	return s
}

// lock toma tickMu y aplica un Stop que haya quedado pendiente
func (s *Service) lock() {
	s.tickMu.Lock()
	s.applyPendingStop()
}

// unlock aplica un Stop pendiente antes de soltar tickMu y, ya suelto,
// recoge el que haya llegado mientras tanto
func (s *Service) unlock() {
	s.applyPendingStop()
	s.tickMu.Unlock()
	s.drainStop()
}

func (s *Service) applyPendingStop() {
	if s.stopPending.Swap(false) {
		s.stopLocked(true)
	}
}

// drainStop aplica el Stop pendiente si nadie tiene el lock; si alguien lo
// tiene, lo aplicará al soltarlo
func (s *Service) drainStop() {
	for s.stopPending.Load() {
		if !s.tickMu.TryLock() {
			return
		}
		s.applyPendingStop()
		s.tickMu.Unlock()
	}
}

// notify entrega el estado mientras el servicio siga activo
func (s *Service) notify(state ActivityState) {
	s.delivering.Store(true)
	s.publisher.NotifyWhile(state, s.running.Load)
	s.delivering.Store(false)
}

// Start reinicia ventana, contadores e histéresis y publica CALIBRATING
func (s *Service) Start() {
	s.lock()
	defer s.unlock()

	if s.running.Load() {
		return
	}

	s.resetSession()
	s.classifier.SetThresholds(s.Thresholds())
	s.running.Store(true)

	s.logger.Info("servicio HAR iniciado",
		slog.Int("window_size", s.buffer.Cap()),
		slog.Float64("sensitivity", s.Sensitivity()),
	)
	s.notify(CalibratingState(s.now()))
}

// Stop descarta el estado de la sesión y publica IDLE inactivo. Es
// idempotente; llamado desde otra goroutine espera al tick en curso salvo
// que éste ya esté entregando su estado.
func (s *Service) Stop() {
	if s.delivering.Load() {
		// Tick entregando (quizá desde un listener del mismo tick): detener
		// ya y dejar que el tick publique el cierre
		if s.running.Swap(false) {
			s.publisher.SetLatest(InactiveState(s.now()))
			s.stopPending.Store(true)
			s.drainStop()
		}
		return
	}

	s.tickMu.Lock()
	pending := s.stopPending.Swap(false)
	s.stopLocked(s.running.Swap(false) || pending)
	s.tickMu.Unlock()
	s.drainStop()
}

// stopLocked reinicia la sesión y publica IDLE inactivo; requiere tickMu
func (s *Service) stopLocked(wasRunning bool) {
	if wasRunning {
		s.logger.Info("servicio HAR detenido", slog.Uint64("rejected_samples", s.rejected.Load()))
	}
	s.running.Store(false)
	s.resetSession()

	s.delivering.Store(true)
	s.publisher.Notify(InactiveState(s.now()))
	s.delivering.Store(false)
}

func (s *Service) resetSession() {
	s.buffer.Reset()
	s.classifier.Reset()
	s.detector.Reset()
}

// Running indica si el servicio está activo
func (s *Service) Running() bool {
	return s.running.Load()
}

// PushSample ejecuta un tick completo con la muestra. Retorna false si el
// servicio está detenido o la muestra es inválida; en ambos casos no se
// modifica ningún estado.
func (s *Service) PushSample(sample SensorSample) (ActivityState, bool) {
	s.lock()
	defer s.unlock()

	if !s.running.Load() {
		return s.publisher.Latest(), false
	}

	if !s.buffer.Push(sample) {
		n := s.rejected.Add(1)
		if s.rejectLogger.Allow() {
			s.logger.Warn("muestra del sensor descartada por valores no finitos", slog.Uint64("rejected_total", n))
		}
		return s.publisher.Latest(), false
	}

	at := sample.Timestamp
	if at.IsZero() {
		at = s.now()
	}

	if !s.buffer.Full() {
		state := CalibratingState(at)
		s.notify(state)
		return state, true
	}

	s.classifier.SetThresholds(s.Thresholds())
	reading := s.classifier.Update(s.buffer.Samples())
	anomaly := s.detector.Update(reading.Stats.TotalMovement, reading.Activity, s.classifier.Thresholds(), at)

	state := ActivityState{
		Activity:      reading.Activity,
		Confidence:    reading.Confidence,
		IsActive:      true,
		TotalMovement: reading.Stats.TotalMovement,
		Anomaly:       anomaly,
		Timestamp:     at,
	}

	if anomaly != nil {
		s.logger.Warn("parada súbita detectada",
			slog.Float64("drop_ratio", anomaly.DropRatio),
			slog.Time("at", at),
		)
	}

	s.notify(state)
	return state, true
}

// SetSensitivity cambia el conjunto de umbrales activo. Aplica desde el
// siguiente tick; la ventana no se modifica. Puede llamarse desde un
// listener.
func (s *Service) SetSensitivity(v float64) {
	v = ClampSensitivity(v)

	s.sensMu.Lock()
	if v == s.sensitivity {
		s.sensMu.Unlock()
		return
	}
	s.sensitivity = v
	s.thresholds = s.cfg.BaseThresholds.Scale(v, s.cfg.ScaleFactors)
	s.sensMu.Unlock()

	s.logger.Info("sensibilidad actualizada", slog.Float64("sensitivity", v))
}

// Sensitivity retorna la sensibilidad activa
func (s *Service) Sensitivity() float64 {
	s.sensMu.RLock()
	defer s.sensMu.RUnlock()
	return s.sensitivity
}

// Thresholds retorna los umbrales escalados activos
func (s *Service) Thresholds() Thresholds {
	s.sensMu.RLock()
	defer s.sensMu.RUnlock()
	return s.thresholds
}

// Current retorna el último estado publicado (para suscriptores tardíos)
func (s *Service) Current() ActivityState {
	return s.publisher.Latest()
}

// Subscribe registra un listener del estado publicado
func (s *Service) Subscribe(l Listener) func() {
	return s.publisher.Subscribe(l)
}

// Rejected retorna el total de muestras descartadas
func (s *Service) Rejected() uint64 {
	return s.rejected.Load()
}
