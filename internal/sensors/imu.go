package sensors

import (
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/MarcosBrindi/harmonitor/internal/config"
	"github.com/MarcosBrindi/harmonitor/internal/eventbus"
	"github.com/MarcosBrindi/harmonitor/internal/har"
	"github.com/MarcosBrindi/harmonitor/internal/logging"
)

const gravity = 9.81

// Motion es el tipo de movimiento que simula el IMU
type Motion string

const (
	MotionStill    Motion = "still"
	MotionStanding Motion = "standing"
	MotionWalking  Motion = "walking"
	MotionRunning  Motion = "running"
)

// Profile amplitudes de la señal sintética de cada movimiento
type Profile struct {
	AccelAmp float64 // m/s² sobre la gravedad
	GyroAmp  float64 // rad/s
	StepHz   float64 // cadencia
}

var profiles = map[Motion]Profile{
	MotionStill:    {},
	MotionStanding: {AccelAmp: 0.5, GyroAmp: 0.3, StepHz: 0.5},
	MotionWalking:  {AccelAmp: 2.5, GyroAmp: 1.2, StepHz: 1.8},
	MotionRunning:  {AccelAmp: 8.0, GyroAmp: 5.0, StepHz: 2.8},
}

// ParseMotion valida un nombre de movimiento
func ParseMotion(name string) (Motion, error) {
	m := Motion(strings.ToLower(strings.TrimSpace(name)))
	if _, ok := profiles[m]; !ok {
		return "", fmt.Errorf("movimiento desconocido: %q", name)
	}
	return m, nil
}

// Motions lista los movimientos soportados
func Motions() []Motion {
	return []Motion{MotionStill, MotionStanding, MotionWalking, MotionRunning}
}

// Generate produce una muestra del movimiento en el instante elapsed desde
// el inicio. noise escala el ruido blanco; rng puede ser nil.
func Generate(m Motion, elapsed time.Duration, noise float64, rng *rand.Rand) har.SensorSample {
	p := profiles[m]
	phase := 2 * math.Pi * p.StepHz * elapsed.Seconds()
	s := math.Sin(phase)

	n := func(scale float64) float64 {
		if rng == nil || noise == 0 {
			return 0
		}
		return (rng.Float64() - 0.5) * 2 * scale * noise
	}

	return har.SensorSample{
		// X: adelante/atrás, Y: lateral, Z: vertical (gravedad + pisada)
		AccelX: 0.3*p.AccelAmp*s + n(0.02),
		AccelY: n(0.02),
		AccelZ: gravity + p.AccelAmp*s + n(0.02),
		GyroX:  p.GyroAmp*s + n(0.01),
		GyroY:  n(0.01),
		GyroZ:  n(0.01),
	}
}

// IMUSimulator simula un acelerómetro + giroscopio de muñeca
type IMUSimulator struct {
	bus    *eventbus.EventBus
	config config.IMUConfig
	logger *slog.Logger

	// Campos protegidos por mutex
	mu      sync.RWMutex
	running bool
	paused  bool
	motion  Motion
	impact  bool
	tick    int64
	rng     *rand.Rand
	done    chan struct{}
	now     func() time.Time
}

// NewIMUSimulator crea un nuevo simulador IMU
func NewIMUSimulator(bus *eventbus.EventBus, cfg config.IMUConfig, logger *slog.Logger) *IMUSimulator {
	motion, err := ParseMotion(cfg.InitialMotion)
	if err != nil {
		motion = MotionStill
	}
	if cfg.Frequency <= 0 {
		cfg.Frequency = 10
	}
	return &IMUSimulator{
		bus:    bus,
		config: cfg,
		logger: logging.Component(logger, "imu"),
		motion: motion,
		rng:    rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x1a2b)),
		now:    time.Now,
	}
}

// Start inicia el simulador en su propia goroutine
func (imu *IMUSimulator) Start() {
	imu.mu.Lock()
	if imu.running {
		imu.mu.Unlock()
		return
	}
	imu.running = true
	imu.done = make(chan struct{})
	done := imu.done
	imu.mu.Unlock()

	go imu.loop(done)

	imu.logger.Info("simulador IMU iniciado",
		slog.Float64("frequency_hz", imu.config.Frequency),
		slog.String("motion", string(imu.Motion())),
	)
}

// Stop detiene el simulador
func (imu *IMUSimulator) Stop() {
	imu.mu.Lock()
	if !imu.running {
		imu.mu.Unlock()
		return
	}
	imu.running = false
	close(imu.done)
	imu.mu.Unlock()

	imu.logger.Info("simulador IMU detenido")
}

// Pause pausa el simulador
func (imu *IMUSimulator) Pause() {
	imu.mu.Lock()
	imu.paused = true
	imu.mu.Unlock()
}

// Resume reanuda el simulador
func (imu *IMUSimulator) Resume() {
	imu.mu.Lock()
	imu.paused = false
	imu.mu.Unlock()
}

// IsPaused indica si el simulador está pausado
func (imu *IMUSimulator) IsPaused() bool {
	imu.mu.RLock()
	defer imu.mu.RUnlock()
	return imu.paused
}

// SetMotion cambia el movimiento simulado
func (imu *IMUSimulator) SetMotion(m Motion) {
	imu.mu.Lock()
	changed := imu.motion != m
	imu.motion = m
	imu.mu.Unlock()

	if changed {
		imu.logger.Debug("movimiento cambiado", slog.String("motion", string(m)))
	}
}

// Motion retorna el movimiento actual
func (imu *IMUSimulator) Motion() Motion {
	imu.mu.RLock()
	defer imu.mu.RUnlock()
	return imu.motion
}

// Impact agrega un golpe de una sola muestra (caída, choque)
func (imu *IMUSimulator) Impact() {
	imu.mu.Lock()
	imu.impact = true
	imu.mu.Unlock()
}

// loop es el bucle principal del simulador
func (imu *IMUSimulator) loop(done <-chan struct{}) {
	ticker := time.NewTicker(time.Duration(float64(time.Second) / imu.config.Frequency))
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
		}

		if imu.IsPaused() {
			continue
		}

		imu.bus.Publish(eventbus.NewSampleEvent(imu.Next()))
	}
}

// Next genera la siguiente muestra y avanza el reloj interno
func (imu *IMUSimulator) Next() har.SensorSample {
	imu.mu.Lock()
	defer imu.mu.Unlock()

	elapsed := time.Duration(float64(imu.tick) / imu.config.Frequency * float64(time.Second))
	imu.tick++

	sample := Generate(imu.motion, elapsed, imu.config.Noise, imu.rng)
	if imu.impact {
		imu.impact = false
		sample.AccelX += 25
		sample.AccelZ -= 15
		sample.GyroY += 8
	}
	sample.Timestamp = imu.now()
	return sample
}
