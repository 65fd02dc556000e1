package monitor

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/MarcosBrindi/harmonitor/internal/eventbus"
	"github.com/MarcosBrindi/harmonitor/internal/logging"
	"github.com/MarcosBrindi/harmonitor/internal/store"
	"github.com/google/uuid"
)

// AnomalyWriter destino del diario de anomalías
type AnomalyWriter interface {
	InsertAnomaly(ctx context.Context, rec store.AnomalyRecord) (uuid.UUID, error)
}

// Recorder guarda cada anomalía publicada en el bus
type Recorder struct {
	bus    *eventbus.EventBus
	writer AnomalyWriter
	logger *slog.Logger

	mu      sync.Mutex
	events  <-chan eventbus.Event
	done    chan struct{}
	written int
}

// NewRecorder crea el grabador
func NewRecorder(bus *eventbus.EventBus, writer AnomalyWriter, logger *slog.Logger) *Recorder {
	return &Recorder{
		bus:    bus,
		writer: writer,
		logger: logging.Component(logger, "recorder"),
	}
}

// Start se suscribe a las anomalías
func (r *Recorder) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.events != nil {
		return
	}
	r.events = r.bus.Subscribe(eventbus.EventAnomaly)
	r.done = make(chan struct{})
	go r.loop(r.events, r.done)
}

// Stop se desuscribe y espera a que termine la última escritura
func (r *Recorder) Stop() {
	r.mu.Lock()
	events, done := r.events, r.done
	r.events = nil
	r.mu.Unlock()

	if events == nil {
		return
	}
	r.bus.Unsubscribe(eventbus.EventAnomaly, events)
	<-done
}

func (r *Recorder) loop(events <-chan eventbus.Event, done chan<- struct{}) {
	defer close(done)
	for ev := range events {
		anomaly, ok := ev.Data.(eventbus.AnomalyEvent)
		if !ok {
			continue
		}
		r.record(anomaly)
	}
}

func (r *Recorder) record(ev eventbus.AnomalyEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := r.writer.InsertAnomaly(ctx, store.AnomalyRecord{
		ID:            ev.ID,
		DeviceID:      ev.DeviceID,
		Type:          ev.Anomaly.Type,
		Severity:      ev.Anomaly.Severity,
		DetectedAt:    ev.Anomaly.DetectedAt,
		DropRatio:     ev.Anomaly.DropRatio,
		Activity:      ev.State.Activity,
		TotalMovement: ev.State.TotalMovement,
	})
	if err != nil {
		r.logger.Error("anomalía no registrada", slog.String("id", ev.ID.String()), slog.Any("error", err))
		return
	}

	r.mu.Lock()
	r.written++
	r.mu.Unlock()
}

// Written retorna cuántas anomalías se guardaron
func (r *Recorder) Written() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.written
}
