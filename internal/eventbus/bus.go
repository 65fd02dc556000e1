package eventbus

import (
	"sync"
	"sync/atomic"
	"time"
)

// DefaultBufferSize capacidad del canal de cada suscriptor
const DefaultBufferSize = 10

// retryInterval espera entre intentos de PublishBlocking
const retryInterval = time.Millisecond

// EventBus es el bus central de eventos usando Pub/Sub pattern
type EventBus struct {
	subscribers map[EventType][]chan Event
	mu          sync.RWMutex
	bufferSize  int
	closed      bool
	dropped     atomic.Uint64
}

// NewEventBus crea una nueva instancia del Event Bus
func NewEventBus() *EventBus {
	return NewEventBusWithBuffer(DefaultBufferSize)
}

// NewEventBusWithBuffer crea un bus con otra capacidad por suscriptor
// (la reproducción de archivos CSV publica más rápido que 10Hz)
func NewEventBusWithBuffer(size int) *EventBus {
	if size < 1 {
		size = DefaultBufferSize
	}
	return &EventBus{
		subscribers: make(map[EventType][]chan Event),
		bufferSize:  size,
	}
}

// Subscribe crea una suscripción a un tipo de evento específico.
// Retorna un canal read-only; tras Close el canal llega cerrado.
func (eb *EventBus) Subscribe(eventType EventType) <-chan Event {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	ch := make(chan Event, eb.bufferSize)
	if eb.closed {
		close(ch)
		return ch
	}

	eb.subscribers[eventType] = append(eb.subscribers[eventType], ch)
	return ch
}

// Unsubscribe retira y cierra un canal obtenido con Subscribe
func (eb *EventBus) Unsubscribe(eventType EventType, ch <-chan Event) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	subs := eb.subscribers[eventType]
	for i, c := range subs {
		if c == ch {
			eb.subscribers[eventType] = append(subs[:i], subs[i+1:]...)
			close(c)
			return
		}
	}
}

// Publish publica un evento a todos los suscriptores de ese tipo.
// Nunca bloquea: si un canal está lleno el evento se descarta para ese
// suscriptor.
func (eb *EventBus) Publish(event Event) {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	if eb.closed {
		return
	}

	for _, ch := range eb.subscribers[event.Type] {
		select {
		case ch <- event:
		default:
			eb.dropped.Add(1)
		}
	}
}

// PublishBlocking entrega el evento a todos los suscriptores esperando
// espacio en los canales llenos. Lo usan las fuentes que no pueden perder
// muestras (replay). El candado no se mantiene durante la espera.
func (eb *EventBus) PublishBlocking(event Event, done <-chan struct{}) bool {
	delivered := make(map[chan Event]bool)
	for {
		eb.mu.RLock()
		if eb.closed {
			eb.mu.RUnlock()
			return false
		}
		pending := 0
		for _, ch := range eb.subscribers[event.Type] {
			if delivered[ch] {
				continue
			}
			select {
			case ch <- event:
				delivered[ch] = true
			default:
				pending++
			}
		}
		eb.mu.RUnlock()

		if pending == 0 {
			return true
		}

		select {
		case <-done:
			return false
		case <-time.After(retryInterval):
		}
	}
}

// Dropped retorna cuántas entregas se descartaron por canales llenos
func (eb *EventBus) Dropped() uint64 {
	return eb.dropped.Load()
}

// Close cierra todos los canales de suscriptores. Es idempotente.
func (eb *EventBus) Close() {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		return
	}
	eb.closed = true

	for _, subs := range eb.subscribers {
		for _, ch := range subs {
			close(ch)
		}
	}
	eb.subscribers = make(map[EventType][]chan Event)
}
