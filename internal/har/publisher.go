package har

import (
	"fmt"
	"log/slog"
	"sync"
)

// Listener recibe cada estado publicado. No debe bloquear; puede llamar a
// Stop o SetSensitivity del servicio que lo notifica.
type Listener interface {
	OnActivityChanged(state ActivityState) error
}

// ListenerFunc adapta una función a Listener
type ListenerFunc func(state ActivityState) error

func (f ListenerFunc) OnActivityChanged(state ActivityState) error {
	return f(state)
}

// Publisher difunde el último ActivityState a todos los suscriptores
type Publisher struct {
	logger *slog.Logger

	mu        sync.RWMutex
	listeners map[int]Listener
	order     []int
	nextID    int
	latest    ActivityState
}

// NewPublisher crea un publicador con el estado inicial inactivo
func NewPublisher(logger *slog.Logger, initial ActivityState) *Publisher {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Publisher{
		logger:    logger,
		listeners: make(map[int]Listener),
		latest:    initial,
	}
}

// Subscribe registra un listener y retorna la función para darlo de baja
func (p *Publisher) Subscribe(l Listener) func() {
	p.mu.Lock()
	defer p.mu.Unlock()

	id := p.nextID
	p.nextID++
	p.listeners[id] = l
	p.order = append(p.order, id)

	var once sync.Once
	return func() {
		once.Do(func() { p.unsubscribe(id) })
	}
}

func (p *Publisher) unsubscribe(id int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	delete(p.listeners, id)
	for i, v := range p.order {
		if v == id {
			p.order = append(p.order[:i], p.order[i+1:]...)
			break
		}
	}
}

// Latest retorna el último estado publicado
func (p *Publisher) Latest() ActivityState {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.latest
}

// Notify guarda el estado y lo entrega a cada listener. Un listener que
// falla o entra en pánico no interrumpe la entrega a los demás.
func (p *Publisher) Notify(state ActivityState) {
	p.NotifyWhile(state, nil)
}

// NotifyWhile es Notify, pero deja de entregar en cuanto keep retorna
// false. keep se consulta antes de guardar el estado y antes de cada
// listener.
func (p *Publisher) NotifyWhile(state ActivityState, keep func() bool) {
	p.mu.Lock()
	if keep != nil && !keep() {
		p.mu.Unlock()
		return
	}
	p.latest = state
	listeners := make([]Listener, 0, len(p.order))
	for _, id := range p.order {
		listeners = append(listeners, p.listeners[id])
	}
	p.mu.Unlock()

	for i, l := range listeners {
		if keep != nil && !keep() {
			return
		}
		if err := deliver(l, state); err != nil {
			p.logger.Warn("listener con error",
				slog.Int("listener", i),
				slog.String("activity", state.Activity.String()),
				slog.Any("error", err),
			)
		}
	}
}

// SetLatest reemplaza el último estado sin notificar
func (p *Publisher) SetLatest(state ActivityState) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.latest = state
}

func deliver(l Listener, state ActivityState) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pánico en listener: %v", r)
		}
	}()
	return l.OnActivityChanged(state)
}

// Len retorna el número de suscriptores
func (p *Publisher) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.listeners)
}
