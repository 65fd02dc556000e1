package mqtt

import "github.com/MarcosBrindi/harmonitor/internal/eventbus"

// feed agrupa las suscripciones al bus de un publicador
type feed struct {
	bus   *eventbus.EventBus
	chans map[eventbus.EventType]<-chan eventbus.Event
}

func subscribe(bus *eventbus.EventBus, types ...eventbus.EventType) *feed {
	f := &feed{bus: bus, chans: make(map[eventbus.EventType]<-chan eventbus.Event, len(types))}
	for _, t := range types {
		f.chans[t] = bus.Subscribe(t)
	}
	return f
}

// ch retorna el canal del tipo; nil (bloquea para siempre) si no se suscribió
func (f *feed) ch(t eventbus.EventType) <-chan eventbus.Event {
	return f.chans[t]
}

func (f *feed) close() {
	for t, ch := range f.chans {
		f.bus.Unsubscribe(t, ch)
	}
}
