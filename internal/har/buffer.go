package har

// SignalBuffer es la ventana deslizante de las últimas N muestras válidas.
// Pertenece a un único servicio y no se comparte.
type SignalBuffer struct {
	data []SensorSample
	pos  int
	full bool
	cap  int
}

// NewSignalBuffer crea una ventana de tamaño windowSize (mínimo 1)
func NewSignalBuffer(windowSize int) *SignalBuffer {
	if windowSize < 1 {
		windowSize = 1
	}
	return &SignalBuffer{
		data: make([]SensorSample, windowSize),
		cap:  windowSize,
	}
}

// Push agrega una muestra. Las muestras con campos no finitos se descartan
// sin modificar el estado.
func (b *SignalBuffer) Push(s SensorSample) bool {
	if !s.Valid() {
		return false
	}
	b.data[b.pos] = s
	b.pos++
	if b.pos >= b.cap {
		b.pos = 0
		b.full = true
	}
	return true
}

// Len retorna el número de muestras almacenadas
func (b *SignalBuffer) Len() int {
	if b.full {
		return b.cap
	}
	return b.pos
}

// Cap retorna el tamaño de la ventana
func (b *SignalBuffer) Cap() int {
	return b.cap
}

// Full indica si la ventana ya está llena
func (b *SignalBuffer) Full() bool {
	return b.full
}

// Samples retorna las muestras en orden de inserción
func (b *SignalBuffer) Samples() []SensorSample {
	n := b.Len()
	out := make([]SensorSample, n)
	if b.full {
		copy(out, b.data[b.pos:])
		copy(out[b.cap-b.pos:], b.data[:b.pos])
	} else {
		copy(out, b.data[:b.pos])
	}
	return out
}

// Reset vacía la ventana
func (b *SignalBuffer) Reset() {
	clear(b.data)
	b.pos = 0
	b.full = false
}
