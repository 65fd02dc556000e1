package har

// MovementHistory es un ring buffer de puntajes de movimiento, uno por tick
type MovementHistory struct {
	data []float64
	pos  int
	full bool
	cap  int
}

// NewMovementHistory crea un historial con la capacidad dada
func NewMovementHistory(cap int) *MovementHistory {
	if cap < 1 {
		cap = 1
	}
	return &MovementHistory{
		data: make([]float64, cap),
		cap:  cap,
	}
}

// Push agrega un puntaje
func (h *MovementHistory) Push(v float64) {
	h.data[h.pos] = v
	h.pos++
	if h.pos >= h.cap {
		h.pos = 0
		h.full = true
	}
}

// Len retorna el número de puntajes almacenados
func (h *MovementHistory) Len() int {
	if h.full {
		return h.cap
	}
	return h.pos
}

// Slice retorna el contenido en orden de inserción
func (h *MovementHistory) Slice() []float64 {
	n := h.Len()
	out := make([]float64, n)
	if h.full {
		copy(out, h.data[h.pos:])
		copy(out[h.cap-h.pos:], h.data[:h.pos])
	} else {
		copy(out, h.data[:h.pos])
	}
	return out
}

// Window retorna los `size` puntajes que terminan `offset` posiciones antes
// del más reciente. Window(3, 0) son los últimos tres.
func (h *MovementHistory) Window(size, offset int) []float64 {
	all := h.Slice()
	end := len(all) - offset
	start := end - size
	if start < 0 || end > len(all) || size <= 0 {
		return nil
	}
	return all[start:end]
}

// Reset vacía el historial
func (h *MovementHistory) Reset() {
	clear(h.data)
	h.pos = 0
	h.full = false
}
