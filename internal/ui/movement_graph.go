package ui

import (
	"fmt"
	"image/color"
	"math"
	"sync"

	"github.com/MarcosBrindi/harmonitor/internal/har"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/vector"
)

// Escala logarítmica: el movimiento total va de ~1e-5 en reposo a >1 corriendo
const (
	graphMinExp = -5.0
	graphMaxExp = 1.0
)

type movementPoint struct {
	value    float64
	activity har.Activity
}

// MovementGraph muestra el movimiento total en tiempo real junto con los
// umbrales activos
type MovementGraph struct {
	mu sync.RWMutex

	x      float32
	y      float32
	width  float32
	height float32

	maxPoints int
	history   []movementPoint

	// Colores
	colorBg     color.RGBA
	colorBorder color.RGBA
	colorGrid   color.RGBA
}

// NewMovementGraph crea una nueva gráfica de movimiento
func NewMovementGraph(x, y, width, height float32, maxPoints int) *MovementGraph {
	if maxPoints < 2 {
		maxPoints = 2
	}
	return &MovementGraph{
		x:           x,
		y:           y,
		width:       width,
		height:      height,
		maxPoints:   maxPoints,
		history:     make([]movementPoint, 0, maxPoints),
		colorBg:     color.RGBA{30, 30, 40, 255},
		colorBorder: color.RGBA{80, 80, 100, 255},
		colorGrid:   color.RGBA{50, 50, 60, 255},
	}
}

// Add agrega un punto
func (mg *MovementGraph) Add(totalMovement float64, activity har.Activity) {
	mg.mu.Lock()
	defer mg.mu.Unlock()

	mg.history = append(mg.history, movementPoint{value: totalMovement, activity: activity})

	// Mantener solo los últimos maxPoints
	if len(mg.history) > mg.maxPoints {
		mg.history = mg.history[1:]
	}
}

// Clear limpia la gráfica
func (mg *MovementGraph) Clear() {
	mg.mu.Lock()
	defer mg.mu.Unlock()

	mg.history = make([]movementPoint, 0, mg.maxPoints)
}

// scale ubica un valor en [0,1] sobre el eje logarítmico
func scale(v float64) float32 {
	if v <= 0 || math.IsNaN(v) {
		return 0
	}
	r := (math.Log10(v) - graphMinExp) / (graphMaxExp - graphMinExp)
	return float32(math.Max(0, math.Min(1, r)))
}

// Draw dibuja la gráfica con una línea por umbral
func (mg *MovementGraph) Draw(screen *ebiten.Image, t har.Thresholds) {
	mg.mu.RLock()
	defer mg.mu.RUnlock()

	// Fondo
	vector.DrawFilledRect(screen, mg.x, mg.y, mg.width, mg.height, mg.colorBg, false)
	vector.StrokeRect(screen, mg.x, mg.y, mg.width, mg.height, 2, mg.colorBorder, false)

	ebitenutil.DebugPrintAt(screen, "MOVIMIENTO TOTAL (log)", int(mg.x+10), int(mg.y+5))

	graphY := mg.y + 25
	graphHeight := mg.height - 30
	yFor := func(v float64) float32 {
		return graphY + graphHeight*(1-scale(v))
	}

	// Grid por década
	for exp := graphMinExp; exp <= graphMaxExp; exp++ {
		lineY := yFor(math.Pow(10, exp))
		vector.StrokeLine(screen, mg.x, lineY, mg.x+mg.width, lineY, 1, mg.colorGrid, false)
		ebitenutil.DebugPrintAt(screen, fmt.Sprintf("1e%d", int(exp)), int(mg.x+5), int(lineY-5))
	}

	// Umbrales activos
	for _, th := range []struct {
		activity har.Activity
		value    float64
	}{
		{har.ActivityIdle, t.Idle},
		{har.ActivityStanding, t.Standing},
		{har.ActivityWalking, t.Walking},
		{har.ActivityRunning, t.Running},
	} {
		if th.value <= 0 {
			continue
		}
		lineY := yFor(th.value)
		vector.StrokeLine(screen, mg.x+35, lineY, mg.x+mg.width, lineY, 1, activityColor(th.activity), false)
	}

	if len(mg.history) < 2 {
		return
	}

	graphWidth := mg.width - 40
	pointSpacing := graphWidth / float32(mg.maxPoints-1)

	for i := 0; i < len(mg.history)-1; i++ {
		p1, p2 := mg.history[i], mg.history[i+1]
		x1 := mg.x + 35 + float32(i)*pointSpacing
		x2 := mg.x + 35 + float32(i+1)*pointSpacing

		// El tramo toma el color de la actividad publicada
		vector.StrokeLine(screen, x1, yFor(p1.value), x2, yFor(p2.value), 2, activityColor(p2.activity), false)
	}

	current := mg.history[len(mg.history)-1]
	ebitenutil.DebugPrintAt(screen, fmt.Sprintf("Actual: %.4f", current.value), int(mg.x+mg.width-130), int(mg.y+5))
}
