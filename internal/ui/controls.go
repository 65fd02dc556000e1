package ui

import (
	"image/color"

	"github.com/MarcosBrindi/harmonitor/internal/har"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/hajimehoshi/ebiten/v2/vector"
)

// Action es una acción del teclado
type Action int

const (
	ActionNone Action = iota
	ActionTogglePause
	ActionSensitivityLow
	ActionSensitivityMedium
	ActionSensitivityHigh
	ActionImpact
	ActionNextMotion
	ActionRestartScenario
)

// Sensitivity retorna el nivel asociado a las acciones de sensibilidad
func (a Action) Sensitivity() float64 {
	switch a {
	case ActionSensitivityLow:
		return har.SensitivityLow
	case ActionSensitivityHigh:
		return har.SensitivityHigh
	default:
		return har.SensitivityMedium
	}
}

var keyBindings = []struct {
	key    ebiten.Key
	action Action
}{
	{ebiten.KeySpace, ActionTogglePause},
	{ebiten.Key1, ActionSensitivityLow},
	{ebiten.Key2, ActionSensitivityMedium},
	{ebiten.Key3, ActionSensitivityHigh},
	{ebiten.KeyI, ActionImpact},
	{ebiten.KeyM, ActionNextMotion},
	{ebiten.KeyR, ActionRestartScenario},
}

// Controls maneja los controles de la UI
type Controls struct {
	// Colores
	colorBg     color.Color
	colorBorder color.Color
}

// NewControls crea nuevos controles
func NewControls() *Controls {
	return &Controls{
		colorBg:     color.RGBA{30, 30, 40, 200},
		colorBorder: color.RGBA{100, 100, 120, 255},
	}
}

// Update retorna la acción de la tecla pulsada en este cuadro
func (c *Controls) Update() Action {
	for _, b := range keyBindings {
		if inpututil.IsKeyJustPressed(b.key) {
			return b.action
		}
	}
	return ActionNone
}

// Draw dibuja los controles
func (c *Controls) Draw(screen *ebiten.Image, paused bool) {
	width := float32(screen.Bounds().Dx())
	height := float32(screen.Bounds().Dy())

	// Panel de controles (parte inferior)
	panelY := height - 60
	vector.DrawFilledRect(screen, 0, panelY, width, 60, c.colorBg, false)
	vector.StrokeLine(screen, 0, panelY, width, panelY, 2, c.colorBorder, false)

	state := "[ESPACIO] pausa"
	if paused {
		state = "[ESPACIO] reanudar (PAUSADO)"
	}
	ebitenutil.DebugPrintAt(screen, state+"  [1/2/3] sensibilidad  [I] impacto  [M] movimiento  [R] reiniciar",
		20, int(panelY+20))
}
