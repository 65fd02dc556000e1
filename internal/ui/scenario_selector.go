package ui

import (
	"image/color"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/hajimehoshi/ebiten/v2/vector"
)

// ScenarioOption representa una opción de escenario
type ScenarioOption struct {
	ID   string
	Name string
}

// ScenarioSelector es un dropdown para seleccionar escenarios. Se abre
// hacia arriba porque vive en la barra inferior.
type ScenarioSelector struct {
	x      float32
	y      float32
	width  float32
	height float32

	options       []ScenarioOption
	selectedIndex int
	isOpen        bool
	hoveredIndex  int

	// Colores
	colorBg         color.RGBA
	colorBgHover    color.RGBA
	colorBorder     color.RGBA
	colorDropdownBg color.RGBA
}

// NewScenarioSelector crea un nuevo selector con las opciones descubiertas
func NewScenarioSelector(x, y, width, height float32, options []ScenarioOption) *ScenarioSelector {
	return &ScenarioSelector{
		x:               x,
		y:               y,
		width:           width,
		height:          height,
		options:         options,
		selectedIndex:   -1,
		hoveredIndex:    -1,
		colorBg:         color.RGBA{60, 60, 80, 255},
		colorBgHover:    color.RGBA{80, 80, 100, 255},
		colorBorder:     color.RGBA{100, 100, 120, 255},
		colorDropdownBg: color.RGBA{40, 40, 60, 255},
	}
}

// optionY posición vertical de la opción i (la última queda junto al botón)
func (ss *ScenarioSelector) optionY(i int) float32 {
	reverseIndex := len(ss.options) - 1 - i
	return ss.y - float32(reverseIndex+1)*ss.height
}

// optionAt retorna la opción bajo el cursor o -1
func (ss *ScenarioSelector) optionAt(mx, my float32) int {
	if mx < ss.x || mx > ss.x+ss.width {
		return -1
	}
	for i := range ss.options {
		optY := ss.optionY(i)
		if my >= optY && my <= optY+ss.height {
			return i
		}
	}
	return -1
}

// Update actualiza el selector
func (ss *ScenarioSelector) Update() (changed bool, selectedID string) {
	if len(ss.options) == 0 {
		return false, ""
	}

	mouseX, mouseY := ebiten.CursorPosition()
	mx := float32(mouseX)
	my := float32(mouseY)

	if inpututil.IsMouseButtonJustPressed(ebiten.MouseButtonLeft) {
		// Click en el selector principal
		if mx >= ss.x && mx <= ss.x+ss.width &&
			my >= ss.y && my <= ss.y+ss.height {
			ss.isOpen = !ss.isOpen
			return false, ""
		}

		if ss.isOpen {
			ss.isOpen = false
			if i := ss.optionAt(mx, my); i >= 0 && i != ss.selectedIndex {
				ss.selectedIndex = i
				return true, ss.options[i].ID
			}
		}
	}

	ss.hoveredIndex = -1
	if ss.isOpen {
		ss.hoveredIndex = ss.optionAt(mx, my)
	}

	return false, ""
}

// Draw dibuja el selector
func (ss *ScenarioSelector) Draw(screen *ebiten.Image) {
	btnColor := ss.colorBg
	if ss.isOpen {
		btnColor = ss.colorBgHover
	}

	vector.DrawFilledRect(screen, ss.x, ss.y, ss.width, ss.height, btnColor, false)
	vector.StrokeRect(screen, ss.x, ss.y, ss.width, ss.height, 2, ss.colorBorder, false)

	text := "Elegir escenario"
	if ss.selectedIndex >= 0 {
		text = ss.options[ss.selectedIndex].Name
	}
	arrow := "v"
	if ss.isOpen {
		arrow = "^"
	}
	ebitenutil.DebugPrintAt(screen, text+" "+arrow, int(ss.x+10), int(ss.y+10))

	if !ss.isOpen {
		return
	}

	for i, opt := range ss.options {
		optY := ss.optionY(i)

		optColor := ss.colorDropdownBg
		if i == ss.hoveredIndex {
			optColor = ss.colorBgHover
		}

		vector.DrawFilledRect(screen, ss.x, optY, ss.width, ss.height, optColor, false)
		vector.StrokeRect(screen, ss.x, optY, ss.width, ss.height, 1, ss.colorBorder, false)

		prefix := "  "
		if i == ss.selectedIndex {
			prefix = "* "
		}
		ebitenutil.DebugPrintAt(screen, prefix+opt.Name, int(ss.x+10), int(optY+10))
	}
}

// GetSelectedID retorna el ID del escenario seleccionado ("" sin selección)
func (ss *ScenarioSelector) GetSelectedID() string {
	if ss.selectedIndex < 0 {
		return ""
	}
	return ss.options[ss.selectedIndex].ID
}

// SetSelected establece la selección por ID
func (ss *ScenarioSelector) SetSelected(id string) {
	for i, opt := range ss.options {
		if opt.ID == id {
			ss.selectedIndex = i
			return
		}
	}
}
