package ui

import (
	"fmt"
	"image/color"
	"time"

	"github.com/MarcosBrindi/harmonitor/internal/config"
	"github.com/MarcosBrindi/harmonitor/internal/eventbus"
	"github.com/MarcosBrindi/harmonitor/internal/har"
	"github.com/MarcosBrindi/harmonitor/internal/monitor"
	"github.com/MarcosBrindi/harmonitor/internal/sensors"
	"github.com/MarcosBrindi/harmonitor/internal/settings"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/vector"
)

// Frame es la instantánea que se dibuja en cada cuadro
type Frame struct {
	State        har.ActivityState
	Sample       har.SensorSample
	Motion       sensors.Motion
	Sensitivity  eventbus.SensitivityData
	Summary      monitor.Summary
	Anomaly      *eventbus.AnomalyEvent
	ScenarioName string
	Progress     float64
	Paused       bool
}

// ActivityView muestra el estado de actividad del portador
type ActivityView struct {
	config *config.Config

	// Colores
	colorTrack   color.Color
	colorText    color.Color
	colorPanelBg color.Color
	colorAlert   color.Color
}

// NewActivityView crea una nueva vista de actividad
func NewActivityView(cfg *config.Config) *ActivityView {
	return &ActivityView{
		config:       cfg,
		colorTrack:   color.RGBA{100, 100, 120, 255},
		colorText:    color.RGBA{255, 255, 255, 255},
		colorPanelBg: color.RGBA{30, 30, 40, 200},
		colorAlert:   color.RGBA{220, 40, 40, 255},
	}
}

// Draw dibuja la vista de actividad
func (av *ActivityView) Draw(screen *ebiten.Image, f Frame) {
	width := float32(av.config.UI.Window.Width)

	av.drawScenario(screen, f.ScenarioName, f.Progress)
	av.drawActivityPanel(screen, 20, 140, f.State)
	av.drawIMUPanel(screen, 340, 140, f.Sample, f.Motion)
	av.drawSensitivityPanel(screen, 660, 140, f.Sensitivity)
	av.drawSessionPanel(screen, width-300, 140, f.Summary)

	if f.Anomaly != nil {
		av.drawAnomalyBanner(screen, *f.Anomaly)
	}
}

// drawScenario dibuja la barra de progreso del escenario
func (av *ActivityView) drawScenario(screen *ebiten.Image, name string, progress float64) {
	width := float32(av.config.UI.Window.Width)

	barX := float32(100)
	barY := float32(60)
	barLength := width - 200

	if name == "" {
		ebitenutil.DebugPrintAt(screen, "Sin escenario: control manual (M cambia movimiento)", int(barX), int(barY))
		return
	}

	vector.DrawFilledRect(screen, barX, barY, barLength*float32(progress), 10, activityColor(har.ActivityWalking), false)
	vector.StrokeRect(screen, barX, barY, barLength, 10, 2, av.colorTrack, false)

	progressText := fmt.Sprintf("Escenario: %s | Progreso: %.0f%%", name, progress*100)
	ebitenutil.DebugPrintAt(screen, progressText, int(barX), int(barY+20))
}

// drawActivityPanel dibuja la actividad publicada y su confianza
func (av *ActivityView) drawActivityPanel(screen *ebiten.Image, x, y float32, state har.ActivityState) {
	vector.DrawFilledRect(screen, x, y, 300, 160, av.colorPanelBg, false)
	vector.StrokeRect(screen, x, y, 300, 160, 2, activityColor(state.Activity), false)

	ebitenutil.DebugPrintAt(screen, "ACTIVIDAD", int(x+10), int(y+10))

	// Indicador de color
	vector.DrawFilledCircle(screen, x+25, y+50, 12, activityColor(state.Activity), false)

	label := state.Activity.String()
	if !state.IsActive {
		label += " (inactivo)"
	}
	ebitenutil.DebugPrintAt(screen, label, int(x+45), int(y+43))

	// Barra de confianza
	yOffset := y + 80
	vector.DrawFilledRect(screen, x+10, yOffset, 280*float32(state.Confidence), 10, activityColor(state.Activity), false)
	vector.StrokeRect(screen, x+10, yOffset, 280, 10, 1, av.colorTrack, false)
	ebitenutil.DebugPrintAt(screen, fmt.Sprintf("Confianza: %.0f%%", state.Confidence*100), int(x+10), int(yOffset+15))

	ebitenutil.DebugPrintAt(screen, fmt.Sprintf("Movimiento total: %.4f", state.TotalMovement), int(x+10), int(yOffset+40))
}

// drawIMUPanel dibuja la última muestra del IMU
func (av *ActivityView) drawIMUPanel(screen *ebiten.Image, x, y float32, s har.SensorSample, motion sensors.Motion) {
	vector.DrawFilledRect(screen, x, y, 300, 160, av.colorPanelBg, false)
	vector.StrokeRect(screen, x, y, 300, 160, 2, av.colorTrack, false)

	ebitenutil.DebugPrintAt(screen, "IMU", int(x+10), int(y+10))

	yOffset := int(y + 35)
	ebitenutil.DebugPrintAt(screen, fmt.Sprintf("Accel X/Y/Z: %6.2f %6.2f %6.2f", s.AccelX, s.AccelY, s.AccelZ), int(x+10), yOffset)
	yOffset += 20
	ebitenutil.DebugPrintAt(screen, fmt.Sprintf("Gyro  X/Y/Z: %6.2f %6.2f %6.2f", s.GyroX, s.GyroY, s.GyroZ), int(x+10), yOffset)
	yOffset += 20
	ebitenutil.DebugPrintAt(screen, fmt.Sprintf("Magnitud accel: %.2f m/s2", s.AccelMagnitude()), int(x+10), yOffset)
	yOffset += 30
	ebitenutil.DebugPrintAt(screen, fmt.Sprintf("Movimiento simulado: %s", motion), int(x+10), yOffset)
}

// drawSensitivityPanel dibuja la sensibilidad y los umbrales activos
func (av *ActivityView) drawSensitivityPanel(screen *ebiten.Image, x, y float32, data eventbus.SensitivityData) {
	vector.DrawFilledRect(screen, x, y, 280, 160, av.colorPanelBg, false)
	vector.StrokeRect(screen, x, y, 280, 160, 2, av.colorTrack, false)

	ebitenutil.DebugPrintAt(screen, fmt.Sprintf("SENSIBILIDAD: %s (%.2f)", settings.FormatSensitivity(data.Sensitivity), data.Sensitivity), int(x+10), int(y+10))

	t := data.Thresholds
	rows := []struct {
		activity har.Activity
		value    float64
	}{
		{har.ActivityIdle, t.Idle},
		{har.ActivityStanding, t.Standing},
		{har.ActivityWalking, t.Walking},
		{har.ActivityRunning, t.Running},
	}

	yOffset := y + 40
	for _, r := range rows {
		vector.DrawFilledRect(screen, x+10, yOffset+3, 8, 8, activityColor(r.activity), false)
		ebitenutil.DebugPrintAt(screen, fmt.Sprintf("%-9s %.4f", r.activity, r.value), int(x+25), int(yOffset))
		yOffset += 20
	}
	if data.Source != "" {
		ebitenutil.DebugPrintAt(screen, "origen: "+data.Source, int(x+10), int(yOffset+5))
	}
}

// drawSessionPanel dibuja el resumen de la sesión
func (av *ActivityView) drawSessionPanel(screen *ebiten.Image, x, y float32, s monitor.Summary) {
	vector.DrawFilledRect(screen, x, y, 280, 160, av.colorPanelBg, false)
	vector.StrokeRect(screen, x, y, 280, 160, 2, av.colorTrack, false)

	ebitenutil.DebugPrintAt(screen, "SESIÓN", int(x+10), int(y+10))

	yOffset := int(y + 35)
	for _, a := range []har.Activity{har.ActivityIdle, har.ActivityStanding, har.ActivityWalking, har.ActivityRunning} {
		ebitenutil.DebugPrintAt(screen, fmt.Sprintf("%-9s %s", a, s.Durations[a].Round(time.Second)), int(x+10), yOffset)
		yOffset += 18
	}
	yOffset += 5
	ebitenutil.DebugPrintAt(screen, fmt.Sprintf("Transiciones: %d | Anomalías: %d", s.Transitions, s.Anomalies), int(x+10), yOffset)
	yOffset += 18
	dominant, d := s.Dominant()
	ebitenutil.DebugPrintAt(screen, fmt.Sprintf("Dominante: %s (%s)", dominant, d.Round(time.Second)), int(x+10), yOffset)
}

// drawAnomalyBanner dibuja el aviso de parada súbita
func (av *ActivityView) drawAnomalyBanner(screen *ebiten.Image, ev eventbus.AnomalyEvent) {
	width := float32(av.config.UI.Window.Width)

	vector.DrawFilledRect(screen, 20, 95, width-40, 30, av.colorAlert, false)
	msg := fmt.Sprintf("ALERTA %s (%s) caída %.0f%% a las %s",
		ev.Anomaly.Type, ev.Anomaly.Severity, ev.Anomaly.DropRatio*100, ev.Anomaly.DetectedAt.Format("15:04:05"))
	ebitenutil.DebugPrintAt(screen, msg, 30, 103)
}

// activityColor retorna el color asignado a cada actividad
func activityColor(a har.Activity) color.RGBA {
	switch a {
	case har.ActivityIdle:
		return color.RGBA{120, 120, 140, 255}
	case har.ActivityStanding:
		return color.RGBA{80, 160, 255, 255}
	case har.ActivityWalking:
		return color.RGBA{0, 200, 100, 255}
	case har.ActivityRunning:
		return color.RGBA{255, 160, 0, 255}
	default:
		return color.RGBA{200, 200, 200, 255}
	}
}
