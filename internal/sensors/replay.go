package sensors

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/MarcosBrindi/harmonitor/internal/eventbus"
	"github.com/MarcosBrindi/harmonitor/internal/har"
)

// ReadCSV lee una sesión grabada con columnas
// timestamp,ax,ay,az,gx,gy,gz. El timestamp es RFC3339 o milisegundos
// unix; la cabecera es opcional.
func ReadCSV(r io.Reader) ([]har.SensorSample, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 7
	cr.TrimLeadingSpace = true
	cr.Comment = '#'

	var samples []har.SensorSample
	for line := 1; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error leyendo csv: %w", err)
		}
		if line == 1 && strings.EqualFold(strings.TrimSpace(rec[0]), "timestamp") {
			continue
		}

		s, err := parseRecord(rec)
		if err != nil {
			return nil, fmt.Errorf("línea %d: %w", line, err)
		}
		samples = append(samples, s)
	}
	return samples, nil
}

func parseRecord(rec []string) (har.SensorSample, error) {
	ts, err := parseTimestamp(rec[0])
	if err != nil {
		return har.SensorSample{}, err
	}

	var v [6]float64
	for i := range v {
		// NaN se conserva: el motor la rechaza y la cuenta
		v[i], err = strconv.ParseFloat(strings.TrimSpace(rec[i+1]), 64)
		if err != nil {
			return har.SensorSample{}, fmt.Errorf("columna %d: %w", i+2, err)
		}
	}

	return har.SensorSample{
		AccelX: v[0], AccelY: v[1], AccelZ: v[2],
		GyroX: v[3], GyroY: v[4], GyroZ: v[5],
		Timestamp: ts,
	}, nil
}

func parseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.UnixMilli(ms).UTC(), nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("timestamp inválido %q", s)
	}
	return t, nil
}

// Replay publica las muestras en el bus. Con speed > 0 respeta el
// espaciado original dividido por speed; con 0 publica sin pausas.
func Replay(ctx context.Context, bus *eventbus.EventBus, samples []har.SensorSample, speed float64) (int, error) {
	sent := 0
	for i, s := range samples {
		if speed > 0 && i > 0 {
			gap := s.Timestamp.Sub(samples[i-1].Timestamp)
			if gap > 0 {
				timer := time.NewTimer(time.Duration(float64(gap) / speed))
				select {
				case <-ctx.Done():
					timer.Stop()
					return sent, ctx.Err()
				case <-timer.C:
				}
			}
		}

		if !bus.PublishBlocking(eventbus.NewSampleEvent(s), ctx.Done()) {
			if err := ctx.Err(); err != nil {
				return sent, err
			}
			return sent, errors.New("bus cerrado")
		}
		sent++
	}
	return sent, nil
}
