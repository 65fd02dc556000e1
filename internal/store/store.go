// Package store guarda la sensibilidad elegida y el diario de anomalías en SQLite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/MarcosBrindi/harmonitor/internal/har"
	"github.com/MarcosBrindi/harmonitor/internal/settings"
	"github.com/google/uuid"

	_ "modernc.org/sqlite" // driver SQLite
)

const sensitivityKey = "sensitivity"

// timeLayout de ancho fijo para que el orden de texto coincida con el temporal
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store envuelve el acceso a SQLite
type Store struct {
	db *sql.DB
}

// AnomalyRecord fila del diario de anomalías
type AnomalyRecord struct {
	ID            uuid.UUID
	DeviceID      string
	Type          har.AnomalyType
	Severity      har.Severity
	DetectedAt    time.Time
	DropRatio     float64
	Activity      har.Activity
	TotalMovement float64
}

// Open abre o crea la base y aplica las migraciones
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// una sola conexión evita SQLITE_BUSY entre el monitor y el grabador
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("error migrando %s: %w", path, err)
	}
	return s, nil
}

// Close cierra la base
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value REAL NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS anomalies (
			id TEXT PRIMARY KEY,
			device_id TEXT NOT NULL,
			type TEXT NOT NULL,
			severity TEXT NOT NULL,
			detected_at TEXT NOT NULL,
			drop_ratio REAL NOT NULL,
			activity TEXT NOT NULL,
			total_movement REAL NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_anomalies_detected_at ON anomalies(detected_at);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// SetSensitivity guarda la sensibilidad (recortada a [0,1])
func (s *Store) SetSensitivity(ctx context.Context, v float64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		sensitivityKey,
		har.ClampSensitivity(v),
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	return err
}

// Sensitivity implementa settings.Provider
func (s *Store) Sensitivity(ctx context.Context) (float64, error) {
	var v float64
	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, sensitivityKey).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, settings.ErrNoSettings
	}
	if err != nil {
		return 0, err
	}
	return har.ClampSensitivity(v), nil
}

// InsertAnomaly agrega una anomalía al diario. Un ID cero se genera.
func (s *Store) InsertAnomaly(ctx context.Context, rec AnomalyRecord) (uuid.UUID, error) {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO anomalies (id, device_id, type, severity, detected_at, drop_ratio, activity, total_movement)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID.String(),
		rec.DeviceID,
		string(rec.Type),
		string(rec.Severity),
		rec.DetectedAt.UTC().Format(timeLayout),
		rec.DropRatio,
		rec.Activity.String(),
		rec.TotalMovement,
	)
	if err != nil {
		return uuid.Nil, err
	}
	return rec.ID, nil
}

// RecentAnomalies retorna las últimas limit anomalías, la más reciente primero
func (s *Store) RecentAnomalies(ctx context.Context, limit int) ([]AnomalyRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, device_id, type, severity, detected_at, drop_ratio, activity, total_movement
		 FROM anomalies ORDER BY detected_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []AnomalyRecord
	for rows.Next() {
		var rec AnomalyRecord
		var id, typ, sev, at, activity string
		if err := rows.Scan(&id, &rec.DeviceID, &typ, &sev, &at, &rec.DropRatio, &activity, &rec.TotalMovement); err != nil {
			return nil, err
		}
		if rec.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("id inválido %q: %w", id, err)
		}
		if rec.DetectedAt, err = time.Parse(timeLayout, at); err != nil {
			return nil, fmt.Errorf("fecha inválida %q: %w", at, err)
		}
		if rec.Activity, err = har.ParseActivity(activity); err != nil {
			return nil, err
		}
		rec.Type = har.AnomalyType(typ)
		rec.Severity = har.Severity(sev)
		out = append(out, rec)
	}
	return out, rows.Err()
}
