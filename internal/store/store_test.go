package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/MarcosBrindi/harmonitor/internal/har"
	"github.com/MarcosBrindi/harmonitor/internal/settings"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "nested", "har.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSensitivityRoundTrip(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()

	_, err := s.Sensitivity(ctx)
	assert.ErrorIs(t, err, settings.ErrNoSettings)

	require.NoError(t, s.SetSensitivity(ctx, 0.8))
	require.NoError(t, s.SetSensitivity(ctx, 1.7))

	v, err := s.Sensitivity(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1.0, v)

	var _ settings.Provider = s
}

func TestAnomalyJournal(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()
	base := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		id, err := s.InsertAnomaly(ctx, AnomalyRecord{
			DeviceID:      "W1",
			Type:          har.AnomalySuddenStop,
			Severity:      har.SeverityHigh,
			DetectedAt:    base.Add(time.Duration(i) * time.Minute),
			DropRatio:     0.95,
			Activity:      har.ActivityIdle,
			TotalMovement: 0.001,
		})
		require.NoError(t, err)
		assert.NotEqual(t, uuid.Nil, id)
	}

	recs, err := s.RecentAnomalies(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, base.Add(2*time.Minute), recs[0].DetectedAt)
	assert.Equal(t, base.Add(time.Minute), recs[1].DetectedAt)
	assert.Equal(t, har.AnomalySuddenStop, recs[0].Type)
	assert.Equal(t, har.ActivityIdle, recs[0].Activity)
	assert.Equal(t, "W1", recs[0].DeviceID)
}

func TestInsertAnomalyKeepsGivenID(t *testing.T) {
	s := openTemp(t)
	id := uuid.New()

	got, err := s.InsertAnomaly(context.Background(), AnomalyRecord{ID: id, DetectedAt: time.Now()})
	require.NoError(t, err)
	assert.Equal(t, id, got)

	_, err = s.InsertAnomaly(context.Background(), AnomalyRecord{ID: id, DetectedAt: time.Now()})
	assert.Error(t, err, "id duplicado")
}

func TestReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "har.db")
	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.SetSensitivity(context.Background(), 0.3))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()

	v, err := s.Sensitivity(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 0.3, v, 1e-9)
}
