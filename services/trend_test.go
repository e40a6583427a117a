package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"golden-seed/models"
	"golden-seed/repository"
)

func TestTrendProjectsRunsChronologically(t *testing.T) {
	store := repository.NewMemoryStore()
	svc := NewTrendService(store, zaptest.NewLogger(t))
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, svc.Record(ctx, &models.ValidationRun{RunAt: base.Add(48 * time.Hour), GoldenSetSize: 12, PassRate: 0.75}))
	require.NoError(t, svc.Record(ctx, &models.ValidationRun{RunAt: base, GoldenSetSize: 10, PassRate: 0.5}))

	trend, err := svc.Trend(ctx, 0)
	require.NoError(t, err)
	require.Equal(t, 2, trend.Count)
	assert.Equal(t, base, trend.Runs[0].RunAt)
	assert.InDelta(t, 0.75, trend.LatestPassRate, 1e-9)
	assert.InDelta(t, 0.25, trend.PassRateDelta, 1e-9)
	assert.Equal(t, 0, trend.FinalSnapshots)
}

func TestTrendRecordValidates(t *testing.T) {
	svc := NewTrendService(repository.NewMemoryStore(), zaptest.NewLogger(t))
	err := svc.Record(context.Background(), &models.ValidationRun{PassRate: 1.5})
	assert.ErrorIs(t, err, ErrInvalidInput)
}
