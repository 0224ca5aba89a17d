package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fslongjin/billsync/pkg/model"
)

func TestAutoSyncStoreDefaults(t *testing.T) {
	initTestDB(t)
	cfg, err := NewAutoSyncStore().Get(context.Background())
	require.NoError(t, err)
	assert.False(t, cfg.Enabled)
	assert.Equal(t, DefaultFrequencySeconds, cfg.FrequencySeconds)
	assert.Zero(t, cfg.ID)
}

func TestAutoSyncStoreReplaceKeepsSingleRow(t *testing.T) {
	initTestDB(t)
	ctx := context.Background()
	s := NewAutoSyncStore()
	next := time.Date(2025, 3, 1, 12, 0, 5, 500_000_000, time.UTC)

	require.NoError(t, s.Replace(ctx, &model.AutoSyncConfig{Enabled: true, FrequencySeconds: 5, NextSyncTime: &next}))
	require.NoError(t, s.Replace(ctx, &model.AutoSyncConfig{Enabled: true, FrequencySeconds: 60, NextSyncTime: &next}))

	var rows int
	require.NoError(t, DB.QueryRow(`SELECT COUNT(*) FROM auto_sync_config`).Scan(&rows))
	assert.Equal(t, 1, rows)

	cfg, err := s.Get(ctx)
	require.NoError(t, err)
	assert.True(t, cfg.Enabled)
	assert.Equal(t, 60, cfg.FrequencySeconds)
	require.NotNil(t, cfg.NextSyncTime)
	assert.True(t, cfg.NextSyncTime.Equal(next))
	assert.Nil(t, cfg.LastSyncTime)
}

func TestAutoSyncStoreDueAndMarkSynced(t *testing.T) {
	initTestDB(t)
	ctx := context.Background()
	s := NewAutoSyncStore()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	next := now.Add(5500 * time.Millisecond)

	cfg := &model.AutoSyncConfig{Enabled: true, FrequencySeconds: 5, NextSyncTime: &next}
	require.NoError(t, s.Replace(ctx, cfg))

	due, err := s.Due(ctx, now)
	require.NoError(t, err)
	assert.Empty(t, due)

	due, err = s.Due(ctx, next)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, cfg.ID, due[0].ID)

	later := next.Add(5500 * time.Millisecond)
	require.NoError(t, s.MarkSynced(ctx, cfg.ID, next, later))

	got, err := s.Get(ctx)
	require.NoError(t, err)
	require.NotNil(t, got.LastSyncTime)
	assert.True(t, got.LastSyncTime.Equal(next))
	assert.True(t, got.NextSyncTime.Equal(later))

	require.NoError(t, s.SetNextSync(ctx, cfg.ID, now))
	due, err = s.Due(ctx, now)
	require.NoError(t, err)
	assert.Len(t, due, 1)
}

func TestAutoSyncStoreDisabledIsNeverDue(t *testing.T) {
	initTestDB(t)
	ctx := context.Background()
	s := NewAutoSyncStore()
	past := time.Now().Add(-time.Hour)

	require.NoError(t, s.Replace(ctx, &model.AutoSyncConfig{Enabled: false, FrequencySeconds: 10, NextSyncTime: &past}))
	due, err := s.Due(ctx, time.Now())
	require.NoError(t, err)
	assert.Empty(t, due)
}
