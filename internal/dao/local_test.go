package dao

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alceccentric/mltd-borderbot/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLocal(t *testing.T) (string, *LocalCache, *LocalHistory) {
	tmp := t.TempDir()
	cache, history, err := NewLocalCache(tmp, "history")
	require.NoError(t, err)
	return tmp, cache, history
}

func TestLocalCache_LoadMissing(t *testing.T) {
	_, cache, _ := newLocal(t)
	_, err := cache.Load(context.Background(), LATEST_BORDER_KEY)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLocalCache_SaveThenLoad(t *testing.T) {
	_, cache, _ := newLocal(t)
	ctx := context.Background()

	require.NoError(t, cache.Save(ctx, CHANNELS_KEY, []byte(`[{"id":"1"}]`)))
	data, err := cache.Load(ctx, CHANNELS_KEY)
	require.NoError(t, err)
	assert.Equal(t, `[{"id":"1"}]`, string(data))

	// Full overwrite, no merge.
	require.NoError(t, cache.Save(ctx, CHANNELS_KEY, []byte(`[]`)))
	data, err = cache.Load(ctx, CHANNELS_KEY)
	require.NoError(t, err)
	assert.Equal(t, `[]`, string(data))
}

func TestLocalCache_NullIsNotMissing(t *testing.T) {
	_, cache, _ := newLocal(t)
	ctx := context.Background()

	require.NoError(t, SaveJSON(ctx, cache, PREVIOUS_BORDER_KEY, nil))
	var prev *models.StoredBorder
	err := LoadJSON(ctx, cache, PREVIOUS_BORDER_KEY, &prev)
	assert.NoError(t, err)
	assert.Nil(t, prev)
}

func TestLocalCache_SaveLeavesNoTempFiles(t *testing.T) {
	tmp, cache, _ := newLocal(t)
	require.NoError(t, cache.Save(context.Background(), LATEST_BORDER_KEY, []byte(`{}`)))

	entries, err := os.ReadDir(tmp)
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.HasSuffix(e.Name(), ".tmp"), "leftover %s", e.Name())
	}
}

func TestLocalCache_KeysStayInRoot(t *testing.T) {
	tmp, cache, _ := newLocal(t)
	require.NoError(t, cache.Save(context.Background(), "../escape.json", []byte(`{}`)))
	_, err := os.Stat(filepath.Join(tmp, "escape.json"))
	assert.NoError(t, err)
}

func TestLocalHistory_AppendWritesHeaderOnce(t *testing.T) {
	tmp, _, history := newLocal(t)
	ctx := context.Background()
	at := time.Date(2024, 5, 20, 12, 0, 0, 0, time.UTC)

	require.NoError(t, history.Append(ctx, 7, []models.BorderRow{{EventId: 7, Rank: 100, Score: 10, AggregatedAt: at}}))
	require.NoError(t, history.Append(ctx, 7, []models.BorderRow{{EventId: 7, Rank: 100, Score: 20, AggregatedAt: at.Add(30 * time.Minute)}}))

	data, err := os.ReadFile(filepath.Join(tmp, "history", "border_history_7.csv"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "event_id,rank,score,aggregated_at", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "7,100,10,"))
	assert.True(t, strings.HasPrefix(lines[2], "7,100,20,"))
}

func TestLocalHistory_AppendEmpty(t *testing.T) {
	_, _, history := newLocal(t)
	assert.NoError(t, history.Append(context.Background(), 1, nil))
}

func TestSave_HeaderFollowsAppendFlag(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rows.csv")
	rows := []models.BorderRow{{EventId: 1, Rank: 10, Score: 5}}

	require.NoError(t, save(path, rows, false))
	require.NoError(t, save(path, rows, true))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(string(data), "event_id"))
	assert.Len(t, strings.Split(strings.TrimSpace(string(data)), "\n"), 3)

	// Without append the file is rewritten from a fresh header.
	require.NoError(t, save(path, rows, false))
	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Len(t, strings.Split(strings.TrimSpace(string(data)), "\n"), 2)
}
