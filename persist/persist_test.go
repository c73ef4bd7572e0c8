package persist

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/saiset-co/sai-feed/cache"
	"github.com/saiset-co/sai-feed/logger"
	"github.com/saiset-co/sai-feed/types"
)

type bundle struct {
	Name  string   `json:"name"`
	Posts []string `json:"posts"`
}

func newTestLogger() types.Logger {
	return logger.NewZapWrapper(zap.NewNop())
}

func TestDehydrateRestore_RoundTrip(t *testing.T) {
	source := cache.NewStore(newTestLogger())
	key := cache.NewKey("profile")
	_, err := source.Set(key, func(interface{}, bool) interface{} {
		return bundle{Name: "Budi", Posts: []string{"a", "b"}}
	})
	require.NoError(t, err)

	entries, err := Dehydrate(source, key, cache.NewKey("missing"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, key.String(), entries[0].Key)

	target := cache.NewStore(newTestLogger())
	restored, err := Restore[bundle](target, key, entries)
	require.NoError(t, err)
	assert.True(t, restored)

	entry, ok := target.Get(key)
	require.True(t, ok)
	assert.True(t, entry.Invalidated)
	data, ok := cache.Data[bundle](entry)
	require.True(t, ok)
	assert.Equal(t, "Budi", data.Name)
	assert.Equal(t, []string{"a", "b"}, data.Posts)
}

func TestRestore_BadPayload(t *testing.T) {
	key := cache.NewKey("profile")
	entries := []types.PersistedEntry{{Key: key.String(), Data: []byte("{"), UpdatedAt: time.Now()}}

	_, err := Restore[bundle](cache.NewStore(newTestLogger()), key, entries)
	assert.Error(t, err)
}

func TestCloverPersister_SaveLoadClear(t *testing.T) {
	persister, err := NewCloverPersister(newTestLogger(), &types.PersistConfig{
		Enabled: true,
		Type:    "clover",
		Config:  map[string]interface{}{"path": filepath.Join(t.TempDir(), "db")},
	})
	require.NoError(t, err)
	require.NoError(t, persister.Start())
	defer func() { _ = persister.Stop() }()

	at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	ctx := context.Background()

	require.NoError(t, persister.Save(ctx, []types.PersistedEntry{
		{Key: `["posts"]`, Data: []byte(`{"pages":[]}`), UpdatedAt: at},
	}))
	require.NoError(t, persister.Save(ctx, []types.PersistedEntry{
		{Key: `["posts"]`, Data: []byte(`{"pages":[1]}`), UpdatedAt: at.Add(time.Minute)},
	}))

	entries, err := persister.Load(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, `{"pages":[1]}`, string(entries[0].Data))
	assert.True(t, at.Add(time.Minute).Equal(entries[0].UpdatedAt))

	require.NoError(t, persister.Clear(ctx))
	entries, err = persister.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestNewPersister_Disabled(t *testing.T) {
	_, err := NewPersister(context.Background(), newTestLogger(), &types.PersistConfig{})
	assert.ErrorIs(t, err, types.ErrPersistDisabled)

	_, err = NewPersister(context.Background(), newTestLogger(), &types.PersistConfig{Enabled: true, Type: "etcd"})
	assert.ErrorIs(t, err, types.ErrPersistTypeUnknown)
}

func TestNewRedisPersister_Unreachable(t *testing.T) {
	_, err := NewRedisPersister(context.Background(), newTestLogger(), &types.PersistConfig{
		Enabled: true,
		Type:    "redis",
		Config: &RedisConfig{
			Host:        "127.0.0.1",
			Port:        1,
			DialTimeout: 200 * time.Millisecond,
			KeyPrefix:   "test",
		},
	})
	assert.Error(t, err)
}
