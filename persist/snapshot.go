package persist

import (
	"github.com/saiset-co/sai-feed/cache"
	"github.com/saiset-co/sai-feed/types"
	"github.com/saiset-co/sai-feed/utils"
)

// Dehydrate encodes the data of every successful entry among keys.
// Entries without data are skipped.
func Dehydrate(store *cache.Store, keys ...cache.Key) ([]types.PersistedEntry, error) {
	entries := make([]types.PersistedEntry, 0, len(keys))
	for _, key := range keys {
		entry, ok := store.Get(key)
		if !ok || !entry.HasData() || entry.UpdatedAt.IsZero() {
			continue
		}

		data, err := utils.Marshal(entry.Data)
		if err != nil {
			return nil, types.WrapError(err, "failed to encode cache entry "+key.String())
		}

		entries = append(entries, types.PersistedEntry{
			Key:       key.String(),
			Data:      data,
			UpdatedAt: entry.UpdatedAt,
		})
	}
	return entries, nil
}

// Restore hydrates key from the matching persisted entry, decoding it as T.
func Restore[T any](store *cache.Store, key cache.Key, entries []types.PersistedEntry) (bool, error) {
	for _, entry := range entries {
		if entry.Key != key.String() {
			continue
		}

		var data T
		if err := utils.Unmarshal(entry.Data, &data); err != nil {
			return false, types.WrapError(err, "failed to decode cache entry "+entry.Key)
		}

		return store.Hydrate(key, data, entry.UpdatedAt), nil
	}
	return false, nil
}
