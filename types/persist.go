package types

import (
	"context"
	"time"
)

// PersistedEntry is a dehydrated query cache entry. Data holds the JSON
// encoding of the cached value.
type PersistedEntry struct {
	Key       string    `json:"key"`
	Data      []byte    `json:"data"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Persister interface {
	LifecycleManager
	Save(ctx context.Context, entries []PersistedEntry) error
	Load(ctx context.Context) ([]PersistedEntry, error)
	Clear(ctx context.Context) error
}

type PersisterCreator func(config interface{}) (Persister, error)
