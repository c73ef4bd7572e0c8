package persist

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/ostafen/clover"
	"go.uber.org/zap"

	"github.com/saiset-co/sai-feed/types"
	"github.com/saiset-co/sai-feed/utils"
)

const defaultCollection = "query_cache"

type CloverConfig struct {
	Path       string `json:"path"`
	Collection string `json:"collection"`
}

type CloverPersister struct {
	db      *clover.DB
	logger  types.Logger
	config  *CloverConfig
	started int32
}

func NewCloverPersister(logger types.Logger, config *types.PersistConfig) (*CloverPersister, error) {
	var cloverConfig = &CloverConfig{
		Path:       "./data/query_cache",
		Collection: defaultCollection,
	}

	if config.Config != nil {
		err := utils.UnmarshalConfig(config.Config, cloverConfig)
		if err != nil {
			return nil, types.WrapError(err, "failed to unmarshal clover persist config")
		}
	}

	if cloverConfig.Collection == "" {
		cloverConfig.Collection = defaultCollection
	}

	db, err := clover.Open(cloverConfig.Path)
	if err != nil {
		return nil, types.WrapError(err, "failed to open CloverDB")
	}

	return &CloverPersister{
		db:     db,
		logger: logger,
		config: cloverConfig,
	}, nil
}

func (c *CloverPersister) Start() error {
	if !atomic.CompareAndSwapInt32(&c.started, 0, 1) {
		return types.ErrAlreadyRunning
	}

	if err := c.ensureCollection(); err != nil {
		atomic.StoreInt32(&c.started, 0)
		return err
	}

	c.logger.Info("Clover persister started", zap.String("path", c.config.Path))
	return nil
}

func (c *CloverPersister) Stop() error {
	if !atomic.CompareAndSwapInt32(&c.started, 1, 0) {
		return types.ErrNotRunning
	}

	if err := c.db.Close(); err != nil {
		return types.WrapError(err, "failed to close CloverDB")
	}

	c.logger.Info("Clover persister stopped")
	return nil
}

func (c *CloverPersister) IsRunning() bool {
	return atomic.LoadInt32(&c.started) == 1
}

// Save replaces the stored snapshot of each entry's key.
func (c *CloverPersister) Save(ctx context.Context, entries []types.PersistedEntry) error {
	if len(entries) == 0 {
		return nil
	}

	if err := c.ensureCollection(); err != nil {
		return err
	}

	docs := make([]*clover.Document, 0, len(entries))
	for _, entry := range entries {
		err := c.db.Query(c.config.Collection).Where(clover.Field("key").Eq(entry.Key)).Delete()
		if err != nil {
			return types.Errorf(types.ErrPersistFailed, "clover delete %s: %v", entry.Key, err)
		}

		doc := clover.NewDocument()
		doc.Set("key", entry.Key)
		doc.Set("data", string(entry.Data))
		doc.Set("updated_at", entry.UpdatedAt.UTC().Format(time.RFC3339Nano))
		docs = append(docs, doc)
	}

	if err := c.db.Insert(c.config.Collection, docs...); err != nil {
		return types.Errorf(types.ErrPersistFailed, "clover insert: %v", err)
	}

	c.logger.Debug("Query snapshot saved", zap.Int("entries", len(entries)))
	return nil
}

func (c *CloverPersister) Load(ctx context.Context) ([]types.PersistedEntry, error) {
	exists, err := c.db.HasCollection(c.config.Collection)
	if err != nil {
		return nil, types.WrapError(err, "failed to check collection existence")
	}

	if !exists {
		return nil, nil
	}

	docs, err := c.db.Query(c.config.Collection).FindAll()
	if err != nil {
		return nil, types.Errorf(types.ErrPersistFailed, "clover find: %v", err)
	}

	entries := make([]types.PersistedEntry, 0, len(docs))
	for _, doc := range docs {
		updatedAt, err := time.Parse(time.RFC3339Nano, fmt.Sprint(doc.Get("updated_at")))
		if err != nil {
			c.logger.Warn("Skipping persisted entry with bad timestamp", zap.Any("key", doc.Get("key")), zap.Error(err))
			continue
		}

		entries = append(entries, types.PersistedEntry{
			Key:       fmt.Sprint(doc.Get("key")),
			Data:      []byte(fmt.Sprint(doc.Get("data"))),
			UpdatedAt: updatedAt,
		})
	}

	return entries, nil
}

func (c *CloverPersister) Clear(ctx context.Context) error {
	exists, err := c.db.HasCollection(c.config.Collection)
	if err != nil {
		return types.WrapError(err, "failed to check collection existence")
	}

	if !exists {
		return nil
	}

	if err := c.db.Query(c.config.Collection).Delete(); err != nil {
		return types.Errorf(types.ErrPersistFailed, "clover clear: %v", err)
	}
	return nil
}

func (c *CloverPersister) ensureCollection() error {
	exists, err := c.db.HasCollection(c.config.Collection)
	if err != nil {
		return types.WrapError(err, "failed to check collection existence")
	}

	if exists {
		return nil
	}

	if err := c.db.CreateCollection(c.config.Collection); err != nil {
		return types.WrapError(err, "failed to create collection")
	}
	return nil
}
