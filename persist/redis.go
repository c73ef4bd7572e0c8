package persist

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/saiset-co/sai-feed/types"
	"github.com/saiset-co/sai-feed/utils"
)

type RedisConfig struct {
	Host         string        `json:"host"`
	Port         int           `json:"port"`
	Password     string        `json:"password"`
	DB           int           `json:"db"`
	PoolSize     int           `json:"pool_size"`
	DialTimeout  time.Duration `json:"dial_timeout"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
	KeyPrefix    string        `json:"key_prefix"`
	TTL          time.Duration `json:"ttl"`
}

type RedisPersister struct {
	ctx     context.Context
	logger  types.Logger
	config  *RedisConfig
	client  *redis.Client
	started int32
}

func NewRedisPersister(ctx context.Context, logger types.Logger, config *types.PersistConfig) (*RedisPersister, error) {
	var redisConfig = &RedisConfig{
		Host:         "localhost",
		Port:         6379,
		PoolSize:     4,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		KeyPrefix:    "sai-feed:query",
		TTL:          24 * time.Hour,
	}

	if config.Config != nil {
		err := utils.UnmarshalConfig(config.Config, redisConfig)
		if err != nil {
			return nil, types.WrapError(err, "failed to unmarshal redis persist config")
		}
	}

	persister := &RedisPersister{
		ctx:    ctx,
		logger: logger,
		config: redisConfig,
		client: redis.NewClient(&redis.Options{
			Addr:         fmt.Sprintf("%s:%d", redisConfig.Host, redisConfig.Port),
			Password:     redisConfig.Password,
			DB:           redisConfig.DB,
			PoolSize:     redisConfig.PoolSize,
			DialTimeout:  redisConfig.DialTimeout,
			ReadTimeout:  redisConfig.ReadTimeout,
			WriteTimeout: redisConfig.WriteTimeout,
		}),
	}

	if err := persister.ping(); err != nil {
		_ = persister.client.Close()
		return nil, types.WrapError(err, "failed to connect to redis")
	}

	return persister, nil
}

func (r *RedisPersister) Start() error {
	if !atomic.CompareAndSwapInt32(&r.started, 0, 1) {
		return types.ErrAlreadyRunning
	}

	r.logger.Info("Redis persister started", zap.String("prefix", r.config.KeyPrefix))
	return nil
}

func (r *RedisPersister) Stop() error {
	if !atomic.CompareAndSwapInt32(&r.started, 1, 0) {
		return types.ErrNotRunning
	}

	if err := r.client.Close(); err != nil {
		r.logger.Error("Failed to close Redis client", zap.Error(err))
		return types.WrapError(err, "failed to close redis client")
	}

	r.logger.Info("Redis persister closed")
	return nil
}

func (r *RedisPersister) IsRunning() bool {
	return atomic.LoadInt32(&r.started) == 1
}

func (r *RedisPersister) Save(ctx context.Context, entries []types.PersistedEntry) error {
	if len(entries) == 0 {
		return nil
	}

	pipe := r.client.Pipeline()
	for _, entry := range entries {
		data, err := utils.Marshal(entry)
		if err != nil {
			return types.WrapError(err, "failed to marshal persisted entry")
		}
		pipe.Set(ctx, r.buildFullKey(entry.Key), data, r.config.TTL)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		r.logger.Error("Failed to save query snapshot", zap.Error(err))
		return types.Errorf(types.ErrPersistFailed, "redis save: %v", err)
	}

	r.logger.Debug("Query snapshot saved", zap.Int("entries", len(entries)))
	return nil
}

func (r *RedisPersister) Load(ctx context.Context) ([]types.PersistedEntry, error) {
	keys, err := r.scanKeys(ctx)
	if err != nil {
		return nil, err
	}

	if len(keys) == 0 {
		return nil, nil
	}

	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, types.Errorf(types.ErrPersistFailed, "redis mget: %v", err)
	}

	entries := make([]types.PersistedEntry, 0, len(values))
	for i, value := range values {
		raw, ok := value.(string)
		if !ok {
			continue
		}

		var entry types.PersistedEntry
		if err := utils.Unmarshal([]byte(raw), &entry); err != nil {
			r.logger.Warn("Dropping unreadable persisted entry", zap.String("key", keys[i]), zap.Error(err))
			r.client.Del(ctx, keys[i])
			continue
		}
		entries = append(entries, entry)
	}

	return entries, nil
}

func (r *RedisPersister) Clear(ctx context.Context) error {
	keys, err := r.scanKeys(ctx)
	if err != nil {
		return err
	}

	if len(keys) == 0 {
		return nil
	}

	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return types.Errorf(types.ErrPersistFailed, "redis del: %v", err)
	}
	return nil
}

func (r *RedisPersister) scanKeys(ctx context.Context) ([]string, error) {
	var keys []string
	iter := r.client.Scan(ctx, 0, r.buildFullKey("*"), 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, types.Errorf(types.ErrPersistFailed, "redis scan: %v", err)
	}
	return keys, nil
}

func (r *RedisPersister) ping() error {
	ctx, cancel := context.WithTimeout(r.ctx, r.config.DialTimeout)
	defer cancel()

	return r.client.Ping(ctx).Err()
}

func (r *RedisPersister) buildFullKey(key string) string {
	if r.config.KeyPrefix == "" {
		return key
	}
	return strings.Join([]string{r.config.KeyPrefix, key}, ":")
}
