package cache

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/saiset-co/sai-feed/types"
)

type State int32

const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateStopping
)

const (
	DefaultGCTime     = 5 * time.Minute
	DefaultGCSchedule = "@every 1m"
)

// Collector periodically evicts entries nobody observes once they have been
// untouched for longer than the gc time.
type Collector struct {
	store           *Store
	logger          types.Logger
	cron            *cron.Cron
	schedule        string
	gcTime          time.Duration
	state           atomic.Value
	shutdownTimeout time.Duration
}

func NewCollector(store *Store, logger types.Logger, config *types.CacheConfig) *Collector {
	gcTime := DefaultGCTime
	schedule := DefaultGCSchedule
	if config != nil {
		if config.GCTime > 0 {
			gcTime = config.GCTime
		}
		if config.GCSchedule != "" {
			schedule = config.GCSchedule
		}
	}

	collector := &Collector{
		store:           store,
		logger:          logger,
		cron:            cron.New(cron.WithChain(cron.Recover(cronLogger{logger: logger}))),
		schedule:        schedule,
		gcTime:          gcTime,
		shutdownTimeout: 5 * time.Second,
	}

	collector.state.Store(StateStopped)

	return collector
}

func (c *Collector) Start() error {
	if !c.state.CompareAndSwap(StateStopped, StateStarting) {
		return types.ErrAlreadyRunning
	}

	if _, err := c.cron.AddFunc(c.schedule, func() { c.Collect() }); err != nil {
		c.state.Store(StateStopped)
		return types.WrapError(err, "failed to schedule cache collector")
	}

	c.cron.Start()
	c.state.Store(StateRunning)

	c.logger.Info("Cache collector started",
		zap.String("schedule", c.schedule),
		zap.Duration("gc_time", c.gcTime))

	return nil
}

func (c *Collector) Stop() error {
	if !c.state.CompareAndSwap(StateRunning, StateStopping) {
		return types.ErrNotRunning
	}
	defer c.state.Store(StateStopped)

	ctx, cancel := context.WithTimeout(context.Background(), c.shutdownTimeout)
	defer cancel()

	select {
	case <-c.cron.Stop().Done():
		c.logger.Info("Cache collector stopped")
		return nil
	case <-ctx.Done():
		c.logger.Warn("Cache collector stop timeout")
		return types.WrapError(ctx.Err(), "cache collector stop")
	}
}

func (c *Collector) IsRunning() bool {
	return c.state.Load().(State) == StateRunning
}

// Collect runs one eviction pass and reports how many entries were removed.
func (c *Collector) Collect() int {
	evicted := c.store.evict(c.store.now().Add(-c.gcTime))
	if evicted > 0 {
		c.logger.Debug("Evicted unused query entries", zap.Int("count", evicted))
	}
	return evicted
}

type cronLogger struct {
	logger types.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(msg, cronFields(keysAndValues)...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, append(cronFields(keysAndValues), zap.Error(err))...)
}

func cronFields(keysAndValues []interface{}) []zap.Field {
	fields := make([]zap.Field, 0, len(keysAndValues)/2)
	for i := 0; i < len(keysAndValues)-1; i += 2 {
		fields = append(fields, zap.Any(fmt.Sprint(keysAndValues[i]), keysAndValues[i+1]))
	}
	return fields
}
