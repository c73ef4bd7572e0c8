package mutation

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/saiset-co/sai-feed/cache"
	"github.com/saiset-co/sai-feed/notify"
	"github.com/saiset-co/sai-feed/types"
)

// Mutation describes one remote write and how it touches the cache around
// the call.
type Mutation[V any, R any] struct {
	Name string

	// Keys are snapshotted, with in-flight fetches cancelled, before
	// Optimistic runs.
	Keys []cache.Key

	// Optimistic writes the expected outcome through tx. Anything written
	// through tx is restored if the call fails.
	Optimistic func(tx *cache.Transaction, vars V) error

	Call func(ctx context.Context, vars V) (R, error)

	// OnSuccess reconciles the cache with the server result.
	OnSuccess func(vars V, result R)

	// OnSettled runs after success or failure.
	OnSettled func(vars V)

	Invalidate []cache.Key

	SuccessMessage string

	// ErrorMessage is shown when the error carries no message of its own.
	ErrorMessage string
}

type Option func(*Runner)

func WithMetrics(metrics types.MetricsManager) Option {
	return func(r *Runner) {
		r.metrics = metrics
	}
}

// Runner executes mutations against a store and reports their outcome to
// the user.
type Runner struct {
	store    *cache.Store
	notifier types.Notifier
	logger   types.Logger
	metrics  types.MetricsManager
	pending  map[string]int
	mu       sync.Mutex
}

func NewRunner(store *cache.Store, notifier types.Notifier, logger types.Logger, opts ...Option) *Runner {
	runner := &Runner{
		store:    store,
		notifier: notifier,
		logger:   logger,
		pending:  make(map[string]int),
	}

	for _, opt := range opts {
		opt(runner)
	}

	return runner
}

func (r *Runner) Store() *cache.Store {
	return r.store
}

// IsPending reports whether a mutation named name is waiting on its call.
func (r *Runner) IsPending(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.pending[name] > 0
}

// Run applies m for vars. On failure every entry written through the
// transaction is restored and the error is both returned and shown.
func Run[V any, R any](ctx context.Context, r *Runner, m Mutation[V, R], vars V) (R, error) {
	var zero R

	r.begin(m.Name)
	defer r.end(m.Name)

	if m.OnSettled != nil {
		defer m.OnSettled(vars)
	}

	tx := r.store.Begin(m.Keys...)

	if m.Optimistic != nil {
		if err := m.Optimistic(tx, vars); err != nil {
			r.fail(m.Name, tx, err, m.ErrorMessage)
			return zero, err
		}
	}

	result, err := m.Call(ctx, vars)
	if err != nil {
		r.fail(m.Name, tx, err, m.ErrorMessage)
		return zero, err
	}

	if err := tx.Commit(); err != nil {
		r.logger.Warn("Mutation transaction already finished", zap.String("mutation", m.Name), zap.Error(err))
	}

	if m.OnSuccess != nil {
		m.OnSuccess(vars, result)
	}

	if len(m.Invalidate) > 0 {
		r.store.Invalidate(m.Invalidate...)
	}

	if m.SuccessMessage != "" && r.notifier != nil {
		r.notifier.Success(m.SuccessMessage)
	}

	r.logger.Debug("Mutation succeeded", zap.String("mutation", m.Name))
	r.record(m.Name, "success")
	return result, nil
}

func (r *Runner) fail(name string, tx *cache.Transaction, err error, fallback string) {
	keys := tx.Keys()
	if rollbackErr := tx.Rollback(); rollbackErr != nil {
		r.logger.Error("Mutation rollback failed", zap.String("mutation", name), zap.Error(rollbackErr))
	}

	r.logger.Warn("Mutation failed",
		zap.String("mutation", name),
		zap.Int("restored_keys", len(keys)),
		zap.Error(err))

	message := notify.ErrorMessage(err, fallback)
	if message != "" && r.notifier != nil {
		r.notifier.Error(message)
	}

	r.record(name, "error")
}

func (r *Runner) begin(name string) {
	r.mu.Lock()
	r.pending[name]++
	count := r.pending[name]
	r.mu.Unlock()

	if r.metrics != nil {
		r.metrics.Gauge("mutations_pending", map[string]string{"name": name}).Set(float64(count))
	}
}

func (r *Runner) end(name string) {
	r.mu.Lock()
	r.pending[name]--
	count := r.pending[name]
	if count <= 0 {
		delete(r.pending, name)
	}
	r.mu.Unlock()

	if r.metrics != nil {
		r.metrics.Gauge("mutations_pending", map[string]string{"name": name}).Set(float64(count))
	}
}

func (r *Runner) record(name, result string) {
	if r.metrics == nil {
		return
	}

	r.metrics.Counter("mutations_total", map[string]string{
		"name":   name,
		"result": result,
	}).Inc()
}
