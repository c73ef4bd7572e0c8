package cache

import (
	"context"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/saiset-co/sai-feed/types"
)

type Loader func(ctx context.Context) (interface{}, error)

type Updater func(old interface{}, ok bool) interface{}

type Listener func(entry Entry)

type Option func(*Store)

func WithMetrics(metrics types.MetricsManager) Option {
	return func(s *Store) {
		s.metrics = metrics
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

type record struct {
	entry      Entry
	generation uint64
	fetching   bool
	prevStatus Status
	listeners  map[uint64]Listener
}

type notification struct {
	entry     Entry
	listeners []Listener
}

// Store holds one Entry per Key. Listeners run synchronously on the
// goroutine that changed the entry, after the store lock is released.
type Store struct {
	logger     types.Logger
	metrics    types.MetricsManager
	now        func() time.Time
	records    map[string]*record
	generation uint64
	epoch      uint64
	listenerID uint64
	flights    singleflight.Group
	mu         sync.Mutex
}

func NewStore(logger types.Logger, opts ...Option) *Store {
	store := &Store{
		logger:  logger,
		now:     time.Now,
		records: make(map[string]*record),
	}

	for _, opt := range opts {
		opt(store)
	}

	return store
}

func (s *Store) Get(key Key) (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, exists := s.records[key.String()]
	if !exists || (rec.entry.Status == StatusIdle && !rec.entry.HasData()) {
		s.recordMetric("get", "miss")
		return Entry{Key: key}, false
	}

	s.recordMetric("get", "hit")
	return rec.entry, true
}

// Set replaces the entry data with the updater result. A nil result leaves
// the entry untouched.
func (s *Store) Set(key Key, updater Updater) (Entry, error) {
	return s.set(key, updater, 0, false)
}

// set applies updater like Set. A pinned write is dropped once Clear has
// moved the store past epoch.
func (s *Store) set(key Key, updater Updater, epoch uint64, pinned bool) (Entry, error) {
	if key.IsEmpty() {
		return Entry{}, types.ErrCacheKeyEmpty
	}

	s.mu.Lock()
	if pinned && s.epoch != epoch {
		entry := Entry{Key: key}
		if rec, exists := s.records[key.String()]; exists {
			entry = rec.entry
		}
		s.mu.Unlock()
		s.recordMetric("set", "stale")
		return entry, nil
	}
	rec := s.recordFor(key)
	next := updater(rec.entry.Data, rec.entry.HasData())
	if next == nil {
		entry := rec.entry
		s.mu.Unlock()
		return entry, nil
	}

	rec.entry.Data = next
	rec.entry.Status = StatusSuccess
	rec.entry.Err = nil
	rec.entry.UpdatedAt = s.now()
	rec.entry.Invalidated = false
	if rec.fetching {
		rec.prevStatus = StatusSuccess
		rec.entry.Status = StatusLoading
	}
	n := s.snapshot(rec)
	s.mu.Unlock()

	s.recordMetric("set", "success")
	s.notify(n)
	return n.entry, nil
}

// Fetch runs loader for key unless a load for the same key and generation
// is already in flight, in which case the caller waits for that one.
// Loader failures are stored on the entry, never returned.
func (s *Store) Fetch(ctx context.Context, key Key, loader Loader) Entry {
	if key.IsEmpty() {
		return Entry{Status: StatusError, Err: types.ErrCacheKeyEmpty}
	}

	s.mu.Lock()
	rec := s.recordFor(key)
	generation := rec.generation
	var started *notification
	if !rec.fetching {
		rec.fetching = true
		rec.prevStatus = rec.entry.Status
		rec.entry.Status = StatusLoading
		rec.entry.IsFetching = true
		n := s.snapshot(rec)
		started = &n
	}
	s.mu.Unlock()

	if started != nil {
		s.notify(*started)
	}

	return s.join(ctx, key, generation, loader)
}

// join waits on the load for generation, running loader if no caller has
// claimed it yet.
func (s *Store) join(ctx context.Context, key Key, generation uint64, loader Loader) Entry {
	flightKey := key.String() + "#" + strconv.FormatUint(generation, 10)
	_, _, shared := s.flights.Do(flightKey, func() (interface{}, error) {
		if !s.awaitingLoad(key, generation) {
			return nil, nil
		}

		start := s.now()
		data, err := loader(ctx)
		s.observeFetch(start)
		s.complete(key, generation, data, err)
		return nil, nil
	})

	if shared {
		s.recordMetric("fetch", "shared")
	}

	entry, _ := s.peek(key)
	return entry
}

// Query serves the cached entry while it is fresh and fetches otherwise.
func (s *Store) Query(ctx context.Context, key Key, loader Loader, staleTime time.Duration) Entry {
	s.mu.Lock()
	rec, exists := s.records[key.String()]
	if exists && rec.entry.Status == StatusSuccess && !rec.entry.IsStale(staleTime, s.now()) {
		entry := rec.entry
		s.mu.Unlock()
		s.recordMetric("query", "fresh")
		return entry
	}
	s.mu.Unlock()

	s.recordMetric("query", "stale")
	return s.Fetch(ctx, key, loader)
}

// Cancel drops the result of any in-flight load for key. The loader itself
// keeps running; the entry returns to the status it had before the load.
func (s *Store) Cancel(key Key) bool {
	s.mu.Lock()
	rec, exists := s.records[key.String()]
	if !exists || !rec.fetching {
		s.mu.Unlock()
		return false
	}

	s.cancelLocked(rec)
	n := s.snapshot(rec)
	s.mu.Unlock()

	s.logger.Debug("Query fetch cancelled", zap.String("key", key.String()))
	s.recordMetric("cancel", "success")
	s.notify(n)
	return true
}

func (s *Store) IsFetching(key Key) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, exists := s.records[key.String()]
	return exists && rec.fetching
}

// Invalidate marks every entry whose key starts with one of keys as stale.
func (s *Store) Invalidate(keys ...Key) int {
	s.mu.Lock()
	var notifications []notification
	for _, rec := range s.records {
		if !matchesAny(rec.entry.Key, keys) {
			continue
		}
		rec.entry.Invalidated = true
		notifications = append(notifications, s.snapshot(rec))
	}
	s.mu.Unlock()

	for _, n := range notifications {
		s.notify(n)
	}

	s.recordMetric("invalidate", "success")
	return len(notifications)
}

func (s *Store) Subscribe(key Key, listener Listener) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := s.recordFor(key)
	s.listenerID++
	id := s.listenerID
	rec.listeners[id] = listener

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()

		if current, exists := s.records[key.String()]; exists {
			delete(current.listeners, id)
		}
	}
}

func (s *Store) Observers(key Key) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec, exists := s.records[key.String()]; exists {
		return len(rec.listeners)
	}
	return 0
}

func (s *Store) Remove(key Key) {
	s.mu.Lock()
	rec, exists := s.records[key.String()]
	if !exists {
		s.mu.Unlock()
		return
	}
	delete(s.records, key.String())
	n := notification{entry: Entry{Key: key}, listeners: listenersOf(rec)}
	s.mu.Unlock()

	s.notify(n)
}

// Clear resets every entry to idle and drops in-flight results.
// Subscriptions survive.
func (s *Store) Clear() {
	s.mu.Lock()
	s.epoch++
	notifications := make([]notification, 0, len(s.records))
	for _, rec := range s.records {
		s.generation++
		rec.generation = s.generation
		rec.fetching = false
		rec.entry = Entry{Key: rec.entry.Key}
		notifications = append(notifications, s.snapshot(rec))
	}
	s.mu.Unlock()

	for _, n := range notifications {
		s.notify(n)
	}

	s.logger.Debug("Query cache cleared", zap.Int("entries", len(notifications)))
}

// Hydrate seeds key with previously persisted data. The entry is marked
// invalidated so the first read refetches it. Existing data wins.
func (s *Store) Hydrate(key Key, data interface{}, updatedAt time.Time) bool {
	if key.IsEmpty() || data == nil {
		return false
	}

	s.mu.Lock()
	rec := s.recordFor(key)
	if rec.entry.HasData() || rec.fetching {
		s.mu.Unlock()
		return false
	}

	rec.entry.Data = data
	rec.entry.Status = StatusSuccess
	rec.entry.UpdatedAt = updatedAt
	rec.entry.Invalidated = true
	n := s.snapshot(rec)
	s.mu.Unlock()

	s.notify(n)
	return true
}

func (s *Store) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := make([]Entry, 0, len(s.records))
	for _, rec := range s.records {
		entries = append(entries, rec.entry)
	}
	return entries
}

// evict removes unobserved, idle records last written before cutoff.
func (s *Store) evict(cutoff time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	evicted := 0
	for hash, rec := range s.records {
		if len(rec.listeners) > 0 || rec.fetching {
			continue
		}
		if rec.entry.UpdatedAt.After(cutoff) || rec.entry.ErrorUpdatedAt.After(cutoff) {
			continue
		}
		delete(s.records, hash)
		evicted++
	}

	if evicted > 0 && s.metrics != nil {
		s.metrics.Counter("query_cache_evictions_total", map[string]string{}).Add(float64(evicted))
	}
	return evicted
}

func (s *Store) complete(key Key, generation uint64, data interface{}, err error) {
	s.mu.Lock()
	rec, exists := s.records[key.String()]
	if !exists || rec.generation != generation {
		s.mu.Unlock()
		s.logger.Debug("Discarding cancelled fetch result", zap.String("key", key.String()))
		s.recordMetric("fetch", "discarded")
		return
	}

	rec.fetching = false
	rec.entry.IsFetching = false
	now := s.now()
	result := "success"

	if err != nil {
		rec.entry.Status = StatusError
		rec.entry.Err = err
		rec.entry.ErrorUpdatedAt = now
		result = "error"
	} else {
		rec.entry.Status = StatusSuccess
		rec.entry.Data = data
		rec.entry.Err = nil
		rec.entry.UpdatedAt = now
		rec.entry.Invalidated = false
	}

	n := s.snapshot(rec)
	s.mu.Unlock()

	if err != nil {
		s.logger.Warn("Query fetch failed", zap.String("key", key.String()), zap.Error(err))
	}

	s.recordMetric("fetch", result)
	s.notify(n)
}

// restore writes a previously captured entry back, cancelling any load that
// started since. A missing snapshot resets the key to idle. Snapshots taken
// before the last Clear are dropped.
func (s *Store) restore(key Key, entry Entry, existed bool, epoch uint64) {
	s.mu.Lock()
	if s.epoch != epoch {
		s.mu.Unlock()
		s.logger.Debug("Discarding snapshot from before clear", zap.String("key", key.String()))
		s.recordMetric("restore", "stale")
		return
	}
	rec := s.recordFor(key)
	if rec.fetching {
		s.cancelLocked(rec)
	}

	if existed {
		entry.IsFetching = false
		if entry.Status == StatusLoading {
			if entry.HasData() {
				entry.Status = StatusSuccess
			} else {
				entry.Status = StatusIdle
			}
		}
		rec.entry = entry
	} else {
		rec.entry = Entry{Key: key}
	}

	n := s.snapshot(rec)
	s.mu.Unlock()

	s.recordMetric("restore", "success")
	s.notify(n)
}

// awaitingLoad reports whether the load started for generation is still
// unresolved. A caller reaching the flight group after that load finished
// or was cancelled must not repeat it.
func (s *Store) awaitingLoad(key Key, generation uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, exists := s.records[key.String()]
	return exists && rec.fetching && rec.generation == generation
}

func (s *Store) currentEpoch() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.epoch
}

func (s *Store) peek(key Key) (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, exists := s.records[key.String()]
	if !exists {
		return Entry{Key: key}, false
	}
	return rec.entry, true
}

func (s *Store) cancelLocked(rec *record) {
	s.generation++
	rec.generation = s.generation
	rec.fetching = false
	rec.entry.IsFetching = false
	rec.entry.Status = rec.prevStatus
}

func (s *Store) recordFor(key Key) *record {
	rec, exists := s.records[key.String()]
	if !exists {
		s.generation++
		rec = &record{
			entry:      Entry{Key: key},
			generation: s.generation,
			listeners:  make(map[uint64]Listener),
		}
		s.records[key.String()] = rec
	}
	return rec
}

func (s *Store) snapshot(rec *record) notification {
	return notification{entry: rec.entry, listeners: listenersOf(rec)}
}

func (s *Store) notify(n notification) {
	for _, listener := range n.listeners {
		func() {
			defer func() {
				if r := recover(); r != nil {
					s.logger.Error("Query listener panicked",
						zap.String("key", n.entry.Key.String()),
						zap.Any("panic", r))
				}
			}()
			listener(n.entry)
		}()
	}
}

func (s *Store) recordMetric(operation, result string) {
	if s.metrics == nil {
		return
	}

	s.metrics.Counter("query_cache_operations_total", map[string]string{
		"operation": operation,
		"result":    result,
	}).Inc()
}

func (s *Store) observeFetch(start time.Time) {
	if s.metrics == nil {
		return
	}

	s.metrics.Histogram("query_cache_fetch_duration_seconds",
		[]float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		map[string]string{},
	).Observe(s.now().Sub(start).Seconds())
}

func listenersOf(rec *record) []Listener {
	listeners := make([]Listener, 0, len(rec.listeners))
	for _, listener := range rec.listeners {
		listeners = append(listeners, listener)
	}
	return listeners
}

func matchesAny(key Key, prefixes []Key) bool {
	for _, prefix := range prefixes {
		if key.HasPrefix(prefix) {
			return true
		}
	}
	return false
}
