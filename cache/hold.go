package cache

import "sync"

// Hold keeps one observer on a key so the collector never evicts it.
// Acquire is idempotent; Release lets the entry age out again.
type Hold struct {
	store   *Store
	key     Key
	release func()
	mu      sync.Mutex
}

func NewHold(store *Store, key Key) *Hold {
	return &Hold{store: store, key: key}
}

func (h *Hold) Acquire() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.release != nil {
		return
	}
	h.release = h.store.Subscribe(h.key, func(Entry) {})
}

func (h *Hold) Release() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.release == nil {
		return
	}
	h.release()
	h.release = nil
}

func (h *Hold) Held() bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.release != nil
}
