package cache

import (
	"sync"

	"github.com/saiset-co/sai-feed/types"
)

type savedEntry struct {
	key     Key
	entry   Entry
	existed bool
}

// Transaction captures entries before an optimistic write so that a failed
// remote call can put them back exactly as they were.
type Transaction struct {
	store     *Store
	snapshots map[string]savedEntry
	order     []string
	epoch     uint64
	done      bool
	mu        sync.Mutex
}

// Begin cancels in-flight fetches for keys and snapshots their entries.
// Keys first touched through Update are captured lazily. A Clear after Begin
// detaches the transaction: its writes and its rollback are dropped.
func (s *Store) Begin(keys ...Key) *Transaction {
	tx := &Transaction{
		store:     s,
		snapshots: make(map[string]savedEntry),
		epoch:     s.currentEpoch(),
	}

	for _, key := range keys {
		tx.capture(key)
	}

	return tx
}

func (tx *Transaction) Update(key Key, updater Updater) (Entry, error) {
	tx.mu.Lock()
	if tx.done {
		tx.mu.Unlock()
		return Entry{}, types.ErrTransactionFinished
	}
	tx.captureLocked(key)
	tx.mu.Unlock()

	return tx.store.set(key, updater, tx.epoch, true)
}

// Snapshot returns the entry as it was when key joined the transaction.
func (tx *Transaction) Snapshot(key Key) (Entry, bool) {
	tx.mu.Lock()
	defer tx.mu.Unlock()

	saved, exists := tx.snapshots[key.String()]
	if !exists || !saved.existed {
		return Entry{Key: key}, false
	}
	return saved.entry, true
}

func (tx *Transaction) Keys() []Key {
	tx.mu.Lock()
	defer tx.mu.Unlock()

	keys := make([]Key, 0, len(tx.order))
	for _, hash := range tx.order {
		keys = append(keys, tx.snapshots[hash].key)
	}
	return keys
}

func (tx *Transaction) Commit() error {
	tx.mu.Lock()
	defer tx.mu.Unlock()

	if tx.done {
		return types.ErrTransactionFinished
	}
	tx.done = true
	tx.snapshots = nil
	return nil
}

// Rollback restores every captured entry in capture order.
func (tx *Transaction) Rollback() error {
	tx.mu.Lock()
	if tx.done {
		tx.mu.Unlock()
		return types.ErrTransactionFinished
	}
	tx.done = true
	saved := make([]savedEntry, 0, len(tx.order))
	for _, hash := range tx.order {
		saved = append(saved, tx.snapshots[hash])
	}
	tx.snapshots = nil
	tx.mu.Unlock()

	for _, s := range saved {
		tx.store.restore(s.key, s.entry, s.existed, tx.epoch)
	}
	return nil
}

func (tx *Transaction) capture(key Key) {
	tx.mu.Lock()
	defer tx.mu.Unlock()

	tx.captureLocked(key)
}

func (tx *Transaction) captureLocked(key Key) {
	if _, exists := tx.snapshots[key.String()]; exists {
		return
	}

	tx.store.Cancel(key)
	entry, existed := tx.store.peek(key)

	tx.snapshots[key.String()] = savedEntry{key: key, entry: entry, existed: existed}
	tx.order = append(tx.order, key.String())
}
