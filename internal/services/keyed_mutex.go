package services

import (
	"fmt"
	"sync"
)

// KeyedMutex serializes writers per (launchId, chainId) key. Trades for the
// same curve must never interleave their check-apply-store sequence, or the
// slippage and migration-threshold checks become unsound; trades on
// different keys proceed in parallel.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedLock
}

type keyedLock struct {
	mu   sync.Mutex
	refs int
}

// NewKeyedMutex creates an empty lock table.
func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{locks: make(map[string]*keyedLock)}
}

// CurveKey builds the canonical lock key for a (launch, chain) pair.
func CurveKey(launchID string, chainID int64) string {
	return fmt.Sprintf("%s/%d", launchID, chainID)
}

// Lock acquires the per-key lock and returns its unlock function. Lock
// entries are reference-counted and removed when the last holder releases,
// so the table does not grow with the number of launches ever seen.
func (k *KeyedMutex) Lock(key string) func() {
	k.mu.Lock()
	entry, ok := k.locks[key]
	if !ok {
		entry = &keyedLock{}
		k.locks[key] = entry
	}
	entry.refs++
	k.mu.Unlock()

	entry.mu.Lock()

	return func() {
		entry.mu.Unlock()
		k.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
