package repository

import (
	"sync"

	"github.com/google/uuid"
	"github.com/nordcrm/pipeline-api/internal/domain"
)

// KeyLock serializes mutations per entity key. Services acquire the lock for
// a (kind, id) pair before a read-modify-write so two concurrent mutations of
// the same record cannot interleave; mutations of different records proceed
// in parallel.
type KeyLock struct {
	mu    sync.Mutex
	locks map[string]*entry
}

type entry struct {
	mu   sync.Mutex
	refs int
}

// NewKeyLock creates an empty key lock
func NewKeyLock() *KeyLock {
	return &KeyLock{locks: make(map[string]*entry)}
}

// Lock acquires the lock for the given entity key, blocking until it is free
func (k *KeyLock) Lock(kind domain.EntityKind, id uuid.UUID) {
	key := string(kind) + ":" + id.String()

	k.mu.Lock()
	e, ok := k.locks[key]
	if !ok {
		e = &entry{}
		k.locks[key] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()
}

// Unlock releases the lock for the given entity key. Entries are removed
// once no goroutine holds or waits on them, so the map does not grow with
// the number of entities ever touched.
func (k *KeyLock) Unlock(kind domain.EntityKind, id uuid.UUID) {
	key := string(kind) + ":" + id.String()

	k.mu.Lock()
	e, ok := k.locks[key]
	if !ok {
		k.mu.Unlock()
		panic("keylock: unlock of unheld key " + key)
	}
	e.refs--
	if e.refs == 0 {
		delete(k.locks, key)
	}
	k.mu.Unlock()

	e.mu.Unlock()
}
