// Package settings keeps per-user watermark settings in memory
package settings

import (
	"sync"

	"github.com/UnendingLoop/Watermarker/internal/model"
)

// Store - контракт хранилища настроек
type Store interface {
	Get(userID int64) model.Settings
	Update(userID int64, fn func(*model.Settings) error) (model.Settings, error)
}

// MemoryStore lazily creates a default record per user and keeps it for the
// lifetime of the process. Every value it hands out is a copy.
type MemoryStore struct {
	mu    sync.RWMutex
	users map[int64]model.Settings
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{users: make(map[int64]model.Settings)}
}

func (m *MemoryStore) Get(userID int64) model.Settings {
	m.mu.RLock()
	s, ok := m.users[userID]
	m.mu.RUnlock()
	if ok {
		return s
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	// пока ждали лок, запись мог создать кто-то другой
	if s, ok = m.users[userID]; ok {
		return s
	}
	s = model.DefaultSettings()
	m.users[userID] = s
	return s
}

// Update runs fn against a copy of the user's record and stores the copy only
// when fn succeeds. Concurrent updates are serialised; the last one wins.
func (m *MemoryStore) Update(userID int64, fn func(*model.Settings) error) (model.Settings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cur, ok := m.users[userID]
	if !ok {
		cur = model.DefaultSettings()
	}

	next := cur
	if err := fn(&next); err != nil {
		return cur, err
	}
	if err := next.Validate(); err != nil {
		return cur, err
	}

	m.users[userID] = next
	return next, nil
}
