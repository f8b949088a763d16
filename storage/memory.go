package storage

import (
	"bytes"
	"context"
	"log/slog"
	"sync"

	"github.com/ruteri/keymaster/interfaces"
	"github.com/ruteri/keymaster/secret"
)

// MemoryStore keeps items in process memory. Contents are lost on exit;
// it backs tests and ephemeral personas.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string][]byte
	log   *slog.Logger
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(log *slog.Logger) *MemoryStore {
	if log == nil {
		log = slog.Default()
	}
	return &MemoryStore{
		items: make(map[string][]byte),
		log:   log,
	}
}

func memoryKey(itemID, account string) string {
	return itemID + "\x00" + account
}

// Get returns a copy of the stored bytes.
func (s *MemoryStore) Get(ctx context.Context, itemID, account string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.items[memoryKey(itemID, account)]
	if !ok {
		return nil, interfaces.ErrItemNotFound
	}
	return bytes.Clone(data), nil
}

// Put stores a copy of data, wiping any replaced value.
func (s *MemoryStore) Put(ctx context.Context, itemID, account string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := memoryKey(itemID, account)
	if old, ok := s.items[key]; ok {
		secret.Zero(old)
	}
	s.items[key] = bytes.Clone(data)

	s.log.Debug("Stored item in memory",
		slog.String("item_id", itemID),
		slog.String("account", account))
	return nil
}

// Delete wipes and removes the item.
func (s *MemoryStore) Delete(ctx context.Context, itemID, account string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := memoryKey(itemID, account)
	old, ok := s.items[key]
	if !ok {
		return interfaces.ErrItemNotFound
	}
	secret.Zero(old)
	delete(s.items, key)
	return nil
}

// Len returns the number of stored items.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Available always reports true.
func (s *MemoryStore) Available(ctx context.Context) bool {
	return true
}

// Name returns a unique identifier for this store.
func (s *MemoryStore) Name() string {
	return "memory"
}

// LocationURI returns the URI that identifies this store.
func (s *MemoryStore) LocationURI() string {
	return "memory://"
}
