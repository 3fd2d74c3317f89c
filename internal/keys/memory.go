package keys

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jmerrifield20/keyregistry/internal/credential"
)

// history is one slot's records. Its lock serialises appends to the slot and
// lets readers run alongside each other.
type history struct {
	mu      sync.RWMutex
	records []Record
}

// MemoryStore is an in-memory, thread-safe Store implementation.
// Appends to different slots only contend on the brief map lookup.
type MemoryStore struct {
	mu    sync.RWMutex
	slots map[SlotKey]*history
	names map[credential.TokenID][]string
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		slots: make(map[SlotKey]*history),
		names: make(map[credential.TokenID][]string),
	}
}

func (s *MemoryStore) lookup(slot SlotKey) (*history, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.slots[slot]
	return h, ok
}

func (s *MemoryStore) lookupOrCreate(slot SlotKey) *history {
	if h, ok := s.lookup(slot); ok {
		return h
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if h, ok := s.slots[slot]; ok {
		return h
	}
	h := &history{}
	s.slots[slot] = h
	s.names[slot.TokenID] = append(s.names[slot.TokenID], slot.Name)
	return h
}

// Append implements Store.
func (s *MemoryStore) Append(_ context.Context, slot SlotKey, value string, setBy common.Address) (*Record, error) {
	h := s.lookupOrCreate(slot)

	h.mu.Lock()
	defer h.mu.Unlock()

	rec := Record{
		Index: len(h.records),
		Value: value,
		SetBy: setBy,
		SetAt: time.Now().UTC(),
	}
	h.records = append(h.records, rec)
	return &rec, nil
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, slot SlotKey, index int) (*Record, error) {
	h, ok := s.lookup(slot)
	if !ok {
		return nil, ErrNotFound
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	if len(h.records) == 0 {
		return nil, ErrNotFound
	}
	if index < 0 || index >= len(h.records) {
		return nil, fmt.Errorf("index %d of %d: %w", index, len(h.records), ErrIndexOutOfRange)
	}
	rec := h.records[index]
	return &rec, nil
}

// Latest implements Store.
func (s *MemoryStore) Latest(_ context.Context, slot SlotKey) (*Record, error) {
	h, ok := s.lookup(slot)
	if !ok {
		return nil, ErrNotFound
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	if len(h.records) == 0 {
		return nil, ErrNotFound
	}
	rec := h.records[len(h.records)-1]
	return &rec, nil
}

// History implements Store.
func (s *MemoryStore) History(_ context.Context, slot SlotKey) ([]Record, error) {
	h, ok := s.lookup(slot)
	if !ok {
		return nil, ErrNotFound
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	if len(h.records) == 0 {
		return nil, ErrNotFound
	}
	out := make([]Record, len(h.records))
	copy(out, h.records)
	return out, nil
}

// Len implements Store.
func (s *MemoryStore) Len(_ context.Context, slot SlotKey) (int, error) {
	h, ok := s.lookup(slot)
	if !ok {
		return 0, nil
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.records), nil
}

// Names implements Store.
func (s *MemoryStore) Names(_ context.Context, tokenID credential.TokenID) ([]string, error) {
	s.mu.RLock()
	names := make([]string, len(s.names[tokenID]))
	copy(names, s.names[tokenID])
	s.mu.RUnlock()

	sort.Strings(names)
	return names, nil
}
