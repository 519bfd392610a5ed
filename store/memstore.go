package store

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-memory rule store. It is the default backing for
// tests and for daemons that do not need persistence.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string]RuleRecord
}

// NewMemoryStore creates an empty in-memory rule store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[string]RuleRecord)}
}

// List returns all records ordered by creation time, then ID.
func (s *MemoryStore) List(ctx context.Context) ([]RuleRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]RuleRecord, 0, len(s.items))
	for _, rec := range s.items {
		out = append(out, cloneRecord(rec))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// Get returns one record by ID.
func (s *MemoryStore) Get(ctx context.Context, id string) (RuleRecord, bool, error) {
	if err := ctx.Err(); err != nil {
		return RuleRecord{}, false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.items[id]
	if !ok {
		return RuleRecord{}, false, nil
	}
	return cloneRecord(rec), true, nil
}

// Create inserts a new record; an existing ID fails with ErrRuleExists.
func (s *MemoryStore) Create(ctx context.Context, rec RuleRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.items[rec.ID]; exists {
		return ErrRuleExists
	}
	s.items[rec.ID] = cloneRecord(rec)
	return nil
}

// Update replaces an existing record; a missing ID fails with
// ErrRuleNotFound.
func (s *MemoryStore) Update(ctx context.Context, rec RuleRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.items[rec.ID]; !exists {
		return ErrRuleNotFound
	}
	s.items[rec.ID] = cloneRecord(rec)
	return nil
}

// Delete removes a record by ID.
func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.items[id]; !exists {
		return ErrRuleNotFound
	}
	delete(s.items, id)
	return nil
}

// SetValidation updates the revalidation fields of a record.
func (s *MemoryStore) SetValidation(ctx context.Context, id string, valid bool, message string, checkedAt time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, exists := s.items[id]
	if !exists {
		return ErrRuleNotFound
	}
	rec.Valid = valid
	rec.ValidationError = message
	checked := checkedAt
	rec.CheckedAt = &checked
	s.items[id] = rec
	return nil
}

// Compile-time interface check.
var _ RuleStore = (*MemoryStore)(nil)
