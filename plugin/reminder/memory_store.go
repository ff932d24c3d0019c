package reminder

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// MemoryStore is an in-memory implementation of Store for tests and the
// parse-only CLI.
type MemoryStore struct {
	reminders map[int64]*Reminder
	nextID    int64
	mu        sync.RWMutex
}

// NewMemoryStore creates a new in-memory reminder store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		reminders: make(map[int64]*Reminder),
	}
}

// Create stores a new reminder and assigns its ID.
func (s *MemoryStore) Create(ctx context.Context, reminder *Reminder) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if reminder.ID != 0 {
		if _, exists := s.reminders[reminder.ID]; exists {
			return errors.Errorf("reminder already exists: %d", reminder.ID)
		}
	} else {
		s.nextID++
		reminder.ID = s.nextID
	}
	if reminder.ID > s.nextID {
		s.nextID = reminder.ID
	}

	s.reminders[reminder.ID] = reminder.Clone()
	return nil
}

// Get retrieves a reminder by ID.
func (s *MemoryStore) Get(ctx context.Context, id int64) (*Reminder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	reminder, ok := s.reminders[id]
	if !ok {
		return nil, errors.Wrapf(ErrNotFound, "id %d", id)
	}

	return reminder.Clone(), nil
}

// Update replaces an existing reminder.
func (s *MemoryStore) Update(ctx context.Context, reminder *Reminder) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.reminders[reminder.ID]; !exists {
		return errors.Wrapf(ErrNotFound, "id %d", reminder.ID)
	}

	s.reminders[reminder.ID] = reminder.Clone()
	return nil
}

// Delete removes a reminder.
func (s *MemoryStore) Delete(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.reminders[id]; !exists {
		return errors.Wrapf(ErrNotFound, "id %d", id)
	}
	delete(s.reminders, id)
	return nil
}

// ListDue retrieves armed reminders due at or before at, earliest first.
func (s *MemoryStore) ListDue(ctx context.Context, at time.Time, limit int) ([]*Reminder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*Reminder
	for _, r := range s.reminders {
		if !r.Notified && !r.FireAt().After(at) {
			result = append(result, r.Clone())
		}
	}
	sortByFireAt(result)

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// NextDue returns the earliest reminder that is not notified.
func (s *MemoryStore) NextDue(ctx context.Context) (*Reminder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var next *Reminder
	for _, r := range s.reminders {
		if r.Notified {
			continue
		}
		if next == nil || r.FireAt().Before(next.FireAt()) ||
			(r.FireAt().Equal(next.FireAt()) && r.ID < next.ID) {
			next = r
		}
	}
	if next == nil {
		return nil, ErrNotFound
	}
	return next.Clone(), nil
}

// Count returns the number of stored reminders.
func (s *MemoryStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.reminders)
}

func sortByFireAt(list []*Reminder) {
	sort.Slice(list, func(i, j int) bool {
		fi, fj := list[i].FireAt(), list[j].FireAt()
		if !fi.Equal(fj) {
			return fi.Before(fj)
		}
		return list[i].ID < list[j].ID
	})
}
