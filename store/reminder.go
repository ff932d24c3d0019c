package store

import (
	"context"

	"github.com/pkg/errors"
)

// ErrNotFound is returned when an update or delete matches no row.
var ErrNotFound = errors.New("not found")

// Reminder is the object representing a reminder.
type Reminder struct {
	ID        int64
	UID       string
	ChatID    int64
	UserID    int64
	CreatedTs int64
	UpdatedTs int64

	// Date is the calendar date in ISO form ("2006-01-02").
	Date string
	// Time is the time-of-day ("15:04:05").
	Time     string
	Timezone string
	Text     string
	// Repeatability is the comma-separated list of repeat rule ordinals.
	Repeatability string
	Notified      bool
	// FireTs is Date+Time in Timezone as a Unix timestamp, kept for due queries.
	FireTs int64
}

// FindReminder is the find condition for reminder.
type FindReminder struct {
	ID     *int64
	UID    *string
	ChatID *int64
	UserID *int64

	Notified *bool
	// FireTsBefore matches reminders with fire_ts <= FireTsBefore.
	FireTsBefore *int64

	// Pagination
	Limit  *int
	Offset *int
}

// UpdateReminder is the update request for reminder.
type UpdateReminder struct {
	ID            int64
	UpdatedTs     *int64
	Date          *string
	Time          *string
	Timezone      *string
	Text          *string
	Repeatability *string
	Notified      *bool
	FireTs        *int64
}

// DeleteReminder is the delete request for reminder.
type DeleteReminder struct {
	ID int64
}

// CreateReminder creates a new reminder.
func (s *Store) CreateReminder(ctx context.Context, create *Reminder) (*Reminder, error) {
	return s.driver.CreateReminder(ctx, create)
}

// ListReminders lists reminders ordered by fire_ts, then id.
func (s *Store) ListReminders(ctx context.Context, find *FindReminder) ([]*Reminder, error) {
	return s.driver.ListReminders(ctx, find)
}

// GetReminder gets a reminder. It returns nil when nothing matches.
func (s *Store) GetReminder(ctx context.Context, find *FindReminder) (*Reminder, error) {
	list, err := s.driver.ListReminders(ctx, find)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	return list[0], nil
}

// UpdateReminder updates a reminder. It returns ErrNotFound when the
// reminder does not exist.
func (s *Store) UpdateReminder(ctx context.Context, update *UpdateReminder) error {
	return s.driver.UpdateReminder(ctx, update)
}

// DeleteReminder deletes a reminder. It returns ErrNotFound when the
// reminder does not exist.
func (s *Store) DeleteReminder(ctx context.Context, delete *DeleteReminder) error {
	return s.driver.DeleteReminder(ctx, delete)
}
