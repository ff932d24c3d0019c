package reminder

import (
	"context"
	"time"

	pkgerrors "github.com/pkg/errors"

	"github.com/hrygo/remindbot/internal/errors"
	"github.com/hrygo/remindbot/plugin/reminder/recurrence"
	"github.com/hrygo/remindbot/plugin/reminder/temporal"
	"github.com/hrygo/remindbot/store"
)

// DBStore adapts the SQL store to Store. The fire instant is denormalized
// into fire_ts so due queries stay index-only.
type DBStore struct {
	store *store.Store
}

// NewDBStore creates a Store backed by s.
func NewDBStore(s *store.Store) *DBStore {
	return &DBStore{store: s}
}

// Create implements Store.
func (s *DBStore) Create(ctx context.Context, r *Reminder) error {
	created, err := s.store.CreateReminder(ctx, toRaw(r))
	if err != nil {
		return err
	}
	r.ID = created.ID
	r.CreatedTs = created.CreatedTs
	r.UpdatedTs = created.UpdatedTs
	return nil
}

// Get implements Store.
func (s *DBStore) Get(ctx context.Context, id int64) (*Reminder, error) {
	raw, err := s.store.GetReminder(ctx, &store.FindReminder{ID: &id})
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, pkgerrors.Wrapf(ErrNotFound, "id %d", id)
	}
	return fromRaw(raw)
}

// Update implements Store. All mutable columns are written in one statement.
func (s *DBStore) Update(ctx context.Context, r *Reminder) error {
	raw := toRaw(r)
	err := s.store.UpdateReminder(ctx, &store.UpdateReminder{
		ID:            raw.ID,
		UpdatedTs:     &raw.UpdatedTs,
		Date:          &raw.Date,
		Time:          &raw.Time,
		Timezone:      &raw.Timezone,
		Text:          &raw.Text,
		Repeatability: &raw.Repeatability,
		Notified:      &raw.Notified,
		FireTs:        &raw.FireTs,
	})
	return notFound(err, r.ID)
}

// Delete implements Store.
func (s *DBStore) Delete(ctx context.Context, id int64) error {
	return notFound(s.store.DeleteReminder(ctx, &store.DeleteReminder{ID: id}), id)
}

// ListDue implements Store.
func (s *DBStore) ListDue(ctx context.Context, at time.Time, limit int) ([]*Reminder, error) {
	notified := false
	before := at.Unix()
	find := &store.FindReminder{Notified: &notified, FireTsBefore: &before}
	if limit > 0 {
		find.Limit = &limit
	}
	return s.list(ctx, find)
}

// NextDue implements Store.
func (s *DBStore) NextDue(ctx context.Context) (*Reminder, error) {
	notified := false
	limit := 1
	list, err := s.list(ctx, &store.FindReminder{Notified: &notified, Limit: &limit})
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, ErrNotFound
	}
	return list[0], nil
}

// ListByChat returns the reminders of a chat, earliest first.
func (s *DBStore) ListByChat(ctx context.Context, chatID int64) ([]*Reminder, error) {
	return s.list(ctx, &store.FindReminder{ChatID: &chatID})
}

func (s *DBStore) list(ctx context.Context, find *store.FindReminder) ([]*Reminder, error) {
	raws, err := s.store.ListReminders(ctx, find)
	if err != nil {
		return nil, err
	}
	list := make([]*Reminder, 0, len(raws))
	for _, raw := range raws {
		r, err := fromRaw(raw)
		if err != nil {
			return nil, err
		}
		list = append(list, r)
	}
	return list, nil
}

func notFound(err error, id int64) error {
	if pkgerrors.Is(err, store.ErrNotFound) {
		return pkgerrors.Wrapf(ErrNotFound, "id %d", id)
	}
	return err
}

func toRaw(r *Reminder) *store.Reminder {
	return &store.Reminder{
		ID:            r.ID,
		UID:           r.UID,
		ChatID:        r.ChatID,
		UserID:        r.UserID,
		CreatedTs:     r.CreatedTs,
		UpdatedTs:     r.UpdatedTs,
		Date:          r.Date.ISO(),
		Time:          r.Time.String(),
		Timezone:      r.Timezone,
		Text:          r.Text,
		Repeatability: r.Repeat.Encode(),
		Notified:      r.Notified,
		FireTs:        r.FireAt().Unix(),
	}
}

// fromRaw rebuilds a reminder from its row. A row that fails to decode is an
// internal error, never the user's.
func fromRaw(raw *store.Reminder) (*Reminder, error) {
	date, err := temporal.ParseISODate(raw.Date)
	if err != nil {
		return nil, errors.Internal("corrupted reminder date", err).WithContext("id", raw.ID)
	}
	clock, err := temporal.ParseClock(raw.Time)
	if err != nil {
		return nil, errors.Internal("corrupted reminder time", err).WithContext("id", raw.ID)
	}
	repeat, err := recurrence.Decode(raw.Repeatability)
	if err != nil {
		return nil, err
	}
	return &Reminder{
		ID:        raw.ID,
		UID:       raw.UID,
		ChatID:    raw.ChatID,
		UserID:    raw.UserID,
		Date:      date,
		Time:      clock,
		Timezone:  raw.Timezone,
		Text:      raw.Text,
		Repeat:    repeat,
		Notified:  raw.Notified,
		CreatedTs: raw.CreatedTs,
		UpdatedTs: raw.UpdatedTs,
	}, nil
}
