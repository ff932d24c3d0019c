// Package reminder implements the reminder lifecycle: creating reminders from
// free-form text, firing and rearming them, and applying the manual edits
// encoded in callback commands.
package reminder

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/hrygo/remindbot/plugin/reminder/recurrence"
	"github.com/hrygo/remindbot/plugin/reminder/temporal"
	"github.com/hrygo/remindbot/server/timezone"
)

// ErrNotFound is returned by a Store when the reminder does not exist.
var ErrNotFound = errors.New("reminder not found")

// State is the lifecycle state of a reminder, derived from its fields and
// the current instant.
type State string

const (
	// StateArmed is a reminder whose fire instant is still ahead.
	StateArmed State = "armed"
	// StateDue is a reminder whose fire instant has passed but which has not
	// been notified yet.
	StateDue State = "due"
	// StateNotified is a repeating reminder that fired and waits to be
	// rearmed. Left alone it stays paused.
	StateNotified State = "notified"
	// StateDisabled is a one-shot reminder that already fired.
	StateDisabled State = "disabled"
)

// Reminder is the central entity.
type Reminder struct {
	ID     int64
	UID    string
	ChatID int64
	UserID int64

	Date     temporal.Date
	Time     temporal.Clock
	Timezone string
	Text     string
	Repeat   recurrence.Set
	Notified bool

	CreatedTs int64
	UpdatedTs int64
}

// Location returns the owner's zone the date and time are expressed in.
func (r *Reminder) Location() *time.Location {
	return timezone.LocationOrUTC(r.Timezone)
}

// FireAt returns the instant the reminder is set for.
func (r *Reminder) FireAt() time.Time {
	return temporal.Combine(r.Date, r.Time, r.Location())
}

// IsRepeating reports whether the reminder has at least one repeat rule.
func (r *Reminder) IsRepeating() bool {
	return !r.Repeat.IsEmpty()
}

// State derives the lifecycle state at now.
func (r *Reminder) State(now time.Time) State {
	switch {
	case r.Notified && r.IsRepeating():
		return StateNotified
	case r.Notified:
		return StateDisabled
	case r.FireAt().After(now):
		return StateArmed
	default:
		return StateDue
	}
}

// Clone returns a deep copy.
func (r *Reminder) Clone() *Reminder {
	c := *r
	c.Repeat = append(recurrence.Set(nil), r.Repeat...)
	return &c
}

// setFireAt moves the reminder to t expressed in its own zone.
func (r *Reminder) setFireAt(t time.Time) {
	local := t.In(r.Location())
	r.Date = temporal.DateOf(local)
	r.Time = temporal.ClockOf(local)
}

// Store persists reminders. A single Update call is the unit of atomicity.
type Store interface {
	Create(ctx context.Context, r *Reminder) error
	Get(ctx context.Context, id int64) (*Reminder, error)
	Update(ctx context.Context, r *Reminder) error
	Delete(ctx context.Context, id int64) error
	// ListDue returns reminders that are not notified and whose fire instant
	// is at or before at, earliest first. limit <= 0 means no limit.
	ListDue(ctx context.Context, at time.Time, limit int) ([]*Reminder, error)
	// NextDue returns the earliest reminder that is not notified, or
	// ErrNotFound when there is none.
	NextDue(ctx context.Context) (*Reminder, error)
}

// Owner describes the collaborator-supplied settings of a chat or user.
type Owner struct {
	Location *time.Location
	Language string
}

// OwnerResolver resolves the timezone and language of a reminder owner.
type OwnerResolver interface {
	Resolve(ctx context.Context, chatID, userID int64) (Owner, error)
}

// StaticOwners resolves every owner to the same settings.
type StaticOwners Owner

// Resolve implements OwnerResolver.
func (s StaticOwners) Resolve(context.Context, int64, int64) (Owner, error) {
	o := Owner(s)
	if o.Location == nil {
		o.Location = time.UTC
	}
	return o, nil
}
