package reminder

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/lithammer/shortuuid/v4"
	pkgerrors "github.com/pkg/errors"

	"github.com/hrygo/remindbot/internal/errors"
	"github.com/hrygo/remindbot/internal/observability"
	"github.com/hrygo/remindbot/plugin/reminder/postpone"
	"github.com/hrygo/remindbot/plugin/reminder/recurrence"
	"github.com/hrygo/remindbot/plugin/reminder/temporal"
)

// Service provides the reminder lifecycle on top of a Store.
type Service struct {
	store   Store
	parsers *temporal.Registry
	owners  OwnerResolver
	now     func() time.Time
	logger  *slog.Logger
}

// NewService creates a new reminder service.
func NewService(store Store, parsers *temporal.Registry, owners OwnerResolver) *Service {
	return &Service{
		store:   store,
		parsers: parsers,
		owners:  owners,
		now:     time.Now,
		logger:  slog.Default(),
	}
}

// SetLogger sets a custom logger.
func (s *Service) SetLogger(logger *slog.Logger) {
	s.logger = logger
}

// SetClock overrides the source of the current instant.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// Now returns the current instant according to the service clock.
func (s *Service) Now() time.Time {
	return s.now()
}

// CreateRequest is a request to create a reminder from free-form text.
type CreateRequest struct {
	ChatID int64
	UserID int64
	Text   string
}

// Preview parses text for an owner without persisting anything.
func (s *Service) Preview(ctx context.Context, chatID, userID int64, text string) (*temporal.Result, *time.Location, error) {
	owner, err := s.owners.Resolve(ctx, chatID, userID)
	if err != nil {
		return nil, nil, errors.Internal("failed to resolve owner", err)
	}
	result, err := s.parsers.For(owner.Language).Parse(text, s.now().In(owner.Location))
	if err != nil {
		return nil, nil, err
	}
	return result, owner.Location, nil
}

// Create parses the text of req and stores a new armed reminder.
func (s *Service) Create(ctx context.Context, req *CreateRequest) (*Reminder, error) {
	rc := observability.NewRequestContext(s.logger, "create", req.ChatID, req.UserID)
	ctx = observability.WithRequestContext(ctx, rc)

	result, loc, err := s.Preview(ctx, req.ChatID, req.UserID, req.Text)
	if err != nil {
		rc.Debug("rejected reminder text", slog.String(observability.LogFieldErrorCode, string(errors.CodeOf(err, errors.ErrCodeInternal))))
		return nil, err
	}

	nowTs := s.now().Unix()
	r := &Reminder{
		UID:       shortuuid.New(),
		ChatID:    req.ChatID,
		UserID:    req.UserID,
		Date:      result.Date,
		Time:      result.Time,
		Timezone:  loc.String(),
		Text:      result.Text,
		CreatedTs: nowTs,
		UpdatedTs: nowTs,
	}
	if err := s.store.Create(ctx, r); err != nil {
		return nil, s.failed(ctx, errors.Internal("failed to create reminder", err), 0)
	}

	rc.Info("reminder created",
		slog.Int64(observability.LogFieldReminderID, r.ID),
		slog.Time("fire_at", r.FireAt()),
		slog.Int64(observability.LogFieldDuration, rc.DurationMs()),
	)
	return r, nil
}

// Get returns a reminder, or a Gone error when it no longer exists.
func (s *Service) Get(ctx context.Context, id int64) (*Reminder, error) {
	r, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, s.failed(ctx, err, id)
	}
	return r, nil
}

// Delete removes a reminder.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return s.failed(ctx, err, id)
	}
	return nil
}

// MarkNotified records that the owner has been informed.
func (s *Service) MarkNotified(ctx context.Context, id int64) (*Reminder, error) {
	return s.edit(ctx, id, func(r *Reminder, _ time.Time) error {
		r.Notified = true
		return nil
	})
}

// Rearm advances a repeating reminder to its first occurrence strictly after
// now and resets notified. A one-shot reminder is left untouched and
// reported with ok=false.
func (s *Service) Rearm(ctx context.Context, id int64) (r *Reminder, ok bool, err error) {
	r, err = s.edit(ctx, id, func(r *Reminder, now time.Time) error {
		ok = rearm(r, now)
		if !ok {
			return errSkip
		}
		return nil
	})
	return r, ok, err
}

// Fire applies the due transition to the reminder listed as due: it is
// marked notified and, when repeatable, immediately rearmed, in a single
// write. When the stored reminder was moved or toggled after it was listed,
// the edit wins: nothing is written and ok is false.
func (s *Service) Fire(ctx context.Context, listed *Reminder) (r *Reminder, ok bool, err error) {
	r, err = s.edit(ctx, listed.ID, func(r *Reminder, now time.Time) error {
		if r.Notified != listed.Notified || !r.FireAt().Equal(listed.FireAt()) {
			return errSkip
		}
		r.Notified = true
		rearm(r, now)
		ok = true
		return nil
	})
	return r, ok, err
}

// SetDate replaces the stored date. The notified flag is kept.
func (s *Service) SetDate(ctx context.Context, id int64, date DateSpec) (*Reminder, error) {
	return s.edit(ctx, id, func(r *Reminder, now time.Time) error {
		d, err := date.Resolve(temporal.DateOf(now.In(r.Location())))
		if err != nil {
			return err
		}
		r.Date, r.Time = postpone.Override{Date: &d}.Apply(r.Date, r.Time)
		return nil
	})
}

// SetTime replaces the stored time and re-arms the reminder.
func (s *Service) SetTime(ctx context.Context, id int64, clock temporal.Clock) (*Reminder, error) {
	return s.edit(ctx, id, func(r *Reminder, _ time.Time) error {
		r.Date, r.Time = postpone.Override{Time: &clock}.Apply(r.Date, r.Time)
		r.Notified = false
		return nil
	})
}

// SetDateTime replaces both the stored date and time and re-arms the
// reminder.
func (s *Service) SetDateTime(ctx context.Context, id int64, date DateSpec, clock temporal.Clock) (*Reminder, error) {
	return s.edit(ctx, id, func(r *Reminder, now time.Time) error {
		d, err := date.Resolve(temporal.DateOf(now.In(r.Location())))
		if err != nil {
			return err
		}
		r.Date, r.Time = postpone.Override{Date: &d, Time: &clock}.Apply(r.Date, r.Time)
		r.Notified = false
		return nil
	})
}

// ToggleRule adds rule to the repeat set, or removes it when present.
func (s *Service) ToggleRule(ctx context.Context, id int64, rule recurrence.Rule) (*Reminder, error) {
	if !rule.Valid() {
		return nil, errors.WrongInputf("unknown repeat rule %d", int(rule))
	}
	return s.edit(ctx, id, func(r *Reminder, _ time.Time) error {
		r.Repeat = r.Repeat.Toggle(rule)
		return nil
	})
}

// SetRules replaces the repeat set. An empty set makes the reminder one-shot.
func (s *Service) SetRules(ctx context.Context, id int64, rules recurrence.Set) (*Reminder, error) {
	encoded := rules.Encode()
	return s.edit(ctx, id, func(r *Reminder, _ time.Time) error {
		set, err := recurrence.Parse(encoded)
		if err != nil {
			return err
		}
		r.Repeat = set
		return nil
	})
}

// ToggleNotified flips the notified flag. A notified repeating reminder is
// rearmed to its next occurrence first; a notified one-shot reminder is
// re-armed at its stored date and time, which may already be in the past.
// Setting the flag on an armed reminder pauses it.
func (s *Service) ToggleNotified(ctx context.Context, id int64) (*Reminder, error) {
	return s.edit(ctx, id, func(r *Reminder, now time.Time) error {
		if !r.Notified {
			r.Notified = true
			return nil
		}
		rearm(r, now)
		r.Notified = false
		return nil
	})
}

// PostponeResult tells which reminder carries the postponed time.
type PostponeResult struct {
	Reminder *Reminder
	// Copied is true when a one-shot copy was created and the original
	// repeating reminder left untouched.
	Copied bool
}

// Postpone moves a reminder to now plus period, computed in the owner's zone.
// A repeating reminder is not modified: a one-shot copy tagged with the
// locale's copy marker is created instead.
func (s *Service) Postpone(ctx context.Context, id int64, period postpone.Period) (*PostponeResult, error) {
	if period.IsZero() {
		return nil, errors.WrongInput("empty postpone period")
	}

	var target time.Time
	r, err := s.edit(ctx, id, func(r *Reminder, now time.Time) error {
		t, err := postpone.After(now.In(r.Location()), period)
		if err != nil {
			return err
		}
		target = t
		if r.IsRepeating() {
			return errSkip
		}
		r.setFireAt(target)
		r.Notified = false
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !r.IsRepeating() {
		return &PostponeResult{Reminder: r}, nil
	}

	marker, err := s.copyMarker(ctx, r)
	if err != nil {
		return nil, err
	}
	copied := newCopy(r, marker, target, s.now())
	if err := s.store.Create(ctx, copied); err != nil {
		return nil, s.failed(ctx, errors.Internal("failed to create postponed copy", err), id)
	}
	return &PostponeResult{Reminder: copied, Copied: true}, nil
}

// Summarize returns the presentation values of a stored reminder.
func (s *Service) Summarize(ctx context.Context, id int64) (Summary, error) {
	r, err := s.Get(ctx, id)
	if err != nil {
		return Summary{}, err
	}
	return Summarize(r, s.now()), nil
}

// Outcome is the result of an executed callback command.
type Outcome struct {
	Command  *Command
	Reminder *Reminder
	Copied   bool
	Summary  Summary
}

// Execute parses and applies a callback command. Nothing is persisted when
// the command is malformed or its values are invalid.
func (s *Service) Execute(ctx context.Context, raw string) (*Outcome, error) {
	rc := observability.NewRequestContext(s.logger, "execute", 0, 0)
	ctx = observability.WithRequestContext(ctx, rc)

	cmd, err := ParseCommand(raw)
	if err != nil {
		rc.Debug("malformed command", slog.String("command", raw))
		return nil, err
	}

	var (
		r      *Reminder
		copied bool
	)
	switch cmd.Action {
	case ActionShow:
		r, err = s.Get(ctx, cmd.ID)
	case ActionSetDate:
		r, err = s.SetDate(ctx, cmd.ID, *cmd.Date)
	case ActionSetTime:
		r, err = s.SetTime(ctx, cmd.ID, *cmd.Time)
	case ActionSetDateTime:
		r, err = s.SetDateTime(ctx, cmd.ID, *cmd.Date, *cmd.Time)
	case ActionSetRules:
		if cmd.Replace || len(cmd.Rules) != 1 {
			r, err = s.SetRules(ctx, cmd.ID, cmd.Rules)
		} else {
			r, err = s.ToggleRule(ctx, cmd.ID, cmd.Rules[0])
		}
	case ActionToggleNotified:
		r, err = s.ToggleNotified(ctx, cmd.ID)
	case ActionPostpone:
		var res *PostponeResult
		if res, err = s.Postpone(ctx, cmd.ID, cmd.Period); err == nil {
			r, copied = res.Reminder, res.Copied
		}
	default:
		err = errors.Internal("unhandled command action "+string(cmd.Action), nil)
	}

	if err != nil {
		rc.Debug("command rejected",
			slog.String("action", string(cmd.Action)),
			slog.Int64(observability.LogFieldReminderID, cmd.ID),
			slog.String(observability.LogFieldErrorCode, string(errors.CodeOf(err, errors.ErrCodeInternal))),
		)
		return nil, err
	}

	rc.ChatID, rc.UserID = r.ChatID, r.UserID
	rc.Info("command applied",
		slog.String("action", string(cmd.Action)),
		slog.Int64(observability.LogFieldReminderID, r.ID),
		slog.Bool("copied", copied),
		slog.Int64(observability.LogFieldDuration, rc.DurationMs()),
	)
	return &Outcome{Command: cmd, Reminder: r, Copied: copied, Summary: Summarize(r, s.now())}, nil
}

// errSkip aborts an edit without persisting and without failing it.
var errSkip = pkgerrors.New("skip")

// edit loads a reminder, applies fn to a copy and persists the copy once. fn
// failing leaves the stored reminder unchanged.
func (s *Service) edit(ctx context.Context, id int64, fn func(r *Reminder, now time.Time) error) (*Reminder, error) {
	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	now := s.now()

	next := current.Clone()
	if err := fn(next, now); err != nil {
		if err == errSkip {
			return current, nil
		}
		return nil, err
	}

	next.UpdatedTs = now.Unix()
	if err := s.store.Update(ctx, next); err != nil {
		return nil, s.failed(ctx, err, id)
	}
	return next, nil
}

// failed maps a store error and logs internal failures on the request that
// hit them.
func (s *Service) failed(ctx context.Context, err error, id int64) error {
	err = storeError(err, id)
	if errors.IsCode(err, errors.ErrCodeInternal) {
		rc, ok := observability.FromContext(ctx)
		if !ok {
			rc = observability.NewRequestContext(s.logger, "store", 0, 0)
		}
		rc.Error("reminder store failure", err, slog.Int64(observability.LogFieldReminderID, id))
	}
	return err
}

func (s *Service) copyMarker(ctx context.Context, r *Reminder) (string, error) {
	owner, err := s.owners.Resolve(ctx, r.ChatID, r.UserID)
	if err != nil {
		return "", errors.Internal("failed to resolve owner", err)
	}
	return s.parsers.For(owner.Language).Table().CopyMarker, nil
}

// newCopy builds the one-shot reminder created when a repeating reminder is
// postponed.
func newCopy(original *Reminder, marker string, target, now time.Time) *Reminder {
	c := &Reminder{
		UID:       shortuuid.New(),
		ChatID:    original.ChatID,
		UserID:    original.UserID,
		Timezone:  original.Timezone,
		Text:      strings.TrimSpace(original.Text + " " + marker),
		CreatedTs: now.Unix(),
		UpdatedTs: now.Unix(),
	}
	c.setFireAt(target)
	return c
}

// rearm moves a repeating reminder to its first occurrence strictly after
// now and clears notified. It reports false for one-shot reminders.
func rearm(r *Reminder, now time.Time) bool {
	next, ok := recurrence.NextAfter(r.Repeat, r.FireAt(), now)
	if !ok {
		return false
	}
	r.setFireAt(next)
	r.Notified = false
	return true
}

func storeError(err error, id int64) error {
	if pkgerrors.Is(err, ErrNotFound) {
		return errors.Gone(id)
	}
	if errors.CodeOf(err, "") != "" {
		return err
	}
	return errors.Internal("reminder store failure", err)
}
