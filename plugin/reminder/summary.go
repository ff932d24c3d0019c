package reminder

import (
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/hrygo/remindbot/plugin/reminder/recurrence"
	"github.com/hrygo/remindbot/server/timezone"
)

// Summary holds the values a presentation layer needs to render a reminder.
type Summary struct {
	ID     int64         `json:"id"`
	Text   string        `json:"text"`
	State  State         `json:"state"`
	FireAt time.Time     `json:"fire_at"`
	// Delta is FireAt minus now: negative once the reminder is overdue.
	Delta   time.Duration `json:"delta"`
	Overdue bool          `json:"overdue"`
	Rules   []string      `json:"rules,omitempty"`
	// Next is the occurrence after FireAt for repeating reminders.
	Next *time.Time `json:"next,omitempty"`

	now time.Time
}

// Summarize computes the summary of r at now.
func Summarize(r *Reminder, now time.Time) Summary {
	fireAt := r.FireAt()
	s := Summary{
		ID:      r.ID,
		Text:    r.Text,
		State:   r.State(now),
		FireAt:  fireAt,
		Delta:   fireAt.Sub(now),
		Overdue: !fireAt.After(now),
		Rules:   r.Repeat.Names(),
		now:     now,
	}
	if next, ok := recurrence.Next(r.Repeat, fireAt); ok {
		s.Next = &next
	}
	return s
}

// Describe renders a compact English description, e.g.
// "25.12.2024 18:30:00 MSK (3 days from now), repeats daily".
func (s Summary) Describe() string {
	var b strings.Builder
	b.WriteString(timezone.FormatFireTime(s.FireAt.Unix(), s.FireAt.Location()))
	b.WriteString(" (")
	b.WriteString(humanize.RelTime(s.FireAt, s.now, "ago", "from now"))
	b.WriteString(")")
	if len(s.Rules) > 0 {
		b.WriteString(", repeats ")
		b.WriteString(strings.Join(s.Rules, ", "))
	}
	if s.State == StateNotified || s.State == StateDisabled {
		b.WriteString(", ")
		b.WriteString(string(s.State))
	}
	return b.String()
}
