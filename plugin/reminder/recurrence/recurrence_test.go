package recurrence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/remindbot/internal/errors"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		input string
		want  Set
	}{
		{"", nil},
		{"3", Set{Every15Minutes}},
		{"10,14,", Set{Monday, Friday}},
		{"17,,19", Set{Daily, Monthly}},
		{" 5 , 5 , 0", Set{EveryHour, EveryMinute}},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := Decode(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecode_Corrupt(t *testing.T) {
	_, err := Decode("1,99")
	assert.True(t, errors.IsCode(err, errors.ErrCodeInternal))

	_, err = Decode("x")
	assert.True(t, errors.IsCode(err, errors.ErrCodeInternal))

	_, err = Parse("1,99")
	assert.True(t, errors.IsCode(err, errors.ErrCodeWrongInput))

	_, err = Parse("-1")
	assert.True(t, errors.IsCode(err, errors.ErrCodeWrongInput))
}

func TestSet_Encode(t *testing.T) {
	assert.Equal(t, "", Set(nil).Encode())
	assert.Equal(t, "14,10", Set{Friday, Monday, Friday}.Encode())
	assert.Equal(t, "17", Set{Daily}.Encode())
}

func TestSet_ToggleIsInvolutive(t *testing.T) {
	var empty Set

	once := empty.Toggle(Rule(3))
	assert.Equal(t, Set{Every15Minutes}, once)
	assert.Equal(t, "3", once.Encode())

	twice := once.Toggle(Rule(3))
	assert.True(t, twice.IsEmpty())
	assert.Equal(t, "", twice.Encode())

	base := Set{Monday, Wednesday, Friday}
	assert.Equal(t, "10,14", base.Toggle(Wednesday).Encode())
	assert.Equal(t, base, base.Toggle(Sunday).Toggle(Sunday))
}

func TestRule_String(t *testing.T) {
	assert.Equal(t, "every_15_minutes", Every15Minutes.String())
	assert.Equal(t, "yearly", Yearly.String())
	assert.Equal(t, "rule(42)", Rule(42).String())
	assert.Len(t, Rules(), 21)
	assert.Equal(t, []string{"monday", "daily"}, Set{Monday, Daily}.Names())
}

func TestNext(t *testing.T) {
	// Wednesday, 13 March 2024
	wed := time.Date(2024, 3, 13, 9, 30, 0, 0, time.UTC)

	tests := []struct {
		name string
		set  Set
		from time.Time
		want time.Time
	}{
		{"every 15 minutes", Set{Every15Minutes}, wed, time.Date(2024, 3, 13, 9, 45, 0, 0, time.UTC)},
		{"every 12 hours", Set{Every12Hours}, wed, time.Date(2024, 3, 13, 21, 30, 0, 0, time.UTC)},
		{"monday and friday from wednesday", Set{Monday, Friday}, wed, time.Date(2024, 3, 15, 9, 30, 0, 0, time.UTC)},
		{"monday and friday from saturday", Set{Monday, Friday}, time.Date(2024, 3, 16, 9, 30, 0, 0, time.UTC), time.Date(2024, 3, 18, 9, 30, 0, 0, time.UTC)},
		{"same weekday is a week later", Set{Wednesday}, wed, time.Date(2024, 3, 20, 9, 30, 0, 0, time.UTC)},
		{"daily", Set{Daily}, wed, time.Date(2024, 3, 14, 9, 30, 0, 0, time.UTC)},
		{"weekly", Set{Weekly}, wed, time.Date(2024, 3, 20, 9, 30, 0, 0, time.UTC)},
		{"monthly clamps to february end", Set{Monthly}, time.Date(2024, 1, 31, 8, 0, 0, 0, time.UTC), time.Date(2024, 2, 29, 8, 0, 0, 0, time.UTC)},
		{"yearly from leap day", Set{Yearly}, time.Date(2024, 2, 29, 8, 0, 0, 0, time.UTC), time.Date(2025, 2, 28, 8, 0, 0, 0, time.UTC)},
		{"earliest rule wins", Set{Weekly, Daily, EveryHour}, wed, time.Date(2024, 3, 13, 10, 30, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Next(tt.set, tt.from)
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}

	_, ok := Next(nil, wed)
	assert.False(t, ok)
}

func TestNext_KeepsWallClockAcrossOffsetChange(t *testing.T) {
	// A weekday rule keeps the local time-of-day in the reminder's zone.
	loc := time.FixedZone("UTC+5", 5*60*60)
	from := time.Date(2024, 3, 13, 9, 30, 0, 0, loc)

	got, ok := Next(Set{Friday}, from)
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 3, 15, 9, 30, 0, 0, loc), got)
	assert.Equal(t, loc, got.Location())
}

func TestNextAfter_CatchUp(t *testing.T) {
	from := time.Date(2024, 3, 13, 9, 30, 0, 0, time.UTC)

	tests := []struct {
		name  string
		set   Set
		after time.Time
		want  time.Time
	}{
		{"interval fast-forwards", Set{Every15Minutes}, time.Date(2024, 3, 13, 12, 0, 0, 0, time.UTC), time.Date(2024, 3, 13, 12, 15, 0, 0, time.UTC)},
		{"interval between ticks", Set{Every15Minutes}, time.Date(2024, 3, 13, 12, 7, 0, 0, time.UTC), time.Date(2024, 3, 13, 12, 15, 0, 0, time.UTC)},
		{"daily skips missed days", Set{Daily}, time.Date(2024, 3, 20, 10, 0, 0, 0, time.UTC), time.Date(2024, 3, 21, 9, 30, 0, 0, time.UTC)},
		{"daily later today", Set{Daily}, time.Date(2024, 3, 20, 9, 0, 0, 0, time.UTC), time.Date(2024, 3, 20, 9, 30, 0, 0, time.UTC)},
		{"weekday skips missed weeks", Set{Monday}, time.Date(2024, 4, 2, 0, 0, 0, 0, time.UTC), time.Date(2024, 4, 8, 9, 30, 0, 0, time.UTC)},
		{"after in the past behaves like next", Set{Daily}, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 3, 14, 9, 30, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := NextAfter(tt.set, from, tt.after)
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
			assert.True(t, got.After(tt.after))
		})
	}
}
