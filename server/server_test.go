package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/remindbot/internal/profile"
	"github.com/hrygo/remindbot/plugin/reminder"
	"github.com/hrygo/remindbot/plugin/reminder/keyword"
	"github.com/hrygo/remindbot/plugin/reminder/recurrence"
	"github.com/hrygo/remindbot/plugin/reminder/temporal"
)

// Friday, 15 March 2024, 10:00:00 UTC
var fixedNow = time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)

func newTestServer(t *testing.T) (*Server, *reminder.MemoryStore) {
	t.Helper()
	tables, err := keyword.Embedded("en")
	require.NoError(t, err)

	store := reminder.NewMemoryStore()
	svc := reminder.NewService(store, temporal.NewRegistry(tables), reminder.StaticOwners{Location: time.UTC, Language: "en"})
	svc.SetClock(func() time.Time { return fixedNow })
	return NewServer(&profile.Profile{Version: "test"}, svc, nil), store
}

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func TestHealthz(t *testing.T) {
	s, _ := newTestServer(t)

	rec := do(t, s, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	body := decode[map[string]any](t, rec)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "test", body["version"])
}

func TestHealthz_SchedulerStopped(t *testing.T) {
	s, _ := newTestServer(t)
	scheduler := reminder.NewScheduler(s.Service, reminder.LogNotifier{}, reminder.DefaultSchedulerConfig())
	s.Health = reminder.NewHealthCheck(scheduler)

	rec := do(t, s, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "degraded", decode[map[string]any](t, rec)["status"])
}

func TestParseReminder(t *testing.T) {
	s, store := newTestServer(t)

	rec := do(t, s, http.MethodPost, "/api/v1/reminders/parse", `{"chat_id":1,"text":"tomorrow 18:30 buy milk"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decode[previewResponse](t, rec)
	assert.Equal(t, "2024-03-16", body.Date)
	assert.Equal(t, "18:30:00", body.Time)
	assert.Equal(t, "UTC", body.Timezone)
	assert.Equal(t, "buy milk", body.Text)
	assert.True(t, body.FireAt.Equal(time.Date(2024, 3, 16, 18, 30, 0, 0, time.UTC)))
	assert.NotEmpty(t, body.Matches)
	assert.Zero(t, store.Count())
}

func TestParseReminder_WrongInput(t *testing.T) {
	s, _ := newTestServer(t)

	rec := do(t, s, http.MethodPost, "/api/v1/reminders/parse", `{"text":"buy milk"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "WRONG_INPUT", decode[errorResponse](t, rec).Code)

	rec = do(t, s, http.MethodPost, "/api/v1/reminders/parse", `{"text":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateAndGetReminder(t *testing.T) {
	s, store := newTestServer(t)

	rec := do(t, s, http.MethodPost, "/api/v1/reminders", `{"chat_id":5,"user_id":6,"text":"in 2 hours call mom"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[reminderResponse](t, rec)
	assert.NotZero(t, created.Reminder.ID)
	assert.Equal(t, "call mom", created.Reminder.Text)
	assert.Equal(t, "12:00:00", created.Reminder.Time)
	assert.Equal(t, reminder.StateArmed, created.Summary.State)
	assert.Equal(t, 1, store.Count())

	rec = do(t, s, http.MethodGet, "/api/v1/reminders/1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[reminderResponse](t, rec)
	assert.Equal(t, created.Reminder, got.Reminder)
	assert.Contains(t, got.Describe, "2 hours from now")
}

func TestGetReminder_Errors(t *testing.T) {
	s, _ := newTestServer(t)

	rec := do(t, s, http.MethodGet, "/api/v1/reminders/42", "")
	assert.Equal(t, http.StatusGone, rec.Code)
	assert.Equal(t, "GONE", decode[errorResponse](t, rec).Code)

	rec = do(t, s, http.MethodGet, "/api/v1/reminders/abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, s, http.MethodDelete, "/api/v1/reminders/42", "")
	assert.Equal(t, http.StatusGone, rec.Code)
}

func TestExecuteCommand(t *testing.T) {
	s, store := newTestServer(t)
	ctx := context.Background()
	date, err := temporal.ParseISODate("2024-03-15")
	require.NoError(t, err)
	r := &reminder.Reminder{
		UID:      "daily",
		ChatID:   1,
		Date:     date,
		Time:     temporal.Midnight,
		Timezone: "UTC",
		Text:     "stretch",
		Repeat:   recurrence.Set{recurrence.Daily},
	}
	require.NoError(t, store.Create(ctx, r))

	rec := do(t, s, http.MethodPost, "/api/v1/reminders/commands", `{"command":"s1t07:30"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode[commandResponse](t, rec)
	assert.Equal(t, "set_time", body.Action)
	assert.Equal(t, "s1t07:30:00", body.Command)
	assert.Equal(t, "07:30:00", body.Reminder.Time)

	rec = do(t, s, http.MethodPost, "/api/v1/reminders/commands", `{"command":"s1P1D"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	body = decode[commandResponse](t, rec)
	assert.True(t, body.Copied)
	assert.Equal(t, "stretch (copy)", body.Reminder.Text)
	assert.Equal(t, 2, store.Count())

	rec = do(t, s, http.MethodPost, "/api/v1/reminders/commands", `{"command":"s1d31.02.2024"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, s, http.MethodPost, "/api/v1/reminders/commands", `{"command":"s9n"}`)
	assert.Equal(t, http.StatusGone, rec.Code)

	rec = do(t, s, http.MethodDelete, "/api/v1/reminders/1", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, 1, store.Count())
}

func TestUnknownRoute(t *testing.T) {
	s, _ := newTestServer(t)

	rec := do(t, s, http.MethodGet, "/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", decode[errorResponse](t, rec).Code)
}

func TestAPIRateLimit(t *testing.T) {
	s, _ := newTestServer(t)

	var limited bool
	for i := 0; i < apiBurst+1; i++ {
		rec := do(t, s, http.MethodGet, "/api/v1/reminders/1", "")
		if rec.Code == http.StatusTooManyRequests {
			limited = true
			assert.Equal(t, "TOO_MANY_REQUESTS", decode[errorResponse](t, rec).Code)
			break
		}
	}
	assert.True(t, limited)
}
