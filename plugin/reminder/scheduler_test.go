package reminder

import (
	"bytes"
	"context"
	"log/slog"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/remindbot/plugin/reminder/recurrence"
)

type mockNotifier struct {
	mu         sync.Mutex
	sent       []int64
	failures   int
	ShouldFail bool
	// onNotify runs before a delivery is recorded.
	onNotify func(r *Reminder)
}

func (n *mockNotifier) Notify(_ context.Context, r *Reminder, _ Summary) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.onNotify != nil {
		n.onNotify(r)
	}
	if n.ShouldFail {
		n.failures++
		return errors.New("chat unavailable")
	}
	n.sent = append(n.sent, r.ID)
	return nil
}

func (n *mockNotifier) sentCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sent)
}

func TestScheduler_StartStop(t *testing.T) {
	svc, _ := newTestService(t, "en")
	scheduler := NewScheduler(svc, &mockNotifier{}, SchedulerConfig{Interval: 100 * time.Millisecond})

	ctx := context.Background()
	require.NoError(t, scheduler.Start(ctx))
	assert.True(t, scheduler.IsRunning())

	// Double start should be no-op
	require.NoError(t, scheduler.Start(ctx))

	scheduler.Stop()
	assert.False(t, scheduler.IsRunning())

	// Double stop should be no-op
	scheduler.Stop()
}

func TestScheduler_ProcessesDueReminders(t *testing.T) {
	svc, store := newTestService(t, "en")
	seedReminder(t, store, "2024-03-15", "09:00:00", nil, false)
	seedReminder(t, store, "2024-03-15", "09:30:00", recurrence.Set{recurrence.Daily}, false)
	seedReminder(t, store, "2024-03-14", "23:00:00", nil, false)
	seedReminder(t, store, "2024-03-16", "09:00:00", nil, false)

	notifier := &mockNotifier{}
	scheduler := NewScheduler(svc, notifier, SchedulerConfig{Interval: 50 * time.Millisecond})
	processedChan := scheduler.EnableTestMode()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, scheduler.Start(ctx))

	select {
	case processed := <-processedChan:
		assert.Equal(t, 3, processed)
	case <-time.After(500 * time.Millisecond):
		t.Fatal("timeout waiting for reminders to be processed")
	}

	scheduler.Stop()
	assert.Equal(t, 3, notifier.sentCount())

	stats := scheduler.Metrics().GetStats()
	assert.GreaterOrEqual(t, stats.TotalProcessed, int64(3))
	assert.Equal(t, int64(1), stats.TotalRearmed)
}

func TestScheduler_RunOnce(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t, "en")
	oneShot := seedReminder(t, store, "2024-03-15", "09:00:00", nil, false)
	daily := seedReminder(t, store, "2024-03-15", "09:30:00", recurrence.Set{recurrence.Daily}, false)

	scheduler := NewScheduler(svc, &mockNotifier{}, DefaultSchedulerConfig())

	processed, err := scheduler.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, processed)

	r, err := store.Get(ctx, oneShot.ID)
	require.NoError(t, err)
	assert.Equal(t, StateDisabled, r.State(fixedNow))

	r, err = store.Get(ctx, daily.ID)
	require.NoError(t, err)
	assert.Equal(t, StateArmed, r.State(fixedNow))
	assert.Equal(t, "2024-03-16", r.Date.ISO())

	// Nothing is due any more.
	processed, err = scheduler.RunOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, processed)
}

func TestScheduler_BatchSize(t *testing.T) {
	svc, store := newTestService(t, "en")
	for _, clock := range []string{"06:00:00", "07:00:00", "08:00:00"} {
		seedReminder(t, store, "2024-03-15", clock, nil, false)
	}
	notifier := &mockNotifier{}
	scheduler := NewScheduler(svc, notifier, SchedulerConfig{BatchSize: 2})

	processed, err := scheduler.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, processed)

	processed, err = scheduler.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, processed)
}

func TestScheduler_ContextCancellation(t *testing.T) {
	svc, _ := newTestService(t, "en")
	scheduler := NewScheduler(svc, &mockNotifier{}, SchedulerConfig{Interval: 100 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, scheduler.Start(ctx))

	time.Sleep(50 * time.Millisecond)
	cancel()

	assert.Eventually(t, func() bool { return !scheduler.IsRunning() }, time.Second, 10*time.Millisecond)
}

func TestDefaultSchedulerConfig(t *testing.T) {
	config := DefaultSchedulerConfig()
	assert.Equal(t, 30*time.Second, config.Interval)
	assert.Equal(t, 3, config.MaxRetries)
	assert.Equal(t, time.Second, config.RetryDelay)
	assert.Equal(t, 100, config.BatchSize)
	assert.Equal(t, float64(25), config.NotifyPerSecond)
	assert.Equal(t, 4, config.Concurrency)
}

func TestWorker_ProcessReminder(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t, "en")
	notifier := &mockNotifier{}
	worker := NewWorker(svc, notifier, 3)

	reminder := seedReminder(t, store, "2024-03-15", "09:00:00", nil, false)
	require.NoError(t, worker.ProcessReminder(ctx, reminder))
	assert.Equal(t, 1, notifier.sentCount())

	r, err := store.Get(ctx, reminder.ID)
	require.NoError(t, err)
	assert.True(t, r.Notified)
}

func TestWorker_ProcessReminder_EditDuringDelivery(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t, "en")
	reminder := seedReminder(t, store, "2024-03-15", "09:00:00", nil, false)

	// The owner moves the reminder while the notification is in flight.
	notifier := &mockNotifier{onNotify: func(r *Reminder) {
		_, err := svc.Execute(ctx, "s"+strconv.FormatInt(r.ID, 10)+"d20.03.2024t18:00")
		require.NoError(t, err)
	}}
	worker := NewWorker(svc, notifier, 0)
	worker.metrics = NewMetricsCollector()

	require.NoError(t, worker.ProcessReminder(ctx, reminder))
	assert.Equal(t, 1, notifier.sentCount())

	stored, err := store.Get(ctx, reminder.ID)
	require.NoError(t, err)
	assert.False(t, stored.Notified)
	assert.Equal(t, "2024-03-20", stored.Date.ISO())
	assert.Equal(t, "18:00:00", stored.Time.String())
	assert.Equal(t, StateArmed, stored.State(fixedNow))
	assert.Zero(t, worker.metrics.GetStats().TotalRearmed)
}

func TestWorker_ProcessReminder_WithRetry(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t, "en")
	notifier := &mockNotifier{ShouldFail: true}

	worker := NewWorker(svc, notifier, 2)
	worker.retryDelay = 10 * time.Millisecond // Speed up test

	reminder := seedReminder(t, store, "2024-03-15", "09:00:00", nil, false)
	assert.Error(t, worker.ProcessReminder(ctx, reminder))
	assert.Equal(t, 3, notifier.failures)

	// A failed delivery leaves the reminder due for the next cycle.
	assertUnchanged(t, store, reminder)
}

func TestWorker_ProcessBatch(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t, "en")
	notifier := &mockNotifier{}
	worker := NewWorker(svc, notifier, 1)
	worker.concurrency = 3

	var reminders []*Reminder
	for _, clock := range []string{"05:00:00", "06:00:00", "07:00:00", "08:00:00", "09:00:00"} {
		reminders = append(reminders, seedReminder(t, store, "2024-03-15", clock, nil, false))
	}

	processed, failed := worker.ProcessBatch(ctx, reminders)
	assert.Equal(t, 5, processed)
	assert.Equal(t, 0, failed)
	assert.Equal(t, 5, notifier.sentCount())
}

func TestWorker_ProcessBatchGoneReminder(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t, "en")
	worker := NewWorker(svc, &mockNotifier{}, 0)

	r := seedReminder(t, store, "2024-03-15", "09:00:00", nil, false)
	require.NoError(t, store.Delete(ctx, r.ID))

	processed, failed := worker.ProcessBatch(ctx, []*Reminder{r})
	assert.Equal(t, 0, processed)
	assert.Equal(t, 1, failed)
}

func TestHealthCheck(t *testing.T) {
	svc, _ := newTestService(t, "en")
	scheduler := NewScheduler(svc, &mockNotifier{}, DefaultSchedulerConfig())
	health := NewHealthCheck(scheduler)

	status := health.Check()
	assert.False(t, status.Healthy)
	assert.Equal(t, int64(1), status.CheckCount)

	require.NoError(t, scheduler.Start(context.Background()))
	defer scheduler.Stop()
	status = health.Check()
	assert.True(t, status.Healthy)
	assert.Equal(t, int64(2), status.CheckCount)
}

func TestMetricsCollector(t *testing.T) {
	m := NewMetricsCollector()
	m.RecordProcessed(2, 10*time.Millisecond)
	m.RecordProcessed(4, 30*time.Millisecond)
	m.RecordFailed(1)
	m.RecordRearmed(3)

	stats := m.GetStats()
	assert.Equal(t, int64(6), stats.TotalProcessed)
	assert.Equal(t, int64(1), stats.TotalFailed)
	assert.Equal(t, int64(3), stats.TotalRearmed)
	assert.InDelta(t, 20.0, stats.AverageLatency, 0.001)
	assert.False(t, stats.LastRunAt.IsZero())
}

func TestLogNotifier_CarriesRequestContext(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t, "en")
	reminder := seedReminder(t, store, "2024-03-15", "09:00:00", nil, false)

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	worker := NewWorker(svc, LogNotifier{Logger: logger}, 0)
	worker.logger = logger

	require.NoError(t, worker.ProcessReminder(ctx, reminder))

	out := buf.String()
	assert.Contains(t, out, `"msg":"reminder due"`)
	assert.Contains(t, out, `"operation":"fire"`)
	assert.Contains(t, out, `"request_id":`)
	assert.Contains(t, out, `"chat_id":100`)
	assert.Contains(t, out, `"reminder_id":`+strconv.FormatInt(reminder.ID, 10))
}
