package reminder

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/hrygo/remindbot/internal/observability"
)

// Notifier delivers a due reminder to its owner.
type Notifier interface {
	Notify(ctx context.Context, r *Reminder, summary Summary) error
}

// LogNotifier writes due reminders to a logger. It stands in for the chat
// transport.
type LogNotifier struct {
	Logger *slog.Logger
}

// Notify implements Notifier.
func (n LogNotifier) Notify(ctx context.Context, r *Reminder, summary Summary) error {
	logger := n.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if rc, ok := observability.FromContext(ctx); ok {
		logger = rc.WithFields(slog.Int64(observability.LogFieldReminderID, r.ID))
	} else {
		logger = logger.With(
			slog.Int64(observability.LogFieldReminderID, r.ID),
			slog.Int64(observability.LogFieldChatID, r.ChatID),
		)
	}
	logger.InfoContext(ctx, "reminder due",
		slog.String("text", r.Text),
		slog.String("when", summary.Describe()),
	)
	return nil
}

// Scheduler periodically fires due reminders.
type Scheduler struct {
	worker        *Worker
	interval      time.Duration
	batchSize     int
	running       bool
	stopCh        chan struct{}
	wg            sync.WaitGroup
	mu            sync.Mutex
	logger        *slog.Logger
	metrics       *MetricsCollector
	processedChan chan int // For testing: reports processed count
}

// SchedulerConfig holds configuration for the scheduler.
type SchedulerConfig struct {
	Interval        time.Duration // How often to check for due reminders
	MaxRetries      int           // Max notification retries per reminder
	RetryDelay      time.Duration // Delay between retries
	BatchSize       int           // Max reminders to fire per cycle
	NotifyPerSecond float64       // Outgoing notification rate limit
	Concurrency     int           // Parallel notifications per cycle
}

// DefaultSchedulerConfig returns default scheduler configuration.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		Interval:        30 * time.Second,
		MaxRetries:      3,
		RetryDelay:      time.Second,
		BatchSize:       100,
		NotifyPerSecond: 25,
		Concurrency:     4,
	}
}

// NewScheduler creates a new reminder scheduler.
func NewScheduler(service *Service, notifier Notifier, config SchedulerConfig) *Scheduler {
	defaults := DefaultSchedulerConfig()
	if config.Interval <= 0 {
		config.Interval = defaults.Interval
	}
	if config.MaxRetries < 0 {
		config.MaxRetries = defaults.MaxRetries
	}
	if config.BatchSize <= 0 {
		config.BatchSize = defaults.BatchSize
	}
	if config.NotifyPerSecond <= 0 {
		config.NotifyPerSecond = defaults.NotifyPerSecond
	}
	if config.Concurrency <= 0 {
		config.Concurrency = defaults.Concurrency
	}

	metrics := NewMetricsCollector()
	worker := NewWorker(service, notifier, config.MaxRetries)
	worker.retryDelay = config.RetryDelay
	worker.concurrency = config.Concurrency
	worker.limiter = rate.NewLimiter(rate.Limit(config.NotifyPerSecond), max(1, int(config.NotifyPerSecond)))
	worker.metrics = metrics

	return &Scheduler{
		worker:    worker,
		interval:  config.Interval,
		batchSize: config.BatchSize,
		stopCh:    make(chan struct{}),
		logger:    slog.Default(),
		metrics:   metrics,
	}
}

// Start begins the scheduler loop.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.mu.Unlock()

	s.wg.Add(1)
	go s.run(ctx)

	s.logger.Info("reminder scheduler started", "interval", s.interval)
	return nil
}

// Stop gracefully stops the scheduler.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopCh)
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Info("reminder scheduler stopped")
}

// IsRunning returns whether the scheduler is running.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// SetLogger sets a custom logger.
func (s *Scheduler) SetLogger(logger *slog.Logger) {
	s.logger = logger
	s.worker.logger = logger
}

// Metrics returns the scheduler's metrics collector.
func (s *Scheduler) Metrics() *MetricsCollector {
	return s.metrics
}

// EnableTestMode enables test mode with a channel for processed counts.
func (s *Scheduler) EnableTestMode() <-chan int {
	s.processedChan = make(chan int, 100)
	return s.processedChan
}

// run is the main scheduler loop.
func (s *Scheduler) run(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	// Process immediately on start
	s.processCycle(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler context cancelled")
			s.mu.Lock()
			s.running = false
			s.mu.Unlock()
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.processCycle(ctx)
		}
	}
}

// processCycle runs one cycle of reminder processing.
func (s *Scheduler) processCycle(ctx context.Context) {
	processed, err := s.RunOnce(ctx)
	if err != nil {
		s.logger.Error("failed to process due reminders", "error", err)
		return
	}

	if processed > 0 {
		s.logger.Info("fired due reminders", "count", processed)
	}

	// Report to test channel if enabled
	if s.processedChan != nil {
		select {
		case s.processedChan <- processed:
		default:
			// Don't block if channel is full
		}
	}
}

// RunOnce fires the reminders due now once (for manual triggering).
func (s *Scheduler) RunOnce(ctx context.Context) (int, error) {
	start := time.Now()
	due, err := s.worker.service.store.ListDue(ctx, s.worker.service.Now(), s.batchSize)
	if err != nil {
		return 0, storeError(err, 0)
	}

	processed, failed := s.worker.ProcessBatch(ctx, due)
	s.metrics.RecordProcessed(processed, time.Since(start))
	s.metrics.RecordFailed(failed)
	return processed, nil
}

// Worker notifies due reminders with retry logic and applies the due
// transition to each one it delivered.
type Worker struct {
	service     *Service
	notifier    Notifier
	maxRetries  int
	retryDelay  time.Duration
	concurrency int
	limiter     *rate.Limiter
	metrics     *MetricsCollector
	logger      *slog.Logger
}

// NewWorker creates a new reminder worker.
func NewWorker(service *Service, notifier Notifier, maxRetries int) *Worker {
	return &Worker{
		service:     service,
		notifier:    notifier,
		maxRetries:  maxRetries,
		retryDelay:  time.Second,
		concurrency: 1,
		limiter:     rate.NewLimiter(rate.Inf, 1),
		logger:      slog.Default(),
	}
}

// ProcessReminder notifies a single reminder with retry logic, then marks it
// notified and rearms it when it repeats.
func (w *Worker) ProcessReminder(ctx context.Context, reminder *Reminder) error {
	rc := observability.NewRequestContext(w.logger, "fire", reminder.ChatID, reminder.UserID)
	ctx = observability.WithRequestContext(ctx, rc)
	reminderAttr := slog.Int64(observability.LogFieldReminderID, reminder.ID)

	summary := Summarize(reminder, w.service.Now())
	var lastErr error

	for attempt := 0; attempt <= w.maxRetries; attempt++ {
		if attempt > 0 {
			rc.Info("retrying reminder",
				reminderAttr,
				slog.Int("attempt", attempt),
				slog.Int("max_retries", w.maxRetries),
			)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(w.retryDelay):
			}
		}

		if err := w.limiter.Wait(ctx); err != nil {
			return err
		}
		if lastErr = w.notifier.Notify(ctx, reminder, summary); lastErr == nil {
			break
		}
		rc.Warn("failed to notify reminder",
			reminderAttr,
			slog.String("error", lastErr.Error()),
		)
	}
	if lastErr != nil {
		return lastErr
	}

	fired, ok, err := w.service.Fire(ctx, reminder)
	if err != nil {
		return err
	}
	if !ok {
		rc.Info("reminder edited during delivery, keeping the edit", reminderAttr)
		return nil
	}
	if fired.IsRepeating() && w.metrics != nil {
		w.metrics.RecordRearmed(1)
	}
	return nil
}

// ProcessBatch processes a batch of reminders.
func (w *Worker) ProcessBatch(ctx context.Context, reminders []*Reminder) (processed int, failed int) {
	var ok, bad atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, w.concurrency))
	for _, r := range reminders {
		if gctx.Err() != nil {
			break
		}
		r := r
		g.Go(func() error {
			if err := w.ProcessReminder(gctx, r); err != nil {
				bad.Add(1)
				w.logger.Error("failed to fire reminder",
					observability.LogFieldReminderID, r.ID,
					"error", err,
				)
				return nil
			}
			ok.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	return int(ok.Load()), int(bad.Load())
}

// HealthCheck provides health check for the scheduler.
type HealthCheck struct {
	scheduler  *Scheduler
	lastCheck  time.Time
	checkCount int64
	mu         sync.RWMutex
}

// NewHealthCheck creates a new health check for the scheduler.
func NewHealthCheck(scheduler *Scheduler) *HealthCheck {
	return &HealthCheck{
		scheduler: scheduler,
	}
}

// Check returns the health status.
func (h *HealthCheck) Check() HealthStatus {
	h.mu.Lock()
	h.lastCheck = time.Now()
	h.checkCount++
	status := HealthStatus{
		Healthy:    h.scheduler.IsRunning(),
		LastCheck:  h.lastCheck,
		CheckCount: h.checkCount,
		Stats:      h.scheduler.metrics.GetStats(),
	}
	h.mu.Unlock()

	return status
}

// HealthStatus represents the health of the scheduler.
type HealthStatus struct {
	Healthy    bool      `json:"healthy"`
	LastCheck  time.Time `json:"last_check"`
	CheckCount int64     `json:"check_count"`
	Stats      Stats     `json:"stats"`
}

// Stats holds scheduler statistics.
type Stats struct {
	TotalProcessed int64     `json:"total_processed"`
	TotalFailed    int64     `json:"total_failed"`
	TotalRearmed   int64     `json:"total_rearmed"`
	LastRunAt      time.Time `json:"last_run_at"`
	AverageLatency float64   `json:"average_latency_ms"`

	runs int64
}

// MetricsCollector collects scheduler metrics.
type MetricsCollector struct {
	stats Stats
	mu    sync.RWMutex
}

// NewMetricsCollector creates a new metrics collector.
func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{}
}

// RecordProcessed records the outcome of one cycle.
func (m *MetricsCollector) RecordProcessed(count int, latency time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats.TotalProcessed += int64(count)
	m.stats.LastRunAt = time.Now()
	m.stats.runs++
	ms := float64(latency.Microseconds()) / 1000
	m.stats.AverageLatency += (ms - m.stats.AverageLatency) / float64(m.stats.runs)
}

// RecordFailed records failed reminders.
func (m *MetricsCollector) RecordFailed(count int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats.TotalFailed += int64(count)
}

// RecordRearmed records repeating reminders moved to their next occurrence.
func (m *MetricsCollector) RecordRearmed(count int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats.TotalRearmed += int64(count)
}

// GetStats returns current statistics.
func (m *MetricsCollector) GetStats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.stats
}
