package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"cloud.google.com/go/civil"
	"go.uber.org/zap"

	"fintrack/internal/shared/calendar"
)

// ScheduleTime is a time of day at which the scheduler fires.
type ScheduleTime struct {
	Hour   int
	Minute int
}

// String returns the time in HH:MM format.
func (st ScheduleTime) String() string {
	return fmt.Sprintf("%02d:%02d", st.Hour, st.Minute)
}

// ParseScheduleTime parses a time string in HH:MM format.
func ParseScheduleTime(s string) (ScheduleTime, error) {
	var hour, minute int
	if _, err := fmt.Sscanf(s, "%d:%d", &hour, &minute); err != nil {
		return ScheduleTime{}, fmt.Errorf("invalid time format (expected HH:MM): %w", err)
	}

	if hour < 0 || hour > 23 {
		return ScheduleTime{}, fmt.Errorf("invalid hour: %d (must be 0-23)", hour)
	}
	if minute < 0 || minute > 59 {
		return ScheduleTime{}, fmt.Errorf("invalid minute: %d (must be 0-59)", minute)
	}

	return ScheduleTime{Hour: hour, Minute: minute}, nil
}

// JobProvider lists the jobs of one run for the business date today.
type JobProvider func(ctx context.Context, today civil.Date) ([]Job, error)

// Scheduler submits the provider's jobs to a worker pool at fixed times of
// day in its location.
type Scheduler struct {
	workerPool    *WorkerPool
	scheduleTimes []ScheduleTime
	runOnStartup  bool
	jobProvider   JobProvider
	location      *time.Location
	logger        *zap.Logger
	now           func() time.Time

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	lastRun string
	mu      sync.Mutex
}

type Config struct {
	ScheduleTimes []string
	WorkerCount   int
	JobDelay      time.Duration
	QueueSize     int
	RunOnStartup  bool
	Location      *time.Location
	JobProvider   JobProvider
}

func NewScheduler(config Config, logger *zap.Logger) (*Scheduler, error) {
	scheduleTimes := make([]ScheduleTime, 0, len(config.ScheduleTimes))
	for _, timeStr := range config.ScheduleTimes {
		st, err := ParseScheduleTime(timeStr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse schedule time %q: %w", timeStr, err)
		}
		scheduleTimes = append(scheduleTimes, st)
	}

	if len(scheduleTimes) == 0 {
		return nil, fmt.Errorf("at least one schedule time is required")
	}
	if config.JobProvider == nil {
		return nil, fmt.Errorf("a job provider is required")
	}

	loc := config.Location
	if loc == nil {
		loc = time.UTC
	}

	ctx, cancel := context.WithCancel(context.Background())

	logger.Info("scheduler initialized",
		zap.Strings("schedule_times", config.ScheduleTimes),
		zap.String("location", loc.String()),
		zap.Int("workers", config.WorkerCount),
		zap.Duration("job_delay", config.JobDelay),
	)

	return &Scheduler{
		workerPool:    NewWorkerPool(config.WorkerCount, config.JobDelay, config.QueueSize, logger),
		scheduleTimes: scheduleTimes,
		runOnStartup:  config.RunOnStartup,
		jobProvider:   config.JobProvider,
		location:      loc,
		logger:        logger,
		now:           time.Now,
		ctx:           ctx,
		cancel:        cancel,
	}, nil
}

// Start launches the worker pool and the scheduling loop.
func (s *Scheduler) Start() {
	s.workerPool.Start()

	if s.runOnStartup {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.RunNow()
		}()
	}

	s.wg.Add(1)
	go s.scheduleLoop()
}

func (s *Scheduler) scheduleLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return

		case now := <-ticker.C:
			if s.shouldRun(now) {
				s.logger.Info("scheduler triggered", zap.String("at", now.In(s.location).Format("15:04")))
				s.RunNow()
			}
		}
	}
}

// shouldRun reports whether now matches a schedule time not yet fired for
// the same minute.
func (s *Scheduler) shouldRun(now time.Time) bool {
	local := now.In(s.location)
	key := local.Format("2006-01-02T15:04")

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.lastRun == key {
		return false
	}

	for _, st := range s.scheduleTimes {
		if local.Hour() == st.Hour && local.Minute() == st.Minute {
			s.lastRun = key
			return true
		}
	}
	return false
}

// RunNow fetches the jobs for today and submits them. It returns the number
// of jobs accepted by the pool.
func (s *Scheduler) RunNow() int {
	ctx, cancel := context.WithTimeout(s.ctx, 5*time.Minute)
	defer cancel()

	today := calendar.Today(s.now(), s.location)
	jobs, err := s.jobProvider(ctx, today)
	if err != nil {
		s.logger.Error("failed to fetch jobs", zap.String("date", today.String()), zap.Error(err))
		return 0
	}

	if len(jobs) == 0 {
		s.logger.Info("no jobs to process", zap.String("date", today.String()))
		return 0
	}

	return s.workerPool.SubmitBatch(jobs)
}

// Shutdown stops the loop, then drains the worker pool.
func (s *Scheduler) Shutdown(timeout time.Duration) {
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(timeout):
		s.logger.Warn("timeout waiting for scheduler loop to stop")
	}

	s.workerPool.ShutdownWithTimeout(timeout)
	s.logger.Info("scheduler stopped")
}

// NextScheduledTime returns the next fire time after now.
func (s *Scheduler) NextScheduledTime() time.Time {
	now := s.now().In(s.location)

	var next time.Time
	for _, st := range s.scheduleTimes {
		candidate := time.Date(now.Year(), now.Month(), now.Day(), st.Hour, st.Minute, 0, 0, s.location)
		if !candidate.After(now) {
			candidate = candidate.AddDate(0, 0, 1)
		}
		if next.IsZero() || candidate.Before(next) {
			next = candidate
		}
	}
	return next
}

func (s *Scheduler) ScheduleTimes() []ScheduleTime {
	return s.scheduleTimes
}
