// Package scheduler runs the periodic per-student refresh jobs and tracks
// their execution status.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/oto-macenauer/school-summary/internal/app/students"
	"github.com/oto-macenauer/school-summary/internal/platform/config"
	"github.com/oto-macenauer/school-summary/internal/platform/logging"
)

// Default refresh intervals in seconds, used when the config omits a job.
var defaultIntervals = map[string]int{
	"timetable": 3600,
	"marks":     1800,
	"komens":    900,
	"mail":      900,
	"summary":   86400,
	"prepare":   3600,
	"gdrive":    3600,
	"canteen":   3600,
}

type jobFunc func(ctx context.Context, sc *students.Context) error

// Scheduler owns one goroutine per (job, student) pair. Start launches
// them, Stop cancels and waits.
type Scheduler struct {
	manager *students.Manager
	cfg     *config.Config
	logger  *slog.Logger

	gatePoll    time.Duration
	gateTimeout time.Duration

	mu       sync.RWMutex
	statuses map[string]*TaskStatus

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(manager *students.Manager, cfg *config.Config, logger *slog.Logger) *Scheduler {
	poll := cfg.Scheduler.Gate.PollSeconds
	if poll <= 0 {
		poll = 5
	}
	timeout := cfg.Scheduler.Gate.TimeoutSeconds
	if timeout <= 0 {
		timeout = 300
	}
	return &Scheduler{
		manager:     manager,
		cfg:         cfg,
		logger:      logger,
		gatePoll:    time.Duration(poll) * time.Second,
		gateTimeout: time.Duration(timeout) * time.Second,
		statuses:    make(map[string]*TaskStatus),
	}
}

func (s *Scheduler) interval(job string) time.Duration {
	seconds := s.cfg.Scheduler.Intervals[job]
	if seconds <= 0 {
		seconds = defaultIntervals[job]
	}
	if seconds <= 0 {
		seconds = 3600
	}
	return time.Duration(seconds) * time.Second
}

// Start launches all periodic jobs. The parent context cancels everything;
// Stop does the same explicitly.
func (s *Scheduler) Start(parent context.Context) {
	ctx, cancel := context.WithCancel(parent)
	s.cancel = cancel

	jobs := []struct {
		name string
		fn   jobFunc
	}{
		{"timetable", s.refreshTimetable},
		{"marks", s.refreshMarks},
		{"komens", s.refreshKomens},
		{"summary", s.refreshSummary},
		{"prepare", s.refreshPrepare},
	}

	count := 0
	for _, sc := range s.manager.All() {
		for _, job := range jobs {
			s.launch(ctx, job.name, sc.Name, s.interval(job.name), sc, job.fn)
			count++
		}
		if s.manager.Drive() != nil {
			s.launch(ctx, "gdrive", sc.Name, s.interval("gdrive"), sc, s.refreshGDrive)
			count++
		}
	}

	// Mail and canteen are school-wide, scheduled once.
	if s.manager.Drive() != nil && s.cfg.GDrive.MailFolderID != "" {
		s.launch(ctx, "mail", "global", s.interval("mail"), nil, s.refreshMail)
		count++
	}
	if s.manager.Canteen() != nil {
		s.launch(ctx, "canteen", "global", s.interval("canteen"), nil, s.refreshCanteen)
		count++
	}

	s.logger.Info("scheduler started",
		logging.Category(logging.CategoryScheduler),
		slog.Int("tasks", count))
}

func (s *Scheduler) launch(ctx context.Context, job, student string, interval time.Duration, sc *students.Context, fn jobFunc) {
	key := job + ":" + student
	now := time.Now()
	s.mu.Lock()
	s.statuses[key] = &TaskStatus{
		TaskName:        job,
		Student:         student,
		IntervalSeconds: int(interval / time.Second),
		LastStatus:      statusPending,
		NextRun:         &now,
	}
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.runPeriodic(ctx, key, interval, sc, fn)
	}()
}

func (s *Scheduler) runPeriodic(ctx context.Context, key string, interval time.Duration, sc *students.Context, fn jobFunc) {
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		s.runOnce(ctx, key, sc, fn)

		next := time.Now().Add(interval)
		s.mu.Lock()
		s.statuses[key].NextRun = &next
		s.mu.Unlock()

		timer.Reset(interval)
	}
}

func (s *Scheduler) runOnce(ctx context.Context, key string, sc *students.Context, fn jobFunc) {
	start := time.Now()
	s.mu.Lock()
	status := s.statuses[key]
	status.LastRun = &start
	s.mu.Unlock()

	err := fn(ctx, sc)
	elapsed := time.Since(start).Milliseconds()

	s.mu.Lock()
	defer s.mu.Unlock()
	status.LastDurationMS = elapsed
	status.RunCount++
	if err != nil {
		if ctx.Err() != nil {
			// Shutdown cancels in-flight jobs, don't count that as failure.
			status.RunCount--
			return
		}
		status.LastStatus = statusError
		status.LastError = err.Error()
		status.ErrorCount++
		s.logger.Error(fmt.Sprintf("task %s failed", key),
			logging.Category(logging.CategoryScheduler),
			slog.Any("error", err))
		return
	}
	status.LastStatus = statusSuccess
	status.LastError = ""
	s.logger.Info(fmt.Sprintf("task %s completed in %dms", key, elapsed),
		logging.Category(logging.CategoryScheduler))
}

// Stop cancels all jobs and waits for in-flight runs to finish.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	s.logger.Info("scheduler stopped", logging.Category(logging.CategoryScheduler))
}

// TaskStatuses returns a copy of every task's status.
func (s *Scheduler) TaskStatuses() map[string]TaskStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]TaskStatus, len(s.statuses))
	for key, status := range s.statuses {
		out[key] = *status
	}
	return out
}

// Status returns the status for one task key.
func (s *Scheduler) Status(key string) (TaskStatus, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	status, ok := s.statuses[key]
	if !ok {
		return TaskStatus{}, false
	}
	return *status, true
}

// waitForData polls until the student's first timetable (and optionally
// marks) fetch has landed. Returns false on timeout or cancellation.
func (s *Scheduler) waitForData(ctx context.Context, sc *students.Context, needsMarks bool) bool {
	deadline := time.Now().Add(s.gateTimeout)
	ticker := time.NewTicker(s.gatePoll)
	defer ticker.Stop()

	for {
		if sc.HasTimetable() && (!needsMarks || sc.HasMarks()) {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
		}
	}
}
