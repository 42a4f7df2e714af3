// Package scheduler runs the periodic refresh and cleanup jobs on cron
// schedules.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"event-enricher/internal/common/errors"
	"event-enricher/internal/common/logging"
	"event-enricher/internal/pipeline"
)

const (
	RefreshJob = "refresh"
	CleanupJob = "cleanup"
)

// Refresher runs a full refresh cycle
type Refresher interface {
	FetchAllEvents(ctx context.Context) (pipeline.CycleReport, bool)
}

// Purger deletes events that have ended
type Purger interface {
	PurgeEnded(ctx context.Context) (int64, error)
}

// Config holds the job schedules. An empty schedule disables its job.
type Config struct {
	RefreshSchedule string
	CleanupSchedule string
	RefreshOnStart  bool
	Location        *time.Location
}

// Scheduler owns the cron runner and the jobs registered on it
type Scheduler struct {
	cron      *cron.Cron
	refresher Refresher
	purger    Purger
	onPurge   func(int64)
	config    Config
	entries   map[string]cron.EntryID

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	logger logging.Logger
}

// New registers the refresh and cleanup jobs. Jobs do not run until Start.
func New(cfg Config, refresher Refresher, purger Purger) (*Scheduler, error) {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}

	logger := logging.ForComponent("scheduler")
	cl := cronLogger{logger: logger}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		cron: cron.New(
			cron.WithLocation(cfg.Location),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		refresher: refresher,
		purger:    purger,
		config:    cfg,
		entries:   make(map[string]cron.EntryID),
		ctx:       ctx,
		cancel:    cancel,
		logger:    logger,
	}

	if err := s.add(RefreshJob, cfg.RefreshSchedule, refresher != nil, s.refresh); err != nil {
		cancel()
		return nil, err
	}
	if err := s.add(CleanupJob, cfg.CleanupSchedule, purger != nil, s.cleanup); err != nil {
		cancel()
		return nil, err
	}

	return s, nil
}

func (s *Scheduler) add(name, spec string, enabled bool, job func(context.Context)) error {
	if spec == "" || !enabled {
		s.logger.Info("Job disabled", logging.String("job", name))
		return nil
	}

	id, err := s.cron.AddFunc(spec, func() { job(s.ctx) })
	if err != nil {
		return errors.ConfigError(fmt.Sprintf("invalid %s schedule %q: %v", name, spec, err))
	}
	s.entries[name] = id
	return nil
}

// SetPurgeHook is called with the number of events each cleanup run deleted
func (s *Scheduler) SetPurgeHook(fn func(int64)) {
	s.onPurge = fn
}

func (s *Scheduler) SetLogger(logger logging.Logger) {
	s.logger = logger
}

// Start starts the cron runner and, when configured, an immediate refresh
func (s *Scheduler) Start() {
	s.cron.Start()

	for name, id := range s.entries {
		s.logger.Info("Job scheduled",
			logging.String("job", name),
			logging.Time("next_run", s.cron.Entry(id).Next),
		)
	}

	if s.config.RefreshOnStart && s.refresher != nil {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.refresh(s.ctx)
		}()
	}
}

// Stop cancels running jobs and waits for them to return or for ctx to end
func (s *Scheduler) Stop(ctx context.Context) error {
	s.cancel()
	stopped := s.cron.Stop()

	done := make(chan struct{})
	go func() {
		<-stopped.Done()
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Scheduler stopped")
		return nil
	case <-ctx.Done():
		return errors.TimeoutError("scheduler stop")
	}
}

// NextRuns reports when each scheduled job runs next
func (s *Scheduler) NextRuns() map[string]time.Time {
	runs := make(map[string]time.Time, len(s.entries))
	for name, id := range s.entries {
		runs[name] = s.cron.Entry(id).Next
	}
	return runs
}

func (s *Scheduler) refresh(ctx context.Context) {
	report, ran := s.refresher.FetchAllEvents(ctx)
	if !ran {
		s.logger.Debug("Scheduled refresh skipped")
		return
	}
	if report.Failed() || report.TimedOut {
		s.logger.Warn("Scheduled refresh finished with errors",
			logging.String("cycle_id", report.ID),
			logging.Bool("timed_out", report.TimedOut),
		)
	}
}

func (s *Scheduler) cleanup(ctx context.Context) {
	deleted, err := s.purger.PurgeEnded(ctx)
	if err != nil {
		s.logger.Error("Scheduled cleanup failed", err)
		return
	}
	if s.onPurge != nil {
		s.onPurge(deleted)
	}
}

// cronLogger routes cron's own messages to the structured logger
type cronLogger struct {
	logger logging.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(msg, fieldsOf(keysAndValues)...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, err, fieldsOf(keysAndValues)...)
}

func fieldsOf(keysAndValues []interface{}) []logging.Field {
	fields := make([]logging.Field, 0, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		fields = append(fields, logging.Any(fmt.Sprint(keysAndValues[i]), keysAndValues[i+1]))
	}
	return fields
}
