package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// runTimeout bounds one warm-up pass across all locations.
const runTimeout = 60 * time.Second

// Warmer refreshes predictions for a set of locations on a date.
type Warmer interface {
	Warm(ctx context.Context, locations []string, date time.Time) error
}

type Scheduler struct {
	warmer    Warmer
	logger    *zap.Logger
	locations []string
	interval  time.Duration
	cron      *cron.Cron
	entryID   cron.EntryID
	runMu     sync.Mutex
	mu        sync.Mutex
	running   bool
	lastRun   time.Time
	lastError string
	runCount  int
	skipCount int
}

func NewScheduler(warmer Warmer, locations []string, interval time.Duration, logger *zap.Logger) *Scheduler {
	cronLog := cronLogger{logger.Sugar()}
	return &Scheduler{
		warmer:    warmer,
		logger:    logger,
		locations: locations,
		interval:  interval,
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithLogger(cronLog),
			cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
		),
	}
}

func (s *Scheduler) Start() error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}

	id, err := s.cron.AddFunc("@every "+s.interval.String(), s.runWarm)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	s.entryID = id
	s.running = true
	s.mu.Unlock()

	s.cron.Start()

	s.logger.Info("Scheduler started",
		zap.Duration("interval", s.interval),
		zap.Time("next_run", s.cron.Entry(id).Next))

	// Run immediately on start
	go s.runWarm()

	return nil
}

func (s *Scheduler) runWarm() {
	if !s.runMu.TryLock() {
		s.mu.Lock()
		s.skipCount++
		s.mu.Unlock()
		s.logger.Debug("Skipping warm-up, previous run still in progress")
		return
	}
	defer s.runMu.Unlock()

	s.mu.Lock()
	locations := append([]string(nil), s.locations...)
	s.mu.Unlock()

	startTime := time.Now()
	s.logger.Info("Starting scheduled prediction warm-up",
		zap.Time("start_time", startTime),
		zap.Strings("locations", locations))

	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()

	err := s.warmer.Warm(ctx, locations, startTime.UTC())

	s.mu.Lock()
	s.lastRun = startTime
	s.runCount++
	s.lastError = ""
	if err != nil {
		s.lastError = err.Error()
	}
	s.mu.Unlock()

	if err != nil {
		s.logger.Error("Scheduled warm-up failed",
			zap.Error(err),
			zap.Duration("duration", time.Since(startTime)))
	} else {
		s.logger.Info("Scheduled warm-up completed",
			zap.Duration("duration", time.Since(startTime)))
	}
}

// Stop halts the schedule and waits for a running job to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.cron.Remove(s.entryID)
	s.mu.Unlock()

	s.logger.Info("Stopping scheduler")
	<-s.cron.Stop().Done()
}

func (s *Scheduler) ForceRun() {
	s.logger.Info("Manually triggering prediction warm-up")
	go s.runWarm()
}

func (s *Scheduler) GetStatus() map[string]interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := map[string]interface{}{
		"running":    s.running,
		"interval":   s.interval.String(),
		"last_run":   s.lastRun,
		"last_error": s.lastError,
		"run_count":  s.runCount,
		"skip_count": s.skipCount,
		"locations":  s.locations,
	}
	if s.running {
		status["next_run"] = s.cron.Entry(s.entryID).Next
	}
	return status
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	sugar *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.sugar.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.sugar.Errorw(msg, append(keysAndValues, "error", err)...)
}
