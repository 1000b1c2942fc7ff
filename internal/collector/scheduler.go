package collector

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/johnayoung/go-crypto-datautil/internal/config"
	apperrors "github.com/johnayoung/go-crypto-datautil/internal/errors"
	"github.com/johnayoung/go-crypto-datautil/internal/logger"
	"github.com/johnayoung/go-crypto-datautil/internal/models"
)

// Scheduler runs daily downloads on cron expressions. Runs of the same job
// never overlap: a tick that arrives while the previous run is still going is
// skipped.
type Scheduler struct {
	cron   *cron.Cron
	logger *slog.Logger
	now    func() time.Time

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	running bool
	last    map[cron.EntryID]*models.Job
}

// NewScheduler creates a stopped scheduler. Expressions are read with
// config.CronParser and evaluated in UTC.
func NewScheduler(log *slog.Logger) *Scheduler {
	l := logger.OrDefault(log).With("component", "scheduler")
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron: cron.New(
			cron.WithParser(config.CronParser),
			cron.WithLocation(time.UTC),
			cron.WithChain(cron.Recover(cronLogger{l}), cron.SkipIfStillRunning(cronLogger{l})),
		),
		logger: l,
		now:    time.Now,
		ctx:    ctx,
		cancel: cancel,
		last:   make(map[cron.EntryID]*models.Job),
	}
}

// AddDailyJob registers d to download [today-lookbackDays, yesterday] on
// every tick of spec.
func (s *Scheduler) AddDailyJob(spec string, d *Downloader, lookbackDays int) (cron.EntryID, error) {
	if lookbackDays <= 0 {
		return 0, apperrors.Newf(apperrors.ErrorTypeConfiguration, "scheduler", "add_job",
			"lookback days must be positive, got %d", lookbackDays)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var id cron.EntryID
	id, err := s.cron.AddFunc(spec, func() {
		job, err := s.RunDaily(s.ctx, d, lookbackDays)
		s.mu.Lock()
		entry := id
		s.last[entry] = job
		s.mu.Unlock()
		if err != nil {
			s.logger.Error("scheduled download failed", "entry", entry, "error", err)
		}
	})
	if err != nil {
		return 0, apperrors.New(apperrors.ErrorTypeConfiguration, "scheduler", "add_job", err)
	}
	s.logger.Info("daily job registered", "entry", id, "spec", spec, "lookback_days", lookbackDays)
	return id, nil
}

// RunDaily performs one scheduled download immediately.
func (s *Scheduler) RunDaily(ctx context.Context, d *Downloader, lookbackDays int) (*models.Job, error) {
	start, end := LookbackRange(s.now(), lookbackDays)
	return d.saveDaily(ctx, models.JobTypeScheduled, start, end)
}

// LookbackRange returns the YYYY/MM/DD days from lookbackDays before now up
// to yesterday, in UTC.
func LookbackRange(now time.Time, lookbackDays int) (string, string) {
	today := now.UTC().Truncate(24 * time.Hour)
	start := today.AddDate(0, 0, -lookbackDays)
	end := today.AddDate(0, 0, -1)
	return start.Format("2006/01/02"), end.Format("2006/01/02")
}

// LastJob returns the job of the latest completed run of entry, or nil.
func (s *Scheduler) LastJob(id cron.EntryID) *models.Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last[id]
}

// Next returns the next activation of entry.
func (s *Scheduler) Next(id cron.EntryID) time.Time {
	return s.cron.Entry(id).Next
}

// Start begins running the registered jobs in the background.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running || s.ctx.Err() != nil {
		return
	}
	s.running = true
	s.cron.Start()
	s.logger.Info("scheduler started", "entries", len(s.cron.Entries()))
}

// Stop cancels running downloads and waits for them to return, or for ctx
// to be done. A stopped scheduler is not restarted.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.mu.Unlock()

	done := s.cron.Stop()
	s.cancel()
	select {
	case <-done.Done():
		s.logger.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		s.logger.Warn("scheduler stop timed out")
		return ctx.Err()
	}
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct{ l *slog.Logger }

func (c cronLogger) Info(msg string, kv ...interface{}) { c.l.Debug(msg, kv...) }

func (c cronLogger) Error(err error, msg string, kv ...interface{}) {
	c.l.Error(msg, append([]interface{}{"error", err}, kv...)...)
}
