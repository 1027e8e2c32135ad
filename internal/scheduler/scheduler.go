// Package scheduler triggers the periodic credit jobs.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Dan9191/credit-service/internal/sweep"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

const jobTimeout = 10 * time.Minute

// Sweeper runs one overdue/penalty tick
type Sweeper interface {
	RunOnce(ctx context.Context) (sweep.Report, error)
}

// TariffDeactivator switches off expired tariffs
type TariffDeactivator interface {
	DeactivateExpiredTariffs(ctx context.Context) (int, error)
}

// Scheduler runs the sweep and the tariff job on cron schedules. Sweeps never
// overlap inside one process, whether started by cron or by RunSweep.
type Scheduler struct {
	cron    *cron.Cron
	sweeper Sweeper
	tariffs TariffDeactivator
	log     *logrus.Logger
	sweepMu sync.Mutex
}

// cronLogger adapts logrus to cron.Logger
type cronLogger struct {
	log *logrus.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.WithFields(fields(keysAndValues)).Debug(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.WithFields(fields(keysAndValues)).Errorf("%s: %v", msg, err)
}

func fields(kv []interface{}) logrus.Fields {
	f := logrus.Fields{}
	for i := 0; i+1 < len(kv); i += 2 {
		f[fmt.Sprint(kv[i])] = kv[i+1]
	}
	return f
}

// NewScheduler initializes a new scheduler
func NewScheduler(sweeper Sweeper, tariffs TariffDeactivator, log *logrus.Logger) *Scheduler {
	logger := cronLogger{log: log}
	return &Scheduler{
		cron:    cron.New(cron.WithLogger(logger), cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger))),
		sweeper: sweeper,
		tariffs: tariffs,
		log:     log,
	}
}

// Register adds both jobs. Specs use the standard five-field cron syntax or
// descriptors such as "@every 1h" and "@midnight".
func (s *Scheduler) Register(sweepSpec, tariffSpec string) error {
	if _, err := s.cron.AddFunc(sweepSpec, s.sweepJob); err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", sweepSpec, err)
	}
	if _, err := s.cron.AddFunc(tariffSpec, s.tariffJob); err != nil {
		return fmt.Errorf("invalid tariff schedule %q: %w", tariffSpec, err)
	}
	s.log.Infof("Scheduled credit sweep (%s) and tariff deactivation (%s)", sweepSpec, tariffSpec)
	return nil
}

// Start runs the scheduler in the background
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop stops scheduling and waits for running jobs or ctx, whichever ends first
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
		s.log.Warn("Scheduler stopped before running jobs finished")
	}
}

// RunSweep runs one sweep tick now
func (s *Scheduler) RunSweep(ctx context.Context) (sweep.Report, error) {
	s.sweepMu.Lock()
	defer s.sweepMu.Unlock()
	return s.sweeper.RunOnce(ctx)
}

func (s *Scheduler) sweepJob() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()
	if _, err := s.RunSweep(ctx); err != nil {
		s.log.Errorf("Scheduled credit sweep failed: %v", err)
	}
}

func (s *Scheduler) tariffJob() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()
	n, err := s.tariffs.DeactivateExpiredTariffs(ctx)
	if err != nil {
		s.log.Errorf("Scheduled tariff deactivation failed: %v", err)
		return
	}
	s.log.Infof("Deactivated %d expired tariffs", n)
}
