// Package scheduler requests import runs on a cron schedule.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dukex/lakeflow/pkg/models"
	"github.com/dukex/lakeflow/pkg/services"
	"github.com/robfig/cron/v3"
)

const (
	// DefaultCron runs the import once a day at 02:00.
	DefaultCron = "0 2 * * *"

	TriggerName = "schedule"
)

var ErrDisabled = errors.New("schedule is disabled")

// Config is the schedule section of the config file. The schedule is off by
// default so it cannot overlap a first manual hydration.
type Config struct {
	Cron     string         `json:"cron"     yaml:"cron"     validate:"required"`
	Enabled  bool           `json:"enabled"  yaml:"enabled"`
	Timezone string         `json:"timezone" yaml:"timezone"`
	Input    map[string]any `json:"input"    yaml:"input"`
}

func DefaultConfig() Config {
	return Config{Cron: DefaultCron, Timezone: "UTC"}
}

// Validate parses the cron expression and the timezone.
func (c Config) Validate() error {
	_, err := cron.ParseStandard(c.Cron)
	if err != nil {
		return fmt.Errorf("invalid cron expression '%s': %w", c.Cron, err)
	}

	_, err = c.location()
	if err != nil {
		return fmt.Errorf("invalid timezone '%s': %w", c.Timezone, err)
	}

	return nil
}

func (c Config) location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.UTC, nil
	}

	return time.LoadLocation(c.Timezone)
}

// Requester records a run request. *services.Run implements it.
type Requester interface {
	Request(ctx context.Context, req services.RunRequest) (*models.Run, error)
}

type Scheduler struct {
	requester Requester
	config    Config
	logger    *slog.Logger
	cron      *cron.Cron
	entry     cron.EntryID
	mutex     sync.Mutex
	ctx       context.Context
	cancel    context.CancelFunc
}

// New validates config and creates a stopped scheduler.
func New(requester Requester, config Config, logger *slog.Logger) (*Scheduler, error) {
	err := config.Validate()
	if err != nil {
		return nil, err
	}

	return &Scheduler{
		requester: requester,
		config:    config,
		logger:    logger.With("module", "scheduler"),
	}, nil
}

// Start registers the cron job and starts ticking. A tick that fires while
// the previous one is still requesting is skipped.
func (s *Scheduler) Start(ctx context.Context) error {
	if !s.config.Enabled {
		s.logger.InfoContext(ctx, "Schedule is disabled, skipping", "cron", s.config.Cron)

		return ErrDisabled
	}

	location, err := s.config.location()
	if err != nil {
		return err
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.ctx, s.cancel = context.WithCancel(ctx)

	cronLogger := slogCronLogger{logger: s.logger}

	s.cron = cron.New(
		cron.WithLocation(location),
		cron.WithLogger(cronLogger),
		cron.WithChain(
			cron.SkipIfStillRunning(cronLogger),
			cron.Recover(cronLogger),
		),
	)

	s.entry, err = s.cron.AddFunc(s.config.Cron, func() {
		_, _ = s.Trigger(s.ctx)
	})
	if err != nil {
		return fmt.Errorf("failed to add cron job: %w", err)
	}

	s.cron.Start()

	s.logger.InfoContext(ctx, "Scheduler started", "cron", s.config.Cron, "timezone", location.String(), "next", s.Next())

	return nil
}

// Next is the time of the next tick, or zero when the scheduler is stopped.
func (s *Scheduler) Next() time.Time {
	if s.cron == nil {
		return time.Time{}
	}

	return s.cron.Entry(s.entry).Next
}

// Trigger requests one run now.
func (s *Scheduler) Trigger(ctx context.Context) (*models.Run, error) {
	input := map[string]any{}
	for k, v := range s.config.Input {
		input[k] = v
	}

	input["scheduledAt"] = time.Now().UTC().Format(time.RFC3339)

	run, err := s.requester.Request(ctx, services.RunRequest{Trigger: TriggerName, Input: input})
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to request scheduled run", "error", err)

		return nil, err
	}

	s.logger.InfoContext(ctx, "Scheduled run requested", "run_id", run.ID)

	return run, nil
}

// Stop stops the cron and waits for a running tick until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.cron == nil {
		return nil
	}

	done := s.cron.Stop()

	select {
	case <-done.Done():
	case <-ctx.Done():
	}

	if s.cancel != nil {
		s.cancel()
	}

	s.cron = nil

	s.logger.InfoContext(ctx, "Scheduler stopped")

	return nil
}

// slogCronLogger routes cron's own logging through slog.
type slogCronLogger struct {
	logger *slog.Logger
}

func (l slogCronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l slogCronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(msg, append(keysAndValues, "error", err)...)
}
