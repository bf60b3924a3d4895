package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

const defaultTickTimeout = 2 * time.Minute

// Job is the work run on every tick.
type Job func(ctx context.Context) error

// TickHook observes each tick's duration and outcome.
type TickHook func(d time.Duration, err error)

type Option func(*Scheduler)

// WithTimeout bounds each tick.
func WithTimeout(d time.Duration) Option {
	return func(s *Scheduler) {
		s.timeout = d
	}
}

func WithTickHook(hook TickHook) Option {
	return func(s *Scheduler) {
		s.hook = hook
	}
}

// Scheduler runs a Job every N minutes of wall-clock time in a fixed
// timezone. Ticks are not serialized: a tick that outlives the interval
// overlaps with the next one.
type Scheduler struct {
	ctx     context.Context
	job     Job
	spec    string
	logger  *logrus.Logger
	cron    *cron.Cron
	timeout time.Duration
	hook    TickHook
}

// Spec builds the cron expression for a refresh interval in minutes.
func Spec(minutes int) string {
	return fmt.Sprintf("*/%d * * * *", minutes)
}

func NewScheduler(ctx context.Context, job Job, minutes int, timezone string, logger *logrus.Logger, opts ...Option) (*Scheduler, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("loading timezone %q: %w", timezone, err)
	}

	s := &Scheduler{
		ctx:     ctx,
		job:     job,
		spec:    Spec(minutes),
		logger:  logger,
		timeout: defaultTickTimeout,
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithChain(cron.Recover(cron.PrintfLogger(logger))),
		),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Start the scheduler
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.spec, s.tick); err != nil {
		return fmt.Errorf("scheduling %q: %w", s.spec, err)
	}
	s.cron.Start()
	s.logger.WithFields(logrus.Fields{
		"schedule": s.spec,
		"timezone": s.cron.Location().String(),
	}).Info("Scheduled switch state updates")
	return nil
}

// tick runs the job once. Errors and panics are logged so that the next
// tick still fires.
func (s *Scheduler) tick() {
	ctx, cancel := context.WithTimeout(s.ctx, s.timeout)
	defer cancel()

	start := time.Now()
	var err error
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
		if err != nil {
			s.logger.WithError(err).Error("Error running scheduled state update")
		}
		if s.hook != nil {
			s.hook(time.Since(start), err)
		}
	}()

	err = s.job(ctx)
}

// Stop the scheduler. The returned context is done once running ticks
// have finished.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}
