package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/rgupta/feedbridge/internal/metrics"
	"github.com/rgupta/feedbridge/internal/model"
)

// TickFunc computes the signal for one tick. This is the insertion point for
// real indicator computation; the default Placeholder emits a canned signal.
type TickFunc func(ctx context.Context) (model.Signal, error)

// Placeholder is the default tick: a canned hold signal.
func Placeholder(ctx context.Context) (model.Signal, error) {
	return model.Signal{Action: "HOLD"}, nil
}

// Config holds scheduler configuration.
type Config struct {
	Interval time.Duration // wall-clock wait between ticks (default: 30s)
	Buffer   int           // outbound channel capacity (default: 16)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Interval: 30 * time.Second,
		Buffer:   16,
	}
}

// Scheduler is the long-lived signal loop. Each wait is armed after the
// previous tick finishes, so the cadence is measured from tick end; there
// is no drift correction toward an absolute schedule.
type Scheduler struct {
	cfg    Config
	tick   TickFunc
	logger *slog.Logger

	out chan model.Signal

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a Scheduler. A nil tick uses Placeholder.
func New(cfg Config, tick TickFunc, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	if tick == nil {
		tick = Placeholder
	}
	if cfg.Buffer <= 0 {
		cfg.Buffer = 16
	}
	return &Scheduler{
		cfg:    cfg,
		tick:   tick,
		logger: logger,
		out:    make(chan model.Signal, cfg.Buffer),
	}
}

// Signals returns the outbound publish channel. It is closed after Stop.
func (s *Scheduler) Signals() <-chan model.Signal {
	return s.out
}

// Start begins the tick loop.
func (s *Scheduler) Start(ctx context.Context) error {
	s.ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(1)
	go s.run()

	s.logger.Info("signal scheduler started", "interval", s.cfg.Interval)

	return nil
}

// Stop shuts the loop down and closes the publish channel.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		close(s.out)
		s.logger.Info("signal scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// run waits the configured interval, ticks, and repeats. The loop exits only
// on shutdown, never because a tick failed.
func (s *Scheduler) run() {
	defer s.wg.Done()

	for {
		timer := time.NewTimer(s.cfg.Interval)
		select {
		case <-s.ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		s.tickOnce()
	}
}

// tickOnce executes one tick, isolating any failure (error or panic) to this
// tick and recording it for diagnostics.
func (s *Scheduler) tickOnce() {
	defer func() {
		if r := recover(); r != nil {
			metrics.SchedulerTicks.WithLabelValues("panic").Inc()
			s.logger.Error("tick panicked", "panic", r)
		}
	}()

	ctx, cancel := context.WithTimeout(s.ctx, s.cfg.Interval)
	defer cancel()

	sig, err := s.tick(ctx)
	if err != nil {
		metrics.SchedulerTicks.WithLabelValues("error").Inc()
		s.logger.Error("tick failed", "error", err)
		return
	}
	metrics.SchedulerTicks.WithLabelValues("ok").Inc()

	select {
	case s.out <- sig:
	default:
		s.logger.Warn("signal buffer full, dropping signal")
	}
}
