package engine

import (
	"context"
	"errors"
	"time"

	"github.com/launchlab/shotcore/internal/frame"
)

// ErrStopped is returned by Submit once the runner has exited.
var ErrStopped = errors.New("engine: runner stopped")

// #region types
// RunnerConfig sizes the queue and the two timers.
type RunnerConfig struct {
	QueueDepth    int
	TickInterval  time.Duration
	FlushInterval time.Duration
}

// Flusher persists buffered telemetry. logging.Recorder satisfies it.
type Flusher interface {
	Flush(ctx context.Context) (int, error)
}
// #endregion types

// #region runner
// Runner is the single writer in front of an Engine. Producers Submit frames
// from any goroutine; Run applies them in arrival order and injects deadman
// ticks from the wall clock so a stalled camera still ends the attempt.
type Runner struct {
	engine  *Engine
	config  RunnerConfig
	flusher Flusher
	frames  chan frame.Frame
	done    chan struct{}
	now     func() time.Time

	lastWall time.Time
}

// NewRunner wraps e. flusher may be nil.
func NewRunner(e *Engine, config RunnerConfig, flusher Flusher) *Runner {
	if config.QueueDepth < 1 {
		config.QueueDepth = 1
	}
	if config.TickInterval <= 0 {
		config.TickInterval = 250 * time.Millisecond
	}
	return &Runner{
		engine:  e,
		config:  config,
		flusher: flusher,
		frames:  make(chan frame.Frame, config.QueueDepth),
		done:    make(chan struct{}),
		now:     time.Now,
	}
}

// Submit enqueues one frame, blocking while the queue is full.
func (r *Runner) Submit(ctx context.Context, f frame.Frame) error {
	select {
	case <-r.done:
		return ErrStopped
	default:
	}
	select {
	case r.frames <- f:
		return nil
	case <-r.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Pending returns the number of queued frames.
func (r *Runner) Pending() int { return len(r.frames) }

// Run drains the queue until ctx is cancelled, then flushes once more.
func (r *Runner) Run(ctx context.Context) error {
	defer close(r.done)

	tick := time.NewTicker(r.config.TickInterval)
	defer tick.Stop()

	var flushC <-chan time.Time
	if r.flusher != nil && r.config.FlushInterval > 0 {
		ft := time.NewTicker(r.config.FlushInterval)
		defer ft.Stop()
		flushC = ft.C
	}

	r.engine.log.Info("engine: runner started",
		"queue_depth", r.config.QueueDepth,
		"tick_interval", r.config.TickInterval,
	)
	for {
		select {
		case <-ctx.Done():
			r.flush(context.WithoutCancel(ctx))
			r.engine.log.Info("engine: runner stopped", "frames", r.engine.State().Frames)
			return nil
		case f := <-r.frames:
			r.lastWall = r.now()
			r.engine.Step(ctx, f)
		case <-tick.C:
			r.tick(ctx)
		case <-flushC:
			r.flush(ctx)
		}
	}
}

func (r *Runner) tick(ctx context.Context) {
	last, ok := r.engine.LastFrame()
	if !ok {
		return
	}
	elapsed := r.now().Sub(r.lastWall).Seconds()
	r.engine.Tick(ctx, last+elapsed)
}

func (r *Runner) flush(ctx context.Context) {
	if r.flusher == nil {
		return
	}
	n, err := r.flusher.Flush(ctx)
	if err != nil {
		r.engine.log.Warn("engine: telemetry flush failed", "error", err)
		return
	}
	if n > 0 {
		r.engine.log.Debug("engine: telemetry flushed", "events", n)
	}
}
// #endregion runner
