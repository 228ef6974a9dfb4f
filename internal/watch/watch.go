// Package watch drives repeated condition evaluation until an image build
// satisfies every declared condition or the wait budget runs out.
package watch

import (
	"context"
	"errors"
	"time"

	"github.com/obsimg/obsimg/internal/conditions"
	"github.com/obsimg/obsimg/internal/logger"
)

// State of the polling loop.
type State int

const (
	Idle State = iota
	Evaluating
	Waiting
	Satisfied
	TimedOut
)

func (s State) String() string {
	switch s {
	case Evaluating:
		return "evaluating"
	case Waiting:
		return "waiting"
	case Satisfied:
		return "satisfied"
	case TimedOut:
		return "timed-out"
	default:
		return "idle"
	}
}

// Session is one polling target. Refresh discards any cached resolution state
// so the next Check re-resolves the artifact from a fresh directory listing;
// Check resolves, parses metadata and evaluates conditions once.
type Session interface {
	Refresh()
	Check(ctx context.Context) error
}

// Watcher owns the wall-clock budget of a condition wait. Only condition
// failures are retried; resolution and configuration errors surface
// immediately.
type Watcher struct {
	Interval time.Duration
	Budget   time.Duration

	state State
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// DefaultInterval between evaluation cycles.
const DefaultInterval = 150 * time.Second

func New(interval, budget time.Duration) *Watcher {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Watcher{
		Interval: interval,
		Budget:   budget,
		state:    Idle,
		now:      time.Now,
		sleep:    sleepContext,
	}
}

// State returns the current loop state.
func (w *Watcher) State() State { return w.state }

// Wait polls session until it passes or the budget elapses. Between failing
// cycles the session is refreshed so a newly published build can be picked
// up. The sleep is bounded by the remaining budget; with a zero budget a
// single failing evaluation times out immediately and its error is returned.
func (w *Watcher) Wait(ctx context.Context, session Session) error {
	deadline := w.now().Add(w.Budget)

	for {
		w.transition(Evaluating)

		err := session.Check(ctx)
		if err == nil {
			w.transition(Satisfied)
			return nil
		}

		var notMet *conditions.ConditionsNotMetError
		if !errors.As(err, &notMet) {
			// Not a condition failure: resolution errors, metadata errors
			// and configuration errors are not retried here.
			return err
		}

		remaining := deadline.Sub(w.now())
		if remaining <= 0 {
			w.transition(TimedOut)
			return err
		}

		w.transition(Waiting)
		pause := min(w.Interval, remaining)
		logger.Warn("%v, retrying in %s...", err, pause.Truncate(time.Second))
		if serr := w.sleep(ctx, pause); serr != nil {
			return serr
		}
		session.Refresh()
	}
}

// ChecksumProbe fetches the checksum of the currently published build.
type ChecksumProbe func(ctx context.Context) (string, error)

// WaitForNew loops until probe reports a checksum different from last. There
// is no deadline; cancellation is the caller's responsibility via ctx.
func (w *Watcher) WaitForNew(ctx context.Context, probe ChecksumProbe, last string) error {
	logger.Debug("waiting for new image")

	for {
		current, err := probe(ctx)
		if err != nil {
			return err
		}
		if current != last {
			return nil
		}
		if err := w.sleep(ctx, w.Interval); err != nil {
			return err
		}
	}
}

func (w *Watcher) transition(next State) {
	if w.state != next {
		logger.Debug("condition wait: %s -> %s", w.state, next)
		w.state = next
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
