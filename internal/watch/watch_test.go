package watch

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/obsimg/obsimg/internal/conditions"
	"github.com/obsimg/obsimg/internal/logger"
)

func TestMain(m *testing.M) {
	logger.UseTestMode()
	os.Exit(m.Run())
}

type fakeSession struct {
	results  []error
	checks   int
	refreshs int
}

func (s *fakeSession) Refresh() { s.refreshs++ }

func (s *fakeSession) Check(ctx context.Context) error {
	err := s.results[s.checks]
	s.checks++
	return err
}

// fakeClock advances a fake wall clock instead of sleeping.
type fakeClock struct {
	t     time.Time
	slept []time.Duration
}

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) sleep(ctx context.Context, d time.Duration) error {
	c.slept = append(c.slept, d)
	c.t = c.t.Add(d)
	return nil
}

func newTestWatcher(interval, budget time.Duration) (*Watcher, *fakeClock) {
	clock := &fakeClock{t: time.Unix(1700000000, 0)}
	w := New(interval, budget)
	w.now = clock.now
	w.sleep = clock.sleep
	return w, clock
}

func TestWaitSatisfiedFirstCycle(t *testing.T) {
	w, clock := newTestWatcher(time.Second, time.Minute)
	session := &fakeSession{results: []error{nil}}

	if err := w.Wait(context.Background(), session); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if w.State() != Satisfied {
		t.Errorf("expected Satisfied, got %v", w.State())
	}
	if len(clock.slept) != 0 {
		t.Errorf("expected no sleeps, got %v", clock.slept)
	}
	if session.refreshs != 0 {
		t.Errorf("expected no refresh, got %d", session.refreshs)
	}
}

func TestWaitZeroBudgetTimesOutWithoutSleeping(t *testing.T) {
	w, clock := newTestWatcher(time.Second, 0)
	failure := &conditions.ConditionsNotMetError{}
	session := &fakeSession{results: []error{failure}}

	err := w.Wait(context.Background(), session)
	if !errors.Is(err, failure) {
		t.Fatalf("expected the evaluation error back, got %v", err)
	}
	if w.State() != TimedOut {
		t.Errorf("expected TimedOut, got %v", w.State())
	}
	if len(clock.slept) != 0 {
		t.Errorf("expected no sleeps, got %v", clock.slept)
	}
	if session.checks != 1 {
		t.Errorf("expected a single evaluation, got %d", session.checks)
	}
}

func TestWaitRetriesAndRefreshes(t *testing.T) {
	w, clock := newTestWatcher(10*time.Second, time.Minute)
	session := &fakeSession{results: []error{
		&conditions.ConditionsNotMetError{},
		&conditions.ConditionsNotMetError{},
		nil,
	}}

	if err := w.Wait(context.Background(), session); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if session.checks != 3 {
		t.Errorf("expected 3 evaluations, got %d", session.checks)
	}
	if session.refreshs != 2 {
		t.Errorf("expected 2 refreshes, got %d", session.refreshs)
	}
	for _, d := range clock.slept {
		if d != 10*time.Second {
			t.Errorf("unexpected sleep %v", d)
		}
	}
}

func TestWaitSleepBoundedByRemainingBudget(t *testing.T) {
	w, clock := newTestWatcher(time.Minute, 10*time.Second)
	session := &fakeSession{results: []error{
		&conditions.ConditionsNotMetError{},
		&conditions.ConditionsNotMetError{},
	}}

	err := w.Wait(context.Background(), session)
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if len(clock.slept) != 1 || clock.slept[0] != 10*time.Second {
		t.Errorf("expected one sleep of 10s, got %v", clock.slept)
	}
	if w.State() != TimedOut {
		t.Errorf("expected TimedOut, got %v", w.State())
	}
}

func TestWaitDoesNotRetryResolutionErrors(t *testing.T) {
	w, _ := newTestWatcher(time.Second, time.Minute)
	fatal := errors.New("no artifact matching pattern")
	session := &fakeSession{results: []error{fatal}}

	if err := w.Wait(context.Background(), session); !errors.Is(err, fatal) {
		t.Fatalf("expected resolution error to surface, got %v", err)
	}
	if session.checks != 1 {
		t.Errorf("expected a single evaluation, got %d", session.checks)
	}
}

func TestWaitContextCancelled(t *testing.T) {
	w, _ := newTestWatcher(time.Second, time.Minute)
	w.sleep = sleepContext

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	session := &fakeSession{results: []error{&conditions.ConditionsNotMetError{}}}
	if err := w.Wait(ctx, session); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestWaitForNewReturnsOnChecksumChange(t *testing.T) {
	w, clock := newTestWatcher(time.Second, 0)

	checksums := []string{"aaa", "aaa", "bbb"}
	i := 0
	probe := func(ctx context.Context) (string, error) {
		c := checksums[i]
		i++
		return c, nil
	}

	if err := w.WaitForNew(context.Background(), probe, "aaa"); err != nil {
		t.Fatalf("WaitForNew: %v", err)
	}
	if len(clock.slept) != 2 {
		t.Errorf("expected 2 sleeps, got %d", len(clock.slept))
	}
}

func TestWaitForNewPropagatesProbeError(t *testing.T) {
	w, _ := newTestWatcher(time.Second, 0)
	boom := errors.New("fetch failed")
	probe := func(ctx context.Context) (string, error) { return "", boom }

	if err := w.WaitForNew(context.Background(), probe, "aaa"); !errors.Is(err, boom) {
		t.Fatalf("expected probe error, got %v", err)
	}
}
