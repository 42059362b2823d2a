package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/fieldreport/chatsync/internal/metrics"
	"go.uber.org/zap"
)

// CycleRunner executes one sync cycle. The coordinator's state machine makes
// it non-reentrant; the scheduler additionally runs cycles from a single
// goroutine so at most one is ever in flight.
type CycleRunner interface {
	RunCycle(ctx context.Context) error
}

// ErrSkipped is returned by a CycleRunner that did not run a cycle at all
// (unauthenticated, or a trigger dropped mid-cycle). A skip is neither a
// success nor a failure: the consecutive-failure streak stays as it is.
var ErrSkipped = errors.New("sync cycle skipped")

type wake int

const (
	// wakeReschedule re-arms the pending timer with a freshly computed delay.
	wakeReschedule wake = iota
	// wakeImmediate runs one out-of-band cycle right away.
	wakeImmediate
)

// Scheduler drives the repeating sync loop. The delay before each cycle comes
// from Delay over the current visibility, focus and failure count. Wake
// signals only interrupt a waiting timer, never an in-flight cycle; a trigger
// arriving mid-cycle is dropped, not queued.
type Scheduler struct {
	runner CycleRunner
	clock  Clock
	logger *zap.Logger

	mu       sync.Mutex
	visible  bool
	focused  string
	failures int
	running  bool
	stopCh   chan struct{}
	wakeCh   chan wake
}

// New creates a scheduler. The tab is considered visible until told otherwise.
func New(runner CycleRunner, clock Clock, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		runner:  runner,
		clock:   clock,
		logger:  logger,
		visible: true,
	}
}

// Start launches the polling loop. Calling Start on a running scheduler is a
// no-op.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.wakeCh = make(chan wake)
	go s.loop(s.stopCh, s.wakeCh)
}

// Stop cancels the pending timer and halts rescheduling. An in-flight cycle
// is not interrupted; its result is still applied.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	s.running = false
	close(s.stopCh)
}

// SetVisible records tab visibility. Regaining visibility forces one
// immediate out-of-band cycle in addition to resuming the timer.
func (s *Scheduler) SetVisible(visible bool) {
	s.mu.Lock()
	regained := visible && !s.visible
	s.visible = visible
	s.mu.Unlock()
	if regained {
		s.signal(wakeImmediate)
	} else {
		s.signal(wakeReschedule)
	}
}

// SetFocusedConversation records which conversation is focused, "" for none.
func (s *Scheduler) SetFocusedConversation(id string) {
	s.mu.Lock()
	s.focused = id
	s.mu.Unlock()
	s.signal(wakeReschedule)
}

// TriggerNow requests one immediate cycle. Dropped if a cycle is in flight.
func (s *Scheduler) TriggerNow() {
	s.signal(wakeImmediate)
}

// TriggerAfter requests one cycle after the given delay, used for the
// post-send resync.
func (s *Scheduler) TriggerAfter(d time.Duration) {
	s.clock.AfterFunc(d, s.TriggerNow)
}

// ConsecutiveFailures returns the current failed-cycle streak.
func (s *Scheduler) ConsecutiveFailures() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failures
}

// signal nudges the loop without blocking. If the loop is busy running a
// cycle nobody is listening and the signal is dropped; the loop recomputes
// its delay from current state after every cycle anyway.
func (s *Scheduler) signal(w wake) {
	s.mu.Lock()
	running := s.running
	ch := s.wakeCh
	s.mu.Unlock()
	if !running {
		return
	}
	select {
	case ch <- w:
	default:
	}
}

func (s *Scheduler) loop(stopCh chan struct{}, wakeCh chan wake) {
	for {
		s.mu.Lock()
		delay := Delay(s.visible, s.focused, s.failures)
		s.mu.Unlock()

		timer := s.clock.NewTimer(delay)
		select {
		case <-timer.C():
			s.runOnce()
		case w := <-wakeCh:
			timer.Stop()
			if w == wakeImmediate {
				s.runOnce()
			}
		case <-stopCh:
			timer.Stop()
			return
		}
	}
}

// runOnce executes a cycle and folds the result into the failure streak.
// Sync failures are a backoff decision, never surfaced to the user. A
// skipped cycle leaves the streak untouched: only a completed cycle counts
// either way.
func (s *Scheduler) runOnce() {
	err := s.runner.RunCycle(context.Background())
	if errors.Is(err, ErrSkipped) {
		return
	}

	s.mu.Lock()
	if err != nil {
		s.failures++
	} else {
		s.failures = 0
	}
	failures := s.failures
	s.mu.Unlock()

	metrics.SyncConsecutiveFailures.Set(float64(failures))
	if err != nil {
		s.logger.Warn("sync cycle failed",
			zap.Error(err),
			zap.Int("consecutive_failures", failures))
	}
}
