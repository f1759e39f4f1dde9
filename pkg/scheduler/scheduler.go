// Package scheduler implements the bounded, single-worker asynchronous
// executor each protocol gets when run in async mode: a producer-side
// admission policy (throttle or overwrite) and a consumer-side worker
// loop with cooperative, bounded-latency shutdown, per spec.md §4.F.
//
// This generalizes the teacher's single shared messageDispatcher
// goroutine (pkg/omni/logger.go) into one Scheduler per protocol, which is
// what spec.md §5 requires ("each asynchronous protocol has exactly one
// dedicated worker thread").
package scheduler

import (
	"sync"

	"github.com/sisdk/sisdk/internal/queue"
)

// batchSize bounds how many commands the worker drains per wakeup
// (spec.md §4.F: "up to BATCH (≤16)").
const batchSize = 16

// Runner executes commands on behalf of the owning protocol and reports
// whether that protocol is currently in the Failed state. The Scheduler
// is otherwise protocol-agnostic.
type Runner interface {
	// Run executes a single command. Errors are the Runner's concern to
	// report (e.g. via an error-event listener); the Scheduler does not
	// interpret the return value beyond logging is not its job.
	Run(cmd Command) error

	// Failed reports whether the owning protocol is in the Failed state.
	Failed() bool
}

// Scheduler is a bounded work queue with exactly one worker goroutine.
type Scheduler struct {
	mu        sync.Mutex
	cond      *sync.Cond
	q         *queue.Queue
	threshold int
	throttle  bool
	runner    Runner

	started bool
	stopped bool
	wg      sync.WaitGroup
}

// New returns a Scheduler with the given queue size threshold (in the
// same units as Command.Size()), backpressure policy, and command runner.
// The Scheduler is inert until Start is called.
func New(threshold int, throttle bool, runner Runner) *Scheduler {
	s := &Scheduler{
		q:         queue.New(),
		threshold: threshold,
		throttle:  throttle,
		runner:    runner,
	}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// Start launches the worker goroutine. Start is idempotent.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true
	s.wg.Add(1)
	go s.worker()
}

// Schedule offers cmd to the queue per the producer algorithm in
// spec.md §4.F:
//
//  1. If not started, or already stopped, reject.
//  2. If cmd's size exceeds threshold, reject (it could never fit).
//  3. In throttle mode (and the protocol is not Failed), block until
//     there is room. Otherwise (overwrite mode, or the protocol has
//     failed), trim older commands from the head to make room.
func (s *Scheduler) Schedule(cmd Command) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started || s.stopped {
		return false
	}
	if cmd.Size() > s.threshold {
		return false
	}

	if !s.throttle || s.runner.Failed() {
		s.q.TrimTo(s.threshold, cmd.Size())
	} else {
		for s.q.TotalSize()+cmd.Size() > s.threshold {
			s.cond.Wait()
			// A Stop() during the wait must not leave us blocked forever;
			// re-check before re-testing the size condition.
			if s.stopped {
				return false
			}
		}
	}

	s.q.Enqueue(cmd)
	s.cond.Broadcast()
	return true
}

// Stop signals the worker to finish and waits for it to exit. Stop is
// idempotent relative to Start.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.started || s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	s.cond.Broadcast()
	s.mu.Unlock()

	s.wg.Wait()
}

// Clear drops all queued commands and wakes any blocked producers.
func (s *Scheduler) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.q.Clear()
	s.cond.Broadcast()
}

// QueueSize reports the current accounted queue size, mostly useful for
// tests asserting the throttle/overwrite invariants in spec.md §8.
func (s *Scheduler) QueueSize() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.q.TotalSize()
}

// worker is the single consumer goroutine: drain a batch, signal
// producers, then run each command in order, checking after every command
// whether a shutdown-in-progress has coincided with the protocol entering
// the Failed state — if so, the queue is cleared and the worker exits
// immediately, bounding shutdown latency when the sink is hung (spec.md
// §9 "Scheduler cooperative shutdown").
func (s *Scheduler) worker() {
	defer s.wg.Done()

	for {
		s.mu.Lock()
		for s.q.Count() == 0 && !s.stopped {
			s.cond.Wait()
		}
		if s.q.Count() == 0 && s.stopped {
			s.mu.Unlock()
			return
		}
		batch := s.q.DrainUpTo(batchSize)
		s.cond.Broadcast()
		s.mu.Unlock()

		for _, sized := range batch {
			cmd := sized.(Command)

			s.mu.Lock()
			snapshotStopped := s.stopped
			s.mu.Unlock()

			_ = s.runner.Run(cmd)

			if snapshotStopped && s.runner.Failed() {
				s.mu.Lock()
				s.q.Clear()
				s.mu.Unlock()
				return
			}
		}
	}
}
