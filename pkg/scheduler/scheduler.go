// Package scheduler implements the FIFO, single-threaded cooperative task
// queue that serializes every mutation and render (spec §4.1). Grounded on
// the teacher's Session.flush/renderDirty/scheduleRender loop
// (pkg/server/session.go), generalized out of the WebSocket-specific
// Session into a transport-agnostic scheduler that pkg/hostapp and
// pkg/transport both drive.
package scheduler

import (
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Task is a unit of scheduled work: a render, a resource-completion
// delivery, or a navigation.
type Task func() error

// Scheduler is a FIFO queue of tasks with a running flag, a monotonic
// flushVersion, and a nesting-depth guard (spec §3 "Scheduler").
type Scheduler struct {
	mu sync.Mutex

	queue   []Task
	running bool

	flushVersion uint64
	waiters      []waiter

	maxNestedRenders int
	renderCounts     map[string]int // instance id -> renders this flush

	log *slog.Logger
}

type waiter struct {
	target uint64
	ch     chan struct{}
}

// New creates a Scheduler. maxNestedRenders bounds how many times the same
// instance id may re-render within one flush before ErrInfiniteUpdateLoop
// trips (spec §4.1 "Max-depth guard"); pass 0 for the spec default (≈100).
func New(maxNestedRenders int, log *slog.Logger) *Scheduler {
	if maxNestedRenders <= 0 {
		maxNestedRenders = 100
	}
	if log == nil {
		log = slog.Default()
	}
	return &Scheduler{
		maxNestedRenders: maxNestedRenders,
		renderCounts:     make(map[string]int),
		log:              log,
	}
}

// ErrInfiniteUpdateLoop is returned by Flush when a single instance
// re-renders more than maxNestedRenders times within one flush.
type ErrInfiniteUpdateLoop struct {
	InstanceID string
	Count      int
}

func (e *ErrInfiniteUpdateLoop) Error() string {
	return fmt.Sprintf("loom: infinite update loop: instance %s re-rendered %d times within one flush", e.InstanceID, e.Count)
}

// Enqueue appends task to the tail of the queue. It never drains the
// queue itself — draining only ever happens inside Flush — so a state
// mutation that reaches EnqueueRender while no flush is running merely
// appends a render task instead of synchronously rendering (spec §4.1
// "enqueue"). WrapEventHandler's returned closure is the tree's sole
// driver of Flush.
func (s *Scheduler) Enqueue(task Task) {
	s.mu.Lock()
	s.queue = append(s.queue, task)
	s.mu.Unlock()
}

// RenderObserver, when set, is called once per render task actually run (as
// opposed to coalesced away by the caller's own pending-flag gate) —
// pkg/obs wires this to the dirty_instances_total counter.
var RenderObserver func(instanceID string)

// EnqueueRender enqueues one render task per call and counts the renders of
// instanceID within the flush for the max-depth guard. It does not coalesce
// by itself: the coalescing rule (spec §4.1 "Coalescing", Open Question 1's
// stricter per-instance reading) is the caller's pending-flag gate, as in
// reactive.Instance.RequestUpdate. onStart runs synchronously when the task
// is popped — callers use it to clear their own hasPendingUpdate flag.
func (s *Scheduler) EnqueueRender(instanceID string, onStart func()) {
	s.Enqueue(func() error {
		s.mu.Lock()
		s.renderCounts[instanceID]++
		count := s.renderCounts[instanceID]
		max := s.maxNestedRenders
		s.mu.Unlock()

		if count > max {
			return &ErrInfiniteUpdateLoop{InstanceID: instanceID, Count: count}
		}
		if RenderObserver != nil {
			RenderObserver(instanceID)
		}
		onStart()
		return nil
	})
}

// FlushHook, when set, wraps each outermost Flush's drain (reentrant no-op
// calls never reach it) — pkg/obs wires this to TraceFlush so flush duration
// is observed end-to-end without this package importing pkg/obs directly.
var FlushHook func(fn func() error) error

// Flush drains the queue synchronously until empty (spec §4.1 "flush").
// Reentrant calls are a no-op; the outermost call returns only when the
// queue is empty, incrementing flushVersion on a successful drain. The
// first task error clears the remaining queue and is returned — it does
// not abort already-applied effects of prior tasks in the same flush
// (those are independent commits per spec §4.7 commit atomicity).
func (s *Scheduler) Flush() error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = true
	s.renderCounts = make(map[string]int)
	s.mu.Unlock()

	if FlushHook != nil {
		return FlushHook(s.drain)
	}
	return s.drain()
}

func (s *Scheduler) drain() error {
	var flushErr error

	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			s.running = false
			s.flushVersion++
			version := s.flushVersion
			s.mu.Unlock()
			s.notifyWaiters(version)
			break
		}
		task := s.queue[0]
		s.queue = s.queue[1:]
		s.mu.Unlock()

		if err := task(); err != nil {
			flushErr = err
			s.mu.Lock()
			s.queue = nil
			s.running = false
			s.mu.Unlock()
			s.log.Error("loom: flush aborted", "error", err)
			break
		}
	}

	return flushErr
}

// WrapEventHandler returns a handler that enqueues h as the flush's first
// task — so h runs with running already true, and any state mutation
// inside it that reaches EnqueueRender only appends a render task rather
// than triggering a nested synchronous render+commit — then flushes once,
// draining h and every render task it produced as a single flush (spec
// §4.1 "wrap_event_handler": "state mutations inside a wrapped handler …
// do not themselves render; exactly one deferred render task is
// enqueued").
func (s *Scheduler) WrapEventHandler(h func()) func() {
	return func() {
		s.Enqueue(func() error {
			h()
			return nil
		})
		s.Flush()
	}
}

// WaitForFlush blocks until flushVersion >= target or timeout elapses
// (spec §4.1 "wait_for_flush", used by tests).
func (s *Scheduler) WaitForFlush(target uint64, timeout time.Duration) error {
	s.mu.Lock()
	if s.flushVersion >= target {
		s.mu.Unlock()
		return nil
	}
	ch := make(chan struct{})
	s.waiters = append(s.waiters, waiter{target: target, ch: ch})
	s.mu.Unlock()

	select {
	case <-ch:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("loom: wait_for_flush timed out before version %d", target)
	}
}

func (s *Scheduler) notifyWaiters(version uint64) {
	s.mu.Lock()
	remaining := s.waiters[:0]
	var toNotify []chan struct{}
	for _, w := range s.waiters {
		if version >= w.target {
			toNotify = append(toNotify, w.ch)
		} else {
			remaining = append(remaining, w)
		}
	}
	s.waiters = remaining
	s.mu.Unlock()

	for _, ch := range toNotify {
		close(ch)
	}
}

// FlushVersion returns the current monotonic flush counter.
func (s *Scheduler) FlushVersion() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flushVersion
}
