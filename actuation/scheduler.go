// Package actuation runs raise, lower and set operations against analog outputs after a delay.
//
// Every triggered task runs on its own worker; nothing orders two tasks against each other, even
// when they share a target and a delay. There is no per-pin write lock either, so concurrent
// tasks writing one pin interleave at the hardware.
package actuation

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	goutils "go.viam.com/utils"

	"go.viam.com/gpioheader/logging"
)

var (
	// ErrNegativeDelay is returned when scheduling with a delay below zero.
	ErrNegativeDelay = errors.New("delay cannot be negative")
	// ErrSchedulerClosed is returned when scheduling on a closed scheduler.
	ErrSchedulerClosed = errors.New("scheduler is closed")
)

// An Actuator is anything a task can drive. pins.AnalogOutput is one.
type Actuator interface {
	On(ctx context.Context, bypass bool) error
	Off(ctx context.Context, bypass bool) error
	Set(ctx context.Context, value float64, bypass bool) error
}

// A Request carries the timing and clamping options of one scheduling call.
type Request struct {
	Delay       time.Duration
	BypassClamp bool
}

// A Scheduler triggers tasks off its clock.
type Scheduler struct {
	clk    clock.Clock
	logger logging.Logger

	mu      sync.Mutex
	pending map[uuid.UUID]*Task
	closed  bool

	workers *goutils.StoppableWorkers
}

// NewScheduler returns a scheduler driven by clk. A nil clk uses the wall clock.
func NewScheduler(clk clock.Clock, logger logging.Logger) *Scheduler {
	if clk == nil {
		clk = clock.New()
	}
	return &Scheduler{
		clk:     clk,
		logger:  logger,
		pending: map[uuid.UUID]*Task{},
		workers: goutils.NewBackgroundStoppableWorkers(),
	}
}

// Raise calls On on every target, in order, after req.Delay.
func (s *Scheduler) Raise(targets []Actuator, req Request) (*Task, error) {
	return s.schedule(Raise, 0, targets, req)
}

// Lower calls Off on every target, in order, after req.Delay.
func (s *Scheduler) Lower(targets []Actuator, req Request) (*Task, error) {
	return s.schedule(Lower, 0, targets, req)
}

// SetTo calls Set(value) on every target, in order, after req.Delay.
func (s *Scheduler) SetTo(value float64, targets []Actuator, req Request) (*Task, error) {
	return s.schedule(SetTo, value, targets, req)
}

// Pending returns the number of tasks waiting for their delay.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// schedule never blocks. A zero delay still runs the task on a worker.
func (s *Scheduler) schedule(op Operation, value float64, targets []Actuator, req Request) (*Task, error) {
	if req.Delay < 0 {
		return nil, errors.Wrapf(ErrNegativeDelay, "cannot schedule %s with delay %s", op, req.Delay)
	}

	task := &Task{
		id:      uuid.New(),
		op:      op,
		value:   value,
		targets: append([]Actuator(nil), targets...),
		bypass:  req.BypassClamp,
		delay:   req.Delay,
		sched:   s,
		done:    make(chan struct{}),
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, errors.Wrapf(ErrSchedulerClosed, "cannot schedule %s", op)
	}
	s.pending[task.id] = task
	if req.Delay > 0 {
		// The timer is armed under the lock so a firing trigger always sees it set.
		task.timer = s.clk.AfterFunc(req.Delay, func() { s.trigger(task) })
	}
	s.mu.Unlock()

	s.logger.Debugw("actuation task scheduled",
		"task", task.id.String(),
		"op", op.String(),
		"delay", req.Delay,
		"targets", len(task.targets),
		"bypass", req.BypassClamp)
	if req.Delay == 0 {
		s.trigger(task)
	}
	return task, nil
}

// trigger hands a task whose delay elapsed to a new worker.
func (s *Scheduler) trigger(task *Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	delete(s.pending, task.id)
	if !task.state.CompareAndSwap(int32(Pending), int32(Executing)) {
		return
	}
	s.workers.Add(task.run)
}

func (s *Scheduler) forget(task *Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pending, task.id)
}

// Close cancels every pending task, then waits for running ones. Their context is cancelled, so
// a running task skips the targets it has not reached yet.
func (s *Scheduler) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	pending := s.pending
	s.pending = map[uuid.UUID]*Task{}
	s.mu.Unlock()

	for _, task := range pending {
		task.cancel()
	}
	s.workers.Stop()
	s.logger.Debugw("scheduler closed", "cancelled", len(pending))
}
