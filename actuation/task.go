package actuation

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/atomic"
)

// ErrTaskCancelled is the result of a task cancelled before it ran.
var ErrTaskCancelled = errors.New("actuation task cancelled")

// Operation is what a task does to each of its targets.
type Operation int

// The operations.
const (
	Raise Operation = iota
	Lower
	SetTo
)

func (op Operation) String() string {
	switch op {
	case Raise:
		return "raise"
	case Lower:
		return "lower"
	case SetTo:
		return "set"
	default:
		return "unknown"
	}
}

// State is a task's lifecycle state.
type State int32

// A task starts Pending. It moves to Executing when its delay elapses and to Completed once every
// target has been handled or one has failed. Only a Pending task can be Cancelled.
const (
	Pending State = iota
	Executing
	Completed
	Cancelled
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Executing:
		return "executing"
	case Completed:
		return "completed"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// A Task is one scheduled operation against an ordered list of targets. It runs at most once.
type Task struct {
	id      uuid.UUID
	op      Operation
	value   float64
	targets []Actuator
	bypass  bool
	delay   time.Duration

	sched *Scheduler
	timer *clock.Timer
	state atomic.Int32
	done  chan struct{}

	mu  sync.Mutex
	err error
}

// ID identifies the task in logs.
func (t *Task) ID() uuid.UUID {
	return t.id
}

// Operation returns what the task does.
func (t *Task) Operation() Operation {
	return t.op
}

// Delay returns the delay the task was scheduled with.
func (t *Task) Delay() time.Duration {
	return t.delay
}

// State returns the current state.
func (t *Task) State() State {
	return State(t.state.Load())
}

// Done is closed once the task has completed or been cancelled.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Err returns the first target failure of a completed task, or ErrTaskCancelled. It is nil until
// the task is done.
func (t *Task) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

// Wait blocks until the task is done or ctx ends.
func (t *Task) Wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.done:
		return t.Err()
	}
}

// Cancel stops a pending task from running. It reports whether the task was cancelled; a task
// that already started cannot be.
func (t *Task) Cancel() bool {
	if !t.cancel() {
		return false
	}
	t.sched.forget(t)
	t.sched.logger.Debugw("actuation task cancelled", "task", t.id.String(), "op", t.op.String())
	return true
}

func (t *Task) cancel() bool {
	if !t.state.CompareAndSwap(int32(Pending), int32(Cancelled)) {
		return false
	}
	if t.timer != nil {
		t.timer.Stop()
	}
	t.finish(ErrTaskCancelled)
	return true
}

func (t *Task) finish(err error) {
	t.mu.Lock()
	t.err = err
	t.mu.Unlock()
	close(t.done)
}

func (t *Task) apply(ctx context.Context, target Actuator) error {
	switch t.op {
	case Raise:
		return target.On(ctx, t.bypass)
	case Lower:
		return target.Off(ctx, t.bypass)
	case SetTo:
		return target.Set(ctx, t.value, t.bypass)
	default:
		return errors.Errorf("unknown operation %d", t.op)
	}
}

// run handles every target in order and stops at the first failure.
func (t *Task) run(ctx context.Context) {
	var err error
	for idx, target := range t.targets {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = errors.Wrapf(ctxErr, "%s stopped before target %d", t.op, idx)
			break
		}
		if err = t.apply(ctx, target); err != nil {
			err = errors.Wrapf(err, "%s failed on target %d", t.op, idx)
			break
		}
	}

	if err != nil {
		t.sched.logger.Errorw("actuation task failed", "task", t.id.String(), "op", t.op.String(), "error", err)
	} else {
		t.sched.logger.Debugw("actuation task completed", "task", t.id.String(), "op", t.op.String())
	}
	t.state.Store(int32(Completed))
	t.finish(err)
}
