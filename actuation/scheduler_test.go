package actuation

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"go.viam.com/test"
	"go.viam.com/utils/testutils"

	"go.viam.com/gpioheader/hardware/fake"
	"go.viam.com/gpioheader/header"
	"go.viam.com/gpioheader/logging"
	"go.viam.com/gpioheader/pins"
	"go.viam.com/gpioheader/registry"
)

type recorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *recorder) add(call string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, call)
}

func (r *recorder) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

type fakeActuator struct {
	name  string
	rec   *recorder
	fail  error
	block chan struct{}
}

func (a *fakeActuator) do(ctx context.Context, call string) error {
	if a.block != nil {
		<-a.block
	}
	if a.fail != nil {
		return a.fail
	}
	a.rec.add(a.name + " " + call)
	return nil
}

func (a *fakeActuator) On(ctx context.Context, bypass bool) error {
	return a.do(ctx, fmt.Sprintf("on bypass=%v", bypass))
}

func (a *fakeActuator) Off(ctx context.Context, bypass bool) error {
	return a.do(ctx, fmt.Sprintf("off bypass=%v", bypass))
}

func (a *fakeActuator) Set(ctx context.Context, value float64, bypass bool) error {
	return a.do(ctx, fmt.Sprintf("set %v bypass=%v", value, bypass))
}

func TestZeroDelayRunsOnWorker(t *testing.T) {
	sched := NewScheduler(clock.NewMock(), logging.NewTestLogger(t))
	defer sched.Close()

	rec := &recorder{}
	release := make(chan struct{})
	target := &fakeActuator{name: "a", rec: rec, block: release}

	// the target blocks, so a synchronous run would never return here
	task, err := sched.Raise([]Actuator{target}, Request{})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, task.Operation(), test.ShouldEqual, Raise)
	testutils.WaitForAssertion(t, func(tb testing.TB) {
		tb.Helper()
		test.That(tb, task.State(), test.ShouldEqual, Executing)
	})
	close(release)

	test.That(t, task.Wait(context.Background()), test.ShouldBeNil)
	test.That(t, task.State(), test.ShouldEqual, Completed)
	test.That(t, rec.all(), test.ShouldResemble, []string{"a on bypass=false"})
}

func TestDelayedTask(t *testing.T) {
	mock := clock.NewMock()
	sched := NewScheduler(mock, logging.NewTestLogger(t))
	defer sched.Close()

	rec := &recorder{}
	task, err := sched.SetTo(300, []Actuator{&fakeActuator{name: "a", rec: rec}}, Request{Delay: 100 * time.Millisecond, BypassClamp: true})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, task.Delay(), test.ShouldEqual, 100*time.Millisecond)
	test.That(t, task.State(), test.ShouldEqual, Pending)
	test.That(t, sched.Pending(), test.ShouldEqual, 1)

	mock.Add(50 * time.Millisecond)
	test.That(t, task.State(), test.ShouldEqual, Pending)
	test.That(t, rec.all(), test.ShouldBeEmpty)

	mock.Add(50 * time.Millisecond)
	testutils.WaitForAssertion(t, func(tb testing.TB) {
		tb.Helper()
		test.That(tb, task.State(), test.ShouldEqual, Completed)
	})
	test.That(t, task.Err(), test.ShouldBeNil)
	test.That(t, sched.Pending(), test.ShouldEqual, 0)
	test.That(t, rec.all(), test.ShouldResemble, []string{"a set 300 bypass=true"})
}

func TestTargetsRunInOrder(t *testing.T) {
	sched := NewScheduler(nil, logging.NewTestLogger(t))
	defer sched.Close()

	rec := &recorder{}
	targets := []Actuator{
		&fakeActuator{name: "a", rec: rec},
		&fakeActuator{name: "b", rec: rec},
		&fakeActuator{name: "c", rec: rec},
	}
	task, err := sched.Lower(targets, Request{})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, task.Wait(context.Background()), test.ShouldBeNil)
	test.That(t, rec.all(), test.ShouldResemble, []string{
		"a off bypass=false",
		"b off bypass=false",
		"c off bypass=false",
	})
}

func TestFailureEndsTask(t *testing.T) {
	logger, logs := logging.NewObservedTestLogger(t)
	sched := NewScheduler(nil, logger)
	defer sched.Close()

	rec := &recorder{}
	boom := errors.New("channel gone")
	targets := []Actuator{
		&fakeActuator{name: "a", rec: rec},
		&fakeActuator{name: "b", rec: rec, fail: boom},
		&fakeActuator{name: "c", rec: rec},
	}
	task, err := sched.Raise(targets, Request{})
	test.That(t, err, test.ShouldBeNil)

	err = task.Wait(context.Background())
	test.That(t, errors.Is(err, boom), test.ShouldBeTrue)
	test.That(t, err.Error(), test.ShouldContainSubstring, "target 1")
	test.That(t, task.State(), test.ShouldEqual, Completed)
	test.That(t, rec.all(), test.ShouldResemble, []string{"a on bypass=false"})
	test.That(t, logs.FilterMessage("actuation task failed").Len(), test.ShouldEqual, 1)
}

func TestRaiseThenLowerBothRun(t *testing.T) {
	ctx := context.Background()
	logger := logging.NewTestLogger(t)
	hw := fake.NewContext(logger)
	pin, err := pins.NewAnalogOutput(ctx, hw, registry.New(logger), header.Lookup(19), pins.AnalogConfig{}, logger)
	test.That(t, err, test.ShouldBeNil)
	defer pin.Close(ctx)

	mock := clock.NewMock()
	sched := NewScheduler(mock, logger)
	defer sched.Close()

	raise, err := sched.Raise([]Actuator{pin}, Request{Delay: 100 * time.Millisecond})
	test.That(t, err, test.ShouldBeNil)
	lower, err := sched.Lower([]Actuator{pin}, Request{})
	test.That(t, err, test.ShouldBeNil)

	mock.Add(100 * time.Millisecond)
	test.That(t, raise.Wait(ctx), test.ShouldBeNil)
	test.That(t, lower.Wait(ctx), test.ShouldBeNil)

	// only that both ran; their order is not part of the contract
	written := hw.History(19)
	sort.Float64s(written)
	test.That(t, written, test.ShouldResemble, []float64{0, 1023})
}

func TestNegativeDelay(t *testing.T) {
	sched := NewScheduler(nil, logging.NewTestLogger(t))
	defer sched.Close()

	_, err := sched.Raise([]Actuator{&fakeActuator{rec: &recorder{}}}, Request{Delay: -time.Second})
	test.That(t, errors.Is(err, ErrNegativeDelay), test.ShouldBeTrue)
	test.That(t, sched.Pending(), test.ShouldEqual, 0)
}

func TestCancel(t *testing.T) {
	mock := clock.NewMock()
	sched := NewScheduler(mock, logging.NewTestLogger(t))
	defer sched.Close()

	rec := &recorder{}
	target := &fakeActuator{name: "a", rec: rec}
	task, err := sched.Raise([]Actuator{target}, Request{Delay: time.Second})
	test.That(t, err, test.ShouldBeNil)

	test.That(t, task.Cancel(), test.ShouldBeTrue)
	test.That(t, task.Cancel(), test.ShouldBeFalse)
	test.That(t, task.State(), test.ShouldEqual, Cancelled)
	test.That(t, errors.Is(task.Err(), ErrTaskCancelled), test.ShouldBeTrue)
	test.That(t, sched.Pending(), test.ShouldEqual, 0)
	<-task.Done()

	mock.Add(2 * time.Second)
	test.That(t, rec.all(), test.ShouldBeEmpty)

	done, err := sched.Raise([]Actuator{target}, Request{})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, done.Wait(context.Background()), test.ShouldBeNil)
	test.That(t, done.Cancel(), test.ShouldBeFalse)
	test.That(t, done.State(), test.ShouldEqual, Completed)
}

func TestWaitHonorsContext(t *testing.T) {
	sched := NewScheduler(clock.NewMock(), logging.NewTestLogger(t))
	defer sched.Close()

	task, err := sched.Raise([]Actuator{&fakeActuator{rec: &recorder{}}}, Request{Delay: time.Minute})
	test.That(t, err, test.ShouldBeNil)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	test.That(t, errors.Is(task.Wait(ctx), context.DeadlineExceeded), test.ShouldBeTrue)
	test.That(t, task.State(), test.ShouldEqual, Pending)
}

func TestClose(t *testing.T) {
	mock := clock.NewMock()
	sched := NewScheduler(mock, logging.NewTestLogger(t))

	rec := &recorder{}
	target := &fakeActuator{name: "a", rec: rec}
	pending, err := sched.Raise([]Actuator{target}, Request{Delay: time.Second})
	test.That(t, err, test.ShouldBeNil)

	sched.Close()
	sched.Close()
	test.That(t, pending.State(), test.ShouldEqual, Cancelled)
	test.That(t, errors.Is(pending.Err(), ErrTaskCancelled), test.ShouldBeTrue)

	mock.Add(time.Second)
	test.That(t, rec.all(), test.ShouldBeEmpty)

	_, err = sched.Lower([]Actuator{target}, Request{})
	test.That(t, errors.Is(err, ErrSchedulerClosed), test.ShouldBeTrue)
}
