package led

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.viam.com/test"
	"go.viam.com/utils/testutils"

	"go.viam.com/gpioheader/hardware/fake"
	"go.viam.com/gpioheader/header"
	"go.viam.com/gpioheader/logging"
	"go.viam.com/gpioheader/registry"
)

func newLED(t *testing.T, conf Config) (*LED, *fake.Context, *registry.Registry) {
	t.Helper()
	logger := logging.NewTestLogger(t)
	hw := fake.NewContext(logger)
	reg := registry.New(logger)
	l, err := New(context.Background(), hw, reg, conf, logger)
	test.That(t, err, test.ShouldBeNil)
	return l, hw, reg
}

func TestOnOffToggle(t *testing.T) {
	ctx := context.Background()
	l, hw, reg := newLED(t, Config{Name: "status", Pin: 16})

	off, err := l.IsOff(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, off, test.ShouldBeTrue)

	on, err := l.Toggle(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, on, test.ShouldBeTrue)
	on, err = l.Toggle(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, on, test.ShouldBeFalse)

	test.That(t, l.On(ctx), test.ShouldBeNil)
	on, err = l.IsOn(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, on, test.ShouldBeTrue)

	test.That(t, l.Close(ctx), test.ShouldBeNil)
	test.That(t, hw.History(16), test.ShouldResemble, []float64{1, 0, 1, 0})
	test.That(t, reg.IsAvailable(header.Lookup(16)), test.ShouldBeTrue)
}

func TestLatched(t *testing.T) {
	ctx := context.Background()
	l, hw, _ := newLED(t, Config{Pin: 18, LatchedOn: true})
	defer l.Close(ctx)

	test.That(t, l.Off(ctx), test.ShouldBeNil)
	on, err := l.Toggle(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, on, test.ShouldBeTrue)
	test.That(t, hw.History(18), test.ShouldResemble, []float64{1})
}

func TestBlink(t *testing.T) {
	ctx := context.Background()
	l, hw, _ := newLED(t, Config{Pin: 22})
	defer l.Close(ctx)

	test.That(t, l.Blink(0), test.ShouldNotBeNil)
	test.That(t, l.Blink(time.Millisecond), test.ShouldBeNil)
	testutils.WaitForAssertion(t, func(tb testing.TB) {
		tb.Helper()
		test.That(tb, len(hw.History(22)), test.ShouldBeGreaterThanOrEqualTo, 4)
	})

	test.That(t, l.BlinkOff(ctx), test.ShouldBeNil)
	writes := len(hw.History(22))
	off, err := l.IsOff(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, off, test.ShouldBeTrue)
	time.Sleep(10 * time.Millisecond)
	test.That(t, len(hw.History(22)), test.ShouldEqual, writes)
}

func TestPulse(t *testing.T) {
	ctx := context.Background()
	l, hw, _ := newLED(t, Config{Pin: 29})
	defer l.Close(ctx)

	start := time.Now()
	test.That(t, l.Pulse(ctx, 5*time.Millisecond), test.ShouldBeNil)
	test.That(t, time.Since(start), test.ShouldBeGreaterThanOrEqualTo, 5*time.Millisecond)
	test.That(t, hw.History(29), test.ShouldResemble, []float64{1, 0})
}

func TestConfigAndClaims(t *testing.T) {
	test.That(t, (&Config{Pin: 16}).Validate("leds.0"), test.ShouldBeNil)
	err := (&Config{}).Validate("leds.0")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "pin")
	err = (&Config{Pin: 4}).Validate("leds.0")
	test.That(t, errors.Is(err, registry.ErrSlotNotConfigurable), test.ShouldBeTrue)
	err = (&Config{Pin: 6}).Validate("leds.0")
	test.That(t, errors.Is(err, registry.ErrSlotNotConfigurable), test.ShouldBeTrue)
	test.That(t, err.Error(), test.ShouldContainSubstring, "pin 6 (ground)")

	logger := logging.NewTestLogger(t)
	_, err = New(context.Background(), fake.NewContext(logger), registry.New(logger), Config{Pin: 4}, logger)
	test.That(t, errors.Is(err, registry.ErrSlotNotConfigurable), test.ShouldBeTrue)
}
