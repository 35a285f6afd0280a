package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"go.viam.com/test"
	"go.viam.com/utils/testutils"
	"periph.io/x/conn/v3/gpio"

	"go.viam.com/gpioheader/hardware/periph"
	"go.viam.com/gpioheader/logging"
	"go.viam.com/gpioheader/pins"
	"go.viam.com/gpioheader/registry"
)

const validConfig = `{
	"hardware": {"type": "fake"},
	"analog_inputs": [{"name": "pot", "pin": 21, "max": 900}],
	"analog_outputs": [{"name": "dimmer", "pin": 19}],
	"digital_inputs": [{"name": "button", "pin": 13, "pull": "up"}],
	"digital_outputs": [{"name": "fan", "pin": 15, "latched_on": true}],
	"servos": [{"name": "arm", "pin": 12, "min": 100, "max": 3000, "extended_resolution": true}],
	"leds": [{"name": "status", "pin": 16}],
	"log_level": "debug"
}`

func TestFromReader(t *testing.T) {
	cfg, err := FromReader("header.json", strings.NewReader(validConfig))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cfg.ConfigFilePath, test.ShouldEqual, "header.json")
	test.That(t, cfg.Hardware.Type, test.ShouldEqual, HardwareFake)
	test.That(t, cfg.AnalogInputs, test.ShouldHaveLength, 1)
	test.That(t, *cfg.AnalogInputs[0].Max, test.ShouldEqual, 900)
	test.That(t, cfg.AnalogInputs[0].Min, test.ShouldBeNil)
	test.That(t, cfg.Servos[0].ExtendedResolution, test.ShouldBeTrue)
	test.That(t, cfg.DigitalOutputs[0].DigitalOutputConfig(), test.ShouldResemble,
		pins.DigitalOutputConfig{Name: "fan", LatchedOn: true})
	test.That(t, cfg.Level(), test.ShouldEqual, logging.DEBUG)

	inConf, err := cfg.DigitalInputs[0].DigitalInputConfig()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, inConf.Pull, test.ShouldEqual, gpio.PullUp)

	_, err = FromReader("", strings.NewReader(`{"hardware": {"type": "fake"}, "motors": []}`))
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "failed to decode")
}

func TestValidate(t *testing.T) {
	for _, tc := range []struct {
		name     string
		config   string
		contains string
	}{
		{"missing hardware", `{}`, `"type" is required`},
		{"unknown hardware", `{"hardware": {"type": "arduino"}}`, "unknown hardware type"},
		{"fake attributes", `{"hardware": {"type": "fake", "attributes": {"x": 1}}}`, "no attributes"},
		{"bad periph attribute", `{"hardware": {"type": "periph", "attributes": {"adc": 3}}}`, "invalid periph attributes"},
		{"unknown periph attribute", `{"hardware": {"type": "periph", "attributes": {"adcs": "mcp3008"}}}`, "invalid periph attributes"},
		{"bad adc", `{"hardware": {"type": "periph", "attributes": {"adc": "ads1115"}}}`, "unsupported adc"},
		{"bad log level", `{"hardware": {"type": "fake"}, "log_level": "loud"}`, "log_level"},
		{"missing pin", `{"hardware": {"type": "fake"}, "leds": [{"name": "a"}]}`, `"pin" is required`},
		{"ground pin", `{"hardware": {"type": "fake"}, "analog_outputs": [{"name": "a", "pin": 6}]}`, "not configurable"},
		{"range", `{"hardware": {"type": "fake"}, "analog_inputs": [{"name": "a", "pin": 19, "max": 2000}]}`, "requires extended resolution"},
		{"pull", `{"hardware": {"type": "fake"}, "digital_inputs": [{"name": "a", "pin": 19, "pull": "sideways"}]}`, "unknown pull"},
		{"missing name", `{"hardware": {"type": "fake"}, "digital_outputs": [{"pin": 19}]}`, `"name" is required`},
		{
			"duplicate name",
			`{"hardware": {"type": "fake"}, "leds": [{"name": "a", "pin": 16}], "servos": [{"name": "a", "pin": 12}]}`,
			`duplicate name "a"`,
		},
		{
			"duplicate pin",
			`{"hardware": {"type": "fake"}, "leds": [{"name": "a", "pin": 16}], "digital_inputs": [{"name": "b", "pin": 16}]}`,
			`pin 16 is used by both "b" and "a"`,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := FromReader("", strings.NewReader(tc.config))
			test.That(t, err, test.ShouldNotBeNil)
			test.That(t, err.Error(), test.ShouldContainSubstring, tc.contains)
		})
	}

	_, err := FromReader("", strings.NewReader(`{"hardware": {"type": "fake"}, "analog_outputs": [{"name": "a", "pin": 6}]}`))
	test.That(t, errors.Is(err, registry.ErrSlotNotConfigurable), test.ShouldBeTrue)
	_, err = FromReader("", strings.NewReader(`{"hardware": {"type": "fake"}, "analog_inputs": [{"name": "a", "pin": 19, "max": 2000}]}`))
	test.That(t, errors.Is(err, pins.ErrRangeOutOfBounds), test.ShouldBeTrue)
}

func TestHardwareAttributes(t *testing.T) {
	cfg, err := FromReader("", strings.NewReader(`{
		"hardware": {"type": "periph", "attributes": {
			"adc": "mcp3208",
			"spi_bus": "0",
			"pwm_frequency_hz": 200,
			"adc_channels": [{"pin": 21, "channel": 3}]
		}}
	}`))
	test.That(t, err, test.ShouldBeNil)
	conf, err := cfg.Hardware.PeriphConfig()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, conf, test.ShouldResemble, &periph.Config{
		ADC:            periph.MCP3208,
		SPIBus:         "0",
		PWMFrequencyHz: 200,
		ADCChannels:    []periph.ADCChannel{{Pin: 21, Channel: 3}},
	})

	cfg, err = FromReader("", strings.NewReader(`{"hardware": {"type": "chardev", "attributes": {"chip": "/dev/gpiochip4"}}}`))
	test.That(t, err, test.ShouldBeNil)
	chardevConf, err := cfg.Hardware.ChardevConfig()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, chardevConf.Chip, test.ShouldEqual, "/dev/gpiochip4")
}

func TestParsePull(t *testing.T) {
	for name, expected := range map[string]gpio.Pull{
		"":      gpio.PullNoChange,
		"up":    gpio.PullUp,
		"DOWN":  gpio.PullDown,
		"float": gpio.Float,
		"none":  gpio.Float,
	} {
		pull, err := ParsePull(name)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, pull, test.ShouldEqual, expected)
	}
}

func TestRead(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "header.json")
	t.Setenv("STATUS_LED_PIN", "16")
	content := `{"hardware": {"type": "fake"}, "leds": [{"name": "status", "pin": ${STATUS_LED_PIN}}]}`
	test.That(t, os.WriteFile(path, []byte(content), 0o600), test.ShouldBeNil)

	cfg, err := Read(path)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cfg.LEDs[0].Pin, test.ShouldEqual, 16)
	test.That(t, cfg.ConfigFilePath, test.ShouldEqual, path)

	_, err = Read(filepath.Join(dir, "missing.json"))
	test.That(t, err, test.ShouldNotBeNil)
}

func TestWatch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "header.json")
	test.That(t, os.WriteFile(path, []byte(`{"hardware": {"type": "fake"}}`), 0o600), test.ShouldBeNil)

	var (
		mu   sync.Mutex
		seen []*Config
	)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, logging.NewTestLogger(t), func(cfg *Config, err error) {
			if err != nil {
				return
			}
			mu.Lock()
			seen = append(seen, cfg)
			mu.Unlock()
		})
	}()

	updated := `{"hardware": {"type": "fake"}, "leds": [{"name": "status", "pin": 16}]}`
	var lastWrite time.Time
	testutils.WaitForAssertionWithSleep(t, 50*time.Millisecond, 100, func(tb testing.TB) {
		tb.Helper()
		// rewrite now and then until the watcher is up; writes closer together than the settle
		// time would keep postponing the re-read
		if time.Since(lastWrite) > 4*watchSettle {
			test.That(tb, os.WriteFile(path, []byte(updated), 0o600), test.ShouldBeNil)
			lastWrite = time.Now()
		}
		mu.Lock()
		defer mu.Unlock()
		test.That(tb, len(seen), test.ShouldBeGreaterThan, 0)
		if len(seen) == 0 {
			return
		}
		test.That(tb, seen[len(seen)-1].LEDs, test.ShouldHaveLength, 1)
	})

	cancel()
	test.That(t, <-done, test.ShouldBeNil)
}

func TestSchema(t *testing.T) {
	schema, err := Schema()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, string(schema), test.ShouldContainSubstring, "analog_inputs")
	test.That(t, string(schema), test.ShouldContainSubstring, "extended_resolution")
}
