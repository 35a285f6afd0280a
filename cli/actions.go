package cli

import (
	"context"
	"math"
	"strings"

	"github.com/docker/go-units"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/urfave/cli/v2"

	"go.viam.com/gpioheader/actuation"
	"go.viam.com/gpioheader/config"
	"go.viam.com/gpioheader/hardware/fake"
	"go.viam.com/gpioheader/header"
	"go.viam.com/gpioheader/logging"
	"go.viam.com/gpioheader/machine"
)

type pinctl struct {
	logger  logging.Logger
	logFile *logging.FileAppender
}

func (p *pinctl) before(c *cli.Context) error {
	p.logger = logging.NewBlankLogger("pinctl")
	p.logger.AddAppender(logging.NewWriterAppender(c.App.ErrWriter))
	if !c.Bool(flagDebug) {
		p.logger.SetLevel(logging.WARN)
	}
	if path := c.String(flagLogFile); path != "" {
		maxSizeMB, err := parseLogFileSize(c.String(flagLogFileSize))
		if err != nil {
			return err
		}
		p.logFile = logging.NewFileAppender(path, maxSizeMB)
		p.logger.AddAppender(p.logFile)
	}
	return nil
}

// parseLogFileSize turns a human size like "512KiB" or "20MB" into whole mebibytes, at least 1.
func parseLogFileSize(size string) (int, error) {
	bytes, err := units.RAMInBytes(size)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid --%s", flagLogFileSize)
	}
	if bytes <= 0 {
		return 0, errors.Errorf("--%s must be positive, got %q", flagLogFileSize, size)
	}
	return int(math.Ceil(float64(bytes) / units.MiB)), nil
}

func (p *pinctl) after(c *cli.Context) error {
	if p.logFile == nil {
		return nil
	}
	return p.logFile.Close()
}

// readConfig reads the config flag and applies its log level unless debug output was asked for.
func (p *pinctl) readConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Read(c.String(flagConfig))
	if err != nil {
		return nil, err
	}
	if !c.Bool(flagDebug) && cfg.LogLevel != "" {
		p.logger.SetLevel(cfg.Level())
	}
	return cfg, nil
}

func (p *pinctl) pinsAction(c *cli.Context) error {
	slots := header.All()
	if c.Bool(flagConfigurable) {
		slots = header.Configurable()
	}
	if name := c.String(flagCapability); name != "" {
		capability, ok := lo.Find(
			lo.Uniq(lo.Map(header.Configurable(), func(s header.Slot, _ int) header.Capability { return s.Capability })),
			func(capability header.Capability) bool { return strings.EqualFold(capability.String(), name) })
		if !ok {
			return errors.Errorf("unknown capability %q", name)
		}
		slots = header.WithCapability(capability)
	}
	printf(c.App.Writer, "%s", header.Table(slots))
	return nil
}

func (p *pinctl) check(ctx context.Context, c *cli.Context, cfg *config.Config) error {
	logger := p.logger.Sublogger("check")
	m, err := machine.New(ctx, cfg, logger, machine.WithHardware(fake.NewContext(logger)))
	if err != nil {
		return err
	}
	claimed := m.Registry().Claimed()
	if err := m.Close(ctx); err != nil {
		return errors.Wrap(err, "failed to close machine")
	}
	successf(c.App.Writer, "%s is valid, %d pins claimed %v", cfg.ConfigFilePath, len(claimed), claimed)
	return nil
}

func (p *pinctl) checkAction(c *cli.Context) error {
	cfg, err := p.readConfig(c)
	if err != nil {
		return err
	}
	if err := p.check(c.Context, c, cfg); err != nil {
		return err
	}
	if !c.Bool(flagWatch) {
		return nil
	}

	printf(c.App.Writer, "watching %s for changes", cfg.ConfigFilePath)
	return config.Watch(c.Context, cfg.ConfigFilePath, p.logger, func(cfg *config.Config, err error) {
		if err == nil {
			err = p.check(c.Context, c, cfg)
		}
		if err != nil {
			warningf(c.App.Writer, "%s", err)
		}
	})
}

func (p *pinctl) servoAction(c *cli.Context) error {
	cfg, err := p.readConfig(c)
	if err != nil {
		return err
	}

	ctx := c.Context
	var opts []machine.Option
	if c.Bool(flagFake) {
		opts = append(opts, machine.WithHardware(fake.NewContext(p.logger.Sublogger("fake"))))
	}
	m, err := machine.New(ctx, cfg, p.logger, opts...)
	if err != nil {
		return err
	}
	defer func() {
		if err := m.Close(context.Background()); err != nil {
			warningf(c.App.ErrWriter, "failed to close machine: %s", err)
		}
	}()

	s, err := m.Servo(c.String(flagName))
	if err != nil {
		return err
	}
	req := actuation.Request{Delay: c.Duration(flagDelay), BypassClamp: c.Bool(flagBypass)}

	var task *actuation.Task
	switch op := c.String(flagOp); op {
	case opRaise:
		task, err = s.Raise(req)
	case opLower:
		task, err = s.Lower(req)
	case opSet:
		if !c.IsSet(flagValue) {
			return errors.Errorf("--%s is required for %s", flagValue, opSet)
		}
		task, err = s.Set(c.Float64(flagValue), req)
	default:
		return errors.Errorf("unknown op %q, expected one of %s, %s or %s", op, opRaise, opLower, opSet)
	}
	if err != nil {
		return err
	}
	if err := task.Wait(ctx); err != nil {
		return errors.Wrapf(err, "servo %q", c.String(flagName))
	}

	value, err := s.Pin().Value(ctx)
	if err != nil {
		return err
	}
	successf(c.App.Writer, "servo %q %s done, pin %d at %v", c.String(flagName), task.Operation(),
		s.Pin().Slot().Number, value)
	return nil
}

func (p *pinctl) schemaAction(c *cli.Context) error {
	schema, err := config.Schema()
	if err != nil {
		return err
	}
	printf(c.App.Writer, "%s", schema)
	return nil
}
