package hardware

import (
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/gray-logic-iobridge/internal/channel"
	"github.com/nerrad567/gray-logic-iobridge/internal/infrastructure/config"
)

// Constructor builds one backend from the hardware configuration.
type Constructor func(cfg config.HardwareConfig, logger Logger) (channel.Source, error)

type backend struct {
	name    string
	enabled func(config.HardwareConfig) bool
	build   Constructor
}

// backends is the static table of known backends, in start order.
var backends = []backend{
	{
		name:    BackendGPIO,
		enabled: func(c config.HardwareConfig) bool { return c.GPIO.Enabled },
		build:   newGPIOFromConfig,
	},
	{
		name:    BackendRelay16,
		enabled: func(c config.HardwareConfig) bool { return c.Relay16.Enabled },
		build:   newRelay16FromConfig,
	},
	{
		name:    BackendSimulated,
		enabled: func(c config.HardwareConfig) bool { return c.Simulated.Enabled },
		build:   newSimulatedFromConfig,
	},
}

// cpuinfoPath is a variable so tests can point device id derivation at a fixture.
var cpuinfoPath = CPUInfoPath

// Backends returns the names of every known backend.
func Backends() []string {
	names := make([]string, len(backends))
	for i, b := range backends {
		names[i] = b.name
	}
	return names
}

// New builds the named backend regardless of its enabled flag.
func New(name string, cfg config.HardwareConfig, logger Logger) (channel.Source, error) {
	for _, b := range backends {
		if b.name == name {
			return b.build(cfg, orNoop(logger))
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, name)
}

// Build constructs every enabled backend. A backend that fails to build is
// reported in the joined error; the others are still returned.
func Build(cfg config.HardwareConfig, logger Logger) ([]channel.Source, error) {
	logger = orNoop(logger)

	var (
		sources []channel.Source
		errs    []error
	)
	for _, b := range backends {
		if !b.enabled(cfg) {
			continue
		}
		src, err := b.build(cfg, logger)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", b.name, err))
			continue
		}
		sources = append(sources, src)
	}
	return sources, errors.Join(errs...)
}

func newGPIOFromConfig(cfg config.HardwareConfig, logger Logger) (channel.Source, error) {
	c := cfg.GPIO
	deviceID, err := ResolveDeviceID(BackendGPIO, c.DeviceID, cpuinfoPath)
	if err != nil {
		return nil, err
	}
	return NewGPIO(GPIOOptions{
		DeviceID:     deviceID,
		InputPins:    c.InputPins,
		OutputPins:   c.OutputPins,
		PullUp:       c.PullUp,
		PollInterval: time.Duration(c.PollInterval) * time.Millisecond,
		Logger:       logger,
	})
}

func newRelay16FromConfig(cfg config.HardwareConfig, logger Logger) (channel.Source, error) {
	c := cfg.Relay16
	deviceID, err := ResolveDeviceID(BackendRelay16, c.DeviceID, cpuinfoPath)
	if err != nil {
		return nil, err
	}
	return NewRelay16(Relay16Options{
		DeviceID: deviceID,
		Port:     c.Port,
		BaudRate: c.BaudRate,
		Channels: c.Channels,
		Logger:   logger,
	})
}

func newSimulatedFromConfig(cfg config.HardwareConfig, logger Logger) (channel.Source, error) {
	c := cfg.Simulated
	return NewSimulated(SimulatedOptions{
		DeviceID: c.DeviceID,
		Inputs:   c.Inputs,
		Outputs:  c.Outputs,
		Logger:   logger,
	})
}
