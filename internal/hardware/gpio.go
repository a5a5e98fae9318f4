package hardware

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/stianeikeland/go-rpio/v4"

	"github.com/nerrad567/gray-logic-iobridge/internal/channel"
)

// BackendGPIO is the source name of the Raspberry Pi GPIO backend.
const BackendGPIO = "gpio"

// DefaultPollInterval is the input edge detection period.
const DefaultPollInterval = 20 * time.Millisecond

// Pins is raw access to a GPIO header. Pin numbers are BCM numbers.
type Pins interface {
	Open() error
	Close() error
	Input(pin int, pullUp bool)
	Output(pin int)
	Read(pin int) (high bool)
	Write(pin int, high bool)
}

// rpioPins drives the header through go-rpio's /dev/gpiomem mapping.
type rpioPins struct{}

func (rpioPins) Open() error  { return rpio.Open() }
func (rpioPins) Close() error { return rpio.Close() }

func (rpioPins) Input(pin int, pullUp bool) {
	p := rpio.Pin(pin)
	p.Input()
	if pullUp {
		p.PullUp()
	} else {
		p.PullOff()
	}
}

func (rpioPins) Output(pin int) { rpio.Pin(pin).Output() }

func (rpioPins) Read(pin int) bool { return rpio.Pin(pin).Read() == rpio.High }

func (rpioPins) Write(pin int, high bool) {
	if high {
		rpio.Pin(pin).High()
	} else {
		rpio.Pin(pin).Low()
	}
}

// GPIOOptions configures a GPIO source.
type GPIOOptions struct {
	DeviceID   string
	InputPins  []int
	OutputPins []int

	// PullUp enables the internal pull-up on inputs. An input pulled low
	// then reads as active.
	PullUp bool

	PollInterval time.Duration

	// Pins defaults to the memory-mapped header.
	Pins   Pins
	Logger Logger
}

// GPIO is a channel.Source over Raspberry Pi header pins. Each configured
// BCM pin is one channel whose index is the pin number. Inputs are polled
// for edges; outputs are driven directly and read back from the pin level.
type GPIO struct {
	deviceID string
	inputs   []int
	outputs  []int
	pullUp   bool
	interval time.Duration
	pins     Pins
	logger   Logger

	mu     sync.Mutex
	open   bool
	last   map[int]bool
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

var _ channel.Source = (*GPIO)(nil)

// NewGPIO validates opts and returns an unopened source.
func NewGPIO(opts GPIOOptions) (*GPIO, error) {
	if opts.DeviceID == "" {
		return nil, fmt.Errorf("%w: gpio device id is required", ErrInvalidOptions)
	}
	for _, pin := range opts.InputPins {
		if slices.Contains(opts.OutputPins, pin) {
			return nil, fmt.Errorf("%w: gpio pin %d is both input and output", ErrInvalidOptions, pin)
		}
	}
	for _, pin := range append(slices.Clone(opts.InputPins), opts.OutputPins...) {
		if pin < 0 || pin > 27 {
			return nil, fmt.Errorf("%w: gpio pin %d out of range", ErrInvalidOptions, pin)
		}
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.Pins == nil {
		opts.Pins = rpioPins{}
	}

	return &GPIO{
		deviceID: opts.DeviceID,
		inputs:   slices.Clone(opts.InputPins),
		outputs:  slices.Clone(opts.OutputPins),
		pullUp:   opts.PullUp,
		interval: opts.PollInterval,
		pins:     opts.Pins,
		logger:   orNoop(opts.Logger),
		last:     make(map[int]bool),
	}, nil
}

// Name returns "gpio".
func (g *GPIO) Name() string { return BackendGPIO }

// DeviceID returns the board id used in every event.
func (g *GPIO) DeviceID() string { return g.deviceID }

// Start maps the header, configures every pin, announces the channels and
// begins polling inputs.
func (g *GPIO) Start(ctx context.Context, events chan<- channel.Event) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.open {
		return fmt.Errorf("gpio: already started")
	}
	if err := g.pins.Open(); err != nil {
		return fmt.Errorf("gpio: open header: %w", err)
	}
	for _, pin := range g.inputs {
		g.pins.Input(pin, g.pullUp)
		g.last[pin] = g.activeLocked(pin)
	}
	for _, pin := range g.outputs {
		g.pins.Output(pin)
	}
	g.open = true

	ctx, g.cancel = context.WithCancel(ctx)
	g.wg.Add(1)
	go g.run(ctx, events)

	g.logger.Info("gpio source started",
		"device_id", g.deviceID, "inputs", len(g.inputs), "outputs", len(g.outputs))
	return nil
}

func (g *GPIO) run(ctx context.Context, events chan<- channel.Event) {
	defer g.wg.Done()

	for _, pin := range g.inputs {
		if !channel.Post(ctx, events, channel.Attached(BackendGPIO, g.deviceID, pin, channel.CapabilityDigitalInput)) {
			return
		}
	}
	for _, pin := range g.outputs {
		if !channel.Post(ctx, events, channel.Attached(BackendGPIO, g.deviceID, pin, channel.CapabilityDigitalOutput)) {
			return
		}
	}

	if len(g.inputs) == 0 {
		return
	}

	ticker := time.NewTicker(g.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, ev := range g.poll() {
				if !channel.Post(ctx, events, ev) {
					return
				}
			}
		}
	}
}

// poll reads every input and returns an event per edge.
func (g *GPIO) poll() []channel.Event {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.open {
		return nil
	}
	var changed []channel.Event
	for _, pin := range g.inputs {
		state := g.activeLocked(pin)
		if state == g.last[pin] {
			continue
		}
		g.last[pin] = state
		changed = append(changed, channel.InputChanged(BackendGPIO, g.deviceID, pin, state))
	}
	return changed
}

// activeLocked maps the pin level to the channel state. With pull-ups an
// input is active when held low.
func (g *GPIO) activeLocked(pin int) bool {
	high := g.pins.Read(pin)
	if g.pullUp {
		return !high
	}
	return high
}

// Open checks that the channel is one of the configured pins.
func (g *GPIO) Open(_ context.Context, deviceID string, index int, c channel.Capability) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.open {
		return channel.ErrNotAttached
	}
	if deviceID != g.deviceID {
		return fmt.Errorf("%w: gpio device %s", channel.ErrNotConfigured, deviceID)
	}
	switch c {
	case channel.CapabilityDigitalInput:
		if !slices.Contains(g.inputs, index) {
			return fmt.Errorf("%w: gpio input %d", channel.ErrNotConfigured, index)
		}
	case channel.CapabilityDigitalOutput:
		if !slices.Contains(g.outputs, index) {
			return fmt.Errorf("%w: gpio output %d", channel.ErrNotConfigured, index)
		}
	default:
		return fmt.Errorf("%w: %s", channel.ErrWrongChannelClass, c)
	}
	return nil
}

// SetState drives an output pin high for true and low for false.
func (g *GPIO) SetState(_ context.Context, deviceID string, index int, state bool) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.open {
		return channel.ErrNotAttached
	}
	if deviceID != g.deviceID {
		return fmt.Errorf("%w: gpio device %s", channel.ErrNotConfigured, deviceID)
	}
	if slices.Contains(g.inputs, index) {
		return fmt.Errorf("%w: gpio pin %d is an input", channel.ErrWrongChannelClass, index)
	}
	if !slices.Contains(g.outputs, index) {
		return fmt.Errorf("%w: gpio output %d", channel.ErrNotConfigured, index)
	}
	g.pins.Write(index, state)
	return nil
}

// State reads the current value of an input or output pin.
func (g *GPIO) State(deviceID string, index int) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.open {
		return false, channel.ErrNotAttached
	}
	if deviceID != g.deviceID {
		return false, fmt.Errorf("%w: gpio device %s", channel.ErrNotConfigured, deviceID)
	}
	switch {
	case slices.Contains(g.inputs, index):
		return g.activeLocked(index), nil
	case slices.Contains(g.outputs, index):
		return g.pins.Read(index), nil
	default:
		return false, fmt.Errorf("%w: gpio pin %d", channel.ErrNotConfigured, index)
	}
}

// Close stops polling and unmaps the header.
func (g *GPIO) Close() error {
	g.mu.Lock()
	if !g.open {
		g.mu.Unlock()
		return nil
	}
	g.open = false
	cancel := g.cancel
	g.mu.Unlock()

	cancel()
	g.wg.Wait()
	return g.pins.Close()
}
