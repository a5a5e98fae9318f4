package hardware

import (
	"context"
	"fmt"
	"sync"

	"github.com/nerrad567/gray-logic-iobridge/internal/channel"
)

// BackendSimulated is the source name of the in-memory board.
const BackendSimulated = "simulated"

// SimulatedOptions configures a simulated board.
type SimulatedOptions struct {
	DeviceID string
	Inputs   int
	Outputs  int
	Logger   Logger
}

// Simulated is an in-memory board. Inputs take indexes 0..Inputs-1 and
// outputs follow on from there, so every index names exactly one channel.
// Inputs change only through SetInput. Every channel starts off and can be
// read back.
type Simulated struct {
	deviceID string
	nInputs  int
	nOutputs int
	logger   Logger

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	events  chan<- channel.Event
	started bool
	closed  bool
	inputs  []bool
	outputs []bool
}

var _ channel.Source = (*Simulated)(nil)

// NewSimulated validates opts and returns an unstarted board.
func NewSimulated(opts SimulatedOptions) (*Simulated, error) {
	if opts.DeviceID == "" {
		return nil, fmt.Errorf("%w: simulated device id is required", ErrInvalidOptions)
	}
	if opts.Inputs < 0 || opts.Outputs < 0 {
		return nil, fmt.Errorf("%w: simulated channel counts must not be negative", ErrInvalidOptions)
	}
	return &Simulated{
		deviceID: opts.DeviceID,
		nInputs:  opts.Inputs,
		nOutputs: opts.Outputs,
		logger:   orNoop(opts.Logger),
		inputs:   make([]bool, opts.Inputs),
		outputs:  make([]bool, opts.Outputs),
	}, nil
}

// Name returns "simulated".
func (s *Simulated) Name() string { return BackendSimulated }

// DeviceID returns the board id used in every event.
func (s *Simulated) DeviceID() string { return s.deviceID }

// Start announces every channel.
func (s *Simulated) Start(ctx context.Context, events chan<- channel.Event) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return fmt.Errorf("simulated: already started")
	}
	s.started = true
	s.events = events
	s.ctx, s.cancel = context.WithCancel(ctx)
	ctx = s.ctx
	s.mu.Unlock()

	go func() {
		for i := range s.nInputs {
			if !channel.Post(ctx, events, channel.Attached(BackendSimulated, s.deviceID, i, channel.CapabilityDigitalInput)) {
				return
			}
		}
		for i := range s.nOutputs {
			if !channel.Post(ctx, events, channel.Attached(BackendSimulated, s.deviceID, s.nInputs+i, channel.CapabilityDigitalOutput)) {
				return
			}
		}
	}()

	s.logger.Info("simulated source started", "device_id", s.deviceID, "inputs", s.nInputs, "outputs", s.nOutputs)
	return nil
}

// SetInput changes a simulated input and posts the edge when the value differs.
func (s *Simulated) SetInput(index int, state bool) error {
	s.mu.Lock()
	if !s.started || s.closed {
		s.mu.Unlock()
		return channel.ErrNotAttached
	}
	if !s.isInput(index) {
		s.mu.Unlock()
		return fmt.Errorf("%w: simulated input %d", channel.ErrNotConfigured, index)
	}
	if s.inputs[index] == state {
		s.mu.Unlock()
		return nil
	}
	s.inputs[index] = state
	ctx, events := s.ctx, s.events
	s.mu.Unlock()

	channel.Post(ctx, events, channel.InputChanged(BackendSimulated, s.deviceID, index, state))
	return nil
}

// Detach posts a detach event for one channel, as if it were unplugged.
func (s *Simulated) Detach(index int) {
	s.mu.Lock()
	ctx, events := s.ctx, s.events
	s.mu.Unlock()
	if events == nil {
		return
	}
	channel.Post(ctx, events, channel.Detached(BackendSimulated, s.deviceID, index))
}

// Open checks that the channel exists on the board.
func (s *Simulated) Open(_ context.Context, deviceID string, index int, c channel.Capability) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started || s.closed {
		return channel.ErrNotAttached
	}
	if deviceID != s.deviceID {
		return fmt.Errorf("%w: simulated device %s", channel.ErrNotConfigured, deviceID)
	}
	switch c {
	case channel.CapabilityDigitalInput:
		if index < 0 || index >= s.nInputs {
			return fmt.Errorf("%w: simulated input %d", channel.ErrNotConfigured, index)
		}
	case channel.CapabilityDigitalOutput:
		if !s.isOutput(index) {
			return fmt.Errorf("%w: simulated output %d", channel.ErrNotConfigured, index)
		}
	default:
		return fmt.Errorf("%w: %s", channel.ErrWrongChannelClass, c)
	}
	return nil
}

// SetState drives a simulated output.
func (s *Simulated) SetState(_ context.Context, deviceID string, index int, state bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started || s.closed {
		return channel.ErrNotAttached
	}
	if deviceID != s.deviceID {
		return fmt.Errorf("%w: simulated device %s", channel.ErrNotConfigured, deviceID)
	}
	if s.isInput(index) {
		return fmt.Errorf("%w: simulated channel %d is an input", channel.ErrWrongChannelClass, index)
	}
	if !s.isOutput(index) {
		return fmt.Errorf("%w: simulated output %d", channel.ErrNotConfigured, index)
	}
	s.outputs[index-s.nInputs] = state
	return nil
}

// Output returns the value last driven onto an output.
func (s *Simulated) Output(index int) (bool, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.isOutput(index) {
		return false, false
	}
	return s.outputs[index-s.nInputs], true
}

func (s *Simulated) isInput(index int) bool  { return index >= 0 && index < s.nInputs }
func (s *Simulated) isOutput(index int) bool { return index >= s.nInputs && index < s.nInputs+s.nOutputs }

// State returns the current value of any channel.
func (s *Simulated) State(deviceID string, index int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started || s.closed {
		return false, channel.ErrNotAttached
	}
	if deviceID != s.deviceID {
		return false, fmt.Errorf("%w: simulated device %s", channel.ErrNotConfigured, deviceID)
	}
	switch {
	case s.isInput(index):
		return s.inputs[index], nil
	case s.isOutput(index):
		return s.outputs[index-s.nInputs], nil
	default:
		return false, fmt.Errorf("%w: simulated channel %d", channel.ErrNotConfigured, index)
	}
}

// Close stops posting events.
func (s *Simulated) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.cancel != nil {
		s.cancel()
	}
	return nil
}
