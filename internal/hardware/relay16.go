package hardware

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.bug.st/serial"

	"github.com/nerrad567/gray-logic-iobridge/internal/channel"
)

// BackendRelay16 is the source name of the SainSmart USB relay backend.
const BackendRelay16 = "relay16"

// Relay board limits and serial defaults.
const (
	Relay16MaxChannels = 16
	DefaultBaudRate    = 9600

	// reopenMaxElapsed bounds the reconnect attempts made before a retry.
	// SetState runs under the registry lock, so this stays below the MQTT
	// command timeout; a caller deadline cuts it shorter.
	reopenMaxElapsed = 3 * time.Second
)

// PortOpener opens the board's serial port.
type PortOpener func(name string, baudRate int) (io.ReadWriteCloser, error)

// OpenSerial opens name as an 8N1 serial port.
func OpenSerial(name string, baudRate int) (io.ReadWriteCloser, error) {
	return serial.Open(name, &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
}

// RelayFrame returns the Modbus-ASCII "write single coil" frame that switches
// relay index (1-based) on or off, e.g. ":FE050000FF00FE\r\n" for relay 1 on.
func RelayFrame(index int, on bool) []byte {
	value := uint16(0x0000)
	if on {
		value = 0xFF00
	}
	return asciiFrame([]byte{0xFE, 0x05, 0x00, byte(index - 1), byte(value >> 8), byte(value)})
}

// asciiFrame encodes body as ':' + hex + LRC + CRLF.
func asciiFrame(body []byte) []byte {
	var sum byte
	for _, b := range body {
		sum += b
	}
	return fmt.Appendf(nil, ":%X%02X\r\n", body, -sum)
}

// Relay16Options configures a relay board source.
type Relay16Options struct {
	DeviceID string
	Port     string
	BaudRate int

	// Channels is the number of relays announced, 1..16.
	Channels int

	// OpenPort defaults to OpenSerial.
	OpenPort PortOpener
	Logger   Logger
}

// Relay16 is a channel.Source for the SainSmart 16-channel USB relay board.
// The board is write-only: State reports the last value written, or
// channel.ErrStateUnknown for relays not driven since start.
type Relay16 struct {
	deviceID string
	portName string
	baudRate int
	channels int
	openPort PortOpener
	logger   Logger

	mu      sync.Mutex
	port    io.ReadWriteCloser
	started bool
	closed  bool
	states  map[int]bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

var _ channel.Source = (*Relay16)(nil)

// NewRelay16 validates opts and returns an unopened source.
func NewRelay16(opts Relay16Options) (*Relay16, error) {
	if opts.DeviceID == "" {
		return nil, fmt.Errorf("%w: relay16 device id is required", ErrInvalidOptions)
	}
	if opts.Port == "" {
		return nil, fmt.Errorf("%w: relay16 port is required", ErrInvalidOptions)
	}
	if opts.Channels == 0 {
		opts.Channels = Relay16MaxChannels
	}
	if opts.Channels < 1 || opts.Channels > Relay16MaxChannels {
		return nil, fmt.Errorf("%w: relay16 channels %d", ErrInvalidOptions, opts.Channels)
	}
	if opts.BaudRate <= 0 {
		opts.BaudRate = DefaultBaudRate
	}
	if opts.OpenPort == nil {
		opts.OpenPort = OpenSerial
	}

	return &Relay16{
		deviceID: opts.DeviceID,
		portName: opts.Port,
		baudRate: opts.BaudRate,
		channels: opts.Channels,
		openPort: opts.OpenPort,
		logger:   orNoop(opts.Logger),
		states:   make(map[int]bool),
	}, nil
}

// Name returns "relay16".
func (r *Relay16) Name() string { return BackendRelay16 }

// DeviceID returns the board id used in every event.
func (r *Relay16) DeviceID() string { return r.deviceID }

// Start opens the serial port and announces relays 1..Channels as outputs.
func (r *Relay16) Start(ctx context.Context, events chan<- channel.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.started {
		return fmt.Errorf("relay16: already started")
	}
	port, err := r.openPort(r.portName, r.baudRate)
	if err != nil {
		return fmt.Errorf("relay16: open %s: %w", r.portName, err)
	}
	r.port = port
	r.started = true

	ctx, r.cancel = context.WithCancel(ctx)
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		for i := 1; i <= r.channels; i++ {
			if !channel.Post(ctx, events, channel.Attached(BackendRelay16, r.deviceID, i, channel.CapabilityDigitalOutput)) {
				return
			}
		}
	}()

	r.logger.Info("relay16 source started", "device_id", r.deviceID, "port", r.portName, "channels", r.channels)
	return nil
}

// Open checks that the channel is one of the announced relays.
func (r *Relay16) Open(_ context.Context, deviceID string, index int, c channel.Capability) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.started || r.closed {
		return channel.ErrNotAttached
	}
	if c != channel.CapabilityDigitalOutput {
		return fmt.Errorf("%w: relay16 has no %s channels", channel.ErrWrongChannelClass, c)
	}
	return r.checkLocked(deviceID, index)
}

// SetState writes the coil frame for one relay. A failed write reopens the
// port, with exponential backoff bounded by ctx, and is retried once.
func (r *Relay16) SetState(ctx context.Context, deviceID string, index int, state bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.started || r.closed {
		return channel.ErrNotAttached
	}
	if err := r.checkLocked(deviceID, index); err != nil {
		return err
	}

	frame := RelayFrame(index, state)
	if err := r.writeLocked(frame); err != nil {
		r.logger.Warn("relay16 write failed, reopening port", "channel", index, "error", err)
		if err := r.reopenLocked(ctx); err != nil {
			return fmt.Errorf("relay16: reopen %s: %w", r.portName, err)
		}
		if err := r.writeLocked(frame); err != nil {
			return fmt.Errorf("relay16: write relay %d: %w", index, err)
		}
	}

	r.states[index] = state
	r.logger.Debug("relay16 frame written", "channel", index, "state", state)
	return nil
}

// State returns the last value written to a relay.
func (r *Relay16) State(deviceID string, index int) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.started || r.closed {
		return false, channel.ErrNotAttached
	}
	if err := r.checkLocked(deviceID, index); err != nil {
		return false, err
	}
	state, ok := r.states[index]
	if !ok {
		return false, channel.ErrStateUnknown
	}
	return state, nil
}

// Close releases the serial port.
func (r *Relay16) Close() error {
	r.mu.Lock()
	if !r.started || r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	cancel := r.cancel
	port := r.port
	r.port = nil
	r.mu.Unlock()

	cancel()
	r.wg.Wait()
	if port == nil {
		return nil
	}
	return port.Close()
}

func (r *Relay16) checkLocked(deviceID string, index int) error {
	if deviceID != r.deviceID {
		return fmt.Errorf("%w: relay16 device %s", channel.ErrNotConfigured, deviceID)
	}
	if index < 1 || index > r.channels {
		return fmt.Errorf("%w: relay16 channel %d", channel.ErrNotConfigured, index)
	}
	return nil
}

func (r *Relay16) writeLocked(frame []byte) error {
	if r.port == nil {
		return channel.ErrNotAttached
	}
	n, err := r.port.Write(frame)
	if err != nil {
		return err
	}
	if n != len(frame) {
		return io.ErrShortWrite
	}
	return nil
}

func (r *Relay16) reopenLocked(ctx context.Context) error {
	if r.port != nil {
		//nolint:errcheck // the port is being replaced
		r.port.Close()
		r.port = nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 100 * time.Millisecond
	b.MaxElapsedTime = reopenMaxElapsed

	return backoff.Retry(func() error {
		port, err := r.openPort(r.portName, r.baudRate)
		if err != nil {
			return err
		}
		r.port = port
		return nil
	}, backoff.WithContext(b, ctx))
}
