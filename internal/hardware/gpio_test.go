package hardware

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-iobridge/internal/channel"
)

// fakePins is an in-memory GPIO header. Unset pins read high, as with pull-ups.
type fakePins struct {
	mu     sync.Mutex
	opened bool
	closed bool
	levels map[int]bool
	modes  map[int]string
}

func newFakePins() *fakePins {
	return &fakePins{levels: make(map[int]bool), modes: make(map[int]string)}
}

func (p *fakePins) Open() error {
	p.mu.Lock()
	p.opened = true
	p.mu.Unlock()
	return nil
}

func (p *fakePins) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	return nil
}

func (p *fakePins) Input(pin int, pullUp bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.modes[pin] = "in"
	if _, ok := p.levels[pin]; !ok {
		p.levels[pin] = pullUp
	}
}

func (p *fakePins) Output(pin int) {
	p.mu.Lock()
	p.modes[pin] = "out"
	p.mu.Unlock()
}

func (p *fakePins) Read(pin int) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.levels[pin]
}

func (p *fakePins) Write(pin int, high bool) {
	p.mu.Lock()
	p.levels[pin] = high
	p.mu.Unlock()
}

func (p *fakePins) set(pin int, high bool) { p.Write(pin, high) }

func startGPIO(t *testing.T, pins *fakePins) (*GPIO, chan channel.Event) {
	t.Helper()
	g, err := NewGPIO(GPIOOptions{
		DeviceID:     "gpio-abc",
		InputPins:    []int{4, 17},
		OutputPins:   []int{22},
		PullUp:       true,
		PollInterval: 2 * time.Millisecond,
		Pins:         pins,
	})
	if err != nil {
		t.Fatalf("NewGPIO: %v", err)
	}
	events := make(chan channel.Event, 32)
	if err := g.Start(context.Background(), events); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { g.Close() })
	return g, events
}

func nextEvent(t *testing.T, events <-chan channel.Event) channel.Event {
	t.Helper()
	select {
	case ev := <-events:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return channel.Event{}
	}
}

func TestGPIO_AnnouncesPinsAsChannels(t *testing.T) {
	pins := newFakePins()
	_, events := startGPIO(t, pins)

	want := []struct {
		index int
		cap   channel.Capability
	}{
		{4, channel.CapabilityDigitalInput},
		{17, channel.CapabilityDigitalInput},
		{22, channel.CapabilityDigitalOutput},
	}
	for _, w := range want {
		ev := nextEvent(t, events)
		if ev.Kind != channel.EventAttached || ev.Index != w.index || ev.Capability != w.cap {
			t.Errorf("event = %+v, want attach %d %s", ev, w.index, w.cap)
		}
	}

	pins.mu.Lock()
	defer pins.mu.Unlock()
	if pins.modes[4] != "in" || pins.modes[22] != "out" {
		t.Errorf("pin modes = %v", pins.modes)
	}
}

func TestGPIO_PollsEdges(t *testing.T) {
	pins := newFakePins()
	g, events := startGPIO(t, pins)
	for range 3 {
		nextEvent(t, events)
	}

	if got, err := g.State("gpio-abc", 17); err != nil || got {
		t.Fatalf("idle pulled-up input = %v, %v; want inactive", got, err)
	}

	pins.set(17, false) // contact closed pulls the pin low
	ev := nextEvent(t, events)
	if ev.Kind != channel.EventInputChanged || ev.Index != 17 || !ev.State {
		t.Fatalf("event = %+v, want input 17 active", ev)
	}

	pins.set(17, true)
	ev = nextEvent(t, events)
	if ev.Kind != channel.EventInputChanged || ev.State {
		t.Fatalf("event = %+v, want input 17 inactive", ev)
	}
}

func TestGPIO_SetState(t *testing.T) {
	pins := newFakePins()
	g, _ := startGPIO(t, pins)
	ctx := context.Background()

	if err := g.SetState(ctx, "gpio-abc", 22, true); err != nil {
		t.Fatalf("SetState: %v", err)
	}
	if got, err := g.State("gpio-abc", 22); err != nil || !got {
		t.Errorf("output state = %v, %v", got, err)
	}
	if err := g.SetState(ctx, "gpio-abc", 4, true); !errors.Is(err, channel.ErrWrongChannelClass) {
		t.Errorf("set input: error = %v, want ErrWrongChannelClass", err)
	}
	if err := g.SetState(ctx, "gpio-abc", 5, true); !errors.Is(err, channel.ErrNotConfigured) {
		t.Errorf("unknown pin: error = %v, want ErrNotConfigured", err)
	}
	if err := g.Open(ctx, "gpio-abc", 22, channel.CapabilityDigitalInput); !errors.Is(err, channel.ErrNotConfigured) {
		t.Errorf("open output as input: error = %v", err)
	}

	if err := g.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !pins.closed {
		t.Error("header not released")
	}
	if err := g.SetState(ctx, "gpio-abc", 22, false); !errors.Is(err, channel.ErrNotAttached) {
		t.Errorf("after close: error = %v, want ErrNotAttached", err)
	}
}

func TestNewGPIO_Validation(t *testing.T) {
	tests := []struct {
		name string
		opts GPIOOptions
	}{
		{"no device id", GPIOOptions{InputPins: []int{2}}},
		{"overlap", GPIOOptions{DeviceID: "g", InputPins: []int{2, 3}, OutputPins: []int{3}}},
		{"out of range", GPIOOptions{DeviceID: "g", InputPins: []int{40}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewGPIO(tt.opts); !errors.Is(err, ErrInvalidOptions) {
				t.Errorf("error = %v, want ErrInvalidOptions", err)
			}
		})
	}
}
