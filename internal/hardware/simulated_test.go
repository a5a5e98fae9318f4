package hardware

import (
	"context"
	"errors"
	"testing"

	"github.com/nerrad567/gray-logic-iobridge/internal/channel"
)

func TestSimulated(t *testing.T) {
	sim, err := NewSimulated(SimulatedOptions{DeviceID: "sim", Inputs: 2, Outputs: 2})
	if err != nil {
		t.Fatalf("NewSimulated: %v", err)
	}
	if err := sim.SetInput(0, true); !errors.Is(err, channel.ErrNotAttached) {
		t.Errorf("SetInput before Start: error = %v", err)
	}

	events := make(chan channel.Event, 16)
	if err := sim.Start(context.Background(), events); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer sim.Close()

	wantAttach := []struct {
		index int
		cap   channel.Capability
	}{
		{0, channel.CapabilityDigitalInput},
		{1, channel.CapabilityDigitalInput},
		{2, channel.CapabilityDigitalOutput},
		{3, channel.CapabilityDigitalOutput},
	}
	for _, w := range wantAttach {
		ev := nextEvent(t, events)
		if ev.Kind != channel.EventAttached || ev.Index != w.index || ev.Capability != w.cap {
			t.Errorf("event = %+v, want attach %d %s", ev, w.index, w.cap)
		}
	}

	ctx := context.Background()
	if err := sim.Open(ctx, "sim", 2, channel.CapabilityDigitalOutput); err != nil {
		t.Errorf("Open output: %v", err)
	}
	if err := sim.Open(ctx, "sim", 1, channel.CapabilityDigitalOutput); !errors.Is(err, channel.ErrNotConfigured) {
		t.Errorf("Open input as output: error = %v", err)
	}

	if err := sim.SetState(ctx, "sim", 3, true); err != nil {
		t.Fatalf("SetState: %v", err)
	}
	if v, ok := sim.Output(3); !ok || !v {
		t.Errorf("Output(3) = %v, %v", v, ok)
	}
	if got, err := sim.State("sim", 3); err != nil || !got {
		t.Errorf("State(3) = %v, %v", got, err)
	}
	if err := sim.SetState(ctx, "sim", 0, true); !errors.Is(err, channel.ErrWrongChannelClass) {
		t.Errorf("SetState on input: error = %v", err)
	}

	if err := sim.SetInput(1, true); err != nil {
		t.Fatalf("SetInput: %v", err)
	}
	ev := nextEvent(t, events)
	if ev.Kind != channel.EventInputChanged || ev.Index != 1 || !ev.State {
		t.Errorf("event = %+v, want input 1 on", ev)
	}

	// unchanged value posts nothing
	if err := sim.SetInput(1, true); err != nil {
		t.Fatalf("SetInput: %v", err)
	}
	sim.Detach(0)
	ev = nextEvent(t, events)
	if ev.Kind != channel.EventDetached || ev.Index != 0 {
		t.Errorf("event = %+v, want detach 0", ev)
	}
}
