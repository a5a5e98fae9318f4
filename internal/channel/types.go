package channel

import (
	"fmt"
	"time"
)

// Direction is the data direction of a channel.
type Direction int

const (
	DirectionInput Direction = iota
	DirectionOutput
)

// String returns "input" or "output", the form used in topics and payloads.
func (d Direction) String() string {
	if d == DirectionOutput {
		return "output"
	}
	return "input"
}

// ParseDirection is the inverse of Direction.String.
func ParseDirection(s string) (Direction, error) {
	switch s {
	case "input":
		return DirectionInput, nil
	case "output":
		return DirectionOutput, nil
	default:
		return DirectionInput, fmt.Errorf("%w: direction %q", ErrUnknownCapability, s)
	}
}

// Capability tags what a hardware channel can do. Sources report one of a
// fixed set; the registry maps it to a Direction through a static table.
type Capability string

// Known capabilities.
const (
	CapabilityDigitalInput  Capability = "digital_input"
	CapabilityDigitalOutput Capability = "digital_output"
)

var capabilityDirections = map[Capability]Direction{
	CapabilityDigitalInput:  DirectionInput,
	CapabilityDigitalOutput: DirectionOutput,
}

// DirectionFor returns the direction served by a capability, or
// ErrUnknownCapability for anything outside the static table.
func DirectionFor(c Capability) (Direction, error) {
	d, ok := capabilityDirections[c]
	if !ok {
		return DirectionInput, fmt.Errorf("%w: %q", ErrUnknownCapability, c)
	}
	return d, nil
}

// Identity uniquely names a live channel. Two channels that differ only in
// direction are distinct.
type Identity struct {
	Source    string    `json:"source"`
	DeviceID  string    `json:"device_id"`
	Index     int       `json:"channel"`
	Direction Direction `json:"-"`
}

// String returns "source/device/direction/index".
func (id Identity) String() string {
	return fmt.Sprintf("%s/%s/%s/%d", id.Source, id.DeviceID, id.Direction, id.Index)
}

// Channel is a snapshot of one attached channel.
type Channel struct {
	Identity
	Capability Capability `json:"capability"`
	Type       string     `json:"type"` // Direction.String(), for JSON consumers

	// State is only meaningful when Known is true.
	State bool `json:"state"`
	Known bool `json:"known"`

	AttachedAt time.Time `json:"attached_at"`
}

// EventKind discriminates ingress events.
type EventKind int

const (
	EventAttached EventKind = iota
	EventDetached
	EventInputChanged
)

// String returns a short name for logs.
func (k EventKind) String() string {
	switch k {
	case EventAttached:
		return "attached"
	case EventDetached:
		return "detached"
	case EventInputChanged:
		return "input_changed"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// Event is posted by a Source onto the registry's ingress channel.
type Event struct {
	Kind     EventKind
	Source   string
	DeviceID string
	Index    int

	// Capability is set for EventAttached.
	Capability Capability

	// State is set for EventInputChanged.
	State bool
}

// Attached builds an EventAttached.
func Attached(source, deviceID string, index int, c Capability) Event {
	return Event{Kind: EventAttached, Source: source, DeviceID: deviceID, Index: index, Capability: c}
}

// Detached builds an EventDetached.
func Detached(source, deviceID string, index int) Event {
	return Event{Kind: EventDetached, Source: source, DeviceID: deviceID, Index: index}
}

// InputChanged builds an EventInputChanged.
func InputChanged(source, deviceID string, index int, state bool) Event {
	return Event{Kind: EventInputChanged, Source: source, DeviceID: deviceID, Index: index, State: state}
}
