package channel

import "context"

// Source is one hardware backend: a GPIO header, a USB relay board, a vendor
// I/O board. It reports channel presence and input edges as Events and
// accepts output commands.
//
// Sources never call into the registry directly. They post events with Post
// and the registry drains them on its own goroutine.
type Source interface {
	// Name is the source kind and the Event.Source value it posts.
	Name() string

	// Start begins reporting. Channels already present are announced with
	// EventAttached. Events are posted until ctx is cancelled or Close is called.
	Start(ctx context.Context, events chan<- Event) error

	// Open prepares an announced channel for use and blocks until it is ready
	// or ctx expires.
	Open(ctx context.Context, deviceID string, index int, c Capability) error

	// SetState drives an output channel.
	SetState(ctx context.Context, deviceID string, index int, state bool) error

	// State reads the current value of a channel. Sources that cannot read
	// back return ErrStateUnknown.
	State(deviceID string, index int) (bool, error)

	// Close releases device handles. Further calls fail with ErrNotAttached.
	Close() error
}

// Post delivers ev to the registry, giving up when ctx is done.
func Post(ctx context.Context, events chan<- Event, ev Event) bool {
	select {
	case events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}
