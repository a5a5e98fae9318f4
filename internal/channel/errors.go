package channel

import (
	"errors"

	"github.com/nerrad567/gray-logic-iobridge/internal/policy"
)

// Registry outcomes. Callers distinguish them with errors.Is.
var (
	// ErrNotFound is returned when no attached channel matches the request.
	// Detach/attach races end up here too.
	ErrNotFound = errors.New("channel: not found")

	// ErrAdapter wraps any failure reported by a Source.
	ErrAdapter = errors.New("channel: adapter error")

	// ErrTimeout is returned when opening an attached channel exceeds the attach wait.
	ErrTimeout = errors.New("channel: attach timed out")

	// ErrPersistence is the policy store's persistence failure.
	ErrPersistence = policy.ErrPersistence

	// ErrUnknownCapability is returned for capabilities outside the static table.
	ErrUnknownCapability = errors.New("channel: unknown capability")

	// ErrNoSources is returned by Run when no source could be started.
	ErrNoSources = errors.New("channel: no sources started")
)

// Adapter error categories. Sources wrap these so logs carry a categorised
// description of what went wrong.
var (
	// ErrNotAttached means the hardware channel is not currently present.
	ErrNotAttached = errors.New("channel: not attached")

	// ErrWrongChannelClass means the operation does not suit the channel,
	// for example setting the state of an input.
	ErrWrongChannelClass = errors.New("channel: wrong channel class")

	// ErrNotConfigured means the source has no such device or index configured.
	ErrNotConfigured = errors.New("channel: not configured")

	// ErrStateUnknown means the source cannot report the channel's current value.
	ErrStateUnknown = errors.New("channel: state unknown")
)
