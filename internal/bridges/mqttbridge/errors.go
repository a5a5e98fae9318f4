package mqttbridge

import "errors"

var (
	// ErrInvalidCommand is returned for command payloads that cannot be parsed.
	ErrInvalidCommand = errors.New("mqttbridge: invalid command")

	// ErrMissingDependency is returned by NewBridge when a required option is nil.
	ErrMissingDependency = errors.New("mqttbridge: missing dependency")
)
