package notify

import "errors"

// Domain-specific errors for notification delivery.
var (
	// ErrQueueFull is reported when Enqueue finds the queue at capacity.
	ErrQueueFull = errors.New("notify: queue full")

	// ErrStopped is reported when Enqueue is called after Stop.
	ErrStopped = errors.New("notify: dispatcher stopped")

	// ErrUnknownSink is logged for requests naming a sink that was never added.
	ErrUnknownSink = errors.New("notify: unknown sink")

	// ErrDelivery wraps a failed delivery attempt.
	ErrDelivery = errors.New("notify: delivery failed")

	// ErrAlreadyStarted is returned by a second call to Start.
	ErrAlreadyStarted = errors.New("notify: dispatcher already started")

	// ErrMissingDependency is returned by constructors missing a required option.
	ErrMissingDependency = errors.New("notify: missing dependency")

	// ErrInvalidPayload is returned by sinks that cannot decode a request body.
	ErrInvalidPayload = errors.New("notify: invalid payload")
)
