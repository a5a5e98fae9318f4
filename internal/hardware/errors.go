package hardware

import "errors"

var (
	// ErrUnknownBackend is returned by New for a name outside the backend table.
	ErrUnknownBackend = errors.New("hardware: unknown backend")

	// ErrNoSerial is returned when /proc/cpuinfo carries no Serial line.
	ErrNoSerial = errors.New("hardware: cpu serial not found")

	// ErrInvalidOptions is returned for backend options that cannot work.
	ErrInvalidOptions = errors.New("hardware: invalid options")
)
