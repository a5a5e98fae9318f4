package mqttbridge

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// OutputCommand is the JSON form of an output command. Plain payloads
// ("ON", "OFF", "1", "0", "true", "false") are also accepted.
type OutputCommand struct {
	State     json.RawMessage `json:"state"`
	RequestID string          `json:"request_id,omitempty"`
	Force     bool            `json:"force,omitempty"`
}

// DefaultsCommand is the JSON form of a defaults command. A plain payload is
// taken as the pattern itself.
type DefaultsCommand struct {
	Pattern   string `json:"pattern"`
	RequestID string `json:"request_id,omitempty"`
}

// ResyncCommand is the optional JSON body of a resync request.
type ResyncCommand struct {
	RequestID string `json:"request_id,omitempty"`
}

// ParseOutputCommand decodes an output command payload.
func ParseOutputCommand(payload []byte) (state bool, cmd OutputCommand, err error) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 {
		return false, cmd, fmt.Errorf("%w: empty output command", ErrInvalidCommand)
	}

	if trimmed[0] != '{' {
		state, err = parseState(string(trimmed))
		return state, cmd, err
	}

	if err := json.Unmarshal(trimmed, &cmd); err != nil {
		return false, cmd, fmt.Errorf("%w: %w", ErrInvalidCommand, err)
	}
	if len(cmd.State) == 0 {
		return false, cmd, fmt.Errorf("%w: missing state", ErrInvalidCommand)
	}

	// state may be a JSON string, bool or number.
	var raw any
	if err := json.Unmarshal(cmd.State, &raw); err != nil {
		return false, cmd, fmt.Errorf("%w: %w", ErrInvalidCommand, err)
	}
	switch v := raw.(type) {
	case bool:
		state = v
	case float64:
		if v != 0 && v != 1 {
			return false, cmd, fmt.Errorf("%w: state %v", ErrInvalidCommand, v)
		}
		state = v == 1
	case string:
		state, err = parseState(v)
	default:
		err = fmt.Errorf("%w: state %s", ErrInvalidCommand, string(cmd.State))
	}
	return state, cmd, err
}

func parseState(s string) (bool, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "ON", "1", "TRUE":
		return true, nil
	case "OFF", "0", "FALSE":
		return false, nil
	default:
		return false, fmt.Errorf("%w: state %q", ErrInvalidCommand, s)
	}
}

// ParseDefaultsCommand decodes a defaults command payload. A plain payload
// is the pattern itself; only a trailing line ending is removed, since every
// other byte is a position. An empty pattern clears the device's defaults.
func ParseDefaultsCommand(payload []byte) (DefaultsCommand, error) {
	var cmd DefaultsCommand
	if trimmed := bytes.TrimSpace(payload); len(trimmed) > 0 && trimmed[0] == '{' {
		var body struct {
			Pattern   *string `json:"pattern"`
			RequestID string  `json:"request_id"`
		}
		if err := json.Unmarshal(trimmed, &body); err != nil {
			return cmd, fmt.Errorf("%w: %w", ErrInvalidCommand, err)
		}
		if body.Pattern == nil {
			return cmd, fmt.Errorf("%w: missing pattern", ErrInvalidCommand)
		}
		cmd.Pattern = *body.Pattern
		cmd.RequestID = body.RequestID
		return cmd, nil
	}

	cmd.Pattern = strings.TrimRight(string(payload), "\r\n")
	return cmd, nil
}

// ParseResyncCommand decodes a resync payload. Anything that is not a JSON
// object, including an empty payload, is used verbatim as the request id.
func ParseResyncCommand(payload []byte) ResyncCommand {
	trimmed := bytes.TrimSpace(payload)
	var cmd ResyncCommand
	if len(trimmed) > 0 && trimmed[0] == '{' {
		if err := json.Unmarshal(trimmed, &cmd); err == nil {
			return cmd
		}
	}
	cmd.RequestID = string(trimmed)
	return cmd
}
