package notify

import (
	"fmt"
	"time"
)

// Wire values for channel state and liveness.
const (
	StateOn  = "ON"
	StateOff = "OFF"

	StatusAttached = "attached"
	StatusDetached = "detached"
)

// OnOff renders a boolean channel state as "ON" or "OFF".
func OnOff(state bool) string {
	if state {
		return StateOn
	}
	return StateOff
}

// StatePayload is the body of state notifications on MQTT and webhooks.
type StatePayload struct {
	State     string `json:"state"`
	DeviceID  string `json:"device_id"`
	Channel   int    `json:"channel"`
	RequestID string `json:"request_id,omitempty"`
}

// StatusPayload announces that a channel attached or detached.
type StatusPayload struct {
	State    string `json:"state"`
	DeviceID string `json:"device_id"`
	Channel  int    `json:"channel"`
	Type     string `json:"type"`
}

// DefaultsPayload announces a new default output pattern for a device.
// Defaults lists the policy applied to each index: "on", "off", "last" or
// "unset" for skipped positions.
type DefaultsPayload struct {
	DeviceID  string   `json:"device_id"`
	Pattern   string   `json:"pattern"`
	Defaults  []string `json:"defaults"`
	RequestID string   `json:"request_id,omitempty"`
}

// HistoryPayload is the request body handed to the InfluxDB sink.
type HistoryPayload struct {
	DeviceID  string    `json:"device_id"`
	Type      string    `json:"type"`
	Channel   int       `json:"channel"`
	State     bool      `json:"state"`
	Attached  bool      `json:"attached"`
	RequestID string    `json:"request_id,omitempty"`
	At        time.Time `json:"at"`
}

// StreamEvent is the envelope broadcast to WebSocket subscribers.
type StreamEvent struct {
	Type      string    `json:"type"`
	Payload   any       `json:"payload"`
	Timestamp time.Time `json:"timestamp"`
}

// Stream event types, also used as WebSocket subscription channels.
const (
	StreamChannelState  = "channel.state"
	StreamChannelStatus = "channel.status"
	StreamDefaults      = "channel.defaults"
)

// DiscoveryDevice is the Home Assistant device block shared by all entities
// of one board.
type DiscoveryDevice struct {
	Identifiers  []string `json:"identifiers"`
	Name         string   `json:"name"`
	Model        string   `json:"model"`
	Manufacturer string   `json:"manufacturer"`
}

// DiscoveryPayload is a Home Assistant MQTT discovery config for one channel.
type DiscoveryPayload struct {
	Name                 string          `json:"name"`
	UniqueID             string          `json:"unique_id"`
	StateTopic           string          `json:"state_topic"`
	CommandTopic         string          `json:"command_topic,omitempty"`
	ValueTemplate        string          `json:"value_template"`
	PayloadOn            string          `json:"payload_on"`
	PayloadOff           string          `json:"payload_off"`
	StateOn              string          `json:"state_on,omitempty"`
	StateOff             string          `json:"state_off,omitempty"`
	AvailabilityTopic    string          `json:"availability_topic,omitempty"`
	AvailabilityTemplate string          `json:"availability_template,omitempty"`
	Device               DiscoveryDevice `json:"device"`
}

func discoveryDevice(deviceID string) DiscoveryDevice {
	return DiscoveryDevice{
		Identifiers:  []string{fmt.Sprintf("phidget_%s", deviceID)},
		Name:         fmt.Sprintf("Phidget %s", deviceID),
		Model:        "Phidget Interface Kit",
		Manufacturer: "Phidgets",
	}
}
