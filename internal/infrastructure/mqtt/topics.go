package mqtt

import (
	"fmt"
	"strconv"
	"strings"
)

// Topic roots used by the bridge.
//
// Channel topics use the scheme phidget/{device_id}/{type}/{index}/{leaf},
// where type is "input" or "output". Bridge-level topics live under
// phidget/bridge.
const (
	// TopicPrefix is the base for all channel and bridge topics.
	TopicPrefix = "phidget"

	// TopicPrefixBridge is the base for bridge availability and control topics.
	TopicPrefixBridge = "phidget/bridge"

	// DefaultDiscoveryPrefix is the Home Assistant discovery root.
	DefaultDiscoveryPrefix = "homeassistant"
)

// Topic leaves.
const (
	LeafState   = "state"
	LeafStatus  = "status"
	LeafCommand = "command"
)

// Topics provides builders for the bridge's MQTT topics.
// Using these helpers keeps publishers and subscribers in agreement.
//
//	topics := mqtt.Topics{}
//	stateTopic := topics.ChannelState("504221", "output", 3)
//	// Returns: "phidget/504221/output/3/state"
type Topics struct {
	// DiscoveryPrefix overrides the Home Assistant discovery root.
	// Empty means DefaultDiscoveryPrefix.
	DiscoveryPrefix string
}

// =============================================================================
// Channel Topics
// =============================================================================

// ChannelState returns the retained state topic for a channel.
//
// Example: phidget/504221/input/0/state
func (Topics) ChannelState(deviceID, channelType string, index int) string {
	return channelTopic(deviceID, channelType, index, LeafState)
}

// ChannelStatus returns the retained attach/detach status topic for a channel.
//
// Example: phidget/504221/output/2/status
func (Topics) ChannelStatus(deviceID, channelType string, index int) string {
	return channelTopic(deviceID, channelType, index, LeafStatus)
}

// OutputCommand returns the topic consumers publish to for driving an output.
//
// Example: phidget/504221/output/2/command
func (Topics) OutputCommand(deviceID string, index int) string {
	return channelTopic(deviceID, "output", index, LeafCommand)
}

// DefaultsCommand returns the topic that sets a device's default output pattern.
//
// Example: phidget/504221/defaults/command
func (Topics) DefaultsCommand(deviceID string) string {
	return fmt.Sprintf("%s/%s/defaults/%s", TopicPrefix, deviceID, LeafCommand)
}

// DefaultsState returns the topic announcing a device's new default pattern.
//
// Example: phidget/504221/defaults/state
func (Topics) DefaultsState(deviceID string) string {
	return fmt.Sprintf("%s/%s/defaults/%s", TopicPrefix, deviceID, LeafState)
}

func channelTopic(deviceID, channelType string, index int, leaf string) string {
	return fmt.Sprintf("%s/%s/%s/%d/%s", TopicPrefix, deviceID, channelType, index, leaf)
}

// =============================================================================
// Home Assistant Discovery
// =============================================================================

// Discovery returns the retained discovery config topic for a channel.
// Inputs are announced as binary_sensor components, outputs as switch.
//
// Example: homeassistant/switch/phidget_504221_output_2/config
func (t Topics) Discovery(deviceID, channelType string, index int) string {
	component := "binary_sensor"
	if channelType == "output" {
		component = "switch"
	}
	return fmt.Sprintf("%s/%s/%s/config", t.discoveryPrefix(), component, UniqueID(deviceID, channelType, index))
}

// UniqueID returns the Home Assistant unique_id for a channel.
func UniqueID(deviceID, channelType string, index int) string {
	return fmt.Sprintf("phidget_%s_%s_%d", deviceID, channelType, index)
}

func (t Topics) discoveryPrefix() string {
	if t.DiscoveryPrefix == "" {
		return DefaultDiscoveryPrefix
	}
	return strings.TrimSuffix(t.DiscoveryPrefix, "/")
}

// =============================================================================
// Bridge Topics
// =============================================================================

// BridgeStatus returns the retained online/offline topic, also used for the LWT.
//
// Example: phidget/bridge/status
func (Topics) BridgeStatus() string {
	return TopicPrefixBridge + "/status"
}

// BridgeHealth returns the periodic health report topic.
//
// Example: phidget/bridge/health
func (Topics) BridgeHealth() string {
	return TopicPrefixBridge + "/health"
}

// BridgeResync returns the topic that requests a full state republish.
//
// Example: phidget/bridge/resync
func (Topics) BridgeResync() string {
	return TopicPrefixBridge + "/resync"
}

// =============================================================================
// Wildcard Patterns for Subscriptions
// =============================================================================

// AllOutputCommands matches output commands for every device and channel.
//
// Pattern: phidget/+/output/+/command
func (Topics) AllOutputCommands() string {
	return fmt.Sprintf("%s/+/output/+/%s", TopicPrefix, LeafCommand)
}

// AllDefaultsCommands matches default-pattern commands for every device.
//
// Pattern: phidget/+/defaults/command
func (Topics) AllDefaultsCommands() string {
	return fmt.Sprintf("%s/+/defaults/%s", TopicPrefix, LeafCommand)
}

// AllChannelStates matches every channel state topic.
//
// Pattern: phidget/+/+/+/state
func (Topics) AllChannelStates() string {
	return fmt.Sprintf("%s/+/+/+/%s", TopicPrefix, LeafState)
}

// =============================================================================
// Parsing
// =============================================================================

// ParseChannelTopic splits phidget/{device}/{type}/{index}/{leaf}.
func ParseChannelTopic(topic string) (deviceID, channelType string, index int, leaf string, err error) {
	parts := strings.Split(topic, "/")
	if len(parts) != 5 || parts[0] != TopicPrefix {
		return "", "", 0, "", fmt.Errorf("%w: %q is not a channel topic", ErrInvalidTopic, topic)
	}
	if parts[1] == "" || (parts[2] != "input" && parts[2] != "output") {
		return "", "", 0, "", fmt.Errorf("%w: %q is not a channel topic", ErrInvalidTopic, topic)
	}
	index, err = strconv.Atoi(parts[3])
	if err != nil || index < 0 {
		return "", "", 0, "", fmt.Errorf("%w: bad channel index in %q", ErrInvalidTopic, topic)
	}
	return parts[1], parts[2], index, parts[4], nil
}

// ParseDefaultsTopic extracts the device id from phidget/{device}/defaults/{leaf}.
func ParseDefaultsTopic(topic string) (deviceID string, err error) {
	parts := strings.Split(topic, "/")
	if len(parts) != 4 || parts[0] != TopicPrefix || parts[2] != "defaults" || parts[1] == "" {
		return "", fmt.Errorf("%w: %q is not a defaults topic", ErrInvalidTopic, topic)
	}
	return parts[1], nil
}
