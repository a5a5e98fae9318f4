// Package mqttbridge exposes the channel registry over MQTT.
//
// It subscribes to output, defaults and resync command topics, translates
// their payloads into registry calls, and publishes a periodic health report
// on phidget/bridge/health. Outbound state traffic is produced by the
// notification dispatcher, not by this package.
package mqttbridge
