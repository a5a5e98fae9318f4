package influxdb

import (
	"strconv"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names.
const (
	MeasurementChannelState  = "channel_state"
	MeasurementChannelStatus = "channel_status"
)

// WriteChannelState records a channel's state. The state field is 1 or 0 so
// it can be graphed directly; request_id links the point to the command or
// event that caused it.
//
// Example line protocol:
//
//	channel_state,channel=3,device_id=504221,type=output state=1i,request_id="c0ffee" 1760788800000000000
func (c *Client) WriteChannelState(deviceID, channelType string, index int, state bool, correlationID string, at time.Time) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}
	c.writeAPI.WritePoint(channelStatePoint(deviceID, channelType, index, state, correlationID, at))
	return nil
}

// WriteChannelStatus records an attach or detach.
func (c *Client) WriteChannelStatus(deviceID, channelType string, index int, attached bool, at time.Time) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}
	c.writeAPI.WritePoint(channelStatusPoint(deviceID, channelType, index, attached, at))
	return nil
}

func channelTags(deviceID, channelType string, index int) map[string]string {
	return map[string]string{
		"device_id": deviceID,
		"type":      channelType,
		"channel":   strconv.Itoa(index),
	}
}

func channelStatePoint(deviceID, channelType string, index int, state bool, correlationID string, at time.Time) *write.Point {
	fields := map[string]interface{}{
		"state": boolToInt(state),
	}
	if correlationID != "" {
		fields["request_id"] = correlationID
	}
	return write.NewPoint(MeasurementChannelState, channelTags(deviceID, channelType, index), fields, at)
}

func channelStatusPoint(deviceID, channelType string, index int, attached bool, at time.Time) *write.Point {
	return write.NewPoint(
		MeasurementChannelStatus,
		channelTags(deviceID, channelType, index),
		map[string]interface{}{"attached": attached},
		at,
	)
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
