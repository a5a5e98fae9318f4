package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nerrad567/gray-logic-iobridge/internal/infrastructure/influxdb"
)

// HistoryWriter is the subset of *influxdb.Client used by InfluxSink.
type HistoryWriter interface {
	WriteChannelState(deviceID, channelType string, index int, state bool, correlationID string, at time.Time) error
	WriteChannelStatus(deviceID, channelType string, index int, attached bool, at time.Time) error
}

// InfluxSink records HistoryPayload requests. Destination selects the
// measurement.
type InfluxSink struct {
	writer HistoryWriter
}

// NewInfluxSink wraps a history writer.
func NewInfluxSink(w HistoryWriter) *InfluxSink {
	return &InfluxSink{writer: w}
}

// Name implements Sink.
func (*InfluxSink) Name() string { return SinkInflux }

// Deliver hands the point to the writer's batch.
func (s *InfluxSink) Deliver(ctx context.Context, req Request) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrDelivery, err)
	}

	var h HistoryPayload
	if err := json.Unmarshal(req.Payload, &h); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}

	var err error
	switch req.Destination {
	case influxdb.MeasurementChannelState:
		err = s.writer.WriteChannelState(h.DeviceID, h.Type, h.Channel, h.State, h.RequestID, h.At)
	case influxdb.MeasurementChannelStatus:
		err = s.writer.WriteChannelStatus(h.DeviceID, h.Type, h.Channel, h.Attached, h.At)
	default:
		return fmt.Errorf("%w: unknown measurement %q", ErrInvalidPayload, req.Destination)
	}
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDelivery, err)
	}
	return nil
}
