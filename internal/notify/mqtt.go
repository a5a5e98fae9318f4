package notify

import (
	"context"
	"fmt"
)

// MQTTPublisher is the subset of *mqtt.Client used by MQTTSink.
type MQTTPublisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// MQTTSink publishes requests to the broker, using Destination as the topic.
type MQTTSink struct {
	client MQTTPublisher
	qos    byte
}

// NewMQTTSink returns a sink publishing with the given QoS.
func NewMQTTSink(client MQTTPublisher, qos byte) *MQTTSink {
	return &MQTTSink{client: client, qos: qos}
}

// Name implements Sink.
func (*MQTTSink) Name() string { return SinkMQTT }

// Deliver publishes one message. The client applies its own publish timeout;
// ctx is checked before the attempt.
func (s *MQTTSink) Deliver(ctx context.Context, req Request) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrDelivery, err)
	}
	if err := s.client.Publish(req.Destination, req.Payload, s.qos, req.Retained); err != nil {
		return fmt.Errorf("%w: publish %s: %w", ErrDelivery, req.Destination, err)
	}
	return nil
}
