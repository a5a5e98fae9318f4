package notify

import "context"

// Sink names used in Request.Sink.
const (
	SinkMQTT      = "mqtt"
	SinkWebhook   = "webhook"
	SinkInflux    = "influxdb"
	SinkWebSocket = "websocket"
)

// Request is one outbound delivery. It is created by the Publisher and
// consumed exactly once by the dispatcher worker.
type Request struct {
	// Sink selects the registered Sink that delivers the request.
	Sink string

	// Method is the HTTP method for webhooks. Other sinks ignore it.
	Method string

	// Destination is a topic, URL or measurement, depending on the sink.
	Destination string

	// Payload is the encoded body, normally JSON.
	Payload []byte

	// CorrelationID ties the notification to the command or event that
	// caused it. Webhooks send it as X-Request-ID.
	CorrelationID string

	// AuthToken and AuthScheme form the webhook Authorization header.
	AuthToken  string
	AuthScheme string

	// Retained asks the MQTT sink to publish with the retain flag.
	Retained bool
}

// Sink delivers requests to one kind of consumer. Deliver makes exactly one
// attempt and must honour ctx cancellation.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, req Request) error
}
