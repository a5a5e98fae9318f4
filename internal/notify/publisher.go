package notify

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-iobridge/internal/channel"
	"github.com/nerrad567/gray-logic-iobridge/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-iobridge/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-iobridge/internal/policy"
)

// Webhook path suffixes appended to each configured base URL.
const (
	WebhookOutputChanged = "outputs/output_changed/"
	WebhookInputChanged  = "inputs/input/"
	WebhookDefaults      = "outputs/defaults/"
)

// Enqueuer accepts requests without blocking. *Dispatcher satisfies it.
type Enqueuer interface {
	Enqueue(req Request) bool
}

// WebhookRoute is one HTTP consumer.
type WebhookRoute struct {
	BaseURL    string
	Token      string
	AuthScheme string
}

// PublisherOptions selects the routes a Publisher fans out to.
type PublisherOptions struct {
	// Queue receives every request. Required.
	Queue Enqueuer

	// MQTT enables state and status publication; Discovery additionally
	// publishes Home Assistant discovery configs on attach.
	MQTT      bool
	Discovery bool
	Topics    mqtt.Topics

	Webhooks []WebhookRoute

	Influx    bool
	WebSocket bool

	Logger Logger

	// Now is the clock used for history and stream timestamps. Defaults to time.Now.
	Now func() time.Time
}

// Publisher turns registry transitions into dispatcher requests. It
// implements channel.Listener and never blocks: every route is a single
// Enqueue call.
type Publisher struct {
	opts   PublisherOptions
	logger Logger
	now    func() time.Time
}

var _ channel.Listener = (*Publisher)(nil)

// NewPublisher creates a Publisher. opts.Queue is required.
func NewPublisher(opts PublisherOptions) (*Publisher, error) {
	if opts.Queue == nil {
		return nil, fmt.Errorf("%w: queue", ErrMissingDependency)
	}
	p := &Publisher{opts: opts, logger: noopLogger{}, now: time.Now}
	if opts.Logger != nil {
		p.logger = opts.Logger
	}
	if opts.Now != nil {
		p.now = opts.Now
	}
	return p, nil
}

// ChannelAttached publishes the retained attached status, the discovery
// config and an attach record for history and stream consumers.
func (p *Publisher) ChannelAttached(ch channel.Channel) {
	correlationID := uuid.NewString()
	p.Announce(ch)
	p.statusSideRoutes(ch, true, correlationID)
}

// ChannelDetached publishes the retained detached status.
func (p *Publisher) ChannelDetached(ch channel.Channel) {
	correlationID := uuid.NewString()
	if p.opts.MQTT {
		p.mqtt(p.opts.Topics.ChannelStatus(ch.DeviceID, ch.Type, ch.Index), statusPayload(ch, false), correlationID)
	}
	p.statusSideRoutes(ch, false, correlationID)
}

// Announce publishes only the MQTT attached status and discovery config.
// It is used to re-announce live channels after a broker reconnect.
func (p *Publisher) Announce(ch channel.Channel) {
	if !p.opts.MQTT {
		return
	}
	correlationID := uuid.NewString()
	p.mqtt(p.opts.Topics.ChannelStatus(ch.DeviceID, ch.Type, ch.Index), statusPayload(ch, true), correlationID)
	if p.opts.Discovery {
		p.mqtt(p.opts.Topics.Discovery(ch.DeviceID, ch.Type, ch.Index), p.discoveryPayload(ch), correlationID)
	}
}

// StateChanged fans a state notification out to every configured route.
func (p *Publisher) StateChanged(ch channel.Channel, correlationID string) {
	body := StatePayload{
		State:     OnOff(ch.State),
		DeviceID:  ch.DeviceID,
		Channel:   ch.Index,
		RequestID: correlationID,
	}

	if p.opts.MQTT {
		p.mqtt(p.opts.Topics.ChannelState(ch.DeviceID, ch.Type, ch.Index), body, correlationID)
	}

	suffix := WebhookInputChanged
	if ch.Direction == channel.DirectionOutput {
		suffix = WebhookOutputChanged
	}
	p.webhooks(suffix, body, correlationID)

	if p.opts.Influx {
		p.enqueue(Request{
			Sink:          SinkInflux,
			Destination:   influxdb.MeasurementChannelState,
			Payload:       p.encode(p.history(ch, true, correlationID)),
			CorrelationID: correlationID,
		})
	}
	if p.opts.WebSocket {
		p.stream(StreamChannelState, body, correlationID)
	}
}

// DefaultsChanged announces a device's new default pattern.
func (p *Publisher) DefaultsChanged(deviceID, pattern, correlationID string) {
	policies := policy.ParsePattern(pattern)
	names := make([]string, len(policies))
	for i, pol := range policies {
		names[i] = pol.String()
	}
	body := DefaultsPayload{
		DeviceID:  deviceID,
		Pattern:   pattern,
		Defaults:  names,
		RequestID: correlationID,
	}

	if p.opts.MQTT {
		p.mqtt(p.opts.Topics.DefaultsState(deviceID), body, correlationID)
	}
	p.webhooks(WebhookDefaults, body, correlationID)
	if p.opts.WebSocket {
		p.stream(StreamDefaults, body, correlationID)
	}
}

func (p *Publisher) statusSideRoutes(ch channel.Channel, attached bool, correlationID string) {
	if p.opts.Influx {
		p.enqueue(Request{
			Sink:          SinkInflux,
			Destination:   influxdb.MeasurementChannelStatus,
			Payload:       p.encode(p.history(ch, attached, correlationID)),
			CorrelationID: correlationID,
		})
	}
	if p.opts.WebSocket {
		p.stream(StreamChannelStatus, statusPayload(ch, attached), correlationID)
	}
}

func (p *Publisher) mqtt(topic string, body any, correlationID string) {
	p.enqueue(Request{
		Sink:          SinkMQTT,
		Destination:   topic,
		Payload:       p.encode(body),
		CorrelationID: correlationID,
		Retained:      true,
	})
}

func (p *Publisher) webhooks(suffix string, body any, correlationID string) {
	if len(p.opts.Webhooks) == 0 {
		return
	}
	payload := p.encode(body)
	for _, hook := range p.opts.Webhooks {
		p.enqueue(Request{
			Sink:          SinkWebhook,
			Method:        http.MethodPost,
			Destination:   JoinURL(hook.BaseURL, suffix),
			Payload:       payload,
			CorrelationID: correlationID,
			AuthToken:     hook.Token,
			AuthScheme:    hook.AuthScheme,
		})
	}
}

func (p *Publisher) stream(eventType string, body any, correlationID string) {
	p.enqueue(Request{
		Sink:          SinkWebSocket,
		Destination:   eventType,
		Payload:       p.encode(StreamEvent{Type: eventType, Payload: body, Timestamp: p.now().UTC()}),
		CorrelationID: correlationID,
	})
}

func (p *Publisher) enqueue(req Request) {
	if req.Payload == nil {
		return
	}
	p.opts.Queue.Enqueue(req)
}

func (p *Publisher) encode(body any) []byte {
	b, err := json.Marshal(body)
	if err != nil {
		p.logger.Error("encoding notification payload", "error", err)
		return nil
	}
	return b
}

func (p *Publisher) history(ch channel.Channel, attached bool, correlationID string) HistoryPayload {
	return HistoryPayload{
		DeviceID:  ch.DeviceID,
		Type:      ch.Type,
		Channel:   ch.Index,
		State:     ch.State,
		Attached:  attached,
		RequestID: correlationID,
		At:        p.now().UTC(),
	}
}

func (p *Publisher) discoveryPayload(ch channel.Channel) DiscoveryPayload {
	t := p.opts.Topics
	d := DiscoveryPayload{
		Name:                 "Phidget " + ch.DeviceID + " " + ch.Type + " " + strconv.Itoa(ch.Index),
		UniqueID:             mqtt.UniqueID(ch.DeviceID, ch.Type, ch.Index),
		StateTopic:           t.ChannelState(ch.DeviceID, ch.Type, ch.Index),
		ValueTemplate:        "{{ value_json.state }}",
		PayloadOn:            StateOn,
		PayloadOff:           StateOff,
		AvailabilityTopic:    t.BridgeStatus(),
		AvailabilityTemplate: "{{ value_json.status }}",
		Device:               discoveryDevice(ch.DeviceID),
	}
	if ch.Direction == channel.DirectionOutput {
		d.CommandTopic = t.OutputCommand(ch.DeviceID, ch.Index)
		d.StateOn = StateOn
		d.StateOff = StateOff
	}
	return d
}

func statusPayload(ch channel.Channel, attached bool) StatusPayload {
	state := StatusDetached
	if attached {
		state = StatusAttached
	}
	return StatusPayload{
		State:    state,
		DeviceID: ch.DeviceID,
		Channel:  ch.Index,
		Type:     ch.Type,
	}
}

// JoinURL appends a path suffix to a webhook base URL with exactly one slash
// between them.
func JoinURL(base, suffix string) string {
	return strings.TrimSuffix(base, "/") + "/" + strings.TrimPrefix(suffix, "/")
}
