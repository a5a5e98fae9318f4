package notify

import (
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-iobridge/internal/channel"
	"github.com/nerrad567/gray-logic-iobridge/internal/infrastructure/influxdb"
)

var fixedNow = time.Date(2026, 10, 18, 9, 30, 0, 0, time.UTC)

func testChannel(dir channel.Direction, index int, state bool) channel.Channel {
	return channel.Channel{
		Identity: channel.Identity{
			Source:    "simulated",
			DeviceID:  "504221",
			Index:     index,
			Direction: dir,
		},
		Type:  dir.String(),
		State: state,
		Known: true,
	}
}

func newTestPublisher(t *testing.T, q *recordingQueue, opts PublisherOptions) *Publisher {
	t.Helper()
	opts.Queue = q
	opts.Now = func() time.Time { return fixedNow }
	p, err := NewPublisher(opts)
	if err != nil {
		t.Fatalf("NewPublisher: %v", err)
	}
	return p
}

func TestNewPublisher_RequiresQueue(t *testing.T) {
	p, err := NewPublisher(PublisherOptions{MQTT: true})
	if !errors.Is(err, ErrMissingDependency) {
		t.Errorf("error = %v, want ErrMissingDependency", err)
	}
	if p != nil {
		t.Error("publisher returned alongside an error")
	}
}

func TestPublisher_ChannelAttachedPublishesStatusAndDiscovery(t *testing.T) {
	q := &recordingQueue{}
	p := newTestPublisher(t, q, PublisherOptions{MQTT: true, Discovery: true})

	p.ChannelAttached(testChannel(channel.DirectionOutput, 2, false))
	p.ChannelAttached(testChannel(channel.DirectionInput, 0, false))

	reqs := q.bySink(SinkMQTT)
	if len(reqs) != 4 {
		t.Fatalf("got %d mqtt requests, want 4", len(reqs))
	}
	for _, r := range reqs {
		if !r.Retained {
			t.Errorf("%s not retained", r.Destination)
		}
	}

	if reqs[0].Destination != "phidget/504221/output/2/status" {
		t.Errorf("status topic = %s", reqs[0].Destination)
	}
	var status StatusPayload
	if err := json.Unmarshal(reqs[0].Payload, &status); err != nil {
		t.Fatalf("status payload: %v", err)
	}
	if status != (StatusPayload{State: StatusAttached, DeviceID: "504221", Channel: 2, Type: "output"}) {
		t.Errorf("status payload = %+v", status)
	}

	if reqs[1].Destination != "homeassistant/switch/phidget_504221_output_2/config" {
		t.Errorf("output discovery topic = %s", reqs[1].Destination)
	}
	var sw DiscoveryPayload
	if err := json.Unmarshal(reqs[1].Payload, &sw); err != nil {
		t.Fatalf("discovery payload: %v", err)
	}
	if sw.Name != "Phidget 504221 output 2" || sw.UniqueID != "phidget_504221_output_2" {
		t.Errorf("discovery name/unique_id = %q/%q", sw.Name, sw.UniqueID)
	}
	if sw.CommandTopic != "phidget/504221/output/2/command" || sw.StateTopic != "phidget/504221/output/2/state" {
		t.Errorf("discovery topics = %q/%q", sw.StateTopic, sw.CommandTopic)
	}
	if sw.Device.Identifiers[0] != "phidget_504221" || sw.Device.Manufacturer != "Phidgets" {
		t.Errorf("discovery device = %+v", sw.Device)
	}

	if reqs[3].Destination != "homeassistant/binary_sensor/phidget_504221_input_0/config" {
		t.Errorf("input discovery topic = %s", reqs[3].Destination)
	}
	var bs DiscoveryPayload
	if err := json.Unmarshal(reqs[3].Payload, &bs); err != nil {
		t.Fatalf("discovery payload: %v", err)
	}
	if bs.CommandTopic != "" {
		t.Errorf("binary_sensor has command_topic %q", bs.CommandTopic)
	}
}

func TestPublisher_ChannelDetached(t *testing.T) {
	q := &recordingQueue{}
	p := newTestPublisher(t, q, PublisherOptions{MQTT: true, Discovery: true, Influx: true})

	p.ChannelDetached(testChannel(channel.DirectionInput, 5, false))

	mqttReqs := q.bySink(SinkMQTT)
	if len(mqttReqs) != 1 || mqttReqs[0].Destination != "phidget/504221/input/5/status" {
		t.Fatalf("mqtt requests = %+v", mqttReqs)
	}
	var status StatusPayload
	_ = json.Unmarshal(mqttReqs[0].Payload, &status)
	if status.State != StatusDetached {
		t.Errorf("status = %q, want detached", status.State)
	}

	influx := q.bySink(SinkInflux)
	if len(influx) != 1 || influx[0].Destination != influxdb.MeasurementChannelStatus {
		t.Fatalf("influx requests = %+v", influx)
	}
}

func TestPublisher_StateChangedFansOut(t *testing.T) {
	q := &recordingQueue{}
	p := newTestPublisher(t, q, PublisherOptions{
		MQTT: true,
		Webhooks: []WebhookRoute{
			{BaseURL: "http://hub-a/api/", Token: "a"},
			{BaseURL: "http://hub-b/api", Token: "b", AuthScheme: "Token"},
		},
		Influx:    true,
		WebSocket: true,
	})

	p.StateChanged(testChannel(channel.DirectionOutput, 3, true), "req-7")
	p.StateChanged(testChannel(channel.DirectionInput, 1, false), "req-8")

	mqttReqs := q.bySink(SinkMQTT)
	if len(mqttReqs) != 2 || mqttReqs[0].Destination != "phidget/504221/output/3/state" {
		t.Fatalf("mqtt requests = %+v", mqttReqs)
	}
	var state StatePayload
	if err := json.Unmarshal(mqttReqs[0].Payload, &state); err != nil {
		t.Fatalf("state payload: %v", err)
	}
	if state != (StatePayload{State: "ON", DeviceID: "504221", Channel: 3, RequestID: "req-7"}) {
		t.Errorf("state payload = %+v", state)
	}

	hooks := q.bySink(SinkWebhook)
	wantHooks := []struct{ url, token, scheme, rid string }{
		{"http://hub-a/api/outputs/output_changed/", "a", "", "req-7"},
		{"http://hub-b/api/outputs/output_changed/", "b", "Token", "req-7"},
		{"http://hub-a/api/inputs/input/", "a", "", "req-8"},
		{"http://hub-b/api/inputs/input/", "b", "Token", "req-8"},
	}
	if len(hooks) != len(wantHooks) {
		t.Fatalf("got %d webhook requests, want %d", len(hooks), len(wantHooks))
	}
	for i, w := range wantHooks {
		h := hooks[i]
		if h.Destination != w.url || h.AuthToken != w.token || h.AuthScheme != w.scheme || h.CorrelationID != w.rid || h.Method != http.MethodPost {
			t.Errorf("webhook %d = %+v, want %+v", i, h, w)
		}
	}

	influx := q.bySink(SinkInflux)
	if len(influx) != 2 || influx[0].Destination != influxdb.MeasurementChannelState {
		t.Fatalf("influx requests = %+v", influx)
	}
	var hist HistoryPayload
	_ = json.Unmarshal(influx[0].Payload, &hist)
	if !hist.State || hist.Type != "output" || !hist.At.Equal(fixedNow) {
		t.Errorf("history payload = %+v", hist)
	}

	ws := q.bySink(SinkWebSocket)
	if len(ws) != 2 || ws[0].Destination != StreamChannelState {
		t.Fatalf("websocket requests = %+v", ws)
	}
}

func TestPublisher_DefaultsChanged(t *testing.T) {
	q := &recordingQueue{}
	p := newTestPublisher(t, q, PublisherOptions{
		MQTT:     true,
		Webhooks: []WebhookRoute{{BaseURL: "http://hub/api/"}},
	})

	p.DefaultsChanged("504221", "10*x", "req-9")

	hooks := q.bySink(SinkWebhook)
	if len(hooks) != 1 || hooks[0].Destination != "http://hub/api/outputs/defaults/" {
		t.Fatalf("webhook requests = %+v", hooks)
	}
	var body DefaultsPayload
	if err := json.Unmarshal(hooks[0].Payload, &body); err != nil {
		t.Fatalf("defaults payload: %v", err)
	}
	want := []string{"on", "off", "last", "unset"}
	if len(body.Defaults) != len(want) {
		t.Fatalf("defaults = %v, want %v", body.Defaults, want)
	}
	for i := range want {
		if body.Defaults[i] != want[i] {
			t.Errorf("defaults[%d] = %q, want %q", i, body.Defaults[i], want[i])
		}
	}

	mqttReqs := q.bySink(SinkMQTT)
	if len(mqttReqs) != 1 || mqttReqs[0].Destination != "phidget/504221/defaults/state" {
		t.Errorf("mqtt requests = %+v", mqttReqs)
	}
}

func TestPublisher_NoRoutesConfigured(t *testing.T) {
	q := &recordingQueue{}
	p := newTestPublisher(t, q, PublisherOptions{})

	p.ChannelAttached(testChannel(channel.DirectionOutput, 0, false))
	p.StateChanged(testChannel(channel.DirectionOutput, 0, true), "r")
	p.DefaultsChanged("504221", "1", "r")

	if len(q.requests) != 0 {
		t.Errorf("enqueued %d requests with no routes", len(q.requests))
	}
}

func TestPublisher_FullQueueDoesNotBlock(t *testing.T) {
	q := &recordingQueue{reject: true}
	p := newTestPublisher(t, q, PublisherOptions{MQTT: true, Discovery: true, Influx: true, WebSocket: true})

	done := make(chan struct{})
	go func() {
		p.StateChanged(testChannel(channel.DirectionOutput, 0, true), "r")
		p.ChannelAttached(testChannel(channel.DirectionOutput, 0, true))
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publisher blocked on a rejecting queue")
	}
}
