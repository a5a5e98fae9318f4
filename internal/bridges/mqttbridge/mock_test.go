package mqttbridge

import (
	"context"
	"fmt"
	"sync"

	"github.com/nerrad567/gray-logic-iobridge/internal/audit"
	"github.com/nerrad567/gray-logic-iobridge/internal/channel"
	"github.com/nerrad567/gray-logic-iobridge/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-iobridge/internal/policy"
)

// mockMQTTClient implements MQTTClient for testing.
type mockMQTTClient struct {
	mu        sync.Mutex
	connected bool
	published []mockPublish
	handlers  map[string]mqtt.MessageHandler
	qos       map[string]byte
}

type mockPublish struct {
	Topic    string
	Payload  []byte
	QoS      byte
	Retained bool
}

func newMockMQTTClient() *mockMQTTClient {
	return &mockMQTTClient{
		connected: true,
		handlers:  make(map[string]mqtt.MessageHandler),
		qos:       make(map[string]byte),
	}
}

func (m *mockMQTTClient) Publish(topic string, payload []byte, qos byte, retained bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published = append(m.published, mockPublish{Topic: topic, Payload: payload, QoS: qos, Retained: retained})
	return nil
}

func (m *mockMQTTClient) Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[topic] = handler
	m.qos[topic] = qos
	return nil
}

func (m *mockMQTTClient) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

func (m *mockMQTTClient) setConnected(v bool) {
	m.mu.Lock()
	m.connected = v
	m.mu.Unlock()
}

func (m *mockMQTTClient) getPublished() []mockPublish {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]mockPublish, len(m.published))
	copy(out, m.published)
	return out
}

// deliver invokes the handler registered for subscription with a concrete topic.
func (m *mockMQTTClient) deliver(subscription, topic string, payload []byte) error {
	m.mu.Lock()
	h, ok := m.handlers[subscription]
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("no handler for %s", subscription)
	}
	return h(topic, payload)
}

type setCall struct {
	DeviceID  string
	Index     int
	State     bool
	RequestID string
	Force     bool
}

type defaultsCall struct {
	DeviceID  string
	Pattern   string
	RequestID string
}

// mockController implements Controller for testing.
type mockController struct {
	mu       sync.Mutex
	sets     []setCall
	defaults []defaultsCall
	resyncs  []string
	channels []channel.Channel
	stats    channel.Stats
	setErr   error
	ctxAlive bool
}

func (m *mockController) SetOutputState(ctx context.Context, deviceID string, index int, desired bool, requestID string, force bool) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ctxAlive = ctx.Err() == nil
	m.sets = append(m.sets, setCall{deviceID, index, desired, requestID, force})
	if m.setErr != nil {
		return false, m.setErr
	}
	return true, nil
}

func (m *mockController) SetDefaultOutputStates(_ context.Context, deviceID, pattern, requestID string) []policy.Policy {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.defaults = append(m.defaults, defaultsCall{deviceID, pattern, requestID})
	return policy.ParsePattern(pattern)
}

func (m *mockController) GetStates(requestID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resyncs = append(m.resyncs, requestID)
	return len(m.channels)
}

func (m *mockController) Channels() []channel.Channel {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]channel.Channel(nil), m.channels...)
}

func (m *mockController) Stats() channel.Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats
}

type recordingAnnouncer struct {
	mu  sync.Mutex
	got []channel.Channel
}

func (a *recordingAnnouncer) Announce(ch channel.Channel) {
	a.mu.Lock()
	a.got = append(a.got, ch)
	a.mu.Unlock()
}

// mockAuditor implements Auditor for testing.
type mockAuditor struct {
	mu      sync.Mutex
	entries []audit.Entry
	err     error
}

func (m *mockAuditor) Create(_ context.Context, e *audit.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.entries = append(m.entries, *e)
	return nil
}
