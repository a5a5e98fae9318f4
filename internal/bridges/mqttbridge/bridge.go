package mqttbridge

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-iobridge/internal/audit"
	"github.com/nerrad567/gray-logic-iobridge/internal/channel"
	"github.com/nerrad567/gray-logic-iobridge/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-iobridge/internal/policy"
)

// commandTimeout bounds a single hardware write triggered by an MQTT command.
const commandTimeout = 5 * time.Second

// Logger defines the logging interface used by the bridge.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// MQTTClient is the subset of the MQTT client the bridge needs.
// *mqtt.Client satisfies it.
type MQTTClient interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	IsConnected() bool
}

// Controller is the registry surface driven by MQTT commands.
// *channel.Registry satisfies it.
type Controller interface {
	SetOutputState(ctx context.Context, deviceID string, index int, desired bool, requestID string, force bool) (bool, error)
	SetDefaultOutputStates(ctx context.Context, deviceID, pattern, requestID string) []policy.Policy
	GetStates(requestID string) int
	Channels() []channel.Channel
	Stats() channel.Stats
}

// Announcer re-publishes a live channel's status and discovery config.
// *notify.Publisher satisfies it.
type Announcer interface {
	Announce(ch channel.Channel)
}

// Auditor records received commands. audit.Repository satisfies it.
type Auditor interface {
	Create(ctx context.Context, e *audit.Entry) error
}

// BridgeOptions holds the dependencies of a Bridge.
type BridgeOptions struct {
	// MQTT and Registry are required.
	MQTT     MQTTClient
	Registry Controller

	// Announcer is used to re-announce channels after a reconnect. Optional.
	Announcer Announcer

	BridgeID       string
	Version        string
	HealthInterval time.Duration

	// QoS for command subscriptions. Defaults to 1.
	QoS byte

	// Stats adds dispatcher counters to health reports. Optional.
	Stats func() Statistics

	// Audit records every command received over MQTT. Optional.
	Audit Auditor

	Logger Logger
}

// Bridge connects MQTT command topics to the channel registry and reports
// bridge health.
//
//	phidget/{device}/output/{index}/command  -> SetOutputState
//	phidget/{device}/defaults/command        -> SetDefaultOutputStates
//	phidget/bridge/resync                    -> GetStates
//
// State and status publication is not done here; it flows from the
// registry's listener through the notification dispatcher.
type Bridge struct {
	mqtt      MQTTClient
	registry  Controller
	announcer Announcer
	audit     Auditor
	health    *HealthReporter
	topics    mqtt.Topics
	qos       byte
	logger    Logger

	// Bridge-level context, cancelled on Stop to abort in-flight commands.
	ctx       context.Context
	ctxCancel context.CancelFunc

	stopOnce sync.Once
}

// NewBridge creates a bridge. Call Start to subscribe.
func NewBridge(opts BridgeOptions) (*Bridge, error) {
	if opts.MQTT == nil {
		return nil, fmt.Errorf("%w: MQTT client", ErrMissingDependency)
	}
	if opts.Registry == nil {
		return nil, fmt.Errorf("%w: registry", ErrMissingDependency)
	}
	qos := opts.QoS
	if qos == 0 {
		qos = 1
	}
	bridgeID := opts.BridgeID
	if bridgeID == "" {
		bridgeID = "iobridge"
	}

	ctx, cancel := context.WithCancel(context.Background())
	b := &Bridge{
		mqtt:      opts.MQTT,
		registry:  opts.Registry,
		announcer: opts.Announcer,
		audit:     opts.Audit,
		qos:       qos,
		logger:    opts.Logger,
		ctx:       ctx,
		ctxCancel: cancel,
	}

	b.health = NewHealthReporter(HealthReporterConfig{
		BridgeID:  bridgeID,
		Version:   opts.Version,
		Interval:  opts.HealthInterval,
		Publisher: opts.MQTT,
		Stats:     b.statistics(opts.Stats),
	})
	if opts.Logger != nil {
		b.health.SetLogger(opts.Logger)
	}

	return b, nil
}

// Start subscribes to command topics and starts health reporting.
func (b *Bridge) Start(ctx context.Context) error {
	if err := b.health.PublishStarting(); err != nil {
		b.logError("failed to publish starting status", err)
	}

	subs := []struct {
		topic   string
		handler mqtt.MessageHandler
	}{
		{b.topics.AllOutputCommands(), b.handleOutputCommand},
		{b.topics.AllDefaultsCommands(), b.handleDefaultsCommand},
		{b.topics.BridgeResync(), b.handleResync},
	}
	for _, s := range subs {
		if err := b.mqtt.Subscribe(s.topic, b.qos, s.handler); err != nil {
			return fmt.Errorf("subscribe to %s: %w", s.topic, err)
		}
		b.logInfo("subscribed", "topic", s.topic)
	}

	b.health.Start(ctx)
	b.logInfo("mqtt bridge started")
	return nil
}

// Stop cancels in-flight commands and stops health reporting.
// Safe to call multiple times.
func (b *Bridge) Stop() {
	b.stopOnce.Do(func() {
		b.ctxCancel()
		b.health.Stop()
		b.logInfo("mqtt bridge stopped")
	})
}

// Health returns the current health message.
func (b *Bridge) Health() HealthMessage {
	return b.health.Current()
}

// OnReconnect re-announces every live channel and republishes known states.
// Wire it to the MQTT client's connect callback.
func (b *Bridge) OnReconnect() {
	if b.announcer != nil {
		for _, ch := range b.registry.Channels() {
			b.announcer.Announce(ch)
		}
	}
	n := b.registry.GetStates("")
	b.logInfo("channels re-announced after reconnect", "states", n)
}

func (b *Bridge) handleOutputCommand(topic string, payload []byte) error {
	deviceID, channelType, index, leaf, err := mqtt.ParseChannelTopic(topic)
	if err != nil {
		return err
	}
	if channelType != channel.DirectionOutput.String() || leaf != mqtt.LeafCommand {
		return fmt.Errorf("%w: %q is not an output command topic", mqtt.ErrInvalidTopic, topic)
	}

	state, cmd, err := ParseOutputCommand(payload)
	if err != nil {
		return fmt.Errorf("%s: %w", topic, err)
	}
	cmd.RequestID = requestIDOrNew(cmd.RequestID)

	ctx, cancel := context.WithTimeout(b.ctx, commandTimeout)
	defer cancel()

	changed, err := b.registry.SetOutputState(ctx, deviceID, index, state, cmd.RequestID, cmd.Force)
	b.record(audit.Entry{
		Action:    audit.ActionSetOutput,
		DeviceID:  deviceID,
		Channel:   audit.IntPtr(index),
		RequestID: cmd.RequestID,
		Outcome:   audit.OutcomeOf(err),
		Details:   map[string]any{"state": state, "force": cmd.Force, "changed": changed},
	})
	switch {
	case errors.Is(err, channel.ErrNotFound):
		b.logWarn("command for unknown output ignored",
			"device_id", deviceID, "channel", index, "request_id", cmd.RequestID)
		return nil
	case err != nil:
		return fmt.Errorf("set output %s/%d: %w", deviceID, index, err)
	}

	b.logDebug("output command applied",
		"device_id", deviceID, "channel", index, "state", state,
		"changed", changed, "request_id", cmd.RequestID)
	return nil
}

func (b *Bridge) handleDefaultsCommand(topic string, payload []byte) error {
	deviceID, err := mqtt.ParseDefaultsTopic(topic)
	if err != nil {
		return err
	}
	cmd, err := ParseDefaultsCommand(payload)
	if err != nil {
		return fmt.Errorf("%s: %w", topic, err)
	}
	cmd.RequestID = requestIDOrNew(cmd.RequestID)

	ctx, cancel := context.WithTimeout(b.ctx, commandTimeout)
	defer cancel()

	b.registry.SetDefaultOutputStates(ctx, deviceID, cmd.Pattern, cmd.RequestID)
	b.record(audit.Entry{
		Action:    audit.ActionSetDefaults,
		DeviceID:  deviceID,
		RequestID: cmd.RequestID,
		Outcome:   audit.OutcomeOK,
		Details:   map[string]any{"pattern": cmd.Pattern},
	})
	return nil
}

func (b *Bridge) handleResync(_ string, payload []byte) error {
	cmd := ParseResyncCommand(payload)
	cmd.RequestID = requestIDOrNew(cmd.RequestID)
	n := b.registry.GetStates(cmd.RequestID)
	b.record(audit.Entry{
		Action:    audit.ActionResync,
		RequestID: cmd.RequestID,
		Outcome:   audit.OutcomeOK,
		Details:   map[string]any{"emitted": n},
	})
	b.logInfo("state resync requested", "request_id", cmd.RequestID, "states", n)
	return nil
}

// requestIDOrNew returns id, or a fresh UUID so that the audit entry and the
// resulting notifications share one correlation id.
func requestIDOrNew(id string) string {
	if id != "" {
		return id
	}
	return uuid.NewString()
}

func (b *Bridge) record(e audit.Entry) {
	if b.audit == nil {
		return
	}
	e.Source = audit.SourceMQTT
	if err := b.audit.Create(b.ctx, &e); err != nil {
		b.logWarn("recording command audit failed",
			"action", e.Action, "request_id", e.RequestID, "error", err)
	}
}

func (b *Bridge) statistics(extra func() Statistics) func() Statistics {
	return func() Statistics {
		var s Statistics
		if extra != nil {
			s = extra()
		}
		s.Channels = b.registry.Stats()
		return s
	}
}

func (b *Bridge) logDebug(msg string, args ...any) {
	if b.logger != nil {
		b.logger.Debug(msg, args...)
	}
}

func (b *Bridge) logInfo(msg string, args ...any) {
	if b.logger != nil {
		b.logger.Info(msg, args...)
	}
}

func (b *Bridge) logWarn(msg string, args ...any) {
	if b.logger != nil {
		b.logger.Warn(msg, args...)
	}
}

func (b *Bridge) logError(msg string, err error) {
	if b.logger != nil {
		b.logger.Error(msg, "error", err)
	}
}
