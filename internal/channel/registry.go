package channel

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-iobridge/internal/policy"
)

// Registry defaults.
const (
	DefaultAttachTimeout = 10 * time.Second
	DefaultEventBuffer   = 256
)

// Logger defines the logging interface used by the Registry.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Listener receives the registry's side effects. Implementations must not
// block: they are called with the registry lock held, in the order the
// transitions were applied.
type Listener interface {
	ChannelAttached(ch Channel)
	ChannelDetached(ch Channel)
	StateChanged(ch Channel, correlationID string)
	DefaultsChanged(deviceID, pattern, correlationID string)
}

type noopListener struct{}

func (noopListener) ChannelAttached(Channel)                {}
func (noopListener) ChannelDetached(Channel)                {}
func (noopListener) StateChanged(Channel, string)           {}
func (noopListener) DefaultsChanged(string, string, string) {}

// Options configures a Registry.
type Options struct {
	// Store is the output policy store. Required.
	Store *policy.Store

	// Listener receives attach, detach and state notifications. Optional.
	Listener Listener

	// Logger for registry events. Optional.
	Logger Logger

	// Metrics collectors. Optional.
	Metrics *Metrics

	// AttachTimeout bounds Source.Open on attach. Defaults to 10s.
	AttachTimeout time.Duration

	// EventBuffer is the capacity of the ingress event channel. Defaults to 256.
	EventBuffer int
}

// Registry is the single authority for channel liveness and output state.
//
// Hardware events arrive on one ingress channel and are applied by Run on a
// single goroutine. Inbound commands call SetOutputState and friends
// directly. Both paths take the same mutex, so every mutation of the live
// map and of the policy store is serialised.
type Registry struct {
	store         *policy.Store
	listener      Listener
	logger        Logger
	metrics       *Metrics
	attachTimeout time.Duration

	sources     map[string]Source
	sourceOrder []string
	events      chan Event

	mu   sync.Mutex
	live map[Identity]*Channel
}

// NewRegistry creates a registry. Sources are added with AddSource before Run.
func NewRegistry(opts Options) (*Registry, error) {
	if opts.Store == nil {
		return nil, errors.New("channel: policy store is required")
	}
	if opts.Listener == nil {
		opts.Listener = noopListener{}
	}
	if opts.Logger == nil {
		opts.Logger = noopLogger{}
	}
	if opts.AttachTimeout <= 0 {
		opts.AttachTimeout = DefaultAttachTimeout
	}
	if opts.EventBuffer <= 0 {
		opts.EventBuffer = DefaultEventBuffer
	}

	return &Registry{
		store:         opts.Store,
		listener:      opts.Listener,
		logger:        opts.Logger,
		metrics:       opts.Metrics,
		attachTimeout: opts.AttachTimeout,
		sources:       make(map[string]Source),
		events:        make(chan Event, opts.EventBuffer),
		live:          make(map[Identity]*Channel),
	}, nil
}

// SetListener replaces the listener. Call before Run.
func (r *Registry) SetListener(l Listener) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if l == nil {
		l = noopListener{}
	}
	r.listener = l
}

// AddSource registers a hardware backend. Call before Run.
func (r *Registry) AddSource(src Source) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := src.Name()
	if _, exists := r.sources[name]; exists {
		return fmt.Errorf("channel: source %q already registered", name)
	}
	r.sources[name] = src
	r.sourceOrder = append(r.sourceOrder, name)
	return nil
}

// Events returns the ingress channel sources post to.
func (r *Registry) Events() chan<- Event {
	return r.events
}

// Run starts every source and applies their events until ctx is cancelled.
// On return no further events are accepted and every started source has
// been closed.
func (r *Registry) Run(ctx context.Context) error {
	r.mu.Lock()
	sources := make([]Source, 0, len(r.sourceOrder))
	for _, name := range r.sourceOrder {
		sources = append(sources, r.sources[name])
	}
	r.mu.Unlock()

	var started []Source
	for _, src := range sources {
		if err := src.Start(ctx, r.events); err != nil {
			r.logger.Error("channel source failed to start", "source", src.Name(), "error", err)
			continue
		}
		r.logger.Info("channel source started", "source", src.Name())
		started = append(started, src)
	}
	defer r.closeSources(started)

	if len(started) == 0 {
		return ErrNoSources
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-r.events:
			r.HandleEvent(ctx, ev)
		}
	}
}

func (r *Registry) closeSources(sources []Source) {
	for _, src := range sources {
		if err := src.Close(); err != nil {
			r.logger.Warn("error closing channel source", "source", src.Name(), "error", err)
		} else {
			r.logger.Info("channel source closed", "source", src.Name())
		}
	}
}

// HandleEvent applies one ingress event. Errors are logged, never returned:
// a bad event must not stop the event loop.
func (r *Registry) HandleEvent(ctx context.Context, ev Event) {
	r.metrics.event(ev.Kind)

	switch ev.Kind {
	case EventAttached:
		if err := r.OnAttach(ctx, ev.Source, ev.DeviceID, ev.Index, ev.Capability); err != nil {
			r.logger.Error("channel attach failed",
				"source", ev.Source, "device_id", ev.DeviceID, "channel", ev.Index, "error", err)
		}
	case EventDetached:
		r.OnDetach(ev.Source, ev.DeviceID, ev.Index)
	case EventInputChanged:
		if err := r.OnInputChanged(ev.Source, ev.DeviceID, ev.Index, ev.State); err != nil {
			r.logger.Debug("input change ignored",
				"source", ev.Source, "device_id", ev.DeviceID, "channel", ev.Index, "error", err)
		}
	default:
		r.logger.Warn("unknown channel event", "kind", ev.Kind.String(), "source", ev.Source)
	}
}

// OnAttach opens a newly reported channel and adds it to the live map,
// replacing any stale entry with the same identity.
//
// Outputs are then driven to their initial state from the policy store with
// a forced notification. When the store knows nothing the hardware is left
// untouched and its current value, if readable, is reported once.
func (r *Registry) OnAttach(ctx context.Context, source, deviceID string, index int, c Capability) error {
	dir, err := DirectionFor(c)
	if err != nil {
		r.metrics.attachFailed(source, "capability")
		return err
	}

	r.mu.Lock()
	src, err := r.source(source)
	r.mu.Unlock()
	if err != nil {
		r.metrics.attachFailed(source, "source")
		return err
	}

	openCtx, cancel := context.WithTimeout(ctx, r.attachTimeout)
	err = src.Open(openCtx, deviceID, index, c)
	timedOut := errors.Is(openCtx.Err(), context.DeadlineExceeded)
	cancel()
	if err != nil {
		if timedOut || errors.Is(err, context.DeadlineExceeded) {
			r.metrics.attachFailed(source, "timeout")
			return fmt.Errorf("%w after %s: %s/%d: %w", ErrTimeout, r.attachTimeout, deviceID, index, err)
		}
		r.metrics.attachFailed(source, "adapter")
		return fmt.Errorf("%w: opening %s/%d: %w", ErrAdapter, deviceID, index, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	id := Identity{Source: source, DeviceID: deviceID, Index: index, Direction: dir}
	ch := &Channel{
		Identity:   id,
		Capability: c,
		Type:       dir.String(),
		AttachedAt: time.Now().UTC(),
	}
	r.live[id] = ch
	r.updateLiveMetric(dir)

	r.logger.Info("channel attached", "channel_id", id.String())
	r.listener.ChannelAttached(*ch)

	correlationID := newCorrelationID("")

	if dir == DirectionOutput {
		if initial, ok := r.store.GetInitialState(deviceID, index); ok {
			if _, err := r.setOutputLocked(ctx, ch, initial, correlationID, true); err != nil {
				return fmt.Errorf("applying initial state: %w", err)
			}
			return nil
		}
	}

	if state, err := src.State(deviceID, index); err == nil {
		ch.State, ch.Known = state, true
		r.notifyLocked(ch, correlationID)
	} else if !errors.Is(err, ErrStateUnknown) {
		r.metrics.adapterError(source, "state")
		r.logger.Warn("reading channel state failed", "channel_id", id.String(), "error", err)
	}
	return nil
}

// OnDetach removes every live channel at (source, deviceID, index). The
// persisted policy and last observed state are kept for the next attach.
func (r *Registry) OnDetach(source, deviceID string, index int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, dir := range []Direction{DirectionInput, DirectionOutput} {
		id := Identity{Source: source, DeviceID: deviceID, Index: index, Direction: dir}
		ch, ok := r.live[id]
		if !ok {
			continue
		}
		delete(r.live, id)
		r.updateLiveMetric(dir)
		r.logger.Info("channel detached", "channel_id", id.String())
		r.listener.ChannelDetached(*ch)
	}
}

// OnInputChanged records an input edge and always notifies. Bounce
// filtering is the source's business.
func (r *Registry) OnInputChanged(source, deviceID string, index int, state bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := Identity{Source: source, DeviceID: deviceID, Index: index, Direction: DirectionInput}
	ch, ok := r.live[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	ch.State, ch.Known = state, true
	r.notifyLocked(ch, newCorrelationID(""))
	return nil
}

// SetOutputState drives the attached output (deviceID, index) to desired.
//
// It is a no-op returning false when the channel already holds desired and
// force is false. Otherwise the source is commanded; on success the state is
// recorded, persisted and notified, and changed reports whether the value
// differs from what was known before. requestID becomes the notification's
// correlation id; an empty one is generated.
//
// Errors: ErrNotFound when no such output is attached, ErrAdapter when the
// source rejects the command (nothing is applied).
func (r *Registry) SetOutputState(ctx context.Context, deviceID string, index int, desired bool, requestID string, force bool) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ch := r.findOutputLocked(deviceID, index)
	if ch == nil {
		return false, fmt.Errorf("%w: output %s/%d", ErrNotFound, deviceID, index)
	}
	return r.setOutputLocked(ctx, ch, desired, newCorrelationID(requestID), force)
}

// SetDefaultOutputStates replaces the default policy of deviceID with pattern
// and immediately applies its '1' and '0' positions to attached outputs.
// It never fails as a whole: malformed symbols are Unset, detached
// positions and hardware errors are logged and skipped.
func (r *Registry) SetDefaultOutputStates(ctx context.Context, deviceID, pattern, requestID string) []policy.Policy {
	r.mu.Lock()
	defer r.mu.Unlock()

	correlationID := newCorrelationID(requestID)

	policies, err := r.store.SetDefaults(ctx, deviceID, pattern)
	if err != nil {
		r.logger.Error("persisting output defaults failed", "device_id", deviceID, "error", err)
	}

	for index, p := range policies {
		state, ok := p.Determinate()
		if !ok {
			continue
		}
		ch := r.findOutputLocked(deviceID, index)
		if ch == nil {
			continue
		}
		if _, err := r.setOutputLocked(ctx, ch, state, correlationID, false); err != nil {
			r.logger.Error("applying default output state failed",
				"device_id", deviceID, "channel", index, "error", err)
		}
	}

	r.logger.Info("output defaults set", "device_id", deviceID, "pattern", pattern, "request_id", correlationID)
	r.listener.DefaultsChanged(deviceID, pattern, correlationID)
	return policies
}

// GetStates re-emits the state of every live channel whose state is known,
// in identity order, and returns how many were emitted.
func (r *Registry) GetStates(requestID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	correlationID := newCorrelationID(requestID)
	sent := 0
	for _, ch := range r.sortedLocked() {
		if !ch.Known {
			continue
		}
		r.notifyLocked(ch, correlationID)
		sent++
	}
	return sent
}

// Channels returns a snapshot of the live channels in identity order.
func (r *Registry) Channels() []Channel {
	r.mu.Lock()
	defer r.mu.Unlock()

	sorted := r.sortedLocked()
	out := make([]Channel, len(sorted))
	for i, ch := range sorted {
		out[i] = *ch
	}
	return out
}

// Stats summarises the live map for health reporting.
type Stats struct {
	Sources      int `json:"sources"`
	Inputs       int `json:"inputs"`
	Outputs      int `json:"outputs"`
	Unknown      int `json:"unknown_state"`
	EventBacklog int `json:"event_backlog"`
}

// Stats returns counts for health reporting.
func (r *Registry) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := Stats{Sources: len(r.sources), EventBacklog: len(r.events)}
	for id, ch := range r.live {
		if id.Direction == DirectionOutput {
			s.Outputs++
		} else {
			s.Inputs++
		}
		if !ch.Known {
			s.Unknown++
		}
	}
	return s
}

// setOutputLocked holds r.mu across the hardware write. The write is bounded
// by ctx and by the backend's own limits (relay16 caps its reopen backoff).
func (r *Registry) setOutputLocked(ctx context.Context, ch *Channel, desired bool, correlationID string, force bool) (bool, error) {
	if ch.Known && ch.State == desired && !force {
		return false, nil
	}

	src, err := r.source(ch.Source)
	if err != nil {
		return false, err
	}
	if err := src.SetState(ctx, ch.DeviceID, ch.Index, desired); err != nil {
		r.metrics.adapterError(ch.Source, "set_state")
		return false, fmt.Errorf("%w: setting %s: %w", ErrAdapter, ch.Identity, err)
	}

	changed := !ch.Known || ch.State != desired
	ch.State, ch.Known = desired, true

	if err := r.store.RecordOutputState(ctx, ch.DeviceID, ch.Index, desired); err != nil {
		r.logger.Error("persisting output state failed",
			"channel_id", ch.Identity.String(), "state", desired, "error", err)
	}

	r.notifyLocked(ch, correlationID)
	r.logger.Debug("output state set",
		"channel_id", ch.Identity.String(), "state", desired, "changed", changed, "forced", force, "request_id", correlationID)
	return changed, nil
}

func (r *Registry) notifyLocked(ch *Channel, correlationID string) {
	r.metrics.notified(ch.Direction)
	r.listener.StateChanged(*ch, correlationID)
}

// findOutputLocked looks up an attached output by device and index across
// all sources.
func (r *Registry) findOutputLocked(deviceID string, index int) *Channel {
	for id, ch := range r.live {
		if id.Direction == DirectionOutput && id.DeviceID == deviceID && id.Index == index {
			return ch
		}
	}
	return nil
}

func (r *Registry) sortedLocked() []*Channel {
	out := make([]*Channel, 0, len(r.live))
	for _, ch := range r.live {
		out = append(out, ch)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].Identity, out[j].Identity
		if a.Source != b.Source {
			return a.Source < b.Source
		}
		if a.DeviceID != b.DeviceID {
			return a.DeviceID < b.DeviceID
		}
		if a.Direction != b.Direction {
			return a.Direction < b.Direction
		}
		return a.Index < b.Index
	})
	return out
}

func (r *Registry) updateLiveMetric(dir Direction) {
	if r.metrics == nil {
		return
	}
	n := 0
	for id := range r.live {
		if id.Direction == dir {
			n++
		}
	}
	r.metrics.setLive(dir, n)
}

func (r *Registry) source(name string) (Source, error) {
	src, ok := r.sources[name]
	if !ok {
		return nil, fmt.Errorf("%w: source %q", ErrNotFound, name)
	}
	return src, nil
}

// newCorrelationID returns requestID, or a fresh UUID when it is empty.
func newCorrelationID(requestID string) string {
	if requestID != "" {
		return requestID
	}
	return uuid.NewString()
}
