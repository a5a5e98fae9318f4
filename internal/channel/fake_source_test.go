package channel

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// fakeSource is an in-memory Source that records SetState calls.
type fakeSource struct {
	name string

	mu       sync.Mutex
	states   map[string]bool
	setCalls []setCall
	setErr   error
	openErr  error
	openWait bool // block in Open until ctx is done
	readable bool
	started  bool
	closed   bool
	events   chan<- Event
}

type setCall struct {
	DeviceID string
	Index    int
	State    bool
}

func newFakeSource(name string) *fakeSource {
	return &fakeSource{name: name, states: make(map[string]bool)}
}

func key(deviceID string, index int) string { return fmt.Sprintf("%s/%d", deviceID, index) }

func (f *fakeSource) Name() string { return f.name }

func (f *fakeSource) Start(_ context.Context, events chan<- Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = true
	f.events = events
	return nil
}

func (f *fakeSource) Open(ctx context.Context, _ string, _ int, _ Capability) error {
	f.mu.Lock()
	wait, err := f.openWait, f.openErr
	f.mu.Unlock()
	if wait {
		<-ctx.Done()
		return ctx.Err()
	}
	return err
}

func (f *fakeSource) SetState(_ context.Context, deviceID string, index int, state bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ErrNotAttached
	}
	if f.setErr != nil {
		return f.setErr
	}
	f.setCalls = append(f.setCalls, setCall{deviceID, index, state})
	f.states[key(deviceID, index)] = state
	return nil
}

func (f *fakeSource) State(deviceID string, index int) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.readable {
		return false, ErrStateUnknown
	}
	v, ok := f.states[key(deviceID, index)]
	if !ok {
		return false, errors.New("no such channel")
	}
	return v, nil
}

func (f *fakeSource) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeSource) calls() []setCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]setCall(nil), f.setCalls...)
}

// recordingListener captures registry side effects.
type recordingListener struct {
	mu       sync.Mutex
	attached []Channel
	detached []Channel
	states   []stateNote
	defaults []string
}

type stateNote struct {
	Channel       Channel
	CorrelationID string
}

func (l *recordingListener) ChannelAttached(ch Channel) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.attached = append(l.attached, ch)
}

func (l *recordingListener) ChannelDetached(ch Channel) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.detached = append(l.detached, ch)
}

func (l *recordingListener) StateChanged(ch Channel, correlationID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.states = append(l.states, stateNote{ch, correlationID})
}

func (l *recordingListener) DefaultsChanged(deviceID, pattern, _ string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.defaults = append(l.defaults, deviceID+":"+pattern)
}

func (l *recordingListener) stateCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.states)
}

func (l *recordingListener) reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.attached, l.detached, l.states, l.defaults = nil, nil, nil, nil
}
