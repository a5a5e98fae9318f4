package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// recordingSink records every request it is handed. Block, when set, is
// waited on before each delivery returns.
type recordingSink struct {
	name string

	mu       sync.Mutex
	requests []Request

	started chan struct{} // receives once per delivery, if non-nil
	block   chan struct{}
	err     error
	panics  bool
}

func newRecordingSink(name string) *recordingSink {
	return &recordingSink{name: name}
}

func (s *recordingSink) Name() string { return s.name }

func (s *recordingSink) Deliver(ctx context.Context, req Request) error {
	s.mu.Lock()
	s.requests = append(s.requests, req)
	s.mu.Unlock()

	if s.started != nil {
		select {
		case s.started <- struct{}{}:
		default:
		}
	}
	if s.panics {
		panic("sink exploded")
	}
	if s.block != nil {
		select {
		case <-s.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return s.err
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

func (s *recordingSink) destinations() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.requests))
	for i, r := range s.requests {
		out[i] = r.Destination
	}
	return out
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

var errSinkDown = errors.New("sink down")

// recordingQueue is an Enqueuer that keeps every request.
type recordingQueue struct {
	mu       sync.Mutex
	requests []Request
	reject   bool
}

func (q *recordingQueue) Enqueue(req Request) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.reject {
		return false
	}
	q.requests = append(q.requests, req)
	return true
}

func (q *recordingQueue) bySink(sink string) []Request {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []Request
	for _, r := range q.requests {
		if r.Sink == sink {
			out = append(out, r)
		}
	}
	return out
}
