package notify

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// Dispatcher defaults.
const (
	DefaultQueueSize       = 100
	DefaultDeliveryTimeout = 10 * time.Second
	DefaultDrainTimeout    = 2 * time.Second
)

// Logger defines the logging interface used by the Dispatcher.
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

// DispatcherOptions configures a Dispatcher.
type DispatcherOptions struct {
	// QueueSize is the number of pending requests held before Enqueue
	// starts failing. Defaults to 100.
	QueueSize int

	// DeliveryTimeout bounds a single Sink.Deliver call. Defaults to 10s.
	DeliveryTimeout time.Duration

	// DrainTimeout bounds how long Stop keeps delivering queued requests.
	// Defaults to 2s. Whatever is still queued afterwards is discarded.
	DrainTimeout time.Duration

	Logger  Logger
	Metrics *Metrics
}

// Dispatcher is a bounded FIFO queue drained by a single worker.
//
// Enqueue never blocks: a full queue rejects the request immediately.
// The worker delivers one request at a time, in enqueue order, making
// exactly one attempt against the request's sink. Failures are logged with
// the correlation id and the request is dropped.
type Dispatcher struct {
	queue   chan Request
	sinks   map[string]Sink
	sinksMu sync.RWMutex

	deliveryTimeout time.Duration
	drainTimeout    time.Duration

	logger  Logger
	metrics *Metrics

	// mu guards started and stopped so that no Enqueue races Stop.
	mu      sync.RWMutex
	started bool
	stopped bool

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	enqueued  atomic.Uint64
	dropped   atomic.Uint64
	delivered atomic.Uint64
	failed    atomic.Uint64
	discarded atomic.Uint64
}

// NewDispatcher creates a stopped Dispatcher. Call Start to run the worker.
func NewDispatcher(opts DispatcherOptions) *Dispatcher {
	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultQueueSize
	}
	if opts.DeliveryTimeout <= 0 {
		opts.DeliveryTimeout = DefaultDeliveryTimeout
	}
	if opts.DrainTimeout <= 0 {
		opts.DrainTimeout = DefaultDrainTimeout
	}
	var logger Logger = noopLogger{}
	if opts.Logger != nil {
		logger = opts.Logger
	}

	return &Dispatcher{
		queue:           make(chan Request, opts.QueueSize),
		sinks:           make(map[string]Sink),
		deliveryTimeout: opts.DeliveryTimeout,
		drainTimeout:    opts.DrainTimeout,
		logger:          logger,
		metrics:         opts.Metrics,
		stopCh:          make(chan struct{}),
	}
}

// AddSink registers a sink under its Name, replacing any previous one.
func (d *Dispatcher) AddSink(s Sink) {
	d.sinksMu.Lock()
	d.sinks[s.Name()] = s
	d.sinksMu.Unlock()
}

// HasSink reports whether a sink with the given name is registered.
func (d *Dispatcher) HasSink(name string) bool {
	d.sinksMu.RLock()
	defer d.sinksMu.RUnlock()
	_, ok := d.sinks[name]
	return ok
}

// Enqueue hands a request to the worker without blocking. It returns false
// when the queue is full or the dispatcher has been stopped.
func (d *Dispatcher) Enqueue(req Request) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.stopped {
		d.reject(req, ErrStopped, "stopped")
		return false
	}

	select {
	case d.queue <- req:
		d.enqueued.Add(1)
		d.metrics.enqueue(req.Sink, len(d.queue))
		return true
	default:
		d.reject(req, ErrQueueFull, "queue_full")
		return false
	}
}

func (d *Dispatcher) reject(req Request, err error, reason string) {
	d.dropped.Add(1)
	d.metrics.drop(reason)
	d.logger.Warn("notification dropped",
		"sink", req.Sink,
		"destination", req.Destination,
		"request_id", req.CorrelationID,
		"error", err,
	)
}

// Start launches the worker. The worker exits when ctx is cancelled or Stop
// is called, draining the queue for at most the drain timeout either way.
func (d *Dispatcher) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.started {
		return ErrAlreadyStarted
	}
	if d.stopped {
		return ErrStopped
	}
	d.started = true

	d.wg.Add(1)
	go d.run(ctx)
	return nil
}

// Stop rejects further requests, waits for the worker to drain and exits.
// Safe to call multiple times and before Start.
func (d *Dispatcher) Stop() {
	d.stopOnce.Do(func() {
		d.mu.Lock()
		d.stopped = true
		d.mu.Unlock()
		close(d.stopCh)
	})
	d.wg.Wait()
}

// Len returns the number of queued requests.
func (d *Dispatcher) Len() int {
	return len(d.queue)
}

// Cap returns the queue capacity.
func (d *Dispatcher) Cap() int {
	return cap(d.queue)
}

// DispatcherStats is a point-in-time view of the dispatcher counters.
type DispatcherStats struct {
	Queued    int    `json:"queued"`
	Capacity  int    `json:"capacity"`
	Enqueued  uint64 `json:"enqueued"`
	Dropped   uint64 `json:"dropped"`
	Delivered uint64 `json:"delivered"`
	Failed    uint64 `json:"failed"`
	Discarded uint64 `json:"discarded"`
}

// Stats returns the current counters.
func (d *Dispatcher) Stats() DispatcherStats {
	return DispatcherStats{
		Queued:    d.Len(),
		Capacity:  d.Cap(),
		Enqueued:  d.enqueued.Load(),
		Dropped:   d.dropped.Load(),
		Delivered: d.delivered.Load(),
		Failed:    d.failed.Load(),
		Discarded: d.discarded.Load(),
	}
}

func (d *Dispatcher) run(ctx context.Context) {
	defer d.wg.Done()

	for {
		// Shutdown takes priority over queued work.
		select {
		case <-d.stopCh:
			d.drain()
			return
		case <-ctx.Done():
			d.shutdown()
			return
		default:
		}

		select {
		case req := <-d.queue:
			d.deliver(context.Background(), req)
		case <-d.stopCh:
			d.drain()
			return
		case <-ctx.Done():
			d.shutdown()
			return
		}
	}
}

func (d *Dispatcher) shutdown() {
	d.mu.Lock()
	d.stopped = true
	d.mu.Unlock()
	d.drain()
}

// drain delivers what is already queued until the drain deadline, then
// discards the remainder.
func (d *Dispatcher) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), d.drainTimeout)
	defer cancel()

	for {
		if ctx.Err() != nil {
			d.discardRemaining()
			return
		}
		select {
		case req := <-d.queue:
			d.deliver(ctx, req)
		default:
			return
		}
	}
}

func (d *Dispatcher) discardRemaining() {
	n := 0
	for {
		select {
		case <-d.queue:
			n++
		default:
			if n > 0 {
				d.discarded.Add(uint64(n))
				d.metrics.discard(n)
				d.logger.Warn("discarding undelivered notifications on shutdown", "count", n)
			}
			d.metrics.depth(0)
			return
		}
	}
}

func (d *Dispatcher) deliver(parent context.Context, req Request) {
	d.metrics.depth(len(d.queue))

	d.sinksMu.RLock()
	sink, ok := d.sinks[req.Sink]
	d.sinksMu.RUnlock()
	if !ok {
		d.failed.Add(1)
		d.metrics.result(req.Sink, false, 0)
		d.logger.Error("notification delivery failed",
			"sink", req.Sink,
			"request_id", req.CorrelationID,
			"error", ErrUnknownSink,
		)
		return
	}

	ctx, cancel := context.WithTimeout(parent, d.deliveryTimeout)
	defer cancel()

	start := time.Now()
	err := safeDeliver(ctx, sink, req)
	elapsed := time.Since(start)

	if err != nil {
		d.failed.Add(1)
		d.metrics.result(req.Sink, false, elapsed)
		d.logger.Error("notification delivery failed",
			"sink", req.Sink,
			"destination", req.Destination,
			"request_id", req.CorrelationID,
			"error", err,
		)
		return
	}

	d.delivered.Add(1)
	d.metrics.result(req.Sink, true, elapsed)
	d.logger.Debug("notification delivered",
		"sink", req.Sink,
		"destination", req.Destination,
		"request_id", req.CorrelationID,
		"duration", elapsed,
	)
}

// safeDeliver turns a sink panic into an error so the worker survives.
func safeDeliver(ctx context.Context, sink Sink, req Request) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: sink %s panicked: %v", ErrDelivery, sink.Name(), r)
		}
	}()
	return sink.Deliver(ctx, req)
}
