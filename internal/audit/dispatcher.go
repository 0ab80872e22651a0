package audit

import (
	"context"
	"sync"
	"sync/atomic"
)

type Config struct {
	Enabled    bool
	BufferSize int
	// DropIfFull makes Emit discard instead of waiting for queue space.
	DropIfFull bool
}

// Dispatcher numbers events and hands them to its sinks from one goroutine,
// so a slow sink delays delivery but never the authentication operation
// (with DropIfFull) and sinks never run concurrently.
type Dispatcher struct {
	sink       Sink
	dropIfFull bool

	queue   chan Event
	drained chan struct{}

	// mu is held shared by Emit and exclusively by Close, so the queue is
	// never sent on after it is closed.
	mu     sync.RWMutex
	closed bool

	seq     atomic.Uint64
	dropped atomic.Uint64
}

// NewDispatcher returns nil when cfg is disabled. A nil Dispatcher accepts
// every call and does nothing. Nil sinks are skipped.
func NewDispatcher(cfg Config, sinks ...Sink) *Dispatcher {
	if !cfg.Enabled {
		return nil
	}

	var live Fanout
	for _, s := range sinks {
		if s != nil {
			live = append(live, s)
		}
	}

	d := &Dispatcher{
		dropIfFull: cfg.DropIfFull,
		queue:      make(chan Event, max(cfg.BufferSize, 1)),
		drained:    make(chan struct{}),
	}
	switch len(live) {
	case 0:
		d.sink = NoOpSink{}
	case 1:
		d.sink = live[0]
	default:
		d.sink = live
	}

	go d.deliver()
	return d
}

func (d *Dispatcher) deliver() {
	defer close(d.drained)
	for event := range d.queue {
		d.sink.Emit(context.Background(), event)
	}
}

// Emit queues event. Without DropIfFull it waits for space until ctx ends;
// either way an event that is not queued counts as dropped.
func (d *Dispatcher) Emit(ctx context.Context, event Event) {
	if d == nil {
		return
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return
	}

	event.Seq = d.seq.Add(1)

	if d.dropIfFull {
		select {
		case d.queue <- event:
		default:
			d.dropped.Add(1)
		}
		return
	}

	select {
	case d.queue <- event:
	case <-ctx.Done():
		d.dropped.Add(1)
	}
}

// Close stops accepting events and returns once every queued event has
// reached the sinks. Close is idempotent.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()
	<-d.drained
}

func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}
