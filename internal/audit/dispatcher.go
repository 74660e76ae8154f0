package audit

import (
	"context"
	"sync"
	"sync/atomic"
)

// Config controls dispatcher buffering behavior.
type Config struct {
	Enabled    bool
	BufferSize int
	// DropIfFull makes Emit non-blocking; events that do not fit are counted
	// in Dropped instead of delivered.
	DropIfFull bool
}

// Dispatcher hands events to a Sink on a single worker goroutine, so sinks
// see events in Emit order and never run concurrently. A nil *Dispatcher
// discards everything.
type Dispatcher struct {
	sink     Sink
	queue    chan Event
	blocking bool

	// mu is held shared by Emit and exclusively by Close while it closes
	// queue, so no send races the close.
	mu      sync.RWMutex
	stopped bool

	// stopping releases Emit calls blocked on a full queue during Close.
	stopping chan struct{}
	finished chan struct{}
	stopOnce sync.Once

	dropped   atomic.Uint64
	delivered atomic.Uint64
}

// NewDispatcher starts the worker. It returns nil when cfg.Enabled is false.
func NewDispatcher(cfg Config, sink Sink) *Dispatcher {
	if !cfg.Enabled {
		return nil
	}
	size := cfg.BufferSize
	if size < 1 {
		size = 1
	}
	if sink == nil {
		sink = NoOpSink{}
	}

	d := &Dispatcher{
		sink:     sink,
		queue:    make(chan Event, size),
		blocking: !cfg.DropIfFull,
		stopping: make(chan struct{}),
		finished: make(chan struct{}),
	}
	go d.work()
	return d
}

// work delivers until queue is closed and empty.
func (d *Dispatcher) work() {
	defer close(d.finished)
	for event := range d.queue {
		d.sink.Emit(context.Background(), event)
		d.delivered.Add(1)
	}
}

// Emit queues event. With DropIfFull it never blocks. Otherwise it waits for
// room and counts the event as dropped if ctx ends first. Events emitted
// after Close are ignored.
func (d *Dispatcher) Emit(ctx context.Context, event Event) {
	if d == nil {
		return
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.stopped {
		return
	}

	if !d.blocking {
		select {
		case d.queue <- event:
		default:
			d.dropped.Add(1)
		}
		return
	}

	var cancel <-chan struct{}
	if ctx != nil {
		cancel = ctx.Done()
	}
	select {
	case d.queue <- event:
	case <-cancel:
		d.dropped.Add(1)
	case <-d.stopping:
	}
}

// Close stops intake, lets the worker flush the queue and waits for it.
// Calling Close more than once is safe.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.stopOnce.Do(func() {
		close(d.stopping)
		d.mu.Lock()
		d.stopped = true
		close(d.queue)
		d.mu.Unlock()
	})
	<-d.finished
}

// Dropped reports events lost to a full buffer or a cancelled context.
func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}

// Delivered reports events the sink has returned from.
func (d *Dispatcher) Delivered() uint64 {
	if d == nil {
		return 0
	}
	return d.delivered.Load()
}
