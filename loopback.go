package cyphal

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrClosed indicates that loopback bus or its endpoint has been closed.
var ErrClosed = errors.New("cyphal: bus closed")

// LoopbackBus is an in-memory CAN bus for tests and simulations. Frames written to one endpoint are delivered to
// all other endpoints opened from the same bus.
type LoopbackBus struct {
	mu        sync.RWMutex
	closed    bool
	endpoints map[*loopEndpoint]struct{}

	timeNow func() time.Time
}

// NewLoopbackBus creates a new loopback bus.
func NewLoopbackBus() *LoopbackBus {
	return &LoopbackBus{
		endpoints: make(map[*loopEndpoint]struct{}),
		timeNow:   time.Now,
	}
}

// Open creates a new endpoint attached to the bus.
func (b *LoopbackBus) Open() Device {
	ep := &loopEndpoint{
		bus:    b,
		ch:     make(chan Frame, 64),
		closed: make(chan struct{}),
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		ep.dead = true
		close(ep.closed)
		return ep
	}
	b.endpoints[ep] = struct{}{}
	return ep
}

// Close closes the bus and detaches all endpoints.
func (b *LoopbackBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	for ep := range b.endpoints {
		ep.markClosed()
	}
	b.endpoints = nil
	return nil
}

type loopEndpoint struct {
	bus    *LoopbackBus
	ch     chan Frame
	mu     sync.Mutex
	dead   bool
	closed chan struct{}
}

func (e *loopEndpoint) Initialize() error {
	return nil // no-op
}

// WriteFrame delivers the frame to all other endpoints on the same bus. Blocks while receiver buffer is full.
func (e *loopEndpoint) WriteFrame(ctx context.Context, frame Frame) error {
	e.mu.Lock()
	dead := e.dead
	e.mu.Unlock()
	if dead {
		return ErrClosed
	}

	e.bus.mu.RLock()
	if e.bus.closed {
		e.bus.mu.RUnlock()
		return ErrClosed
	}
	targets := make([]*loopEndpoint, 0, len(e.bus.endpoints))
	for ep := range e.bus.endpoints {
		if ep != e {
			targets = append(targets, ep)
		}
	}
	now := e.bus.timeNow()
	e.bus.mu.RUnlock()

	frame = frame.WithTime(now)
	for _, t := range targets {
		select {
		case t.ch <- frame:
		case <-t.closed:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// ReadFrame waits for the next frame written by other endpoints.
func (e *loopEndpoint) ReadFrame(ctx context.Context) (Frame, error) {
	select {
	case f := <-e.ch:
		return f, nil
	case <-e.closed:
		return Frame{}, ErrClosed
	case <-ctx.Done():
		return Frame{}, ctx.Err()
	}
}

// Close detaches endpoint from bus.
func (e *loopEndpoint) Close() error {
	e.bus.mu.Lock()
	defer e.bus.mu.Unlock()
	e.markClosed()
	if e.bus.endpoints != nil {
		delete(e.bus.endpoints, e)
	}
	return nil
}

func (e *loopEndpoint) markClosed() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.dead {
		return
	}
	e.dead = true
	close(e.closed)
}
