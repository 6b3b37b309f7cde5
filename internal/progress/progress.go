// Package progress carries phase and counter events from the core to any
// display without letting a slow reader stall the search.
package progress

import "sync"

type Phase string

const (
	PhaseSearching      Phase = "searching"
	PhaseCrossLinking   Phase = "cross-linking"
	PhasePostProcessing Phase = "post-processing"
	PhaseFinished       Phase = "finished"
)

// Event is one progress update. Total is zero when unknown.
type Event struct {
	Phase     Phase
	Completed int
	Total     int
	Message   string
}

// Reporter receives events. Implementations must not block.
type Reporter interface {
	Report(Event)
}

// Nop discards events.
type Nop struct{}

func (Nop) Report(Event) {}

// Func adapts a function to Reporter.
type Func func(Event)

func (f Func) Report(e Event) { f(e) }

// Channel delivers events on a buffered channel, dropping them when the
// buffer is full. Finished events are never dropped by a full buffer: the
// oldest pending event is discarded instead.
type Channel struct {
	mu     sync.Mutex
	ch     chan Event
	closed bool
}

// NewChannel returns a Channel with the given buffer size (minimum 1).
func NewChannel(buffer int) *Channel {
	if buffer < 1 {
		buffer = 1
	}
	return &Channel{ch: make(chan Event, buffer)}
}

// Events is the read side.
func (c *Channel) Events() <-chan Event {
	return c.ch
}

func (c *Channel) Report(e Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.ch <- e:
		return
	default:
	}
	if e.Phase != PhaseFinished {
		return
	}
	select {
	case <-c.ch:
	default:
	}
	select {
	case c.ch <- e:
	default:
	}
}

// Close ends the event stream. Further reports are ignored.
func (c *Channel) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.ch)
	}
}
