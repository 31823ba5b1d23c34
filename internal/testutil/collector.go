package testutil

import (
	"fmt"
	"sync"
	"time"

	"github.com/roach88/uniflow/internal/ir"
)

// Collector is an ir.MessageConsumer that records every message it accepts.
//
// Thread-safety: Accept may be called from any goroutine.
type Collector struct {
	mu     sync.Mutex
	msgs   []ir.Msg
	signal chan struct{}
}

// NewCollector creates an empty collector.
func NewCollector() *Collector {
	return &Collector{signal: make(chan struct{}, 1)}
}

// Accept records msg.
func (c *Collector) Accept(msg ir.Msg) {
	c.mu.Lock()
	c.msgs = append(c.msgs, msg)
	c.mu.Unlock()

	select {
	case c.signal <- struct{}{}:
	default:
	}
}

// Msgs returns a copy of the recorded messages in arrival order.
func (c *Collector) Msgs() []ir.Msg {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]ir.Msg, len(c.msgs))
	copy(out, c.msgs)
	return out
}

// Len returns the number of recorded messages.
func (c *Collector) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.msgs)
}

// WaitFor blocks until at least n messages were recorded or timeout passes.
// Returns false on timeout.
func (c *Collector) WaitFor(n int, timeout time.Duration) bool {
	deadline := time.After(timeout)
	for {
		if c.Len() >= n {
			return true
		}
		select {
		case <-c.signal:
		case <-deadline:
			return c.Len() >= n
		}
	}
}

// Types returns the dynamic type name of each recorded message.
func (c *Collector) Types() []string {
	msgs := c.Msgs()
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = fmt.Sprintf("%T", m)
	}
	return out
}
