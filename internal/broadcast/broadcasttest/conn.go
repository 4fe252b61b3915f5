// Package broadcasttest provides an in-memory broadcast.Conn for tests.
package broadcasttest

import (
	"sync"

	"github.com/google/uuid"

	"github.com/cwrk-planet/live-quiz/internal/broadcast"
)

// Conn records every message it is sent.
type Conn struct {
	id string

	mu       sync.Mutex
	msgs     []broadcast.Message
	closed   bool
	code     int
	reason   string
	capacity int
}

func NewConn() *Conn {
	return &Conn{id: uuid.NewString()}
}

// NewFullConn returns a connection that accepts at most n messages.
func NewFullConn(n int) *Conn {
	c := NewConn()
	c.capacity = n
	return c
}

func (c *Conn) ID() string { return c.id }

func (c *Conn) Send(msg broadcast.Message) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	if c.capacity > 0 && len(c.msgs) >= c.capacity {
		return false
	}
	c.msgs = append(c.msgs, msg)
	return true
}

func (c *Conn) Close(code int, reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.code = code
	c.reason = reason
}

func (c *Conn) Messages() []broadcast.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]broadcast.Message, len(c.msgs))
	copy(out, c.msgs)
	return out
}

// Types lists the type of every recorded message in order.
func (c *Conn) Types() []string {
	msgs := c.Messages()
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.Type
	}
	return out
}

// Last returns the most recent message of type typ.
func (c *Conn) Last(typ string) (broadcast.Message, bool) {
	msgs := c.Messages()
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Type == typ {
			return msgs[i], true
		}
	}
	return broadcast.Message{}, false
}

// Count returns how many messages of type typ were recorded.
func (c *Conn) Count(typ string) int {
	n := 0
	for _, m := range c.Messages() {
		if m.Type == typ {
			n++
		}
	}
	return n
}

func (c *Conn) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs = nil
}

// Closed reports whether Close was called and with which code.
func (c *Conn) Closed() (bool, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed, c.code
}
