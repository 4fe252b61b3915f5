// Package broadcast fans session events out to the connections bound to a
// session. Each session owns one Group; every Publish is made from the
// session's own goroutine so per-connection order equals production order.
package broadcast

import (
	"sort"
	"sync"

	"github.com/cwrk-planet/live-quiz/internal/domain"
)

// Message is the server frame written to a connection.
type Message struct {
	Type    string `json:"type"`
	Seq     uint64 `json:"seq,omitempty"`
	Ref     string `json:"ref,omitempty"`
	Payload any    `json:"payload,omitempty"`
}

// Conn is the sending side of one client connection. Send must not block; it
// reports false when the message could not be queued.
type Conn interface {
	ID() string
	Send(msg Message) bool
	Close(code int, reason string)
}

type AudienceKind int

const (
	AudienceAll AudienceKind = iota
	AudienceHost
	AudienceParticipant
)

// Audience selects the recipients of one event.
type Audience struct {
	Kind          AudienceKind
	ParticipantID string
}

func All() Audience  { return Audience{Kind: AudienceAll} }
func Host() Audience { return Audience{Kind: AudienceHost} }
func To(participantID string) Audience {
	return Audience{Kind: AudienceParticipant, ParticipantID: participantID}
}

// DropFunc is called when a connection rejects a message. It runs with the
// group locked and must not call back into the Group.
type DropFunc func(participantID string, c Conn)

type Group struct {
	mu sync.Mutex

	hostID  string
	conns   map[string]Conn
	seq     uint64
	holding bool
	outbox  []Message
	max     int
	onDrop  DropFunc
}

// NewGroup creates the group of one session. Host-addressed messages are
// buffered up to outboxSize while the host is held.
func NewGroup(hostID string, outboxSize int, onDrop DropFunc) *Group {
	if outboxSize <= 0 {
		outboxSize = 256
	}
	return &Group{
		hostID: hostID,
		conns:  make(map[string]Conn),
		max:    outboxSize,
		onDrop: onDrop,
	}
}

// Attach binds c to participantID and returns the connection it replaced.
// Attaching the host flushes any buffered host messages first.
func (g *Group) Attach(participantID string, c Conn) Conn {
	g.mu.Lock()
	defer g.mu.Unlock()

	prev := g.conns[participantID]
	if prev != nil && prev.ID() == c.ID() {
		prev = nil
	}
	g.conns[participantID] = c

	if participantID == g.hostID && len(g.outbox) > 0 {
		pending := g.outbox
		g.outbox = nil
		for _, msg := range pending {
			g.deliver(participantID, c, msg)
		}
	}
	return prev
}

// Detach unbinds participantID only while c is still its current connection.
func (g *Group) Detach(participantID string, c Conn) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	cur, ok := g.conns[participantID]
	if !ok || cur.ID() != c.ID() {
		return false
	}
	delete(g.conns, participantID)
	return true
}

// Evict unbinds participantID and closes its connection with code.
func (g *Group) Evict(participantID string, code int, reason string) {
	g.mu.Lock()
	c, ok := g.conns[participantID]
	delete(g.conns, participantID)
	g.mu.Unlock()

	if ok {
		c.Close(code, reason)
	}
}

// Hold toggles buffering of host-addressed messages while no host is bound.
func (g *Group) Hold(on bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.holding = on
}

// Publish stamps ev with the next sequence number and delivers it.
func (g *Group) Publish(to Audience, ev domain.Event) uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.seq++
	msg := Message{Type: string(ev.Type), Seq: g.seq, Payload: ev.Payload}

	switch to.Kind {
	case AudienceHost:
		g.toHost(msg)
	case AudienceParticipant:
		if to.ParticipantID == g.hostID {
			g.toHost(msg)
			break
		}
		if c, ok := g.conns[to.ParticipantID]; ok {
			g.deliver(to.ParticipantID, c, msg)
		}
	default:
		g.toHost(msg)
		for _, id := range g.playerIDs() {
			g.deliver(id, g.conns[id], msg)
		}
	}
	return g.seq
}

// CloseAll closes and unbinds every connection.
func (g *Group) CloseAll(code int, reason string) {
	g.mu.Lock()
	conns := g.conns
	g.conns = make(map[string]Conn)
	g.outbox = nil
	g.mu.Unlock()

	for _, c := range conns {
		c.Close(code, reason)
	}
}

func (g *Group) Connected(participantID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.conns[participantID]
	return ok
}

// Size reports the number of bound connections.
func (g *Group) Size() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.conns)
}

// Pending reports the number of buffered host messages.
func (g *Group) Pending() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.outbox)
}

func (g *Group) toHost(msg Message) {
	if c, ok := g.conns[g.hostID]; ok {
		g.deliver(g.hostID, c, msg)
		return
	}
	if !g.holding {
		return
	}
	if len(g.outbox) >= g.max {
		g.outbox = g.outbox[1:]
	}
	g.outbox = append(g.outbox, msg)
}

func (g *Group) deliver(participantID string, c Conn, msg Message) {
	if c.Send(msg) {
		return
	}
	if g.onDrop != nil {
		g.onDrop(participantID, c)
	}
}

func (g *Group) playerIDs() []string {
	ids := make([]string, 0, len(g.conns))
	for id := range g.conns {
		if id != g.hostID {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}
