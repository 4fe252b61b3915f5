package session

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cwrk-planet/live-quiz/internal/broadcast/broadcasttest"
	"github.com/cwrk-planet/live-quiz/internal/clock"
	"github.com/cwrk-planet/live-quiz/internal/domain"
	"github.com/cwrk-planet/live-quiz/internal/scoring"
)

var t0 = time.Date(2025, 5, 1, 18, 0, 0, 0, time.UTC)

func quiz() []domain.Question {
	opts := []domain.Option{{ID: "a", Text: "A"}, {ID: "b", Text: "B"}, {ID: "c", Text: "C"}, {ID: "d", Text: "D"}}
	return []domain.Question{
		{ID: "q1", OrderIndex: 0, Prompt: "Capital of France?", Options: opts, CorrectOptionID: "a", DurationSeconds: 20},
		{ID: "q2", OrderIndex: 1, Prompt: "Capital of Spain?", Options: opts, CorrectOptionID: "b", DurationSeconds: 20},
		{ID: "q3", OrderIndex: 2, Prompt: "Capital of Italy?", Options: opts, CorrectOptionID: "c", DurationSeconds: 20},
	}
}

type memSink struct {
	got chan domain.SessionSummary
}

func (m *memSink) Publish(_ context.Context, s domain.SessionSummary) error {
	m.got <- s
	return nil
}

// stuckClock keeps time but never fires timers, so a question can be past
// its deadline while still live.
type stuckClock struct {
	*clock.Fake
}

type idleTimer struct{}

func (idleTimer) Stop() bool { return true }

func (stuckClock) AfterFunc(time.Duration, func()) clock.Timer { return idleTimer{} }

type harness struct {
	t        *testing.T
	ctx      context.Context
	clk      *clock.Fake
	s        *Session
	host     Caller
	hostConn *broadcasttest.Conn
	sink     *memSink
	ended    atomic.Int32
}

type option func(*harness, *Deps, *Config)

func withStuckTimers(h *harness, d *Deps, _ *Config) {
	d.Clock = stuckClock{h.clk}
}

func withPolicy(p scoring.Policy) option {
	return func(_ *harness, d *Deps, _ *Config) { d.Policy = p }
}

func newHarness(t *testing.T, opts ...option) *harness {
	t.Helper()
	h := &harness{
		t:    t,
		ctx:  context.Background(),
		clk:  clock.NewFake(t0),
		sink: &memSink{got: make(chan domain.SessionSummary, 4)},
	}
	deps := Deps{
		Clock:      h.clk,
		Policy:     scoring.Flat{Points: 100},
		Sink:       h.sink,
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		OnTerminal: func(*Session) { h.ended.Add(1) },
	}
	cfg := Config{HeartbeatInterval: 10 * time.Second, MissedHeartbeats: 3, HostGracePeriod: 60 * time.Second}
	for _, o := range opts {
		o(h, &deps, &cfg)
	}

	s, err := New(Params{
		ID:        "s1",
		JoinCode:  "ABC234",
		Title:     "Capitals",
		HostID:    "host-1",
		HostName:  "Quizmaster",
		Questions: quiz(),
	}, cfg, deps)
	require.NoError(t, err)
	t.Cleanup(s.Stop)
	h.s = s

	h.host = Caller{ParticipantID: "host-1", Role: domain.RoleHost, DisplayName: "Quizmaster"}
	h.hostConn = broadcasttest.NewConn()
	_, err = s.RegisterHost(h.ctx, h.host, h.hostConn)
	require.NoError(t, err)
	return h
}

func player(id string) Caller {
	return Caller{ParticipantID: id, Role: domain.RolePlayer, DisplayName: "Player " + id}
}

func (h *harness) join(id string) (Caller, *broadcasttest.Conn) {
	h.t.Helper()
	c := player(id)
	conn := broadcasttest.NewConn()
	_, err := h.s.Join(h.ctx, c, conn)
	require.NoError(h.t, err)
	return c, conn
}

// advance moves the clock and waits until every fired timer was processed.
func (h *harness) advance(d time.Duration) {
	h.t.Helper()
	h.clk.Advance(d)
	h.snapshot()
}

func (h *harness) snapshot() domain.Snapshot {
	h.t.Helper()
	snap, err := h.s.Snapshot(h.ctx)
	require.NoError(h.t, err)
	return snap
}

func (h *harness) participant(id string) domain.Participant {
	h.t.Helper()
	for _, p := range h.snapshot().Participants {
		if p.ID == id {
			return p
		}
	}
	h.t.Fatalf("participant %s not found", id)
	return domain.Participant{}
}

func (h *harness) summary() domain.SessionSummary {
	h.t.Helper()
	select {
	case s := <-h.sink.got:
		return s
	case <-time.After(2 * time.Second):
		h.t.Fatal("no summary published")
		return domain.SessionSummary{}
	}
}

func requireCode(t *testing.T, err error, code domain.Code) {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, code, domain.CodeOf(err), err.Error())
}

func removalsFor(conn *broadcasttest.Conn, participantID string) int {
	n := 0
	for _, m := range conn.Messages() {
		if m.Type != string(domain.EventParticipantRemoved) {
			continue
		}
		if m.Payload.(domain.ParticipantRemoved).ParticipantID == participantID {
			n++
		}
	}
	return n
}
