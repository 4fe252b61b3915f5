// Package session implements the live quiz session: a per-session worker that
// serializes host and player commands with timer expiries and applies each one
// atomically against the session state.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cwrk-planet/live-quiz/internal/analytics"
	"github.com/cwrk-planet/live-quiz/internal/broadcast"
	"github.com/cwrk-planet/live-quiz/internal/clock"
	"github.com/cwrk-planet/live-quiz/internal/domain"
	"github.com/cwrk-planet/live-quiz/internal/scoring"
)

type Config struct {
	HeartbeatInterval time.Duration
	MissedHeartbeats  int
	HostGracePeriod   time.Duration
	CommandBuffer     int
	HostOutboxSize    int
	SinkTimeout       time.Duration
}

func (c Config) withDefaults() Config {
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = 10 * time.Second
	}
	if c.MissedHeartbeats <= 0 {
		c.MissedHeartbeats = 3
	}
	if c.HostGracePeriod <= 0 {
		c.HostGracePeriod = 60 * time.Second
	}
	if c.CommandBuffer <= 0 {
		c.CommandBuffer = 64
	}
	if c.HostOutboxSize <= 0 {
		c.HostOutboxSize = 256
	}
	if c.SinkTimeout <= 0 {
		c.SinkTimeout = 5 * time.Second
	}
	return c
}

// PresenceTimeout is the silence after which a player is marked disconnected.
func (c Config) PresenceTimeout() time.Duration {
	return c.HeartbeatInterval * time.Duration(c.MissedHeartbeats)
}

type Params struct {
	ID        string
	JoinCode  string
	Title     string
	HostID    string
	HostName  string
	Questions []domain.Question
}

type Deps struct {
	Clock  clock.Clock
	Policy scoring.Policy
	Sink   analytics.Sink
	Logger *slog.Logger
	// OnTerminal runs on the session goroutine once the session has ended.
	OnTerminal func(*Session)
	// OnDrop is told about connections that could not keep up.
	OnDrop broadcast.DropFunc
}

type envelope struct {
	cmd   Command
	reply chan result
}

type result struct {
	value any
	err   error
}

type Session struct {
	id        string
	joinCode  string
	title     string
	hostID    string
	questions []domain.Question
	createdAt time.Time

	cfg        Config
	clk        clock.Clock
	policy     scoring.Policy
	sink       analytics.Sink
	onTerminal func(*Session)
	log        *slog.Logger

	group *broadcast.Group
	sched *scheduler

	cmds     chan envelope
	quit     chan struct{}
	stopped  chan struct{}
	stopOnce sync.Once

	// st is owned by the run goroutine.
	st *state

	phase   atomic.Value
	endedAt atomic.Int64
}

// New validates p and starts the session worker.
func New(p Params, cfg Config, deps Deps) (*Session, error) {
	if p.ID == "" || p.HostID == "" {
		return nil, domain.Invalid(domain.CodeInvalidContent, "session id and host id are required", nil)
	}
	if err := domain.ValidateQuestions(p.Questions); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()

	clk := deps.Clock
	if clk == nil {
		clk = clock.Real{}
	}
	policy := deps.Policy
	if policy == nil {
		policy = scoring.Latency{Max: 1000, Min: 500}
	}
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}

	now := clk.Now()
	s := &Session{
		id:         p.ID,
		joinCode:   p.JoinCode,
		title:      p.Title,
		hostID:     p.HostID,
		questions:  append([]domain.Question(nil), p.Questions...),
		createdAt:  now,
		cfg:        cfg,
		clk:        clk,
		policy:     policy,
		sink:       deps.Sink,
		onTerminal: deps.OnTerminal,
		log:        log.With(slog.String("session_id", p.ID)),
		group:      broadcast.NewGroup(p.HostID, cfg.HostOutboxSize, deps.OnDrop),
		cmds:       make(chan envelope, cfg.CommandBuffer),
		quit:       make(chan struct{}),
		stopped:    make(chan struct{}),
		st:         newState(p.HostID, p.HostName, now),
	}
	s.sched = newScheduler(clk, s.post)
	s.phase.Store(domain.StateLobby)

	go s.run()
	return s, nil
}

func (s *Session) ID() string           { return s.id }
func (s *Session) JoinCode() string     { return s.joinCode }
func (s *Session) Title() string        { return s.title }
func (s *Session) HostID() string       { return s.hostID }
func (s *Session) CreatedAt() time.Time { return s.createdAt }

// HasQuestion reports whether id names one of the session's questions.
func (s *Session) HasQuestion(id string) bool {
	for _, q := range s.questions {
		if q.ID == id {
			return true
		}
	}
	return false
}

// State is the last committed lifecycle state.
func (s *Session) State() domain.State {
	return s.phase.Load().(domain.State)
}

// EndedAt reports when the session reached a terminal state.
func (s *Session) EndedAt() (time.Time, bool) {
	n := s.endedAt.Load()
	if n == 0 {
		return time.Time{}, false
	}
	return time.Unix(0, n), true
}

// Connections is the number of bound client connections.
func (s *Session) Connections() int {
	return s.group.Size()
}

// Do enqueues cmd and waits for its outcome.
func (s *Session) Do(ctx context.Context, cmd Command) (any, error) {
	reply := make(chan result, 1)
	select {
	case s.cmds <- envelope{cmd: cmd, reply: reply}:
	case <-s.quit:
		return nil, domain.ErrSessionClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case r := <-reply:
		return r.value, r.err
	case <-s.stopped:
		return nil, domain.ErrSessionClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// post enqueues an internal command without waiting for it.
func (s *Session) post(cmd Command) {
	select {
	case s.cmds <- envelope{cmd: cmd}:
	case <-s.quit:
	}
}

// Stop terminates the worker, cancels its timers and closes every connection.
func (s *Session) Stop() {
	s.stopOnce.Do(func() { close(s.quit) })
	<-s.stopped
}

func (s *Session) run() {
	defer close(s.stopped)
	for {
		select {
		case env := <-s.cmds:
			value, err := s.handle(env.cmd)
			if env.reply != nil {
				env.reply <- result{value: value, err: err}
			}
		case <-s.quit:
			s.sched.cancelAll()
			s.group.CloseAll(broadcast.CloseSessionClosed, "session closed")
			return
		}
	}
}

func (s *Session) handle(cmd Command) (value any, err error) {
	t := &tx{s: s, st: s.st.clone(), now: s.clk.Now(), from: s.st.phase}

	defer func() {
		if r := recover(); r != nil {
			s.log.Error("session.handle: panic",
				slog.String("command", string(cmd.Kind())),
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())),
			)
			value, err = nil, domain.Internal("internal error", fmt.Errorf("panic: %v", r))
		}
	}()

	if err := s.apply(t, cmd); err != nil {
		if cmd.Kind() != kindTimerFired {
			s.log.Debug("command rejected",
				slog.String("command", string(cmd.Kind())),
				slog.String("participant_id", cmd.Origin().ParticipantID),
				slog.String("code", string(domain.CodeOf(err))),
			)
		}
		return nil, err
	}

	t.commit()
	if t.st.phase != t.from {
		s.phase.Store(t.st.phase)
		s.log.Info("session state changed",
			slog.String("from", string(t.from)),
			slog.String("to", string(t.st.phase)),
			slog.String("trigger", string(cmd.Kind())),
		)
	}
	return t.reply, nil
}

func (s *Session) apply(t *tx, cmd Command) error {
	if tf, ok := cmd.(timerFired); ok {
		return s.onTimer(t, tf)
	}
	if err := Allowed(cmd.Kind(), t.st.phase, cmd.Origin(), t.st.hostID); err != nil {
		return err
	}

	switch c := cmd.(type) {
	case Join:
		return s.join(t, c)
	case RegisterHost:
		return s.registerHost(t, c)
	case StartSession:
		return s.start(t)
	case AdvanceQuestion:
		return s.advance(t)
	case RevealAnswer:
		return s.reveal(t)
	case EndSession:
		s.complete(t)
		return nil
	case SubmitAnswer:
		return s.submit(t, c)
	case Heartbeat:
		return s.heartbeat(t, c)
	case RemoveParticipant:
		return s.remove(t, c)
	case ReinstateParticipant:
		return s.reinstate(t, c)
	case Disconnect:
		return s.disconnect(t, c)
	case terminate:
		s.terminate(t, c.reason)
		return nil
	case GetState:
		t.reply = s.snapshot(t.st)
		return nil
	default:
		return domain.Invalid(domain.CodeInvalidMessage, "unsupported command", map[string]any{"command": string(cmd.Kind())})
	}
}

// onTimer routes a fired timer. A timer whose generation no longer matches
// the armed one is a misfire and is dropped.
func (s *Session) onTimer(t *tx, tf timerFired) error {
	if gen, ok := t.st.timers[tf.purpose]; !ok || gen != tf.gen {
		s.log.Debug("timer misfire discarded",
			slog.String("purpose", string(tf.purpose)),
			slog.Uint64("gen", tf.gen),
		)
		return nil
	}
	t.cancel(tf.purpose)

	switch tf.purpose {
	case purposeDeadline:
		s.deadlineElapsed(t)
	case purposeGrace:
		s.graceExpired(t)
	default:
		if id, ok := strings.CutPrefix(string(tf.purpose), presencePrefix); ok {
			s.presenceTimeout(t, id)
		}
	}
	return nil
}

// finish runs the terminal effects: every connection is closed after the
// final event, the join code is released and the summary is handed off.
func (s *Session) finish(t *tx, summary domain.SessionSummary) {
	for id, p := range t.st.participants {
		p.Connected = false
		delete(t.st.conns, id)
	}
	endedAt := t.now
	t.effect(func() {
		s.group.CloseAll(broadcast.CloseSessionClosed, "session ended")
		s.endedAt.Store(endedAt.UnixNano())
		s.phase.Store(summary.State)
		if s.onTerminal != nil {
			s.onTerminal(s)
		}
		s.publishSummary(summary)
	})
}

func (s *Session) publishSummary(summary domain.SessionSummary) {
	if s.sink == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.SinkTimeout)
		defer cancel()
		if err := s.sink.Publish(ctx, summary); err != nil {
			s.log.Error("session.publishSummary:", slog.Any("err", err))
		}
	}()
}
