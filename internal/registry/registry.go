// Package registry is the process-wide directory of live sessions, indexed by
// session id and by join code.
package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cwrk-planet/live-quiz/internal/clock"
	"github.com/cwrk-planet/live-quiz/internal/domain"
	"github.com/cwrk-planet/live-quiz/internal/session"
)

type Config struct {
	JoinCodeLength    int
	TerminalRetention time.Duration
	CleanupInterval   time.Duration
	MaxSessions       int
}

func (c Config) withDefaults() Config {
	if c.JoinCodeLength <= 0 {
		c.JoinCodeLength = 6
	}
	if c.TerminalRetention <= 0 {
		c.TerminalRetention = 10 * time.Minute
	}
	if c.CleanupInterval <= 0 {
		c.CleanupInterval = time.Minute
	}
	return c
}

const (
	maxCodeAttempts = 32
	// shutdownWait ограничивает завершение всех сессий при остановке процесса.
	shutdownWait = 5 * time.Second
)

var (
	ErrCapacity        = errors.New("session capacity reached")
	ErrCodeUnavailable = errors.New("could not allocate a join code")
)

type CreateParams struct {
	HostID    string
	HostName  string
	Title     string
	Questions []domain.Question
}

// Info is a lock-free summary of a registered session.
type Info struct {
	ID          string       `json:"id"`
	JoinCode    string       `json:"joinCode"`
	Title       string       `json:"title"`
	State       domain.State `json:"state"`
	CreatedAt   time.Time    `json:"createdAt"`
	Connections int          `json:"connections"`
}

type Registry struct {
	mu     sync.RWMutex
	byID   map[string]*session.Session
	byCode map[string]string

	cfg     Config
	sessCfg session.Config
	deps    session.Deps
	clk     clock.Clock
	log     *slog.Logger

	newID   func() string
	newCode func(n int) (string, error)
}

// New builds a registry whose sessions share sessCfg and deps. deps.OnTerminal
// is chained after the registry's own join-code release.
func New(cfg Config, sessCfg session.Config, deps session.Deps) *Registry {
	clk := deps.Clock
	if clk == nil {
		clk = clock.Real{}
	}
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Registry{
		byID:    make(map[string]*session.Session),
		byCode:  make(map[string]string),
		cfg:     cfg.withDefaults(),
		sessCfg: sessCfg,
		deps:    deps,
		clk:     clk,
		log:     log,
		newID:   uuid.NewString,
		newCode: randomCode,
	}
}

// Create registers a new session in the lobby under a fresh join code.
func (r *Registry) Create(p CreateParams) (*session.Session, error) {
	if p.HostID == "" {
		return nil, domain.Invalid(domain.CodeInvalidContent, "hostId is required", nil)
	}
	if err := domain.ValidateQuestions(p.Questions); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cfg.MaxSessions > 0 && len(r.byID) >= r.cfg.MaxSessions {
		return nil, ErrCapacity
	}
	code, err := r.allocateCode()
	if err != nil {
		return nil, err
	}

	deps := r.deps
	chained := deps.OnTerminal
	deps.OnTerminal = func(s *session.Session) {
		r.release(s)
		if chained != nil {
			chained(s)
		}
	}

	s, err := session.New(session.Params{
		ID:        r.newID(),
		JoinCode:  code,
		Title:     p.Title,
		HostID:    p.HostID,
		HostName:  p.HostName,
		Questions: p.Questions,
	}, r.sessCfg, deps)
	if err != nil {
		return nil, err
	}

	r.byID[s.ID()] = s
	r.byCode[code] = s.ID()
	r.log.Info("session created",
		slog.String("session_id", s.ID()),
		slog.String("join_code", code),
		slog.Int("questions", len(p.Questions)),
	)
	return s, nil
}

// allocateCode must be called with r.mu held.
func (r *Registry) allocateCode() (string, error) {
	for i := 0; i < maxCodeAttempts; i++ {
		code, err := r.newCode(r.cfg.JoinCodeLength)
		if err != nil {
			return "", fmt.Errorf("generate join code: %w", err)
		}
		if _, taken := r.byCode[code]; !taken {
			return code, nil
		}
	}
	return "", ErrCodeUnavailable
}

// release frees the join code of a session that reached a terminal state.
func (r *Registry) release(s *session.Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.byCode[s.JoinCode()] == s.ID() {
		delete(r.byCode, s.JoinCode())
	}
}

func (r *Registry) Get(id string) (*session.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.byID[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return s, nil
}

// ByCode resolves a join code of a session that has not ended.
func (r *Registry) ByCode(code string) (*session.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byCode[NormalizeCode(code)]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return r.byID[id], nil
}

// Remove unregisters a session. A session that has not ended is terminated
// first, so its participants and the summary sink see the closure.
func (r *Registry) Remove(ctx context.Context, id string) bool {
	r.mu.Lock()
	s, ok := r.byID[id]
	if ok {
		r.forget(s)
	}
	r.mu.Unlock()

	if ok {
		r.end(ctx, s, domain.ReasonClosed)
	}
	return ok
}

func (r *Registry) end(ctx context.Context, s *session.Session, reason string) {
	if err := s.Terminate(ctx, reason); err != nil {
		r.log.Warn("registry.end: terminate",
			slog.String("session_id", s.ID()),
			slog.String("reason", reason),
			slog.Any("err", err),
		)
	}
	s.Stop()
}

func (r *Registry) forget(s *session.Session) {
	delete(r.byID, s.ID())
	if r.byCode[s.JoinCode()] == s.ID() {
		delete(r.byCode, s.JoinCode())
	}
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}

// List returns every registered session, newest first.
func (r *Registry) List() []Info {
	r.mu.RLock()
	out := make([]Info, 0, len(r.byID))
	for _, s := range r.byID {
		out = append(out, Info{
			ID:          s.ID(),
			JoinCode:    s.JoinCode(),
			Title:       s.Title(),
			State:       s.State(),
			CreatedAt:   s.CreatedAt(),
			Connections: s.Connections(),
		})
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return newer(out[i], out[j]) })
	return out
}

// Sweep reclaims sessions that ended more than the retention period before now.
func (r *Registry) Sweep(now time.Time) int {
	var expired []*session.Session

	r.mu.Lock()
	for _, s := range r.byID {
		ended, ok := s.EndedAt()
		if ok && now.Sub(ended) >= r.cfg.TerminalRetention {
			expired = append(expired, s)
			r.forget(s)
		}
	}
	r.mu.Unlock()

	for _, s := range expired {
		s.Stop()
		r.log.Info("session reclaimed", slog.String("session_id", s.ID()), slog.String("state", string(s.State())))
	}
	return len(expired)
}

// Run sweeps periodically until ctx is done, then terminates every session.
func (r *Registry) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.cfg.CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			r.Shutdown()
			return nil
		case <-ticker.C:
			r.Sweep(r.clk.Now())
		}
	}
}

// Shutdown terminates and unregisters every session.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	all := make([]*session.Session, 0, len(r.byID))
	for _, s := range r.byID {
		all = append(all, s)
	}
	r.byID = make(map[string]*session.Session)
	r.byCode = make(map[string]string)
	r.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), shutdownWait)
	defer cancel()
	for _, s := range all {
		r.end(ctx, s, domain.ReasonShutdown)
	}
}
