package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/samber/lo"

	"github.com/cwrk-planet/live-quiz/internal/broadcast"
	"github.com/cwrk-planet/live-quiz/internal/domain"
	"github.com/cwrk-planet/live-quiz/internal/metrics"
	"github.com/cwrk-planet/live-quiz/internal/security"
	"github.com/cwrk-planet/live-quiz/internal/session"
)

type Sessions interface {
	Get(id string) (*session.Session, error)
}

type TicketVerifier interface {
	Verify(token string) (security.Ticket, error)
}

type Config struct {
	SendBuffer      int
	PingInterval    time.Duration
	PongWait        time.Duration
	WriteWait       time.Duration
	MaxMessageBytes int64
	SubmitLimit     int      // submit_answer на один вопрос с одного соединения
	AllowedOrigins  []string // пусто — любой Origin
}

func (c Config) withDefaults() Config {
	if c.SendBuffer <= 0 {
		c.SendBuffer = 64
	}
	if c.PingInterval <= 0 {
		c.PingInterval = 30 * time.Second
	}
	if c.PongWait <= 0 {
		c.PongWait = 60 * time.Second
	}
	if c.WriteWait <= 0 {
		c.WriteWait = 10 * time.Second
	}
	if c.MaxMessageBytes <= 0 {
		c.MaxMessageBytes = 4096
	}
	if c.SubmitLimit <= 0 {
		c.SubmitLimit = 10
	}
	return c
}

type Server struct {
	upgrader websocket.Upgrader
	sessions Sessions
	verifier TicketVerifier
	metrics  *metrics.Metrics
	cfg      Config
}

func NewServer(sessions Sessions, verifier TicketVerifier, m *metrics.Metrics, cfg Config) *Server {
	cfg = cfg.withDefaults()
	if m == nil {
		m = metrics.New()
	}
	return &Server{
		sessions: sessions,
		verifier: verifier,
		metrics:  m,
		cfg:      cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin(cfg.AllowedOrigins),
		},
	}
}

func checkOrigin(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 {
		return func(r *http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || lo.Contains(allowed, origin)
	}
}

// WS endpoint: GET /ws?token=... (или Authorization: Bearer ...)
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimSpace(r.URL.Query().Get("token"))
	if token == "" {
		token = security.BearerToken(r.Header.Get("Authorization"))
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("ws upgrade failed", "err", err)
		return
	}

	ticket, sess, err := s.authenticate(token)
	if err != nil {
		s.metrics.Unauthorized()
		slog.Debug("ws unauthorized", "err", err)
		frame := websocket.FormatCloseMessage(broadcast.CloseUnauthorized, "unauthorized")
		_ = conn.WriteControl(websocket.CloseMessage, frame, time.Now().Add(s.cfg.WriteWait))
		_ = conn.Close()
		return
	}

	s.metrics.ConnectionOpened()
	defer s.metrics.ConnectionClosed()

	c := newWsConn(conn, ticket.ParticipantID, s.metrics, s.cfg)
	go c.writeLoop()

	caller := session.Caller{
		ParticipantID: ticket.ParticipantID,
		Role:          ticket.Role,
		DisplayName:   ticket.DisplayName,
	}
	log := slog.With("session_id", sess.ID(), "participant_id", caller.ParticipantID, "role", string(caller.Role))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// привязка соединения: хост регистрируется, игрок присоединяется
	if caller.Role == domain.RoleHost {
		_, err = sess.RegisterHost(ctx, caller, c)
	} else {
		_, err = sess.Join(ctx, caller, c)
	}
	if err != nil {
		log.Debug("ws attach rejected", "err", err)
		c.Send(broadcast.Message{Type: TypeError, Payload: errorPayload(err)})
		c.Close(closeCodeFor(err), string(domain.CodeOf(err)))
		c.wait(s.cfg.WriteWait)
		return
	}
	log.Info("ws connected", "conn_id", c.ID())

	s.readLoop(ctx, sess, caller, c)

	dctx, dcancel := context.WithTimeout(context.Background(), s.cfg.WriteWait)
	if err := sess.Disconnect(dctx, caller, c); err != nil && !errors.Is(err, domain.ErrSessionClosed) {
		log.Debug("ws disconnect failed", "err", err)
	}
	dcancel()

	c.Close(websocket.CloseNormalClosure, "")
	c.wait(s.cfg.WriteWait)
	log.Info("ws disconnected", "conn_id", c.ID())
}

func (s *Server) authenticate(token string) (security.Ticket, *session.Session, error) {
	if token == "" {
		return security.Ticket{}, nil, domain.ErrUnauthorized
	}
	ticket, err := s.verifier.Verify(token)
	if err != nil {
		return security.Ticket{}, nil, err
	}
	sess, err := s.sessions.Get(ticket.SessionID)
	if err != nil {
		return security.Ticket{}, nil, err
	}
	return ticket, sess, nil
}

func (s *Server) readLoop(ctx context.Context, sess *session.Session, caller session.Caller, c *wsConn) {
	c.conn.SetReadLimit(s.cfg.MaxMessageBytes)
	_ = c.conn.SetReadDeadline(time.Now().Add(s.cfg.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(s.cfg.PongWait))
	})

	// счётчик submit_answer по questionId; читается только из этой горутины.
	// Чужие questionId делят один ключ, так что карта не больше числа вопросов.
	submits := make(map[string]int)

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				slog.Debug("ws read failed", "participant_id", caller.ParticipantID, "err", err)
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(s.cfg.PongWait))
		s.metrics.MessageReceived()

		var in Inbound
		if err := json.Unmarshal(data, &in); err != nil || in.Type == "" {
			s.reject(c, "", domain.Invalid(domain.CodeInvalidMessage, "malformed frame", nil))
			continue
		}

		if in.Type == TypeSubmitAnswer {
			var p SubmitPayload
			if err := decode(in.Payload, &p); err != nil {
				s.reject(c, in.Ref, err)
				continue
			}
			key := p.QuestionID
			if !sess.HasQuestion(key) {
				key = ""
			}
			submits[key]++
			if submits[key] > s.cfg.SubmitLimit {
				s.metrics.RateLimited()
				s.reject(c, in.Ref, domain.Invalid(domain.CodeRateLimited, "too many submissions for this question",
					map[string]any{"questionId": p.QuestionID}))
				continue
			}
		}

		result, err := s.dispatch(ctx, sess, caller, c, in)
		if err != nil {
			s.reject(c, in.Ref, err)
			if errors.Is(err, domain.ErrSessionClosed) {
				return
			}
			continue
		}

		if in.Type == TypeGetState {
			c.Send(broadcast.Message{Type: string(domain.EventSessionState), Ref: in.Ref, Payload: result})
			continue
		}
		c.Send(broadcast.Message{Type: TypeAck, Ref: in.Ref, Payload: AckPayload{Command: in.Type, Result: result}})
	}
}

func (s *Server) dispatch(ctx context.Context, sess *session.Session, caller session.Caller, c *wsConn, in Inbound) (any, error) {
	switch in.Type {
	case TypeRegisterHost:
		return nil, ignoreValue(sess.RegisterHost(ctx, caller, c))
	case TypeStartSession:
		return nil, sess.Start(ctx, caller)
	case TypeAdvanceQuestion:
		return nil, sess.Advance(ctx, caller)
	case TypeRevealAnswer:
		return sess.Reveal(ctx, caller)
	case TypeEndSession:
		return nil, sess.End(ctx, caller)
	case TypeSubmitAnswer:
		var p SubmitPayload
		if err := decode(in.Payload, &p); err != nil {
			return nil, err
		}
		return sess.Submit(ctx, caller, p.QuestionID, p.OptionID)
	case TypeHeartbeat:
		return nil, sess.Heartbeat(ctx, caller)
	case TypeRemoveParticipant, TypeReinstateParticipant:
		var p TargetPayload
		if err := decode(in.Payload, &p); err != nil {
			return nil, err
		}
		if in.Type == TypeRemoveParticipant {
			return nil, sess.Remove(ctx, caller, p.ParticipantID)
		}
		return nil, sess.Reinstate(ctx, caller, p.ParticipantID)
	case TypeGetState:
		return sess.Snapshot(ctx)
	default:
		return nil, domain.Invalid(domain.CodeInvalidMessage, "unknown message type", map[string]any{"type": in.Type})
	}
}

func (s *Server) reject(c *wsConn, ref string, err error) {
	s.metrics.CommandRejected()
	c.Send(broadcast.Message{Type: TypeError, Ref: ref, Payload: errorPayload(err)})
}

func ignoreValue[T any](_ T, err error) error { return err }

// closeCodeFor подбирает код закрытия для отказа в привязке соединения.
func closeCodeFor(err error) int {
	switch domain.CodeOf(err) {
	case domain.CodeParticipantRemoved:
		return broadcast.CloseRemoved
	case domain.CodeSessionClosed:
		return broadcast.CloseSessionClosed
	case domain.CodeInternal:
		return websocket.CloseInternalServerErr
	case domain.CodeUnauthorized, domain.CodeNotHost, domain.CodeRoleMismatch:
		return broadcast.CloseUnauthorized
	default:
		return broadcast.CloseRejected
	}
}
