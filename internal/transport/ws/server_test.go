package ws

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwrk-planet/live-quiz/internal/broadcast"
	"github.com/cwrk-planet/live-quiz/internal/domain"
	"github.com/cwrk-planet/live-quiz/internal/metrics"
	"github.com/cwrk-planet/live-quiz/internal/registry"
	"github.com/cwrk-planet/live-quiz/internal/security"
	"github.com/cwrk-planet/live-quiz/internal/session"
)

type ticketTable map[string]security.Ticket

func (tt ticketTable) Verify(token string) (security.Ticket, error) {
	t, ok := tt[token]
	if !ok {
		return security.Ticket{}, errors.New("bad token")
	}
	return t, nil
}

type frame struct {
	Type    string          `json:"type"`
	Seq     uint64          `json:"seq"`
	Ref     string          `json:"ref"`
	Payload json.RawMessage `json:"payload"`
}

type env struct {
	t       *testing.T
	srv     *httptest.Server
	reg     *registry.Registry
	sess    *session.Session
	tickets ticketTable
	metrics *metrics.Metrics
}

func newEnv(t *testing.T) *env {
	t.Helper()
	reg := registry.New(registry.Config{}, session.Config{}, session.Deps{})
	t.Cleanup(reg.Shutdown)

	opts := []domain.Option{{ID: "a", Text: "A"}, {ID: "b", Text: "B"}}
	sess, err := reg.Create(registry.CreateParams{
		HostID:   "host",
		HostName: "Hostess",
		Title:    "Geography",
		Questions: []domain.Question{
			{ID: "q1", Prompt: "2+2?", Options: opts, CorrectOptionID: "a", DurationSeconds: 30},
		},
	})
	require.NoError(t, err)

	tickets := ticketTable{
		"host-token":   {ParticipantID: "host", SessionID: sess.ID(), Role: domain.RoleHost, DisplayName: "Hostess"},
		"ann-token":    {ParticipantID: "ann", SessionID: sess.ID(), Role: domain.RolePlayer, DisplayName: "Ann"},
		"ghost-token":  {ParticipantID: "ghost", SessionID: "missing", Role: domain.RolePlayer},
		"impostor-tok": {ParticipantID: "ann", SessionID: sess.ID(), Role: domain.RoleHost},
	}
	m := metrics.New()
	ws := NewServer(reg, tickets, m, Config{PingInterval: time.Hour})

	srv := httptest.NewServer(http.HandlerFunc(ws.HandleWS))
	t.Cleanup(srv.Close)
	return &env{t: t, srv: srv, reg: reg, sess: sess, tickets: tickets, metrics: m}
}

func (e *env) dial(token string) *websocket.Conn {
	e.t.Helper()
	url := "ws" + strings.TrimPrefix(e.srv.URL, "http") + "/ws?token=" + token
	c, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(e.t, err)
	e.t.Cleanup(func() { _ = c.Close() })
	return c
}

func send(t *testing.T, c *websocket.Conn, typ, ref string, payload any) {
	t.Helper()
	msg := map[string]any{"type": typ, "ref": ref}
	if payload != nil {
		msg["payload"] = payload
	}
	require.NoError(t, c.WriteJSON(msg))
}

// await reads frames until one of type typ arrives.
func await(t *testing.T, c *websocket.Conn, typ string) frame {
	t.Helper()
	require.NoError(t, c.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		var f frame
		require.NoError(t, c.ReadJSON(&f), "waiting for %s", typ)
		if f.Type == typ {
			return f
		}
	}
}

func awaitClose(t *testing.T, c *websocket.Conn) int {
	t.Helper()
	require.NoError(t, c.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		_, _, err := c.ReadMessage()
		if err == nil {
			continue
		}
		var ce *websocket.CloseError
		require.ErrorAs(t, err, &ce)
		return ce.Code
	}
}

func TestHandleWS_Unauthorized(t *testing.T) {
	e := newEnv(t)

	assert.Equal(t, broadcast.CloseUnauthorized, awaitClose(t, e.dial("nope")))
	assert.Equal(t, broadcast.CloseUnauthorized, awaitClose(t, e.dial("ghost-token")))
	assert.EqualValues(t, 2, e.metrics.Snapshot().Unauthorized)
}

func TestHandleWS_RoleMismatchCloses(t *testing.T) {
	e := newEnv(t)
	c := e.dial("impostor-tok")

	f := await(t, c, TypeError)
	assert.Contains(t, string(f.Payload), string(domain.CodeNotHost))
	assert.Equal(t, broadcast.CloseUnauthorized, awaitClose(t, c))
}

func TestHandleWS_QuestionRoundTrip(t *testing.T) {
	e := newEnv(t)

	host := e.dial("host-token")
	state := await(t, host, string(domain.EventSessionState))
	assert.Contains(t, string(state.Payload), `"state":"lobby"`)

	ann := e.dial("ann-token")
	await(t, ann, string(domain.EventSessionState))
	lobby := await(t, host, string(domain.EventLobbyUpdated))
	assert.Contains(t, string(lobby.Payload), `"ann"`)

	send(t, host, TypeStartSession, "r1", nil)
	ack := await(t, host, TypeAck)
	assert.Equal(t, "r1", ack.Ref)

	q := await(t, ann, string(domain.EventQuestionStarted))
	assert.Contains(t, string(q.Payload), `"questionId":"q1"`)
	assert.NotContains(t, string(q.Payload), "correct")

	send(t, ann, TypeSubmitAnswer, "s1", SubmitPayload{QuestionID: "q1", OptionID: "a"})
	rec := await(t, ann, string(domain.EventAnswerRecorded))
	assert.NotZero(t, rec.Seq)
	assert.Equal(t, "s1", await(t, ann, TypeAck).Ref)

	send(t, ann, TypeSubmitAnswer, "s2", SubmitPayload{QuestionID: "q1", OptionID: "b"})
	dup := await(t, ann, TypeError)
	assert.Equal(t, "s2", dup.Ref)
	assert.Contains(t, string(dup.Payload), string(domain.CodeDuplicateSubmission))

	send(t, ann, TypeGetState, "g1", nil)
	snap := await(t, ann, string(domain.EventSessionState))
	assert.Equal(t, "g1", snap.Ref)
	assert.Contains(t, string(snap.Payload), `"state":"question_live"`)
}

func TestHandleWS_SubmitRateLimit(t *testing.T) {
	e := newEnv(t)
	ann := e.dial("ann-token")
	await(t, ann, string(domain.EventSessionState))

	// в лобби каждая попытка отклоняется сессией, но всё равно расходует лимит
	for i := 0; i < 10; i++ {
		send(t, ann, TypeSubmitAnswer, "", SubmitPayload{QuestionID: "q1", OptionID: "a"})
		f := await(t, ann, TypeError)
		require.Contains(t, string(f.Payload), string(domain.CodeWrongState))
	}
	send(t, ann, TypeSubmitAnswer, "x", SubmitPayload{QuestionID: "q1", OptionID: "a"})
	f := await(t, ann, TypeError)
	assert.Equal(t, "x", f.Ref)
	assert.Contains(t, string(f.Payload), string(domain.CodeRateLimited))
	assert.EqualValues(t, 1, e.metrics.Snapshot().RateLimitViolations)
}

func TestHandleWS_UnknownQuestionsShareLimit(t *testing.T) {
	e := newEnv(t)
	ann := e.dial("ann-token")
	await(t, ann, string(domain.EventSessionState))

	for i := 0; i < 10; i++ {
		send(t, ann, TypeSubmitAnswer, "", SubmitPayload{QuestionID: fmt.Sprintf("bogus-%d", i), OptionID: "a"})
		await(t, ann, TypeError)
	}
	send(t, ann, TypeSubmitAnswer, "x", SubmitPayload{QuestionID: "bogus-new", OptionID: "a"})
	f := await(t, ann, TypeError)
	assert.Equal(t, "x", f.Ref)
	assert.Contains(t, string(f.Payload), string(domain.CodeRateLimited))

	// лимит настоящего вопроса не тронут
	send(t, ann, TypeSubmitAnswer, "q", SubmitPayload{QuestionID: "q1", OptionID: "a"})
	f = await(t, ann, TypeError)
	assert.Equal(t, "q", f.Ref)
	assert.Contains(t, string(f.Payload), string(domain.CodeWrongState))
}

func TestHandleWS_HostSecondSocketRejected(t *testing.T) {
	e := newEnv(t)
	host := e.dial("host-token")
	await(t, host, string(domain.EventSessionState))
	ann := e.dial("ann-token")
	await(t, ann, string(domain.EventSessionState))

	send(t, host, TypeStartSession, "go", nil)
	await(t, host, TypeAck)

	second := e.dial("host-token")
	f := await(t, second, TypeError)
	assert.Contains(t, string(f.Payload), string(domain.CodeWrongState))
	assert.Equal(t, broadcast.CloseRejected, awaitClose(t, second))
}

func TestCloseCodeFor(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{domain.ErrUnauthorized, broadcast.CloseUnauthorized},
		{domain.ErrNotHost, broadcast.CloseUnauthorized},
		{domain.Invalid(domain.CodeRoleMismatch, "role", nil), broadcast.CloseUnauthorized},
		{domain.Invalid(domain.CodeParticipantRemoved, "removed", nil), broadcast.CloseRemoved},
		{domain.ErrSessionClosed, broadcast.CloseSessionClosed},
		{domain.Invalid(domain.CodeWrongState, "state", nil), broadcast.CloseRejected},
		{domain.Internal("boom", nil), websocket.CloseInternalServerErr},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.code, closeCodeFor(tc.err), string(domain.CodeOf(tc.err)))
	}
}

func TestHandleWS_MalformedFrames(t *testing.T) {
	e := newEnv(t)
	ann := e.dial("ann-token")
	await(t, ann, string(domain.EventSessionState))

	require.NoError(t, ann.WriteMessage(websocket.TextMessage, []byte("{not json")))
	f := await(t, ann, TypeError)
	assert.Contains(t, string(f.Payload), string(domain.CodeInvalidMessage))

	send(t, ann, "dance", "d1", nil)
	f = await(t, ann, TypeError)
	assert.Equal(t, "d1", f.Ref)
	assert.Contains(t, string(f.Payload), string(domain.CodeInvalidMessage))
}

func TestHandleWS_RemovedParticipantClosed(t *testing.T) {
	e := newEnv(t)
	host := e.dial("host-token")
	await(t, host, string(domain.EventSessionState))
	ann := e.dial("ann-token")
	await(t, ann, string(domain.EventSessionState))

	send(t, host, TypeRemoveParticipant, "rm", TargetPayload{ParticipantID: "ann"})
	assert.Equal(t, "rm", await(t, host, TypeAck).Ref)

	removed := await(t, ann, string(domain.EventParticipantRemoved))
	assert.Contains(t, string(removed.Payload), domain.ReasonRemovedByHost)
	assert.Equal(t, broadcast.CloseRemoved, awaitClose(t, ann))

	again := e.dial("ann-token")
	assert.Contains(t, string(await(t, again, TypeError).Payload), string(domain.CodeParticipantRemoved))
	assert.Equal(t, broadcast.CloseRemoved, awaitClose(t, again))
}

func TestHandleWS_SessionEndClosesConnections(t *testing.T) {
	e := newEnv(t)
	host := e.dial("host-token")
	await(t, host, string(domain.EventSessionState))
	ann := e.dial("ann-token")
	await(t, ann, string(domain.EventSessionState))

	send(t, host, TypeEndSession, "end", nil)
	await(t, ann, string(domain.EventSessionCompleted))
	assert.Equal(t, broadcast.CloseSessionClosed, awaitClose(t, ann))
}
