package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwrk-planet/live-quiz/internal/domain"
	"github.com/cwrk-planet/live-quiz/internal/metrics"
	"github.com/cwrk-planet/live-quiz/internal/registry"
	"github.com/cwrk-planet/live-quiz/internal/security"
	"github.com/cwrk-planet/live-quiz/internal/session"
	httpmw "github.com/cwrk-planet/live-quiz/internal/transport/http/middleware"
)

const serviceToken = "svc-token"

type ticketTable map[string]security.Ticket

func (tt ticketTable) Verify(token string) (security.Ticket, error) {
	t, ok := tt[token]
	if !ok {
		return security.Ticket{}, errors.New("bad token")
	}
	return t, nil
}

type fixture struct {
	router  http.Handler
	reg     *registry.Registry
	tickets ticketTable
	metrics *metrics.Metrics
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	reg := registry.New(registry.Config{}, session.Config{}, session.Deps{})
	t.Cleanup(reg.Shutdown)

	m := metrics.New()
	m.TrackSessions(reg.Len)
	tickets := ticketTable{}
	router := NewRouter(Deps{
		Handler:      NewHandler(reg, m),
		Tickets:      tickets,
		ServiceToken: serviceToken,
	})
	return &fixture{router: router, reg: reg, tickets: tickets, metrics: m}
}

func (f *fixture) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func createBody() CreateSessionRequest {
	return CreateSessionRequest{
		HostID:   "host-1",
		HostName: "Host",
		Title:    "Trivia night",
		Questions: []domain.Question{{
			ID:              "q1",
			Prompt:          "2+2?",
			Options:         []domain.Option{{ID: "a", Text: "4"}, {ID: "b", Text: "5"}},
			CorrectOptionID: "a",
			DurationSeconds: 15,
		}},
	}
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestCreateSession(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/internal/sessions", serviceToken, createBody())
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get(httpmw.HeaderRequestID))

	resp := decodeBody[CreateSessionResponse](t, rec)
	assert.NotEmpty(t, resp.ID)
	assert.Len(t, resp.JoinCode, 6)
	assert.Equal(t, domain.StateLobby, resp.State)
	assert.EqualValues(t, 1, f.metrics.Snapshot().SessionsCreated)
	assert.Equal(t, 1, f.metrics.Snapshot().LiveSessions)
}

func TestCreateSession_Rejections(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/internal/sessions", "wrong", createBody())
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	bad := createBody()
	bad.Questions[0].CorrectOptionID = "zzz"
	rec = f.do(t, http.MethodPost, "/internal/sessions", serviceToken, bad)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, domain.CodeInvalidContent, decodeBody[ErrorResponse](t, rec).Error.Code)

	req := httptest.NewRequest(http.MethodPost, "/internal/sessions", bytes.NewBufferString("{"))
	req.Header.Set("Authorization", "Bearer "+serviceToken)
	out := httptest.NewRecorder()
	f.router.ServeHTTP(out, req)
	assert.Equal(t, http.StatusBadRequest, out.Code)
}

func TestCreateSession_BodyTooLarge(t *testing.T) {
	f := newFixture(t)

	huge := createBody()
	huge.Title = strings.Repeat("x", maxCreateBody)
	rec := f.do(t, http.MethodPost, "/internal/sessions", serviceToken, huge)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, domain.CodeInvalidMessage, decodeBody[ErrorResponse](t, rec).Error.Code)
	assert.Zero(t, f.reg.Len())
}

func TestLookupCode(t *testing.T) {
	f := newFixture(t)
	created := decodeBody[CreateSessionResponse](t, f.do(t, http.MethodPost, "/internal/sessions", serviceToken, createBody()))

	rec := f.do(t, http.MethodGet, "/sessions/by-code/"+created.JoinCode, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decodeBody[CodeLookupResponse](t, rec)
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, "Trivia night", got.Title)

	rec = f.do(t, http.MethodGet, "/sessions/by-code/NOPE99", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, domain.CodeSessionNotFound, decodeBody[ErrorResponse](t, rec).Error.Code)
}

func TestGetSession_RequiresMatchingTicket(t *testing.T) {
	f := newFixture(t)
	created := decodeBody[CreateSessionResponse](t, f.do(t, http.MethodPost, "/internal/sessions", serviceToken, createBody()))

	f.tickets["good"] = security.Ticket{ParticipantID: "host-1", SessionID: created.ID, Role: domain.RoleHost}
	f.tickets["other"] = security.Ticket{ParticipantID: "p", SessionID: "elsewhere", Role: domain.RolePlayer}

	assert.Equal(t, http.StatusUnauthorized, f.do(t, http.MethodGet, "/sessions/"+created.ID, "", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, f.do(t, http.MethodGet, "/sessions/"+created.ID, "bogus", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, f.do(t, http.MethodGet, "/sessions/"+created.ID, "other", nil).Code)

	rec := f.do(t, http.MethodGet, "/sessions/"+created.ID, "good", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	snap := decodeBody[domain.Snapshot](t, rec)
	assert.Equal(t, created.ID, snap.SessionID)
	assert.Equal(t, domain.StateLobby, snap.State)
	assert.Equal(t, 1, snap.QuestionCount)
}

func TestListSessions_Paginates(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 3; i++ {
		f.do(t, http.MethodPost, "/internal/sessions", serviceToken, createBody())
	}

	first := decodeBody[ListSessionsResponse](t, f.do(t, http.MethodGet, "/internal/sessions?limit=2", serviceToken, nil))
	assert.Len(t, first.Items, 2)
	require.NotEmpty(t, first.NextCursor)

	second := decodeBody[ListSessionsResponse](t, f.do(t, http.MethodGet, "/internal/sessions?limit=2&cursor="+first.NextCursor, serviceToken, nil))
	assert.Len(t, second.Items, 1)
	assert.Empty(t, second.NextCursor)

	rec := f.do(t, http.MethodGet, "/internal/sessions?cursor=***", serviceToken, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decodeBody[HealthResponse](t, rec).Status)

	rec = f.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"live_sessions":0`)
}

func TestHealthz_ReportsFailingDependency(t *testing.T) {
	router := NewRouter(Deps{
		Handler: NewHandler(registry.New(registry.Config{}, session.Config{}, session.Deps{}), nil),
		Health: map[string]HealthCheck{
			"postgres": func(context.Context) error { return errors.New("connection refused") },
			"redis":    func(context.Context) error { return nil },
		},
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	resp := decodeBody[HealthResponse](t, rec)
	assert.Equal(t, "degraded", resp.Status)
	assert.Equal(t, map[string]string{"postgres": "connection refused", "redis": "ok"}, resp.Checks)
}
