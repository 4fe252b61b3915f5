package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/cwrk-planet/live-quiz/internal/domain"
	"github.com/cwrk-planet/live-quiz/internal/metrics"
	"github.com/cwrk-planet/live-quiz/internal/registry"
	"github.com/cwrk-planet/live-quiz/internal/session"
	httpmw "github.com/cwrk-planet/live-quiz/internal/transport/http/middleware"
)

type Registry interface {
	Create(p registry.CreateParams) (*session.Session, error)
	Get(id string) (*session.Session, error)
	ByCode(code string) (*session.Session, error)
	Page(limit int, cursor string) ([]registry.Info, string, error)
}

// maxCreateBody ограничивает тело POST /internal/sessions (квиз целиком).
const maxCreateBody = 1 << 20

type Handler struct {
	reg     Registry
	metrics *metrics.Metrics
}

func NewHandler(reg Registry, m *metrics.Metrics) *Handler {
	if m == nil {
		m = metrics.New()
	}
	return &Handler{reg: reg, metrics: m}
}

// POST /internal/sessions
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxCreateBody)

	var req CreateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, ErrorResponse{Error: ErrorBody{
				Code:    domain.CodeInvalidMessage,
				Message: "request body too large",
				Details: map[string]any{"limit": tooLarge.Limit},
			}})
			return
		}
		writeError(w, domain.Invalid(domain.CodeInvalidMessage, "invalid json", nil))
		return
	}

	s, err := h.reg.Create(registry.CreateParams{
		HostID:    req.HostID,
		HostName:  req.HostName,
		Title:     req.Title,
		Questions: req.Questions,
	})
	switch {
	case errors.Is(err, registry.ErrCapacity), errors.Is(err, registry.ErrCodeUnavailable):
		writeJSON(w, http.StatusServiceUnavailable, ErrorResponse{Error: ErrorBody{Code: domain.CodeInternal, Message: err.Error()}})
		return
	case err != nil:
		writeError(w, err)
		return
	}
	h.metrics.SessionCreated()

	writeJSON(w, http.StatusCreated, CreateSessionResponse{
		ID:        s.ID(),
		JoinCode:  s.JoinCode(),
		State:     s.State(),
		CreatedAt: s.CreatedAt(),
	})
}

// GET /internal/sessions?limit=&cursor=
func (h *Handler) ListSessions(w http.ResponseWriter, r *http.Request) {
	limit := registry.DefaultPageSize
	if s := r.URL.Query().Get("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			limit = n
		}
	}

	items, next, err := h.reg.Page(limit, r.URL.Query().Get("cursor"))
	if err != nil {
		if errors.Is(err, registry.ErrInvalidCursor) {
			writeError(w, domain.Invalid(domain.CodeInvalidMessage, "invalid_cursor", nil))
			return
		}
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ListSessionsResponse{Items: items, NextCursor: next})
}

// GET /sessions/{id}
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ticket, ok := httpmw.TicketFromCtx(r.Context())
	if !ok || ticket.SessionID != id {
		writeError(w, domain.Invalid(domain.CodeUnauthorized, "ticket is not valid for this session", nil))
		return
	}

	s, err := h.reg.Get(id)
	if err != nil {
		writeError(w, err)
		return
	}
	snap, err := s.Snapshot(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// GET /sessions/by-code/{code}
func (h *Handler) LookupCode(w http.ResponseWriter, r *http.Request) {
	s, err := h.reg.ByCode(chi.URLParam(r, "code"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, CodeLookupResponse{ID: s.ID(), Title: s.Title(), State: s.State()})
}

// GET /metrics
func (h *Handler) Metrics(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.metrics.Snapshot())
}
