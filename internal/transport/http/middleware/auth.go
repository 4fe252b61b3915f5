package httpmw

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"

	"github.com/cwrk-planet/live-quiz/internal/domain"
	"github.com/cwrk-planet/live-quiz/internal/security"
)

const ctxKeyTicket ctxKey = "ticket"

type TicketVerifier interface {
	Verify(token string) (security.Ticket, error)
}

// RequireTicket — Bearer-билет подключения (тот же, что и для /ws).
func RequireTicket(v TicketVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := security.BearerToken(r.Header.Get("Authorization"))
			if token == "" {
				unauthorized(w, "missing bearer token")
				return
			}
			ticket, err := v.Verify(token)
			if err != nil {
				unauthorized(w, "invalid ticket")
				return
			}
			ctx := context.WithValue(r.Context(), ctxKeyTicket, ticket)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func TicketFromCtx(ctx context.Context) (security.Ticket, bool) {
	t, ok := ctx.Value(ctxKeyTicket).(security.Ticket)
	return t, ok
}

// RequireServiceToken — служебный токен для межсервисных вызовов (/internal/*).
func RequireServiceToken(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := security.BearerToken(r.Header.Get("Authorization"))
			if token == "" || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				unauthorized(w, "invalid service token")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{"code": domain.CodeUnauthorized, "message": msg},
	})
}
