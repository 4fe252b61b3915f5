package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	httpmw "github.com/cwrk-planet/live-quiz/internal/transport/http/middleware"
)

type Deps struct {
	Handler      *Handler
	Tickets      httpmw.TicketVerifier
	WS           http.HandlerFunc
	ServiceToken string
	CORSOrigins  []string
	// Health — проверки зависимостей для /healthz; nil — только liveness.
	Health map[string]HealthCheck
}

func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(httpmw.MiddlewareRequestID)
	r.Use(httpmw.MiddlewareLogging)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// WS endpoint: апгрейд без таймаута
	if d.WS != nil {
		r.Get("/ws", d.WS)
	}

	r.Group(func(pr chi.Router) {
		pr.Use(middleware.Timeout(30 * time.Second))

		pr.Get("/sessions/by-code/{code}", d.Handler.LookupCode)

		pr.With(httpmw.RequireTicket(d.Tickets)).Get("/sessions/{id}", d.Handler.GetSession)

		// межсервисные маршруты
		pr.Route("/internal/sessions", func(ir chi.Router) {
			ir.Use(httpmw.RequireServiceToken(d.ServiceToken))
			ir.Post("/", d.Handler.CreateSession)
			ir.Get("/", d.Handler.ListSessions)
		})

		pr.Get("/metrics", d.Handler.Metrics)
	})

	// health
	r.Get("/healthz", healthz(d.Health))

	return r
}
