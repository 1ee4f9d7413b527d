package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"
)

// WebSocketRoutes is implemented by the gateway handler; kept as an interface
// so the API can run without a gateway in tests.
type WebSocketRoutes interface {
	HandleDraftConnection(w http.ResponseWriter, r *http.Request)
	HandleConnectionStats(w http.ResponseWriter, r *http.Request)
}

// NewRouter assembles the full HTTP surface: REST API, WebSocket endpoints
// and health check. ws may be nil.
func NewRouter(h *Handler, ws WebSocketRoutes, allowedOrigins []string) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", h.Healthz)

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Timeout(30 * time.Second))

		r.Route("/drafts", func(r chi.Router) {
			r.Post("/", h.CreateDraft)
			r.Route("/{draftID}", func(r chi.Router) {
				r.Get("/", h.GetSnapshot)
				r.Get("/events", h.ListEvents)
				r.Post("/start", h.StartDraft)
				r.Post("/pause", h.PauseDraft)
				r.Post("/resume", h.ResumeDraft)
				r.Post("/cancel", h.CancelDraft)
				r.Post("/picks", h.SubmitPick)
				r.Post("/tick", h.TickDraft)
				r.Route("/seats/{seatNumber}/autodraft", func(r chi.Router) {
					r.Get("/", h.GetAutodraft)
					r.Put("/", h.PutAutodraft)
				})
			})
		})

		r.Route("/plans", func(r chi.Router) {
			r.Post("/", h.CreatePlan)
			r.Get("/{planID}", h.GetPlan)
		})
	})

	if ws != nil {
		r.Get("/ws/draft", ws.HandleDraftConnection)
		r.Get("/ws/stats", ws.HandleConnectionStats)
	}

	c := cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           300,
	})
	return c.Handler(r)
}

// requestLogger logs one line per request with zerolog.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("http request")
	})
}
