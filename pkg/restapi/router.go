package restapi

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/isaackogan/TikTokLive-Server/internal/metrics"
)

type RouterOpts struct {
	Logger   zerolog.Logger
	Manager  Manager
	Sessions SessionGetter

	// Timeout bounds plain HTTP requests. WebSocket connections are
	// long-lived and are deliberately not subject to it.
	Timeout time.Duration
}

func NewRouter(opts RouterOpts) http.Handler {
	r := chi.NewRouter()

	r.Use(metricsMiddleware)

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	ws := newWSHandler(opts.Logger, opts.Manager)

	r.Route("/ws", func(r chi.Router) {
		r.With(middleware.Timeout(opts.Timeout)).Get("/stats", ws.getStats)
		r.Get("/", ws.serve)
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Timeout(opts.Timeout))

		newRoomHandler(opts.Manager).handle(r)
		newSessionHandler(opts.Sessions).handle(r)
	})

	return r
}

func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		rctx := chi.RouteContext(r.Context())
		routePattern := strings.Join(rctx.RoutePatterns, "")

		status := fmt.Sprintf("%d %s", ww.Status(), http.StatusText(ww.Status()))
		metrics.API.NewRequest(r.Method, routePattern, status, time.Since(start))
	})
}
