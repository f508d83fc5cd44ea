package main

import (
	"crypto/subtle"
	"net/http"
	"time"

	"metabuild/internal/logging"
	"metabuild/internal/metrics"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// routes builds the HTTP router
func (a *App) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(requestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)

	r.Get("/health", a.handleHealth)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/ws/live", a.handleLive)

	r.Group(func(r chi.Router) {
		r.Use(httprate.LimitByIP(a.cfg.Server.RequestsPerMinute, time.Minute))
		r.Use(recordMetrics)

		r.Get("/meta", a.handleMeta)
		r.Post("/recommend", a.handleRecommend)
		r.Post("/coach/ask", a.handleCoachAsk)
		r.Get("/items/{name}/purpose", a.handleItemPurpose)

		r.Route("/cron", func(r chi.Router) {
			r.Use(a.requireCronSecret)
			r.Post("/refresh", a.handleCronRefresh)
			r.Post("/patch", a.handleCronPatch)
		})
	})

	return r
}

// requestID reuses an inbound X-Request-ID or generates one
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" || len(id) > 128 {
			id = logging.GenerateRequestID()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(logging.ContextWithRequestID(r.Context(), id)))
	})
}

// recordMetrics observes status and latency per route pattern
func recordMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = "unmatched"
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		metrics.RecordHTTPRequest(route, r.Method, status, time.Since(start))
	})
}

// requireCronSecret rejects cron calls without the shared secret when one is configured
func (a *App) requireCronSecret(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		secret := a.cfg.Server.CronSecret
		if secret != "" && subtle.ConstantTimeCompare([]byte(r.Header.Get("x-cron-secret")), []byte(secret)) != 1 {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
			return
		}
		next.ServeHTTP(w, r)
	})
}
