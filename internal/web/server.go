// Package web serves the trip over a small JSON HTTP API.
package web

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"

	"github.com/hpungsan/tripkit/internal/app"
	"github.com/hpungsan/tripkit/internal/logging"
)

// maxBodyBytes caps request bodies; the largest legitimate body is one stop.
const maxBodyBytes = 64 << 10

// NewRouter builds the API routes over a.
func NewRouter(a *app.App) http.Handler {
	h := &Handlers{app: a, log: logging.Component(a.Log, "web")}

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(requestLogger(h.log))
	r.Use(chimiddleware.Recoverer)
	r.Use(securityHeaders)
	if len(a.Config.CORSOrigins) > 0 {
		r.Use(corsHandler(a.Config.CORSOrigins))
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/itinerary", h.HandleItinerary)
		r.Get("/days/{id}", h.HandleDay)
		r.Post("/days/{id}/items", h.HandleAddItem)

		r.Get("/items/{id}", h.HandleItem)
		r.Patch("/items/{id}", h.HandleUpdateItem)
		r.Delete("/items/{id}", h.HandleDeleteItem)
		r.Post("/items/{id}/checkin", h.HandleCheckIn)
		r.Put("/items/{id}/checkin", h.HandleSetCheckIn)

		r.Get("/checklist", h.HandleChecklist)
		r.Post("/checklist/{group}/{item}/toggle", h.HandleChecklistToggle)

		r.Get("/expenses", h.HandleExpenses)
		r.Get("/vouchers", h.HandleVouchers)
		r.Get("/weather", h.HandleWeather)
	})

	return r
}

// NewServer creates the HTTP server for `trip serve`.
func NewServer(a *app.App, bind string, port int) *http.Server {
	return &http.Server{
		Addr:              fmt.Sprintf("%s:%d", bind, port),
		Handler:           NewRouter(a),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func corsHandler(origins []string) func(http.Handler) http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
	})
	return c.Handler
}

// requestLogger writes one log line per request.
func requestLogger(log logrus.FieldLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			log.WithFields(logging.Fields{
				"method":      r.Method,
				"path":        r.URL.Path,
				"status":      ww.Status(),
				"duration_ms": time.Since(start).Milliseconds(),
				"request_id":  chimiddleware.GetReqID(r.Context()),
			}).Info("request")
		})
	}
}

// securityHeaders adds security-related HTTP headers to all responses.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}

// Run starts the HTTP server and handles graceful shutdown on SIGINT/SIGTERM.
func Run(srv *http.Server, log logrus.FieldLogger) error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	log.WithField("addr", srv.Addr).Info("trip API listening")

	if strings.Contains(srv.Addr, "0.0.0.0") || strings.Contains(srv.Addr, "::") {
		log.Warn("server is binding to all interfaces and may be accessible from the network")
	}

	select {
	case err := <-errCh:
		return err
	case <-sigCh:
		log.Info("shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(ctx)
	}
}
