package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// Routes builds the router for every endpoint of the query surface.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.HealthCheck)

	r.Route("/api", func(r chi.Router) {
		r.Get("/timestamps", s.Timestamps)

		r.Route("/t/{t}", func(r chi.Router) {
			r.Get("/nodes", s.ListNodes)
			r.Get("/nodes/{id}", s.GetNode)
			r.Get("/ego", s.Ego)
			r.Get("/path", s.Path)
			r.Get("/lineage/{id}", s.Lineage)
			r.Get("/centrality", s.Centrality)
			r.Get("/fulfillment", s.Fulfillment)
			r.Get("/analytics/{kind}", s.Analytics)
			r.Get("/warehouses/{id}/parts", s.WarehouseParts)
			r.Get("/warehouses/{id}/suppliers", s.WarehouseSuppliers)
		})

		r.Get("/products/top", s.TopDemand)
		r.Get("/products/{id}/series", s.ProductSeries)
		r.Get("/families/averages", s.FamilyAverages)
	})

	return r
}

// requestLogger logs each request and records it in the collector under
// its route pattern, so /api/t/3/ego and /api/t/4/ego share a series.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		took := time.Since(start)

		s.metrics.RecordRequest(r.Method, route, status, took)
		s.logger.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("route", route),
			zap.Int("status", status),
			zap.Duration("took", took),
			zap.String("request_id", middleware.GetReqID(r.Context())))
	})
}
