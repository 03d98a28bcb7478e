// internal/controller/router.go
package controller

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/unclebandit/outreach-engine/internal/handler"
)

// NewRouter mounts every outreach route.
func NewRouter(outreach *OutreachController, catalog *handler.CatalogHandler, tracking *handler.TrackingHandler, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(logger))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		handler.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/track/open", tracking.OpenPixelHandler)

	r.Group(func(r chi.Router) {
		r.Use(handler.RequireOperator)

		r.Get("/queue", outreach.GetQueue)
		r.Route("/prospects/{id}", func(r chi.Router) {
			r.Post("/send", outreach.Send)
			r.Post("/skip", outreach.Skip)
			r.Post("/replied", outreach.MarkReplied)
			r.Post("/enroll", outreach.Enroll)
			r.Post("/personalize", outreach.Personalize)
			r.Get("/history", outreach.History)
		})

		r.Get("/catalog", catalog.GetCatalogHandler)
		r.Put("/catalog", catalog.PutCatalogHandler)
		r.Put("/catalog/campaigns/{id}", catalog.PutCampaignHandler)
	})
	return r
}

func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Debug("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("took", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())))
		})
	}
}
