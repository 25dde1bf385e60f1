package router

import (
	"log/slog"
	"net/http"

	"mediastore/internal/config"
	"mediastore/internal/handlers"
	"mediastore/internal/middleware"
	"mediastore/internal/telemetry"

	"go.opentelemetry.io/otel/trace"
)

// RouterDependencies holds everything needed to register routes.
type RouterDependencies struct {
	Cfg            *config.Config
	Logger         *slog.Logger
	PictureHandler *handlers.PictureHandler
	MediaHandler   *handlers.MediaHandler
	Limiter        *middleware.IPRateLimiter
	Tracer         trace.Tracer
	Metrics        *telemetry.Metrics
	Telemetry      *telemetry.Telemetry
}

func NewRouter(deps RouterDependencies) http.Handler {
	// routing
	appMux := http.NewServeMux()

	// static files (default picture placeholders live here)
	fs := http.FileServer(http.Dir("static"))
	appMux.Handle("GET /static/", http.StripPrefix("/static/", fs))

	// public media
	appMux.Handle("GET /media/image/{id}/{file}", deps.MediaHandler)

	// admin API
	appMux.Handle("POST /api/pictures", deps.PictureHandler.HandleUpload())
	appMux.Handle("GET /api/pictures", deps.PictureHandler.HandleList())
	appMux.Handle("GET /api/pictures/{id}", deps.PictureHandler.HandleGet())
	appMux.Handle("PUT /api/pictures/{id}/seo-filename", deps.PictureHandler.HandleSetSeoFilename())
	appMux.Handle("DELETE /api/pictures/{id}", deps.PictureHandler.HandleDelete())
	appMux.Handle("GET /api/products/{id}/pictures", deps.PictureHandler.HandleListByProduct())
	appMux.Handle("PUT /api/products/{id}/pictures/{pictureID}", deps.PictureHandler.HandleAssignToProduct())
	appMux.Handle("DELETE /api/products/{id}/pictures/{pictureID}", deps.PictureHandler.HandleUnassignFromProduct())

	middlewareStack := []middleware.Middleware{
		middleware.Recover(deps.Logger),
	}

	if deps.Cfg.Metrics.EnableTelemetry {
		// order matters so don't append
		middlewareStack = append(middlewareStack, middleware.Observability(deps.Tracer, deps.Metrics, deps.Logger))
	}

	middlewareStack = append(middlewareStack,
		deps.Limiter.Middleware(deps.Logger),
		middleware.Logger(deps.Logger), // Inner logger (shows simple text logs)
	)

	appHandler := middleware.Chain(appMux, middlewareStack...)

	rootMux := http.NewServeMux()

	if deps.Telemetry != nil && deps.Telemetry.PrometheusHandler != nil {
		rootMux.Handle("GET /metrics", deps.Telemetry.PrometheusHandler)
	}

	// lightweight for docker keepalive
	rootMux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	rootMux.Handle("/", appHandler)

	return rootMux
}
