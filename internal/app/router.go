package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/dyetrack/dyetrack/internal/dashboard"
	"github.com/dyetrack/dyetrack/internal/dispatch"
	"github.com/dyetrack/dyetrack/internal/intake"
	"github.com/dyetrack/dyetrack/internal/observability"
	"github.com/dyetrack/dyetrack/internal/records"
	"github.com/dyetrack/dyetrack/internal/shared"
	"github.com/dyetrack/dyetrack/report"
	"github.com/dyetrack/dyetrack/web"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	SessionManager *shared.SessionManager
	CSRFManager    *shared.CSRFManager
	Metrics        *observability.Metrics

	DashboardHandler *dashboard.Handler
	IntakeHandler    *intake.Handler
	DispatchHandler  *dispatch.Handler
	RecordsHandler   *records.Handler
	ReportHandler    *report.Handler
}

// NewRouter constructs the chi.Router with dyetrack defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	mwConfig := MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		CSRFManager:    params.CSRFManager,
		Metrics:        params.Metrics,
	}
	for _, mw := range MiddlewareStack(mwConfig) {
		r.Use(mw)
	}
	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	if params.ReportHandler != nil {
		r.Route("/report", params.ReportHandler.MountRoutes)
	}

	if static, err := web.StaticHandler("/static/"); err != nil {
		params.Logger.Error("mount static assets", slog.Any("error", err))
	} else {
		r.Handle("/static/*", static)
	}

	r.Group(func(r chi.Router) {
		for _, mw := range PageMiddleware(mwConfig) {
			r.Use(mw)
		}
		if params.DashboardHandler != nil {
			params.DashboardHandler.MountRoutes(r)
		}
		if params.IntakeHandler != nil {
			params.IntakeHandler.MountRoutes(r)
		}
		if params.DispatchHandler != nil {
			params.DispatchHandler.MountRoutes(r)
		}
		if params.RecordsHandler != nil {
			params.RecordsHandler.MountRoutes(r)
		}
	})

	return r
}
