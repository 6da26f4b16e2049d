package dashboard

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dyetrack/dyetrack/internal/batches"
	"github.com/dyetrack/dyetrack/internal/shared"
	"github.com/dyetrack/dyetrack/internal/view"
)

// BatchLister returns every batch.
type BatchLister interface {
	List(ctx context.Context) ([]batches.Batch, error)
}

// Handler serves the home page.
type Handler struct {
	logger    *slog.Logger
	batches   BatchLister
	templates *view.Engine
	csrf      *shared.CSRFManager
	now       func() time.Time
}

// NewHandler constructs the dashboard handler.
func NewHandler(logger *slog.Logger, lister BatchLister, templates *view.Engine, csrf *shared.CSRFManager) *Handler {
	return &Handler{logger: logger, batches: lister, templates: templates, csrf: csrf, now: time.Now}
}

// MountRoutes registers the home route.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.home)
}

type homePage struct {
	Stats      Stats
	LoadFailed bool
}

func (h *Handler) home(w http.ResponseWriter, r *http.Request) {
	now := h.now()
	data := view.NewPageData(r, h.csrf, "Dyeing Batch Tracker")
	data.Now = now

	page := homePage{}
	list, err := h.batches.List(r.Context())
	if err != nil {
		h.logger.Error("load dashboard batches", slog.Any("error", err))
		page.LoadFailed = true
		msg := shared.NewFlash(shared.FlashError, "Error loading dashboard data", 0)
		data.Notice = &msg
	} else {
		page.Stats = Compute(list, now)
	}
	data.Data = page

	if err := h.templates.Render(w, "pages/home.html", data); err != nil {
		h.logger.Error("render home", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}
