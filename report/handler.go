package report

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dyetrack/dyetrack/internal/platform/httpx"
)

// Renderer states reported by GET /report/ping.
const (
	StatusOK          = "ok"
	StatusDisabled    = "disabled"
	StatusUnavailable = "unavailable"
)

type pingResponse struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// Handler lets operators check whether PDF exports can currently be served.
type Handler struct {
	client *Client
	logger *slog.Logger
}

// NewHandler wires the ping endpoint to client. A nil logger discards output.
func NewHandler(client *Client, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Handler{client: client, logger: logger}
}

// MountRoutes registers the report routes on r.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/ping", h.ping)
}

func (h *Handler) ping(w http.ResponseWriter, r *http.Request) {
	err := h.client.Ping(r.Context())
	switch {
	case err == nil:
		httpx.JSON(w, http.StatusOK, pingResponse{Status: StatusOK})
	case errors.Is(err, ErrDisabled):
		httpx.JSON(w, http.StatusOK, pingResponse{Status: StatusDisabled})
	default:
		h.logger.Warn("pdf renderer ping", slog.Any("error", err))
		httpx.JSON(w, http.StatusServiceUnavailable, pingResponse{Status: StatusUnavailable, Error: err.Error()})
	}
}
