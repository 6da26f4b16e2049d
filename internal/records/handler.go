// Package records serves the batch list with its company filter, per-batch
// item and exit panels, and the CSV, XLSX and PDF exports.
package records

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"golang.org/x/sync/errgroup"

	"github.com/dyetrack/dyetrack/internal/batches"
	"github.com/dyetrack/dyetrack/internal/platform/httpx"
	"github.com/dyetrack/dyetrack/internal/records/export"
	"github.com/dyetrack/dyetrack/internal/reference"
	"github.com/dyetrack/dyetrack/internal/shared"
	"github.com/dyetrack/dyetrack/internal/view"
)

const itemFetchConcurrency = 4

// BatchStore is the part of the batch service the records page reads.
type BatchStore interface {
	List(ctx context.Context) ([]batches.Batch, error)
	Items(ctx context.Context, id int64) ([]batches.Item, error)
}

// PDFRenderer converts the report HTML to PDF; nil disables the PDF export.
type PDFRenderer interface {
	export.PDFRenderer
	Enabled() bool
}

// Handler wires the records routes.
type Handler struct {
	logger      *slog.Logger
	batches     BatchStore
	refs        reference.Repository
	templates   *view.Engine
	csrf        *shared.CSRFManager
	pdf         PDFRenderer
	exportLimit int
	now         func() time.Time
}

// NewHandler constructs the records handler. exportsPerMinute caps export
// downloads per client IP.
func NewHandler(logger *slog.Logger, store BatchStore, refs reference.Repository, templates *view.Engine, csrf *shared.CSRFManager, pdf PDFRenderer, exportsPerMinute int) *Handler {
	if exportsPerMinute <= 0 {
		exportsPerMinute = 10
	}
	return &Handler{logger: logger, batches: store, refs: refs, templates: templates, csrf: csrf, pdf: pdf, exportLimit: exportsPerMinute, now: time.Now}
}

// MountRoutes registers the records routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/view", h.list)
	r.Get("/view/batches/{id}/items", h.items)
	r.Group(func(r chi.Router) {
		r.Use(httprate.Limit(h.exportLimit, time.Minute, httprate.WithKeyFuncs(httprate.KeyByIP)))
		r.Get("/view/export.csv", h.exportCSV)
		r.Get("/view/export.xlsx", h.exportXLSX)
		r.Get("/view/export.pdf", h.exportPDF)
	})
}

type viewRow struct {
	Batch      batches.Batch
	Days       int
	Expanded   bool
	Items      []batches.Item
	TotalRolls int
	ItemsError string
	ShowExit   bool
	ExpandURL  string
	ExitURL    string
}

type viewPage struct {
	State      viewState
	Companies  []reference.Entity
	Rows       []viewRow
	Total      int
	PDFEnabled bool
}

func (h *Handler) loadAll(ctx context.Context) ([]batches.Batch, []reference.Entity, error) {
	var list []batches.Batch
	companies := reference.ForKind(h.refs, reference.Companies, nil)
	err := reference.LoadAll(ctx,
		reference.LoaderFunc(func(ctx context.Context) error {
			var err error
			list, err = h.batches.List(ctx)
			return err
		}),
		companies,
	)
	if err != nil {
		return nil, nil, err
	}
	return list, companies.Options(), nil
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	state := parseState(r.URL.Query())
	all, companies, err := h.loadAll(r.Context())
	if err != nil {
		h.logger.Error("load records", slog.Any("error", err))
		data := view.NewPageData(r, h.csrf, "Error")
		data.Data = view.LoadError{Message: "Error loading data", BackURL: "/", BackLabel: "Back to home"}
		h.execute(w, http.StatusBadGateway, "pages/load_error.html", data)
		return
	}

	filtered := batches.FilterByCompany(all, state.Company)
	now := h.now()
	page := viewPage{
		State:      state,
		Companies:  companies,
		Rows:       make([]viewRow, len(filtered)),
		Total:      len(all),
		PDFEnabled: h.pdf != nil && h.pdf.Enabled(),
	}
	for i, b := range filtered {
		page.Rows[i] = viewRow{
			Batch:     b,
			Days:      batches.DaysInSystem(b.InTime.Time, now),
			Expanded:  state.expanded(b.ID),
			ShowExit:  b.IsClosed() && state.exitShown(b.ID),
			ExpandURL: state.ToggleExpand(b.ID),
			ExitURL:   state.ToggleExit(b.ID),
		}
	}
	h.fillItems(r.Context(), page.Rows)

	data := view.NewPageData(r, h.csrf, "Batch Records")
	data.Now = now
	data.Data = page
	h.execute(w, http.StatusOK, "pages/view.html", data)
}

// fillItems loads items for expanded rows. A failed fetch marks only its own
// row; the rest of the page still renders.
func (h *Handler) fillItems(ctx context.Context, rows []viewRow) {
	var g errgroup.Group
	g.SetLimit(itemFetchConcurrency)
	for i := range rows {
		if !rows[i].Expanded {
			continue
		}
		row := &rows[i]
		g.Go(func() error {
			items, err := h.batches.Items(ctx, row.Batch.ID)
			if err != nil {
				h.logger.Warn("load batch items", slog.Int64("batch_id", row.Batch.ID), slog.Any("error", err))
				row.ItemsError = "Error loading items"
				return nil
			}
			row.Items = items
			row.TotalRolls = batches.TotalRolls(items)
			return nil
		})
	}
	_ = g.Wait()
}

type itemsResponse struct {
	BatchID    int64          `json:"batch_id"`
	Items      []batches.Item `json:"items"`
	TotalRolls int            `json:"total_rolls"`
}

func (h *Handler) items(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.RespondError(w, fmt.Errorf("%w: invalid batch id", httpx.ErrValidation))
		return
	}
	items, err := h.batches.Items(r.Context(), id)
	if err != nil {
		h.logger.Warn("load batch items", slog.Int64("batch_id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, itemsResponse{BatchID: id, Items: items, TotalRolls: batches.TotalRolls(items)})
}

// exportRows loads the list and applies the same company filter as the page.
func (h *Handler) exportRows(w http.ResponseWriter, r *http.Request) (string, []export.Row, bool) {
	company := r.URL.Query().Get("company")
	list, err := h.batches.List(r.Context())
	if err != nil {
		h.logger.Error("load batches for export", slog.Any("error", err))
		httpx.RespondError(w, err)
		return "", nil, false
	}
	return company, export.Rows(batches.FilterByCompany(list, company)), true
}

func (h *Handler) exportCSV(w http.ResponseWriter, r *http.Request) {
	_, rows, ok := h.exportRows(w, r)
	if !ok {
		return
	}
	h.logger.Info("export batches", slog.String("format", "csv"), slog.Int("rows", len(rows)))
	httpx.Attachment(w, httpx.ContentTypeCSV, export.Filename, export.CSV(rows))
}

func (h *Handler) exportXLSX(w http.ResponseWriter, r *http.Request) {
	_, rows, ok := h.exportRows(w, r)
	if !ok {
		return
	}
	data, err := export.XLSX(rows)
	if err != nil {
		h.logger.Error("build xlsx export", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Export Failed", "")
		return
	}
	h.logger.Info("export batches", slog.String("format", "xlsx"), slog.Int("rows", len(rows)))
	httpx.Attachment(w, httpx.ContentTypeXLSX, "batches.xlsx", data)
}

func (h *Handler) exportPDF(w http.ResponseWriter, r *http.Request) {
	if h.pdf == nil || !h.pdf.Enabled() {
		httpx.Problem(w, http.StatusNotFound, "Not Found", "PDF export is not configured")
		return
	}
	company, rows, ok := h.exportRows(w, r)
	if !ok {
		return
	}
	data, err := export.PDF(r.Context(), h.templates, h.pdf, export.NewDocument(company, rows, h.now()))
	if err != nil {
		h.logger.Error("build pdf export", slog.Any("error", err))
		httpx.Problem(w, http.StatusBadGateway, "Export Failed", "PDF renderer unavailable")
		return
	}
	h.logger.Info("export batches", slog.String("format", "pdf"), slog.Int("rows", len(rows)))
	httpx.Attachment(w, httpx.ContentTypePDF, "batches.pdf", data)
}

func (h *Handler) execute(w http.ResponseWriter, status int, name string, data view.TemplateData) {
	if err := h.templates.RenderStatus(w, status, name, data); err != nil {
		h.logger.Error("render page", slog.String("template", name), slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}
