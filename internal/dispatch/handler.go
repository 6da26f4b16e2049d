// Package dispatch serves the exit processing page: the list of open batches
// and the exit dialog that records where and how a batch leaves.
package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dyetrack/dyetrack/internal/batches"
	"github.com/dyetrack/dyetrack/internal/platform/restapi"
	"github.com/dyetrack/dyetrack/internal/reference"
	"github.com/dyetrack/dyetrack/internal/shared"
	"github.com/dyetrack/dyetrack/internal/view"
)

const messageDuration = 3 * time.Second

// BatchStore is the part of the batch service the exit page uses.
type BatchStore interface {
	ListOpen(ctx context.Context) ([]batches.Batch, error)
	Exit(ctx context.Context, id int64, in batches.ExitInput) error
}

// Handler wires the exit routes.
type Handler struct {
	logger    *slog.Logger
	batches   BatchStore
	refs      reference.Repository
	templates *view.Engine
	csrf      *shared.CSRFManager
	now       func() time.Time
}

// NewHandler constructs the dispatch handler.
func NewHandler(logger *slog.Logger, store BatchStore, refs reference.Repository, templates *view.Engine, csrf *shared.CSRFManager) *Handler {
	return &Handler{logger: logger, batches: store, refs: refs, templates: templates, csrf: csrf, now: time.Now}
}

// MountRoutes registers the exit routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/exit", h.list)
	r.Get("/exit/{id}", h.openDialog)
	r.Post("/exit/{id}", h.submit)
}

type exitRow struct {
	Batch batches.Batch
	Days  int
}

type exitPage struct {
	Rows             []exitRow
	OpenCount        int
	MaxDays          int
	DestinationCount int
	LoadFailed       bool
	Dialog           *exitDialog
}

type exitDialog struct {
	Batch               batches.Batch
	Days                int
	Form                exitForm
	CompanyDestinations []reference.Entity
	OtherDestinations   []reference.Entity
}

type exitForm struct {
	DestinationID       int64
	TransportType       batches.TransportType
	VehicleRegistration string
	Notes               string
	NewDestination      string
}

func (f exitForm) input() batches.ExitInput {
	return batches.ExitInput{
		DestinationID:       f.DestinationID,
		TransportType:       f.TransportType,
		VehicleRegistration: f.VehicleRegistration,
		Notes:               f.Notes,
	}
}

// pageState is what every exit request loads: open batches and the two
// reference lists, fetched together.
type pageState struct {
	open         []batches.Batch
	companies    *reference.Selector[reference.Entity]
	destinations *reference.Selector[reference.Entity]
}

func (h *Handler) load(ctx context.Context, onDestination func(int64)) (*pageState, error) {
	st := &pageState{
		companies:    reference.ForKind(h.refs, reference.Companies, nil),
		destinations: reference.ForKind(h.refs, reference.Destinations, onDestination),
	}
	err := reference.LoadAll(ctx,
		reference.LoaderFunc(func(ctx context.Context) error {
			open, err := h.batches.ListOpen(ctx)
			if err != nil {
				return err
			}
			st.open = open
			return nil
		}),
		st.companies,
		st.destinations,
	)
	if err != nil {
		return nil, err
	}
	return st, nil
}

func (h *Handler) buildPage(st *pageState) exitPage {
	now := h.now()
	page := exitPage{
		Rows:             make([]exitRow, 0, len(st.open)),
		OpenCount:        len(st.open),
		DestinationCount: len(st.destinations.Options()),
	}
	for _, b := range st.open {
		days := batches.DaysInSystem(b.InTime.Time, now)
		if days > page.MaxDays {
			page.MaxDays = days
		}
		page.Rows = append(page.Rows, exitRow{Batch: b, Days: days})
	}
	return page
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	st, err := h.load(r.Context(), nil)
	if err != nil {
		h.renderLoadFailure(w, r, err)
		return
	}
	h.render(w, r, http.StatusOK, h.buildPage(st), nil)
}

func (h *Handler) openDialog(w http.ResponseWriter, r *http.Request) {
	id, ok := batchID(r)
	if !ok {
		http.Redirect(w, r, "/exit", http.StatusSeeOther)
		return
	}
	st, err := h.load(r.Context(), nil)
	if err != nil {
		h.renderLoadFailure(w, r, err)
		return
	}
	batch, found := findBatch(st.open, id)
	if !found {
		view.AddFlash(r, shared.NewFlash(shared.FlashError, "Batch is not open for exit", messageDuration))
		http.Redirect(w, r, "/exit", http.StatusSeeOther)
		return
	}

	form := exitForm{}
	if guess, ok := reference.FindByName(st.destinations.Options(), batch.CompanyName); ok {
		form.DestinationID = guess.ID
	}
	page := h.buildPage(st)
	page.Dialog = h.dialog(st, batch, form)
	h.render(w, r, http.StatusOK, page, nil)
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request) {
	id, ok := batchID(r)
	if !ok {
		http.Redirect(w, r, "/exit", http.StatusSeeOther)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	action := r.PostForm.Get("action")
	if action == "cancel" {
		http.Redirect(w, r, "/exit", http.StatusSeeOther)
		return
	}

	form := parseExitForm(r)
	st, err := h.load(r.Context(), func(id int64) { form.DestinationID = id })
	if err != nil {
		h.renderLoadFailure(w, r, err)
		return
	}
	batch, found := findBatch(st.open, id)
	if !found {
		view.AddFlash(r, shared.NewFlash(shared.FlashError, "Batch is not open for exit", messageDuration))
		http.Redirect(w, r, "/exit", http.StatusSeeOther)
		return
	}
	st.destinations.Select(form.DestinationID)

	switch action {
	case "add_destination":
		notice := h.addDestination(r.Context(), st, &form)
		page := h.buildPage(st)
		page.Dialog = h.dialog(st, batch, form)
		h.render(w, r, http.StatusOK, page, notice)
		return
	case "process", "":
	default:
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	in := form.input()
	if err := batches.ValidateExit(&in); err != nil {
		form.VehicleRegistration = in.VehicleRegistration
		msg := shared.NewFlash(shared.FlashError, shared.UserSafeMessage(err), messageDuration)
		page := h.buildPage(st)
		page.Dialog = h.dialog(st, batch, form)
		h.render(w, r, http.StatusUnprocessableEntity, page, &msg)
		return
	}
	if err := h.batches.Exit(r.Context(), batch.ID, in); err != nil {
		h.logger.Error("process exit", slog.Int64("batch_id", batch.ID), slog.Any("error", err))
		form.VehicleRegistration = in.VehicleRegistration
		msg := shared.NewFlash(shared.FlashError, restapi.Message(err, "Error processing exit"), messageDuration)
		page := h.buildPage(st)
		page.Dialog = h.dialog(st, batch, form)
		h.render(w, r, http.StatusBadGateway, page, &msg)
		return
	}
	h.logger.Info("batch exited",
		slog.Int64("batch_id", batch.ID),
		slog.Int64("destination_id", in.DestinationID),
		slog.String("transport_type", string(in.TransportType)))
	view.AddFlash(r, shared.NewFlash(shared.FlashSuccess, "Batch processed successfully!", messageDuration))
	http.Redirect(w, r, "/exit", http.StatusSeeOther)
}

func (h *Handler) addDestination(ctx context.Context, st *pageState, form *exitForm) *shared.FlashMessage {
	created, err := st.destinations.AddNew(ctx, form.NewDestination)
	if errors.Is(err, reference.ErrNameRequired) {
		return nil
	}
	if err != nil {
		h.logger.Error("create destination", slog.Any("error", err))
		msg := shared.NewFlash(shared.FlashError, "Error adding destination", messageDuration)
		return &msg
	}
	h.logger.Info("destination created", slog.Int64("id", created.ID), slog.String("name", created.Name))
	form.NewDestination = ""
	msg := shared.NewFlash(shared.FlashSuccess, "Destination added successfully", messageDuration)
	return &msg
}

func (h *Handler) dialog(st *pageState, batch batches.Batch, form exitForm) *exitDialog {
	companyDests, others := splitDestinations(st.destinations.Options(), st.companies.Options())
	return &exitDialog{
		Batch:               batch,
		Days:                batches.DaysInSystem(batch.InTime.Time, h.now()),
		Form:                form,
		CompanyDestinations: companyDests,
		OtherDestinations:   others,
	}
}

// splitDestinations separates destinations named after a known company from
// the rest, keeping list order in both.
func splitDestinations(destinations, companies []reference.Entity) (company, other []reference.Entity) {
	names := make(map[string]struct{}, len(companies))
	for _, c := range companies {
		names[c.Name] = struct{}{}
	}
	for _, d := range destinations {
		if _, ok := names[d.Name]; ok {
			company = append(company, d)
		} else {
			other = append(other, d)
		}
	}
	return company, other
}

func parseExitForm(r *http.Request) exitForm {
	id, _ := strconv.ParseInt(strings.TrimSpace(r.PostForm.Get("destination_id")), 10, 64)
	return exitForm{
		DestinationID:       id,
		TransportType:       batches.TransportType(r.PostForm.Get("transport_type")),
		VehicleRegistration: batches.NormalizeVehicleRegistration(r.PostForm.Get("vehicle_registration")),
		Notes:               r.PostForm.Get("notes"),
		NewDestination:      r.PostForm.Get("new_destination"),
	}
}

func findBatch(list []batches.Batch, id int64) (batches.Batch, bool) {
	for _, b := range list {
		if b.ID == id {
			return b, true
		}
	}
	return batches.Batch{}, false
}

func (h *Handler) renderLoadFailure(w http.ResponseWriter, r *http.Request, err error) {
	h.logger.Error("load exit page data", slog.Any("error", err))
	msg := shared.NewFlash(shared.FlashError, "Error loading data", 0)
	h.render(w, r, http.StatusBadGateway, exitPage{LoadFailed: true}, &msg)
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, page exitPage, notice *shared.FlashMessage) {
	data := view.NewPageData(r, h.csrf, "Process Exit")
	data.Notice = notice
	data.Now = h.now()
	data.Data = page
	if err := h.templates.RenderStatus(w, status, "pages/exit.html", data); err != nil {
		h.logger.Error("render exit page", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

func batchID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
