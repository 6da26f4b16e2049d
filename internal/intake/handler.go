// Package intake serves the batch entry and edit forms.
package intake

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dyetrack/dyetrack/internal/batches"
	"github.com/dyetrack/dyetrack/internal/platform/restapi"
	"github.com/dyetrack/dyetrack/internal/reference"
	"github.com/dyetrack/dyetrack/internal/shared"
	"github.com/dyetrack/dyetrack/internal/view"
)

const (
	entryFlashDuration  = 2 * time.Second
	editMessageDuration = 3 * time.Second
	editRedirectDelay   = 2 * time.Second
	deleteRedirectDelay = 1500 * time.Millisecond
	msgLoadBatch        = "Error loading batch data"
	msgBatchClosed      = "Batch has already exited and can no longer be edited"
)

// BatchStore is the part of the batch service the forms use.
type BatchStore interface {
	Get(ctx context.Context, id int64) (batches.Batch, error)
	Create(ctx context.Context, in batches.Input) (batches.Batch, error)
	Update(ctx context.Context, id int64, in batches.Input) error
	Delete(ctx context.Context, id int64) error
}

// Handler wires the entry and edit pages.
type Handler struct {
	logger    *slog.Logger
	batches   BatchStore
	refs      reference.Repository
	templates *view.Engine
	csrf      *shared.CSRFManager
}

// NewHandler constructs the intake handler.
func NewHandler(logger *slog.Logger, store BatchStore, refs reference.Repository, templates *view.Engine, csrf *shared.CSRFManager) *Handler {
	return &Handler{logger: logger, batches: store, refs: refs, templates: templates, csrf: csrf}
}

// MountRoutes registers the entry and edit routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/entry", h.showEntry)
	r.Post("/entry", h.submitEntry)
	r.Get("/edit/{id}", h.showEdit)
	r.Post("/edit/{id}", h.submitEdit)
	r.Get("/edit/{id}/delete", h.confirmDelete)
	r.Post("/edit/{id}/delete", h.deleteBatch)
}

type formPage struct {
	Mode          string
	BatchID       int64
	Batch         batches.Batch
	Form          batchForm
	Companies     []reference.Entity
	Mediators     []reference.Entity
	MaterialTypes []reference.Entity
	Errors        *batches.Validation
	Saved         bool
}

// FormAction is the URL the form posts back to.
func (p formPage) FormAction() string {
	if p.Mode == "edit" {
		return fmt.Sprintf("/edit/%d", p.BatchID)
	}
	return "/entry"
}

// FieldError is the message for a batch attribute, "" when valid.
func (p formPage) FieldError(attr string) string {
	return p.Errors.Batch(attr)
}

// ItemError is the message for an attribute of item row i.
func (p formPage) ItemError(i int, attr string) string {
	return p.Errors.Item(i, attr)
}

// CanRemove is false while only one item row is left.
func (p formPage) CanRemove() bool {
	return len(p.Form.Items) > 1
}

type deletePage struct {
	Batch   batches.Batch
	Deleted bool
}

// pickers groups the three selectors of the batch form. Company and mediator
// selections flow straight into the form being edited.
type pickers struct {
	companies *reference.Selector[reference.Entity]
	mediators *reference.Selector[reference.Entity]
	materials *reference.Selector[reference.Entity]
}

func (h *Handler) newPickers(f *batchForm) pickers {
	return pickers{
		companies: reference.ForKind(h.refs, reference.Companies, func(id int64) { f.CompanyID = id }),
		mediators: reference.ForKind(h.refs, reference.Mediators, func(id int64) { f.MediatorID = id }),
		materials: reference.ForKind(h.refs, reference.MaterialTypes, nil),
	}
}

func (p pickers) loaders() []reference.Loader {
	return []reference.Loader{p.companies, p.mediators, p.materials}
}

func (p pickers) fill(page *formPage) {
	page.Companies = p.companies.Options()
	page.Mediators = p.mediators.Options()
	page.MaterialTypes = p.materials.Options()
}

func (h *Handler) showEntry(w http.ResponseWriter, r *http.Request) {
	page := formPage{Mode: "entry", Form: newBatchForm()}
	p := h.newPickers(&page.Form)
	if err := reference.LoadAll(r.Context(), p.loaders()...); err != nil {
		h.logger.Error("load entry reference data", slog.Any("error", err))
		h.renderLoadError(w, r, http.StatusBadGateway, "Error loading data", "/")
		return
	}
	p.fill(&page)
	h.render(w, r, http.StatusOK, "New Entry", page, nil)
}

func (h *Handler) submitEntry(w http.ResponseWriter, r *http.Request) {
	form, action, err := parseBatchForm(r)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	page := formPage{Mode: "entry", Form: form}
	p := h.newPickers(&page.Form)
	if err := reference.LoadAll(r.Context(), p.loaders()...); err != nil {
		h.logger.Error("load entry reference data", slog.Any("error", err))
		h.renderLoadError(w, r, http.StatusBadGateway, "Error loading data", "/")
		return
	}

	notice, save := h.applyAction(r.Context(), action, &page.Form, p, 0)
	p.fill(&page)
	if !save {
		h.render(w, r, http.StatusOK, "New Entry", page, notice)
		return
	}

	page.Errors = batches.ValidateInput(&page.Form.Input)
	if !page.Errors.OK() {
		h.render(w, r, http.StatusUnprocessableEntity, "New Entry", page, nil)
		return
	}
	created, err := h.batches.Create(r.Context(), page.Form.Input)
	if err != nil {
		h.logger.Error("create batch", slog.Any("error", err))
		msg := shared.NewFlash(shared.FlashError, restapi.Message(err, "Error saving entry"), 0)
		h.render(w, r, http.StatusBadGateway, "New Entry", page, &msg)
		return
	}
	h.logger.Info("batch created", slog.Int64("batch_id", created.ID), slog.String("lot_number", page.Form.LotNumber))
	view.AddFlash(r, shared.NewFlash(shared.FlashSuccess, "Entry saved successfully!", entryFlashDuration))
	http.Redirect(w, r, "/entry", http.StatusSeeOther)
}

func (h *Handler) showEdit(w http.ResponseWriter, r *http.Request) {
	id, ok := batchID(r)
	if !ok {
		h.renderLoadError(w, r, http.StatusNotFound, msgLoadBatch, "/view")
		return
	}
	page := formPage{Mode: "edit", BatchID: id}
	p := h.newPickers(&page.Form)
	if !h.loadEditable(w, r, &page, p) {
		return
	}
	page.Form.Input = batches.InputFromBatch(page.Batch)
	p.fill(&page)
	h.render(w, r, http.StatusOK, "Edit Batch", page, nil)
}

func (h *Handler) submitEdit(w http.ResponseWriter, r *http.Request) {
	id, ok := batchID(r)
	if !ok {
		h.renderLoadError(w, r, http.StatusNotFound, msgLoadBatch, "/view")
		return
	}
	form, action, err := parseBatchForm(r)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	page := formPage{Mode: "edit", BatchID: id, Form: form}
	p := h.newPickers(&page.Form)
	if !h.loadEditable(w, r, &page, p) {
		return
	}

	notice, save := h.applyAction(r.Context(), action, &page.Form, p, editMessageDuration)
	p.fill(&page)
	if !save {
		h.render(w, r, http.StatusOK, "Edit Batch", page, notice)
		return
	}

	page.Errors = batches.ValidateInput(&page.Form.Input)
	if !page.Errors.OK() {
		h.render(w, r, http.StatusUnprocessableEntity, "Edit Batch", page, nil)
		return
	}
	if err := h.batches.Update(r.Context(), id, page.Form.Input); err != nil {
		h.logger.Error("update batch", slog.Int64("batch_id", id), slog.Any("error", err))
		msg := shared.NewFlash(shared.FlashError, restapi.Message(err, "Error updating batch"), editMessageDuration)
		h.render(w, r, http.StatusBadGateway, "Edit Batch", page, &msg)
		return
	}
	h.logger.Info("batch updated", slog.Int64("batch_id", id))
	page.Saved = true
	msg := shared.NewFlash(shared.FlashSuccess, "Batch updated successfully!", 0)
	h.renderWithRefresh(w, r, "Edit Batch", "pages/batch_form.html", page, &msg, &view.Refresh{URL: "/view", After: editRedirectDelay})
}

func (h *Handler) confirmDelete(w http.ResponseWriter, r *http.Request) {
	batch, ok := h.loadForDelete(w, r)
	if !ok {
		return
	}
	data := view.NewPageData(r, h.csrf, "Delete Batch")
	data.Data = deletePage{Batch: batch}
	h.execute(w, http.StatusOK, "pages/delete_confirm.html", data)
}

func (h *Handler) deleteBatch(w http.ResponseWriter, r *http.Request) {
	batch, ok := h.loadForDelete(w, r)
	if !ok {
		return
	}
	if err := h.batches.Delete(r.Context(), batch.ID); err != nil {
		h.logger.Error("delete batch", slog.Int64("batch_id", batch.ID), slog.Any("error", err))
		msg := shared.NewFlash(shared.FlashError, restapi.Message(err, "Error deleting batch"), editMessageDuration)
		h.renderWithRefresh(w, r, "Delete Batch", "pages/delete_confirm.html", deletePage{Batch: batch}, &msg, nil)
		return
	}
	h.logger.Info("batch deleted", slog.Int64("batch_id", batch.ID))
	msg := shared.NewFlash(shared.FlashSuccess, "Batch deleted successfully!", 0)
	h.renderWithRefresh(w, r, "Delete Batch", "pages/delete_confirm.html", deletePage{Batch: batch, Deleted: true}, &msg, &view.Refresh{URL: "/view", After: deleteRedirectDelay})
}

// applyAction performs a non-save form action. It reports save=true when the
// caller should validate and persist instead.
func (h *Handler) applyAction(ctx context.Context, action string, form *batchForm, p pickers, dismiss time.Duration) (*shared.FlashMessage, bool) {
	if idx, ok := removeIndex(action); ok {
		form.Items = removeRow(form.Items, idx)
		return nil, false
	}

	// Seed the pickers with the posted selection so AddNew only reports a change
	// when the created id differs.
	p.companies.Select(form.CompanyID)
	p.mediators.Select(form.MediatorID)

	switch action {
	case actionSave:
		return nil, true
	case actionAddItem:
		form.Items = addRow(form.Items)
	case actionAddCompany:
		return h.addReference(ctx, p.companies, reference.Companies, &form.NewCompany, dismiss), false
	case actionAddMediator:
		if form.ReceivedThrough == "" {
			form.ReceivedThrough = batches.ChannelMediator
		}
		return h.addReference(ctx, p.mediators, reference.Mediators, &form.NewMediator, dismiss), false
	case actionAddMaterialType:
		return h.addReference(ctx, p.materials, reference.MaterialTypes, &form.NewMaterialType, dismiss), false
	}
	return nil, false
}

// addReference creates an entry through its selector. An empty name is
// ignored. The success notice is only shown on the edit page, matching its
// timed messages; entry keeps failures on screen until the next action.
func (h *Handler) addReference(ctx context.Context, sel *reference.Selector[reference.Entity], kind reference.Kind, name *string, dismiss time.Duration) *shared.FlashMessage {
	created, err := sel.AddNew(ctx, *name)
	if errors.Is(err, reference.ErrNameRequired) {
		return nil
	}
	if err != nil {
		h.logger.Error("create reference entry", slog.String("kind", string(kind)), slog.Any("error", err))
		msg := shared.NewFlash(shared.FlashError, "Error adding "+kind.Label(), dismiss)
		return &msg
	}
	h.logger.Info("reference entry created", slog.String("kind", string(kind)), slog.Int64("id", created.ID))
	*name = ""
	if dismiss == 0 {
		return nil
	}
	msg := shared.NewFlash(shared.FlashSuccess, kind.SentenceLabel()+" added successfully", dismiss)
	return &msg
}

// loadEditable fetches the batch and the three lists concurrently. It renders
// the load error page and returns false when anything fails or the batch is
// closed.
func (h *Handler) loadEditable(w http.ResponseWriter, r *http.Request, page *formPage, p pickers) bool {
	loaders := append(p.loaders(), reference.LoaderFunc(func(ctx context.Context) error {
		b, err := h.batches.Get(ctx, page.BatchID)
		if err != nil {
			return err
		}
		page.Batch = b
		return nil
	}))
	if err := reference.LoadAll(r.Context(), loaders...); err != nil {
		h.logger.Error("load batch for edit", slog.Int64("batch_id", page.BatchID), slog.Any("error", err))
		h.renderLoadError(w, r, loadStatus(err), msgLoadBatch, "/view")
		return false
	}
	if page.Batch.IsClosed() {
		h.renderLoadError(w, r, http.StatusConflict, msgBatchClosed, "/view")
		return false
	}
	return true
}

func (h *Handler) loadForDelete(w http.ResponseWriter, r *http.Request) (batches.Batch, bool) {
	id, ok := batchID(r)
	if !ok {
		h.renderLoadError(w, r, http.StatusNotFound, msgLoadBatch, "/view")
		return batches.Batch{}, false
	}
	batch, err := h.batches.Get(r.Context(), id)
	if err != nil {
		h.logger.Error("load batch for delete", slog.Int64("batch_id", id), slog.Any("error", err))
		h.renderLoadError(w, r, loadStatus(err), msgLoadBatch, "/view")
		return batches.Batch{}, false
	}
	if batch.IsClosed() {
		h.renderLoadError(w, r, http.StatusConflict, msgBatchClosed, "/view")
		return batches.Batch{}, false
	}
	return batch, true
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, title string, page formPage, notice *shared.FlashMessage) {
	data := view.NewPageData(r, h.csrf, title)
	data.Notice = notice
	data.Data = page
	h.execute(w, status, "pages/batch_form.html", data)
}

func (h *Handler) renderWithRefresh(w http.ResponseWriter, r *http.Request, title, name string, page any, notice *shared.FlashMessage, refresh *view.Refresh) {
	data := view.NewPageData(r, h.csrf, title)
	data.Notice = notice
	data.Refresh = refresh
	data.Data = page
	status := http.StatusOK
	if notice != nil && notice.Kind == shared.FlashError {
		status = http.StatusBadGateway
	}
	h.execute(w, status, name, data)
}

func (h *Handler) renderLoadError(w http.ResponseWriter, r *http.Request, status int, message, back string) {
	data := view.NewPageData(r, h.csrf, "Error")
	data.Data = view.LoadError{Message: message, BackURL: back, BackLabel: "Go back"}
	h.execute(w, status, "pages/load_error.html", data)
}

func (h *Handler) execute(w http.ResponseWriter, status int, name string, data view.TemplateData) {
	if err := h.templates.RenderStatus(w, status, name, data); err != nil {
		h.logger.Error("render page", slog.String("template", name), slog.Any("error", err))
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

func loadStatus(err error) int {
	if errors.Is(err, restapi.ErrNotFound) {
		return http.StatusNotFound
	}
	return http.StatusBadGateway
}
