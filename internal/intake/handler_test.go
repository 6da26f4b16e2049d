package intake

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyetrack/dyetrack/internal/batches"
	"github.com/dyetrack/dyetrack/internal/platform/restapi"
	"github.com/dyetrack/dyetrack/internal/reference"
	"github.com/dyetrack/dyetrack/internal/shared"
	"github.com/dyetrack/dyetrack/internal/view"
	_ "github.com/dyetrack/dyetrack/testing"
)

func TestEntryRendersReferenceLists(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodGet, "/entry", nil)

	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, "Save Entry")
	assert.Contains(t, body, ">Acme Textiles</option>")
	assert.Contains(t, body, ">Cotton</option>")
	assert.Contains(t, body, ">Ravi Agencies</option>")
}

func TestEntryLoadFailureShowsErrorPage(t *testing.T) {
	env := newTestEnv(t)
	env.refs.listErr = &restapi.Error{Status: http.StatusInternalServerError}

	rr := env.do(t, http.MethodGet, "/entry", nil)

	assert.Equal(t, http.StatusBadGateway, rr.Code)
	assert.Contains(t, rr.Body.String(), "Error loading data")
}

func TestEntrySaveReportsEveryInvalidField(t *testing.T) {
	env := newTestEnv(t)

	form := url.Values{}
	form.Set("action", "save")
	form.Add("item_material_type_id", "")
	form.Add("item_color", "")
	form.Add("item_rolls", "")
	rr := env.do(t, http.MethodPost, "/entry", form)

	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, "Company is required")
	assert.Contains(t, body, "Lot number is required")
	assert.Contains(t, body, "Please select how material was received")
	assert.Contains(t, body, "Material type required")
	assert.Contains(t, body, "Color required")
	assert.Contains(t, body, "Number of rolls required")
	assert.Empty(t, env.store.created, "invalid form must not reach the API")
}

func TestEntrySaveCreatesBatchAndRedirects(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodPost, "/entry", validForm())

	require.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/entry", rr.Header().Get("Location"))
	require.Len(t, env.store.created, 1)
	in := env.store.created[0]
	assert.Equal(t, int64(1), in.CompanyID)
	assert.Equal(t, "LOT-7", in.LotNumber)
	assert.Equal(t, batches.ChannelCompany, in.ReceivedThrough)
	require.Len(t, in.Items, 1)
	assert.Equal(t, batches.ItemInput{MaterialTypeID: 5, Color: "Navy", Rolls: 12}, in.Items[0])

	flash := env.sess.PopFlash()
	require.NotNil(t, flash)
	assert.Equal(t, shared.FlashSuccess, flash.Kind)
	assert.Equal(t, "Entry saved successfully!", flash.Message)
	assert.Equal(t, int64(2000), flash.DismissAfterMS)
}

func TestEntrySaveShowsServerMessage(t *testing.T) {
	env := newTestEnv(t)
	env.store.createErr = &restapi.Error{Status: http.StatusConflict, Message: "Lot number already exists"}

	rr := env.do(t, http.MethodPost, "/entry", validForm())

	assert.Equal(t, http.StatusBadGateway, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, "Lot number already exists")
	assert.Contains(t, body, `value="LOT-7"`, "form keeps its values after a failed save")
}

func TestEntryAddCompanySelectsCreatedEntry(t *testing.T) {
	env := newTestEnv(t)

	form := url.Values{}
	form.Set("action", "add_company")
	form.Set("new_company", "  Blue Mills ")
	form.Set("lot_number", "LOT-9")
	rr := env.do(t, http.MethodPost, "/entry", form)

	require.Equal(t, http.StatusOK, rr.Code)
	require.Len(t, env.refs.created, 1)
	assert.Equal(t, reference.Entity{ID: 100, Name: "Blue Mills"}, env.refs.created[0])
	body := rr.Body.String()
	assert.Contains(t, body, `<option value="100" selected>Blue Mills</option>`)
	assert.Contains(t, body, `value="LOT-9"`)
	assert.NotContains(t, body, "added successfully", "entry page shows no success notice")
}

func TestEntryAddReferenceFailureKeepsSelection(t *testing.T) {
	env := newTestEnv(t)
	env.refs.createErr = &restapi.Error{Status: http.StatusInternalServerError}

	form := url.Values{}
	form.Set("action", "add_mediator")
	form.Set("new_mediator", "Someone")
	form.Set("mediator_id", "2")
	rr := env.do(t, http.MethodPost, "/entry", form)

	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, "Error adding mediator")
	assert.Contains(t, body, `<option value="2" selected>Ravi Agencies</option>`)
}

func TestEntryEmptyNewNameIsIgnored(t *testing.T) {
	env := newTestEnv(t)

	form := url.Values{}
	form.Set("action", "add_material_type")
	form.Set("new_material_type", "   ")
	rr := env.do(t, http.MethodPost, "/entry", form)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Empty(t, env.refs.created)
	assert.NotContains(t, rr.Body.String(), "Error adding")
}

func TestEntryItemRows(t *testing.T) {
	env := newTestEnv(t)

	form := validForm()
	form.Add("item_material_type_id", "6")
	form.Add("item_color", "Crimson")
	form.Add("item_rolls", "3")
	form.Set("action", "remove_item:0")
	rr := env.do(t, http.MethodPost, "/entry", form)

	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.NotContains(t, body, `value="Navy"`)
	assert.Contains(t, body, `value="Crimson"`)

	form = validForm()
	form.Set("action", "add_item")
	rr = env.do(t, http.MethodPost, "/entry", form)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 2, strings.Count(rr.Body.String(), `name="item_color"`))
}

func TestEditPrefillsBatch(t *testing.T) {
	env := newTestEnv(t)
	env.store.batch = openBatch()

	rr := env.do(t, http.MethodGet, "/edit/42", nil)

	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, "Update Batch")
	assert.Contains(t, body, `value="LOT-42"`)
	assert.Contains(t, body, `value="Teal"`)
	assert.Contains(t, body, `<option value="1" selected>Acme Textiles</option>`)
}

func TestEditRejectsClosedBatch(t *testing.T) {
	env := newTestEnv(t)
	b := openBatch()
	out, err := batches.ParseTimestamp("2024-03-02T10:00:00")
	require.NoError(t, err)
	b.OutTime = &out
	env.store.batch = b

	rr := env.do(t, http.MethodGet, "/edit/42", nil)

	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Contains(t, rr.Body.String(), "can no longer be edited")
}

func TestEditMissingBatch(t *testing.T) {
	env := newTestEnv(t)
	env.store.getErr = &restapi.Error{Status: http.StatusNotFound}

	rr := env.do(t, http.MethodGet, "/edit/42", nil)

	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Contains(t, rr.Body.String(), "Error loading batch data")
}

func TestEditUpdateSchedulesReturnToList(t *testing.T) {
	env := newTestEnv(t)
	env.store.batch = openBatch()

	form := validForm()
	form.Set("received_through", "mediator")
	form.Set("mediator_id", "2")
	rr := env.do(t, http.MethodPost, "/edit/42", form)

	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, "Batch updated successfully!")
	assert.Contains(t, body, `content="2;url=/view"`)
	require.Contains(t, env.store.updated, int64(42))
	assert.Equal(t, int64(2), env.store.updated[42].MediatorID)
}

func TestEditUpdateFailureKeepsForm(t *testing.T) {
	env := newTestEnv(t)
	env.store.batch = openBatch()
	env.store.updateErr = &restapi.Error{Status: http.StatusInternalServerError}

	rr := env.do(t, http.MethodPost, "/edit/42", validForm())

	assert.Equal(t, http.StatusBadGateway, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, "Error updating batch")
	assert.Contains(t, body, `data-dismiss-after="3000"`)
	assert.NotContains(t, body, "url=/view")
}

func TestEditAddCompanyShowsTimedNotice(t *testing.T) {
	env := newTestEnv(t)
	env.store.batch = openBatch()

	form := validForm()
	form.Set("action", "add_company")
	form.Set("new_company", "Blue Mills")
	rr := env.do(t, http.MethodPost, "/edit/42", form)

	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, "Company added successfully")
	assert.Contains(t, body, `data-dismiss-after="3000"`)
	assert.Empty(t, env.store.updated)
}

func TestDeleteFlow(t *testing.T) {
	env := newTestEnv(t)
	env.store.batch = openBatch()

	rr := env.do(t, http.MethodGet, "/edit/42/delete", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "This cannot be undone")

	rr = env.do(t, http.MethodPost, "/edit/42/delete", url.Values{})
	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, "Batch deleted successfully!")
	assert.Contains(t, body, `content="1.5;url=/view"`)
	assert.Equal(t, []int64{42}, env.store.deleted)
}

func TestDeleteFailureShowsServerMessage(t *testing.T) {
	env := newTestEnv(t)
	env.store.batch = openBatch()
	env.store.deleteErr = &restapi.Error{Status: http.StatusConflict, Message: "Batch has items in process"}

	rr := env.do(t, http.MethodPost, "/edit/42/delete", url.Values{})

	assert.Equal(t, http.StatusBadGateway, rr.Code)
	assert.Contains(t, rr.Body.String(), "Batch has items in process")
}

type testEnv struct {
	handler  *Handler
	router   chi.Router
	store    *stubStore
	refs     *stubRefs
	sessions *shared.SessionManager
	sess     *shared.Session
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	sessions := shared.NewSessionManager(redisClient, "test_session", "secret", time.Hour, false)
	templates, err := view.NewEngine()
	require.NoError(t, err)

	env := &testEnv{
		store: &stubStore{updated: map[int64]batches.Input{}},
		refs: &stubRefs{
			lists: map[reference.Kind][]reference.Entity{
				reference.Companies:     {{ID: 1, Name: "Acme Textiles"}},
				reference.Mediators:     {{ID: 2, Name: "Ravi Agencies"}},
				reference.MaterialTypes: {{ID: 5, Name: "Cotton"}, {ID: 6, Name: "Silk"}},
			},
			nextID: 100,
		},
		sessions: sessions,
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	env.handler = NewHandler(logger, env.store, env.refs, templates, shared.NewCSRFManager("csrfsecret"))
	env.router = chi.NewRouter()
	env.handler.MountRoutes(env.router)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	env.sess, err = sessions.Load(context.Background(), req)
	require.NoError(t, err)
	return env
}

func (e *testEnv) do(t *testing.T, method, target string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req := httptest.NewRequest(method, target, body)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	req = req.WithContext(shared.ContextWithSession(req.Context(), e.sess))
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	return rr
}

func validForm() url.Values {
	form := url.Values{}
	form.Set("action", "save")
	form.Set("company_id", "1")
	form.Set("lot_number", "  LOT-7 ")
	form.Set("received_through", "company")
	form.Add("item_material_type_id", "5")
	form.Add("item_color", "Navy")
	form.Add("item_rolls", "12")
	return form
}

func openBatch() batches.Batch {
	in, _ := batches.ParseTimestamp("2024-03-01T09:30:00")
	return batches.Batch{
		ID:              42,
		CompanyID:       1,
		CompanyName:     "Acme Textiles",
		LotNumber:       "LOT-42",
		ReceivedThrough: batches.ChannelCompany,
		InTime:          in,
		Items:           []batches.Item{{MaterialTypeID: 5, MaterialTypeName: "Cotton", Color: "Teal", Rolls: 4}},
	}
}

type stubStore struct {
	batch     batches.Batch
	getErr    error
	created   []batches.Input
	createErr error
	updated   map[int64]batches.Input
	updateErr error
	deleted   []int64
	deleteErr error
}

func (s *stubStore) Get(_ context.Context, id int64) (batches.Batch, error) {
	if s.getErr != nil {
		return batches.Batch{}, s.getErr
	}
	if s.batch.ID != id {
		return batches.Batch{}, &restapi.Error{Status: http.StatusNotFound}
	}
	return s.batch, nil
}

func (s *stubStore) Create(_ context.Context, in batches.Input) (batches.Batch, error) {
	if s.createErr != nil {
		return batches.Batch{}, s.createErr
	}
	s.created = append(s.created, in)
	return batches.Batch{ID: int64(len(s.created)), LotNumber: in.LotNumber}, nil
}

func (s *stubStore) Update(_ context.Context, id int64, in batches.Input) error {
	if s.updateErr != nil {
		return s.updateErr
	}
	s.updated[id] = in
	return nil
}

func (s *stubStore) Delete(_ context.Context, id int64) error {
	if s.deleteErr != nil {
		return s.deleteErr
	}
	s.deleted = append(s.deleted, id)
	return nil
}

type stubRefs struct {
	mu        sync.Mutex
	lists     map[reference.Kind][]reference.Entity
	listErr   error
	createErr error
	created   []reference.Entity
	nextID    int64
}

func (s *stubRefs) List(_ context.Context, kind reference.Kind) ([]reference.Entity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	return append([]reference.Entity(nil), s.lists[kind]...), nil
}

func (s *stubRefs) Create(_ context.Context, kind reference.Kind, name string) (reference.Entity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return reference.Entity{}, s.createErr
	}
	e := reference.Entity{ID: s.nextID, Name: name}
	s.nextID++
	s.created = append(s.created, e)
	s.lists[kind] = append(s.lists[kind], e)
	return e, nil
}
