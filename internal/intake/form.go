package intake

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/dyetrack/dyetrack/internal/batches"
)

// Form actions posted by the batch form buttons.
const (
	actionSave            = "save"
	actionAddItem         = "add_item"
	actionRemoveItem      = "remove_item:"
	actionAddCompany      = "add_company"
	actionAddMediator     = "add_mediator"
	actionAddMaterialType = "add_material_type"
)

// batchForm is the submitted batch plus the pending "add new" names.
type batchForm struct {
	batches.Input
	NewCompany      string
	NewMediator     string
	NewMaterialType string
}

func newBatchForm() batchForm {
	return batchForm{Input: batches.Input{Items: []batches.ItemInput{batches.NewItemInput()}}}
}

// parseBatchForm reads the batch fields and the item rows. Item rows are
// submitted as parallel repeated fields, so row i is the i-th value of each.
func parseBatchForm(r *http.Request) (batchForm, string, error) {
	if err := r.ParseForm(); err != nil {
		return batchForm{}, "", err
	}
	f := batchForm{
		Input: batches.Input{
			CompanyID:       parseID(r.PostForm.Get("company_id")),
			LotNumber:       r.PostForm.Get("lot_number"),
			ReceivedThrough: batches.Channel(r.PostForm.Get("received_through")),
			MediatorID:      parseID(r.PostForm.Get("mediator_id")),
		},
		NewCompany:      r.PostForm.Get("new_company"),
		NewMediator:     r.PostForm.Get("new_mediator"),
		NewMaterialType: r.PostForm.Get("new_material_type"),
	}

	materials := r.PostForm["item_material_type_id"]
	colors := r.PostForm["item_color"]
	rolls := r.PostForm["item_rolls"]
	rows := max(len(materials), len(colors), len(rolls))
	for i := 0; i < rows; i++ {
		f.Items = append(f.Items, batches.ItemInput{
			MaterialTypeID: parseID(valueAt(materials, i)),
			Color:          valueAt(colors, i),
			Rolls:          parseRolls(valueAt(rolls, i)),
		})
	}
	if len(f.Items) == 0 {
		f.Items = []batches.ItemInput{batches.NewItemInput()}
	}

	action := strings.TrimSpace(r.PostForm.Get("action"))
	if action == "" {
		action = actionSave
	}
	return f, action, nil
}

func valueAt(values []string, i int) string {
	if i < len(values) {
		return values[i]
	}
	return ""
}

func parseID(raw string) int64 {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id < 0 {
		return 0
	}
	return id
}

func parseRolls(raw string) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0
	}
	return n
}

// addRow appends a blank row.
func addRow(items []batches.ItemInput) []batches.ItemInput {
	return append(items, batches.NewItemInput())
}

// removeRow drops row i. The last remaining row is never removed.
func removeRow(items []batches.ItemInput, i int) []batches.ItemInput {
	if len(items) <= 1 || i < 0 || i >= len(items) {
		return items
	}
	out := make([]batches.ItemInput, 0, len(items)-1)
	out = append(out, items[:i]...)
	return append(out, items[i+1:]...)
}

// removeIndex extracts n from "remove_item:n".
func removeIndex(action string) (int, bool) {
	if !strings.HasPrefix(action, actionRemoveItem) {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimPrefix(action, actionRemoveItem))
	if err != nil {
		return 0, false
	}
	return n, true
}
