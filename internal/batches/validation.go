package batches

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// Entities addressed by a FieldPath.
const (
	EntityBatch = "batch"
	EntityItem  = "item"
	EntityExit  = "exit"
)

// Batch and item attributes.
const (
	AttrCompany         = "company"
	AttrLotNumber       = "lot_number"
	AttrReceivedThrough = "received_through"
	AttrMediator        = "mediator"
	AttrMaterialType    = "material_type"
	AttrColor           = "color"
	AttrRolls           = "rolls"
	AttrDestination     = "destination"
	AttrTransportType   = "transport_type"
	AttrVehicle         = "vehicle_registration"
)

// ErrorKind classifies a failed check.
type ErrorKind string

const (
	KindRequired ErrorKind = "required"
	KindMin      ErrorKind = "min"
	KindFormat   ErrorKind = "format"
	KindChoice   ErrorKind = "choice"
)

// FieldPath addresses one input: the entity, its position for repeated rows
// and the attribute.
type FieldPath struct {
	Entity string
	Index  int
	Attr   string
}

// BatchField addresses a top-level batch attribute.
func BatchField(attr string) FieldPath { return FieldPath{Entity: EntityBatch, Attr: attr} }

// ItemField addresses an attribute of the item row at index.
func ItemField(index int, attr string) FieldPath {
	return FieldPath{Entity: EntityItem, Index: index, Attr: attr}
}

// ExitField addresses an exit form attribute.
func ExitField(attr string) FieldPath { return FieldPath{Entity: EntityExit, Attr: attr} }

func (p FieldPath) String() string {
	if p.Entity == EntityItem {
		return fmt.Sprintf("items[%d].%s", p.Index, p.Attr)
	}
	return p.Entity + "." + p.Attr
}

var fieldMessages = map[FieldPath]string{
	BatchField(AttrCompany):         "Company is required",
	BatchField(AttrLotNumber):       "Lot number is required",
	BatchField(AttrReceivedThrough): "Please select how material was received",
	BatchField(AttrMediator):        "Mediator is required",
	ExitField(AttrDestination):      "Please select a destination",
	ExitField(AttrTransportType):    "Please select transport type",
}

var itemMessages = map[string]string{
	AttrMaterialType: "Material type required",
	AttrColor:        "Color required",
	AttrRolls:        "Number of rolls required",
}

// MessageFor returns the user facing text for a failure at p.
func MessageFor(p FieldPath, kind ErrorKind) string {
	if p == ExitField(AttrVehicle) {
		if kind == KindFormat {
			return "Please enter a valid vehicle registration number (e.g., MH-12-AB-1234)"
		}
		return "Please enter vehicle registration for external transport"
	}
	if p.Entity == EntityItem {
		if msg, ok := itemMessages[p.Attr]; ok {
			return msg
		}
	}
	if msg, ok := fieldMessages[p]; ok {
		return msg
	}
	return fmt.Sprintf("%s is invalid", p.Attr)
}

// Validation is the outcome of checking a form: every failing field mapped to
// the kind of failure. The zero value (and nil) means valid.
type Validation struct {
	errs  map[FieldPath]ErrorKind
	order []FieldPath
}

// Add records a failure; the first kind recorded for a path wins.
func (v *Validation) Add(p FieldPath, kind ErrorKind) {
	if v.errs == nil {
		v.errs = make(map[FieldPath]ErrorKind)
	}
	if _, exists := v.errs[p]; exists {
		return
	}
	v.errs[p] = kind
	v.order = append(v.order, p)
}

// OK reports whether no failures were recorded.
func (v *Validation) OK() bool {
	return v == nil || len(v.errs) == 0
}

// Len returns the number of failing fields.
func (v *Validation) Len() int {
	if v == nil {
		return 0
	}
	return len(v.errs)
}

// Kind returns the failure kind at p.
func (v *Validation) Kind(p FieldPath) (ErrorKind, bool) {
	if v == nil {
		return "", false
	}
	kind, ok := v.errs[p]
	return kind, ok
}

// Fields lists failing paths in the order they were found.
func (v *Validation) Fields() []FieldPath {
	if v == nil {
		return nil
	}
	return append([]FieldPath(nil), v.order...)
}

// Message returns the text for p, or "" when p is valid.
func (v *Validation) Message(p FieldPath) string {
	kind, ok := v.Kind(p)
	if !ok {
		return ""
	}
	return MessageFor(p, kind)
}

// Batch is the template accessor for a batch attribute message.
func (v *Validation) Batch(attr string) string {
	return v.Message(BatchField(attr))
}

// Item is the template accessor for an item attribute message.
func (v *Validation) Item(index int, attr string) string {
	return v.Message(ItemField(index, attr))
}

// Error lets a Validation travel as an error.
func (v *Validation) Error() string {
	if v.OK() {
		return "batches: valid"
	}
	parts := make([]string, 0, len(v.order))
	for _, p := range v.order {
		parts = append(parts, p.String()+": "+string(v.errs[p]))
	}
	return "batches: invalid " + strings.Join(parts, ", ")
}

var vehicleRegistration = regexp.MustCompile(`(?i)^[A-Z]{2}[-\s]?[0-9]{1,2}[-\s]?[A-Z]{1,2}[-\s]?[0-9]{1,4}$`)

// NormalizeVehicleRegistration trims and upper-cases user input.
func NormalizeVehicleRegistration(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// ValidVehicleRegistration checks the registration format: two letters, one or
// two digits, one or two letters, one to four digits, each group optionally
// separated by a hyphen. Whitespace is ignored.
func ValidVehicleRegistration(s string) bool {
	compact := strings.Join(strings.Fields(NormalizeVehicleRegistration(s)), "")
	return vehicleRegistration.MatchString(compact)
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		_ = validate.RegisterValidation("vehiclereg", func(fl validator.FieldLevel) bool {
			return ValidVehicleRegistration(fl.Field().String())
		})
	})
	return validate
}

var batchAttrs = map[string]string{
	"CompanyID":       AttrCompany,
	"LotNumber":       AttrLotNumber,
	"ReceivedThrough": AttrReceivedThrough,
	"MediatorID":      AttrMediator,
}

var itemAttrs = map[string]string{
	"MaterialTypeID": AttrMaterialType,
	"Color":          AttrColor,
	"Rolls":          AttrRolls,
}

// ValidateInput checks every batch field and every item and reports all
// failures at once. Text fields are trimmed in place before checking.
func ValidateInput(in *Input) *Validation {
	result := &Validation{}
	in.LotNumber = strings.TrimSpace(in.LotNumber)
	for i := range in.Items {
		in.Items[i].Color = strings.TrimSpace(in.Items[i].Color)
	}

	err := validatorInstance().Struct(in)
	if err == nil {
		return result
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		result.Add(BatchField("form"), KindFormat)
		return result
	}
	for _, fe := range fieldErrs {
		if p, ok := pathFromNamespace(fe.StructNamespace()); ok {
			result.Add(p, kindFromTag(fe.Tag()))
		}
	}
	return result
}

// pathFromNamespace maps "Input.Items[2].Color" to ItemField(2, "color").
func pathFromNamespace(ns string) (FieldPath, bool) {
	parts := strings.Split(ns, ".")
	if len(parts) < 2 {
		return FieldPath{}, false
	}
	parts = parts[1:]
	head := parts[0]
	if strings.HasPrefix(head, "Items") {
		if len(parts) == 1 {
			// the list itself: empty item list
			return ItemField(0, AttrMaterialType), true
		}
		open := strings.IndexByte(head, '[')
		closing := strings.IndexByte(head, ']')
		if open < 0 || closing <= open {
			return FieldPath{}, false
		}
		index, err := strconv.Atoi(head[open+1 : closing])
		if err != nil {
			return FieldPath{}, false
		}
		attr, ok := itemAttrs[parts[1]]
		if !ok {
			return FieldPath{}, false
		}
		return ItemField(index, attr), true
	}
	attr, ok := batchAttrs[head]
	if !ok {
		return FieldPath{}, false
	}
	return BatchField(attr), true
}

func kindFromTag(tag string) ErrorKind {
	switch tag {
	case "required", "required_if":
		return KindRequired
	case "gte", "min":
		return KindMin
	case "oneof":
		return KindChoice
	default:
		return KindFormat
	}
}

// ExitError is the first failing check of an exit submission.
type ExitError struct {
	Field FieldPath
	Kind  ErrorKind
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("batches: exit %s %s", e.Field, e.Kind)
}

// UserMessage is the text shown to the operator.
func (e *ExitError) UserMessage() string {
	return MessageFor(e.Field, e.Kind)
}

// ValidateExit runs the exit checks in order and stops at the first failure:
// destination, transport type, vehicle registration presence (external
// transport only), vehicle registration format. It normalises the
// registration in place.
func ValidateExit(in *ExitInput) error {
	in.VehicleRegistration = NormalizeVehicleRegistration(in.VehicleRegistration)
	if in.DestinationID <= 0 {
		return &ExitError{Field: ExitField(AttrDestination), Kind: KindRequired}
	}
	switch in.TransportType {
	case TransportCompany, TransportExternal:
	default:
		return &ExitError{Field: ExitField(AttrTransportType), Kind: KindRequired}
	}
	if in.TransportType != TransportExternal {
		return nil
	}
	if in.VehicleRegistration == "" {
		return &ExitError{Field: ExitField(AttrVehicle), Kind: KindRequired}
	}
	if err := validatorInstance().Var(in.VehicleRegistration, "vehiclereg"); err != nil {
		return &ExitError{Field: ExitField(AttrVehicle), Kind: KindFormat}
	}
	return nil
}
