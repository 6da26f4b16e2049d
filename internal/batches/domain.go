// Package batches holds the batch model, its validation rules and the API
// repository used by the entry, exit, report and dashboard pages.
package batches

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Channel is how material was received.
type Channel string

const (
	ChannelCompany  Channel = "company"
	ChannelMediator Channel = "mediator"
)

// TransportType is how a batch leaves the facility.
type TransportType string

const (
	TransportCompany  TransportType = "company"
	TransportExternal TransportType = "external"
)

// Timestamp decodes the API's timestamp strings, which may or may not carry a
// zone or fractional seconds. The original text is kept for exports.
type Timestamp struct {
	time.Time
	raw string
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTimestamp parses s with the accepted layouts.
func ParseTimestamp(s string) (Timestamp, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Timestamp{}, nil
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return Timestamp{Time: t, raw: s}, nil
		}
	}
	return Timestamp{}, fmt.Errorf("batches: cannot parse timestamp %q", s)
}

// UnmarshalJSON implements json.Unmarshaler.
func (ts *Timestamp) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		*ts = Timestamp{}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("batches: timestamp: %w", err)
	}
	parsed, err := ParseTimestamp(s)
	if err != nil {
		return err
	}
	*ts = parsed
	return nil
}

// MarshalJSON always emits RFC3339.
func (ts Timestamp) MarshalJSON() ([]byte, error) {
	if ts.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(ts.Format(time.RFC3339))
}

// Raw returns the text the API sent, falling back to RFC3339.
func (ts Timestamp) Raw() string {
	if ts.raw != "" {
		return ts.raw
	}
	return ts.String()
}

// String formats the timestamp as RFC3339, or "" when zero.
func (ts Timestamp) String() string {
	if ts.IsZero() {
		return ""
	}
	return ts.Format(time.RFC3339)
}

// Item is one line of a batch.
type Item struct {
	MaterialTypeID   int64  `json:"material_type_id"`
	MaterialTypeName string `json:"material_type_name,omitempty"`
	Color            string `json:"color"`
	Rolls            int    `json:"number_of_rolls"`
}

// Batch is a tracked unit of material. A batch without OutTime is open.
type Batch struct {
	ID                  int64         `json:"id"`
	CompanyID           int64         `json:"company_id"`
	CompanyName         string        `json:"company_name"`
	LotNumber           string        `json:"lot_number"`
	ReceivedThrough     Channel       `json:"received_through_type"`
	MediatorID          *int64        `json:"mediator_id"`
	MediatorName        string        `json:"mediator_name"`
	InTime              Timestamp     `json:"in_time"`
	OutTime             *Timestamp    `json:"out_time"`
	DestinationID       *int64        `json:"destination_id"`
	DestinationName     string        `json:"destination_name"`
	TransportType       TransportType `json:"transport_type"`
	VehicleRegistration string        `json:"vehicle_registration"`
	ExitNotes           string        `json:"exit_notes"`
	Items               []Item        `json:"items"`
}

// IsOpen reports whether the batch has not exited yet.
func (b Batch) IsOpen() bool {
	return b.OutTime == nil || b.OutTime.IsZero()
}

// IsClosed reports whether an exit has been recorded.
func (b Batch) IsClosed() bool {
	return !b.IsOpen()
}

// ExitTime returns the exit time, zero while open.
func (b Batch) ExitTime() time.Time {
	if b.IsOpen() {
		return time.Time{}
	}
	return b.OutTime.Time
}

// ItemInput is one submitted line.
type ItemInput struct {
	MaterialTypeID int64  `json:"material_type_id" validate:"required"`
	Color          string `json:"color" validate:"required"`
	Rolls          int    `json:"number_of_rolls" validate:"gte=1"`
}

// Input is the create/update payload collected by the batch form.
type Input struct {
	CompanyID       int64       `validate:"required"`
	LotNumber       string      `validate:"required"`
	ReceivedThrough Channel     `validate:"required,oneof=company mediator"`
	MediatorID      int64       `validate:"required_if=ReceivedThrough mediator"`
	Items           []ItemInput `validate:"required,min=1,dive"`
}

// NewItemInput is a blank editor row.
func NewItemInput() ItemInput {
	return ItemInput{Rolls: 1}
}

// TotalRolls sums the roll counts of the submitted lines.
func (in Input) TotalRolls() int {
	total := 0
	for _, it := range in.Items {
		if it.Rolls > 0 {
			total += it.Rolls
		}
	}
	return total
}

type inputPayload struct {
	CompanyID       int64       `json:"company_id"`
	LotNumber       string      `json:"lot_number"`
	Items           []ItemInput `json:"items"`
	ReceivedThrough Channel     `json:"received_through_type"`
	MediatorID      *int64      `json:"mediator_id"`
}

// MarshalJSON sends mediator_id only for mediator receipts and null otherwise.
func (in Input) MarshalJSON() ([]byte, error) {
	payload := inputPayload{
		CompanyID:       in.CompanyID,
		LotNumber:       in.LotNumber,
		Items:           in.Items,
		ReceivedThrough: in.ReceivedThrough,
	}
	if payload.Items == nil {
		payload.Items = []ItemInput{}
	}
	if in.ReceivedThrough == ChannelMediator && in.MediatorID != 0 {
		id := in.MediatorID
		payload.MediatorID = &id
	}
	return json.Marshal(payload)
}

// InputFromBatch pre-fills the form from an existing batch.
func InputFromBatch(b Batch) Input {
	in := Input{
		CompanyID:       b.CompanyID,
		LotNumber:       b.LotNumber,
		ReceivedThrough: b.ReceivedThrough,
	}
	if b.MediatorID != nil {
		in.MediatorID = *b.MediatorID
	}
	for _, it := range b.Items {
		in.Items = append(in.Items, ItemInput{MaterialTypeID: it.MaterialTypeID, Color: it.Color, Rolls: it.Rolls})
	}
	if len(in.Items) == 0 {
		in.Items = []ItemInput{NewItemInput()}
	}
	return in
}

// ExitInput is what the exit form collects.
type ExitInput struct {
	DestinationID       int64
	TransportType       TransportType
	VehicleRegistration string
	Notes               string
}

// ExitRequest is the POST /batch/:id/exit body.
type ExitRequest struct {
	DestinationID       int64         `json:"destination_id"`
	TransportType       TransportType `json:"transport_type"`
	VehicleRegistration *string       `json:"vehicle_registration,omitempty"`
	Notes               string        `json:"notes"`
}

// Request builds the payload. The vehicle registration is only present for
// external transport.
func (in ExitInput) Request() ExitRequest {
	req := ExitRequest{
		DestinationID: in.DestinationID,
		TransportType: in.TransportType,
		Notes:         in.Notes,
	}
	if in.TransportType == TransportExternal {
		reg := NormalizeVehicleRegistration(in.VehicleRegistration)
		req.VehicleRegistration = &reg
	}
	return req
}
