// Package export turns the filtered batch list into downloadable files.
package export

import (
	"github.com/dyetrack/dyetrack/internal/batches"
)

// Placeholders used for absent values, never empty cells.
const (
	NotExited     = "Not Exited"
	NotApplicable = "N/A"
)

// Header is the fixed column order of every export.
var Header = []string{"Company", "LotNumber", "InTime", "ExitTime", "ExitType", "Vehicle", "ReceivedThrough", "Mediator"}

// Row is one exported batch.
type Row struct {
	Company         string
	LotNumber       string
	InTime          string
	ExitTime        string
	ExitType        string
	Vehicle         string
	ReceivedThrough string
	Mediator        string
}

// Values returns the cells in Header order.
func (r Row) Values() []string {
	return []string{r.Company, r.LotNumber, r.InTime, r.ExitTime, r.ExitType, r.Vehicle, r.ReceivedThrough, r.Mediator}
}

// Rows maps batches to export rows, one per batch, in list order.
func Rows(list []batches.Batch) []Row {
	out := make([]Row, 0, len(list))
	for _, b := range list {
		row := Row{
			Company:         b.CompanyName,
			LotNumber:       b.LotNumber,
			InTime:          b.InTime.Raw(),
			ExitTime:        NotExited,
			ExitType:        exitType(b.TransportType),
			Vehicle:         orNA(b.VehicleRegistration),
			ReceivedThrough: string(b.ReceivedThrough),
			Mediator:        orNA(b.MediatorName),
		}
		if b.IsClosed() {
			row.ExitTime = b.OutTime.Raw()
		}
		out = append(out, row)
	}
	return out
}

func exitType(t batches.TransportType) string {
	switch t {
	case batches.TransportExternal:
		return "External"
	case batches.TransportCompany:
		return "Company"
	default:
		return NotApplicable
	}
}

func orNA(s string) string {
	if s == "" {
		return NotApplicable
	}
	return s
}
