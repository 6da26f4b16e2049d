package export

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/dyetrack/dyetrack/internal/batches"
	"github.com/dyetrack/dyetrack/report"
)

func decodeBatches(t *testing.T, payload string) []batches.Batch {
	t.Helper()
	var list []batches.Batch
	require.NoError(t, json.Unmarshal([]byte(payload), &list))
	return list
}

func sampleBatches(t *testing.T) []batches.Batch {
	return decodeBatches(t, `[
		{"id":1,"company_name":"Acme, Inc.","lot_number":"L-1","received_through_type":"company",
		 "in_time":"2024-03-01T08:30:00","out_time":null},
		{"id":2,"company_name":"Beta \"Dye\" Works","lot_number":"L-2","received_through_type":"mediator",
		 "mediator_name":"Ravi","in_time":"2024-03-02T09:00:00","out_time":"2024-03-04T17:00:00",
		 "transport_type":"external","vehicle_registration":"MH-12-AB-1234"},
		{"id":3,"company_name":"Gamma","lot_number":"L-3","received_through_type":"company",
		 "in_time":"2024-03-03T10:00:00","out_time":"2024-03-05T11:00:00"}
	]`)
}

func TestEscapeField(t *testing.T) {
	assert.Equal(t, "plain", EscapeField("plain"))
	assert.Equal(t, `"Acme, Inc."`, EscapeField("Acme, Inc."))
	assert.Equal(t, `"say ""hi"""`, EscapeField(`say "hi"`))
	assert.Equal(t, "\"two\nlines\"", EscapeField("two\nlines"))
	assert.Equal(t, "carriage\rreturn", EscapeField("carriage\rreturn"))
	assert.Equal(t, "", EscapeField(""))
}

func TestRowsPlaceholders(t *testing.T) {
	rows := Rows(sampleBatches(t))
	require.Len(t, rows, 3)

	assert.Equal(t, NotExited, rows[0].ExitTime)
	assert.Equal(t, NotApplicable, rows[0].ExitType)
	assert.Equal(t, NotApplicable, rows[0].Vehicle)
	assert.Equal(t, NotApplicable, rows[0].Mediator)
	assert.Equal(t, "2024-03-01T08:30:00", rows[0].InTime)

	assert.Equal(t, "External", rows[1].ExitType)
	assert.Equal(t, "2024-03-04T17:00:00", rows[1].ExitTime)
	assert.Equal(t, "Ravi", rows[1].Mediator)

	// closed without transport type
	assert.Equal(t, NotApplicable, rows[2].ExitType)
}

func TestCSV(t *testing.T) {
	out := string(CSV(Rows(sampleBatches(t))))
	lines := strings.Split(out, "\r\n")
	require.Len(t, lines, 4)
	assert.False(t, strings.HasSuffix(out, "\r\n"))

	assert.Equal(t, "Company,LotNumber,InTime,ExitTime,ExitType,Vehicle,ReceivedThrough,Mediator", lines[0])
	assert.Equal(t, `"Acme, Inc.",L-1,2024-03-01T08:30:00,Not Exited,N/A,N/A,company,N/A`, lines[1])
	assert.Equal(t, `"Beta ""Dye"" Works",L-2,2024-03-02T09:00:00,2024-03-04T17:00:00,External,MH-12-AB-1234,mediator,Ravi`, lines[2])
}

func TestCSVEmptyListHasHeaderOnly(t *testing.T) {
	assert.Equal(t, strings.Join(Header, ","), string(CSV(nil)))
}

func TestXLSX(t *testing.T) {
	data, err := XLSX(Rows(sampleBatches(t)))
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	assert.Equal(t, []string{sheetName}, f.GetSheetList())
	rows, err := f.GetRows(sheetName)
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, Header, rows[0])
	assert.Equal(t, "Acme, Inc.", rows[1][0])
	assert.Equal(t, "Not Exited", rows[1][3])
}

type stubHTML struct {
	name string
	data any
}

func (s *stubHTML) RenderString(name string, data any) (string, error) {
	s.name = name
	s.data = data
	return "<html>report</html>", nil
}

type stubPDF struct {
	html string
	opts report.PageOptions
}

func (s *stubPDF) RenderHTML(_ context.Context, html string, opts report.PageOptions) ([]byte, error) {
	s.html = html
	s.opts = opts
	return []byte("%PDF-1.7"), nil
}

func TestPDF(t *testing.T) {
	html := &stubHTML{}
	pdf := &stubPDF{}
	now := time.Date(2024, 3, 6, 9, 0, 0, 0, time.UTC)
	doc := NewDocument("Gamma", Rows(sampleBatches(t)[2:]), now)

	out, err := PDF(context.Background(), html, pdf, doc)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.7", string(out))
	assert.Equal(t, "reports/batches.html", html.name)
	assert.Equal(t, "Batch Report: Gamma", html.data.(Document).Title)
	assert.Equal(t, "<html>report</html>", pdf.html)
	assert.True(t, pdf.opts.Landscape)
}
