package export

import (
	"context"
	"fmt"
	"time"

	"github.com/dyetrack/dyetrack/report"
)

// Document is the view model of the printable batch report.
type Document struct {
	Title       string
	Company     string
	GeneratedAt time.Time
	Header      []string
	Rows        []Row
}

// NewDocument builds the report for rows filtered by company ("" for all).
func NewDocument(company string, rows []Row, now time.Time) Document {
	title := "Batch Report"
	if company != "" {
		title = "Batch Report: " + company
	}
	return Document{Title: title, Company: company, GeneratedAt: now, Header: Header, Rows: rows}
}

// HTMLRenderer produces the standalone HTML of a document.
type HTMLRenderer interface {
	RenderString(name string, data any) (string, error)
}

// PDFRenderer converts HTML to PDF.
type PDFRenderer interface {
	RenderHTML(ctx context.Context, html string, opts report.PageOptions) ([]byte, error)
}

// PDF renders doc through the HTML template and the PDF service.
func PDF(ctx context.Context, html HTMLRenderer, pdf PDFRenderer, doc Document) ([]byte, error) {
	markup, err := html.RenderString("reports/batches.html", doc)
	if err != nil {
		return nil, fmt.Errorf("render report html: %w", err)
	}
	out, err := pdf.RenderHTML(ctx, markup, report.A4Landscape)
	if err != nil {
		return nil, fmt.Errorf("render report pdf: %w", err)
	}
	return out, nil
}
