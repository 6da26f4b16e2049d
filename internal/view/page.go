package view

import (
	"net/http"

	"github.com/dyetrack/dyetrack/internal/shared"
)

// NewPageData fills the fields every page needs from the request session: the
// CSRF token and any pending flash message. Handlers put their own message for
// this response in Notice; both are rendered.
func NewPageData(r *http.Request, csrf *shared.CSRFManager, title string) TemplateData {
	data := TemplateData{Title: title, CurrentPath: r.URL.Path}
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		return data
	}
	if csrf != nil {
		data.CSRFToken, _ = csrf.EnsureToken(r.Context(), sess)
	}
	data.Flash = sess.PopFlash()
	return data
}

// AddFlash queues a message for the next rendered page.
func AddFlash(r *http.Request, msg shared.FlashMessage) {
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		sess.AddFlash(msg)
	}
}

// LoadError is the view model of pages/load_error.html, shown instead of a
// page whose data could not be fetched.
type LoadError struct {
	Message   string
	BackURL   string
	BackLabel string
}
