package view

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/dyetrack/dyetrack/internal/shared"
	"github.com/dyetrack/dyetrack/web"
)

// Engine renders HTML templates.
type Engine struct {
	templates *template.Template
}

// Refresh asks the layout to navigate to URL after the given delay.
type Refresh struct {
	URL   string
	After time.Duration
}

// Seconds is the delay as a meta refresh value.
func (r Refresh) Seconds() string {
	return fmt.Sprintf("%g", r.After.Seconds())
}

// TemplateData contains values shared across templates.
type TemplateData struct {
	Title       string
	CSRFToken   string
	Flash       *shared.FlashMessage
	Notice      *shared.FlashMessage
	CurrentPath string
	Refresh     *Refresh
	Now         time.Time
	Data        any
}

// Funcs is the template function set. Casers and printers hold state, so each
// call builds its own.
func Funcs() template.FuncMap {
	return template.FuncMap{
		"formatDate": func(t time.Time) string {
			if t.IsZero() {
				return ""
			}
			return t.Format("02 Jan 2006")
		},
		"formatDateTime": func(t time.Time) string {
			if t.IsZero() {
				return ""
			}
			return t.Format("02 Jan 2006 15:04")
		},
		"clock": func(t time.Time) string {
			return t.Format("15:04:05")
		},
		"title": func(s any) string {
			return cases.Title(language.English).String(fmt.Sprint(s))
		},
		"number": func(n int) string {
			return message.NewPrinter(language.English).Sprintf("%d", n)
		},
		"flashes": func(msgs ...*shared.FlashMessage) []shared.FlashMessage {
			out := make([]shared.FlashMessage, 0, len(msgs))
			for _, m := range msgs {
				if m != nil {
					out = append(out, *m)
				}
			}
			return out
		},
		"dict": func(pairs ...any) (map[string]any, error) {
			if len(pairs)%2 != 0 {
				return nil, errors.New("dict: odd number of arguments")
			}
			out := make(map[string]any, len(pairs)/2)
			for i := 0; i < len(pairs); i += 2 {
				key, ok := pairs[i].(string)
				if !ok {
					return nil, fmt.Errorf("dict: key %v is not a string", pairs[i])
				}
				out[key] = pairs[i+1]
			}
			return out, nil
		},
	}
}

// NewEngine parses templates at build-time.
func NewEngine() (*Engine, error) {
	tpl, err := template.New("root").Funcs(Funcs()).ParseFS(web.Templates, "templates/layouts/*.html", "templates/partials/*.html", "templates/pages/*.html")
	if err != nil {
		return nil, err
	}
	return &Engine{templates: tpl}, nil
}

// Render executes a named template with TemplateData.
func (e *Engine) Render(w http.ResponseWriter, name string, data TemplateData) error {
	return e.RenderStatus(w, http.StatusOK, name, data)
}

// RenderStatus renders into a buffer first so a template failure never leaves
// a half-written page behind a success status.
func (e *Engine) RenderStatus(w http.ResponseWriter, status int, name string, data TemplateData) error {
	if e == nil {
		return fmt.Errorf("template engine not initialised")
	}
	if data.Now.IsZero() {
		data.Now = time.Now()
	}
	var buf bytes.Buffer
	if err := e.templates.ExecuteTemplate(&buf, name, data); err != nil {
		return err
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, err := buf.WriteTo(w)
	return err
}

// RenderString executes a template to a string, used for documents handed to
// the PDF renderer.
func (e *Engine) RenderString(name string, data any) (string, error) {
	if e == nil {
		return "", fmt.Errorf("template engine not initialised")
	}
	var buf bytes.Buffer
	if err := e.templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
