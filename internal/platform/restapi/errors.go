package restapi

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrNotFound matches any API response with status 404.
var ErrNotFound = errors.New("restapi: not found")

// Error is returned for every non-2xx API response.
type Error struct {
	Method  string
	Path    string
	Status  int
	Message string
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("restapi: %s %s: status %d: %s", e.Method, e.Path, e.Status, e.Message)
	}
	return fmt.Sprintf("restapi: %s %s: status %d", e.Method, e.Path, e.Status)
}

// Is lets errors.Is(err, ErrNotFound) match 404 responses.
func (e *Error) Is(target error) bool {
	return target == ErrNotFound && e.Status == http.StatusNotFound
}

// UserMessage exposes the server-provided text.
func (e *Error) UserMessage() string {
	return e.Message
}

// Message returns the server's error text when err carries one, otherwise fallback.
func Message(err error, fallback string) string {
	var apiErr *Error
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return fallback
}
