package shared

import (
	"context"
	"errors"
)

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrCSRFTokenMissing occurs when CSRF token missing.
	ErrCSRFTokenMissing = errors.New("csrf token missing")
	// ErrCSRFTokenMismatch occurs when CSRF tokens do not match.
	ErrCSRFTokenMismatch = errors.New("csrf token mismatch")
)

// UserMessenger is implemented by errors whose text is safe to show to end users.
type UserMessenger interface {
	UserMessage() string
}

// UserSafeMessage returns text for err that can be rendered in a page.
func UserSafeMessage(err error) string {
	if err == nil {
		return ""
	}
	var um UserMessenger
	if errors.As(err, &um) {
		if msg := um.UserMessage(); msg != "" {
			return msg
		}
	}
	switch {
	case errors.Is(err, ErrNotFound):
		return "The requested record could not be found"
	case errors.Is(err, context.DeadlineExceeded):
		return "The request timed out, please try again"
	case errors.Is(err, context.Canceled):
		return "The request was cancelled"
	}
	return "Something went wrong, please try again"
}
