package shared

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Flash kinds understood by the layout template.
const (
	FlashSuccess = "success"
	FlashError   = "error"
	FlashInfo    = "info"
)

const (
	sessionKeyPrefix = "dyetrack:session:"
	// maxQueuedFlashes bounds the queue for clients that post repeatedly
	// without ever rendering a page.
	maxQueuedFlashes = 5
)

// FlashMessage is a one-time notice carried across a redirect.
// DismissAfterMS > 0 makes the page hide the message after that many milliseconds.
type FlashMessage struct {
	Kind           string `json:"kind"`
	Message        string `json:"message"`
	DismissAfterMS int64  `json:"dismiss_after_ms,omitempty"`
}

// NewFlash builds a flash message that clears itself after the given delay.
// A zero delay keeps the message on screen.
func NewFlash(kind, message string, dismissAfter time.Duration) FlashMessage {
	return FlashMessage{Kind: kind, Message: message, DismissAfterMS: dismissAfter.Milliseconds()}
}

// Session is the per-browser state kept between requests: the CSRF token and
// queued flash messages. Nothing else about the user is stored.
type Session struct {
	ID        string
	csrfToken string
	flashes   []FlashMessage
	dirty     bool
}

type storedSession struct {
	CSRFToken string         `json:"csrf_token,omitempty"`
	Flashes   []FlashMessage `json:"flashes,omitempty"`
}

// AddFlash queues a message for the next rendered page. The oldest message is
// dropped once the queue is full.
func (s *Session) AddFlash(msg FlashMessage) {
	s.flashes = append(s.flashes, msg)
	if len(s.flashes) > maxQueuedFlashes {
		s.flashes = s.flashes[len(s.flashes)-maxQueuedFlashes:]
	}
	s.dirty = true
}

// PopFlash removes and returns the oldest queued message, nil when empty.
func (s *Session) PopFlash() *FlashMessage {
	if s == nil || len(s.flashes) == 0 {
		return nil
	}
	msg := s.flashes[0]
	s.flashes = s.flashes[1:]
	s.dirty = true
	return &msg
}

// SessionManager keeps sessions in Redis under a random id. The cookie carries
// the id and its HMAC, so ids the server did not issue are never looked up.
type SessionManager struct {
	client     *redis.Client
	cookieName string
	secret     []byte
	ttl        time.Duration
	secure     bool
}

// NewSessionManager constructs a SessionManager that signs cookies with secret.
func NewSessionManager(client *redis.Client, cookieName string, secret string, ttl time.Duration, secure bool) *SessionManager {
	return &SessionManager{client: client, cookieName: cookieName, secret: []byte(secret), ttl: ttl, secure: secure}
}

// CookieName returns the session cookie name.
func (sm *SessionManager) CookieName() string {
	return sm.cookieName
}

// Load returns the session named by the request cookie. A missing, unsigned,
// tampered, unknown or unreadable session yields a fresh one with a new id,
// never the id the client sent.
func (sm *SessionManager) Load(ctx context.Context, r *http.Request) (*Session, error) {
	cookie, err := r.Cookie(sm.cookieName)
	if errors.Is(err, http.ErrNoCookie) || (err == nil && cookie.Value == "") {
		return sm.fresh(), nil
	}
	if err != nil {
		return nil, err
	}
	id, ok := sm.verify(cookie.Value)
	if !ok {
		return sm.fresh(), nil
	}

	payload, err := sm.client.Get(ctx, sessionKeyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return sm.fresh(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("shared: load session: %w", err)
	}
	var stored storedSession
	if err := json.Unmarshal(payload, &stored); err != nil {
		return sm.fresh(), nil
	}
	return &Session{ID: id, csrfToken: stored.CSRFToken, flashes: stored.Flashes}, nil
}

// Commit writes a changed session to Redis and refreshes the cookie expiry.
func (sm *SessionManager) Commit(ctx context.Context, w http.ResponseWriter, r *http.Request, sess *Session) error {
	if sess == nil {
		return nil
	}
	if sess.dirty {
		data, err := json.Marshal(storedSession{CSRFToken: sess.csrfToken, Flashes: sess.flashes})
		if err != nil {
			return err
		}
		if err := sm.client.Set(ctx, sessionKeyPrefix+sess.ID, data, sm.ttl).Err(); err != nil {
			return fmt.Errorf("shared: save session: %w", err)
		}
		sess.dirty = false
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sm.cookieName,
		Value:    sm.sign(sess.ID),
		Path:     "/",
		HttpOnly: true,
		Secure:   sm.secure,
		SameSite: http.SameSiteLaxMode,
		Expires:  time.Now().Add(sm.ttl),
	})
	return nil
}

func (sm *SessionManager) mac(id string) string {
	h := hmac.New(sha256.New, sm.secret)
	_, _ = h.Write([]byte(id))
	return base64.RawURLEncoding.EncodeToString(h.Sum(nil))
}

func (sm *SessionManager) sign(id string) string {
	return id + "." + sm.mac(id)
}

// verify splits a cookie value into the id and its signature.
func (sm *SessionManager) verify(value string) (string, bool) {
	id, sig, found := strings.Cut(value, ".")
	if !found || id == "" {
		return "", false
	}
	return id, hmac.Equal([]byte(sig), []byte(sm.mac(id)))
}

func (sm *SessionManager) fresh() *Session {
	return &Session{ID: uuid.NewString(), dirty: true}
}

type sessionContextKey struct{}

// ContextWithSession stores the session in context.
func ContextWithSession(ctx context.Context, sess *Session) context.Context {
	return context.WithValue(ctx, sessionContextKey{}, sess)
}

// SessionFromContext extracts the session from context, nil when absent.
func SessionFromContext(ctx context.Context) *Session {
	sess, _ := ctx.Value(sessionContextKey{}).(*Session)
	return sess
}
