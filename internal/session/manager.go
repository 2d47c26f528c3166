// Package session keeps per-browser state: a Redis-backed cookie session and
// the authentication Store layered on top of it.
package session

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

// Flash is a one-time notice shown on the next rendered page.
type Flash struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// Options configures a Manager.
type Options struct {
	CookieName string
	Secret     string
	TTL        time.Duration
	Secure     bool
	KeyPrefix  string
}

// Manager issues signed session cookies and stores session payloads in Redis.
type Manager struct {
	client     redis.UniversalClient
	cookieName string
	secret     []byte
	ttl        time.Duration
	secure     bool
	keyPrefix  string
}

type payload struct {
	Values  map[string]string `json:"values"`
	Flashes []Flash           `json:"flashes,omitempty"`
}

// NewManager constructs a Manager.
func NewManager(client redis.UniversalClient, opts Options) *Manager {
	if opts.CookieName == "" {
		opts.CookieName = "portal_session"
	}
	if opts.TTL <= 0 {
		opts.TTL = 24 * time.Hour
	}
	if opts.KeyPrefix == "" {
		opts.KeyPrefix = "session:"
	}
	return &Manager{
		client:     client,
		cookieName: opts.CookieName,
		secret:     []byte(opts.Secret),
		ttl:        opts.TTL,
		secure:     opts.Secure,
		keyPrefix:  opts.KeyPrefix,
	}
}

// Load returns the session referenced by the request cookie, or a fresh one
// when the cookie is missing, tampered with or expired in Redis.
func (m *Manager) Load(ctx context.Context, r *http.Request) (*Session, error) {
	cookie, err := r.Cookie(m.cookieName)
	if err != nil {
		if errors.Is(err, http.ErrNoCookie) {
			return m.newSession(), nil
		}
		return nil, err
	}
	id, ok := m.verify(cookie.Value)
	if !ok {
		return m.newSession(), nil
	}

	raw, err := m.client.Get(ctx, m.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return m.newSession(), nil
		}
		return nil, fmt.Errorf("session: load %s: %w", id, err)
	}
	var stored payload
	if err := json.Unmarshal(raw, &stored); err != nil {
		return nil, fmt.Errorf("session: decode %s: %w", id, err)
	}
	if stored.Values == nil {
		stored.Values = make(map[string]string)
	}
	return &Session{ID: id, values: stored.Values, flashes: stored.Flashes}, nil
}

// Commit persists a changed session and refreshes the cookie.
func (m *Manager) Commit(ctx context.Context, w http.ResponseWriter, sess *Session) error {
	if sess == nil {
		return nil
	}
	if sess.previousID != "" {
		if err := m.client.Del(ctx, m.key(sess.previousID)).Err(); err != nil && !errors.Is(err, redis.Nil) {
			return fmt.Errorf("session: drop renewed %s: %w", sess.previousID, err)
		}
		sess.previousID = ""
	}

	if sess.destroyed {
		if err := m.client.Del(ctx, m.key(sess.ID)).Err(); err != nil && !errors.Is(err, redis.Nil) {
			return fmt.Errorf("session: destroy %s: %w", sess.ID, err)
		}
		http.SetCookie(w, m.cookie("", -1))
		return nil
	}

	if sess.dirty || sess.isNew {
		data, err := json.Marshal(payload{Values: sess.values, Flashes: sess.flashes})
		if err != nil {
			return fmt.Errorf("session: encode %s: %w", sess.ID, err)
		}
		if err := m.client.Set(ctx, m.key(sess.ID), data, m.ttl).Err(); err != nil {
			return fmt.Errorf("session: save %s: %w", sess.ID, err)
		}
		sess.dirty = false
		sess.isNew = false
	}

	http.SetCookie(w, m.cookie(m.sign(sess.ID), int(m.ttl.Seconds())))
	return nil
}

// Destroy marks the session for deletion on the next Commit.
func (m *Manager) Destroy(sess *Session) {
	if sess != nil {
		sess.destroyed = true
	}
}

// TTL exposes the configured session lifetime.
func (m *Manager) TTL() time.Duration {
	return m.ttl
}

// CookieName returns the session cookie name.
func (m *Manager) CookieName() string {
	return m.cookieName
}

// CookieValue returns the signed cookie value for a session ID.
func (m *Manager) CookieValue(id string) string {
	return m.sign(id)
}

func (m *Manager) cookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     m.cookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	}
}

func (m *Manager) newSession() *Session {
	return &Session{
		ID:     uuid.NewString(),
		values: make(map[string]string),
		isNew:  true,
	}
}

func (m *Manager) key(id string) string {
	return m.keyPrefix + id
}

func (m *Manager) sign(id string) string {
	return id + "." + m.mac(id)
}

func (m *Manager) verify(value string) (string, bool) {
	id, sig, found := strings.Cut(value, ".")
	if !found || id == "" {
		return "", false
	}
	if !hmac.Equal([]byte(sig), []byte(m.mac(id))) {
		return "", false
	}
	return id, true
}

func (m *Manager) mac(id string) string {
	h := hmac.New(sha256.New, m.secret)
	_, _ = h.Write([]byte(id))
	return base64.RawURLEncoding.EncodeToString(h.Sum(nil))
}

// Session holds the values of one browser session for the current request.
type Session struct {
	ID         string
	values     map[string]string
	flashes    []Flash
	previousID string
	isNew      bool
	dirty      bool
	destroyed  bool
}

// Get returns a value or "".
func (s *Session) Get(key string) string {
	if s == nil || s.values == nil {
		return ""
	}
	return s.values[key]
}

// Set stores a value.
func (s *Session) Set(key, value string) {
	if s.values == nil {
		s.values = make(map[string]string)
	}
	s.values[key] = value
	s.dirty = true
}

// Delete removes a value.
func (s *Session) Delete(key string) {
	if _, ok := s.values[key]; !ok {
		return
	}
	delete(s.values, key)
	s.dirty = true
}

// Renew moves the session to a new ID, keeping its values. Call it when the
// privilege level changes, e.g. on login.
func (s *Session) Renew() {
	if !s.isNew && s.previousID == "" {
		s.previousID = s.ID
	}
	s.ID = uuid.NewString()
	s.dirty = true
}

// AddFlash queues a flash message.
func (s *Session) AddFlash(f Flash) {
	s.flashes = append(s.flashes, f)
	s.dirty = true
}

// PopFlash removes and returns the oldest flash message.
func (s *Session) PopFlash() *Flash {
	if s == nil || len(s.flashes) == 0 {
		return nil
	}
	f := s.flashes[0]
	s.flashes = s.flashes[1:]
	s.dirty = true
	return &f
}
