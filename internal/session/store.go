package session

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/edunirix/portal/internal/auth"
)

const (
	// TokenKey is the fixed key the session token is persisted under.
	TokenKey = "token"
	// UserKey holds the JSON encoded user record.
	UserKey = "user"
)

// Persister is the durable key/value storage behind a Store. *Session
// satisfies it.
type Persister interface {
	Get(key string) string
	Set(key, value string)
	Delete(key string)
}

// EventKind tells observers what happened to the Store.
type EventKind int

const (
	KindLogin EventKind = iota + 1
	KindLogout
)

func (k EventKind) String() string {
	switch k {
	case KindLogin:
		return "login"
	case KindLogout:
		return "logout"
	default:
		return "unknown"
	}
}

// Event describes a committed Store transition. User is nil on logout.
type Event struct {
	Kind  EventKind
	User  *auth.User
	Token string
}

// Observer is notified after every committed Store transition.
type Observer func(Event)

// Store holds the authenticated user and token of one browser session. Login
// and Logout are its only mutators; observers run synchronously after the
// mutation and its persistence are complete.
type Store struct {
	mu        sync.RWMutex
	user      *auth.User
	token     string
	persister Persister

	observers []subscription
	nextID    int
}

type subscription struct {
	id int
	fn Observer
}

// NewStore builds a Store and rehydrates it from p. A record that cannot be
// decoded is discarded and the store starts empty.
func NewStore(p Persister) *Store {
	s := &Store{persister: p}
	if p == nil {
		return s
	}
	token := p.Get(TokenKey)
	raw := p.Get(UserKey)
	if token == "" || raw == "" {
		return s
	}
	var user auth.User
	if err := json.Unmarshal([]byte(raw), &user); err != nil {
		p.Delete(UserKey)
		p.Delete(TokenKey)
		return s
	}
	s.user = &user
	s.token = token
	return s
}

// Login stores the user and token, persists them and notifies observers.
func (s *Store) Login(user auth.User, token string) error {
	raw, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("session: encode user: %w", err)
	}

	s.mu.Lock()
	u := cloneUser(&user)
	s.user = u
	s.token = token
	if s.persister != nil {
		s.persister.Set(TokenKey, token)
		s.persister.Set(UserKey, string(raw))
	}
	observers := s.snapshot()
	s.mu.Unlock()

	s.notify(observers, Event{Kind: KindLogin, User: cloneUser(u), Token: token})
	return nil
}

// Logout clears the user and token and notifies observers.
func (s *Store) Logout() {
	s.mu.Lock()
	s.user = nil
	s.token = ""
	if s.persister != nil {
		s.persister.Delete(TokenKey)
		s.persister.Delete(UserKey)
	}
	observers := s.snapshot()
	s.mu.Unlock()

	s.notify(observers, Event{Kind: KindLogout})
}

// User returns a copy of the current user, or nil.
func (s *Store) User() *auth.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneUser(s.user)
}

// Token returns the current token.
func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// Authenticated reports whether a user is present.
func (s *Store) Authenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user != nil
}

// Subscribe registers fn and returns a function removing it again.
func (s *Store) Subscribe(fn Observer) func() {
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.observers = append(s.observers, subscription{id: id, fn: fn})
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, sub := range s.observers {
			if sub.id == id {
				s.observers = append(s.observers[:i:i], s.observers[i+1:]...)
				return
			}
		}
	}
}

func (s *Store) snapshot() []Observer {
	out := make([]Observer, len(s.observers))
	for i, sub := range s.observers {
		out[i] = sub.fn
	}
	return out
}

func (s *Store) notify(observers []Observer, ev Event) {
	for _, fn := range observers {
		fn(ev)
	}
}

func cloneUser(u *auth.User) *auth.User {
	if u == nil {
		return nil
	}
	c := *u
	if u.Profile != nil {
		c.Profile = make(map[string]any, len(u.Profile))
		for k, v := range u.Profile {
			c.Profile[k] = v
		}
	}
	return &c
}
