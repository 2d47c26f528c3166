package login

import (
	"sync"

	"github.com/edunirix/portal/internal/navigation"
	"github.com/edunirix/portal/internal/session"
)

// Navigator performs or schedules a navigation.
type Navigator interface {
	Navigate(out navigation.Outcome)
	Cancel()
}

// RedirectEffect observes a Store and navigates whenever a user is present,
// using the passive decision.
type RedirectEffect struct {
	routes    navigation.Routes
	requested string
	navigator Navigator
	detach    func()
}

// AttachRedirectEffect subscribes to store and evaluates its current state
// once, the way a freshly mounted view would.
func AttachRedirectEffect(store *session.Store, routes navigation.Routes, requestedPath string, nav Navigator) *RedirectEffect {
	e := &RedirectEffect{routes: routes, requested: requestedPath, navigator: nav}
	e.detach = store.Subscribe(e.observe)
	if user := store.User(); user != nil {
		e.observe(session.Event{Kind: session.KindLogin, User: user, Token: store.Token()})
	}
	return e
}

// Detach stops observing the store.
func (e *RedirectEffect) Detach() {
	if e != nil && e.detach != nil {
		e.detach()
		e.detach = nil
	}
}

func (e *RedirectEffect) observe(ev session.Event) {
	if ev.Kind == session.KindLogout {
		e.navigator.Cancel()
		return
	}
	out := e.routes.Decide(ev.User, e.requested, navigation.SourcePassive)
	if out != nil {
		e.navigator.Navigate(*out)
	}
}

// PendingNavigation records the navigation an HTTP response should perform.
// Navigations coalesce: a later call replaces the pending one, so a request
// yields at most one redirect.
type PendingNavigation struct {
	mu       sync.Mutex
	outcome  *navigation.Outcome
	requests int
}

// Navigate replaces the pending navigation.
func (p *PendingNavigation) Navigate(out navigation.Outcome) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.outcome = &out
	p.requests++
}

// Cancel drops the pending navigation.
func (p *PendingNavigation) Cancel() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.outcome = nil
}

// Outcome returns the pending navigation, or nil.
func (p *PendingNavigation) Outcome() *navigation.Outcome {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.outcome == nil {
		return nil
	}
	out := *p.outcome
	return &out
}

// Requests reports how many navigations were requested, coalesced or not.
func (p *PendingNavigation) Requests() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.requests
}
