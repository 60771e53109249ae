package session

import (
	"github.com/jrsteele09/issue-tracker-client/users"
)

type EventKind string

const (
	// EventAuthenticated fires as soon as credentials are accepted, before the
	// identity is known
	EventAuthenticated EventKind = "authenticated"
	// EventIdentityLoaded fires when the current user's identity has been fetched
	EventIdentityLoaded EventKind = "identity_loaded"
	// EventLoggedOut fires on every explicit logout
	EventLoggedOut EventKind = "logged_out"
	// EventSessionTerminated fires when an authenticated session is ended by a
	// failed refresh or identity fetch
	EventSessionTerminated EventKind = "session_terminated"
)

// Views a navigation layer routes to
const (
	ViewLanding = "/dashboard"
	ViewEntry   = "/login"
)

// Event is published to subscribers after the session state has changed
type Event struct {
	Kind EventKind
	View string      // where a navigation layer should go
	User *users.User // set for EventIdentityLoaded
	Err  error       // cause of EventSessionTerminated
}

// Subscribe registers fn for every subsequent event. Events are delivered
// synchronously on the goroutine that caused them; fn must not block.
func (m *Manager) Subscribe(fn func(Event)) (unsubscribe func()) {
	m.subsMu.Lock()
	defer m.subsMu.Unlock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = fn
	return func() {
		m.subsMu.Lock()
		defer m.subsMu.Unlock()
		delete(m.subs, id)
	}
}

func (m *Manager) publish(e Event) {
	m.subsMu.Lock()
	fns := make([]func(Event), 0, len(m.subs))
	for _, fn := range m.subs {
		fns = append(fns, fn)
	}
	m.subsMu.Unlock()

	for _, fn := range fns {
		fn(e)
	}
}
