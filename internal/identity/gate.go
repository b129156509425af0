// Package identity implements the session gate and the sign-up/sign-in
// primitives of the cloud variant.
package identity

import (
	"errors"
	"sync"
	"time"
)

type State int

const (
	Unauthenticated State = iota
	Authenticating
	Authenticated
)

func (s State) String() string {
	switch s {
	case Unauthenticated:
		return "unauthenticated"
	case Authenticating:
		return "authenticating"
	case Authenticated:
		return "authenticated"
	}
	return "unknown"
}

// Session is an authenticated user session.
type Session struct {
	UserID      int64     `json:"userId"`
	Email       string    `json:"email"`
	DisplayName string    `json:"displayName"`
	Token       string    `json:"token"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

// Change is emitted on the notification stream whenever a gate moves
// between states. Session is set only when the new state is
// Authenticated.
type Change struct {
	UserID  int64
	State   State
	Session *Session
}

var ErrGateBusy = errors.New("authentication already in progress")

// Gate is the per-user session state machine:
//
//	unauthenticated -> authenticating -> authenticated
//	authenticated   -> unauthenticated (sign-out)
//
// A failed attempt restores whatever state Begin found; there is no
// automatic retry, the user re-submits.
type Gate struct {
	mu       sync.Mutex
	userID   int64
	state    State
	session  *Session
	onChange func(Change)

	// Snapshot taken by Begin so a failed attempt can restore whatever
	// was in place before it, including an active session on re-auth.
	prevState   State
	prevSession *Session
}

// NewGate returns a gate in the unauthenticated state for the given
// user. onChange, when non-nil, observes every transition.
func NewGate(userID int64, onChange func(Change)) *Gate {
	return &Gate{userID: userID, onChange: onChange}
}

func (g *Gate) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Session returns the active session, valid only while authenticated.
func (g *Gate) Session() (Session, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state != Authenticated || g.session == nil {
		return Session{}, false
	}
	return *g.session, true
}

// Begin moves unauthenticated -> authenticating. Re-authenticating an
// already authenticated gate is allowed and replaces the session on
// Complete; a concurrent attempt is rejected.
func (g *Gate) Begin() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state == Authenticating {
		return ErrGateBusy
	}
	g.prevState = g.state
	g.prevSession = g.session
	g.state = Authenticating
	g.notifyLocked()
	return nil
}

// Complete moves authenticating -> authenticated with the given session.
func (g *Gate) Complete(s Session) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state != Authenticating {
		return
	}
	g.state = Authenticated
	g.session = &s
	g.prevState = Unauthenticated
	g.prevSession = nil
	g.notifyLocked()
}

// Fail aborts an attempt and restores whatever state Begin found: a
// first sign-in falls back to unauthenticated, a failed re-auth keeps
// the existing session. The failure itself is reported to the caller
// elsewhere.
func (g *Gate) Fail() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state != Authenticating {
		return
	}
	g.state = g.prevState
	g.session = g.prevSession
	g.prevState = Unauthenticated
	g.prevSession = nil
	g.notifyLocked()
}

// SignOut moves authenticated -> unauthenticated and drops the session.
func (g *Gate) SignOut() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state != Authenticated {
		return
	}
	g.state = Unauthenticated
	g.session = nil
	g.notifyLocked()
}

func (g *Gate) notifyLocked() {
	if g.onChange == nil {
		return
	}
	c := Change{UserID: g.userID, State: g.state}
	if g.session != nil {
		s := *g.session
		c.Session = &s
	}
	g.onChange(c)
}
