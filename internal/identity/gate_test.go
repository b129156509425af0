package identity

import (
	"errors"
	"testing"
	"time"
)

func TestGateTransitions(t *testing.T) {
	var changes []Change
	gate := NewGate(7, func(c Change) { changes = append(changes, c) })

	if gate.State() != Unauthenticated {
		t.Fatalf("initial state = %v, want unauthenticated", gate.State())
	}
	if _, ok := gate.Session(); ok {
		t.Fatal("unauthenticated gate reported a session")
	}

	if err := gate.Begin(); err != nil {
		t.Fatalf("begin: %v", err)
	}
	if gate.State() != Authenticating {
		t.Fatalf("state after begin = %v, want authenticating", gate.State())
	}

	// A concurrent attempt while one is in flight is rejected.
	if err := gate.Begin(); !errors.Is(err, ErrGateBusy) {
		t.Fatalf("second begin = %v, want ErrGateBusy", err)
	}

	session := Session{UserID: 7, Email: "a@b.c", Token: "tok", ExpiresAt: time.Now().Add(time.Hour)}
	gate.Complete(session)
	if gate.State() != Authenticated {
		t.Fatalf("state after complete = %v, want authenticated", gate.State())
	}
	got, ok := gate.Session()
	if !ok || got.Token != "tok" {
		t.Fatalf("session = %+v ok=%v", got, ok)
	}

	gate.SignOut()
	if gate.State() != Unauthenticated {
		t.Fatalf("state after sign-out = %v, want unauthenticated", gate.State())
	}
	if _, ok := gate.Session(); ok {
		t.Fatal("session survived sign-out")
	}

	wantStates := []State{Authenticating, Authenticated, Unauthenticated}
	if len(changes) != len(wantStates) {
		t.Fatalf("got %d changes, want %d", len(changes), len(wantStates))
	}
	for i, want := range wantStates {
		if changes[i].State != want {
			t.Errorf("change %d state = %v, want %v", i, changes[i].State, want)
		}
		if changes[i].UserID != 7 {
			t.Errorf("change %d user = %d, want 7", i, changes[i].UserID)
		}
	}
	if changes[1].Session == nil {
		t.Error("authenticated change carried no session")
	}
	if changes[2].Session != nil {
		t.Error("sign-out change carried a session")
	}
}

func TestGateFailReturnsToUnauthenticated(t *testing.T) {
	gate := NewGate(1, nil)
	if err := gate.Begin(); err != nil {
		t.Fatalf("begin: %v", err)
	}
	gate.Fail()
	if gate.State() != Unauthenticated {
		t.Fatalf("state after fail = %v, want unauthenticated", gate.State())
	}
	// The gate is immediately usable for a retry.
	if err := gate.Begin(); err != nil {
		t.Fatalf("begin after fail: %v", err)
	}
}

func TestGateReauthenticateReplacesSession(t *testing.T) {
	gate := NewGate(1, nil)
	if err := gate.Begin(); err != nil {
		t.Fatalf("begin: %v", err)
	}
	gate.Complete(Session{UserID: 1, Token: "first"})

	if err := gate.Begin(); err != nil {
		t.Fatalf("re-begin: %v", err)
	}
	gate.Complete(Session{UserID: 1, Token: "second"})

	got, ok := gate.Session()
	if !ok || got.Token != "second" {
		t.Fatalf("session = %+v ok=%v, want token second", got, ok)
	}
}

func TestGateFailedReauthKeepsSession(t *testing.T) {
	gate := NewGate(1, nil)
	if err := gate.Begin(); err != nil {
		t.Fatalf("begin: %v", err)
	}
	gate.Complete(Session{UserID: 1, Token: "first"})

	// A failed re-auth must leave the existing session untouched.
	if err := gate.Begin(); err != nil {
		t.Fatalf("re-begin: %v", err)
	}
	gate.Fail()

	if gate.State() != Authenticated {
		t.Fatalf("state after failed re-auth = %v, want authenticated", gate.State())
	}
	got, ok := gate.Session()
	if !ok || got.Token != "first" {
		t.Fatalf("session = %+v ok=%v, want original token kept", got, ok)
	}

	// And the gate is still usable for another attempt.
	if err := gate.Begin(); err != nil {
		t.Fatalf("begin after failed re-auth: %v", err)
	}
	gate.Complete(Session{UserID: 1, Token: "second"})
	got, ok = gate.Session()
	if !ok || got.Token != "second" {
		t.Fatalf("session = %+v ok=%v, want token second", got, ok)
	}
}

func TestGateCompleteOutsideAttemptIgnored(t *testing.T) {
	gate := NewGate(1, nil)
	gate.Complete(Session{UserID: 1, Token: "stray"})
	if gate.State() != Unauthenticated {
		t.Fatalf("stray complete changed state to %v", gate.State())
	}
}
