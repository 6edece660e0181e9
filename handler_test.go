package octohub

import (
	"errors"
	"testing"
)

func nopHandler(*Message) (*Message, error) { return nil, nil }

func TestHandlerRegistry_Register(t *testing.T) {
	r := newHandlerRegistry()

	if err := r.register("notification", nopHandler); err != nil {
		t.Fatalf("register() error: %v", err)
	}

	fn, ok := r.lookup("notification")
	if !ok {
		t.Fatal("lookup() should find registered handler")
	}
	if fn == nil {
		t.Error("handler function should not be nil")
	}
}

func TestHandlerRegistry_DuplicateRegistration(t *testing.T) {
	r := newHandlerRegistry()

	r.register("echo", nopHandler)
	if err := r.register("echo", nopHandler); err == nil {
		t.Fatal("register() should error on duplicate action")
	}
}

func TestHandlerRegistry_Rejects(t *testing.T) {
	tests := []struct {
		name     string
		action   string
		fn       HandlerFunc
		reserved bool
	}{
		{"empty action", "", nopHandler, false},
		{"nil handler", "echo", nil, false},
		{"ping", ActionPing, nopHandler, true},
		{"pong", ActionPong, nopHandler, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := newHandlerRegistry().register(tt.action, tt.fn)
			if err == nil {
				t.Fatal("register() should error")
			}
			if got := errors.Is(err, ErrReservedAction); got != tt.reserved {
				t.Errorf("errors.Is(err, ErrReservedAction) = %v, want %v", got, tt.reserved)
			}
		})
	}
}

func TestHandlerRegistry_LookupMissing(t *testing.T) {
	r := newHandlerRegistry()
	if _, ok := r.lookup("unknown"); ok {
		t.Error("lookup() should return false for unregistered action")
	}
}

func TestHandlerRegistry_ActionsSorted(t *testing.T) {
	r := newHandlerRegistry()
	r.register("status", nopHandler)
	r.register("broadcast", nopHandler)
	r.register("echo", nopHandler)

	got := r.actions()
	want := []string{"broadcast", "echo", "status"}
	if len(got) != len(want) {
		t.Fatalf("actions() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("actions()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
