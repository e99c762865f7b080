package game

import (
	"reflect"
	"testing"
)

func TestRegistry_RegisterAndUnregister(t *testing.T) {
	r := NewRegistry()

	r.Register("c1", "")
	r.Register("c2", "u2")
	r.Register("c1", "ignored")

	if got := r.OnlineCount(); got != 2 {
		t.Fatalf("OnlineCount() = %d, want 2", got)
	}
	if s, _ := r.Session("c1"); s.UserID != "" {
		t.Errorf("re-register replaced the session: %+v", s)
	}

	if _, ok := r.Unregister("c1"); !ok {
		t.Error("Unregister(c1) = false")
	}
	if _, ok := r.Unregister("c1"); ok {
		t.Error("second Unregister(c1) = true")
	}
	if got := r.OnlineCount(); got != 1 {
		t.Errorf("OnlineCount() = %d, want 1", got)
	}
}

func TestRegistry_Bind(t *testing.T) {
	r := NewRegistry()
	r.Register("c1", "")

	tests := []struct {
		name     string
		userID   string
		display  string
		wantName string
	}{
		{"falls back to user id", "u1", "", "u1"},
		{"sets name", "u1", "alice", "alice"},
		{"keeps previous name", "u1", "", "alice"},
		{"renames", "u1", "bob", "bob"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, ok := r.Bind("c1", tt.userID, tt.display)
			if !ok {
				t.Fatal("Bind() = false")
			}
			if s.Name != tt.wantName || s.UserID != tt.userID {
				t.Errorf("session = %+v, want name %q", s, tt.wantName)
			}
		})
	}

	if got := r.Names(); !reflect.DeepEqual(got, []string{"bob"}) {
		t.Errorf("Names() = %v, want [bob]", got)
	}
	if _, ok := r.Bind("missing", "u9", "x"); ok {
		t.Error("Bind() on unknown connection = true")
	}
}

func TestRegistry_SharedNames(t *testing.T) {
	r := NewRegistry()
	r.Register("c1", "")
	r.Register("c2", "")
	r.Bind("c1", "u1", "alice")
	r.Bind("c2", "u2", "alice")

	r.Unregister("c1")
	if got := r.Names(); !reflect.DeepEqual(got, []string{"alice"}) {
		t.Errorf("Names() = %v, want [alice]", got)
	}
	r.Unregister("c2")
	if got := r.Names(); len(got) != 0 {
		t.Errorf("Names() = %v, want empty", got)
	}
}
