package session

import (
	"reflect"
	"testing"
)

func TestPresenceReplace(t *testing.T) {
	p := newPresence()

	p.Replace([]string{"user_a", "user_b"})
	if got := p.Participants(); !reflect.DeepEqual(got, []string{"user_a", "user_b"}) {
		t.Fatalf("unexpected roster %v", got)
	}
	if name, ok := p.DisplayName("user_b"); !ok || name != "user_b" {
		t.Fatalf("display name lookup failed: %q, %v", name, ok)
	}

	// A replacement drops everything from the previous roster.
	p.Replace([]string{"user_c"})
	if p.Len() != 1 {
		t.Fatalf("expected 1 participant, got %d", p.Len())
	}
	if _, ok := p.DisplayName("user_a"); ok {
		t.Fatal("stale participant survived a replacement")
	}

	p.Replace(nil)
	if p.Len() != 0 {
		t.Fatalf("expected empty roster, got %d", p.Len())
	}
}

func TestPresenceParticipantsCopies(t *testing.T) {
	p := newPresence()
	p.Replace([]string{"user_a"})

	roster := p.Participants()
	roster[0] = "tampered"

	if got := p.Participants()[0]; got != "user_a" {
		t.Fatalf("internal roster mutated through a returned copy: %q", got)
	}
}
