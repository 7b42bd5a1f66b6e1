package infer

import (
	"errors"
	"testing"

	"treeprop/pkg/factorgraph"
)

func msg(origin, dest int, v float64) *Message {
	return newMessage(origin, dest, map[factorgraph.Value]float64{"0": v})
}

func TestMessageStore_WriteOnce(t *testing.T) {
	s := NewMessageStore()
	s.EnsureContext("A=0")

	if err := s.Put("A=0", msg(1, 2, 0.5)); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if !s.Contains("A=0", 1, 2) {
		t.Error("Contains after Put = false")
	}
	if err := s.Put("A=0", msg(1, 2, 0.7)); !errors.Is(err, ErrMessageExists) {
		t.Errorf("duplicate Put: got %v, want ErrMessageExists", err)
	}
	// Same pair under different evidence is a distinct message.
	if err := s.Put("A=1", msg(1, 2, 0.7)); err != nil {
		t.Errorf("Put under other evidence: %v", err)
	}
}

func TestMessageStore_IntoOrderAndMissing(t *testing.T) {
	s := NewMessageStore()
	for _, origin := range []int{3, 1, 2} {
		if err := s.Put("", msg(origin, 9, float64(origin))); err != nil {
			t.Fatalf("Put(%d): %v", origin, err)
		}
	}

	msgs, err := s.Into("", []int{2, 3, 1}, 9)
	if err != nil {
		t.Fatalf("Into: %v", err)
	}
	for i, want := range []int{2, 3, 1} {
		if msgs[i].Origin() != want {
			t.Errorf("msgs[%d].Origin = %d, want %d", i, msgs[i].Origin(), want)
		}
	}

	if _, err := s.Into("", []int{2, 4}, 9); !errors.Is(err, ErrMessageMissing) {
		t.Errorf("Into with missing origin: got %v, want ErrMessageMissing", err)
	}
}

func TestMessageStore_EnsureContextIdempotent(t *testing.T) {
	s := NewMessageStore()
	s.EnsureContext("k")
	if err := s.Put("k", msg(1, 2, 0)); err != nil {
		t.Fatalf("Put: %v", err)
	}
	s.EnsureContext("k") // must not wipe the context
	if !s.Contains("k", 1, 2) {
		t.Error("EnsureContext dropped an existing context")
	}
}

func TestMessageStore_Clear(t *testing.T) {
	s := NewMessageStore()
	if err := s.Put("k", msg(1, 2, 0)); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if s.Len() != 1 {
		t.Fatalf("Len = %d, want 1", s.Len())
	}
	s.Clear()
	if s.Len() != 0 || s.Contains("k", 1, 2) {
		t.Error("Clear left cached messages behind")
	}
}
