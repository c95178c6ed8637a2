package reactor

import "testing"

func TestSyntheticUpdateEventIsIdempotent(t *testing.T) {
	s := NewSynthetic()
	var calls int
	h := func(fd int, ready Interest) { calls++ }

	if err := s.UpdateEvent(3, InterestRead, h); err != nil {
		t.Fatal(err)
	}
	if err := s.UpdateEvent(3, InterestRead|InterestWrite, h); err != nil {
		t.Fatal(err)
	}
	if i, ok := s.InterestOf(3); !ok || i != InterestRead|InterestWrite {
		t.Fatalf("interest = %v, want Read|Write", i)
	}

	s.Fire(3, InterestRead)
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}

func TestSyntheticRemove(t *testing.T) {
	s := NewSynthetic()
	called := false
	s.UpdateEvent(5, InterestRead, func(int, Interest) { called = true })
	s.Remove(5)
	s.Fire(5, InterestRead)
	if called {
		t.Fatal("handler should not fire after Remove")
	}
}
