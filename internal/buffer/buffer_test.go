package buffer

import "testing"

func TestAppendAndConsume(t *testing.T) {
	b := New(4)
	b.Append([]byte("hello"))
	if b.Avail() != 5 {
		t.Fatalf("avail = %d, want 5", b.Avail())
	}
	if got := string(b.Bytes()); got != "hello" {
		t.Fatalf("bytes = %q", got)
	}
	b.Consume(2)
	if got := string(b.Bytes()); got != "llo" {
		t.Fatalf("after consume, bytes = %q", got)
	}
	if b.Avail() != 3 {
		t.Fatalf("avail after consume = %d, want 3", b.Avail())
	}
}

func TestPeekPanicsPastAvail(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic peeking past avail")
		}
	}()
	b := New(4)
	b.Append([]byte("ab"))
	b.Peek(10)
}

func TestConsumePanicsPastAvail(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic consuming past avail")
		}
	}()
	b := New(4)
	b.Append([]byte("ab"))
	b.Consume(10)
}

func TestAppendToMovesAndResetsSource(t *testing.T) {
	dst := New(4)
	src := New(4)
	src.Append([]byte("pending"))
	dst.Append([]byte("output:"))

	dst.AppendTo(src)

	if got := string(dst.Bytes()); got != "output:pending" {
		t.Fatalf("dst = %q", got)
	}
	if src.Avail() != 0 {
		t.Fatalf("src.Avail() = %d, want 0 after AppendTo", src.Avail())
	}
}

func TestAppendToNoOpOnEmptySource(t *testing.T) {
	dst := New(4)
	src := New(4)
	dst.Append([]byte("x"))
	dst.AppendTo(src)
	if got := string(dst.Bytes()); got != "x" {
		t.Fatalf("dst mutated unexpectedly: %q", got)
	}
}

func TestGrowBeyondInitialCapacity(t *testing.T) {
	b := New(2)
	big := make([]byte, 100)
	for i := range big {
		big[i] = byte(i)
	}
	b.Append(big)
	if b.Avail() != 100 {
		t.Fatalf("avail = %d, want 100", b.Avail())
	}
	for i, v := range b.Bytes() {
		if v != byte(i) {
			t.Fatalf("byte %d = %d, want %d", i, v, byte(i))
		}
	}
}
