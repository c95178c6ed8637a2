package client

import (
	"errors"
	"testing"

	"github.com/oriys/vbucket/internal/errs"
	"github.com/oriys/vbucket/internal/server"
	"github.com/oriys/vbucket/internal/wire"
)

func newTestClient() *Client {
	return &Client{cookie: "cookie-1"}
}

func TestDispatchGetSuccessInvokesGetCallback(t *testing.T) {
	c := newTestClient()
	var gotKey, gotValue []byte
	var gotFlags uint32
	var gotCAS uint64
	var gotErr error
	c.SetCallbacks(Callbacks{
		Get: func(cookie any, err error, key, value []byte, flags uint32, cas uint64) {
			if cookie != "cookie-1" {
				t.Errorf("cookie = %v, want cookie-1", cookie)
			}
			gotErr, gotKey, gotValue, gotFlags, gotCAS = err, key, value, flags, cas
		},
	})
	d := dispatcherFor(c)
	entry := server.LogEntry{Opaque: 7, Opcode: wire.OpGetK, Key: []byte("foo")}
	d.Dispatch(entry, wire.StatusSuccess, 42, wire.StoreExtras(9, 0), []byte("bar"), false, 2)

	if gotErr != nil {
		t.Fatalf("unexpected error: %v", gotErr)
	}
	if string(gotKey) != "foo" || string(gotValue) != "bar" {
		t.Fatalf("key/value = %q/%q", gotKey, gotValue)
	}
	if gotFlags != 9 || gotCAS != 42 {
		t.Fatalf("flags/cas = %d/%d", gotFlags, gotCAS)
	}
}

func TestDispatchGetMissSurfacesKeyEnoent(t *testing.T) {
	c := newTestClient()
	var gotErr error
	c.SetCallbacks(Callbacks{
		Get: func(_ any, err error, key, value []byte, flags uint32, cas uint64) {
			gotErr = err
		},
	})
	d := dispatcherFor(c)
	entry := server.LogEntry{Opaque: 1, Opcode: wire.OpGetQ, Key: []byte("missing")}
	d.Dispatch(entry, wire.StatusKeyENoEnt, 0, nil, nil, true, 0)

	if gotErr == nil {
		t.Fatal("expected an error for a synthesized miss")
	}
	var e *errs.Error
	if !errors.As(gotErr, &e) || e.Kind != errs.KeyENoEnt {
		t.Fatalf("error = %v, want KeyENoEnt", gotErr)
	}
}

func TestDispatchStoreInvokesStoreCallback(t *testing.T) {
	c := newTestClient()
	var gotKey []byte
	var gotCAS uint64
	c.SetCallbacks(Callbacks{
		Store: func(_ any, err error, key []byte, cas uint64) {
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			gotKey, gotCAS = key, cas
		},
	})
	d := dispatcherFor(c)
	entry := server.LogEntry{Opaque: 3, Opcode: wire.OpSet, Key: []byte("k")}
	d.Dispatch(entry, wire.StatusSuccess, 99, nil, nil, false, 0)

	if string(gotKey) != "k" || gotCAS != 99 {
		t.Fatalf("key/cas = %q/%d", gotKey, gotCAS)
	}
}

func TestDispatchArithmeticDecodesCounterValue(t *testing.T) {
	c := newTestClient()
	var gotCounter uint64
	c.SetCallbacks(Callbacks{
		Arithmetic: func(_ any, err error, key []byte, value uint64, cas uint64) {
			gotCounter = value
		},
	})
	d := dispatcherFor(c)
	entry := server.LogEntry{Opaque: 4, Opcode: wire.OpIncrement, Key: []byte("ctr")}
	value := []byte{0, 0, 0, 0, 0, 0, 0, 42}
	d.Dispatch(entry, wire.StatusSuccess, 1, nil, value, false, 0)

	if gotCounter != 42 {
		t.Fatalf("counter = %d, want 42", gotCounter)
	}
}

func TestDispatchRemoveInvokesRemoveCallback(t *testing.T) {
	c := newTestClient()
	called := false
	c.SetCallbacks(Callbacks{
		Remove: func(_ any, err error, key []byte) { called = true },
	})
	d := dispatcherFor(c)
	entry := server.LogEntry{Opaque: 5, Opcode: wire.OpDelete, Key: []byte("k")}
	d.Dispatch(entry, wire.StatusSuccess, 0, nil, nil, false, 0)

	if !called {
		t.Fatal("expected Remove callback to fire")
	}
}

func TestDispatchTapBypassesLookupAndInvokesTapMutation(t *testing.T) {
	c := newTestClient()
	var gotKey, gotData []byte
	var gotVbucket uint16
	c.SetCallbacks(Callbacks{
		TapMutation: func(_ any, key, data []byte, flags, exp uint32, cas uint64, vbucket uint16) {
			gotKey, gotData, gotVbucket = key, data, vbucket
		},
	})
	d := dispatcherFor(c)
	d.DispatchTap([]byte("pushed"), []byte("value"), 1, 0, 7, 3)

	if string(gotKey) != "pushed" || string(gotData) != "value" || gotVbucket != 3 {
		t.Fatalf("tap callback got key=%q data=%q vbucket=%d", gotKey, gotData, gotVbucket)
	}
}

func TestOpcodeNameCoversEveryFamily(t *testing.T) {
	cases := map[wire.Opcode]string{
		wire.OpGetK:       "get",
		wire.OpSet:        "store",
		wire.OpIncrement:  "arithmetic",
		wire.OpDelete:     "remove",
		wire.OpTapConnect: "unknown",
	}
	for op, want := range cases {
		if got := opcodeName(op); got != want {
			t.Errorf("opcodeName(%x) = %q, want %q", byte(op), got, want)
		}
	}
}
