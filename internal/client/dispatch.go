package client

import (
	"encoding/binary"
	"time"

	"github.com/oriys/vbucket/internal/errs"
	"github.com/oriys/vbucket/internal/logging"
	"github.com/oriys/vbucket/internal/metrics"
	"github.com/oriys/vbucket/internal/server"
	"github.com/oriys/vbucket/internal/wire"
)

// clientDispatcher adapts server.Dispatcher to the Client's typed
// callback table, keeping internal/server free of any client import.
type clientDispatcher struct {
	c *Client
}

func dispatcherFor(c *Client) server.Dispatcher { return &clientDispatcher{c: c} }

func (d *clientDispatcher) Dispatch(entry server.LogEntry, status uint16, cas uint64, extras, value []byte, synthetic bool, serverIndex int) {
	c := d.c
	kind := errs.StatusToKind(status)
	var opErr error
	if kind != errs.Success {
		opErr = errs.New(kind)
	}
	opcode := entry.Opcode

	var flags uint32
	if len(extras) >= 4 {
		flags = binary.BigEndian.Uint32(extras[0:4])
	}

	durationMs := time.Since(entry.Enqueued).Milliseconds()
	metrics.RecordOp(opcodeName(opcode), opErr == nil, float64(durationMs))
	logging.Default().Log(logging.OperationEntry{
		Opaque:     entry.Opaque,
		Opcode:     opcodeName(opcode),
		Server:     serverIndex,
		Key:        string(entry.Key),
		DurationMs: durationMs,
		Success:    opErr == nil,
		Error:      errString(opErr),
		Synthetic:  synthetic,
	})

	switch {
	case opcode.IsGet():
		if c.callbacks.Get != nil {
			c.callbacks.Get(c.cookie, opErr, entry.Key, value, flags, cas)
		}
	case isStoreOpcode(opcode):
		if c.callbacks.Store != nil {
			c.callbacks.Store(c.cookie, opErr, entry.Key, cas)
		}
	case isArithmeticOpcode(opcode):
		var counter uint64
		if len(value) >= 8 {
			counter = binary.BigEndian.Uint64(value)
		}
		if c.callbacks.Arithmetic != nil {
			c.callbacks.Arithmetic(c.cookie, opErr, entry.Key, counter, cas)
		}
	case opcode == wire.OpDelete || opcode == wire.OpDeleteQ:
		if c.callbacks.Remove != nil {
			c.callbacks.Remove(c.cookie, opErr, entry.Key)
		}
	default:
		if opErr != nil && c.callbacks.Error != nil {
			c.callbacks.Error(c.cookie, opErr, "unrecognized response opcode")
		}
	}
}

func (d *clientDispatcher) DispatchTap(key, value []byte, flags, exp uint32, cas uint64, vbucket uint16) {
	if d.c.callbacks.TapMutation != nil {
		d.c.callbacks.TapMutation(d.c.cookie, key, value, flags, exp, cas, vbucket)
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func isStoreOpcode(op wire.Opcode) bool {
	switch op {
	case wire.OpSet, wire.OpSetQ, wire.OpAdd, wire.OpAddQ, wire.OpReplace, wire.OpReplaceQ,
		wire.OpAppend, wire.OpAppendQ, wire.OpPrepend, wire.OpPrependQ:
		return true
	default:
		return false
	}
}

func isArithmeticOpcode(op wire.Opcode) bool {
	switch op {
	case wire.OpIncrement, wire.OpIncrementQ, wire.OpDecrement, wire.OpDecrementQ:
		return true
	default:
		return false
	}
}

func opcodeName(op wire.Opcode) string {
	switch {
	case op.IsGet():
		return "get"
	case isStoreOpcode(op):
		return "store"
	case isArithmeticOpcode(op):
		return "arithmetic"
	case op == wire.OpDelete || op == wire.OpDeleteQ:
		return "remove"
	default:
		return "unknown"
	}
}
