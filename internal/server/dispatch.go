package server

import (
	"fmt"

	"github.com/oriys/vbucket/internal/errs"
	"github.com/oriys/vbucket/internal/metrics"
	"github.com/oriys/vbucket/internal/wire"
)

// Dispatcher receives completed operations, real or synthesized, and
// translates them into the typed user callback surface (spec.md §6).
// internal/client implements this; internal/server depends only on the
// interface to avoid an import cycle.
type Dispatcher interface {
	Dispatch(entry LogEntry, status uint16, cas uint64, extras, value []byte, synthetic bool, serverIndex int)

	// DispatchTap delivers one unsolicited TAP stream event, bypassing
	// cmd_log correlation entirely (see Opcode.IsTapEvent).
	DispatchTap(key, value []byte, flags, exp uint32, cas uint64, vbucket uint16)
}

// purge walks cmd_log from the front, synthesizing a callback for every
// entry strictly older than target, per the implicit-response purge rule
// (spec.md §4.3). A non-quiet entry older than target is a protocol
// violation and aborts the connection. Returns an error only in that case.
func (s *Server) purge(target uint64, disp Dispatcher) error {
	for {
		e, ok := s.cmdLog.Front()
		if !ok || e.Seq >= target {
			return nil
		}
		if !e.Opcode.Quiet() {
			return errs.New(errs.ProtocolError)
		}
		s.cmdLog.Pop()

		var status uint16
		if e.Opcode.IsGet() {
			status = wire.StatusKeyENoEnt
		} else {
			status = wire.StatusSuccess
		}
		metrics.RecordPurge(opcodeName(e.Opcode))
		disp.Dispatch(e, status, 0, nil, nil, true, s.Index)
	}
}

// dispatchResponse consumes the cmd_log entry matching the response's
// opaque, purging everything older first, then delivers the real
// response. Returns an error if the opaque is unknown or the purge
// detects a protocol violation.
func (s *Server) dispatchResponse(h wire.Header, extras, value []byte, disp Dispatcher) error {
	target, ok := s.cmdLog.FindByOpaque(h.Opaque)
	if !ok {
		return errs.New(errs.ProtocolError)
	}
	if err := s.purge(target, disp); err != nil {
		return err
	}
	e, ok := s.cmdLog.Pop()
	if !ok || e.Seq != target {
		return errs.New(errs.ProtocolError)
	}
	disp.Dispatch(e, h.VBucket, h.CAS, extras, value, false, s.Index)
	metrics.SetInFlight(fmt.Sprintf("%d", s.Index), s.cmdLog.Len())
	return nil
}

// dispatchTapEvent delivers one pushed TAP_MUTATION straight to the
// Dispatcher. TAP_DELETE/TAP_FLUSH/TAP_OPAQUE/TAP_VBUCKET_SET are
// consumed silently for now — no callback in the surface of spec.md §6
// carries their semantics; a future TapDeletion/TapOpaque hook can be
// added alongside the others without touching this dispatch path.
func (s *Server) dispatchTapEvent(h wire.Header, extras, key, value []byte, disp Dispatcher) {
	if h.Opcode != wire.OpTapMutation {
		return
	}
	flags, exp := wire.DecodeTapExtras(extras)
	disp.DispatchTap(key, value, flags, exp, h.CAS, h.VBucket)
}

// drainOnTeardown purges the entire cmd_log as synthetic misses, used by
// destroy()/connection abort to cancel all in-flight requests (spec.md §5).
func (s *Server) drainOnTeardown(currentTurn uint64, disp Dispatcher) {
	for {
		e, ok := s.cmdLog.Front()
		if !ok || e.Seq >= currentTurn {
			break
		}
		s.cmdLog.Pop()
		metrics.RecordPurge(opcodeName(e.Opcode))
		disp.Dispatch(e, wire.StatusKeyENoEnt, 0, nil, nil, true, s.Index)
	}
	metrics.SetInFlight(fmt.Sprintf("%d", s.Index), s.cmdLog.Len())
}

func opcodeName(op wire.Opcode) string {
	switch op {
	case wire.OpGet, wire.OpGetQ, wire.OpGetK, wire.OpGetKQ:
		return "get"
	case wire.OpSet, wire.OpSetQ:
		return "set"
	case wire.OpAdd, wire.OpAddQ:
		return "add"
	case wire.OpReplace, wire.OpReplaceQ:
		return "replace"
	case wire.OpAppend, wire.OpAppendQ:
		return "append"
	case wire.OpPrepend, wire.OpPrependQ:
		return "prepend"
	case wire.OpDelete, wire.OpDeleteQ:
		return "delete"
	case wire.OpIncrement, wire.OpIncrementQ:
		return "increment"
	case wire.OpDecrement, wire.OpDecrementQ:
		return "decrement"
	default:
		return "unknown"
	}
}
