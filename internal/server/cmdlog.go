package server

import (
	"time"

	"github.com/oriys/vbucket/internal/wire"
)

// LogEntry is one in-flight request recorded in a Server's cmd_log: the
// fields needed to dispatch either its real response or a synthetic one
// (spec.md §4.3).
type LogEntry struct {
	Seq      uint64 // internal monotonic turn counter, never wraps in practice
	Opaque   uint32 // Seq truncated to the wire's 32-bit field
	Opcode   wire.Opcode
	Key      []byte
	Enqueued time.Time // when this entry was appended, for operation-log latency
}

// CmdLog is the ordered, front-consumed queue of outstanding requests for
// one Server, keyed by strictly increasing Seq.
type CmdLog struct {
	entries []LogEntry
}

func (l *CmdLog) Push(e LogEntry) {
	l.entries = append(l.entries, e)
}

// Front returns the oldest entry without removing it.
func (l *CmdLog) Front() (LogEntry, bool) {
	if len(l.entries) == 0 {
		return LogEntry{}, false
	}
	return l.entries[0], true
}

// Pop removes and returns the oldest entry.
func (l *CmdLog) Pop() (LogEntry, bool) {
	if len(l.entries) == 0 {
		return LogEntry{}, false
	}
	e := l.entries[0]
	l.entries = l.entries[1:]
	return e, true
}

// Len reports the number of outstanding entries.
func (l *CmdLog) Len() int { return len(l.entries) }

// FindByOpaque scans from the front for the first entry whose Opaque
// matches, returning its Seq. Responses only carry the 32-bit opaque;
// this recovers the corresponding internal 64-bit turn so the purge walk
// can use wraparound-safe comparisons (SPEC_FULL §6).
func (l *CmdLog) FindByOpaque(opaque uint32) (uint64, bool) {
	for _, e := range l.entries {
		if e.Opaque == opaque {
			return e.Seq, true
		}
	}
	return 0, false
}
