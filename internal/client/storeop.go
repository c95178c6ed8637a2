package client

import "github.com/oriys/vbucket/internal/wire"

// StoreOp is the storage operation selector of spec.md §6, mapped to the
// opcodes {0x02, 0x03, 0x01, 0x0e, 0x0f}.
type StoreOp int

const (
	StoreSet StoreOp = iota
	StoreAdd
	StoreReplace
	StoreAppend
	StorePrepend
)

// opcode returns op's non-quiet request opcode. Store/StoreByKey issue
// one request per call (spec.md §4.4 has no batched-store entry point
// the way MGet batches GETQ), so the quiet SETQ/ADDQ/... variants never
// apply here.
func (op StoreOp) opcode() wire.Opcode {
	switch op {
	case StoreAdd:
		return wire.OpAdd
	case StoreReplace:
		return wire.OpReplace
	case StoreAppend:
		return wire.OpAppend
	case StorePrepend:
		return wire.OpPrepend
	default:
		return wire.OpSet
	}
}

// hasFlagsExtras reports whether this operation family carries
// flags+expiration extras (SET family) versus empty extras (APPEND/PREPEND).
func (op StoreOp) hasFlagsExtras() bool {
	return op != StoreAppend && op != StorePrepend
}
