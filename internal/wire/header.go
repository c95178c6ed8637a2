// Package wire implements the binary packet framing described in
// spec.md §4.2: a fixed 24-byte header shared by every request and
// response, with a body laid out as extras ∥ key ∥ value.
package wire

import "encoding/binary"

const (
	MagicRequest  byte = 0x80
	MagicResponse byte = 0x81

	HeaderLen = 24
)

// Opcode identifies the operation family a packet belongs to.
type Opcode byte

const (
	OpGet       Opcode = 0x00
	OpSet       Opcode = 0x01
	OpAdd       Opcode = 0x02
	OpReplace   Opcode = 0x03
	OpDelete    Opcode = 0x04
	OpIncrement Opcode = 0x05
	OpDecrement Opcode = 0x06
	OpAppend    Opcode = 0x0e
	OpPrepend   Opcode = 0x0f

	OpGetQ  Opcode = 0x09
	OpGetK  Opcode = 0x0c
	OpGetKQ Opcode = 0x0d

	OpSetQ       Opcode = 0x11
	OpAddQ       Opcode = 0x12
	OpReplaceQ   Opcode = 0x13
	OpDeleteQ    Opcode = 0x14
	OpIncrementQ Opcode = 0x15
	OpDecrementQ Opcode = 0x16
	OpAppendQ    Opcode = 0x19
	OpPrependQ   Opcode = 0x1a

	OpSASLListMechs Opcode = 0x20
	OpSASLAuth      Opcode = 0x21
	OpSASLStep      Opcode = 0x22

	OpTapConnect    Opcode = 0x40
	OpTapMutation   Opcode = 0x41
	OpTapDelete     Opcode = 0x42
	OpTapFlush      Opcode = 0x43
	OpTapOpaque     Opcode = 0x44
	OpTapVBucketSet Opcode = 0x45
)

// Status codes carried in a response header's vbucket/status field
// (spec.md §6).
const (
	StatusSuccess              uint16 = 0x0000
	StatusKeyENoEnt            uint16 = 0x0001
	StatusKeyEExists           uint16 = 0x0002
	StatusE2Big                uint16 = 0x0003
	StatusNotStored            uint16 = 0x0005
	StatusDeltaBadVal          uint16 = 0x0006
	StatusNotMyVBucket         uint16 = 0x0007
	StatusAuthError            uint16 = 0x0020
	StatusAuthContinue         uint16 = 0x0021
	StatusUnknownCommand       uint16 = 0x0081
	StatusENoMem               uint16 = 0x0082
)

// Header is the fixed 24-byte structure shared by requests (magic 0x80)
// and responses (magic 0x81). CAS and everything but Opaque is
// big-endian on the wire; Opaque is carried in the host's native byte
// order per spec.md §4.2, matching the original implementation's use of
// the opaque field as an in-memory pointer-sized tag.
type Header struct {
	Magic        byte
	Opcode       Opcode
	KeyLen       uint16
	ExtrasLen    uint8
	Datatype     uint8
	VBucket      uint16 // request: vbucket id; response: status code
	TotalBodyLen uint32
	Opaque       uint32
	CAS          uint64
}

// Encode writes the header into a 24-byte slice, allocating one if buf is
// too small or nil.
func (h Header) Encode(buf []byte) []byte {
	if len(buf) < HeaderLen {
		buf = make([]byte, HeaderLen)
	}
	buf[0] = h.Magic
	buf[1] = byte(h.Opcode)
	binary.BigEndian.PutUint16(buf[2:4], h.KeyLen)
	buf[4] = h.ExtrasLen
	buf[5] = h.Datatype
	binary.BigEndian.PutUint16(buf[6:8], h.VBucket)
	binary.BigEndian.PutUint32(buf[8:12], h.TotalBodyLen)
	binary.NativeEndian.PutUint32(buf[12:16], h.Opaque)
	binary.BigEndian.PutUint64(buf[16:24], h.CAS)
	return buf[:HeaderLen]
}

// DecodeHeader parses a 24-byte header. The caller must ensure len(buf) >= HeaderLen.
func DecodeHeader(buf []byte) Header {
	return Header{
		Magic:        buf[0],
		Opcode:       Opcode(buf[1]),
		KeyLen:       binary.BigEndian.Uint16(buf[2:4]),
		ExtrasLen:    buf[4],
		Datatype:     buf[5],
		VBucket:      binary.BigEndian.Uint16(buf[6:8]),
		TotalBodyLen: binary.BigEndian.Uint32(buf[8:12]),
		Opaque:       binary.NativeEndian.Uint32(buf[12:16]),
		CAS:          binary.BigEndian.Uint64(buf[16:24]),
	}
}

// BodyLen returns the length of the variable body (extras+key+value).
func (h Header) BodyLen() int { return int(h.TotalBodyLen) }

// ValueLen returns the length of the value portion of the body.
func (h Header) ValueLen() int {
	return int(h.TotalBodyLen) - int(h.ExtrasLen) - int(h.KeyLen)
}

// Quiet reports whether opcode is a "quiet" variant that produces no
// response on success (spec.md §4.3).
func (op Opcode) Quiet() bool {
	switch op {
	case OpGetQ, OpGetKQ, OpSetQ, OpAddQ, OpReplaceQ, OpDeleteQ,
		OpIncrementQ, OpDecrementQ, OpAppendQ, OpPrependQ:
		return true
	default:
		return false
	}
}

// IsGet reports whether op is a variant of the GET family (used by the
// purge rule to decide which synthetic callback to fire).
func (op Opcode) IsGet() bool {
	switch op {
	case OpGet, OpGetQ, OpGetK, OpGetKQ:
		return true
	default:
		return false
	}
}

// IsTapEvent reports whether op is one of the stream events a server
// pushes unsolicited after a TAP_CONNECT handshake. These never carry an
// opaque registered in a cmd_log — the purge/correlation machinery of
// spec.md §4.3 is scoped to request/response pairs, not to a long-lived
// subscription — so the server routes them straight to the TAP callback.
func (op Opcode) IsTapEvent() bool {
	switch op {
	case OpTapMutation, OpTapDelete, OpTapFlush, OpTapOpaque, OpTapVBucketSet:
		return true
	default:
		return false
	}
}
