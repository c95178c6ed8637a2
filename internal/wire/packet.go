package wire

import "encoding/binary"

// Packet is a fully framed request or response: a header plus its body,
// split into extras/key/value per the lengths carried in the header.
type Packet struct {
	Header Header
	Extras []byte
	Key    []byte
	Value  []byte
}

// Encode serializes the packet as header ∥ extras ∥ key ∥ value.
func (p Packet) Encode() []byte {
	h := p.Header
	h.ExtrasLen = uint8(len(p.Extras))
	h.KeyLen = uint16(len(p.Key))
	h.TotalBodyLen = uint32(len(p.Extras) + len(p.Key) + len(p.Value))

	buf := make([]byte, HeaderLen+int(h.TotalBodyLen))
	h.Encode(buf[:HeaderLen])
	n := HeaderLen
	n += copy(buf[n:], p.Extras)
	n += copy(buf[n:], p.Key)
	copy(buf[n:], p.Value)
	return buf
}

// DecodeBody splits a packet's body (the bytes following the 24-byte
// header) into extras/key/value according to h.
func DecodeBody(h Header, body []byte) (extras, key, value []byte) {
	extras = body[:h.ExtrasLen]
	key = body[h.ExtrasLen : int(h.ExtrasLen)+int(h.KeyLen)]
	value = body[int(h.ExtrasLen)+int(h.KeyLen):]
	return
}

// --- Encoders for each operation family (spec.md §4.2) ---

// StoreExtras encodes the flags+expiration extras used by the SET family.
// APPEND/PREPEND use empty extras (callers should pass nil instead).
func StoreExtras(flags, expiration uint32) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint32(buf[0:4], flags)
	binary.BigEndian.PutUint32(buf[4:8], expiration)
	return buf
}

// ArithmeticExtras encodes delta+initial+expiration for INCREMENT/DECREMENT.
func ArithmeticExtras(delta, initial uint64, expiration uint32) []byte {
	buf := make([]byte, 20)
	binary.BigEndian.PutUint64(buf[0:8], delta)
	binary.BigEndian.PutUint64(buf[8:16], initial)
	binary.BigEndian.PutUint32(buf[16:20], expiration)
	return buf
}

// TapConnectExtras encodes the flags extras for TAP_CONNECT; the filter
// blob is carried as the packet's value.
func TapConnectExtras(flags uint32) []byte {
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, flags)
	return buf
}

// DecodeTapExtras extracts the item flags and expiration a TAP_MUTATION
// push carries in its extras, laid out like the STORE family's (flags ∥
// expiration) for consistency with the rest of this codec.
func DecodeTapExtras(extras []byte) (flags, expiration uint32) {
	if len(extras) < 8 {
		return 0, 0
	}
	return binary.BigEndian.Uint32(extras[0:4]), binary.BigEndian.Uint32(extras[4:8])
}

// NewRequest builds a request packet with magic 0x80 and the given fields.
// vbid is written into the header's VBucket field per the Resolver's output.
func NewRequest(op Opcode, opaque uint32, vbid uint16, cas uint64, extras, key, value []byte) Packet {
	return Packet{
		Header: Header{
			Magic:   MagicRequest,
			Opcode:  op,
			VBucket: vbid,
			Opaque:  opaque,
			CAS:     cas,
		},
		Extras: extras,
		Key:    key,
		Value:  value,
	}
}
