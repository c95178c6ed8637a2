package wire

import (
	"bytes"
	"testing"
)

func TestHeaderRoundTrip(t *testing.T) {
	h := Header{
		Magic:        MagicRequest,
		Opcode:       OpSet,
		KeyLen:       3,
		ExtrasLen:    8,
		Datatype:     0,
		VBucket:      42,
		TotalBodyLen: 11,
		Opaque:       0xdeadbeef,
		CAS:          0x0102030405060708,
	}
	buf := h.Encode(nil)
	if len(buf) != HeaderLen {
		t.Fatalf("encoded length = %d, want %d", len(buf), HeaderLen)
	}
	got := DecodeHeader(buf)
	if got != h {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, h)
	}
}

func TestHeaderBigEndianFieldsExceptOpaque(t *testing.T) {
	h := Header{Magic: MagicResponse, Opcode: OpGet, VBucket: 0x0102, TotalBodyLen: 0x01020304, CAS: 1}
	buf := h.Encode(nil)
	if buf[6] != 0x01 || buf[7] != 0x02 {
		t.Fatalf("VBucket not big-endian: % x", buf[6:8])
	}
	if buf[8] != 0x01 || buf[9] != 0x02 || buf[10] != 0x03 || buf[11] != 0x04 {
		t.Fatalf("TotalBodyLen not big-endian: % x", buf[8:12])
	}
}

func TestQuietOpcodes(t *testing.T) {
	quiet := []Opcode{OpGetQ, OpGetKQ, OpSetQ, OpAddQ, OpReplaceQ, OpDeleteQ, OpIncrementQ, OpDecrementQ, OpAppendQ, OpPrependQ}
	for _, op := range quiet {
		if !op.Quiet() {
			t.Errorf("opcode %x should be quiet", byte(op))
		}
	}
	notQuiet := []Opcode{OpGet, OpGetK, OpSet, OpAdd, OpDelete, OpIncrement}
	for _, op := range notQuiet {
		if op.Quiet() {
			t.Errorf("opcode %x should not be quiet", byte(op))
		}
	}
}

func TestIsGet(t *testing.T) {
	for _, op := range []Opcode{OpGet, OpGetQ, OpGetK, OpGetKQ} {
		if !op.IsGet() {
			t.Errorf("opcode %x should be a GET variant", byte(op))
		}
	}
	if OpSet.IsGet() {
		t.Error("OpSet should not be a GET variant")
	}
}

func TestIsTapEvent(t *testing.T) {
	for _, op := range []Opcode{OpTapMutation, OpTapDelete, OpTapFlush, OpTapOpaque, OpTapVBucketSet} {
		if !op.IsTapEvent() {
			t.Errorf("opcode %x should be a TAP stream event", byte(op))
		}
	}
	if OpTapConnect.IsTapEvent() {
		t.Error("OpTapConnect is the handshake request, not a pushed stream event")
	}
	if OpGet.IsTapEvent() {
		t.Error("OpGet should not be a TAP stream event")
	}
}

func TestDecodeTapExtras(t *testing.T) {
	extras := StoreExtras(9, 600)
	flags, exp := DecodeTapExtras(extras)
	if flags != 9 || exp != 600 {
		t.Fatalf("flags=%d exp=%d, want 9/600", flags, exp)
	}
	if flags, exp := DecodeTapExtras(nil); flags != 0 || exp != 0 {
		t.Fatalf("short extras should decode to zero, got %d/%d", flags, exp)
	}
}

func TestPacketEncodeDecodeBody(t *testing.T) {
	extras := StoreExtras(7, 300)
	pkt := NewRequest(OpSet, 5, 12, 0, extras, []byte("foo"), []byte("bar"))
	raw := pkt.Encode()

	h := DecodeHeader(raw[:HeaderLen])
	if h.Opcode != OpSet || h.Opaque != 5 || h.VBucket != 12 {
		t.Fatalf("header mismatch: %+v", h)
	}
	gotExtras, gotKey, gotValue := DecodeBody(h, raw[HeaderLen:])
	if !bytes.Equal(gotExtras, extras) {
		t.Fatalf("extras = % x, want % x", gotExtras, extras)
	}
	if string(gotKey) != "foo" {
		t.Fatalf("key = %q", gotKey)
	}
	if string(gotValue) != "bar" {
		t.Fatalf("value = %q", gotValue)
	}
}
