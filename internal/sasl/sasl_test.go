package sasl

import (
	"crypto/hmac"
	"crypto/md5"
	"encoding/hex"
	"strings"
	"testing"
)

func TestSelectPrefersCramMD5(t *testing.T) {
	name, err := Select([]string{"PLAIN", "CRAM-MD5"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if name != "CRAM-MD5" {
		t.Fatalf("selected %q, want CRAM-MD5", name)
	}
}

func TestSelectFallsBackToPlain(t *testing.T) {
	name, err := Select([]string{"PLAIN"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if name != "PLAIN" {
		t.Fatalf("selected %q, want PLAIN", name)
	}
}

func TestSelectNoMutualMechanism(t *testing.T) {
	if _, err := Select([]string{"GSSAPI"}, nil); err == nil {
		t.Fatal("expected error for no mutual mechanism")
	}
}

// TestSelectConfiguredPreferenceOverridesStrength reproduces spec.md's S2:
// a configuration that requires PLAIN must force PLAIN even though
// LIST_MECHS also offers the (ordinarily preferred) CRAM-MD5.
func TestSelectConfiguredPreferenceOverridesStrength(t *testing.T) {
	name, err := Select([]string{"PLAIN", "CRAM-MD5"}, []string{"PLAIN"})
	if err != nil {
		t.Fatal(err)
	}
	if name != "PLAIN" {
		t.Fatalf("selected %q, want PLAIN (configured override)", name)
	}
}

func TestPlainStepFormat(t *testing.T) {
	p := NewPlain("alice", "hunter2")
	resp, done, err := p.Step(nil)
	if err != nil {
		t.Fatal(err)
	}
	if !done {
		t.Fatal("PLAIN should complete in one step")
	}
	parts := strings.Split(string(resp), "\x00")
	if len(parts) != 3 || parts[1] != "alice" || parts[2] != "hunter2" {
		t.Fatalf("unexpected PLAIN response: %q", resp)
	}
}

func TestCramMD5StepDigest(t *testing.T) {
	c := NewCramMD5("bob", "secret")
	challenge := []byte("<1896.697170952@example.com>")
	resp, done, err := c.Step(challenge)
	if err != nil {
		t.Fatal(err)
	}
	if !done {
		t.Fatal("CRAM-MD5 should complete in one step")
	}
	mac := hmac.New(md5.New, []byte("secret"))
	mac.Write(challenge)
	want := "bob " + hex.EncodeToString(mac.Sum(nil))
	if string(resp) != want {
		t.Fatalf("response = %q, want %q", resp, want)
	}
}

func TestNegotiatorCramMD5HappyPath(t *testing.T) {
	n := NewNegotiator("bob", "secret", nil)

	start := n.Start(0)
	if start.Header.Opcode != 0x20 {
		t.Fatalf("Start() opcode = %x, want LIST_MECHS (0x20)", start.Header.Opcode)
	}

	req, done, err := n.Advance(0 /* SUCCESS */, []byte("CRAM-MD5 PLAIN"), 1)
	if err != nil {
		t.Fatal(err)
	}
	if done {
		t.Fatal("should not be done after LIST_MECHS")
	}
	if string(req.Key) != "CRAM-MD5" {
		t.Fatalf("mechanism key = %q, want CRAM-MD5", req.Key)
	}

	req, done, err = n.Advance(0x0021 /* AUTH_CONTINUE */, []byte("challenge-bytes"), 2)
	if err != nil {
		t.Fatal(err)
	}
	if done {
		t.Fatal("should not be done after AUTH_CONTINUE")
	}
	if string(req.Key) != "CRAM-MD5" {
		t.Fatalf("step mechanism key = %q", req.Key)
	}

	_, done, err = n.Advance(0 /* SUCCESS */, nil, 3)
	if err != nil {
		t.Fatal(err)
	}
	if !done {
		t.Fatal("expected negotiation to complete on SUCCESS")
	}
	if !n.Done() {
		t.Fatal("Done() should report true after successful negotiation")
	}
}

func TestNegotiatorAuthErrorAborts(t *testing.T) {
	n := NewNegotiator("bob", "secret", nil)
	if _, _, err := n.Advance(0, []byte("PLAIN"), 1); err != nil {
		t.Fatal(err)
	}
	if _, _, err := n.Advance(0x0020 /* AUTH_ERROR */, nil, 2); err == nil {
		t.Fatal("expected AUTH_ERROR to surface as an error")
	}
}

// TestNegotiatorHonorsConfiguredPLAINOverride reproduces spec.md's S2 in
// full: "configuration requires PLAIN; credentials user=u, pass=p.
// Exchange: LIST_MECHS -> 'PLAIN CRAM-MD5'; AUTH with PLAIN body
// '\0u\0p' -> SUCCESS", even though CRAM-MD5 is mutually offered and
// would otherwise win.
func TestNegotiatorHonorsConfiguredPLAINOverride(t *testing.T) {
	n := NewNegotiator("u", "p", []string{"PLAIN"})

	req, done, err := n.Advance(0 /* SUCCESS */, []byte("PLAIN CRAM-MD5"), 1)
	if err != nil {
		t.Fatal(err)
	}
	if done {
		t.Fatal("should not be done after LIST_MECHS")
	}
	if string(req.Key) != "PLAIN" {
		t.Fatalf("mechanism key = %q, want PLAIN (configured override)", req.Key)
	}
	if string(req.Value) != "\x00u\x00p" {
		t.Fatalf("PLAIN body = %q, want \\0u\\0p", req.Value)
	}

	_, done, err = n.Advance(0 /* SUCCESS */, nil, 2)
	if err != nil {
		t.Fatal(err)
	}
	if !done || !n.Done() {
		t.Fatal("expected negotiation to complete on SUCCESS")
	}
}
