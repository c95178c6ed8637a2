package vbucket

import (
	"hash/crc32"
	"testing"

	"github.com/oriys/vbucket/internal/errs"
)

func testConfig() *Config {
	return &Config{
		VBucketCount: 4,
		Mappings: []Mapping{
			{Master: 0, Replicas: []int{1}},
			{Master: 1, Replicas: []int{0}},
			{Master: 0, Replicas: []int{1}},
			{Master: 1, Replicas: []int{0}},
		},
		ServerAddrs: []string{"a:11210", "b:11210"},
	}
}

func TestResolveNoConfigIsNetworkError(t *testing.T) {
	_, _, err := Resolve(nil, []byte("k"), nil)
	e, ok := err.(*errs.Error)
	if !ok || e.Kind != errs.NetworkError {
		t.Fatalf("err = %v, want NETWORK_ERROR", err)
	}
}

func TestResolveIsIdempotent(t *testing.T) {
	cfg := testConfig()
	key := []byte("session:42")
	vbid1, idx1, err := Resolve(cfg, key, nil)
	if err != nil {
		t.Fatal(err)
	}
	vbid2, idx2, err := Resolve(cfg, key, nil)
	if err != nil {
		t.Fatal(err)
	}
	if vbid1 != vbid2 || idx1 != idx2 {
		t.Fatalf("resolve not idempotent: (%d,%d) vs (%d,%d)", vbid1, idx1, vbid2, idx2)
	}
}

func TestResolveUsesHashkeyOverride(t *testing.T) {
	cfg := testConfig()
	vbid, idx, err := Resolve(cfg, []byte("unrelated-key"), []byte("colocate-me"))
	if err != nil {
		t.Fatal(err)
	}
	wantVbid := uint16(crc32.ChecksumIEEE([]byte("colocate-me")) & (cfg.VBucketCount - 1))
	if vbid != wantVbid {
		t.Fatalf("vbid = %d, want %d", vbid, wantVbid)
	}
	if idx != cfg.Mappings[wantVbid].Master {
		t.Fatalf("server index = %d, want %d", idx, cfg.Mappings[wantVbid].Master)
	}
}

func TestReplicas(t *testing.T) {
	cfg := testConfig()
	if got := cfg.Replicas(1); len(got) != 1 || got[0] != 0 {
		t.Fatalf("replicas(1) = %v, want [0]", got)
	}
}

func TestResolverInstallIsAtomic(t *testing.T) {
	r := NewResolver()
	if _, _, err := r.Resolve([]byte("k"), nil); err == nil {
		t.Fatal("expected error before Install")
	}
	r.Install(testConfig())
	if _, _, err := r.Resolve([]byte("k"), nil); err != nil {
		t.Fatalf("unexpected error after Install: %v", err)
	}
}
