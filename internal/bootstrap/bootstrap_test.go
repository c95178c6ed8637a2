package bootstrap

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/oriys/vbucket/internal/vbucket"
)

func TestStreamParsesNewlineDelimitedConfigs(t *testing.T) {
	doc := `{"vBucketServerMap":{"hashAlgorithm":"CRC","numReplicas":1,"serverList":["a:11210","b:11210"],"vBucketMap":[[0,1],[1,0]]}}` + "\n"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/pools/default/bucketsStreaming/default" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		fmt.Fprint(w, doc)
	}))
	defer srv.Close()

	f := NewHTTPFetcher()
	var got *vbucket.Config
	err := f.Stream(srv.Listener.Addr().String(), "default", "", "", func(cfg *vbucket.Config) error {
		got = cfg
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if got == nil {
		t.Fatal("expected a config to be delivered")
	}
	if got.VBucketCount != 2 || len(got.ServerAddrs) != 2 {
		t.Fatalf("unexpected config: %+v", got)
	}
	if got.Mappings[0].Master != 0 || got.Mappings[1].Master != 1 {
		t.Fatalf("unexpected mappings: %+v", got.Mappings)
	}
}

func TestStreamSendsBasicAuth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "alice" || pass != "hunter2" {
			t.Errorf("expected basic auth alice/hunter2, got ok=%v user=%q", ok, user)
		}
	}))
	defer srv.Close()

	f := NewHTTPFetcher()
	if err := f.Stream(srv.Listener.Addr().String(), "default", "alice", "hunter2", func(*vbucket.Config) error {
		return nil
	}); err != nil {
		t.Fatal(err)
	}
}

func TestStreamSkipsMalformedLines(t *testing.T) {
	body := "not json\n" + `{"vBucketServerMap":{"serverList":["a:11210"],"vBucketMap":[[0]]}}` + "\n"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, body)
	}))
	defer srv.Close()

	f := NewHTTPFetcher()
	calls := 0
	err := f.Stream(srv.Listener.Addr().String(), "default", "", "", func(*vbucket.Config) error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if calls != 1 {
		t.Fatalf("expected exactly one valid config delivered, got %d", calls)
	}
}

func TestToConfigDefaultsEmptyRowMasterToInvalid(t *testing.T) {
	doc := poolsDocument{}
	doc.VBucketServerMap.ServerList = []string{"a:11210"}
	doc.VBucketServerMap.VBucketMap = [][]int{{0}, {}}

	cfg := toConfig(doc)
	if cfg == nil {
		t.Fatal("expected a non-nil config")
	}
	if cfg.Mappings[1].Master != -1 {
		t.Fatalf("empty row should default Master to -1, got %d", cfg.Mappings[1].Master)
	}
}

func TestToConfigRejectsEmptyMap(t *testing.T) {
	if cfg := toConfig(poolsDocument{}); cfg != nil {
		t.Fatalf("expected nil config for an empty document, got %+v", cfg)
	}
}

// TestToConfigCarriesPerConfigSASLScope reproduces spec.md §3's data
// model requirement that a VBucket Configuration carry its own optional
// SASL username/password.
func TestToConfigCarriesPerConfigSASLScope(t *testing.T) {
	doc := poolsDocument{Name: "protected-bucket", SASLPassword: "s3cret"}
	doc.VBucketServerMap.ServerList = []string{"a:11210"}
	doc.VBucketServerMap.VBucketMap = [][]int{{0}}

	cfg := toConfig(doc)
	if cfg == nil {
		t.Fatal("expected a non-nil config")
	}
	if cfg.SASLUsername != "protected-bucket" || cfg.SASLPassword != "s3cret" {
		t.Fatalf("SASL scope not carried through: %+v", cfg)
	}
}
