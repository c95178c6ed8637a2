// Package bootstrap fetches the cluster's vbucket configuration over
// HTTP and hands each parsed document to a caller-supplied callback as a
// vbucket.Config (spec.md §6).
package bootstrap

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/oriys/vbucket/internal/logging"
	"github.com/oriys/vbucket/internal/vbucket"
)

// Fetcher streams vbucket configuration documents for a bucket. Stream
// blocks until the server ends the stream, the connection is lost, or
// onConfig returns an error, invoking onConfig once per parsed document.
type Fetcher interface {
	Stream(host, bucket, username, password string, onConfig func(*vbucket.Config) error) error
}

// HTTPFetcher issues the newline-delimited-JSON streaming GET described
// in spec.md §6 against /pools/default/bucketsStreaming/<bucket>.
type HTTPFetcher struct {
	Client *http.Client
}

func NewHTTPFetcher() *HTTPFetcher {
	return &HTTPFetcher{Client: &http.Client{}}
}

// poolsDocument mirrors the subset of the cluster config document this
// client consumes; everything outside vBucketServerMap/name/saslPassword
// is ignored. name/saslPassword carry the bucket's own SASL scope
// (spec.md §3: "an optional SASL username/password scoped to the
// configuration") — the bucket name doubles as the SASL username, per
// the wire convention the bucketsStreaming document follows.
type poolsDocument struct {
	Name         string `json:"name"`
	SASLPassword string `json:"saslPassword"`

	VBucketServerMap struct {
		HashAlgorithm string   `json:"hashAlgorithm"`
		NumReplicas   int      `json:"numReplicas"`
		ServerList    []string `json:"serverList"`
		VBucketMap    [][]int  `json:"vBucketMap"`
	} `json:"vBucketServerMap"`
}

func (f *HTTPFetcher) Stream(host, bucket, username, password string, onConfig func(*vbucket.Config) error) error {
	url := fmt.Sprintf("http://%s/pools/default/bucketsStreaming/%s", host, bucket)
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	if username != "" {
		req.SetBasicAuth(username, password)
	}

	resp, err := f.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("bootstrap: unexpected status %d from %s", resp.StatusCode, url)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var doc poolsDocument
		if err := json.Unmarshal(line, &doc); err != nil {
			logging.Op().Debug("bootstrap: skipping malformed config document", "error", err)
			continue
		}
		cfg := toConfig(doc)
		if cfg == nil {
			continue
		}
		if err := onConfig(cfg); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil && err != io.EOF {
		return err
	}
	return nil
}

// toConfig converts a parsed pools document into a vbucket.Config. The
// vbucket count is the document's own map length (always a power of two
// in a real cluster); mappings with no master default to -1, which
// vbucket.Resolve returns as-is and Client.enqueue rejects as an
// out-of-range server index.
func toConfig(doc poolsDocument) *vbucket.Config {
	m := doc.VBucketServerMap
	if len(m.VBucketMap) == 0 || len(m.ServerList) == 0 {
		return nil
	}
	mappings := make([]vbucket.Mapping, len(m.VBucketMap))
	for i, row := range m.VBucketMap {
		if len(row) == 0 {
			mappings[i] = vbucket.Mapping{Master: -1}
			continue
		}
		mappings[i] = vbucket.Mapping{Master: row[0], Replicas: append([]int(nil), row[1:]...)}
	}
	return &vbucket.Config{
		VBucketCount: uint32(len(m.VBucketMap)),
		Mappings:     mappings,
		ServerAddrs:  append([]string(nil), m.ServerList...),
		SASLUsername: doc.Name,
		SASLPassword: doc.SASLPassword,
	}
}
