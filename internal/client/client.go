// Package client implements the public Client Instance of spec.md §4.4:
// the vbucket-aware façade over a pool of Server connections, driving
// the single-threaded event loop described in spec.md §5.
package client

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/oriys/vbucket/internal/bootstrap"
	"github.com/oriys/vbucket/internal/config"
	"github.com/oriys/vbucket/internal/errs"
	"github.com/oriys/vbucket/internal/logging"
	"github.com/oriys/vbucket/internal/metrics"
	"github.com/oriys/vbucket/internal/reactor"
	"github.com/oriys/vbucket/internal/server"
	"github.com/oriys/vbucket/internal/transport"
	"github.com/oriys/vbucket/internal/vbucket"
	"github.com/oriys/vbucket/internal/wire"
)

// Client is the user-facing handle. One Client instance and all of its
// Servers share a single event loop; it performs no internal locking
// (spec.md §5 — no cross-thread concurrency sharing one instance).
type Client struct {
	cfg *config.Config

	host, bucket, username, password string

	loop     *reactor.Epoll
	dialer   transport.Dialer
	fetcher  bootstrap.Fetcher
	resolver *vbucket.Resolver

	servers []*server.Server

	seq atomic.Uint64

	callbacks Callbacks
	cookie    any
	filter    func(pkt wire.Packet) bool

	connected bool
}

// Create allocates a Client and records its bootstrap credentials. No
// I/O happens until Connect (spec.md §4.4: "create... no I/O yet").
func Create(cfg *config.Config, host, username, password, bucket string) (*Client, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	loop, err := reactor.New()
	if err != nil {
		return nil, fmt.Errorf("client: %w", err)
	}
	if cfg.Metrics.Enabled {
		metrics.Init(cfg.Metrics.Namespace, cfg.Metrics.HistogramBuckets)
	}
	return &Client{
		cfg:      cfg,
		host:     host,
		bucket:   bucket,
		username: username,
		password: password,
		loop:     loop,
		dialer:   transport.NewTCPDialer(),
		fetcher:  bootstrap.NewHTTPFetcher(),
		resolver: vbucket.NewResolver(),
	}, nil
}

// SetDialer overrides the default TCP dialer, e.g. with
// transport.NewVSockDialer() for AF_VSOCK-reachable nodes.
func (c *Client) SetDialer(d transport.Dialer) { c.dialer = d }

// SetCookie associates an arbitrary user value retrievable from within
// every callback invocation (spec.md §4.4).
func (c *Client) SetCookie(cookie any) { c.cookie = cookie }

func (c *Client) GetCookie() any { return c.cookie }

// SetCallbacks installs the callback table.
func (c *Client) SetCallbacks(cb Callbacks) { c.callbacks = cb }

// SetPacketFilter installs an optional predicate applied to outgoing
// packets; a packet is dropped (never sent, never recorded in cmd_log)
// when filter returns false. Dropped packets are logged at debug level rather than
// silently vanishing (SPEC_FULL §6).
func (c *Client) SetPacketFilter(filter func(pkt wire.Packet) bool) { c.filter = filter }

// Connect fetches the bucket's vbucket configuration from the bootstrap
// host and instantiates one Server per entry in the server list
// (spec.md §4.4). No connection is opened here: each Server resolves and
// connects when its first request is enqueued.
func (c *Client) Connect(ctx context.Context) error {
	installed := make(chan error, 1)
	go func() {
		installed <- c.fetcher.Stream(c.host, c.bucket, c.username, c.password, func(cfg *vbucket.Config) error {
			c.installConfig(ctx, cfg)
			select {
			case installed <- nil:
			default:
			}
			return nil
		})
	}()

	select {
	case err := <-installed:
		if err != nil {
			return errs.Wrap(errs.NetworkError, err)
		}
	case <-ctx.Done():
		return errs.Wrap(errs.NetworkError, ctx.Err())
	}

	if len(c.servers) == 0 {
		return errs.New(errs.NetworkError)
	}
	c.connected = true
	return nil
}

// installConfig is invoked once per streamed configuration document. The
// first call builds the Server array; subsequent calls replace the
// resolver's map atomically without touching existing connections
// (spec.md §3: "shared by reference... replacement is atomic").
func (c *Client) installConfig(ctx context.Context, cfg *vbucket.Config) {
	c.resolver.Install(cfg)
	if c.servers != nil {
		return
	}
	c.servers = make([]*server.Server, len(cfg.ServerAddrs))
	for i, addr := range cfg.ServerAddrs {
		c.servers[i] = server.New(i, addr, c.username, c.password, c.dialer, c.loop, dispatcherFor(c), c.cfg.Server.InputBufferBytes, c.cfg.Server.OutputBufferBytes, c.cfg.Server.ConnectTimeout, c.cfg.SASL.PreferredMechanisms)
	}
	_ = ctx
}

// nextSeq assigns a new internal turn and the 32-bit opaque derived from
// it (SPEC_FULL §6: widened 64-bit counter guards against opaque
// wraparound in the purge comparison).
func (c *Client) nextSeq() uint64 { return c.seq.Add(1) }

// enqueue resolves key to a server and hands pkt to it, honoring the
// packet filter and recording the operation for metrics/tracing.
func (c *Client) enqueue(ctx context.Context, key, hashkey []byte, pkt wire.Packet) (int, error) {
	vbid, serverIdx, err := c.resolver.Resolve(key, hashkey)
	if err != nil {
		return 0, err
	}
	if serverIdx < 0 || serverIdx >= len(c.servers) {
		return 0, errs.New(errs.NotMyVBucket)
	}
	if c.filter != nil && !c.filter(pkt) {
		logging.Op().Debug("client: packet dropped by filter", "opcode", pkt.Header.Opcode, "key", string(key))
		return serverIdx, nil
	}
	pkt.Header.VBucket = vbid
	seq := c.nextSeq()
	if err := c.servers[serverIdx].Enqueue(ctx, seq, pkt); err != nil {
		return serverIdx, err
	}
	return serverIdx, nil
}

// Execute runs the event loop until the in-flight set across all servers
// drains (spec.md §4.4).
func (c *Client) Execute(ctx context.Context) error {
	for {
		if c.drained() {
			return nil
		}
		if _, err := c.loop.RunOnce(100); err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
	}
}

func (c *Client) drained() bool {
	for _, s := range c.servers {
		if s.InFlight() > 0 || s.PendingBacklog() {
			return false
		}
	}
	return true
}

// Destroy tears down every Server in order, synthesizing misses for any
// still-outstanding requests, then releases the event loop (spec.md §4.4,
// §5). Callbacks MUST NOT call Destroy.
func (c *Client) Destroy() {
	teardownSeq := c.seq.Load() + 1
	for _, s := range c.servers {
		s.Destroy(teardownSeq)
	}
	_ = c.loop.Close()
}

// newTapStreamID returns a fresh identifier for a TAP_CONNECT request,
// used as the stream's client-supplied name.
func newTapStreamID() string {
	return uuid.NewString()
}
