package transport

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/mdlayher/vsock"
)

// VSockDialer connects to nodes reachable over AF_VSOCK instead of TCP —
// for a cluster node colocated in a sibling microVM/guest rather than
// across the network. Resolve is a no-op passthrough since vsock
// addressing is a (cid, port) pair, not a DNS name.
type VSockDialer struct{}

func NewVSockDialer() *VSockDialer { return &VSockDialer{} }

func (d *VSockDialer) Resolve(_ context.Context, hostport string) ([]string, error) {
	return []string{hostport}, nil
}

// Dial expects addr in "cid:port" form.
func (d *VSockDialer) Dial(_ context.Context, addr string) (Conn, error) {
	cidStr, portStr, ok := strings.Cut(addr, ":")
	if !ok {
		return nil, fmt.Errorf("transport: malformed vsock address %q, want cid:port", addr)
	}
	cid, err := strconv.ParseUint(cidStr, 10, 32)
	if err != nil {
		return nil, fmt.Errorf("transport: invalid vsock cid %q: %w", cidStr, err)
	}
	port, err := strconv.ParseUint(portStr, 10, 32)
	if err != nil {
		return nil, fmt.Errorf("transport: invalid vsock port %q: %w", portStr, err)
	}

	conn, err := vsock.Dial(uint32(cid), uint32(port), nil)
	if err != nil {
		return nil, err
	}
	return &vsockConn{Conn: conn}, nil
}

type vsockConn struct {
	*vsock.Conn
}

func (c *vsockConn) Fd() int {
	raw, err := c.SyscallConn()
	if err != nil {
		return -1
	}
	var fd int
	_ = raw.Control(func(sysfd uintptr) {
		fd = int(sysfd)
	})
	return fd
}
