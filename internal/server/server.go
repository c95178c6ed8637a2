// Package server implements the per-node connection state machine of
// spec.md §4.3: socket lifecycle, SASL handshake, buffered I/O
// readiness, and the in-flight command log that backs the implicit-
// response purge rule.
package server

import (
	"context"
	"fmt"
	"time"

	"github.com/oriys/vbucket/internal/buffer"
	"github.com/oriys/vbucket/internal/errs"
	"github.com/oriys/vbucket/internal/logging"
	"github.com/oriys/vbucket/internal/metrics"
	"github.com/oriys/vbucket/internal/reactor"
	"github.com/oriys/vbucket/internal/sasl"
	"github.com/oriys/vbucket/internal/tracing"
	"github.com/oriys/vbucket/internal/transport"
	"github.com/oriys/vbucket/internal/wire"
)

const (
	defaultReadChunk = 8192 // spec.md §4.3: "at least 8 KiB per wakeup"
	headerPeekLen    = wire.HeaderLen
)

// Server is one backend node's connection: its address candidates,
// socket, SASL conversation, and the four buffers spec.md §3 assigns it.
type Server struct {
	Index    int
	Hostname string
	Port     string

	dialer transport.Dialer
	loop   reactor.Loop

	state      State
	candidates []string
	cursor     int
	conn       transport.Conn
	fd         int

	pending *buffer.Buffer
	output  *buffer.Buffer
	input   *buffer.Buffer
	cmdLog  CmdLog

	// tapStreams counts open TAP_CONNECT subscriptions. These are tracked
	// outside cmd_log entirely (see Enqueue) since they never elicit a
	// correlated response and would otherwise sit in cmd_log forever as a
	// non-quiet entry the purge rule trips over on the next real response.
	tapStreams int

	negotiator     *sasl.Negotiator
	saslOpaque     uint64 // opaque of the last SASL packet sent; SASL responses are routed by opcode, not matched against it
	connectTimeout time.Duration

	// connectCtx is the context the current connection attempt was
	// started under; it outlives any single Enqueue call and backs the
	// reconnect/SASL spans raised from reactor callbacks, which have no
	// per-request context of their own.
	connectCtx context.Context

	username, password  string
	preferredMechanisms []string

	disp Dispatcher
}

// New constructs a Server in the UNRESOLVED state. It performs no I/O.
// preferredMechanisms overrides the SASL negotiator's default
// strongest-wins mechanism order (config.SASLConfig.PreferredMechanisms);
// nil preserves the default.
func New(index int, hostport, username, password string, dialer transport.Dialer, loop reactor.Loop, disp Dispatcher, inputCap, outputCap int, connectTimeout time.Duration, preferredMechanisms []string) *Server {
	host, port := splitHostPort(hostport)
	return &Server{
		Index:               index,
		Hostname:            host,
		Port:                port,
		dialer:              dialer,
		loop:                loop,
		state:               Unresolved,
		pending:             buffer.New(outputCap),
		output:              buffer.New(outputCap),
		input:               buffer.New(inputCap),
		username:            username,
		password:            password,
		preferredMechanisms: preferredMechanisms,
		disp:                disp,
		fd:                  -1,
		connectTimeout:      connectTimeout,
	}
}

func splitHostPort(hostport string) (string, string) {
	for i := len(hostport) - 1; i >= 0; i-- {
		if hostport[i] == ':' {
			return hostport[:i], hostport[i+1:]
		}
	}
	return hostport, "11210"
}

func (s *Server) State() State { return s.state }

// Connected reports whether the server is past authentication and ready
// to accept writes directly into output rather than pending.
func (s *Server) Connected() bool { return s.state == Ready }

// Enqueue frames and appends a packet to the appropriate buffer —
// output if READY, pending otherwise (spec.md §3 invariant) — and
// records its cmd_log entry keyed by seq. If the server is still
// UNRESOLVED this also kicks off resolution and connection.
func (s *Server) Enqueue(ctx context.Context, seq uint64, pkt wire.Packet) error {
	if s.state == Unresolved {
		if err := s.beginResolve(ctx); err != nil {
			return err
		}
	}
	if s.state == Closed {
		return errs.New(errs.NetworkError)
	}

	pkt.Header.Opaque = uint32(seq)

	if pkt.Header.Opcode == wire.OpTapConnect {
		// TAP_CONNECT opens a long-lived, server-pushed stream: it never
		// gets a correlated response, so unlike a normal request it must
		// not become a permanent non-quiet cmd_log entry — the purge rule
		// would abort the connection the moment any later response on
		// this server arrived. Bypass cmd_log correlation entirely, the
		// way the SASL handshake already does in onConnected.
		s.tapStreams++
		encoded := pkt.Encode()
		if s.Connected() {
			s.output.Append(encoded)
			s.armWrite()
		} else {
			s.pending.Append(encoded)
		}
		return nil
	}

	entry := LogEntry{Seq: seq, Opaque: pkt.Header.Opaque, Opcode: pkt.Header.Opcode, Key: append([]byte(nil), pkt.Key...), Enqueued: time.Now()}
	s.cmdLog.Push(entry)

	encoded := pkt.Encode()
	if s.Connected() {
		s.output.Append(encoded)
		s.armWrite()
	} else {
		s.pending.Append(encoded)
	}
	metrics.SetInFlight(fmt.Sprintf("%d", s.Index), s.cmdLog.Len())
	return nil
}

func (s *Server) beginResolve(ctx context.Context) error {
	s.connectCtx = ctx
	s.state = Resolving
	addrs, err := s.dialer.Resolve(ctx, fmt.Sprintf("%s:%s", s.Hostname, s.Port))
	if err != nil || len(addrs) == 0 {
		s.state = Closed
		return errs.Wrap(errs.NetworkError, err)
	}
	s.candidates = addrs
	s.cursor = 0
	s.state = Connecting
	return s.tryConnectCurrent(ctx)
}

// tryConnectCurrent attempts the candidate at s.cursor, advancing on
// failure until exhaustion (spec.md §4.3).
func (s *Server) tryConnectCurrent(ctx context.Context) error {
	for s.cursor < len(s.candidates) {
		addr := s.candidates[s.cursor]
		spanCtx, finish := tracing.StartReconnect(ctx, s.Index)
		dialCtx := ctx
		var cancel context.CancelFunc
		if s.connectTimeout > 0 {
			dialCtx, cancel = context.WithTimeout(ctx, s.connectTimeout)
		}
		conn, err := s.dialer.Dial(dialCtx, addr)
		if cancel != nil {
			cancel()
		}
		finish(err)
		metrics.RecordReconnect(err == nil)
		if err == nil {
			s.conn = conn
			s.fd = conn.Fd()
			s.onConnected()
			return nil
		}
		traceID, spanID := tracing.IDs(spanCtx)
		logging.OpWithTrace(traceID, spanID).Debug("server: connect attempt failed", "server", s.Index, "addr", addr, "error", err)
		s.cursor++
	}
	s.state = Closed
	metrics.SetServerState(fmt.Sprintf("%d", s.Index), int(Closed))
	return errs.New(errs.NetworkError)
}

func (s *Server) onConnected() {
	if s.username == "" {
		s.becomeReady()
		return
	}
	s.state = Authenticating
	metrics.SetServerState(fmt.Sprintf("%d", s.Index), int(Authenticating))
	s.negotiator = sasl.NewNegotiator(s.username, s.password, s.preferredMechanisms)
	_ = s.loop.UpdateEvent(s.fd, reactor.InterestRead|reactor.InterestWrite, s.onReady)
	// The LIST_MECHS request is written directly; it bypasses Enqueue/cmd_log
	// bookkeeping since SASL packets are tracked separately via saslOpaque.
	s.saslOpaque = 0
	_, finish := tracing.StartSASLStep(s.connectCtx, "LIST_MECHS")
	start := s.negotiator.Start(uint32(s.saslOpaque))
	s.output.Append(start.Encode())
	s.armWrite()
	finish(nil)
}

func (s *Server) becomeReady() {
	s.state = Ready
	metrics.SetServerState(fmt.Sprintf("%d", s.Index), int(Ready))
	s.output.AppendTo(s.pending)
	interest := reactor.InterestRead
	if s.output.Avail() > 0 {
		interest |= reactor.InterestWrite
	}
	_ = s.loop.UpdateEvent(s.fd, interest, s.onReady)
}

// armWrite ensures write-readiness is registered alongside read-readiness.
func (s *Server) armWrite() {
	if s.fd < 0 {
		return
	}
	_ = s.loop.UpdateEvent(s.fd, reactor.InterestRead|reactor.InterestWrite, s.onReady)
}

// onReady is the single reactor callback for this server's fd, handling
// both write-drain and read-parse per spec.md §4.3.
func (s *Server) onReady(_ int, ready reactor.Interest) {
	if ready&reactor.InterestWrite != 0 {
		s.drainWrite()
	}
	if ready&reactor.InterestRead != 0 {
		s.drainRead()
	}
}

func (s *Server) drainWrite() {
	if s.output.Avail() == 0 {
		_ = s.loop.UpdateEvent(s.fd, reactor.InterestRead, s.onReady)
		return
	}
	n, err := s.conn.Write(s.output.Bytes())
	if err != nil {
		s.abort(errs.Wrap(errs.NetworkError, err))
		return
	}
	s.output.Consume(n)
	if s.output.Avail() == 0 {
		_ = s.loop.UpdateEvent(s.fd, reactor.InterestRead, s.onReady)
	}
}

func (s *Server) drainRead() {
	chunk := make([]byte, defaultReadChunk)
	n, err := s.conn.Read(chunk)
	if n > 0 {
		s.input.Append(chunk[:n])
	}
	if err != nil {
		s.abort(errs.Wrap(errs.NetworkError, err))
		return
	}
	s.parseLoop()
}

// parseLoop consumes every complete packet currently buffered in input,
// dispatching each through the appropriate handler (spec.md §4.3).
func (s *Server) parseLoop() {
	for {
		if s.input.Avail() < headerPeekLen {
			return
		}
		h := wire.DecodeHeader(s.input.Peek(headerPeekLen))
		total := headerPeekLen + h.BodyLen()
		if s.input.Avail() < total {
			return
		}
		body := s.input.Peek(total)[headerPeekLen:total]
		extras, key, value := wire.DecodeBody(h, body)

		isSASLOpcode := h.Opcode == wire.OpSASLListMechs || h.Opcode == wire.OpSASLAuth || h.Opcode == wire.OpSASLStep
		switch {
		case s.state == Authenticating && isSASLOpcode:
			s.handleSASLResponse(h, value)
		case h.Opcode.IsTapEvent():
			s.dispatchTapEvent(h, extras, key, value, s.disp)
		default:
			if err := s.dispatchResponse(h, extras, value, s.disp); err != nil {
				s.abort(err)
				s.input.Consume(total)
				return
			}
		}
		s.input.Consume(total)
	}
}

func (s *Server) handleSASLResponse(h wire.Header, value []byte) {
	mechanism := s.negotiator.MechanismName()
	_, finish := tracing.StartSASLStep(s.connectCtx, mechanism)
	req, done, err := s.negotiator.Advance(h.VBucket, value, uint32(s.saslOpaque+1))
	finish(err)
	if err != nil {
		metrics.RecordSASLAttempt(mechanism, false)
		s.abort(errs.New(errs.AuthError))
		return
	}
	if done {
		metrics.RecordSASLAttempt(mechanism, true)
		s.becomeReady()
		return
	}
	s.saslOpaque++
	s.output.Append(req.Encode())
	s.armWrite()
}

// abort tears down this server's connection in response to a network or
// protocol failure, purging all in-flight requests as synthetic misses
// before transitioning to CLOSED.
func (s *Server) abort(cause error) {
	if s.state == Closed {
		return
	}
	traceID, spanID := tracing.IDs(s.connectCtx)
	logging.OpWithTrace(traceID, spanID).Warn("server: aborting connection", "server", s.Index, "error", cause)
	s.drainOnTeardown(s.nextUnassignedSeq(), s.disp)
	s.state = Closed
	s.tapStreams = 0
	metrics.SetServerState(fmt.Sprintf("%d", s.Index), int(Closed))
	if s.fd >= 0 {
		s.loop.Remove(s.fd)
	}
	if s.conn != nil {
		_ = s.conn.Close()
	}
}

// Destroy cancels all in-flight requests by synthesizing misses for the
// entire cmd_log, then releases the socket (spec.md §5: destroy()
// cancellation semantics).
func (s *Server) Destroy(currentSeq uint64) {
	if s.state == Closed {
		return
	}
	s.drainOnTeardown(currentSeq, s.disp)
	s.state = Closed
	if s.fd >= 0 {
		s.loop.Remove(s.fd)
	}
	if s.conn != nil {
		_ = s.conn.Close()
	}
}

// nextUnassignedSeq returns a turn strictly beyond every entry currently
// logged, so an abort purges the entire cmd_log.
func (s *Server) nextUnassignedSeq() uint64 {
	if n := s.cmdLog.Len(); n > 0 {
		return s.cmdLog.entries[n-1].Seq + 1
	}
	return 0
}

// InFlight reports the number of outstanding requests plus open TAP
// streams, used by execute()'s drain condition (spec.md §4.4): a
// tap_cluster(block=true) call keeps the loop running for as long as a
// stream stays open, even though TAP_CONNECT carries no cmd_log entry.
func (s *Server) InFlight() int { return s.cmdLog.Len() + s.tapStreams }

// PendingBacklog reports whether pre-READY bytes are still queued.
func (s *Server) PendingBacklog() bool {
	return s.state != Ready && s.state != Closed && s.pending.Avail() > 0
}
