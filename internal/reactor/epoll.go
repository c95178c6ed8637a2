//go:build linux

// Package reactor implements the single-threaded cooperative event loop
// described in spec.md §5: one epoll instance multiplexes every Server's
// socket, and UpdateEvent registers or rearms interest idempotently so
// callers never have to track whether a descriptor is already known to
// the loop.
package reactor

import (
	"fmt"
	"sync"

	"golang.org/x/sys/unix"
)

// Interest is a bitmask of readiness a caller wants notified about.
type Interest uint8

const (
	InterestRead Interest = 1 << iota
	InterestWrite
)

// Handler is invoked once per readiness notification with the interest
// bits that fired.
type Handler func(fd int, ready Interest)

// Epoll is a thin wrapper over Linux epoll implementing the Event
// Adapter role: Servers register their socket fd once and flip their
// desired interest as their buffers fill and drain, without ever
// allocating a new registration.
type Epoll struct {
	fd int

	mu       sync.Mutex
	handlers map[int]Handler
	interest map[int]Interest
}

// New creates an epoll instance.
func New() (*Epoll, error) {
	fd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("reactor: epoll_create1: %w", err)
	}
	return &Epoll{
		fd:       fd,
		handlers: make(map[int]Handler),
		interest: make(map[int]Interest),
	}, nil
}

func toEpollEvents(i Interest) uint32 {
	var ev uint32
	if i&InterestRead != 0 {
		ev |= unix.EPOLLIN
	}
	if i&InterestWrite != 0 {
		ev |= unix.EPOLLOUT
	}
	return ev
}

// UpdateEvent registers fd for the given interest with handler, or
// rearms an already-registered fd's interest set. Idempotent: calling it
// repeatedly with the same (fd, interest) is a no-op beyond bookkeeping.
func (e *Epoll) UpdateEvent(fd int, interest Interest, handler Handler) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	_, known := e.handlers[fd]
	e.handlers[fd] = handler
	ev := unix.EpollEvent{Events: toEpollEvents(interest), Fd: int32(fd)}

	op := unix.EPOLL_CTL_MOD
	if !known {
		op = unix.EPOLL_CTL_ADD
	}
	if err := unix.EpollCtl(e.fd, op, fd, &ev); err != nil {
		delete(e.handlers, fd)
		return fmt.Errorf("reactor: epoll_ctl: %w", err)
	}
	e.interest[fd] = interest
	return nil
}

// Remove deregisters fd, dropping its handler. Safe to call on an
// already-removed fd.
func (e *Epoll) Remove(fd int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, known := e.handlers[fd]; !known {
		return
	}
	_ = unix.EpollCtl(e.fd, unix.EPOLL_CTL_DEL, fd, nil)
	delete(e.handlers, fd)
	delete(e.interest, fd)
}

// RunOnce blocks up to timeoutMs (or indefinitely if negative) for
// readiness events and dispatches each to its registered handler. It
// returns the number of events dispatched.
func (e *Epoll) RunOnce(timeoutMs int) (int, error) {
	events := make([]unix.EpollEvent, 64)
	n, err := unix.EpollWait(e.fd, events, timeoutMs)
	if err != nil {
		if err == unix.EINTR {
			return 0, nil
		}
		return 0, fmt.Errorf("reactor: epoll_wait: %w", err)
	}

	e.mu.Lock()
	dispatch := make([]struct {
		h     Handler
		fd    int
		ready Interest
	}, 0, n)
	for i := 0; i < n; i++ {
		fd := int(events[i].Fd)
		h, ok := e.handlers[fd]
		if !ok {
			continue
		}
		var ready Interest
		if events[i].Events&(unix.EPOLLIN|unix.EPOLLHUP|unix.EPOLLERR) != 0 {
			ready |= InterestRead
		}
		if events[i].Events&unix.EPOLLOUT != 0 {
			ready |= InterestWrite
		}
		dispatch = append(dispatch, struct {
			h     Handler
			fd    int
			ready Interest
		}{h, fd, ready})
	}
	e.mu.Unlock()

	for _, d := range dispatch {
		d.h(d.fd, d.ready)
	}
	return len(dispatch), nil
}

// Close releases the epoll descriptor.
func (e *Epoll) Close() error {
	return unix.Close(e.fd)
}
