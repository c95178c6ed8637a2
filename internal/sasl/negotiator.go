package sasl

import (
	"strings"

	"github.com/oriys/vbucket/internal/errs"
	"github.com/oriys/vbucket/internal/wire"
)

// Negotiator drives one server connection's SASL handshake to completion
// by building each request packet for the caller (the server
// connection's request/response plumbing) to send. It holds no socket
// state of its own; Advance moves a small internal state machine forward
// as responses arrive.
type Negotiator struct {
	username, password string

	// preferredMechanisms overrides defaultPreferenceOrder when set,
	// threaded down from config.SASLConfig.PreferredMechanisms (spec.md
	// S2: a configuration can force PLAIN even when the server also
	// offers the stronger CRAM-MD5).
	preferredMechanisms []string

	mechanism Mechanism
	phase     phase
}

type phase int

const (
	phaseListMechs phase = iota
	phaseAuth
	phaseStepping
	phaseDone
)

func NewNegotiator(username, password string, preferredMechanisms []string) *Negotiator {
	return &Negotiator{username: username, password: password, preferredMechanisms: preferredMechanisms, phase: phaseListMechs}
}

// Start returns the LIST_MECHS request packet that begins the handshake.
func (n *Negotiator) Start(opaque uint32) wire.Packet {
	return wire.NewRequest(wire.OpSASLListMechs, opaque, 0, 0, nil, nil, nil)
}

// Advance feeds one response packet into the negotiator and returns the
// next request to send, or done=true when authentication has succeeded.
// status carries the response's status code (the header's VBucket field
// for SASL packets).
func (n *Negotiator) Advance(status uint16, value []byte, nextOpaque uint32) (req wire.Packet, done bool, err error) {
	switch n.phase {
	case phaseListMechs:
		if status != wire.StatusSuccess {
			return wire.Packet{}, false, errs.New(errs.AuthError)
		}
		mechs := strings.Fields(string(value))
		name, selErr := Select(mechs, n.preferredMechanisms)
		if selErr != nil {
			return wire.Packet{}, false, errs.Wrap(errs.AuthError, selErr)
		}
		m, buildErr := Build(name, n.username, n.password)
		if buildErr != nil {
			return wire.Packet{}, false, errs.Wrap(errs.AuthError, buildErr)
		}
		n.mechanism = m
		resp, _, stepErr := m.Step(nil)
		if stepErr != nil {
			return wire.Packet{}, false, errs.Wrap(errs.AuthError, stepErr)
		}
		n.phase = phaseAuth
		return wire.NewRequest(wire.OpSASLAuth, nextOpaque, 0, 0, nil, []byte(name), resp), false, nil

	case phaseAuth, phaseStepping:
		switch status {
		case wire.StatusSuccess:
			n.phase = phaseDone
			return wire.Packet{}, true, nil
		case wire.StatusAuthContinue:
			resp, _, stepErr := n.mechanism.Step(value)
			if stepErr != nil {
				return wire.Packet{}, false, errs.Wrap(errs.AuthError, stepErr)
			}
			n.phase = phaseStepping
			return wire.NewRequest(wire.OpSASLStep, nextOpaque, 0, 0, nil, []byte(n.mechanism.Name()), resp), false, nil
		default:
			return wire.Packet{}, false, errs.New(errs.AuthError)
		}

	default:
		return wire.Packet{}, true, nil
	}
}

// Done reports whether authentication has completed successfully; it
// stays false after a failed exchange.
func (n *Negotiator) Done() bool { return n.phase == phaseDone }

// MechanismName returns the mechanism selected after LIST_MECHS, or
// "negotiation" before selection has happened.
func (n *Negotiator) MechanismName() string {
	if n.mechanism == nil {
		return "negotiation"
	}
	return n.mechanism.Name()
}
