package peer

import (
	"fmt"

	"github.com/spvd/spvd/wire"
)

// State is the handshake state of a session.
type State uint8

const (
	// StateConnecting is the state of a session that has no transport
	// yet.
	StateConnecting State = iota

	// StateAwaitingHandshake is the state of a session whose version and
	// verack exchange has not completed.
	StateAwaitingHandshake

	// StateReady is the state of a session that completed the handshake.
	// Every message is dispatched.
	StateReady

	// StateClosed is terminal.
	StateClosed
)

var stateStrings = map[State]string{
	StateConnecting:        "connecting",
	StateAwaitingHandshake: "awaiting handshake",
	StateReady:             "ready",
	StateClosed:            "closed",
}

func (s State) String() string {
	if str, ok := stateStrings[s]; ok {
		return str
	}
	return fmt.Sprintf("unknown State (%d)", uint8(s))
}

// Role tells which side initiated the connection.
type Role uint8

const (
	// RoleInbound sessions were accepted from a remote peer.
	RoleInbound Role = iota

	// RoleOutbound sessions were initiated locally.
	RoleOutbound
)

func (r Role) String() string {
	if r == RoleInbound {
		return "inbound"
	}
	return "outbound"
}

// CloseReason tells why a session closed.
type CloseReason uint8

const (
	// CloseRequested means the local side closed the session.
	CloseRequested CloseReason = iota

	// CloseHandshakeTimeout means the handshake did not complete in
	// time.
	CloseHandshakeTimeout

	// CloseProtocolViolation means the peer sent data that cannot be
	// part of a valid stream.
	CloseProtocolViolation

	// CloseTransport means the transport failed or the remote side went
	// away.
	CloseTransport
)

var closeReasonStrings = map[CloseReason]string{
	CloseRequested:         "requested",
	CloseHandshakeTimeout:  "handshake timeout",
	CloseProtocolViolation: "protocol violation",
	CloseTransport:         "transport closed",
}

func (r CloseReason) String() string {
	if str, ok := closeReasonStrings[r]; ok {
		return str
	}
	return fmt.Sprintf("unknown CloseReason (%d)", uint8(r))
}

// Intentional reports whether the local side chose to close the session, as
// opposed to the peer misbehaving or the connection failing.
func (r CloseReason) Intentional() bool {
	return r == CloseRequested || r == CloseHandshakeTimeout
}

// Event is an input to the handshake state machine. The set of events is
// closed.
type Event interface {
	isEvent()
}

// EventStart is fed once the session has a transport.
type EventStart struct{}

// EventBytes is fed whenever bytes arrive from the transport.
type EventBytes struct{}

// EventMessage is fed for every decoded message.
type EventMessage struct {
	Msg wire.Message
}

// EventTimeout is fed when the handshake timer fires.
type EventTimeout struct{}

// EventClose is fed when the session must close.
type EventClose struct {
	Reason CloseReason
	Err    error
}

func (EventStart) isEvent()   {}
func (EventBytes) isEvent()   {}
func (EventMessage) isEvent() {}
func (EventTimeout) isEvent() {}
func (EventClose) isEvent()   {}

// Effect is an action the session performs after a transition. The set of
// effects is closed.
type Effect interface {
	isEffect()
}

// EffectSendVersion sends the local version message.
type EffectSendVersion struct{}

// EffectSendVerAck sends a verack message.
type EffectSendVerAck struct{}

// EffectArmTimeout starts the handshake timer.
type EffectArmTimeout struct{}

// EffectCancelTimeout stops the handshake timer.
type EffectCancelTimeout struct{}

// EffectReady announces that the handshake completed.
type EffectReady struct{}

// EffectDispatch hands a message to the application.
type EffectDispatch struct {
	Msg wire.Message
}

// EffectDrop discards a message that is not acceptable in the current state.
type EffectDrop struct {
	Msg    wire.Message
	Reason string
}

// EffectClose releases the transport and notifies the application.
type EffectClose struct {
	Reason CloseReason
	Err    error
}

func (EffectSendVersion) isEffect()   {}
func (EffectSendVerAck) isEffect()    {}
func (EffectArmTimeout) isEffect()    {}
func (EffectCancelTimeout) isEffect() {}
func (EffectReady) isEffect()         {}
func (EffectDispatch) isEffect()      {}
func (EffectDrop) isEffect()          {}
func (EffectClose) isEffect()         {}

// Handshake is the handshake state machine of one session. It is a plain
// value: Transition never mutates its receiver and performs no I/O.
type Handshake struct {
	Role  Role
	State State

	TimerArmed      bool
	VersionSent     bool
	VersionReceived bool
	VerAckSent      bool
	VerAckReceived  bool
}

// NewHandshake returns the initial state machine for role.
func NewHandshake(role Role) Handshake {
	return Handshake{Role: role, State: StateConnecting}
}

// Transition returns the state following ev and the effects the session must
// perform, in order.
func (h Handshake) Transition(ev Event) (Handshake, []Effect) {
	if h.State == StateClosed {
		return h, nil
	}

	switch ev := ev.(type) {
	case EventStart:
		if h.State != StateConnecting {
			return h, nil
		}
		h.State = StateAwaitingHandshake
		if h.Role == RoleOutbound {
			h.VersionSent = true
			return h, []Effect{EffectSendVersion{}}
		}
		return h, nil

	case EventBytes:
		if h.TimerArmed || h.State == StateReady {
			return h, nil
		}
		h.TimerArmed = true
		return h, []Effect{EffectArmTimeout{}}

	case EventMessage:
		if h.State == StateConnecting {
			return h, []Effect{EffectDrop{Msg: ev.Msg, Reason: "session not started"}}
		}
		switch msg := ev.Msg.(type) {
		case *wire.MsgVersion:
			return h.onVersion(msg)
		case *wire.MsgVerAck:
			return h.onVerAck(msg)
		}
		if h.State != StateReady {
			return h, []Effect{EffectDrop{Msg: ev.Msg, Reason: "received before handshake completed"}}
		}
		return h, []Effect{EffectDispatch{Msg: ev.Msg}}

	case EventTimeout:
		if h.State == StateReady {
			return h, nil
		}
		h.State = StateClosed
		return h, []Effect{EffectClose{
			Reason: CloseHandshakeTimeout,
			Err:    handshakeTimeoutError(),
		}}

	case EventClose:
		h.State = StateClosed
		return h, []Effect{EffectCancelTimeout{}, EffectClose{Reason: ev.Reason, Err: ev.Err}}
	}

	return h, nil
}

func (h Handshake) onVersion(msg *wire.MsgVersion) (Handshake, []Effect) {
	if h.VersionReceived {
		return h, []Effect{EffectDrop{Msg: msg, Reason: "duplicate version message"}}
	}
	h.VersionReceived = true
	effects := []Effect{EffectDispatch{Msg: msg}}

	if h.Role == RoleInbound {
		h.VersionSent = true
		return h, append(effects, EffectSendVersion{})
	}

	h.VerAckSent = true
	effects = append(effects, EffectSendVerAck{})
	if h.VerAckReceived {
		h.State = StateReady
		effects = append(effects, EffectCancelTimeout{}, EffectReady{})
	}
	return h, effects
}

func (h Handshake) onVerAck(msg *wire.MsgVerAck) (Handshake, []Effect) {
	if h.VerAckReceived {
		return h, []Effect{EffectDrop{Msg: msg, Reason: "duplicate verack message"}}
	}

	if h.Role == RoleInbound {
		if !h.VersionReceived {
			return h, []Effect{EffectDrop{Msg: msg, Reason: "verack received before version"}}
		}
		h.VerAckReceived = true
		h.VerAckSent = true
		h.State = StateReady
		return h, []Effect{
			EffectSendVerAck{},
			EffectCancelTimeout{},
			EffectReady{},
			EffectDispatch{Msg: msg},
		}
	}

	h.VerAckReceived = true
	if !h.VerAckSent {
		// Our verack goes out once the peer's version arrives.
		return h, []Effect{EffectDispatch{Msg: msg}}
	}
	h.State = StateReady
	return h, []Effect{EffectCancelTimeout{}, EffectReady{}, EffectDispatch{Msg: msg}}
}

func handshakeTimeoutError() error {
	return &wire.MessageError{
		Func:        "peer.Handshake",
		Kind:        wire.ErrHandshakeTimeout,
		Description: "handshake did not complete in time",
	}
}
