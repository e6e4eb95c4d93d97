package peer

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/go-socks/socks"
	"github.com/davecgh/go-spew/spew"
	"github.com/lightningnetwork/lnd/clock"
	"github.com/pkg/errors"
	"github.com/spvd/spvd/infrastructure/logger"
	"github.com/spvd/spvd/merkle"
	"github.com/spvd/spvd/netadapter"
	"github.com/spvd/spvd/util/random"
	"github.com/spvd/spvd/wire"
)

const (
	// DefaultHandshakeTimeout is the time a session may spend between
	// receiving its first byte and completing the handshake.
	DefaultHandshakeTimeout = 20 * time.Second

	// inboxSize is the number of reads and timer events that may wait for
	// the event loop before the transport's reader blocks.
	inboxSize = 50
)

// ErrSessionClosed is returned when writing to a closed session.
var ErrSessionClosed = errors.New("session is closed")

// sessionCount is the total number of sessions created since startup and is
// used to assign an id to a session.
var sessionCount int32

// Config is the struct to hold configuration options useful to Session.
type Config struct {
	// Net is the network whose magic frames the session's traffic.
	Net wire.BitcoinNet

	// Services specifies which services to advertise as supported by the
	// local peer.
	Services wire.ServiceFlag

	// ProtocolVersion is the protocol version to advertise. This field
	// can be omitted in which case wire.ProtocolVersion will be used.
	ProtocolVersion int32

	// UserAgentName specifies the user agent name to advertise. It is
	// highly recommended to specify this value.
	UserAgentName string

	// UserAgentVersion specifies the user agent version to advertise. It
	// is highly recommended to specify this value and that it follows the
	// form "major.minor.revision" e.g. "2.6.41".
	UserAgentVersion string

	// UserAgentComments specify the user agent comments to advertise. These
	// values must not contain the illegal characters specified in BIP 14:
	// '/', ':', '(', ')'.
	UserAgentComments []string

	// StartHeight returns the height of the best known block. It is
	// consulted every time a version message is sent. A nil StartHeight
	// advertises height 0.
	StartHeight func() int32

	// DisableRelayTx specifies if the remote peer should be informed to
	// not send inv messages for transactions.
	DisableRelayTx bool

	// TolerateUnknownCommands makes the session skip frames carrying
	// commands it does not know instead of closing.
	TolerateUnknownCommands bool

	// HandshakeTimeout bounds the handshake. DefaultHandshakeTimeout is
	// used when it is zero.
	HandshakeTimeout time.Duration

	// Clock drives the handshake timeout and ping statistics. The system
	// clock is used when it is nil.
	Clock clock.Clock

	// AlertPubKey is the key alert signatures are checked against.
	AlertPubKey *btcec.PublicKey

	// Metrics receives the session's traffic statistics. It may be nil.
	Metrics *Metrics

	// Listeners houses callback functions to be invoked on receiving peer
	// messages.
	Listeners MessageListeners
}

type inboxItem interface{}

type dataItem struct {
	data []byte
}

type timeoutItem struct{}

type transportClosedItem struct {
	err error
}

// Session drives the protocol over a single connection: the version
// handshake, decoding of the byte stream and dispatch of every received
// message to the configured listeners.
//
// All decoding and dispatch happens on one event loop goroutine, so
// listeners of one session never run concurrently with each other. Push
// methods may be called from any goroutine.
type Session struct {
	// The following variables must only be used atomically.
	bytesReceived uint64
	bytesSent     uint64

	// These fields are set at creation time and never modified, so they are
	// safe to read from concurrently without a mutex.
	id    int32
	cfg   Config
	role  Role
	codec *wire.FrameCodec

	// reassembler and readSize are only used by the event loop. readSize
	// is the framed size of the message being stepped through the state
	// machine.
	reassembler *netadapter.Reassembler
	readSize    int

	stateMtx    sync.Mutex // protects the fields below
	fsm         Handshake
	transport   netadapter.Transport
	addr        string
	closeReason CloseReason
	closeErr    error
	timerCancel chan struct{}

	flagsMtx      sync.Mutex // protects the peer flags below
	na            *wire.NetAddress
	remoteVersion *wire.MsgVersion
	relayToPeer   bool
	filter        *wire.MsgFilterLoad
	downloadPeer  bool

	prevGetBlocksMtx   sync.Mutex
	prevGetBlocksBegin *chainHashPair
	prevGetHdrsMtx     sync.Mutex
	prevGetHdrsBegin   *chainHashPair

	// These fields keep track of statistics for the peer and are protected
	// by the statsMtx mutex.
	statsMtx       sync.RWMutex
	timeConnected  time.Time
	timeOffset     int64
	lastPingNonce  uint64    // Set to nonce if we have a pending ping.
	lastPingTime   time.Time // Time we sent last ping.
	lastPingMicros int64     // Time for last ping to return.

	inbox     chan inboxItem
	ready     chan struct{}
	quit      chan struct{}
	closeOnce sync.Once
}

// newSessionBase returns a new base session for role. This is used by the
// NewInboundSession and NewOutboundSession functions to perform base setup
// needed by both types of sessions.
func newSessionBase(origCfg *Config, role Role) *Session {
	cfg := *origCfg // Copy to avoid mutating caller.
	if cfg.ProtocolVersion == 0 {
		cfg.ProtocolVersion = wire.ProtocolVersion
	}
	if cfg.HandshakeTimeout == 0 {
		cfg.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.NewDefaultClock()
	}

	codec := wire.NewFrameCodec(cfg.Net)
	return &Session{
		id:          atomic.AddInt32(&sessionCount, 1),
		cfg:         cfg,
		role:        role,
		codec:       codec,
		reassembler: netadapter.NewReassembler(codec),
		fsm:         NewHandshake(role),
		inbox:       make(chan inboxItem, inboxSize),
		ready:       make(chan struct{}),
		quit:        make(chan struct{}),
	}
}

// NewInboundSession returns a new inbound session. Use AssociateTransport or
// AssociateConnection to start it.
func NewInboundSession(cfg *Config) *Session {
	return newSessionBase(cfg, RoleInbound)
}

// NewOutboundSession returns a new outbound session to addr, a host:port
// string. Use AssociateTransport or AssociateConnection to start it.
func NewOutboundSession(cfg *Config, addr string) (*Session, error) {
	s := newSessionBase(cfg, RoleOutbound)
	s.addr = addr

	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	ip := net.ParseIP(host)
	if ip == nil {
		ip = net.IPv4zero
	}
	s.na = wire.NewNetAddressIPPort(ip, uint16(port), 0)
	return s, nil
}

// newNetAddress attempts to extract the IP address and port from the passed
// net.Addr interface and create a NetAddress structure using that
// information.
func newNetAddress(addr net.Addr, services wire.ServiceFlag) (*wire.NetAddress, error) {
	// addr will be a net.TCPAddr when not using a proxy.
	if tcpAddr, ok := addr.(*net.TCPAddr); ok {
		return wire.NewNetAddress(tcpAddr, services), nil
	}

	// addr will be a socks.ProxiedAddr when using a proxy.
	if proxiedAddr, ok := addr.(*socks.ProxiedAddr); ok {
		ip := net.ParseIP(proxiedAddr.Host)
		if ip == nil {
			ip = net.IPv4zero
		}
		port := uint16(proxiedAddr.Port)
		return wire.NewNetAddressIPPort(ip, port, services), nil
	}

	// For the most part, addr should be one of the two above cases, but
	// to be safe, fall back to trying to parse the information from the
	// address string as a last resort.
	host, portStr, err := net.SplitHostPort(addr.String())
	if err != nil {
		return nil, errors.WithStack(err)
	}
	ip := net.ParseIP(host)
	if ip == nil {
		ip = net.IPv4zero
	}
	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return wire.NewNetAddressIPPort(ip, uint16(port), services), nil
}

// AssociateTransport starts the session over transport. The owner of the
// transport must feed it with ReceiveData and TransportClosed. Outbound
// sessions send their version message right away.
func (s *Session) AssociateTransport(transport netadapter.Transport) error {
	s.stateMtx.Lock()
	if s.fsm.State == StateClosed {
		s.stateMtx.Unlock()
		return ErrSessionClosed
	}
	if s.transport != nil {
		s.stateMtx.Unlock()
		return errors.Errorf("session %d already has a transport", s.id)
	}
	s.transport = transport
	if s.role == RoleInbound || s.addr == "" {
		s.addr = transport.RemoteAddr().String()
	}
	s.stateMtx.Unlock()

	if s.role == RoleInbound {
		// Set up a NetAddress for the peer. Outbound sessions set this up
		// at creation time and there is no point recomputing.
		na, err := newNetAddress(transport.RemoteAddr(), 0)
		if err != nil {
			s.closeWith(CloseTransport, err)
			return errors.Wrap(err, "cannot create remote net address")
		}
		s.flagsMtx.Lock()
		s.na = na
		s.flagsMtx.Unlock()
	}

	s.statsMtx.Lock()
	s.timeConnected = s.cfg.Clock.Now()
	s.statsMtx.Unlock()

	s.cfg.Metrics.opened(s.role)
	log.Debugf("Starting session %s", s)

	spawn("Session.inHandler", s.inHandler)
	s.enqueue(EventStart{})
	return nil
}

// AssociateConnection starts the session over conn and starts reading from
// it.
func (s *Session) AssociateConnection(conn *netadapter.Conn) error {
	err := s.AssociateTransport(conn)
	if err != nil {
		return err
	}
	conn.Start(s.ReceiveData, s.TransportClosed)
	return nil
}

// ReceiveData feeds bytes read from the transport to the session. It blocks
// while the event loop is backed up and returns immediately once the
// session is closed.
func (s *Session) ReceiveData(data []byte) {
	buf := make([]byte, len(data))
	copy(buf, data)
	s.enqueue(dataItem{data: buf})
}

// TransportClosed tells the session its transport stopped delivering data.
func (s *Session) TransportClosed(err error) {
	s.enqueue(transportClosedItem{err: err})
}

func (s *Session) enqueue(item inboxItem) {
	select {
	case s.inbox <- item:
	case <-s.quit:
	}
}

// inHandler is the session's event loop. It must be run as a goroutine.
func (s *Session) inHandler() {
	for {
		select {
		case item := <-s.inbox:
			s.handleItem(item)
		case <-s.quit:
			log.Tracef("Session event loop done for %s", s)
			return
		}
	}
}

func (s *Session) handleItem(item inboxItem) {
	switch item := item.(type) {
	case EventStart:
		s.step(item)

	case dataItem:
		s.handleData(item.data)

	case timeoutItem:
		s.step(EventTimeout{})

	case transportClosedItem:
		if item.err != nil {
			log.Debugf("Transport of %s failed: %s", s, item.err)
		}
		s.step(EventClose{Reason: CloseTransport, Err: item.err})
	}
}

func (s *Session) handleData(data []byte) {
	atomic.AddUint64(&s.bytesReceived, uint64(len(data)))
	s.step(EventBytes{})

	frames, err := s.reassembler.Feed(data)
	for _, frame := range frames {
		if s.isClosed() {
			return
		}
		s.handleFrame(frame)
	}
	if err != nil && !s.isClosed() {
		log.Errorf("Corrupt stream from %s: %s", s, err)
		s.step(EventClose{Reason: CloseProtocolViolation, Err: err})
	}
}

func (s *Session) handleFrame(frame wire.Frame) {
	msg, err := wire.DecodePayload(frame.Command, frame.Payload)
	if err != nil {
		if s.cfg.TolerateUnknownCommands && wire.IsKind(err, wire.ErrUnknownCommand) {
			log.Debugf("Ignoring unknown command [%s] from %s",
				sanitizeString(frame.Command, wire.CommandSize), s)
			return
		}
		log.Errorf("Can't read message from %s: %s", s, err)
		s.step(EventClose{Reason: CloseProtocolViolation, Err: err})
		return
	}

	s.readSize = wire.MessageHeaderSize + len(frame.Payload)
	s.logMessage("Received", "from", msg)
	s.cfg.Metrics.received(msg.Command(), s.readSize)
	s.step(EventMessage{Msg: msg})
}

// step feeds ev to the handshake state machine and performs the resulting
// effects. Only the event loop steps the machine, except for closing, whose
// effects are safe from any goroutine.
func (s *Session) step(ev Event) {
	s.stateMtx.Lock()
	next, effects := s.fsm.Transition(ev)
	s.fsm = next
	s.stateMtx.Unlock()

	for _, effect := range effects {
		s.apply(effect)
	}
}

func (s *Session) apply(effect Effect) {
	switch effect := effect.(type) {
	case EffectSendVersion:
		err := s.PushVersionMsg()
		if err != nil {
			log.Errorf("Can't send version message to %s: %s", s, err)
			s.closeWith(CloseTransport, err)
		}

	case EffectSendVerAck:
		// Write failures close the session by themselves.
		_ = s.PushVerAckMsg()

	case EffectArmTimeout:
		s.armHandshakeTimer()

	case EffectCancelTimeout:
		s.cancelHandshakeTimer()

	case EffectReady:
		log.Infof("Handshake with %s complete", s)
		close(s.ready)
		if s.cfg.Listeners.OnReady != nil {
			s.cfg.Listeners.OnReady(s)
		}

	case EffectDispatch:
		if s.isClosed() {
			return
		}
		if s.cfg.Listeners.OnRead != nil {
			s.cfg.Listeners.OnRead(s, s.readSize, effect.Msg)
		}
		s.dispatch(effect.Msg)

	case EffectDrop:
		log.Debugf("Dropping %s from %s: %s", effect.Msg.Command(), s,
			effect.Reason)

	case EffectClose:
		s.finishClose(effect.Reason, effect.Err)
	}
}

func (s *Session) armHandshakeTimer() {
	cancel := make(chan struct{})
	s.stateMtx.Lock()
	s.timerCancel = cancel
	s.stateMtx.Unlock()

	tick := s.cfg.Clock.TickAfter(s.cfg.HandshakeTimeout)
	spawn("Session.handshakeTimer", func() {
		select {
		case <-tick:
			log.Debugf("Handshake with %s timed out after %s", s,
				s.cfg.HandshakeTimeout)
			s.enqueue(timeoutItem{})
		case <-cancel:
		case <-s.quit:
		}
	})
}

func (s *Session) cancelHandshakeTimer() {
	s.stateMtx.Lock()
	cancel := s.timerCancel
	s.timerCancel = nil
	s.stateMtx.Unlock()

	if cancel != nil {
		close(cancel)
	}
}

// dispatch hands msg to its listener after the session's own processing.
func (s *Session) dispatch(msg wire.Message) {
	listeners := &s.cfg.Listeners
	switch msg := msg.(type) {
	case *wire.MsgVersion:
		s.handleRemoteVersionMsg(msg)
		if listeners.OnVersion != nil {
			listeners.OnVersion(s, msg)
		}

	case *wire.MsgVerAck:
		if listeners.OnVerAck != nil {
			listeners.OnVerAck(s, msg)
		}

	case *wire.MsgInv:
		if listeners.OnInv != nil {
			listeners.OnInv(s, msg)
		}

	case *wire.MsgGetData:
		if listeners.OnGetData != nil {
			listeners.OnGetData(s, msg)
		}

	case *wire.MsgNotFound:
		if listeners.OnNotFound != nil {
			listeners.OnNotFound(s, msg)
		}

	case *wire.MsgAddr:
		if listeners.OnAddr != nil {
			listeners.OnAddr(s, msg)
		}

	case *wire.MsgGetAddr:
		if listeners.OnGetAddr != nil {
			listeners.OnGetAddr(s, msg)
		}

	case *wire.MsgGetBlocks:
		if listeners.OnGetBlocks != nil {
			listeners.OnGetBlocks(s, msg)
		}

	case *wire.MsgGetHeaders:
		if listeners.OnGetHeaders != nil {
			listeners.OnGetHeaders(s, msg)
		}

	case *wire.MsgHeaders:
		if listeners.OnHeaders != nil {
			listeners.OnHeaders(s, msg)
		}

	case *wire.MsgTx:
		if listeners.OnTx != nil {
			listeners.OnTx(s, msg)
		}

	case *wire.MsgBlock:
		if listeners.OnBlock != nil {
			listeners.OnBlock(s, msg)
		}

	case *wire.MsgMerkleBlock:
		s.handleMerkleBlockMsg(msg)

	case *wire.MsgPing:
		s.handlePingMsg(msg)
		if listeners.OnPing != nil {
			listeners.OnPing(s, msg)
		}

	case *wire.MsgPong:
		s.handlePongMsg(msg)
		if listeners.OnPong != nil {
			listeners.OnPong(s, msg)
		}

	case *wire.MsgFilterLoad:
		s.flagsMtx.Lock()
		s.filter = msg
		s.relayToPeer = true
		s.flagsMtx.Unlock()
		if listeners.OnFilterLoad != nil {
			listeners.OnFilterLoad(s, msg)
		}

	case *wire.MsgFilterAdd:
		if listeners.OnFilterAdd != nil {
			listeners.OnFilterAdd(s, msg)
		}

	case *wire.MsgFilterClear:
		s.flagsMtx.Lock()
		s.filter = nil
		s.relayToPeer = true
		s.flagsMtx.Unlock()
		if listeners.OnFilterClear != nil {
			listeners.OnFilterClear(s, msg)
		}

	case *wire.MsgMemPool:
		if listeners.OnMemPool != nil {
			listeners.OnMemPool(s, msg)
		}

	case *wire.MsgReject:
		if listeners.OnReject != nil {
			listeners.OnReject(s, msg)
		}

	case *wire.MsgAlert:
		verified := s.cfg.AlertPubKey != nil && msg.Verify(s.cfg.AlertPubKey)
		if listeners.OnAlert != nil {
			listeners.OnAlert(s, msg, verified)
		}

	default:
		log.Debugf("Received unhandled message of type %s "+
			"from %s", msg.Command(), s)
	}
}

// handleRemoteVersionMsg records what the peer advertised in its version
// message.
func (s *Session) handleRemoteVersionMsg(msg *wire.MsgVersion) {
	s.flagsMtx.Lock()
	s.remoteVersion = msg
	s.relayToPeer = msg.Relay
	if s.na != nil {
		s.na.Services = msg.Services
	}
	s.flagsMtx.Unlock()

	s.statsMtx.Lock()
	s.timeOffset = msg.Timestamp.Unix() - s.cfg.Clock.Now().Unix()
	s.statsMtx.Unlock()

	log.Debugf("Peer %s advertises protocol version %d, start height %d",
		s, msg.ProtocolVersion, msg.StartHeight)
}

// handleMerkleBlockMsg validates the proof carried by msg. An invalid proof
// is reported to the application and does not affect the session.
func (s *Session) handleMerkleBlockMsg(msg *wire.MsgMerkleBlock) {
	matched, err := merkle.ValidateMerkleBlock(msg)
	if err != nil {
		log.Warnf("Rejecting merkleblock %s from %s: %s",
			msg.Header.BlockHash(), s, err)
		s.cfg.Metrics.rejectedProof()
		if s.cfg.Listeners.OnMerkleBlockRejected != nil {
			s.cfg.Listeners.OnMerkleBlockRejected(s, msg, err)
		}
		return
	}
	if s.cfg.Listeners.OnMerkleBlock != nil {
		s.cfg.Listeners.OnMerkleBlock(s, msg, matched)
	}
}

// handlePingMsg is invoked when a session receives a ping message. It replies
// with a pong message carrying the same nonce.
func (s *Session) handlePingMsg(msg *wire.MsgPing) {
	// Write failures close the session by themselves.
	_ = s.PushPongMsg(msg.Nonce)
}

// handlePongMsg is invoked when a session receives a pong message. It
// updates the ping statistics when the pong answers the last ping sent.
// Any preceding and overlapping pings are ignored.
func (s *Session) handlePongMsg(msg *wire.MsgPong) {
	s.statsMtx.Lock()
	defer s.statsMtx.Unlock()
	if s.lastPingNonce != 0 && msg.Nonce == s.lastPingNonce {
		s.lastPingMicros = s.cfg.Clock.Now().Sub(s.lastPingTime).Microseconds()
		s.lastPingNonce = 0
	}
}

// logMessage logs traffic the way it is logged for both directions: a one
// line summary and, at the trace level, a dump of the message.
func (s *Session) logMessage(verb, preposition string, msg wire.Message) {
	// Use closures to log expensive operations so they are only run when
	// the logging level requires it.
	log.Writef(messageLogLevel(msg), "%s", logger.NewLogClosure(func() string {
		summary := messageSummary(msg)
		if len(summary) > 0 {
			summary = " (" + summary + ")"
		}
		return fmt.Sprintf("%s %s%s %s %s", verb, msg.Command(), summary,
			preposition, s)
	}))
	log.Tracef("%s", logger.NewLogClosure(func() string {
		return spew.Sdump(msg)
	}))
}

// writeMessage frames msg and writes it to the transport. A failed write
// closes the session.
func (s *Session) writeMessage(msg wire.Message) error {
	if s.isClosed() {
		return ErrSessionClosed
	}
	s.stateMtx.Lock()
	transport := s.transport
	s.stateMtx.Unlock()
	if transport == nil {
		return errors.Errorf("session %d has no transport", s.id)
	}

	framed, err := wire.EncodeMessage(msg, s.cfg.Net)
	if err != nil {
		return err
	}

	if ping, ok := msg.(*wire.MsgPing); ok {
		s.statsMtx.Lock()
		s.lastPingNonce = ping.Nonce
		s.lastPingTime = s.cfg.Clock.Now()
		s.statsMtx.Unlock()
	}

	s.logMessage("Sending", "to", msg)
	err = transport.Write(framed)
	if s.cfg.Listeners.OnWrite != nil {
		s.cfg.Listeners.OnWrite(s, len(framed), msg, err)
	}
	if err != nil {
		log.Errorf("Failed to send message to %s: %s", s, err)
		s.closeWith(CloseTransport, err)
		return err
	}

	atomic.AddUint64(&s.bytesSent, uint64(len(framed)))
	s.cfg.Metrics.sent(msg.Command(), len(framed))
	return nil
}

// localVersionMsg creates a version message that can be used to send to the
// remote peer.
func (s *Session) localVersionMsg() (*wire.MsgVersion, error) {
	theirNA := s.NA()
	if theirNA == nil {
		theirNA = wire.NewNetAddressIPPort(net.IPv4zero, 0, 0)
	}

	// The address of the local peer only carries its services. Inbound
	// connections do not prove that the local peer accepts any.
	ourNA := wire.NewNetAddressIPPort(net.IPv4zero, 0, s.cfg.Services)

	nonce, err := random.Uint64()
	if err != nil {
		return nil, err
	}

	var startHeight int32
	if s.cfg.StartHeight != nil {
		startHeight = s.cfg.StartHeight()
	}

	msg := wire.NewMsgVersion(ourNA, theirNA, nonce, startHeight)
	msg.Timestamp = time.Unix(s.cfg.Clock.Now().Unix(), 0)
	if s.cfg.UserAgentName != "" {
		err := msg.AddUserAgent(s.cfg.UserAgentName, s.cfg.UserAgentVersion,
			s.cfg.UserAgentComments...)
		if err != nil {
			return nil, err
		}
	}

	// Advertise the services flag
	msg.Services = s.cfg.Services

	// Advertise our max supported protocol version.
	msg.ProtocolVersion = s.cfg.ProtocolVersion

	// Advertise if inv messages for transactions are desired.
	msg.Relay = !s.cfg.DisableRelayTx

	return msg, nil
}


// Close closes the session and its transport. It is safe to call from any
// goroutine, including from within a listener of the session. Calling it on
// a closed session has no effect.
func (s *Session) Close() {
	s.closeWith(CloseRequested, nil)
}

func (s *Session) closeWith(reason CloseReason, err error) {
	s.step(EventClose{Reason: reason, Err: err})
}

func (s *Session) finishClose(reason CloseReason, err error) {
	s.closeOnce.Do(func() {
		s.stateMtx.Lock()
		s.closeReason = reason
		s.closeErr = err
		transport := s.transport
		s.stateMtx.Unlock()

		close(s.quit)
		if transport != nil {
			if closeErr := transport.Close(); closeErr != nil {
				log.Debugf("Error closing transport of %s: %s", s, closeErr)
			}
			s.cfg.Metrics.closed(s.role, reason)
		}

		if reason.Intentional() {
			log.Debugf("Closed %s: %s", s, reason)
		} else {
			log.Infof("Disconnected %s: %s (%v)", s, reason, err)
		}

		if s.cfg.Listeners.OnClose != nil {
			s.cfg.Listeners.OnClose(s, reason, err)
		}
	})
}

func (s *Session) isClosed() bool {
	select {
	case <-s.quit:
		return true
	default:
		return false
	}
}

// WaitForHandshake blocks until the handshake completes, the session closes
// or ctx is done.
func (s *Session) WaitForHandshake(ctx context.Context) error {
	select {
	case <-s.ready:
		return nil
	case <-s.quit:
		if err := s.Err(); err != nil {
			return err
		}
		return ErrSessionClosed
	case <-ctx.Done():
		return errors.WithStack(ctx.Err())
	}
}

// WaitForDisconnect waits until the session has closed.
func (s *Session) WaitForDisconnect() {
	<-s.quit
}

// Done returns a channel that is closed when the session closes.
func (s *Session) Done() <-chan struct{} {
	return s.quit
}

// Err returns the error the session closed with, if any.
func (s *Session) Err() error {
	s.stateMtx.Lock()
	defer s.stateMtx.Unlock()
	return s.closeErr
}

// CloseReason returns why the session closed. ok is false while it is open.
func (s *Session) CloseReason() (reason CloseReason, ok bool) {
	if !s.isClosed() {
		return 0, false
	}
	s.stateMtx.Lock()
	defer s.stateMtx.Unlock()
	return s.closeReason, true
}

// String returns the session's address and directionality as a
// human-readable string.
//
// This function is safe for concurrent access.
func (s *Session) String() string {
	return fmt.Sprintf("%s (%s)", s.Addr(), s.role)
}
