package peer

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	btcwire "github.com/btcsuite/btcd/wire"
	"github.com/davecgh/go-spew/spew"
	"github.com/lightningnetwork/lnd/clock"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/spvd/spvd/merkle"
	"github.com/spvd/spvd/netadapter"
	"github.com/spvd/spvd/wire"
	"github.com/stretchr/testify/require"
)

const (
	testNet     = wire.SimNet
	testTimeout = 5 * time.Second
)

// mockTransport records the messages a session writes and lets the test play
// the remote side by feeding the session directly.
type mockTransport struct {
	codec  *wire.FrameCodec
	remote net.Addr

	mtx       sync.Mutex
	pending   []byte
	failWrite error

	written   chan wire.Message
	closed    chan struct{}
	closeOnce sync.Once
}

func newMockTransport() *mockTransport {
	return &mockTransport{
		codec:   wire.NewFrameCodec(testNet),
		remote:  &net.TCPAddr{IP: net.ParseIP("10.0.0.1"), Port: 18555},
		written: make(chan wire.Message, 100),
		closed:  make(chan struct{}),
	}
}

func (m *mockTransport) Write(data []byte) error {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	if m.failWrite != nil {
		return m.failWrite
	}
	select {
	case <-m.closed:
		return errors.New("transport closed")
	default:
	}

	m.pending = append(m.pending, data...)
	for {
		result := m.codec.Decode(m.pending)
		if result.Status != wire.FrameComplete {
			return nil
		}
		msg, err := wire.DecodePayload(result.Frame.Command, result.Frame.Payload)
		if err != nil {
			return err
		}
		m.written <- msg
		m.pending = m.pending[result.Consumed:]
	}
}

func (m *mockTransport) Close() error {
	m.closeOnce.Do(func() { close(m.closed) })
	return nil
}

func (m *mockTransport) LocalAddr() net.Addr {
	return &net.TCPAddr{IP: net.ParseIP("127.0.0.1"), Port: 18555}
}

func (m *mockTransport) RemoteAddr() net.Addr {
	return m.remote
}

// expect returns the next message written to the transport, which must carry
// command.
func (m *mockTransport) expect(t *testing.T, command string) wire.Message {
	t.Helper()
	select {
	case msg := <-m.written:
		require.Equal(t, command, msg.Command(), "unexpected message %s", spew.Sdump(msg))
		return msg
	case <-time.After(testTimeout):
		t.Fatalf("timed out waiting for %s", command)
	}
	return nil
}

// expectNothing checks that nothing is written within a short while.
func (m *mockTransport) expectNothing(t *testing.T) {
	t.Helper()
	select {
	case msg := <-m.written:
		t.Fatalf("unexpected message %s", msg.Command())
	case <-time.After(50 * time.Millisecond):
	}
}

func feed(t *testing.T, s *Session, msgs ...wire.Message) {
	t.Helper()
	for _, msg := range msgs {
		data, err := wire.EncodeMessage(msg, testNet)
		require.NoError(t, err)
		s.ReceiveData(data)
	}
}

func remoteVersion() *wire.MsgVersion {
	me := wire.NewNetAddressIPPort(net.ParseIP("10.0.0.1"), 18555, wire.SFNodeNetwork)
	you := wire.NewNetAddressIPPort(net.ParseIP("127.0.0.1"), 18555, 0)
	msg := wire.NewMsgVersion(me, you, 0xdeadbeef, 1234)
	msg.UserAgent = "/remote:1.0.0/"
	msg.Services = wire.SFNodeNetwork | wire.SFNodeBloom
	return msg
}

func testConfig() *Config {
	return &Config{
		Net:              testNet,
		Services:         wire.SFNodeBloom,
		UserAgentName:    "spvd-test",
		UserAgentVersion: "0.1.0",
	}
}

func waitClosed(t *testing.T, s *Session) {
	t.Helper()
	select {
	case <-s.Done():
	case <-time.After(testTimeout):
		t.Fatalf("session %s did not close", s)
	}
}

func waitReady(t *testing.T, s *Session) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()
	require.NoError(t, s.WaitForHandshake(ctx))
}

// startReadyInbound returns an inbound session that completed the handshake
// over a mock transport.
func startReadyInbound(t *testing.T, cfg *Config) (*Session, *mockTransport) {
	t.Helper()
	s := NewInboundSession(cfg)
	tr := newMockTransport()
	require.NoError(t, s.AssociateTransport(tr))

	feed(t, s, remoteVersion())
	tr.expect(t, wire.CmdVersion)
	feed(t, s, wire.NewMsgVerAck())
	tr.expect(t, wire.CmdVerAck)
	waitReady(t, s)
	return s, tr
}

func TestInboundHandshake(t *testing.T) {
	versions := make(chan *wire.MsgVersion, 1)
	readies := make(chan struct{}, 1)
	cfg := testConfig()
	cfg.StartHeight = func() int32 { return 99 }
	cfg.Listeners.OnVersion = func(s *Session, msg *wire.MsgVersion) {
		versions <- msg
	}
	cfg.Listeners.OnReady = func(s *Session) {
		readies <- struct{}{}
	}

	s := NewInboundSession(cfg)
	tr := newMockTransport()
	require.NoError(t, s.AssociateTransport(tr))
	require.True(t, s.Inbound())

	// The inbound side waits for the remote to speak first.
	tr.expectNothing(t)
	require.Equal(t, StateAwaitingHandshake, s.State())

	feed(t, s, remoteVersion())
	local := tr.expect(t, wire.CmdVersion).(*wire.MsgVersion)
	require.Equal(t, int32(99), local.StartHeight)
	require.Equal(t, wire.DefaultUserAgent+"spvd-test:0.1.0/", local.UserAgent)
	require.Equal(t, wire.SFNodeBloom, local.Services)
	require.Equal(t, wire.ProtocolVersion, local.ProtocolVersion)
	require.True(t, local.Relay)

	got := <-versions
	require.Equal(t, "/remote:1.0.0/", got.UserAgent)
	require.Equal(t, StateAwaitingHandshake, s.State())

	feed(t, s, wire.NewMsgVerAck())
	tr.expect(t, wire.CmdVerAck)
	waitReady(t, s)
	<-readies

	require.Equal(t, StateReady, s.State())
	require.Equal(t, "/remote:1.0.0/", s.RemoteVersion().UserAgent)
	require.True(t, s.NA().HasService(wire.SFNodeBloom))
	require.Equal(t, "10.0.0.1:18555", s.Addr())

	snap := s.StatsSnapshot()
	require.Equal(t, int32(1234), snap.StartingHeight)
	require.Equal(t, StateReady, snap.State)
	require.NotZero(t, snap.BytesRecv)
	require.NotZero(t, snap.BytesSent)

	s.Close()
	waitClosed(t, s)
}

func TestOutboundHandshake(t *testing.T) {
	s, err := NewOutboundSession(testConfig(), "10.0.0.1:18555")
	require.NoError(t, err)
	tr := newMockTransport()
	require.NoError(t, s.AssociateTransport(tr))

	// The outbound side speaks first.
	tr.expect(t, wire.CmdVersion)

	// A verack may precede the remote's version.
	feed(t, s, wire.NewMsgVerAck())
	tr.expectNothing(t)
	require.Equal(t, StateAwaitingHandshake, s.State())

	feed(t, s, remoteVersion())
	tr.expect(t, wire.CmdVerAck)
	waitReady(t, s)

	s.Close()
	waitClosed(t, s)
	reason, ok := s.CloseReason()
	require.True(t, ok)
	require.Equal(t, CloseRequested, reason)
}

func TestNewOutboundSessionBadAddress(t *testing.T) {
	_, err := NewOutboundSession(testConfig(), "missing-port")
	require.Error(t, err)

	_, err = NewOutboundSession(testConfig(), "10.0.0.1:99999")
	require.Error(t, err)
}

// addrConn reports a TCP remote address for an in-memory connection.
type addrConn struct {
	net.Conn
	remote net.Addr
}

func (c addrConn) RemoteAddr() net.Addr {
	return c.remote
}

func TestSessionsOverConnection(t *testing.T) {
	left, right := net.Pipe()
	remote := &net.TCPAddr{IP: net.ParseIP("10.0.0.2"), Port: 18444}

	inboundClosed := make(chan CloseReason, 1)
	inboundCfg := testConfig()
	inboundCfg.Listeners.OnClose = func(s *Session, reason CloseReason, err error) {
		inboundClosed <- reason
	}
	inbound := NewInboundSession(inboundCfg)
	outbound, err := NewOutboundSession(testConfig(), remote.String())
	require.NoError(t, err)

	require.NoError(t, inbound.AssociateConnection(
		netadapter.NewConn(addrConn{Conn: left, remote: remote}, true)))
	require.NoError(t, outbound.AssociateConnection(
		netadapter.NewConn(addrConn{Conn: right, remote: remote}, false)))

	waitReady(t, inbound)
	waitReady(t, outbound)

	nonce, err := outbound.PushPingMsg()
	require.NoError(t, err)
	require.NotZero(t, nonce)
	require.Eventually(t, func() bool {
		return outbound.LastPingNonce() == 0
	}, testTimeout, 10*time.Millisecond)

	outbound.Close()
	waitClosed(t, outbound)
	waitClosed(t, inbound)
	require.Equal(t, CloseTransport, <-inboundClosed)
}

func TestMessagesBeforeReadyAreDropped(t *testing.T) {
	pings := make(chan uint64, 10)
	reads := make(chan string, 10)
	cfg := testConfig()
	cfg.Listeners.OnPing = func(s *Session, msg *wire.MsgPing) {
		pings <- msg.Nonce
	}
	cfg.Listeners.OnRead = func(s *Session, bytesRead int, msg wire.Message) {
		reads <- msg.Command()
	}

	s := NewInboundSession(cfg)
	tr := newMockTransport()
	require.NoError(t, s.AssociateTransport(tr))

	feed(t, s, wire.NewMsgPing(1))
	tr.expectNothing(t)
	inv := wire.NewMsgInv()
	require.NoError(t, inv.AddInvVect(wire.NewInvVect(wire.InvTypeTx, &chainhash.Hash{1})))
	feed(t, s, inv)
	feed(t, s, wire.NewMsgVerAck())
	tr.expectNothing(t)

	feed(t, s, remoteVersion())
	tr.expect(t, wire.CmdVersion)
	feed(t, s, wire.NewMsgPing(2))
	tr.expectNothing(t)

	feed(t, s, wire.NewMsgVerAck())
	tr.expect(t, wire.CmdVerAck)

	feed(t, s, wire.NewMsgPing(3))
	pong := tr.expect(t, wire.CmdPong).(*wire.MsgPong)
	require.Equal(t, uint64(3), pong.Nonce)
	require.Equal(t, uint64(3), <-pings)
	require.Empty(t, pings)

	// Only the version, the verack and the last ping were dispatched.
	require.Equal(t, wire.CmdVersion, <-reads)
	require.Equal(t, wire.CmdVerAck, <-reads)
	require.Equal(t, wire.CmdPing, <-reads)
	require.Empty(t, reads)

	s.Close()
}

func TestSessionDispatch(t *testing.T) {
	invs := make(chan *wire.MsgInv, 1)
	filters := make(chan *wire.MsgFilterLoad, 1)
	cfg := testConfig()
	cfg.Listeners.OnInv = func(s *Session, msg *wire.MsgInv) {
		invs <- msg
	}
	cfg.Listeners.OnFilterLoad = func(s *Session, msg *wire.MsgFilterLoad) {
		filters <- msg
	}
	s, _ := startReadyInbound(t, cfg)
	defer s.Close()

	inv := wire.NewMsgInv()
	hash := chainhash.DoubleHashH([]byte("tx"))
	require.NoError(t, inv.AddInvVect(wire.NewInvVect(wire.InvTypeTx, &hash)))
	feed(t, s, inv)
	got := <-invs
	require.Len(t, got.InvList, 1)
	require.Equal(t, hash, got.InvList[0].Hash)

	filterLoad, err := wire.NewMsgFilterLoad([]byte{0xff}, 1, 0, btcwire.BloomUpdateNone)
	require.NoError(t, err)
	feed(t, s, filterLoad)
	<-filters
	require.NotNil(t, s.RemoteFilter())
	require.True(t, s.RelaysTransactions())

	feed(t, s, wire.NewMsgFilterClear())
	require.Eventually(t, func() bool {
		return s.RemoteFilter() == nil
	}, testTimeout, 10*time.Millisecond)
}

func testMerkleBlock(t *testing.T) (*wire.MsgMerkleBlock, []chainhash.Hash) {
	hashes := make([]chainhash.Hash, 5)
	for i := range hashes {
		hashes[i] = chainhash.DoubleHashH([]byte{byte(i)})
	}
	matches := []bool{false, true, false, false, true}
	tree, err := merkle.Build(uint32(len(hashes)), hashes, matches)
	require.NoError(t, err)
	root, _, err := tree.Extract()
	require.NoError(t, err)
	return tree.MsgMerkleBlock(&btcwire.BlockHeader{MerkleRoot: root}),
		[]chainhash.Hash{hashes[1], hashes[4]}
}

func TestMerkleBlockValidation(t *testing.T) {
	accepted := make(chan []chainhash.Hash, 1)
	rejected := make(chan error, 1)
	cfg := testConfig()
	cfg.Listeners.OnMerkleBlock = func(s *Session, msg *wire.MsgMerkleBlock, matched []chainhash.Hash) {
		accepted <- matched
	}
	cfg.Listeners.OnMerkleBlockRejected = func(s *Session, msg *wire.MsgMerkleBlock, err error) {
		rejected <- err
	}
	metrics, err := NewMetrics(prometheus.NewRegistry())
	require.NoError(t, err)
	cfg.Metrics = metrics

	s, _ := startReadyInbound(t, cfg)
	defer s.Close()

	msg, want := testMerkleBlock(t)
	feed(t, s, msg)
	require.Equal(t, want, <-accepted)

	bad, _ := testMerkleBlock(t)
	bad.Header.MerkleRoot = chainhash.DoubleHashH([]byte("other root"))
	feed(t, s, bad)
	err = <-rejected
	require.True(t, wire.IsKind(err, wire.ErrBadMerkleProof), "got %v", err)

	// A bad proof is the application's concern, not the session's.
	require.Equal(t, StateReady, s.State())
	require.Equal(t, 1.0, testutil.ToFloat64(metrics.rejectedProofs))
}

func TestCloseFromListener(t *testing.T) {
	closes := make(chan CloseReason, 10)
	cfg := testConfig()
	cfg.Listeners.OnPing = func(s *Session, msg *wire.MsgPing) {
		s.Close()
		s.Close()
	}
	cfg.Listeners.OnClose = func(s *Session, reason CloseReason, err error) {
		closes <- reason
		s.Close()
	}

	s, tr := startReadyInbound(t, cfg)
	feed(t, s, wire.NewMsgPing(5))
	waitClosed(t, s)
	<-tr.closed

	require.Equal(t, CloseRequested, <-closes)
	s.Close()
	require.Empty(t, closes)
	require.Equal(t, StateClosed, s.State())

	// Writes fail and reads are ignored once closed.
	require.ErrorIs(t, s.PushGetAddrMsg(), ErrSessionClosed)
	s.ReceiveData([]byte{1, 2, 3})
}

func TestHandshakeTimeout(t *testing.T) {
	start := time.Unix(1600000000, 0)
	tickSignal := make(chan time.Duration, 1)
	testClock := clock.NewTestClockWithTickSignal(start, tickSignal)

	closes := make(chan error, 1)
	cfg := testConfig()
	cfg.Clock = testClock
	cfg.Listeners.OnClose = func(s *Session, reason CloseReason, err error) {
		closes <- err
	}

	s := NewInboundSession(cfg)
	tr := newMockTransport()
	require.NoError(t, s.AssociateTransport(tr))

	// No timer runs before the first byte arrives.
	select {
	case <-tickSignal:
		t.Fatalf("timer armed before any data")
	case <-time.After(50 * time.Millisecond):
	}

	data, err := wire.EncodeMessage(remoteVersion(), testNet)
	require.NoError(t, err)
	s.ReceiveData(data[:10])

	select {
	case d := <-tickSignal:
		require.Equal(t, DefaultHandshakeTimeout, d)
	case <-time.After(testTimeout):
		t.Fatalf("timer not armed")
	}

	testClock.SetTime(start.Add(DefaultHandshakeTimeout - time.Second))
	select {
	case <-s.Done():
		t.Fatalf("closed before the timeout")
	case <-time.After(50 * time.Millisecond):
	}

	testClock.SetTime(start.Add(DefaultHandshakeTimeout))
	waitClosed(t, s)
	err = <-closes
	require.True(t, wire.IsKind(err, wire.ErrHandshakeTimeout))
	require.ErrorIs(t, s.WaitForHandshake(context.Background()), err)

	reason, ok := s.CloseReason()
	require.True(t, ok)
	require.Equal(t, CloseHandshakeTimeout, reason)
}

func TestHandshakeTimerCancelledWhenReady(t *testing.T) {
	start := time.Unix(1600000000, 0)
	tickSignal := make(chan time.Duration, 1)
	testClock := clock.NewTestClockWithTickSignal(start, tickSignal)

	cfg := testConfig()
	cfg.Clock = testClock
	cfg.HandshakeTimeout = time.Minute
	s, tr := startReadyInbound(t, cfg)
	defer s.Close()
	require.Equal(t, time.Minute, <-tickSignal)

	testClock.SetTime(start.Add(time.Hour))

	// A ping round trip proves any queued timeout was processed.
	feed(t, s, wire.NewMsgPing(9))
	tr.expect(t, wire.CmdPong)
	require.Equal(t, StateReady, s.State())
}

func TestCorruptStreamCloses(t *testing.T) {
	closes := make(chan error, 1)
	cfg := testConfig()
	cfg.Listeners.OnClose = func(s *Session, reason CloseReason, err error) {
		closes <- err
	}
	s := NewInboundSession(cfg)
	tr := newMockTransport()
	require.NoError(t, s.AssociateTransport(tr))

	data, err := wire.EncodeMessage(remoteVersion(), wire.MainNet)
	require.NoError(t, err)
	s.ReceiveData(data)

	waitClosed(t, s)
	<-tr.closed
	require.True(t, wire.IsKind(<-closes, wire.ErrInvalidMagic))
	reason, _ := s.CloseReason()
	require.Equal(t, CloseProtocolViolation, reason)
}

func TestUnknownCommand(t *testing.T) {
	unknown, err := wire.NewFrameCodec(testNet).Encode("bogus", []byte{1, 2, 3})
	require.NoError(t, err)

	t.Run("tolerated", func(t *testing.T) {
		cfg := testConfig()
		cfg.TolerateUnknownCommands = true
		s, tr := startReadyInbound(t, cfg)
		defer s.Close()

		s.ReceiveData(unknown)
		feed(t, s, wire.NewMsgPing(4))
		tr.expect(t, wire.CmdPong)
		require.Equal(t, StateReady, s.State())
	})

	t.Run("fatal", func(t *testing.T) {
		s, _ := startReadyInbound(t, testConfig())
		s.ReceiveData(unknown)
		waitClosed(t, s)
		reason, _ := s.CloseReason()
		require.Equal(t, CloseProtocolViolation, reason)
		require.True(t, wire.IsKind(s.Err(), wire.ErrUnknownCommand))
	})
}

func TestWriteFailureCloses(t *testing.T) {
	s, tr := startReadyInbound(t, testConfig())
	tr.mtx.Lock()
	tr.failWrite = errors.New("broken pipe")
	tr.mtx.Unlock()

	require.Error(t, s.PushMemPoolMsg())
	waitClosed(t, s)
	reason, _ := s.CloseReason()
	require.Equal(t, CloseTransport, reason)
}

func TestSessionMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics, err := NewMetrics(reg)
	require.NoError(t, err)
	cfg := testConfig()
	cfg.Metrics = metrics

	s, _ := startReadyInbound(t, cfg)
	require.Equal(t, 1.0, testutil.ToFloat64(metrics.messagesReceived.WithLabelValues(wire.CmdVersion)))
	require.Equal(t, 1.0, testutil.ToFloat64(metrics.messagesSent.WithLabelValues(wire.CmdVerAck)))
	require.Equal(t, 1.0, testutil.ToFloat64(metrics.sessions.WithLabelValues(RoleInbound.String())))
	require.Equal(t, float64(s.BytesSent()), testutil.ToFloat64(metrics.bytesSent))

	s.Close()
	waitClosed(t, s)
	require.Equal(t, 0.0, testutil.ToFloat64(metrics.sessions.WithLabelValues(RoleInbound.String())))
	require.Equal(t, 1.0, testutil.ToFloat64(metrics.closes.WithLabelValues(CloseRequested.String())))

	_, err = NewMetrics(reg)
	require.Error(t, err)
}

func TestPushGetBlocksFiltersDuplicates(t *testing.T) {
	s, tr := startReadyInbound(t, testConfig())
	defer s.Close()

	begin := chainhash.DoubleHashH([]byte("tip"))
	locator := []*chainhash.Hash{&begin}
	require.NoError(t, s.PushGetBlocksMsg(locator, nil))
	msg := tr.expect(t, wire.CmdGetBlocks).(*wire.MsgGetBlocks)
	require.Equal(t, locator, msg.BlockLocatorHashes)

	require.NoError(t, s.PushGetBlocksMsg(locator, nil))
	tr.expectNothing(t)

	stop := chainhash.DoubleHashH([]byte("stop"))
	require.NoError(t, s.PushGetBlocksMsg(locator, &stop))
	tr.expect(t, wire.CmdGetBlocks)

	require.NoError(t, s.PushGetHeadersMsg(locator, nil))
	tr.expect(t, wire.CmdGetHeaders)
	require.NoError(t, s.PushGetHeadersMsg(locator, nil))
	tr.expectNothing(t)
}

func TestPushRejectMsg(t *testing.T) {
	s, tr := startReadyInbound(t, testConfig())
	defer s.Close()

	hash := chainhash.DoubleHashH([]byte("bad tx"))
	require.NoError(t, s.PushRejectMsg(wire.CmdTx, wire.RejectInvalid, "bad", &hash))
	reject := tr.expect(t, wire.CmdReject).(*wire.MsgReject)
	got, ok := reject.Hash()
	require.True(t, ok)
	require.Equal(t, hash, got)

	require.NoError(t, s.PushRejectMsg(wire.CmdVersion, wire.RejectDuplicate, "dup", nil))
	reject = tr.expect(t, wire.CmdReject).(*wire.MsgReject)
	require.Nil(t, reject.Data)
}

func TestPushHandshakeMessages(t *testing.T) {
	s, tr := startReadyInbound(t, testConfig())

	require.NoError(t, s.PushVersionMsg())
	version := tr.expect(t, wire.CmdVersion).(*wire.MsgVersion)
	require.Equal(t, wire.DefaultUserAgent+"spvd-test:0.1.0/", version.UserAgent)
	require.Equal(t, wire.SFNodeBloom, version.Services)

	require.NoError(t, s.PushVerAckMsg())
	tr.expect(t, wire.CmdVerAck)

	// Resending handshake messages leaves the session ready.
	require.Equal(t, StateReady, s.State())

	s.Close()
	require.ErrorIs(t, s.PushVersionMsg(), ErrSessionClosed)
	require.ErrorIs(t, s.PushVerAckMsg(), ErrSessionClosed)
}
