package peer

import (
	"sync/atomic"
	"time"

	"github.com/spvd/spvd/wire"
)

// StatsSnap is a snapshot of session stats at a point in time.
type StatsSnap struct {
	ID             int32
	Addr           string
	State          State
	UserAgent      string
	Services       wire.ServiceFlag
	BytesSent      uint64
	BytesRecv      uint64
	ConnTime       time.Time
	TimeOffset     int64
	Version        int32
	StartingHeight int32
	Inbound        bool
	Relay          bool
	LastPingNonce  uint64
	LastPingTime   time.Time
	LastPingMicros int64
}

// StatsSnapshot returns a snapshot of the current session flags and
// statistics.
//
// This function is safe for concurrent access.
func (s *Session) StatsSnapshot() *StatsSnap {
	snap := &StatsSnap{
		ID:        s.id,
		Addr:      s.Addr(),
		State:     s.State(),
		BytesSent: s.BytesSent(),
		BytesRecv: s.BytesReceived(),
		Inbound:   s.Inbound(),
	}

	s.flagsMtx.Lock()
	if s.remoteVersion != nil {
		snap.UserAgent = s.remoteVersion.UserAgent
		snap.Services = s.remoteVersion.Services
		snap.Version = s.remoteVersion.ProtocolVersion
		snap.StartingHeight = s.remoteVersion.StartHeight
	}
	snap.Relay = s.relayToPeer
	s.flagsMtx.Unlock()

	s.statsMtx.RLock()
	snap.ConnTime = s.timeConnected
	snap.TimeOffset = s.timeOffset
	snap.LastPingNonce = s.lastPingNonce
	snap.LastPingTime = s.lastPingTime
	snap.LastPingMicros = s.lastPingMicros
	s.statsMtx.RUnlock()

	return snap
}

// ID returns the session id.
func (s *Session) ID() int32 {
	return s.id
}

// Addr returns the remote address of the session.
//
// This function is safe for concurrent access.
func (s *Session) Addr() string {
	s.stateMtx.Lock()
	defer s.stateMtx.Unlock()
	return s.addr
}

// NA returns the remote network address. Its services are those the remote
// advertised once its version message has arrived.
//
// This function is safe for concurrent access.
func (s *Session) NA() *wire.NetAddress {
	s.flagsMtx.Lock()
	defer s.flagsMtx.Unlock()
	return s.na
}

// Inbound returns whether the remote connected to us.
func (s *Session) Inbound() bool {
	return s.role == RoleInbound
}

// State returns the handshake state of the session.
//
// This function is safe for concurrent access.
func (s *Session) State() State {
	s.stateMtx.Lock()
	defer s.stateMtx.Unlock()
	return s.fsm.State
}

// RemoteVersion returns the version message received from the remote, or
// nil if none has arrived yet.
//
// This function is safe for concurrent access.
func (s *Session) RemoteVersion() *wire.MsgVersion {
	s.flagsMtx.Lock()
	defer s.flagsMtx.Unlock()
	return s.remoteVersion
}

// RelaysTransactions returns whether the remote wants transaction
// announcements from us: its version's relay flag until it loads or clears a
// filter.
//
// This function is safe for concurrent access.
func (s *Session) RelaysTransactions() bool {
	s.flagsMtx.Lock()
	defer s.flagsMtx.Unlock()
	return s.relayToPeer
}

// RemoteFilter returns the filter the remote loaded, if any.
//
// This function is safe for concurrent access.
func (s *Session) RemoteFilter() *wire.MsgFilterLoad {
	s.flagsMtx.Lock()
	defer s.flagsMtx.Unlock()
	return s.filter
}

// SetDownloadPeer marks whether blocks are fetched from this session.
//
// This function is safe for concurrent access.
func (s *Session) SetDownloadPeer(downloadPeer bool) {
	s.flagsMtx.Lock()
	defer s.flagsMtx.Unlock()
	s.downloadPeer = downloadPeer
}

// IsDownloadPeer returns whether blocks are fetched from this session.
//
// This function is safe for concurrent access.
func (s *Session) IsDownloadPeer() bool {
	s.flagsMtx.Lock()
	defer s.flagsMtx.Unlock()
	return s.downloadPeer
}

// LastPingNonce returns the nonce of the ping awaiting its pong, or zero.
//
// This function is safe for concurrent access.
func (s *Session) LastPingNonce() uint64 {
	s.statsMtx.RLock()
	defer s.statsMtx.RUnlock()
	return s.lastPingNonce
}

// LastPingMicros returns the round trip time of the last answered ping.
//
// This function is safe for concurrent access.
func (s *Session) LastPingMicros() int64 {
	s.statsMtx.RLock()
	defer s.statsMtx.RUnlock()
	return s.lastPingMicros
}

// BytesSent returns the total number of bytes sent by the session.
//
// This function is safe for concurrent access.
func (s *Session) BytesSent() uint64 {
	return atomic.LoadUint64(&s.bytesSent)
}

// BytesReceived returns the total number of bytes received by the session.
//
// This function is safe for concurrent access.
func (s *Session) BytesReceived() uint64 {
	return atomic.LoadUint64(&s.bytesReceived)
}

// TimeConnected returns the time at which the session was started.
//
// This function is safe for concurrent access.
func (s *Session) TimeConnected() time.Time {
	s.statsMtx.RLock()
	defer s.statsMtx.RUnlock()
	return s.timeConnected
}
