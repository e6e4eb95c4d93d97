package peer

import (
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/spvd/spvd/wire"
)

// MessageListeners defines callback function pointers to invoke with message
// listeners for a session. Any listener which is not set to a concrete
// callback is ignored. Listeners run on the session's event loop one after
// another, so a slow listener delays every later message of that session.
//
// Listeners may call Close on the session. Nothing is dispatched after that.
type MessageListeners struct {
	// OnVersion is invoked when the peer's version message is received.
	OnVersion func(s *Session, msg *wire.MsgVersion)

	// OnVerAck is invoked when the peer's verack message is received.
	OnVerAck func(s *Session, msg *wire.MsgVerAck)

	// OnReady is invoked once the handshake completes.
	OnReady func(s *Session)

	// OnInv is invoked when an inv message is received.
	OnInv func(s *Session, msg *wire.MsgInv)

	// OnGetData is invoked when a getdata message is received.
	OnGetData func(s *Session, msg *wire.MsgGetData)

	// OnNotFound is invoked when a notfound message is received.
	OnNotFound func(s *Session, msg *wire.MsgNotFound)

	// OnAddr is invoked when an addr message is received.
	OnAddr func(s *Session, msg *wire.MsgAddr)

	// OnGetAddr is invoked when a getaddr message is received.
	OnGetAddr func(s *Session, msg *wire.MsgGetAddr)

	// OnGetBlocks is invoked when a getblocks message is received.
	OnGetBlocks func(s *Session, msg *wire.MsgGetBlocks)

	// OnGetHeaders is invoked when a getheaders message is received.
	OnGetHeaders func(s *Session, msg *wire.MsgGetHeaders)

	// OnHeaders is invoked when a headers message is received.
	OnHeaders func(s *Session, msg *wire.MsgHeaders)

	// OnTx is invoked when a tx message is received.
	OnTx func(s *Session, msg *wire.MsgTx)

	// OnBlock is invoked when a block message is received.
	OnBlock func(s *Session, msg *wire.MsgBlock)

	// OnMerkleBlock is invoked when a merkleblock message whose proof
	// checks out against its header is received. matched holds the
	// hashes of the transactions the proof covers, in block order.
	OnMerkleBlock func(s *Session, msg *wire.MsgMerkleBlock, matched []chainhash.Hash)

	// OnMerkleBlockRejected is invoked instead of OnMerkleBlock when the
	// proof is invalid. err is of kind wire.ErrBadMerkleProof. The
	// session stays open.
	OnMerkleBlockRejected func(s *Session, msg *wire.MsgMerkleBlock, err error)

	// OnPing is invoked when a ping message is received. The pong reply
	// has already been sent.
	OnPing func(s *Session, msg *wire.MsgPing)

	// OnPong is invoked when a pong message is received.
	OnPong func(s *Session, msg *wire.MsgPong)

	// OnFilterLoad is invoked when a filterload message is received.
	OnFilterLoad func(s *Session, msg *wire.MsgFilterLoad)

	// OnFilterAdd is invoked when a filteradd message is received.
	OnFilterAdd func(s *Session, msg *wire.MsgFilterAdd)

	// OnFilterClear is invoked when a filterclear message is received.
	OnFilterClear func(s *Session, msg *wire.MsgFilterClear)

	// OnMemPool is invoked when a mempool message is received.
	OnMemPool func(s *Session, msg *wire.MsgMemPool)

	// OnReject is invoked when a reject message is received.
	OnReject func(s *Session, msg *wire.MsgReject)

	// OnAlert is invoked when an alert message is received. verified
	// tells whether its signature matches Config.AlertPubKey, and is
	// false when no key is configured.
	OnAlert func(s *Session, msg *wire.MsgAlert, verified bool)

	// OnRead is invoked for every message received from the peer that is
	// dispatched, right before its own listener. Messages dropped before
	// the handshake completes never reach it.
	OnRead func(s *Session, bytesRead int, msg wire.Message)

	// OnWrite is invoked for every message written to the peer. err is
	// the write error, if any.
	OnWrite func(s *Session, bytesWritten int, msg wire.Message, err error)

	// OnClose is invoked once when the session closes. err is nil for
	// intentional closes other than a handshake timeout.
	OnClose func(s *Session, reason CloseReason, err error)
}
