package peer

import (
	"math/rand"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/bloom"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	btcwire "github.com/btcsuite/btcd/wire"
	"github.com/spvd/spvd/merkle"
	"github.com/spvd/spvd/wire"
)

// chainHashPair is the locator start and stop hash of the last getblocks or
// getheaders request.
type chainHashPair struct {
	begin chainhash.Hash
	stop  chainhash.Hash
}

// PushMessage frames msg and writes it to the session's transport.
//
// This function is safe for concurrent access.
func (s *Session) PushMessage(msg wire.Message) error {
	return s.writeMessage(msg)
}

// PushVersionMsg sends a version message describing the local peer. The
// session sends it by itself during the handshake, so calling it is only
// needed to resend it.
//
// This function is safe for concurrent access.
func (s *Session) PushVersionMsg() error {
	msg, err := s.localVersionMsg()
	if err != nil {
		return err
	}
	return s.writeMessage(msg)
}

// PushVerAckMsg sends a verack message. Like PushVersionMsg, it is sent by
// the session itself during the handshake.
//
// This function is safe for concurrent access.
func (s *Session) PushVerAckMsg() error {
	return s.writeMessage(wire.NewMsgVerAck())
}

// PushInvMsg sends an inv message announcing invVects.
//
// This function is safe for concurrent access.
func (s *Session) PushInvMsg(invVects ...*wire.InvVect) error {
	msg := wire.NewMsgInv()
	for _, iv := range invVects {
		err := msg.AddInvVect(iv)
		if err != nil {
			return err
		}
	}
	return s.writeMessage(msg)
}

// PushGetDataMsg requests the objects described by invVects.
//
// This function is safe for concurrent access.
func (s *Session) PushGetDataMsg(invVects ...*wire.InvVect) error {
	msg := wire.NewMsgGetData()
	for _, iv := range invVects {
		err := msg.AddInvVect(iv)
		if err != nil {
			return err
		}
	}
	return s.writeMessage(msg)
}

// PushNotFoundMsg tells the peer the objects described by invVects are not
// available.
//
// This function is safe for concurrent access.
func (s *Session) PushNotFoundMsg(invVects ...*wire.InvVect) error {
	msg := wire.NewMsgNotFound()
	for _, iv := range invVects {
		err := msg.AddInvVect(iv)
		if err != nil {
			return err
		}
	}
	return s.writeMessage(msg)
}

// PushAddrMsg sends an addr message to the connected peer using the provided
// addresses. This function is useful over manually sending the message via
// PushMessage since it automatically limits the addresses to the maximum
// number allowed by the message and randomizes the chosen addresses when there
// are too many. It returns the addresses that were actually sent.
//
// This function is safe for concurrent access.
func (s *Session) PushAddrMsg(addresses []*wire.NetAddress) ([]*wire.NetAddress, error) {
	addressCount := len(addresses)
	addrList := make([]*wire.NetAddress, addressCount)
	copy(addrList, addresses)

	// Randomize the addresses sent if there are more than the maximum allowed.
	if addressCount > wire.MaxAddrPerMsg {
		// Shuffle the address list.
		for i := 0; i < wire.MaxAddrPerMsg; i++ {
			j := i + rand.Intn(addressCount-i)
			addrList[i], addrList[j] = addrList[j], addrList[i]
		}

		// Truncate it to the maximum size.
		addrList = addrList[:wire.MaxAddrPerMsg]
	}

	msg := wire.NewMsgAddr()
	err := msg.AddAddresses(addrList...)
	if err != nil {
		return nil, err
	}

	err = s.writeMessage(msg)
	if err != nil {
		return nil, err
	}
	return msg.AddrList, nil
}

// PushGetAddrMsg asks the peer for known addresses.
//
// This function is safe for concurrent access.
func (s *Session) PushGetAddrMsg() error {
	return s.writeMessage(wire.NewMsgGetAddr())
}

// PushPingMsg sends a ping with a random nonce and returns the nonce. The
// matching pong updates the session's ping statistics.
//
// This function is safe for concurrent access.
func (s *Session) PushPingMsg() (uint64, error) {
	nonce := rand.Uint64()
	return nonce, s.writeMessage(wire.NewMsgPing(nonce))
}

// PushPongMsg answers a ping carrying nonce.
//
// This function is safe for concurrent access.
func (s *Session) PushPongMsg(nonce uint64) error {
	return s.writeMessage(wire.NewMsgPong(nonce))
}

// PushTxMsg sends tx.
//
// This function is safe for concurrent access.
func (s *Session) PushTxMsg(tx *btcwire.MsgTx) error {
	return s.writeMessage(wire.NewMsgTx(tx))
}

// PushBlockMsg sends block.
//
// This function is safe for concurrent access.
func (s *Session) PushBlockMsg(block *btcwire.MsgBlock) error {
	return s.writeMessage(wire.NewMsgBlock(block))
}

func (s *Session) isDuplicateGetBlocksMsg(begin, stop *chainhash.Hash) bool {
	s.prevGetBlocksMtx.Lock()
	defer s.prevGetBlocksMtx.Unlock()
	return s.prevGetBlocksBegin != nil && begin != nil &&
		begin.IsEqual(&s.prevGetBlocksBegin.begin) &&
		stop.IsEqual(&s.prevGetBlocksBegin.stop)
}

// PushGetBlocksMsg sends a getblocks message for the provided block locator
// and stop hash. It will ignore back-to-back duplicate requests.
//
// This function is safe for concurrent access.
func (s *Session) PushGetBlocksMsg(locator []*chainhash.Hash, stopHash *chainhash.Hash) error {
	// Extract the begin hash from the block locator, if one was specified,
	// to use for filtering duplicate getblocks requests.
	var beginHash *chainhash.Hash
	if len(locator) > 0 {
		beginHash = locator[0]
	}
	if stopHash == nil {
		stopHash = &chainhash.Hash{}
	}

	// Filter duplicate getblocks requests.
	if s.isDuplicateGetBlocksMsg(beginHash, stopHash) {
		log.Tracef("Filtering duplicate [getblocks] with begin "+
			"hash %s, stop hash %s", beginHash, stopHash)
		return nil
	}

	// Construct the getblocks request and send it.
	msg := wire.NewMsgGetBlocks(stopHash)
	for _, hash := range locator {
		err := msg.AddBlockLocatorHash(hash)
		if err != nil {
			return err
		}
	}
	err := s.writeMessage(msg)
	if err != nil {
		return err
	}

	// Update the previous getblocks request information for filtering
	// duplicates.
	if beginHash != nil {
		s.prevGetBlocksMtx.Lock()
		s.prevGetBlocksBegin = &chainHashPair{begin: *beginHash, stop: *stopHash}
		s.prevGetBlocksMtx.Unlock()
	}
	return nil
}

func (s *Session) isDuplicateGetHeadersMsg(begin, stop *chainhash.Hash) bool {
	s.prevGetHdrsMtx.Lock()
	defer s.prevGetHdrsMtx.Unlock()
	return s.prevGetHdrsBegin != nil && begin != nil &&
		begin.IsEqual(&s.prevGetHdrsBegin.begin) &&
		stop.IsEqual(&s.prevGetHdrsBegin.stop)
}

// PushGetHeadersMsg sends a getheaders message for the provided block
// locator and stop hash. It will ignore back-to-back duplicate requests.
//
// This function is safe for concurrent access.
func (s *Session) PushGetHeadersMsg(locator []*chainhash.Hash, stopHash *chainhash.Hash) error {
	var beginHash *chainhash.Hash
	if len(locator) > 0 {
		beginHash = locator[0]
	}
	if stopHash == nil {
		stopHash = &chainhash.Hash{}
	}

	// Filter duplicate getheaders requests.
	if s.isDuplicateGetHeadersMsg(beginHash, stopHash) {
		log.Tracef("Filtering duplicate [getheaders] with begin hash %s",
			beginHash)
		return nil
	}

	msg := wire.NewMsgGetHeaders(stopHash)
	for _, hash := range locator {
		err := msg.AddBlockLocatorHash(hash)
		if err != nil {
			return err
		}
	}
	err := s.writeMessage(msg)
	if err != nil {
		return err
	}

	if beginHash != nil {
		s.prevGetHdrsMtx.Lock()
		s.prevGetHdrsBegin = &chainHashPair{begin: *beginHash, stop: *stopHash}
		s.prevGetHdrsMtx.Unlock()
	}
	return nil
}

// PushHeadersMsg sends headers.
//
// This function is safe for concurrent access.
func (s *Session) PushHeadersMsg(headers []*btcwire.BlockHeader) error {
	msg := wire.NewMsgHeaders()
	for _, header := range headers {
		err := msg.AddBlockHeader(header)
		if err != nil {
			return err
		}
	}
	return s.writeMessage(msg)
}

// PushMerkleBlockMsg sends the proof tree for the block described by header.
//
// This function is safe for concurrent access.
func (s *Session) PushMerkleBlockMsg(header *btcwire.BlockHeader, tree *merkle.PartialTree) error {
	return s.writeMessage(tree.MsgMerkleBlock(header))
}

// PushFilteredBlock sends a merkleblock for block proving the transactions
// match selects. The returned hashes are the matched transactions, which
// the peer expects to receive right after as tx messages.
//
// This function is safe for concurrent access.
func (s *Session) PushFilteredBlock(block *btcutil.Block, match func(tx *btcutil.Tx) bool) ([]chainhash.Hash, error) {
	tree, err := merkle.NewFromBlock(block, match)
	if err != nil {
		return nil, err
	}
	_, matched, err := tree.Extract()
	if err != nil {
		return nil, err
	}
	err = s.PushMerkleBlockMsg(&block.MsgBlock().Header, tree)
	if err != nil {
		return nil, err
	}
	return matched, nil
}

// PushFilterLoadMsg installs filter on the peer.
//
// This function is safe for concurrent access.
func (s *Session) PushFilterLoadMsg(filter *bloom.Filter) error {
	loaded := filter.MsgFilterLoad()
	msg, err := wire.NewMsgFilterLoad(loaded.Filter, loaded.HashFuncs,
		loaded.Tweak, loaded.Flags)
	if err != nil {
		return err
	}
	return s.writeMessage(msg)
}

// PushFilterAddMsg adds data to the filter installed on the peer.
//
// This function is safe for concurrent access.
func (s *Session) PushFilterAddMsg(data []byte) error {
	msg, err := wire.NewMsgFilterAdd(data)
	if err != nil {
		return err
	}
	return s.writeMessage(msg)
}

// PushFilterClearMsg removes the filter installed on the peer.
//
// This function is safe for concurrent access.
func (s *Session) PushFilterClearMsg() error {
	return s.writeMessage(wire.NewMsgFilterClear())
}

// PushMemPoolMsg asks the peer to announce its mempool.
//
// This function is safe for concurrent access.
func (s *Session) PushMemPoolMsg() error {
	return s.writeMessage(wire.NewMsgMemPool())
}

// PushRejectMsg sends a reject message for the provided command, reject code,
// reject reason, and hash. The hash will only be used when the command is a tx
// or block and should be nil in other cases.
//
// This function is safe for concurrent access.
func (s *Session) PushRejectMsg(command string, code wire.RejectCode, reason string, hash *chainhash.Hash) error {
	msg := wire.NewMsgReject(command, code, reason)
	if command == wire.CmdTx || command == wire.CmdBlock {
		if hash == nil {
			log.Warnf("Sending a reject message for command "+
				"type %s which should have specified a hash "+
				"but does not", command)
			hash = &chainhash.Hash{}
		}
		msg.Data = hash.CloneBytes()
	}
	return s.writeMessage(msg)
}

// PushAlertMsg relays alert.
//
// This function is safe for concurrent access.
func (s *Session) PushAlertMsg(alert *wire.MsgAlert) error {
	return s.writeMessage(alert)
}
