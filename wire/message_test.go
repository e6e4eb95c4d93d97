package wire

import (
	"bytes"
	"net"
	"testing"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	btcwire "github.com/btcsuite/btcd/wire"
	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// drawBytes never returns nil so drawn messages compare equal to decoded
// ones.
func drawBytes(t *rapid.T, label string, max int) []byte {
	b := rapid.SliceOfN(rapid.Byte(), 0, max).Draw(t, label)
	if b == nil {
		b = []byte{}
	}
	return b
}

func drawHash(t *rapid.T, label string) chainhash.Hash {
	var hash chainhash.Hash
	copy(hash[:], rapid.SliceOfN(rapid.Byte(), 32, 32).Draw(t, label))
	return hash
}

func drawHashes(t *rapid.T, label string, max int) []*chainhash.Hash {
	n := rapid.IntRange(0, max).Draw(t, label+" count")
	hashes := make([]*chainhash.Hash, 0, n)
	for i := 0; i < n; i++ {
		hash := drawHash(t, label)
		hashes = append(hashes, &hash)
	}
	return hashes
}

func drawNetAddress(t *rapid.T, ts bool) NetAddress {
	na := NetAddress{
		Services: ServiceFlag(rapid.Uint64().Draw(t, "services")),
		IP:       net.IP(rapid.SliceOfN(rapid.Byte(), 16, 16).Draw(t, "ip")),
		Port:     rapid.Uint16().Draw(t, "port"),
	}
	if ts {
		na.Timestamp = fn.Some(rapid.Uint32().Draw(t, "timestamp"))
	}
	return na
}

func drawInvList(t *rapid.T) invList {
	n := rapid.IntRange(0, 20).Draw(t, "inv count")
	list := invList{InvList: make([]*InvVect, 0, n)}
	for i := 0; i < n; i++ {
		hash := drawHash(t, "inv hash")
		typ := InvType(rapid.Uint32Range(0, 3).Draw(t, "inv type"))
		list.InvList = append(list.InvList, NewInvVect(typ, &hash))
	}
	return list
}

func drawBlockLocator(t *rapid.T) blockLocator {
	return blockLocator{
		ProtocolVersion:    rapid.Int32().Draw(t, "version"),
		BlockLocatorHashes: drawHashes(t, "locator", 10),
		HashStop:           drawHash(t, "hash stop"),
	}
}

func drawBlockHeader(t *rapid.T) btcwire.BlockHeader {
	return btcwire.BlockHeader{
		Version:    rapid.Int32().Draw(t, "header version"),
		PrevBlock:  drawHash(t, "prev block"),
		MerkleRoot: drawHash(t, "merkle root"),
		Timestamp:  time.Unix(int64(rapid.Uint32().Draw(t, "header time")), 0),
		Bits:       rapid.Uint32().Draw(t, "bits"),
		Nonce:      rapid.Uint32().Draw(t, "nonce"),
	}
}

func drawTx(t *rapid.T) *btcwire.MsgTx {
	tx := btcwire.NewMsgTx(rapid.Int32Range(1, 2).Draw(t, "tx version"))
	inputs := rapid.IntRange(1, 3).Draw(t, "inputs")
	for i := 0; i < inputs; i++ {
		prevHash := drawHash(t, "prev tx")
		prevOut := btcwire.NewOutPoint(&prevHash, rapid.Uint32().Draw(t, "prev index"))
		txIn := btcwire.NewTxIn(prevOut, drawBytes(t, "sig script", 40), nil)
		txIn.Sequence = rapid.Uint32().Draw(t, "sequence")
		tx.AddTxIn(txIn)
	}
	outputs := rapid.IntRange(0, 3).Draw(t, "outputs")
	for i := 0; i < outputs; i++ {
		tx.AddTxOut(btcwire.NewTxOut(rapid.Int64Range(0, 21e14).Draw(t, "value"),
			drawBytes(t, "pk script", 40)))
	}
	tx.LockTime = rapid.Uint32().Draw(t, "lock time")
	return tx
}

func drawAlertDetail(t *rapid.T) *AlertDetail {
	n := rapid.IntRange(0, 4).Draw(t, "set cancel")
	setCancel := make([]int32, 0, n)
	for i := 0; i < n; i++ {
		setCancel = append(setCancel, rapid.Int32().Draw(t, "cancel"))
	}
	n = rapid.IntRange(0, 4).Draw(t, "set sub ver")
	setSubVer := make([]string, 0, n)
	for i := 0; i < n; i++ {
		setSubVer = append(setSubVer, string(drawBytes(t, "sub ver", 20)))
	}
	detail := NewAlertDetail(rapid.Int32().Draw(t, "alert version"),
		rapid.Int64().Draw(t, "relay until"), rapid.Int64().Draw(t, "expiration"),
		rapid.Int32().Draw(t, "id"), rapid.Int32().Draw(t, "cancel"),
		setCancel, rapid.Int32().Draw(t, "min ver"), rapid.Int32().Draw(t, "max ver"),
		setSubVer, rapid.Int32().Draw(t, "priority"),
		string(drawBytes(t, "comment", 30)), string(drawBytes(t, "status bar", 30)))
	detail.Reserved = string(drawBytes(t, "reserved", 10))
	return detail
}

// drawMessage draws one message of the kind named by command.
func drawMessage(t *rapid.T, command string) Message {
	switch command {
	case CmdVersion:
		return &MsgVersion{
			ProtocolVersion: rapid.Int32().Draw(t, "version"),
			Services:        ServiceFlag(rapid.Uint64().Draw(t, "services")),
			Timestamp:       time.Unix(rapid.Int64Range(0, 1<<40).Draw(t, "time"), 0),
			AddrRecv:        drawNetAddress(t, false),
			AddrFrom:        drawNetAddress(t, false),
			Nonce:           rapid.Uint64().Draw(t, "nonce"),
			UserAgent:       string(drawBytes(t, "user agent", MaxUserAgentLen)),
			StartHeight:     rapid.Int32().Draw(t, "start height"),
			Relay:           rapid.Bool().Draw(t, "relay"),
		}

	case CmdVerAck:
		return NewMsgVerAck()

	case CmdGetAddr:
		return NewMsgGetAddr()

	case CmdMemPool:
		return NewMsgMemPool()

	case CmdFilterClear:
		return NewMsgFilterClear()

	case CmdAddr:
		n := rapid.IntRange(0, 10).Draw(t, "addr count")
		msg := &MsgAddr{AddrList: make([]*NetAddress, 0, n)}
		for i := 0; i < n; i++ {
			na := drawNetAddress(t, true)
			msg.AddrList = append(msg.AddrList, &na)
		}
		return msg

	case CmdInv:
		return &MsgInv{drawInvList(t)}

	case CmdGetData:
		return &MsgGetData{drawInvList(t)}

	case CmdNotFound:
		return &MsgNotFound{drawInvList(t)}

	case CmdGetBlocks:
		return &MsgGetBlocks{drawBlockLocator(t)}

	case CmdGetHeaders:
		return &MsgGetHeaders{drawBlockLocator(t)}

	case CmdHeaders:
		n := rapid.IntRange(0, 5).Draw(t, "header count")
		msg := &MsgHeaders{Headers: make([]*btcwire.BlockHeader, 0, n)}
		for i := 0; i < n; i++ {
			header := drawBlockHeader(t)
			msg.Headers = append(msg.Headers, &header)
		}
		return msg

	case CmdTx:
		return NewMsgTx(drawTx(t))

	case CmdBlock:
		header := drawBlockHeader(t)
		block := btcwire.NewMsgBlock(&header)
		n := rapid.IntRange(1, 3).Draw(t, "block txs")
		for i := 0; i < n; i++ {
			require.NoError(t, block.AddTransaction(drawTx(t)))
		}
		return NewMsgBlock(block)

	case CmdMerkleBlock:
		header := drawBlockHeader(t)
		msg := NewMsgMerkleBlock(&header)
		msg.Transactions = rapid.Uint32().Draw(t, "transactions")
		msg.Hashes = drawHashes(t, "tx hashes", 10)
		msg.Flags = drawBytes(t, "flags", 4)
		return msg

	case CmdPing:
		return NewMsgPing(rapid.Uint64().Draw(t, "nonce"))

	case CmdPong:
		return NewMsgPong(rapid.Uint64().Draw(t, "nonce"))

	case CmdFilterLoad:
		msg, err := NewMsgFilterLoad(drawBytes(t, "filter", 100),
			rapid.Uint32Range(0, MaxFilterLoadHashFuncs).Draw(t, "hash funcs"),
			rapid.Uint32().Draw(t, "tweak"),
			btcwire.BloomUpdateType(rapid.Uint8Range(0, 2).Draw(t, "flags")))
		require.NoError(t, err)
		return msg

	case CmdFilterAdd:
		msg, err := NewMsgFilterAdd(drawBytes(t, "data", MaxFilterAddDataSize))
		require.NoError(t, err)
		return msg

	case CmdReject:
		msg := NewMsgReject(rapid.SampledFrom(allCommands).Draw(t, "rejected"),
			RejectCode(rapid.Uint8().Draw(t, "code")),
			string(drawBytes(t, "reason", 40)))
		if data := drawBytes(t, "data", 32); len(data) > 0 {
			msg.Data = data
		}
		return msg

	case CmdAlert:
		detail := drawAlertDetail(t)
		var buf bytes.Buffer
		require.NoError(t, detail.Serialize(&buf))
		msg := NewMsgAlert(buf.Bytes(), drawBytes(t, "signature", 72))
		msg.Payload = detail
		return msg
	}

	t.Fatalf("no generator for %s", command)
	return nil
}

var allCommands = []string{
	CmdVersion, CmdVerAck, CmdGetAddr, CmdAddr, CmdGetBlocks, CmdInv,
	CmdGetData, CmdNotFound, CmdBlock, CmdTx, CmdGetHeaders, CmdHeaders,
	CmdPing, CmdPong, CmdAlert, CmdMemPool, CmdFilterAdd, CmdFilterClear,
	CmdFilterLoad, CmdMerkleBlock, CmdReject,
}

// TestMessageRoundTrip checks that every message kind decodes back to what
// was encoded.
func TestMessageRoundTrip(t *testing.T) {
	for _, command := range allCommands {
		command := command
		t.Run(command, func(t *testing.T) {
			rapid.Check(t, func(t *rapid.T) {
				msg := drawMessage(t, command)
				require.Equal(t, command, msg.Command())

				payload, err := EncodePayload(msg)
				require.NoError(t, err)
				require.LessOrEqual(t, len(payload), int(msg.MaxPayloadLength()))

				decoded, err := DecodePayload(command, payload)
				require.NoError(t, err)

				reencoded, err := EncodePayload(decoded)
				require.NoError(t, err)
				require.Equal(t, payload, reencoded)

				switch m := msg.(type) {
				// btcd leaves script slices in their own layout, so
				// compare those by identity instead.
				case *MsgTx:
					require.Equal(t, m.Tx.TxHash(), decoded.(*MsgTx).Tx.TxHash())
				case *MsgBlock:
					require.Equal(t, m.Block.BlockHash(), decoded.(*MsgBlock).Block.BlockHash())
				default:
					require.Equal(t, msg, decoded)
				}
			})
		})
	}
}

// TestEveryCommandIsKnown ensures each command has a payload codec and
// that the codec reports the command back.
func TestEveryCommandIsKnown(t *testing.T) {
	for _, command := range allCommands {
		msg, err := makeEmptyMessage(command)
		require.NoError(t, err)
		require.Equal(t, command, msg.Command())
		require.True(t, IsKnownCommand(command))
	}

	_, err := DecodePayload("sendheaders", nil)
	require.True(t, IsKind(err, ErrUnknownCommand), "got %v", err)
	require.False(t, IsKnownCommand("wtxidrelay"))
}

// TestDecodeTruncatedPayload ensures a payload cut short anywhere is reported
// as malformed rather than as a short read.
func TestDecodeTruncatedPayload(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		command := rapid.SampledFrom([]string{CmdVersion, CmdAddr, CmdInv,
			CmdGetHeaders, CmdHeaders, CmdTx, CmdMerkleBlock, CmdPing,
			CmdFilterLoad, CmdFilterAdd, CmdAlert}).Draw(t, "command")
		msg := drawMessage(t, command)
		payload, err := EncodePayload(msg)
		require.NoError(t, err)

		// A version payload one byte short is still valid since the
		// relay flag is optional.
		max := len(payload) - 1
		if command == CmdVersion {
			max--
		}
		if max < 0 {
			return
		}
		cut := rapid.IntRange(0, max).Draw(t, "cut")

		_, err = DecodePayload(command, payload[:cut])
		require.Error(t, err)
		kind, ok := KindOf(err)
		require.True(t, ok, "got %v", err)
		require.Contains(t, []ErrorKind{ErrMalformedPayload, ErrNonCanonicalVarInt}, kind)
	})
}

func TestDecodeOversizedPayload(t *testing.T) {
	_, err := DecodePayload(CmdVerAck, []byte{0x00})
	require.True(t, IsKind(err, ErrMalformedPayload), "got %v", err)

	_, err = DecodePayload(CmdPing, make([]byte, 9))
	require.True(t, IsKind(err, ErrMalformedPayload), "got %v", err)
}

func TestHeadersWithTransactions(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteVarInt(&buf, 1))
	header := btcwire.BlockHeader{Timestamp: time.Unix(1231006505, 0)}
	require.NoError(t, header.Serialize(&buf))
	require.NoError(t, WriteVarInt(&buf, 2))

	_, err := DecodePayload(CmdHeaders, buf.Bytes())
	require.True(t, IsKind(err, ErrMalformedPayload), "got %v", err)
}

func TestInvLimits(t *testing.T) {
	msg := NewMsgInv()
	hash := chainhash.Hash{1}
	for i := 0; i < MaxInvPerMsg; i++ {
		require.NoError(t, msg.AddInvVect(NewInvVect(InvTypeTx, &hash)))
	}
	err := msg.AddInvVect(NewInvVect(InvTypeTx, &hash))
	require.True(t, IsKind(err, ErrInvalidArgument), "got %v", err)

	var buf bytes.Buffer
	require.NoError(t, WriteVarInt(&buf, MaxInvPerMsg+1))
	_, err = DecodePayload(CmdInv, buf.Bytes())
	require.True(t, IsKind(err, ErrMalformedPayload), "got %v", err)
}

func TestInvVectKinds(t *testing.T) {
	hash := chainhash.Hash{2}
	require.True(t, NewInvVect(InvTypeTx, &hash).IsTx())
	require.True(t, NewInvVect(InvTypeBlock, &hash).IsBlock())
	require.True(t, NewInvVect(InvTypeFilteredBlock, &hash).IsFilteredBlock())
	require.False(t, NewInvVect(InvTypeError, &hash).IsTx())
	require.Equal(t, "Unknown InvType (9)", InvType(9).String())
}

func TestFilterLoadLimits(t *testing.T) {
	_, err := NewMsgFilterLoad(make([]byte, MaxFilterLoadFilterSize+1), 1, 0,
		btcwire.BloomUpdateNone)
	require.True(t, IsKind(err, ErrInvalidArgument), "got %v", err)

	_, err = NewMsgFilterLoad(nil, MaxFilterLoadHashFuncs+1, 0,
		btcwire.BloomUpdateNone)
	require.True(t, IsKind(err, ErrInvalidArgument), "got %v", err)

	_, err = NewMsgFilterAdd(make([]byte, MaxFilterAddDataSize+1))
	require.True(t, IsKind(err, ErrInvalidArgument), "got %v", err)

	// filter bytes, hash funcs, tweak and flags in that order.
	msg, err := NewMsgFilterLoad([]byte{0xb5, 0x0f}, 11, 0x01020304,
		btcwire.BloomUpdateP2PubkeyOnly)
	require.NoError(t, err)
	payload, err := EncodePayload(msg)
	require.NoError(t, err)
	require.Equal(t, []byte{
		0x02, 0xb5, 0x0f,
		0x0b, 0x00, 0x00, 0x00,
		0x04, 0x03, 0x02, 0x01,
		0x02,
	}, payload)
}

func TestRejectHash(t *testing.T) {
	msg := NewMsgReject(CmdTx, RejectDust, "dust")
	_, ok := msg.Hash()
	require.False(t, ok)

	hash := chainhash.DoubleHashH([]byte("tx"))
	msg.Data = hash[:]
	got, ok := msg.Hash()
	require.True(t, ok)
	require.Equal(t, hash, got)
	require.Equal(t, "REJECT_DUST", msg.Code.String())
}
