// Copyright (c) 2015-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package peer

import (
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/spvd/spvd/infrastructure/logger"
	"github.com/spvd/spvd/wire"
)

const (
	// maxRejectReasonLen is the maximum length of a sanitized reject reason
	// that will be logged.
	maxRejectReasonLen = 250
)

// invSummary returns an inventory message as a human-readable string.
func invSummary(invList []*wire.InvVect) string {
	// No inventory.
	invLen := len(invList)
	if invLen == 0 {
		return "empty"
	}

	// One inventory item.
	if invLen == 1 {
		iv := invList[0]
		switch iv.Type {
		case wire.InvTypeError:
			return fmt.Sprintf("error %s", iv.Hash)
		case wire.InvTypeBlock:
			return fmt.Sprintf("block %s", iv.Hash)
		case wire.InvTypeTx:
			return fmt.Sprintf("tx %s", iv.Hash)
		case wire.InvTypeFilteredBlock:
			return fmt.Sprintf("merkleblock %s", iv.Hash)
		}

		return fmt.Sprintf("unknown (%d) %s", uint32(iv.Type), iv.Hash)
	}

	// More than one inv item.
	return fmt.Sprintf("size %d", invLen)
}

// locatorSummary returns a block locator as a human-readable string.
func locatorSummary(locator []*chainhash.Hash, stopHash chainhash.Hash) string {
	if len(locator) > 0 {
		return fmt.Sprintf("locator %s, stop %s", locator[0], stopHash)
	}

	return fmt.Sprintf("no locator, stop %s", stopHash)
}

// sanitizeString strips any characters which are even remotely dangerous, such
// as html control characters, from the passed string. It also limits it to
// the passed maximum size, which can be 0 for unlimited. When the string is
// limited, it will also add "..." to the string to indicate it was truncated.
func sanitizeString(str string, maxLength uint) string {
	const safeChars = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXY" +
		"Z01234567890 .,;_/:?@"

	// Strip any characters not in the safeChars string removed.
	str = strings.Map(func(r rune) rune {
		if strings.ContainsRune(safeChars, r) {
			return r
		}
		return -1
	}, str)

	// Limit the string to the max allowed length.
	if maxLength > 0 && uint(len(str)) > maxLength {
		str = str[:maxLength]
		str = str + "..."
	}
	return str
}

// messageSummary returns a human-readable string which summarizes a message.
// Not all messages have or need a summary. This is used for debug logging.
func messageSummary(msg wire.Message) string {
	switch msg := msg.(type) {
	case *wire.MsgVersion:
		return fmt.Sprintf("agent %s, pver %d, services %s, block %d",
			msg.UserAgent, msg.ProtocolVersion, msg.Services, msg.StartHeight)

	case *wire.MsgAddr:
		return fmt.Sprintf("%d addr", len(msg.AddrList))

	case *wire.MsgPing:
		return fmt.Sprintf("nonce %d", msg.Nonce)

	case *wire.MsgPong:
		return fmt.Sprintf("nonce %d", msg.Nonce)

	case *wire.MsgAlert:
		if msg.Payload != nil {
			return fmt.Sprintf("id %d, priority %d, comment %s", msg.Payload.ID,
				msg.Payload.Priority, sanitizeString(msg.Payload.Comment, 0))
		}
		return "undecoded payload"

	case *wire.MsgTx:
		if msg.Tx == nil {
			return ""
		}
		return fmt.Sprintf("hash %s, %d inputs, %d outputs, lock %d",
			msg.Tx.TxHash(), len(msg.Tx.TxIn), len(msg.Tx.TxOut), msg.Tx.LockTime)

	case *wire.MsgBlock:
		if msg.Block == nil {
			return ""
		}
		header := &msg.Block.Header
		return fmt.Sprintf("hash %s, ver %d, %d tx, %s", header.BlockHash(),
			header.Version, len(msg.Block.Transactions), header.Timestamp)

	case *wire.MsgMerkleBlock:
		return fmt.Sprintf("hash %s, %d tx, %d hashes", msg.Header.BlockHash(),
			msg.Transactions, len(msg.Hashes))

	case *wire.MsgInv:
		return invSummary(msg.InvList)

	case *wire.MsgNotFound:
		return invSummary(msg.InvList)

	case *wire.MsgGetData:
		return invSummary(msg.InvList)

	case *wire.MsgGetBlocks:
		return locatorSummary(msg.BlockLocatorHashes, msg.HashStop)

	case *wire.MsgGetHeaders:
		return locatorSummary(msg.BlockLocatorHashes, msg.HashStop)

	case *wire.MsgHeaders:
		return fmt.Sprintf("num %d", len(msg.Headers))

	case *wire.MsgFilterLoad:
		return fmt.Sprintf("%d bytes, %d hash funcs", len(msg.Filter), msg.HashFuncs)

	case *wire.MsgFilterAdd:
		return fmt.Sprintf("%d bytes", len(msg.Data))

	case *wire.MsgReject:
		// Ensure the variable length strings don't contain any
		// characters which are even remotely dangerous such as HTML
		// control characters, etc. Also limit them to sane length for
		// logging.
		rejCommand := sanitizeString(msg.Cmd, wire.CommandSize)
		rejReason := sanitizeString(msg.Reason, maxRejectReasonLen)
		summary := fmt.Sprintf("cmd %v, code %v, reason %v", rejCommand,
			msg.Code, rejReason)
		if hash, ok := msg.Hash(); ok {
			summary += fmt.Sprintf(", hash %s", hash)
		}
		return summary
	}

	// No summary for other messages.
	return ""
}

// messageLogLevel returns the level traffic of msg's kind is logged at.
// Keepalives would drown everything else at the debug level.
func messageLogLevel(msg wire.Message) logger.Level {
	switch msg.(type) {
	case *wire.MsgPing, *wire.MsgPong:
		return logger.LevelTrace
	}
	return logger.LevelDebug
}
