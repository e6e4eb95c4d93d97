package main

import (
	"github.com/btcsuite/btcd/btcutil/bloom"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	btcwire "github.com/btcsuite/btcd/wire"
	"github.com/spvd/spvd/infrastructure/config"
	"github.com/spvd/spvd/peer"
	"github.com/spvd/spvd/util/random"
	"github.com/spvd/spvd/version"
	"github.com/spvd/spvd/wire"
)

// newFilter builds the bloom filter loaded on the peer from the --watch
// elements. It returns nil when nothing is watched.
func newFilter(cfg *config.Config) (*bloom.Filter, error) {
	if len(cfg.WatchData) == 0 {
		return nil, nil
	}
	tweak, err := random.Uint64()
	if err != nil {
		return nil, err
	}
	filter := bloom.NewFilter(uint32(len(cfg.WatchData)), uint32(tweak),
		cfg.FalsePositiveRate, btcwire.BloomUpdateAll)
	for _, data := range cfg.WatchData {
		filter.Add(data)
	}
	return filter, nil
}

// newSessionConfig returns the session configuration for cfg. Its listeners
// log the traffic an SPV client cares about: filtered blocks and the
// transactions matching the filter.
func newSessionConfig(cfg *config.Config, metrics *peer.Metrics) (*peer.Config, error) {
	filter, err := newFilter(cfg)
	if err != nil {
		return nil, err
	}

	startHeight := cfg.StartHeight
	return &peer.Config{
		Net:                     cfg.Net(),
		UserAgentName:           version.Name,
		UserAgentVersion:        version.Version(),
		UserAgentComments:       cfg.UserAgentComments,
		StartHeight:             func() int32 { return startHeight },
		DisableRelayTx:          !cfg.Relay,
		TolerateUnknownCommands: cfg.TolerateUnknown,
		HandshakeTimeout:        cfg.HandshakeTimeout,
		AlertPubKey:             cfg.AlertPubKey,
		Metrics:                 metrics,
		Listeners: peer.MessageListeners{
			OnReady: func(s *peer.Session) {
				log.Infof("Connected to %s (%s)", s, s.RemoteVersion().UserAgent)
				if filter == nil {
					return
				}
				err := s.PushFilterLoadMsg(filter)
				if err != nil {
					log.Errorf("Failed to load filter on %s: %s", s, err)
				}
			},
			OnInv: func(s *peer.Session, msg *wire.MsgInv) {
				requestInventory(s, msg, filter != nil)
			},
			OnMerkleBlock: func(s *peer.Session, msg *wire.MsgMerkleBlock, matched []chainhash.Hash) {
				log.Infof("Block %s proves %d matching transactions",
					msg.Header.BlockHash(), len(matched))
				for _, hash := range matched {
					log.Infof("  matched transaction %s", hash)
				}
			},
			OnMerkleBlockRejected: func(s *peer.Session, msg *wire.MsgMerkleBlock, err error) {
				log.Warnf("Invalid merkleblock %s from %s: %s",
					msg.Header.BlockHash(), s, err)
			},
			OnTx: func(s *peer.Session, msg *wire.MsgTx) {
				log.Infof("Transaction %s from %s", msg.Tx.TxHash(), s)
			},
			OnAlert: func(s *peer.Session, msg *wire.MsgAlert, verified bool) {
				if !verified || msg.Payload == nil {
					log.Debugf("Ignoring unverified alert from %s", s)
					return
				}
				log.Warnf("Alert from %s: %s", s, msg.Payload.StatusBar)
			},
			OnReject: func(s *peer.Session, msg *wire.MsgReject) {
				log.Warnf("%s rejected %s: %s", s, msg.Cmd, msg.Reason)
			},
			OnClose: func(s *peer.Session, reason peer.CloseReason, err error) {
				log.Infof("Session with %s closed: %s", s, reason)
			},
		},
	}, nil
}

// requestInventory asks for the announced blocks and transactions. Blocks are
// requested as merkleblocks when a filter is loaded.
func requestInventory(s *peer.Session, msg *wire.MsgInv, filtered bool) {
	invVects := make([]*wire.InvVect, 0, len(msg.InvList))
	for _, iv := range msg.InvList {
		switch {
		case iv.IsBlock() && filtered:
			invVects = append(invVects, wire.NewInvVect(wire.InvTypeFilteredBlock, &iv.Hash))
		case iv.IsBlock(), iv.IsTx():
			invVects = append(invVects, iv)
		}
	}
	if len(invVects) == 0 {
		return
	}
	err := s.PushGetDataMsg(invVects...)
	if err != nil {
		log.Errorf("Failed to request inventory from %s: %s", s, err)
	}
}
