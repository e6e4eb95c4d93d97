package wire

import (
	"testing"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/stretchr/testify/require"
)

// TestBitcoinNetMatchesChainParams ensures every network magic agrees with
// the chain parameters the configuration selects networks from.
func TestBitcoinNetMatchesChainParams(t *testing.T) {
	tests := []struct {
		net    BitcoinNet
		params *chaincfg.Params
		str    string
	}{
		{MainNet, &chaincfg.MainNetParams, "MainNet"},
		{TestNet3, &chaincfg.TestNet3Params, "TestNet3"},
		{TestNet, &chaincfg.RegressionNetParams, "TestNet"},
		{SimNet, &chaincfg.SimNetParams, "SimNet"},
		{SigNet, &chaincfg.SigNetParams, "SigNet"},
	}
	for _, test := range tests {
		require.Equal(t, uint32(test.params.Net), uint32(test.net), test.params.Name)
		require.Equal(t, test.str, test.net.String())
	}
	require.Equal(t, "Unknown BitcoinNet (1)", BitcoinNet(1).String())
}
