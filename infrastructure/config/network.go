package config

import (
	"fmt"
	"os"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/jessevdk/go-flags"
	"github.com/pkg/errors"
	"github.com/spvd/spvd/wire"
)

// NetworkFlags holds the network configuration, that is which network is selected.
type NetworkFlags struct {
	Testnet bool `long:"testnet" description:"Use the test network"`
	Regtest bool `long:"regtest" description:"Use the regression test network"`
	Simnet  bool `long:"simnet" description:"Use the simulation test network"`
	Signet  bool `long:"signet" description:"Use the signet test network"`

	ActiveNetParams *chaincfg.Params
}

// ResolveNetwork parses the network command line argument and sets
// ActiveNetParams accordingly. It returns an error if more than one network
// was selected, nil otherwise.
func (networkFlags *NetworkFlags) ResolveNetwork(parser *flags.Parser) error {
	// Default value is main net.
	networkFlags.ActiveNetParams = &chaincfg.MainNetParams

	// Multiple networks can't be selected simultaneously. Count the
	// network flags passed and assign the active network params while
	// we're at it.
	numNets := 0
	if networkFlags.Testnet {
		numNets++
		networkFlags.ActiveNetParams = &chaincfg.TestNet3Params
	}
	if networkFlags.Regtest {
		numNets++
		networkFlags.ActiveNetParams = &chaincfg.RegressionNetParams
	}
	if networkFlags.Simnet {
		numNets++
		networkFlags.ActiveNetParams = &chaincfg.SimNetParams
	}
	if networkFlags.Signet {
		numNets++
		networkFlags.ActiveNetParams = &chaincfg.SigNetParams
	}
	if numNets > 1 {
		err := errors.New("Multiple networks parameters (testnet, regtest, " +
			"simnet, signet) cannot be used together. Please choose only " +
			"one network")
		if parser != nil {
			fmt.Fprintln(os.Stderr, err)
			parser.WriteHelp(os.Stderr)
		}
		return err
	}

	return nil
}

// NetParams returns the ActiveNetParams
func (networkFlags *NetworkFlags) NetParams() *chaincfg.Params {
	return networkFlags.ActiveNetParams
}

// Net returns the magic of the active network.
func (networkFlags *NetworkFlags) Net() wire.BitcoinNet {
	return wire.BitcoinNet(networkFlags.ActiveNetParams.Net)
}
