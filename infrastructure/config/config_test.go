package config

import (
	"encoding/hex"
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/jessevdk/go-flags"
	"github.com/pkg/errors"
	"github.com/spvd/spvd/wire"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig([]string{"--connect=10.0.0.1"})
	require.NoError(t, err)

	require.Equal(t, &chaincfg.MainNetParams, cfg.NetParams())
	require.Equal(t, wire.MainNet, cfg.Net())
	require.Equal(t, "10.0.0.1:8333", cfg.Connect)
	require.Equal(t, 20*time.Second, cfg.HandshakeTimeout)
	require.Equal(t, DefaultConnectTimeout, cfg.ConnectTimeout)
	require.False(t, cfg.Relay)
	require.Nil(t, cfg.AlertPubKey)
	require.Empty(t, cfg.WatchData)
	require.Contains(t, cfg.LogFile(), "mainnet")
}

func TestResolveNetwork(t *testing.T) {
	tests := []struct {
		args []string
		net  wire.BitcoinNet
		port string
	}{
		{[]string{"--testnet"}, wire.TestNet3, "18333"},
		{[]string{"--regtest"}, wire.TestNet, "18444"},
		{[]string{"--simnet"}, wire.SimNet, "18555"},
		{[]string{"--signet"}, wire.SigNet, "38333"},
	}
	for _, test := range tests {
		args := append([]string{"--listen=127.0.0.1"}, test.args...)
		cfg, err := LoadConfig(args)
		require.NoError(t, err, "args %v", test.args)
		require.Equal(t, test.net, cfg.Net(), "args %v", test.args)
		require.Equal(t, "127.0.0.1:"+test.port, cfg.Listen, "args %v", test.args)
	}

	_, err := LoadConfig([]string{"--connect=10.0.0.1", "--testnet", "--simnet"})
	require.Error(t, err)
}

func TestLoadConfigWatchAndAlertKey(t *testing.T) {
	privKey, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	pubKeyHex := hex.EncodeToString(privKey.PubKey().SerializeCompressed())

	cfg, err := LoadConfig([]string{
		"--simnet", "--connect=10.0.0.1:1234", "--watch=00ff", "--watch=abcdef",
		"--alertpubkey=" + pubKeyHex, "--handshaketimeout=5s", "--uacomment=test",
	})
	require.NoError(t, err)
	require.Equal(t, [][]byte{{0x00, 0xff}, {0xab, 0xcd, 0xef}}, cfg.WatchData)
	require.True(t, cfg.AlertPubKey.IsEqual(privKey.PubKey()))
	require.Equal(t, 5*time.Second, cfg.HandshakeTimeout)
	require.Equal(t, "10.0.0.1:1234", cfg.Connect)
}

func TestLoadConfigInvalid(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"neither connect nor listen", nil},
		{"both connect and listen", []string{"--connect=10.0.0.1", "--listen=:8333"}},
		{"proxy with listen", []string{"--listen=:8333", "--proxy=127.0.0.1"}},
		{"tor isolation without proxy", []string{"--connect=10.0.0.1", "--torisolation"}},
		{"zero handshake timeout", []string{"--connect=10.0.0.1", "--handshaketimeout=0s"}},
		{"negative start height", []string{"--connect=10.0.0.1", "--startheight=-1"}},
		{"bad user agent comment", []string{"--connect=10.0.0.1", "--uacomment=a/b"}},
		{"bad watch element", []string{"--connect=10.0.0.1", "--watch=xyz"}},
		{"bad false positive rate", []string{"--connect=10.0.0.1", "--fprate=1"}},
		{"bad alert key", []string{"--connect=10.0.0.1", "--alertpubkey=0102"}},
		{"bad debug level", []string{"--connect=10.0.0.1", "--debuglevel=loud"}},
		{"unknown flag", []string{"--connect=10.0.0.1", "--nosuchflag"}},
	}
	for _, test := range tests {
		_, err := LoadConfig(test.args)
		require.Error(t, err, test.name)
	}
}

func TestLoadConfigHelpAndVersion(t *testing.T) {
	_, err := LoadConfig([]string{"--version"})
	require.ErrorIs(t, err, ErrShowVersion)
	require.Contains(t, VersionString(), "spvd version")

	_, err = LoadConfig([]string{"--help"})
	var flagsErr *flags.Error
	require.True(t, errors.As(err, &flagsErr))
	require.Equal(t, flags.ErrHelp, flagsErr.Type)
}

func TestNormalizeAddress(t *testing.T) {
	tests := []struct {
		addr string
		want string
	}{
		{"10.0.0.1", "10.0.0.1:8333"},
		{"10.0.0.1:1", "10.0.0.1:1"},
		{"::1", "[::1]:8333"},
		{"[::1]:2", "[::1]:2"},
		{"example.com", "example.com:8333"},
	}
	for _, test := range tests {
		got, err := normalizeAddress(test.addr, "8333")
		require.NoError(t, err)
		require.Equal(t, test.want, got)
	}
}
