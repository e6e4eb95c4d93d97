// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package config

import (
	"encoding/hex"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/jessevdk/go-flags"
	"github.com/pkg/errors"
	"github.com/spvd/spvd/infrastructure/logger"
	"github.com/spvd/spvd/peer"
	"github.com/spvd/spvd/version"
)

const (
	defaultLogLevel          = "info"
	defaultLogDirname        = "logs"
	defaultLogFilename       = "spvd.log"
	defaultErrLogFilename    = "spvd_err.log"
	defaultFalsePositiveRate = 0.0001

	// DefaultConnectTimeout is the default connection timeout when dialing
	DefaultConnectTimeout = time.Second * 30
)

var (
	// DefaultHomeDir is the default home directory for spvd.
	DefaultHomeDir = btcutil.AppDataDir("spvd", false)

	defaultLogDir = filepath.Join(DefaultHomeDir, defaultLogDirname)
)

// Flags defines the configuration options for spvpeer.
//
// See LoadConfig for details on the configuration load process.
type Flags struct {
	ShowVersion       bool          `short:"V" long:"version" description:"Display version information and exit"`
	LogDir            string        `long:"logdir" description:"Directory to log output."`
	DebugLevel        string        `short:"d" long:"debuglevel" description:"Logging level for all subsystems {trace, debug, info, warn, error, critical} -- You may also specify <subsystem>=<level>,<subsystem2>=<level>,... to set the log level for individual subsystems -- Use show to list available subsystems"`
	Connect           string        `long:"connect" description:"Connect to the specified peer"`
	Listen            string        `long:"listen" description:"Listen for a single incoming connection on the specified interface/port"`
	Proxy             string        `long:"proxy" description:"Connect via SOCKS5 proxy (eg. 127.0.0.1:9050)"`
	ProxyUser         string        `long:"proxyuser" description:"Username for proxy server"`
	ProxyPass         string        `long:"proxypass" default-mask:"-" description:"Password for proxy server"`
	TorIsolation      bool          `long:"torisolation" description:"Enable Tor stream isolation by randomizing user credentials for each connection."`
	ConnectTimeout    time.Duration `long:"connecttimeout" description:"Timeout for dialing the peer. Valid time units are {s, m, h}"`
	HandshakeTimeout  time.Duration `long:"handshaketimeout" description:"Time allowed for the version handshake once the peer has sent its first byte. Valid time units are {s, m, h}"`
	UserAgentComments []string      `long:"uacomment" description:"Comment to add to the user agent -- See BIP 14 for more information."`
	Relay             bool          `long:"relay" description:"Ask the peer to announce transactions before a filter is loaded"`
	StartHeight       int32         `long:"startheight" description:"Best block height to advertise in the version message"`
	TolerateUnknown   bool          `long:"tolerateunknown" description:"Skip messages with unknown commands instead of disconnecting"`
	Watch             []string      `long:"watch" description:"Hex encoded data element to load into the bloom filter sent to the peer"`
	FalsePositiveRate float64       `long:"fprate" description:"False positive rate of the bloom filter built from --watch"`
	AlertPubKeyHex    string        `long:"alertpubkey" description:"Hex encoded public key alert signatures are checked against"`
	Metrics           string        `long:"metrics" description:"Serve prometheus metrics on the specified interface/port"`
	Profile           string        `long:"profile" description:"Enable HTTP profiling on given interface/port"`
	NetworkFlags
}

// Config defines the configuration options for spvpeer.
//
// See LoadConfig for details on the configuration load process.
type Config struct {
	*Flags
	WatchData   [][]byte
	AlertPubKey *btcec.PublicKey
}

// LogFile returns the path of the main log file.
func (cfg *Config) LogFile() string {
	return filepath.Join(cfg.LogDir, defaultLogFilename)
}

// ErrLogFile returns the path of the error log file.
func (cfg *Config) ErrLogFile() string {
	return filepath.Join(cfg.LogDir, defaultErrLogFilename)
}

// cleanAndExpandPath expands environment variables and leading ~ in the
// passed path, cleans the result, and returns it.
func cleanAndExpandPath(path string) string {
	// Expand initial ~ to OS specific home directory.
	if strings.HasPrefix(path, "~") {
		homeDir := filepath.Dir(DefaultHomeDir)
		path = strings.Replace(path, "~", homeDir, 1)
	}

	// NOTE: The os.ExpandEnv doesn't work with Windows-style %VARIABLE%,
	// but they variables can still be expanded via POSIX-style $VARIABLE.
	return filepath.Clean(os.ExpandEnv(path))
}

// normalizeAddress returns addr with defaultPort appended if it does not
// carry a port already.
func normalizeAddress(addr, defaultPort string) (string, error) {
	if _, _, err := net.SplitHostPort(addr); err == nil {
		return addr, nil
	}

	// net.SplitHostPort fails when the port is missing, but it may fail
	// for other reasons too, so the result is checked again.
	addrWithPort := net.JoinHostPort(addr, defaultPort)
	if _, _, err := net.SplitHostPort(addrWithPort); err != nil {
		return "", errors.Wrapf(err, "invalid address %s", addr)
	}
	return addrWithPort, nil
}

// newConfigParser returns a new command line flags parser.
func newConfigParser(cfgFlags *Flags, options flags.Options) *flags.Parser {
	return flags.NewParser(cfgFlags, options)
}

// LoadConfig parses args into a Config.
//
// The configuration proceeds as follows:
//  1. Start with a default config with sane settings
//  2. Parse CLI options and overwrite/add any specified options
//  3. Resolve the network and validate the combination of options
//
// ErrShowVersion is returned when the version flag was given and the caller
// should print the version and exit.
func LoadConfig(args []string) (*Config, error) {
	cfgFlags := &Flags{
		LogDir:            defaultLogDir,
		DebugLevel:        defaultLogLevel,
		ConnectTimeout:    DefaultConnectTimeout,
		HandshakeTimeout:  peer.DefaultHandshakeTimeout,
		FalsePositiveRate: defaultFalsePositiveRate,
	}

	parser := newConfigParser(cfgFlags, flags.HelpFlag)
	_, err := parser.ParseArgs(args)
	if err != nil {
		var flagsErr *flags.Error
		if ok := errors.As(err, &flagsErr); ok && flagsErr.Type == flags.ErrHelp {
			return nil, err
		}
		return nil, errors.Wrap(err, "failed to parse arguments")
	}

	if cfgFlags.ShowVersion {
		return nil, ErrShowVersion
	}

	cfg := &Config{Flags: cfgFlags}

	err = cfg.ResolveNetwork(nil)
	if err != nil {
		return nil, err
	}

	// Special show command to list supported subsystems and exit.
	if cfg.DebugLevel == "show" {
		return nil, errors.Errorf("Supported subsystems %s",
			strings.Join(logger.SupportedSubsystems(), ", "))
	}

	// Parse, validate, and set debug log level(s).
	if err := logger.ParseAndSetDebugLevels(cfg.DebugLevel); err != nil {
		return nil, errors.Wrap(err, "invalid --debuglevel")
	}

	cfg.LogDir = cleanAndExpandPath(cfg.LogDir)
	cfg.LogDir = filepath.Join(cfg.LogDir, cfg.NetParams().Name)

	err = cfg.validate()
	if err != nil {
		return nil, err
	}

	log.Debugf("Loaded configuration for %s", cfg.NetParams().Name)
	return cfg, nil
}

// ErrShowVersion is returned by LoadConfig when the version flag was given.
var ErrShowVersion = errors.New("version requested")

// VersionString is the version line printed for the version flag.
func VersionString() string {
	return fmt.Sprintf("%s version %s", version.Name, version.Version())
}

func (cfg *Config) validate() error {
	// Exactly one of --connect and --listen must be given.
	if (cfg.Connect == "") == (cfg.Listen == "") {
		return errors.New("exactly one of --connect and --listen must be specified")
	}

	defaultPort := cfg.NetParams().DefaultPort
	var err error
	if cfg.Connect != "" {
		cfg.Connect, err = normalizeAddress(cfg.Connect, defaultPort)
		if err != nil {
			return err
		}
	}
	if cfg.Listen != "" {
		cfg.Listen, err = normalizeAddress(cfg.Listen, defaultPort)
		if err != nil {
			return err
		}
	}

	if cfg.Proxy != "" {
		if cfg.Listen != "" {
			return errors.New("--proxy can only be used with --connect")
		}
		cfg.Proxy, err = normalizeAddress(cfg.Proxy, "9050")
		if err != nil {
			return errors.Wrap(err, "invalid --proxy")
		}
	}
	if cfg.TorIsolation && cfg.Proxy == "" {
		return errors.New("--torisolation requires --proxy")
	}

	if cfg.HandshakeTimeout <= 0 {
		return errors.Errorf("--handshaketimeout must be positive, got %s",
			cfg.HandshakeTimeout)
	}
	if cfg.ConnectTimeout <= 0 {
		return errors.Errorf("--connecttimeout must be positive, got %s",
			cfg.ConnectTimeout)
	}
	if cfg.StartHeight < 0 {
		return errors.Errorf("--startheight must not be negative, got %d",
			cfg.StartHeight)
	}

	// Validate the user agent comments against BIP 14.
	for _, uaComment := range cfg.UserAgentComments {
		if strings.ContainsAny(uaComment, "/:()") {
			return errors.New("The following characters must not " +
				"appear in user agent comments: '/', ':', '(', ')'")
		}
	}

	if cfg.FalsePositiveRate <= 0 || cfg.FalsePositiveRate >= 1 {
		return errors.Errorf("--fprate must be between 0 and 1 exclusive, "+
			"got %g", cfg.FalsePositiveRate)
	}
	for _, element := range cfg.Watch {
		data, err := hex.DecodeString(element)
		if err != nil {
			return errors.Wrapf(err, "invalid --watch element %s", element)
		}
		cfg.WatchData = append(cfg.WatchData, data)
	}

	if cfg.AlertPubKeyHex != "" {
		serialized, err := hex.DecodeString(cfg.AlertPubKeyHex)
		if err != nil {
			return errors.Wrap(err, "invalid --alertpubkey")
		}
		cfg.AlertPubKey, err = btcec.ParsePubKey(serialized)
		if err != nil {
			return errors.Wrap(err, "invalid --alertpubkey")
		}
	}

	return nil
}
