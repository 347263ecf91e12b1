// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/chainmakers/multisigtx-cli/internal/cfgutil"
	"github.com/chainmakers/multisigtx-cli/netparams"
	"github.com/chainmakers/multisigtx-cli/wallet"
	"github.com/chainmakers/multisigtx-cli/wallet/txrules"
	flags "github.com/jessevdk/go-flags"
)

const (
	defaultConfigFilename = "multisigtx.conf"
	defaultLogLevel       = "info"
	defaultLogDirname     = "logs"
	defaultLogFilename    = "multisigtx.log"
	journalDBName         = "rounds.db"

	// maxFee bounds --fee to one coin.
	maxFee = btcutil.Amount(btcutil.SatoshiPerBitcoin)
)

var (
	appHomeDir        = btcutil.AppDataDir("multisigtx", false)
	defaultConfigFile = filepath.Join(appHomeDir, defaultConfigFilename)
	defaultDataDir    = appHomeDir
	defaultLogDir     = filepath.Join(appHomeDir, defaultLogDirname)
)

type config struct {
	// General application behavior
	ConfigFile *cfgutil.ExplicitString `short:"C" long:"configfile" description:"Path to configuration file"`
	DataDir    string                  `short:"b" long:"datadir" description:"Directory to store the round journal"`
	HandoffDir string                  `long:"handoffdir" description:"Directory to write hand-off files to"`
	NoJournal  bool                    `long:"nojournal" description:"Do not record or check resumed rounds"`
	DebugLevel string                  `short:"d" long:"debuglevel" description:"Logging level {trace, debug, info, warn, error, critical}"`
	LogDir     string                  `long:"logdir" description:"Directory to log output"`

	// Transaction options
	Fee   *cfgutil.AmountFlag `long:"fee" description:"Fixed transaction fee in KMD"`
	RawTx string              `long:"rawtx" description:"Resume signing a partially signed raw transaction instead of a hand-off file"`

	// Node RPC options
	ACName      string                  `long:"acname" description:"Asset chain name; selects its node config and client invocation"`
	NodeConf    string                  `long:"nodeconf" description:"Path to the node's config file to read RPC credentials from"`
	RPCConnect  *cfgutil.ExplicitString `short:"c" long:"rpcconnect" description:"Hostname/IP and port of the node RPC server (default localhost:7771)"`
	RPCUser     string                  `short:"u" long:"rpcuser" description:"Node RPC username"`
	RPCPassword string                  `short:"P" long:"rpcpass" default-mask:"-" description:"Node RPC password; '-' prompts for it"`
	RPCTLS      bool                    `long:"rpctls" description:"Connect to the node RPC server over TLS"`

	params *netparams.Params
}

// cleanAndExpandPath expands environment variables and leading ~ in the
// passed path, cleans the result, and returns it.
func cleanAndExpandPath(path string) string {
	// Expand initial ~ to OS specific home directory.
	if strings.HasPrefix(path, "~") {
		homeDir := filepath.Dir(appHomeDir)
		path = strings.Replace(path, "~", homeDir, 1)
	}

	// NOTE: The os.ExpandEnv doesn't work with Windows cmd.exe-style
	// %VARIABLE%, but they variables can still be expanded via POSIX-style
	// $VARIABLE.
	return filepath.Clean(os.ExpandEnv(path))
}

func defaultConfig() config {
	return config{
		ConfigFile: cfgutil.NewExplicitString(defaultConfigFile),
		DataDir:    defaultDataDir,
		HandoffDir: ".",
		DebugLevel: defaultLogLevel,
		LogDir:     defaultLogDir,
		Fee:        cfgutil.NewAmountFlag(txrules.DefaultFee),
		RPCConnect: cfgutil.NewExplicitString("localhost"),
	}
}

// loadConfig initializes and parses the config using a config file and command
// line options.
//
// The configuration proceeds as follows:
//  1. Start with a default config with sane settings
//  2. Pre-parse the command line to check for an alternative config file
//  3. Load configuration file overwriting defaults with any specified options
//  4. Parse CLI options and overwrite/add any specified options
//  5. Fill missing node RPC settings from the node's own config file
//
// Positional arguments are returned unparsed.
func loadConfig(argv []string) (*config, []string, error) {
	cfg := defaultConfig()

	// Pre-parse the command line options to see if an alternative config
	// file was specified.
	preCfg := cfg
	preParser := flags.NewParser(&preCfg, flags.Default)
	_, err := preParser.ParseArgs(argv)
	if err != nil {
		return nil, nil, err
	}

	// Load additional config from file.  A missing default config file is
	// not an error.
	parser := flags.NewParser(&cfg, flags.Default)
	configFile := cleanAndExpandPath(preCfg.ConfigFile.Value)
	err = flags.NewIniParser(parser).ParseFile(configFile)
	if err != nil {
		var pathErr *os.PathError
		if !errors.As(err, &pathErr) || preCfg.ConfigFile.ExplicitlySet() {
			fmt.Fprintln(os.Stderr, err)
			return nil, nil, err
		}
	}

	// Parse command line options again to ensure they take precedence.
	remainingArgs, err := parser.ParseArgs(argv)
	if err != nil {
		return nil, nil, err
	}

	cfg.DataDir = cleanAndExpandPath(cfg.DataDir)
	cfg.LogDir = cleanAndExpandPath(cfg.LogDir)
	cfg.HandoffDir = cleanAndExpandPath(cfg.HandoffDir)

	usageMessage := "Use multisigtx -h to show usage"

	// Parse, validate, and set debug log level(s).
	if err := parseAndSetDebugLevels(cfg.DebugLevel); err != nil {
		err = wallet.NewError(wallet.ErrInvalidInput,
			"invalid --debuglevel", err)
		fmt.Fprintln(os.Stderr, err)
		fmt.Fprintln(os.Stderr, usageMessage)
		return nil, nil, err
	}

	if cfg.Fee.Amount < 0 || cfg.Fee.Amount > maxFee {
		str := fmt.Sprintf("--fee %s KMD is out of range [0, %s KMD]",
			cfgutil.FormatAmount(cfg.Fee.Amount),
			cfgutil.FormatAmount(maxFee))
		err := wallet.NewError(wallet.ErrInvalidInput, str, nil)
		fmt.Fprintln(os.Stderr, err)
		fmt.Fprintln(os.Stderr, usageMessage)
		return nil, nil, err
	}

	if err := cfg.applyNodeConfig(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return nil, nil, err
	}

	return &cfg, remainingArgs, nil
}

// applyNodeConfig selects the network parameters and fills the RPC
// credentials and port from the node's config file where they were not set
// explicitly.
func (cfg *config) applyNodeConfig() error {
	nodeConfPath := cfg.NodeConf
	if nodeConfPath == "" {
		nodeConfPath = cfgutil.NodeConfigPath(cfg.ACName)
	}
	nodeConfPath = cleanAndExpandPath(nodeConfPath)

	nodeCfg := &cfgutil.NodeConfig{}
	exists, err := cfgutil.FileExists(nodeConfPath)
	if err != nil {
		return err
	}
	switch {
	case exists:
		nodeCfg, err = cfgutil.ReadNodeConfig(nodeConfPath)
		if err != nil {
			return err
		}
	case cfg.NodeConf != "":
		return fmt.Errorf("node config file %s does not exist",
			nodeConfPath)
	}

	if cfg.RPCUser == "" {
		cfg.RPCUser = nodeCfg.RPCUser
	}
	if cfg.RPCPassword == "" {
		cfg.RPCPassword = nodeCfg.RPCPassword
	}

	params := netparams.MainNetParams
	if cfg.ACName != "" {
		params = netparams.AssetChainParams(cfg.ACName, nodeCfg.RPCPort)
	}
	if nodeCfg.RPCPort != "" {
		params.RPCServerPort = nodeCfg.RPCPort
	}
	cfg.params = &params

	if params.RPCServerPort == "" && !cfg.RPCConnect.ExplicitlySet() {
		return fmt.Errorf("no RPC port known for asset chain %s; set "+
			"rpcport in %s or use --rpcconnect", cfg.ACName,
			nodeConfPath)
	}
	rpcConnect, err := cfgutil.NormalizeAddress(
		cfg.RPCConnect.Value, params.RPCServerPort,
	)
	if err != nil {
		return fmt.Errorf("invalid rpcconnect network address %q: %w",
			cfg.RPCConnect.Value, err)
	}
	cfg.RPCConnect.Value = rpcConnect

	return nil
}
