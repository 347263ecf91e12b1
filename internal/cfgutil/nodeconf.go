package cfgutil

import (
	"fmt"
	"path/filepath"

	"github.com/btcsuite/btcd/btcutil"
	flags "github.com/jessevdk/go-flags"
)

// NodeConfig holds the RPC settings read from a komodod configuration file.
type NodeConfig struct {
	RPCUser     string `long:"rpcuser"`
	RPCPassword string `long:"rpcpassword"`
	RPCPort     string `long:"rpcport"`
	RPCBind     string `long:"rpcbind"`
}

// NodeConfigPath returns the default location of the node configuration
// file.  An empty acName selects the main chain's komodo.conf, otherwise the
// asset chain's <acName>/<acName>.conf is used.
func NodeConfigPath(acName string) string {
	dataDir := btcutil.AppDataDir("komodo", false)
	if acName == "" {
		return filepath.Join(dataDir, "komodo.conf")
	}
	return filepath.Join(dataDir, acName, acName+".conf")
}

// ReadNodeConfig parses the key=value configuration file of a komodod node.
// Keys other than the RPC settings, and repeated keys such as addnode, are
// ignored.
func ReadNodeConfig(path string) (*NodeConfig, error) {
	var cfg NodeConfig
	parser := flags.NewParser(&cfg, flags.IgnoreUnknown)
	err := flags.NewIniParser(parser).ParseFile(path)
	if err != nil {
		return nil, fmt.Errorf("unable to parse node config %s: %w",
			path, err)
	}
	return &cfg, nil
}
