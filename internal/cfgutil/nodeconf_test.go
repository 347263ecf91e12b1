package cfgutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestReadNodeConfig checks that RPC settings are picked out of a typical
// komodo.conf and everything else is ignored.
func TestReadNodeConfig(t *testing.T) {
	t.Parallel()

	conf := strings.Join([]string{
		"rpcuser=alice",
		"rpcpassword=hunter2",
		"txindex=1",
		"addnode=5.9.102.210",
		"addnode=78.47.196.146",
		"rpcport=7771",
		"server=1",
		"",
	}, "\n")

	path := filepath.Join(t.TempDir(), "komodo.conf")
	require.NoError(t, os.WriteFile(path, []byte(conf), 0600))

	cfg, err := ReadNodeConfig(path)
	require.NoError(t, err)
	require.Equal(t, "alice", cfg.RPCUser)
	require.Equal(t, "hunter2", cfg.RPCPassword)
	require.Equal(t, "7771", cfg.RPCPort)
}

// TestReadNodeConfigMissing checks that a missing file is reported.
func TestReadNodeConfigMissing(t *testing.T) {
	t.Parallel()

	_, err := ReadNodeConfig(filepath.Join(t.TempDir(), "nope.conf"))
	require.Error(t, err)
}

// TestNodeConfigPath checks main chain and asset chain locations.
func TestNodeConfigPath(t *testing.T) {
	t.Parallel()

	require.Equal(t, "komodo.conf", filepath.Base(NodeConfigPath("")))

	p := NodeConfigPath("DEX")
	require.Equal(t, "DEX.conf", filepath.Base(p))
	require.Equal(t, "DEX", filepath.Base(filepath.Dir(p)))
}

// TestNormalizeAddress checks that the default port is only added when
// missing.
func TestNormalizeAddress(t *testing.T) {
	t.Parallel()

	addr, err := NormalizeAddress("127.0.0.1", "7771")
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1:7771", addr)

	addr, err = NormalizeAddress("node.local:1234", "7771")
	require.NoError(t, err)
	require.Equal(t, "node.local:1234", addr)
}
