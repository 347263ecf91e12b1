// Copyright (c) 2013-2015 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package netparams

import (
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/wire"
)

// Params is used to group parameters for various networks such as the main
// network and asset chains.
type Params struct {
	*chaincfg.Params
	RPCServerPort string

	// CLIName is the node's command line client used to broadcast a
	// finished transaction.
	CLIName string
}

// MainNetParams contains parameters specific to running against komodod on
// the main Komodo network.
var MainNetParams = Params{
	Params:        komodoParams(),
	RPCServerPort: "7771",
	CLIName:       "komodo-cli",
}

// komodoParams derives the Komodo address and key encodings from the bitcoin
// main network parameters.  Only the fields used for address, script and key
// encoding are meaningful; consensus fields are inherited and unused.
func komodoParams() *chaincfg.Params {
	params := chaincfg.MainNetParams
	params.Name = "komodo"
	params.Net = wire.BitcoinNet(0x8de4eef9)
	params.DefaultPort = "7770"
	params.DNSSeeds = nil
	params.Checkpoints = nil

	params.PubKeyHashAddrID = 0x3c // R
	params.ScriptHashAddrID = 0x55 // b
	params.PrivateKeyID = 0xbc
	params.WitnessPubKeyHashAddrID = 0x00
	params.WitnessScriptHashAddrID = 0x00
	params.Bech32HRPSegwit = ""

	params.HDCoinType = 141

	return &params
}

// AssetChainParams returns parameters for a Komodo asset chain.  Asset chains
// share the main network's address encodings but listen on their own RPC
// port, which is read from the chain's configuration file.
func AssetChainParams(name, rpcPort string) Params {
	return Params{
		Params:        MainNetParams.Params,
		RPCServerPort: rpcPort,
		CLIName:       "komodo-cli -ac_name=" + name,
	}
}
