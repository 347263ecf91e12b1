package main

import (
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/chainmakers/multisigtx-cli/internal/cfgutil"
	"github.com/chainmakers/multisigtx-cli/wallet"
)

const usage = `usage:
  multisigtx [options] <destination> <amount> <source> <redeem_script_hex> <wif>
  multisigtx [options] <handoff_file> <wif>
  multisigtx [options] --rawtx=<hex> <wif>

Passing - as <wif> prompts for the key.`

// mode is the kind of round requested on the command line.
type mode int

const (
	// modeCreate starts a new transaction.
	modeCreate mode = iota

	// modeResume signs a hand-off file.
	modeResume

	// modeRecover signs a raw partially signed transaction.
	modeRecover
)

// invocation is a parsed command line.
type invocation struct {
	mode        mode
	create      *wallet.CreateRequest
	handoffPath string
	rawTx       string
	key         *btcutil.WIF
}

// secretReader prompts for a secret.
type secretReader func(what string) (string, error)

// invalidInput returns a validation error naming the offending argument.
func invalidInput(format string, args ...interface{}) error {
	return wallet.NewError(wallet.ErrInvalidInput, fmt.Sprintf(format, args...),
		nil)
}

// parseInvocation validates the positional arguments.  The argument count
// picks the mode: five start a new transaction, two resume a hand-off file
// and one resumes the transaction given with --rawtx.
func parseInvocation(args []string, rawTx string, params *chaincfg.Params,
	readSecret secretReader) (*invocation, error) {

	var inv invocation
	switch {
	case rawTx != "" && len(args) == 1:
		inv.mode = modeRecover
		inv.rawTx = rawTx

	case rawTx != "":
		return nil, invalidInput("--rawtx takes exactly one argument, "+
			"the private key; got %d\n%s", len(args), usage)

	case len(args) == 2:
		inv.mode = modeResume
		inv.handoffPath = args[0]

	case len(args) == 5:
		inv.mode = modeCreate

	default:
		return nil, invalidInput("wrong number of arguments: %d\n%s",
			len(args), usage)
	}

	key, err := parseKey(args[len(args)-1], params, readSecret)
	if err != nil {
		return nil, err
	}
	inv.key = key

	if inv.mode == modeCreate {
		inv.create, err = parseCreate(args, params)
		if err != nil {
			return nil, err
		}
		inv.create.Key = key
	}

	return &inv, nil
}

// parseCreate parses the destination, amount, source and redeem script of a
// new transaction.
func parseCreate(args []string, params *chaincfg.Params) (*wallet.CreateRequest,
	error) {

	dest, err := btcutil.DecodeAddress(args[0], params)
	if err != nil || !dest.IsForNet(params) {
		return nil, invalidInput("invalid destination address %q",
			args[0])
	}

	amount, err := cfgutil.ParseAmount(args[1])
	if err != nil {
		return nil, wallet.NewError(wallet.ErrInvalidInput,
			fmt.Sprintf("invalid amount %q", args[1]), err)
	}

	source, err := btcutil.DecodeAddress(args[2], params)
	if err != nil || !source.IsForNet(params) {
		return nil, invalidInput("invalid source address %q", args[2])
	}

	redeemScript, err := hex.DecodeString(args[3])
	if err != nil || len(redeemScript) == 0 {
		return nil, invalidInput("invalid redeem script hex")
	}

	return &wallet.CreateRequest{
		Destination:  dest,
		Amount:       amount,
		Source:       source,
		RedeemScript: redeemScript,
	}, nil
}

// parseKey decodes a WIF private key, prompting for it when s is "-".
func parseKey(s string, params *chaincfg.Params,
	readSecret secretReader) (*btcutil.WIF, error) {

	if s == "-" {
		var err error
		s, err = readSecret("WIF private key")
		if err != nil {
			return nil, wallet.NewError(wallet.ErrInvalidInput,
				"cannot read private key", err)
		}
	}

	key, err := btcutil.DecodeWIF(s)
	if err != nil {
		return nil, wallet.NewError(wallet.ErrInvalidInput,
			"invalid WIF private key", err)
	}
	if !key.IsForNet(params) {
		return nil, invalidInput("private key is not for network %s",
			params.Name)
	}
	return key, nil
}
