// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chain

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcjson"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/rpcclient"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/chainmakers/multisigtx-cli/internal/cfgutil"
	"github.com/davecgh/go-spew/spew"
	"github.com/lightningnetwork/lnd/fn/v2"
)

// ErrOutputNotFound is returned when a transaction has no output at the
// requested index.
var ErrOutputNotFound = errors.New("output not found")

// RPCClient represents a client connection to a komodod JSON-RPC server.
// Requests are sent with HTTP POST, one per call.
type RPCClient struct {
	client *rpcclient.Client
}

// A compile-time check to ensure that RPCClient satisfies the chain.Interface
// interface.
var _ Interface = (*RPCClient)(nil)

// RPCClientConfig defines the config options used when initializing the RPC
// Client.
type RPCClientConfig struct {
	// Conn describes the connection configuration parameters for the
	// client.  HTTPPostMode is always enabled.
	Conn *rpcclient.ConnConfig
}

// validate checks the required config options are set.
func (r *RPCClientConfig) validate() error {
	if r == nil {
		return errors.New("missing rpc config")
	}

	// Make sure connection config is supplied.
	if r.Conn == nil {
		return errors.New("missing conn config")
	}

	if r.Conn.Host == "" {
		return errors.New("missing rpc host")
	}

	return nil
}

// NewRPCClientWithConfig creates a client connection to the server based on
// the config options supplied.  No request is made until the first call.
func NewRPCClientWithConfig(cfg *RPCClientConfig) (*RPCClient, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	conn := *cfg.Conn
	conn.HTTPPostMode = true

	client, err := rpcclient.New(&conn, nil)
	if err != nil {
		return nil, err
	}

	return &RPCClient{client: client}, nil
}

// Stop shuts down the underlying client and waits for it to finish.
func (c *RPCClient) Stop() {
	c.client.Shutdown()
	c.client.WaitForShutdown()
}

// call sends a single request and decodes its result into result.
func (c *RPCClient) call(ctx context.Context, result interface{},
	method string, params ...interface{}) error {

	if err := ctx.Err(); err != nil {
		return err
	}

	rawParams := make([]json.RawMessage, 0, len(params))
	for _, p := range params {
		raw, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("%s: marshal params: %w", method, err)
		}
		rawParams = append(rawParams, raw)
	}

	log.Debugf("Calling %s", method)

	resp, err := c.client.RawRequest(method, rawParams)
	if err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}

	log.Tracef("%s returned %v", method, NewLogClosure(func() string {
		return string(resp)
	}))

	if result == nil {
		return nil
	}
	if err := json.Unmarshal(resp, result); err != nil {
		return fmt.Errorf("%s: unexpected result: %w", method, err)
	}

	return nil
}

// addressQuery is the parameter object of the address index calls.
type addressQuery struct {
	Addresses []string `json:"addresses"`
}

// GetAddressBalance returns the balance of addr using getaddressbalance.
func (c *RPCClient) GetAddressBalance(ctx context.Context,
	addr btcutil.Address) (btcutil.Amount, error) {

	var res struct {
		Balance  int64 `json:"balance"`
		Received int64 `json:"received"`
	}
	err := c.call(ctx, &res, "getaddressbalance", addressQuery{
		Addresses: []string{addr.EncodeAddress()},
	})
	if err != nil {
		return 0, err
	}

	return btcutil.Amount(res.Balance), nil
}

// addressUtxo is a single entry of the getaddressutxos result.
type addressUtxo struct {
	Address     string `json:"address"`
	TxID        string `json:"txid"`
	OutputIndex uint32 `json:"outputIndex"`
	Script      string `json:"script"`
	Satoshis    int64  `json:"satoshis"`
	Height      int64  `json:"height"`
}

// GetAddressUtxos lists the unspent outputs of addr using getaddressutxos.
func (c *RPCClient) GetAddressUtxos(ctx context.Context,
	addr btcutil.Address) ([]UnspentOutput, error) {

	var res []addressUtxo
	err := c.call(ctx, &res, "getaddressutxos", addressQuery{
		Addresses: []string{addr.EncodeAddress()},
	})
	if err != nil {
		return nil, err
	}

	utxos := make([]UnspentOutput, 0, len(res))
	for _, u := range res {
		hash, err := chainhash.NewHashFromStr(u.TxID)
		if err != nil {
			return nil, fmt.Errorf("getaddressutxos: txid %q: %w",
				u.TxID, err)
		}
		script, err := hex.DecodeString(u.Script)
		if err != nil {
			return nil, fmt.Errorf("getaddressutxos: script of "+
				"%s:%d: %w", u.TxID, u.OutputIndex, err)
		}
		utxos = append(utxos, UnspentOutput{
			OutPoint: *wire.NewOutPoint(hash, u.OutputIndex),
			Value:    btcutil.Amount(u.Satoshis),
			Script:   script,
			Height:   u.Height,
		})
	}

	log.Debugf("Found %d unspent outputs for %s", len(utxos),
		addr.EncodeAddress())

	return utxos, nil
}

// txInput is an input reference as taken by createrawtransaction.
type txInput struct {
	TxID string `json:"txid"`
	Vout uint32 `json:"vout"`
}

// CreateRawTransaction assembles an unsigned transaction with
// createrawtransaction.  A non-zero lockTime is passed along so the node sets
// nLockTime and non-final input sequences.
func (c *RPCClient) CreateRawTransaction(ctx context.Context,
	inputs []wire.OutPoint, outputs []Output,
	lockTime uint32) (string, error) {

	ins := make([]txInput, 0, len(inputs))
	for _, op := range inputs {
		ins = append(ins, txInput{
			TxID: op.Hash.String(),
			Vout: op.Index,
		})
	}

	params := []interface{}{ins, Outputs(outputs)}
	if lockTime != 0 {
		params = append(params, lockTime)
	}

	var txHex string
	if err := c.call(ctx, &txHex, "createrawtransaction", params...); err != nil {
		return "", err
	}

	return txHex, nil
}

// prevTx describes a previous output to signrawtransaction.  The amount is
// kept raw so it is sent as an exact decimal.
type prevTx struct {
	TxID         string          `json:"txid"`
	Vout         uint32          `json:"vout"`
	ScriptPubKey string          `json:"scriptPubKey"`
	RedeemScript string          `json:"redeemScript"`
	Amount       json.RawMessage `json:"amount"`
}

// SignRawTransaction signs txHex with signrawtransaction.  Each input's
// scriptPubKey is the P2SH script committing to its redeem script.
func (c *RPCClient) SignRawTransaction(ctx context.Context, txHex string,
	inputs []SignInput,
	keys []*btcutil.WIF) (*btcjson.SignRawTransactionResult, error) {

	prevs := make([]prevTx, 0, len(inputs))
	for _, in := range inputs {
		pkScript, err := payToScriptHash(in.RedeemScript)
		if err != nil {
			return nil, err
		}
		prevs = append(prevs, prevTx{
			TxID:         in.OutPoint.Hash.String(),
			Vout:         in.OutPoint.Index,
			ScriptPubKey: hex.EncodeToString(pkScript),
			RedeemScript: hex.EncodeToString(in.RedeemScript),
			Amount: json.RawMessage(
				cfgutil.FormatAmount(in.Amount),
			),
		})
	}

	wifs := make([]string, 0, len(keys))
	for _, k := range keys {
		wifs = append(wifs, k.String())
	}

	var res btcjson.SignRawTransactionResult
	err := c.call(ctx, &res, "signrawtransaction", txHex, prevs, wifs)
	if err != nil {
		return nil, err
	}

	log.Debugf("signrawtransaction complete=%v errors=%d", res.Complete,
		len(res.Errors))
	log.Tracef("signrawtransaction result: %v", NewLogClosure(func() string {
		return spew.Sdump(res.Errors)
	}))

	return &res, nil
}

// DecodeRawTransaction decodes txHex with decoderawtransaction.
func (c *RPCClient) DecodeRawTransaction(ctx context.Context,
	txHex string) (*btcjson.TxRawDecodeResult, error) {

	var res btcjson.TxRawDecodeResult
	if err := c.call(ctx, &res, "decoderawtransaction", txHex); err != nil {
		return nil, err
	}

	log.Tracef("Decoded transaction: %v", NewLogClosure(func() string {
		return spew.Sdump(res)
	}))

	return &res, nil
}

// verboseTx holds the parts of a verbose getrawtransaction result we use.
// Komodo reports the interest accrued by an output next to its value.
type verboseTx struct {
	Vout []struct {
		Value        float64  `json:"value"`
		Interest     *float64 `json:"interest"`
		N            uint32   `json:"n"`
		ScriptPubKey struct {
			Hex string `json:"hex"`
		} `json:"scriptPubKey"`
	} `json:"vout"`
}

// GetPrevOutput looks up the output referenced by op with a verbose
// getrawtransaction.  A missing interest field is reported as None.
func (c *RPCClient) GetPrevOutput(ctx context.Context,
	op wire.OutPoint) (*PrevOutput, error) {

	var res verboseTx
	err := c.call(ctx, &res, "getrawtransaction", op.Hash.String(), 1)
	if err != nil {
		return nil, err
	}

	for _, out := range res.Vout {
		if out.N != op.Index {
			continue
		}

		value, err := btcutil.NewAmount(out.Value)
		if err != nil {
			return nil, fmt.Errorf("getrawtransaction: value of "+
				"%v: %w", op, err)
		}
		script, err := hex.DecodeString(out.ScriptPubKey.Hex)
		if err != nil {
			return nil, fmt.Errorf("getrawtransaction: script of "+
				"%v: %w", op, err)
		}

		interest := fn.None[btcutil.Amount]()
		if out.Interest != nil {
			amt, err := btcutil.NewAmount(*out.Interest)
			if err != nil {
				return nil, fmt.Errorf("getrawtransaction: "+
					"interest of %v: %w", op, err)
			}
			interest = fn.Some(amt)
		}

		return &PrevOutput{
			Value:        value,
			ScriptPubKey: script,
			Interest:     interest,
		}, nil
	}

	return nil, fmt.Errorf("%w: %v", ErrOutputNotFound, op)
}

// payToScriptHash returns the P2SH output script committing to
// redeemScript.
func payToScriptHash(redeemScript []byte) ([]byte, error) {
	return txscript.NewScriptBuilder().
		AddOp(txscript.OP_HASH160).
		AddData(btcutil.Hash160(redeemScript)).
		AddOp(txscript.OP_EQUAL).
		Script()
}
