// Copyright (c) 2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wallet

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/btcsuite/btcd/btcjson"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/chainmakers/multisigtx-cli/chain"
)

// SignedTx is a transaction as returned by the node's signer.  It is replaced
// wholesale by every signing round.
type SignedTx struct {
	Hex      string                             `json:"hex"`
	Complete bool                               `json:"complete"`
	Errors   []btcjson.SignRawTransactionError `json:"errors"`
}

// RedeemDescriptor identifies a P2SH input of the transaction and carries
// what the signer needs to sign it: the redeem script and the spent value.
type RedeemDescriptor struct {
	TxID         string         `json:"txid"`
	OutputIndex  uint32         `json:"output_index"`
	RedeemScript string         `json:"redeem_script"`
	Value        btcutil.Amount `json:"value"`
}

// OutPoint returns the output spent by the described input.
func (d *RedeemDescriptor) OutPoint() (wire.OutPoint, error) {
	hash, err := chainhash.NewHashFromStr(d.TxID)
	if err != nil {
		return wire.OutPoint{}, err
	}
	return *wire.NewOutPoint(hash, d.OutputIndex), nil
}

// Script returns the decoded redeem script.
func (d *RedeemDescriptor) Script() ([]byte, error) {
	return hex.DecodeString(d.RedeemScript)
}

// MultiSigTx is the signing state handed from one signer to the next.  The
// descriptors are fixed at creation and ordered like the transaction's
// inputs; only SignedTx changes between rounds.
type MultiSigTx struct {
	SignedTx SignedTx           `json:"signed_tx"`
	P2SH     []RedeemDescriptor `json:"p2sh"`

	// Round counts the signing rounds applied to the transaction.  A
	// recovered transaction starts at zero.
	Round uint32 `json:"round,omitempty"`

	// Parent is the ID of the state this one was produced from.
	Parent string `json:"parent,omitempty"`
}

// ID returns the content id of the state, the double SHA256 of its JSON
// encoding.
func (tx *MultiSigTx) ID() chainhash.Hash {
	b, err := json.Marshal(tx)
	if err != nil {
		// Every field has a fixed JSON encoding.
		panic(err)
	}
	return chainhash.DoubleHashH(b)
}

// Validate checks that the state is usable for another signing round.
func (tx *MultiSigTx) Validate() error {
	if tx.SignedTx.Hex == "" {
		return NewError(ErrInvalidState, "signed_tx has no hex", nil)
	}
	if _, err := hex.DecodeString(tx.SignedTx.Hex); err != nil {
		return NewError(ErrInvalidState, "signed_tx hex is malformed",
			err)
	}
	if len(tx.P2SH) == 0 {
		return NewError(ErrInvalidState, "p2sh has no descriptors", nil)
	}
	for i := range tx.P2SH {
		d := &tx.P2SH[i]
		if _, err := d.OutPoint(); err != nil {
			str := fmt.Sprintf("p2sh[%d] has a malformed txid", i)
			return NewError(ErrInvalidState, str, err)
		}
		script, err := d.Script()
		if err != nil || len(script) == 0 {
			str := fmt.Sprintf("p2sh[%d] has a malformed "+
				"redeem_script", i)
			return NewError(ErrInvalidState, str, err)
		}
		if d.Value <= 0 {
			str := fmt.Sprintf("p2sh[%d] has a non-positive value", i)
			return NewError(ErrInvalidState, str, nil)
		}
	}
	return nil
}

// signInputs converts the descriptors into the node's previous output
// descriptions, keeping their order.
func (tx *MultiSigTx) signInputs() ([]chain.SignInput, error) {
	inputs := make([]chain.SignInput, 0, len(tx.P2SH))
	for i := range tx.P2SH {
		d := &tx.P2SH[i]
		op, err := d.OutPoint()
		if err != nil {
			return nil, err
		}
		script, err := d.Script()
		if err != nil {
			return nil, err
		}
		inputs = append(inputs, chain.SignInput{
			OutPoint:     op,
			RedeemScript: script,
			Amount:       d.Value,
		})
	}
	return inputs, nil
}

// newDescriptor describes an input spending op with the given redeem script.
func newDescriptor(op wire.OutPoint, redeemScript []byte,
	value btcutil.Amount) RedeemDescriptor {

	return RedeemDescriptor{
		TxID:         op.Hash.String(),
		OutputIndex:  op.Index,
		RedeemScript: hex.EncodeToString(redeemScript),
		Value:        value,
	}
}

// newSignedTx copies a signer result.
func newSignedTx(res *btcjson.SignRawTransactionResult) SignedTx {
	return SignedTx{
		Hex:      res.Hex,
		Complete: res.Complete,
		Errors:   res.Errors,
	}
}
