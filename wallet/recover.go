package wallet

import (
	"context"
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/btcjson"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

// Recover rebuilds a signing state from a partially signed transaction when
// the hand-off file is lost.  Every input must already carry a signature
// script ending in its multisig redeem script; the spent values are looked
// up on the node.  The returned state has round zero and is ready for
// Resume.
func (c *Coordinator) Recover(ctx context.Context,
	txHex string) (*MultiSigTx, error) {

	if _, err := hex.DecodeString(txHex); err != nil {
		return nil, NewError(ErrInvalidInput, "raw transaction is not "+
			"hex", err)
	}

	decoded, err := c.cfg.Chain.DecodeRawTransaction(ctx, txHex)
	if err != nil {
		return nil, nodeError("decoderawtransaction", err)
	}
	if len(decoded.Vin) == 0 {
		return nil, NewError(ErrInvalidInput, "raw transaction has no "+
			"inputs", nil)
	}

	p2sh := make([]RedeemDescriptor, 0, len(decoded.Vin))
	for i, in := range decoded.Vin {
		op, err := vinOutPoint(in)
		if err != nil {
			str := fmt.Sprintf("input %d has no previous output", i)
			return nil, NewError(ErrInvalidInput, str, err)
		}

		redeemScript, err := redeemScriptOf(in)
		if err != nil {
			str := fmt.Sprintf("input %d does not reveal a multisig "+
				"redeem script", i)
			return nil, NewError(ErrInvalidInput, str, err)
		}

		prev, err := c.cfg.Chain.GetPrevOutput(ctx, op)
		if err != nil {
			return nil, nodeError(
				"getrawtransaction "+op.Hash.String(), err,
			)
		}

		p2sh = append(p2sh, newDescriptor(op, redeemScript, prev.Value))
	}

	log.Infof("Recovered %d inputs from raw transaction %s",
		len(p2sh), decoded.Txid)

	return &MultiSigTx{
		SignedTx: SignedTx{Hex: txHex},
		P2SH:     p2sh,
	}, nil
}

// vinOutPoint returns the output spent by a decoded input.
func vinOutPoint(in btcjson.Vin) (wire.OutPoint, error) {
	if in.IsCoinBase() {
		return wire.OutPoint{}, fmt.Errorf("coinbase input")
	}
	hash, err := chainhash.NewHashFromStr(in.Txid)
	if err != nil {
		return wire.OutPoint{}, err
	}
	return *wire.NewOutPoint(hash, in.Vout), nil
}

// redeemScriptOf returns the last data push of a P2SH signature script,
// which must be a standard multisig script.
func redeemScriptOf(in btcjson.Vin) ([]byte, error) {
	sigScript, err := sigScriptOf(in)
	if err != nil {
		return nil, err
	}
	pushes, err := txscript.PushedData(sigScript)
	if err != nil {
		return nil, err
	}
	if len(pushes) == 0 {
		return nil, fmt.Errorf("empty signature script")
	}

	redeemScript := pushes[len(pushes)-1]
	if class := txscript.GetScriptClass(redeemScript); class !=
		txscript.MultiSigTy {

		return nil, fmt.Errorf("script class %v", class)
	}
	return redeemScript, nil
}

// sigScriptOf decodes the signature script of a decoded input.
func sigScriptOf(in btcjson.Vin) ([]byte, error) {
	if in.ScriptSig == nil {
		return nil, nil
	}
	return hex.DecodeString(in.ScriptSig.Hex)
}
