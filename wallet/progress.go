package wallet

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/btcjson"
	"github.com/btcsuite/btcd/txscript"
)

// InputProgress reports how far the signing of one input has come.
type InputProgress struct {
	// Input is the index of the input in the transaction.
	Input int

	// Signatures is the number of signatures present.
	Signatures int

	// Required is the number of signatures the redeem script requires.
	Required int

	// Keys is the number of public keys in the redeem script.
	Keys int
}

// Complete returns whether the input carries enough signatures.
func (p InputProgress) Complete() bool {
	return p.Signatures >= p.Required
}

// String returns a short summary such as "input 0: 1 of 2 signatures".
func (p InputProgress) String() string {
	return fmt.Sprintf("input %d: %d of %d signatures (%d keys)", p.Input,
		p.Signatures, p.Required, p.Keys)
}

// SignatureProgress decodes the state's transaction and counts the
// signatures present on every input against the number its redeem script
// requires.  It tells a signer whether the transaction needs more signers or
// whether the last key did not sign anything.
func (c *Coordinator) SignatureProgress(ctx context.Context,
	state *MultiSigTx) ([]InputProgress, error) {

	if err := state.Validate(); err != nil {
		return nil, err
	}

	decoded, err := c.cfg.Chain.DecodeRawTransaction(
		ctx, state.SignedTx.Hex,
	)
	if err != nil {
		return nil, nodeError("decoderawtransaction", err)
	}
	if len(decoded.Vin) != len(state.P2SH) {
		str := fmt.Sprintf("transaction has %d inputs but p2sh has %d "+
			"descriptors", len(decoded.Vin), len(state.P2SH))
		return nil, NewError(ErrInvalidState, str, nil)
	}

	progress := make([]InputProgress, 0, len(decoded.Vin))
	for i, in := range decoded.Vin {
		redeemScript, err := state.P2SH[i].Script()
		if err != nil {
			return nil, NewError(ErrInvalidState, "malformed "+
				"redeem_script", err)
		}
		keys, required, err := txscript.CalcMultiSigStats(redeemScript)
		if err != nil {
			str := fmt.Sprintf("redeem script of input %d is not "+
				"multisig", i)
			return nil, NewError(ErrInvalidState, str, err)
		}

		sigs, err := countSignatures(in.ScriptSig, redeemScript)
		if err != nil {
			str := fmt.Sprintf("signature script of input %d", i)
			return nil, NewError(ErrInvalidState, str, err)
		}

		progress = append(progress, InputProgress{
			Input:      i,
			Signatures: sigs,
			Required:   required,
			Keys:       keys,
		})
	}

	return progress, nil
}

// countSignatures counts the non-empty pushes of a P2SH signature script
// other than the redeem script itself.  An unsigned input has none.
func countSignatures(scriptSig *btcjson.ScriptSig,
	redeemScript []byte) (int, error) {

	if scriptSig == nil || scriptSig.Hex == "" {
		return 0, nil
	}
	script, err := hex.DecodeString(scriptSig.Hex)
	if err != nil {
		return 0, err
	}
	pushes, err := txscript.PushedData(script)
	if err != nil {
		return 0, err
	}

	var n int
	for _, push := range pushes {
		if len(push) == 0 || bytes.Equal(push, redeemScript) {
			continue
		}
		n++
	}
	return n, nil
}
