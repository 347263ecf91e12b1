// Copyright (c) 2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package txauthor provides transaction creation code for paying out of a
// multi-signature address.
package txauthor

import (
	"context"
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/wire"
	"github.com/chainmakers/multisigtx-cli/chain"
	"github.com/chainmakers/multisigtx-cli/wallet/txrules"
)

// TxAssembler is the part of the node service needed to build a
// transaction: interest lookups and raw transaction assembly.
type TxAssembler interface {
	GetPrevOutput(ctx context.Context, op wire.OutPoint) (*chain.PrevOutput,
		error)
	CreateRawTransaction(ctx context.Context, inputs []wire.OutPoint,
		outputs []chain.Output, lockTime uint32) (string, error)
}

// AuthoredTx holds the state of a newly-created transaction and the change
// output (if one was added).
type AuthoredTx struct {
	Hex           string
	Inputs        []chain.UnspentOutput
	Outputs       []chain.Output
	TotalInput    btcutil.Amount
	TotalInterest btcutil.Amount
	Change        btcutil.Amount
	ChangeIndex   int // negative if no change
	LockTime      uint32
}

// Fee returns the fee paid by the transaction, which includes any change
// too small for its own output.
func (tx *AuthoredTx) Fee() btcutil.Amount {
	fee := tx.TotalInput + tx.TotalInterest
	for _, out := range tx.Outputs {
		fee -= out.Amount
	}
	return fee
}

// NewUnsignedTransaction creates an unsigned transaction spending selected,
// in order, paying amount to dest.  The interest accrued by every input is
// looked up and returned with the leftover value to changeAddr; the change
// output is skipped when it would be dust.
//
// The node assembles the transaction.  inputs are not checked for being
// unspent, and a shortfall is reported as
// txrules.ErrInsufficientSelectedValue.
func NewUnsignedTransaction(ctx context.Context, a TxAssembler,
	selected []chain.UnspentOutput, dest btcutil.Address,
	amount btcutil.Amount, changeAddr btcutil.Address,
	policy txrules.Policy, lockTime uint32) (*AuthoredTx, error) {

	if err := policy.CheckOutput(amount); err != nil {
		return nil, fmt.Errorf("payment of %s: %w",
			txrules.FormatAmount(amount), err)
	}

	var (
		totalInput    btcutil.Amount
		totalInterest btcutil.Amount
		outPoints     = make([]wire.OutPoint, 0, len(selected))
	)
	for _, u := range selected {
		prev, err := a.GetPrevOutput(ctx, u.OutPoint)
		if err != nil {
			return nil, fmt.Errorf("interest of %v: %w",
				u.OutPoint, err)
		}
		interest := prev.Interest.UnwrapOr(0)

		log.Debugf("Input %v: value %s, interest %s", u.OutPoint,
			txrules.FormatAmount(u.Value),
			txrules.FormatAmount(interest))

		totalInput += u.Value
		totalInterest += interest
		outPoints = append(outPoints, u.OutPoint)
	}

	change, hasChange, err := policy.CalcChange(
		totalInput, amount, totalInterest,
	)
	if err != nil {
		return nil, err
	}

	outputs := []chain.Output{{Address: dest, Amount: amount}}
	changeIndex := -1
	if hasChange {
		changeIndex = len(outputs)
		outputs = append(outputs, chain.Output{
			Address: changeAddr,
			Amount:  change,
		})
	} else {
		log.Debugf("Change of %s is dust, leaving it as fee",
			txrules.FormatAmount(change))
	}

	txHex, err := a.CreateRawTransaction(ctx, outPoints, outputs, lockTime)
	if err != nil {
		return nil, err
	}

	return &AuthoredTx{
		Hex:           txHex,
		Inputs:        selected,
		Outputs:       outputs,
		TotalInput:    totalInput,
		TotalInterest: totalInterest,
		Change:        change,
		ChangeIndex:   changeIndex,
		LockTime:      lockTime,
	}, nil
}
