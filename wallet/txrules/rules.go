// Copyright (c) 2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package txrules

import (
	"errors"
	"fmt"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/chainmakers/multisigtx-cli/internal/cfgutil"
)

// FormatAmount renders a in whole coins with the KMD unit.
func FormatAmount(a btcutil.Amount) string {
	return cfgutil.FormatAmount(a) + " KMD"
}

const (
	// DefaultFee is the fixed fee paid by every transaction.
	DefaultFee btcutil.Amount = 456

	// DefaultDustThreshold is the largest change amount that is not given
	// its own output.
	DefaultDustThreshold btcutil.Amount = 100

	// LockTimeOffset is subtracted from the current time to form the
	// transaction lock time.  Komodo only pays interest to transactions
	// with a lock time set in the recent past.
	LockTimeOffset = 777 * time.Second

	// MaxAmount is the maximum transaction amount allowed in minor units,
	// the Komodo money supply cap of 200 million coins.
	MaxAmount btcutil.Amount = 200e6 * btcutil.SatoshiPerBitcoin
)

// Transaction rule violations
var (
	ErrAmountNegative   = errors.New("transaction output amount is negative")
	ErrAmountExceedsMax = errors.New("transaction output amount exceeds maximum value")
	ErrOutputIsDust     = errors.New("transaction output is dust")

	// ErrInsufficientSelectedValue is returned when the selected inputs
	// and their interest cannot cover the amount and the fee.
	ErrInsufficientSelectedValue = errors.New("selected inputs do not " +
		"cover amount and fee")
)

// Policy holds the fee and dust settings used to build a transaction.
type Policy struct {
	Fee           btcutil.Amount
	DustThreshold btcutil.Amount
}

// DefaultPolicy returns the policy the network's nodes relay with.
func DefaultPolicy() Policy {
	return Policy{
		Fee:           DefaultFee,
		DustThreshold: DefaultDustThreshold,
	}
}

// IsDust returns whether amount is too small to be worth an output.
func (p Policy) IsDust(amount btcutil.Amount) bool {
	return amount <= p.DustThreshold
}

// CheckOutput performs simple sanity tests on a payment amount.
func (p Policy) CheckOutput(amount btcutil.Amount) error {
	if amount < 0 {
		return ErrAmountNegative
	}
	if amount > MaxAmount {
		return ErrAmountExceedsMax
	}
	if amount < p.DustThreshold {
		return ErrOutputIsDust
	}
	return nil
}

// CalcChange returns the value left over after paying amount and the fee
// from the selected inputs plus their interest.  ok reports whether the
// change deserves its own output.
func (p Policy) CalcChange(selected, amount,
	interest btcutil.Amount) (change btcutil.Amount, ok bool, err error) {

	if selected < 0 || amount < 0 || interest < 0 {
		return 0, false, ErrAmountNegative
	}
	if selected > MaxAmount || amount > MaxAmount || interest > MaxAmount {
		return 0, false, ErrAmountExceedsMax
	}

	// Operands are bounded by MaxAmount so none of these overflow.
	funds := selected + interest
	spend := amount + p.Fee
	if spend > funds {
		return 0, false, fmt.Errorf("%w: need %s, have %s (%s selected "+
			"+ %s interest)", ErrInsufficientSelectedValue,
			FormatAmount(spend), FormatAmount(funds),
			FormatAmount(selected), FormatAmount(interest))
	}

	change = funds - spend
	return change, !p.IsDust(change), nil
}

// LockTime returns the transaction lock time to use for a transaction built
// at now.
func LockTime(now time.Time) uint32 {
	return uint32(now.Add(-LockTimeOffset).Unix())
}
