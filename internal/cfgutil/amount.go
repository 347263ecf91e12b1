// Copyright (c) 2015-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package cfgutil

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/btcsuite/btcd/btcutil"
)

const (
	// coinDecimals is the number of decimal places of one coin, i.e. a
	// coin is 10^8 minor units.
	coinDecimals = 8

	maxWholeCoins = math.MaxInt64 / int64(btcutil.SatoshiPerBitcoin)
)

var (
	// ErrEmptyAmount is returned when an amount string holds no digits.
	ErrEmptyAmount = errors.New("amount is empty")

	// ErrNegativeAmount is returned when an amount string is negative.
	ErrNegativeAmount = errors.New("amount is negative")

	// ErrAmountOverflow is returned when an amount does not fit into a
	// 64-bit count of minor units.
	ErrAmountOverflow = errors.New("amount overflows")
)

// ParseAmount converts a decimal coin amount such as "1.5" into minor units.
// Digits past the eighth decimal place are truncated rather than rounded and
// no floating point arithmetic is involved, so "0.29" is exactly 29000000.
func ParseAmount(value string) (btcutil.Amount, error) {
	value = strings.TrimSpace(value)
	if strings.HasPrefix(value, "-") {
		return 0, ErrNegativeAmount
	}

	whole, frac, _ := strings.Cut(value, ".")
	if whole == "" && frac == "" {
		return 0, ErrEmptyAmount
	}
	if !isDigits(whole) || !isDigits(frac) {
		return 0, fmt.Errorf("invalid amount %q", value)
	}

	if len(frac) > coinDecimals {
		frac = frac[:coinDecimals]
	}
	frac += strings.Repeat("0", coinDecimals-len(frac))

	var units uint64
	if whole != "" {
		w, err := strconv.ParseUint(whole, 10, 64)
		if err != nil {
			return 0, ErrAmountOverflow
		}
		if w > uint64(maxWholeCoins) {
			return 0, ErrAmountOverflow
		}
		units = w * btcutil.SatoshiPerBitcoin
	}

	f, err := strconv.ParseUint(frac, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q", value)
	}
	units += f
	if units > math.MaxInt64 {
		return 0, ErrAmountOverflow
	}

	return btcutil.Amount(units), nil
}

// FormatAmount renders minor units as an exact decimal coin string with eight
// decimal places, the form expected by the node's RPC interface.
func FormatAmount(a btcutil.Amount) string {
	sign := ""
	units := int64(a)
	if units < 0 {
		sign = "-"
		units = -units
	}
	return fmt.Sprintf("%s%d.%08d", sign, units/btcutil.SatoshiPerBitcoin,
		units%btcutil.SatoshiPerBitcoin)
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// AmountFlag embeds a btcutil.Amount and implements the flags.Marshaler and
// Unmarshaler interfaces so it can be used as a config struct field.
type AmountFlag struct {
	btcutil.Amount
}

// NewAmountFlag creates an AmountFlag with a default btcutil.Amount.
func NewAmountFlag(defaultValue btcutil.Amount) *AmountFlag {
	return &AmountFlag{defaultValue}
}

// MarshalFlag satisfies the flags.Marshaler interface.
func (a *AmountFlag) MarshalFlag() (string, error) {
	return FormatAmount(a.Amount), nil
}

// UnmarshalFlag satisfies the flags.Unmarshaler interface.
func (a *AmountFlag) UnmarshalFlag(value string) error {
	value = strings.TrimSuffix(value, " KMD")
	amount, err := ParseAmount(value)
	if err != nil {
		return err
	}
	a.Amount = amount
	return nil
}
