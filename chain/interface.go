package chain

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/btcsuite/btcd/btcjson"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/wire"
	"github.com/chainmakers/multisigtx-cli/internal/cfgutil"
	"github.com/lightningnetwork/lnd/fn/v2"
)

// ErrDuplicateOutput is returned when a transaction would pay the same
// address twice.  The node takes outputs as a JSON object keyed by address,
// so such a set cannot be expressed.
var ErrDuplicateOutput = errors.New("duplicate output address")

// Interface is the set of node services the signing coordinator depends on.
// It is satisfied by RPCClient, which talks to komodod, and by mocks in
// tests.
//
// Every method checks ctx before reaching out to the node.
type Interface interface {
	// GetAddressBalance returns the confirmed balance of addr as reported
	// by the node's address index.
	GetAddressBalance(ctx context.Context,
		addr btcutil.Address) (btcutil.Amount, error)

	// GetAddressUtxos lists the unspent outputs paying to addr.
	GetAddressUtxos(ctx context.Context,
		addr btcutil.Address) ([]UnspentOutput, error)

	// CreateRawTransaction asks the node to assemble an unsigned
	// transaction spending inputs, in order, to outputs, in order.
	CreateRawTransaction(ctx context.Context, inputs []wire.OutPoint,
		outputs []Output, lockTime uint32) (string, error)

	// SignRawTransaction asks the node to add whatever signatures keys can
	// provide to the hex encoded transaction.
	SignRawTransaction(ctx context.Context, txHex string,
		inputs []SignInput,
		keys []*btcutil.WIF) (*btcjson.SignRawTransactionResult, error)

	// DecodeRawTransaction decodes a hex encoded transaction.
	DecodeRawTransaction(ctx context.Context,
		txHex string) (*btcjson.TxRawDecodeResult, error)

	// GetPrevOutput looks up the output referenced by op using the node's
	// verbose transaction lookup.
	GetPrevOutput(ctx context.Context, op wire.OutPoint) (*PrevOutput, error)
}

// UnspentOutput is an output paying to a watched address as listed by the
// node's address index.
type UnspentOutput struct {
	OutPoint wire.OutPoint
	Value    btcutil.Amount
	Script   []byte
	Height   int64
}

// Output is a single payment of a transaction under construction.
type Output struct {
	Address btcutil.Address
	Amount  btcutil.Amount
}

// Outputs is an ordered set of payments.  It marshals to the JSON object
// expected by createrawtransaction, keeping the slice order.
type Outputs []Output

// MarshalJSON encodes the outputs as an address to amount object with exact
// eight decimal amounts.
func (o Outputs) MarshalJSON() ([]byte, error) {
	seen := make(map[string]struct{}, len(o))

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, out := range o {
		addr := out.Address.EncodeAddress()
		if _, ok := seen[addr]; ok {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateOutput, addr)
		}
		seen[addr] = struct{}{}

		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString(strconv.Quote(addr))
		buf.WriteByte(':')
		buf.WriteString(cfgutil.FormatAmount(out.Amount))
	}
	buf.WriteByte('}')

	return buf.Bytes(), nil
}

// SignInput describes a P2SH input being signed: the output it spends, the
// redeem script behind the output's script hash and the output's value.
type SignInput struct {
	OutPoint     wire.OutPoint
	RedeemScript []byte
	Amount       btcutil.Amount
}

// PrevOutput is a previous transaction output as reported by the verbose
// transaction lookup.
type PrevOutput struct {
	Value        btcutil.Amount
	ScriptPubKey []byte

	// Interest is the accrued bonus the node reports for the output, if
	// any.
	Interest fn.Option[btcutil.Amount]
}
