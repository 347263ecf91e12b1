package wallet

import (
	"context"
	"errors"

	"github.com/btcsuite/btcd/btcjson"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/chainmakers/multisigtx-cli/chain"
	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/stretchr/testify/mock"
)

// mockChain is a mock implementation of chain.Interface.
type mockChain struct {
	mock.Mock
}

// A compile-time check to ensure that mockChain satisfies the
// chain.Interface interface.
var _ chain.Interface = (*mockChain)(nil)

func (m *mockChain) GetAddressBalance(ctx context.Context,
	addr btcutil.Address) (btcutil.Amount, error) {

	args := m.Called(ctx, addr)
	return args.Get(0).(btcutil.Amount), args.Error(1)
}

func (m *mockChain) GetAddressUtxos(ctx context.Context,
	addr btcutil.Address) ([]chain.UnspentOutput, error) {

	args := m.Called(ctx, addr)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]chain.UnspentOutput), args.Error(1)
}

func (m *mockChain) CreateRawTransaction(ctx context.Context,
	inputs []wire.OutPoint, outputs []chain.Output,
	lockTime uint32) (string, error) {

	args := m.Called(ctx, inputs, outputs, lockTime)
	return args.String(0), args.Error(1)
}

func (m *mockChain) SignRawTransaction(ctx context.Context, txHex string,
	inputs []chain.SignInput,
	keys []*btcutil.WIF) (*btcjson.SignRawTransactionResult, error) {

	args := m.Called(ctx, txHex, inputs, keys)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*btcjson.SignRawTransactionResult), args.Error(1)
}

func (m *mockChain) DecodeRawTransaction(ctx context.Context,
	txHex string) (*btcjson.TxRawDecodeResult, error) {

	args := m.Called(ctx, txHex)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*btcjson.TxRawDecodeResult), args.Error(1)
}

func (m *mockChain) GetPrevOutput(ctx context.Context,
	op wire.OutPoint) (*chain.PrevOutput, error) {

	args := m.Called(ctx, op)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*chain.PrevOutput), args.Error(1)
}

// memWriter is a StateWriter keeping written states in memory.
type memWriter struct {
	states []*MultiSigTx
}

func (w *memWriter) WriteState(tx *MultiSigTx) (string, error) {
	w.states = append(w.states, tx)
	return tx.ID().String() + ".json", nil
}

// failWriter is a StateWriter that always fails.
type failWriter struct{}

func (failWriter) WriteState(*MultiSigTx) (string, error) {
	return "", errors.New("no space left on device")
}

// memJournal is a RoundJournal backed by maps.
type memJournal struct {
	rounds    map[chainhash.Hash]chainhash.Hash
	artifacts map[chainhash.Hash]string
}

func newMemJournal() *memJournal {
	return &memJournal{
		rounds:    make(map[chainhash.Hash]chainhash.Hash),
		artifacts: make(map[chainhash.Hash]string),
	}
}

func (j *memJournal) Successor(
	id chainhash.Hash) (fn.Option[chainhash.Hash], error) {

	child, ok := j.rounds[id]
	if !ok {
		return fn.None[chainhash.Hash](), nil
	}
	return fn.Some(child), nil
}

func (j *memJournal) RecordRound(parent, child chainhash.Hash) error {
	j.rounds[parent] = child
	return nil
}

func (j *memJournal) RecordArtifact(id chainhash.Hash, name string) error {
	j.artifacts[id] = name
	return nil
}

func (j *memJournal) Artifact(id chainhash.Hash) (fn.Option[string], error) {
	name, ok := j.artifacts[id]
	if !ok {
		return fn.None[string](), nil
	}
	return fn.Some(name), nil
}
