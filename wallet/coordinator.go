// Copyright (c) 2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package wallet coordinates the signing of a transaction spending from a
// multi-signature P2SH address.  Each signer runs one round: the first
// selects inputs, builds and signs the transaction, every later one adds
// signatures to the state handed to it until the node reports the
// transaction complete.
package wallet

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/chainmakers/multisigtx-cli/chain"
	"github.com/chainmakers/multisigtx-cli/wallet/txauthor"
	"github.com/chainmakers/multisigtx-cli/wallet/txrules"
	"github.com/lightningnetwork/lnd/fn/v2"
)

// RoundJournal remembers which signing states have already been resumed.
type RoundJournal interface {
	// Successor returns the ID of the state produced from the state with
	// the given ID, if one was recorded.
	Successor(id chainhash.Hash) (fn.Option[chainhash.Hash], error)

	// RecordRound records that child was produced from parent.
	RecordRound(parent, child chainhash.Hash) error

	// RecordArtifact records the name the state with the given ID was
	// written to.
	RecordArtifact(id chainhash.Hash, name string) error

	// Artifact returns the name the state with the given ID was written
	// to, if one was recorded.
	Artifact(id chainhash.Hash) (fn.Option[string], error)
}

// StateWriter persists a signing state for the next signer and returns a
// name the state can be found under.
type StateWriter interface {
	WriteState(tx *MultiSigTx) (string, error)
}

// Config holds the collaborators and settings of a Coordinator.
type Config struct {
	// Chain is the node service used for every lookup and signature.
	Chain chain.Interface

	// ChainParams selects the address and key encodings accepted.
	ChainParams *chaincfg.Params

	// Policy is the fee and dust policy used to build transactions.
	Policy txrules.Policy

	// CLIName is the node client command that broadcasts a complete
	// transaction, e.g. "komodo-cli".
	CLIName string

	// Journal, if set, is consulted and updated by Resume.
	Journal RoundJournal

	// Now returns the current time.  Defaults to time.Now.
	Now func() time.Time
}

// Coordinator drives the signing state machine.  It holds no state of its
// own between calls.
type Coordinator struct {
	cfg Config
}

// NewCoordinator returns a Coordinator for the given config.
func NewCoordinator(cfg Config) (*Coordinator, error) {
	if cfg.Chain == nil {
		return nil, errors.New("missing chain")
	}
	if cfg.ChainParams == nil {
		return nil, errors.New("missing chain params")
	}
	if cfg.CLIName == "" {
		return nil, errors.New("missing cli name")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Coordinator{cfg: cfg}, nil
}

// CreateRequest describes a new payment out of a multi-signature address.
type CreateRequest struct {
	Destination  btcutil.Address
	Amount       btcutil.Amount
	Source       btcutil.Address
	RedeemScript []byte
	Key          *btcutil.WIF
}

// validate checks the request against the network and the policy.
func (c *Coordinator) validate(req *CreateRequest) error {
	params := c.cfg.ChainParams

	if req.Destination == nil || !req.Destination.IsForNet(params) {
		return NewError(ErrInvalidInput, "destination address is not "+
			"for network "+params.Name, nil)
	}
	source, ok := req.Source.(*btcutil.AddressScriptHash)
	if !ok || !source.IsForNet(params) {
		return NewError(ErrInvalidInput, "source address is not a P2SH "+
			"address for network "+params.Name, nil)
	}
	if req.Destination.EncodeAddress() == source.EncodeAddress() {
		return NewError(ErrInvalidInput, "destination address equals "+
			"source address", nil)
	}
	if err := c.cfg.Policy.CheckOutput(req.Amount); err != nil {
		str := fmt.Sprintf("amount %s is not payable",
			txrules.FormatAmount(req.Amount))
		return NewError(ErrInvalidInput, str, err)
	}
	hash := btcutil.Hash160(req.RedeemScript)
	if !bytes.Equal(hash, source.ScriptAddress()) {
		return NewError(ErrInvalidInput, "redeem script does not hash "+
			"to source address "+source.EncodeAddress(), nil)
	}
	if req.Key == nil || !req.Key.IsForNet(params) {
		return NewError(ErrInvalidInput, "private key is not for "+
			"network "+params.Name, nil)
	}
	return nil
}

// Create builds a new transaction paying req.Amount from req.Source to
// req.Destination and signs it with req.Key.  The source balance is checked
// before any unspent output is fetched.
func (c *Coordinator) Create(ctx context.Context,
	req *CreateRequest) (*MultiSigTx, error) {

	if err := c.validate(req); err != nil {
		return nil, err
	}

	node := c.cfg.Chain
	source := req.Source.EncodeAddress()

	balance, err := node.GetAddressBalance(ctx, req.Source)
	if err != nil {
		return nil, nodeError("getaddressbalance "+source, err)
	}
	if balance < req.Amount {
		str := fmt.Sprintf("balance of %s is %s, need %s", source,
			txrules.FormatAmount(balance),
			txrules.FormatAmount(req.Amount))
		return nil, NewError(ErrInsufficientFunds, str, nil)
	}

	utxos, err := node.GetAddressUtxos(ctx, req.Source)
	if err != nil {
		return nil, nodeError("getaddressutxos "+source, err)
	}
	selected := txauthor.SelectInputs(utxos, req.Amount)

	log.Infof("Selected %d of %d unspent outputs worth %s", len(selected),
		len(utxos), txrules.FormatAmount(txauthor.SumValues(selected)))

	lockTime := txrules.LockTime(c.cfg.Now())
	authored, err := txauthor.NewUnsignedTransaction(
		ctx, node, selected, req.Destination, req.Amount, req.Source,
		c.cfg.Policy, lockTime,
	)
	if err != nil {
		return nil, buildError(err)
	}

	log.Infof("Built transaction paying %s to %s with %s change and %s "+
		"interest (fee %s)", txrules.FormatAmount(req.Amount),
		req.Destination.EncodeAddress(),
		txrules.FormatAmount(authored.Change),
		txrules.FormatAmount(authored.TotalInterest),
		txrules.FormatAmount(authored.Fee()))

	p2sh := make([]RedeemDescriptor, 0, len(authored.Inputs))
	for _, in := range authored.Inputs {
		p2sh = append(p2sh, newDescriptor(
			in.OutPoint, req.RedeemScript, in.Value,
		))
	}

	state := &MultiSigTx{
		SignedTx: SignedTx{Hex: authored.Hex},
		P2SH:     p2sh,
	}
	c.warnIfNotCosigner(state, req.Key)

	signed, err := c.sign(ctx, state, req.Key)
	if err != nil {
		return nil, err
	}
	state.SignedTx = signed
	state.Round = 1

	return state, nil
}

// Resume adds the signatures key can provide to state and returns the next
// state.  state itself is left untouched.  The descriptors are carried over
// unchanged; completeness is decided by the node alone.
func (c *Coordinator) Resume(ctx context.Context, state *MultiSigTx,
	key *btcutil.WIF) (*MultiSigTx, error) {

	if err := state.Validate(); err != nil {
		return nil, err
	}
	if state.SignedTx.Complete {
		return nil, NewError(ErrAlreadyComplete, "transaction is "+
			"already fully signed", nil)
	}
	if key == nil || !key.IsForNet(c.cfg.ChainParams) {
		return nil, NewError(ErrInvalidInput, "private key is not for "+
			"network "+c.cfg.ChainParams.Name, nil)
	}

	id := state.ID()
	if c.cfg.Journal != nil {
		next, err := c.cfg.Journal.Successor(id)
		if err != nil {
			return nil, fmt.Errorf("round journal: %w", err)
		}
		if next.IsSome() {
			return nil, c.staleError(id, next.UnwrapOr(chainhash.Hash{}))
		}
	}
	log.Warnf("State %v is only checked against this machine's journal; "+
		"a copy resumed elsewhere cannot be detected", id)

	c.warnIfNotCosigner(state, key)

	signed, err := c.sign(ctx, state, key)
	if err != nil {
		return nil, err
	}

	p2sh := make([]RedeemDescriptor, len(state.P2SH))
	copy(p2sh, state.P2SH)
	return &MultiSigTx{
		SignedTx: signed,
		P2SH:     p2sh,
		Round:    state.Round + 1,
		Parent:   id.String(),
	}, nil
}

// FinalizeResult is the outcome of a signing round.  Exactly one of
// Command and Artifact is set.
type FinalizeResult struct {
	// Command is the node client invocation broadcasting a complete
	// transaction.
	Command string

	// Artifact names the written state to forward to the next signer.
	Artifact string
}

// Finalize turns state into the round's output.  A complete state yields
// the broadcast command and is not written.  Anything else is written with w
// for the next signer.  Only once the output exists is the consumed parent
// state recorded in the journal, so a failed write can be retried.
func (c *Coordinator) Finalize(state *MultiSigTx,
	w StateWriter) (*FinalizeResult, error) {

	var parent fn.Option[chainhash.Hash]
	if state.Parent != "" {
		h, err := chainhash.NewHashFromStr(state.Parent)
		if err != nil {
			return nil, NewError(ErrInvalidState, "malformed parent",
				err)
		}
		parent = fn.Some(*h)
	}
	id := state.ID()

	if state.SignedTx.Complete {
		c.recordRound(parent, id)
		return &FinalizeResult{
			Command: c.cfg.CLIName + " sendrawtransaction " +
				state.SignedTx.Hex,
		}, nil
	}

	name, err := w.WriteState(state)
	if err != nil {
		return nil, err
	}

	c.recordRound(parent, id)
	if c.cfg.Journal != nil {
		if err := c.cfg.Journal.RecordArtifact(id, name); err != nil {
			log.Warnf("Unable to record hand-off file %s: %v", name,
				err)
		}
	}

	return &FinalizeResult{Artifact: name}, nil
}

// recordRound marks parent as consumed by child.  The round's output already
// exists at this point, so journal failures are only logged.
func (c *Coordinator) recordRound(parent fn.Option[chainhash.Hash],
	child chainhash.Hash) {

	if c.cfg.Journal == nil || parent.IsNone() {
		return
	}
	p := parent.UnwrapOr(chainhash.Hash{})
	if err := c.cfg.Journal.RecordRound(p, child); err != nil {
		log.Errorf("Unable to record state %v as consumed; it can be "+
			"resumed again on this machine: %v", p, err)
	}
}

// staleError reports that the state with the given id was already resumed
// as next, naming the file next was written to when it is known.
func (c *Coordinator) staleError(id, next chainhash.Hash) error {
	str := fmt.Sprintf("state %v was already resumed as %v", id, next)

	name, err := c.cfg.Journal.Artifact(next)
	switch {
	case err != nil:
		log.Warnf("Unable to look up hand-off file of %v: %v", next, err)
	case name.IsSome():
		str += ", written to " + name.UnwrapOr("")
	}

	return NewError(ErrStaleState, str, nil)
}

// sign asks the node to sign the state's transaction with key.
func (c *Coordinator) sign(ctx context.Context, state *MultiSigTx,
	key *btcutil.WIF) (SignedTx, error) {

	inputs, err := state.signInputs()
	if err != nil {
		return SignedTx{}, NewError(ErrInvalidState, "p2sh descriptors "+
			"are malformed", err)
	}

	res, err := c.cfg.Chain.SignRawTransaction(
		ctx, state.SignedTx.Hex, inputs, []*btcutil.WIF{key},
	)
	if err != nil {
		return SignedTx{}, nodeError("signrawtransaction", err)
	}

	for _, e := range res.Errors {
		log.Debugf("Input %s:%d: %s", e.TxID, e.Vout, e.Error)
	}
	log.Infof("Signed transaction, complete=%v", res.Complete)

	return newSignedTx(res), nil
}

// warnIfNotCosigner logs a warning for every redeem script that does not
// list key's public key.
func (c *Coordinator) warnIfNotCosigner(state *MultiSigTx, key *btcutil.WIF) {
	pubKey := key.PrivKey.PubKey()
	seen := make(map[string]struct{})
	for i := range state.P2SH {
		script := state.P2SH[i].RedeemScript
		if _, ok := seen[script]; ok {
			continue
		}
		seen[script] = struct{}{}

		raw, err := state.P2SH[i].Script()
		if err != nil {
			continue
		}
		ok, err := isCosigner(raw, pubKey, c.cfg.ChainParams)
		if err != nil {
			log.Warnf("Redeem script of input %d is not a standard "+
				"multisig script: %v", i, err)
			continue
		}
		if !ok {
			log.Warnf("Key %x is not a cosigner of the redeem "+
				"script of input %d", pubKey.SerializeCompressed(),
				i)
		}
	}
}

// isCosigner returns whether pubKey is one of the public keys of a multisig
// redeem script.
func isCosigner(redeemScript []byte, pubKey *btcec.PublicKey,
	params *chaincfg.Params) (bool, error) {

	class, addrs, _, err := txscript.ExtractPkScriptAddrs(
		redeemScript, params,
	)
	if err != nil {
		return false, err
	}
	if class != txscript.MultiSigTy {
		return false, fmt.Errorf("script class %v", class)
	}

	for _, addr := range addrs {
		pk, ok := addr.(*btcutil.AddressPubKey)
		if ok && pk.PubKey().IsEqual(pubKey) {
			return true, nil
		}
	}
	return false, nil
}

// nodeError wraps a failed node call.
func nodeError(call string, err error) error {
	if errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) {

		return err
	}
	return NewError(ErrNodeService, call+" failed", err)
}

// buildError classifies a transaction build failure.
func buildError(err error) error {
	switch {
	case errors.Is(err, txrules.ErrInsufficientSelectedValue):
		return NewError(ErrInsufficientSelectedValue, "selected outputs "+
			"cannot pay amount and fee", err)

	case errors.Is(err, txrules.ErrOutputIsDust),
		errors.Is(err, txrules.ErrAmountNegative),
		errors.Is(err, txrules.ErrAmountExceedsMax),
		errors.Is(err, chain.ErrDuplicateOutput):

		return NewError(ErrInvalidInput, "transaction outputs are "+
			"invalid", err)

	default:
		return nodeError("transaction assembly", err)
	}
}
