package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/btcsuite/btcd/btcjson"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/chainmakers/multisigtx-cli/chain"
	"github.com/chainmakers/multisigtx-cli/handoff"
	"github.com/chainmakers/multisigtx-cli/internal/cfgutil"
	"github.com/chainmakers/multisigtx-cli/netparams"
	"github.com/chainmakers/multisigtx-cli/wallet"
	"github.com/chainmakers/multisigtx-cli/wallet/txrules"
	flags "github.com/jessevdk/go-flags"
	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/stretchr/testify/require"
)

// TestExitCode checks the mapping from error kinds to exit codes.
func TestExitCode(t *testing.T) {
	t.Parallel()

	wrapped := fmt.Errorf("round: %w",
		wallet.NewError(wallet.ErrStaleState, "stale", nil))

	tests := []struct {
		err  error
		want int
	}{
		{nil, exitOK},
		{&flags.Error{Type: flags.ErrHelp}, exitOK},
		{&flags.Error{Type: flags.ErrUnknownFlag}, exitValidation},
		{wallet.NewError(wallet.ErrInvalidInput, "", nil), exitValidation},
		{wallet.NewError(wallet.ErrInvalidState, "", nil), exitState},
		{wallet.NewError(wallet.ErrAlreadyComplete, "", nil), exitState},
		{wrapped, exitState},
		{wallet.NewError(wallet.ErrNodeService, "", nil), exitNode},
		{wallet.NewError(wallet.ErrInsufficientFunds, "", nil), exitNode},
		{
			wallet.NewError(wallet.ErrInsufficientSelectedValue, "", nil),
			exitArithmetic,
		},
		{errors.New("disk full"), exitFailure},
	}

	for _, test := range tests {
		require.Equal(t, test.want, exitCode(test.err), "%v", test.err)
	}
}

// TestParseAndSetDebugLevels checks global and per-subsystem levels.
func TestParseAndSetDebugLevels(t *testing.T) {
	require.NoError(t, parseAndSetDebugLevels("debug"))
	require.NoError(t, parseAndSetDebugLevels("WLLT=trace,RPCC=warn"))
	require.Error(t, parseAndSetDebugLevels("loud"))
	require.Error(t, parseAndSetDebugLevels("NOPE=debug"))
	require.Error(t, parseAndSetDebugLevels("WLLT=loud"))
	require.NoError(t, parseAndSetDebugLevels(defaultLogLevel))
}

// TestLoadConfigNodeConf checks that RPC settings are read from the node's
// config file unless given on the command line.
func TestLoadConfigNodeConf(t *testing.T) {
	dir := t.TempDir()
	nodeConf := filepath.Join(dir, "DEX.conf")
	require.NoError(t, os.WriteFile(nodeConf, []byte(
		"rpcuser=alice\nrpcpassword=secret\nrpcport=11890\n",
	), 0600))

	cfg, args, err := loadConfig([]string{
		"--configfile=" + filepath.Join(dir, "none.conf"),
		"--acname=DEX", "--nodeconf=" + nodeConf, "--rpcuser=bob",
		"--fee=0.00001", "round.json", "-",
	})
	require.Error(t, err)
	require.Nil(t, cfg)
	require.Nil(t, args)

	cfg, args, err = loadConfig([]string{
		"--acname=DEX", "--nodeconf=" + nodeConf, "--rpcuser=bob",
		"--fee=0.00001", "--logdir=" + dir, "round.json", "-",
	})
	require.NoError(t, err)
	require.Equal(t, []string{"round.json", "-"}, args)
	require.Equal(t, "bob", cfg.RPCUser)
	require.Equal(t, "secret", cfg.RPCPassword)
	require.Equal(t, "localhost:11890", cfg.RPCConnect.Value)
	require.Equal(t, "komodo-cli -ac_name=DEX", cfg.params.CLIName)
	require.Equal(t, btcutil.Amount(1000), cfg.Fee.Amount)

	_, _, err = loadConfig([]string{
		"--nodeconf=" + filepath.Join(dir, "missing.conf"),
	})
	require.Error(t, err)

	_, _, err = loadConfig([]string{
		"--nodeconf=" + nodeConf, "--fee=2",
	})
	require.Error(t, err)
}

// fakeNode answers chain calls for a single signing flow.  The transaction
// becomes complete with the completeAt-th signing call, or never when
// completeAt is zero.
type fakeNode struct {
	utxo       chain.UnspentOutput
	signs      int
	completeAt int
}

var _ chain.Interface = (*fakeNode)(nil)

func (n *fakeNode) GetAddressBalance(context.Context,
	btcutil.Address) (btcutil.Amount, error) {

	return n.utxo.Value, nil
}

func (n *fakeNode) GetAddressUtxos(context.Context,
	btcutil.Address) ([]chain.UnspentOutput, error) {

	return []chain.UnspentOutput{n.utxo}, nil
}

func (n *fakeNode) CreateRawTransaction(context.Context, []wire.OutPoint,
	[]chain.Output, uint32) (string, error) {

	return "0400", nil
}

func (n *fakeNode) SignRawTransaction(_ context.Context, txHex string,
	_ []chain.SignInput,
	_ []*btcutil.WIF) (*btcjson.SignRawTransactionResult, error) {

	n.signs++
	return &btcjson.SignRawTransactionResult{
		Hex:      fmt.Sprintf("%s%02x", txHex, n.signs),
		Complete: n.signs == n.completeAt,
	}, nil
}

func (n *fakeNode) DecodeRawTransaction(context.Context,
	string) (*btcjson.TxRawDecodeResult, error) {

	return nil, errors.New("decoderawtransaction unavailable")
}

func (n *fakeNode) GetPrevOutput(context.Context,
	wire.OutPoint) (*chain.PrevOutput, error) {

	return &chain.PrevOutput{
		Value:    n.utxo.Value,
		Interest: fn.None[btcutil.Amount](),
	}, nil
}

func newFakeNode(completeAt int) *fakeNode {
	return &fakeNode{
		utxo: chain.UnspentOutput{
			OutPoint: wire.OutPoint{Hash: chainhash.Hash{1}},
			Value:    300000000,
		},
		completeAt: completeAt,
	}
}

// TestSignRound runs a 2-of-2 payment through creation and one resumed
// round, checking the printed results and the journal.
func TestSignRound(t *testing.T) {
	f := newCLIFixture(t)
	dir := t.TempDir()
	ctx := context.Background()

	params := netparams.MainNetParams
	cfg := &config{
		HandoffDir: dir,
		Fee:        cfgutil.NewAmountFlag(txrules.DefaultFee),
		params:     &params,
	}

	journal, err := handoff.OpenJournal(
		filepath.Join(dir, journalDBName), handoff.DefaultDBTimeout,
	)
	require.NoError(t, err)
	defer journal.Close()

	node := newFakeNode(2)

	inv, err := parseInvocation(f.createArgs("1"), "", testParams, noSecret)
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, signRound(ctx, cfg, inv, node, journal, &out))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	artifact := lines[0]
	require.Equal(t, dir, filepath.Dir(artifact))
	require.Contains(t, lines[1], "Forward this file")

	state, err := handoff.Load(artifact)
	require.NoError(t, err)
	require.Equal(t, uint32(1), state.Round)
	require.Equal(t, "040001", state.SignedTx.Hex)

	recorded, err := journal.Artifact(state.ID())
	require.NoError(t, err)
	require.Equal(t, artifact, recorded.UnwrapOr(""))

	inv, err = parseInvocation(
		[]string{artifact, f.keys[1].String()}, "", testParams, noSecret,
	)
	require.NoError(t, err)

	out.Reset()
	require.NoError(t, signRound(ctx, cfg, inv, node, journal, &out))
	require.Equal(t, "komodo-cli sendrawtransaction 04000102\n",
		out.String())

	// The consumed state cannot be resumed again.
	out.Reset()
	err = signRound(ctx, cfg, inv, node, journal, &out)
	require.True(t, wallet.IsError(err, wallet.ErrStaleState))
	require.Equal(t, exitState, exitCode(err))
	require.Empty(t, out.String())
}

// TestSignRoundRetryAfterWriteFailure checks that a round whose hand-off file
// could not be written can be repeated once the problem is fixed.
func TestSignRoundRetryAfterWriteFailure(t *testing.T) {
	f := newCLIFixture(t)
	dir := t.TempDir()
	ctx := context.Background()

	params := netparams.MainNetParams
	cfg := &config{
		HandoffDir: dir,
		Fee:        cfgutil.NewAmountFlag(txrules.DefaultFee),
		params:     &params,
	}

	journal, err := handoff.OpenJournal(
		filepath.Join(dir, journalDBName), handoff.DefaultDBTimeout,
	)
	require.NoError(t, err)
	defer journal.Close()

	node := newFakeNode(0)

	inv, err := parseInvocation(f.createArgs("1"), "", testParams, noSecret)
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, signRound(ctx, cfg, inv, node, journal, &out))
	artifact := strings.Split(out.String(), "\n")[0]

	inv, err = parseInvocation(
		[]string{artifact, f.keys[1].String()}, "", testParams, noSecret,
	)
	require.NoError(t, err)

	// The hand-off directory does not exist.
	out.Reset()
	cfg.HandoffDir = filepath.Join(dir, "typo", "nope")
	err = signRound(ctx, cfg, inv, node, journal, &out)
	require.ErrorIs(t, err, os.ErrNotExist)
	require.Equal(t, exitFailure, exitCode(err))
	require.Empty(t, out.String())

	// The input file was not consumed by the failed round.
	out.Reset()
	cfg.HandoffDir = dir
	require.NoError(t, signRound(ctx, cfg, inv, node, journal, &out))
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	next := lines[0]
	require.NotEqual(t, artifact, next)

	// Now it is, and the error points at the file written instead.
	out.Reset()
	err = signRound(ctx, cfg, inv, node, journal, &out)
	require.True(t, wallet.IsError(err, wallet.ErrStaleState))
	require.ErrorContains(t, err, next)
}

// captureStderr returns what f wrote to stderr.
func captureStderr(t *testing.T, f func()) string {
	t.Helper()

	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer r.Close()

	oldStderr := os.Stderr
	os.Stderr = w
	f()
	os.Stderr = oldStderr
	require.NoError(t, w.Close())

	b, err := io.ReadAll(r)
	require.NoError(t, err)
	return string(b)
}

// TestRunConfigErrors checks that option errors found after parsing are
// reported on stderr with the matching exit code.
func TestRunConfigErrors(t *testing.T) {
	dir := t.TempDir()
	nodeConf := filepath.Join(dir, "komodo.conf")
	require.NoError(t, os.WriteFile(nodeConf, []byte(
		"rpcuser=alice\nrpcpassword=secret\n",
	), 0600))

	tests := []struct {
		name       string
		args       []string
		wantCode   int
		wantStderr string
	}{
		{
			name:       "bad debug level",
			args:       []string{"--debuglevel=loud"},
			wantCode:   exitValidation,
			wantStderr: "invalid --debuglevel",
		},
		{
			name:       "fee out of range",
			args:       []string{"--fee=5"},
			wantCode:   exitValidation,
			wantStderr: "--fee 5.00000000 KMD is out of range",
		},
		{
			name: "missing node config",
			args: []string{
				"--nodeconf=" + filepath.Join(dir, "missing.conf"),
			},
			wantCode:   exitFailure,
			wantStderr: "does not exist",
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			args := append([]string{
				"--nodeconf=" + nodeConf, "--logdir=" + dir,
			}, test.args...)
			args = append(args, "round.json", "-")

			var code int
			stderr := captureStderr(t, func() {
				code = run(args)
			})
			require.Equal(t, test.wantCode, code)
			require.Contains(t, stderr, test.wantStderr)
		})
	}
	require.NoError(t, parseAndSetDebugLevels(defaultLogLevel))
}
