// Copyright (c) 2015-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/btcsuite/btcd/rpcclient"
	"github.com/chainmakers/multisigtx-cli/chain"
	"github.com/chainmakers/multisigtx-cli/handoff"
	"github.com/chainmakers/multisigtx-cli/internal/prompt"
	"github.com/chainmakers/multisigtx-cli/wallet"
	"github.com/chainmakers/multisigtx-cli/wallet/txrules"
	flags "github.com/jessevdk/go-flags"
)

// Process exit codes.
const (
	exitOK         = 0
	exitFailure    = 1
	exitValidation = 2
	exitState      = 3
	exitNode       = 4
	exitArithmetic = 5
)

// exitCode maps an error to the process exit code.
func exitCode(err error) int {
	if err == nil {
		return exitOK
	}

	var flagErr *flags.Error
	if errors.As(err, &flagErr) {
		if flagErr.Type == flags.ErrHelp {
			return exitOK
		}
		return exitValidation
	}

	code, ok := wallet.CodeOf(err)
	if !ok {
		return exitFailure
	}
	switch code.Kind() {
	case wallet.KindValidation:
		return exitValidation
	case wallet.KindState:
		return exitState
	case wallet.KindExternal:
		return exitNode
	case wallet.KindArithmetic:
		return exitArithmetic
	default:
		return exitFailure
	}
}

func main() {
	os.Exit(run(os.Args[1:]))
}

// run executes one signing round and returns the process exit code.
func run(argv []string) int {
	cfg, args, err := loadConfig(argv)
	if err != nil {
		return exitCode(err)
	}

	if err := initLogRotator(filepath.Join(cfg.LogDir, defaultLogFilename)); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitFailure
	}
	defer logRotator.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := multisigMain(ctx, cfg, args, os.Stdout); err != nil {
		log.Errorf("%v", err)
		code := exitCode(err)
		if c, ok := wallet.CodeOf(err); ok {
			log.Debugf("Exiting with status %d (%v, %v)", code, c,
				c.Kind())
		}
		return code
	}
	return exitOK
}

// multisigMain runs one signing round as configured and writes its result to
// out.
func multisigMain(ctx context.Context, cfg *config, args []string,
	out io.Writer) error {

	inv, err := parseInvocation(
		args, cfg.RawTx, cfg.params.Params, prompt.ProvideSecret,
	)
	if err != nil {
		return err
	}

	if cfg.RPCPassword == "-" {
		cfg.RPCPassword, err = prompt.ProvideSecret("node RPC password")
		if err != nil {
			return err
		}
	}

	client, err := chain.NewRPCClientWithConfig(&chain.RPCClientConfig{
		Conn: &rpcclient.ConnConfig{
			Host:       cfg.RPCConnect.Value,
			User:       cfg.RPCUser,
			Pass:       cfg.RPCPassword,
			DisableTLS: !cfg.RPCTLS,
		},
	})
	if err != nil {
		return err
	}
	defer client.Stop()

	var journal *handoff.Journal
	if !cfg.NoJournal {
		if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
			return err
		}
		journal, err = handoff.OpenJournal(
			filepath.Join(cfg.DataDir, journalDBName),
			handoff.DefaultDBTimeout,
		)
		if err != nil {
			return err
		}
		defer journal.Close()
	}

	return signRound(ctx, cfg, inv, client, journal, out)
}

// signRound performs the round described by inv against node and reports
// the outcome on out.
func signRound(ctx context.Context, cfg *config, inv *invocation,
	node chain.Interface, journal *handoff.Journal, out io.Writer) error {

	coordCfg := wallet.Config{
		Chain:       node,
		ChainParams: cfg.params.Params,
		Policy: txrules.Policy{
			Fee:           cfg.Fee.Amount,
			DustThreshold: txrules.DefaultDustThreshold,
		},
		CLIName: cfg.params.CLIName,
	}
	if journal != nil {
		coordCfg.Journal = journal
	}
	coord, err := wallet.NewCoordinator(coordCfg)
	if err != nil {
		return err
	}

	var state *wallet.MultiSigTx
	switch inv.mode {
	case modeCreate:
		state, err = coord.Create(ctx, inv.create)

	case modeResume:
		var prev *wallet.MultiSigTx
		prev, err = handoff.Load(inv.handoffPath)
		if err != nil {
			return err
		}
		state, err = coord.Resume(ctx, prev, inv.key)

	case modeRecover:
		var prev *wallet.MultiSigTx
		prev, err = coord.Recover(ctx, inv.rawTx)
		if err != nil {
			return err
		}
		state, err = coord.Resume(ctx, prev, inv.key)
	}
	if err != nil {
		return err
	}

	logProgress(ctx, coord, state)

	res, err := coord.Finalize(state, handoff.NewStore(cfg.HandoffDir))
	if err != nil {
		return err
	}

	if res.Command != "" {
		log.Infof("Transaction is fully signed")
		fmt.Fprintln(out, res.Command)
		return nil
	}

	fmt.Fprintln(out, res.Artifact)
	fmt.Fprintln(out, "More signatures are required. Forward this file "+
		"to the next signer.")
	return nil
}

// logProgress logs how many signatures every input carries.  Failures only
// affect the log.
func logProgress(ctx context.Context, coord *wallet.Coordinator,
	state *wallet.MultiSigTx) {

	progress, err := coord.SignatureProgress(ctx, state)
	if err != nil {
		log.Warnf("Unable to count signatures: %v", err)
		return
	}
	for _, p := range progress {
		log.Infof("Round %d %v", state.Round, p)
	}
}
