// Package handoff persists signing states between signers.  States travel as
// JSON files that are copied to the next signer by hand; a local journal
// remembers which states were already resumed on this machine.
package handoff

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/chainmakers/multisigtx-cli/wallet"
)

const (
	// timestampFormat is the layout of the time prefix of artifact names.
	timestampFormat = "2006_01_02-15_04_05"

	// idPrefixLen is the number of hex characters of the content id kept
	// in artifact names.
	idPrefixLen = 16
)

// Store writes signing states into a directory.
type Store struct {
	dir string
	now func() time.Time
}

// A compile-time check to ensure that Store satisfies the
// wallet.StateWriter interface.
var _ wallet.StateWriter = (*Store)(nil)

// NewStore returns a Store writing into dir.
func NewStore(dir string) *Store {
	return &Store{dir: dir, now: time.Now}
}

// FileName returns the artifact name of tx written at t.
func FileName(tx *wallet.MultiSigTx, t time.Time) string {
	id := tx.ID().String()
	return t.Format(timestampFormat) + "-" + id[:idPrefixLen] + ".json"
}

// WriteState writes tx to a new file and returns its path.  An existing
// file is never overwritten.
func (s *Store) WriteState(tx *wallet.MultiSigTx) (string, error) {
	b, err := json.MarshalIndent(tx, "", "  ")
	if err != nil {
		return "", err
	}
	b = append(b, '\n')

	path := filepath.Join(s.dir, FileName(tx, s.now()))
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		return "", fmt.Errorf("create hand-off file: %w", err)
	}
	if _, err := f.Write(b); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("write hand-off file: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("write hand-off file: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", err
	}

	log.Infof("Wrote round %d state %v to %s", tx.Round, tx.ID(), path)

	return path, nil
}

// Load reads a signing state written by WriteState.  Any problem with the
// file is reported as wallet.ErrInvalidState.
func Load(path string) (*wallet.MultiSigTx, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		desc := "cannot read hand-off file " + path
		if errors.Is(err, os.ErrNotExist) {
			desc = "hand-off file " + path + " does not exist"
		}
		return nil, wallet.NewError(wallet.ErrInvalidState, desc, err)
	}

	var tx wallet.MultiSigTx
	if err := json.Unmarshal(b, &tx); err != nil {
		return nil, wallet.NewError(wallet.ErrInvalidState,
			"hand-off file "+path+" is malformed", err)
	}
	if err := tx.Validate(); err != nil {
		return nil, fmt.Errorf("hand-off file %s: %w", path, err)
	}

	log.Debugf("Loaded round %d state %v from %s", tx.Round, tx.ID(), path)

	return &tx, nil
}
