package handoff

import (
	"errors"
	"fmt"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcwallet/walletdb"
	_ "github.com/btcsuite/btcwallet/walletdb/bdb" // bdb driver
	"github.com/chainmakers/multisigtx-cli/internal/cfgutil"
	"github.com/chainmakers/multisigtx-cli/wallet"
	"github.com/lightningnetwork/lnd/fn/v2"
)

const (
	// dbDriver is the walletdb driver backing the journal.
	dbDriver = "bdb"

	// DefaultDBTimeout is how long opening the journal waits for another
	// process holding it.
	DefaultDBTimeout = 10 * time.Second
)

var (
	// roundsBucketKey maps a consumed state id to the id of the state
	// produced from it.
	roundsBucketKey = []byte("rounds")

	// artifactsBucketKey maps a state id to the file it was written to.
	artifactsBucketKey = []byte("artifacts")

	// ErrRoundExists is returned when a state already has a different
	// recorded successor.
	ErrRoundExists = errors.New("round already recorded")
)

// Journal records signing rounds in a local walletdb database.
type Journal struct {
	db walletdb.DB
}

// A compile-time check to ensure that Journal satisfies the
// wallet.RoundJournal interface.
var _ wallet.RoundJournal = (*Journal)(nil)

// OpenJournal opens the journal at path, creating it if needed.
func OpenJournal(path string, timeout time.Duration) (*Journal, error) {
	var (
		db  walletdb.DB
		err error
	)
	exists, err := cfgutil.FileExists(path)
	if err != nil {
		return nil, err
	}
	if exists {
		db, err = walletdb.Open(dbDriver, path, true, timeout, false)
	} else {
		db, err = walletdb.Create(dbDriver, path, true, timeout, false)
	}
	if err != nil {
		return nil, fmt.Errorf("open round journal %s: %w", path, err)
	}

	err = walletdb.Update(db, func(tx walletdb.ReadWriteTx) error {
		for _, key := range [][]byte{roundsBucketKey, artifactsBucketKey} {
			if _, err := tx.CreateTopLevelBucket(key); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Journal{db: db}, nil
}

// Close closes the underlying database.
func (j *Journal) Close() error {
	return j.db.Close()
}

// Successor returns the id of the state produced from the state with the
// given id, if any.
func (j *Journal) Successor(
	id chainhash.Hash) (fn.Option[chainhash.Hash], error) {

	child := fn.None[chainhash.Hash]()
	err := walletdb.View(j.db, func(tx walletdb.ReadTx) error {
		v := tx.ReadBucket(roundsBucketKey).Get(id[:])
		if v == nil {
			return nil
		}
		h, err := chainhash.NewHash(v)
		if err != nil {
			return err
		}
		child = fn.Some(*h)
		return nil
	})
	return child, err
}

// RecordRound records that child was produced from parent.  Recording the
// same pair twice is allowed.
func (j *Journal) RecordRound(parent, child chainhash.Hash) error {
	return walletdb.Update(j.db, func(tx walletdb.ReadWriteTx) error {
		bucket := tx.ReadWriteBucket(roundsBucketKey)
		if v := bucket.Get(parent[:]); v != nil {
			recorded, err := chainhash.NewHash(v)
			if err != nil {
				return err
			}
			if *recorded == child {
				return nil
			}
			return fmt.Errorf("%w: %v", ErrRoundExists, parent)
		}

		log.Debugf("Recording round %v -> %v", parent, child)

		return bucket.Put(parent[:], child[:])
	})
}

// RecordArtifact records the file a state was written to.
func (j *Journal) RecordArtifact(id chainhash.Hash, path string) error {
	return walletdb.Update(j.db, func(tx walletdb.ReadWriteTx) error {
		return tx.ReadWriteBucket(artifactsBucketKey).Put(
			id[:], []byte(path),
		)
	})
}

// Artifact returns the file the state with the given id was written to, if
// it was recorded.
func (j *Journal) Artifact(id chainhash.Hash) (fn.Option[string], error) {
	path := fn.None[string]()
	err := walletdb.View(j.db, func(tx walletdb.ReadTx) error {
		if v := tx.ReadBucket(artifactsBucketKey).Get(id[:]); v != nil {
			path = fn.Some(string(v))
		}
		return nil
	})
	return path, err
}
