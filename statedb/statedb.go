// Package statedb persists installed guards and their request history in a
// bbolt database.
//
// Each accepted request is committed in a single transaction that checks the
// stored counter, writes the next state and appends a history record, so a
// crash never leaves a state without its history or the reverse.
package statedb

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	bolt "go.etcd.io/bbolt"

	"github.com/tonkeeper/2fa-extension/envelope"
	"github.com/tonkeeper/2fa-extension/guard"
)

const (
	metadataBucket = "metadata"
	guardsBucket   = "guards"
	historyBucket  = "history"
	versionKey     = "version"

	schemaVersion = 1
)

var (
	ErrNotFound = errors.New("statedb: guard not found")
	ErrExists   = errors.New("statedb: guard already installed")
	// ErrConflict is returned when the stored counter differs from the one a
	// commit was evaluated against.
	ErrConflict = errors.New("statedb: counter conflict")
)

var (
	recEnc cbor.EncMode
	recDec cbor.DecMode
)

func init() {
	var err error
	if recEnc, err = cbor.CanonicalEncOptions().EncMode(); err != nil {
		panic(err)
	}
	if recDec, err = (cbor.DecOptions{DupMapKey: cbor.DupMapKeyEnforcedAPF}).DecMode(); err != nil {
		panic(err)
	}
}

// Record is one history entry.
type Record struct {
	Op      envelope.OpCode `cbor:"1,keyasint"`
	Counter uint64          `cbor:"2,keyasint"`
	Outcome string          `cbor:"3,keyasint"`
	At      uint64          `cbor:"4,keyasint"`
	// CIDs of the journal records, empty when no journal is configured.
	Request  string `cbor:"5,keyasint,omitempty"`
	Snapshot string `cbor:"6,keyasint,omitempty"`
	Receipt  string `cbor:"7,keyasint,omitempty"`
}

// DB is a bbolt backed guard store.
type DB struct {
	db *bolt.DB
}

// Open creates (or loads) the database at path.
func Open(path string) (*DB, error) {
	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, err
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		meta, err := tx.CreateBucketIfNotExists([]byte(metadataBucket))
		if err != nil {
			return err
		}
		for _, name := range []string{guardsBucket, historyBucket} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return err
			}
		}
		if b := meta.Get([]byte(versionKey)); b != nil {
			if len(b) != 1 || b[0] != schemaVersion {
				return fmt.Errorf("statedb: incompatible version: %v", b)
			}
			return nil
		}
		return meta.Put([]byte(versionKey), []byte{schemaVersion})
	}); err != nil {
		db.Close()
		return nil, err
	}
	return &DB{db: db}, nil
}

func (d *DB) Close() error {
	if err := d.db.Sync(); err != nil {
		d.db.Close()
		return err
	}
	return d.db.Close()
}

// Load returns the stored state of the guard protecting owner.
func (d *DB) Load(owner string) (guard.State, error) {
	var st guard.State
	err := d.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(guardsBucket)).Get([]byte(owner))
		if b == nil {
			return ErrNotFound
		}
		var err error
		st, err = guard.UnmarshalState(b)
		return err
	})
	return st, err
}

// LoadAll returns every stored guard, ordered by owner.
func (d *DB) LoadAll() ([]guard.State, error) {
	var out []guard.State
	err := d.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(guardsBucket)).ForEach(func(k, v []byte) error {
			st, err := guard.UnmarshalState(v)
			if err != nil {
				return fmt.Errorf("statedb: guard %s: %w", k, err)
			}
			out = append(out, st)
			return nil
		})
	})
	return out, err
}

// Install stores a newly installed guard and its first history record.
func (d *DB) Install(st guard.State, rec Record) error {
	b, err := st.MarshalBinary()
	if err != nil {
		return err
	}
	return d.db.Update(func(tx *bolt.Tx) error {
		guards := tx.Bucket([]byte(guardsBucket))
		if guards.Get([]byte(st.Owner)) != nil {
			return ErrExists
		}
		if err := guards.Put([]byte(st.Owner), b); err != nil {
			return err
		}
		return appendHistory(tx, st.Owner, rec)
	})
}

// Commit replaces the state of owner's guard, provided the stored counter
// still equals rec.Counter, and appends rec to its history. A nil next
// removes the guard; its history is kept.
func (d *DB) Commit(owner string, next *guard.State, rec Record) error {
	var enc []byte
	if next != nil {
		if next.Owner != owner {
			return fmt.Errorf("statedb: state owner %q does not match %q", next.Owner, owner)
		}
		var err error
		if enc, err = next.MarshalBinary(); err != nil {
			return err
		}
	}
	return d.db.Update(func(tx *bolt.Tx) error {
		guards := tx.Bucket([]byte(guardsBucket))
		cur := guards.Get([]byte(owner))
		if cur == nil {
			return ErrNotFound
		}
		st, err := guard.UnmarshalState(cur)
		if err != nil {
			return err
		}
		if st.Counter != rec.Counter {
			return ErrConflict
		}
		if next == nil {
			err = guards.Delete([]byte(owner))
		} else {
			err = guards.Put([]byte(owner), enc)
		}
		if err != nil {
			return err
		}
		return appendHistory(tx, owner, rec)
	})
}

// History returns owner's records in commit order. Removed guards keep
// their history.
func (d *DB) History(owner string) ([]Record, error) {
	var out []Record
	err := d.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(historyBucket)).Bucket([]byte(owner))
		if b == nil {
			return nil
		}
		return b.ForEach(func(_, v []byte) error {
			var r Record
			if err := recDec.Unmarshal(v, &r); err != nil {
				return fmt.Errorf("statedb: history: %w", err)
			}
			out = append(out, r)
			return nil
		})
	})
	return out, err
}

func appendHistory(tx *bolt.Tx, owner string, rec Record) error {
	b, err := tx.Bucket([]byte(historyBucket)).CreateBucketIfNotExists([]byte(owner))
	if err != nil {
		return err
	}
	seq, err := b.NextSequence()
	if err != nil {
		return err
	}
	v, err := recEnc.Marshal(rec)
	if err != nil {
		return err
	}
	var k [8]byte
	binary.BigEndian.PutUint64(k[:], seq)
	return b.Put(k[:], v)
}
