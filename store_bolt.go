package rhema

import (
	"encoding/binary"
	"fmt"
	"sort"

	bolt "go.etcd.io/bbolt"
)

// A brief description of the format of the Bolt store:
// At the top level, the following buckets are created:
// - defsBkt: Maps definition name to a JSON-encoded Definition record
//   carrying the source text and sequence number.
// - metaBkt: Holds the schema version and the next sequence number.
//   Sequence numbers give replay order; redefining a name assigns a
//   fresh one so the definition moves to the end of the order.

var (
	defsBkt = []byte("definitions")
	metaBkt = []byte("meta")

	schemaVersionKey = []byte("schema-version")
	nextSeqKey       = []byte("next-seq")
)

const boltSchemaVersion = 1

// BoltStore is a Store implementation backed by a Bolt database.
type BoltStore struct {
	db   *bolt.DB
	path string
}

// OpenBoltStore opens (creating if necessary) a Bolt-backed store at
// the given path.
func OpenBoltStore(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("opening database %s: %w", path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(defsBkt); err != nil {
			return fmt.Errorf("creating definitions bucket: %w", err)
		}
		meta, err := tx.CreateBucketIfNotExists(metaBkt)
		if err != nil {
			return fmt.Errorf("creating meta bucket: %w", err)
		}

		raw := meta.Get(schemaVersionKey)
		if raw == nil {
			buf := make([]byte, 8)
			binary.BigEndian.PutUint64(buf, boltSchemaVersion)
			return meta.Put(schemaVersionKey, buf)
		}
		if version := binary.BigEndian.Uint64(raw); version != boltSchemaVersion {
			return fmt.Errorf("%w: database version %d, supported version %d", ErrBadStoreVersion, version, boltSchemaVersion)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating initial database layout: %w", err)
	}

	return &BoltStore{db: db, path: path}, nil
}

func nextSeq(meta *bolt.Bucket) (int64, error) {
	var seq uint64 = 1
	if raw := meta.Get(nextSeqKey); raw != nil {
		seq = binary.BigEndian.Uint64(raw)
	}
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, seq+1)
	if err := meta.Put(nextSeqKey, buf); err != nil {
		return 0, fmt.Errorf("advancing sequence counter: %w", err)
	}
	return int64(seq), nil
}

// SaveDefinition records a definition, assigning a fresh sequence
// number. Redefining a name overwrites the old record.
func (s *BoltStore) SaveDefinition(name, source string) error {
	if s.db == nil {
		return ErrStoreClosed
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		seq, err := nextSeq(tx.Bucket(metaBkt))
		if err != nil {
			return err
		}
		record, err := json.Marshal(Definition{Name: name, Source: source, Seq: seq})
		if err != nil {
			return fmt.Errorf("encoding definition %s: %w", name, err)
		}
		if err := tx.Bucket(defsBkt).Put([]byte(name), record); err != nil {
			return fmt.Errorf("storing definition %s: %w", name, err)
		}
		return nil
	})
}

// DeleteDefinition removes a definition by name.
func (s *BoltStore) DeleteDefinition(name string) error {
	if s.db == nil {
		return ErrStoreClosed
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(defsBkt).Delete([]byte(name)); err != nil {
			return fmt.Errorf("deleting definition %s: %w", name, err)
		}
		return nil
	})
}

// ListDefinitions returns all definitions in ascending Seq order.
func (s *BoltStore) ListDefinitions() ([]Definition, error) {
	if s.db == nil {
		return nil, ErrStoreClosed
	}

	var defs []Definition
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(defsBkt).ForEach(func(k, v []byte) error {
			var def Definition
			if err := json.Unmarshal(v, &def); err != nil {
				return fmt.Errorf("decoding definition %s: %w", string(k), err)
			}
			defs = append(defs, def)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	// Bolt iterates keys in name order; replay needs Seq order.
	sort.Slice(defs, func(i, j int) bool { return defs[i].Seq < defs[j].Seq })

	return defs, nil
}

// Close closes the store and prevents further use.
func (s *BoltStore) Close() error {
	if s.db == nil {
		return ErrStoreClosed
	}
	err := s.db.Close()
	s.db = nil
	return err
}
