package state

import (
	"encoding/json"

	badger "github.com/dgraph-io/badger/v4"
)

// BadgerBackend persists snapshots in an embedded, single-process
// key/value store — the closest Go analogue of localStorage for
// headless or CLI embeddings that want durability without a network
// dependency.
type BadgerBackend struct {
	db *badger.DB
}

// NewBadgerBackend opens (creating if absent) a Badger database rooted
// at dir.
func NewBadgerBackend(dir string) (*BadgerBackend, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &BadgerBackend{db: db}, nil
}

// Save implements StorageBackend.
func (b *BadgerBackend) Save(key string, snapshot map[string]any) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), data)
	})
}

// Load implements StorageBackend.
func (b *BadgerBackend) Load(key string) (map[string]any, bool, error) {
	var data []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			data = append([]byte(nil), val...)
			return nil
		})
	})
	if err == badger.ErrKeyNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, false, err
	}
	return out, true, nil
}

// Close releases the database handle.
func (b *BadgerBackend) Close() error { return b.db.Close() }
