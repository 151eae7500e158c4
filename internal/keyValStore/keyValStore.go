package keyValStore

import (
	"encoding/hex"
	"fmt"
	"runtime"
	"sync/atomic"

	"github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"
)

var log *logrus.Logger

type StoreConfig struct {
	Paths            []string // absolute paths, at the moment only the first path is used
	MinimumFreeSpace int      // in GB
	Logger           *logrus.Logger
}

// Entry is one key/value pair for batch operations.
type Entry struct {
	Key   []byte
	Value []byte
}

// ErrNotFound is returned by Read when the key does not exist.
var ErrNotFound = badger.ErrKeyNotFound

type KeyValStore struct {
	config       StoreConfig
	badgerDB     *badger.DB
	readCounter  uint64
	writeCounter uint64
}

func NewKeyValStore(config StoreConfig) (*KeyValStore, error) {
	if config.Logger == nil {
		config.Logger = logrus.New()
	}

	log = config.Logger

	if err := config.checkConfig(); err != nil {
		return nil, fmt.Errorf("error checking config for KeyValStore: %w", err)
	}

	opts := badger.DefaultOptions(config.Paths[0])
	opts.Logger = nil
	opts.ValueLogFileSize = 1024 * 1024 * 100 // max size of each value log file, 100MB
	opts.SyncWrites = false

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("error opening badger at %s: %w", config.Paths[0], err)
	}

	if err := displayDiskUsage(config.Paths); err != nil {
		db.Close()
		return nil, err
	}

	return &KeyValStore{
		config:   config,
		badgerDB: db,
	}, nil
}

func (k *KeyValStore) Write(key []byte, content []byte) error {
	atomic.AddUint64(&k.writeCounter, 1)

	err := k.badgerDB.Update(func(txn *badger.Txn) error {
		return txn.Set(key, content)
	})
	if err != nil {
		return fmt.Errorf("error writing key %s: %w", hex.EncodeToString(key), err)
	}
	return nil
}

func (k *KeyValStore) Read(key []byte) ([]byte, error) {
	atomic.AddUint64(&k.readCounter, 1)
	var value []byte
	err := k.badgerDB.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if err == badger.ErrKeyNotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error reading key %s: %w", hex.EncodeToString(key), err)
	}
	return value, nil
}

func (k *KeyValStore) Has(key []byte) (bool, error) {
	atomic.AddUint64(&k.readCounter, 1)
	var exists bool
	err := k.badgerDB.View(func(txn *badger.Txn) error {
		_, err := txn.Get(key)
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		exists = true
		return nil
	})
	return exists, err
}

func (k *KeyValStore) Delete(key []byte) error {
	atomic.AddUint64(&k.writeCounter, 1)
	return k.badgerDB.Update(func(txn *badger.Txn) error {
		return txn.Delete(key)
	})
}

// BatchWriteNonExisting writes only the entries whose keys are not yet
// present. Existing keys are left untouched, which gives the byte layer its
// content-addressed dedup: storing identical bytes twice is a no-op.
func (k *KeyValStore) BatchWriteNonExisting(entries []Entry) error {
	keys := make([][]byte, 0, len(entries))
	for _, entry := range entries {
		keys = append(keys, entry.Key)
	}

	existsMap, err := k.BatchCheckKeyExistence(keys)
	if err != nil {
		return fmt.Errorf("error checking key existence: %w", err)
	}

	var missing []Entry
	for _, entry := range entries {
		if !existsMap[string(entry.Key)] {
			missing = append(missing, entry)
		}
	}

	return k.BatchWrite(missing)
}

func (k *KeyValStore) BatchCheckKeyExistence(keys [][]byte) (map[string]bool, error) {
	existsMap := make(map[string]bool)

	err := k.badgerDB.View(func(txn *badger.Txn) error {
		for _, key := range keys {
			atomic.AddUint64(&k.readCounter, 1)
			_, err := txn.Get(key)
			if err != nil {
				if err == badger.ErrKeyNotFound {
					existsMap[string(key)] = false
				} else {
					return err // issues other than "key not found"
				}
			} else {
				existsMap[string(key)] = true
			}
		}
		return nil
	})

	return existsMap, err
}

// BatchWriteAtomic writes all entries in one transaction: readers observe
// either none or all of them. Unlike BatchWrite it never splits the batch,
// so it must stay small enough for a single badger transaction.
func (k *KeyValStore) BatchWriteAtomic(entries []Entry) error {
	err := k.badgerDB.Update(func(txn *badger.Txn) error {
		for _, entry := range entries {
			atomic.AddUint64(&k.writeCounter, 1)
			if err := txn.Set(entry.Key, entry.Value); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("error writing atomic batch: %w", err)
	}
	return nil
}

func (k *KeyValStore) BatchWrite(entries []Entry) error {
	wb := k.badgerDB.NewWriteBatch()
	defer wb.Cancel()

	for _, entry := range entries {
		atomic.AddUint64(&k.writeCounter, 1)
		if err := wb.Set(entry.Key, entry.Value); err != nil {
			return fmt.Errorf("error writing batch entry: %w", err)
		}
	}

	return wb.Flush()
}

func (k *KeyValStore) Close() error {
	if err := k.Clean(); err != nil {
		log.Warn("error cleaning db on close: ", err)
	}
	return k.badgerDB.Close()
}

func (k *KeyValStore) Clean() error {
	if err := k.badgerDB.Sync(); err != nil {
		return fmt.Errorf("error syncing db: %w", err)
	}

	// flatten the db; the parameter is the number of concurrent compactions
	if err := k.badgerDB.Flatten(runtime.NumCPU()); err != nil {
		return fmt.Errorf("error flattening db: %w", err)
	}

	if err := k.badgerDB.RunValueLogGC(0.1); err != nil {
		if err != badger.ErrNoRewrite {
			return fmt.Errorf("error running value log gc: %w", err)
		}
	}

	return nil
}
