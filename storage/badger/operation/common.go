package operation

import (
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v2"

	"github.com/onflow/flow-tss/storage"
)

// insert stores the encoded entity under key. Records are immutable: an
// existing key fails with storage.ErrAlreadyExists.
func insert(key []byte, entity interface{}) func(*badger.Txn) error {
	return func(tx *badger.Txn) error {
		_, err := tx.Get(key)
		switch {
		case err == nil:
			return fmt.Errorf("key %x: %w", key, storage.ErrAlreadyExists)
		case !errors.Is(err, badger.ErrKeyNotFound):
			return fmt.Errorf("could not check existence of key %x: %w", key, err)
		}

		value, err := encodeEntity(entity)
		if err != nil {
			return err
		}
		err = tx.Set(key, value)
		if err != nil {
			return fmt.Errorf("could not write key %x: %w", key, err)
		}
		return nil
	}
}

// retrieve decodes the value under key into entity, which must be a pointer.
// A missing key fails with storage.ErrNotFound.
func retrieve(key []byte, entity interface{}) func(*badger.Txn) error {
	return func(tx *badger.Txn) error {
		item, err := tx.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("key %x: %w", key, storage.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("could not read key %x: %w", key, err)
		}

		return item.Value(func(value []byte) error {
			err := decodeValue(value, entity)
			if err != nil {
				return fmt.Errorf("could not decode value of key %x: %w", key, err)
			}
			return nil
		})
	}
}

// createFunc returns a pointer to an initialized entity that the value of the
// current iteration step is decoded into.
type createFunc func() interface{}

// handleFunc processes the entity decoded in the current iteration step.
type handleFunc func() error

// traverse iterates over all keys with the given prefix in ascending order.
// For each key-value pair, create provides the decode target and handle
// processes the decoded entity.
func traverse(prefix []byte, create createFunc, handle handleFunc) func(*badger.Txn) error {
	return func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := tx.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			entity := create()
			err := item.Value(func(val []byte) error {
				return decodeValue(val, entity)
			})
			if err != nil {
				return fmt.Errorf("could not decode entity under key %x: %w", item.Key(), err)
			}
			err = handle()
			if err != nil {
				return fmt.Errorf("could not handle entity under key %x: %w", item.Key(), err)
			}
		}
		return nil
	}
}
