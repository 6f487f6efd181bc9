package badger

import (
	"fmt"

	"github.com/dgraph-io/badger/v2"
	"github.com/ethereum/go-ethereum/common"
	lru "github.com/hashicorp/golang-lru"

	"github.com/onflow/flow-tss/model/tss"
	"github.com/onflow/flow-tss/storage"
	"github.com/onflow/flow-tss/storage/badger/operation"
)

// DefaultCacheSize is the number of key shares kept in memory.
const DefaultCacheSize = 100

// KeyShares stores key shares in badger, keyed by the 20-byte address of the
// group key. Addresses are accepted in any hex casing. Recently stored or
// retrieved shares are served from an LRU cache.
type KeyShares struct {
	db    *badger.DB
	cache *lru.Cache
}

var _ storage.KeyShares = (*KeyShares)(nil)

func NewKeyShares(db *badger.DB) *KeyShares {
	cache, _ := lru.New(DefaultCacheSize)
	return &KeyShares{
		db:    db,
		cache: cache,
	}
}

func (k *KeyShares) Store(share *tss.KeyShare) error {
	address, err := parseAddress(share.Address)
	if err != nil {
		return err
	}
	err = k.db.Update(operation.InsertKeyShare(address, share))
	if err != nil {
		return fmt.Errorf("could not store key share for %s: %w", share.Address, err)
	}
	k.cache.Add(address, share)
	return nil
}

func (k *KeyShares) ByAddress(address string) (*tss.KeyShare, error) {
	addr, err := parseAddress(address)
	if err != nil {
		return nil, err
	}
	if cached, ok := k.cache.Get(addr); ok {
		return cached.(*tss.KeyShare), nil
	}

	var share tss.KeyShare
	err = k.db.View(operation.RetrieveKeyShare(addr, &share))
	if err != nil {
		return nil, fmt.Errorf("could not retrieve key share for %s: %w", address, err)
	}
	k.cache.Add(addr, &share)
	return &share, nil
}

func (k *KeyShares) All() ([]*tss.KeyShare, error) {
	var shares []*tss.KeyShare
	err := k.db.View(operation.TraverseKeyShares(&shares))
	if err != nil {
		return nil, fmt.Errorf("could not traverse key shares: %w", err)
	}
	return shares, nil
}

func parseAddress(address string) (common.Address, error) {
	if !common.IsHexAddress(address) {
		return common.Address{}, fmt.Errorf("invalid address %q", address)
	}
	return common.HexToAddress(address), nil
}
