package storage

import (
	"github.com/onflow/flow-tss/model/tss"
)

// KeyShares persists the key shares produced by key generation, indexed by
// the address of the group key.
//
// CAUTION: key shares hold the party's secret material.
type KeyShares interface {

	// Store persists a key share.
	// Expected errors during normal operations:
	//   - ErrAlreadyExists if a share for the same address is already stored
	Store(share *tss.KeyShare) error

	// ByAddress returns the key share of the group key with the given address.
	// Expected errors during normal operations:
	//   - ErrNotFound if no share is stored for the address
	ByAddress(address string) (*tss.KeyShare, error)

	// All returns every stored key share ordered by address.
	All() ([]*tss.KeyShare, error)
}
