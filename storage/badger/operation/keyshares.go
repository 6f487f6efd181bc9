package operation

import (
	"github.com/dgraph-io/badger/v2"
	"github.com/ethereum/go-ethereum/common"

	"github.com/onflow/flow-tss/model/tss"
)

// InsertKeyShare stores the key share under the address of its group key.
//
// CAUTION: the share holds confidential information.
func InsertKeyShare(address common.Address, share *tss.KeyShare) func(*badger.Txn) error {
	return insert(makePrefix(codeKeyShare, address.Bytes()), share)
}

// RetrieveKeyShare retrieves the key share of the group key with the given address.
func RetrieveKeyShare(address common.Address, share *tss.KeyShare) func(*badger.Txn) error {
	return retrieve(makePrefix(codeKeyShare, address.Bytes()), share)
}

// TraverseKeyShares collects all stored key shares ordered by address.
func TraverseKeyShares(shares *[]*tss.KeyShare) func(*badger.Txn) error {
	var share *tss.KeyShare
	create := func() interface{} {
		share = new(tss.KeyShare)
		return share
	}
	handle := func() error {
		*shares = append(*shares, share)
		return nil
	}
	return traverse(makePrefix(codeKeyShare), create, handle)
}
