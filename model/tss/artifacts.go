package tss

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// KeyShare is one party's output of a key generation. LocalKey holds the
// party's secret material in the protocol engine's own encoding.
//
// CAUTION: LocalKey is confidential.
type KeyShare struct {
	Address    string     `json:"address" msgpack:"address"`
	PublicKey  []byte     `json:"public_key" msgpack:"public_key"`
	PartyIndex uint16     `json:"party_index" msgpack:"party_index"`
	Params     Parameters `json:"params" msgpack:"params"`
	LocalKey   []byte     `json:"-" msgpack:"local_key"`
}

func (k *KeyShare) String() string {
	return fmt.Sprintf("key share %d of %s for %s", k.PartyIndex, k.Params, k.Address)
}

// ParticipantIndex pairs a party's key share index with the signup number it
// received in a signing session.
type ParticipantIndex struct {
	Index  uint16 `json:"index"`
	Signup uint16 `json:"signup"`
}

// PreSignature is the completed offline stage of a signing session. It is
// bound to the ordered participant list it was computed with.
type PreSignature struct {
	Participants []uint16
	LocalIndex   uint16
	Data         []byte
}

// PartialSignature is one signer's contribution to a signature.
type PartialSignature struct {
	Sender uint16 `cbor:"1,keyasint"`
	Data   []byte `cbor:"2,keyasint"`
}

// Signature is an assembled ECDSA signature over Digest.
type Signature struct {
	R          []byte `json:"r"`
	S          []byte `json:"s"`
	RecoveryID byte   `json:"recid"`
	Digest     []byte `json:"digest"`
}

// Hex returns the 65-byte [R || S || V] encoding of the signature.
func (s *Signature) Hex() string {
	raw := make([]byte, 0, 65)
	raw = append(raw, leftPad(s.R, 32)...)
	raw = append(raw, leftPad(s.S, 32)...)
	raw = append(raw, s.RecoveryID)
	return hexutil.Encode(raw)
}

func leftPad(b []byte, size int) []byte {
	if len(b) >= size {
		return b
	}
	padded := make([]byte, size)
	copy(padded[size-len(b):], b)
	return padded
}
