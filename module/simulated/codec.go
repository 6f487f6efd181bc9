package simulated

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// payload is the body of every simulated protocol message. Only the fields of
// the round in progress are set.
type payload struct {
	Point      []byte `cbor:"1,keyasint,omitempty"`
	Commitment []byte `cbor:"2,keyasint,omitempty"`
	Share      []byte `cbor:"3,keyasint,omitempty"`
	Nonce      []byte `cbor:"4,keyasint,omitempty"`
}

// localKey is the secret material of a key share.
type localKey struct {
	Index     uint16   `cbor:"1,keyasint"`
	Parties   uint16   `cbor:"2,keyasint"`
	Threshold uint16   `cbor:"3,keyasint"`
	Share     []byte   `cbor:"4,keyasint"`
	PublicKey []byte   `cbor:"5,keyasint"`
	Shares    [][]byte `cbor:"6,keyasint"`
}

// preSignature is the material of a completed offline stage.
type preSignature struct {
	Nonce     []byte `cbor:"1,keyasint"`
	R         []byte `cbor:"2,keyasint"`
	Weighted  []byte `cbor:"3,keyasint"`
	Signers   uint16 `cbor:"4,keyasint"`
	PublicKey []byte `cbor:"5,keyasint"`
}

var encMode cbor.EncMode

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("could not create cbor encoding mode: %v", err))
	}
}

func encode(v interface{}) ([]byte, error) {
	return encMode.Marshal(v)
}

func decode(data []byte, v interface{}) error {
	err := cbor.Unmarshal(data, v)
	if err != nil {
		return fmt.Errorf("could not decode payload: %w", err)
	}
	return nil
}
