package simulated

import (
	"bytes"
	"context"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/onflow/flow-tss/model/tss"
	"github.com/onflow/flow-tss/module"
)

// SignManual holds a signer's additive share of the ECDSA signature
//
//	s = k^-1 * (z + r*x)
//
// where k is the offline stage nonce and x the Lagrange weighted sum of the
// signers' key shares.
type SignManual struct {
	localIndex uint16
	signers    uint16
	digest     []byte
	r          btcec.ModNScalar
	recovery   byte
	publicKey  []byte
	partial    btcec.ModNScalar
}

var _ module.SignManual = (*SignManual)(nil)

// NewSignManual computes the local partial signature over a 32 byte digest.
func NewSignManual(pre *tss.PreSignature, digest []byte) (*SignManual, error) {
	if pre == nil {
		return nil, fmt.Errorf("signing requires a pre-signature")
	}
	if len(digest) != 32 {
		return nil, fmt.Errorf("digest must be 32 bytes, got %d", len(digest))
	}

	var material preSignature
	err := decode(pre.Data, &material)
	if err != nil {
		return nil, fmt.Errorf("invalid pre-signature: %w", err)
	}
	nonce, err := parseScalar(material.Nonce)
	if err != nil {
		return nil, fmt.Errorf("invalid nonce: %w", err)
	}
	weighted, err := parseScalar(material.Weighted)
	if err != nil {
		return nil, fmt.Errorf("invalid weighted share: %w", err)
	}
	if material.Signers < 2 {
		return nil, fmt.Errorf("invalid signer count %d", material.Signers)
	}

	point, err := btcec.ParsePubKey(material.R)
	if err != nil {
		return nil, fmt.Errorf("invalid nonce point: %w", err)
	}
	var R btcec.JacobianPoint
	point.AsJacobian(&R)
	R.ToAffine()

	var r btcec.ModNScalar
	var recovery byte
	if r.SetByteSlice(R.X.Bytes()[:]) {
		recovery |= 2
	}
	if R.Y.IsOdd() {
		recovery |= 1
	}
	if r.IsZero() {
		return nil, fmt.Errorf("nonce point yields a zero signature")
	}

	// partial = k^-1 * (z/m + r*w)
	var z btcec.ModNScalar
	z.SetByteSlice(digest)
	m := scalarFromUint(material.Signers)
	m.InverseNonConst()
	z.Mul(&m)

	var rw btcec.ModNScalar
	rw.Mul2(&r, &weighted)

	var partial btcec.ModNScalar
	partial.Add2(&z, &rw)
	nonce.InverseNonConst()
	partial.Mul(&nonce)

	return &SignManual{
		localIndex: pre.LocalIndex,
		signers:    material.Signers,
		digest:     append([]byte(nil), digest...),
		r:          r,
		recovery:   recovery,
		publicKey:  material.PublicKey,
		partial:    partial,
	}, nil
}

func (s *SignManual) Partial() tss.PartialSignature {
	return tss.PartialSignature{
		Sender: s.localIndex,
		Data:   scalarBytes(&s.partial),
	}
}

// Create sums the partial signatures of all signers and checks that the
// result verifies against the group public key.
func (s *SignManual) Create(_ context.Context, partials []tss.PartialSignature) (*tss.Signature, error) {
	if len(partials) != int(s.signers)-1 {
		return nil, fmt.Errorf("expected %d partial signatures, got %d", s.signers-1, len(partials))
	}

	seen := make(map[uint16]struct{}, len(partials))
	var sum btcec.ModNScalar
	sum.Set(&s.partial)
	for _, partial := range partials {
		if partial.Sender < 1 || partial.Sender > s.signers || partial.Sender == s.localIndex {
			return nil, fmt.Errorf("unexpected partial signature from signer %d", partial.Sender)
		}
		if _, ok := seen[partial.Sender]; ok {
			return nil, fmt.Errorf("duplicate partial signature from signer %d", partial.Sender)
		}
		seen[partial.Sender] = struct{}{}

		value, err := parseScalar(partial.Data)
		if err != nil {
			return nil, fmt.Errorf("invalid partial signature from signer %d: %w", partial.Sender, err)
		}
		sum.Add(&value)
	}
	if sum.IsZero() {
		return nil, fmt.Errorf("partial signatures sum to zero")
	}

	recovery := s.recovery
	if sum.IsOverHalfOrder() {
		sum.Negate()
		recovery ^= 1
	}

	signature := &tss.Signature{
		R:          scalarBytes(&s.r),
		S:          scalarBytes(&sum),
		RecoveryID: recovery,
		Digest:     s.digest,
	}
	err := s.verify(signature)
	if err != nil {
		return nil, err
	}
	return signature, nil
}

func (s *SignManual) verify(signature *tss.Signature) error {
	raw := make([]byte, 0, 65)
	raw = append(raw, signature.R...)
	raw = append(raw, signature.S...)
	raw = append(raw, signature.RecoveryID)

	recovered, err := crypto.SigToPub(signature.Digest, raw)
	if err != nil {
		return fmt.Errorf("could not recover public key from signature: %w", err)
	}
	if !bytes.Equal(crypto.CompressPubkey(recovered), s.publicKey) {
		return fmt.Errorf("signature does not verify against the group public key")
	}
	return nil
}
