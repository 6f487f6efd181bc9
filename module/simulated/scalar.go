package simulated

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/ethereum/go-ethereum/crypto"
)

// randomScalar draws a non-zero scalar from rand.
func randomScalar(rand io.Reader) (btcec.ModNScalar, error) {
	var s btcec.ModNScalar
	buf := make([]byte, 32)
	for {
		_, err := io.ReadFull(rand, buf)
		if err != nil {
			return s, fmt.Errorf("could not read randomness: %w", err)
		}
		s.SetByteSlice(buf)
		if !s.IsZero() {
			return s, nil
		}
	}
}

func scalarFromUint(v uint16) btcec.ModNScalar {
	var s btcec.ModNScalar
	s.SetInt(uint32(v))
	return s
}

func scalarBytes(s *btcec.ModNScalar) []byte {
	b := s.Bytes()
	return b[:]
}

func parseScalar(b []byte) (btcec.ModNScalar, error) {
	var s btcec.ModNScalar
	if len(b) != 32 {
		return s, fmt.Errorf("invalid scalar length %d", len(b))
	}
	if s.SetByteSlice(b) {
		return s, fmt.Errorf("scalar overflows the group order")
	}
	return s, nil
}

// evaluate returns the polynomial with the given coefficients at x.
func evaluate(coefficients []btcec.ModNScalar, x uint16) btcec.ModNScalar {
	xs := scalarFromUint(x)
	var result btcec.ModNScalar
	for i := len(coefficients) - 1; i >= 0; i-- {
		result.Mul(&xs)
		result.Add(&coefficients[i])
	}
	return result
}

// lagrange returns the Lagrange coefficient at zero of the party with index
// self within the given set of indices.
func lagrange(indices []uint16, self uint16) (btcec.ModNScalar, error) {
	num := scalarFromUint(1)
	den := scalarFromUint(1)
	xj := scalarFromUint(self)
	var negXj btcec.ModNScalar
	negXj.NegateVal(&xj)

	found := false
	for _, index := range indices {
		if index == self {
			found = true
			continue
		}
		xk := scalarFromUint(index)
		num.Mul(&xk)

		var diff btcec.ModNScalar
		diff.Add2(&xk, &negXj)
		if diff.IsZero() {
			return btcec.ModNScalar{}, fmt.Errorf("duplicate index %d", index)
		}
		den.Mul(&diff)
	}
	if !found {
		return btcec.ModNScalar{}, fmt.Errorf("index %d is not part of the set", self)
	}
	den.InverseNonConst()
	return *num.Mul(&den), nil
}

// basePoint returns s*G in compressed encoding.
func basePoint(s *btcec.ModNScalar) []byte {
	var p btcec.JacobianPoint
	btcec.ScalarBaseMultNonConst(s, &p)
	p.ToAffine()
	return btcec.NewPublicKey(&p.X, &p.Y).SerializeCompressed()
}

// sumPoints adds compressed points and returns the resulting public key.
func sumPoints(points [][]byte) (*btcec.PublicKey, error) {
	if len(points) == 0 {
		return nil, fmt.Errorf("no points to add")
	}
	var sum btcec.JacobianPoint
	for i, raw := range points {
		key, err := btcec.ParsePubKey(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid point: %w", err)
		}
		var p btcec.JacobianPoint
		key.AsJacobian(&p)
		if i == 0 {
			sum.Set(&p)
			continue
		}
		var result btcec.JacobianPoint
		btcec.AddNonConst(&sum, &p, &result)
		sum.Set(&result)
	}
	sum.ToAffine()
	if (sum.X.IsZero() && sum.Y.IsZero()) || sum.Z.IsZero() {
		return nil, fmt.Errorf("points sum to infinity")
	}
	return btcec.NewPublicKey(&sum.X, &sum.Y), nil
}

// transcript hashes a list of labelled byte strings with keccak256.
func transcript(label string, parts ...[]byte) []byte {
	h := crypto.NewKeccakState()
	h.Write([]byte(label))
	var length [4]byte
	for _, part := range parts {
		binary.BigEndian.PutUint32(length[:], uint32(len(part)))
		h.Write(length[:])
		h.Write(part)
	}
	return h.Sum(nil)
}
