// Package simulated implements the threshold protocol engines with plain
// secp256k1 arithmetic. Key generation is a genuine Shamir secret sharing
// and signatures are valid ECDSA signatures, but the signing nonce is shared
// between the signers.
//
// CAUTION: not secure. For tests and local experiments only.
package simulated

import (
	"crypto/rand"
	"fmt"
	"io"

	"github.com/onflow/flow-tss/model/tss"
	"github.com/onflow/flow-tss/module"
)

// Factory creates simulated protocol engines.
type Factory struct {
	rand          io.Reader
	offlineRounds int
}

var _ module.ProtocolFactory = (*Factory)(nil)

type FactoryOption func(*Factory)

// WithRandom sets the randomness source of the engines.
func WithRandom(rand io.Reader) FactoryOption {
	return func(f *Factory) {
		f.rand = rand
	}
}

// WithOfflineRounds sets the number of offline stage rounds.
func WithOfflineRounds(rounds int) FactoryOption {
	return func(f *Factory) {
		f.offlineRounds = rounds
	}
}

func NewFactory(opts ...FactoryOption) *Factory {
	f := &Factory{
		rand:          rand.Reader,
		offlineRounds: OfflineRounds,
	}
	for _, apply := range opts {
		apply(f)
	}
	return f
}

// OfflineRounds returns the number of rounds of the offline stages created by the factory.
func (f *Factory) OfflineRounds() int {
	return f.offlineRounds
}

func (f *Factory) NewKeygen(params tss.Parameters, index uint16) (module.KeygenEngine, error) {
	engine, err := NewKeygenEngine(params, index, f.rand)
	if err != nil {
		return nil, fmt.Errorf("could not create key generation engine: %w", err)
	}
	return engine, nil
}

func (f *Factory) NewOfflineStage(localIndex uint16, participants []uint16, share *tss.KeyShare) (module.OfflineStageEngine, error) {
	engine, err := NewOfflineStageEngine(localIndex, participants, share, f.offlineRounds, f.rand)
	if err != nil {
		return nil, fmt.Errorf("could not create offline stage engine: %w", err)
	}
	return engine, nil
}

func (f *Factory) NewSignManual(preSignature *tss.PreSignature, digest []byte) (module.SignManual, error) {
	manual, err := NewSignManual(preSignature, digest)
	if err != nil {
		return nil, fmt.Errorf("could not create partial signature: %w", err)
	}
	return manual, nil
}
