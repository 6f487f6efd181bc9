// Package keygen runs distributed key generation on the round-based engine.
package keygen

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/onflow/flow-tss/model/messages"
	"github.com/onflow/flow-tss/model/tss"
	"github.com/onflow/flow-tss/module"
	"github.com/onflow/flow-tss/module/roundbased"
)

const (
	// DefaultRounds is the number of message rounds of the key generation.
	DefaultRounds = 4

	// Protocol labels key generation executions in logs and metrics.
	Protocol = "keygen"

	finalizerName = "keygen finalize"
)

// NewPipeline returns the rounds and finalizer of a key generation driven by
// engine. Every round feeds the messages of the previous round into the
// engine and proceeds. The finalizer feeds the last batch and extracts the
// key share.
func NewPipeline(engine module.KeygenEngine, rounds int) ([]roundbased.Round, roundbased.Finalizer[*tss.KeyShare], error) {
	if rounds < 1 {
		return nil, roundbased.Finalizer[*tss.KeyShare]{}, fmt.Errorf("key generation requires at least one round, got %d", rounds)
	}

	finalizer := roundbased.Finalizer[*tss.KeyShare]{
		Name: finalizerName,
		Finalize: func(ctx context.Context, incoming []*messages.Message) (*tss.KeyShare, error) {
			err := roundbased.Handle(ctx, engine, incoming)
			if err != nil {
				return nil, err
			}
			share, err := engine.Create(ctx)
			if err != nil {
				return nil, fmt.Errorf("could not create key share: %w", err)
			}
			if share == nil {
				return nil, fmt.Errorf("engine created no key share")
			}
			return share, nil
		},
	}

	return roundbased.ProtocolRounds(Protocol, engine, rounds), finalizer, nil
}

// Run executes a key generation with DefaultRounds and returns the local key
// share. The sink must already be receiving messages of the session.
func Run(
	ctx context.Context,
	log zerolog.Logger,
	engine module.KeygenEngine,
	onTransition module.TransitionConsumer,
	stream module.Stream,
	sink module.Sink,
	opts ...roundbased.Option,
) (*tss.KeyShare, error) {

	rounds, finalizer, err := NewPipeline(engine, DefaultRounds)
	if err != nil {
		return nil, err
	}

	opts = append([]roundbased.Option{roundbased.WithProtocol(Protocol)}, opts...)
	share, err := roundbased.NewEngine(log, rounds, finalizer, onTransition, stream, sink, opts...).Start(ctx)
	if err != nil {
		return nil, fmt.Errorf("key generation failed: %w", err)
	}
	return share, nil
}
