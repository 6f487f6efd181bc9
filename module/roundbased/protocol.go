package roundbased

import (
	"context"
	"fmt"

	"github.com/onflow/flow-tss/model/messages"
	"github.com/onflow/flow-tss/module"
)

// Handle feeds every incoming message into the protocol engine, in order.
func Handle(ctx context.Context, engine module.ProtocolEngine, incoming []*messages.Message) error {
	for _, msg := range incoming {
		err := engine.HandleIncoming(ctx, msg)
		if err != nil {
			return fmt.Errorf("could not handle message from party %d in round %d: %w", msg.Sender, msg.Round, err)
		}
	}
	return nil
}

// ProtocolTransition returns the standard transition of a round driving a
// protocol engine: handle the previous round's messages, then proceed.
// The first round of a pipeline receives no messages and only proceeds.
func ProtocolTransition(engine module.ProtocolEngine) TransitionFunc {
	return func(ctx context.Context, incoming []*messages.Message) (*messages.RoundOutput, error) {
		err := Handle(ctx, engine, incoming)
		if err != nil {
			return nil, err
		}
		return engine.Proceed(ctx)
	}
}

// ProtocolRounds returns `count` standard rounds driving the engine, named
// "<name> round <i>".
func ProtocolRounds(name string, engine module.ProtocolEngine, count int) []Round {
	rounds := make([]Round, 0, count)
	for i := 1; i <= count; i++ {
		rounds = append(rounds, Round{
			Name:       fmt.Sprintf("%s round %d", name, i),
			Transition: ProtocolTransition(engine),
		})
	}
	return rounds
}
