package signing

import (
	"context"
	"fmt"

	"github.com/onflow/flow-tss/model/messages"
	"github.com/onflow/flow-tss/model/tss"
	"github.com/onflow/flow-tss/module"
	"github.com/onflow/flow-tss/module/roundbased"
)

// DefaultOfflineRounds is the number of message rounds of the offline stage.
const DefaultOfflineRounds = 6

// PartialSignatureRound returns the round number of the partial signature
// exchange following an offline stage of the given number of rounds.
func PartialSignatureRound(offlineRounds int) uint32 {
	return IndexExchangeRound + uint32(offlineRounds) + 1
}

// NewOfflineStage returns the rounds and finalizer of an offline stage
// driven by engine. The engine numbers its rounds from 1, the session runs
// them after the index exchange.
func NewOfflineStage(offline module.OfflineStageEngine, rounds int) ([]roundbased.Round, roundbased.Finalizer[*tss.PreSignature], error) {
	if rounds < 1 {
		return nil, roundbased.Finalizer[*tss.PreSignature]{}, fmt.Errorf("offline stage requires at least one round, got %d", rounds)
	}
	engine := &shiftedEngine{OfflineStageEngine: offline, offset: IndexExchangeRound}

	finalizer := roundbased.Finalizer[*tss.PreSignature]{
		Name: "offline stage finalize",
		Finalize: func(ctx context.Context, incoming []*messages.Message) (*tss.PreSignature, error) {
			err := roundbased.Handle(ctx, engine, incoming)
			if err != nil {
				return nil, err
			}
			pre, err := engine.Create(ctx)
			if err != nil {
				return nil, fmt.Errorf("could not complete offline stage: %w", err)
			}
			if pre == nil {
				return nil, fmt.Errorf("engine completed no offline stage")
			}
			return pre, nil
		},
	}

	return roundbased.ProtocolRounds("offline stage", engine, rounds), finalizer, nil
}

// shiftedEngine maps the round numbers of an offline stage engine onto the
// round numbers of the signing session.
type shiftedEngine struct {
	module.OfflineStageEngine
	offset uint32
}

func (e *shiftedEngine) Proceed(ctx context.Context) (*messages.RoundOutput, error) {
	output, err := e.OfflineStageEngine.Proceed(ctx)
	if err != nil || output == nil {
		return output, err
	}
	shifted := &messages.RoundOutput{
		Round:    output.Round + e.offset,
		Messages: make([]*messages.Message, 0, len(output.Messages)),
	}
	for _, msg := range output.Messages {
		out := *msg
		out.Round += e.offset
		shifted.Messages = append(shifted.Messages, &out)
	}
	return shifted, nil
}

func (e *shiftedEngine) HandleIncoming(ctx context.Context, msg *messages.Message) error {
	if msg.Round <= e.offset {
		return fmt.Errorf("message from party %d for round %d precedes the offline stage", msg.Sender, msg.Round)
	}
	in := *msg
	in.Round -= e.offset
	return e.OfflineStageEngine.HandleIncoming(ctx, &in)
}
