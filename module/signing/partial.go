package signing

import (
	"context"
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/onflow/flow-tss/model/messages"
	"github.com/onflow/flow-tss/model/tss"
	"github.com/onflow/flow-tss/module"
	"github.com/onflow/flow-tss/module/roundbased"
)

// NewPartialSignature returns the single round and the finalizer of the
// partial signature exchange, run on the given round number. The local
// partial signature is broadcast; the finalizer assembles the signature from
// the partial signatures of the other signers.
func NewPartialSignature(manual module.SignManual, round uint32) ([]roundbased.Round, roundbased.Finalizer[*tss.Signature]) {
	exchange := roundbased.Round{
		Name: "partial signature",
		Transition: func(context.Context, []*messages.Message) (*messages.RoundOutput, error) {
			partial := manual.Partial()
			body, err := cbor.Marshal(partial)
			if err != nil {
				return nil, fmt.Errorf("could not encode partial signature: %w", err)
			}
			return &messages.RoundOutput{
				Round:    round,
				Messages: []*messages.Message{messages.NewBroadcastMessage(round, partial.Sender, body)},
			}, nil
		},
	}

	finalizer := roundbased.Finalizer[*tss.Signature]{
		Name: "signature",
		Finalize: func(ctx context.Context, incoming []*messages.Message) (*tss.Signature, error) {
			partials := make([]tss.PartialSignature, 0, len(incoming))
			for _, msg := range incoming {
				var partial tss.PartialSignature
				err := cbor.Unmarshal(msg.Body, &partial)
				if err != nil {
					return nil, fmt.Errorf("could not decode partial signature of party %d: %w", msg.Sender, err)
				}
				if partial.Sender != msg.Sender {
					return nil, fmt.Errorf("party %d relayed the partial signature of party %d", msg.Sender, partial.Sender)
				}
				partials = append(partials, partial)
			}

			signature, err := manual.Create(ctx, partials)
			if err != nil {
				return nil, fmt.Errorf("could not assemble signature: %w", err)
			}
			return signature, nil
		},
	}

	return []roundbased.Round{exchange}, finalizer
}
