package signing

import (
	"context"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"golang.org/x/exp/slices"

	"github.com/onflow/flow-tss/model/messages"
	"github.com/onflow/flow-tss/model/tss"
	"github.com/onflow/flow-tss/module/roundbased"
)

// IndexExchangeRound is the round number of the participant index exchange,
// the first round of a signing session.
const IndexExchangeRound uint32 = 1

// IndexExchangeResult is the outcome of the participant index exchange.
type IndexExchangeResult struct {
	// Participants lists the key share indices of all signers, ordered by signup number.
	Participants []uint16
	// LocalIndex is the 1-based position of the local party in Participants.
	LocalIndex uint16
}

// NewIndexExchange returns the single round and the finalizer of the
// participant index exchange. Every party broadcasts its key share index as
// sender and its signup number as body.
func NewIndexExchange(local tss.ParticipantIndex) ([]roundbased.Round, roundbased.Finalizer[*IndexExchangeResult]) {
	round := roundbased.Round{
		Name: "participant index exchange",
		Transition: func(context.Context, []*messages.Message) (*messages.RoundOutput, error) {
			body, err := cbor.Marshal(local.Signup)
			if err != nil {
				return nil, fmt.Errorf("could not encode signup number: %w", err)
			}
			return &messages.RoundOutput{
				Round:    IndexExchangeRound,
				Messages: []*messages.Message{messages.NewBroadcastMessage(IndexExchangeRound, local.Index, body)},
			}, nil
		},
	}

	finalizer := roundbased.Finalizer[*IndexExchangeResult]{
		Name: "participant order",
		Finalize: func(_ context.Context, incoming []*messages.Message) (*IndexExchangeResult, error) {
			return OrderParticipants(local, incoming)
		},
	}

	return []roundbased.Round{round}, finalizer
}

// OrderParticipants combines the local participant index with the ones
// received from the other signers and orders them by signup number.
// The offline stage depends on this order: every signer must list the
// participants identically.
func OrderParticipants(local tss.ParticipantIndex, incoming []*messages.Message) (*IndexExchangeResult, error) {
	indices := make([]tss.ParticipantIndex, 0, len(incoming)+1)
	for _, msg := range incoming {
		var signup uint16
		err := cbor.Unmarshal(msg.Body, &signup)
		if err != nil {
			return nil, fmt.Errorf("could not decode signup number of party %d: %w", msg.Sender, err)
		}
		indices = append(indices, tss.ParticipantIndex{Index: msg.Sender, Signup: signup})
	}
	indices = append(indices, local)

	slices.SortStableFunc(indices, func(a, b tss.ParticipantIndex) int {
		return int(a.Signup) - int(b.Signup)
	})

	result := &IndexExchangeResult{Participants: make([]uint16, 0, len(indices))}
	for i, index := range indices {
		if i > 0 && indices[i-1].Signup == index.Signup {
			return nil, fmt.Errorf("parties %d and %d share signup number %d", indices[i-1].Index, index.Index, index.Signup)
		}
		if slices.Contains(result.Participants, index.Index) {
			return nil, fmt.Errorf("key share %d signed up twice", index.Index)
		}
		result.Participants = append(result.Participants, index.Index)
		if index == local {
			result.LocalIndex = uint16(i + 1)
		}
	}
	return result, nil
}
