package module

import (
	"context"
	"time"

	"github.com/onflow/flow-tss/model/messages"
	"github.com/onflow/flow-tss/model/tss"
)

// Stream delivers outgoing protocol messages to the other parties of one
// session. Implementations must stamp the session ID they are bound to on
// messages which do not carry one.
type Stream interface {
	// SendMessage dispatches a single message. There is no batching and no
	// retry: any error is final for the protocol execution.
	SendMessage(ctx context.Context, msg *messages.Message) error
}

// Sink collects incoming protocol messages of one session, grouped by round.
// The network listener is its only writer, a round-based engine its only reader.
type Sink interface {
	// SessionID returns the session the sink collects messages of.
	SessionID() string

	// ReceiveMessage stores an incoming message.
	// Expected errors during normal operations:
	//   - SessionMismatchError if the message belongs to another session
	//   - OverDeliveryError if the round already holds the expected number of messages
	//   - ErrInvalidRound if the message carries round number 0
	ReceiveMessage(msg *messages.Message) error

	// IsReady returns true once all expected messages of the round arrived.
	IsReady(round uint32) bool

	// Take removes and returns the messages collected for a ready round.
	Take(round uint32) ([]*messages.Message, error)

	// Ready returns a channel that receives a notification whenever a message
	// is accepted or the sink fails.
	Ready() <-chan struct{}

	// Err returns the first error the sink encountered, if any. A failed
	// sink cannot be used to complete a protocol execution.
	Err() error
}

// ProtocolEngine is the opaque cryptographic state machine driven by the round
// pipelines. It decides what each round computes, the pipelines only pump
// messages in and out of it.
type ProtocolEngine interface {
	// Proceed advances the state machine and returns the round whose messages
	// must be collected next together with the messages to send for it.
	Proceed(ctx context.Context) (*messages.RoundOutput, error)

	// HandleIncoming feeds one peer message into the state machine. It must be
	// called for every message of a round before the next Proceed.
	HandleIncoming(ctx context.Context, msg *messages.Message) error
}

// KeygenEngine is a ProtocolEngine for distributed key generation.
type KeygenEngine interface {
	ProtocolEngine

	// Create extracts the key share once all rounds completed.
	Create(ctx context.Context) (*tss.KeyShare, error)
}

// OfflineStageEngine is a ProtocolEngine computing the pre-signature material
// of a signing session.
type OfflineStageEngine interface {
	ProtocolEngine

	// Create extracts the completed offline stage once all rounds completed.
	Create(ctx context.Context) (*tss.PreSignature, error)
}

// SignManual holds the local partial signature over a digest and assembles
// the final signature from the partial signatures of all other signers.
type SignManual interface {
	// Partial returns this party's partial signature.
	Partial() tss.PartialSignature

	// Create assembles the signature from the partial signatures of the other
	// signers.
	Create(ctx context.Context, partials []tss.PartialSignature) (*tss.Signature, error)
}

// ProtocolFactory instantiates the protocol engines of one threshold scheme.
// A new engine must be created for every protocol execution.
type ProtocolFactory interface {
	// NewKeygen creates a key generation engine for the party with the given
	// 1-based index.
	NewKeygen(params tss.Parameters, index uint16) (KeygenEngine, error)

	// NewOfflineStage creates an offline stage engine. Participants lists the
	// key share indices of all signers ordered by signup number, localIndex is
	// the 1-based position of this party in that list.
	NewOfflineStage(localIndex uint16, participants []uint16, share *tss.KeyShare) (OfflineStageEngine, error)

	// NewSignManual computes the local partial signature over digest.
	NewSignManual(preSignature *tss.PreSignature, digest []byte) (SignManual, error)
}

// TransitionConsumer is informed whenever a round-based engine moves from one
// step to the next. Previous is empty for the first round. Implementations
// must be non-blocking.
type TransitionConsumer func(previous string, current string)

// TSSMetrics collects metrics about threshold protocol executions.
type TSSMetrics interface {
	// RoundCompleted records that all messages of a round were collected.
	RoundCompleted(protocol string, duration time.Duration)

	// MessageSent records an outgoing protocol message.
	MessageSent(protocol string)

	// MessagesReceived records a batch of collected incoming protocol messages.
	MessagesReceived(protocol string, count int)

	// ExecutionFinished records the outcome of a full protocol execution.
	ExecutionFinished(protocol string, duration time.Duration, err error)
}

// RelayMetrics collects metrics about requests to the session coordination server.
type RelayMetrics interface {
	RelayRequest(method string, err error)
}
