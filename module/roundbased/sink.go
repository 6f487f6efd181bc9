package roundbased

import (
	"fmt"
	"sync"

	"golang.org/x/exp/slices"

	"github.com/onflow/flow-tss/model/messages"
	"github.com/onflow/flow-tss/module"
)

// Sink buffers the incoming messages of one protocol execution by round and
// reports when a round is complete.
//
// A round is complete once it holds exactly `expected` messages, usually one
// from every other party. Over-delivery and messages from other sessions fail
// the sink permanently: the first such error is returned by Err and every
// subsequent ReceiveMessage. Rounds are closed once taken, so round numbers
// must be unique for the lifetime of the sink.
//
// Sink is safe for concurrent use.
type Sink struct {
	mu        sync.Mutex
	sessionID string
	expected  int
	rounds    map[uint32][]*messages.Message
	closed    map[uint32]struct{}
	err       error
	notifier  module.Notifier
}

var _ module.Sink = (*Sink)(nil)

// NewSink creates a sink bound to the given session, expecting `expected`
// messages per round.
func NewSink(sessionID string, expected int) (*Sink, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("sink requires a session id")
	}
	if expected < 1 {
		return nil, fmt.Errorf("sink must expect at least one message per round, got %d", expected)
	}
	return &Sink{
		sessionID: sessionID,
		expected:  expected,
		rounds:    make(map[uint32][]*messages.Message),
		closed:    make(map[uint32]struct{}),
		notifier:  module.NewNotifier(),
	}, nil
}

// SessionID returns the session the sink is bound to.
func (s *Sink) SessionID() string {
	return s.sessionID
}

// Expected returns the number of messages completing a round.
func (s *Sink) Expected() int {
	return s.expected
}

// ReceiveMessage stores an incoming message.
// Expected errors during normal operations:
//   - SessionMismatchError if the message is not correlated with the sink's session
//   - OverDeliveryError if the message's round is full, closed, or already holds a message from the sender
//   - ErrInvalidRound if the message carries round number 0
func (s *Sink) ReceiveMessage(msg *messages.Message) error {
	if msg == nil {
		return fmt.Errorf("cannot receive nil message")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.err != nil {
		return fmt.Errorf("sink has failed: %w", s.err)
	}

	if msg.SessionID != s.sessionID {
		return s.fail(NewSessionMismatchError(s.sessionID, msg.SessionID))
	}

	if msg.Round == 0 {
		return s.fail(fmt.Errorf("message from party %d: %w", msg.Sender, ErrInvalidRound))
	}

	if _, ok := s.closed[msg.Round]; ok {
		return s.fail(NewOverDeliveryError(msg.Round, msg.Sender, s.expected, "round already consumed"))
	}

	bucket := s.rounds[msg.Round]
	if len(bucket) >= s.expected {
		return s.fail(NewOverDeliveryError(msg.Round, msg.Sender, s.expected, "round already complete"))
	}
	for _, stored := range bucket {
		if stored.Sender == msg.Sender {
			return s.fail(NewOverDeliveryError(msg.Round, msg.Sender, s.expected, "duplicate sender"))
		}
	}

	s.rounds[msg.Round] = append(bucket, msg)
	s.notifier.Notify()
	return nil
}

// IsReady returns true if the round holds all expected messages.
func (s *Sink) IsReady(round uint32) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rounds[round]) == s.expected
}

// Take removes the messages of a ready round and returns them ordered by sender.
// Expected errors during normal operations:
//   - ErrRoundNotReady if the round is absent or incomplete
func (s *Sink) Take(round uint32) ([]*messages.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	bucket := s.rounds[round]
	if len(bucket) != s.expected {
		return nil, fmt.Errorf("cannot take round %d with %d/%d messages: %w", round, len(bucket), s.expected, ErrRoundNotReady)
	}

	delete(s.rounds, round)
	s.closed[round] = struct{}{}

	slices.SortStableFunc(bucket, func(a, b *messages.Message) int {
		return int(a.Sender) - int(b.Sender)
	})
	return bucket, nil
}

// Ready returns the channel notified whenever a message is accepted or the
// sink fails.
func (s *Sink) Ready() <-chan struct{} {
	return s.notifier.Channel()
}

// Err returns the error which failed the sink, if any.
func (s *Sink) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// fail records the first failure of the sink and wakes up the reader.
// Must be called with the lock held.
func (s *Sink) fail(err error) error {
	if s.err == nil {
		s.err = err
	}
	s.notifier.Notify()
	return err
}
