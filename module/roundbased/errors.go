package roundbased

import (
	"errors"
	"fmt"
)

var (
	// ErrAlreadyStarted is returned when Start is called on an engine which
	// already ran. An engine drives exactly one protocol execution.
	ErrAlreadyStarted = errors.New("round-based engine already started")

	// ErrRoundNotReady is returned when taking the messages of a round which
	// has not received all expected messages yet.
	ErrRoundNotReady = errors.New("round is not ready")

	// ErrInvalidRound is returned for messages carrying round number 0.
	// Round numbers start at 1.
	ErrInvalidRound = errors.New("invalid round number")
)

// ProtocolError indicates that a round transition did not produce a result.
// This is a programming error of the round, never a network condition, and
// the protocol execution cannot be resumed.
type ProtocolError struct {
	Round string
	Err   error
}

func NewProtocolError(round string, err error) ProtocolError {
	return ProtocolError{
		Round: round,
		Err:   err,
	}
}

func NewProtocolErrorf(round string, msg string, args ...interface{}) ProtocolError {
	return NewProtocolError(round, fmt.Errorf(msg, args...))
}

func (e ProtocolError) Error() string {
	return fmt.Sprintf("protocol error in %s: %v", e.Round, e.Err)
}

func (e ProtocolError) Unwrap() error {
	return e.Err
}

// IsProtocolError returns whether err is a ProtocolError
func IsProtocolError(err error) bool {
	var target ProtocolError
	return errors.As(err, &target)
}

// SessionMismatchError is returned by a Sink receiving a message that is not
// correlated with the session the sink is bound to.
type SessionMismatchError struct {
	Expected string
	Actual   string
}

func NewSessionMismatchError(expected string, actual string) SessionMismatchError {
	return SessionMismatchError{
		Expected: expected,
		Actual:   actual,
	}
}

func (e SessionMismatchError) Error() string {
	if e.Actual == "" {
		return fmt.Sprintf("message without session id, expected %s", e.Expected)
	}
	return fmt.Sprintf("message for session %s, expected %s", e.Actual, e.Expected)
}

// IsSessionMismatchError returns whether err is a SessionMismatchError
func IsSessionMismatchError(err error) bool {
	var target SessionMismatchError
	return errors.As(err, &target)
}

// OverDeliveryError is returned by a Sink receiving more messages for a round
// than expected, a second message from the same sender, or a message for a
// round that was already consumed. It indicates a duplicate relay or a
// misconfigured sink, both of which would corrupt aggregation.
type OverDeliveryError struct {
	Round    uint32
	Sender   uint16
	Expected int
	reason   string
}

func NewOverDeliveryError(round uint32, sender uint16, expected int, reason string) OverDeliveryError {
	return OverDeliveryError{
		Round:    round,
		Sender:   sender,
		Expected: expected,
		reason:   reason,
	}
}

func (e OverDeliveryError) Error() string {
	return fmt.Sprintf("over-delivery in round %d from party %d (expected %d messages): %s", e.Round, e.Sender, e.Expected, e.reason)
}

// IsOverDeliveryError returns whether err is an OverDeliveryError
func IsOverDeliveryError(err error) bool {
	var target OverDeliveryError
	return errors.As(err, &target)
}
