package roundbased

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onflow/flow-tss/model/messages"
	"github.com/onflow/flow-tss/utils/unittest"
)

func TestNewSink(t *testing.T) {
	_, err := NewSink("", 2)
	require.Error(t, err)

	_, err = NewSink(unittest.SessionIDFixture(), 0)
	require.Error(t, err)

	sessionID := unittest.SessionIDFixture()
	sink, err := NewSink(sessionID, 2)
	require.NoError(t, err)
	assert.Equal(t, sessionID, sink.SessionID())
	assert.Equal(t, 2, sink.Expected())
	assert.NoError(t, sink.Err())
}

// TestSink_RoundCompletion checks that a round is ready exactly once it holds
// the expected number of messages, and that taking it returns them ordered by
// sender.
func TestSink_RoundCompletion(t *testing.T) {
	sessionID := unittest.SessionIDFixture()
	sink, err := NewSink(sessionID, 3)
	require.NoError(t, err)

	for _, sender := range []uint16{4, 2} {
		require.NoError(t, sink.ReceiveMessage(unittest.MessageFixture(sessionID, 1, sender)))
		assert.False(t, sink.IsReady(1))
	}

	_, err = sink.Take(1)
	require.ErrorIs(t, err, ErrRoundNotReady)

	require.NoError(t, sink.ReceiveMessage(unittest.MessageFixture(sessionID, 1, 3)))
	assert.True(t, sink.IsReady(1))

	taken, err := sink.Take(1)
	require.NoError(t, err)
	require.Len(t, taken, 3)
	assert.Equal(t, uint16(2), taken[0].Sender)
	assert.Equal(t, uint16(3), taken[1].Sender)
	assert.Equal(t, uint16(4), taken[2].Sender)

	// taken rounds are gone
	assert.False(t, sink.IsReady(1))
	_, err = sink.Take(1)
	require.ErrorIs(t, err, ErrRoundNotReady)
}

// TestSink_RoundsAreIndependent checks that messages of future rounds are
// buffered while an earlier round is still incomplete.
func TestSink_RoundsAreIndependent(t *testing.T) {
	sessionID := unittest.SessionIDFixture()
	sink, err := NewSink(sessionID, 2)
	require.NoError(t, err)

	for _, msg := range unittest.MessagesFixture(sessionID, 2, 3, 1) {
		require.NoError(t, sink.ReceiveMessage(msg))
	}
	require.NoError(t, sink.ReceiveMessage(unittest.MessageFixture(sessionID, 1, 2)))

	assert.False(t, sink.IsReady(1))
	assert.True(t, sink.IsReady(2))

	taken, err := sink.Take(2)
	require.NoError(t, err)
	assert.Len(t, taken, 2)
}

func TestSink_Notifications(t *testing.T) {
	sessionID := unittest.SessionIDFixture()
	sink, err := NewSink(sessionID, 2)
	require.NoError(t, err)

	select {
	case <-sink.Ready():
		t.Fatal("unexpected notification before any message")
	default:
	}

	require.NoError(t, sink.ReceiveMessage(unittest.MessageFixture(sessionID, 1, 2)))
	select {
	case <-sink.Ready():
	default:
		t.Fatal("expected notification after accepted message")
	}
}

// TestSink_OverDelivery checks that the message exceeding the expected count
// of a round fails the sink.
func TestSink_OverDelivery(t *testing.T) {
	sessionID := unittest.SessionIDFixture()

	t.Run("round already complete", func(t *testing.T) {
		sink, err := NewSink(sessionID, 2)
		require.NoError(t, err)

		require.NoError(t, sink.ReceiveMessage(unittest.MessageFixture(sessionID, 1, 2)))
		require.NoError(t, sink.ReceiveMessage(unittest.MessageFixture(sessionID, 1, 3)))

		err = sink.ReceiveMessage(unittest.MessageFixture(sessionID, 1, 4))
		require.True(t, IsOverDeliveryError(err))
		assert.True(t, IsOverDeliveryError(sink.Err()))
	})

	t.Run("duplicate sender", func(t *testing.T) {
		sink, err := NewSink(sessionID, 2)
		require.NoError(t, err)

		require.NoError(t, sink.ReceiveMessage(unittest.MessageFixture(sessionID, 1, 2)))
		err = sink.ReceiveMessage(unittest.MessageFixture(sessionID, 1, 2))
		require.True(t, IsOverDeliveryError(err))
		assert.False(t, sink.IsReady(1))
	})

	t.Run("round already consumed", func(t *testing.T) {
		sink, err := NewSink(sessionID, 1)
		require.NoError(t, err)

		require.NoError(t, sink.ReceiveMessage(unittest.MessageFixture(sessionID, 1, 2)))
		_, err = sink.Take(1)
		require.NoError(t, err)

		err = sink.ReceiveMessage(unittest.MessageFixture(sessionID, 1, 3))
		require.True(t, IsOverDeliveryError(err))
	})
}

// TestSink_SessionIsolation checks that a sink never stores messages of
// another session, including messages without a session id.
func TestSink_SessionIsolation(t *testing.T) {
	sessionID := unittest.SessionIDFixture()

	for name, other := range map[string]string{
		"foreign session": unittest.SessionIDFixture(),
		"no session":      "",
	} {
		t.Run(name, func(t *testing.T) {
			sink, err := NewSink(sessionID, 1)
			require.NoError(t, err)

			err = sink.ReceiveMessage(unittest.MessageFixture(other, 1, 2))
			require.True(t, IsSessionMismatchError(err))
			assert.False(t, sink.IsReady(1))
			assert.True(t, IsSessionMismatchError(sink.Err()))
		})
	}
}

// TestSink_RoundZero checks that round numbers start at 1: a message for
// round 0 fails the sink.
func TestSink_RoundZero(t *testing.T) {
	sessionID := unittest.SessionIDFixture()
	sink, err := NewSink(sessionID, 1)
	require.NoError(t, err)

	err = sink.ReceiveMessage(unittest.MessageFixture(sessionID, 0, 2))
	require.ErrorIs(t, err, ErrInvalidRound)
	assert.False(t, sink.IsReady(0))
	assert.ErrorIs(t, sink.Err(), ErrInvalidRound)

	err = sink.ReceiveMessage(unittest.MessageFixture(sessionID, 1, 2))
	assert.ErrorIs(t, err, ErrInvalidRound)
	assert.False(t, sink.IsReady(1))
}

// TestSink_FailureIsSticky checks that a failed sink rejects every further
// message and keeps reporting the first failure.
func TestSink_FailureIsSticky(t *testing.T) {
	sessionID := unittest.SessionIDFixture()
	sink, err := NewSink(sessionID, 2)
	require.NoError(t, err)

	require.Error(t, sink.ReceiveMessage(unittest.MessageFixture(unittest.SessionIDFixture(), 1, 2)))

	err = sink.ReceiveMessage(unittest.MessageFixture(sessionID, 1, 2))
	require.Error(t, err)
	assert.True(t, IsSessionMismatchError(err))
	assert.False(t, sink.IsReady(1))

	require.Error(t, sink.ReceiveMessage(nil))
}

func TestSink_ConcurrentDelivery(t *testing.T) {
	sessionID := unittest.SessionIDFixture()
	const parties = 20
	sink, err := NewSink(sessionID, parties-1)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for _, msg := range unittest.MessagesFixture(sessionID, 3, parties, 1) {
		wg.Add(1)
		go func(msg *messages.Message) {
			defer wg.Done()
			assert.NoError(t, sink.ReceiveMessage(msg))
		}(msg)
	}
	unittest.RequireReturnsBefore(t, wg.Wait, unittest.DefaultTimeout, "concurrent delivery did not finish")

	require.True(t, sink.IsReady(3))
	taken, err := sink.Take(3)
	require.NoError(t, err)
	for i, msg := range taken {
		assert.Equal(t, uint16(i+2), msg.Sender)
	}
}
