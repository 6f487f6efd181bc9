package keygen

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/onflow/flow-tss/model/messages"
	mockmodule "github.com/onflow/flow-tss/module/mock"
	"github.com/onflow/flow-tss/module/roundbased"
	"github.com/onflow/flow-tss/utils/unittest"
)

func TestNewPipeline_InvalidRounds(t *testing.T) {
	_, _, err := NewPipeline(mockmodule.NewKeygenEngine(t), 0)
	require.Error(t, err)
}

// TestRun drives a full key generation against a mocked protocol engine and
// checks that every collected message is fed into the engine before it
// proceeds, and that the finalizer feeds the last batch before creating the
// key share.
func TestRun(t *testing.T) {
	sessionID := unittest.SessionIDFixture()
	sink, err := roundbased.NewSink(sessionID, 2)
	require.NoError(t, err)

	engine := mockmodule.NewKeygenEngine(t)
	stream := mockmodule.NewStream(t)
	stream.On("SendMessage", mock.Anything, mock.Anything).Return(nil).Times(DefaultRounds)

	var handled []*messages.Message
	engine.On("HandleIncoming", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			handled = append(handled, args.Get(1).(*messages.Message))
		}).
		Return(nil)

	var batches [][]*messages.Message
	for round := uint32(1); round <= DefaultRounds; round++ {
		batch := unittest.MessagesFixture(sessionID, round, 3, 1)
		batches = append(batches, batch)
		for _, msg := range batch {
			require.NoError(t, sink.ReceiveMessage(msg))
		}

		expectedHandled := int(round-1) * 2
		output := &messages.RoundOutput{
			Round:    round,
			Messages: []*messages.Message{messages.NewBroadcastMessage(round, 1, unittest.RandomBytes(8))},
		}
		engine.On("Proceed", mock.Anything).
			Run(func(mock.Arguments) {
				assert.Len(t, handled, expectedHandled)
			}).
			Return(output, nil).
			Once()
	}

	share := unittest.KeyShareFixture(1)
	engine.On("Create", mock.Anything).
		Run(func(mock.Arguments) {
			assert.Len(t, handled, DefaultRounds*2)
		}).
		Return(share, nil).
		Once()

	var transitions []string
	result, err := Run(context.Background(), unittest.Logger(), engine, func(previous string, current string) {
		transitions = append(transitions, current)
	}, stream, sink)
	require.NoError(t, err)
	assert.Equal(t, share, result)

	var expected []*messages.Message
	for _, batch := range batches {
		expected = append(expected, batch...)
	}
	assert.Equal(t, expected, handled)
	assert.Equal(t, []string{
		"keygen round 1",
		"keygen round 2",
		"keygen round 3",
		"keygen round 4",
		"keygen finalize",
	}, transitions)
}

func TestRun_EngineFailures(t *testing.T) {
	t.Run("handle incoming", func(t *testing.T) {
		sessionID := unittest.SessionIDFixture()
		sink, err := roundbased.NewSink(sessionID, 1)
		require.NoError(t, err)
		require.NoError(t, sink.ReceiveMessage(unittest.MessageFixture(sessionID, 1, 2)))

		sentinel := errors.New("invalid commitment")
		engine := mockmodule.NewKeygenEngine(t)
		engine.On("Proceed", mock.Anything).Return(&messages.RoundOutput{Round: 1}, nil).Once()
		engine.On("HandleIncoming", mock.Anything, mock.Anything).Return(sentinel).Once()

		_, err = Run(context.Background(), unittest.Logger(), engine, nil, mockmodule.NewStream(t), sink)
		require.ErrorIs(t, err, sentinel)
		assert.True(t, roundbased.IsProtocolError(err))
	})

	t.Run("no key share", func(t *testing.T) {
		sessionID := unittest.SessionIDFixture()
		sink, err := roundbased.NewSink(sessionID, 1)
		require.NoError(t, err)

		engine := mockmodule.NewKeygenEngine(t)
		rounds, finalizer, err := NewPipeline(engine, 1)
		require.NoError(t, err)

		engine.On("Proceed", mock.Anything).Return(&messages.RoundOutput{Round: 1}, nil).Once()
		engine.On("HandleIncoming", mock.Anything, mock.Anything).Return(nil).Once()
		engine.On("Create", mock.Anything).Return(nil, nil).Once()
		require.NoError(t, sink.ReceiveMessage(unittest.MessageFixture(sessionID, 1, 2)))

		_, err = roundbased.NewEngine(unittest.Logger(), rounds, finalizer, nil, mockmodule.NewStream(t), sink).Start(context.Background())
		require.Error(t, err)
		assert.True(t, roundbased.IsProtocolError(err))
	})
}
