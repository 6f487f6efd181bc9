package relay

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog"

	"github.com/onflow/flow-tss/model/messages"
	"github.com/onflow/flow-tss/module"
)

// Stream sends the protocol messages of one session through the server.
type Stream struct {
	rpc       module.RPCCaller
	groupID   string
	sessionID string
}

var _ module.Stream = (*Stream)(nil)

func NewStream(rpc module.RPCCaller, groupID string, sessionID string) *Stream {
	return &Stream{
		rpc:       rpc,
		groupID:   groupID,
		sessionID: sessionID,
	}
}

// SendMessage stamps the stream's session on messages without one and
// relays the message. There is no retry.
func (s *Stream) SendMessage(ctx context.Context, msg *messages.Message) error {
	if msg.SessionID == "" {
		msg.SessionID = s.sessionID
	}
	return RelayMessage(ctx, s.rpc, s.groupID, s.sessionID, msg)
}

// Listen feeds the sink with the protocol messages relayed by the server.
// Messages of other sessions are skipped. The returned function unregisters
// the sink and must be called once the protocol execution ends.
func Listen(log zerolog.Logger, client module.SessionClient, sink module.Sink) (stop func()) {
	log = log.With().
		Str("component", "relay_listener").
		Str("session_id", sink.SessionID()).
		Logger()

	id := client.On(EventSessionMessage, func(params json.RawMessage) {
		var msg messages.Message
		err := json.Unmarshal(params, &msg)
		if err != nil {
			log.Warn().Err(err).Msg("dropping malformed protocol message")
			return
		}
		// messages without session are handed to the sink, which rejects them
		if msg.SessionID != "" && msg.SessionID != sink.SessionID() {
			log.Debug().Str("message", msg.String()).Msg("skipping message of another session")
			return
		}

		err = sink.ReceiveMessage(&msg)
		if err != nil {
			log.Error().Err(err).Str("message", msg.String()).Msg("sink rejected protocol message")
		}
	})

	return func() {
		client.Off(id)
	}
}

// WaitFor blocks until the event is emitted with params satisfying match.
// The listener is registered before WaitFor returns control to the caller
// through ready, so that an event triggered right after cannot be missed.
func WaitFor(ctx context.Context, client module.SessionClient, event string, match func(json.RawMessage) bool, ready func() error) (json.RawMessage, error) {
	received := make(chan json.RawMessage, 1)
	id := client.On(event, func(params json.RawMessage) {
		if match != nil && !match(params) {
			return
		}
		select {
		case received <- params:
		default:
		}
	})
	defer client.Off(id)

	if ready != nil {
		err := ready()
		if err != nil {
			return nil, err
		}
	}

	select {
	case params := <-received:
		return params, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
