package relay_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"

	"github.com/onflow/flow-tss/model/messages"
	"github.com/onflow/flow-tss/model/tss"
	"github.com/onflow/flow-tss/module/roundbased"
	"github.com/onflow/flow-tss/network/relay"
	"github.com/onflow/flow-tss/network/relay/relaytest"
	"github.com/onflow/flow-tss/utils/unittest"
)

func dial(t *testing.T, server *relaytest.Server) *relay.Client {
	ctx, cancel := context.WithTimeout(context.Background(), unittest.DefaultTimeout)
	defer cancel()
	client, err := relay.Dial(ctx, unittest.Logger(), server.Config())
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = client.Close()
	})
	return client
}

func TestClient_RPC(t *testing.T) {
	server := relaytest.NewServer(unittest.Logger())
	defer server.Close()
	client := dial(t, server)
	ctx := context.Background()

	params := tss.Parameters{Parties: 3, Threshold: 1}
	group, err := relay.CreateGroup(ctx, client, "treasury", params)
	require.NoError(t, err)
	assert.NotEmpty(t, group.ID)
	assert.Equal(t, "treasury", group.Label)
	assert.Equal(t, params, group.Params)

	joined, err := relay.JoinGroup(ctx, client, group.ID)
	require.NoError(t, err)
	assert.Equal(t, group, joined)

	session, err := relay.CreateSession(ctx, client, group.ID, tss.SessionKeygen)
	require.NoError(t, err)
	assert.Equal(t, group.ID, session.GroupID)
	assert.Equal(t, tss.SessionKeygen, session.Kind)

	_, err = relay.JoinGroup(ctx, client, unittest.SessionIDFixture())
	require.Error(t, err)
	assert.True(t, relay.IsRPCError(err))

	err = client.RPC(ctx, "Unknown.method", nil, nil)
	var rpcErr *relay.RPCError
	require.True(t, errors.As(err, &rpcErr))
	assert.Equal(t, -32601, rpcErr.Code)
}

// TestClient_Events checks that events reach registered handlers, that Once
// handlers fire a single time and that removed handlers no longer fire.
func TestClient_Events(t *testing.T) {
	server := relaytest.NewServer(unittest.Logger())
	defer server.Close()
	announcer := dial(t, server)
	receiver := dial(t, server)
	ctx := context.Background()

	group, err := relay.CreateGroup(ctx, announcer, "events", tss.Parameters{Parties: 2, Threshold: 1})
	require.NoError(t, err)
	_, err = relay.JoinGroup(ctx, receiver, group.ID)
	require.NoError(t, err)

	every := atomic.NewInt32(0)
	once := atomic.NewInt32(0)
	off := atomic.NewInt32(0)
	addresses := make(chan string, 10)
	receiver.On(relay.EventNotifyAddress, func(params json.RawMessage) {
		var announcement relay.AddressAnnouncement
		if json.Unmarshal(params, &announcement) == nil {
			addresses <- announcement.Address
		}
		every.Inc()
	})
	receiver.Once(relay.EventNotifyAddress, func(json.RawMessage) {
		once.Inc()
	})
	id := receiver.On(relay.EventNotifyAddress, func(json.RawMessage) {
		off.Inc()
	})
	receiver.Off(id)

	require.NoError(t, relay.NotifyAddress(ctx, announcer, group.ID, "0x01"))
	require.NoError(t, relay.NotifyAddress(ctx, announcer, group.ID, "0x02"))
	require.Eventually(t, func() bool {
		return every.Load() == 2
	}, unittest.DefaultTimeout, 10*time.Millisecond)
	assert.Equal(t, int32(1), once.Load())
	assert.Equal(t, int32(0), off.Load())
	assert.Equal(t, "0x01", <-addresses)
	assert.Equal(t, "0x02", <-addresses)

	receiver.RemoveAllListeners(relay.EventNotifyAddress)
	require.NoError(t, relay.NotifyAddress(ctx, announcer, group.ID, "0x03"))
	require.NoError(t, relay.NotifyProposal(ctx, announcer, relay.Proposal{GroupID: group.ID, Message: "hello"}))
	require.Eventually(t, func() bool {
		return len(server.Notifications()) == 4
	}, unittest.DefaultTimeout, 10*time.Millisecond)
	assert.Equal(t, int32(2), every.Load())
}

// TestClient_SessionMessages relays a protocol message between two parties
// of a session into the receiver's sink.
func TestClient_SessionMessages(t *testing.T) {
	server := relaytest.NewServer(unittest.Logger())
	defer server.Close()
	sender := dial(t, server)
	receiver := dial(t, server)
	ctx := context.Background()

	group, err := relay.CreateGroup(ctx, sender, "messages", tss.Parameters{Parties: 2, Threshold: 1})
	require.NoError(t, err)
	session, err := relay.CreateSession(ctx, sender, group.ID, tss.SessionKeygen)
	require.NoError(t, err)

	sink, err := roundbased.NewSink(session.ID, 1)
	require.NoError(t, err)
	stop := relay.Listen(unittest.Logger(), receiver, sink)
	defer stop()

	_, err = relay.JoinGroup(ctx, receiver, group.ID)
	require.NoError(t, err)
	_, err = relay.JoinSession(ctx, receiver, group.ID, session.ID)
	require.NoError(t, err)

	signups := make(chan uint16, 2)
	params, err := relay.WaitFor(ctx, receiver, relay.EventSessionSignup, nil, func() error {
		first, err := relay.Signup(ctx, sender, group.ID, session.ID)
		if err != nil {
			return err
		}
		second, err := relay.Signup(ctx, receiver, group.ID, session.ID)
		if err != nil {
			return err
		}
		signups <- first.Number
		signups <- second.Number
		return nil
	})
	require.NoError(t, err)
	var signedUp string
	require.NoError(t, json.Unmarshal(params, &signedUp))
	assert.Equal(t, session.ID, signedUp)
	assert.Equal(t, uint16(1), <-signups)
	assert.Equal(t, uint16(2), <-signups)

	stream := relay.NewStream(sender, group.ID, session.ID)
	msg := messages.NewDirectMessage(1, 1, 2, []byte("commitment"))
	require.NoError(t, stream.SendMessage(ctx, msg))

	require.Eventually(t, func() bool {
		return sink.IsReady(1)
	}, unittest.DefaultTimeout, 10*time.Millisecond)
	received, err := sink.Take(1)
	require.NoError(t, err)
	require.Len(t, received, 1)
	assert.Equal(t, session.ID, received[0].SessionID)
	assert.Equal(t, []byte("commitment"), received[0].Body)
	require.NotNil(t, received[0].Receiver)
	assert.Equal(t, uint16(2), *received[0].Receiver)
}

func TestClient_Close(t *testing.T) {
	server := relaytest.NewServer(unittest.Logger())
	defer server.Close()
	client, err := relay.Dial(context.Background(), unittest.Logger(), server.Config())
	require.NoError(t, err)

	require.NoError(t, client.Close())
	unittest.RequireReturnsBefore(t, func() { <-client.Done() }, unittest.DefaultTimeout, "client did not stop")
	require.NoError(t, client.Close())

	err = client.RPC(context.Background(), relay.MethodGroupJoin, []string{"group"}, nil)
	require.ErrorIs(t, err, relay.ErrClientClosed)
}

func TestClient_ServerGone(t *testing.T) {
	server := relaytest.NewServer(unittest.Logger())
	client, err := relay.Dial(context.Background(), unittest.Logger(), server.Config())
	require.NoError(t, err)

	server.Close()
	unittest.RequireReturnsBefore(t, func() { <-client.Done() }, unittest.DefaultTimeout, "client did not notice the server going away")
	assert.Error(t, client.Err())

	_, err = relay.JoinGroup(context.Background(), client, "group")
	require.ErrorIs(t, err, relay.ErrClientClosed)
}

func TestDial_Unreachable(t *testing.T) {
	server := relaytest.NewServer(unittest.Logger())
	config := server.Config()
	server.Close()

	config.DialRetries = 2
	config.DialBackoff = 10 * time.Millisecond
	_, err := relay.Dial(context.Background(), unittest.Logger(), config)
	require.Error(t, err)

	config.URL = ""
	_, err = relay.Dial(context.Background(), unittest.Logger(), config)
	require.Error(t, err)
}

// TestDial_RetriesUntilReachable checks that the initial dial backs off and
// retries while the relay refuses connections.
func TestDial_RetriesUntilReachable(t *testing.T) {
	attempts := atomic.NewInt32(0)
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Inc() <= 2 {
			http.Error(w, "starting", http.StatusServiceUnavailable)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	config := relay.DefaultConfig()
	config.URL = "ws" + strings.TrimPrefix(server.URL, "http")
	config.MaxRequestsPerSecond = 0
	config.DialRetries = 5
	config.DialBackoff = 10 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), unittest.DefaultTimeout)
	defer cancel()
	client, err := relay.Dial(ctx, unittest.Logger(), config)
	require.NoError(t, err)
	assert.Equal(t, int32(3), attempts.Load())
	assert.NoError(t, client.Close())
}
