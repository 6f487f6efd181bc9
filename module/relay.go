package module

import (
	"context"
	"encoding/json"
)

// RPCCaller issues request/response calls to the session coordination server.
type RPCCaller interface {
	// RPC calls method with params and decodes the response into result,
	// which may be nil if the response is irrelevant.
	RPC(ctx context.Context, method string, params interface{}, result interface{}) error
}

// EventHandler consumes the parameters of an event pushed by the session
// coordination server. Handlers run on the client's reader routine and must
// not block.
type EventHandler func(params json.RawMessage)

// ListenerID identifies a registered EventHandler.
type ListenerID uint64

// SessionClient is the client of the session coordination server which
// manages groups and sessions and relays protocol messages between parties.
type SessionClient interface {
	RPCCaller

	// Notify sends a fire-and-forget notification.
	Notify(ctx context.Context, method string, params interface{}) error

	// On registers a handler for every occurrence of an event.
	On(event string, handler EventHandler) ListenerID

	// Once registers a handler for the next occurrence of an event.
	Once(event string, handler EventHandler) ListenerID

	// Off removes a single handler.
	Off(id ListenerID)

	// RemoveAllListeners removes all handlers of an event.
	RemoveAllListeners(event string)
}
