// Package stub provides an in-memory relay connecting the parties of
// protocol executions within one process.
package stub

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/onflow/flow-tss/model/messages"
	"github.com/onflow/flow-tss/module"
)

// Hub relays messages between the parties of its sessions. Broadcasts are
// delivered to every other member, direct messages to the member joined
// under the receiver's number. Delivery failures are logged and dropped,
// like a real relay would.
type Hub struct {
	log       zerolog.Logger
	mu        sync.RWMutex
	sessions  map[string]map[uint16]module.Sink
	duplicate bool
	delivered map[string]int
}

type HubOption func(*Hub)

// WithDuplicateDelivery makes the hub deliver every message twice.
func WithDuplicateDelivery() HubOption {
	return func(h *Hub) {
		h.duplicate = true
	}
}

func NewHub(log zerolog.Logger, opts ...HubOption) *Hub {
	h := &Hub{
		log:       log.With().Str("component", "stub_hub").Logger(),
		sessions:  make(map[string]map[uint16]module.Sink),
		delivered: make(map[string]int),
	}
	for _, apply := range opts {
		apply(h)
	}
	return h
}

// NewSession returns a fresh session identifier.
func (h *Hub) NewSession() string {
	sessionID := uuid.New().String()
	h.mu.Lock()
	h.sessions[sessionID] = make(map[uint16]module.Sink)
	h.mu.Unlock()
	return sessionID
}

// Join registers the sink of a party with a session and returns the party's
// stream. The returned function unregisters the sink.
func (h *Hub) Join(sessionID string, party uint16, sink module.Sink) (*Conduit, func(), error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	members, ok := h.sessions[sessionID]
	if !ok {
		return nil, nil, fmt.Errorf("unknown session %s", sessionID)
	}
	if _, ok := members[party]; ok {
		return nil, nil, fmt.Errorf("party %d already joined session %s", party, sessionID)
	}
	members[party] = sink

	leave := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		delete(h.sessions[sessionID], party)
	}
	conduit := &Conduit{
		sessionID: sessionID,
		party:     party,
		submit:    h.submit,
	}
	return conduit, leave, nil
}

// Delivered returns how many times a message was handed to a sink.
func (h *Hub) Delivered(msg *messages.Message) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.delivered[messageKey(msg)]
}

func (h *Hub) submit(ctx context.Context, from uint16, msg *messages.Message) error {
	err := ctx.Err()
	if err != nil {
		return err
	}

	h.mu.Lock()
	members, ok := h.sessions[msg.SessionID]
	if !ok {
		h.mu.Unlock()
		return fmt.Errorf("unknown session %s", msg.SessionID)
	}
	var targets []module.Sink
	for party, sink := range members {
		if party == from {
			continue
		}
		if msg.Receiver != nil && *msg.Receiver != party {
			continue
		}
		targets = append(targets, sink)
	}
	key := messageKey(msg)
	times := 1
	if h.duplicate {
		times = 2
	}
	h.delivered[key] += len(targets) * times
	h.mu.Unlock()

	log := h.log.With().Str("message_id", key).Str("message", msg.String()).Logger()
	for _, sink := range targets {
		for i := 0; i < times; i++ {
			err := sink.ReceiveMessage(msg)
			if err != nil {
				log.Warn().Err(err).Msg("sink rejected message")
			}
		}
	}
	return nil
}
