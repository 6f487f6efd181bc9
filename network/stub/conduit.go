package stub

import (
	"context"

	"github.com/onflow/flow-tss/model/messages"
	"github.com/onflow/flow-tss/module"
)

// Conduit is the Stream of one party of a hub session.
type Conduit struct {
	sessionID string
	party     uint16
	submit    func(ctx context.Context, from uint16, msg *messages.Message) error
}

var _ module.Stream = (*Conduit)(nil)

// SendMessage stamps the conduit's session on messages without one and
// relays the message to the other parties of the session.
func (c *Conduit) SendMessage(ctx context.Context, msg *messages.Message) error {
	if msg.SessionID == "" {
		msg.SessionID = c.sessionID
	}
	return c.submit(ctx, c.party, msg)
}
