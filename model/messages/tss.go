package messages

import (
	"fmt"
)

// Message is the unit exchanged between the parties of a threshold protocol
// execution. Messages are relayed by the session coordination server, which
// treats the Body as opaque.
//
// A nil Receiver denotes a broadcast to all other parties of the session.
type Message struct {
	Round     uint32  `json:"round"`
	SessionID string  `json:"uuid"`
	Sender    uint16  `json:"sender"`
	Receiver  *uint16 `json:"receiver"`
	Body      []byte  `json:"body"`
}

// NewBroadcastMessage creates a message addressed to all other parties.
func NewBroadcastMessage(round uint32, sender uint16, body []byte) *Message {
	return &Message{
		Round:  round,
		Sender: sender,
		Body:   body,
	}
}

// NewDirectMessage creates a message addressed to a single party.
func NewDirectMessage(round uint32, sender uint16, receiver uint16, body []byte) *Message {
	return &Message{
		Round:    round,
		Sender:   sender,
		Receiver: &receiver,
		Body:     body,
	}
}

// IsBroadcast returns true if the message is not addressed to a single party.
func (m *Message) IsBroadcast() bool {
	return m.Receiver == nil
}

// IsFor returns true if a party with the given index should receive the message.
// A party never receives its own messages.
func (m *Message) IsFor(party uint16) bool {
	if m.Sender == party {
		return false
	}
	return m.Receiver == nil || *m.Receiver == party
}

func (m *Message) String() string {
	receiver := "*"
	if m.Receiver != nil {
		receiver = fmt.Sprintf("%d", *m.Receiver)
	}
	return fmt.Sprintf("message(round=%d, session=%s, %d->%s, %d bytes)", m.Round, m.SessionID, m.Sender, receiver, len(m.Body))
}

// RoundOutput is the result of a round transition: the number of the round
// whose incoming messages must be collected next, and the messages this party
// emits for it.
type RoundOutput struct {
	Round    uint32
	Messages []*Message
}
