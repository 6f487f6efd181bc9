package simulated

import (
	"fmt"

	"golang.org/x/exp/slices"

	"github.com/onflow/flow-tss/model/messages"
)

// inbox collects the peer messages of the round a state machine is in.
type inbox struct {
	self     uint16
	peers    []uint16
	round    uint32
	received map[uint16][]byte
}

func newInbox(self uint16, parties []uint16) *inbox {
	peers := make([]uint16, 0, len(parties))
	for _, party := range parties {
		if party != self {
			peers = append(peers, party)
		}
	}
	slices.Sort(peers)
	return &inbox{
		self:     self,
		peers:    peers,
		received: make(map[uint16][]byte),
	}
}

// advance moves the inbox to the next round and drops stored messages.
func (b *inbox) advance(round uint32) {
	b.round = round
	b.received = make(map[uint16][]byte)
}

// put stores the body of a message addressed to this party for the current round.
func (b *inbox) put(msg *messages.Message) error {
	if msg.Round != b.round {
		return fmt.Errorf("message for round %d while in round %d", msg.Round, b.round)
	}
	if !msg.IsFor(b.self) {
		return fmt.Errorf("message from party %d is not addressed to party %d", msg.Sender, b.self)
	}
	if _, ok := slices.BinarySearch(b.peers, msg.Sender); !ok {
		return fmt.Errorf("unknown sender %d", msg.Sender)
	}
	if _, ok := b.received[msg.Sender]; ok {
		return fmt.Errorf("duplicate message from party %d in round %d", msg.Sender, msg.Round)
	}
	b.received[msg.Sender] = msg.Body
	return nil
}

// complete errors unless a message of every peer arrived.
func (b *inbox) complete() error {
	if len(b.received) != len(b.peers) {
		return fmt.Errorf("round %d incomplete: %d of %d messages", b.round, len(b.received), len(b.peers))
	}
	return nil
}
