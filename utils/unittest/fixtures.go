package unittest

import (
	"crypto/rand"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/onflow/flow-tss/model/messages"
	"github.com/onflow/flow-tss/model/tss"
)

// SessionIDFixture returns a random session identifier.
func SessionIDFixture() string {
	return uuid.New().String()
}

// RandomBytes returns n random bytes.
func RandomBytes(n int) []byte {
	b := make([]byte, n)
	_, err := rand.Read(b)
	if err != nil {
		panic(err)
	}
	return b
}

// MessageFixture returns a broadcast message for the given session, round
// and sender with a random body.
func MessageFixture(sessionID string, round uint32, sender uint16) *messages.Message {
	msg := messages.NewBroadcastMessage(round, sender, RandomBytes(32))
	msg.SessionID = sessionID
	return msg
}

// MessagesFixture returns one broadcast message per sender in [1, n] except skip.
func MessagesFixture(sessionID string, round uint32, n uint16, skip uint16) []*messages.Message {
	msgs := make([]*messages.Message, 0, n)
	for sender := uint16(1); sender <= n; sender++ {
		if sender == skip {
			continue
		}
		msgs = append(msgs, MessageFixture(sessionID, round, sender))
	}
	return msgs
}

// ParametersFixture returns 2-of-3 threshold parameters.
func ParametersFixture() tss.Parameters {
	return tss.Parameters{Parties: 3, Threshold: 1}
}

// KeyShareFixture returns a key share with random material.
func KeyShareFixture(index uint16) *tss.KeyShare {
	return &tss.KeyShare{
		Address:    AddressFixture(),
		PublicKey:  RandomBytes(33),
		PartyIndex: index,
		Params:     ParametersFixture(),
		LocalKey:   RandomBytes(64),
	}
}

// AddressFixture returns a random checksummed address.
func AddressFixture() string {
	return common.BytesToAddress(RandomBytes(common.AddressLength)).Hex()
}

// DigestFixture returns a random 32 byte digest.
func DigestFixture() []byte {
	return RandomBytes(32)
}
