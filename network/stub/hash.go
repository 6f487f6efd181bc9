package stub

import (
	"encoding/binary"
	"encoding/hex"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/onflow/flow-tss/model/messages"
)

// messageKey generates a fingerprint for the tuple of (session, round, sender, receiver, body)
func messageKey(msg *messages.Message) string {
	hasher := crypto.NewKeccakState()

	var header [10]byte
	binary.BigEndian.PutUint32(header[0:4], msg.Round)
	binary.BigEndian.PutUint16(header[4:6], msg.Sender)
	if msg.Receiver != nil {
		binary.BigEndian.PutUint16(header[6:8], *msg.Receiver)
		header[8] = 1
	}

	_, _ = hasher.Write([]byte(msg.SessionID))
	_, _ = hasher.Write(header[:])
	_, _ = hasher.Write(msg.Body)

	return hex.EncodeToString(hasher.Sum(nil))
}
