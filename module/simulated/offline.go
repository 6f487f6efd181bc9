package simulated

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/btcsuite/btcd/btcec/v2"

	"github.com/onflow/flow-tss/model/messages"
	"github.com/onflow/flow-tss/model/tss"
	"github.com/onflow/flow-tss/module"
)

const (
	// OfflineRounds is the default number of message rounds of the offline stage.
	OfflineRounds = 6

	// minOfflineRounds covers nonce commitment, nonce reveal and one
	// transcript confirmation.
	minOfflineRounds = 3
)

// OfflineStageEngine computes the signing nonce shared by all signers:
//
//	round 1: broadcast a commitment to the party's nonce contribution
//	round 2: reveal the contribution
//	round 3..n: broadcast the transcript hash of the agreed nonce point
//
// CAUTION: all signers learn the nonce. Signatures are valid ECDSA
// signatures, but any signer can extract the group secret from them.
type OfflineStageEngine struct {
	localIndex   uint16
	participants []uint16
	key          localKey
	rounds       uint32
	round        uint32
	inbox        *inbox

	weighted    btcec.ModNScalar
	nonce       btcec.ModNScalar
	commitments map[uint16][]byte
	total       btcec.ModNScalar
	point       []byte
	transcript  []byte
}

var _ module.OfflineStageEngine = (*OfflineStageEngine)(nil)

// NewOfflineStageEngine creates the offline stage of the signer at 1-based
// position localIndex in participants, which lists the key share indices of
// all signers.
func NewOfflineStageEngine(localIndex uint16, participants []uint16, share *tss.KeyShare, rounds int, rand io.Reader) (*OfflineStageEngine, error) {
	if rounds < minOfflineRounds {
		return nil, fmt.Errorf("offline stage requires at least %d rounds, got %d", minOfflineRounds, rounds)
	}
	if share == nil {
		return nil, fmt.Errorf("offline stage requires a key share")
	}
	if localIndex < 1 || int(localIndex) > len(participants) {
		return nil, fmt.Errorf("local index %d out of range [1, %d]", localIndex, len(participants))
	}
	if participants[localIndex-1] != share.PartyIndex {
		return nil, fmt.Errorf("participant %d is key share %d, local key share is %d", localIndex, participants[localIndex-1], share.PartyIndex)
	}
	if len(participants) != int(share.Params.Signers()) {
		return nil, fmt.Errorf("signing requires %d participants, got %d", share.Params.Signers(), len(participants))
	}

	var key localKey
	err := decode(share.LocalKey, &key)
	if err != nil {
		return nil, fmt.Errorf("invalid local key: %w", err)
	}
	secret, err := parseScalar(key.Share)
	if err != nil {
		return nil, fmt.Errorf("invalid local key share: %w", err)
	}
	coefficient, err := lagrange(participants, share.PartyIndex)
	if err != nil {
		return nil, fmt.Errorf("invalid participants: %w", err)
	}
	nonce, err := randomScalar(rand)
	if err != nil {
		return nil, err
	}

	positions := make([]uint16, 0, len(participants))
	for i := range participants {
		positions = append(positions, uint16(i+1))
	}

	return &OfflineStageEngine{
		localIndex:   localIndex,
		participants: participants,
		key:          key,
		rounds:       uint32(rounds),
		inbox:        newInbox(localIndex, positions),
		weighted:     *coefficient.Mul(&secret),
		nonce:        nonce,
		commitments:  make(map[uint16][]byte),
	}, nil
}

func (e *OfflineStageEngine) HandleIncoming(_ context.Context, msg *messages.Message) error {
	return e.inbox.put(msg)
}

func (e *OfflineStageEngine) Proceed(_ context.Context) (*messages.RoundOutput, error) {
	if e.round >= e.rounds {
		return nil, fmt.Errorf("offline stage already completed %d rounds", e.round)
	}
	if e.round > 0 {
		err := e.inbox.complete()
		if err != nil {
			return nil, err
		}
	}

	var p payload
	var err error
	switch e.round {
	case 0:
		p = payload{Commitment: transcript("nonce", scalarBytes(&e.nonce))}
	case 1:
		e.storeCommitments()
		p = payload{Nonce: scalarBytes(&e.nonce)}
	case 2:
		err = e.combineNonces()
		p = payload{Commitment: e.transcript}
	default:
		err = e.confirmTranscript()
		p = payload{Commitment: e.transcript}
	}
	if err != nil {
		return nil, fmt.Errorf("offline stage round %d failed: %w", e.round+1, err)
	}

	body, err := encode(p)
	if err != nil {
		return nil, err
	}
	e.round++
	e.inbox.advance(e.round)
	return &messages.RoundOutput{
		Round:    e.round,
		Messages: []*messages.Message{messages.NewBroadcastMessage(e.round, e.localIndex, body)},
	}, nil
}

func (e *OfflineStageEngine) storeCommitments() {
	for sender, body := range e.inbox.received {
		var p payload
		if decode(body, &p) == nil {
			e.commitments[sender] = p.Commitment
		}
	}
}

func (e *OfflineStageEngine) combineNonces() error {
	e.total.Set(&e.nonce)
	for sender, body := range e.inbox.received {
		var p payload
		err := decode(body, &p)
		if err != nil {
			return err
		}
		if !bytes.Equal(transcript("nonce", p.Nonce), e.commitments[sender]) {
			return fmt.Errorf("nonce of party %d does not match its commitment", sender)
		}
		nonce, err := parseScalar(p.Nonce)
		if err != nil {
			return fmt.Errorf("invalid nonce of party %d: %w", sender, err)
		}
		e.total.Add(&nonce)
	}
	if e.total.IsZero() {
		return fmt.Errorf("combined nonce is zero")
	}

	e.point = basePoint(&e.total)
	participants := make([]byte, 0, 2*len(e.participants))
	for _, index := range e.participants {
		participants = append(participants, byte(index>>8), byte(index))
	}
	e.transcript = transcript("offline", participants, e.point, e.key.PublicKey)
	return nil
}

func (e *OfflineStageEngine) confirmTranscript() error {
	for sender, body := range e.inbox.received {
		var p payload
		err := decode(body, &p)
		if err != nil {
			return err
		}
		if !bytes.Equal(p.Commitment, e.transcript) {
			return fmt.Errorf("party %d disagrees on the offline stage transcript", sender)
		}
	}
	return nil
}

// Create returns the pre-signature once all rounds completed.
func (e *OfflineStageEngine) Create(_ context.Context) (*tss.PreSignature, error) {
	if e.round != e.rounds {
		return nil, fmt.Errorf("offline stage incomplete: %d of %d rounds", e.round, e.rounds)
	}
	err := e.inbox.complete()
	if err != nil {
		return nil, err
	}
	err = e.confirmTranscript()
	if err != nil {
		return nil, err
	}

	data, err := encode(preSignature{
		Nonce:     scalarBytes(&e.total),
		R:         e.point,
		Weighted:  scalarBytes(&e.weighted),
		Signers:   uint16(len(e.participants)),
		PublicKey: e.key.PublicKey,
	})
	if err != nil {
		return nil, err
	}

	participants := make([]uint16, len(e.participants))
	copy(participants, e.participants)
	return &tss.PreSignature{
		Participants: participants,
		LocalIndex:   e.localIndex,
		Data:         data,
	}, nil
}
