package simulated

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/onflow/flow-tss/model/messages"
	"github.com/onflow/flow-tss/model/tss"
	"github.com/onflow/flow-tss/module"
)

// KeygenRounds is the number of message rounds of the simulated key generation.
const KeygenRounds = 4

// KeygenEngine runs a Shamir secret sharing key generation:
//
//	round 1: broadcast the public point of the party's secret
//	round 2: broadcast a hash of all public points
//	round 3: send every peer its evaluation of the party's polynomial
//	round 4: broadcast the public point of the party's key share
//
// Every party learns the group public key, no party learns the group secret.
type KeygenEngine struct {
	params tss.Parameters
	index  uint16
	round  uint32
	inbox  *inbox

	coefficients []btcec.ModNScalar
	points       map[uint16][]byte
	commitment   []byte
	share        btcec.ModNScalar
	publicShares map[uint16][]byte
}

var _ module.KeygenEngine = (*KeygenEngine)(nil)

// NewKeygenEngine creates the key generation state machine of party index.
func NewKeygenEngine(params tss.Parameters, index uint16, rand io.Reader) (*KeygenEngine, error) {
	err := params.Validate()
	if err != nil {
		return nil, err
	}
	if index < 1 || index > params.Parties {
		return nil, fmt.Errorf("party index %d out of range [1, %d]", index, params.Parties)
	}

	coefficients := make([]btcec.ModNScalar, 0, params.Threshold+1)
	for i := uint16(0); i <= params.Threshold; i++ {
		c, err := randomScalar(rand)
		if err != nil {
			return nil, err
		}
		coefficients = append(coefficients, c)
	}

	parties := make([]uint16, 0, params.Parties)
	for i := uint16(1); i <= params.Parties; i++ {
		parties = append(parties, i)
	}

	return &KeygenEngine{
		params:       params,
		index:        index,
		inbox:        newInbox(index, parties),
		coefficients: coefficients,
		points:       make(map[uint16][]byte),
		publicShares: make(map[uint16][]byte),
	}, nil
}

func (e *KeygenEngine) HandleIncoming(_ context.Context, msg *messages.Message) error {
	return e.inbox.put(msg)
}

func (e *KeygenEngine) Proceed(_ context.Context) (*messages.RoundOutput, error) {
	if e.round >= KeygenRounds {
		return nil, fmt.Errorf("key generation already completed %d rounds", e.round)
	}
	if e.round > 0 {
		err := e.inbox.complete()
		if err != nil {
			return nil, err
		}
	}

	var out []*messages.Message
	var err error
	switch e.round {
	case 0:
		out, err = e.broadcastPoint()
	case 1:
		out, err = e.broadcastCommitment()
	case 2:
		out, err = e.sendShares()
	case 3:
		out, err = e.broadcastPublicShare()
	}
	if err != nil {
		return nil, fmt.Errorf("key generation round %d failed: %w", e.round+1, err)
	}

	e.round++
	e.inbox.advance(e.round)
	return &messages.RoundOutput{Round: e.round, Messages: out}, nil
}

func (e *KeygenEngine) broadcastPoint() ([]*messages.Message, error) {
	point := basePoint(&e.coefficients[0])
	e.points[e.index] = point
	return e.broadcast(payload{Point: point})
}

func (e *KeygenEngine) broadcastCommitment() ([]*messages.Message, error) {
	for sender, body := range e.inbox.received {
		var p payload
		err := decode(body, &p)
		if err != nil {
			return nil, err
		}
		_, err = btcec.ParsePubKey(p.Point)
		if err != nil {
			return nil, fmt.Errorf("invalid point of party %d: %w", sender, err)
		}
		e.points[sender] = p.Point
	}
	e.commitment = transcript("keygen", e.orderedPoints()...)
	return e.broadcast(payload{Commitment: e.commitment})
}

func (e *KeygenEngine) sendShares() ([]*messages.Message, error) {
	for sender, body := range e.inbox.received {
		var p payload
		err := decode(body, &p)
		if err != nil {
			return nil, err
		}
		if !bytes.Equal(p.Commitment, e.commitment) {
			return nil, fmt.Errorf("party %d committed to different points", sender)
		}
	}

	e.share = evaluate(e.coefficients, e.index)
	out := make([]*messages.Message, 0, len(e.inbox.peers))
	for _, peer := range e.inbox.peers {
		value := evaluate(e.coefficients, peer)
		body, err := encode(payload{Share: scalarBytes(&value)})
		if err != nil {
			return nil, err
		}
		out = append(out, messages.NewDirectMessage(e.round+1, e.index, peer, body))
	}
	return out, nil
}

func (e *KeygenEngine) broadcastPublicShare() ([]*messages.Message, error) {
	for sender, body := range e.inbox.received {
		var p payload
		err := decode(body, &p)
		if err != nil {
			return nil, err
		}
		value, err := parseScalar(p.Share)
		if err != nil {
			return nil, fmt.Errorf("invalid share of party %d: %w", sender, err)
		}
		e.share.Add(&value)
	}
	point := basePoint(&e.share)
	e.publicShares[e.index] = point
	return e.broadcast(payload{Point: point})
}

// Create returns the key share once all rounds completed.
func (e *KeygenEngine) Create(_ context.Context) (*tss.KeyShare, error) {
	if e.round != KeygenRounds {
		return nil, fmt.Errorf("key generation incomplete: %d of %d rounds", e.round, KeygenRounds)
	}
	err := e.inbox.complete()
	if err != nil {
		return nil, err
	}
	for sender, body := range e.inbox.received {
		var p payload
		err := decode(body, &p)
		if err != nil {
			return nil, err
		}
		e.publicShares[sender] = p.Point
	}

	groupKey, err := sumPoints(e.orderedPoints())
	if err != nil {
		return nil, fmt.Errorf("could not compute group key: %w", err)
	}

	shares := make([][]byte, 0, e.params.Parties)
	for i := uint16(1); i <= e.params.Parties; i++ {
		shares = append(shares, e.publicShares[i])
	}
	local, err := encode(localKey{
		Index:     e.index,
		Parties:   e.params.Parties,
		Threshold: e.params.Threshold,
		Share:     scalarBytes(&e.share),
		PublicKey: groupKey.SerializeCompressed(),
		Shares:    shares,
	})
	if err != nil {
		return nil, err
	}

	return &tss.KeyShare{
		Address:    crypto.PubkeyToAddress(*groupKey.ToECDSA()).Hex(),
		PublicKey:  groupKey.SerializeCompressed(),
		PartyIndex: e.index,
		Params:     e.params,
		LocalKey:   local,
	}, nil
}

func (e *KeygenEngine) orderedPoints() [][]byte {
	points := make([][]byte, 0, e.params.Parties)
	for i := uint16(1); i <= e.params.Parties; i++ {
		points = append(points, e.points[i])
	}
	return points
}

func (e *KeygenEngine) broadcast(p payload) ([]*messages.Message, error) {
	body, err := encode(p)
	if err != nil {
		return nil, err
	}
	return []*messages.Message{messages.NewBroadcastMessage(e.round+1, e.index, body)}, nil
}
