package signing_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/onflow/flow-tss/model/messages"
	"github.com/onflow/flow-tss/model/tss"
	"github.com/onflow/flow-tss/module/keygen"
	"github.com/onflow/flow-tss/module/roundbased"
	"github.com/onflow/flow-tss/module/signing"
	"github.com/onflow/flow-tss/module/simulated"
	"github.com/onflow/flow-tss/network/stub"
	"github.com/onflow/flow-tss/utils/unittest"
)

const timeout = 10 * time.Second

func generateShares(t *testing.T, hub *stub.Hub, factory *simulated.Factory, params tss.Parameters) map[uint16]*tss.KeyShare {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	sessionID := hub.NewSession()
	shares := make(map[uint16]*tss.KeyShare)
	results := make([]*tss.KeyShare, params.Parties+1)
	log := unittest.Logger()
	group, ctx := errgroup.WithContext(ctx)
	for party := uint16(1); party <= params.Parties; party++ {
		party := party
		sink, err := roundbased.NewSink(sessionID, int(params.Parties)-1)
		require.NoError(t, err)
		stream, leave, err := hub.Join(sessionID, party, sink)
		require.NoError(t, err)
		defer leave()
		engine, err := factory.NewKeygen(params, party)
		require.NoError(t, err)

		group.Go(func() error {
			share, err := keygen.Run(ctx, log, engine, nil, stream, sink,
				roundbased.WithPollInterval(roundbased.MinPollInterval))
			results[party] = share
			return err
		})
	}
	require.NoError(t, group.Wait())
	for party := uint16(1); party <= params.Parties; party++ {
		shares[party] = results[party]
	}
	return shares
}

type signer struct {
	share  *tss.KeyShare
	signup uint16
}

func signAll(t *testing.T, hub *stub.Hub, factory *simulated.Factory, signers []signer, digest []byte) []*tss.Signature {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	sessionID := hub.NewSession()
	signatures := make([]*tss.Signature, len(signers))
	group, ctx := errgroup.WithContext(ctx)
	for i, s := range signers {
		i, s := i, s
		sink, err := roundbased.NewSink(sessionID, signing.ExpectedMessages(s.share.Params))
		require.NoError(t, err)
		stream, leave, err := hub.Join(sessionID, s.share.PartyIndex, sink)
		require.NoError(t, err)
		defer leave()

		var transitions []string
		signer := signing.NewSigner(unittest.Logger(), factory, stream, sink,
			signing.WithOfflineRounds(factory.OfflineRounds()),
			signing.WithTransitionConsumer(func(_ string, current string) {
				transitions = append(transitions, current)
			}),
			signing.WithEngineOptions(roundbased.WithPollInterval(roundbased.MinPollInterval)))

		group.Go(func() error {
			signature, err := signer.Sign(ctx, s.share, s.signup, digest)
			signatures[i] = signature
			if err == nil && len(transitions) != factory.OfflineRounds()+5 {
				return errors.New("unexpected number of transitions")
			}
			return err
		})
	}
	require.NoError(t, group.Wait())
	return signatures
}

// TestSign_ThreeParties generates a 2-of-3 key and signs with every pair of
// parties, checking that both signers assemble the same signature and that
// it recovers to the group address.
func TestSign_ThreeParties(t *testing.T) {
	hub := stub.NewHub(unittest.Logger())
	factory := simulated.NewFactory()
	shares := generateShares(t, hub, factory, tss.Parameters{Parties: 3, Threshold: 1})
	address := shares[1].Address
	for _, share := range shares {
		require.Equal(t, address, share.Address)
	}

	for _, pair := range [][2]uint16{{1, 2}, {1, 3}, {3, 2}} {
		digest := unittest.DigestFixture()
		signatures := signAll(t, hub, factory, []signer{
			{share: shares[pair[0]], signup: 2},
			{share: shares[pair[1]], signup: 1},
		}, digest)

		require.Len(t, signatures, 2)
		assert.Equal(t, signatures[0], signatures[1])
		assert.Equal(t, digest, signatures[0].Digest)

		raw := append(append(append([]byte{}, signatures[0].R...), signatures[0].S...), signatures[0].RecoveryID)
		pub, err := crypto.SigToPub(digest, raw)
		require.NoError(t, err)
		assert.Equal(t, address, crypto.PubkeyToAddress(*pub).Hex())
	}
}

// TestSign_ForeignSessionMessage checks that a message of another session
// fails the signing session.
func TestSign_ForeignSessionMessage(t *testing.T) {
	hub := stub.NewHub(unittest.Logger())
	factory := simulated.NewFactory()
	shares := generateShares(t, hub, factory, tss.Parameters{Parties: 3, Threshold: 1})

	sessionID := hub.NewSession()
	sink, err := roundbased.NewSink(sessionID, signing.ExpectedMessages(shares[1].Params))
	require.NoError(t, err)
	stream, leave, err := hub.Join(sessionID, 1, sink)
	require.NoError(t, err)
	defer leave()

	body, err := cbor.Marshal(uint16(1))
	require.NoError(t, err)
	foreign := messages.NewBroadcastMessage(signing.IndexExchangeRound, 2, body)
	foreign.SessionID = unittest.SessionIDFixture()
	require.Error(t, sink.ReceiveMessage(foreign))

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	_, err = signing.NewSigner(unittest.Logger(), factory, stream, sink).Sign(ctx, shares[1], 2, unittest.DigestFixture())
	require.Error(t, err)
	assert.True(t, roundbased.IsSessionMismatchError(err))
}
