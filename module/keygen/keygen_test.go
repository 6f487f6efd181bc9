package keygen_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/onflow/flow-tss/model/tss"
	"github.com/onflow/flow-tss/module/keygen"
	"github.com/onflow/flow-tss/module/metrics"
	"github.com/onflow/flow-tss/module/roundbased"
	"github.com/onflow/flow-tss/module/simulated"
	"github.com/onflow/flow-tss/network/stub"
	"github.com/onflow/flow-tss/utils/unittest"
)

// TestKeygen_ThreeParties runs three key generations concurrently over an
// in-memory relay and checks that they agree on the group address.
func TestKeygen_ThreeParties(t *testing.T) {
	params := tss.Parameters{Parties: 3, Threshold: 1}
	log := unittest.Logger()
	hub := stub.NewHub(log)
	sessionID := hub.NewSession()
	factory := simulated.NewFactory()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	shares := make([]*tss.KeyShare, params.Parties)
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
				roundbased.WithMetrics(metrics.NewNoopCollector()),
				roundbased.WithPollInterval(roundbased.MinPollInterval))
			shares[party-1] = share
			return err
		})
	}
	require.NoError(t, group.Wait())

	for i, share := range shares {
		require.NotNil(t, share)
		assert.Equal(t, uint16(i+1), share.PartyIndex)
		assert.Equal(t, shares[0].Address, share.Address)
		assert.Equal(t, shares[0].PublicKey, share.PublicKey)
	}
}
