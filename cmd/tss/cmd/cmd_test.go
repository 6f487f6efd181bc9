package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/onflow/flow-tss/model/tss"
	"github.com/onflow/flow-tss/network/relay"
	"github.com/onflow/flow-tss/network/relay/relaytest"
	"github.com/onflow/flow-tss/utils/unittest"
)

const timeout = 30 * time.Second

// run executes the command line and decodes its JSON output into result.
func run(ctx context.Context, result interface{}, args ...string) error {
	var out bytes.Buffer
	root := NewRootCommand()
	root.SetArgs(append(args, "--loglevel=error"))
	root.SetOut(&out)
	root.SetErr(io.Discard)
	err := root.ExecuteContext(ctx)
	if err != nil {
		return err
	}
	if result == nil {
		return nil
	}
	return json.Unmarshal(out.Bytes(), result)
}

func relayFlags(server *relaytest.Server) []string {
	return []string{
		"--relay-url=" + server.URL(),
		"--relay-max-requests-per-second=0",
		"--poll-interval=50ms",
		"--timeout=" + timeout.String(),
	}
}

func TestShares_Empty(t *testing.T) {
	unittest.RunWithTempDir(t, func(dir string) {
		var shares []*tss.KeyShare
		err := run(context.Background(), &shares, "shares", "--datadir="+dir)
		require.NoError(t, err)
		assert.Empty(t, shares)
	})
}

func TestInvalidConfig(t *testing.T) {
	err := run(context.Background(), nil, "shares", "--engine=unknown")
	assert.Error(t, err)
}

func TestSigningDigest(t *testing.T) {
	digest, err := signingDigest("hello", "")
	require.NoError(t, err)
	assert.Equal(t, crypto.Keccak256([]byte("hello")), digest)

	expected := unittest.DigestFixture()
	digest, err = signingDigest("", hexutil.Encode(expected))
	require.NoError(t, err)
	assert.Equal(t, expected, digest)

	_, err = signingDigest("hello", hexutil.Encode(expected))
	assert.Error(t, err)
	_, err = signingDigest("", "")
	assert.Error(t, err)
	_, err = signingDigest("", "0x1234")
	assert.Error(t, err)
	_, err = signingDigest("", "not hex")
	assert.Error(t, err)
}

// TestKeygenAndSign runs a 2-of-3 key generation and a signing session
// through the command line against an in-process coordination server.
func TestKeygenAndSign(t *testing.T) {
	server := relaytest.NewServer(unittest.Logger())
	defer server.Close()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var group tss.Group
	args := append([]string{"group", "--label=cli", "--parties=3", "--threshold=1"}, relayFlags(server)...)
	require.NoError(t, run(ctx, &group, args...))
	require.NotEmpty(t, group.ID)

	client, err := relay.Dial(ctx, unittest.Logger(), server.Config())
	require.NoError(t, err)
	defer client.Close()

	dirs := []string{unittest.TempDir(t), unittest.TempDir(t), unittest.TempDir(t)}
	defer func() {
		for _, dir := range dirs {
			_ = os.RemoveAll(dir)
		}
	}()

	session, err := relay.CreateSession(ctx, client, group.ID, tss.SessionKeygen)
	require.NoError(t, err)

	results := make([]keygenResult, len(dirs))
	g, gCtx := errgroup.WithContext(ctx)
	for i, dir := range dirs {
		i, dir := i, dir
		g.Go(func() error {
			args := append([]string{"keygen", "--group=" + group.ID, "--session=" + session.ID, "--datadir=" + dir}, relayFlags(server)...)
			return run(gCtx, &results[i], args...)
		})
	}
	require.NoError(t, g.Wait())

	address := results[0].Address
	for i, result := range results {
		assert.Equal(t, address, result.Address)
		assert.Equal(t, session.ID, result.SessionID)

		var shares []*tss.KeyShare
		require.NoError(t, run(ctx, &shares, "shares", "--datadir="+dirs[i]))
		require.Len(t, shares, 1)
		assert.Equal(t, address, shares[0].Address)
		assert.Equal(t, result.PartyIndex, shares[0].PartyIndex)
		assert.Empty(t, shares[0].LocalKey)
	}

	signSession, err := relay.CreateSession(ctx, client, group.ID, tss.SessionSign)
	require.NoError(t, err)

	signatures := make([]signResult, 2)
	g, gCtx = errgroup.WithContext(ctx)
	for i, dir := range []string{dirs[2], dirs[0]} {
		i, dir := i, dir
		g.Go(func() error {
			args := append([]string{"sign",
				"--group=" + group.ID,
				"--session=" + signSession.ID,
				"--address=" + address,
				"--message=release funds",
				"--datadir=" + dir,
			}, relayFlags(server)...)
			return run(gCtx, &signatures[i], args...)
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, signatures[0].Hex, signatures[1].Hex)
	raw, err := hexutil.Decode(signatures[0].Hex)
	require.NoError(t, err)
	pub, err := crypto.SigToPub(crypto.Keccak256([]byte("release funds")), raw)
	require.NoError(t, err)
	assert.Equal(t, address, crypto.PubkeyToAddress(*pub).Hex())
}
