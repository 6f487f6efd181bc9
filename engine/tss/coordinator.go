// Package tss runs key generations and signing sessions of a party against
// the session coordination server.
package tss

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/rs/zerolog"

	tssmodel "github.com/onflow/flow-tss/model/tss"
	"github.com/onflow/flow-tss/module"
	"github.com/onflow/flow-tss/module/keygen"
	"github.com/onflow/flow-tss/module/metrics"
	"github.com/onflow/flow-tss/module/roundbased"
	"github.com/onflow/flow-tss/module/signing"
	"github.com/onflow/flow-tss/network/relay"
	"github.com/onflow/flow-tss/storage"
)

// Coordinator performs the setup of every protocol execution in the order the
// coordination server requires: the sink listens for session messages before
// the party signs up, so that messages sent right after the session filled
// up cannot be lost.
type Coordinator struct {
	log           zerolog.Logger
	client        module.SessionClient
	factory       module.ProtocolFactory
	shares        storage.KeyShares
	metrics       module.TSSMetrics
	offlineRounds int
	pollInterval  time.Duration
	onTransition  module.TransitionConsumer
}

type Option func(*Coordinator)

// WithMetrics sets the collector of all protocol executions.
func WithMetrics(metrics module.TSSMetrics) Option {
	return func(c *Coordinator) {
		c.metrics = metrics
	}
}

// WithOfflineRounds sets the number of offline stage rounds of the factory's engines.
func WithOfflineRounds(rounds int) Option {
	return func(c *Coordinator) {
		c.offlineRounds = rounds
	}
}

// WithPollInterval sets the poll interval of the round-based engines.
func WithPollInterval(interval time.Duration) Option {
	return func(c *Coordinator) {
		c.pollInterval = interval
	}
}

// WithTransitionConsumer sets a consumer informed of every step of every execution.
func WithTransitionConsumer(consumer module.TransitionConsumer) Option {
	return func(c *Coordinator) {
		c.onTransition = consumer
	}
}

func NewCoordinator(
	log zerolog.Logger,
	client module.SessionClient,
	factory module.ProtocolFactory,
	shares storage.KeyShares,
	opts ...Option,
) *Coordinator {

	c := &Coordinator{
		log:           log.With().Str("engine", "tss_coordinator").Logger(),
		client:        client,
		factory:       factory,
		shares:        shares,
		metrics:       metrics.NewNoopCollector(),
		offlineRounds: signing.DefaultOfflineRounds,
		pollInterval:  roundbased.DefaultPollInterval,
	}
	for _, apply := range opts {
		apply(c)
	}
	return c
}

// CreateSession creates a new session in the group. Other parties join it by ID.
func (c *Coordinator) CreateSession(ctx context.Context, group *tssmodel.Group, kind tssmodel.SessionKind) (*tssmodel.Session, error) {
	return relay.CreateSession(ctx, c.client, group.ID, kind)
}

// JoinSession looks up an existing session of the group.
func (c *Coordinator) JoinSession(ctx context.Context, group *tssmodel.Group, sessionID string) (*tssmodel.Session, error) {
	return relay.JoinSession(ctx, c.client, group.ID, sessionID)
}

// Keygen takes part in a key generation session, stores the resulting key
// share and announces its address to the group.
//
// Expected errors during normal operations:
//   - relay.RPCError if the server rejected the signup
//   - storage.ErrAlreadyExists if a share of the generated key is already stored
//   - any error of the key generation, see keygen.Run
func (c *Coordinator) Keygen(ctx context.Context, group *tssmodel.Group, session *tssmodel.Session) (*tssmodel.KeyShare, error) {
	err := checkSession(group, session, tssmodel.SessionKeygen)
	if err != nil {
		return nil, err
	}
	log := c.log.With().
		Str("group_id", group.ID).
		Str("session_id", session.ID).
		Str("params", group.Params.String()).
		Logger()

	sink, err := roundbased.NewSink(session.ID, int(group.Params.Parties)-1)
	if err != nil {
		return nil, err
	}
	stop := relay.Listen(log, c.client, sink)
	defer stop()

	var signup *tssmodel.PartySignup
	err = c.awaitSession(ctx, relay.EventSessionSignup, session.ID, func() error {
		var err error
		signup, err = relay.Signup(ctx, c.client, group.ID, session.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	log = log.With().Uint16("party_index", signup.Number).Logger()
	log.Info().Msg("key generation session is full, starting key generation")

	engine, err := c.factory.NewKeygen(group.Params, signup.Number)
	if err != nil {
		return nil, fmt.Errorf("could not create key generation engine: %w", err)
	}
	stream := relay.NewStream(c.client, group.ID, session.ID)
	share, err := keygen.Run(ctx, log, engine, c.onTransition, stream, sink, c.engineOptions()...)
	if err != nil {
		return nil, err
	}

	err = c.shares.Store(share)
	if err != nil {
		return nil, fmt.Errorf("could not store key share: %w", err)
	}
	log.Info().Str("address", share.Address).Msg("key generation completed")

	err = relay.NotifyAddress(ctx, c.client, group.ID, share.Address)
	if err != nil {
		return share, fmt.Errorf("could not announce address %s: %w", share.Address, err)
	}
	return share, nil
}

// Sign takes part in a signing session over digest with the stored key share
// of the given address.
//
// Expected errors during normal operations:
//   - storage.ErrNotFound if no key share is stored for the address
//   - relay.RPCError if the server rejected the signup
//   - any error of the signing session, see signing.Signer
func (c *Coordinator) Sign(ctx context.Context, group *tssmodel.Group, session *tssmodel.Session, address string, digest []byte) (*tssmodel.Signature, error) {
	err := checkSession(group, session, tssmodel.SessionSign)
	if err != nil {
		return nil, err
	}
	share, err := c.shares.ByAddress(address)
	if err != nil {
		return nil, fmt.Errorf("could not load key share: %w", err)
	}
	if share.Params != group.Params {
		return nil, fmt.Errorf("key share for %s has parameters %s, group %s has %s", address, share.Params, group.ID, group.Params)
	}
	log := c.log.With().
		Str("group_id", group.ID).
		Str("session_id", session.ID).
		Str("address", share.Address).
		Uint16("party_index", share.PartyIndex).
		Logger()

	sink, err := roundbased.NewSink(session.ID, signing.ExpectedMessages(share.Params))
	if err != nil {
		return nil, err
	}
	stop := relay.Listen(log, c.client, sink)
	defer stop()

	var signup *tssmodel.PartySignup
	err = c.awaitSession(ctx, relay.EventSessionLoad, session.ID, func() error {
		var err error
		signup, err = relay.Load(ctx, c.client, group.ID, session.ID, share.PartyIndex)
		return err
	})
	if err != nil {
		return nil, err
	}
	log.Info().Uint16("signup", signup.Number).Msg("signing session is full, starting signing")

	stream := relay.NewStream(c.client, group.ID, session.ID)
	signer := signing.NewSigner(log, c.factory, stream, sink,
		signing.WithOfflineRounds(c.offlineRounds),
		signing.WithTransitionConsumer(c.onTransition),
		signing.WithEngineOptions(c.engineOptions()...),
	)
	return signer.Sign(ctx, share, signup.Number, digest)
}

// Propose announces to the group that the proposer would like message to be
// signed with the key of address. The digest to sign is the Keccak-256 hash
// of message.
func (c *Coordinator) Propose(ctx context.Context, group *tssmodel.Group, address string, message string) (*relay.Proposal, error) {
	proposal := relay.Proposal{
		GroupID: group.ID,
		Address: address,
		Message: message,
		Digest:  Digest(message),
	}
	err := relay.NotifyProposal(ctx, c.client, proposal)
	if err != nil {
		return nil, fmt.Errorf("could not announce proposal: %w", err)
	}
	return &proposal, nil
}

// Digest returns the Keccak-256 hash of message.
func Digest(message string) []byte {
	return crypto.Keccak256([]byte(message))
}

// awaitSession runs signup and blocks until the server announced that the
// session is full.
func (c *Coordinator) awaitSession(ctx context.Context, event string, sessionID string, signup func() error) error {
	match := func(params json.RawMessage) bool {
		var id string
		return json.Unmarshal(params, &id) == nil && id == sessionID
	}
	_, err := relay.WaitFor(ctx, c.client, event, match, signup)
	if err != nil {
		return fmt.Errorf("could not join session %s: %w", sessionID, err)
	}
	return nil
}

func (c *Coordinator) engineOptions() []roundbased.Option {
	return []roundbased.Option{
		roundbased.WithMetrics(c.metrics),
		roundbased.WithPollInterval(c.pollInterval),
	}
}

func checkSession(group *tssmodel.Group, session *tssmodel.Session, kind tssmodel.SessionKind) error {
	if session.GroupID != group.ID {
		return fmt.Errorf("session %s does not belong to group %s", session.ID, group.ID)
	}
	if session.Kind != kind {
		return fmt.Errorf("session %s is a %s session, expected %s", session.ID, session.Kind, kind)
	}
	return nil
}
