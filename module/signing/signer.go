// Package signing runs threshold signing on the round-based engine.
//
// A signing session consists of three consecutive executions sharing one
// Sink. For n offline stage rounds the session is numbered
//
//	round 1:          participant index exchange
//	rounds 2..n+1:    offline stage (engine rounds 1..n, shifted by one)
//	round n+2:        partial signature exchange
//
// Round numbers never repeat within a session.
package signing

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/onflow/flow-tss/model/tss"
	"github.com/onflow/flow-tss/module"
	"github.com/onflow/flow-tss/module/roundbased"
)

const (
	ProtocolIndexExchange = "sign_index_exchange"
	ProtocolOfflineStage  = "sign_offline_stage"
	ProtocolPartial       = "sign_partial"
)

// ExpectedMessages returns the number of messages completing a round of a
// signing session: one from every other signer.
func ExpectedMessages(params tss.Parameters) int {
	return int(params.Signers()) - 1
}

// Signer produces one signature per signing session.
type Signer struct {
	log           zerolog.Logger
	factory       module.ProtocolFactory
	stream        module.Stream
	sink          module.Sink
	onTransition  module.TransitionConsumer
	offlineRounds int
	engineOpts    []roundbased.Option
}

type Option func(*Signer)

// WithOfflineRounds sets the number of offline stage rounds. It must match
// the offline stage engines created by the factory.
func WithOfflineRounds(rounds int) Option {
	return func(s *Signer) {
		s.offlineRounds = rounds
	}
}

// WithTransitionConsumer sets the consumer informed of every step of all three executions.
func WithTransitionConsumer(consumer module.TransitionConsumer) Option {
	return func(s *Signer) {
		s.onTransition = consumer
	}
}

// WithEngineOptions sets options applied to every round-based engine.
func WithEngineOptions(opts ...roundbased.Option) Option {
	return func(s *Signer) {
		s.engineOpts = append(s.engineOpts, opts...)
	}
}

// NewSigner creates a signer for one signing session. The sink must expect
// ExpectedMessages per round and must already be receiving the session's messages.
func NewSigner(log zerolog.Logger, factory module.ProtocolFactory, stream module.Stream, sink module.Sink, opts ...Option) *Signer {
	s := &Signer{
		log:           log.With().Str("component", "signer").Logger(),
		factory:       factory,
		stream:        stream,
		sink:          sink,
		offlineRounds: DefaultOfflineRounds,
	}
	for _, apply := range opts {
		apply(s)
	}
	return s
}

// Sign runs the signing session over digest with the local key share and
// the signup number assigned by the session coordination server.
//
// Expected errors during normal operations:
//   - roundbased.ProtocolError if a protocol engine failed
//   - roundbased.SessionMismatchError or roundbased.OverDeliveryError on sink failures
//   - context errors if ctx was cancelled
func (s *Signer) Sign(ctx context.Context, share *tss.KeyShare, signup uint16, digest []byte) (*tss.Signature, error) {
	local := tss.ParticipantIndex{Index: share.PartyIndex, Signup: signup}
	log := s.log.With().
		Str("address", share.Address).
		Uint16("party_index", local.Index).
		Uint16("signup", local.Signup).
		Logger()

	rounds, finalizer := NewIndexExchange(local)
	order, err := run(ctx, log, s, ProtocolIndexExchange, rounds, finalizer)
	if err != nil {
		return nil, fmt.Errorf("participant index exchange failed: %w", err)
	}
	log.Debug().
		Interface("participants", order.Participants).
		Uint16("local_index", order.LocalIndex).
		Msg("participants ordered")

	offline, err := s.factory.NewOfflineStage(order.LocalIndex, order.Participants, share)
	if err != nil {
		return nil, err
	}
	offlineRounds, offlineFinalizer, err := NewOfflineStage(offline, s.offlineRounds)
	if err != nil {
		return nil, err
	}
	pre, err := run(ctx, log, s, ProtocolOfflineStage, offlineRounds, offlineFinalizer)
	if err != nil {
		return nil, fmt.Errorf("offline stage failed: %w", err)
	}

	manual, err := s.factory.NewSignManual(pre, digest)
	if err != nil {
		return nil, err
	}
	partialRounds, partialFinalizer := NewPartialSignature(manual, PartialSignatureRound(s.offlineRounds))
	signature, err := run(ctx, log, s, ProtocolPartial, partialRounds, partialFinalizer)
	if err != nil {
		return nil, fmt.Errorf("partial signature exchange failed: %w", err)
	}

	log.Info().Str("signature", signature.Hex()).Msg("signature assembled")
	return signature, nil
}

func run[R any](ctx context.Context, log zerolog.Logger, s *Signer, protocol string, rounds []roundbased.Round, finalizer roundbased.Finalizer[R]) (R, error) {
	opts := append([]roundbased.Option{roundbased.WithProtocol(protocol)}, s.engineOpts...)
	return roundbased.NewEngine(log, rounds, finalizer, s.onTransition, s.stream, s.sink, opts...).Start(ctx)
}
