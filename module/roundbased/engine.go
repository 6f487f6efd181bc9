package roundbased

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.uber.org/atomic"

	"github.com/onflow/flow-tss/model/messages"
	"github.com/onflow/flow-tss/module"
	"github.com/onflow/flow-tss/module/metrics"
)

const (
	// DefaultPollInterval is the default interval at which the engine re-checks
	// the sink while waiting, in addition to the sink's ready notifications.
	DefaultPollInterval = 250 * time.Millisecond

	// MinPollInterval bounds the poll interval from below.
	MinPollInterval = 50 * time.Millisecond
)

// TransitionFunc computes one round. It receives the messages collected for
// the previous round (nil for the first round) and returns the number of the
// round to collect next along with the messages to send for it.
type TransitionFunc func(ctx context.Context, incoming []*messages.Message) (*messages.RoundOutput, error)

// Round is a named step of a protocol pipeline.
type Round struct {
	Name       string
	Transition TransitionFunc
}

// Finalizer is the terminal step of a protocol pipeline. It receives the
// messages collected for the last round and produces the protocol's result.
type Finalizer[R any] struct {
	Name     string
	Finalize func(ctx context.Context, incoming []*messages.Message) (R, error)
}

// Option configures an Engine.
type Option func(*config)

type config struct {
	protocol     string
	metrics      module.TSSMetrics
	pollInterval time.Duration
}

// WithProtocol sets the protocol label used in logs and metrics.
func WithProtocol(protocol string) Option {
	return func(c *config) {
		c.protocol = protocol
	}
}

// WithMetrics sets the metrics collector of the engine.
func WithMetrics(metrics module.TSSMetrics) Option {
	return func(c *config) {
		c.metrics = metrics
	}
}

// WithPollInterval sets the interval at which the engine re-checks the sink
// while waiting for a round to complete. Intervals below MinPollInterval are raised.
func WithPollInterval(interval time.Duration) Option {
	return func(c *config) {
		if interval < MinPollInterval {
			interval = MinPollInterval
		}
		c.pollInterval = interval
	}
}

// Engine drives an ordered list of rounds and a finalizer to completion.
//
// For every round, the engine computes the round's transition, sends the
// resulting messages through the stream, and waits until the sink holds all
// messages of the round number returned by the transition. Those messages are
// the input of the next round, or of the finalizer after the last round. The
// engine knows nothing about what a round computes.
//
// An engine runs a single protocol execution. There is no retry: any error
// terminates the execution, and there is no built-in timeout, so callers
// should bound Start with a context.
type Engine[R any] struct {
	log          zerolog.Logger
	protocol     string
	rounds       []Round
	finalizer    Finalizer[R]
	onTransition module.TransitionConsumer
	stream       module.Stream
	sink         module.Sink
	metrics      module.TSSMetrics
	pollInterval time.Duration

	started *atomic.Bool
	cursor  int
}

// NewEngine creates an engine. It does not perform any I/O.
// The transition consumer is optional.
func NewEngine[R any](
	log zerolog.Logger,
	rounds []Round,
	finalizer Finalizer[R],
	onTransition module.TransitionConsumer,
	stream module.Stream,
	sink module.Sink,
	opts ...Option,
) *Engine[R] {

	cfg := &config{
		protocol:     "roundbased",
		metrics:      metrics.NewNoopCollector(),
		pollInterval: DefaultPollInterval,
	}
	for _, apply := range opts {
		apply(cfg)
	}

	return &Engine[R]{
		log:          log.With().Str("component", "roundbased_engine").Str("protocol", cfg.protocol).Logger(),
		protocol:     cfg.protocol,
		rounds:       rounds,
		finalizer:    finalizer,
		onTransition: onTransition,
		stream:       stream,
		sink:         sink,
		metrics:      cfg.metrics,
		pollInterval: cfg.pollInterval,
		started:      atomic.NewBool(false),
	}
}

// Start executes the pipeline and returns the finalizer's result. It blocks
// until the finalizer returned, an error occurred, or the context is done.
// Start may only be called once.
//
// Expected errors during normal operations:
//   - ErrAlreadyStarted if the engine already ran
//   - ProtocolError if a round or the finalizer failed to produce a result
//   - SessionMismatchError or OverDeliveryError if the sink failed while waiting
//   - context errors if ctx was cancelled while waiting
//   - any error of the stream
func (e *Engine[R]) Start(ctx context.Context) (result R, err error) {
	if !e.started.CompareAndSwap(false, true) {
		return result, ErrAlreadyStarted
	}

	startTime := time.Now()
	defer func() {
		e.metrics.ExecutionFinished(e.protocol, time.Since(startTime), err)
	}()

	e.log.Debug().Int("rounds", len(e.rounds)).Msg("starting round-based protocol execution")

	var incoming []*messages.Message
	previous := ""
	for e.cursor < len(e.rounds) {
		round := e.rounds[e.cursor]
		e.notifyTransition(previous, round.Name)

		roundStart := time.Now()
		output, err := e.transition(ctx, round, incoming)
		if err != nil {
			return result, err
		}

		log := e.log.With().
			Str("round", round.Name).
			Uint32("next_round", output.Round).
			Logger()
		log.Debug().Int("outgoing", len(output.Messages)).Msg("round transition computed")

		for _, msg := range output.Messages {
			err = e.stream.SendMessage(ctx, msg)
			if err != nil {
				return result, fmt.Errorf("could not send message of %s: %w", round.Name, err)
			}
			e.metrics.MessageSent(e.protocol)
		}

		incoming, err = e.collect(ctx, output.Round)
		if err != nil {
			return result, fmt.Errorf("could not collect messages of round %d after %s: %w", output.Round, round.Name, err)
		}
		e.metrics.MessagesReceived(e.protocol, len(incoming))
		e.metrics.RoundCompleted(e.protocol, time.Since(roundStart))
		log.Debug().Int("incoming", len(incoming)).Msg("round completed")

		previous = round.Name
		e.cursor++
	}

	e.notifyTransition(previous, e.finalizer.Name)

	if e.finalizer.Finalize == nil {
		return result, NewProtocolErrorf(e.finalizer.Name, "finalizer has no finalize function")
	}
	result, err = e.finalizer.Finalize(ctx, incoming)
	if err != nil {
		return result, NewProtocolError(e.finalizer.Name, err)
	}

	e.log.Debug().Dur("duration", time.Since(startTime)).Msg("round-based protocol execution finished")
	return result, nil
}

// transition computes a round. A transition which fails, returns no output or
// returns round 0 is a ProtocolError naming the round.
func (e *Engine[R]) transition(ctx context.Context, round Round, incoming []*messages.Message) (*messages.RoundOutput, error) {
	if round.Transition == nil {
		return nil, NewProtocolErrorf(round.Name, "round has no transition")
	}
	output, err := round.Transition(ctx, incoming)
	if err != nil {
		return nil, NewProtocolError(round.Name, err)
	}
	if output == nil {
		return nil, NewProtocolErrorf(round.Name, "transition returned no result")
	}
	if output.Round == 0 {
		return nil, NewProtocolErrorf(round.Name, "transition returned round 0, round numbers start at 1")
	}
	return output, nil
}

// collect blocks until the sink holds all messages of the given round and
// takes them. It wakes up on sink notifications and re-checks periodically.
func (e *Engine[R]) collect(ctx context.Context, round uint32) ([]*messages.Message, error) {
	ticker := time.NewTicker(e.pollInterval)
	defer ticker.Stop()

	for {
		err := e.sink.Err()
		if err != nil {
			return nil, fmt.Errorf("sink failed: %w", err)
		}
		if e.sink.IsReady(round) {
			return e.sink.Take(round)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-e.sink.Ready():
		case <-ticker.C:
		}
	}
}

// notifyTransition informs the transition consumer. The consumer cannot fail
// the pipeline: panics are logged and dropped.
func (e *Engine[R]) notifyTransition(previous string, current string) {
	e.log.Debug().Str("from", previous).Str("to", current).Msg("transition")
	if e.onTransition == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			e.log.Warn().Interface("recovered_context", r).Msg("transition consumer panicked")
		}
	}()
	e.onTransition(previous, current)
}
