// Package relay is the client of the session coordination server, which
// manages groups and sessions and relays protocol messages between parties.
//
// The client speaks JSON-RPC 2.0 over a single websocket connection. It runs
// three routines in parallel (reader, writer and keepalive). If any of them
// fails, the others are cancelled, pending requests fail and the client is
// unusable.
package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"
	"go.uber.org/atomic"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/onflow/flow-tss/module"
	"github.com/onflow/flow-tss/module/metrics"
)

type listener struct {
	id      module.ListenerID
	handler module.EventHandler
	once    bool
}

type outgoing struct {
	request *Request
	sent    chan error
}

// Client is a JSON-RPC client of the session coordination server.
type Client struct {
	log     zerolog.Logger
	conn    Connection
	metrics module.RelayMetrics
	limiter *rate.Limiter

	requestID  *atomic.Uint64
	listenerID *atomic.Uint64

	pendingMu sync.Mutex
	pending   map[uint64]chan *Response

	listenersMu sync.Mutex
	listeners   map[string][]*listener

	outbound chan *outgoing
	cancel   context.CancelFunc
	done     chan struct{}
	closing  *atomic.Bool
	err      error
}

var _ module.SessionClient = (*Client)(nil)

type ClientOption func(*Client)

// WithMetrics sets the metrics collector of the client.
func WithMetrics(metrics module.RelayMetrics) ClientOption {
	return func(c *Client) {
		c.metrics = metrics
	}
}

// WithRateLimit limits outgoing frames per second. Zero disables the limit.
func WithRateLimit(perSecond float64) ClientOption {
	return func(c *Client) {
		if perSecond > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
		} else {
			c.limiter = nil
		}
	}
}

// Dial connects to the session coordination server, retrying with
// exponential backoff.
func Dial(ctx context.Context, log zerolog.Logger, config Config, opts ...ClientOption) (*Client, error) {
	err := config.Validate()
	if err != nil {
		return nil, fmt.Errorf("invalid relay config: %w", err)
	}

	backoff := retry.WithMaxRetries(config.DialRetries, retry.NewExponential(config.DialBackoff))

	var conn *websocket.Conn
	attempt := 0
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		c, _, err := websocket.DefaultDialer.DialContext(ctx, config.URL, nil)
		if err != nil {
			log.Warn().Err(err).Int("attempt", attempt).Str("url", config.URL).Msg("could not dial relay, retrying")
			return retry.RetryableError(err)
		}
		conn = c
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("could not connect to relay at %s: %w", config.URL, err)
	}

	opts = append([]ClientOption{WithRateLimit(config.MaxRequestsPerSecond)}, opts...)
	return NewClient(log, NewWebsocketConnection(conn), opts...)
}

// NewClient starts a client on an established connection.
func NewClient(log zerolog.Logger, conn Connection, opts ...ClientOption) (*Client, error) {
	c := &Client{
		log:        log.With().Str("component", "relay_client").Logger(),
		conn:       conn,
		metrics:    metrics.NewNoopCollector(),
		requestID:  atomic.NewUint64(0),
		listenerID: atomic.NewUint64(0),
		pending:    make(map[uint64]chan *Response),
		listeners:  make(map[string][]*listener),
		outbound:   make(chan *outgoing),
		done:       make(chan struct{}),
		closing:    atomic.NewBool(false),
	}
	for _, apply := range opts {
		apply(c)
	}

	err := c.conn.KeepReading(PongWait)
	if err != nil {
		return nil, fmt.Errorf("could not configure keepalive: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return c.keepalive(gCtx)
	})
	g.Go(func() error {
		return c.writeMessages(gCtx)
	})
	g.Go(func() error {
		return c.readMessages(gCtx)
	})

	// the reader blocks on the connection, closing it is the only way to stop it
	go func() {
		<-gCtx.Done()
		err := c.conn.Close()
		if err != nil {
			c.log.Debug().Err(err).Msg("error closing connection")
		}
	}()

	go func() {
		err := g.Wait()
		if err != nil && !c.closing.Load() {
			c.log.Error().Err(err).Msg("relay connection failed")
			c.err = err
		}
		cancel()
		close(c.done)
	}()

	return c, nil
}

// Done returns a channel closed once the client stopped.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Err returns the error which stopped the client, if any. Only valid after Done is closed.
func (c *Client) Err() error {
	select {
	case <-c.done:
		return c.err
	default:
		return nil
	}
}

// RPC calls a method of the server and decodes the result into result,
// which may be nil.
//
// Expected errors during normal operations:
//   - *RPCError if the server answered with an error
//   - ErrClientClosed if the client stopped before the response arrived
//   - context errors if ctx was cancelled
func (c *Client) RPC(ctx context.Context, method string, params interface{}, result interface{}) (err error) {
	defer func() {
		c.metrics.RelayRequest(method, err)
	}()

	raw, err := encodeParams(params)
	if err != nil {
		return fmt.Errorf("could not encode params of %s: %w", method, err)
	}

	id := c.requestID.Inc()
	responses := make(chan *Response, 1)
	c.pendingMu.Lock()
	c.pending[id] = responses
	c.pendingMu.Unlock()
	defer func() {
		c.pendingMu.Lock()
		delete(c.pending, id)
		c.pendingMu.Unlock()
	}()

	err = c.send(ctx, &Request{JSONRPC: jsonrpcVersion, ID: &id, Method: method, Params: raw})
	if err != nil {
		return fmt.Errorf("could not send %s: %w", method, err)
	}

	var response *Response
	select {
	case response = <-responses:
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		return c.closedErr()
	}

	if response.Error != nil {
		return response.Error
	}
	if result == nil || len(response.Result) == 0 {
		return nil
	}
	err = json.Unmarshal(response.Result, result)
	if err != nil {
		return fmt.Errorf("could not decode result of %s: %w", method, err)
	}
	return nil
}

// Notify sends a notification, which the server does not answer.
func (c *Client) Notify(ctx context.Context, method string, params interface{}) (err error) {
	defer func() {
		c.metrics.RelayRequest(method, err)
	}()

	raw, err := encodeParams(params)
	if err != nil {
		return fmt.Errorf("could not encode params of %s: %w", method, err)
	}
	return c.send(ctx, &Request{JSONRPC: jsonrpcVersion, Method: method, Params: raw})
}

func (c *Client) On(event string, handler module.EventHandler) module.ListenerID {
	return c.addListener(event, handler, false)
}

func (c *Client) Once(event string, handler module.EventHandler) module.ListenerID {
	return c.addListener(event, handler, true)
}

func (c *Client) Off(id module.ListenerID) {
	c.listenersMu.Lock()
	defer c.listenersMu.Unlock()
	for event, listeners := range c.listeners {
		for i, l := range listeners {
			if l.id == id {
				c.listeners[event] = append(listeners[:i:i], listeners[i+1:]...)
				return
			}
		}
	}
}

func (c *Client) RemoveAllListeners(event string) {
	c.listenersMu.Lock()
	defer c.listenersMu.Unlock()
	delete(c.listeners, event)
}

// Close shuts the connection down and waits for the client's routines.
func (c *Client) Close() error {
	if !c.closing.CompareAndSwap(false, true) {
		<-c.done
		return nil
	}
	select {
	case <-c.done:
		return c.err
	default:
	}

	var result *multierror.Error
	err := c.conn.SendClose(time.Now().Add(WriteWait))
	if err != nil {
		result = multierror.Append(result, fmt.Errorf("could not send close message: %w", err))
	}

	c.cancel()
	<-c.done
	if c.err != nil {
		result = multierror.Append(result, c.err)
	}
	return result.ErrorOrNil()
}

func (c *Client) closedErr() error {
	if c.err != nil {
		return fmt.Errorf("%w: %v", ErrClientClosed, c.err)
	}
	return ErrClientClosed
}

func (c *Client) addListener(event string, handler module.EventHandler, once bool) module.ListenerID {
	id := module.ListenerID(c.listenerID.Inc())
	c.listenersMu.Lock()
	defer c.listenersMu.Unlock()
	c.listeners[event] = append(c.listeners[event], &listener{id: id, handler: handler, once: once})
	return id
}

// send hands a request to the writer routine and waits until it was written.
func (c *Client) send(ctx context.Context, request *Request) error {
	out := &outgoing{request: request, sent: make(chan error, 1)}
	select {
	case c.outbound <- out:
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		return c.closedErr()
	}

	select {
	case err := <-out.sent:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		return c.closedErr()
	}
}

// keepalive sends a ping message periodically to keep the connection alive.
func (c *Client) keepalive(ctx context.Context) error {
	defer func() {
		// gracefully handle panics from github.com/gorilla/websocket
		if r := recover(); r != nil {
			c.log.Warn().Interface("recovered_context", r).Msg("keepalive routine recovered from panic")
		}
	}()

	pingTicker := time.NewTicker(PingPeriod)
	defer pingTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-pingTicker.C:
			err := c.conn.Ping(time.Now().Add(WriteWait))
			if err != nil {
				return fmt.Errorf("error sending ping: %w", err)
			}
		}
	}
}

// writeMessages writes the requests handed over by send, respecting the rate limit.
func (c *Client) writeMessages(ctx context.Context) error {
	defer func() {
		// gracefully handle panics from github.com/gorilla/websocket
		if r := recover(); r != nil {
			c.log.Warn().Interface("recovered_context", r).Msg("writer routine recovered from panic")
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case out := <-c.outbound:
			if c.limiter != nil {
				if err := c.limiter.Wait(ctx); err != nil {
					out.sent <- err
					return fmt.Errorf("rate limiter wait failed: %w", err)
				}
			}

			err := c.conn.WriteRequest(out.request, time.Now().Add(WriteWait))
			out.sent <- err
			if err != nil {
				return fmt.Errorf("could not write %s: %w", out.request.Method, err)
			}
		}
	}
}

// readMessages reads frames and dispatches responses to pending requests and
// events to listeners.
func (c *Client) readMessages(ctx context.Context) error {
	defer func() {
		// gracefully handle panics from github.com/gorilla/websocket
		if r := recover(); r != nil {
			c.log.Warn().Interface("recovered_context", r).Msg("reader routine recovered from panic")
		}
	}()

	for {
		var frame Response
		err := c.conn.ReadFrame(&frame)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			var syntaxErr *json.SyntaxError
			var typeErr *json.UnmarshalTypeError
			if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
				c.log.Warn().Err(err).Msg("dropping malformed frame")
				continue
			}
			return fmt.Errorf("error reading frame: %w", err)
		}
		c.dispatch(&frame)
	}
}

func (c *Client) dispatch(frame *Response) {
	if frame.ID != nil {
		c.pendingMu.Lock()
		responses, ok := c.pending[*frame.ID]
		c.pendingMu.Unlock()
		if !ok {
			c.log.Debug().Uint64("id", *frame.ID).Msg("dropping response without pending request")
			return
		}
		select {
		case responses <- frame:
		default:
			c.log.Warn().Uint64("id", *frame.ID).Msg("dropping duplicate response")
		}
		return
	}

	if !frame.IsEvent() {
		c.log.Warn().Msg("dropping frame that is neither a response nor an event")
		return
	}
	c.emit(frame.Method, frame.Params)
}

// emit runs the listeners of an event on the reader routine. Handlers
// registered with Once are removed before they run.
func (c *Client) emit(event string, params json.RawMessage) {
	c.listenersMu.Lock()
	listeners := c.listeners[event]
	handlers := make([]module.EventHandler, 0, len(listeners))
	remaining := listeners[:0:0]
	for _, l := range listeners {
		handlers = append(handlers, l.handler)
		if !l.once {
			remaining = append(remaining, l)
		}
	}
	if len(listeners) > 0 {
		c.listeners[event] = remaining
	}
	c.listenersMu.Unlock()

	if len(handlers) == 0 {
		c.log.Debug().Str("event", event).Msg("no listener for event")
		return
	}
	for _, handler := range handlers {
		c.handle(event, handler, params)
	}
}

func (c *Client) handle(event string, handler module.EventHandler, params json.RawMessage) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Warn().Str("event", event).Interface("recovered_context", r).Msg("event handler panicked")
		}
	}()
	handler(params)
}
