package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Endpoint is the path metrics are served on.
const Endpoint = "/metrics"

// Server exposes the metrics of a gatherer to prometheus.
type Server struct {
	log      zerolog.Logger
	server   *http.Server
	listener net.Listener
	done     chan struct{}
}

func NewServer(log zerolog.Logger, address string, gatherer prometheus.Gatherer) *Server {
	mux := http.NewServeMux()
	mux.Handle(Endpoint, promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	return &Server{
		log:    log.With().Str("component", "metrics_server").Logger(),
		server: &http.Server{Addr: address, Handler: mux, ReadHeaderTimeout: 5 * time.Second},
		done:   make(chan struct{}),
	}
}

// Start binds the listen address and serves in the background. Binding
// errors are returned, serving errors are logged.
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("could not listen on %s: %w", s.server.Addr, err)
	}
	s.listener = listener
	s.log.Info().Str("address", listener.Addr().String()).Str("endpoint", Endpoint).Msg("metrics server started")

	go func() {
		defer close(s.done)
		err := s.server.Serve(listener)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Err(err).Msg("metrics server failed")
		}
	}()
	return nil
}

// Addr returns the bound address. Only valid after Start.
func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

// Shutdown stops the server, waiting for in-flight scrapes until ctx is done.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.listener == nil {
		return nil
	}
	err := s.server.Shutdown(ctx)
	<-s.done
	return err
}
