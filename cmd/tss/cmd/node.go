package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v2"
	"github.com/hashicorp/go-multierror"
	"github.com/prometheus/client_golang/prometheus"

	tsscoordinator "github.com/onflow/flow-tss/engine/tss"
	"github.com/onflow/flow-tss/model/tss"
	"github.com/onflow/flow-tss/module"
	"github.com/onflow/flow-tss/module/metrics"
	"github.com/onflow/flow-tss/module/simulated"
	"github.com/onflow/flow-tss/network/relay"
	bstorage "github.com/onflow/flow-tss/storage/badger"
)

// node holds the resources of a party for the duration of one command.
type node struct {
	client        *relay.Client
	db            *badger.DB
	shares        *bstorage.KeyShares
	coordinator   *tsscoordinator.Coordinator
	metricsServer *metrics.Server
}

// openDB opens the key share database in the configured data directory.
func (c *cli) openDB() (*badger.DB, error) {
	opts := badger.DefaultOptions(c.config.DataDir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("could not open key share database at %s: %w", c.config.DataDir, err)
	}
	return db, nil
}

// newNode opens the database, connects to the relay and starts the metrics
// server if one is configured.
func (c *cli) newNode(ctx context.Context) (*node, error) {
	n := &node{}

	var collector interface {
		module.TSSMetrics
		module.RelayMetrics
	} = metrics.NewNoopCollector()
	if c.config.MetricsAddress != "" {
		registry := prometheus.NewRegistry()
		collector = metrics.NewTSSCollector(registry)
		server := metrics.NewServer(c.log, c.config.MetricsAddress, registry)
		err := server.Start()
		if err != nil {
			return nil, err
		}
		n.metricsServer = server
	}

	db, err := c.openDB()
	if err != nil {
		return nil, multierror.Append(err, n.Close()).ErrorOrNil()
	}
	n.db = db
	n.shares = bstorage.NewKeyShares(db)

	client, err := relay.Dial(ctx, c.log, c.config.Relay, relay.WithMetrics(collector))
	if err != nil {
		return nil, multierror.Append(err, n.Close()).ErrorOrNil()
	}
	n.client = client

	factory := simulated.NewFactory(simulated.WithOfflineRounds(c.config.OfflineRounds))
	n.coordinator = tsscoordinator.NewCoordinator(c.log, client, factory, n.shares,
		tsscoordinator.WithMetrics(collector),
		tsscoordinator.WithOfflineRounds(factory.OfflineRounds()),
		tsscoordinator.WithPollInterval(c.config.PollInterval),
		tsscoordinator.WithTransitionConsumer(func(previous string, current string) {
			c.log.Info().Str("from", previous).Str("to", current).Msg("protocol step")
		}),
	)
	c.log.Warn().Msg("using the simulated protocol engine, key material is NOT secure")
	return n, nil
}

// joinGroup joins the group and returns its parameters.
func (n *node) joinGroup(ctx context.Context, groupID string) (*tss.Group, error) {
	return relay.JoinGroup(ctx, n.client, groupID)
}

// Close releases all resources of the node.
func (n *node) Close() error {
	var result *multierror.Error
	if n.client != nil {
		err := n.client.Close()
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("could not close relay client: %w", err))
		}
	}
	if n.db != nil {
		err := n.db.Close()
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("could not close key share database: %w", err))
		}
	}
	if n.metricsServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := n.metricsServer.Shutdown(ctx)
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("could not stop metrics server: %w", err))
		}
	}
	return result.ErrorOrNil()
}
