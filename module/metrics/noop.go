package metrics

import (
	"time"

	"github.com/onflow/flow-tss/module"
)

type NoopCollector struct{}

var (
	_ module.TSSMetrics   = (*NoopCollector)(nil)
	_ module.RelayMetrics = (*NoopCollector)(nil)
)

func NewNoopCollector() *NoopCollector {
	nc := &NoopCollector{}
	return nc
}

func (nc *NoopCollector) RoundCompleted(protocol string, duration time.Duration)                {}
func (nc *NoopCollector) MessageSent(protocol string)                                          {}
func (nc *NoopCollector) MessagesReceived(protocol string, count int)                          {}
func (nc *NoopCollector) ExecutionFinished(protocol string, duration time.Duration, err error) {}
func (nc *NoopCollector) RelayRequest(method string, err error)                                {}
