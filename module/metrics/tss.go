package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/onflow/flow-tss/module"
)

// TSSCollector implements metric collection for round-based protocol
// executions and the relay client.
type TSSCollector struct {
	roundDuration     *prometheus.HistogramVec
	messagesSent      *prometheus.CounterVec
	messagesReceived  *prometheus.CounterVec
	executionDuration *prometheus.HistogramVec
	executions        *prometheus.CounterVec
	relayRequests     *prometheus.CounterVec
}

var (
	_ module.TSSMetrics   = (*TSSCollector)(nil)
	_ module.RelayMetrics = (*TSSCollector)(nil)
)

func NewTSSCollector(registerer prometheus.Registerer) *TSSCollector {
	roundDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespaceTSS,
		Subsystem: subsystemRoundBased,
		Name:      "round_duration_seconds",
		Help:      "time from computing a round transition until all messages of the next round were collected",
		Buckets:   []float64{0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
	}, []string{LabelProtocol})
	messagesSent := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespaceTSS,
		Subsystem: subsystemRoundBased,
		Name:      "messages_sent_total",
		Help:      "number of protocol messages sent to other parties",
	}, []string{LabelProtocol})
	messagesReceived := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespaceTSS,
		Subsystem: subsystemRoundBased,
		Name:      "messages_received_total",
		Help:      "number of protocol messages collected from other parties",
	}, []string{LabelProtocol})
	executionDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespaceTSS,
		Subsystem: subsystemRoundBased,
		Name:      "execution_duration_seconds",
		Help:      "duration of complete protocol executions",
		Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300},
	}, []string{LabelProtocol, LabelOutcome})
	executions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespaceTSS,
		Subsystem: subsystemRoundBased,
		Name:      "executions_total",
		Help:      "number of finished protocol executions by outcome",
	}, []string{LabelProtocol, LabelOutcome})
	relayRequests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespaceTSS,
		Subsystem: subsystemRelay,
		Name:      "requests_total",
		Help:      "number of requests sent to the session coordination server by outcome",
	}, []string{LabelMethod, LabelOutcome})

	registerer.MustRegister(
		roundDuration,
		messagesSent,
		messagesReceived,
		executionDuration,
		executions,
		relayRequests,
	)

	return &TSSCollector{
		roundDuration:     roundDuration,
		messagesSent:      messagesSent,
		messagesReceived:  messagesReceived,
		executionDuration: executionDuration,
		executions:        executions,
		relayRequests:     relayRequests,
	}
}

func (c *TSSCollector) RoundCompleted(protocol string, duration time.Duration) {
	c.roundDuration.WithLabelValues(protocol).Observe(duration.Seconds())
}

func (c *TSSCollector) MessageSent(protocol string) {
	c.messagesSent.WithLabelValues(protocol).Inc()
}

func (c *TSSCollector) MessagesReceived(protocol string, count int) {
	c.messagesReceived.WithLabelValues(protocol).Add(float64(count))
}

func (c *TSSCollector) ExecutionFinished(protocol string, duration time.Duration, err error) {
	outcome := outcomeOf(err)
	c.executionDuration.WithLabelValues(protocol, outcome).Observe(duration.Seconds())
	c.executions.WithLabelValues(protocol, outcome).Inc()
}

// RelayRequest records a request to the session coordination server.
func (c *TSSCollector) RelayRequest(method string, err error) {
	c.relayRequests.WithLabelValues(method, outcomeOf(err)).Inc()
}

func outcomeOf(err error) string {
	if err != nil {
		return OutcomeFailure
	}
	return OutcomeSuccess
}
