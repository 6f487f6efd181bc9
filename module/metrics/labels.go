package metrics

const (
	namespaceTSS = "tss"
)

const (
	subsystemRoundBased = "roundbased"
	subsystemRelay      = "relay"
)

const (
	LabelProtocol = "protocol"
	LabelOutcome  = "outcome"
	LabelMethod   = "method"
)

const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)
