package metrics

// Common metric attribute keys to keep telemetry consistent/searchable.
const (
	AttrMethod  = "method"
	AttrPath    = "path"
	AttrStatus  = "status"
	AttrOutcome = "outcome"
	AttrMarket  = "market"
	AttrSink    = "sink"
	AttrClass   = "class"
)

// Task outcomes used as the AttrOutcome value.
const (
	OutcomeSucceeded = "succeeded"
	OutcomeFailed    = "failed"
)
