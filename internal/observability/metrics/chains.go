// Package metrics emits standardised chain submission metrics.
package metrics

import (
	"time"

	obserrors "github.com/target/ivt-chain/internal/observability/errors"
	"github.com/target/ivt-chain/internal/observability/statsd"
)

// Result constants for metric tagging.
const (
	ResultSuccess = "success"
	ResultError   = "error"
	ResultLocked  = "locked"
)

// ChainMetric captures the outcome of one chain submission.
type ChainMetric struct {
	Backend  string
	Model    string
	Result   string
	Jobs     int
	Duration time.Duration
	Err      error
}

// EmitChainSubmission emits chain.submit, chain.jobs and chain.duration.
func EmitChainSubmission(sink statsd.Sink, in ChainMetric) {
	if sink == nil {
		return
	}

	tags := map[string]string{
		"backend": in.Backend,
		"model":   in.Model,
		"result":  in.Result,
	}

	if in.Err != nil && in.Result == ResultError {
		if class := obserrors.Classify(in.Err); class != "" {
			tags["error_class"] = class
		}
	}

	sink.Count("chain.submit", 1, tags)

	if in.Jobs > 0 {
		sink.Count("chain.jobs", int64(in.Jobs), CloneTags(tags))
	}

	if in.Duration > 0 {
		sink.Timing("chain.duration", in.Duration, CloneTags(tags))
	}
}

// EmitStatusQuery records a status lookup against the queue.
func EmitStatusQuery(sink statsd.Sink, backend string, jobs int, d time.Duration) {
	if sink == nil {
		return
	}
	tags := map[string]string{"backend": backend}
	sink.Gauge("chain.status.jobs", float64(jobs), tags)
	if d > 0 {
		sink.Timing("chain.status.duration", d, CloneTags(tags))
	}
}

// CloneTags creates a shallow copy of a tag map.
func CloneTags(src map[string]string) map[string]string {
	if len(src) == 0 {
		return nil
	}
	out := make(map[string]string, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}
