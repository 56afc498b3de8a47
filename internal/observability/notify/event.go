// Package notify defines the payload and sink contract for chain failure notifications.
package notify

import (
	"context"
	"time"
)

// Severity constants recognised by downstream sinks.
const (
	SeverityCritical = "critical"
	SeverityError    = "error"
)

// ChainFailurePayload captures the canonical data we emit when a chain submission fails.
type ChainFailurePayload struct {
	RunID   string
	Model   string
	Backend string
	// ChunkIndex is the 1-based position of the chunk that failed; 0 when failure preceded submission.
	ChunkIndex int
	Chunk      string
	// JobsSubmitted counts jobs left in the queue ahead of the failure.
	JobsSubmitted int
	LastJobID     string
	Error         string
	ErrorClass    string
	Severity      string
	OccurredAt    time.Time
	Metadata      map[string]string
}

// Sink describes a destination capable of consuming chain failure notifications.
type Sink interface {
	SendChainFailure(ctx context.Context, payload ChainFailurePayload) error
}

// SinkFunc adapts a function to the Sink interface (useful for tests).
type SinkFunc func(ctx context.Context, payload ChainFailurePayload) error

// SendChainFailure implements the Sink interface.
func (f SinkFunc) SendChainFailure(ctx context.Context, payload ChainFailurePayload) error {
	if f == nil {
		return nil
	}
	return f(ctx, payload)
}
