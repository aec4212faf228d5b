// Package consumer implements the Event Consumer and Pipeline Consumer:
// the two bounded worker pools that drain the ingress queue and the
// per-route pipeline queues, respectively. Grounded on the teacher's
// plugins/messaging worker-pool shape (a fixed number of goroutines each
// calling a blocking Consume loop), generalized here using
// golang.org/x/sync/errgroup to bound and supervise the pool instead of
// the teacher's modular lifecycle hooks.
package consumer

import (
	"encoding/json"
	"fmt"

	"github.com/bluzky/pocsync/pipeline"
)

// Envelope is the pipeline work item carried on a per-route pipeline
// queue: a fully reconstructable Pipeline plus the triggering event,
// matching the wire schema documented in spec.md §6.
type Envelope struct {
	Pipeline pipeline.Pipeline `json:"pipeline"`
	Context  map[string]any    `json:"context"`
}

// decodeEnvelope parses a pipeline work item off the wire.
func decodeEnvelope(body []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return Envelope{}, fmt.Errorf("consumer: decode envelope: %w", err)
	}
	return env, nil
}

// encodeEnvelope serializes a pipeline work item for publication to a
// target queue.
func encodeEnvelope(env Envelope) ([]byte, error) {
	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("consumer: encode envelope: %w", err)
	}
	return data, nil
}
