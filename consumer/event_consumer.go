package consumer

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/bluzky/pocsync/match"
	"github.com/bluzky/pocsync/pipeline"
	"github.com/bluzky/pocsync/router"
	"github.com/bluzky/pocsync/store"
)

// Publisher is the subset of broker.Broker the consumer depends on, kept
// narrow so unit tests can substitute a fake sink.
type Publisher interface {
	Publish(ctx context.Context, queue string, body []byte) error
}

// EventConsumer drains the ingress queue, matches each decoded event
// against every known pipeline, asks the Event Router for each match's
// target queue, and publishes one Envelope per match. Grounded on
// spec.md §4.6.
type EventConsumer struct {
	Directory store.Directory
	Router    *router.Router
	Publisher Publisher
	Logger    *slog.Logger

	// Concurrency is the worker pool size; zero uses DefaultConcurrency.
	Concurrency int
	// PrefetchCount is the AMQP QoS prefetch; zero uses DefaultPrefetch.
	PrefetchCount int
}

// DefaultConcurrency and DefaultPrefetch match spec.md §5's target worker
// pool shape (concurrency 10, prefetch 50) for both consumer pools.
const (
	DefaultConcurrency = 10
	DefaultPrefetch    = 50
)

// Consumer is the subset of broker.Broker an EventConsumer/PipelineConsumer
// needs in order to run its worker pool.
type Consumer interface {
	Consume(ctx context.Context, queue string, prefetchCount int, handler func(ctx context.Context, body []byte) error) error
}

// Run starts the Event Consumer's worker pool against sourceQueue and
// blocks until ctx is cancelled.
func (ec *EventConsumer) Run(ctx context.Context, broker Consumer, sourceQueue string) error {
	concurrency := ec.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	prefetch := ec.PrefetchCount
	if prefetch <= 0 {
		prefetch = DefaultPrefetch
	}

	return runPool(ctx, concurrency, ec.Logger, func(ctx context.Context) error {
		return broker.Consume(ctx, sourceQueue, prefetch, ec.handle)
	})
}

// handle implements spec.md §4.6 steps 1-5. It never returns an error that
// would cause the caller to nack the message: decode failures and routing
// misses are logged and the message is still considered handled, matching
// on_failure = ack.
func (ec *EventConsumer) handle(ctx context.Context, body []byte) error {
	var evt map[string]any
	if err := json.Unmarshal(body, &evt); err != nil {
		ec.Logger.Error("event consumer: malformed message", "error", err)
		return nil
	}

	pipelines, err := ec.Directory.ListPipelines(ctx)
	if err != nil {
		ec.Logger.Error("event consumer: list pipelines failed", "error", err)
		return nil
	}

	for _, p := range pipelines {
		if !match.Match(evt, p.Pattern) {
			continue
		}

		queue, err := ec.Router.Route(evt)
		if err != nil {
			ec.Logger.Warn("event consumer: no matching route", "pipeline_id", p.ID, "error", err)
			continue
		}

		ec.publishOne(ctx, queue, p, evt)
	}
	return nil
}

// publishOne publishes a single {pipeline, context} envelope. Publication
// is best-effort per spec.md §4.6 step 4: a failure logs but does not
// short-circuit the loop over remaining matches.
func (ec *EventConsumer) publishOne(ctx context.Context, queue string, p pipeline.Pipeline, evt map[string]any) {
	body, err := encodeEnvelope(Envelope{Pipeline: p, Context: evt})
	if err != nil {
		ec.Logger.Error("event consumer: encode envelope failed", "pipeline_id", p.ID, "error", err)
		return
	}
	if err := ec.Publisher.Publish(ctx, queue, body); err != nil {
		ec.Logger.Error("event consumer: publish failed", "pipeline_id", p.ID, "queue", queue, "error", err)
		return
	}
	ec.Logger.Info("event consumer: routed pipeline", "pipeline_id", p.ID, "queue", queue)
}
