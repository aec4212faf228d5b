package consumer

import (
	"context"
	"log/slog"
	"time"

	"github.com/bluzky/pocsync/executor"
	"github.com/bluzky/pocsync/pipeline"
)

// PipelineConsumer drains a single pipeline queue, reconstructs the
// Pipeline carried in each envelope, and drives it to completion via the
// Pipeline Executor. Grounded on spec.md §4.7.
type PipelineConsumer struct {
	Executor *executor.PipelineExecutor
	Logger   *slog.Logger

	Concurrency   int
	PrefetchCount int

	// OnComplete, if set, is called with every terminal ExecutionRecord;
	// used to feed metrics and to let tests observe outcomes.
	OnComplete func(record *executor.ExecutionRecord)
}

// Run starts the Pipeline Consumer's worker pool against queue and blocks
// until ctx is cancelled.
func (pc *PipelineConsumer) Run(ctx context.Context, broker Consumer, queue string) error {
	concurrency := pc.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	prefetch := pc.PrefetchCount
	if prefetch <= 0 {
		prefetch = DefaultPrefetch
	}

	return runPool(ctx, concurrency, pc.Logger, func(ctx context.Context) error {
		return broker.Consume(ctx, queue, prefetch, pc.handle)
	})
}

// handle implements spec.md §4.7 steps 1-4. A decode failure is logged and
// the message is considered handled (on_failure = ack); an execution
// failure is likewise only observable via the returned ExecutionRecord's
// logs, never by nacking the broker message.
func (pc *PipelineConsumer) handle(ctx context.Context, body []byte) error {
	env, err := decodeEnvelope(body)
	if err != nil {
		pc.Logger.Error("pipeline consumer: malformed message", "error", err)
		return nil
	}

	record := pc.run(ctx, env.Pipeline, env.Context)
	if pc.OnComplete != nil {
		pc.OnComplete(record)
	}
	return nil
}

func (pc *PipelineConsumer) run(ctx context.Context, p pipeline.Pipeline, evtContext map[string]any) *executor.ExecutionRecord {
	executionID := executor.NewExecutionID()
	start := time.Now()
	record := pc.Executor.Execute(ctx, executionID, p, evtContext)
	pc.Logger.Info("pipeline consumer: execution complete",
		"pipeline_id", p.ID,
		"execution_id", executionID,
		"status", record.Status,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return record
}
