package executor

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/bluzky/pocsync/pipeline"
)

// NewExecutionID generates an identifier for a single Pipeline Executor
// invocation. Unlike pipeline.NewID (a fixed 16-character id reserved for
// Pipeline/Step identity), execution ids are per-invocation and carry no
// round-trip or fixed-width requirement, so this uses google/uuid directly,
// matching the teacher's own use of that library for its execution-scoped
// identifiers.
func NewExecutionID() string {
	return uuid.NewString()
}

// Status enumerates the lifecycle states of an ExecutionRecord, per
// spec.md §4.4's state machine.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusSuccess   Status = "success"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// ExecutionRecord is the in-memory result of one pipeline run, produced by
// the Pipeline Executor and returned to its caller.
type ExecutionRecord struct {
	ExecutionID string
	PipelineID  string
	Status      Status
	StartedAt   time.Time
	CompletedAt time.Time
	Context     map[string]any
	Results     []StepResult
	Error       string
}

// Success reports whether the execution completed successfully.
func (r *ExecutionRecord) Success() bool { return r.Status == StatusSuccess }

// Failed reports whether the execution terminated in failure.
func (r *ExecutionRecord) Failed() bool { return r.Status == StatusFailed }

// Cancelled reports whether the execution was cancelled.
func (r *ExecutionRecord) Cancelled() bool { return r.Status == StatusCancelled }

// DurationMS returns the execution's wall-clock duration in milliseconds,
// or 0 if it has not yet completed.
func (r *ExecutionRecord) DurationMS() int64 {
	if r.CompletedAt.IsZero() {
		return 0
	}
	return r.CompletedAt.Sub(r.StartedAt).Milliseconds()
}

// FinalOutput returns the output of the last successful step, or nil if
// there is none.
func (r *ExecutionRecord) FinalOutput() map[string]any {
	for i := len(r.Results) - 1; i >= 0; i-- {
		if !r.Results[i].Failed() {
			return r.Results[i].Output
		}
	}
	return nil
}

// AllOutputs returns the success outputs of every step, keyed by step name.
func (r *ExecutionRecord) AllOutputs() map[string]map[string]any {
	out := make(map[string]map[string]any)
	for _, res := range r.Results {
		if !res.Failed() {
			out[res.StepName] = res.Output
		}
	}
	return out
}

// FailedSteps returns the results of every step that failed.
func (r *ExecutionRecord) FailedSteps() []StepResult {
	var out []StepResult
	for _, res := range r.Results {
		if res.Failed() {
			out = append(out, res)
		}
	}
	return out
}

// Summary returns a small stats map suitable for logging.
func (r *ExecutionRecord) Summary() map[string]any {
	return map[string]any{
		"execution_id": r.ExecutionID,
		"pipeline_id":  r.PipelineID,
		"status":       string(r.Status),
		"step_count":   len(r.Results),
		"duration_ms":  r.DurationMS(),
	}
}

// Cancel transitions a running ExecutionRecord to cancelled. It is a no-op
// on any other status. It only updates the record: the Pipeline Executor
// does not read the record's status while running, and observes
// cancellation through its context, checked between steps.
func (r *ExecutionRecord) Cancel() {
	if r.Status != StatusRunning {
		return
	}
	r.Status = StatusCancelled
	r.Error = "Execution cancelled by user"
	r.CompletedAt = time.Now().UTC()
}

// PipelineExecutor drives a Pipeline's steps in order, threading each
// step's output forward into the next step's input and accumulating a
// typed ExecutionRecord. Grounded on module/pipeline_executor.go's
// Pipeline.Execute, generalized to the spec's pre-validated, registry-
// resolved step model and to a typed per-step StepResult rather than a
// bare output map.
type PipelineExecutor struct {
	Steps  *StepExecutor
	Logger *slog.Logger
}

// NewPipelineExecutor constructs a PipelineExecutor bound to a StepExecutor.
func NewPipelineExecutor(steps *StepExecutor, logger *slog.Logger) *PipelineExecutor {
	if logger == nil {
		logger = slog.Default()
	}
	return &PipelineExecutor{Steps: steps, Logger: logger}
}

// Execute runs p from initialContext (the trigger data for position 0) and
// returns a terminal ExecutionRecord. It never returns a Go error: every
// outcome, including pipeline-invalid and step-crashed, is expressed in the
// returned record.
func (pe *PipelineExecutor) Execute(ctx context.Context, executionID string, p pipeline.Pipeline, initialContext map[string]any) *ExecutionRecord {
	record := &ExecutionRecord{
		ExecutionID: executionID,
		PipelineID:  p.ID,
		Status:      StatusPending,
		StartedAt:   time.Now().UTC(),
		Context:     cloneMap(initialContext),
	}

	if err := p.Validate(); err != nil {
		record.Status = StatusFailed
		record.Error = "Pipeline validation failed"
		record.CompletedAt = time.Now().UTC()
		pe.Logger.Error("pipeline validation failed", "pipeline_id", p.ID, "error", err)
		return record
	}

	record.Status = StatusRunning

	sorted := p.Normalize().Steps

	var lastOutput map[string]any
	for i, step := range sorted {
		select {
		case <-ctx.Done():
			record.Status = StatusCancelled
			record.Error = "Execution cancelled by user"
			record.CompletedAt = time.Now().UTC()
			return record
		default:
		}

		var stepInput map[string]any
		if i == 0 {
			stepInput = initialContext
		} else if lastOutput != nil {
			stepInput = lastOutput
		} else {
			pe.Logger.Warn("prior step produced no output; continuing with empty input",
				"pipeline_id", p.ID, "step", step.Name)
			stepInput = map[string]any{}
		}

		result, _ := pe.Steps.Execute(ctx, step, stepInput, record.Context)

		if result.Failed() {
			record.Results = append(record.Results, result)
			record.Status = StatusFailed
			record.Error = result.Error
			record.CompletedAt = time.Now().UTC()
			pe.Logger.Error("step failed, pipeline terminating",
				"pipeline_id", p.ID, "step", step.Name, "error", result.Error)
			return record
		}

		record.Results = append(record.Results, result)
		lastOutput = result.Output
		mergeContext(record.Context, result.Output)
	}

	record.Status = StatusSuccess
	record.CompletedAt = time.Now().UTC()
	return record
}

// mergeContext merges output["context"] (or a top-level "context" map) into
// the accumulated execution context, per spec.md §4.4.
func mergeContext(ctx, output map[string]any) {
	if output == nil {
		return
	}
	if sub, ok := output["context"].(map[string]any); ok {
		for k, v := range sub {
			ctx[k] = v
		}
	}
}

func cloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
