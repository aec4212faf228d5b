// Package executor implements the Step Executor and Pipeline Executor: the
// components that resolve a step's action, assemble its input, invoke it,
// and drive a whole pipeline to a terminal ExecutionRecord. Grounded on the
// teacher's module/pipeline_executor.go (Pipeline.Execute state machine),
// generalized from its PipelineStep-interface model to the spec's
// registry-resolved, data-only Step model.
package executor

import (
	"context"
	"fmt"
	"maps"
	"strings"
	"time"

	"github.com/bluzky/pocsync/pipeline"
	"github.com/bluzky/pocsync/registry"
)

// StepResult is the outcome of a single step execution. Exactly one of the
// success fields (Output) or the failure fields (Error) is populated; the
// presence of Error is what downstream consumers discriminate on, per
// spec.md §3.
type StepResult struct {
	StepID      string            `json:"step_id"`
	StepName    string            `json:"step_name"`
	StepType    pipeline.StepType `json:"step_type"`
	Integration string            `json:"integration"`
	Action      string            `json:"action"`

	// Success fields.
	Output     map[string]any `json:"output,omitempty"`
	Status     string         `json:"status,omitempty"`
	ExecutedAt time.Time      `json:"executed_at,omitzero"`

	// Failure fields.
	Error     string         `json:"error,omitempty"`
	FailedAt  time.Time      `json:"failed_at,omitzero"`
	InputData map[string]any `json:"input_data,omitempty"`

	DurationMS int64 `json:"duration_ms"`
}

// Failed reports whether this result represents a step failure.
func (r StepResult) Failed() bool {
	return r.Error != ""
}

// sensitiveKeySubstrings are the lowercase substrings that mark a top-level
// input key as sensitive for the purposes of failure-result redaction.
var sensitiveKeySubstrings = []string{"password", "token", "secret", "key", "auth"}

const redactedPlaceholder = "[REDACTED]"

func redactSensitiveKeys(input map[string]any) map[string]any {
	redacted := make(map[string]any, len(input))
	for k, v := range input {
		lower := strings.ToLower(k)
		sensitive := false
		for _, substr := range sensitiveKeySubstrings {
			if strings.Contains(lower, substr) {
				sensitive = true
				break
			}
		}
		if sensitive {
			redacted[k] = redactedPlaceholder
		} else {
			redacted[k] = v
		}
	}
	return redacted
}

// StepExecutor resolves a step's action against a Registry, assembles its
// input, invokes it, and wraps the outcome as a StepResult.
type StepExecutor struct {
	Registry *registry.Registry
}

// NewStepExecutor constructs a StepExecutor bound to reg.
func NewStepExecutor(reg *registry.Registry) *StepExecutor {
	return &StepExecutor{Registry: reg}
}

// Execute runs a single step. It never returns a Go error for an action
// failure or crash — those are expressed as a StepResult with Error set,
// per spec.md §4.3; a non-nil error return is reserved for an action not
// found, which is also reported via the failure StepResult, so callers can
// treat the returned error as purely informational and always use the
// StepResult to decide success/failure.
func (se *StepExecutor) Execute(ctx context.Context, step pipeline.Step, pipelineData, evtContext map[string]any) (StepResult, error) {
	start := time.Now()

	base := StepResult{
		StepID:      step.ID,
		StepName:    step.Name,
		StepType:    step.Type,
		Integration: step.IntegrationName,
		Action:      step.ActionName,
	}

	def, err := se.Registry.GetAction(step.IntegrationName, step.ActionName)
	if err != nil {
		msg := fmt.Sprintf("Action not found: %s.%s", step.IntegrationName, step.ActionName)
		return se.failureResult(base, nil, msg, start), fmt.Errorf("%s", msg)
	}

	input := assembleInput(step, pipelineData, evtContext)

	output, actionErr := se.invoke(ctx, def, input)
	if actionErr != nil {
		return se.failureResult(base, input, actionErr.Error(), start), nil
	}

	base.Output = output
	base.Status = "success"
	base.ExecutedAt = time.Now().UTC()
	base.DurationMS = time.Since(start).Milliseconds()
	return base, nil
}

// assembleInput merges a step's static input map with pipeline_data and
// context, in the deterministic order documented by spec.md §4.3:
//  1. step.InputMap
//  2. {pipeline_data, context} under those exact keys
//  3. pipeline_data's own top-level keys, if it is a non-empty mapping
//
// later keys win, so pipeline_data's promoted top-level fields take
// precedence over anything authored in step.InputMap under the same name.
func assembleInput(step pipeline.Step, pipelineData, evtContext map[string]any) map[string]any {
	input := make(map[string]any, len(step.InputMap)+len(pipelineData)+2)
	maps.Copy(input, step.InputMap)

	input["pipeline_data"] = pipelineData
	input["context"] = evtContext

	if len(pipelineData) > 0 {
		maps.Copy(input, pipelineData)
	}

	return input
}

// invoke calls the action's executor, converting a panic into an error so
// that a crashing action cannot take the worker down with it (spec.md §4.3
// step 4 and testable property 7: crash containment).
func (se *StepExecutor) invoke(ctx context.Context, def registry.ActionDefinition, input map[string]any) (_ map[string]any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("Action executor crashed: %v", r)
		}
	}()

	output, actionErr := def.Executor(ctx, input)
	if actionErr == nil && output == nil {
		// Go's static Executor signature already rules out returning
		// something other than (map, nil) or (nil, error); this is the
		// remaining analogue of spec.md's "anything else" case.
		return nil, registry.ErrUnexpectedReturn
	}
	return output, actionErr
}

func (se *StepExecutor) failureResult(base StepResult, input map[string]any, errMsg string, start time.Time) StepResult {
	base.Error = errMsg
	base.FailedAt = time.Now().UTC()
	base.DurationMS = time.Since(start).Milliseconds()
	if input != nil {
		base.InputData = redactSensitiveKeys(input)
	}
	return base
}
