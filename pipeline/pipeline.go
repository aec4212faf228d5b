// Package pipeline defines the immutable Pipeline/Step value types, their
// validation rules, and their JSON encoding. It is grounded on the teacher's
// module.Pipeline/module.PipelineStep (module/pipeline_executor.go,
// module/pipeline_step.go), generalized from a slice of polymorphic
// PipelineStep interface values to the spec's plain data Step records that
// are resolved against an action registry at execution time rather than
// bound to a Go closure at construction time.
package pipeline

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"
)

// StepType enumerates the three kinds of step a pipeline may contain.
type StepType string

const (
	StepTypeTrigger StepType = "trigger"
	StepTypeAction  StepType = "action"
	StepTypeOutput  StepType = "output"
)

// Status enumerates the lifecycle states of a Pipeline definition.
type Status string

const (
	StatusDraft    Status = "draft"
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

// NewID generates a 16-character identifier for a new Step or Pipeline.
func NewID() string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		// crypto/rand.Read on any supported platform does not fail in
		// practice; if it ever does, NewID panics rather than return a
		// predictable ID.
		panic(fmt.Sprintf("pipeline: failed to generate id: %v", err))
	}
	return hex.EncodeToString(b)
}

// Step is a single position within a pipeline, binding a static input to an
// action reference. Steps are value-typed: call WithInput/WithPosition to
// obtain a modified copy rather than mutating in place.
type Step struct {
	ID              string
	Name            string
	Type            StepType
	IntegrationName string
	ActionName      string
	InputMap        map[string]any
	Position        int
}

// NewStep constructs a Step with a freshly generated ID.
func NewStep(name string, typ StepType, integrationName, actionName string, inputMap map[string]any, position int) Step {
	if inputMap == nil {
		inputMap = map[string]any{}
	}
	return Step{
		ID:              NewID(),
		Name:            name,
		Type:            typ,
		IntegrationName: integrationName,
		ActionName:      actionName,
		InputMap:        inputMap,
		Position:        position,
	}
}

// WithPosition returns a copy of the step with Position set to pos.
func (s Step) WithPosition(pos int) Step {
	s.Position = pos
	return s
}

// WithInput returns a copy of the step with InputMap set to input.
func (s Step) WithInput(input map[string]any) Step {
	s.InputMap = input
	return s
}

// Pipeline is a named, ordered list of steps with a pattern that decides
// whether an event triggers it.
type Pipeline struct {
	ID          string
	Name        string
	Description string
	Pattern     map[string]any
	Steps       []Step
	Status      Status
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// New constructs a Pipeline with a freshly generated ID and normalized step
// positions.
func New(name string, pattern map[string]any, steps []Step) Pipeline {
	now := time.Now().UTC()
	p := Pipeline{
		ID:        NewID(),
		Name:      name,
		Pattern:   pattern,
		Steps:     steps,
		Status:    StatusDraft,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return p.Normalize()
}

// Normalize returns a copy of the pipeline whose steps have been re-sorted
// by Position (stable) and whose Position fields have been reassigned to
// match that order, satisfying the invariant that steps[i].Position == i.
func (p Pipeline) Normalize() Pipeline {
	sorted := make([]Step, len(p.Steps))
	copy(sorted, p.Steps)
	stableSortByPosition(sorted)
	for i := range sorted {
		sorted[i] = sorted[i].WithPosition(i)
	}
	p.Steps = sorted
	return p
}

func stableSortByPosition(steps []Step) {
	// Insertion sort: stable, and pipelines are small (tens of steps), so
	// this is simpler and just as fast as pulling in sort.SliceStable.
	for i := 1; i < len(steps); i++ {
		j := i
		for j > 0 && steps[j-1].Position > steps[j].Position {
			steps[j-1], steps[j] = steps[j], steps[j-1]
			j--
		}
	}
}

// ErrValidation is returned by Validate (and wrapped with details) when a
// Pipeline fails structural validation.
var ErrValidation = errors.New("pipeline: validation failed")

// Validate checks the structural invariants every Pipeline must satisfy
// before the executor will run it: a non-empty name, at least one step, and
// — for every action/output step — a non-empty integration and action name.
func (p Pipeline) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("%w: pipeline name is empty", ErrValidation)
	}
	if len(p.Steps) == 0 {
		return fmt.Errorf("%w: pipeline %q has no steps", ErrValidation, p.Name)
	}
	for i, step := range p.Steps {
		if step.Position != i {
			return fmt.Errorf("%w: pipeline %q step %d has position %d, expected %d (call Normalize)",
				ErrValidation, p.Name, i, step.Position, i)
		}
		if step.Type == StepTypeAction || step.Type == StepTypeOutput {
			if step.IntegrationName == "" || step.ActionName == "" {
				return fmt.Errorf("%w: pipeline %q step %q is missing integration/action name",
					ErrValidation, p.Name, step.Name)
			}
		}
	}
	return nil
}

// Valid reports whether the pipeline passes Validate, matching the
// predicate-style query the executor consults before stepping.
func (p Pipeline) Valid() bool {
	return p.Validate() == nil
}
