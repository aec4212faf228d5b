package store

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/bluzky/pocsync/pipeline"
)

// yamlStep and yamlPipeline are the on-disk shapes read by YAMLDirectory, a
// plain YAML rendering of pipeline.Step/pipeline.Pipeline's exported
// fields so that pipelines can be authored by hand without going through
// the JSON wire codec.
type yamlStep struct {
	ID              string         `yaml:"id"`
	Name            string         `yaml:"name"`
	Type            string         `yaml:"type"`
	IntegrationName string         `yaml:"integration"`
	ActionName      string         `yaml:"action"`
	InputMap        map[string]any `yaml:"input"`
	Position        int            `yaml:"position"`
}

type yamlPipeline struct {
	ID          string         `yaml:"id"`
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Pattern     map[string]any `yaml:"pattern"`
	Status      string         `yaml:"status"`
	Steps       []yamlStep     `yaml:"steps"`
}

type yamlFile struct {
	Pipelines []yamlPipeline `yaml:"pipelines"`
}

// YAMLDirectory is a Directory backed by a single YAML file on disk,
// grounded on the teacher's config.FileSource (config/source_file.go),
// which likewise reads and parses a whole config file's worth of state
// from one path on every Load. Unlike FileSource it has no Hash method:
// spec.md's directory contract is read-only listing, not change detection.
type YAMLDirectory struct {
	path string
}

// NewYAMLDirectory constructs a YAMLDirectory reading from path.
func NewYAMLDirectory(path string) *YAMLDirectory {
	return &YAMLDirectory{path: path}
}

// ListPipelines re-reads and re-parses the YAML file on every call, so that
// edits to the file take effect without restarting the process.
func (d *YAMLDirectory) ListPipelines(ctx context.Context) ([]pipeline.Pipeline, error) {
	data, err := os.ReadFile(d.path)
	if err != nil {
		return nil, fmt.Errorf("yaml directory: read %s: %w", d.path, err)
	}

	var file yamlFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("yaml directory: parse %s: %w", d.path, err)
	}

	out := make([]pipeline.Pipeline, 0, len(file.Pipelines))
	for _, yp := range file.Pipelines {
		out = append(out, yp.toPipeline())
	}
	return out, nil
}

func (ys yamlStep) toStep() pipeline.Step {
	id := ys.ID
	if id == "" {
		id = pipeline.NewID()
	}
	return pipeline.Step{
		ID:              id,
		Name:            ys.Name,
		Type:            pipeline.StepType(ys.Type),
		IntegrationName: ys.IntegrationName,
		ActionName:      ys.ActionName,
		InputMap:        ys.InputMap,
		Position:        ys.Position,
	}
}

func (yp yamlPipeline) toPipeline() pipeline.Pipeline {
	id := yp.ID
	if id == "" {
		id = pipeline.NewID()
	}
	status := pipeline.Status(yp.Status)
	if status == "" {
		status = pipeline.StatusActive
	}

	steps := make([]pipeline.Step, 0, len(yp.Steps))
	for _, ys := range yp.Steps {
		steps = append(steps, ys.toStep())
	}

	p := pipeline.Pipeline{
		ID:          id,
		Name:        yp.Name,
		Description: yp.Description,
		Pattern:     yp.Pattern,
		Steps:       steps,
		Status:      status,
	}
	return p.Normalize()
}
