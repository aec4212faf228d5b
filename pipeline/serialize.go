package pipeline

import (
	"encoding/json"
	"time"
)

// jsonStep mirrors Step with exported JSON tags matching the wire schema
// from spec.md §6 ("input_map", "integration_name", ...).
type jsonStep struct {
	ID              string         `json:"id"`
	Name            string         `json:"name"`
	Type            StepType       `json:"type"`
	IntegrationName string         `json:"integration_name"`
	ActionName      string         `json:"action_name"`
	InputMap        map[string]any `json:"input_map"`
	Position        int            `json:"position"`
}

// jsonPipeline mirrors Pipeline with exported JSON tags, encoding
// timestamps as RFC3339 strings (sub-second precision is dropped, which is
// the datetime normalization the spec's round-trip property allows for).
type jsonPipeline struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Pattern     map[string]any `json:"pattern"`
	Steps       []jsonStep     `json:"steps"`
	Status      Status         `json:"status"`
	CreatedAt   string         `json:"created_at"`
	UpdatedAt   string         `json:"updated_at"`
}

// MarshalJSON implements json.Marshaler.
func (p Pipeline) MarshalJSON() ([]byte, error) {
	steps := make([]jsonStep, len(p.Steps))
	for i, s := range p.Steps {
		steps[i] = jsonStep{
			ID:              s.ID,
			Name:            s.Name,
			Type:            s.Type,
			IntegrationName: s.IntegrationName,
			ActionName:      s.ActionName,
			InputMap:        s.InputMap,
			Position:        s.Position,
		}
	}
	return json.Marshal(jsonPipeline{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Pattern:     p.Pattern,
		Steps:       steps,
		Status:      p.Status,
		CreatedAt:   formatTime(p.CreatedAt),
		UpdatedAt:   formatTime(p.UpdatedAt),
	})
}

// UnmarshalJSON implements json.Unmarshaler.
func (p *Pipeline) UnmarshalJSON(data []byte) error {
	var jp jsonPipeline
	if err := json.Unmarshal(data, &jp); err != nil {
		return err
	}

	steps := make([]Step, len(jp.Steps))
	for i, js := range jp.Steps {
		steps[i] = Step{
			ID:              js.ID,
			Name:            js.Name,
			Type:            js.Type,
			IntegrationName: js.IntegrationName,
			ActionName:      js.ActionName,
			InputMap:        js.InputMap,
			Position:        js.Position,
		}
	}

	createdAt, err := parseTime(jp.CreatedAt)
	if err != nil {
		return err
	}
	updatedAt, err := parseTime(jp.UpdatedAt)
	if err != nil {
		return err
	}

	*p = Pipeline{
		ID:          jp.ID,
		Name:        jp.Name,
		Description: jp.Description,
		Pattern:     jp.Pattern,
		Steps:       steps,
		Status:      jp.Status,
		CreatedAt:   createdAt,
		UpdatedAt:   updatedAt,
	}
	return nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, s)
}
