package registry

import (
	"context"
	"errors"
	"sync"
	"testing"
)

func echoAction(ctx context.Context, input map[string]any) (map[string]any, error) {
	return input, nil
}

func TestRegistry_RegisterAndGetAction(t *testing.T) {
	r := New()
	r.Register(Integration{
		Name: "pocsync.builtin",
		Actions: map[string]ActionDefinition{
			"pocsync.log.write": {Name: "pocsync.log.write", Executor: echoAction},
		},
	})

	def, err := r.GetAction("pocsync.builtin", "pocsync.log.write")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if def.Name != "pocsync.log.write" {
		t.Fatalf("expected def.Name to be pocsync.log.write, got %q", def.Name)
	}
}

func TestRegistry_GetActionNotFound(t *testing.T) {
	r := New()
	_, err := r.GetAction("missing", "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRegistry_RegisterIsIdempotentReplace(t *testing.T) {
	r := New()
	r.Register(Integration{Name: "i", Actions: map[string]ActionDefinition{
		"a": {Name: "a", Description: "first"},
	}})
	r.Register(Integration{Name: "i", Actions: map[string]ActionDefinition{
		"a": {Name: "a", Description: "second"},
	}})

	def, err := r.GetAction("i", "a")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if def.Description != "second" {
		t.Fatalf("expected replace to win, got description %q", def.Description)
	}
}

func TestRegistry_ListIntegrationsAndActions(t *testing.T) {
	r := New()
	r.Register(Integration{
		Name:        "pocsync.builtin",
		Description: "built-in actions",
		Actions: map[string]ActionDefinition{
			"a": {Name: "a"},
			"b": {Name: "b"},
		},
	})

	summaries := r.ListIntegrations()
	if len(summaries) != 1 || summaries[0].ActionCount != 2 {
		t.Fatalf("unexpected summaries: %#v", summaries)
	}

	actions := r.ListActions("pocsync.builtin")
	if len(actions) != 2 {
		t.Fatalf("expected 2 actions, got %d", len(actions))
	}

	if got := r.ListActions("no-such-integration"); len(got) != 0 {
		t.Fatalf("expected empty slice for absent integration, got %#v", got)
	}
}

func TestRegistry_SnapshotIsDefensiveCopy(t *testing.T) {
	r := New()
	r.Register(Integration{Name: "i", Actions: map[string]ActionDefinition{"a": {Name: "a"}}})

	actions := r.ListActions("i")
	actions[0] = "mutated"

	fresh := r.ListActions("i")
	if fresh[0] == "mutated" {
		t.Fatal("mutating a snapshot slice must not affect the registry")
	}
}

// TestRegistry_ConsistencyAfterRegister is property 8 from the spec: once
// Register returns, every action of that integration is immediately
// visible via GetAction.
func TestRegistry_ConsistencyAfterRegister(t *testing.T) {
	r := New()
	r.Register(Integration{
		Name: "i",
		Actions: map[string]ActionDefinition{
			"a": {Name: "a"},
			"b": {Name: "b"},
			"c": {Name: "c"},
		},
	})

	for _, name := range []string{"a", "b", "c"} {
		if _, err := r.GetAction("i", name); err != nil {
			t.Fatalf("expected action %q to be visible after register, got %v", name, err)
		}
	}
}

func TestRegistry_ConcurrentReadsDoNotBlockEachOther(t *testing.T) {
	r := New()
	r.Register(Integration{Name: "i", Actions: map[string]ActionDefinition{"a": {Name: "a"}}})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := r.GetAction("i", "a"); err != nil {
				t.Errorf("unexpected error from concurrent read: %v", err)
			}
		}()
	}
	wg.Wait()
}

func TestValidateInput_RequiredFieldsPresent(t *testing.T) {
	def := ActionDefinition{InputSchema: map[string]any{"required": []string{"url"}}}
	if err := ValidateInput(def, map[string]any{"url": "http://x"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateInput_MissingRequiredField(t *testing.T) {
	def := ActionDefinition{InputSchema: map[string]any{"required": []string{"url"}}}
	err := ValidateInput(def, map[string]any{})
	if err == nil {
		t.Fatal("expected error for missing required field")
	}
}

func TestValidateInput_NoRequiredIsNoOp(t *testing.T) {
	def := ActionDefinition{}
	if err := ValidateInput(def, map[string]any{}); err != nil {
		t.Fatalf("expected no-op when input_schema has no required field, got %v", err)
	}
}
