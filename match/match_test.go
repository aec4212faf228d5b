package match

import "testing"

func TestMatch_NilPatternMatchesAnything(t *testing.T) {
	if !Match(map[string]any{"a": 1}, nil) {
		t.Fatal("nil pattern should match any value")
	}
	if !Match("anything", nil) {
		t.Fatal("nil pattern should match any value")
	}
}

func TestMatch_MapSubset(t *testing.T) {
	value := map[string]any{
		"source": "webhook",
		"path":   "/api/webhook/shopee",
		"params": map[string]any{"order_id": "12345", "shop_id": "123"},
	}
	pattern := map[string]any{
		"source": "webhook",
		"params": map[string]any{"order_id": "12345"},
	}
	if !Match(value, pattern) {
		t.Fatal("expected subset pattern to match")
	}
}

func TestMatch_MapMissingKeyFails(t *testing.T) {
	value := map[string]any{"source": "webhook"}
	pattern := map[string]any{"source": "webhook", "path": "/x"}
	if Match(value, pattern) {
		t.Fatal("expected missing key to fail the match")
	}
}

func TestMatch_ExtraKeysIgnored(t *testing.T) {
	value := map[string]any{"a": 1, "b": 2, "c": 3}
	pattern := map[string]any{"a": 1}
	if !Match(value, pattern) {
		t.Fatal("extra keys in value should not affect the match")
	}
}

func TestMatch_ListExistential(t *testing.T) {
	value := []any{1, 2, 3}
	pattern := []any{2}
	if !Match(value, pattern) {
		t.Fatal("expected existential list match")
	}
	if Match(value, []any{4}) {
		t.Fatal("expected no match for absent element")
	}
}

func TestMatch_NumericCoercion(t *testing.T) {
	// Simulates an event decoded from JSON (float64) matched against a
	// pattern authored as a Go int literal.
	value := map[string]any{"shop_id": float64(123)}
	pattern := map[string]any{"shop_id": 123}
	if !Match(value, pattern) {
		t.Fatal("expected int/float64 coercion to match")
	}
}

func TestMatch_KeyTypeCoercion(t *testing.T) {
	value := map[any]any{"app_id": "shopee"}
	pattern := map[string]any{"app_id": "shopee"}
	if !Match(value, pattern) {
		t.Fatal("expected map[any]any keys to coerce to string")
	}
}

func TestMatch_EmptyPatternMatchesAnyEvent(t *testing.T) {
	if !Match(map[string]any{"x": 1}, map[string]any{}) {
		t.Fatal("empty map pattern should match any event")
	}
}

func TestMatch_Reflexivity(t *testing.T) {
	cases := []any{
		nil,
		42,
		"hello",
		true,
		[]any{1, "a", map[string]any{"x": 1}},
		map[string]any{"a": []any{1, 2}, "b": map[string]any{"c": 3}},
	}
	for _, c := range cases {
		if c == nil {
			continue // nil pattern is defined to match anything, not tested for self-equality here
		}
		if !Match(c, c) {
			t.Fatalf("expected Match(%#v, %#v) to be true (reflexivity)", c, c)
		}
	}
}

func TestMatch_SubsetLaw(t *testing.T) {
	a := map[string]any{"x": 1, "y": 2, "z": 3}
	b := map[string]any{"x": 1, "y": 2}
	if !Match(a, b) {
		t.Fatal("A superset of B should match pattern B")
	}

	// a value holding B with one of its required keys removed no longer
	// matches pattern B.
	bMissing := map[string]any{"x": 1}
	if Match(bMissing, b) {
		t.Fatal("removing a required key should make the match fail")
	}
}

func TestMatch_NonMapPatternAgainstMapValue(t *testing.T) {
	if Match(map[string]any{"a": 1}, "not-a-map") {
		t.Fatal("scalar pattern should not match a map value via string coercion")
	}
}
