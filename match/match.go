// Package match implements the structural subset matcher used to decide
// whether an incoming event satisfies a pipeline's pattern.
package match

import "fmt"

// Match reports whether value satisfies pattern using a recursive structural
// subset test:
//
//   - a nil pattern matches anything.
//   - a map pattern requires value to be a map where every pattern key is
//     present and its value recursively matches; extra keys in value are
//     ignored.
//   - a slice pattern requires value to be a slice where every pattern
//     element has at least one matching element in value (order-free).
//   - anything else is compared with Match's equality rule, which treats
//     values as equal after coercing both to a comparable scalar so that
//     JSON-decoded ints/floats/strings line up regardless of how the
//     pattern was authored.
func Match(value, pattern any) bool {
	if pattern == nil {
		return true
	}

	switch p := pattern.(type) {
	case map[string]any:
		return matchMap(value, p)
	case []any:
		return matchSlice(value, p)
	default:
		return matchScalar(value, pattern)
	}
}

func matchMap(value any, pattern map[string]any) bool {
	v, ok := asMap(value)
	if !ok {
		return false
	}
	for k, wantedSub := range pattern {
		gotSub, present := v[k]
		if !present {
			return false
		}
		if !Match(gotSub, wantedSub) {
			return false
		}
	}
	return true
}

func matchSlice(value any, pattern []any) bool {
	v, ok := value.([]any)
	if !ok {
		return false
	}
	for _, wanted := range pattern {
		found := false
		for _, got := range v {
			if Match(got, wanted) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// asMap normalizes any map-shaped value to map[string]any, coercing key
// types to string so callers that build patterns from symbolic or
// non-string keys still line up with JSON-decoded string keys.
func asMap(value any) (map[string]any, bool) {
	switch m := value.(type) {
	case map[string]any:
		return m, true
	case map[any]any:
		out := make(map[string]any, len(m))
		for k, v := range m {
			out[fmt.Sprint(k)] = v
		}
		return out, true
	default:
		return nil, false
	}
}

// matchScalar compares two non-container values for equality, coercing
// numeric types so that float64 (the type encoding/json decodes JSON
// numbers into) compares equal to an int literal written in Go-authored
// patterns, and coercing both sides to string as a last resort so that
// e.g. a symbolic key value compares equal to its string form.
func matchScalar(value, pattern any) bool {
	if value == pattern {
		return true
	}

	vf, vIsNum := asFloat(value)
	pf, pIsNum := asFloat(pattern)
	if vIsNum && pIsNum {
		return vf == pf
	}

	return fmt.Sprint(value) == fmt.Sprint(pattern)
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}
