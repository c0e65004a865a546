// Package graph turns free-form editor JSON into the canonical
// {nodes, edges} graph the DAG engine consumes (spec §4.2).
package graph

import (
	"fmt"

	"github.com/ngoclaw/alger/internal/domain/dag"
)

// NormalizationError reports a single malformed raw node or edge.
type NormalizationError struct {
	Reason string
}

func (e *NormalizationError) Error() string { return e.Reason }

func fail(format string, args ...any) error {
	return &NormalizationError{Reason: fmt.Sprintf(format, args...)}
}

// Normalize accepts a decoded editor document — either flat
// ({nodes,edges,...}) or wrapped under a top-level "pipeline" field — and
// returns the canonical graph.
func Normalize(raw map[string]any) (dag.Graph, error) {
	root := raw
	if wrapped, ok := raw["pipeline"].(map[string]any); ok {
		root = wrapped
	}

	rawNodes, _ := root["nodes"].([]any)
	rawEdges, _ := root["edges"].([]any)

	nodes := make([]dag.Node, 0, len(rawNodes))
	seen := make(map[string]bool, len(rawNodes))

	for i, rn := range rawNodes {
		entry, ok := rn.(map[string]any)
		if !ok {
			return dag.Graph{}, fail("node at index %d is not an object", i)
		}

		id, err := stringifyID(entry["id"])
		if err != nil {
			return dag.Graph{}, fail("node at index %d: %v", i, err)
		}
		if seen[id] {
			return dag.Graph{}, fail("duplicate node id %q", id)
		}
		seen[id] = true

		kind, ok := resolveKind(entry)
		if !ok {
			return dag.Graph{}, fail("node %q has no kind", id)
		}

		params, err := resolveParams(entry)
		if err != nil {
			return dag.Graph{}, fail("node %q: %v", id, err)
		}

		nodes = append(nodes, dag.Node{ID: id, Kind: kind, Params: params})
	}

	edges := make([]dag.Edge, 0, len(rawEdges))
	for i, re := range rawEdges {
		entry, ok := re.(map[string]any)
		if !ok {
			return dag.Graph{}, fail("edge at index %d is not an object", i)
		}
		if entry["source"] == nil {
			return dag.Graph{}, fail("edge at index %d is missing source", i)
		}
		if entry["target"] == nil {
			return dag.Graph{}, fail("edge at index %d is missing target", i)
		}
		source, err := stringifyID(entry["source"])
		if err != nil {
			return dag.Graph{}, fail("edge at index %d: %v", i, err)
		}
		target, err := stringifyID(entry["target"])
		if err != nil {
			return dag.Graph{}, fail("edge at index %d: %v", i, err)
		}
		edges = append(edges, dag.Edge{Source: source, Target: target})
	}

	return dag.Graph{Nodes: nodes, Edges: edges}, nil
}

// stringifyID coerces an id-like value to its string form, rejecting
// empty strings and the literal "None" (spec §4.2).
func stringifyID(v any) (string, error) {
	if v == nil {
		return "", fmt.Errorf("missing id")
	}
	var s string
	switch val := v.(type) {
	case string:
		s = val
	case float64:
		s = formatNumericID(val)
	case int:
		s = fmt.Sprintf("%d", val)
	case int64:
		s = fmt.Sprintf("%d", val)
	default:
		s = fmt.Sprintf("%v", val)
	}
	if s == "" {
		return "", fmt.Errorf("empty id")
	}
	if s == "None" {
		return "", fmt.Errorf("id must not be the literal \"None\"")
	}
	return s, nil
}

func formatNumericID(f float64) string {
	if f == float64(int64(f)) {
		return fmt.Sprintf("%d", int64(f))
	}
	return fmt.Sprintf("%v", f)
}

// resolveKind applies spec §4.2's precedence: data.kind, data.type, kind,
// type (first one present wins).
func resolveKind(entry map[string]any) (string, bool) {
	if data, ok := entry["data"].(map[string]any); ok {
		if k, ok := stringField(data, "kind"); ok {
			return k, true
		}
		if k, ok := stringField(data, "type"); ok {
			return k, true
		}
	}
	if k, ok := stringField(entry, "kind"); ok {
		return k, true
	}
	if k, ok := stringField(entry, "type"); ok {
		return k, true
	}
	return "", false
}

func stringField(m map[string]any, key string) (string, bool) {
	v, ok := m[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}

// resolveParams applies spec §4.2's precedence: data.params, else
// top-level params, else {}. A present-but-non-dict params field is a
// validation failure.
func resolveParams(entry map[string]any) (map[string]any, error) {
	if data, ok := entry["data"].(map[string]any); ok {
		if raw, present := data["params"]; present {
			return asParamsMap(raw)
		}
	}
	if raw, present := entry["params"]; present {
		return asParamsMap(raw)
	}
	return map[string]any{}, nil
}

func asParamsMap(raw any) (map[string]any, error) {
	m, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("params must be an object, got %T", raw)
	}
	return m, nil
}
