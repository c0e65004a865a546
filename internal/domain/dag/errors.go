package dag

import "fmt"

// PipelineError is returned for every validation or execution failure the
// engine produces. Detail carries structured context (a cycle's edges, the
// offending node id, arity bounds) for handlers that need to report it back
// over the wire without parsing the message string.
type PipelineError struct {
	Reason string
	Detail map[string]any
}

func (e *PipelineError) Error() string {
	return e.Reason
}

func newPipelineError(reason string, detail map[string]any) *PipelineError {
	return &PipelineError{Reason: reason, Detail: detail}
}

func errDuplicateNodeID(id string) error {
	return newPipelineError(fmt.Sprintf("duplicate node id %q", id), map[string]any{"nodeId": id})
}

func errUnknownKind(id, kind string) error {
	return newPipelineError(fmt.Sprintf("node %q references unknown kind %q", id, kind), map[string]any{
		"nodeId": id, "kind": kind,
	})
}

func errDanglingEdge(source, target string) error {
	return newPipelineError(fmt.Sprintf("edge %s->%s references a node not present in the graph", source, target), map[string]any{
		"source": source, "target": target,
	})
}

func errCycle(cycle []Edge) error {
	edges := make([]map[string]string, 0, len(cycle))
	for _, e := range cycle {
		edges = append(edges, map[string]string{"source": e.Source, "target": e.Target})
	}
	return newPipelineError("graph contains a cycle", map[string]any{"cycle": edges})
}

func errArity(id, kind string, min, max, got int) error {
	bound := fmt.Sprintf("%d", max)
	if max == Unbounded {
		bound = "∞"
	}
	return newPipelineError(
		fmt.Sprintf("node %q (kind %q) has %d inputs, outside arity bounds [%d,%s]", id, kind, got, min, bound),
		map[string]any{"nodeId": id, "kind": kind, "min": min, "max": max, "got": got},
	)
}

func errEmptyGraph() error {
	return newPipelineError("graph has no nodes", nil)
}

func errNoSinks() error {
	return newPipelineError("graph has no sink nodes", nil)
}

func errUnknownStrategy(strategy Strategy) error {
	return newPipelineError(fmt.Sprintf("unknown strategy %q", strategy), map[string]any{"strategy": string(strategy)})
}
