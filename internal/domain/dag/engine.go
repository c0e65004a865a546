package dag

import (
	"context"
	"time"
)

// Engine validates and executes canonical graphs against a Registry. It is
// stateless between calls: all per-execution bookkeeping (node outputs,
// adjacency) lives on the stack of Execute and is dropped when it returns,
// per spec §3's ownership rule for the engine.
type Engine struct {
	registry *Registry
}

// NewEngine builds an Engine backed by the given registry.
func NewEngine(registry *Registry) *Engine {
	return &Engine{registry: registry}
}

type adjacency struct {
	order        []string
	index        map[string]int
	predecessors map[string][]string
	successors   map[string][]string
}

// Execute validates graph, derives a topological order using strategy, then
// runs each node's callback in that order, invoking observer once per node
// (spec §4.3). It returns the first validation or node error encountered;
// on node failure, nodes after the failing one are not run.
func (e *Engine) Execute(ctx context.Context, graph Graph, strategy Strategy, observer Observer) (*Result, error) {
	adj, nodesByID, err := e.validate(graph)
	if err != nil {
		return nil, err
	}

	var order []string
	switch strategy {
	case StrategyKahn:
		order = kahnOrder(adj)
	case StrategyDFS:
		order = dfsOrder(adj)
	default:
		return nil, errUnknownStrategy(strategy)
	}

	outputs := make(map[string]any, len(order))
	for _, id := range order {
		node := nodesByID[id]
		kind, _ := e.registry.Lookup(node.Kind) // presence already checked in validate

		preds := adj.predecessors[id]
		// Defence-in-depth re-check, mirroring the pre-execution pass.
		if len(preds) < kind.MinInputs || (kind.MaxInputs != Unbounded && len(preds) > kind.MaxInputs) {
			return nil, errArity(id, node.Kind, kind.MinInputs, kind.MaxInputs, len(preds))
		}

		input := gatherInput(preds, outputs)

		start := time.Now()
		output, callErr := kind.Fn(ctx, input, node.Params)
		duration := time.Since(start)

		if observer != nil {
			observer.OnNode(NodeEvent{
				NodeID:       id,
				Node:         node,
				Input:        input,
				Output:       output,
				Duration:     duration,
				Predecessors: preds,
				Err:          callErr,
			})
		}

		if callErr != nil {
			return nil, callErr
		}
		outputs[id] = output
	}

	sources := make([]string, 0)
	sinks := make([]string, 0)
	for _, id := range adj.order {
		if len(adj.predecessors[id]) == 0 {
			sources = append(sources, id)
		}
		if len(adj.successors[id]) == 0 {
			sinks = append(sinks, id)
		}
	}

	return &Result{
		Graph:         graph,
		Order:         order,
		Outputs:       outputs,
		Sources:       sources,
		Sinks:         sinks,
		StrategyLabel: strategy.Label(),
	}, nil
}

// gatherInput implements spec §4.3's 0/1/N input-arity rule.
func gatherInput(preds []string, outputs map[string]any) any {
	switch len(preds) {
	case 0:
		return nil
	case 1:
		return outputs[preds[0]]
	default:
		values := make([]any, len(preds))
		for i, p := range preds {
			values[i] = outputs[p]
		}
		return values
	}
}

// validate runs the fixed-order checks from spec §4.3 and, on success,
// returns the graph's adjacency along with a lookup of node by id.
func (e *Engine) validate(graph Graph) (adjacency, map[string]Node, error) {
	index := make(map[string]int, len(graph.Nodes))
	nodesByID := make(map[string]Node, len(graph.Nodes))
	order := make([]string, 0, len(graph.Nodes))

	for _, n := range graph.Nodes {
		if _, dup := index[n.ID]; dup {
			return adjacency{}, nil, errDuplicateNodeID(n.ID)
		}
		index[n.ID] = len(order)
		order = append(order, n.ID)
		nodesByID[n.ID] = n
	}

	for _, n := range graph.Nodes {
		if _, ok := e.registry.Lookup(n.Kind); !ok {
			return adjacency{}, nil, errUnknownKind(n.ID, n.Kind)
		}
	}

	for _, edge := range graph.Edges {
		if _, ok := index[edge.Source]; !ok {
			return adjacency{}, nil, errDanglingEdge(edge.Source, edge.Target)
		}
		if _, ok := index[edge.Target]; !ok {
			return adjacency{}, nil, errDanglingEdge(edge.Source, edge.Target)
		}
	}

	predecessors := make(map[string][]string, len(order))
	successors := make(map[string][]string, len(order))
	predSeen := make(map[string]map[string]bool, len(order))
	succSeen := make(map[string]map[string]bool, len(order))
	for _, id := range order {
		predecessors[id] = nil
		successors[id] = nil
		predSeen[id] = map[string]bool{}
		succSeen[id] = map[string]bool{}
	}
	for _, edge := range graph.Edges {
		if !succSeen[edge.Source][edge.Target] {
			succSeen[edge.Source][edge.Target] = true
			successors[edge.Source] = append(successors[edge.Source], edge.Target)
		}
		if !predSeen[edge.Target][edge.Source] {
			predSeen[edge.Target][edge.Source] = true
			predecessors[edge.Target] = append(predecessors[edge.Target], edge.Source)
		}
	}

	adj := adjacency{order: order, index: index, predecessors: predecessors, successors: successors}

	if cycle := detectCycle(order, successors); cycle != nil {
		return adjacency{}, nil, errCycle(cycle)
	}

	for _, id := range order {
		n := nodesByID[id]
		kind, _ := e.registry.Lookup(n.Kind)
		got := len(predecessors[id])
		if got < kind.MinInputs || (kind.MaxInputs != Unbounded && got > kind.MaxInputs) {
			return adjacency{}, nil, errArity(id, n.Kind, kind.MinInputs, kind.MaxInputs, got)
		}
	}

	if len(order) == 0 {
		return adjacency{}, nil, errEmptyGraph()
	}

	hasSink := false
	for _, id := range order {
		if len(successors[id]) == 0 {
			hasSink = true
			break
		}
	}
	if !hasSink {
		return adjacency{}, nil, errNoSinks()
	}

	return adj, nodesByID, nil
}

// detectCycle runs an iterative-by-recursion DFS over nodes in insertion
// order, visiting each node's successors in insertion order, so the
// reported cycle is deterministic for a given graph.
func detectCycle(order []string, successors map[string][]string) []Edge {
	const (
		unvisited = 0
		inStack   = 1
		done      = 2
	)
	state := make(map[string]int, len(order))
	var stack []string
	var cycle []Edge

	var visit func(id string) bool
	visit = func(id string) bool {
		state[id] = inStack
		stack = append(stack, id)
		for _, next := range successors[id] {
			switch state[next] {
			case unvisited:
				if visit(next) {
					return true
				}
			case inStack:
				start := 0
				for i, v := range stack {
					if v == next {
						start = i
						break
					}
				}
				for i := start; i < len(stack)-1; i++ {
					cycle = append(cycle, Edge{Source: stack[i], Target: stack[i+1]})
				}
				cycle = append(cycle, Edge{Source: stack[len(stack)-1], Target: next})
				return true
			}
		}
		state[id] = done
		stack = stack[:len(stack)-1]
		return false
	}

	for _, id := range order {
		if state[id] == unvisited {
			if visit(id) {
				return cycle
			}
		}
	}
	return nil
}

// kahnOrder implements spec §4.3's breadth-first strategy: repeatedly
// remove a node with no remaining predecessors, ties broken by insertion
// order. Assumes the graph is already known to be acyclic.
func kahnOrder(adj adjacency) []string {
	indegree := make(map[string]int, len(adj.order))
	for _, id := range adj.order {
		indegree[id] = len(adj.predecessors[id])
	}

	queue := make([]string, 0, len(adj.order))
	for _, id := range adj.order {
		if indegree[id] == 0 {
			queue = append(queue, id)
		}
	}

	result := make([]string, 0, len(adj.order))
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		result = append(result, id)
		for _, succ := range adj.successors[id] {
			indegree[succ]--
			if indegree[succ] == 0 {
				queue = append(queue, succ)
			}
		}
	}
	return result
}

// dfsOrder implements spec §4.3's depth-first strategy: depth-first
// traversal rooted at sources (insertion order), then any unreached node,
// collecting post-order; the final order is the reverse of that post-order.
func dfsOrder(adj adjacency) []string {
	visited := make(map[string]bool, len(adj.order))
	postorder := make([]string, 0, len(adj.order))

	var visit func(id string)
	visit = func(id string) {
		if visited[id] {
			return
		}
		visited[id] = true
		for _, succ := range adj.successors[id] {
			visit(succ)
		}
		postorder = append(postorder, id)
	}

	var roots []string
	for _, id := range adj.order {
		if len(adj.predecessors[id]) == 0 {
			roots = append(roots, id)
		}
	}
	roots = append(roots, adj.order...)

	for _, id := range roots {
		visit(id)
	}

	order := make([]string, len(postorder))
	for i, id := range postorder {
		order[len(postorder)-1-i] = id
	}
	return order
}
