package dag

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func simpleChain() Graph {
	return Graph{
		Nodes: []Node{
			{ID: "a", Kind: "dataset", Params: map[string]any{"seed": 1}},
			{ID: "b", Kind: "filter", Params: map[string]any{"kernelSize": 3}},
			{ID: "c", Kind: "structural-descriptor"},
		},
		Edges: []Edge{
			{Source: "a", Target: "b"},
			{Source: "b", Target: "c"},
		},
	}
}

func TestEngineKahnAndDFSAgreeAtSinks(t *testing.T) {
	engine := NewEngine(NewBuiltinRegistry())
	graph := simpleChain()

	kahnResult, err := engine.Execute(context.Background(), graph, StrategyKahn, nil)
	require.NoError(t, err)

	dfsResult, err := engine.Execute(context.Background(), graph, StrategyDFS, nil)
	require.NoError(t, err)

	assert.Equal(t, kahnResult.Outputs["c"], dfsResult.Outputs["c"])
	assert.ElementsMatch(t, kahnResult.Sinks, dfsResult.Sinks)
}

func TestEngineRejectsCycle(t *testing.T) {
	engine := NewEngine(NewBuiltinRegistry())
	graph := Graph{
		Nodes: []Node{
			{ID: "a", Kind: "identity"},
			{ID: "b", Kind: "identity"},
		},
		Edges: []Edge{
			{Source: "a", Target: "b"},
			{Source: "b", Target: "a"},
		},
	}

	_, err := engine.Execute(context.Background(), graph, StrategyKahn, nil)
	require.Error(t, err)
	pipelineErr, ok := err.(*PipelineError)
	require.True(t, ok)
	assert.Contains(t, pipelineErr.Reason, "cycle")
}

func TestEngineRejectsArityViolation(t *testing.T) {
	engine := NewEngine(NewBuiltinRegistry())
	graph := Graph{
		Nodes: []Node{
			{ID: "a", Kind: "dataset"},
			{ID: "b", Kind: "concat"},
		},
		Edges: []Edge{
			{Source: "a", Target: "b"},
		},
	}

	_, err := engine.Execute(context.Background(), graph, StrategyKahn, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "arity bounds")
}

func TestEngineRejectsDuplicateIDs(t *testing.T) {
	engine := NewEngine(NewBuiltinRegistry())
	graph := Graph{
		Nodes: []Node{
			{ID: "a", Kind: "identity"},
			{ID: "a", Kind: "identity"},
		},
	}
	_, err := engine.Execute(context.Background(), graph, StrategyKahn, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate node id")
}

func TestEngineRejectsDanglingEdge(t *testing.T) {
	engine := NewEngine(NewBuiltinRegistry())
	graph := Graph{
		Nodes: []Node{{ID: "a", Kind: "identity"}},
		Edges: []Edge{{Source: "a", Target: "ghost"}},
	}
	_, err := engine.Execute(context.Background(), graph, StrategyKahn, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not present in the graph")
}

func TestEngineRejectsEmptyGraph(t *testing.T) {
	engine := NewEngine(NewBuiltinRegistry())
	_, err := engine.Execute(context.Background(), Graph{}, StrategyKahn, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no nodes")
}

func TestEngineRejectsNoSinks(t *testing.T) {
	// A single node with a self-loop is unreachable (cycle check fires
	// first); construct a two-node graph where every node still has an
	// outgoing edge by pointing both at each other is already a cycle, so
	// exercise the no-sinks path directly via a graph that is acyclic but
	// whose only node feeds something outside the validated set is not
	// expressible — instead assert the dedicated error constructor's
	// message, since every genuinely sink-less *graph* is necessarily
	// cyclic and caught earlier per the validation order in spec §4.3.
	err := errNoSinks()
	assert.Contains(t, err.Error(), "no sink")
}

func TestEngineObserverReceivesOneEventPerNode(t *testing.T) {
	engine := NewEngine(NewBuiltinRegistry())
	graph := simpleChain()

	var events []NodeEvent
	observer := ObserverFunc(func(e NodeEvent) { events = append(events, e) })

	_, err := engine.Execute(context.Background(), graph, StrategyKahn, observer)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, "a", events[0].NodeID)
	assert.Equal(t, "b", events[1].NodeID)
	assert.Equal(t, "c", events[2].NodeID)
	assert.Equal(t, []string{"b"}, events[2].Predecessors)
}

func TestFilterPreservesShape(t *testing.T) {
	engine := NewEngine(NewBuiltinRegistry())
	graph := Graph{
		Nodes: []Node{
			{ID: "a", Kind: "dataset", Params: map[string]any{"shape": []any{3, 8, 8}, "seed": 2}},
			{ID: "b", Kind: "filter", Params: map[string]any{"kernelSize": 3}},
		},
		Edges: []Edge{{Source: "a", Target: "b"}},
	}

	result, err := engine.Execute(context.Background(), graph, StrategyKahn, nil)
	require.NoError(t, err)

	out, ok := result.Outputs["b"].(*Tensor)
	require.True(t, ok)
	assert.Equal(t, [3]int{3, 8, 8}, out.Shape)
	for _, v := range out.Data {
		assert.GreaterOrEqual(t, v, 0.0)
	}
}

func TestTextNodePrefixesLog(t *testing.T) {
	engine := NewEngine(NewBuiltinRegistry())
	graph := Graph{
		Nodes: []Node{
			{ID: "a", Kind: "dataset", Params: map[string]any{"shape": []any{1, 2, 2}}},
			{ID: "t", Kind: "text"},
		},
		Edges: []Edge{{Source: "a", Target: "t"}},
	}
	result, err := engine.Execute(context.Background(), graph, StrategyKahn, nil)
	require.NoError(t, err)
	text, ok := result.Outputs["t"].(string)
	require.True(t, ok)
	assert.Contains(t, text, "LOG:")
}

func TestConcatRejectsMismatchedDimensions(t *testing.T) {
	engine := NewEngine(NewBuiltinRegistry())
	graph := Graph{
		Nodes: []Node{
			{ID: "a", Kind: "dataset", Params: map[string]any{"shape": []any{1, 4, 4}}},
			{ID: "b", Kind: "dataset", Params: map[string]any{"shape": []any{1, 8, 8}}},
			{ID: "c", Kind: "concat"},
		},
		Edges: []Edge{{Source: "a", Target: "c"}, {Source: "b", Target: "c"}},
	}
	_, err := engine.Execute(context.Background(), graph, StrategyKahn, nil)
	require.Error(t, err)
}
