package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeFlatDocument(t *testing.T) {
	raw := map[string]any{
		"nodes": []any{
			map[string]any{"id": "a", "kind": "dataset", "params": map[string]any{"seed": 1.0}},
			map[string]any{"id": float64(2), "type": "identity"},
		},
		"edges": []any{
			map[string]any{"source": "a", "target": float64(2)},
		},
	}

	g, err := Normalize(raw)
	require.NoError(t, err)
	require.Len(t, g.Nodes, 2)
	assert.Equal(t, "a", g.Nodes[0].ID)
	assert.Equal(t, "dataset", g.Nodes[0].Kind)
	assert.Equal(t, "2", g.Nodes[1].ID)
	assert.Equal(t, "identity", g.Nodes[1].Kind)
	require.Len(t, g.Edges, 1)
	assert.Equal(t, "a", g.Edges[0].Source)
	assert.Equal(t, "2", g.Edges[0].Target)
}

func TestNormalizeWrappedUnderPipelineField(t *testing.T) {
	raw := map[string]any{
		"pipeline": map[string]any{
			"nodes": []any{
				map[string]any{"id": "n1", "data": map[string]any{"kind": "identity"}},
			},
			"edges": []any{},
		},
	}
	g, err := Normalize(raw)
	require.NoError(t, err)
	require.Len(t, g.Nodes, 1)
	assert.Equal(t, "identity", g.Nodes[0].Kind)
}

func TestNormalizeKindPrecedence(t *testing.T) {
	raw := map[string]any{
		"nodes": []any{
			map[string]any{
				"id":   "n1",
				"kind": "top-level-kind",
				"data": map[string]any{"kind": "data-kind"},
			},
		},
	}
	g, err := Normalize(raw)
	require.NoError(t, err)
	assert.Equal(t, "data-kind", g.Nodes[0].Kind)
}

func TestNormalizeParamsPrecedence(t *testing.T) {
	raw := map[string]any{
		"nodes": []any{
			map[string]any{
				"id":     "n1",
				"kind":   "dataset",
				"params": map[string]any{"seed": 1.0},
				"data":   map[string]any{"params": map[string]any{"seed": 2.0}},
			},
		},
	}
	g, err := Normalize(raw)
	require.NoError(t, err)
	assert.Equal(t, 2.0, g.Nodes[0].Params["seed"])
}

func TestNormalizeRejectsEmptyAndNoneIDs(t *testing.T) {
	_, err := Normalize(map[string]any{
		"nodes": []any{map[string]any{"id": "", "kind": "identity"}},
	})
	require.Error(t, err)

	_, err = Normalize(map[string]any{
		"nodes": []any{map[string]any{"id": "None", "kind": "identity"}},
	})
	require.Error(t, err)
}

func TestNormalizeRejectsDuplicateIDs(t *testing.T) {
	_, err := Normalize(map[string]any{
		"nodes": []any{
			map[string]any{"id": "a", "kind": "identity"},
			map[string]any{"id": "a", "kind": "identity"},
		},
	})
	require.Error(t, err)
}

func TestNormalizeRejectsNonDictParams(t *testing.T) {
	_, err := Normalize(map[string]any{
		"nodes": []any{
			map[string]any{"id": "a", "kind": "identity", "params": "not-a-dict"},
		},
	})
	require.Error(t, err)
}

func TestNormalizeRejectsEdgeMissingEndpoint(t *testing.T) {
	_, err := Normalize(map[string]any{
		"nodes": []any{map[string]any{"id": "a", "kind": "identity"}},
		"edges": []any{map[string]any{"source": "a"}},
	})
	require.Error(t, err)
}
