package dag

import "fmt"

// paramInt reads an integer-valued parameter, accepting the numeric types
// JSON decoding and direct Go construction both produce.
func paramInt(params map[string]any, key string, def int) int {
	v, ok := params[key]
	if !ok {
		return def
	}
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	case float32:
		return int(n)
	default:
		return def
	}
}

func paramFloat(params map[string]any, key string, def float64) float64 {
	v, ok := params[key]
	if !ok {
		return def
	}
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	default:
		return def
	}
}

func paramString(params map[string]any, key, def string) string {
	v, ok := params[key]
	if !ok {
		return def
	}
	s, ok := v.(string)
	if !ok {
		return def
	}
	return s
}

// paramShape reads a 3-element (C,Y,X) shape parameter, falling back to
// def when absent or malformed.
func paramShape(params map[string]any, key string, def [3]int) [3]int {
	v, ok := params[key]
	if !ok {
		return def
	}
	items, ok := v.([]any)
	if !ok || len(items) != 3 {
		return def
	}
	var shape [3]int
	for i, item := range items {
		switch n := item.(type) {
		case int:
			shape[i] = n
		case int64:
			shape[i] = int(n)
		case float64:
			shape[i] = int(n)
		default:
			return def
		}
	}
	return shape
}

// asTensor requires input to be a *Tensor, returning a PipelineError
// otherwise; built-in kinds use this to reject type mismatches with a
// message describing what arrived instead.
func asTensor(input any) (*Tensor, error) {
	t, ok := input.(*Tensor)
	if !ok {
		return nil, newPipelineError(fmt.Sprintf("expected a tensor input, got %T", input), nil)
	}
	return t, nil
}

// asTensorList requires input to be a []any of *Tensor values.
func asTensorList(input any) ([]*Tensor, error) {
	items, ok := input.([]any)
	if !ok {
		return nil, newPipelineError(fmt.Sprintf("expected a list of tensors, got %T", input), nil)
	}
	tensors := make([]*Tensor, len(items))
	for i, item := range items {
		t, ok := item.(*Tensor)
		if !ok {
			return nil, newPipelineError(fmt.Sprintf("expected a tensor at index %d, got %T", i, item), nil)
		}
		tensors[i] = t
	}
	return tensors, nil
}
