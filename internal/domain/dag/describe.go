package dag

import (
	"fmt"
	"sort"
)

// DescribeValue encodes an arbitrary node output as the tagged sum from
// spec §9 ({None | Scalar | Tensor | Record | Sequence}), grounded on
// original_source's dag_runner._describe_value. Execution summaries use it
// to describe sink outputs. Node kinds (such as "figure") receive the raw
// predecessor value, and status frames carry no node outputs at all.
func DescribeValue(v any) map[string]any {
	switch val := v.(type) {
	case nil:
		return map[string]any{"type": "none"}

	case int, int32, int64, float32, float64, bool, string:
		return map[string]any{"type": "scalar", "value": val}

	case *Tensor:
		return map[string]any{
			"type":  "tensor",
			"shape": []int{val.Shape[0], val.Shape[1], val.Shape[2]},
			"dtype": val.Dtype,
			"min":   val.Min(),
			"max":   val.Max(),
			"mean":  val.Mean(),
		}

	case map[string]any:
		out := make(map[string]any, len(val))
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			out[k] = DescribeValue(val[k])
		}
		return map[string]any{"type": "record", "value": out}

	case []any:
		out := make([]map[string]any, len(val))
		for i, item := range val {
			out[i] = DescribeValue(item)
		}
		return map[string]any{"type": "sequence", "value": out}

	default:
		return map[string]any{"type": "repr", "value": fmt.Sprintf("%v", val)}
	}
}
