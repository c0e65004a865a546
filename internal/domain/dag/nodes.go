package dag

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"strings"
)

// builtinKinds returns the required node kinds from spec §4.1.
func builtinKinds() []NodeKind {
	return []NodeKind{
		{Name: "identity", MinInputs: 1, MaxInputs: 1, Fn: identityNode},
		{Name: "dataset", MinInputs: 0, MaxInputs: 0, Fn: datasetNode},
		{Name: "concat", MinInputs: 2, MaxInputs: Unbounded, Fn: concatNode},
		{Name: "segmentation", MinInputs: 1, MaxInputs: 1, Fn: segmentationNode},
		{Name: "filter", MinInputs: 1, MaxInputs: 1, Fn: filterNode},
		{Name: "structural-descriptor", MinInputs: 1, MaxInputs: 1, Fn: structuralDescriptorNode},
		{Name: "simulation", MinInputs: 1, MaxInputs: 1, Fn: simulationNode},
		{Name: "figure", MinInputs: 1, MaxInputs: 1, Fn: figureNode},
		{Name: "text", MinInputs: 1, MaxInputs: Unbounded, Fn: textNode},
	}
}

func identityNode(_ context.Context, input any, _ map[string]any) (any, error) {
	return input, nil
}

func datasetNode(_ context.Context, _ any, params map[string]any) (any, error) {
	shape := paramShape(params, "shape", [3]int{6, 64, 64})
	seed := int64(paramInt(params, "seed", 0))
	if shape[0] <= 0 || shape[1] <= 0 || shape[2] <= 0 {
		return nil, newPipelineError(fmt.Sprintf("dataset: shape %v must be positive in every dimension", shape), nil)
	}
	rng := rand.New(rand.NewSource(seed))
	t := NewTensor(shape[0], shape[1], shape[2], "float32")
	for i := range t.Data {
		t.Data[i] = rng.Float64()
	}
	return t, nil
}

func concatNode(_ context.Context, input any, _ map[string]any) (any, error) {
	tensors, err := asTensorList(input)
	if err != nil {
		return nil, err
	}
	y, x := tensors[0].Height(), tensors[0].Width()
	totalC := 0
	for i, t := range tensors {
		if t.Height() != y || t.Width() != x {
			return nil, newPipelineError(
				fmt.Sprintf("concat: input %d has shape (Y=%d,X=%d), expected (Y=%d,X=%d)", i, t.Height(), t.Width(), y, x),
				nil,
			)
		}
		totalC += t.Channels()
	}
	out := NewTensor(totalC, y, x, tensors[0].Dtype)
	offset := 0
	for _, t := range tensors {
		copy(out.Data[offset*y*x:], t.Data)
		offset += t.Channels()
	}
	return out, nil
}

func segmentationNode(_ context.Context, input any, params map[string]any) (any, error) {
	t, err := asTensor(input)
	if err != nil {
		return nil, err
	}
	threshold := paramFloat(params, "threshold", 0.5)
	out := NewTensor(t.Channels(), t.Height(), t.Width(), "uint8")
	for i, v := range t.Data {
		if v > threshold {
			out.Data[i] = 1
		}
	}
	return out, nil
}

func filterNode(_ context.Context, input any, params map[string]any) (any, error) {
	t, err := asTensor(input)
	if err != nil {
		return nil, err
	}
	k := paramInt(params, "kernelSize", 3)
	if k <= 0 || k%2 == 0 {
		return nil, newPipelineError(fmt.Sprintf("filter: kernelSize %d must be positive and odd", k), nil)
	}
	radius := k / 2
	c, y, x := t.Channels(), t.Height(), t.Width()
	out := NewTensor(c, y, x, t.Dtype)

	clamp := func(v, lo, hi int) int {
		if v < lo {
			return lo
		}
		if v > hi {
			return hi
		}
		return v
	}

	for ch := 0; ch < c; ch++ {
		for row := 0; row < y; row++ {
			for col := 0; col < x; col++ {
				var sum float64
				count := 0
				for dy := -radius; dy <= radius; dy++ {
					for dx := -radius; dx <= radius; dx++ {
						sr := clamp(row+dy, 0, y-1)
						sc := clamp(col+dx, 0, x-1)
						sum += t.At(ch, sr, sc)
						count++
					}
				}
				out.Set(ch, row, col, sum/float64(count))
			}
		}
	}
	return out, nil
}

func structuralDescriptorNode(_ context.Context, input any, _ map[string]any) (any, error) {
	t, err := asTensor(input)
	if err != nil {
		return nil, err
	}
	c, y, x := t.Channels(), t.Height(), t.Width()
	perChannel := y * x

	channelStats := make([]map[string]any, c)
	for ch := 0; ch < c; ch++ {
		var sum, min, max float64
		min = math.Inf(1)
		max = math.Inf(-1)
		base := ch * perChannel
		for i := 0; i < perChannel; i++ {
			v := t.Data[base+i]
			sum += v
			if v < min {
				min = v
			}
			if v > max {
				max = v
			}
		}
		mean := sum / float64(perChannel)
		var variance float64
		for i := 0; i < perChannel; i++ {
			d := t.Data[base+i] - mean
			variance += d * d
		}
		variance /= float64(perChannel)
		channelStats[ch] = map[string]any{
			"mean": mean,
			"std":  math.Sqrt(variance),
			"max":  max,
			"min":  min,
		}
	}

	return map[string]any{
		"shape":         []int{c, y, x},
		"channel_stats": channelStats,
	}, nil
}

func simulationNode(_ context.Context, input any, params map[string]any) (any, error) {
	t, err := asTensor(input)
	if err != nil {
		return nil, err
	}
	steps := paramInt(params, "steps", 64)
	if steps < 1 {
		steps = 1
	}
	if steps > 256 {
		steps = 256
	}

	var energy float64
	for _, v := range t.Data {
		energy += v * v
	}
	mean := t.Mean()

	series := make([]float64, steps)
	for i := 0; i < steps; i++ {
		phase := 2 * math.Pi * float64(i) / float64(steps)
		series[i] = mean * math.Sin(phase)
	}

	return map[string]any{
		"series": series,
		"steps":  steps,
		"energy": energy,
	}, nil
}

func figureNode(_ context.Context, input any, params map[string]any) (any, error) {
	descriptor, ok := input.(map[string]any)
	if !ok {
		return nil, newPipelineError(fmt.Sprintf("figure: expected a descriptor map input, got %T", input), nil)
	}
	return map[string]any{
		"title":    paramString(params, "title", "untitled"),
		"subtitle": paramString(params, "subtitle", ""),
		"data":     descriptor,
	}, nil
}

func textNode(_ context.Context, input any, params map[string]any) (any, error) {
	prefix := paramString(params, "prefix", "LOG")
	var values []string

	appendValue := func(v any) {
		if s, ok := v.(string); ok {
			values = append(values, s)
			return
		}
		values = append(values, jsonSortedKeys(v))
	}

	switch items := input.(type) {
	case []any:
		for _, v := range items {
			appendValue(v)
		}
	default:
		appendValue(input)
	}

	return fmt.Sprintf("%s: %s", prefix, strings.Join(values, " | ")), nil
}

// jsonSortedKeys JSON-serialises v with map keys sorted, for a
// deterministic text-node representation of non-string inputs.
func jsonSortedKeys(v any) string {
	normalized := sortKeysDeep(v)
	b, err := json.Marshal(normalized)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}

func sortKeysDeep(v any) any {
	switch val := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		ordered := make(orderedMap, 0, len(keys))
		for _, k := range keys {
			ordered = append(ordered, orderedEntry{key: k, value: sortKeysDeep(val[k])})
		}
		return ordered
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = sortKeysDeep(item)
		}
		return out
	default:
		return val
	}
}

// orderedMap/orderedEntry preserve key order through json.Marshal, since
// encoding/json always re-sorts a plain map[string]any's keys anyway; this
// makes the sort explicit and independent of that stdlib behaviour.
type orderedEntry struct {
	key   string
	value any
}

type orderedMap []orderedEntry

func (m orderedMap) MarshalJSON() ([]byte, error) {
	var b strings.Builder
	b.WriteByte('{')
	for i, e := range m {
		if i > 0 {
			b.WriteByte(',')
		}
		keyJSON, err := json.Marshal(e.key)
		if err != nil {
			return nil, err
		}
		valJSON, err := json.Marshal(e.value)
		if err != nil {
			return nil, err
		}
		b.Write(keyJSON)
		b.WriteByte(':')
		b.Write(valJSON)
	}
	b.WriteByte('}')
	return []byte(b.String()), nil
}
