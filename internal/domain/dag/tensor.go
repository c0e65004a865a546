package dag

import "fmt"

// Tensor is a small fixed-rank (C,Y,X) numeric buffer — the only array
// type node kinds in this registry operate on. Modeled directly rather
// than pulled from a numerics library: no array/tensor dependency appears
// anywhere in the retrieved example pack (see DESIGN.md).
type Tensor struct {
	Shape [3]int // (C, Y, X)
	Dtype string // "float32" or "uint8"
	Data  []float64
}

// NewTensor allocates a zero-valued tensor of the given shape.
func NewTensor(c, y, x int, dtype string) *Tensor {
	return &Tensor{
		Shape: [3]int{c, y, x},
		Dtype: dtype,
		Data:  make([]float64, c*y*x),
	}
}

// At returns the value at (ch, row, col).
func (t *Tensor) At(ch, row, col int) float64 {
	return t.Data[t.index(ch, row, col)]
}

// Set stores value at (ch, row, col).
func (t *Tensor) Set(ch, row, col int, v float64) {
	t.Data[t.index(ch, row, col)] = v
}

func (t *Tensor) index(ch, row, col int) int {
	_, y, x := t.Shape[0], t.Shape[1], t.Shape[2]
	return ch*y*x + row*x + col
}

// Channels, Height, Width expose the shape dimensions by name.
func (t *Tensor) Channels() int { return t.Shape[0] }
func (t *Tensor) Height() int   { return t.Shape[1] }
func (t *Tensor) Width() int    { return t.Shape[2] }

func (t *Tensor) String() string {
	return fmt.Sprintf("Tensor(shape=%v, dtype=%s)", t.Shape, t.Dtype)
}

// Min, Max, Mean scan the full buffer. Used by DescribeValue.
func (t *Tensor) Min() float64 {
	if len(t.Data) == 0 {
		return 0
	}
	m := t.Data[0]
	for _, v := range t.Data[1:] {
		if v < m {
			m = v
		}
	}
	return m
}

func (t *Tensor) Max() float64 {
	if len(t.Data) == 0 {
		return 0
	}
	m := t.Data[0]
	for _, v := range t.Data[1:] {
		if v > m {
			m = v
		}
	}
	return m
}

func (t *Tensor) Mean() float64 {
	if len(t.Data) == 0 {
		return 0
	}
	var sum float64
	for _, v := range t.Data {
		sum += v
	}
	return sum / float64(len(t.Data))
}
