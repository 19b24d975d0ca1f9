package imset

import (
	"fmt"
	"time"

	"github.com/gomlx/gomlx/pkg/core/tensors"
)

// Array is a dense, C-order, N-dimensional array. Rank 0 is allowed and
// holds exactly one element.
type Array struct {
	shape []int
	dtype DType
	data  any
}

// NewArray allocates a zero-valued array of the given dtype and shape.
func NewArray(dtype DType, shape ...int) *Array {
	n := numElements(shape)
	var data any
	switch dtype {
	case Bool:
		data = make([]bool, n)
	case Uint8:
		data = make([]uint8, n)
	case Uint16:
		data = make([]uint16, n)
	case Uint32:
		data = make([]uint32, n)
	case Uint64:
		data = make([]uint64, n)
	case Int8:
		data = make([]int8, n)
	case Int16:
		data = make([]int16, n)
	case Int32:
		data = make([]int32, n)
	case Int64:
		data = make([]int64, n)
	case Float32:
		data = make([]float32, n)
	case Float64:
		data = make([]float64, n)
	case Time:
		data = make([]time.Time, n)
	case String:
		data = make([]string, n)
	default:
		panic(fmt.Sprintf("imset: cannot allocate array of dtype %s", dtype))
	}
	return &Array{shape: append([]int(nil), shape...), dtype: dtype, data: data}
}

// FromFlat wraps a flat typed slice as an array with the given shape.
// The dtype is taken from the slice element type and the slice length
// must equal the product of the dimensions.
func FromFlat(data any, shape ...int) (*Array, error) {
	var dtype DType
	var n int
	switch v := data.(type) {
	case []bool:
		dtype, n = Bool, len(v)
	case []uint8:
		dtype, n = Uint8, len(v)
	case []uint16:
		dtype, n = Uint16, len(v)
	case []uint32:
		dtype, n = Uint32, len(v)
	case []uint64:
		dtype, n = Uint64, len(v)
	case []int8:
		dtype, n = Int8, len(v)
	case []int16:
		dtype, n = Int16, len(v)
	case []int32:
		dtype, n = Int32, len(v)
	case []int64:
		dtype, n = Int64, len(v)
	case []float32:
		dtype, n = Float32, len(v)
	case []float64:
		dtype, n = Float64, len(v)
	case []time.Time:
		dtype, n = Time, len(v)
	case []string:
		dtype, n = String, len(v)
	default:
		return nil, fmt.Errorf("unsupported flat data type %T", data)
	}
	if n != numElements(shape) {
		return nil, fmt.Errorf("flat data has %d elements, shape %v wants %d", n, shape, numElements(shape))
	}
	return &Array{shape: append([]int(nil), shape...), dtype: dtype, data: data}, nil
}

func numElements(shape []int) int {
	n := 1
	for _, d := range shape {
		n *= d
	}
	return n
}

// strides computes the C-order strides for a given shape.
func strides(shape []int) []int {
	if len(shape) == 0 {
		return []int{}
	}
	s := make([]int, len(shape))
	stride := 1
	for i := len(shape) - 1; i >= 0; i-- {
		s[i] = stride
		stride *= shape[i]
	}
	return s
}

func (a *Array) Shape() []int { return append([]int(nil), a.shape...) }
func (a *Array) DType() DType { return a.dtype }
func (a *Array) Rank() int    { return len(a.shape) }
func (a *Array) Size() int    { return numElements(a.shape) }

// Flat returns the underlying flat slice ([]uint16, []float64, ...).
func (a *Array) Flat() any { return a.data }

func (a *Array) getFloat(i int) float64 {
	switch v := a.data.(type) {
	case []bool:
		if v[i] {
			return 1
		}
		return 0
	case []uint8:
		return float64(v[i])
	case []uint16:
		return float64(v[i])
	case []uint32:
		return float64(v[i])
	case []uint64:
		return float64(v[i])
	case []int8:
		return float64(v[i])
	case []int16:
		return float64(v[i])
	case []int32:
		return float64(v[i])
	case []int64:
		return float64(v[i])
	case []float32:
		return float64(v[i])
	case []float64:
		return v[i]
	}
	panic(fmt.Sprintf("imset: dtype %s has no numeric view", a.dtype))
}

func (a *Array) setFloat(i int, f float64) {
	switch v := a.data.(type) {
	case []bool:
		v[i] = f != 0
	case []uint8:
		v[i] = uint8(f)
	case []uint16:
		v[i] = uint16(f)
	case []uint32:
		v[i] = uint32(f)
	case []uint64:
		v[i] = uint64(f)
	case []int8:
		v[i] = int8(f)
	case []int16:
		v[i] = int16(f)
	case []int32:
		v[i] = int32(f)
	case []int64:
		v[i] = int64(f)
	case []float32:
		v[i] = float32(f)
	case []float64:
		v[i] = f
	default:
		panic(fmt.Sprintf("imset: dtype %s has no numeric view", a.dtype))
	}
}

// setValue stores a decoded scalar, converting numeric kinds as needed.
func (a *Array) setValue(i int, value any) error {
	switch v := value.(type) {
	case time.Time:
		ts, ok := a.data.([]time.Time)
		if !ok {
			return fmt.Errorf("cannot store time.Time into %s array", a.dtype)
		}
		ts[i] = v
		return nil
	case string:
		ss, ok := a.data.([]string)
		if !ok {
			return fmt.Errorf("cannot store string into %s array", a.dtype)
		}
		ss[i] = v
		return nil
	case bool:
		if bs, ok := a.data.([]bool); ok {
			bs[i] = v
			return nil
		}
		if v {
			a.setFloat(i, 1)
		} else {
			a.setFloat(i, 0)
		}
		return nil
	case int64:
		a.setFloat(i, float64(v))
		return nil
	case uint64:
		a.setFloat(i, float64(v))
		return nil
	case int:
		a.setFloat(i, float64(v))
		return nil
	case float64:
		a.setFloat(i, v)
		return nil
	case float32:
		a.setFloat(i, float64(v))
		return nil
	default:
		return fmt.Errorf("cannot store %T into %s array", value, a.dtype)
	}
}

func (a *Array) getValue(i int) any {
	switch v := a.data.(type) {
	case []time.Time:
		return v[i]
	case []string:
		return v[i]
	case []bool:
		return v[i]
	default:
		return a.getFloat(i)
	}
}

// Squeeze returns a view with every length-1 axis removed. The flat data
// is shared with the receiver.
func (a *Array) Squeeze() *Array {
	shape := make([]int, 0, len(a.shape))
	for _, d := range a.shape {
		if d != 1 {
			shape = append(shape, d)
		}
	}
	return &Array{shape: shape, dtype: a.dtype, data: a.data}
}

// SqueezeAxes removes exactly the given axes, which must all have length 1.
func (a *Array) SqueezeAxes(axes ...int) (*Array, error) {
	drop := make(map[int]bool, len(axes))
	for _, ax := range axes {
		if ax < 0 || ax >= len(a.shape) {
			return nil, fmt.Errorf("squeeze axis %d out of range for rank %d", ax, len(a.shape))
		}
		if a.shape[ax] != 1 {
			return nil, fmt.Errorf("cannot squeeze axis %d with length %d", ax, a.shape[ax])
		}
		drop[ax] = true
	}
	shape := make([]int, 0, len(a.shape))
	for i, d := range a.shape {
		if !drop[i] {
			shape = append(shape, d)
		}
	}
	return &Array{shape: shape, dtype: a.dtype, data: a.data}, nil
}

// Gather materializes the sub-array selected by one resolved range per
// axis, in C order.
func (a *Array) Gather(ranges []Range) (*Array, error) {
	if len(ranges) != len(a.shape) {
		return nil, fmt.Errorf("gather wants %d ranges, got %d", len(a.shape), len(ranges))
	}
	shape := make([]int, len(ranges))
	for i, r := range ranges {
		shape[i] = r.Len()
	}
	out := NewArray(a.dtype, shape...)
	srcStrides := strides(a.shape)

	n := out.Size()
	idx := make([]int, len(shape))
	for flat := 0; flat < n; flat++ {
		src := 0
		for i := range idx {
			src += ranges[i].At(idx[i]) * srcStrides[i]
		}
		if err := out.setValue(flat, a.getValue(src)); err != nil {
			return nil, err
		}
		for i := len(idx) - 1; i >= 0; i-- {
			idx[i]++
			if idx[i] < shape[i] {
				break
			}
			idx[i] = 0
		}
	}
	return out, nil
}

// copyInto copies src's flat elements into a starting at offset base,
// converting between numeric dtypes.
func (a *Array) copyInto(base int, src *Array) error {
	for i := 0; i < src.Size(); i++ {
		if err := a.setValue(base+i, src.getValue(i)); err != nil {
			return err
		}
	}
	return nil
}

// Tensor converts a numeric array into a gomlx tensor, sharing no data.
func (a *Array) Tensor() (*tensors.Tensor, error) {
	switch v := a.data.(type) {
	case []bool:
		return tensors.FromFlatDataAndDimensions(v, a.shape...), nil
	case []uint8:
		return tensors.FromFlatDataAndDimensions(v, a.shape...), nil
	case []uint16:
		return tensors.FromFlatDataAndDimensions(v, a.shape...), nil
	case []uint32:
		return tensors.FromFlatDataAndDimensions(v, a.shape...), nil
	case []uint64:
		return tensors.FromFlatDataAndDimensions(v, a.shape...), nil
	case []int8:
		return tensors.FromFlatDataAndDimensions(v, a.shape...), nil
	case []int16:
		return tensors.FromFlatDataAndDimensions(v, a.shape...), nil
	case []int32:
		return tensors.FromFlatDataAndDimensions(v, a.shape...), nil
	case []int64:
		return tensors.FromFlatDataAndDimensions(v, a.shape...), nil
	case []float32:
		return tensors.FromFlatDataAndDimensions(v, a.shape...), nil
	case []float64:
		return tensors.FromFlatDataAndDimensions(v, a.shape...), nil
	default:
		return nil, fmt.Errorf("dtype %s has no tensor representation", a.dtype)
	}
}
