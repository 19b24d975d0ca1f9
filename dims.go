package imset

import (
	"fmt"
	"math"
	"strings"
)

// Canonical axis names used by set-level registries.
const (
	AxisBuffer = "buffer"
	AxisFrame  = "frame"
	AxisZ      = "z"
	AxisY      = "y"
	AxisX      = "x"
)

// Axis declares one named dimension with its size.
type Axis struct {
	Name string
	Size int
}

// Dims is an immutable, ordered registry of named axes. When squeeze is
// enabled, axes with size <= 1 are excluded from the active view but kept
// in the full view so range queries over them still resolve.
type Dims struct {
	squeeze bool

	names []string // full view, declaration order
	sizes []int

	activeNames []string
	activeShape []int
}

// NewDims builds a registry from the given axes. It fails with
// ErrDuplicateAxis if a name repeats.
func NewDims(squeeze bool, axes ...Axis) (*Dims, error) {
	d := &Dims{squeeze: squeeze}
	seen := make(map[string]bool, len(axes))
	for _, ax := range axes {
		if seen[ax.Name] {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateAxis, ax.Name)
		}
		seen[ax.Name] = true
		d.names = append(d.names, ax.Name)
		d.sizes = append(d.sizes, ax.Size)
		if !squeeze || ax.Size > 1 {
			d.activeNames = append(d.activeNames, ax.Name)
			d.activeShape = append(d.activeShape, ax.Size)
		}
	}
	return d, nil
}

// WithDims returns a new registry with the given axes appended. It fails
// with ErrDuplicateAxis if any new name already exists in the full view.
func (d *Dims) WithDims(axes ...Axis) (*Dims, error) {
	all := make([]Axis, 0, len(d.names)+len(axes))
	for i, name := range d.names {
		all = append(all, Axis{name, d.sizes[i]})
	}
	return NewDims(d.squeeze, append(all, axes...)...)
}

// Names returns the active (post-squeeze) axis names.
func (d *Dims) Names() []string { return append([]string(nil), d.activeNames...) }

// Shape returns the active axis sizes.
func (d *Dims) Shape() []int { return append([]int(nil), d.activeShape...) }

// Len returns the number of active axes.
func (d *Dims) Len() int { return len(d.activeNames) }

// FullNames returns every declared axis name, squeezed or not.
func (d *Dims) FullNames() []string { return append([]string(nil), d.names...) }

// FullShape returns every declared axis size.
func (d *Dims) FullShape() []int { return append([]int(nil), d.sizes...) }

// Size returns the declared size of an active axis.
func (d *Dims) Size(name string) (int, bool) {
	for i, n := range d.activeNames {
		if n == name {
			return d.activeShape[i], true
		}
	}
	return 0, false
}

// Squeezed reports whether the registry drops singleton axes.
func (d *Dims) Squeezed() bool { return d.squeeze }

// Equal reports whether two registries have the same active view.
func (d *Dims) Equal(other *Dims) bool {
	if other == nil || len(d.activeNames) != len(other.activeNames) {
		return false
	}
	for i := range d.activeNames {
		if d.activeNames[i] != other.activeNames[i] || d.activeShape[i] != other.activeShape[i] {
			return false
		}
	}
	return true
}

func (d *Dims) String() string {
	parts := make([]string, len(d.activeNames))
	for i, n := range d.activeNames {
		parts[i] = fmt.Sprintf("%s=%d", n, d.activeShape[i])
	}
	return strings.Join(parts, ", ")
}

// End marks an unset Span bound: the start or stop defaults to whatever
// the step direction implies for the axis size.
const End = math.MaxInt

// Key selects elements along one axis: either a single index (At) or a
// slice-like span (Span).
type Key interface {
	resolve(size int) Range
}

// At selects a single index. It is normalized to a one-element range, so
// a negative index counts from the end of the axis.
type At int

func (a At) resolve(size int) Range {
	// Normalize before widening to a span, otherwise At(-1) would clamp
	// its stop bound to the absolute position 0 and resolve empty.
	i := int(a)
	if i < 0 {
		i += size
	}
	return Span{Start: i, Stop: i + 1, Step: 1}.resolve(size)
}

// Span selects a half-open range with a step, with the clamping rules of
// a language-level slice: negative bounds count from the end, End means
// "unbounded" and a zero step reads as 1.
type Span struct {
	Start, Stop, Step int
}

// All selects the whole axis.
func All() Span { return Span{Start: End, Stop: End, Step: 1} }

// NewSpan selects [start, stop) with step 1.
func NewSpan(start, stop int) Span { return Span{Start: start, Stop: stop, Step: 1} }

func (s Span) resolve(size int) Range {
	step := s.Step
	if step == 0 {
		step = 1
	}

	var defStart, defStop int
	if step > 0 {
		defStart, defStop = 0, size
	} else {
		defStart, defStop = size-1, -1
	}

	clamp := func(v int) int {
		if v < 0 {
			v += size
			if v < 0 {
				if step > 0 {
					return 0
				}
				return -1
			}
			return v
		}
		if v >= size {
			if step > 0 {
				return size
			}
			return size - 1
		}
		return v
	}

	start := defStart
	if s.Start != End {
		start = clamp(s.Start)
	}
	stop := defStop
	if s.Stop != End {
		stop = clamp(s.Stop)
	}
	return Range{Start: start, Stop: stop, Step: step}
}

// Range is a resolved, concrete index progression along one axis.
type Range struct {
	Start, Stop, Step int
}

// One is the default range for axes absent from a registry: a single
// leading element.
func One() Range { return Range{Start: 0, Stop: 1, Step: 1} }

// Len returns the number of indices the range visits.
func (r Range) Len() int {
	if r.Step > 0 {
		if r.Stop <= r.Start {
			return 0
		}
		return (r.Stop - r.Start + r.Step - 1) / r.Step
	}
	if r.Step < 0 {
		if r.Start <= r.Stop {
			return 0
		}
		return (r.Start - r.Stop - r.Step - 1) / -r.Step
	}
	return 0
}

// At returns the i-th index of the range.
func (r Range) At(i int) int { return r.Start + i*r.Step }

// IndexKey is the resolved plan for one read request: a concrete range
// per full-view axis plus the resulting output shape.
type IndexKey struct {
	dims   *Dims
	ranges []Range
	shape  []int
}

// Index resolves a partial axis-name to key mapping against the registry.
// An empty mapping selects every axis in full; otherwise the mapping must
// hold exactly one key per active axis (ErrKeyCountMismatch) and axes
// omitted by name default to their whole range.
func (d *Dims) Index(keys map[string]Key) (*IndexKey, error) {
	if len(keys) > 0 && len(keys) != len(d.activeNames) {
		return nil, fmt.Errorf("%w: got %d keys for %d dimensions", ErrKeyCountMismatch, len(keys), len(d.activeNames))
	}
	known := make(map[string]bool, len(d.names))
	for _, n := range d.names {
		known[n] = true
	}
	for name := range keys {
		if !known[name] {
			return nil, fmt.Errorf("%w: %q", ErrUnknownAxis, name)
		}
	}

	ik := &IndexKey{
		dims:   d,
		ranges: make([]Range, len(d.names)),
		shape:  make([]int, len(d.names)),
	}
	for i, name := range d.names {
		size := d.sizes[i]
		key, ok := keys[name]
		if !ok {
			key = All()
		}
		r := key.resolve(size)
		ik.ranges[i] = r
		ik.shape[i] = r.Len()
	}
	return ik, nil
}

// Shape returns the output shape in full-view axis order.
func (k *IndexKey) Shape() []int { return append([]int(nil), k.shape...) }

// Ranges returns the resolved range per full-view axis.
func (k *IndexKey) Ranges() []Range { return append([]Range(nil), k.ranges...) }

// SourceRange returns the resolved range for a known full-view axis name,
// or def when the registry does not declare the axis.
func (k *IndexKey) SourceRange(name string, def Range) Range {
	for i, n := range k.dims.names {
		if n == name {
			return k.ranges[i]
		}
	}
	return def
}
