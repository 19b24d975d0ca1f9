package imset

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/charmbracelet/log"
)

// Option configures Open.
type Option func(*openOptions)

type openOptions struct {
	squeeze bool
	logger  *log.Logger
}

// WithSqueeze controls whether singleton axes are dropped set-wide.
// The default is true.
func WithSqueeze(squeeze bool) Option {
	return func(o *openOptions) { o.squeeze = squeeze }
}

// WithLogger replaces the default logger.
func WithLogger(logger *log.Logger) Option {
	return func(o *openOptions) { o.logger = logger }
}

// SetAccessor exposes a vendor image set as typed, named arrays. It owns
// the source handle, the set-level Dims, the component descriptors and
// the inferred attribute mapping, all built eagerly from buffer 0 /
// frame 0 at open time.
//
// All source access is serialized behind one mutex: the source offers
// only sequential, stateful reads. Close racing an in-flight read is
// unspecified behavior.
type SetAccessor struct {
	mu     sync.Mutex
	src    Source
	closed bool
	logger *log.Logger

	title      string
	dims       *Dims
	compNames  []string
	components map[string]*Component
	attrs      map[string]*Attribute
}

// Open wraps an already-open source. The accessor takes ownership of the
// handle and closes it on Close.
func Open(ctx context.Context, src Source, opts ...Option) (*SetAccessor, error) {
	o := openOptions{squeeze: true, logger: log.Default()}
	for _, opt := range opts {
		opt(&o)
	}

	buffer0, err := src.Buffer(ctx, 0)
	if err != nil {
		return nil, fmt.Errorf("read first buffer: %w", err)
	}
	frame0, err := buffer0.Frame(ctx, 0)
	if err != nil {
		return nil, fmt.Errorf("read first frame: %w", err)
	}

	dims, err := NewDims(o.squeeze,
		Axis{AxisBuffer, src.NumBuffers()},
		Axis{AxisFrame, buffer0.NumFrames()},
	)
	if err != nil {
		return nil, err
	}

	s := &SetAccessor{
		src:        src,
		logger:     o.logger,
		title:      src.Title(),
		dims:       dims,
		components: make(map[string]*Component),
	}

	// Components are assumed identical across buffers and frames, so the
	// first frame defines them all.
	for _, name := range frame0.ComponentNames() {
		fc, err := frame0.Component(name)
		if err != nil {
			return nil, err
		}
		ny, nx := fc.PlaneShape()
		cdims, err := dims.WithDims(
			Axis{AxisZ, fc.NumPlanes()},
			Axis{AxisY, ny},
			Axis{AxisX, nx},
		)
		if err != nil {
			return nil, err
		}
		rs := fc.Scale()
		s.compNames = append(s.compNames, name)
		s.components[name] = NewComponent(name, cdims, fc.DType(), NewScale(rs.Slope, rs.Offset, rs.Unit, rs.Description))
	}

	raw, err := rawAttributes(ctx, dims, buffer0, frame0)
	if err != nil {
		return nil, err
	}
	s.attrs, err = InferAll(dims, raw)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("opened image set",
		"title", s.title,
		"buffers", src.NumBuffers(),
		"components", len(s.components),
		"attributes", len(s.attrs))
	return s, nil
}

// rawAttributes merges a buffer's and a frame's attribute mappings into
// leveled raw attributes. Frame-scoped keys shadow buffer-scoped ones.
func rawAttributes(ctx context.Context, dims *Dims, buffer Buffer, frame Frame) (map[string]*Attribute, error) {
	battrs, err := buffer.Attributes(ctx)
	if err != nil {
		return nil, err
	}
	fattrs, err := frame.Attributes(ctx)
	if err != nil {
		return nil, err
	}

	raw := make(map[string]*Attribute, len(battrs)+len(fattrs))
	for key, value := range battrs {
		raw[key] = NewRawAttribute(key, BufferLevel, dims, value)
	}
	for key, value := range fattrs {
		raw[key] = NewRawAttribute(key, FrameLevel, dims, value)
	}
	return raw, nil
}

func (s *SetAccessor) Title() string { return s.title }

// Dims returns the set-level axis registry (buffer, frame).
func (s *SetAccessor) Dims() *Dims { return s.dims }

// NumBuffers returns the number of buffers in the set.
func (s *SetAccessor) NumBuffers() int { return s.src.NumBuffers() }

// ComponentNames lists components in the frame's declaration order.
func (s *SetAccessor) ComponentNames() []string {
	return append([]string(nil), s.compNames...)
}

// Component looks up a descriptor by name.
func (s *SetAccessor) Component(name string) (*Component, error) {
	c, ok := s.components[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownComponent, name)
	}
	return c, nil
}

// Components returns a copy of the descriptor mapping.
func (s *SetAccessor) Components() map[string]*Component {
	out := make(map[string]*Component, len(s.components))
	for k, v := range s.components {
		out[k] = v
	}
	return out
}

// Attribute looks up an inferred attribute by name.
func (s *SetAccessor) Attribute(name string) (*Attribute, error) {
	a, ok := s.attrs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAttribute, name)
	}
	return a, nil
}

// Attributes returns a copy of the inferred attribute mapping.
func (s *SetAccessor) Attributes() map[string]*Attribute {
	out := make(map[string]*Attribute, len(s.attrs))
	for k, v := range s.attrs {
		out[k] = v
	}
	return out
}

// AttributeNames lists the inferred attribute names, sorted.
func (s *SetAccessor) AttributeNames() []string {
	names := make([]string, 0, len(s.attrs))
	for name := range s.attrs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ListAttributes reads the attribute mappings of one buffer/frame pair.
// With infer unset the raw, undecoded view is returned.
func (s *SetAccessor) ListAttributes(ctx context.Context, buffer, frame int, infer bool) (map[string]*Attribute, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}

	b, err := s.src.Buffer(ctx, buffer)
	if err != nil {
		return nil, err
	}
	f, err := b.Frame(ctx, frame)
	if err != nil {
		return nil, err
	}
	raw, err := rawAttributes(ctx, s.dims, b, f)
	if err != nil {
		return nil, err
	}
	if !infer {
		return raw, nil
	}
	return InferAll(s.dims, raw)
}

// GetData reads a range of a component. Keys map axis names to indices
// or spans; an empty mapping reads everything. The result is assembled
// in the component's dtype, scaled, and squeezed of singleton axes when
// the accessor was opened with squeeze enabled.
func (s *SetAccessor) GetData(ctx context.Context, component string, keys map[string]Key) (*Array, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	comp, err := s.Component(component)
	if err != nil {
		return nil, err
	}
	return s.getData(ctx, comp, keys, true)
}

// getData assembles the full-view result. With squeezeResult set every
// length-1 result axis is dropped (when the registry squeezes at all);
// otherwise only declared-singleton axes go, leaving rank equal to the
// active axis count. Callers hold s.mu.
func (s *SetAccessor) getData(ctx context.Context, comp *Component, keys map[string]Key, squeezeResult bool) (*Array, error) {
	idx, err := comp.dims.Index(keys)
	if err != nil {
		return nil, err
	}

	out := NewArray(comp.dtype, idx.Shape()...)
	st := strides(idx.Shape())

	br := idx.SourceRange(AxisBuffer, One())
	fr := idx.SourceRange(AxisFrame, One())
	zr := idx.SourceRange(AxisZ, One())
	ranges := idx.Ranges()
	yr := ranges[len(ranges)-2]
	xr := ranges[len(ranges)-1]

	for i := 0; i < br.Len(); i++ {
		buffer, err := s.src.Buffer(ctx, br.At(i))
		if err != nil {
			return nil, err
		}
		for j := 0; j < fr.Len(); j++ {
			frame, err := buffer.Frame(ctx, fr.At(j))
			if err != nil {
				return nil, err
			}
			fc, err := frame.Component(comp.name)
			if err != nil {
				return nil, err
			}
			for k := 0; k < zr.Len(); k++ {
				plane, err := fc.Plane(ctx, zr.At(k))
				if err != nil {
					return nil, err
				}
				sub, err := plane.Gather([]Range{yr, xr})
				if err != nil {
					return nil, err
				}
				base := i*st[0] + j*st[1] + k*st[2]
				if err := out.copyInto(base, sub); err != nil {
					return nil, err
				}
			}
		}
	}

	return s.finish(comp.scale.Apply(out), comp.dims, squeezeResult)
}

// GetAttribute reads an attribute across buffers/frames. Buffer-scoped
// attributes are read and decoded once per buffer, frame-scoped ones
// once per (buffer, frame). Attributes with extra per-value axes are
// further indexed by the trailing portion of the resolved key.
func (s *SetAccessor) GetAttribute(ctx context.Context, attribute string, keys map[string]Key) (*Array, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	attr, err := s.Attribute(attribute)
	if err != nil {
		return nil, err
	}
	return s.getAttribute(ctx, attr, keys, true)
}

func (s *SetAccessor) getAttribute(ctx context.Context, attr *Attribute, keys map[string]Key, squeezeResult bool) (*Array, error) {
	idx, err := attr.dims.Index(keys)
	if err != nil {
		return nil, err
	}

	out := NewArray(attr.dtype, idx.Shape()...)
	st := strides(idx.Shape())
	br := idx.SourceRange(AxisBuffer, One())
	fr := idx.SourceRange(AxisFrame, One())
	extra := idx.Ranges()[2:]

	place := func(i, j int, decoded any) error {
		base := i*st[0] + j*st[1]
		if arr, ok := decoded.(*Array); ok {
			if len(extra) > 0 {
				sub, err := arr.Gather(extra)
				if err != nil {
					return err
				}
				return out.copyInto(base, sub)
			}
			return out.setValue(base, arr.getValue(0))
		}
		return out.setValue(base, decoded)
	}

	for i := 0; i < br.Len(); i++ {
		buffer, err := s.src.Buffer(ctx, br.At(i))
		if err != nil {
			return nil, err
		}

		if attr.level == BufferLevel {
			battrs, err := buffer.Attributes(ctx)
			if err != nil {
				return nil, err
			}
			raw, ok := battrs[attr.key]
			if !ok {
				return nil, fmt.Errorf("%w: %q in buffer %d", ErrUnknownAttribute, attr.key, br.At(i))
			}
			decoded, err := attr.Decode(raw)
			if err != nil {
				return nil, err
			}
			for j := 0; j < fr.Len(); j++ {
				if err := place(i, j, decoded); err != nil {
					return nil, err
				}
			}
			continue
		}

		for j := 0; j < fr.Len(); j++ {
			frame, err := buffer.Frame(ctx, fr.At(j))
			if err != nil {
				return nil, err
			}
			fattrs, err := frame.Attributes(ctx)
			if err != nil {
				return nil, err
			}
			raw, ok := fattrs[attr.key]
			if !ok {
				return nil, fmt.Errorf("%w: %q in buffer %d frame %d", ErrUnknownAttribute, attr.key, br.At(i), fr.At(j))
			}
			decoded, err := attr.Decode(raw)
			if err != nil {
				return nil, err
			}
			if err := place(i, j, decoded); err != nil {
				return nil, err
			}
		}
	}

	return s.finish(out, attr.dims, squeezeResult)
}

// finish applies the squeeze policy to an assembled full-view result.
func (s *SetAccessor) finish(out *Array, dims *Dims, squeezeResult bool) (*Array, error) {
	if !dims.Squeezed() {
		return out, nil
	}
	if squeezeResult {
		return out.Squeeze(), nil
	}
	// Drop only the declared-singleton axes, keeping rank equal to the
	// active axis count for the lazy adapter.
	var axes []int
	for i, size := range dims.FullShape() {
		if size <= 1 {
			axes = append(axes, i)
		}
	}
	return out.SqueezeAxes(axes...)
}

// Close releases the source. Closing twice is a logged no-op; any read
// after the first Close fails with ErrClosed.
func (s *SetAccessor) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		s.logger.Warn("image set already closed", "title", s.title)
		return nil
	}
	s.closed = true
	return s.src.Close()
}
