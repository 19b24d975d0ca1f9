package blobset

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"

	"github.com/klauspost/compress/zstd"
	"gocloud.dev/blob"
	"gocloud.dev/gcerrors"

	"github.com/fluxkit/imset-gomlx"
)

// Set reads one image set from a blob bucket. It satisfies imset.Source.
type Set struct {
	bucket *blob.Bucket
	man    *Manifest
	dec    *zstd.Decoder
}

var _ imset.Source = (*Set)(nil)

// Open opens the bucket at url (any scheme registered with gocloud.dev,
// e.g. "file://...") and loads its set.json manifest.
func Open(ctx context.Context, url string) (*Set, error) {
	bucket, err := blob.OpenBucket(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to open bucket: %w", err)
	}

	reader, err := bucket.NewReader(ctx, "set.json", nil)
	if err != nil {
		bucket.Close()
		return nil, fmt.Errorf("failed to open set.json: %w", err)
	}
	defer reader.Close()

	var man Manifest
	if err := json.NewDecoder(reader).Decode(&man); err != nil {
		bucket.Close()
		return nil, fmt.Errorf("failed to parse set.json: %w", err)
	}
	if err := man.validate(); err != nil {
		bucket.Close()
		return nil, fmt.Errorf("invalid manifest: %w", err)
	}

	s := &Set{bucket: bucket, man: &man}
	if man.Compressor == "zstd" {
		dec, err := zstd.NewReader(nil)
		if err != nil {
			bucket.Close()
			return nil, fmt.Errorf("failed to init zstd decoder: %w", err)
		}
		s.dec = dec
	}
	return s, nil
}

func (s *Set) Title() string   { return s.man.Title }
func (s *Set) NumBuffers() int { return s.man.Buffers }

func (s *Set) Buffer(ctx context.Context, i int) (imset.Buffer, error) {
	if i < 0 || i >= s.man.Buffers {
		return nil, fmt.Errorf("buffer %d out of range [0, %d)", i, s.man.Buffers)
	}
	return &bufferView{set: s, index: i}, nil
}

func (s *Set) Close() error {
	if s.dec != nil {
		s.dec.Close()
	}
	return s.bucket.Close()
}

// readAttrs loads an attrs.json under key. A missing blob is an empty
// attribute map, not an error.
func (s *Set) readAttrs(ctx context.Context, key string) (map[string]imset.Raw, error) {
	reader, err := s.bucket.NewReader(ctx, key, nil)
	if err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return map[string]imset.Raw{}, nil
		}
		return nil, fmt.Errorf("failed to open %s: %w", key, err)
	}
	defer reader.Close()

	var values map[string]attrValue
	if err := json.NewDecoder(reader).Decode(&values); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", key, err)
	}
	out := make(map[string]imset.Raw, len(values))
	for k, v := range values {
		if v.array != nil {
			out[k] = v.array
		} else {
			out[k] = v.text
		}
	}
	return out, nil
}

type bufferView struct {
	set   *Set
	index int
}

func (b *bufferView) NumFrames() int { return b.set.man.Frames }

func (b *bufferView) Frame(ctx context.Context, i int) (imset.Frame, error) {
	if i < 0 || i >= b.set.man.Frames {
		return nil, fmt.Errorf("frame %d out of range [0, %d)", i, b.set.man.Frames)
	}
	return &frameView{set: b.set, buffer: b.index, index: i}, nil
}

func (b *bufferView) Attributes(ctx context.Context) (map[string]imset.Raw, error) {
	return b.set.readAttrs(ctx, fmt.Sprintf("b%d/attrs.json", b.index))
}

type frameView struct {
	set    *Set
	buffer int
	index  int
}

func (f *frameView) ComponentNames() []string {
	names := make([]string, len(f.set.man.Components))
	for i, c := range f.set.man.Components {
		names[i] = c.Name
	}
	return names
}

func (f *frameView) Component(name string) (imset.FrameComponent, error) {
	for i := range f.set.man.Components {
		if f.set.man.Components[i].Name == name {
			return &componentView{
				set:    f.set,
				buffer: f.buffer,
				frame:  f.index,
				config: &f.set.man.Components[i],
			}, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", imset.ErrUnknownComponent, name)
}

func (f *frameView) Attributes(ctx context.Context) (map[string]imset.Raw, error) {
	return f.set.readAttrs(ctx, fmt.Sprintf("b%d/f%d/attrs.json", f.buffer, f.index))
}

type componentView struct {
	set    *Set
	buffer int
	frame  int
	config *ComponentConfig
}

func (c *componentView) NumPlanes() int { return c.config.Planes }

func (c *componentView) PlaneShape() (ny, nx int) { return c.config.Height, c.config.Width }

func (c *componentView) DType() imset.DType {
	dtype, _ := imset.ParseDType(c.config.DType)
	return dtype
}

func (c *componentView) Scale() imset.RawScale {
	return imset.RawScale{
		Slope:       c.config.Scale.Slope,
		Offset:      c.config.Scale.Offset,
		Unit:        c.config.Scale.Unit,
		Description: c.config.Scale.Description,
	}
}

func (c *componentView) Plane(ctx context.Context, z int) (*imset.Array, error) {
	if z < 0 || z >= c.config.Planes {
		return nil, fmt.Errorf("plane %d out of range [0, %d)", z, c.config.Planes)
	}
	key := fmt.Sprintf("b%d/f%d/%s/z%d", c.buffer, c.frame, c.config.Name, z)

	reader, err := c.set.bucket.NewReader(ctx, key, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open plane %s: %w", key, err)
	}
	defer reader.Close()

	raw, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read plane %s: %w", key, err)
	}
	if c.set.dec != nil {
		raw, err = c.set.dec.DecodeAll(raw, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to decompress plane %s: %w", key, err)
		}
	}

	dtype := c.DType()
	want := c.config.Height * c.config.Width * dtype.Size()
	if len(raw) != want {
		return nil, fmt.Errorf("plane %s has %d bytes, want %d", key, len(raw), want)
	}
	return decodePlane(dtype, raw, c.config.Height, c.config.Width)
}

// decodePlane interprets little-endian pixel bytes as a 2D array.
func decodePlane(dtype imset.DType, raw []byte, ny, nx int) (*imset.Array, error) {
	n := ny * nx
	var flat any
	switch dtype {
	case imset.Bool:
		out := make([]bool, n)
		for i := range out {
			out[i] = raw[i] != 0
		}
		flat = out
	case imset.Uint8:
		flat = append([]uint8(nil), raw...)
	case imset.Uint16:
		out := make([]uint16, n)
		for i := range out {
			out[i] = binary.LittleEndian.Uint16(raw[2*i:])
		}
		flat = out
	case imset.Uint32:
		out := make([]uint32, n)
		for i := range out {
			out[i] = binary.LittleEndian.Uint32(raw[4*i:])
		}
		flat = out
	case imset.Uint64:
		out := make([]uint64, n)
		for i := range out {
			out[i] = binary.LittleEndian.Uint64(raw[8*i:])
		}
		flat = out
	case imset.Int8:
		out := make([]int8, n)
		for i := range out {
			out[i] = int8(raw[i])
		}
		flat = out
	case imset.Int16:
		out := make([]int16, n)
		for i := range out {
			out[i] = int16(binary.LittleEndian.Uint16(raw[2*i:]))
		}
		flat = out
	case imset.Int32:
		out := make([]int32, n)
		for i := range out {
			out[i] = int32(binary.LittleEndian.Uint32(raw[4*i:]))
		}
		flat = out
	case imset.Int64:
		out := make([]int64, n)
		for i := range out {
			out[i] = int64(binary.LittleEndian.Uint64(raw[8*i:]))
		}
		flat = out
	case imset.Float32:
		out := make([]float32, n)
		for i := range out {
			out[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[4*i:]))
		}
		flat = out
	case imset.Float64:
		out := make([]float64, n)
		for i := range out {
			out[i] = math.Float64frombits(binary.LittleEndian.Uint64(raw[8*i:]))
		}
		flat = out
	default:
		return nil, fmt.Errorf("planes cannot hold dtype %s", dtype)
	}
	return imset.FromFlat(flat, ny, nx)
}
