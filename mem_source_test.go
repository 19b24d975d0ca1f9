package imset_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	imset "github.com/fluxkit/imset-gomlx"
)

// memSource is an in-memory Source with deterministic pixel values and
// counters for plane reads and closes.
type memSource struct {
	title      string
	buffers    []*memBuffer
	planeReads int
	closeCount int
}

func (s *memSource) Title() string   { return s.title }
func (s *memSource) NumBuffers() int { return len(s.buffers) }

func (s *memSource) Buffer(_ context.Context, i int) (imset.Buffer, error) {
	if i < 0 || i >= len(s.buffers) {
		return nil, fmt.Errorf("buffer %d out of range", i)
	}
	return s.buffers[i], nil
}

func (s *memSource) Close() error {
	s.closeCount++
	return nil
}

type memBuffer struct {
	frames []*memFrame
	attrs  map[string]imset.Raw
}

func (b *memBuffer) NumFrames() int { return len(b.frames) }

func (b *memBuffer) Frame(_ context.Context, i int) (imset.Frame, error) {
	if i < 0 || i >= len(b.frames) {
		return nil, fmt.Errorf("frame %d out of range", i)
	}
	return b.frames[i], nil
}

func (b *memBuffer) Attributes(context.Context) (map[string]imset.Raw, error) {
	return b.attrs, nil
}

type memFrame struct {
	order []string
	comps map[string]*memComponent
	attrs map[string]imset.Raw
}

func (f *memFrame) ComponentNames() []string { return f.order }

func (f *memFrame) Component(name string) (imset.FrameComponent, error) {
	c, ok := f.comps[name]
	if !ok {
		return nil, fmt.Errorf("no component %q", name)
	}
	return c, nil
}

func (f *memFrame) Attributes(context.Context) (map[string]imset.Raw, error) {
	return f.attrs, nil
}

type memComponent struct {
	src    *memSource
	dtype  imset.DType
	scale  imset.RawScale
	planes []*imset.Array
}

func (c *memComponent) NumPlanes() int { return len(c.planes) }

func (c *memComponent) PlaneShape() (ny, nx int) {
	shape := c.planes[0].Shape()
	return shape[0], shape[1]
}

func (c *memComponent) DType() imset.DType    { return c.dtype }
func (c *memComponent) Scale() imset.RawScale { return c.scale }

func (c *memComponent) Plane(_ context.Context, z int) (*imset.Array, error) {
	c.src.planeReads++
	if z < 0 || z >= len(c.planes) {
		return nil, fmt.Errorf("plane %d out of range", z)
	}
	return c.planes[z], nil
}

// newMemSource builds a 4-buffer, 1-frame set with one 2x3 uint16 plane
// per frame. Pixel values encode their position as 100*b + 10*y + x.
func newMemSource(t *testing.T) *memSource {
	t.Helper()
	src := &memSource{title: "bench run 17"}

	for b := 0; b < 4; b++ {
		pixels := make([]uint16, 2*3)
		for y := 0; y < 2; y++ {
			for x := 0; x < 3; x++ {
				pixels[y*3+x] = uint16(100*b + 10*y + x)
			}
		}
		plane, err := imset.FromFlat(pixels, 2, 3)
		require.NoError(t, err)

		roi, err := imset.FromFlat([]int32{int32(b), int32(b + 1)}, 1, 2)
		require.NoError(t, err)

		frame := &memFrame{
			order: []string{"intensity", "velocity"},
			comps: map[string]*memComponent{
				"intensity": {
					src:    src,
					dtype:  imset.Uint16,
					scale:  imset.RawScale{Slope: 1, Offset: 0, Unit: "counts", Description: "intensity"},
					planes: []*imset.Array{plane},
				},
				"velocity": {
					src:    src,
					dtype:  imset.Uint16,
					scale:  imset.RawScale{Slope: 0.5, Offset: 0, Unit: "m/s", Description: "velocity"},
					planes: []*imset.Array{plane},
				},
			},
			attrs: map[string]imset.Raw{
				"ExposureTime": fmt.Sprintf("%d µs", 9000+10*b),
				"ROI":          roi,
			},
		}
		src.buffers = append(src.buffers, &memBuffer{
			frames: []*memFrame{frame},
			attrs: map[string]imset.Raw{
				"Timestamp": fmt.Sprintf("2024-05-06T10:21:%02d,500000+02:00", b),
				"Camera":    "imager pro",
			},
		})
	}
	return src
}
