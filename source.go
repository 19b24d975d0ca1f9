package imset

import "context"

// Source is the read contract for an external vendor dataset: an ordered
// sequence of buffers, each an ordered sequence of frames, each frame
// holding named image components and a flat attribute mapping. Sources
// offer sequential, stateful access only; callers must not assume any
// implementation is safe for concurrent use.
type Source interface {
	// Title is the human-readable dataset title, possibly empty.
	Title() string
	// NumBuffers is the number of top-level buffers.
	NumBuffers() int
	// Buffer positions the source at buffer i.
	Buffer(ctx context.Context, i int) (Buffer, error)
	// Close releases the underlying handle.
	Close() error
}

// Buffer is one top-level sequential unit of a source.
type Buffer interface {
	NumFrames() int
	Frame(ctx context.Context, i int) (Frame, error)
	// Attributes is the buffer-scoped raw metadata mapping. Values are
	// strings or *Array.
	Attributes(ctx context.Context) (map[string]Raw, error)
}

// Frame is one sequential unit within a buffer.
type Frame interface {
	// ComponentNames lists the frame's components in declaration order.
	ComponentNames() []string
	Component(name string) (FrameComponent, error)
	// Attributes is the frame-scoped raw metadata mapping.
	Attributes(ctx context.Context) (map[string]Raw, error)
}

// FrameComponent is one named image channel of a frame.
type FrameComponent interface {
	NumPlanes() int
	// PlaneShape returns the (height, width) of each 2D plane.
	PlaneShape() (ny, nx int)
	DType() DType
	Scale() RawScale
	// Plane reads the z-th 2D plane in the component's native dtype.
	Plane(ctx context.Context, z int) (*Array, error)
}

// RawScale is the affine calibration record a source stores per component.
type RawScale struct {
	Slope       float64
	Offset      float64
	Unit        string
	Description string
}
