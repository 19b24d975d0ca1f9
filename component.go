package imset

// Component describes one named image-data channel: the set-level axes
// extended with plane-count/height/width, a dtype promoted from the
// source's native dtype and the scale's dtype, and the scale itself.
type Component struct {
	name  string
	dims  *Dims
	dtype DType
	scale *Scale
}

// NewComponent builds a descriptor. dims must already carry the z/y/x axes.
func NewComponent(name string, dims *Dims, native DType, scale *Scale) *Component {
	return &Component{
		name:  name,
		dims:  dims,
		dtype: Promote(native, scale.DType()),
		scale: scale,
	}
}

func (c *Component) Name() string  { return c.name }
func (c *Component) Dims() *Dims   { return c.dims }
func (c *Component) DType() DType  { return c.dtype }
func (c *Component) Scale() *Scale { return c.scale }

// Shape is the active (post-squeeze) shape of the component.
func (c *Component) Shape() []int { return c.dims.Shape() }
