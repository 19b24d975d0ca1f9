package imset

import "fmt"

// Level says whether a metadata key is recorded once per buffer or once
// per frame.
type Level uint8

const (
	BufferLevel Level = iota + 1
	FrameLevel
)

func (l Level) String() string {
	switch l {
	case BufferLevel:
		return "buffer"
	case FrameLevel:
		return "frame"
	default:
		return "invalid"
	}
}

// Raw is an attribute value as the vendor source stores it: a string or
// an *Array.
type Raw = any

// Decoder converts a raw attribute value into its typed form.
type Decoder func(raw Raw) (any, error)

func decodeText(raw Raw) (any, error) { return raw, nil }

// Attribute is a named, leveled, typed metadata entry. A raw (pre
// inference) attribute carries an identity decoder and a String dtype;
// inference replaces it with a typed instance.
type Attribute struct {
	key     string
	level   Level
	dims    *Dims
	decoder Decoder
	dtype   DType
	shape   []int
	unit    string
	scale   *Scale
	raw     Raw
	extra   map[string]string
	kind    Kind
}

// NewRawAttribute wraps an undecoded metadata entry.
func NewRawAttribute(key string, level Level, dims *Dims, raw Raw) *Attribute {
	return &Attribute{
		key:     key,
		level:   level,
		dims:    dims,
		decoder: decodeText,
		dtype:   String,
		raw:     raw,
		kind:    KindText,
	}
}

func (a *Attribute) Key() string   { return a.key }
func (a *Attribute) Level() Level  { return a.level }
func (a *Attribute) Dims() *Dims   { return a.dims }
func (a *Attribute) DType() DType  { return a.dtype }
func (a *Attribute) Shape() []int  { return append([]int(nil), a.shape...) }
func (a *Attribute) Kind() Kind    { return a.kind }
func (a *Attribute) Raw() Raw      { return a.raw }
func (a *Attribute) Scale() *Scale { return a.scale }

// Unit returns the attribute's unit; the empty string means none. When a
// scale is attached its unit always wins.
func (a *Attribute) Unit() string { return a.unit }

// Extra returns open-ended metadata captured during inference, such as a
// device name and alias.
func (a *Attribute) Extra() map[string]string {
	out := make(map[string]string, len(a.extra))
	for k, v := range a.extra {
		out[k] = v
	}
	return out
}

// Value decodes the stored raw value without applying the scale.
func (a *Attribute) Value() (any, error) {
	if a.raw == nil {
		return nil, nil
	}
	return a.decoder(a.raw)
}

// Decode applies the decoder, then the scale if one is attached.
func (a *Attribute) Decode(raw Raw) (any, error) {
	value, err := a.decoder(raw)
	if err != nil {
		return nil, fmt.Errorf("decode %q: %w", a.key, err)
	}
	if a.scale == nil {
		return value, nil
	}
	switch v := value.(type) {
	case *Array:
		return a.scale.Apply(v), nil
	case int64:
		if a.scale.Identity() {
			return v, nil
		}
		return a.scale.ApplyScalar(float64(v)), nil
	case uint64:
		if a.scale.Identity() {
			return v, nil
		}
		return a.scale.ApplyScalar(float64(v)), nil
	case float64:
		if a.scale.Identity() {
			return v, nil
		}
		return a.scale.ApplyScalar(v), nil
	default:
		return value, nil
	}
}

func (a *Attribute) String() string {
	return fmt.Sprintf("%s | %s | %s | %v | %s", a.key, a.level, a.dtype, a.shape, a.unit)
}
