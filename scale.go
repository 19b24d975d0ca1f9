package imset

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Scale is an affine transform (slope*x + offset) with a unit label.
// Slope and offset are scalar; per-pixel array-valued calibration is not
// supported. Slope and offset integral within floating tolerance are
// treated as integers before picking the narrowest storage dtype for both.
type Scale struct {
	slope       float64
	offset      float64
	dtype       DType
	unit        string
	description string
}

// NewScale builds a scale, narrowing the stored dtype as described above.
func NewScale(slope, offset float64, unit, description string) *Scale {
	s := &Scale{slope: slope, offset: offset, unit: unit, description: description}

	slopeInt, slopeIsInt := asIntegral(slope)
	offsetInt, offsetIsInt := asIntegral(offset)
	switch {
	case slopeIsInt && offsetIsInt:
		s.dtype = Promote(minScalarInt(slopeInt), minScalarInt(offsetInt))
	default:
		s.dtype = Promote(minScalarFloat(slope), minScalarFloat(offset))
	}
	return s
}

// asIntegral reports whether v is an integer within floating tolerance
// and returns it rounded.
func asIntegral(v float64) (int64, bool) {
	r := math.Round(v)
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return 0, false
	}
	if math.Abs(v-r) <= 1e-8+1e-5*math.Abs(r) {
		return int64(r), true
	}
	return 0, false
}

// ParseScale parses a newline-delimited four-field record
// "slope\noffset\nunit\ndescription". It fails with
// ErrMalformedScaleRecord when fewer than four fields are present.
func ParseScale(record string) (*Scale, error) {
	fields := strings.Split(record, "\n")
	if len(fields) < 4 {
		return nil, fmt.Errorf("%w: %d of 4 fields in %q", ErrMalformedScaleRecord, len(fields), record)
	}
	slope, err := strconv.ParseFloat(strings.TrimSpace(fields[0]), 64)
	if err != nil {
		return nil, fmt.Errorf("%w: bad slope %q", ErrMalformedScaleRecord, fields[0])
	}
	offset, err := strconv.ParseFloat(strings.TrimSpace(fields[1]), 64)
	if err != nil {
		return nil, fmt.Errorf("%w: bad offset %q", ErrMalformedScaleRecord, fields[1])
	}
	return NewScale(slope, offset, fields[2], fields[3]), nil
}

func (s *Scale) Slope() float64      { return s.slope }
func (s *Scale) Offset() float64     { return s.offset }
func (s *Scale) Unit() string        { return s.unit }
func (s *Scale) Description() string { return s.description }

// DType is the narrowest dtype holding both slope and offset.
func (s *Scale) DType() DType { return s.dtype }

// Identity reports whether applying the scale leaves data unchanged.
func (s *Scale) Identity() bool { return s.slope == 1 && s.offset == 0 }

// Label renders the scale as "description [unit]".
func (s *Scale) Label() string { return fmt.Sprintf("%s [%s]", s.description, s.unit) }

// Record renders the scale back into its four-field string form.
func (s *Scale) Record() string {
	return fmt.Sprintf("%s\n%s\n%s\n%s",
		strconv.FormatFloat(s.slope, 'g', -1, 64),
		strconv.FormatFloat(s.offset, 'g', -1, 64),
		s.unit, s.description)
}

func (s *Scale) String() string {
	return fmt.Sprintf("%v; %v; %s; %s", s.slope, s.offset, s.dtype, s.unit)
}

// Apply transforms a numeric array elementwise. The result dtype is the
// promotion of the data dtype with the scale dtype; identity scales that
// do not promote return the input unchanged.
func (s *Scale) Apply(a *Array) *Array {
	if !a.dtype.IsNumeric() {
		return a
	}
	out := Promote(a.dtype, s.dtype)
	if s.Identity() && out == a.dtype {
		return a
	}
	scaled := NewArray(out, a.shape...)
	for i := 0; i < a.Size(); i++ {
		scaled.setFloat(i, s.slope*a.getFloat(i)+s.offset)
	}
	return scaled
}

// ApplyScalar transforms one value.
func (s *Scale) ApplyScalar(v float64) float64 { return s.slope*v + s.offset }
