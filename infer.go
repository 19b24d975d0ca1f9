package imset

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Kind tags the classification an attribute value received during
// inference.
type Kind uint8

const (
	KindText Kind = iota
	KindArray
	KindTimestamp
	KindInteger
	KindFloat
	KindQuantity
)

func (k Kind) String() string {
	switch k {
	case KindArray:
		return "array"
	case KindTimestamp:
		return "timestamp"
	case KindInteger:
		return "integer"
	case KindFloat:
		return "float"
	case KindQuantity:
		return "quantity"
	default:
		return "text"
	}
}

// timestampLayout parses the vendor's fixed timestamp pattern. The comma
// fraction is optional, so timestamps without milliseconds parse too.
const timestampLayout = "2006-01-02T15:04:05,999999Z07:00"

// InferOpts carries optional context into Infer.
type InferOpts struct {
	// Unit is an explicitly supplied unit, e.g. from a sibling ".Unit"
	// key. A quantity classification or an attached Scale overrides it.
	Unit string
	// Scale is an affine correction applied on decode; its unit always
	// becomes the attribute's unit.
	Scale *Scale
	// Extra is open-ended metadata kept on the attribute.
	Extra map[string]string
}

// classified is the outcome of one classifier: dtype, shape, decoder and
// the default unit. forceUnit marks units that were parsed out of the
// value itself and must win over a supplied unit.
type classified struct {
	kind      Kind
	dtype     DType
	shape     []int
	unit      string
	forceUnit bool
	decoder   Decoder
}

// classifier inspects a raw value and either claims it or passes.
type classifier func(key string, raw Raw) (classified, bool)

// classifiers is the fixed classification order. The first match wins;
// nothing here ever fails, unmatched input falls through to text.
var classifiers = []classifier{
	classifyArray,
	classifyTimestamp,
	classifyInteger,
	classifyFloat,
	classifyQuantity,
}

func classifyArray(_ string, raw Raw) (classified, bool) {
	arr, ok := raw.(*Array)
	if !ok || !arr.DType().IsNumeric() {
		return classified{}, false
	}
	squeezed := arr.Squeeze()
	return classified{
		kind:  KindArray,
		dtype: squeezed.DType(),
		shape: squeezed.Shape(),
		unit:  Dimensionless,
		decoder: func(r Raw) (any, error) {
			a, ok := r.(*Array)
			if !ok {
				return nil, fmt.Errorf("expected array value, got %T", r)
			}
			return a.Squeeze(), nil
		},
	}, true
}

func classifyTimestamp(key string, raw Raw) (classified, bool) {
	if !strings.EqualFold(key, "timestamp") {
		return classified{}, false
	}
	return classified{
		kind:  KindTimestamp,
		dtype: Time,
		decoder: func(r Raw) (any, error) {
			s, ok := r.(string)
			if !ok {
				return nil, fmt.Errorf("expected timestamp string, got %T", r)
			}
			t, err := time.Parse(timestampLayout, s)
			if err != nil {
				return nil, err
			}
			// Strip the timezone, keeping the local wall clock.
			return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC), nil
		},
	}, true
}

func classifyInteger(_ string, raw Raw) (classified, bool) {
	s, ok := raw.(string)
	if !ok {
		return classified{}, false
	}
	v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return classified{}, false
	}
	return classified{
		kind:  KindInteger,
		dtype: minScalarInt(v),
		unit:  Dimensionless,
		decoder: func(r Raw) (any, error) {
			s, ok := r.(string)
			if !ok {
				return nil, fmt.Errorf("expected integer string, got %T", r)
			}
			return strconv.ParseInt(strings.TrimSpace(s), 10, 64)
		},
	}, true
}

func classifyFloat(_ string, raw Raw) (classified, bool) {
	s, ok := raw.(string)
	if !ok {
		return classified{}, false
	}
	if _, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err != nil {
		return classified{}, false
	}
	return classified{
		kind:  KindFloat,
		dtype: Float64,
		unit:  Dimensionless,
		decoder: func(r Raw) (any, error) {
			s, ok := r.(string)
			if !ok {
				return nil, fmt.Errorf("expected float string, got %T", r)
			}
			return strconv.ParseFloat(strings.TrimSpace(s), 64)
		},
	}, true
}

func classifyQuantity(_ string, raw Raw) (classified, bool) {
	s, ok := raw.(string)
	if !ok {
		return classified{}, false
	}
	// The single-dot guard keeps version strings like "11.1.0.186" from
	// parsing as quantities.
	if !startsWithNumber(s) || strings.Count(s, ".") > 1 {
		return classified{}, false
	}
	q, err := ParseQuantity(s)
	if err != nil {
		return classified{}, false
	}

	var dtype DType
	if q.Integral {
		dtype = minScalarInt(int64(q.Magnitude))
	} else {
		dtype = minScalarFloat(q.Magnitude)
	}
	return classified{
		kind:      KindQuantity,
		dtype:     dtype,
		unit:      q.Unit,
		forceUnit: true,
		decoder: func(r Raw) (any, error) {
			s, ok := r.(string)
			if !ok {
				return nil, fmt.Errorf("expected quantity string, got %T", r)
			}
			q, err := ParseQuantity(s)
			if err != nil {
				return nil, err
			}
			if q.Integral {
				return int64(q.Magnitude), nil
			}
			return q.Magnitude, nil
		},
	}, true
}

// Infer classifies a raw metadata value into a typed Attribute. The
// classifiers run in fixed order and the first match wins; input that
// matches none degrades to the text fallback, so Infer never fails on
// unparseable values. The returned attribute's registry is dims extended
// with one "dim_i" axis per element of the value's squeezed shape.
func Infer(key string, level Level, dims *Dims, raw Raw, opts InferOpts) (*Attribute, error) {
	c := classified{kind: KindText, dtype: String, decoder: decodeText}
	for _, classify := range classifiers {
		if got, ok := classify(key, raw); ok {
			c = got
			break
		}
	}

	unit := opts.Unit
	if c.forceUnit || unit == "" {
		unit = c.unit
	}
	if opts.Scale != nil {
		unit = opts.Scale.Unit()
	}

	dtype := c.dtype
	if opts.Scale != nil && dtype.IsNumeric() {
		dtype = Promote(dtype, opts.Scale.DType())
	}

	extra := make([]Axis, len(c.shape))
	for i, size := range c.shape {
		extra[i] = Axis{Name: fmt.Sprintf("dim_%d", i), Size: size}
	}
	attrDims, err := dims.WithDims(extra...)
	if err != nil {
		return nil, fmt.Errorf("infer %q: %w", key, err)
	}

	return &Attribute{
		key:     key,
		level:   level,
		dims:    attrDims,
		decoder: c.decoder,
		dtype:   dtype,
		shape:   c.shape,
		unit:    unit,
		scale:   opts.Scale,
		raw:     raw,
		extra:   opts.Extra,
		kind:    c.kind,
	}, nil
}

const (
	devDataPrefix = "DevData"
	devSourcesKey = "DevDataSources"
	unitKeySuffix = ".Unit"
)

// InferAll runs type inference over a raw attribute mapping. Device-trace
// groups are unpacked first: for each source i the seven DevData*{i} keys
// are consumed, the trace is inferred with the scale parsed from
// DevDataScaleI{i}, and the result is keyed by the DevDataName{i} value.
// Residual DevData* keys are dropped, and a "K.Unit" key whose base K
// exists is folded into K's unit instead of becoming its own entry.
func InferAll(dims *Dims, raw map[string]*Attribute) (map[string]*Attribute, error) {
	attrs := make(map[string]*Attribute, len(raw))
	for k, v := range raw {
		attrs[k] = v
	}

	result := make(map[string]*Attribute, len(attrs))

	if src, ok := attrs[devSourcesKey]; ok {
		delete(attrs, devSourcesKey)
		count, err := strconv.Atoi(rawString(src))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", devSourcesKey, err)
		}
		for i := 0; i < count; i++ {
			pop := func(field string) (*Attribute, error) {
				key := fmt.Sprintf("%s%s%d", devDataPrefix, field, i)
				a, ok := attrs[key]
				if !ok {
					return nil, fmt.Errorf("device trace %d: missing %s", i, key)
				}
				delete(attrs, key)
				return a, nil
			}

			trace, err := pop("Trace")
			if err != nil {
				return nil, err
			}
			for _, field := range []string{"Class", "Channel", "ScaleX"} {
				if _, err := pop(field); err != nil {
					return nil, err
				}
			}
			nameAttr, err := pop("Name")
			if err != nil {
				return nil, err
			}
			aliasAttr, err := pop("Alias")
			if err != nil {
				return nil, err
			}
			scaleAttr, err := pop("ScaleI")
			if err != nil {
				return nil, err
			}

			scale, err := ParseScale(rawString(scaleAttr))
			if err != nil {
				return nil, fmt.Errorf("device trace %d: %w", i, err)
			}

			name := rawString(nameAttr)
			inferred, err := Infer(name, trace.Level(), dims, trace.Raw(), InferOpts{
				Scale: scale,
				Extra: map[string]string{"name": name, "alias": rawString(aliasAttr)},
			})
			if err != nil {
				return nil, err
			}
			result[name] = inferred
		}
	}

	for key, attr := range attrs {
		if strings.HasPrefix(key, devDataPrefix) {
			continue
		}
		if base, ok := strings.CutSuffix(key, unitKeySuffix); ok {
			if _, exists := raw[base]; exists {
				continue
			}
		}

		var unit string
		if ua, ok := raw[key+unitKeySuffix]; ok {
			unit = rawString(ua)
		}
		inferred, err := Infer(key, attr.Level(), dims, attr.Raw(), InferOpts{Unit: unit})
		if err != nil {
			return nil, err
		}
		result[key] = inferred
	}
	return result, nil
}

func rawString(a *Attribute) string {
	s, _ := a.Raw().(string)
	return s
}
