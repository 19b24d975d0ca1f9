// Package blobset serves image sets stored in any gocloud.dev blob
// bucket as an imset.Source.
//
// The layout under the bucket root is:
//
//	set.json                   manifest (title, counts, components)
//	b{i}/attrs.json            buffer-scoped attributes, optional
//	b{i}/f{j}/attrs.json       frame-scoped attributes, optional
//	b{i}/f{j}/{comp}/z{k}      one raw 2D plane per z index
//
// Planes are little-endian and optionally zstd-compressed set-wide.
package blobset

import (
	"encoding/json"
	"fmt"

	"github.com/fluxkit/imset-gomlx"
)

// Manifest is the parsed set.json.
type Manifest struct {
	Title      string            `json:"title"`
	Buffers    int               `json:"buffers"`
	Frames     int               `json:"frames"`
	Components []ComponentConfig `json:"components"`
	// Compressor is empty for raw planes or "zstd".
	Compressor string `json:"compressor,omitempty"`
}

// ComponentConfig describes one image component shared by every frame.
type ComponentConfig struct {
	Name   string      `json:"name"`
	Planes int         `json:"planes"`
	Height int         `json:"height"`
	Width  int         `json:"width"`
	DType  string      `json:"dtype"`
	Scale  ScaleConfig `json:"scale"`
}

// ScaleConfig is the affine calibration stored per component.
type ScaleConfig struct {
	Slope       float64 `json:"slope"`
	Offset      float64 `json:"offset"`
	Unit        string  `json:"unit,omitempty"`
	Description string  `json:"description,omitempty"`
}

func (m *Manifest) validate() error {
	if m.Buffers <= 0 {
		return fmt.Errorf("manifest declares %d buffers", m.Buffers)
	}
	if m.Frames <= 0 {
		return fmt.Errorf("manifest declares %d frames", m.Frames)
	}
	if len(m.Components) == 0 {
		return fmt.Errorf("manifest declares no components")
	}
	switch m.Compressor {
	case "", "zstd":
	default:
		return fmt.Errorf("unsupported compressor: %s", m.Compressor)
	}
	for _, c := range m.Components {
		if c.Planes <= 0 || c.Height <= 0 || c.Width <= 0 {
			return fmt.Errorf("component %s has empty geometry %dx%dx%d", c.Name, c.Planes, c.Height, c.Width)
		}
		if _, err := imset.ParseDType(c.DType); err != nil {
			return fmt.Errorf("component %s: %w", c.Name, err)
		}
	}
	return nil
}

// attrValue is one attrs.json entry: either a bare JSON string or an
// inline numeric array with shape, dtype and flat data.
type attrValue struct {
	text  string
	array *imset.Array
}

type attrArrayJSON struct {
	Shape []int     `json:"shape"`
	DType string    `json:"dtype"`
	Data  []float64 `json:"data"`
}

func (v *attrValue) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		return json.Unmarshal(b, &v.text)
	}
	var a attrArrayJSON
	if err := json.Unmarshal(b, &a); err != nil {
		return err
	}
	dtype, err := imset.ParseDType(a.DType)
	if err != nil {
		return err
	}
	arr, err := fromFloats(dtype, a.Shape, a.Data)
	if err != nil {
		return err
	}
	v.array = arr
	return nil
}

// fromFloats converts JSON numbers into a typed array. JSON has no
// integer type of its own, so integral dtypes are narrowed from float64.
func fromFloats(dtype imset.DType, shape []int, data []float64) (*imset.Array, error) {
	n := 1
	for _, d := range shape {
		n *= d
	}
	if n != len(data) {
		return nil, fmt.Errorf("attribute array has %d values, shape %v wants %d", len(data), shape, n)
	}
	var flat any
	switch dtype {
	case imset.Uint8:
		out := make([]uint8, n)
		for i, f := range data {
			out[i] = uint8(f)
		}
		flat = out
	case imset.Uint16:
		out := make([]uint16, n)
		for i, f := range data {
			out[i] = uint16(f)
		}
		flat = out
	case imset.Uint32:
		out := make([]uint32, n)
		for i, f := range data {
			out[i] = uint32(f)
		}
		flat = out
	case imset.Uint64:
		out := make([]uint64, n)
		for i, f := range data {
			out[i] = uint64(f)
		}
		flat = out
	case imset.Int8:
		out := make([]int8, n)
		for i, f := range data {
			out[i] = int8(f)
		}
		flat = out
	case imset.Int16:
		out := make([]int16, n)
		for i, f := range data {
			out[i] = int16(f)
		}
		flat = out
	case imset.Int32:
		out := make([]int32, n)
		for i, f := range data {
			out[i] = int32(f)
		}
		flat = out
	case imset.Int64:
		out := make([]int64, n)
		for i, f := range data {
			out[i] = int64(f)
		}
		flat = out
	case imset.Float32:
		out := make([]float32, n)
		for i, f := range data {
			out[i] = float32(f)
		}
		flat = out
	case imset.Float64:
		out := append([]float64(nil), data...)
		flat = out
	default:
		return nil, fmt.Errorf("attribute arrays cannot hold dtype %s", dtype)
	}
	return imset.FromFlat(flat, shape...)
}
