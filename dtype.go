package imset

import (
	"fmt"
	"math"
	"strconv"
)

// DType identifies the element type of an Array or attribute value.
// The numeric kinds mirror the little-endian numpy-style codes used in
// vendor manifests ("<u2", "<f4", ...); Time and String cover decoded
// attribute values and have no wire code.
type DType uint8

const (
	Invalid DType = iota
	Bool
	Uint8
	Uint16
	Uint32
	Uint64
	Int8
	Int16
	Int32
	Int64
	Float32
	Float64
	// Time is a microsecond-precision wall-clock instant.
	Time
	// String is variable-length text.
	String
)

func (d DType) String() string {
	switch d {
	case Bool:
		return "bool"
	case Uint8:
		return "uint8"
	case Uint16:
		return "uint16"
	case Uint32:
		return "uint32"
	case Uint64:
		return "uint64"
	case Int8:
		return "int8"
	case Int16:
		return "int16"
	case Int32:
		return "int32"
	case Int64:
		return "int64"
	case Float32:
		return "float32"
	case Float64:
		return "float64"
	case Time:
		return "time"
	case String:
		return "string"
	default:
		return "invalid"
	}
}

// Size returns the element size in bytes for wire-encodable dtypes, 0 otherwise.
func (d DType) Size() int {
	switch d {
	case Bool, Uint8, Int8:
		return 1
	case Uint16, Int16:
		return 2
	case Uint32, Int32, Float32:
		return 4
	case Uint64, Int64, Float64:
		return 8
	default:
		return 0
	}
}

func (d DType) IsUnsigned() bool { return d >= Uint8 && d <= Uint64 }
func (d DType) IsSigned() bool   { return d >= Int8 && d <= Int64 }
func (d DType) IsInteger() bool  { return d.IsUnsigned() || d.IsSigned() }
func (d DType) IsFloat() bool    { return d == Float32 || d == Float64 }
func (d DType) IsNumeric() bool  { return d == Bool || d.IsInteger() || d.IsFloat() }

// ParseDType takes a numpy-style string like "<f4", "|b1", "<i8",
// and returns the matching DType. Big-endian (>) types are rejected.
func ParseDType(s string) (DType, error) {
	if len(s) < 3 {
		return Invalid, fmt.Errorf("invalid dtype: %s", s)
	}

	endian := s[0]
	if endian == '>' {
		return Invalid, fmt.Errorf("big-endian types are unsupported: %s", s)
	}

	kind := s[1]
	size, err := strconv.Atoi(s[2:])
	if err != nil {
		return Invalid, fmt.Errorf("invalid size in dtype: %s", s)
	}

	switch {
	case kind == 'b' && size == 1:
		return Bool, nil
	case kind == 'u':
		switch size {
		case 1:
			return Uint8, nil
		case 2:
			return Uint16, nil
		case 4:
			return Uint32, nil
		case 8:
			return Uint64, nil
		}
	case kind == 'i':
		switch size {
		case 1:
			return Int8, nil
		case 2:
			return Int16, nil
		case 4:
			return Int32, nil
		case 8:
			return Int64, nil
		}
	case kind == 'f':
		switch size {
		case 4:
			return Float32, nil
		case 8:
			return Float64, nil
		}
	}
	return Invalid, fmt.Errorf("unsupported dtype: %s", s)
}

// Code returns the numpy-style wire code for d, or "" if d has none.
func (d DType) Code() string {
	switch d {
	case Bool:
		return "|b1"
	case Uint8:
		return "<u1"
	case Uint16:
		return "<u2"
	case Uint32:
		return "<u4"
	case Uint64:
		return "<u8"
	case Int8:
		return "<i1"
	case Int16:
		return "<i2"
	case Int32:
		return "<i4"
	case Int64:
		return "<i8"
	case Float32:
		return "<f4"
	case Float64:
		return "<f8"
	default:
		return ""
	}
}

// minScalarInt returns the narrowest integer dtype able to hold v:
// unsigned for non-negative values, signed otherwise.
func minScalarInt(v int64) DType {
	if v >= 0 {
		switch {
		case v <= math.MaxUint8:
			return Uint8
		case v <= math.MaxUint16:
			return Uint16
		case v <= math.MaxUint32:
			return Uint32
		default:
			return Uint64
		}
	}
	switch {
	case v >= math.MinInt8:
		return Int8
	case v >= math.MinInt16:
		return Int16
	case v >= math.MinInt32:
		return Int32
	default:
		return Int64
	}
}

// minScalarFloat returns Float32 when v survives the round trip through
// single precision, Float64 otherwise. There is no half-precision kind:
// float32 is the narrowest float this package produces.
func minScalarFloat(v float64) DType {
	if float64(float32(v)) == v || math.IsNaN(v) {
		return Float32
	}
	return Float64
}

func intSize(d DType) int {
	switch d {
	case Uint8, Int8:
		return 1
	case Uint16, Int16:
		return 2
	case Uint32, Int32:
		return 4
	case Uint64, Int64:
		return 8
	}
	return 0
}

func unsignedOfSize(n int) DType {
	switch n {
	case 1:
		return Uint8
	case 2:
		return Uint16
	case 4:
		return Uint32
	default:
		return Uint64
	}
}

func signedOfSize(n int) DType {
	switch n {
	case 1:
		return Int8
	case 2:
		return Int16
	case 4:
		return Int32
	default:
		return Int64
	}
}

// Promote returns the smallest dtype to which both a and b can be cast
// without loss, following the usual numpy promotion rules within the
// dtype set of this package. String absorbs everything, Time only
// promotes with itself and Bool-like trivia never reach it in practice.
func Promote(a, b DType) DType {
	if a == b {
		return a
	}
	if a == String || b == String {
		return String
	}
	if a == Time || b == Time {
		return Time
	}
	if a == Bool {
		return b
	}
	if b == Bool {
		return a
	}

	if a.IsFloat() || b.IsFloat() {
		if a == Float64 || b == Float64 {
			return Float64
		}
		// Float32 against an integer kind: small ints fit, wide ints do not.
		var i DType
		switch {
		case a == Float32:
			i = b
		case b == Float32:
			i = a
		default:
			return Float64
		}
		if intSize(i) <= 2 {
			return Float32
		}
		return Float64
	}

	// Both integers.
	switch {
	case a.IsUnsigned() && b.IsUnsigned():
		return unsignedOfSize(maxInt(intSize(a), intSize(b)))
	case a.IsSigned() && b.IsSigned():
		return signedOfSize(maxInt(intSize(a), intSize(b)))
	default:
		u, s := a, b
		if b.IsUnsigned() {
			u, s = b, a
		}
		if intSize(s) > intSize(u) {
			return s
		}
		if intSize(u) >= 8 {
			// uint64 cannot widen into a signed integer.
			return Float64
		}
		return signedOfSize(intSize(u) * 2)
	}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
