package imset

import "errors"

var (
	// ErrDuplicateAxis is returned when an axis name is declared twice,
	// either at construction or when extending a Dims.
	ErrDuplicateAxis = errors.New("duplicate axis")

	// ErrUnknownAxis is returned when an index key names an axis the
	// registry does not declare.
	ErrUnknownAxis = errors.New("unknown axis")

	// ErrKeyCountMismatch is returned when a non-empty set of index keys
	// does not match the number of active axes.
	ErrKeyCountMismatch = errors.New("key count mismatch")

	// ErrMalformedScaleRecord is returned when a scale record string has
	// fewer than its four newline-delimited fields.
	ErrMalformedScaleRecord = errors.New("malformed scale record")

	// ErrClosed is returned by any read operation issued after Close.
	ErrClosed = errors.New("set accessor is closed")

	ErrUnknownComponent = errors.New("unknown component")
	ErrUnknownAttribute = errors.New("unknown attribute")
)
