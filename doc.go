// Package imset exposes multi-buffer, multi-frame scientific image sets
// as typed, named, lazily materialized N-dimensional arrays.
//
// A Source yields buffers of frames; each frame carries image components
// (planes of pixels with a linear scale) and string-encoded metadata.
// Open wraps a Source in a SetAccessor that names the five canonical
// axes (buffer, frame, z, y, x), infers attribute types from the raw
// metadata text, and serves windowed reads via GetData and GetAttribute.
// OpenDataset builds lazy Variable views on top, declaring every shape
// and dtype without reading a single pixel.
//
// The blobset subpackage provides a Source backed by any gocloud.dev
// blob bucket.
package imset
