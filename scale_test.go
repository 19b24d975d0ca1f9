package imset_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	imset "github.com/fluxkit/imset-gomlx"
)

func TestNewScaleNarrowing(t *testing.T) {
	tests := []struct {
		name          string
		slope, offset float64
		expected      imset.DType
	}{
		{"identity", 1, 0, imset.Uint8},
		{"small ints", 16, 300, imset.Uint16},
		{"negative offset", 2, -5, imset.Int16},
		{"float slope", 0.5, 0, imset.Float32},
		{"wide float", 0.1, 0, imset.Float64},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := imset.NewScale(tt.slope, tt.offset, "", "")
			assert.Equal(t, tt.expected, s.DType())
		})
	}
}

func TestScaleIdentity(t *testing.T) {
	assert.True(t, imset.NewScale(1, 0, "counts", "intensity").Identity())
	assert.False(t, imset.NewScale(1, 2, "", "").Identity())
	assert.False(t, imset.NewScale(0.5, 0, "", "").Identity())
}

func TestParseScale(t *testing.T) {
	s, err := imset.ParseScale("0.0061035\n0\nm/s\nvelocity")
	require.NoError(t, err)
	assert.Equal(t, 0.0061035, s.Slope())
	assert.Equal(t, 0.0, s.Offset())
	assert.Equal(t, "m/s", s.Unit())
	assert.Equal(t, "velocity", s.Description())
	assert.Equal(t, "velocity [m/s]", s.Label())

	// The rendered record parses back to the same scale.
	again, err := imset.ParseScale(s.Record())
	require.NoError(t, err)
	assert.Equal(t, s.Slope(), again.Slope())
	assert.Equal(t, s.Unit(), again.Unit())
}

func TestParseScaleMalformed(t *testing.T) {
	for _, record := range []string{
		"",
		"1\n0",
		"1\n0\ncounts",
		"abc\n0\ncounts\nintensity",
		"1\nxyz\ncounts\nintensity",
	} {
		_, err := imset.ParseScale(record)
		assert.ErrorIs(t, err, imset.ErrMalformedScaleRecord, "record %q", record)
	}
}

func TestScaleApply(t *testing.T) {
	arr, err := imset.FromFlat([]uint16{100, 200, 300}, 3)
	require.NoError(t, err)

	t.Run("identity returns input", func(t *testing.T) {
		out := imset.NewScale(1, 0, "counts", "").Apply(arr)
		assert.Same(t, arr, out)
	})

	t.Run("integer scale keeps integer dtype", func(t *testing.T) {
		out := imset.NewScale(2, 1, "", "").Apply(arr)
		assert.Equal(t, imset.Uint16, out.DType())
		assert.Equal(t, []uint16{201, 401, 601}, out.Flat())
	})

	t.Run("float scale promotes", func(t *testing.T) {
		out := imset.NewScale(0.5, 0, "", "").Apply(arr)
		assert.Equal(t, imset.Float32, out.DType())
		assert.Equal(t, []float32{50, 100, 150}, out.Flat())
	})

	t.Run("non-numeric passes through", func(t *testing.T) {
		text, err := imset.FromFlat([]string{"a", "b"}, 2)
		require.NoError(t, err)
		out := imset.NewScale(2, 0, "", "").Apply(text)
		assert.Same(t, text, out)
	})
}

func TestScaleApplyScalar(t *testing.T) {
	s := imset.NewScale(2.5, -1, "V", "")
	assert.Equal(t, 4.0, s.ApplyScalar(2))
}
