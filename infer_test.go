package imset_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	imset "github.com/fluxkit/imset-gomlx"
)

func setDims(t *testing.T) *imset.Dims {
	t.Helper()
	d, err := imset.NewDims(true,
		imset.Axis{Name: imset.AxisBuffer, Size: 10},
		imset.Axis{Name: imset.AxisFrame, Size: 1},
	)
	require.NoError(t, err)
	return d
}

func TestInferClassification(t *testing.T) {
	dims := setDims(t)

	tests := []struct {
		name  string
		key   string
		raw   imset.Raw
		kind  imset.Kind
		dtype imset.DType
		unit  string
		value any
	}{
		{"integer", "AcquisitionCount", "42", imset.KindInteger, imset.Uint8, imset.Dimensionless, int64(42)},
		{"negative integer", "Delta", "-7", imset.KindInteger, imset.Int8, imset.Dimensionless, int64(-7)},
		{"wide integer", "FrameCount", "9000", imset.KindInteger, imset.Uint16, imset.Dimensionless, int64(9000)},
		{"float", "Gain", "0.25", imset.KindFloat, imset.Float64, imset.Dimensionless, 0.25},
		{"quantity integral", "ExposureTime", "9000 µs", imset.KindQuantity, imset.Uint16, "microsecond", int64(9000)},
		{"quantity float", "PixelSize", "6.5 µm", imset.KindQuantity, imset.Float32, "micrometer", 6.5},
		{"quantity zero float", "Delay", "0.000 µs", imset.KindQuantity, imset.Float32, "microsecond", 0.0},
		{"version string", "Software", "11.1.0.186", imset.KindText, imset.String, "", "11.1.0.186"},
		{"dashes", "Comment", "---", imset.KindText, imset.String, "", "---"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			attr, err := imset.Infer(tt.key, imset.FrameLevel, dims, tt.raw, imset.InferOpts{})
			require.NoError(t, err)
			assert.Equal(t, tt.kind, attr.Kind())
			assert.Equal(t, tt.dtype, attr.DType())
			assert.Equal(t, tt.unit, attr.Unit())

			value, err := attr.Value()
			require.NoError(t, err)
			assert.Equal(t, tt.value, value)
		})
	}
}

func TestInferTimestamp(t *testing.T) {
	dims := setDims(t)

	tests := []struct {
		raw      string
		expected time.Time
	}{
		{"2024-05-06T10:21:00,500000+02:00", time.Date(2024, 5, 6, 10, 21, 0, 500_000_000, time.UTC)},
		{"2025-02-12T11:55:25,594+01:00", time.Date(2025, 2, 12, 11, 55, 25, 594_000_000, time.UTC)},
		{"2024-05-06T10:21:00+02:00", time.Date(2024, 5, 6, 10, 21, 0, 0, time.UTC)},
		{"2024-05-06T10:21:00Z", time.Date(2024, 5, 6, 10, 21, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			attr, err := imset.Infer("Timestamp", imset.BufferLevel, dims, tt.raw, imset.InferOpts{})
			require.NoError(t, err)
			assert.Equal(t, imset.KindTimestamp, attr.Kind())
			assert.Equal(t, imset.Time, attr.DType())

			value, err := attr.Value()
			require.NoError(t, err)
			got, ok := value.(time.Time)
			require.True(t, ok)
			// The zone offset is discarded; only the wall clock survives.
			assert.True(t, got.Equal(tt.expected), "got %v, want %v", got, tt.expected)
		})
	}

	attr, err := imset.Infer("Timestamp", imset.BufferLevel, dims, "yesterday", imset.InferOpts{})
	require.NoError(t, err)
	_, err = attr.Value()
	assert.Error(t, err)
}

func TestInferArray(t *testing.T) {
	dims := setDims(t)
	raw, err := imset.FromFlat([]int32{1, 2, 3, 4}, 1, 4)
	require.NoError(t, err)

	attr, err := imset.Infer("ROI", imset.BufferLevel, dims, raw, imset.InferOpts{})
	require.NoError(t, err)
	assert.Equal(t, imset.KindArray, attr.Kind())
	assert.Equal(t, imset.Int32, attr.DType())
	assert.Equal(t, []int{4}, attr.Shape())
	assert.Equal(t, imset.Dimensionless, attr.Unit())
	assert.Equal(t, []string{"buffer", "dim_0"}, attr.Dims().Names())

	value, err := attr.Value()
	require.NoError(t, err)
	arr, ok := value.(*imset.Array)
	require.True(t, ok)
	assert.Equal(t, []int{4}, arr.Shape())
}

func TestInferSuppliedUnit(t *testing.T) {
	dims := setDims(t)

	attr, err := imset.Infer("Exposure", imset.FrameLevel, dims, "100", imset.InferOpts{Unit: "µs"})
	require.NoError(t, err)
	assert.Equal(t, "µs", attr.Unit())
	assert.Equal(t, imset.KindInteger, attr.Kind())

	// A unit parsed out of the value wins over the supplied one.
	attr, err = imset.Infer("Exposure", imset.FrameLevel, dims, "100 ms", imset.InferOpts{Unit: "µs"})
	require.NoError(t, err)
	assert.Equal(t, "millisecond", attr.Unit())
}

func TestInferWithScale(t *testing.T) {
	dims := setDims(t)
	scale := imset.NewScale(0.5, 0, "m/s", "velocity")

	attr, err := imset.Infer("U0", imset.FrameLevel, dims, "5", imset.InferOpts{Scale: scale})
	require.NoError(t, err)
	assert.Equal(t, "m/s", attr.Unit())
	assert.Equal(t, imset.Float32, attr.DType())

	decoded, err := attr.Decode("5")
	require.NoError(t, err)
	assert.Equal(t, 2.5, decoded)
}

func rawAttr(key string, level imset.Level, dims *imset.Dims, raw imset.Raw) *imset.Attribute {
	return imset.NewRawAttribute(key, level, dims, raw)
}

func deviceTraceFixture(t *testing.T, dims *imset.Dims) map[string]*imset.Attribute {
	t.Helper()
	trace0, err := imset.FromFlat([]float64{1, 2, 3}, 1, 3)
	require.NoError(t, err)

	raw := map[string]*imset.Attribute{
		"DevDataSources":  rawAttr("DevDataSources", imset.BufferLevel, dims, "2"),
		"DevDataTrace0":   rawAttr("DevDataTrace0", imset.FrameLevel, dims, trace0),
		"DevDataClass0":   rawAttr("DevDataClass0", imset.BufferLevel, dims, "1"),
		"DevDataChannel0": rawAttr("DevDataChannel0", imset.BufferLevel, dims, "0"),
		"DevDataScaleX0":  rawAttr("DevDataScaleX0", imset.BufferLevel, dims, "1\n0\ns\ntime"),
		"DevDataScaleI0":  rawAttr("DevDataScaleI0", imset.BufferLevel, dims, "2\n0\nV\nvoltage"),
		"DevDataName0":    rawAttr("DevDataName0", imset.BufferLevel, dims, "P_intensity"),
		"DevDataAlias0":   rawAttr("DevDataAlias0", imset.BufferLevel, dims, "laser power"),
		"DevDataTrace1":   rawAttr("DevDataTrace1", imset.FrameLevel, dims, "250"),
		"DevDataClass1":   rawAttr("DevDataClass1", imset.BufferLevel, dims, "1"),
		"DevDataChannel1": rawAttr("DevDataChannel1", imset.BufferLevel, dims, "1"),
		"DevDataScaleX1":  rawAttr("DevDataScaleX1", imset.BufferLevel, dims, "1\n0\ns\ntime"),
		"DevDataScaleI1":  rawAttr("DevDataScaleI1", imset.BufferLevel, dims, "1\n0\nK\ntemperature"),
		"DevDataName1":    rawAttr("DevDataName1", imset.BufferLevel, dims, "T_case"),
		"DevDataAlias1":   rawAttr("DevDataAlias1", imset.BufferLevel, dims, "case temperature"),
		"DevDataDump0":    rawAttr("DevDataDump0", imset.BufferLevel, dims, "junk"),
		"Exposure":        rawAttr("Exposure", imset.FrameLevel, dims, "100"),
		"Exposure.Unit":   rawAttr("Exposure.Unit", imset.FrameLevel, dims, "µs"),
		"Orphan.Unit":     rawAttr("Orphan.Unit", imset.BufferLevel, dims, "µs"),
		"Camera":          rawAttr("Camera", imset.BufferLevel, dims, "imager pro"),
	}
	return raw
}

func TestInferAll(t *testing.T) {
	dims := setDims(t)
	result, err := imset.InferAll(dims, deviceTraceFixture(t, dims))
	require.NoError(t, err)

	// Device traces are keyed by their declared names and nothing of the
	// DevData* packing survives.
	for key := range result {
		assert.NotContains(t, key, "DevData")
	}

	p, ok := result["P_intensity"]
	require.True(t, ok)
	assert.Equal(t, imset.KindArray, p.Kind())
	assert.Equal(t, imset.FrameLevel, p.Level())
	assert.Equal(t, "V", p.Unit())
	assert.Equal(t, imset.Float64, p.DType())
	assert.Equal(t, []int{3}, p.Shape())
	assert.Equal(t, map[string]string{"name": "P_intensity", "alias": "laser power"}, p.Extra())

	decoded, err := p.Decode(p.Raw())
	require.NoError(t, err)
	arr, ok := decoded.(*imset.Array)
	require.True(t, ok)
	assert.Equal(t, []float64{2, 4, 6}, arr.Flat())

	temp, ok := result["T_case"]
	require.True(t, ok)
	assert.Equal(t, imset.KindInteger, temp.Kind())
	assert.Equal(t, imset.Uint8, temp.DType())
	assert.Equal(t, "K", temp.Unit())

	// Sibling unit keys fold into their base attribute.
	exposure, ok := result["Exposure"]
	require.True(t, ok)
	assert.Equal(t, "µs", exposure.Unit())
	_, ok = result["Exposure.Unit"]
	assert.False(t, ok)

	// A unit key without a base stays a plain text attribute.
	orphan, ok := result["Orphan.Unit"]
	require.True(t, ok)
	assert.Equal(t, imset.KindText, orphan.Kind())

	camera, ok := result["Camera"]
	require.True(t, ok)
	assert.Equal(t, imset.String, camera.DType())
}

func TestInferAllDeterministic(t *testing.T) {
	dims := setDims(t)
	first, err := imset.InferAll(dims, deviceTraceFixture(t, dims))
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := imset.InferAll(dims, deviceTraceFixture(t, dims))
		require.NoError(t, err)
		require.Len(t, again, len(first))
		for key, attr := range first {
			other, ok := again[key]
			require.True(t, ok, key)
			assert.Equal(t, attr.DType(), other.DType(), key)
			assert.Equal(t, attr.Unit(), other.Unit(), key)
		}
	}
}

func TestInferAllErrors(t *testing.T) {
	dims := setDims(t)

	t.Run("bad source count", func(t *testing.T) {
		raw := map[string]*imset.Attribute{
			"DevDataSources": rawAttr("DevDataSources", imset.BufferLevel, dims, "many"),
		}
		_, err := imset.InferAll(dims, raw)
		assert.Error(t, err)
	})

	t.Run("missing trace field", func(t *testing.T) {
		raw := deviceTraceFixture(t, dims)
		delete(raw, "DevDataName1")
		_, err := imset.InferAll(dims, raw)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "DevDataName1")
	})

	t.Run("malformed trace scale", func(t *testing.T) {
		raw := deviceTraceFixture(t, dims)
		raw["DevDataScaleI0"] = rawAttr("DevDataScaleI0", imset.BufferLevel, dims, "1\n0")
		_, err := imset.InferAll(dims, raw)
		assert.ErrorIs(t, err, imset.ErrMalformedScaleRecord)
	})
}
