package imset_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	imset "github.com/fluxkit/imset-gomlx"
)

func TestFromFlat(t *testing.T) {
	arr, err := imset.FromFlat([]uint16{1, 2, 3, 4, 5, 6}, 2, 3)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 3}, arr.Shape())
	assert.Equal(t, imset.Uint16, arr.DType())
	assert.Equal(t, 6, arr.Size())

	_, err = imset.FromFlat([]uint16{1, 2, 3}, 2, 3)
	assert.Error(t, err)
}

func TestArraySqueeze(t *testing.T) {
	arr, err := imset.FromFlat([]int32{1, 2, 3, 4}, 1, 4, 1)
	require.NoError(t, err)
	assert.Equal(t, []int{4}, arr.Squeeze().Shape())

	kept, err := arr.SqueezeAxes(0)
	require.NoError(t, err)
	assert.Equal(t, []int{4, 1}, kept.Shape())

	_, err = arr.SqueezeAxes(1)
	assert.Error(t, err, "axis of length 4 must not squeeze")
	_, err = arr.SqueezeAxes(7)
	assert.Error(t, err)
}

func TestArrayGather(t *testing.T) {
	arr, err := imset.FromFlat([]uint16{
		0, 1, 2, 3,
		10, 11, 12, 13,
		20, 21, 22, 23,
	}, 3, 4)
	require.NoError(t, err)

	sub, err := arr.Gather([]imset.Range{
		{Start: 0, Stop: 3, Step: 2},
		{Start: 1, Stop: 4, Step: 1},
	})
	require.NoError(t, err)
	assert.Equal(t, []int{2, 3}, sub.Shape())
	assert.Equal(t, []uint16{1, 2, 3, 21, 22, 23}, sub.Flat())

	reversed, err := arr.Gather([]imset.Range{
		{Start: 0, Stop: 1, Step: 1},
		{Start: 3, Stop: -1, Step: -1},
	})
	require.NoError(t, err)
	assert.Equal(t, []uint16{3, 2, 1, 0}, reversed.Flat())

	_, err = arr.Gather([]imset.Range{{Start: 0, Stop: 1, Step: 1}})
	assert.Error(t, err)
}

func TestArrayTensor(t *testing.T) {
	arr, err := imset.FromFlat([]float32{1, 2, 3, 4, 5, 6}, 2, 3)
	require.NoError(t, err)

	tensor, err := arr.Tensor()
	require.NoError(t, err)
	assert.Equal(t, []int{2, 3}, tensor.Shape().Dimensions)

	text, err := imset.FromFlat([]string{"a"}, 1)
	require.NoError(t, err)
	_, err = text.Tensor()
	assert.Error(t, err)
}
