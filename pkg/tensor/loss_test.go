package tensor

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCrossEntropyUniformLogits(t *testing.T) {
	logits := paramTensor(t, [][]float64{{0, 0, 0}})
	loss, err := CrossEntropyLoss(logits, []int{0})
	require.NoError(t, err)

	val, err := loss.Item()
	require.NoError(t, err)
	assert.InDelta(t, math.Log(3), val, 1e-12)
}

func TestCrossEntropyMeansOverCountedRows(t *testing.T) {
	logits := paramTensor(t, [][]float64{{0, 0, 0}, {0, 0, 0}})
	loss, err := CrossEntropyLoss(logits, []int{0, 1})
	require.NoError(t, err)

	val, err := loss.Item()
	require.NoError(t, err)
	assert.InDelta(t, math.Log(3), val, 1e-12)
}

func TestCrossEntropyIgnoredRowsContributeNothing(t *testing.T) {
	logits := paramTensor(t, [][]float64{{0, 0, 0}, {9, 9, 9}})
	loss, err := CrossEntropyLoss(logits, []int{0, IgnoreIndex})
	require.NoError(t, err)

	val, err := loss.Item()
	require.NoError(t, err)
	assert.InDelta(t, math.Log(3), val, 1e-12)

	require.NoError(t, loss.Backward())
	// Row 0: softmax - one_hot over a single counted row.
	assert.InDelta(t, 1.0/3-1.0, logits.Grad.Data[0][0], 1e-12)
	assert.InDelta(t, 1.0/3, logits.Grad.Data[0][1], 1e-12)
	// The ignored row gets no gradient at all.
	for j := 0; j < 3; j++ {
		assert.Equal(t, 0.0, logits.Grad.Data[1][j])
	}
}

func TestCrossEntropyAllIgnoredIsZero(t *testing.T) {
	logits := paramTensor(t, [][]float64{{1, 2, 3}, {4, 5, 6}})
	loss, err := CrossEntropyLoss(logits, []int{IgnoreIndex, IgnoreIndex})
	require.NoError(t, err)

	val, err := loss.Item()
	require.NoError(t, err)
	assert.Equal(t, 0.0, val)

	require.NoError(t, loss.Backward())
	for i := 0; i < 2; i++ {
		for j := 0; j < 3; j++ {
			assert.Equal(t, 0.0, logits.Grad.Data[i][j])
		}
	}
}

func TestCrossEntropyRejectsBadTargets(t *testing.T) {
	logits := paramTensor(t, [][]float64{{0, 0, 0}})

	_, err := CrossEntropyLoss(logits, []int{3})
	assert.Error(t, err)
	_, err = CrossEntropyLoss(logits, []int{-2})
	assert.Error(t, err)
	_, err = CrossEntropyLoss(logits, []int{0, 1})
	assert.Error(t, err)
}
