package train

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/absa_transformer/pkg/tensor"
)

func namedParam(t *testing.T, value float64) *tensor.Tensor {
	t.Helper()
	m, err := tensor.NewMatrixFrom([][]float64{{value}})
	require.NoError(t, err)
	p, err := tensor.NewTensor(m, &tensor.TensorConfig{RequiresGrad: true})
	require.NoError(t, err)
	return p
}

func TestBuildParameterGroups(t *testing.T) {
	params := map[string]*tensor.Tensor{
		"encoder.layer.0.attention.query.weight": namedParam(t, 1),
		"encoder.layer.0.attention.query.bias":   namedParam(t, 1),
		"encoder.layer.0.attention.norm.gamma":   namedParam(t, 1),
		"head.pooler.dense.weight":               namedParam(t, 1),
		"head.classifier.weight":                 namedParam(t, 1),
	}

	groups := BuildParameterGroups(params)
	require.Len(t, groups, 2)
	decay, noDecay := groups[0], groups[1]

	assert.Equal(t, 0.01, decay.WeightDecay)
	assert.Contains(t, decay.Params, "encoder.layer.0.attention.query.weight")
	assert.Contains(t, decay.Params, "head.classifier.weight")

	assert.Equal(t, 0.0, noDecay.WeightDecay)
	assert.Contains(t, noDecay.Params, "encoder.layer.0.attention.query.bias")
	assert.Contains(t, noDecay.Params, "encoder.layer.0.attention.norm.gamma")

	// Pooler parameters are left out entirely.
	assert.NotContains(t, decay.Params, "head.pooler.dense.weight")
	assert.NotContains(t, noDecay.Params, "head.pooler.dense.weight")
}

func TestAdamStepMovesAgainstGradient(t *testing.T) {
	p := namedParam(t, 1.0)
	p.Grad.Data[0][0] = 0.5

	opt := NewAdam(0.1, []*ParameterGroup{{
		Params:      map[string]*tensor.Tensor{"w": p},
		WeightDecay: 0,
	}})
	opt.Step()

	assert.Less(t, p.Data.Data[0][0], 1.0)
}

func TestAdamSkipsParametersWithoutGradient(t *testing.T) {
	m, err := tensor.NewMatrixFrom([][]float64{{2.0}})
	require.NoError(t, err)
	frozen, err := tensor.NewTensor(m, nil)
	require.NoError(t, err)

	opt := NewAdam(0.1, []*ParameterGroup{{
		Params: map[string]*tensor.Tensor{"frozen": frozen},
	}})
	opt.Step()

	assert.Equal(t, 2.0, frozen.Data.Data[0][0])
}

func TestAdamWeightDecayPullsTowardZero(t *testing.T) {
	// Zero gradient: with decay the parameter still shrinks, without it
	// the parameter stays put.
	decayed := namedParam(t, 1.0)
	plain := namedParam(t, 1.0)

	opt := NewAdam(0.1, []*ParameterGroup{
		{Params: map[string]*tensor.Tensor{"a": decayed}, WeightDecay: 0.01},
		{Params: map[string]*tensor.Tensor{"b": plain}, WeightDecay: 0},
	})
	opt.Step()

	assert.Less(t, decayed.Data.Data[0][0], 1.0)
	assert.Equal(t, 1.0, plain.Data.Data[0][0])
}

func TestZeroGradClearsEveryGroup(t *testing.T) {
	p := namedParam(t, 1.0)
	p.Grad.Data[0][0] = 3.0

	opt := NewAdam(0.1, []*ParameterGroup{{
		Params: map[string]*tensor.Tensor{"w": p},
	}})
	opt.ZeroGrad()
	assert.Equal(t, 0.0, p.Grad.Data[0][0])
}
