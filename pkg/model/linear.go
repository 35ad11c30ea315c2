package model

import (
	"github.com/absa_transformer/pkg/tensor"
)

// Linear is a dense layer: y = x*W + b.
type Linear struct {
	Weight *tensor.Tensor
	Bias   *tensor.Tensor
}

func newLinear(in, out int, name string) (*Linear, error) {
	w, err := tensor.NewRandomTensor(in, out, &tensor.TensorConfig{RequiresGrad: true, Name: name + ".weight"})
	if err != nil {
		return nil, err
	}
	b, err := tensor.NewZerosTensor(1, out, &tensor.TensorConfig{RequiresGrad: true, Name: name + ".bias"})
	if err != nil {
		return nil, err
	}
	return &Linear{Weight: w, Bias: b}, nil
}

// Forward applies the affine transform to every row of x.
func (l *Linear) Forward(x *tensor.Tensor) (*tensor.Tensor, error) {
	h, err := tensor.MatMul(x, l.Weight)
	if err != nil {
		return nil, err
	}
	return tensor.AddRowVector(h, l.Bias)
}

func (l *Linear) collectParams(prefix string, out map[string]*tensor.Tensor) {
	out[prefix+".weight"] = l.Weight
	out[prefix+".bias"] = l.Bias
}

// Norm holds the learned scale and shift of a layer normalization.
type Norm struct {
	Gamma *tensor.Tensor
	Beta  *tensor.Tensor
	Eps   float64
}

func newNorm(dim int, eps float64, name string) (*Norm, error) {
	gammaData, err := tensor.NewMatrix(1, dim)
	if err != nil {
		return nil, err
	}
	for j := 0; j < dim; j++ {
		gammaData.Data[0][j] = 1.0
	}
	gamma, err := tensor.NewTensor(gammaData, &tensor.TensorConfig{RequiresGrad: true, Name: name + ".gamma"})
	if err != nil {
		return nil, err
	}
	beta, err := tensor.NewZerosTensor(1, dim, &tensor.TensorConfig{RequiresGrad: true, Name: name + ".beta"})
	if err != nil {
		return nil, err
	}
	return &Norm{Gamma: gamma, Beta: beta, Eps: eps}, nil
}

// Forward normalizes each row of x.
func (n *Norm) Forward(x *tensor.Tensor) (*tensor.Tensor, error) {
	return tensor.LayerNorm(x, n.Gamma, n.Beta, n.Eps)
}

func (n *Norm) collectParams(prefix string, out map[string]*tensor.Tensor) {
	out[prefix+".gamma"] = n.Gamma
	out[prefix+".beta"] = n.Beta
}
