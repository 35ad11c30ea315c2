package model

import (
	"github.com/absa_transformer/pkg/tensor"
)

// Pooler reduces a sequence output to a single vector by taking the
// first-token hidden state through a dense layer with tanh.
type Pooler struct {
	Dense *Linear
}

func newPooler(cfg *Config) (*Pooler, error) {
	dense, err := newLinear(cfg.HiddenSize, cfg.HiddenSize, "pooler.dense")
	if err != nil {
		return nil, err
	}
	return &Pooler{Dense: dense}, nil
}

// Forward pools one sequence (seqLen x hidden) to a 1 x hidden row.
func (p *Pooler) Forward(seq *tensor.Tensor) (*tensor.Tensor, error) {
	first, err := tensor.SliceRows(seq, 0, 1)
	if err != nil {
		return nil, err
	}
	h, err := p.Dense.Forward(first)
	if err != nil {
		return nil, err
	}
	return tensor.Tanh(h)
}

func (p *Pooler) collectParams(prefix string, out map[string]*tensor.Tensor) {
	p.Dense.collectParams(prefix+".dense", out)
}
