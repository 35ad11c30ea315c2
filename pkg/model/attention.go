package model

import (
	"fmt"
	"math"

	"github.com/absa_transformer/pkg/tensor"
)

// MultiHeadAttention implements scaled dot-product self-attention over one
// example sequence with an additive padding mask on key positions.
type MultiHeadAttention struct {
	NumHeads int
	HeadDim  int
	Query    *Linear
	Key      *Linear
	Value    *Linear
	Output   *Linear
}

func newMultiHeadAttention(cfg *Config) (*MultiHeadAttention, error) {
	q, err := newLinear(cfg.HiddenSize, cfg.HiddenSize, "attention.query")
	if err != nil {
		return nil, err
	}
	k, err := newLinear(cfg.HiddenSize, cfg.HiddenSize, "attention.key")
	if err != nil {
		return nil, err
	}
	v, err := newLinear(cfg.HiddenSize, cfg.HiddenSize, "attention.value")
	if err != nil {
		return nil, err
	}
	o, err := newLinear(cfg.HiddenSize, cfg.HiddenSize, "attention.output")
	if err != nil {
		return nil, err
	}
	return &MultiHeadAttention{
		NumHeads: cfg.NumHeads,
		HeadDim:  cfg.HiddenSize / cfg.NumHeads,
		Query:    q,
		Key:      k,
		Value:    v,
		Output:   o,
	}, nil
}

// Forward attends x (seqLen x hidden) to itself. mask has one entry per
// position; positions with mask 0 are excluded as attention keys.
func (a *MultiHeadAttention) Forward(x *tensor.Tensor, mask []float64) (*tensor.Tensor, error) {
	if len(mask) != x.Rows() {
		return nil, fmt.Errorf("mask length %d doesn't match sequence length %d", len(mask), x.Rows())
	}

	q, err := a.Query.Forward(x)
	if err != nil {
		return nil, fmt.Errorf("query projection: %v", err)
	}
	k, err := a.Key.Forward(x)
	if err != nil {
		return nil, fmt.Errorf("key projection: %v", err)
	}
	v, err := a.Value.Forward(x)
	if err != nil {
		return nil, fmt.Errorf("value projection: %v", err)
	}

	scale := 1.0 / math.Sqrt(float64(a.HeadDim))
	heads := make([]*tensor.Tensor, 0, a.NumHeads)
	for h := 0; h < a.NumHeads; h++ {
		start := h * a.HeadDim
		qh, err := tensor.SliceCols(q, start, a.HeadDim)
		if err != nil {
			return nil, err
		}
		kh, err := tensor.SliceCols(k, start, a.HeadDim)
		if err != nil {
			return nil, err
		}
		vh, err := tensor.SliceCols(v, start, a.HeadDim)
		if err != nil {
			return nil, err
		}

		kt, err := tensor.Transpose(kh)
		if err != nil {
			return nil, err
		}
		scores, err := tensor.MatMul(qh, kt)
		if err != nil {
			return nil, err
		}
		scores, err = tensor.ScalarMultiply(scores, scale)
		if err != nil {
			return nil, err
		}
		scores, err = tensor.ApplyAttentionMask(scores, mask)
		if err != nil {
			return nil, err
		}
		weights, err := tensor.Softmax(scores)
		if err != nil {
			return nil, err
		}
		ctx, err := tensor.MatMul(weights, vh)
		if err != nil {
			return nil, err
		}
		heads = append(heads, ctx)
	}

	var merged *tensor.Tensor
	if len(heads) == 1 {
		merged = heads[0]
	} else {
		merged, err = tensor.ConcatCols(heads)
		if err != nil {
			return nil, err
		}
	}
	return a.Output.Forward(merged)
}

func (a *MultiHeadAttention) collectParams(prefix string, out map[string]*tensor.Tensor) {
	a.Query.collectParams(prefix+".query", out)
	a.Key.collectParams(prefix+".key", out)
	a.Value.collectParams(prefix+".value", out)
	a.Output.collectParams(prefix+".output", out)
}
