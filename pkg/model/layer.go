package model

import (
	"fmt"

	"github.com/absa_transformer/pkg/tensor"
)

// FeedForward is the position-wise two-layer MLP of an encoder layer.
type FeedForward struct {
	Dense  *Linear // hidden -> intermediate
	Output *Linear // intermediate -> hidden
}

func newFeedForward(cfg *Config) (*FeedForward, error) {
	dense, err := newLinear(cfg.HiddenSize, cfg.IntermediateSize, "ffn.dense")
	if err != nil {
		return nil, err
	}
	output, err := newLinear(cfg.IntermediateSize, cfg.HiddenSize, "ffn.output")
	if err != nil {
		return nil, err
	}
	return &FeedForward{Dense: dense, Output: output}, nil
}

// Forward applies dense -> GELU -> output.
func (f *FeedForward) Forward(x *tensor.Tensor) (*tensor.Tensor, error) {
	h, err := f.Dense.Forward(x)
	if err != nil {
		return nil, err
	}
	h, err = tensor.GELU(h)
	if err != nil {
		return nil, err
	}
	return f.Output.Forward(h)
}

func (f *FeedForward) collectParams(prefix string, out map[string]*tensor.Tensor) {
	f.Dense.collectParams(prefix+".dense", out)
	f.Output.collectParams(prefix+".output", out)
}

// EncoderLayer is one post-norm transformer encoder block: self-attention
// with a residual connection and layer norm, then a feed-forward sublayer
// with its own residual and norm. The pooling head reuses this type for its
// per-branch refinement sublayers.
type EncoderLayer struct {
	Attention *MultiHeadAttention
	AttnNorm  *Norm
	FFN       *FeedForward
	OutNorm   *Norm
}

// NewEncoderLayer creates an encoder block for the given configuration.
func NewEncoderLayer(cfg *Config) (*EncoderLayer, error) {
	attn, err := newMultiHeadAttention(cfg)
	if err != nil {
		return nil, err
	}
	attnNorm, err := newNorm(cfg.HiddenSize, cfg.LayerNormEps, "attention.norm")
	if err != nil {
		return nil, err
	}
	ffn, err := newFeedForward(cfg)
	if err != nil {
		return nil, err
	}
	outNorm, err := newNorm(cfg.HiddenSize, cfg.LayerNormEps, "output.norm")
	if err != nil {
		return nil, err
	}
	return &EncoderLayer{Attention: attn, AttnNorm: attnNorm, FFN: ffn, OutNorm: outNorm}, nil
}

// Forward processes one example sequence (seqLen x hidden).
func (l *EncoderLayer) Forward(x *tensor.Tensor, mask []float64) (*tensor.Tensor, error) {
	attnOut, err := l.Attention.Forward(x, mask)
	if err != nil {
		return nil, fmt.Errorf("self-attention: %v", err)
	}
	res, err := tensor.Add(x, attnOut)
	if err != nil {
		return nil, err
	}
	h, err := l.AttnNorm.Forward(res)
	if err != nil {
		return nil, err
	}

	ffnOut, err := l.FFN.Forward(h)
	if err != nil {
		return nil, fmt.Errorf("feed-forward: %v", err)
	}
	res, err = tensor.Add(h, ffnOut)
	if err != nil {
		return nil, err
	}
	return l.OutNorm.Forward(res)
}

func (l *EncoderLayer) collectParams(prefix string, out map[string]*tensor.Tensor) {
	l.Attention.collectParams(prefix+".attention", out)
	l.AttnNorm.collectParams(prefix+".attention.norm", out)
	l.FFN.collectParams(prefix+".ffn", out)
	l.OutNorm.collectParams(prefix+".output.norm", out)
}
