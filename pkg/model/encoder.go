package model

import (
	"fmt"

	"github.com/absa_transformer/pkg/tensor"
)

// Encoder is the transformer encoder stack. Its Forward returns the hidden
// states of every layer, not just the last one, so downstream heads can
// consume intermediate depths.
type Encoder struct {
	Embeddings *Embeddings
	Layers     []*EncoderLayer
}

func newEncoder(cfg *Config) (*Encoder, error) {
	emb, err := newEmbeddings(cfg)
	if err != nil {
		return nil, fmt.Errorf("embeddings: %v", err)
	}
	layers := make([]*EncoderLayer, cfg.NumLayers)
	for i := range layers {
		layers[i], err = NewEncoderLayer(cfg)
		if err != nil {
			return nil, fmt.Errorf("layer %d: %v", i, err)
		}
	}
	return &Encoder{Embeddings: emb, Layers: layers}, nil
}

// Forward encodes one example and returns the full layer stack, ordered from
// the first (lowest) to the last (topmost) layer.
func (e *Encoder) Forward(inputIDs, segmentIDs []int, mask []float64) ([]*tensor.Tensor, error) {
	h, err := e.Embeddings.Forward(inputIDs, segmentIDs)
	if err != nil {
		return nil, fmt.Errorf("embeddings: %v", err)
	}

	stack := make([]*tensor.Tensor, 0, len(e.Layers))
	for i, layer := range e.Layers {
		h, err = layer.Forward(h, mask)
		if err != nil {
			return nil, fmt.Errorf("encoder layer %d: %v", i, err)
		}
		stack = append(stack, h)
	}
	return stack, nil
}

func (e *Encoder) collectParams(prefix string, out map[string]*tensor.Tensor) {
	e.Embeddings.collectParams(prefix+".embeddings", out)
	for i, layer := range e.Layers {
		layer.collectParams(fmt.Sprintf("%s.layer.%d", prefix, i), out)
	}
}
