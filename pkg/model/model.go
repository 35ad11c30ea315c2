// Package model implements a trainable transformer encoder with a
// multi-layer pooling head for aspect sentiment classification.
package model

import (
	"fmt"

	"github.com/absa_transformer/pkg/tensor"
)

// BranchCount is the number of encoder depths the pooling head consumes.
const BranchCount = 4

// DefaultNumLabels covers the three sentiment polarities.
const DefaultNumLabels = 3

// Model couples the encoder stack with the multi-layer pooling head.
type Model struct {
	Config    *Config
	NumLabels int
	Encoder   *Encoder
	Head      *MultiLayerHead
}

// New builds a randomly initialized model. Weights are deterministic given a
// prior call to tensor.Seed.
func New(cfg *Config, numLabels int) (*Model, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %v", err)
	}
	if numLabels <= 0 {
		numLabels = DefaultNumLabels
	}

	enc, err := newEncoder(cfg)
	if err != nil {
		return nil, fmt.Errorf("encoder: %v", err)
	}
	head, err := NewMultiLayerHead(BranchCount, cfg, numLabels)
	if err != nil {
		return nil, fmt.Errorf("head: %v", err)
	}
	return &Model{Config: cfg, NumLabels: numLabels, Encoder: enc, Head: head}, nil
}

// Forward runs one batch through the encoder and the head. With labels it
// returns the scalar training loss; with nil labels it returns the averaged
// logits (batch x numLabels). Callers get exactly one of the two, keyed on
// label presence.
func (m *Model) Forward(inputIDs, segmentIDs [][]int, masks [][]float64, labels []int) (*tensor.Tensor, error) {
	if len(inputIDs) == 0 {
		return nil, fmt.Errorf("empty batch")
	}
	if len(segmentIDs) != len(inputIDs) || len(masks) != len(inputIDs) {
		return nil, fmt.Errorf("batch field lengths differ: ids=%d segments=%d masks=%d",
			len(inputIDs), len(segmentIDs), len(masks))
	}

	stacks := make([][]*tensor.Tensor, len(inputIDs))
	for b := range inputIDs {
		stack, err := m.Encoder.Forward(inputIDs[b], segmentIDs[b], masks[b])
		if err != nil {
			return nil, fmt.Errorf("example %d: %v", b, err)
		}
		stacks[b] = stack
	}

	loss, logits, err := m.Head.Combine(stacks, masks, labels)
	if err != nil {
		return nil, err
	}
	if labels != nil {
		return loss, nil
	}
	return logits, nil
}

// NamedParameters returns every trainable parameter keyed by a stable
// hierarchical name. The names drive optimizer grouping and checkpointing.
func (m *Model) NamedParameters() map[string]*tensor.Tensor {
	out := make(map[string]*tensor.Tensor)
	m.Encoder.collectParams("encoder", out)
	m.Head.collectParams("head", out)
	return out
}

// ZeroGrad clears the gradients of every trainable parameter.
func (m *Model) ZeroGrad() {
	for _, p := range m.NamedParameters() {
		p.ZeroGrad()
	}
}
