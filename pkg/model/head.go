package model

import (
	"fmt"

	"github.com/absa_transformer/pkg/tensor"
)

// MultiLayerHead classifies from several encoder depths at once. Branch i
// takes the hidden state i layers from the top, refines it with its own
// encoder block, then pools and classifies it. The pooler and classifier are
// shared across branches; only the refinement sublayers are per-branch, which
// keeps parameter count flat as the branch count grows.
type MultiLayerHead struct {
	Count      int
	NumLabels  int
	Refiners   []*EncoderLayer
	Pooler     *Pooler
	Classifier *Linear
}

// NewMultiLayerHead creates a head with count branches. count must not exceed
// the encoder depth, otherwise branch selection would index past the bottom
// of the layer stack.
func NewMultiLayerHead(count int, cfg *Config, numLabels int) (*MultiLayerHead, error) {
	if count <= 0 {
		return nil, fmt.Errorf("branch count must be positive, have %d", count)
	}
	if count > cfg.NumLayers {
		return nil, fmt.Errorf("branch count %d exceeds encoder depth %d", count, cfg.NumLayers)
	}
	if numLabels <= 0 {
		return nil, fmt.Errorf("label count must be positive, have %d", numLabels)
	}

	refiners := make([]*EncoderLayer, count)
	for i := range refiners {
		layer, err := NewEncoderLayer(cfg)
		if err != nil {
			return nil, fmt.Errorf("refiner %d: %v", i, err)
		}
		refiners[i] = layer
	}
	pooler, err := newPooler(cfg)
	if err != nil {
		return nil, err
	}
	classifier, err := newLinear(cfg.HiddenSize, numLabels, "classifier")
	if err != nil {
		return nil, err
	}

	return &MultiLayerHead{
		Count:      count,
		NumLabels:  numLabels,
		Refiners:   refiners,
		Pooler:     pooler,
		Classifier: classifier,
	}, nil
}

// Combine runs every branch over a batch of per-example layer stacks and
// aggregates the results. stacks[b] is example b's hidden states ordered
// bottom to top; branch i consumes the state i layers from the top.
//
// With labels, the returned loss is the SUM of the per-branch cross-entropy
// losses, never their mean: the training signal deliberately scales with the
// branch count. Without labels the loss is nil. The returned logits are the
// arithmetic mean of the branch logits, computed in both cases.
func (h *MultiLayerHead) Combine(stacks [][]*tensor.Tensor, masks [][]float64, labels []int) (*tensor.Tensor, *tensor.Tensor, error) {
	if len(stacks) == 0 {
		return nil, nil, fmt.Errorf("empty batch")
	}
	if len(masks) != len(stacks) {
		return nil, nil, fmt.Errorf("mask count %d doesn't match batch size %d", len(masks), len(stacks))
	}
	if labels != nil && len(labels) != len(stacks) {
		return nil, nil, fmt.Errorf("label count %d doesn't match batch size %d", len(labels), len(stacks))
	}
	depth := len(stacks[0])
	if h.Count > depth {
		return nil, nil, fmt.Errorf("branch count %d exceeds layer stack depth %d", h.Count, depth)
	}

	var totalLoss, sumLogits *tensor.Tensor
	for i := 0; i < h.Count; i++ {
		pooled := make([]*tensor.Tensor, len(stacks))
		for b, stack := range stacks {
			if len(stack) != depth {
				return nil, nil, fmt.Errorf("example %d has stack depth %d, want %d", b, len(stack), depth)
			}
			refined, err := h.Refiners[i].Forward(stack[depth-1-i], masks[b])
			if err != nil {
				return nil, nil, fmt.Errorf("branch %d example %d: %v", i, b, err)
			}
			row, err := h.Pooler.Forward(refined)
			if err != nil {
				return nil, nil, fmt.Errorf("branch %d pooling: %v", i, err)
			}
			pooled[b] = row
		}

		batch, err := tensor.ConcatRows(pooled)
		if err != nil {
			return nil, nil, err
		}
		logits, err := h.Classifier.Forward(batch)
		if err != nil {
			return nil, nil, fmt.Errorf("branch %d classifier: %v", i, err)
		}

		if labels != nil {
			loss, err := tensor.CrossEntropyLoss(logits, labels)
			if err != nil {
				return nil, nil, fmt.Errorf("branch %d loss: %v", i, err)
			}
			if totalLoss == nil {
				totalLoss = loss
			} else {
				totalLoss, err = tensor.Add(totalLoss, loss)
				if err != nil {
					return nil, nil, err
				}
			}
		}

		if sumLogits == nil {
			sumLogits = logits
		} else {
			sumLogits, err = tensor.Add(sumLogits, logits)
			if err != nil {
				return nil, nil, err
			}
		}
	}

	avgLogits, err := tensor.ScalarMultiply(sumLogits, 1.0/float64(h.Count))
	if err != nil {
		return nil, nil, err
	}
	return totalLoss, avgLogits, nil
}

func (h *MultiLayerHead) collectParams(prefix string, out map[string]*tensor.Tensor) {
	for i, r := range h.Refiners {
		r.collectParams(fmt.Sprintf("%s.refiner.%d", prefix, i), out)
	}
	h.Pooler.collectParams(prefix+".pooler", out)
	h.Classifier.collectParams(prefix+".classifier", out)
}
