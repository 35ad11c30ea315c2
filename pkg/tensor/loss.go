package tensor

import (
	"fmt"
	"math"
)

// IgnoreIndex is the sentinel label id excluded from loss computation.
const IgnoreIndex = -1

// CrossEntropyLoss computes the mean cross-entropy over the rows of logits
// whose target is not IgnoreIndex, with gradient tracking. Rows labeled
// IgnoreIndex contribute neither loss nor gradient; if every row is ignored
// the loss is exactly zero.
func CrossEntropyLoss(logits *Tensor, targets []int) (*Tensor, error) {
	if logits == nil {
		return nil, fmt.Errorf("logits tensor cannot be nil")
	}
	if targets == nil {
		return nil, fmt.Errorf("targets cannot be nil")
	}

	batchSize := logits.Data.Rows
	if len(targets) != batchSize {
		return nil, fmt.Errorf("number of targets (%d) doesn't match batch size (%d)", len(targets), batchSize)
	}

	counted := 0
	for i, t := range targets {
		if t == IgnoreIndex {
			continue
		}
		if t < 0 || t >= logits.Data.Cols {
			return nil, fmt.Errorf("target %d at row %d out of range [0,%d)", t, i, logits.Data.Cols)
		}
		counted++
	}

	result, err := NewZerosTensor(1, 1, &TensorConfig{
		RequiresGrad: logits.Requires,
		Name:         "cross_entropy_loss",
	})
	if err != nil {
		return nil, err
	}

	loss := 0.0
	for i := 0; i < batchSize; i++ {
		if targets[i] == IgnoreIndex {
			continue
		}

		// -log softmax(x)[t] = log(sum exp(x_j)) - x_t, shifted by the max
		// for numerical stability.
		max := logits.Data.Data[i][0]
		for j := 1; j < logits.Data.Cols; j++ {
			if logits.Data.Data[i][j] > max {
				max = logits.Data.Data[i][j]
			}
		}
		sum := 0.0
		for j := 0; j < logits.Data.Cols; j++ {
			sum += math.Exp(logits.Data.Data[i][j] - max)
		}
		loss += math.Log(sum) + max - logits.Data.Data[i][targets[i]]
	}
	if counted > 0 {
		loss /= float64(counted)
	}
	result.Data.Data[0][0] = loss

	if logits.Requires {
		count := counted
		result.Children = append(result.Children, logits)
		result.BackwardFn = func() {
			if count == 0 {
				return
			}
			for i := 0; i < batchSize; i++ {
				if targets[i] == IgnoreIndex {
					continue
				}

				max := logits.Data.Data[i][0]
				for j := 1; j < logits.Data.Cols; j++ {
					if logits.Data.Data[i][j] > max {
						max = logits.Data.Data[i][j]
					}
				}
				softmax := make([]float64, logits.Data.Cols)
				sum := 0.0
				for j := 0; j < logits.Data.Cols; j++ {
					softmax[j] = math.Exp(logits.Data.Data[i][j] - max)
					sum += softmax[j]
				}
				for j := 0; j < logits.Data.Cols; j++ {
					softmax[j] /= sum
				}

				// d loss / d logits = (softmax - one_hot) / count
				for j := 0; j < logits.Data.Cols; j++ {
					grad := softmax[j]
					if j == targets[i] {
						grad -= 1.0
					}
					logits.Grad.Data[i][j] += grad * result.Grad.Data[0][0] / float64(count)
				}
			}
		}
	}

	return result, nil
}
