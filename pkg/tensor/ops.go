package tensor

import (
	"fmt"
	"math"
)

// maskFill is the additive penalty applied to attention scores at padded key
// positions. Large enough to zero them out after softmax.
const maskFill = -1e9

// MatMul performs matrix multiplication with gradient tracking.
func MatMul(a, b *Tensor) (*Tensor, error) {
	if a == nil || b == nil {
		return nil, fmt.Errorf("input tensors cannot be nil")
	}
	if a.Data.Cols != b.Data.Rows {
		return nil, fmt.Errorf("matrix dimensions don't match for multiplication: a(%dx%d), b(%dx%d)",
			a.Data.Rows, a.Data.Cols, b.Data.Rows, b.Data.Cols)
	}

	result, err := NewZerosTensor(a.Data.Rows, b.Data.Cols, &TensorConfig{
		RequiresGrad: a.Requires || b.Requires,
		Name:         "matmul",
	})
	if err != nil {
		return nil, err
	}

	for i := 0; i < a.Data.Rows; i++ {
		for j := 0; j < b.Data.Cols; j++ {
			sum := 0.0
			for k := 0; k < a.Data.Cols; k++ {
				sum += a.Data.Data[i][k] * b.Data.Data[k][j]
			}
			result.Data.Data[i][j] = sum
		}
	}

	if result.Requires {
		result.Children = append(result.Children, a, b)
		result.BackwardFn = func() {
			if a.Requires {
				// dL/dA = dL/dC * B^T
				for i := 0; i < a.Data.Rows; i++ {
					for k := 0; k < a.Data.Cols; k++ {
						sum := 0.0
						for j := 0; j < b.Data.Cols; j++ {
							sum += result.Grad.Data[i][j] * b.Data.Data[k][j]
						}
						a.Grad.Data[i][k] += sum
					}
				}
			}
			if b.Requires {
				// dL/dB = A^T * dL/dC
				for k := 0; k < b.Data.Rows; k++ {
					for j := 0; j < b.Data.Cols; j++ {
						sum := 0.0
						for i := 0; i < a.Data.Rows; i++ {
							sum += a.Data.Data[i][k] * result.Grad.Data[i][j]
						}
						b.Grad.Data[k][j] += sum
					}
				}
			}
		}
	}

	return result, nil
}

// Add performs element-wise addition with gradient tracking.
func Add(a, b *Tensor) (*Tensor, error) {
	if a == nil || b == nil {
		return nil, fmt.Errorf("input tensors cannot be nil")
	}
	if a.Data.Rows != b.Data.Rows || a.Data.Cols != b.Data.Cols {
		return nil, fmt.Errorf("matrix dimensions don't match for addition: a(%dx%d), b(%dx%d)",
			a.Data.Rows, a.Data.Cols, b.Data.Rows, b.Data.Cols)
	}

	result, err := NewZerosTensor(a.Data.Rows, a.Data.Cols, &TensorConfig{
		RequiresGrad: a.Requires || b.Requires,
		Name:         "add",
	})
	if err != nil {
		return nil, err
	}

	for i := 0; i < a.Data.Rows; i++ {
		for j := 0; j < a.Data.Cols; j++ {
			result.Data.Data[i][j] = a.Data.Data[i][j] + b.Data.Data[i][j]
		}
	}

	if result.Requires {
		result.Children = append(result.Children, a, b)
		result.BackwardFn = func() {
			for i := 0; i < a.Data.Rows; i++ {
				for j := 0; j < a.Data.Cols; j++ {
					if a.Requires {
						a.Grad.Data[i][j] += result.Grad.Data[i][j]
					}
					if b.Requires {
						b.Grad.Data[i][j] += result.Grad.Data[i][j]
					}
				}
			}
		}
	}

	return result, nil
}

// AddRowVector adds a 1xN bias row to every row of a with gradient tracking.
func AddRowVector(a, bias *Tensor) (*Tensor, error) {
	if a == nil || bias == nil {
		return nil, fmt.Errorf("input tensors cannot be nil")
	}
	if bias.Data.Rows != 1 || bias.Data.Cols != a.Data.Cols {
		return nil, fmt.Errorf("bias must be 1x%d, have %dx%d", a.Data.Cols, bias.Data.Rows, bias.Data.Cols)
	}

	result, err := NewZerosTensor(a.Data.Rows, a.Data.Cols, &TensorConfig{
		RequiresGrad: a.Requires || bias.Requires,
		Name:         "add_bias",
	})
	if err != nil {
		return nil, err
	}

	for i := 0; i < a.Data.Rows; i++ {
		for j := 0; j < a.Data.Cols; j++ {
			result.Data.Data[i][j] = a.Data.Data[i][j] + bias.Data.Data[0][j]
		}
	}

	if result.Requires {
		result.Children = append(result.Children, a, bias)
		result.BackwardFn = func() {
			for i := 0; i < a.Data.Rows; i++ {
				for j := 0; j < a.Data.Cols; j++ {
					if a.Requires {
						a.Grad.Data[i][j] += result.Grad.Data[i][j]
					}
					if bias.Requires {
						bias.Grad.Data[0][j] += result.Grad.Data[i][j]
					}
				}
			}
		}
	}

	return result, nil
}

// ScalarMultiply multiplies a tensor by a scalar value with gradient tracking.
func ScalarMultiply(a *Tensor, scalar float64) (*Tensor, error) {
	if a == nil {
		return nil, fmt.Errorf("input tensor cannot be nil")
	}

	result, err := NewZerosTensor(a.Data.Rows, a.Data.Cols, &TensorConfig{
		RequiresGrad: a.Requires,
		Name:         "scalar_multiply",
	})
	if err != nil {
		return nil, err
	}

	for i := 0; i < a.Data.Rows; i++ {
		for j := 0; j < a.Data.Cols; j++ {
			result.Data.Data[i][j] = a.Data.Data[i][j] * scalar
		}
	}

	if a.Requires {
		result.Children = append(result.Children, a)
		result.BackwardFn = func() {
			for i := 0; i < a.Data.Rows; i++ {
				for j := 0; j < a.Data.Cols; j++ {
					a.Grad.Data[i][j] += result.Grad.Data[i][j] * scalar
				}
			}
		}
	}

	return result, nil
}

// Tanh applies the hyperbolic tangent element-wise with gradient tracking.
func Tanh(a *Tensor) (*Tensor, error) {
	if a == nil {
		return nil, fmt.Errorf("input tensor cannot be nil")
	}

	result, err := NewZerosTensor(a.Data.Rows, a.Data.Cols, &TensorConfig{
		RequiresGrad: a.Requires,
		Name:         "tanh",
	})
	if err != nil {
		return nil, err
	}

	for i := 0; i < a.Data.Rows; i++ {
		for j := 0; j < a.Data.Cols; j++ {
			result.Data.Data[i][j] = math.Tanh(a.Data.Data[i][j])
		}
	}

	if a.Requires {
		result.Children = append(result.Children, a)
		result.BackwardFn = func() {
			for i := 0; i < a.Data.Rows; i++ {
				for j := 0; j < a.Data.Cols; j++ {
					y := result.Data.Data[i][j]
					a.Grad.Data[i][j] += result.Grad.Data[i][j] * (1.0 - y*y)
				}
			}
		}
	}

	return result, nil
}

// GELU applies the GELU activation (tanh approximation) with gradient tracking.
func GELU(a *Tensor) (*Tensor, error) {
	if a == nil {
		return nil, fmt.Errorf("input tensor cannot be nil")
	}

	result, err := NewZerosTensor(a.Data.Rows, a.Data.Cols, &TensorConfig{
		RequiresGrad: a.Requires,
		Name:         "gelu",
	})
	if err != nil {
		return nil, err
	}

	sqrt2OverPi := math.Sqrt(2.0 / math.Pi)
	const coeff = 0.044715

	for i := 0; i < a.Data.Rows; i++ {
		for j := 0; j < a.Data.Cols; j++ {
			x := a.Data.Data[i][j]
			inner := sqrt2OverPi * (x + coeff*x*x*x)
			result.Data.Data[i][j] = 0.5 * x * (1.0 + math.Tanh(inner))
		}
	}

	if a.Requires {
		result.Children = append(result.Children, a)
		result.BackwardFn = func() {
			for i := 0; i < a.Data.Rows; i++ {
				for j := 0; j < a.Data.Cols; j++ {
					x := a.Data.Data[i][j]
					inner := sqrt2OverPi * (x + coeff*x*x*x)
					tanhVal := math.Tanh(inner)
					dtanh := 1.0 - tanhVal*tanhVal
					innerDeriv := sqrt2OverPi * (1.0 + 3.0*coeff*x*x)
					grad := 0.5*(1.0+tanhVal) + 0.5*x*dtanh*innerDeriv
					a.Grad.Data[i][j] += result.Grad.Data[i][j] * grad
				}
			}
		}
	}

	return result, nil
}

// Softmax applies a row-wise softmax with gradient tracking.
func Softmax(a *Tensor) (*Tensor, error) {
	if a == nil {
		return nil, fmt.Errorf("input tensor cannot be nil")
	}

	result, err := NewZerosTensor(a.Data.Rows, a.Data.Cols, &TensorConfig{
		RequiresGrad: a.Requires,
		Name:         "softmax",
	})
	if err != nil {
		return nil, err
	}

	for i := 0; i < a.Data.Rows; i++ {
		// Shift by the row max for numerical stability.
		max := a.Data.Data[i][0]
		for j := 1; j < a.Data.Cols; j++ {
			if a.Data.Data[i][j] > max {
				max = a.Data.Data[i][j]
			}
		}
		sum := 0.0
		for j := 0; j < a.Data.Cols; j++ {
			e := math.Exp(a.Data.Data[i][j] - max)
			result.Data.Data[i][j] = e
			sum += e
		}
		for j := 0; j < a.Data.Cols; j++ {
			result.Data.Data[i][j] /= sum
		}
	}

	if a.Requires {
		result.Children = append(result.Children, a)
		result.BackwardFn = func() {
			for i := 0; i < a.Data.Rows; i++ {
				// dx_j = s_j * (dy_j - sum_k dy_k * s_k)
				dot := 0.0
				for k := 0; k < a.Data.Cols; k++ {
					dot += result.Grad.Data[i][k] * result.Data.Data[i][k]
				}
				for j := 0; j < a.Data.Cols; j++ {
					a.Grad.Data[i][j] += result.Data.Data[i][j] * (result.Grad.Data[i][j] - dot)
				}
			}
		}
	}

	return result, nil
}

// Transpose returns the transpose of a tensor with gradient tracking.
func Transpose(a *Tensor) (*Tensor, error) {
	if a == nil {
		return nil, fmt.Errorf("input tensor cannot be nil")
	}

	result, err := NewZerosTensor(a.Data.Cols, a.Data.Rows, &TensorConfig{
		RequiresGrad: a.Requires,
		Name:         "transpose",
	})
	if err != nil {
		return nil, err
	}

	for i := 0; i < a.Data.Rows; i++ {
		for j := 0; j < a.Data.Cols; j++ {
			result.Data.Data[j][i] = a.Data.Data[i][j]
		}
	}

	if a.Requires {
		result.Children = append(result.Children, a)
		result.BackwardFn = func() {
			for i := 0; i < a.Data.Rows; i++ {
				for j := 0; j < a.Data.Cols; j++ {
					a.Grad.Data[i][j] += result.Grad.Data[j][i]
				}
			}
		}
	}

	return result, nil
}

// SliceCols extracts columns [start, start+width) with gradient tracking.
func SliceCols(a *Tensor, start, width int) (*Tensor, error) {
	if a == nil {
		return nil, fmt.Errorf("input tensor cannot be nil")
	}
	if start < 0 || width <= 0 || start+width > a.Data.Cols {
		return nil, fmt.Errorf("column slice [%d,%d) out of range for %d cols", start, start+width, a.Data.Cols)
	}

	result, err := NewZerosTensor(a.Data.Rows, width, &TensorConfig{
		RequiresGrad: a.Requires,
		Name:         "slice_cols",
	})
	if err != nil {
		return nil, err
	}

	for i := 0; i < a.Data.Rows; i++ {
		for j := 0; j < width; j++ {
			result.Data.Data[i][j] = a.Data.Data[i][start+j]
		}
	}

	if a.Requires {
		result.Children = append(result.Children, a)
		result.BackwardFn = func() {
			for i := 0; i < a.Data.Rows; i++ {
				for j := 0; j < width; j++ {
					a.Grad.Data[i][start+j] += result.Grad.Data[i][j]
				}
			}
		}
	}

	return result, nil
}

// SliceRows extracts rows [start, start+count) with gradient tracking.
func SliceRows(a *Tensor, start, count int) (*Tensor, error) {
	if a == nil {
		return nil, fmt.Errorf("input tensor cannot be nil")
	}
	if start < 0 || count <= 0 || start+count > a.Data.Rows {
		return nil, fmt.Errorf("row slice [%d,%d) out of range for %d rows", start, start+count, a.Data.Rows)
	}

	result, err := NewZerosTensor(count, a.Data.Cols, &TensorConfig{
		RequiresGrad: a.Requires,
		Name:         "slice_rows",
	})
	if err != nil {
		return nil, err
	}

	for i := 0; i < count; i++ {
		for j := 0; j < a.Data.Cols; j++ {
			result.Data.Data[i][j] = a.Data.Data[start+i][j]
		}
	}

	if a.Requires {
		result.Children = append(result.Children, a)
		result.BackwardFn = func() {
			for i := 0; i < count; i++ {
				for j := 0; j < a.Data.Cols; j++ {
					a.Grad.Data[start+i][j] += result.Grad.Data[i][j]
				}
			}
		}
	}

	return result, nil
}

// ConcatRows stacks tensors with identical column counts vertically with
// gradient tracking.
func ConcatRows(parts []*Tensor) (*Tensor, error) {
	if len(parts) == 0 {
		return nil, fmt.Errorf("nothing to concatenate")
	}
	cols := parts[0].Data.Cols
	rows := 0
	requires := false
	for i, p := range parts {
		if p == nil {
			return nil, fmt.Errorf("part %d is nil", i)
		}
		if p.Data.Cols != cols {
			return nil, fmt.Errorf("part %d has %d cols, want %d", i, p.Data.Cols, cols)
		}
		rows += p.Data.Rows
		requires = requires || p.Requires
	}

	result, err := NewZerosTensor(rows, cols, &TensorConfig{
		RequiresGrad: requires,
		Name:         "concat_rows",
	})
	if err != nil {
		return nil, err
	}

	offset := 0
	for _, p := range parts {
		for i := 0; i < p.Data.Rows; i++ {
			copy(result.Data.Data[offset+i], p.Data.Data[i])
		}
		offset += p.Data.Rows
	}

	if requires {
		result.Children = append(result.Children, parts...)
		result.BackwardFn = func() {
			off := 0
			for _, p := range parts {
				if p.Requires {
					for i := 0; i < p.Data.Rows; i++ {
						for j := 0; j < cols; j++ {
							p.Grad.Data[i][j] += result.Grad.Data[off+i][j]
						}
					}
				}
				off += p.Data.Rows
			}
		}
	}

	return result, nil
}

// ConcatCols stacks tensors with identical row counts horizontally with
// gradient tracking.
func ConcatCols(parts []*Tensor) (*Tensor, error) {
	if len(parts) == 0 {
		return nil, fmt.Errorf("nothing to concatenate")
	}
	rows := parts[0].Data.Rows
	cols := 0
	requires := false
	for i, p := range parts {
		if p == nil {
			return nil, fmt.Errorf("part %d is nil", i)
		}
		if p.Data.Rows != rows {
			return nil, fmt.Errorf("part %d has %d rows, want %d", i, p.Data.Rows, rows)
		}
		cols += p.Data.Cols
		requires = requires || p.Requires
	}

	result, err := NewZerosTensor(rows, cols, &TensorConfig{
		RequiresGrad: requires,
		Name:         "concat_cols",
	})
	if err != nil {
		return nil, err
	}

	offset := 0
	for _, p := range parts {
		for i := 0; i < rows; i++ {
			copy(result.Data.Data[i][offset:offset+p.Data.Cols], p.Data.Data[i])
		}
		offset += p.Data.Cols
	}

	if requires {
		result.Children = append(result.Children, parts...)
		result.BackwardFn = func() {
			off := 0
			for _, p := range parts {
				if p.Requires {
					for i := 0; i < rows; i++ {
						for j := 0; j < p.Data.Cols; j++ {
							p.Grad.Data[i][j] += result.Grad.Data[i][off+j]
						}
					}
				}
				off += p.Data.Cols
			}
		}
	}

	return result, nil
}

// ApplyAttentionMask adds a large negative value to every column of scores
// whose mask entry is 0, so padded key positions vanish after softmax. The
// offset is constant, so the gradient passes through unchanged.
func ApplyAttentionMask(scores *Tensor, mask []float64) (*Tensor, error) {
	if scores == nil {
		return nil, fmt.Errorf("scores tensor cannot be nil")
	}
	if len(mask) != scores.Data.Cols {
		return nil, fmt.Errorf("mask length %d doesn't match key count %d", len(mask), scores.Data.Cols)
	}

	result, err := NewZerosTensor(scores.Data.Rows, scores.Data.Cols, &TensorConfig{
		RequiresGrad: scores.Requires,
		Name:         "attention_mask",
	})
	if err != nil {
		return nil, err
	}

	for i := 0; i < scores.Data.Rows; i++ {
		for j := 0; j < scores.Data.Cols; j++ {
			result.Data.Data[i][j] = scores.Data.Data[i][j] + (1.0-mask[j])*maskFill
		}
	}

	if scores.Requires {
		result.Children = append(result.Children, scores)
		result.BackwardFn = func() {
			for i := 0; i < scores.Data.Rows; i++ {
				for j := 0; j < scores.Data.Cols; j++ {
					scores.Grad.Data[i][j] += result.Grad.Data[i][j]
				}
			}
		}
	}

	return result, nil
}

// EmbeddingRows gathers rows of an embedding table by id with gradient
// tracking. The backward pass scatter-adds into the table.
func EmbeddingRows(table *Tensor, ids []int) (*Tensor, error) {
	if table == nil {
		return nil, fmt.Errorf("embedding table cannot be nil")
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("ids cannot be empty")
	}
	for i, id := range ids {
		if id < 0 || id >= table.Data.Rows {
			return nil, fmt.Errorf("id %d at position %d out of range [0,%d)", id, i, table.Data.Rows)
		}
	}

	result, err := NewZerosTensor(len(ids), table.Data.Cols, &TensorConfig{
		RequiresGrad: table.Requires,
		Name:         "embedding_rows",
	})
	if err != nil {
		return nil, err
	}

	for i, id := range ids {
		copy(result.Data.Data[i], table.Data.Data[id])
	}

	if table.Requires {
		result.Children = append(result.Children, table)
		result.BackwardFn = func() {
			for i, id := range ids {
				for j := 0; j < table.Data.Cols; j++ {
					table.Grad.Data[id][j] += result.Grad.Data[i][j]
				}
			}
		}
	}

	return result, nil
}

// LayerNorm normalizes each row to zero mean and unit variance, then applies
// a learned 1xN scale (gamma) and shift (beta), with gradient tracking.
func LayerNorm(a, gamma, beta *Tensor, eps float64) (*Tensor, error) {
	if a == nil || gamma == nil || beta == nil {
		return nil, fmt.Errorf("input tensors cannot be nil")
	}
	n := a.Data.Cols
	if gamma.Data.Rows != 1 || gamma.Data.Cols != n || beta.Data.Rows != 1 || beta.Data.Cols != n {
		return nil, fmt.Errorf("gamma and beta must be 1x%d", n)
	}

	result, err := NewZerosTensor(a.Data.Rows, n, &TensorConfig{
		RequiresGrad: a.Requires || gamma.Requires || beta.Requires,
		Name:         "layer_norm",
	})
	if err != nil {
		return nil, err
	}

	// Keep the normalized values and inverse stddev per row for backward.
	xhat := make([][]float64, a.Data.Rows)
	invStd := make([]float64, a.Data.Rows)

	for i := 0; i < a.Data.Rows; i++ {
		mean := 0.0
		for j := 0; j < n; j++ {
			mean += a.Data.Data[i][j]
		}
		mean /= float64(n)

		variance := 0.0
		for j := 0; j < n; j++ {
			d := a.Data.Data[i][j] - mean
			variance += d * d
		}
		variance /= float64(n)

		invStd[i] = 1.0 / math.Sqrt(variance+eps)
		xhat[i] = make([]float64, n)
		for j := 0; j < n; j++ {
			xhat[i][j] = (a.Data.Data[i][j] - mean) * invStd[i]
			result.Data.Data[i][j] = xhat[i][j]*gamma.Data.Data[0][j] + beta.Data.Data[0][j]
		}
	}

	if result.Requires {
		result.Children = append(result.Children, a, gamma, beta)
		result.BackwardFn = func() {
			for i := 0; i < a.Data.Rows; i++ {
				// dxhat_j = dy_j * gamma_j
				// dx = invStd * (dxhat - mean(dxhat) - xhat * mean(dxhat*xhat))
				meanDxhat := 0.0
				meanDxhatXhat := 0.0
				for j := 0; j < n; j++ {
					dxhat := result.Grad.Data[i][j] * gamma.Data.Data[0][j]
					meanDxhat += dxhat
					meanDxhatXhat += dxhat * xhat[i][j]
				}
				meanDxhat /= float64(n)
				meanDxhatXhat /= float64(n)

				for j := 0; j < n; j++ {
					dy := result.Grad.Data[i][j]
					if gamma.Requires {
						gamma.Grad.Data[0][j] += dy * xhat[i][j]
					}
					if beta.Requires {
						beta.Grad.Data[0][j] += dy
					}
					if a.Requires {
						dxhat := dy * gamma.Data.Data[0][j]
						a.Grad.Data[i][j] += invStd[i] * (dxhat - meanDxhat - xhat[i][j]*meanDxhatXhat)
					}
				}
			}
		}
	}

	return result, nil
}
