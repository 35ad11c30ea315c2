package tensor

import (
	"fmt"
)

// Tensor represents a matrix with reverse-mode gradient tracking. Operations
// on tensors record a backward closure that routes the output gradient to the
// operands; Backward replays those closures in reverse topological order.
type Tensor struct {
	Data       *Matrix
	Grad       *Matrix
	Requires   bool
	BackwardFn func()
	Children   []*Tensor
	Name       string // Optional name for debugging
}

// TensorConfig holds configuration options for creating a tensor.
type TensorConfig struct {
	RequiresGrad bool
	Name         string
}

// NewTensor creates a new tensor from a matrix with the specified configuration.
func NewTensor(data *Matrix, config *TensorConfig) (*Tensor, error) {
	if data == nil {
		return nil, fmt.Errorf("data matrix cannot be nil")
	}

	if config == nil {
		config = &TensorConfig{}
	}

	var grad *Matrix
	var err error

	if config.RequiresGrad {
		grad, err = NewMatrix(data.Rows, data.Cols)
		if err != nil {
			return nil, fmt.Errorf("failed to create gradient matrix: %v", err)
		}
	}

	return &Tensor{
		Data:     data,
		Grad:     grad,
		Requires: config.RequiresGrad,
		Name:     config.Name,
	}, nil
}

// NewRandomTensor creates a new tensor with small random values.
func NewRandomTensor(rows, cols int, config *TensorConfig) (*Tensor, error) {
	data, err := NewRandomMatrix(rows, cols)
	if err != nil {
		return nil, fmt.Errorf("failed to create random matrix: %v", err)
	}
	return NewTensor(data, config)
}

// NewZerosTensor creates a new tensor filled with zeros.
func NewZerosTensor(rows, cols int, config *TensorConfig) (*Tensor, error) {
	data, err := NewMatrix(rows, cols)
	if err != nil {
		return nil, fmt.Errorf("failed to create zero matrix: %v", err)
	}
	return NewTensor(data, config)
}

// Rows returns the row count of the underlying matrix.
func (t *Tensor) Rows() int { return t.Data.Rows }

// Cols returns the column count of the underlying matrix.
func (t *Tensor) Cols() int { return t.Data.Cols }

// Item returns the single element of a 1x1 tensor.
func (t *Tensor) Item() (float64, error) {
	if t.Data.Rows != 1 || t.Data.Cols != 1 {
		return 0, fmt.Errorf("Item requires a 1x1 tensor, have %dx%d", t.Data.Rows, t.Data.Cols)
	}
	return t.Data.Data[0][0], nil
}

// ZeroGrad zeros out the gradient.
func (t *Tensor) ZeroGrad() {
	if t.Grad != nil {
		t.Grad.Zero()
	}
}

// Backward computes gradients for every tensor this one depends on. The
// receiver must be a scalar (1x1); its gradient is seeded with 1.0.
func (t *Tensor) Backward() error {
	if t.Data.Rows != 1 || t.Data.Cols != 1 {
		return fmt.Errorf("Backward requires a scalar tensor, have %dx%d", t.Data.Rows, t.Data.Cols)
	}
	if t.Grad == nil {
		return fmt.Errorf("Backward requires a gradient-tracking tensor")
	}
	t.Grad.Data[0][0] = 1.0

	// Topological sort over the recorded graph.
	visited := make(map[*Tensor]bool)
	topo := make([]*Tensor, 0)

	var buildTopo func(node *Tensor) error
	buildTopo = func(node *Tensor) error {
		if node == nil {
			return fmt.Errorf("nil tensor in computation graph")
		}
		if visited[node] {
			return nil
		}
		visited[node] = true
		for _, child := range node.Children {
			if err := buildTopo(child); err != nil {
				return err
			}
		}
		topo = append(topo, node)
		return nil
	}

	if err := buildTopo(t); err != nil {
		return fmt.Errorf("failed to build topology: %v", err)
	}

	for i := len(topo) - 1; i >= 0; i-- {
		if topo[i].BackwardFn != nil {
			topo[i].BackwardFn()
		}
	}

	return nil
}
