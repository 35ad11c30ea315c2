package tensor

import (
	"fmt"
	"math/rand"
)

// Matrix represents a 2D matrix of float64 values.
type Matrix struct {
	Rows int
	Cols int
	Data [][]float64
}

// NewMatrix creates a zero-filled matrix with the specified dimensions.
func NewMatrix(rows, cols int) (*Matrix, error) {
	if rows <= 0 || cols <= 0 {
		return nil, fmt.Errorf("invalid matrix dimensions: rows=%d, cols=%d (must be positive)", rows, cols)
	}

	data := make([][]float64, rows)
	for i := range data {
		data[i] = make([]float64, cols)
	}

	return &Matrix{
		Rows: rows,
		Cols: cols,
		Data: data,
	}, nil
}

// MustNewMatrix creates a zero-filled matrix and panics on invalid dimensions.
// Intended for tests and fixed-size construction paths.
func MustNewMatrix(rows, cols int) *Matrix {
	m, err := NewMatrix(rows, cols)
	if err != nil {
		panic(err)
	}
	return m
}

// NewMatrixFrom creates a matrix from existing row data. Every row must have
// the same length.
func NewMatrixFrom(data [][]float64) (*Matrix, error) {
	if len(data) == 0 || len(data[0]) == 0 {
		return nil, fmt.Errorf("matrix data must be non-empty")
	}
	cols := len(data[0])
	for i, row := range data {
		if len(row) != cols {
			return nil, fmt.Errorf("ragged matrix data: row %d has %d cols, want %d", i, len(row), cols)
		}
	}
	return &Matrix{Rows: len(data), Cols: cols, Data: data}, nil
}

// rng is the package-level source used for weight initialization. It is
// replaced by Seed so training runs are reproducible from a single seed.
var rng = rand.New(rand.NewSource(1))

// Seed reseeds the initialization RNG. Call once before constructing models.
func Seed(seed int64) {
	rng = rand.New(rand.NewSource(seed))
}

// NewRandomMatrix creates a matrix initialized with small random values.
func NewRandomMatrix(rows, cols int) (*Matrix, error) {
	m, err := NewMatrix(rows, cols)
	if err != nil {
		return nil, err
	}

	// Small uniform init keeps early training numerically stable.
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			m.Data[i][j] = rng.Float64()*0.2 - 0.1
		}
	}

	return m, nil
}

// Clone creates a deep copy of the matrix.
func (m *Matrix) Clone() (*Matrix, error) {
	clone, err := NewMatrix(m.Rows, m.Cols)
	if err != nil {
		return nil, err
	}

	for i := 0; i < m.Rows; i++ {
		copy(clone.Data[i], m.Data[i])
	}

	return clone, nil
}

// Zero sets every element to 0.
func (m *Matrix) Zero() {
	for i := 0; i < m.Rows; i++ {
		for j := 0; j < m.Cols; j++ {
			m.Data[i][j] = 0.0
		}
	}
}
