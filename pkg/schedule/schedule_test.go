package schedule

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWarmupLinearRampsDuringWarmup(t *testing.T) {
	assert.Equal(t, 0.0, WarmupLinear(0.0, 0.1))
	assert.InDelta(t, 0.5, WarmupLinear(0.05, 0.1), 1e-12)

	// Monotonically increasing while warming up.
	prev := -1.0
	for p := 0.0; p < 0.1; p += 0.01 {
		m := WarmupLinear(p, 0.1)
		assert.Greater(t, m, prev)
		prev = m
	}
}

func TestWarmupLinearDecaysAfterWarmup(t *testing.T) {
	assert.InDelta(t, 0.9, WarmupLinear(0.1, 0.1), 1e-12)
	assert.InDelta(t, 0.5, WarmupLinear(0.5, 0.1), 1e-12)
	assert.Equal(t, 0.0, WarmupLinear(1.0, 0.1))

	prev := 2.0
	for p := 0.1; p <= 1.0; p += 0.1 {
		m := WarmupLinear(p, 0.1)
		assert.Less(t, m, prev)
		prev = m
	}
}

func TestLearningRateScalesBase(t *testing.T) {
	assert.Equal(t, 0.0, LearningRate(3e-5, 0, 100, 0.1))
	assert.InDelta(t, 1.5e-5, LearningRate(3e-5, 5, 100, 0.1), 1e-18)
	assert.InDelta(t, 3e-5*0.5, LearningRate(3e-5, 50, 100, 0.1), 1e-18)
	assert.Equal(t, 0.0, LearningRate(3e-5, 100, 100, 0.1))
}

func TestLearningRateNeverNegativeWithinBudget(t *testing.T) {
	for step := 0; step <= 200; step++ {
		lr := LearningRate(1e-4, step, 200, 0.25)
		assert.GreaterOrEqual(t, lr, 0.0, "step %d", step)
	}
}
