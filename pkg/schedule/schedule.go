// Package schedule provides the learning-rate schedule used for fine-tuning:
// a linear warmup from 0 to 1 over the first warmup fraction of training,
// followed by a linear decay from 1 to 0 at the end of training.
package schedule

// WarmupLinear maps training progress (currentStep / totalSteps, in [0, 1])
// to a learning-rate multiplier. Below the warmup fraction the multiplier
// ramps linearly toward 1; from there it decays linearly to 0 at progress 1.
// The decay branch starts at 1-warmup, so the multiplier steps down when the
// warmup fraction is crossed.
func WarmupLinear(progress, warmup float64) float64 {
	if progress < warmup {
		return progress / warmup
	}
	return 1.0 - progress
}

// LearningRate is the effective rate at a given step: base * WarmupLinear.
// Training must stop at or before totalSteps, where the multiplier reaches 0.
func LearningRate(base float64, step, totalSteps int, warmup float64) float64 {
	return base * WarmupLinear(float64(step)/float64(totalSteps), warmup)
}
