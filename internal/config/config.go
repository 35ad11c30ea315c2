// Package config defines the run configuration shared by the training and
// evaluation phases.
package config

import (
	"github.com/pkg/errors"
)

// Mode selects the terminal persistence behavior of a training run. The two
// modes are mutually exclusive: a validated run persists its validation
// history and per-epoch evaluation artifacts, an unvalidated run persists a
// single final checkpoint.
type Mode int

const (
	// UnvalidatedRun trains without validation and saves one final
	// checkpoint at the end.
	UnvalidatedRun Mode = iota
	// ValidatedRun validates after every epoch, evaluates the dev-as-test
	// split per epoch and writes the validation history at the end.
	ValidatedRun
)

// Run holds every recognized option of a fine-tuning run.
type Run struct {
	BertModel      string
	DataDir        string
	OutputDir      string
	VocabFile      string
	InitCheckpoint string

	MaxSeqLength int
	DoTrain      bool
	DoValid      bool
	DoEval       bool

	TrainBatchSize   int
	EvalBatchSize    int
	LearningRate     float64
	NumTrainEpochs   int
	WarmupProportion float64
	Seed             int64
}

// Mode returns the training mode, fixed once at configuration time.
func (r *Run) Mode() Mode {
	if r.DoValid {
		return ValidatedRun
	}
	return UnvalidatedRun
}

// Validate surfaces configuration errors before any computation starts.
func (r *Run) Validate() error {
	if r.DataDir == "" {
		return errors.New("data dir is required")
	}
	if r.OutputDir == "" {
		return errors.New("output dir is required")
	}
	if !r.DoTrain && !r.DoEval {
		return errors.New("nothing to do: enable training or evaluation")
	}
	if r.VocabFile == "" {
		return errors.New("vocab file is required")
	}
	if r.MaxSeqLength < 8 {
		return errors.Errorf("max sequence length %d too small", r.MaxSeqLength)
	}
	if r.TrainBatchSize <= 0 || r.EvalBatchSize <= 0 {
		return errors.Errorf("batch sizes must be positive, have train=%d eval=%d", r.TrainBatchSize, r.EvalBatchSize)
	}
	if r.LearningRate <= 0 {
		return errors.Errorf("learning rate must be positive, have %g", r.LearningRate)
	}
	if r.DoTrain && r.NumTrainEpochs <= 0 {
		return errors.Errorf("epoch count must be positive, have %d", r.NumTrainEpochs)
	}
	if r.WarmupProportion < 0 || r.WarmupProportion >= 1 {
		return errors.Errorf("warmup proportion must be in [0, 1), have %g", r.WarmupProportion)
	}
	return nil
}
