package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func validRun() Run {
	return Run{
		BertModel:        "bert-base",
		DataDir:          "/data",
		OutputDir:        "/out",
		VocabFile:        "/vocab/tokenizer.json",
		MaxSeqLength:     100,
		DoTrain:          true,
		TrainBatchSize:   32,
		EvalBatchSize:    8,
		LearningRate:     3e-5,
		NumTrainEpochs:   4,
		WarmupProportion: 0.1,
	}
}

func TestValidateAcceptsCompleteRun(t *testing.T) {
	r := validRun()
	assert.NoError(t, r.Validate())
}

func TestValidateRejectsMissingFields(t *testing.T) {
	cases := map[string]func(*Run){
		"no data dir":      func(r *Run) { r.DataDir = "" },
		"no output dir":    func(r *Run) { r.OutputDir = "" },
		"no vocab":         func(r *Run) { r.VocabFile = "" },
		"no phase":         func(r *Run) { r.DoTrain = false; r.DoEval = false },
		"tiny seq len":     func(r *Run) { r.MaxSeqLength = 4 },
		"zero batch":       func(r *Run) { r.TrainBatchSize = 0 },
		"negative lr":      func(r *Run) { r.LearningRate = -1 },
		"zero epochs":      func(r *Run) { r.NumTrainEpochs = 0 },
		"warmup too large": func(r *Run) { r.WarmupProportion = 1.0 },
		"warmup negative":  func(r *Run) { r.WarmupProportion = -0.1 },
	}
	for name, mutate := range cases {
		r := validRun()
		mutate(&r)
		assert.Error(t, r.Validate(), name)
	}
}

func TestModeFollowsDoValid(t *testing.T) {
	r := validRun()
	assert.Equal(t, UnvalidatedRun, r.Mode())
	r.DoValid = true
	assert.Equal(t, ValidatedRun, r.Mode())
}

func TestEvalOnlyRunNeedsNoEpochs(t *testing.T) {
	r := validRun()
	r.DoTrain = false
	r.DoEval = true
	r.NumTrainEpochs = 0
	assert.NoError(t, r.Validate())
}
