package train

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/absa_transformer/internal/config"
	"github.com/absa_transformer/internal/features"
	"github.com/absa_transformer/pkg/model"
)

// PredictionsFile holds the raw evaluation output inside a checkpoint
// directory.
const PredictionsFile = "predictions.json"

// Evaluator reloads a checkpoint and writes raw predictions for the test
// split next to it. It never shares parameters with the training model.
type Evaluator struct {
	run *config.Run
	tok features.Tokenizer
	log *zap.SugaredLogger
}

// NewEvaluator builds an evaluator over the run's data directory.
func NewEvaluator(run *config.Run, tok features.Tokenizer, log *zap.SugaredLogger) *Evaluator {
	return &Evaluator{run: run, tok: tok, log: log}
}

// predictions mirrors the on-disk prediction format: one logit row and one
// label id per example, in dataset order.
type predictions struct {
	Logits   [][]float64 `json:"logits"`
	LabelIDs []int       `json:"label_ids"`
}

// Evaluate loads the checkpoint in ckptDir, runs the test split through it
// and writes predictions.json into ckptDir. With devAsTest the split is read
// from the dev-as-test subdirectory instead of the data directory proper.
func (e *Evaluator) Evaluate(ckptDir string, devAsTest bool) error {
	dataDir := e.run.DataDir
	if devAsTest {
		dataDir = filepath.Join(dataDir, features.DevAsTestDir)
	}

	examples, err := features.LoadSplit(dataDir, "test")
	if err != nil {
		return errors.Wrap(err, "load test split")
	}
	set, err := features.Convert(examples, e.tok, e.run.MaxSeqLength)
	if err != nil {
		return errors.Wrap(err, "convert test split")
	}

	m, err := model.Load(ckptDir)
	if err != nil {
		return errors.Wrap(err, "load checkpoint")
	}

	e.log.Infow("evaluating checkpoint",
		"checkpoint", ckptDir,
		"examples", set.Size(),
		"dev_as_test", devAsTest,
	)

	preds := predictions{
		Logits:   make([][]float64, 0, set.Size()),
		LabelIDs: make([]int, 0, set.Size()),
	}
	for _, b := range set.Batches(e.run.EvalBatchSize, nil) {
		logits, err := m.Forward(b.InputIDs, b.SegmentIDs, b.Masks, nil)
		if err != nil {
			return errors.Wrap(err, "evaluation forward pass")
		}
		for i := 0; i < logits.Data.Rows; i++ {
			row := make([]float64, logits.Data.Cols)
			copy(row, logits.Data.Data[i])
			preds.Logits = append(preds.Logits, row)
		}
		preds.LabelIDs = append(preds.LabelIDs, b.LabelIDs...)
	}

	data, err := json.Marshal(preds)
	if err != nil {
		return errors.Wrap(err, "encode predictions")
	}
	path := filepath.Join(ckptDir, PredictionsFile)
	return errors.Wrapf(os.WriteFile(path, data, 0644), "write %s", path)
}
