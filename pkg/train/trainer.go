// Package train drives the epoch/batch fine-tuning loop, validation and
// checkpoint-backed evaluation.
package train

import (
	"encoding/json"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"

	"github.com/pkg/errors"
	"github.com/schollz/progressbar/v2"
	"go.uber.org/zap"

	"github.com/absa_transformer/internal/config"
	"github.com/absa_transformer/internal/features"
	"github.com/absa_transformer/pkg/model"
	"github.com/absa_transformer/pkg/schedule"
)

// ValidationHistoryFile is written at the end of a validated run.
const ValidationHistoryFile = "valid.json"

// Trainer owns the model parameters for the duration of a run. The
// evaluation path never touches them: it reloads checkpoints from disk.
type Trainer struct {
	model *model.Model
	run   *config.Run
	opt   *Adam
	eval  *Evaluator
	log   *zap.SugaredLogger
	rng   *rand.Rand
}

// NewTrainer wires a trainer around a model. rng drives the per-epoch
// training shuffle.
func NewTrainer(m *model.Model, run *config.Run, eval *Evaluator, log *zap.SugaredLogger, rng *rand.Rand) *Trainer {
	groups := BuildParameterGroups(m.NamedParameters())
	return &Trainer{
		model: m,
		run:   run,
		opt:   NewAdam(run.LearningRate, groups),
		eval:  eval,
		log:   log,
		rng:   rng,
	}
}

// Train runs the full fine-tuning loop. validSet may be nil for an
// unvalidated run; a validated run requires it.
func (t *Trainer) Train(trainSet, validSet *features.Set) error {
	validated := t.run.Mode() == config.ValidatedRun
	if validated && validSet == nil {
		return errors.New("validated run requires a validation set")
	}

	epochs := t.run.NumTrainEpochs
	batches := trainSet.Batches(t.run.TrainBatchSize, t.rng)
	totalSteps := len(batches) * epochs
	if totalSteps == 0 {
		return errors.New("empty training set")
	}

	t.log.Infow("starting training",
		"examples", trainSet.Size(),
		"batch_size", t.run.TrainBatchSize,
		"epochs", epochs,
		"total_steps", totalSteps,
	)

	globalStep := 0
	bestValidLoss := math.Inf(1)
	var history []float64

	for epoch := 1; epoch <= epochs; epoch++ {
		if epoch > 1 {
			batches = trainSet.Batches(t.run.TrainBatchSize, t.rng)
		}

		bar := progressbar.New(len(batches))
		var lastLoss float64
		for _, b := range batches {
			t.model.ZeroGrad()
			loss, err := t.model.Forward(b.InputIDs, b.SegmentIDs, b.Masks, b.LabelIDs)
			if err != nil {
				return errors.Wrapf(err, "forward pass at step %d", globalStep)
			}
			if err := loss.Backward(); err != nil {
				return errors.Wrapf(err, "backward pass at step %d", globalStep)
			}

			lr := schedule.LearningRate(t.run.LearningRate, globalStep, totalSteps, t.run.WarmupProportion)
			t.opt.SetLearningRate(lr)
			t.opt.Step()
			globalStep++

			lastLoss, _ = loss.Item()
			_ = bar.Add(1)
		}
		t.log.Infow("epoch finished", "epoch", epoch, "training_loss", lastLoss)

		if validated {
			epochDir := filepath.Join(t.run.OutputDir, strconv.Itoa(epoch))
			if err := os.Mkdir(epochDir, 0755); err != nil {
				return errors.Wrapf(err, "create epoch dir %s", epochDir)
			}

			validLoss, err := t.validate(validSet)
			if err != nil {
				return errors.Wrapf(err, "validation after epoch %d", epoch)
			}
			t.log.Infow("validation finished", "epoch", epoch, "validation_loss", validLoss)
			history = append(history, validLoss)

			// The epoch checkpoint exists only long enough to evaluate
			// against the dev-as-test split; it is removed below.
			if err := model.Save(t.model, epochDir); err != nil {
				return err
			}
			if err := t.eval.Evaluate(epochDir, true); err != nil {
				return errors.Wrapf(err, "dev-as-test evaluation after epoch %d", epoch)
			}
			if epoch == epochs {
				if err := model.Save(t.model, t.run.OutputDir); err != nil {
					return err
				}
				if err := t.eval.Evaluate(t.run.OutputDir, false); err != nil {
					return errors.Wrap(err, "final test evaluation")
				}
			}
			if err := os.Remove(filepath.Join(epochDir, model.SnapshotFile)); err != nil {
				return errors.Wrapf(err, "release epoch checkpoint %d", epoch)
			}

			if validLoss < bestValidLoss {
				bestValidLoss = validLoss
			}
		}
	}

	if validated {
		t.log.Infow("training complete", "best_validation_loss", bestValidLoss)
		return t.writeHistory(history)
	}
	t.log.Infow("training complete")
	return model.Save(t.model, t.run.OutputDir)
}

// validate computes the size-weighted mean loss over the validation set in
// sequential order. Weighting each batch's mean loss by its size keeps a
// partial final batch from skewing the average.
func (t *Trainer) validate(validSet *features.Set) (float64, error) {
	weighted := 0.0
	total := 0
	for _, b := range validSet.Batches(t.run.TrainBatchSize, nil) {
		loss, err := t.model.Forward(b.InputIDs, b.SegmentIDs, b.Masks, b.LabelIDs)
		if err != nil {
			return 0, err
		}
		val, err := loss.Item()
		if err != nil {
			return 0, err
		}
		weighted += val * float64(b.Size())
		total += b.Size()
	}
	if total == 0 {
		return 0, errors.New("empty validation set")
	}
	return weighted / float64(total), nil
}

func (t *Trainer) writeHistory(losses []float64) error {
	payload := struct {
		ValidLosses []float64 `json:"valid_losses"`
	}{ValidLosses: losses}

	data, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrap(err, "encode validation history")
	}
	path := filepath.Join(t.run.OutputDir, ValidationHistoryFile)
	return errors.Wrapf(os.WriteFile(path, data, 0644), "write %s", path)
}

// WeightedAverageLoss combines per-batch mean losses into a per-example
// mean. Exposed for reuse and direct testing of the weighting rule.
func WeightedAverageLoss(losses []float64, sizes []int) float64 {
	weighted := 0.0
	total := 0
	for i, l := range losses {
		weighted += l * float64(sizes[i])
		total += sizes[i]
	}
	if total == 0 {
		return 0
	}
	return weighted / float64(total)
}
