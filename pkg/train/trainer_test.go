package train

import (
	"encoding/json"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/absa_transformer/internal/config"
	"github.com/absa_transformer/internal/features"
	"github.com/absa_transformer/pkg/model"
	"github.com/absa_transformer/pkg/tensor"
)

// fakeTokenizer maps words to ids inside the tiny test vocabulary.
type fakeTokenizer struct{}

func (fakeTokenizer) Encode(text string) ([]int, error) {
	var ids []int
	for _, w := range strings.Fields(text) {
		sum := 0
		for _, r := range w {
			sum += int(r)
		}
		ids = append(ids, 5+sum%40)
	}
	return ids, nil
}

func (fakeTokenizer) ClsID() int { return 1 }
func (fakeTokenizer) SepID() int { return 2 }
func (fakeTokenizer) PadID() int { return 0 }

func testConfig() *model.Config {
	return &model.Config{
		VocabSize:             50,
		HiddenSize:            8,
		NumLayers:             4,
		NumHeads:              2,
		IntermediateSize:      16,
		MaxPositionEmbeddings: 16,
		TypeVocabSize:         2,
		LayerNormEps:          1e-12,
	}
}

func writeSplit(t *testing.T, dir, split, data string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, split+".json"), []byte(data), 0644))
}

func setupData(t *testing.T) string {
	t.Helper()
	dataDir := t.TempDir()
	train := `{
		"1": {"term": "battery", "sentence": "battery life is great", "polarity": "positive"},
		"2": {"term": "screen", "sentence": "the screen flickers", "polarity": "negative"},
		"3": {"term": "keyboard", "sentence": "keyboard feels fine", "polarity": "neutral"},
		"4": {"term": "speakers", "sentence": "speakers are loud and clear", "polarity": "positive"}
	}`
	dev := `{
		"1": {"term": "price", "sentence": "price is too high", "polarity": "negative"},
		"2": {"term": "design", "sentence": "sleek design", "polarity": "positive"}
	}`
	test := `{
		"1": {"term": "battery", "sentence": "battery drains quickly", "polarity": "negative"},
		"2": {"term": "screen", "sentence": "gorgeous screen", "polarity": "positive"}
	}`
	writeSplit(t, dataDir, "train", train)
	writeSplit(t, dataDir, "dev", dev)
	writeSplit(t, dataDir, "test", test)
	writeSplit(t, filepath.Join(dataDir, features.DevAsTestDir), "test", dev)
	return dataDir
}

func loadSet(t *testing.T, dataDir, split string, maxSeqLen int) *features.Set {
	t.Helper()
	examples, err := features.LoadSplit(dataDir, split)
	require.NoError(t, err)
	set, err := features.Convert(examples, fakeTokenizer{}, maxSeqLen)
	require.NoError(t, err)
	return set
}

func TestValidatedRunArtifacts(t *testing.T) {
	dataDir := setupData(t)
	run := &config.Run{
		DataDir:          dataDir,
		OutputDir:        t.TempDir(),
		MaxSeqLength:     16,
		DoTrain:          true,
		DoValid:          true,
		TrainBatchSize:   2,
		EvalBatchSize:    2,
		LearningRate:     1e-3,
		NumTrainEpochs:   2,
		WarmupProportion: 0.5,
	}

	tensor.Seed(5)
	m, err := model.New(testConfig(), 3)
	require.NoError(t, err)

	log := zap.NewNop().Sugar()
	eval := NewEvaluator(run, fakeTokenizer{}, log)
	trainer := NewTrainer(m, run, eval, log, rand.New(rand.NewSource(5)))

	trainSet := loadSet(t, dataDir, "train", run.MaxSeqLength)
	validSet := loadSet(t, dataDir, "dev", run.MaxSeqLength)
	require.NoError(t, trainer.Train(trainSet, validSet))

	// One validation loss per epoch.
	data, err := os.ReadFile(filepath.Join(run.OutputDir, ValidationHistoryFile))
	require.NoError(t, err)
	var history struct {
		ValidLosses []float64 `json:"valid_losses"`
	}
	require.NoError(t, json.Unmarshal(data, &history))
	require.Len(t, history.ValidLosses, 2)
	for _, l := range history.ValidLosses {
		assert.Greater(t, l, 0.0)
	}

	// Epoch directories keep their predictions but not their checkpoints.
	for _, epoch := range []string{"1", "2"} {
		epochDir := filepath.Join(run.OutputDir, epoch)
		assert.FileExists(t, filepath.Join(epochDir, PredictionsFile))
		assert.NoFileExists(t, filepath.Join(epochDir, model.SnapshotFile))
	}

	// The final checkpoint and its test predictions land at the top level.
	assert.FileExists(t, filepath.Join(run.OutputDir, model.SnapshotFile))
	assert.FileExists(t, filepath.Join(run.OutputDir, PredictionsFile))
}

func TestUnvalidatedRunSavesFinalCheckpointOnly(t *testing.T) {
	dataDir := setupData(t)
	run := &config.Run{
		DataDir:          dataDir,
		OutputDir:        t.TempDir(),
		MaxSeqLength:     16,
		DoTrain:          true,
		TrainBatchSize:   2,
		EvalBatchSize:    2,
		LearningRate:     1e-3,
		NumTrainEpochs:   1,
		WarmupProportion: 0.5,
	}

	tensor.Seed(6)
	m, err := model.New(testConfig(), 3)
	require.NoError(t, err)

	log := zap.NewNop().Sugar()
	trainer := NewTrainer(m, run, NewEvaluator(run, fakeTokenizer{}, log), log, rand.New(rand.NewSource(6)))

	trainSet := loadSet(t, dataDir, "train", run.MaxSeqLength)
	require.NoError(t, trainer.Train(trainSet, nil))

	assert.FileExists(t, filepath.Join(run.OutputDir, model.SnapshotFile))
	assert.NoFileExists(t, filepath.Join(run.OutputDir, ValidationHistoryFile))
	assert.NoDirExists(t, filepath.Join(run.OutputDir, "1"))
}

func TestValidatedRunRequiresValidationSet(t *testing.T) {
	run := &config.Run{
		DataDir:        t.TempDir(),
		OutputDir:      t.TempDir(),
		DoTrain:        true,
		DoValid:        true,
		TrainBatchSize: 2,
		NumTrainEpochs: 1,
		LearningRate:   1e-3,
	}

	tensor.Seed(7)
	m, err := model.New(testConfig(), 3)
	require.NoError(t, err)
	log := zap.NewNop().Sugar()
	trainer := NewTrainer(m, run, NewEvaluator(run, fakeTokenizer{}, log), log, rand.New(rand.NewSource(7)))

	err = trainer.Train(&features.Set{Features: make([]features.Feature, 1)}, nil)
	assert.Error(t, err)
}

func TestTrainingChangesParameters(t *testing.T) {
	dataDir := setupData(t)
	run := &config.Run{
		DataDir:          dataDir,
		OutputDir:        t.TempDir(),
		MaxSeqLength:     16,
		DoTrain:          true,
		TrainBatchSize:   2,
		EvalBatchSize:    2,
		LearningRate:     1e-3,
		NumTrainEpochs:   1,
		WarmupProportion: 0.5,
	}

	tensor.Seed(8)
	m, err := model.New(testConfig(), 3)
	require.NoError(t, err)

	before, err := m.NamedParameters()["head.classifier.weight"].Data.Clone()
	require.NoError(t, err)
	poolerBefore, err := m.NamedParameters()["head.pooler.dense.weight"].Data.Clone()
	require.NoError(t, err)

	log := zap.NewNop().Sugar()
	trainer := NewTrainer(m, run, NewEvaluator(run, fakeTokenizer{}, log), log, rand.New(rand.NewSource(8)))
	require.NoError(t, trainer.Train(loadSet(t, dataDir, "train", run.MaxSeqLength), nil))

	after := m.NamedParameters()["head.classifier.weight"]
	assert.NotEqual(t, before.Data, after.Data.Data)

	// Pooler parameters sit outside every optimizer group and must not move.
	poolerAfter := m.NamedParameters()["head.pooler.dense.weight"]
	assert.Equal(t, poolerBefore.Data, poolerAfter.Data.Data)
}

func TestWeightedAverageLoss(t *testing.T) {
	got := WeightedAverageLoss([]float64{2.0, 5.0}, []int{3, 1})
	assert.InDelta(t, 2.75, got, 1e-12)
	assert.Equal(t, 0.0, WeightedAverageLoss(nil, nil))
}
