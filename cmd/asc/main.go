// Command asc fine-tunes a transformer encoder for aspect-based sentiment
// classification and evaluates checkpoints on held-out splits.
package main

import (
	"fmt"
	"math/rand"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/absa_transformer/internal/config"
	"github.com/absa_transformer/internal/features"
	"github.com/absa_transformer/pkg/model"
	"github.com/absa_transformer/pkg/tensor"
	"github.com/absa_transformer/pkg/train"
)

var (
	run     config.Run
	logFile string
)

var rootCmd = &cobra.Command{
	Use:   "asc",
	Short: "Fine-tune a transformer encoder for aspect sentiment classification",
	Long: `asc trains a transformer encoder with a multi-layer pooling head on
aspect sentiment data and writes checkpoints and raw predictions into the
output directory.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return execute()
	},
}

func init() {
	f := rootCmd.Flags()
	f.StringVar(&run.BertModel, "bert-model", "bert-base", "encoder variant (bert-base, bert-mini, bert-tiny)")
	f.StringVar(&run.DataDir, "data-dir", "", "directory with train/dev/test splits")
	f.StringVar(&run.OutputDir, "output-dir", "", "directory for checkpoints and predictions")
	f.StringVar(&run.VocabFile, "vocab-file", "", "tokenizer.json file with the WordPiece vocabulary")
	f.StringVar(&run.InitCheckpoint, "init-checkpoint", "", "optional directory with pretrained encoder weights")
	f.IntVar(&run.MaxSeqLength, "max-seq-length", 100, "maximum token length of a packed sentence-term pair")
	f.BoolVar(&run.DoTrain, "do-train", false, "run training")
	f.BoolVar(&run.DoValid, "do-valid", false, "validate after every epoch and evaluate dev-as-test")
	f.BoolVar(&run.DoEval, "do-eval", false, "evaluate the final checkpoint on the test split")
	f.IntVar(&run.TrainBatchSize, "train-batch-size", 32, "training batch size")
	f.IntVar(&run.EvalBatchSize, "eval-batch-size", 8, "evaluation batch size")
	f.Float64Var(&run.LearningRate, "learning-rate", 3e-5, "peak learning rate")
	f.IntVar(&run.NumTrainEpochs, "num-train-epochs", 4, "number of training epochs")
	f.Float64Var(&run.WarmupProportion, "warmup-proportion", 0.1, "fraction of steps spent in linear warmup")
	f.Int64Var(&run.Seed, "seed", 42, "random seed for init and shuffling")
	f.StringVar(&logFile, "log-file", "", "optional JSON log file, rotated at 50MB")
}

func newLogger() *zap.SugaredLogger {
	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	console := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encCfg),
		zapcore.Lock(os.Stderr),
		zapcore.InfoLevel,
	)

	core := console
	if logFile != "" {
		sink := zapcore.AddSync(&lumberjack.Logger{
			Filename:   logFile,
			MaxSize:    50,
			MaxBackups: 3,
		})
		file := zapcore.NewCore(
			zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
			sink,
			zapcore.DebugLevel,
		)
		core = zapcore.NewTee(console, file)
	}
	return zap.New(core).Sugar()
}

func execute() error {
	if err := run.Validate(); err != nil {
		return err
	}

	log := newLogger()
	defer log.Sync()

	tensor.Seed(run.Seed)
	rng := rand.New(rand.NewSource(run.Seed))

	if err := os.MkdirAll(run.OutputDir, 0755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	tok, err := features.NewWordPiece(run.VocabFile)
	if err != nil {
		return err
	}
	eval := train.NewEvaluator(&run, tok, log)

	if run.DoTrain {
		cfg, err := model.VariantConfig(run.BertModel)
		if err != nil {
			return err
		}
		m, err := model.New(cfg, model.DefaultNumLabels)
		if err != nil {
			return err
		}
		if run.InitCheckpoint != "" {
			if err := model.LoadEncoderWeights(m, run.InitCheckpoint); err != nil {
				return err
			}
			log.Infow("loaded pretrained encoder", "checkpoint", run.InitCheckpoint)
		}

		trainExamples, err := features.LoadSplit(run.DataDir, "train")
		if err != nil {
			return err
		}
		trainSet, err := features.Convert(trainExamples, tok, run.MaxSeqLength)
		if err != nil {
			return err
		}

		var validSet *features.Set
		if run.Mode() == config.ValidatedRun {
			devExamples, err := features.LoadSplit(run.DataDir, "dev")
			if err != nil {
				return err
			}
			validSet, err = features.Convert(devExamples, tok, run.MaxSeqLength)
			if err != nil {
				return err
			}
		}

		trainer := train.NewTrainer(m, &run, eval, log, rng)
		if err := trainer.Train(trainSet, validSet); err != nil {
			return err
		}
	}

	if run.DoEval {
		if err := eval.Evaluate(run.OutputDir, false); err != nil {
			return err
		}
	}
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
