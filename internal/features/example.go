// Package features loads aspect sentiment examples and converts them into
// the padded feature batches the model consumes.
package features

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"

	"github.com/pkg/errors"
)

// DevAsTestDir is the subdirectory holding the dev-as-test split: the dev
// set reused as a secondary test set for training-time monitoring.
const DevAsTestDir = "dev_as_test"

// Example is one aspect sentiment instance: a sentence, the aspect term the
// polarity refers to, and the polarity label. Polarity is empty for
// unlabeled evaluation inputs.
type Example struct {
	ID       string
	Sentence string
	Term     string
	Polarity string
}

// Labels returns the polarity label set in id order.
func Labels() []string {
	return []string{"positive", "negative", "neutral"}
}

// LabelID maps a polarity string to its label id, or -1 for unlabeled
// inputs. -1 never contributes to the loss.
func LabelID(polarity string) int {
	for i, l := range Labels() {
		if l == polarity {
			return i
		}
	}
	return -1
}

type rawExample struct {
	Term     string `json:"term"`
	Sentence string `json:"sentence"`
	Polarity string `json:"polarity"`
}

// LoadSplit reads <split>.json from dataDir. The file is a JSON object
// keyed by example id; examples are returned sorted by id so every load of
// the same split yields the same order.
func LoadSplit(dataDir, split string) ([]Example, error) {
	path := filepath.Join(dataDir, split+".json")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read split %s", path)
	}

	var raw map[string]rawExample
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, errors.Wrapf(err, "decode split %s", path)
	}

	ids := make([]string, 0, len(raw))
	for id := range raw {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	examples := make([]Example, 0, len(ids))
	for _, id := range ids {
		r := raw[id]
		examples = append(examples, Example{
			ID:       id,
			Sentence: r.Sentence,
			Term:     r.Term,
			Polarity: r.Polarity,
		})
	}
	return examples, nil
}
