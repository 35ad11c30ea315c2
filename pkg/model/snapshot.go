package model

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// SnapshotFile is the checkpoint file name inside a checkpoint directory.
const SnapshotFile = "model.json"

// Snapshot is the serialized form of a model: the head/encoder configuration
// plus every named parameter matrix.
type Snapshot struct {
	Config      *Config                `json:"config"`
	NumLabels   int                    `json:"num_labels"`
	BranchCount int                    `json:"branch_count"`
	Params      map[string][][]float64 `json:"params"`
}

// Save writes a checkpoint of m into dir.
func Save(m *Model, dir string) error {
	snap := &Snapshot{
		Config:      m.Config,
		NumLabels:   m.NumLabels,
		BranchCount: m.Head.Count,
		Params:      make(map[string][][]float64),
	}
	for name, p := range m.NamedParameters() {
		snap.Params[name] = p.Data.Data
	}

	data, err := json.Marshal(snap)
	if err != nil {
		return errors.Wrap(err, "encode snapshot")
	}
	path := filepath.Join(dir, SnapshotFile)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.Wrapf(err, "write checkpoint %s", path)
	}
	return nil
}

// Load reconstructs a model from the checkpoint in dir.
func Load(dir string) (*Model, error) {
	path := filepath.Join(dir, SnapshotFile)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read checkpoint %s", path)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, errors.Wrapf(err, "decode checkpoint %s", path)
	}
	if snap.Config == nil {
		return nil, errors.Errorf("checkpoint %s has no config", path)
	}
	if snap.BranchCount != BranchCount {
		return nil, errors.Errorf("checkpoint %s has branch count %d, want %d", path, snap.BranchCount, BranchCount)
	}

	m, err := New(snap.Config, snap.NumLabels)
	if err != nil {
		return nil, errors.Wrap(err, "rebuild model")
	}
	if err := restore(m, snap.Params, ""); err != nil {
		return nil, errors.Wrapf(err, "restore checkpoint %s", path)
	}
	return m, nil
}

// LoadEncoderWeights copies only the encoder parameters from the checkpoint
// in dir into m, leaving the head at its fresh initialization. This is how a
// pretrained encoder is brought in before fine-tuning.
func LoadEncoderWeights(m *Model, dir string) error {
	path := filepath.Join(dir, SnapshotFile)
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "read init checkpoint %s", path)
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return errors.Wrapf(err, "decode init checkpoint %s", path)
	}
	return errors.Wrapf(restore(m, snap.Params, "encoder."), "restore encoder from %s", path)
}

// restore copies the matrices in params into the model's named parameters.
// With a non-empty prefix only matching names are restored, and every
// prefixed name must be present in the snapshot.
func restore(m *Model, params map[string][][]float64, prefix string) error {
	named := m.NamedParameters()

	names := make([]string, 0, len(named))
	for name := range named {
		if prefix == "" || strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	for _, name := range names {
		rows, ok := params[name]
		if !ok {
			return errors.Errorf("parameter %q missing from snapshot", name)
		}
		p := named[name]
		if len(rows) != p.Data.Rows {
			return errors.Errorf("parameter %q has %d rows, want %d", name, len(rows), p.Data.Rows)
		}
		for i, row := range rows {
			if len(row) != p.Data.Cols {
				return errors.Errorf("parameter %q row %d has %d cols, want %d", name, i, len(row), p.Data.Cols)
			}
			copy(p.Data.Data[i], row)
		}
	}
	return nil
}
