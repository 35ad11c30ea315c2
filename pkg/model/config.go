package model

import "fmt"

// Config describes the encoder architecture. It is shared by the encoder
// stack and the refinement layers of the pooling head.
type Config struct {
	VocabSize             int     `json:"vocab_size"`
	HiddenSize            int     `json:"hidden_size"`
	NumLayers             int     `json:"num_layers"`
	NumHeads              int     `json:"num_heads"`
	IntermediateSize      int     `json:"intermediate_size"`
	MaxPositionEmbeddings int     `json:"max_position_embeddings"`
	TypeVocabSize         int     `json:"type_vocab_size"`
	LayerNormEps          float64 `json:"layer_norm_eps"`
}

// Validate checks structural invariants that must hold before any tensor is
// allocated.
func (c *Config) Validate() error {
	if c.VocabSize <= 0 {
		return fmt.Errorf("vocab size must be positive, have %d", c.VocabSize)
	}
	if c.HiddenSize <= 0 || c.NumHeads <= 0 {
		return fmt.Errorf("hidden size and head count must be positive, have %d and %d", c.HiddenSize, c.NumHeads)
	}
	if c.HiddenSize%c.NumHeads != 0 {
		return fmt.Errorf("hidden size %d not divisible by %d heads", c.HiddenSize, c.NumHeads)
	}
	if c.NumLayers <= 0 {
		return fmt.Errorf("layer count must be positive, have %d", c.NumLayers)
	}
	if c.IntermediateSize <= 0 {
		return fmt.Errorf("intermediate size must be positive, have %d", c.IntermediateSize)
	}
	if c.MaxPositionEmbeddings <= 0 || c.TypeVocabSize <= 0 {
		return fmt.Errorf("position and type vocab sizes must be positive")
	}
	return nil
}

// variants maps encoder identifiers to architecture presets. The vocabulary
// size matches the uncased WordPiece vocabulary all presets share.
var variants = map[string]Config{
	"bert-base": {
		VocabSize:             30522,
		HiddenSize:            768,
		NumLayers:             12,
		NumHeads:              12,
		IntermediateSize:      3072,
		MaxPositionEmbeddings: 512,
		TypeVocabSize:         2,
		LayerNormEps:          1e-12,
	},
	"bert-mini": {
		VocabSize:             30522,
		HiddenSize:            256,
		NumLayers:             4,
		NumHeads:              4,
		IntermediateSize:      1024,
		MaxPositionEmbeddings: 512,
		TypeVocabSize:         2,
		LayerNormEps:          1e-12,
	},
	"bert-tiny": {
		VocabSize:             30522,
		HiddenSize:            128,
		NumLayers:             4,
		NumHeads:              2,
		IntermediateSize:      512,
		MaxPositionEmbeddings: 512,
		TypeVocabSize:         2,
		LayerNormEps:          1e-12,
	},
}

// VariantConfig returns the architecture preset for a named encoder variant.
func VariantConfig(name string) (*Config, error) {
	c, ok := variants[name]
	if !ok {
		return nil, fmt.Errorf("unknown encoder variant %q", name)
	}
	return &c, nil
}
