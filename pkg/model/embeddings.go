package model

import (
	"fmt"

	"github.com/absa_transformer/pkg/tensor"
)

// Embeddings maps token, position and segment ids to summed, normalized
// hidden vectors.
type Embeddings struct {
	Word     *tensor.Tensor
	Position *tensor.Tensor
	Type     *tensor.Tensor
	Norm     *Norm
}

func newEmbeddings(cfg *Config) (*Embeddings, error) {
	word, err := tensor.NewRandomTensor(cfg.VocabSize, cfg.HiddenSize,
		&tensor.TensorConfig{RequiresGrad: true, Name: "embeddings.word"})
	if err != nil {
		return nil, err
	}
	position, err := tensor.NewRandomTensor(cfg.MaxPositionEmbeddings, cfg.HiddenSize,
		&tensor.TensorConfig{RequiresGrad: true, Name: "embeddings.position"})
	if err != nil {
		return nil, err
	}
	typ, err := tensor.NewRandomTensor(cfg.TypeVocabSize, cfg.HiddenSize,
		&tensor.TensorConfig{RequiresGrad: true, Name: "embeddings.type"})
	if err != nil {
		return nil, err
	}
	norm, err := newNorm(cfg.HiddenSize, cfg.LayerNormEps, "embeddings.norm")
	if err != nil {
		return nil, err
	}
	return &Embeddings{Word: word, Position: position, Type: typ, Norm: norm}, nil
}

// Forward embeds one example sequence into a seqLen x hidden tensor.
func (e *Embeddings) Forward(inputIDs, segmentIDs []int) (*tensor.Tensor, error) {
	if len(inputIDs) == 0 {
		return nil, fmt.Errorf("empty input sequence")
	}
	if len(segmentIDs) != len(inputIDs) {
		return nil, fmt.Errorf("segment ids length %d doesn't match input length %d", len(segmentIDs), len(inputIDs))
	}
	if len(inputIDs) > e.Position.Rows() {
		return nil, fmt.Errorf("sequence length %d exceeds max position embeddings %d", len(inputIDs), e.Position.Rows())
	}

	word, err := tensor.EmbeddingRows(e.Word, inputIDs)
	if err != nil {
		return nil, fmt.Errorf("word embedding: %v", err)
	}

	posIDs := make([]int, len(inputIDs))
	for i := range posIDs {
		posIDs[i] = i
	}
	pos, err := tensor.EmbeddingRows(e.Position, posIDs)
	if err != nil {
		return nil, fmt.Errorf("position embedding: %v", err)
	}

	typ, err := tensor.EmbeddingRows(e.Type, segmentIDs)
	if err != nil {
		return nil, fmt.Errorf("type embedding: %v", err)
	}

	sum, err := tensor.Add(word, pos)
	if err != nil {
		return nil, err
	}
	sum, err = tensor.Add(sum, typ)
	if err != nil {
		return nil, err
	}
	return e.Norm.Forward(sum)
}

func (e *Embeddings) collectParams(prefix string, out map[string]*tensor.Tensor) {
	out[prefix+".word"] = e.Word
	out[prefix+".position"] = e.Position
	out[prefix+".type"] = e.Type
	e.Norm.collectParams(prefix+".norm", out)
}
