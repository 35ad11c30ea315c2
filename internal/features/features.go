package features

import (
	"math/rand"

	"github.com/pkg/errors"
)

// Tokenizer produces token ids for raw text. The production implementation
// wraps a WordPiece tokenizer; tests substitute a deterministic fake.
type Tokenizer interface {
	Encode(text string) ([]int, error)
	ClsID() int
	SepID() int
	PadID() int
}

// Feature is one converted example: a sentence-term id pair packed as
// [CLS] sentence [SEP] term [SEP], padded to the configured length.
type Feature struct {
	InputIDs   []int
	SegmentIDs []int
	Mask       []float64
	LabelID    int
}

// Set is an ordered collection of features for one dataset split.
type Set struct {
	Features []Feature
}

// Size returns the number of examples in the set.
func (s *Set) Size() int { return len(s.Features) }

// Convert tokenizes examples into fixed-length features. The sentence gets
// segment id 0 and the aspect term segment id 1; when the pair exceeds the
// length budget, the longer side is trimmed from its end first.
func Convert(examples []Example, tok Tokenizer, maxSeqLen int) (*Set, error) {
	if maxSeqLen < 8 {
		return nil, errors.Errorf("max sequence length %d too small", maxSeqLen)
	}

	set := &Set{Features: make([]Feature, 0, len(examples))}
	for _, ex := range examples {
		sent, err := tok.Encode(ex.Sentence)
		if err != nil {
			return nil, errors.Wrapf(err, "tokenize sentence of example %s", ex.ID)
		}
		term, err := tok.Encode(ex.Term)
		if err != nil {
			return nil, errors.Wrapf(err, "tokenize term of example %s", ex.ID)
		}

		// Budget excludes [CLS] and the two [SEP] markers.
		budget := maxSeqLen - 3
		for len(sent)+len(term) > budget {
			if len(sent) >= len(term) {
				sent = sent[:len(sent)-1]
			} else {
				term = term[:len(term)-1]
			}
		}

		ids := make([]int, 0, maxSeqLen)
		segs := make([]int, 0, maxSeqLen)
		ids = append(ids, tok.ClsID())
		segs = append(segs, 0)
		for _, id := range sent {
			ids = append(ids, id)
			segs = append(segs, 0)
		}
		ids = append(ids, tok.SepID())
		segs = append(segs, 0)
		for _, id := range term {
			ids = append(ids, id)
			segs = append(segs, 1)
		}
		ids = append(ids, tok.SepID())
		segs = append(segs, 1)

		mask := make([]float64, maxSeqLen)
		for i := range ids {
			mask[i] = 1.0
		}
		for len(ids) < maxSeqLen {
			ids = append(ids, tok.PadID())
			segs = append(segs, 0)
		}

		set.Features = append(set.Features, Feature{
			InputIDs:   ids,
			SegmentIDs: segs,
			Mask:       mask,
			LabelID:    LabelID(ex.Polarity),
		})
	}
	return set, nil
}

// Batch is a fixed-size slice of features laid out for a model forward pass.
type Batch struct {
	InputIDs   [][]int
	SegmentIDs [][]int
	Masks      [][]float64
	LabelIDs   []int
}

// Size returns the number of examples in the batch.
func (b *Batch) Size() int { return len(b.InputIDs) }

// Batches splits the set into batches of at most batchSize examples. With a
// non-nil rng the example order is shuffled first (training); with nil the
// original order is preserved (validation and evaluation).
func (s *Set) Batches(batchSize int, rng *rand.Rand) []Batch {
	order := make([]int, len(s.Features))
	for i := range order {
		order[i] = i
	}
	if rng != nil {
		rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
	}

	var batches []Batch
	for start := 0; start < len(order); start += batchSize {
		end := start + batchSize
		if end > len(order) {
			end = len(order)
		}
		b := Batch{
			InputIDs:   make([][]int, 0, end-start),
			SegmentIDs: make([][]int, 0, end-start),
			Masks:      make([][]float64, 0, end-start),
			LabelIDs:   make([]int, 0, end-start),
		}
		for _, idx := range order[start:end] {
			f := s.Features[idx]
			b.InputIDs = append(b.InputIDs, f.InputIDs)
			b.SegmentIDs = append(b.SegmentIDs, f.SegmentIDs)
			b.Masks = append(b.Masks, f.Mask)
			b.LabelIDs = append(b.LabelIDs, f.LabelID)
		}
		batches = append(batches, b)
	}
	return batches
}
