package features

import (
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTokenizer maps each whitespace-separated word to a deterministic id.
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

func TestLabelIDMapping(t *testing.T) {
	assert.Equal(t, 0, LabelID("positive"))
	assert.Equal(t, 1, LabelID("negative"))
	assert.Equal(t, 2, LabelID("neutral"))
	assert.Equal(t, -1, LabelID(""))
	assert.Equal(t, -1, LabelID("conflict"))
}

func TestConvertLayout(t *testing.T) {
	examples := []Example{{ID: "1", Sentence: "great fast battery", Term: "battery", Polarity: "positive"}}
	set, err := Convert(examples, fakeTokenizer{}, 12)
	require.NoError(t, err)
	require.Equal(t, 1, set.Size())

	f := set.Features[0]
	require.Len(t, f.InputIDs, 12)
	require.Len(t, f.SegmentIDs, 12)
	require.Len(t, f.Mask, 12)

	tok := fakeTokenizer{}
	sent, _ := tok.Encode("great fast battery")
	term, _ := tok.Encode("battery")

	// [CLS] sentence [SEP] term [SEP], then padding.
	assert.Equal(t, tok.ClsID(), f.InputIDs[0])
	assert.Equal(t, sent, f.InputIDs[1:1+len(sent)])
	assert.Equal(t, tok.SepID(), f.InputIDs[1+len(sent)])
	assert.Equal(t, term, f.InputIDs[2+len(sent):2+len(sent)+len(term)])
	assert.Equal(t, tok.SepID(), f.InputIDs[2+len(sent)+len(term)])

	used := 3 + len(sent) + len(term)
	for i := 0; i < 12; i++ {
		if i < used {
			assert.Equal(t, 1.0, f.Mask[i], "position %d", i)
		} else {
			assert.Equal(t, 0.0, f.Mask[i], "position %d", i)
			assert.Equal(t, tok.PadID(), f.InputIDs[i])
		}
	}

	// Sentence tokens carry segment 0, term tokens and the final [SEP] 1.
	for i := 0; i <= 1+len(sent); i++ {
		assert.Equal(t, 0, f.SegmentIDs[i])
	}
	for i := 2 + len(sent); i < used; i++ {
		assert.Equal(t, 1, f.SegmentIDs[i])
	}

	assert.Equal(t, 0, f.LabelID)
}

func TestConvertTruncatesLongerSide(t *testing.T) {
	long := strings.Repeat("word ", 30)
	examples := []Example{{ID: "1", Sentence: long, Term: "screen", Polarity: "neutral"}}
	set, err := Convert(examples, fakeTokenizer{}, 10)
	require.NoError(t, err)

	f := set.Features[0]
	require.Len(t, f.InputIDs, 10)
	// The term survives intact; the sentence absorbs the truncation.
	term, _ := fakeTokenizer{}.Encode("screen")
	assert.Contains(t, f.InputIDs, term[0])
}

func TestConvertRejectsTinySeqLen(t *testing.T) {
	_, err := Convert(nil, fakeTokenizer{}, 4)
	assert.Error(t, err)
}

func TestBatchesPreserveOrderWithoutRng(t *testing.T) {
	set := &Set{}
	for i := 0; i < 5; i++ {
		set.Features = append(set.Features, Feature{LabelID: i})
	}

	batches := set.Batches(2, nil)
	require.Len(t, batches, 3)
	assert.Equal(t, []int{0, 1}, batches[0].LabelIDs)
	assert.Equal(t, []int{2, 3}, batches[1].LabelIDs)
	assert.Equal(t, []int{4}, batches[2].LabelIDs)
}

func TestBatchesShuffleWithRng(t *testing.T) {
	set := &Set{}
	for i := 0; i < 64; i++ {
		set.Features = append(set.Features, Feature{LabelID: i})
	}

	rng := rand.New(rand.NewSource(1))
	batches := set.Batches(64, rng)
	require.Len(t, batches, 1)

	seen := make(map[int]bool)
	identity := true
	for i, id := range batches[0].LabelIDs {
		seen[id] = true
		if id != i {
			identity = false
		}
	}
	assert.Len(t, seen, 64)
	assert.False(t, identity, "shuffle left the order untouched")
}

func TestLoadSplitSortsByID(t *testing.T) {
	dir := t.TempDir()
	data := `{
		"2": {"term": "food", "sentence": "the food was bland", "polarity": "negative"},
		"1": {"term": "service", "sentence": "service was quick", "polarity": "positive"},
		"10": {"term": "price", "sentence": "price is fair", "polarity": "neutral"}
	}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "train.json"), []byte(data), 0644))

	examples, err := LoadSplit(dir, "train")
	require.NoError(t, err)
	require.Len(t, examples, 3)
	// Lexicographic id order.
	assert.Equal(t, "1", examples[0].ID)
	assert.Equal(t, "10", examples[1].ID)
	assert.Equal(t, "2", examples[2].ID)
	assert.Equal(t, "service", examples[0].Term)
}

func TestLoadSplitMissingFile(t *testing.T) {
	_, err := LoadSplit(t.TempDir(), "train")
	assert.Error(t, err)
}
