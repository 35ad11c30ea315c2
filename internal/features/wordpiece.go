package features

import (
	"github.com/pkg/errors"
	tk "github.com/sugarme/tokenizer"
	"github.com/sugarme/tokenizer/pretrained"
)

// WordPiece wraps a HuggingFace-format WordPiece tokenizer. Special tokens
// are added by the feature converter, not by the tokenizer itself.
type WordPiece struct {
	tok                 *tk.Tokenizer
	clsID, sepID, padID int
}

// NewWordPiece loads a tokenizer from a local tokenizer.json file.
func NewWordPiece(path string) (*WordPiece, error) {
	tok, err := pretrained.FromFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "load tokenizer %s", path)
	}

	// Common BERT special ids; fall back to the standard values if the
	// vocabulary doesn't carry them.
	return &WordPiece{
		tok:   tok,
		clsID: idOrDefault(tok, "[CLS]", 101),
		sepID: idOrDefault(tok, "[SEP]", 102),
		padID: idOrDefault(tok, "[PAD]", 0),
	}, nil
}

func idOrDefault(t *tk.Tokenizer, token string, def int) int {
	id, ok := t.TokenToId(token)
	if !ok {
		return def
	}
	return int(id)
}

// Encode returns the WordPiece ids of text without special tokens.
func (w *WordPiece) Encode(text string) ([]int, error) {
	enc, err := w.tok.EncodeSingle(text, false)
	if err != nil {
		return nil, errors.Wrapf(err, "encode %q", text)
	}
	ids := make([]int, len(enc.Ids))
	for i, id := range enc.Ids {
		ids[i] = int(id)
	}
	return ids, nil
}

// VocabSize returns the size of the tokenizer's vocabulary.
func (w *WordPiece) VocabSize() int {
	return int(w.tok.GetVocabSize(false))
}

func (w *WordPiece) ClsID() int { return w.clsID }
func (w *WordPiece) SepID() int { return w.sepID }
func (w *WordPiece) PadID() int { return w.padID }
