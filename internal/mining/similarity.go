package mining

import (
	"unicode/utf8"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// Scorer rates how alike two texts are, from 0 (nothing shared) to 1 (identical)
type Scorer interface {
	Score(a, b string) float64
}

// DiffScorer computes 2*M/T over whitespace-stripped texts, where M is the
// number of runes in equal diff segments and T the total rune count.
type DiffScorer struct {
	dmp *diffmatchpatch.DiffMatchPatch
}

// NewDiffScorer returns a scorer with the diff timeout disabled so results
// never depend on machine speed.
func NewDiffScorer() *DiffScorer {
	dmp := diffmatchpatch.New()
	dmp.DiffTimeout = 0
	return &DiffScorer{dmp: dmp}
}

// Score implements Scorer
func (s *DiffScorer) Score(a, b string) float64 {
	a = normalizeName(a)
	b = normalizeName(b)

	total := utf8.RuneCountInString(a) + utf8.RuneCountInString(b)
	if total == 0 {
		return 1
	}
	if a == b {
		return 1
	}

	matched := 0
	for _, d := range s.dmp.DiffMain(a, b, false) {
		if d.Type == diffmatchpatch.DiffEqual {
			matched += utf8.RuneCountInString(d.Text)
		}
	}
	return float64(2*matched) / float64(total)
}

// ScorerFunc adapts a plain function to Scorer
type ScorerFunc func(a, b string) float64

// Score implements Scorer
func (f ScorerFunc) Score(a, b string) float64 { return f(a, b) }
