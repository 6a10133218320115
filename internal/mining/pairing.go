package mining

import (
	"github.com/rohankatakam/changeminer/internal/models"
)

// Default acceptance thresholds for pairing
const (
	DefaultSignatureThreshold = 0.7
	DefaultBodyThreshold      = 0.6
)

// PairingMode selects what text candidates are compared on
type PairingMode string

const (
	// PairBySignature compares signatures only
	PairBySignature PairingMode = "signature"
	// PairByBody compares the signature followed by the method body
	PairByBody PairingMode = "body"
)

// CandidateOrigin tells which partition set a candidate came from
type CandidateOrigin int

const (
	OriginObsolete CandidateOrigin = iota
	OriginUpdatedBefore
	OriginNew
	OriginUpdatedCurrent
)

// Candidate is one method offered to the pairing step
type Candidate struct {
	Descriptor models.MethodDescriptor
	Scope      string
	Signature  string
	Text       string
	Origin     CandidateOrigin
}

// Pair is an accepted before -> current match
type Pair struct {
	Before  Candidate
	Current Candidate
	Score   float64
	// ScopeRename is true when a detected scope rename explained the pair
	ScopeRename bool
}

// PairingResult holds accepted pairs and every candidate left unpaired, each
// in input order.
type PairingResult struct {
	Pairs           []Pair
	UnpairedBefore  []Candidate
	UnpairedCurrent []Candidate
}

// PairCandidates greedily matches each before candidate, in order, with the
// highest scoring current candidate not yet consumed. The first strictly
// higher score wins ties. A candidate whose scope rename and signature agree
// with renames scores 1 and ends the search. A pair is accepted when its
// score is at least threshold. Inputs are not modified.
func PairCandidates(before, current []Candidate, threshold float64, scorer Scorer, renames ScopeRenames) PairingResult {
	var res PairingResult
	consumed := make([]bool, len(current))

	for _, b := range before {
		best := -1
		bestScore := -1.0
		byRename := false

		for j, c := range current {
			if consumed[j] {
				continue
			}
			if b.Signature == c.Signature && renames.Agrees(b.Scope, c.Scope) {
				best, bestScore, byRename = j, 1, true
				break
			}
			if s := scorer.Score(b.Text, c.Text); s > bestScore {
				best, bestScore = j, s
			}
		}

		if best >= 0 && bestScore >= threshold {
			consumed[best] = true
			res.Pairs = append(res.Pairs, Pair{
				Before:      b,
				Current:     current[best],
				Score:       bestScore,
				ScopeRename: byRename,
			})
			continue
		}
		res.UnpairedBefore = append(res.UnpairedBefore, b)
	}

	for j, c := range current {
		if !consumed[j] {
			res.UnpairedCurrent = append(res.UnpairedCurrent, c)
		}
	}
	return res
}
