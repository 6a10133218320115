package mining

import (
	"github.com/rohankatakam/changeminer/internal/models"
)

// Relabel reasons reported to observers
const (
	RelabelPairing    = "pairing"
	RelabelScope      = "scope"
	RelabelParameters = "parameters"
)

// Inconsistency kinds. They appear in logs as the "inconsistency" field.
const (
	InconsistencyMalformedName       = "malformed_name"
	InconsistencyAmbiguousMatch      = "ambiguous_match"
	InconsistencyMissingBeforeMethod = "missing_before_method"
	InconsistencyReplaceNotFound     = "replace_not_found"
	InconsistencyUntrackedTouch      = "untracked_touch"
	InconsistencyUpdatedNotFound     = "updated_not_found"
	InconsistencyMissingFile         = "missing_file"
	InconsistencySafetyNet           = "safety_net"
)

// Observer receives engine events, e.g. to feed metrics
type Observer interface {
	CommitProcessed(c *models.Commit)
	ModificationProcessed(kind models.ModificationKind, skipped bool)
	MethodsCreated(n int)
	MethodsUpdated(n int)
	MethodsRelabeled(reason string, n int)
	MethodsTrashed(n int)
	Inconsistency(kind string)
}

// NopObserver ignores every event
type NopObserver struct{}

func (NopObserver) CommitProcessed(*models.Commit)                     {}
func (NopObserver) ModificationProcessed(models.ModificationKind, bool) {}
func (NopObserver) MethodsCreated(int)                                  {}
func (NopObserver) MethodsUpdated(int)                                  {}
func (NopObserver) MethodsRelabeled(string, int)                        {}
func (NopObserver) MethodsTrashed(int)                                  {}
func (NopObserver) Inconsistency(string)                                {}

// multiObserver fans events out in order
type multiObserver []Observer

func (m multiObserver) CommitProcessed(c *models.Commit) {
	for _, o := range m {
		o.CommitProcessed(c)
	}
}

func (m multiObserver) ModificationProcessed(kind models.ModificationKind, skipped bool) {
	for _, o := range m {
		o.ModificationProcessed(kind, skipped)
	}
}

func (m multiObserver) MethodsCreated(n int) {
	for _, o := range m {
		o.MethodsCreated(n)
	}
}

func (m multiObserver) MethodsUpdated(n int) {
	for _, o := range m {
		o.MethodsUpdated(n)
	}
}

func (m multiObserver) MethodsRelabeled(reason string, n int) {
	for _, o := range m {
		o.MethodsRelabeled(reason, n)
	}
}

func (m multiObserver) MethodsTrashed(n int) {
	for _, o := range m {
		o.MethodsTrashed(n)
	}
}

func (m multiObserver) Inconsistency(kind string) {
	for _, o := range m {
		o.Inconsistency(kind)
	}
}

// CountingObserver tallies events. It backs run summaries and tests.
type CountingObserver struct {
	Commits         int
	LastCommit      string
	Modifications   map[models.ModificationKind]int
	Skipped         int
	Created         int
	Updated         int
	Relabeled       map[string]int
	Trashed         int
	Inconsistencies map[string]int
}

// NewCountingObserver returns a zeroed counter set
func NewCountingObserver() *CountingObserver {
	return &CountingObserver{
		Modifications:   make(map[models.ModificationKind]int),
		Relabeled:       make(map[string]int),
		Inconsistencies: make(map[string]int),
	}
}

func (c *CountingObserver) CommitProcessed(commit *models.Commit) {
	c.Commits++
	c.LastCommit = commit.Hash
}

func (c *CountingObserver) ModificationProcessed(kind models.ModificationKind, skipped bool) {
	c.Modifications[kind]++
	if skipped {
		c.Skipped++
	}
}

func (c *CountingObserver) MethodsCreated(n int) { c.Created += n }
func (c *CountingObserver) MethodsUpdated(n int) { c.Updated += n }
func (c *CountingObserver) MethodsTrashed(n int) { c.Trashed += n }

func (c *CountingObserver) MethodsRelabeled(reason string, n int) { c.Relabeled[reason] += n }

func (c *CountingObserver) Inconsistency(kind string) { c.Inconsistencies[kind]++ }

// Reset zeroes every counter so one observer can serve consecutive runs
func (c *CountingObserver) Reset() {
	*c = *NewCountingObserver()
}

// TotalInconsistencies sums all inconsistency kinds
func (c *CountingObserver) TotalInconsistencies() int {
	n := 0
	for _, v := range c.Inconsistencies {
		n += v
	}
	return n
}
