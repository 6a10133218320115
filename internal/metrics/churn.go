package metrics

import "github.com/rohankatakam/changeminer/internal/models"

// ChurnLevel classifies how often a method changed
type ChurnLevel string

const (
	ChurnLow    ChurnLevel = "LOW"
	ChurnMedium ChurnLevel = "MEDIUM"
	ChurnHigh   ChurnLevel = "HIGH"
)

// String returns the string representation of ChurnLevel
func (l ChurnLevel) String() string {
	return string(l)
}

// ChurnThresholds are inclusive lower bounds for each level
type ChurnThresholds struct {
	MediumChanges int
	HighChanges   int
	// HighLines escalates a method to HIGH regardless of its change count
	HighLines int
}

// DefaultChurnThresholds returns the thresholds used by reports
func DefaultChurnThresholds() ChurnThresholds {
	return ChurnThresholds{
		MediumChanges: 5,
		HighChanges:   15,
		HighLines:     200,
	}
}

// Classify returns the churn level of one exported method
func (t ChurnThresholds) Classify(row models.MethodRow) ChurnLevel {
	switch {
	case row.Changes >= t.HighChanges:
		return ChurnHigh
	case t.HighLines > 0 && row.ChgLines >= t.HighLines:
		return ChurnHigh
	case row.Changes >= t.MediumChanges:
		return ChurnMedium
	default:
		return ChurnLow
	}
}

// ChurnCounts tallies rows per level
func (t ChurnThresholds) ChurnCounts(rows []models.MethodRow) map[ChurnLevel]int {
	counts := map[ChurnLevel]int{ChurnLow: 0, ChurnMedium: 0, ChurnHigh: 0}
	for _, r := range rows {
		counts[t.Classify(r)]++
	}
	return counts
}
