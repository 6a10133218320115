package mining

import (
	"github.com/rohankatakam/changeminer/internal/models"
)

// Partition splits one modification's touched methods relative to the
// before and current method sets.
type Partition struct {
	New      []models.MethodDescriptor
	Obsolete []models.MethodDescriptor
	Updated  []models.MethodDescriptor

	// Inconsistent holds touched methods found in neither the before nor the
	// current set. They take no part in reconciliation.
	Inconsistent []models.MethodDescriptor

	// BeforeWithoutObsolete and CurrentWithoutNew are long names in provider
	// order, used by scope rename detection.
	BeforeWithoutObsolete []string
	CurrentWithoutNew     []string
}

// Empty reports whether no touched method was classified
func (p Partition) Empty() bool {
	return len(p.New) == 0 && len(p.Obsolete) == 0 && len(p.Updated) == 0
}

// PartitionMethods classifies touched methods by long-name membership:
// present in both sets is updated, only after is new, only before is obsolete.
func PartitionMethods(touched, before, current []models.MethodDescriptor) Partition {
	beforeNames := nameSet(before)
	currentNames := nameSet(current)

	var p Partition
	obsolete := make(map[string]bool)
	added := make(map[string]bool)

	for _, m := range touched {
		inBefore := beforeNames[m.LongName]
		inCurrent := currentNames[m.LongName]
		switch {
		case inBefore && inCurrent:
			p.Updated = append(p.Updated, m)
		case inCurrent:
			p.New = append(p.New, m)
			added[m.LongName] = true
		case inBefore:
			p.Obsolete = append(p.Obsolete, m)
			obsolete[m.LongName] = true
		default:
			p.Inconsistent = append(p.Inconsistent, m)
		}
	}

	for _, m := range before {
		if !obsolete[m.LongName] {
			p.BeforeWithoutObsolete = append(p.BeforeWithoutObsolete, m.LongName)
		}
	}
	for _, m := range current {
		if !added[m.LongName] {
			p.CurrentWithoutNew = append(p.CurrentWithoutNew, m.LongName)
		}
	}
	return p
}

func nameSet(methods []models.MethodDescriptor) map[string]bool {
	set := make(map[string]bool, len(methods))
	for _, m := range methods {
		set[m.LongName] = true
	}
	return set
}
