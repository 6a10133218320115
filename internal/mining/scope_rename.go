package mining

import (
	"sort"
	"strings"
)

// DefaultRenameKeywords are the declaration keywords that open the rename gate
var DefaultRenameKeywords = []string{"namespace ", "class ", "struct "}

// ScopeRename is one detected old scope -> new scope relabel
type ScopeRename struct {
	Old string
	New string
}

// ScopeRenames is the ordered result of one detection
type ScopeRenames []ScopeRename

// Agrees reports whether oldScope -> newScope is one of the detected renames
func (r ScopeRenames) Agrees(oldScope, newScope string) bool {
	for _, rn := range r {
		if rn.Old == oldScope && rn.New == newScope {
			return true
		}
	}
	return false
}

// RenameDetector finds enclosing scopes renamed within one modification
type RenameDetector struct {
	codec    NameCodec
	keywords []string
}

// NewRenameDetector creates a detector. An empty keyword list uses DefaultRenameKeywords.
func NewRenameDetector(codec NameCodec, keywords []string) *RenameDetector {
	if len(keywords) == 0 {
		keywords = DefaultRenameKeywords
	}
	lower := make([]string, len(keywords))
	for i, k := range keywords {
		lower[i] = strings.ToLower(k)
	}
	return &RenameDetector{codec: codec, keywords: lower}
}

// Gate reports whether any removed line of the unified diff contains a
// declaration keyword. Renames are only looked for when it does.
func (d *RenameDetector) Gate(diff string) bool {
	for _, line := range strings.Split(diff, "\n") {
		if !strings.HasPrefix(line, "-") {
			continue
		}
		lower := strings.ToLower(line)
		for _, k := range d.keywords {
			if strings.Contains(lower, k) {
				return true
			}
		}
	}
	return false
}

// Detect pairs scopes whose sorted signature lists are equal between the
// before-minus-obsolete and current-minus-new name sets. Every qualifying
// pair is returned in first-appearance order; no global consistency check
// is made.
func (d *RenameDetector) Detect(diff string, p Partition) ScopeRenames {
	if !d.Gate(diff) {
		return nil
	}

	beforeScopes, beforeSigs := d.scopeMap(p.BeforeWithoutObsolete)
	currentScopes, currentSigs := d.scopeMap(p.CurrentWithoutNew)

	var renames ScopeRenames
	for _, bs := range beforeScopes {
		for _, cs := range currentScopes {
			if bs == cs {
				continue
			}
			if equalStrings(beforeSigs[bs], currentSigs[cs]) {
				renames = append(renames, ScopeRename{Old: bs, New: cs})
			}
		}
	}
	return renames
}

// scopeMap groups signatures by scope. Malformed names are ignored; the
// engine validates every name before detection runs.
func (d *RenameDetector) scopeMap(longNames []string) ([]string, map[string][]string) {
	var order []string
	sigs := make(map[string][]string)
	for _, ln := range longNames {
		sig, scope, err := d.codec.Split(ln)
		if err != nil {
			continue
		}
		if _, ok := sigs[scope]; !ok {
			order = append(order, scope)
		}
		sigs[scope] = append(sigs[scope], sig)
	}
	for _, v := range sigs {
		sort.Strings(v)
	}
	return order, sigs
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
