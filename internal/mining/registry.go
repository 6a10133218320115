package mining

import (
	"sort"
	"time"
)

// ChangeEvent is one commit's touch of one method. Events are never mutated
// after they are appended.
type ChangeEvent struct {
	CommitHash   string
	Author       string
	Message      string
	Timestamp    time.Time
	LinesChanged int
}

// MethodIdentity is one logical method followed across commits
type MethodIdentity struct {
	ID           int64
	Scope        string
	Signature    string
	History      []ChangeEvent
	PreviousName string
}

// LongName returns scope followed by signature
func (m *MethodIdentity) LongName() string {
	return m.Scope + m.Signature
}

// Changes returns the number of recorded change events
func (m *MethodIdentity) Changes() int {
	return len(m.History)
}

// ChangedLines returns the sum of LinesChanged over the history
func (m *MethodIdentity) ChangedLines() int {
	total := 0
	for _, ev := range m.History {
		total += ev.LinesChanged
	}
	return total
}

// FileEntity is a tracked source file and the methods it owns
type FileEntity struct {
	Path        string
	DisplayName string
	PriorPaths  []string
	Methods     []*MethodIdentity
}

// MethodLookup is the result of Registry.FindMethod. Exact is false when the
// single match came from the bare-name fallback. Ambiguous is set when the
// fallback matched more than one method; Method is then nil.
type MethodLookup struct {
	Method    *MethodIdentity
	Exact     bool
	Ambiguous bool
}

// Found reports whether the lookup matched exactly one method
func (l MethodLookup) Found() bool {
	return l.Method != nil
}

// Registry maps file paths to the methods they currently own.
// It is owned by a single Engine and is not safe for concurrent use.
type Registry struct {
	codec  NameCodec
	files  map[string]*FileEntity
	nextID int64
}

// NewRegistry creates an empty registry
func NewRegistry(codec NameCodec) *Registry {
	return &Registry{
		codec: codec,
		files: make(map[string]*FileEntity),
	}
}

// File returns the entity at path, or nil
func (r *Registry) File(path string) *FileEntity {
	return r.files[path]
}

// GetOrCreate returns the entity at path, creating an empty one if absent
func (r *Registry) GetOrCreate(path, displayName string) *FileEntity {
	if f, ok := r.files[path]; ok {
		return f
	}
	f := &FileEntity{Path: path, DisplayName: displayName}
	r.files[path] = f
	return f
}

// Rename moves the entity at oldPath to newPath, keeping its methods.
// A fresh entity is created at newPath when oldPath is unknown.
func (r *Registry) Rename(oldPath, newPath, displayName string) *FileEntity {
	f, ok := r.files[oldPath]
	if !ok {
		f = &FileEntity{Path: newPath, DisplayName: displayName}
		r.files[newPath] = f
		return f
	}
	delete(r.files, oldPath)
	f.DisplayName = displayName
	f.Path = newPath
	f.PriorPaths = append(f.PriorPaths, oldPath)
	r.files[newPath] = f
	return f
}

// Remove pops the entity at path. The caller trashes its methods.
func (r *Registry) Remove(path string) *FileEntity {
	f, ok := r.files[path]
	if !ok {
		return nil
	}
	delete(r.files, path)
	return f
}

// FindMethod matches longName against the file's live methods ignoring
// whitespace. With no exact match it falls back to the bare method name so
// parameter edits are tolerated; an ambiguous fallback returns no match.
func (r *Registry) FindMethod(f *FileEntity, longName string) MethodLookup {
	if m := r.FindExact(f, longName); m != nil {
		return MethodLookup{Method: m, Exact: true}
	}

	sig, _, err := r.codec.Split(longName)
	if err != nil {
		return MethodLookup{}
	}
	bare := bareName(sig)

	var match *MethodIdentity
	for _, m := range f.Methods {
		if bareName(m.Signature) != bare {
			continue
		}
		if match != nil {
			return MethodLookup{Ambiguous: true}
		}
		match = m
	}
	return MethodLookup{Method: match}
}

// FindExact returns the live method whose whitespace-free long name equals
// longName's, or nil. The first match wins.
func (r *Registry) FindExact(f *FileEntity, longName string) *MethodIdentity {
	want := normalizeName(longName)
	for _, m := range f.Methods {
		if normalizeName(m.LongName()) == want {
			return m
		}
	}
	return nil
}

// CreateMethod adds a new identity for longName with one event
func (r *Registry) CreateMethod(f *FileEntity, longName string, ev ChangeEvent) (*MethodIdentity, error) {
	sig, scope, err := r.codec.Split(longName)
	if err != nil {
		return nil, err
	}
	r.nextID++
	m := &MethodIdentity{
		ID:        r.nextID,
		Scope:     scope,
		Signature: sig,
		History:   []ChangeEvent{ev},
	}
	f.Methods = append(f.Methods, m)
	return m, nil
}

// UpdateMethod appends ev to the method's history
func (r *Registry) UpdateMethod(m *MethodIdentity, ev ChangeEvent) {
	m.History = append(m.History, ev)
}

// RelabelMethod renames the method in place and appends ev
func (r *Registry) RelabelMethod(m *MethodIdentity, scope, signature string, ev ChangeEvent) {
	m.Scope = scope
	m.Signature = signature
	m.History = append(m.History, ev)
}

// RemoveMethods deletes the methods whose exact long name is in longNames and
// returns them in registry order.
func (r *Registry) RemoveMethods(f *FileEntity, longNames []string) []*MethodIdentity {
	drop := make(map[string]bool, len(longNames))
	for _, n := range longNames {
		drop[n] = true
	}

	var removed []*MethodIdentity
	kept := f.Methods[:0]
	for _, m := range f.Methods {
		if drop[m.LongName()] {
			removed = append(removed, m)
			continue
		}
		kept = append(kept, m)
	}
	for i := len(kept); i < len(f.Methods); i++ {
		f.Methods[i] = nil
	}
	f.Methods = kept
	return removed
}

// RelabelScopes moves every method listed in eligible from a renamed scope
// to its new scope. Targets are computed from the scopes as they were before
// the call, so swaps resolve cleanly. A move that would give two live
// methods the same long name is dropped, repeating until no collision is
// left. Returns the number of methods moved. No change events are recorded.
func (r *Registry) RelabelScopes(f *FileEntity, renames ScopeRenames, eligible map[string]bool) int {
	if len(renames) == 0 {
		return 0
	}

	targets := make([]string, len(f.Methods))
	moving := make([]bool, len(f.Methods))
	for i, m := range f.Methods {
		targets[i] = m.Scope
		if !eligible[m.LongName()] {
			continue
		}
		for _, rn := range renames {
			if m.Scope == rn.Old {
				targets[i] = rn.New
				moving[i] = true
				break
			}
		}
	}

	for {
		counts := make(map[string]int, len(f.Methods))
		for i, m := range f.Methods {
			counts[targets[i]+m.Signature]++
		}
		reverted := false
		for i, m := range f.Methods {
			if moving[i] && counts[targets[i]+m.Signature] > 1 {
				moving[i] = false
				targets[i] = m.Scope
				reverted = true
			}
		}
		if !reverted {
			break
		}
	}

	moved := 0
	for i, m := range f.Methods {
		if moving[i] {
			m.Scope = targets[i]
			moved++
		}
	}
	return moved
}

// Files returns all tracked files ordered by path
func (r *Registry) Files() []*FileEntity {
	out := make([]*FileEntity, 0, len(r.files))
	for _, f := range r.files {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// FileCount returns the number of tracked files
func (r *Registry) FileCount() int {
	return len(r.files)
}

// MethodCount returns the number of live methods across all files
func (r *Registry) MethodCount() int {
	n := 0
	for _, f := range r.files {
		n += len(f.Methods)
	}
	return n
}
