package mining

import (
	"time"
)

// CommitRef identifies the commit that removed methods
type CommitRef struct {
	Hash      string
	Timestamp time.Time
}

// TrashEntry is every method removed by one commit
type TrashEntry struct {
	Commit  CommitRef
	Methods []*MethodIdentity
}

// Ledger records change history and keeps removed methods for reporting
type Ledger struct {
	registry *Registry
	trash    []*TrashEntry
	byCommit map[string]*TrashEntry
}

// NewLedger creates a ledger on top of registry
func NewLedger(registry *Registry) *Ledger {
	return &Ledger{
		registry: registry,
		byCommit: make(map[string]*TrashEntry),
	}
}

// RecordChange appends ev to the method's history
func (l *Ledger) RecordChange(m *MethodIdentity, ev ChangeEvent) {
	l.registry.UpdateMethod(m, ev)
}

// Trash files methods under commit. Repeated calls for one commit concatenate.
func (l *Ledger) Trash(commit CommitRef, methods []*MethodIdentity) {
	if len(methods) == 0 {
		return
	}
	entry, ok := l.byCommit[commit.Hash]
	if !ok {
		entry = &TrashEntry{Commit: commit}
		l.byCommit[commit.Hash] = entry
		l.trash = append(l.trash, entry)
	}
	entry.Methods = append(entry.Methods, methods...)
}

// Trashed returns trash entries in the order their commits first removed a method
func (l *Ledger) Trashed() []*TrashEntry {
	return l.trash
}

// TrashedFor returns the methods removed by hash, or nil
func (l *Ledger) TrashedFor(hash string) []*MethodIdentity {
	if e, ok := l.byCommit[hash]; ok {
		return e.Methods
	}
	return nil
}

// TrashedCount returns the number of trashed methods across all commits
func (l *Ledger) TrashedCount() int {
	n := 0
	for _, e := range l.trash {
		n += len(e.Methods)
	}
	return n
}

// ClearTrash forgets every trashed method
func (l *Ledger) ClearTrash() {
	l.trash = nil
	l.byCommit = make(map[string]*TrashEntry)
}

// Checkpoint stores each live method's long name in PreviousName and clears
// its history. Identities are kept.
func (l *Ledger) Checkpoint() {
	for _, f := range l.registry.files {
		for _, m := range f.Methods {
			m.PreviousName = m.LongName()
			m.History = nil
		}
	}
}
