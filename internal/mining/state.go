package mining

import (
	"time"

	"github.com/rohankatakam/changeminer/internal/errors"
)

// State is a serializable copy of a registry and its ledger
type State struct {
	Separator string       `json:"separator"`
	NextID    int64        `json:"next_id"`
	Files     []FileState  `json:"files"`
	Trash     []TrashState `json:"trash,omitempty"`
}

// FileState is one FileEntity in a State
type FileState struct {
	Path        string        `json:"path"`
	DisplayName string        `json:"display_name"`
	PriorPaths  []string      `json:"prior_paths,omitempty"`
	Methods     []MethodState `json:"methods"`
}

// MethodState is one MethodIdentity in a State
type MethodState struct {
	ID           int64        `json:"id"`
	Scope        string       `json:"scope"`
	Signature    string       `json:"signature"`
	PreviousName string       `json:"previous_name,omitempty"`
	History      []EventState `json:"history,omitempty"`
}

// EventState is one ChangeEvent in a State
type EventState struct {
	CommitHash   string    `json:"commit"`
	Author       string    `json:"author"`
	Message      string    `json:"message"`
	Timestamp    time.Time `json:"timestamp"`
	LinesChanged int       `json:"lines_changed"`
}

// TrashState is one TrashEntry in a State
type TrashState struct {
	CommitHash string        `json:"commit"`
	Timestamp  time.Time     `json:"timestamp"`
	Methods    []MethodState `json:"methods"`
}

// Snapshot copies the engine's registry and ledger into a State
func (e *Engine) Snapshot() State {
	st := State{
		Separator: e.codec.Separator,
		NextID:    e.registry.nextID,
	}
	for _, f := range e.registry.Files() {
		fs := FileState{
			Path:        f.Path,
			DisplayName: f.DisplayName,
			PriorPaths:  append([]string(nil), f.PriorPaths...),
			Methods:     make([]MethodState, 0, len(f.Methods)),
		}
		for _, m := range f.Methods {
			fs.Methods = append(fs.Methods, methodState(m))
		}
		st.Files = append(st.Files, fs)
	}
	for _, t := range e.ledger.Trashed() {
		ts := TrashState{CommitHash: t.Commit.Hash, Timestamp: t.Commit.Timestamp}
		for _, m := range t.Methods {
			ts.Methods = append(ts.Methods, methodState(m))
		}
		st.Trash = append(st.Trash, ts)
	}
	return st
}

// Restore replaces the engine's registry and ledger with st
func (e *Engine) Restore(st State) error {
	if st.Separator != "" && st.Separator != e.codec.Separator {
		return errors.ConfigErrorf("snapshot uses separator %q, engine uses %q", st.Separator, e.codec.Separator)
	}

	registry := NewRegistry(e.codec)
	registry.nextID = st.NextID
	for _, fs := range st.Files {
		if _, dup := registry.files[fs.Path]; dup {
			return errors.ValidationErrorf("snapshot lists file %q twice", fs.Path)
		}
		f := &FileEntity{
			Path:        fs.Path,
			DisplayName: fs.DisplayName,
			PriorPaths:  append([]string(nil), fs.PriorPaths...),
		}
		for _, ms := range fs.Methods {
			m := restoreMethod(ms)
			if m.ID > registry.nextID {
				registry.nextID = m.ID
			}
			f.Methods = append(f.Methods, m)
		}
		registry.files[f.Path] = f
	}

	ledger := NewLedger(registry)
	for _, ts := range st.Trash {
		methods := make([]*MethodIdentity, 0, len(ts.Methods))
		for _, ms := range ts.Methods {
			methods = append(methods, restoreMethod(ms))
		}
		ledger.Trash(CommitRef{Hash: ts.CommitHash, Timestamp: ts.Timestamp}, methods)
	}

	e.registry = registry
	e.ledger = ledger
	return nil
}

func methodState(m *MethodIdentity) MethodState {
	ms := MethodState{
		ID:           m.ID,
		Scope:        m.Scope,
		Signature:    m.Signature,
		PreviousName: m.PreviousName,
	}
	for _, ev := range m.History {
		ms.History = append(ms.History, EventState(ev))
	}
	return ms
}

func restoreMethod(ms MethodState) *MethodIdentity {
	m := &MethodIdentity{
		ID:           ms.ID,
		Scope:        ms.Scope,
		Signature:    ms.Signature,
		PreviousName: ms.PreviousName,
	}
	for _, ev := range ms.History {
		m.History = append(m.History, ChangeEvent(ev))
	}
	return m
}
