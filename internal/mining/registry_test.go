package mining

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEvent(hash string, lines int) ChangeEvent {
	return ChangeEvent{
		CommitHash:   hash,
		Author:       "dev",
		Timestamp:    time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
		LinesChanged: lines,
	}
}

func newFileWith(t *testing.T, r *Registry, path string, names ...string) *FileEntity {
	t.Helper()
	f := r.GetOrCreate(path, path)
	for _, n := range names {
		_, err := r.CreateMethod(f, n, testEvent("c0", 0))
		require.NoError(t, err)
	}
	return f
}

func longNames(f *FileEntity) []string {
	out := make([]string, len(f.Methods))
	for i, m := range f.Methods {
		out[i] = m.LongName()
	}
	return out
}

func TestRegistryGetOrCreateAndRename(t *testing.T) {
	r := NewRegistry(NewNameCodec(""))

	f := r.GetOrCreate("src/a.cs", "a.cs")
	assert.Same(t, f, r.GetOrCreate("src/a.cs", "ignored.cs"))
	assert.Equal(t, "a.cs", f.DisplayName)

	_, err := r.CreateMethod(f, "A::run()", testEvent("c1", 0))
	require.NoError(t, err)

	moved := r.Rename("src/a.cs", "lib/b.cs", "b.cs")
	assert.Same(t, f, moved)
	assert.Nil(t, r.File("src/a.cs"))
	assert.Same(t, f, r.File("lib/b.cs"))
	assert.Equal(t, "lib/b.cs", f.Path)
	assert.Equal(t, "b.cs", f.DisplayName)
	assert.Equal(t, []string{"src/a.cs"}, f.PriorPaths)
	assert.Equal(t, []string{"A::run()"}, longNames(f))

	fresh := r.Rename("missing.cs", "new.cs", "new.cs")
	assert.Empty(t, fresh.Methods)
	assert.Empty(t, fresh.PriorPaths)
	assert.Same(t, fresh, r.File("new.cs"))
}

func TestRegistryRemove(t *testing.T) {
	r := NewRegistry(NewNameCodec(""))
	f := newFileWith(t, r, "a.cs", "A::x()")

	assert.Same(t, f, r.Remove("a.cs"))
	assert.Nil(t, r.File("a.cs"))
	assert.Nil(t, r.Remove("a.cs"))
}

func TestRegistryFindMethod(t *testing.T) {
	r := NewRegistry(NewNameCodec(""))
	f := newFileWith(t, r, "a.cs", "A::load(int)", "A::save(string)", "A::save(int, string)")

	lookup := r.FindMethod(f, "A::load( int )")
	require.True(t, lookup.Found())
	assert.True(t, lookup.Exact)
	assert.Equal(t, "A::load(int)", lookup.Method.LongName())

	// parameter edit falls back to the bare name
	lookup = r.FindMethod(f, "A::load(long)")
	require.True(t, lookup.Found())
	assert.False(t, lookup.Exact)
	assert.Equal(t, "A::load(int)", lookup.Method.LongName())

	// two overloads share the bare name
	lookup = r.FindMethod(f, "A::save(bool)")
	assert.False(t, lookup.Found())
	assert.True(t, lookup.Ambiguous)

	lookup = r.FindMethod(f, "A::missing()")
	assert.False(t, lookup.Found())
	assert.False(t, lookup.Ambiguous)
}

func TestRegistryCreateRejectsMalformed(t *testing.T) {
	r := NewRegistry(NewNameCodec(""))
	f := r.GetOrCreate("a.cs", "a.cs")

	_, err := r.CreateMethod(f, "noscope()", testEvent("c1", 0))
	assert.ErrorIs(t, err, ErrMalformedName)
	assert.Empty(t, f.Methods)
}

func TestRegistryIDsAreSequential(t *testing.T) {
	r := NewRegistry(NewNameCodec(""))
	f := newFileWith(t, r, "a.cs", "A::a()", "A::b()")
	g := newFileWith(t, r, "b.cs", "B::a()")

	assert.Equal(t, int64(1), f.Methods[0].ID)
	assert.Equal(t, int64(2), f.Methods[1].ID)
	assert.Equal(t, int64(3), g.Methods[0].ID)
}

func TestRegistryUpdateAndRelabel(t *testing.T) {
	r := NewRegistry(NewNameCodec(""))
	f := newFileWith(t, r, "a.cs", "A::bar(int)")
	m := f.Methods[0]

	r.UpdateMethod(m, testEvent("c1", 3))
	r.RelabelMethod(m, "B::", "baz(int)", testEvent("c2", 4))

	assert.Equal(t, "B::baz(int)", m.LongName())
	assert.Equal(t, 3, m.Changes())
	assert.Equal(t, 7, m.ChangedLines())
}

func TestRegistryRemoveMethods(t *testing.T) {
	r := NewRegistry(NewNameCodec(""))
	f := newFileWith(t, r, "a.cs", "A::a()", "A::b()", "A::c()")

	removed := r.RemoveMethods(f, []string{"A::c()", "A::a()", "A::unknown()"})

	require.Len(t, removed, 2)
	assert.Equal(t, "A::a()", removed[0].LongName())
	assert.Equal(t, "A::c()", removed[1].LongName())
	assert.Equal(t, []string{"A::b()"}, longNames(f))
}

func TestRegistryRelabelScopes(t *testing.T) {
	all := func(f *FileEntity) map[string]bool {
		set := make(map[string]bool)
		for _, n := range longNames(f) {
			set[n] = true
		}
		return set
	}

	t.Run("simple rename keeps identity", func(t *testing.T) {
		r := NewRegistry(NewNameCodec(""))
		f := newFileWith(t, r, "a.cs", "NS::A::foo()", "NS::A::bar()", "NS::C::foo()")
		ids := []int64{f.Methods[0].ID, f.Methods[1].ID}

		moved := r.RelabelScopes(f, ScopeRenames{{Old: "NS::A::", New: "NS::B::"}}, all(f))

		assert.Equal(t, 2, moved)
		assert.Equal(t, []string{"NS::B::foo()", "NS::B::bar()", "NS::C::foo()"}, longNames(f))
		assert.Equal(t, ids, []int64{f.Methods[0].ID, f.Methods[1].ID})
		assert.Len(t, f.Methods[0].History, 1)
	})

	t.Run("swap resolves from snapshot", func(t *testing.T) {
		r := NewRegistry(NewNameCodec(""))
		f := newFileWith(t, r, "a.cs", "A::f()", "B::f()")

		moved := r.RelabelScopes(f, ScopeRenames{{Old: "A::", New: "B::"}, {Old: "B::", New: "A::"}}, all(f))

		assert.Equal(t, 2, moved)
		assert.Equal(t, []string{"B::f()", "A::f()"}, longNames(f))
	})

	t.Run("collision is dropped", func(t *testing.T) {
		r := NewRegistry(NewNameCodec(""))
		f := newFileWith(t, r, "a.cs", "A::f()", "A::g()", "B::f()")

		moved := r.RelabelScopes(f, ScopeRenames{{Old: "A::", New: "B::"}}, all(f))

		assert.Equal(t, 1, moved)
		assert.Equal(t, []string{"A::f()", "B::g()", "B::f()"}, longNames(f))
	})

	t.Run("only eligible methods move", func(t *testing.T) {
		r := NewRegistry(NewNameCodec(""))
		f := newFileWith(t, r, "a.cs", "A::f()", "A::g()")

		moved := r.RelabelScopes(f, ScopeRenames{{Old: "A::", New: "B::"}}, map[string]bool{"A::f()": true})

		assert.Equal(t, 1, moved)
		assert.Equal(t, []string{"B::f()", "A::g()"}, longNames(f))
	})
}

func TestLedgerTrashAndCheckpoint(t *testing.T) {
	r := NewRegistry(NewNameCodec(""))
	l := NewLedger(r)
	f := newFileWith(t, r, "a.cs", "A::a()", "A::b()", "A::c()")

	c1 := CommitRef{Hash: "c1"}
	l.Trash(c1, r.RemoveMethods(f, []string{"A::a()"}))
	l.Trash(c1, r.RemoveMethods(f, []string{"A::b()"}))
	l.Trash(CommitRef{Hash: "c2"}, nil)

	require.Len(t, l.Trashed(), 1)
	assert.Len(t, l.TrashedFor("c1"), 2)
	assert.Nil(t, l.TrashedFor("c2"))
	assert.Equal(t, 2, l.TrashedCount())

	m := f.Methods[0]
	l.RecordChange(m, testEvent("c3", 5))
	assert.Equal(t, 2, m.Changes())

	l.Checkpoint()
	assert.Equal(t, "A::c()", m.PreviousName)
	assert.Empty(t, m.History)
	assert.Equal(t, 1, r.MethodCount())

	l.ClearTrash()
	assert.Empty(t, l.Trashed())
	assert.Zero(t, l.TrashedCount())
}
