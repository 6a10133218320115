package mining

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rohankatakam/changeminer/internal/models"
)

func TestDiffScorer(t *testing.T) {
	s := NewDiffScorer()

	tests := []struct {
		name string
		a, b string
		want float64
	}{
		{"identical", "foo()", "foo()", 1},
		{"both empty", "", "", 1},
		{"one empty", "abc", "", 0},
		{"whitespace ignored", "foo( int a )", "foo(inta)", 1},
		{"one char renamed", "bar(int)", "baz(int)", 0.875},
		{"signature boundary", "aaaaaaabbb", "aaaaaaaccc", 0.7},
		{"body boundary", "aaaaaabbbb", "aaaaaacccc", 0.6},
		{"disjoint", "abc", "xyz", 0},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, s.Score(tt.a, tt.b), tt.name)
	}
}

func TestDiffScorerIsDeterministic(t *testing.T) {
	s := NewDiffScorer()
	a := "void Process(Order order) { Validate(order); Save(order); }"
	b := "void Handle(Order o) { Validate(o); Persist(o); }"

	first := s.Score(a, b)
	for i := 0; i < 20; i++ {
		assert.Equal(t, first, s.Score(a, b))
	}
	assert.Greater(t, first, 0.0)
	assert.Less(t, first, 1.0)
}

func TestLineDifferChangedLines(t *testing.T) {
	d := NewLineDiffer([]string{"//"})

	tests := []struct {
		name          string
		before, after []string
		want          int
	}{
		{
			name:   "identical",
			before: []string{"{", "x();", "}"},
			after:  []string{"{", "x();", "}"},
			want:   0,
		},
		{
			name:   "one line edited",
			before: []string{"{", "int a = 1;", "return a;", "}"},
			after:  []string{"{", "int a = 2;", "return a;", "}"},
			want:   1,
		},
		{
			name:   "line added",
			before: []string{"{", "x();", "}"},
			after:  []string{"{", "x();", "y();", "}"},
			want:   0,
		},
		{
			name:   "lines removed",
			before: []string{"{", "x();", "y();", "z();", "}"},
			after:  []string{"{", "x();", "}"},
			want:   2,
		},
		{
			name:   "comments and braces ignored",
			before: []string{"{", "// old", "x();", "}"},
			after:  []string{"{", "// new", "x();", "{", "}"},
			want:   0,
		},
		{
			name:   "from nothing",
			before: nil,
			after:  []string{"{", "a();", "b();", "}"},
			want:   0,
		},
		{
			name:   "to nothing",
			before: []string{"{", "a();", "b();", "}"},
			after:  nil,
			want:   2,
		},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, d.ChangedLines(tt.before, tt.after), tt.name)
	}
}

func TestMethodBody(t *testing.T) {
	src := "class A {\n  void Foo()\n  {\n    x();\n  }\n}"

	body := methodBody(src, models.MethodDescriptor{LongName: "A::Foo()", StartLine: 2, EndLine: 5})
	assert.Equal(t, []string{"{", "x();", "}"}, body)

	// clamped to the file
	body = methodBody(src, models.MethodDescriptor{StartLine: 0, EndLine: 100})
	assert.Equal(t, []string{"class A {", "void Foo()", "{", "x();", "}", "}"}, body)

	// the declaration line is skipped even when it opens the block
	inline := "class B {\n  void Bar() {\n    y();\n  }\n}"
	body = methodBody(inline, models.MethodDescriptor{LongName: "B::Bar()", StartLine: 2, EndLine: 4})
	assert.Equal(t, []string{"y();", "}"}, body)

	assert.Nil(t, methodBody("", models.MethodDescriptor{StartLine: 1, EndLine: 3}))
	assert.Nil(t, methodBody(src, models.MethodDescriptor{StartLine: 5, EndLine: 2}))
}

func TestBodyText(t *testing.T) {
	assert.Equal(t, "Foo()\n{\nx();\n}", bodyText("Foo()", []string{"{", "", "x();", "}"}))
	assert.Equal(t, "Foo()", bodyText("Foo()", nil))
}
