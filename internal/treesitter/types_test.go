package treesitter

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectLanguage(t *testing.T) {
	tests := []struct {
		path string
		want Language
		ok   bool
	}{
		{"src/Cart.cs", LangCSharp, true},
		{"Cart.CS", LangCSharp, true},
		{"a/b/Cart.java", LangJava, true},
		{"main.go", "", false},
		{"Makefile", "", false},
	}
	for _, tt := range tests {
		got, ok := DetectLanguage(tt.path)
		assert.Equal(t, tt.ok, ok, tt.path)
		assert.Equal(t, tt.want, got, tt.path)
	}
}

func TestCollapseSpace(t *testing.T) {
	assert.Equal(t, "(int a, string b)", collapseSpace("(int a,\n\t  string b)"))
}
